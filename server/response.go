package server

import (
	"errors"
	"math"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	apperrors "github.com/kbukum/lexstream/errors"
)

// DataResponse is the success envelope for JSON routes.
type DataResponse struct {
	Data any `json:"data"`
}

// RespondWithError writes err as a structured error body. Non-AppErrors
// become a generic 500. A retryable error carrying a retry_after detail
// also sets Retry-After, so clients of the lookup routes back off for as
// long as the stream layer asked.
func RespondWithError(c *gin.Context, err error) {
	var appErr *apperrors.AppError
	if !errors.As(err, &appErr) {
		appErr = apperrors.Internal(err)
	}
	status := appErr.HTTPStatus
	if status == 0 {
		status = http.StatusInternalServerError
	}
	if d, ok := appErr.RetryAfter(); ok {
		c.Header("Retry-After", strconv.Itoa(int(math.Ceil(d.Seconds()))))
	}
	c.JSON(status, appErr.ToResponse())
}

// RespondOK sends a 200 response wrapping data.
func RespondOK(c *gin.Context, data any) {
	c.JSON(http.StatusOK, DataResponse{Data: data})
}
