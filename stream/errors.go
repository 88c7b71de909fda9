package stream

import (
	"context"
	stderrors "errors"
	"fmt"
	"io"
	"net/http"
	"time"

	apperrors "github.com/kbukum/lexstream/errors"
	"github.com/kbukum/lexstream/httpclient"
)

func errTransport(cause error) *apperrors.AppError {
	if appErr, ok := apperrors.AsAppError(cause); ok {
		return appErr
	}
	err := apperrors.New(apperrors.ErrCodeStreamTransport, "The lookup stream was interrupted.", http.StatusBadGateway).
		WithCause(cause)

	var httpErr *httpclient.Error
	switch {
	case stderrors.As(cause, &httpErr):
		err.Retryable = httpErr.Retryable
		err.WithDetail("kind", httpErr.Code.String())
		if httpErr.StatusCode > 0 {
			err.WithDetail("status", httpErr.StatusCode)
		}
		if httpErr.RetryAfter > 0 {
			err.WithDetail("retry_after", httpErr.RetryAfter.String())
		}
	case stderrors.Is(cause, io.ErrUnexpectedEOF):
		err.WithDetail("kind", "dropped")
	}
	return err
}

func errEndedEarly() *apperrors.AppError {
	return apperrors.New(apperrors.ErrCodeStreamTransport, "The lookup stream ended before a result arrived.", http.StatusBadGateway).
		WithDetail("kind", "eof")
}

func errConnectTimeout(key string, after time.Duration) *apperrors.AppError {
	return apperrors.New(apperrors.ErrCodeStreamTimeout, "The lookup service did not respond in time.", http.StatusGatewayTimeout).
		WithDetails(map[string]any{"key": key, "after": after.String()})
}

func errDecode(derr *DecodeError) *apperrors.AppError {
	if derr.Limit {
		return errProtocol(derr.Reason, map[string]any{"event": derr.Event})
	}
	return apperrors.New(apperrors.ErrCodeStreamDecode, fmt.Sprintf("Unreadable %s frame: %s.", derr.Event, derr.Reason), http.StatusBadGateway).
		WithCause(derr).
		WithDetail("fatal", derr.Terminal)
}

func errProtocol(reason string, details map[string]any) *apperrors.AppError {
	err := apperrors.New(apperrors.ErrCodeStreamProtocol, "The lookup stream broke protocol: "+reason+".", http.StatusBadGateway)
	if details != nil {
		err.WithDetails(details)
	}
	return err
}

func errDeserialize(cause error) *apperrors.AppError {
	return apperrors.New(apperrors.ErrCodeStreamDeserialize, "The lookup result could not be read.", http.StatusBadGateway).
		WithCause(cause)
}

func errRemote(ev ErrorEvent) *apperrors.AppError {
	msg := ev.Message
	if msg == "" {
		msg = "The lookup service reported an error."
	}
	return apperrors.New(apperrors.ErrCodeStreamRemote, msg, http.StatusBadGateway).
		WithRetryable(ev.Retryable).
		WithDetail("remote_code", ev.Code)
}

func errCanceled(cause error) *apperrors.AppError {
	err := apperrors.New(apperrors.ErrCodeStreamCanceled, "The lookup was canceled.", 0)
	if cause != nil {
		err.WithCause(cause)
	}
	return err
}

func errBusy(cause error) *apperrors.AppError {
	return apperrors.New(apperrors.ErrCodeStreamBusy, "Too many lookups in flight. Please try again.", http.StatusServiceUnavailable).
		WithCause(cause)
}

// RemoteCode returns the backend's error code carried by a STREAM_REMOTE
// error, or "" for any other error.
func RemoteCode(err error) string {
	appErr, ok := apperrors.AsAppError(err)
	if !ok || appErr.Code != apperrors.ErrCodeStreamRemote {
		return ""
	}
	code, _ := appErr.Details["remote_code"].(string)
	return code
}

// canceledBy maps a finished context to a stream error.
func canceledBy(ctx context.Context) *apperrors.AppError {
	return errCanceled(context.Cause(ctx))
}
