package httpclient

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/kbukum/lexstream/resilience"
)

// ErrorCode classifies HTTP client errors.
type ErrorCode int

const (
	// ErrCodeTimeout indicates a request deadline or rate limiter wait expired.
	ErrCodeTimeout ErrorCode = iota
	// ErrCodeConnection indicates a connection failure (refused, DNS, reset).
	ErrCodeConnection
	// ErrCodeAuth indicates an authentication/authorization failure (401/403).
	ErrCodeAuth
	// ErrCodeNotFound indicates the resource was not found (404).
	ErrCodeNotFound
	// ErrCodeRateLimit indicates rate limiting (429).
	ErrCodeRateLimit
	// ErrCodeValidation indicates a client-side or 4xx request error.
	ErrCodeValidation
	// ErrCodeServer indicates a server-side error (5xx).
	ErrCodeServer
	// ErrCodeCanceled indicates the caller's context was canceled.
	ErrCodeCanceled
	// ErrCodeCircuitOpen indicates the circuit breaker rejected the call.
	ErrCodeCircuitOpen
)

var codeNames = map[ErrorCode]string{
	ErrCodeTimeout:     "timeout",
	ErrCodeConnection:  "connection",
	ErrCodeAuth:        "auth",
	ErrCodeNotFound:    "not_found",
	ErrCodeRateLimit:   "rate_limit",
	ErrCodeValidation:  "validation",
	ErrCodeServer:      "server",
	ErrCodeCanceled:    "canceled",
	ErrCodeCircuitOpen: "circuit_open",
}

// String returns the error code name.
func (c ErrorCode) String() string {
	if name, ok := codeNames[c]; ok {
		return name
	}
	return "unknown"
}

// Error is a structured HTTP client error with classification.
type Error struct {
	// StatusCode is the HTTP status code (0 for connection-level errors).
	StatusCode int
	Code       ErrorCode
	Message    string
	Retryable  bool
	// Body is the (possibly truncated) response body.
	Body []byte
	// RetryAfter is the server's Retry-After hint, or how long a local
	// circuit or rate limiter asks the caller to back off.
	RetryAfter time.Duration
	Err        error
}

func (e *Error) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("httpclient: %s (HTTP %d): %s", e.Code, e.StatusCode, e.Message)
	}
	return fmt.Sprintf("httpclient: %s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// NewTimeoutError creates a timeout error.
func NewTimeoutError(err error) *Error {
	return &Error{Code: ErrCodeTimeout, Message: err.Error(), Retryable: true, Err: err}
}

// NewConnectionError creates a connection error.
func NewConnectionError(err error) *Error {
	return &Error{Code: ErrCodeConnection, Message: err.Error(), Retryable: true, Err: err}
}

// NewCanceledError creates a caller-cancellation error.
func NewCanceledError(err error) *Error {
	return &Error{Code: ErrCodeCanceled, Message: err.Error(), Err: err}
}

// NewCircuitOpenError creates an error for a call rejected by an open circuit.
func NewCircuitOpenError(name string, retryIn time.Duration) *Error {
	return &Error{
		Code:       ErrCodeCircuitOpen,
		Message:    name + " circuit is open",
		Retryable:  true,
		RetryAfter: retryIn,
		Err:        resilience.ErrCircuitOpen,
	}
}

// NewRateLimitError creates an error for a call the local limiter refused.
func NewRateLimitError(err error, retryAfter time.Duration) *Error {
	return &Error{Code: ErrCodeRateLimit, Message: err.Error(), Retryable: true, RetryAfter: retryAfter, Err: err}
}

// NewValidationError creates a validation error.
func NewValidationError(msg string) *Error {
	return &Error{Code: ErrCodeValidation, Message: msg}
}

// ClassifyStatusCode converts an HTTP status code into a typed error.
// Returns nil for 2xx status codes.
func ClassifyStatusCode(statusCode int, body []byte) *Error {
	e := &Error{
		StatusCode: statusCode,
		Message:    fmt.Sprintf("HTTP %d %s", statusCode, http.StatusText(statusCode)),
		Body:       body,
	}
	switch {
	case statusCode >= 200 && statusCode < 300:
		return nil
	case statusCode == http.StatusUnauthorized || statusCode == http.StatusForbidden:
		e.Code = ErrCodeAuth
	case statusCode == http.StatusNotFound:
		e.Code = ErrCodeNotFound
	case statusCode == http.StatusTooManyRequests:
		e.Code, e.Retryable = ErrCodeRateLimit, true
	case statusCode == http.StatusRequestTimeout:
		e.Code, e.Retryable = ErrCodeTimeout, true
	case statusCode >= 400 && statusCode < 500:
		e.Code = ErrCodeValidation
	case statusCode >= 500:
		e.Code, e.Retryable = ErrCodeServer, statusCode != http.StatusNotImplemented
	default:
		e.Code = ErrCodeServer
	}
	return e
}

// classifyResponse is ClassifyStatusCode plus the response's Retry-After hint.
func classifyResponse(resp *http.Response, body []byte) *Error {
	e := ClassifyStatusCode(resp.StatusCode, body)
	if e != nil {
		e.RetryAfter = parseRetryAfter(resp.Header.Get("Retry-After"), time.Now())
	}
	return e
}

// parseRetryAfter reads delay-seconds or an HTTP date. Unparseable or past
// values yield zero.
func parseRetryAfter(v string, now time.Time) time.Duration {
	if v == "" {
		return 0
	}
	if secs, err := strconv.Atoi(v); err == nil {
		return max(time.Duration(secs)*time.Second, 0)
	}
	if at, err := http.ParseTime(v); err == nil {
		return max(at.Sub(now), 0)
	}
	return 0
}

func hasCode(err error, code ErrorCode) bool {
	var e *Error
	return errors.As(err, &e) && e.Code == code
}

// IsTimeout checks if an error is a timeout error.
func IsTimeout(err error) bool { return hasCode(err, ErrCodeTimeout) }

// IsConnection checks if an error is a connection error.
func IsConnection(err error) bool { return hasCode(err, ErrCodeConnection) }

// IsAuth checks if an error is an authentication error.
func IsAuth(err error) bool { return hasCode(err, ErrCodeAuth) }

// IsNotFound checks if an error is a not-found error.
func IsNotFound(err error) bool { return hasCode(err, ErrCodeNotFound) }

// IsServerError checks if an error is a server error.
func IsServerError(err error) bool { return hasCode(err, ErrCodeServer) }

// IsRateLimit checks if an error is a rate limit error, local or remote.
func IsRateLimit(err error) bool { return hasCode(err, ErrCodeRateLimit) }

// IsCircuitOpen checks if an error is an open circuit rejection.
func IsCircuitOpen(err error) bool { return hasCode(err, ErrCodeCircuitOpen) }

// IsCanceled checks if an error is a caller cancellation.
func IsCanceled(err error) bool { return hasCode(err, ErrCodeCanceled) }

// IsRetryable checks if an error is retryable.
func IsRetryable(err error) bool {
	var e *Error
	return errors.As(err, &e) && e.Retryable
}
