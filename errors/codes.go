package errors

// ErrorCode represents a machine-readable error code.
type ErrorCode string

// Connection/Availability errors (retryable)
const (
	// ErrCodeServiceUnavailable indicates the service is temporarily unavailable.
	ErrCodeServiceUnavailable ErrorCode = "SERVICE_UNAVAILABLE"
	// ErrCodeTimeout indicates the request timed out.
	ErrCodeTimeout ErrorCode = "TIMEOUT"
	// ErrCodeRateLimited indicates the caller exceeded its request rate.
	ErrCodeRateLimited ErrorCode = "RATE_LIMITED"
)

// Resource and validation errors
const (
	// ErrCodeNotFound indicates the requested resource was not found.
	ErrCodeNotFound ErrorCode = "NOT_FOUND"
	// ErrCodeInvalidInput indicates the input is invalid.
	ErrCodeInvalidInput ErrorCode = "INVALID_INPUT"
	// ErrCodeMissingField indicates a required field is missing.
	ErrCodeMissingField ErrorCode = "MISSING_FIELD"
	// ErrCodeUnauthorized indicates the request is unauthorized.
	ErrCodeUnauthorized ErrorCode = "UNAUTHORIZED"
	// ErrCodeInternal indicates an internal server error.
	ErrCodeInternal ErrorCode = "INTERNAL_ERROR"
)

// Streaming errors. Raised by the lookup stream client for a single
// connection; the retryable flag on each AppError is authoritative.
const (
	// ErrCodeStreamTransport indicates the transport was refused or dropped.
	ErrCodeStreamTransport ErrorCode = "STREAM_TRANSPORT"
	// ErrCodeStreamTimeout indicates no frame arrived before the connect timeout.
	ErrCodeStreamTimeout ErrorCode = "STREAM_TIMEOUT"
	// ErrCodeStreamDecode indicates a terminal frame could not be decoded.
	ErrCodeStreamDecode ErrorCode = "STREAM_DECODE"
	// ErrCodeStreamProtocol indicates the frame sequence violated the protocol.
	ErrCodeStreamProtocol ErrorCode = "STREAM_PROTOCOL"
	// ErrCodeStreamDeserialize indicates the final payload did not match the result type.
	ErrCodeStreamDeserialize ErrorCode = "STREAM_DESERIALIZE"
	// ErrCodeStreamRemote indicates the backend sent an error event.
	ErrCodeStreamRemote ErrorCode = "STREAM_REMOTE"
	// ErrCodeStreamCanceled indicates the caller canceled the stream.
	ErrCodeStreamCanceled ErrorCode = "STREAM_CANCELED"
	// ErrCodeStreamBusy indicates the concurrent stream limit was reached.
	ErrCodeStreamBusy ErrorCode = "STREAM_BUSY"
)

var retryableCodes = map[ErrorCode]bool{
	ErrCodeServiceUnavailable: true,
	ErrCodeTimeout:            true,
	ErrCodeRateLimited:        true,
	ErrCodeStreamTransport:    true,
	ErrCodeStreamTimeout:      true,
	ErrCodeStreamBusy:         true,
	ErrCodeInternal:           false,
}

// IsRetryableCode returns true if the error code indicates a retryable error.
func IsRetryableCode(code ErrorCode) bool {
	return retryableCodes[code]
}
