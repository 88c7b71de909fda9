// Package errors provides unified error handling for lexstream.
// It implements structured error types with error codes, HTTP status mapping,
// and retryable detection following RFC 7807 and Google AIP-193.
//
// Streaming failures use the STREAM_* codes; callers decide between a retry
// and a permanent failure message from AppError.Retryable alone.
package errors
