package httpclient

import (
	"io"
	"net/http"

	"github.com/kbukum/lexstream/httpclient/sse"
)

// Request describes an outbound HTTP request.
type Request struct {
	// Method defaults to GET.
	Method string
	// Path is appended to the adapter's BaseURL. Can be a full URL.
	Path string
	// Headers are request-specific headers (merged over adapter defaults).
	Headers map[string]string
	// Query are URL query parameters.
	Query map[string]string
	// Body accepts io.Reader, []byte, string, or any JSON-encodable value.
	Body any
	// Auth overrides the adapter-level auth for this request.
	Auth *AuthConfig
}

// Response is the result of a non-streaming request.
type Response struct {
	StatusCode int
	Headers    map[string]string
	Body       []byte
}

// IsSuccess returns true if the status code is 2xx.
func (r *Response) IsSuccess() bool {
	return r.StatusCode >= 200 && r.StatusCode < 300
}

// StreamResponse wraps a streaming HTTP response. Exactly one of SSE and Body
// is set, depending on the response content type.
type StreamResponse struct {
	StatusCode int
	Headers    map[string]string
	// SSE reads frames of a text/event-stream response.
	SSE sse.Reader
	// Body is the raw body of any other streaming response.
	Body io.ReadCloser

	rawResp *http.Response
}

// Close releases all resources associated with the stream.
func (r *StreamResponse) Close() error {
	switch {
	case r.SSE != nil:
		return r.SSE.Close()
	case r.Body != nil:
		return r.Body.Close()
	case r.rawResp != nil && r.rawResp.Body != nil:
		return r.rawResp.Body.Close()
	}
	return nil
}
