package httpclient

import (
	"io"
	"net/http"
	"strings"
)

// Request describes an outbound HTTP request.
type Request struct {
	Method string
	// Path is appended to the client's BaseURL. Can be a full URL if BaseURL is empty.
	Path    string
	Headers map[string]string
	Query   map[string]string
	// Body accepts io.Reader, []byte, string, or any value that will be JSON-encoded.
	Body any
	// Auth overrides the client-level auth for this request.
	Auth *AuthConfig
}

// Response is the result of a buffered HTTP request.
type Response struct {
	StatusCode int
	Headers    http.Header
	Body       []byte
}

// IsSuccess returns true if the status code is 2xx.
func (r *Response) IsSuccess() bool {
	return r.StatusCode >= 200 && r.StatusCode < 300
}

// StreamResponse wraps an open streaming HTTP response.
type StreamResponse struct {
	StatusCode int
	Headers    http.Header
	Body       io.ReadCloser
}

// ContentType returns the media type without parameters.
func (r *StreamResponse) ContentType() string {
	ct, _, _ := strings.Cut(r.Headers.Get("Content-Type"), ";")
	return strings.TrimSpace(strings.ToLower(ct))
}

// IsEventStream reports whether the response is text/event-stream.
func (r *StreamResponse) IsEventStream() bool {
	return r.ContentType() == "text/event-stream"
}

// Close releases the response body.
func (r *StreamResponse) Close() error {
	if r.Body == nil {
		return nil
	}
	return r.Body.Close()
}
