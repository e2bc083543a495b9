package testutil

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
)

// StreamServer starts an httptest server that answers every request with
// frames, flushing after each one. The server is closed when the test ends.
// The request body is handed to inspect when it is non-nil.
func StreamServer(t testing.TB, contentType string, frames []string, inspect func(*http.Request, []byte)) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		if inspect != nil {
			inspect(r, body)
		}
		w.Header().Set("Content-Type", contentType)
		w.WriteHeader(http.StatusOK)
		flusher, _ := w.(http.Flusher)
		for _, frame := range frames {
			_, _ = io.WriteString(w, frame)
			if flusher != nil {
				flusher.Flush()
			}
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

// SSEServer is StreamServer with a text/event-stream content type.
func SSEServer(t testing.TB, frames ...string) *httptest.Server {
	t.Helper()
	return StreamServer(t, "text/event-stream", frames, nil)
}

// NDJSONServer is StreamServer with an application/x-ndjson content type.
func NDJSONServer(t testing.TB, lines ...string) *httptest.Server {
	t.Helper()
	return StreamServer(t, "application/x-ndjson", lines, nil)
}

// JSONServer starts a server that answers every request with status and body.
func JSONServer(t testing.TB, status int, body string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = io.WriteString(w, body)
	}))
	t.Cleanup(srv.Close)
	return srv
}
