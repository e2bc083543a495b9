package httpclient

import (
	"net/http"
	"testing"
)

func TestAuthConfig_Apply(t *testing.T) {
	tests := []struct {
		name   string
		auth   *AuthConfig
		header string
		want   string
		query  string
	}{
		{"bearer", BearerAuth("sk-1"), "Authorization", "Bearer sk-1", ""},
		{"empty bearer", BearerAuth(""), "Authorization", "", ""},
		{"header key", APIKeyAuthHeader("k", "x-api-key"), "X-Api-Key", "k", ""},
		{"default header name", &AuthConfig{Type: AuthAPIKey, Key: "k"}, "X-API-Key", "k", ""},
		{"query key", APIKeyAuthQuery("g", "key"), "", "", "key=g"},
		{"custom", CustomAuth(func(r *http.Request) { r.Header.Set("X-Custom", "v") }), "X-Custom", "v", ""},
		{"nil", nil, "Authorization", "", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req, _ := http.NewRequest(http.MethodPost, "http://example.com/v1?alt=sse", nil)
			tt.auth.apply(req)
			if tt.header != "" {
				if got := req.Header.Get(tt.header); got != tt.want {
					t.Errorf("got %q, want %q", got, tt.want)
				}
			}
			if tt.query != "" {
				if got := req.URL.Query().Get("key"); "key="+got != tt.query {
					t.Errorf("got query %q, want %q", req.URL.RawQuery, tt.query)
				}
				if req.URL.Query().Get("alt") != "sse" {
					t.Error("existing query parameters were dropped")
				}
			}
		})
	}
}
