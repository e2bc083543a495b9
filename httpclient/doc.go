// Package httpclient is the HTTP transport used by the vendor dialects.
//
// Do buffers the whole response and retries retryable failures when a retry
// config is set. DoStream hands back the open body for incremental decoding
// and never retries, since a replayed stream would duplicate emitted text.
//
//	client, err := httpclient.New(httpclient.Config{
//	    BaseURL: "https://api.openai.com",
//	    Auth:    httpclient.BearerAuth(key),
//	})
//	stream, err := client.DoStream(ctx, httpclient.Request{
//	    Method: http.MethodPost,
//	    Path:   "/v1/chat/completions",
//	    Body:   body,
//	})
//	defer stream.Close()
package httpclient
