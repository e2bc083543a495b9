// Package resilience guards calls to upstream providers: Retry with
// exponential backoff, a CircuitBreaker that fails fast once an upstream keeps
// failing, a token-bucket RateLimiter, and a Bulkhead capping concurrency.
//
//	resp, err := resilience.Retry(ctx, cfg, func() (*Response, error) {
//	    return client.doOnce(ctx, req)
//	})
package resilience
