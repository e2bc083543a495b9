package httpclient

import (
	"context"
	stderrors "errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/kbukum/llmstream/document"
	apperrors "github.com/kbukum/llmstream/errors"
)

// maxErrorBody bounds the response body kept in error details.
const maxErrorBody = 2048

// ClassifyStatusCode converts a non-2xx status into an AppError. The
// provider's own message is used when the body carries one.
// Returns nil for 2xx status codes.
func ClassifyStatusCode(service string, statusCode int, body []byte) *apperrors.AppError {
	if statusCode >= 200 && statusCode < 300 {
		return nil
	}
	msg := providerMessage(body)

	var err *apperrors.AppError
	switch {
	case statusCode == http.StatusUnauthorized:
		err = apperrors.Unauthorized(msg)
	case statusCode == http.StatusForbidden:
		err = apperrors.Forbidden(msg)
	case statusCode == http.StatusNotFound:
		err = apperrors.NotFound("endpoint", "")
	case statusCode == http.StatusTooManyRequests:
		err = apperrors.RateLimited()
	case statusCode == http.StatusRequestTimeout || statusCode == http.StatusGatewayTimeout:
		err = apperrors.Timeout(service)
	case statusCode == http.StatusServiceUnavailable:
		err = apperrors.ServiceUnavailable(service)
	case statusCode >= 400 && statusCode < 500:
		if msg == "" {
			msg = fmt.Sprintf("HTTP %d", statusCode)
		}
		err = apperrors.InvalidInput("", msg)
	default:
		err = apperrors.ExternalServiceError(service, fmt.Errorf("HTTP %d", statusCode))
	}

	err.WithDetail("status", statusCode)
	if msg != "" {
		err.WithDetail("provider_message", msg)
	}
	if len(body) > 0 {
		err.WithDetail("body", truncate(string(body), maxErrorBody))
	}
	return err
}

// classifyTransport maps a failed round trip onto an AppError.
func classifyTransport(ctx context.Context, service string, err error) *apperrors.AppError {
	if ctxErr := ctx.Err(); ctxErr != nil {
		if stderrors.Is(ctxErr, context.Canceled) {
			return apperrors.Internal(ctxErr).WithDetail("operation", service)
		}
		return apperrors.Timeout(service).WithCause(err)
	}
	return apperrors.ConnectionFailed(service).WithCause(err)
}

// providerMessage extracts the error text from common vendor error bodies:
// {"error":{"message":"..."}}, {"error":"..."} and {"message":"..."}.
func providerMessage(body []byte) string {
	v, err := document.Parse(body)
	if err != nil {
		return ""
	}
	if msg := v.Lookup("error", "message").Text(); msg != "" {
		return msg
	}
	if msg := v.Get("error").Text(); msg != "" {
		return msg
	}
	return v.Get("message").Text()
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return strings.ToValidUTF8(s[:n], "") + "..."
}
