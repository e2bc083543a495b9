// Package errors provides the structured error type shared by the transport,
// the vendor dialects and the relay. Every AppError carries a code, an HTTP
// status suggestion and a retryable flag.
package errors
