// Package observability provides structured logging and Prometheus metrics
// for the market API.
//
// Loggers are plain *zap.Logger values; request-scoped fields such as the
// request id are attached by the HTTP middleware. Metrics are registered on
// the default Prometheus registry and served on /metrics.
package observability
