// Package observability provides structured logging and metrics for the
// engine gateway.
//
// Logging is zap based. Metrics are OpenTelemetry instruments exported over
// OTLP/gRPC when an endpoint is configured and dropped otherwise.
package observability
