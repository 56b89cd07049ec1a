// Package observability holds the ambient runtime concerns of somcheck.
//
// # Logging
//
// Logger is a JSON logger backed by logrus. Packages that only need to log
// accept a logrus.FieldLogger and get Logger.Entry():
//
//	logger := observability.NewLogger(observability.InfoLevel, os.Stderr)
//	store, err := storage.Open(ctx, cfg, storage.WithLogger(logger.Entry()))
//
// # Metrics and tracing
//
// Metrics registers the Prometheus collectors for HTTP requests, check runs,
// files, issues and the store. Its helper methods are no-ops on a nil
// receiver. InitOTel installs OTLP exporters; StartSpan and EndSpan wrap the
// module tracer.
//
// # Runtime
//
// HealthChecker probes the database and redis. ShutdownManager runs
// cleanups on SIGINT/SIGTERM. RecoverPanic and RecoverToError keep a panic
// in one task from taking the process down.
package observability
