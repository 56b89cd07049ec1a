// Package httputil holds the JSON reply helpers, query parsing and
// middleware shared by the HTTP handlers.
//
//	handler := httputil.Chain(
//		httputil.RequestIDMiddleware,
//		httputil.RecoveryMiddleware(logger),
//		httputil.LoggingMiddleware(logger),
//	)(router)
//
// Error replies always have the shape {"error": "..."}; internal errors are
// logged by the caller and answered with a fixed message.
package httputil
