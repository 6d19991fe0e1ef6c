// Package middleware provides the net/http middleware mounted on the cadview
// gateway router.
//
// This package includes:
//   - Prometheus request metrics keyed by chi route pattern
//   - OpenTelemetry server spans named gateway.request
//   - Structured access logging with log/slog
//
// # Usage
//
//	r := chi.NewRouter()
//	r.Use(chimw.RequestID, chimw.Recoverer)
//	r.Use(middleware.OpenTelemetry())
//	r.Use(middleware.Prometheus(m))
//	r.Use(middleware.AccessLog(logger))
//
// Route labels use the matched pattern ("/cad/{id}") rather than the raw
// path, so label cardinality stays bounded. Unmatched requests are labelled
// "unmatched".
package middleware
