// Package observability provides structured logging, Prometheus metrics, and
// health checks for the Canopy workspace platform.
//
// The logger wraps stdlib slog with a JSON handler and carries request-scoped
// fields (request id, user id) through context. Metrics cover the HTTP surface,
// access resolution, membership mutations, invalidation dispatches, and the
// permission cache. The health checker exposes liveness and readiness probes
// over the PostgreSQL and (optional) Redis dependencies.
package observability
