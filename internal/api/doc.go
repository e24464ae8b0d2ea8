// Package api hosts the HTTP server, middleware, and REST handlers for operator
// access. Notable routes:
//   - GET /healthz and /readyz for Kubernetes probes.
//   - GET /metrics for Prometheus scraping.
//   - POST /v1/properties/{property_id}/inspections and /submissions for
//     on-demand batches.
//   - GET /v1/properties/{property_id}/quota for remaining daily budget.
//   - POST /v1/sweep for a manually triggered full pass.
package api
