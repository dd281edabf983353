// Package api hosts the HTTP server, middleware, and REST handlers for operator
// access. Notable routes:
//   - GET /healthz / readyz for Kubernetes probes.
//   - GET /metrics for Prometheus scraping.
//   - POST /v1/sync and /v1/sync/property to run an analytics sync on demand.
//   - POST /v1/inspect and /v1/indexing for single URL operations.
//   - GET/PUT /v1/sitemaps, GET /v1/stats and GET /v1/usage for reporting.
package api
