// Package api hosts the HTTP server, middleware, and REST handlers of the run
// service. Notable routes:
//   - GET /healthz and /readyz for probes.
//   - GET /metrics for Prometheus scraping.
//   - POST /v1/runs to submit a batch.
//   - GET /v1/runs/{run_id}/status and /result to follow it.
package api
