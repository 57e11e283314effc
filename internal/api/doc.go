// Package api hosts the HTTP server, middleware, and REST handlers for the
// lead discovery service. Notable routes:
//   - GET /healthz / readyz for Kubernetes probes.
//   - GET /metrics for Prometheus scraping.
//   - POST /v1/search/{provider} for geographic business discovery.
//   - POST /v1/resolve/... for website and social profile resolution.
//   - POST /v1/enrich and /v1/enrich/batch for contact extraction.
//   - POST /v1/validate/... and /v1/zip/neighbors for auxiliary checks.
package api
