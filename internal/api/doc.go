// Package api hosts the HTTP server, middleware, and REST handlers. Routes:
//   - GET /healthz and /readyz for liveness and readiness probes.
//   - GET /metrics for Prometheus scraping.
//   - GET /v1/lineups?match_id= to scrape one match lineup.
//   - GET|POST /v1/social-stats/collect to run a stats collection.
//   - GET /v1/social-stats for stored history.
package api
