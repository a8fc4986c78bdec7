// Package api implements the HTTP REST API for sentinelwatch-server.
//
// New(store) returns an http.Handler that serves:
//
//	POST /api/v1/activities/report — accept one activity snapshot from an agent
//	GET  /api/v1/activities        — list activities (skip/limit/client_id/since/until)
//	GET  /api/v1/activities/stats  — activity counts over the last N days
//	GET  /api/v1/activities/{id}   — single activity; 404 if unknown
//	GET  /api/v1/clients           — per-client summaries
//	GET  /api/v1/health            — liveness and store counters
//
// All endpoints:
//   - Respond with Content-Type: application/json
//   - Return 405 for unsupported methods
//
// Authentication and rate limiting are applied by outer middleware, not
// here. JSON types are defined in types.go. No external HTTP framework
// is used.
package api
