// Package api implements the HTTP REST API for emitter-server.
//
// New(store, stats) returns an http.Handler that serves:
//
//	GET /api/v1/health          receiver counters and live metric count
//	GET /api/v1/metrics         all live metrics; ?prefix= and ?type= filter
//	GET /api/v1/metrics/{name}  single metric; 404 if unknown or stale
//
// All endpoints respond with Content-Type: application/json and return 405
// for non-GET methods. No external HTTP framework is used.
package api
