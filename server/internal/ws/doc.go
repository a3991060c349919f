// Package ws streams the server's live metrics to WebSocket clients.
//
// Hub.ServeHTTP is mounted at /ws/stream. On connect the client receives the
// current metric set, then a fresh one every interval:
//
//	{"event": "metrics", "at": "...", "metrics": [ /* GET /api/v1/metrics */ ]}
//
// The query parameters prefix and type filter the stream per client, with
// the same meaning as on GET /api/v1/metrics.
package ws
