package api

// HealthResponse is the payload for GET /api/v1/health.
type HealthResponse struct {
	State       string `json:"state"`
	MetricCount int    `json:"metric_count"`
	Datagrams   uint64 `json:"datagrams"`
	Lines       uint64 `json:"lines"`
	Malformed   uint64 `json:"malformed"`
}

// MetricResponse is one metric in GET /api/v1/metrics or
// GET /api/v1/metrics/{name}.
type MetricResponse struct {
	Name     string   `json:"name"`
	Type     string   `json:"type"`
	Value    string   `json:"value"`
	Rate     float64  `json:"rate"`
	Tags     []string `json:"tags"`
	Lines    uint64   `json:"lines"`
	LastSeen string   `json:"last_seen"` // RFC3339
}

type errorResponse struct {
	Error string `json:"error"`
}
