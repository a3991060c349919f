package api

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/obsidianstack/emitter/server/internal/receiver"
	"github.com/obsidianstack/emitter/server/internal/store"
)

// StatsSource reports receiver counters for the health endpoint.
type StatsSource interface {
	Stats() receiver.Stats
}

// Handler is the HTTP handler for all /api/v1/* endpoints.
type Handler struct {
	store *store.Store
	stats StatsSource
	mux   *http.ServeMux
}

// New creates a Handler wired to the metric store and registers all routes.
// stats may be nil.
func New(st *store.Store, stats StatsSource) http.Handler {
	h := &Handler{store: st, stats: stats, mux: http.NewServeMux()}

	h.mux.HandleFunc("/api/v1/health", h.health)
	h.mux.HandleFunc("/api/v1/metrics", h.listMetrics)
	h.mux.HandleFunc("/api/v1/metrics/", h.getMetric) // subtree, extracts {name}

	return h
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.mux.ServeHTTP(w, r)
}

// health returns GET /api/v1/health. State is "idle" until the first
// metric arrives.
func (h *Handler) health(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		jsonErr(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	resp := HealthResponse{MetricCount: len(h.store.List()), State: "receiving"}
	if resp.MetricCount == 0 {
		resp.State = "idle"
	}
	if h.stats != nil {
		s := h.stats.Stats()
		resp.Datagrams, resp.Lines, resp.Malformed = s.Datagrams, s.Lines, s.Malformed
	}
	jsonResp(w, http.StatusOK, resp)
}

// listMetrics returns GET /api/v1/metrics. Optional query parameters:
// prefix filters by metric name prefix, type by statsd type.
func (h *Handler) listMetrics(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		jsonErr(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	q := r.URL.Query()
	jsonResp(w, http.StatusOK, BuildMetrics(h.store, q.Get("prefix"), q.Get("type")))
}

// BuildMetrics returns the live metrics whose name starts with prefix and,
// when typ is non-empty, whose statsd type is typ. Shared with the
// WebSocket hub.
func BuildMetrics(st *store.Store, prefix, typ string) []MetricResponse {
	entries := st.List()
	out := make([]MetricResponse, 0, len(entries))
	for _, e := range entries {
		if !strings.HasPrefix(e.Sample.Name, prefix) {
			continue
		}
		if typ != "" && e.Sample.Type != typ {
			continue
		}
		out = append(out, toMetricResponse(e))
	}
	return out
}

// getMetric returns GET /api/v1/metrics/{name}. 404 if unknown or stale.
func (h *Handler) getMetric(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		jsonErr(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	name := strings.TrimPrefix(r.URL.Path, "/api/v1/metrics/")
	if name == "" {
		h.listMetrics(w, r)
		return
	}

	e, ok := h.store.Get(name)
	if !ok {
		jsonErr(w, http.StatusNotFound, "metric not found")
		return
	}
	jsonResp(w, http.StatusOK, toMetricResponse(e))
}

func toMetricResponse(e store.Entry) MetricResponse {
	tags := e.Sample.Tags
	if tags == nil {
		tags = []string{}
	}
	return MetricResponse{
		Name:     e.Sample.Name,
		Type:     e.Sample.Type,
		Value:    e.Sample.Value,
		Rate:     e.Sample.Rate,
		Tags:     tags,
		Lines:    e.Lines,
		LastSeen: e.UpdatedAt.UTC().Format(time.RFC3339),
	}
}

func jsonResp(w http.ResponseWriter, code int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v) //nolint:errcheck
}

func jsonErr(w http.ResponseWriter, code int, msg string) {
	jsonResp(w, code, errorResponse{Error: msg})
}
