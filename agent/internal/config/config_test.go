package config

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/obsidianstack/emitter/pkg/transport"
)

func TestLoad_Valid(t *testing.T) {
	yaml := `
agent:
  scrape_interval: 10s
  metrics_listen: ":9999"
  statsd:
    transport:
      kind: uds
      address: /var/run/datadog/dsd.socket
      max_packet_size: 4096
    prefix: edge
    constant_tags: ["env:prod", "region:eu"]
    queue_size: 500
    stop_grace: 5s
    poll_timeout: 250ms
  sources:
    - id: node
      endpoint: "http://localhost:9100/metrics"
      include: ["node_cpu", "node_memory"]
      auth:
        mode: none
`
	cfg := loadFromString(t, yaml)
	a := cfg.Agent

	if a.ScrapeInterval != 10*time.Second {
		t.Errorf("scrape_interval: got %v", a.ScrapeInterval)
	}
	if a.MetricsListen != ":9999" {
		t.Errorf("metrics_listen: got %q", a.MetricsListen)
	}
	if a.StatsD.Transport.Kind != transport.KindUDS {
		t.Errorf("transport.kind: got %q", a.StatsD.Transport.Kind)
	}
	if a.StatsD.Transport.MaxPacketSize != 4096 {
		t.Errorf("transport.max_packet_size: got %d", a.StatsD.Transport.MaxPacketSize)
	}
	if a.StatsD.Prefix != "edge" {
		t.Errorf("prefix: got %q", a.StatsD.Prefix)
	}
	if len(a.StatsD.ConstantTags) != 2 {
		t.Errorf("constant_tags: got %v", a.StatsD.ConstantTags)
	}
	if a.StatsD.QueueSize != 500 {
		t.Errorf("queue_size: got %d", a.StatsD.QueueSize)
	}
	if a.StatsD.StopGrace != 5*time.Second {
		t.Errorf("stop_grace: got %v", a.StatsD.StopGrace)
	}
	if a.StatsD.PollTimeout != 250*time.Millisecond {
		t.Errorf("poll_timeout: got %v", a.StatsD.PollTimeout)
	}
	if len(a.Sources) != 1 {
		t.Fatalf("sources: got %d, want 1", len(a.Sources))
	}
	if got := a.Sources[0].Include; len(got) != 2 || got[0] != "node_cpu" {
		t.Errorf("include: got %v", got)
	}
}

func TestLoad_Defaults(t *testing.T) {
	cfg := loadFromString(t, "agent: {}\n")
	a := cfg.Agent

	if a.ScrapeInterval != DefaultScrapeInterval {
		t.Errorf("default scrape_interval: got %v, want %v", a.ScrapeInterval, DefaultScrapeInterval)
	}
	if a.StatsD.Transport.Kind != transport.KindUDP || a.StatsD.Transport.Address != "127.0.0.1:8125" {
		t.Errorf("default transport: got %+v", a.StatsD.Transport)
	}
	if a.StatsD.QueueSize != DefaultQueueSize {
		t.Errorf("default queue_size: got %d, want %d", a.StatsD.QueueSize, DefaultQueueSize)
	}
	if a.StatsD.StopGrace != DefaultStopGrace {
		t.Errorf("default stop_grace: got %v, want %v", a.StatsD.StopGrace, DefaultStopGrace)
	}
	if a.StatsD.PollTimeout != DefaultPollTimeout {
		t.Errorf("default poll_timeout: got %v, want %v", a.StatsD.PollTimeout, DefaultPollTimeout)
	}
	if a.MetricsListen != DefaultMetricsListen {
		t.Errorf("default metrics_listen: got %q", a.MetricsListen)
	}
}

func TestLoad_KeepsDefaultKindWhenOnlyAddressSet(t *testing.T) {
	cfg := loadFromString(t, `
agent:
  statsd:
    transport:
      address: "statsd.internal:8125"
`)
	tr := cfg.Agent.StatsD.Transport
	if tr.Kind != transport.KindUDP || tr.Address != "statsd.internal:8125" {
		t.Errorf("transport: got %+v", tr)
	}
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name string
		yaml string
	}{
		{"unknown transport kind", `
agent:
  statsd:
    transport: {kind: tcp, address: "x:1"}
`},
		{"uds without address", `
agent:
  statsd:
    transport: {kind: uds, address: ""}
`},
		{"zero queue size", `
agent:
  statsd:
    queue_size: 0
`},
		{"negative stop grace", `
agent:
  statsd:
    stop_grace: -1s
`},
		{"negative scrape interval", `
agent:
  scrape_interval: -5s
`},
		{"source without id", `
agent:
  sources:
    - endpoint: "http://localhost:9100/metrics"
`},
		{"source without endpoint", `
agent:
  sources:
    - id: node
`},
		{"duplicate source id", `
agent:
  sources:
    - id: node
      endpoint: "http://a/metrics"
    - id: node
      endpoint: "http://b/metrics"
`},
		{"unknown auth mode", `
agent:
  sources:
    - id: node
      endpoint: "http://localhost:9100/metrics"
      auth:
        mode: magictoken
`},
		{"malformed yaml", "agent: [unterminated"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := loadStringErr(t, tc.yaml); err == nil {
				t.Fatal("expected error, got nil")
			}
		})
	}
}

func TestLoad_MissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Fatal("expected error for missing file, got nil")
	}
}

func TestLoad_MultipleAuthModes(t *testing.T) {
	for _, mode := range []string{"mtls", "apikey", "bearer", "basic", "none", ""} {
		t.Run("mode="+mode, func(t *testing.T) {
			yaml := `
agent:
  sources:
    - id: src
      endpoint: "http://localhost:8888/metrics"
      auth:
        mode: "` + mode + `"
`
			cfg := loadFromString(t, yaml)
			if cfg.Agent.Sources[0].Auth.Mode != mode {
				t.Errorf("auth mode: got %q, want %q", cfg.Agent.Sources[0].Auth.Mode, mode)
			}
		})
	}
}

func TestAuthConfig_Secrets(t *testing.T) {
	t.Setenv("TEST_API_KEY", "supersecret")
	t.Setenv("TEST_BEARER_TOKEN", "mytoken")
	t.Setenv("TEST_PASSWORD", "hunter2")

	a := AuthConfig{KeyEnv: "TEST_API_KEY", TokenEnv: "TEST_BEARER_TOKEN", PasswordEnv: "TEST_PASSWORD"}
	if got := a.Key(); got != "supersecret" {
		t.Errorf("Key(): got %q", got)
	}
	if got := a.Token(); got != "mytoken" {
		t.Errorf("Token(): got %q", got)
	}
	if got := a.Password(); got != "hunter2" {
		t.Errorf("Password(): got %q", got)
	}
	if got := (AuthConfig{}).Key(); got != "" {
		t.Errorf("Key() with no KeyEnv: got %q, want empty", got)
	}
}

func TestWatch_ReloadsOnWrite(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	writeFile(t, path, "agent: {scrape_interval: 10s}\n")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	reloaded := make(chan *Config, 4)
	go func() {
		_ = Watch(ctx, path, func(c *Config) {
			select {
			case reloaded <- c:
			default:
			}
		})
	}()

	// Give the watcher a moment to register before writing.
	deadline := time.After(3 * time.Second)
	for {
		writeFile(t, path, "agent: {scrape_interval: 20s}\n")
		select {
		case cfg := <-reloaded:
			// A reload can observe the truncated file mid-write; wait for
			// the complete one.
			if cfg.Agent.ScrapeInterval == 20*time.Second {
				return
			}
		case <-deadline:
			t.Fatal("no reload observed")
		case <-time.After(100 * time.Millisecond):
		}
	}
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}

// loadFromString writes yaml to a temp file and calls Load, failing on error.
func loadFromString(t *testing.T, content string) *Config {
	t.Helper()
	cfg, err := loadStringErr(t, content)
	if err != nil {
		t.Fatalf("Load() unexpected error: %v", err)
	}
	return cfg
}

// loadStringErr writes yaml to a temp file and calls Load, returning any error.
func loadStringErr(t *testing.T, content string) (*Config, error) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	writeFile(t, path, content)
	return Load(path)
}
