package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/obsidianstack/emitter/pkg/shipper"
	"github.com/obsidianstack/emitter/pkg/transport"
)

// Default values applied when fields are absent from the config file.
const (
	DefaultScrapeInterval = 30 * time.Second
	DefaultStopGrace      = shipper.DefaultStopGrace
	DefaultPollTimeout    = shipper.DefaultPollTimeout
	DefaultQueueSize      = shipper.DefaultQueueSize
	DefaultMetricsListen  = ":9102"
)

// Config is the top-level configuration of the emitter agent.
// Fields map 1:1 to config.example.yaml.
type Config struct {
	Agent AgentConfig `yaml:"agent"`
}

// AgentConfig holds all agent-side settings.
type AgentConfig struct {
	// StatsD configures the client the agent emits through.
	StatsD StatsDConfig `yaml:"statsd"`

	// ScrapeInterval controls how often each source is polled.
	ScrapeInterval time.Duration `yaml:"scrape_interval"`

	// MetricsListen is the address serving the agent's own /metrics.
	// Empty disables the endpoint.
	MetricsListen string `yaml:"metrics_listen"`

	// Sources is the list of Prometheus endpoints to forward.
	Sources []Source `yaml:"sources"`
}

// StatsDConfig configures the statsd client and its submission pipeline.
type StatsDConfig struct {
	// Transport selects the wire sink: udp | uds | discard.
	Transport transport.Config `yaml:"transport"`

	// Prefix is prepended, with a dot, to every metric name.
	Prefix string `yaml:"prefix"`

	// ConstantTags are attached to every line.
	ConstantTags []string `yaml:"constant_tags"`

	// QueueSize is the maximum number of lines waiting to be sent. Lines
	// submitted while the queue is full are dropped.
	QueueSize int `yaml:"queue_size"`

	// StopGrace bounds how long shutdown waits for queued lines to drain.
	StopGrace time.Duration `yaml:"stop_grace"`

	// PollTimeout is how long the idle sender waits before re-checking for
	// shutdown.
	PollTimeout time.Duration `yaml:"poll_timeout"`
}

// Source describes one Prometheus text exposition endpoint.
type Source struct {
	// ID is a unique, human-readable identifier, sent as the source tag.
	ID string `yaml:"id"`

	// Endpoint is the full URL of the metrics endpoint.
	Endpoint string `yaml:"endpoint"`

	// Include restricts forwarding to metric families with one of these
	// name prefixes. Empty forwards everything.
	Include []string `yaml:"include"`

	// Auth configures how the agent authenticates to this source.
	Auth AuthConfig `yaml:"auth"`

	// TLS holds optional TLS dial options.
	TLS TLSConfig `yaml:"tls"`
}

// AuthConfig specifies the authentication mode for a source.
type AuthConfig struct {
	// Mode is one of: mtls | apikey | bearer | basic | none.
	Mode string `yaml:"mode"`

	// mTLS fields, used when Mode == "mtls".
	CertFile string `yaml:"cert_file"`
	KeyFile  string `yaml:"key_file"`
	CAFile   string `yaml:"ca_file"`

	// Header carries the API key when Mode == "apikey".
	Header string `yaml:"header"`
	// KeyEnv names the environment variable holding the API key.
	KeyEnv string `yaml:"key_env"`

	// TokenEnv names the environment variable holding the bearer token.
	TokenEnv string `yaml:"token_env"`

	// Username and PasswordEnv are used when Mode == "basic".
	Username    string `yaml:"username"`
	PasswordEnv string `yaml:"password_env"`
}

// Key returns the API key value resolved from the environment.
func (a AuthConfig) Key() string { return lookupEnv(a.KeyEnv) }

// Token returns the bearer token value resolved from the environment.
func (a AuthConfig) Token() string { return lookupEnv(a.TokenEnv) }

// Password returns the basic-auth password resolved from the environment.
func (a AuthConfig) Password() string { return lookupEnv(a.PasswordEnv) }

func lookupEnv(name string) string {
	if name == "" {
		return ""
	}
	return os.Getenv(name)
}

// TLSConfig holds per-source TLS dial options.
type TLSConfig struct {
	// InsecureSkipVerify disables TLS certificate verification.
	InsecureSkipVerify bool `yaml:"insecure_skip_verify"`
}

// Load reads and parses the YAML config file at path.
// Missing optional fields are filled with defaults.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read file: %w", err)
	}
	return Parse(data)
}

// Parse decodes and validates a YAML config document.
func Parse(data []byte) (*Config, error) {
	cfg := defaults()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("config: parse yaml: %w", err)
	}
	if err := validate(cfg); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	return cfg, nil
}

func defaults() *Config {
	return &Config{
		Agent: AgentConfig{
			ScrapeInterval: DefaultScrapeInterval,
			MetricsListen:  DefaultMetricsListen,
			StatsD: StatsDConfig{
				Transport:   transport.Config{Kind: transport.KindUDP, Address: "127.0.0.1:8125"},
				QueueSize:   DefaultQueueSize,
				StopGrace:   DefaultStopGrace,
				PollTimeout: DefaultPollTimeout,
			},
		},
	}
}

func validate(cfg *Config) error {
	a := cfg.Agent
	if a.ScrapeInterval <= 0 {
		return fmt.Errorf("agent.scrape_interval must be positive")
	}

	sd := a.StatsD
	switch sd.Transport.Kind {
	case transport.KindUDP, transport.KindUDS:
		if sd.Transport.Address == "" {
			return fmt.Errorf("agent.statsd.transport.address is required for kind %q", sd.Transport.Kind)
		}
	case transport.KindDiscard:
	default:
		return fmt.Errorf("agent.statsd.transport.kind: unknown kind %q", sd.Transport.Kind)
	}
	if sd.Transport.MaxPacketSize < 0 {
		return fmt.Errorf("agent.statsd.transport.max_packet_size must not be negative")
	}
	if sd.QueueSize <= 0 {
		return fmt.Errorf("agent.statsd.queue_size must be positive")
	}
	if sd.StopGrace <= 0 {
		return fmt.Errorf("agent.statsd.stop_grace must be positive")
	}
	if sd.PollTimeout <= 0 {
		return fmt.Errorf("agent.statsd.poll_timeout must be positive")
	}

	seen := make(map[string]bool, len(a.Sources))
	for i, src := range a.Sources {
		if src.ID == "" {
			return fmt.Errorf("sources[%d]: id is required", i)
		}
		if seen[src.ID] {
			return fmt.Errorf("sources[%d]: duplicate id %q", i, src.ID)
		}
		seen[src.ID] = true
		if src.Endpoint == "" {
			return fmt.Errorf("sources[%d] %q: endpoint is required", i, src.ID)
		}
		switch src.Auth.Mode {
		case "mtls", "apikey", "bearer", "basic", "none", "":
		default:
			return fmt.Errorf("sources[%d] %q: unknown auth mode %q", i, src.ID, src.Auth.Mode)
		}
	}
	return nil
}
