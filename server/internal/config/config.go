package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Default values for the server configuration.
const (
	DefaultListen     = ":8125"
	DefaultHTTPPort   = 8080
	DefaultTTL        = 5 * time.Minute
	DefaultReadBuffer = 65536
	DefaultStream     = 5 * time.Second
)

// Config holds the server-side configuration parsed from the `server:` section
// of config.yaml. The `agent:` key in the same file is ignored.
type Config struct {
	Server ServerConfig `yaml:"server"`
}

// ServerConfig holds all server-side settings.
type ServerConfig struct {
	// Listen is the UDP address statsd lines are received on (default :8125).
	// Empty disables the UDP listener.
	Listen string `yaml:"listen"`

	// UnixSocket, when set, additionally receives lines on a unixgram socket
	// at this path.
	UnixSocket string `yaml:"unix_socket"`

	// HTTPPort is the port the REST API listens on (default 8080).
	HTTPPort int `yaml:"http_port"`

	// TTL is how long a metric stays visible after its last line.
	TTL time.Duration `yaml:"ttl"`

	// ReadBuffer is the largest datagram accepted, in bytes.
	ReadBuffer int `yaml:"read_buffer"`

	// StreamInterval is how often /ws/stream pushes the metric set.
	StreamInterval time.Duration `yaml:"stream_interval"`
}

// Load reads and parses the config file at path, returning the server configuration.
// Missing fields are filled with defaults before validation.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("server config: read %q: %w", path, err)
	}
	return Parse(data)
}

// Parse decodes and validates a YAML config document.
func Parse(data []byte) (*Config, error) {
	cfg := defaults()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("server config: parse yaml: %w", err)
	}
	if err := validate(cfg); err != nil {
		return nil, fmt.Errorf("server config: %w", err)
	}
	return cfg, nil
}

func defaults() *Config {
	return &Config{
		Server: ServerConfig{
			Listen:         DefaultListen,
			HTTPPort:       DefaultHTTPPort,
			TTL:            DefaultTTL,
			ReadBuffer:     DefaultReadBuffer,
			StreamInterval: DefaultStream,
		},
	}
}

func validate(cfg *Config) error {
	s := cfg.Server
	if s.Listen == "" && s.UnixSocket == "" {
		return fmt.Errorf("server: one of listen or unix_socket is required")
	}
	if s.HTTPPort <= 0 || s.HTTPPort > 65535 {
		return fmt.Errorf("server.http_port %d is out of range [1, 65535]", s.HTTPPort)
	}
	if s.TTL <= 0 {
		return fmt.Errorf("server.ttl must be positive")
	}
	if s.ReadBuffer < 512 {
		return fmt.Errorf("server.read_buffer %d is below the 512 byte minimum", s.ReadBuffer)
	}
	if s.StreamInterval <= 0 {
		return fmt.Errorf("server.stream_interval must be positive")
	}
	return nil
}
