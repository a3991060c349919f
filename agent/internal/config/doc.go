// Package config loads and watches the agent configuration file (config.yaml).
//
// Top-level types:
//   - Config{Agent}: full config tree parsed from YAML
//   - AgentConfig: statsd, scrape_interval, metrics_listen, sources []
//   - StatsDConfig: transport {kind, address, max_packet_size}, prefix,
//     constant_tags, queue_size, stop_grace, poll_timeout
//   - Source: id, endpoint, include [], auth, tls
//   - AuthConfig: mode (mtls|apikey|bearer|basic|none); Key(), Token() and
//     Password() resolve secrets from environment variables
//
// Load(path) reads the YAML file, applies defaults (30s scrape, udp to
// 127.0.0.1:8125, unbounded queue, 30s stop grace, 1s poll timeout), then
// validates required fields and enums.
//
// Watch(ctx, path, onChange) uses fsnotify on the parent directory so both
// in-place writes and atomic rename-over saves trigger a reload.
package config
