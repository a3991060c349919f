// Package config loads the server-side configuration from the `server:` section
// of config.yaml (the `agent:` key is ignored by the server binary).
//
// Config fields:
//   - Listen          UDP address for statsd lines (default :8125)
//   - UnixSocket      optional unixgram socket path
//   - HTTPPort        port for the REST API (default 8080)
//   - TTL             how long a metric stays visible after its last line (default 5m)
//   - ReadBuffer      largest datagram accepted (default 65536)
//   - StreamInterval  /ws/stream push interval (default 5s)
//
// Load(path) applies defaults before unmarshalling, then validates.
package config
