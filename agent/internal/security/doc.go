// Package security inspects the TLS certificates served by source endpoints.
// The agent reports the result as a tls.cert_days_left gauge per source.
package security
