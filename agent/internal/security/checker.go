package security

import (
	"context"
	"crypto/tls"
	"math"
	"net"
	"net/url"
	"time"

	"github.com/obsidianstack/emitter/agent/internal/config"
)

// DialTimeout bounds a single certificate check.
const DialTimeout = 10 * time.Second

// MetricCertDaysLeft is the gauge Emit writes.
const MetricCertDaysLeft = "tls.cert_days_left"

// Certificate states.
const (
	StatusValid       = "valid"
	StatusExpiring    = "expiring"
	StatusExpired     = "expired"
	StatusUnreachable = "unreachable"
)

// expiringWithin is the window in which a certificate counts as expiring.
const expiringWithin = 30 * 24 * time.Hour

// CertStatus describes the leaf certificate served by a source endpoint.
type CertStatus struct {
	SourceID string
	Endpoint string
	AuthType string
	Status   string
	Issuer   string
	NotAfter time.Time
	DaysLeft int
}

// Gauger is the part of the statsd client Emit needs.
type Gauger interface {
	Gauge(name string, value float64, tags ...string)
}

// Check dials the TLS endpoint of src and returns the status of its leaf
// certificate. Returns nil for non-HTTPS endpoints.
func Check(ctx context.Context, src config.Source) *CertStatus {
	u, err := url.Parse(src.Endpoint)
	if err != nil || u.Scheme != "https" {
		return nil
	}

	cs := &CertStatus{
		SourceID: src.ID,
		Endpoint: src.Endpoint,
		AuthType: src.Auth.Mode,
	}
	if cs.AuthType == "" {
		cs.AuthType = "none"
	}

	host := u.Host
	if _, _, err := net.SplitHostPort(host); err != nil {
		host = net.JoinHostPort(host, "443")
	}

	dialCtx, cancel := context.WithTimeout(ctx, DialTimeout)
	defer cancel()

	dialer := &tls.Dialer{
		NetDialer: &net.Dialer{},
		Config: &tls.Config{
			InsecureSkipVerify: src.TLS.InsecureSkipVerify, //nolint:gosec
		},
	}

	netConn, err := dialer.DialContext(dialCtx, "tcp", host)
	if err != nil {
		cs.Status = StatusUnreachable
		return cs
	}
	conn := netConn.(*tls.Conn)
	defer conn.Close()

	peers := conn.ConnectionState().PeerCertificates
	if len(peers) == 0 {
		cs.Status = StatusUnreachable
		return cs
	}

	leaf := peers[0]
	left := time.Until(leaf.NotAfter)
	cs.Issuer = leaf.Issuer.CommonName
	cs.NotAfter = leaf.NotAfter.UTC()
	cs.DaysLeft = int(math.Floor(left.Hours() / 24))
	cs.Status = classify(left)
	return cs
}

func classify(left time.Duration) string {
	switch {
	case left <= 0:
		return StatusExpired
	case left <= expiringWithin:
		return StatusExpiring
	default:
		return StatusValid
	}
}

// Emit writes cs as a tls.cert_days_left gauge. Unreachable endpoints are
// reported with a value of 0 so the series does not silently disappear.
func Emit(g Gauger, cs *CertStatus) {
	if cs == nil {
		return
	}
	g.Gauge(MetricCertDaysLeft, float64(cs.DaysLeft),
		"source:"+cs.SourceID,
		"status:"+cs.Status,
		"auth:"+cs.AuthType,
	)
}
