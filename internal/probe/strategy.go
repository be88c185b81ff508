package probe

import (
	"context"
	"crypto/tls"
	"fmt"
	"net"
	"time"

	apperrors "hostpin/pkg/errors"
)

// DefaultPort is the standard HTTPS port every probe connects to.
const DefaultPort = "443"

// Strategy defines how a single address is probed for a single domain.
type Strategy interface {
	// Name returns the strategy identifier ("https" or "tls").
	Name() string
	// Probe connects to address presenting domain as SNI and returns the
	// elapsed time. Errors are *apperrors.ProbeError.
	Probe(ctx context.Context, address, domain string) (time.Duration, error)
}

// Options tune how strategies dial. The zero value probes port 443 with the
// system trust store.
type Options struct {
	Port      string
	TLSConfig *tls.Config // cloned per probe; ServerName is always overwritten
}

func (o Options) port() string {
	if o.Port == "" {
		return DefaultPort
	}
	return o.Port
}

func (o Options) tlsConfig(domain string) *tls.Config {
	var cfg *tls.Config
	if o.TLSConfig != nil {
		cfg = o.TLSConfig.Clone()
	} else {
		cfg = &tls.Config{}
	}
	cfg.ServerName = domain
	return cfg
}

// handshake dials address and completes a TLS handshake for domain.
// The returned connection carries the context deadline.
func (o Options) handshake(ctx context.Context, address, domain string) (*tls.Conn, error) {
	dialer := net.Dialer{}
	raw, err := dialer.DialContext(ctx, "tcp", net.JoinHostPort(address, o.port()))
	if err != nil {
		return nil, newError(apperrors.KindConnect, address, domain, err)
	}
	if deadline, ok := ctx.Deadline(); ok {
		raw.SetDeadline(deadline)
	}

	conn := tls.Client(raw, o.tlsConfig(domain))
	if err := conn.HandshakeContext(ctx); err != nil {
		raw.Close()
		return nil, newError(apperrors.KindHandshake, address, domain, err)
	}
	return conn, nil
}

// TLSStrategy measures the time to connect and complete a TLS handshake.
// Lighter than HTTPS but does not confirm the HTTP layer answers.
type TLSStrategy struct {
	Options Options
}

func (s *TLSStrategy) Name() string { return "tls" }

func (s *TLSStrategy) Probe(ctx context.Context, address, domain string) (time.Duration, error) {
	start := time.Now()
	conn, err := s.Options.handshake(ctx, address, domain)
	if err != nil {
		return 0, err
	}
	elapsed := time.Since(start)
	conn.Close()
	return elapsed, nil
}

// NewStrategy creates a Strategy by name. Valid names: "https", "tls".
func NewStrategy(name string, opts Options) (Strategy, error) {
	switch name {
	case "https", "":
		return &HTTPSStrategy{Options: opts}, nil
	case "tls":
		return &TLSStrategy{Options: opts}, nil
	default:
		return nil, fmt.Errorf("unknown probe strategy: %s (available: https, tls)", name)
	}
}
