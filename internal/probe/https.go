package probe

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	apperrors "hostpin/pkg/errors"
)

// maxResponseBytes bounds how much of the response a probe reads.
const maxResponseBytes = 1024

// HTTPSStrategy measures latency by connecting to the address on port 443,
// completing a TLS handshake with the domain as SNI, sending a HEAD request
// and reading the first bytes of the response. Validates that the address
// actually serves the domain end to end, not merely that it speaks TLS.
type HTTPSStrategy struct {
	Options Options
}

func (s *HTTPSStrategy) Name() string { return "https" }

func (s *HTTPSStrategy) Probe(ctx context.Context, address, domain string) (time.Duration, error) {
	start := time.Now()

	conn, err := s.Options.handshake(ctx, address, domain)
	if err != nil {
		return 0, err
	}
	defer conn.Close()

	req := fmt.Sprintf("HEAD / HTTP/1.1\r\nHost: %s\r\nConnection: close\r\n\r\n", domain)
	if _, err := io.WriteString(conn, req); err != nil {
		return 0, newError(apperrors.KindProtocol, address, domain, fmt.Errorf("write request: %w", err))
	}

	buf := make([]byte, maxResponseBytes)
	n, err := conn.Read(buf)
	elapsed := time.Since(start)

	if n == 0 {
		if err == nil || errors.Is(err, io.EOF) {
			err = errors.New("empty response")
		}
		return 0, newError(apperrors.KindProtocol, address, domain, fmt.Errorf("read response: %w", err))
	}
	if !bytes.HasPrefix(buf[:n], []byte("HTTP/")) {
		return 0, newError(apperrors.KindProtocol, address, domain,
			fmt.Errorf("malformed response: %q", truncate(buf[:n], 32)))
	}

	return elapsed, nil
}

func truncate(b []byte, n int) []byte {
	if len(b) <= n {
		return b
	}
	return b[:n]
}
