package probe

import (
	"bufio"
	"context"
	"crypto/tls"
	"crypto/x509"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "hostpin/pkg/errors"
)

// httptest certificates are issued for example.com and 127.0.0.1.
const testDomain = "example.com"

func tlsTestServer(t *testing.T) (*httptest.Server, Options) {
	t.Helper()
	srv := httptest.NewTLSServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))
	t.Cleanup(srv.Close)

	pool := x509.NewCertPool()
	pool.AddCert(srv.Certificate())

	_, port, err := net.SplitHostPort(srv.Listener.Addr().String())
	require.NoError(t, err)
	return srv, Options{Port: port, TLSConfig: &tls.Config{RootCAs: pool}}
}

// rawTLSServer completes TLS handshakes and then hands the connection to fn.
func rawTLSServer(t *testing.T, fn func(conn net.Conn)) Options {
	t.Helper()
	srv, opts := tlsTestServer(t)

	cfg := &tls.Config{Certificates: srv.TLS.Certificates}
	ln, err := tls.Listen("tcp", "127.0.0.1:0", cfg)
	require.NoError(t, err)
	t.Cleanup(func() { ln.Close() })

	go func() {
		for {
			conn, err := ln.Accept()
			if err != nil {
				return
			}
			go func() {
				defer conn.Close()
				if err := conn.(*tls.Conn).Handshake(); err != nil {
					return
				}
				fn(conn)
			}()
		}
	}()

	_, port, err := net.SplitHostPort(ln.Addr().String())
	require.NoError(t, err)
	opts.Port = port
	return opts
}

func probe(t *testing.T, s Strategy, address, domain string, timeout time.Duration) (time.Duration, error) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	return s.Probe(ctx, address, domain)
}

func TestHTTPSStrategySuccess(t *testing.T) {
	_, opts := tlsTestServer(t)
	s := &HTTPSStrategy{Options: opts}

	elapsed, err := probe(t, s, "127.0.0.1", testDomain, 5*time.Second)
	require.NoError(t, err)
	assert.Greater(t, elapsed, time.Duration(0))
}

func TestHTTPSStrategySendsHeadWithHost(t *testing.T) {
	requests := make(chan *http.Request, 1)
	opts := rawTLSServer(t, func(conn net.Conn) {
		req, err := http.ReadRequest(bufio.NewReader(conn))
		if err != nil {
			return
		}
		requests <- req
		conn.Write([]byte("HTTP/1.1 200 OK\r\nContent-Length: 0\r\n\r\n"))
	})

	_, err := probe(t, &HTTPSStrategy{Options: opts}, "127.0.0.1", testDomain, 5*time.Second)
	require.NoError(t, err)

	req := <-requests
	assert.Equal(t, http.MethodHead, req.Method)
	assert.Equal(t, "/", req.URL.Path)
	assert.Equal(t, testDomain, req.Host)
	assert.True(t, req.Close)
}

func TestHTTPSStrategyFailureKinds(t *testing.T) {
	t.Run("handshake: certificate does not match domain", func(t *testing.T) {
		_, opts := tlsTestServer(t)
		_, err := probe(t, &HTTPSStrategy{Options: opts}, "127.0.0.1", "not-served.test", 5*time.Second)
		require.Error(t, err)
		assert.Equal(t, apperrors.KindHandshake, apperrors.KindOf(err))
	})

	t.Run("handshake: untrusted certificate", func(t *testing.T) {
		_, opts := tlsTestServer(t)
		opts.TLSConfig = nil
		_, err := probe(t, &HTTPSStrategy{Options: opts}, "127.0.0.1", testDomain, 5*time.Second)
		require.Error(t, err)
		assert.Equal(t, apperrors.KindHandshake, apperrors.KindOf(err))
	})

	t.Run("connect: nothing listening", func(t *testing.T) {
		ln, err := net.Listen("tcp", "127.0.0.1:0")
		require.NoError(t, err)
		_, port, _ := net.SplitHostPort(ln.Addr().String())
		ln.Close()

		_, err = probe(t, &HTTPSStrategy{Options: Options{Port: port}}, "127.0.0.1", testDomain, 5*time.Second)
		require.Error(t, err)
		assert.Equal(t, apperrors.KindConnect, apperrors.KindOf(err))
	})

	t.Run("timeout: server never answers the handshake", func(t *testing.T) {
		ln, err := net.Listen("tcp", "127.0.0.1:0")
		require.NoError(t, err)
		t.Cleanup(func() { ln.Close() })
		go func() {
			conn, err := ln.Accept()
			if err != nil {
				return
			}
			defer conn.Close()
			io.Copy(io.Discard, conn)
		}()
		_, port, _ := net.SplitHostPort(ln.Addr().String())

		_, err = probe(t, &HTTPSStrategy{Options: Options{Port: port}}, "127.0.0.1", testDomain, 200*time.Millisecond)
		require.Error(t, err)
		assert.Equal(t, apperrors.KindTimeout, apperrors.KindOf(err))
	})

	t.Run("protocol: connection closed without response", func(t *testing.T) {
		opts := rawTLSServer(t, func(conn net.Conn) {
			http.ReadRequest(bufio.NewReader(conn))
		})
		_, err := probe(t, &HTTPSStrategy{Options: opts}, "127.0.0.1", testDomain, 5*time.Second)
		require.Error(t, err)
		assert.Equal(t, apperrors.KindProtocol, apperrors.KindOf(err))
	})

	t.Run("protocol: response is not HTTP", func(t *testing.T) {
		opts := rawTLSServer(t, func(conn net.Conn) {
			http.ReadRequest(bufio.NewReader(conn))
			conn.Write([]byte("SSH-2.0-OpenSSH_9.6\r\n"))
		})
		_, err := probe(t, &HTTPSStrategy{Options: opts}, "127.0.0.1", testDomain, 5*time.Second)
		require.Error(t, err)
		assert.Equal(t, apperrors.KindProtocol, apperrors.KindOf(err))
	})
}

func TestTLSStrategy(t *testing.T) {
	_, opts := tlsTestServer(t)
	s := &TLSStrategy{Options: opts}

	_, err := probe(t, s, "127.0.0.1", testDomain, 5*time.Second)
	require.NoError(t, err)

	_, err = probe(t, s, "127.0.0.1", "not-served.test", 5*time.Second)
	assert.Equal(t, apperrors.KindHandshake, apperrors.KindOf(err))
}

func TestNewStrategy(t *testing.T) {
	s, err := NewStrategy("", Options{})
	require.NoError(t, err)
	assert.Equal(t, "https", s.Name())

	s, err = NewStrategy("tls", Options{})
	require.NoError(t, err)
	assert.Equal(t, "tls", s.Name())

	_, err = NewStrategy("icmp", Options{})
	assert.Error(t, err)
}
