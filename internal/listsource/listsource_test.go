package listsource

import (
	"context"
	"encoding/base64"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "hostpin/pkg/errors"
)

func TestDecodePlainAddresses(t *testing.T) {
	res, err := Decode([]byte("# mirrors\n1.1.1.1, 2.2.2.2\n\n2606:4700::1 # v6\n1.1.1.1\nnot-an-ip\n"), KindAddresses)
	require.NoError(t, err)
	assert.Equal(t, []string{"1.1.1.1", "2.2.2.2", "2606:4700::1"}, res.Entries)
	assert.Equal(t, []string{"not-an-ip"}, res.Skipped)
}

func TestDecodeBase64(t *testing.T) {
	content := base64.StdEncoding.EncodeToString([]byte("www.example.com\napi.example.com\n"))
	res, err := Decode([]byte(content), KindDomains)
	require.NoError(t, err)
	assert.Equal(t, []string{"www.example.com", "api.example.com"}, res.Entries)
}

func TestDecodeHostsFileLines(t *testing.T) {
	content := []byte("104.16.1.1 www.example.com cdn.example.com\n104.16.1.2\twww.example.org\n")

	res, err := Decode(content, KindAddresses)
	require.NoError(t, err)
	assert.Equal(t, []string{"104.16.1.1", "104.16.1.2"}, res.Entries)

	res, err = Decode(content, KindDomains)
	require.NoError(t, err)
	assert.Equal(t, []string{"www.example.com", "cdn.example.com", "www.example.org"}, res.Entries)
}

func TestDecodeEmpty(t *testing.T) {
	for _, content := range []string{"", "# only a comment\n", "localhost -bad-.example.com"} {
		_, err := Decode([]byte(content), KindDomains)
		assert.ErrorIs(t, err, apperrors.ErrListEmpty, content)
	}
}

func TestValidHostname(t *testing.T) {
	assert.True(t, validHostname("www.notion.so"))
	assert.True(t, validHostname("msgstore.www.notion.so."))
	assert.False(t, validHostname("localhost"))
	assert.False(t, validHostname("1.2.3.4"))
	assert.False(t, validHostname("bad..example.com"))
	assert.False(t, validHostname("-x.example.com"))
}

func testFetcher() *Fetcher {
	return NewFetcher(FetcherConfig{
		UserAgent:  "hostpin-test",
		Timeout:    5 * time.Second,
		MaxRetries: 2,
		RetryDelay: time.Millisecond,
	})
}

func TestLoad(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "hostpin-test", r.UserAgent())
		w.Write([]byte("1.1.1.1\n8.8.8.8\n"))
	}))
	defer srv.Close()

	res, err := testFetcher().Load(context.Background(), srv.URL, KindAddresses)
	require.NoError(t, err)
	assert.Equal(t, []string{"1.1.1.1", "8.8.8.8"}, res.Entries)
}

func TestFetchRetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.Write([]byte("ok"))
	}))
	defer srv.Close()

	body, err := testFetcher().Fetch(context.Background(), srv.URL)
	require.NoError(t, err)
	assert.Equal(t, "ok", string(body))
	assert.Equal(t, int32(3), calls.Load())
}

func TestFetchDoesNotRetryClientErrors(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	_, err := testFetcher().Fetch(context.Background(), srv.URL)
	var fetchErr *apperrors.FetchError
	require.ErrorAs(t, err, &fetchErr)
	assert.Equal(t, srv.URL, fetchErr.URL)
	var httpErr *HTTPError
	require.ErrorAs(t, err, &httpErr)
	assert.Equal(t, http.StatusNotFound, httpErr.StatusCode)
	assert.Equal(t, int32(1), calls.Load())
}

func TestFetchStopsWhenCancelled(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := testFetcher().Fetch(ctx, srv.URL)
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
	assert.LessOrEqual(t, calls.Load(), int32(1))
}
