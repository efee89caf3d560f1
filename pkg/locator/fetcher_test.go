package locator

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestFetcher(t *testing.T, config FetcherConfig) *Fetcher {
	t.Helper()
	return NewFetcher(config, testLogger())
}

func TestFetch_OK(t *testing.T) {
	var gotUserAgent, gotAccept string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUserAgent = r.Header.Get("User-Agent")
		gotAccept = r.Header.Get("Accept")
		fmt.Fprint(w, ".remote {}")
	}))
	t.Cleanup(server.Close)

	f := newTestFetcher(t, FetcherConfig{})
	body, err := f.Fetch(context.Background(), server.URL+"/a.css")
	require.NoError(t, err)

	assert.Equal(t, ".remote {}", string(body))
	assert.Equal(t, DefaultUserAgent, gotUserAgent)
	assert.Equal(t, "text/css,*/*;q=0.1", gotAccept)
}

func TestFetch_NotFoundIsPathResolution(t *testing.T) {
	server := httptest.NewServer(http.NotFoundHandler())
	t.Cleanup(server.Close)

	f := newTestFetcher(t, FetcherConfig{})
	_, err := f.Fetch(context.Background(), server.URL+"/gone.css")
	require.Error(t, err)
	assert.True(t, IsPathResolutionError(err))
	assert.False(t, IsNetworkError(err))
}

func TestFetch_ServerErrorIsNetwork(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	t.Cleanup(server.Close)

	f := newTestFetcher(t, FetcherConfig{})
	_, err := f.Fetch(context.Background(), server.URL+"/flaky.css")
	require.Error(t, err)
	assert.True(t, IsNetworkError(err))
	assert.False(t, IsPathResolutionError(err))
}

func TestFetch_BodyLimit(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, ".a {} .b {} .c {} .d {}")
	}))
	t.Cleanup(server.Close)

	f := newTestFetcher(t, FetcherConfig{MaxBodyBytes: 8})
	_, err := f.Fetch(context.Background(), server.URL+"/big.css")
	require.Error(t, err)
	assert.True(t, IsNetworkError(err))
}

func TestFetch_RedirectFollowed(t *testing.T) {
	mux := http.NewServeMux()
	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)

	mux.HandleFunc("/old.css", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/new.css", http.StatusMovedPermanently)
	})
	mux.HandleFunc("/new.css", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, ".moved {}")
	})

	f := newTestFetcher(t, FetcherConfig{})
	body, err := f.Fetch(context.Background(), server.URL+"/old.css")
	require.NoError(t, err)
	assert.Equal(t, ".moved {}", string(body))
}

func TestFetch_RedirectLoopIsNetwork(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, r.URL.Path, http.StatusFound)
	}))
	t.Cleanup(server.Close)

	f := newTestFetcher(t, FetcherConfig{MaxRedirects: 3})
	_, err := f.Fetch(context.Background(), server.URL+"/loop.css")
	require.Error(t, err)
	assert.True(t, IsNetworkError(err))
}

func TestFetch_SchemeRejected(t *testing.T) {
	f := newTestFetcher(t, FetcherConfig{})

	for _, rawURL := range []string{
		"ftp://example.com/a.css",
		"file:///etc/passwd",
		"data:text/css,.a{}",
	} {
		_, err := f.Fetch(context.Background(), rawURL)
		require.Error(t, err, rawURL)
		assert.True(t, IsPathResolutionError(err), rawURL)
	}
}

func TestFetch_TimeoutIsNetwork(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(500 * time.Millisecond)
	}))
	t.Cleanup(server.Close)

	f := newTestFetcher(t, FetcherConfig{Timeout: 20 * time.Millisecond})
	_, err := f.Fetch(context.Background(), server.URL+"/slow.css")
	require.Error(t, err)
	assert.True(t, IsNetworkError(err))
}

func TestFetch_ContextCanceled(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(500 * time.Millisecond)
	}))
	t.Cleanup(server.Close)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	f := newTestFetcher(t, FetcherConfig{})
	_, err := f.Fetch(ctx, server.URL+"/a.css")
	require.Error(t, err)
	assert.True(t, IsNetworkError(err))
}

func TestClassifyStatus(t *testing.T) {
	tests := []struct {
		name       string
		status     int
		network    bool
		resolution bool
	}{
		{"ok", 200, false, false},
		{"no content", 204, false, false},
		{"not found", 404, false, true},
		{"gone", 410, false, true},
		{"forbidden", 403, false, true},
		{"too many requests", 429, true, false},
		{"internal error", 500, true, false},
		{"bad gateway", 502, true, false},
		{"unexpected informational", 103, true, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := classifyStatus("https://example.com/a.css", tt.status)
			if !tt.network && !tt.resolution {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Equal(t, tt.network, IsNetworkError(err))
			assert.Equal(t, tt.resolution, IsPathResolutionError(err))
		})
	}
}
