package metrics

import (
	"context"
	"io"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"lyricsync/pkg/lrclib"
	"lyricsync/pkg/music"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestCounters(t *testing.T) {
	m := New()

	m.CacheHit()
	m.CacheMiss()
	m.CacheMiss()
	m.FetchCompleted(music.KindNone, time.Second)
	m.FetchCompleted(music.KindNotFound, time.Second)
	m.ProviderAttempt(lrclib.NewClient(lrclib.Options{}), music.ErrRateLimited, time.Millisecond)
	m.StaleResult()
	m.LineChanged()

	if got := testutil.ToFloat64(m.cacheLookups.WithLabelValues("miss")); got != 2 {
		t.Errorf("Expected 2 cache misses, got %v", got)
	}
	if got := testutil.ToFloat64(m.fetches.WithLabelValues("not_found")); got != 1 {
		t.Errorf("Expected 1 failed fetch, got %v", got)
	}
	if got := testutil.ToFloat64(m.providerAttempts.WithLabelValues("lrclib", "rate_limited")); got != 1 {
		t.Errorf("Expected 1 rate limited attempt, got %v", got)
	}
	if got := testutil.ToFloat64(m.staleResults); got != 1 {
		t.Errorf("Expected 1 stale result, got %v", got)
	}
}

func TestNilMetrics(t *testing.T) {
	var m *Metrics
	m.CacheHit()
	m.CacheMiss()
	m.FetchCompleted(music.KindNone, 0)
	m.StaleResult()
	m.LineChanged()
	m.SetIPCClients(3)
}

func TestHandler(t *testing.T) {
	m := New()
	m.LineChanged()

	server := httptest.NewServer(m.Handler())
	defer server.Close()

	resp, err := server.Client().Get(server.URL)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	if !strings.Contains(string(body), "lyricsync_line_changes_total 1") {
		t.Errorf("Metrics output missing line counter:\n%s", body)
	}
}

func TestServeStopsOnCancel(t *testing.T) {
	m := New()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- m.Serve(ctx, "127.0.0.1:0") }()

	time.Sleep(50 * time.Millisecond)
	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Unexpected error: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Serve did not return after cancel")
	}
}
