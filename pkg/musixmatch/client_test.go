package musixmatch

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"lyricsync/pkg/music"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	return NewClient(Options{APIKey: "key", BaseURL: server.URL, Timeout: time.Second})
}

var query = music.SearchQuery{Title: "Song", Artist: "Band", Duration: 180}

func TestFetchSubtitle(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		if r.URL.Path != "/matcher.subtitle.get" {
			t.Errorf("Unexpected path %s", r.URL.Path)
		}
		if q.Get("apikey") != "key" || q.Get("q_track") != "Song" || q.Get("f_subtitle_length") != "180" {
			t.Errorf("Unexpected query %s", r.URL.RawQuery)
		}
		w.Write([]byte(`{"message":{"header":{"status_code":200},"body":{"subtitle":{"subtitle_id":9,"subtitle_body":"[00:01.00] hello\n[00:03.50] world"}}}}`))
	})

	lyrics, err := client.FetchLyrics(context.Background(), query)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if !lyrics.IsSynced || lyrics.TrackID != "9" || lyrics.Source != music.SourceMusixmatch {
		t.Errorf("Unexpected metadata: %+v", lyrics)
	}
	if len(lyrics.Lines) != 2 || lyrics.Lines[1].Text != "world" {
		t.Errorf("Unexpected lines: %+v", lyrics.Lines)
	}
}

func TestFetchPlainFallback(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/matcher.subtitle.get":
			w.Write([]byte(`{"message":{"header":{"status_code":404},"body":[]}}`))
		case "/matcher.lyrics.get":
			w.Write([]byte(`{"message":{"header":{"status_code":200},"body":{"lyrics":{"lyrics_id":5,"lyrics_body":"line one\nline two"}}}}`))
		}
	})

	lyrics, err := client.FetchLyrics(context.Background(), query)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if lyrics.IsSynced || len(lyrics.Lines) != 2 {
		t.Errorf("Expected two plain lines, got %+v", lyrics)
	}
}

func TestFetchSubtitleWithoutTagsFallsBack(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/matcher.subtitle.get":
			w.Write([]byte(`{"message":{"header":{"status_code":200},"body":{"subtitle":{"subtitle_id":9,"subtitle_body":"not an lrc body"}}}}`))
		case "/matcher.lyrics.get":
			w.Write([]byte(`{"message":{"header":{"status_code":200},"body":{"lyrics":{"lyrics_id":5,"lyrics_body":"line one"}}}}`))
		}
	})

	lyrics, err := client.FetchLyrics(context.Background(), query)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if lyrics.IsSynced || lyrics.TrackID != "5" || len(lyrics.Lines) != 1 {
		t.Errorf("Expected plain lyrics, got %+v", lyrics)
	}
}

func TestEnvelopeErrors(t *testing.T) {
	tests := []struct {
		name string
		code int
		want error
	}{
		{"NotFound", 404, music.ErrNotFound},
		{"Unauthorized", 401, music.ErrInvalidResponse},
		{"Quota", 402, music.ErrInvalidResponse},
		{"RateLimited", 429, music.ErrRateLimited},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				w.Write([]byte(`{"message":{"header":{"status_code":` + strconv.Itoa(tt.code) + `},"body":""}}`))
			})
			_, err := client.FetchLyrics(context.Background(), query)
			if !errors.Is(err, tt.want) {
				t.Errorf("Expected %v, got %v", tt.want, err)
			}
		})
	}
}

func TestIsAvailable(t *testing.T) {
	if NewClient(Options{}).IsAvailable() {
		t.Error("Client without API key must be unavailable")
	}
	if !NewClient(Options{APIKey: "x"}).IsAvailable() {
		t.Error("Client with API key must be available")
	}
}
