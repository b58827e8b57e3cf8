package app

import (
	"encoding/json"
	"strings"
	"testing"

	"lyricsync/internal/lyrics"
	"lyricsync/pkg/music"
)

var testTrack = &music.Track{ID: "1", Title: "Song", Artist: "Band"}

func syncedSnapshot(pos float64) lyrics.Snapshot {
	l := music.NewLyrics(music.SearchQuery{Title: "Song"}, "1", "[00:01.00]one\n[00:02.00]two\n[00:03.00]three", true, music.SourceLRCLib)
	engine := lyrics.NewSyncEngine()
	engine.SetLyrics(l)
	engine.UpdatePosition(pos)
	return lyrics.Snapshot{TrackID: "1", Track: testTrack, Lyrics: l, Sync: engine.State()}
}

func TestRenderText(t *testing.T) {
	plain := music.NewLyrics(music.SearchQuery{}, "1", "a\nb", false, music.SourceLocal)
	tests := []struct {
		name string
		snap lyrics.Snapshot
		want string
	}{
		{"Idle", lyrics.Snapshot{}, noMusicText},
		{"Loading", lyrics.Snapshot{Track: testTrack, IsLoading: true}, "... Searching for lyrics for Band - Song ..."},
		{"NotFound", lyrics.Snapshot{Track: testTrack, Err: music.ErrNotFound}, "No lyrics found for Band - Song"},
		{"Plain", lyrics.Snapshot{Track: testTrack, Lyrics: plain}, "a\nb"},
		{"BeforeFirstLine", syncedSnapshot(0), beforeText},
		{"CurrentLine", syncedSnapshot(2.5), "two"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := renderText(tt.snap); got != tt.want {
				t.Errorf("Expected %q, got %q", tt.want, got)
			}
		})
	}
}

func TestRenderJSON(t *testing.T) {
	payload, err := render(syncedSnapshot(1), "json")
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if strings.Contains(payload, "\n") {
		t.Error("JSON payload must be a single line")
	}

	var state State
	if err := json.Unmarshal([]byte(payload), &state); err != nil {
		t.Fatalf("Invalid JSON: %v", err)
	}
	if state.Text != "one" || state.LineIndex != 0 || !state.Synced || state.Source != music.SourceLRCLib {
		t.Errorf("Unexpected state: %+v", state)
	}
	if len(state.Upcoming) != 2 || state.Upcoming[0] != "two" {
		t.Errorf("Unexpected upcoming lines: %v", state.Upcoming)
	}
	if state.Track == nil || state.Track.ID != "1" {
		t.Errorf("Expected track in state, got %+v", state.Track)
	}
}

func TestRenderTextFormat(t *testing.T) {
	got, err := render(syncedSnapshot(3), "text")
	if err != nil || got != "three" {
		t.Errorf("Expected %q, got %q (%v)", "three", got, err)
	}
}
