package lyrics

import (
	"testing"

	"lyricsync/pkg/music"
)

func syncedLyrics(text string) *music.Lyrics {
	return &music.Lyrics{Lines: music.ParseSynced(text), IsSynced: true}
}

const fiveLines = "[00:05.00]one\n[00:10.00]two\n[00:15.00]three\n[00:20.00]four\n[00:25.00]five"

func TestUpdatePositionBeforeFirstLine(t *testing.T) {
	e := NewSyncEngine()
	e.SetLyrics(syncedLyrics(fiveLines))

	if e.UpdatePosition(4.99) {
		t.Error("Position before the first line must not change state")
	}
	state := e.State()
	if state.CurrentLineIndex != NoLine || state.CurrentLine != nil {
		t.Errorf("Expected no current line, got %+v", state)
	}
}

func TestUpdatePositionBoundaries(t *testing.T) {
	tests := []struct {
		pos  float64
		want int
	}{
		{5.0, 0},
		{9.999, 0},
		{10.0, 1},
		{24.9, 3},
		{25.0, 4},
		{3600, 4},
	}
	for _, tt := range tests {
		e := NewSyncEngine()
		e.SetLyrics(syncedLyrics(fiveLines))
		e.UpdatePosition(tt.pos)
		if got := e.State().CurrentLineIndex; got != tt.want {
			t.Errorf("UpdatePosition(%v): expected index %d, got %d", tt.pos, tt.want, got)
		}
	}
}

func TestUpdatePositionPastExplicitEnd(t *testing.T) {
	end := 12.0
	lyrics := &music.Lyrics{
		IsSynced: true,
		Lines: []music.Line{
			{StartTime: 5, Text: "one"},
			{StartTime: 10, EndTime: &end, Text: "two"},
		},
	}
	e := NewSyncEngine()
	e.SetLyrics(lyrics)

	e.UpdatePosition(30)
	if got := e.State().CurrentLineIndex; got != 1 {
		t.Errorf("Expected last line past its end time, got %d", got)
	}
}

func endAt(v float64) *float64 { return &v }

func TestLineIndexAtGapFallsBackToLastLine(t *testing.T) {
	lines := []music.Line{
		{StartTime: 0, EndTime: endAt(1), Text: "a"},
		{StartTime: 5, Text: "b"},
		{StartTime: 8, Text: "c"},
	}
	tests := []struct {
		pos  float64
		want int
	}{
		{0.5, 0},
		{1, 2},
		{2, 2},
		{5, 1},
		{8, 2},
	}
	for _, tt := range tests {
		if got := lineIndexAt(lines, tt.pos); got != tt.want {
			t.Errorf("lineIndexAt(%v): expected %d, got %d", tt.pos, tt.want, got)
		}
	}
}

func TestLineIndexAtOverlapPrefersEarlierLine(t *testing.T) {
	lines := []music.Line{
		{StartTime: 0, EndTime: endAt(10), Text: "a"},
		{StartTime: 5, Text: "b"},
		{StartTime: 20, Text: "c"},
	}
	tests := []struct {
		pos  float64
		want int
	}{
		{6, 0},
		{9.99, 0},
		{10, 1},
		{20, 2},
	}
	for _, tt := range tests {
		if got := lineIndexAt(lines, tt.pos); got != tt.want {
			t.Errorf("lineIndexAt(%v): expected %d, got %d", tt.pos, tt.want, got)
		}
	}
}

func TestUpdatePositionDeduplicates(t *testing.T) {
	e := NewSyncEngine()
	e.SetLyrics(syncedLyrics(fiveLines))

	if !e.UpdatePosition(11) {
		t.Fatal("First update into a line must report a change")
	}
	for _, pos := range []float64{11.5, 12, 14.99} {
		if e.UpdatePosition(pos) {
			t.Errorf("UpdatePosition(%v) reported a change within the same line", pos)
		}
	}
	if !e.UpdatePosition(15) {
		t.Error("Moving to the next line must report a change")
	}
	if !e.UpdatePosition(1) {
		t.Error("Seeking back before the first line must report a change")
	}
}

func TestUpcomingLines(t *testing.T) {
	e := NewSyncEngine()
	e.SetLyrics(syncedLyrics(fiveLines))

	assertTexts(t, "seeded", e.State().UpcomingLines, "one", "two", "three")

	e.UpdatePosition(5)
	assertTexts(t, "first line", e.State().UpcomingLines, "two", "three", "four")

	e.UpdatePosition(20)
	assertTexts(t, "fourth line", e.State().UpcomingLines, "five")

	e.UpdatePosition(25)
	assertTexts(t, "last line", e.State().UpcomingLines)

	e.UpdatePosition(0)
	assertTexts(t, "rewound", e.State().UpcomingLines, "one", "two", "three")
}

func TestSetLyricsNilClearsState(t *testing.T) {
	e := NewSyncEngine()
	e.SetLyrics(syncedLyrics(fiveLines))
	e.UpdatePosition(12)

	e.SetLyrics(nil)
	state := e.State()
	if state.CurrentLineIndex != NoLine || state.CurrentLine != nil || len(state.UpcomingLines) != 0 {
		t.Errorf("Expected cleared state, got %+v", state)
	}
	if e.UpdatePosition(12) {
		t.Error("UpdatePosition without lyrics must be a no-op")
	}
}

func TestSetLyricsResetsIndex(t *testing.T) {
	e := NewSyncEngine()
	e.SetLyrics(syncedLyrics(fiveLines))
	e.UpdatePosition(12)

	e.SetLyrics(syncedLyrics("[00:01.00]a\n[00:02.00]b"))
	if got := e.State().CurrentLineIndex; got != NoLine {
		t.Errorf("Expected index reset, got %d", got)
	}
}

func TestUnsyncedNeverHighlights(t *testing.T) {
	e := NewSyncEngine()
	e.SetLyrics(&music.Lyrics{Lines: music.ParsePlain("a\nb\nc\nd"), IsSynced: false})

	for _, pos := range []float64{-1, 0, 1, 2, 3, 100} {
		if e.UpdatePosition(pos) {
			t.Errorf("UpdatePosition(%v) changed state for unsynced lyrics", pos)
		}
		if got := e.State().CurrentLineIndex; got != NoLine {
			t.Errorf("UpdatePosition(%v): expected no line, got %d", pos, got)
		}
	}
	assertTexts(t, "unsynced", e.State().UpcomingLines, "a", "b", "c")
}

func TestReset(t *testing.T) {
	e := NewSyncEngine()
	e.SetLyrics(syncedLyrics(fiveLines))
	e.UpdatePosition(7)
	e.Reset()

	state := e.State()
	if state.CurrentLineIndex != NoLine || state.CurrentLine != nil || len(state.UpcomingLines) != 0 {
		t.Errorf("Expected empty state after Reset, got %+v", state)
	}
}

func TestStateIsCopy(t *testing.T) {
	e := NewSyncEngine()
	e.SetLyrics(syncedLyrics(fiveLines))
	e.UpdatePosition(5)

	state := e.State()
	state.UpcomingLines[0].Text = "changed"
	state.CurrentLine.Text = "changed"

	again := e.State()
	if again.UpcomingLines[0].Text != "two" || again.CurrentLine.Text != "one" {
		t.Errorf("State leaked internal slices: %+v", again)
	}
}

func TestLineIndexAtDuplicates(t *testing.T) {
	lines := music.ParseSynced("[00:01.00]a\n[00:01.00]b\n[00:02.00]c")
	if got := lineIndexAt(lines, 1.0); got != 1 {
		t.Errorf("Expected the later duplicate to win, got %d", got)
	}
}

func assertTexts(t *testing.T, name string, lines []music.Line, want ...string) {
	t.Helper()
	if len(lines) != len(want) {
		t.Errorf("%s: expected %d lines, got %d (%+v)", name, len(want), len(lines), lines)
		return
	}
	for i := range want {
		if lines[i].Text != want[i] {
			t.Errorf("%s: line %d expected %q, got %q", name, i, want[i], lines[i].Text)
		}
	}
}
