package lyrics

import (
	"math"
	"sort"

	"lyricsync/pkg/music"
)

// UpcomingLineCount is how many lines after the current one are kept for lookahead.
const UpcomingLineCount = 3

// NoLine marks that no line is highlighted.
const NoLine = -1

// SyncState is the highlighted line plus the lookahead window.
type SyncState struct {
	CurrentLineIndex int          `json:"current_line_index"`
	CurrentLine      *music.Line  `json:"current_line,omitempty"`
	UpcomingLines    []music.Line `json:"upcoming_lines"`
}

// SyncEngine maps a playback position to a lyric line. It is not safe for
// concurrent use; Service owns one and drives it from its loop.
type SyncEngine struct {
	lyrics *music.Lyrics
	state  SyncState
}

func NewSyncEngine() *SyncEngine {
	return &SyncEngine{state: emptyState()}
}

func emptyState() SyncState {
	return SyncState{CurrentLineIndex: NoLine, UpcomingLines: []music.Line{}}
}

// SetLyrics replaces the active lyrics and seeds the lookahead from the first line.
func (e *SyncEngine) SetLyrics(lyrics *music.Lyrics) {
	e.lyrics = lyrics
	e.state = emptyState()
	if lyrics != nil && len(lyrics.Lines) > 0 {
		e.state.UpcomingLines = e.upcoming(0)
	}
}

// UpdatePosition resolves the line for pos (seconds) and reports whether the
// highlighted line changed. Unsynced lyrics never highlight.
func (e *SyncEngine) UpdatePosition(pos float64) bool {
	if e.lyrics == nil || !e.lyrics.IsSynced || len(e.lyrics.Lines) == 0 {
		return false
	}

	index := lineIndexAt(e.lyrics.Lines, pos)
	if index == e.state.CurrentLineIndex {
		return false
	}

	e.state.CurrentLineIndex = index
	e.state.CurrentLine = nil
	if index != NoLine {
		line := e.lyrics.Lines[index]
		e.state.CurrentLine = &line
	}
	e.state.UpcomingLines = e.upcoming(index + 1)
	return true
}

// Reset drops the lyrics and all derived state.
func (e *SyncEngine) Reset() {
	e.lyrics = nil
	e.state = emptyState()
}

// State returns a copy of the current state.
func (e *SyncEngine) State() SyncState {
	state := e.state
	state.UpcomingLines = append([]music.Line{}, e.state.UpcomingLines...)
	if e.state.CurrentLine != nil {
		line := *e.state.CurrentLine
		state.CurrentLine = &line
	}
	return state
}

func (e *SyncEngine) upcoming(from int) []music.Line {
	lines := e.lyrics.Lines
	if from >= len(lines) {
		return []music.Line{}
	}
	to := min(from+UpcomingLineCount, len(lines))
	return append([]music.Line{}, lines[from:to]...)
}

// lineIndexAt returns the first line whose half-open [start, end) interval
// contains pos. A line without an explicit end runs until the next line starts,
// the last one until +Inf. Lines must be sorted by start time.
//
// Before the first line the result is NoLine. A position covered by no
// interval (a gap after an explicit end, or past the last line's end) falls
// back to the last line.
func lineIndexAt(lines []music.Line, pos float64) int {
	if len(lines) == 0 || pos < lines[0].StartTime {
		return NoLine
	}
	// 二分查找第一个开始时间大于 pos 的行，之后的行都不可能包含 pos
	next := sort.Search(len(lines), func(i int) bool { return lines[i].StartTime > pos })
	for i := 0; i < next; i++ {
		if pos < lineEnd(lines, i) {
			return i
		}
	}
	return len(lines) - 1
}

func lineEnd(lines []music.Line, i int) float64 {
	if end := lines[i].EndTime; end != nil {
		return *end
	}
	if i+1 < len(lines) {
		return lines[i+1].StartTime
	}
	return math.Inf(1)
}
