package app

import (
	"encoding/json"
	"fmt"

	"lyricsync/internal/lyrics"
	"lyricsync/pkg/music"
)

const (
	noMusicText  = "No music playing..."
	beforeText   = "♪ 即将开始... ♪"
	notFoundText = "No lyrics found for %s"
)

// State 对外发布的精简状态，用于 JSON 格式的 socket 输出和 Redis
type State struct {
	Track     *music.Track    `json:"track,omitempty"`
	Text      string          `json:"text"`
	LineIndex int             `json:"line_index"`
	Upcoming  []string        `json:"upcoming,omitempty"`
	Loading   bool            `json:"loading"`
	Error     music.ErrorKind `json:"error,omitempty"`
	Synced    bool            `json:"synced"`
	Source    music.Source    `json:"source,omitempty"`
}

// NewState 将快照转换为对外状态
func NewState(snap lyrics.Snapshot) State {
	state := State{
		Track:     snap.Track,
		Text:      renderText(snap),
		LineIndex: snap.Sync.CurrentLineIndex,
		Loading:   snap.IsLoading,
		Error:     snap.ErrorKind,
	}
	if snap.Lyrics != nil {
		state.Synced = snap.Lyrics.IsSynced
		state.Source = snap.Lyrics.Source
		if snap.Lyrics.IsSynced {
			for _, line := range snap.Sync.UpcomingLines {
				state.Upcoming = append(state.Upcoming, line.Text)
			}
		}
	}
	return state
}

// renderText 返回当前应该显示的一行（未同步歌词返回全文）
func renderText(snap lyrics.Snapshot) string {
	switch {
	case snap.Track == nil:
		return noMusicText
	case snap.IsLoading:
		return fmt.Sprintf("... Searching for lyrics for %s ...", trackLabel(snap.Track))
	case snap.Err != nil || snap.Lyrics == nil:
		return fmt.Sprintf(notFoundText, trackLabel(snap.Track))
	case !snap.Lyrics.IsSynced:
		return snap.Lyrics.PlainText()
	case snap.Sync.CurrentLine == nil:
		return beforeText
	default:
		return snap.Sync.CurrentLine.Text
	}
}

func trackLabel(track *music.Track) string {
	return music.QueryFromTrack(*track).String()
}

// render 按输出格式生成一条消息
func render(snap lyrics.Snapshot, format string) (string, error) {
	state := NewState(snap)
	if format != "json" {
		return state.Text, nil
	}
	payload, err := json.Marshal(state)
	if err != nil {
		return "", fmt.Errorf("failed to encode state: %w", err)
	}
	return string(payload), nil
}
