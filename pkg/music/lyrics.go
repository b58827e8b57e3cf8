package music

import "strings"

// Source 歌词来源
type Source string

const (
	SourceLRCLib     Source = "lrclib"
	SourceSpotify    Source = "spotify"
	SourceMusixmatch Source = "musixmatch"
	SourceLocal      Source = "local"
	SourceNetEase    Source = "netease"
	SourceUnknown    Source = "unknown"
)

// Word 逐字时间轴（目前没有解析器会填充）
type Word struct {
	StartTime float64 `json:"start_time"`
	EndTime   float64 `json:"end_time"`
	Text      string  `json:"text"`
}

// Line 歌词行，构造后不再修改
type Line struct {
	StartTime float64  `json:"start_time"`         // 秒
	EndTime   *float64 `json:"end_time,omitempty"` // nil 表示持续到下一行或结尾
	Text      string   `json:"text"`
	Words     []Word   `json:"words,omitempty"`
}

// Lyrics 一首歌的完整歌词
type Lyrics struct {
	TrackID    string `json:"track_id"`
	TrackTitle string `json:"track_title"`
	ArtistName string `json:"artist_name"`
	Lines      []Line `json:"lines"`
	// IsSynced 为 false 时行的开始时间只是序号，不能用于高亮
	IsSynced bool   `json:"is_synced"`
	Source   Source `json:"source"`
}

// PlainText 返回去掉时间轴后的歌词文本
func (l *Lyrics) PlainText() string {
	texts := make([]string, len(l.Lines))
	for i, line := range l.Lines {
		texts[i] = line.Text
	}
	return strings.Join(texts, "\n")
}

// NewLyrics 根据原始文本构造歌词，synced 为 true 时按 LRC 解析
func NewLyrics(query SearchQuery, trackID, text string, synced bool, source Source) *Lyrics {
	lyrics := &Lyrics{
		TrackID:    trackID,
		TrackTitle: query.Title,
		ArtistName: query.Artist,
		IsSynced:   synced,
		Source:     source,
	}
	if synced {
		lyrics.Lines = ParseSynced(text)
	} else {
		lyrics.Lines = ParsePlain(text)
	}
	return lyrics
}
