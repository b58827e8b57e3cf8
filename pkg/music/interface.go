package music

import (
	"context"
)

// Provider 歌词提供商通用接口
type Provider interface {
	// FetchLyrics 根据查询条件获取歌词
	FetchLyrics(ctx context.Context, query SearchQuery) (*Lyrics, error)

	// IsAvailable 前置条件（凭据、目录等）不满足时返回 false，管理器会直接跳过
	IsAvailable() bool

	// Priority 优先级，数值越大越优先
	Priority() int

	// Source 歌词来源
	Source() Source

	// Name 获取提供商名称
	Name() string
}

// QueryNormalizer 在请求提供商之前修正查询条件（例如从媒体标题中拆出歌手）
type QueryNormalizer interface {
	Normalize(ctx context.Context, query SearchQuery) (SearchQuery, error)
}

// Track 播放器上报的当前曲目
type Track struct {
	ID       string  `json:"id"`
	Title    string  `json:"title"`
	Artist   string  `json:"artist"`
	Album    string  `json:"album,omitempty"`
	Duration float64 `json:"duration,omitempty"` // 歌曲时长（秒），0 表示未知
	Source   string  `json:"source,omitempty"`   // 播放器名称
}

// SearchQuery 歌词查询条件
type SearchQuery struct {
	Title    string
	Artist   string
	Album    string  // 为空表示未知
	Duration float64 // 秒，0 表示未知
}

// QueryFromTrack 根据曲目构造查询条件
func QueryFromTrack(track Track) SearchQuery {
	return SearchQuery{
		Title:    track.Title,
		Artist:   track.Artist,
		Album:    track.Album,
		Duration: track.Duration,
	}
}

func (q SearchQuery) String() string {
	if q.Artist == "" {
		return q.Title
	}
	return q.Artist + " - " + q.Title
}
