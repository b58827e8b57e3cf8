package ai

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"lyricsync/pkg/music"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

const maxRetries = 3

func logger() *zerolog.Logger {
	l := log.With().Str("component", "ai-normalizer").Logger()
	return &l
}

// SongInfo 模型返回的歌曲信息
type SongInfo struct {
	Title  string `json:"title"`
	Artist string `json:"artist"`
	IsSong bool   `json:"is_song"`
}

func formatQuerySong(title string) string {
	return fmt.Sprintf(`请精确地按照以下JSON格式提取歌曲信息: {"is_song": true, "title": "歌曲标题", "artist": "演唱者"}。  输入是一个媒体标题，如果标题中包含歌曲信息，请返回符合格式的JSON；否则，返回{"is_song": false}。 请注意，"title" 和 "artist" 必须准确，否则将被视为错误，切记不要任何markdown格式，并将繁体中文转换为简体。 媒体标题是：%s`, title)
}

// Normalizer 使用大模型从媒体标题中识别歌名和歌手
type Normalizer struct {
	client     AiInterface
	retryDelay time.Duration
}

var _ music.QueryNormalizer = (*Normalizer)(nil)

func NewNormalizer(client AiInterface) *Normalizer {
	return &Normalizer{client: client, retryDelay: time.Second}
}

// Normalize 识别失败或模型判断不是歌曲时返回错误，调用方应继续使用原查询
func (n *Normalizer) Normalize(ctx context.Context, query music.SearchQuery) (music.SearchQuery, error) {
	var raw string
	var err error
	for i := 0; i < maxRetries; i++ {
		raw, err = n.client.HandleText(ctx, formatQuerySong(query.String()))
		if err == nil {
			break
		}
		logger().Warn().Err(err).Int("attempt", i+1).Str("backend", n.client.Name()).Msg("Failed to query model")
		select {
		case <-ctx.Done():
			return query, ctx.Err()
		case <-time.After(n.retryDelay):
		}
	}
	if err != nil {
		return query, fmt.Errorf("model query failed after %d attempts: %w", maxRetries, err)
	}

	info, err := parseSongInfo(raw)
	if err != nil {
		return query, err
	}
	if !info.IsSong || info.Title == "" {
		return query, fmt.Errorf("'%s' is not a song", query)
	}

	normalized := query
	normalized.Title = info.Title
	if info.Artist != "" {
		normalized.Artist = info.Artist
	}
	logger().Debug().Str("from", query.String()).Str("to", normalized.String()).Msg("Query normalized")
	return normalized, nil
}

// parseSongInfo 兼容模型偶尔返回的 markdown 代码块
func parseSongInfo(raw string) (SongInfo, error) {
	raw = strings.TrimSpace(raw)
	raw = strings.TrimPrefix(raw, "```json")
	raw = strings.TrimPrefix(raw, "```")
	raw = strings.TrimSuffix(raw, "```")

	var info SongInfo
	if err := json.Unmarshal([]byte(strings.TrimSpace(raw)), &info); err != nil {
		return info, fmt.Errorf("failed to parse model response %q: %w", raw, err)
	}
	return info, nil
}
