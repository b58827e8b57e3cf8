package lrclib

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"lyricsync/pkg/music"

	"github.com/adrg/strutil"
	"github.com/adrg/strutil/metrics"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"
)

const (
	DefaultBaseURL = "https://lrclib.net/api"
	DefaultTimeout = 10 * time.Second
	Priority       = 100

	userAgent = "lyricsync/1.0 (https://github.com/lyricsync/lyricsync)"
	// 搜索结果时长最大允许误差（秒）
	maxDurationDiff = 3
)

func logger() *zerolog.Logger {
	l := log.With().Str("component", "lrclib").Logger()
	return &l
}

// Client LRCLib客户端
type Client struct {
	httpClient     *http.Client
	baseURL        string
	limiter        *rate.Limiter
	searchFallback bool
}

// Options LRCLib客户端配置
type Options struct {
	BaseURL string
	Timeout time.Duration
	// RequestsPerSecond 为 0 时不限速
	RequestsPerSecond float64
	// SearchFallback /get 返回 404 时改用 /search 并挑选最佳匹配
	SearchFallback bool
}

// LRCLibResponse LRCLib API响应结构
type LRCLibResponse struct {
	ID           int      `json:"id"`
	TrackName    string   `json:"trackName"`
	ArtistName   string   `json:"artistName"`
	AlbumName    *string  `json:"albumName"`
	Duration     *float64 `json:"duration"`
	Instrumental bool     `json:"instrumental"`
	PlainLyrics  *string  `json:"plainLyrics"`
	SyncedLyrics *string  `json:"syncedLyrics"`
}

// NewClient 创建新的LRCLib客户端
func NewClient(opts Options) *Client {
	if opts.BaseURL == "" {
		opts.BaseURL = DefaultBaseURL
	}
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	limit := rate.Inf
	if opts.RequestsPerSecond > 0 {
		limit = rate.Limit(opts.RequestsPerSecond)
	}

	return &Client{
		httpClient:     &http.Client{Timeout: opts.Timeout},
		baseURL:        strings.TrimRight(opts.BaseURL, "/"),
		limiter:        rate.NewLimiter(limit, 1),
		searchFallback: opts.SearchFallback,
	}
}

func (c *Client) Name() string         { return "LRCLib" }
func (c *Client) Source() music.Source { return music.SourceLRCLib }
func (c *Client) Priority() int        { return Priority }
func (c *Client) IsAvailable() bool    { return true }

// FetchLyrics 通过 /get 精确查询歌词
func (c *Client) FetchLyrics(ctx context.Context, query music.SearchQuery) (*music.Lyrics, error) {
	params := url.Values{}
	params.Set("artist_name", query.Artist)
	params.Set("track_name", query.Title)
	if query.Album != "" {
		params.Set("album_name", query.Album)
	}
	if query.Duration > 0 {
		params.Set("duration", strconv.Itoa(int(query.Duration)))
	}

	var record LRCLibResponse
	err := c.getJSON(ctx, "/get", params, &record)
	if err == nil {
		return toLyrics(&record, query)
	}
	if c.searchFallback && errors.Is(err, music.ErrNotFound) {
		logger().Info().Str("query", query.String()).Msg("Exact match not found, falling back to search")
		return c.search(ctx, query)
	}
	return nil, err
}

func (c *Client) search(ctx context.Context, query music.SearchQuery) (*music.Lyrics, error) {
	params := url.Values{}
	params.Set("track_name", query.Title)
	if query.Artist != "" {
		params.Set("artist_name", query.Artist)
	}

	var results []LRCLibResponse
	if err := c.getJSON(ctx, "/search", params, &results); err != nil {
		return nil, err
	}

	logger().Info().Int("results", len(results)).Str("query", query.String()).Msg("Search finished")

	best := findBestMatch(results, query)
	if best == nil {
		return nil, fmt.Errorf("no search result for '%s': %w", query, music.ErrNotFound)
	}
	return toLyrics(best, query)
}

// getJSON 发起请求并按状态码映射错误
func (c *Client) getJSON(ctx context.Context, path string, params url.Values, out any) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("%w: %w", music.ErrNetwork, err)
	}

	reqURL := fmt.Sprintf("%s%s?%s", c.baseURL, path, params.Encode())
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w: %w", music.ErrInvalidResponse, err)
	}
	req.Header.Set("User-Agent", userAgent)

	logger().Debug().Str("url", reqURL).Msg("Fetching lyrics")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %w", music.ErrNetwork, err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
	case http.StatusNotFound:
		return music.ErrNotFound
	case http.StatusTooManyRequests:
		return music.ErrRateLimited
	default:
		logger().Error().Int("status", resp.StatusCode).Msg("LRCLib returned unexpected status")
		return fmt.Errorf("status %d: %w", resp.StatusCode, music.ErrInvalidResponse)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response: %w: %w", music.ErrParse, err)
	}
	return nil
}

// toLyrics 优先使用同步歌词，没有则使用纯文本歌词
func toLyrics(record *LRCLibResponse, query music.SearchQuery) (*music.Lyrics, error) {
	id := strconv.Itoa(record.ID)
	var lyrics *music.Lyrics
	if record.SyncedLyrics != nil && strings.TrimSpace(*record.SyncedLyrics) != "" {
		lyrics = music.NewLyrics(query, id, *record.SyncedLyrics, true, music.SourceLRCLib)
		if len(lyrics.Lines) == 0 {
			logger().Debug().Int("id", record.ID).Msg("Synced lyrics have no valid lines, using plain lyrics")
			lyrics = nil
		}
	}
	if lyrics == nil && record.PlainLyrics != nil {
		lyrics = music.NewLyrics(query, id, *record.PlainLyrics, false, music.SourceLRCLib)
	}
	if lyrics == nil || len(lyrics.Lines) == 0 {
		return nil, fmt.Errorf("record %d has no lyrics: %w", record.ID, music.ErrNotFound)
	}

	if record.TrackName != "" {
		lyrics.TrackTitle = record.TrackName
	}
	if record.ArtistName != "" {
		lyrics.ArtistName = record.ArtistName
	}
	return lyrics, nil
}

// findBestMatch 从搜索结果中找到最佳匹配的歌词
func findBestMatch(results []LRCLibResponse, query music.SearchQuery) *LRCLibResponse {
	var best *LRCLibResponse
	bestScore := -1.0
	target := strings.ToLower(query.Artist + " " + query.Title)
	metric := metrics.NewJaroWinkler()

	for i := range results {
		candidate := &results[i]
		if !hasLyrics(candidate) {
			continue
		}

		name := strings.ToLower(candidate.ArtistName + " " + candidate.TrackName)
		score := strutil.Similarity(target, name, metric)
		if candidate.SyncedLyrics != nil {
			score += 0.05
		}
		if query.Duration > 0 && candidate.Duration != nil {
			diff := math.Abs(*candidate.Duration - query.Duration)
			if diff <= maxDurationDiff {
				score += 0.5
			} else {
				score -= math.Min(diff/60, 0.5)
			}
		}

		if score > bestScore {
			best, bestScore = candidate, score
		}
	}

	if best != nil {
		logger().Info().
			Str("track", best.TrackName).
			Str("artist", best.ArtistName).
			Float64("score", bestScore).
			Msg("Selected best search match")
	}
	return best
}

func hasLyrics(record *LRCLibResponse) bool {
	return (record.SyncedLyrics != nil && strings.TrimSpace(*record.SyncedLyrics) != "") ||
		(record.PlainLyrics != nil && strings.TrimSpace(*record.PlainLyrics) != "")
}
