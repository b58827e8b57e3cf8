package netease

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"net/http"
	"net/url"
	"os"
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
	DefaultBaseURL = "https://music.163.com"
	Priority       = 50

	// 低于该相似度的搜索结果视为不匹配
	minSimilarity = 0.7
)

func logger() *zerolog.Logger {
	l := log.With().Str("component", "netease").Logger()
	return &l
}

// NeteaseSearchResponse 网易云搜索API响应
type NeteaseSearchResponse struct {
	Result struct {
		Songs []NeteaseSong `json:"songs"`
	} `json:"result"`
}

// NeteaseSong 搜索结果中的歌曲
type NeteaseSong struct {
	ID       int    `json:"id"`
	Name     string `json:"name"`
	Duration int    `json:"duration"` // 毫秒
	Artists  []struct {
		Name string `json:"name"`
	} `json:"artists"`
}

// NeteaseLyricResponse 网易云歌词API响应
type NeteaseLyricResponse struct {
	Code int `json:"code"`
	Lrc  struct {
		Lyric string `json:"lyric"`
	} `json:"lrc"`
}

// Client 网易云音乐客户端
type Client struct {
	httpClient *http.Client
	baseURL    string
	cookie     string
	enabled    bool
	limiter    *rate.Limiter
}

// Options 网易云客户端配置
type Options struct {
	Enabled bool
	BaseURL string
	Cookie  string // 为空时读取 NETEASE_COOKIE 环境变量
	Timeout time.Duration
}

// NewClient 创建新的网易云音乐客户端
func NewClient(opts Options) *Client {
	if opts.BaseURL == "" {
		opts.BaseURL = DefaultBaseURL
	}
	if opts.Cookie == "" {
		opts.Cookie = os.Getenv("NETEASE_COOKIE")
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 10 * time.Second
	}
	return &Client{
		httpClient: &http.Client{Timeout: opts.Timeout},
		baseURL:    strings.TrimRight(opts.BaseURL, "/"),
		cookie:     opts.Cookie,
		enabled:    opts.Enabled,
		limiter:    rate.NewLimiter(rate.Every(500*time.Millisecond), 1),
	}
}

func (c *Client) Name() string         { return "NetEase Cloud Music" }
func (c *Client) Source() music.Source { return music.SourceNetEase }
func (c *Client) Priority() int        { return Priority }
func (c *Client) IsAvailable() bool    { return c.enabled }

// FetchLyrics 搜索歌曲后获取歌词
func (c *Client) FetchLyrics(ctx context.Context, query music.SearchQuery) (*music.Lyrics, error) {
	songID, err := c.searchSong(ctx, query)
	if err != nil {
		return nil, err
	}

	text, err := c.getLyrics(ctx, songID)
	if err != nil {
		return nil, err
	}

	synced := music.HasTimestamps(text)
	lyrics := music.NewLyrics(query, strconv.Itoa(songID), text, synced, music.SourceNetEase)
	if len(lyrics.Lines) == 0 {
		return nil, fmt.Errorf("song %d has no usable lyric lines: %w", songID, music.ErrNotFound)
	}
	return lyrics, nil
}

// searchSong 搜索歌曲，返回最佳匹配的歌曲ID
func (c *Client) searchSong(ctx context.Context, query music.SearchQuery) (int, error) {
	params := url.Values{}
	params.Set("s", strings.TrimSpace(query.Title+" "+query.Artist))
	params.Set("type", "1")
	params.Set("limit", "30")

	var searchResp NeteaseSearchResponse
	if err := c.getJSON(ctx, "/api/search/get/web", params, &searchResp); err != nil {
		return 0, fmt.Errorf("search failed: %w", err)
	}

	if len(searchResp.Result.Songs) == 0 {
		return 0, fmt.Errorf("no songs found for '%s': %w", query, music.ErrNotFound)
	}

	song := findBestMatch(searchResp.Result.Songs, query)
	if song == nil {
		return 0, fmt.Errorf("no matching song found for '%s': %w", query, music.ErrNotFound)
	}
	logger().Info().Str("song", song.Name).Int("id", song.ID).Msg("Found matching song")
	return song.ID, nil
}

// getLyrics 获取歌词
func (c *Client) getLyrics(ctx context.Context, songID int) (string, error) {
	params := url.Values{}
	params.Set("os", "pc")
	params.Set("id", strconv.Itoa(songID))
	params.Set("lv", "-1")
	params.Set("kv", "-1")
	params.Set("tv", "-1")

	var lyricResp NeteaseLyricResponse
	if err := c.getJSON(ctx, "/api/song/lyric", params, &lyricResp); err != nil {
		return "", fmt.Errorf("lyric request failed: %w", err)
	}

	if strings.TrimSpace(lyricResp.Lrc.Lyric) == "" {
		return "", fmt.Errorf("song %d has no lyrics: %w", songID, music.ErrNotFound)
	}
	return lyricResp.Lrc.Lyric, nil
}

func (c *Client) getJSON(ctx context.Context, path string, params url.Values, out any) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("%w: %w", music.ErrNetwork, err)
	}

	reqURL := fmt.Sprintf("%s%s?%s", c.baseURL, path, params.Encode())
	logger().Debug().Str("url", reqURL).Msg("Sending request")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w: %w", music.ErrInvalidResponse, err)
	}
	if c.cookie != "" {
		req.Header.Set("Cookie", c.cookie)
	}

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
		return fmt.Errorf("status %d: %w", resp.StatusCode, music.ErrInvalidResponse)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response: %w: %w", music.ErrParse, err)
	}
	return nil
}

// findBestMatch 找到标题和歌手最相似的歌曲，时长接近的优先
func findBestMatch(songs []NeteaseSong, query music.SearchQuery) *NeteaseSong {
	metric := metrics.NewJaroWinkler()
	title := normalizeString(query.Title)
	artist := normalizeString(query.Artist)

	var best *NeteaseSong
	bestScore := 0.0
	for i := range songs {
		song := &songs[i]

		score := strutil.Similarity(title, normalizeString(song.Name), metric)
		if score < minSimilarity {
			continue
		}

		// artists 可能有多个，取最相似的一个
		if artist != "" {
			artistScore := 0.0
			for _, a := range song.Artists {
				artistScore = math.Max(artistScore, strutil.Similarity(artist, normalizeString(a.Name), metric))
			}
			score += artistScore
		}

		if query.Duration > 0 && song.Duration > 0 {
			if math.Abs(float64(song.Duration)/1000-query.Duration) <= 3 {
				score += 0.5
			}
		}

		if score > bestScore {
			best, bestScore = song, score
		}
	}
	return best
}

// normalizeString 标准化字符串（转小写，去空格）
func normalizeString(s string) string {
	return strings.ReplaceAll(strings.ToLower(s), " ", "")
}
