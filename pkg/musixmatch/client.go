// Package musixmatch queries the Musixmatch matcher API. The provider is only
// available when an API key has been configured.
package musixmatch

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"lyricsync/pkg/music"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"
)

const (
	DefaultBaseURL = "https://api.musixmatch.com/ws/1.1"
	Priority       = 80
)

func logger() *zerolog.Logger {
	l := log.With().Str("component", "musixmatch").Logger()
	return &l
}

type envelope struct {
	Message struct {
		Header struct {
			StatusCode int `json:"status_code"`
		} `json:"header"`
		// body is an empty array instead of an object when nothing matched
		Body json.RawMessage `json:"body"`
	} `json:"message"`
}

type subtitleBody struct {
	Subtitle struct {
		ID   int    `json:"subtitle_id"`
		Body string `json:"subtitle_body"`
	} `json:"subtitle"`
}

type lyricsBody struct {
	Lyrics struct {
		ID   int    `json:"lyrics_id"`
		Body string `json:"lyrics_body"`
	} `json:"lyrics"`
}

type Client struct {
	httpClient *http.Client
	baseURL    string
	apiKey     string
	limiter    *rate.Limiter
}

type Options struct {
	APIKey  string
	BaseURL string
	Timeout time.Duration
}

func NewClient(opts Options) *Client {
	if opts.BaseURL == "" {
		opts.BaseURL = DefaultBaseURL
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 10 * time.Second
	}
	return &Client{
		httpClient: &http.Client{Timeout: opts.Timeout},
		baseURL:    strings.TrimRight(opts.BaseURL, "/"),
		apiKey:     opts.APIKey,
		limiter:    rate.NewLimiter(rate.Every(time.Second), 2),
	}
}

func (c *Client) Name() string         { return "Musixmatch" }
func (c *Client) Source() music.Source { return music.SourceMusixmatch }
func (c *Client) Priority() int        { return Priority }
func (c *Client) IsAvailable() bool    { return c.apiKey != "" }

// FetchLyrics asks for time-synced subtitles first and falls back to the plain
// lyrics endpoint when the track has none.
func (c *Client) FetchLyrics(ctx context.Context, query music.SearchQuery) (*music.Lyrics, error) {
	params := c.params(query)
	if query.Duration > 0 {
		params.Set("f_subtitle_length", strconv.Itoa(int(query.Duration)))
		params.Set("f_subtitle_length_max_deviation", "3")
	}

	var sub subtitleBody
	err := c.call(ctx, "matcher.subtitle.get", params, &sub)
	switch {
	case err == nil && strings.TrimSpace(sub.Subtitle.Body) != "":
		lyrics := music.NewLyrics(query, strconv.Itoa(sub.Subtitle.ID), sub.Subtitle.Body, true, music.SourceMusixmatch)
		if len(lyrics.Lines) > 0 {
			return lyrics, nil
		}
		logger().Debug().Str("query", query.String()).Msg("Subtitle has no valid lines, trying plain lyrics")
	case err == nil, errors.Is(err, music.ErrNotFound):
		logger().Debug().Str("query", query.String()).Msg("No subtitle, trying plain lyrics")
	default:
		return nil, err
	}

	var plain lyricsBody
	if err := c.call(ctx, "matcher.lyrics.get", c.params(query), &plain); err != nil {
		return nil, err
	}
	lyrics := music.NewLyrics(query, strconv.Itoa(plain.Lyrics.ID), plain.Lyrics.Body, false, music.SourceMusixmatch)
	if len(lyrics.Lines) == 0 {
		return nil, fmt.Errorf("empty lyrics for '%s': %w", query, music.ErrNotFound)
	}
	return lyrics, nil
}

func (c *Client) params(query music.SearchQuery) url.Values {
	params := url.Values{}
	params.Set("q_track", query.Title)
	params.Set("q_artist", query.Artist)
	if query.Album != "" {
		params.Set("q_album", query.Album)
	}
	params.Set("apikey", c.apiKey)
	return params
}

func (c *Client) call(ctx context.Context, method string, params url.Values, out any) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("%w: %w", music.ErrNetwork, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/"+method+"?"+params.Encode(), nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w: %w", music.ErrInvalidResponse, err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %w", music.ErrNetwork, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return statusError(resp.StatusCode)
	}

	var env envelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		return fmt.Errorf("failed to decode %s response: %w: %w", method, music.ErrParse, err)
	}
	// the API reports failures in the envelope with a 200 transport status
	if code := env.Message.Header.StatusCode; code != http.StatusOK {
		return statusError(code)
	}
	if err := json.Unmarshal(env.Message.Body, out); err != nil {
		return fmt.Errorf("failed to decode %s body: %w: %w", method, music.ErrParse, err)
	}
	return nil
}

func statusError(code int) error {
	switch code {
	case http.StatusNotFound:
		return music.ErrNotFound
	case http.StatusTooManyRequests:
		return music.ErrRateLimited
	default:
		return fmt.Errorf("status %d: %w", code, music.ErrInvalidResponse)
	}
}
