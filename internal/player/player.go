package player

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strconv"
	"strings"

	"lyricsync/pkg/music"
)

const (
	fieldSeparator = "\x1f"
	noTrackID      = "/org/mpris/MediaPlayer2/TrackList/NoTrack"
)

// metadataFormat 字段顺序需与 parseMetadata 一致
var metadataFormat = strings.Join([]string{
	"{{mpris:trackid}}",
	"{{xesam:title}}",
	"{{artist}}",
	"{{xesam:album}}",
	"{{mpris:length}}",
	"{{playerName}}",
}, fieldSeparator)

var ErrNoPlayer = errors.New("no active player")

// Runner executes a command and returns its stdout.
type Runner func(ctx context.Context, name string, args ...string) ([]byte, error)

func execRunner(ctx context.Context, name string, args ...string) ([]byte, error) {
	return exec.CommandContext(ctx, name, args...).Output()
}

// Client reads track metadata and position through playerctl.
type Client struct {
	run    Runner
	player string
}

// NewClient creates a client for the named player, or whichever player
// playerctl picks when name is empty.
func NewClient(name string) *Client {
	return &Client{run: execRunner, player: name}
}

func (c *Client) playerctl(ctx context.Context, args ...string) (string, error) {
	if c.player != "" {
		args = append([]string{"--player=" + c.player}, args...)
	}
	out, err := c.run(ctx, "playerctl", args...)
	if err != nil {
		return "", fmt.Errorf("%w: playerctl %s: %w", ErrNoPlayer, strings.Join(args, " "), err)
	}
	return strings.TrimSpace(string(out)), nil
}

// CurrentTrack returns the playing or paused track. A stopped player reports ErrNoPlayer.
func (c *Client) CurrentTrack(ctx context.Context) (*music.Track, error) {
	status, err := c.playerctl(ctx, "status")
	if err != nil {
		return nil, err
	}
	if status != "Playing" && status != "Paused" {
		return nil, fmt.Errorf("%w: player is %s", ErrNoPlayer, strings.ToLower(status))
	}

	out, err := c.playerctl(ctx, "metadata", "--format", metadataFormat)
	if err != nil {
		return nil, err
	}
	return parseMetadata(out)
}

// Position returns the playback position in seconds.
func (c *Client) Position(ctx context.Context) (float64, error) {
	out, err := c.playerctl(ctx, "position")
	if err != nil {
		return 0, err
	}
	seconds, err := strconv.ParseFloat(out, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid position %q: %w", out, err)
	}
	return seconds, nil
}

func parseMetadata(out string) (*music.Track, error) {
	fields := strings.Split(out, fieldSeparator)
	if len(fields) != 6 {
		return nil, fmt.Errorf("unexpected metadata output %q", out)
	}
	for i := range fields {
		fields[i] = strings.TrimSpace(fields[i])
	}

	track := &music.Track{
		ID:     fields[0],
		Title:  fields[1],
		Artist: fields[2],
		Album:  fields[3],
		Source: fields[5],
	}
	if track.Title == "" {
		return nil, fmt.Errorf("%w: track has no title", ErrNoPlayer)
	}

	// mpris:length 单位为微秒
	if length, err := strconv.ParseInt(fields[4], 10, 64); err == nil && length > 0 {
		track.Duration = float64(length) / 1e6
	}

	if track.ID == "" || track.ID == noTrackID {
		track.ID = fallbackID(track)
	}
	return track, nil
}

// fallbackID 部分播放器（浏览器等）不提供 trackid，用元数据拼出稳定的 ID
func fallbackID(track *music.Track) string {
	return strings.Join([]string{track.Source, track.Artist, track.Title, track.Album}, "|")
}
