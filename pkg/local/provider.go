// Package local serves lyrics from .lrc and .txt files in a directory on disk.
package local

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"lyricsync/pkg/music"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

const Priority = 200

var (
	invalidFileChar = regexp.MustCompile(`[\\/:*?"<>|]`)
	extensions      = []string{".lrc", ".txt"}
)

func logger() *zerolog.Logger {
	l := log.With().Str("component", "local-lyrics").Logger()
	return &l
}

type Provider struct {
	dir string
}

func NewProvider(dir string) *Provider {
	return &Provider{dir: dir}
}

func (p *Provider) Name() string         { return "Local files" }
func (p *Provider) Source() music.Source { return music.SourceLocal }
func (p *Provider) Priority() int        { return Priority }

func (p *Provider) IsAvailable() bool {
	if p.dir == "" {
		return false
	}
	info, err := os.Stat(p.dir)
	return err == nil && info.IsDir()
}

// FetchLyrics looks for "<Artist> - <Title>" then "<Title>" with each known
// extension. Files containing LRC tags are parsed as synced lyrics.
func (p *Provider) FetchLyrics(ctx context.Context, query music.SearchQuery) (*music.Lyrics, error) {
	for _, path := range p.candidates(query) {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("%w: %w", music.ErrNetwork, err)
		}

		content, err := os.ReadFile(path)
		if errors.Is(err, fs.ErrNotExist) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read %s: %w: %w", path, music.ErrInvalidResponse, err)
		}

		text := string(content)
		if strings.TrimSpace(text) == "" {
			continue
		}

		logger().Info().Str("path", path).Msg("Using local lyrics file")
		lyrics := music.NewLyrics(query, path, text, music.HasTimestamps(text), music.SourceLocal)
		if len(lyrics.Lines) == 0 {
			continue
		}
		return lyrics, nil
	}
	return nil, fmt.Errorf("no local file for '%s': %w", query, music.ErrNotFound)
}

func (p *Provider) candidates(query music.SearchQuery) []string {
	var names []string
	if query.Artist != "" {
		names = append(names, SanitizeFilename(query.Artist+" - "+query.Title))
	}
	names = append(names, SanitizeFilename(query.Title))

	var paths []string
	for _, name := range names {
		for _, ext := range extensions {
			paths = append(paths, filepath.Join(p.dir, name+ext))
		}
	}
	return paths
}

// Watch calls onChange whenever a lyrics file in the directory is created,
// written, renamed or removed. It blocks until ctx is done.
func (p *Provider) Watch(ctx context.Context, onChange func(path string)) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}
	defer watcher.Close()

	if err := watcher.Add(p.dir); err != nil {
		return fmt.Errorf("failed to watch %s: %w", p.dir, err)
	}
	logger().Info().Str("dir", p.dir).Msg("Watching local lyrics directory")

	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if !isLyricsFile(event.Name) || event.Op == fsnotify.Chmod {
				continue
			}
			logger().Debug().Str("path", event.Name).Str("op", event.Op.String()).Msg("Lyrics file changed")
			onChange(event.Name)
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			logger().Warn().Err(err).Msg("Watcher error")
		}
	}
}

func isLyricsFile(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	for _, known := range extensions {
		if ext == known {
			return true
		}
	}
	return false
}

// SanitizeFilename replaces characters that are not allowed in file names.
func SanitizeFilename(name string) string {
	return invalidFileChar.ReplaceAllString(name, "-")
}
