package app

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"strings"

	"lyricsync/internal/config"
	"lyricsync/internal/lyrics"
	"lyricsync/pkg/fileutil"
	"lyricsync/pkg/local"
	"lyricsync/pkg/music"

	"github.com/rs/zerolog/log"
)

// FetchOptions 控制 FetchOnce 的输出
type FetchOptions struct {
	JSON bool
	// Save 同时写入本地歌词目录，之后播放时由本地提供商直接命中
	Save bool
}

// FetchOnce 查询一次歌词并写到 w，不经过缓存和 socket
func FetchOnce(ctx context.Context, cfg *config.Config, query music.SearchQuery, w io.Writer, opts FetchOptions) error {
	aiClient, err := lyrics.NewAIClient(ctx, cfg.AI)
	if err != nil {
		return err
	}
	if closer, ok := aiClient.(io.Closer); ok {
		defer closer.Close()
	}

	ctx, cancel := context.WithTimeout(ctx, cfg.App.FetchTimeout)
	defer cancel()

	for _, normalizer := range lyrics.NewNormalizers(aiClient) {
		normalized, err := normalizer.Normalize(ctx, query)
		if err != nil {
			log.Debug().Err(err).Msg("Query normalizer failed, keeping query")
			continue
		}
		query = normalized
	}
	log.Info().Str("query", query.String()).Msg("Fetching lyrics")

	result, err := lyrics.NewManager(cfg.Providers).FetchLyrics(ctx, query)
	if err != nil {
		return err
	}

	if opts.Save {
		path, err := saveLocal(cfg.Providers.Local.Dir, query, result)
		if err != nil {
			return err
		}
		log.Info().Str("path", path).Msg("Saved lyrics")
	}

	if opts.JSON {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(result)
	}
	_, err = io.WriteString(w, FormatLRC(result))
	return err
}

// saveLocal 按本地提供商的查找规则命名文件
func saveLocal(dir string, query music.SearchQuery, l *music.Lyrics) (string, error) {
	if dir == "" {
		return "", errors.New("no local lyrics directory configured")
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("failed to create %s: %w", dir, err)
	}

	ext, content := ".txt", l.PlainText()+"\n"
	if l.IsSynced {
		ext, content = ".lrc", FormatLRC(l)
	}
	path := filepath.Join(dir, local.SanitizeFilename(query.String())+ext)
	if err := fileutil.WriteFileOverwrite(path, []byte(content), 0644); err != nil {
		return "", err
	}
	return path, nil
}

// FormatLRC 将歌词转换回 LRC 文本，未同步的歌词只输出文本
func FormatLRC(l *music.Lyrics) string {
	var b strings.Builder
	if l.TrackTitle != "" {
		fmt.Fprintf(&b, "[ti:%s]\n", l.TrackTitle)
	}
	if l.ArtistName != "" {
		fmt.Fprintf(&b, "[ar:%s]\n", l.ArtistName)
	}
	for _, line := range l.Lines {
		if l.IsSynced {
			b.WriteString(formatTimestamp(line.StartTime))
		}
		b.WriteString(line.Text)
		b.WriteByte('\n')
	}
	return b.String()
}

func formatTimestamp(seconds float64) string {
	centis := int(math.Round(seconds * 100))
	return fmt.Sprintf("[%02d:%02d.%02d]", centis/6000, centis/100%60, centis%100)
}
