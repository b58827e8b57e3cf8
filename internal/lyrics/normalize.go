package lyrics

import (
	"context"
	"regexp"
	"strings"

	"lyricsync/pkg/music"
)

var (
	// 视频网站标题中常见的后缀，例如 (Official Video)、【MV】
	titleNoise  = regexp.MustCompile(`(?i)\s*[(\[（【][^)\]）】]*\b(official|lyrics?|audio|video|mv|hd|4k|remastered)\b[^)\]）】]*[)\]）】]`)
	artistNoise = regexp.MustCompile(`\s+-\s+Topic$`)
)

// TitleSplitter cleans up media titles reported by browsers and video players.
// When the artist is missing and the title reads "Artist - Title" it splits it.
type TitleSplitter struct{}

var _ music.QueryNormalizer = TitleSplitter{}

func (TitleSplitter) Normalize(_ context.Context, query music.SearchQuery) (music.SearchQuery, error) {
	query.Title = strings.TrimSpace(titleNoise.ReplaceAllString(query.Title, ""))
	query.Artist = strings.TrimSpace(artistNoise.ReplaceAllString(query.Artist, ""))

	if query.Artist == "" {
		if artist, title, ok := strings.Cut(query.Title, " - "); ok {
			artist, title = strings.TrimSpace(artist), strings.TrimSpace(title)
			if artist != "" && title != "" {
				query.Artist = artist
				query.Title = title
			}
		}
	}
	return query, nil
}
