package ai

import (
	"context"
	"errors"
	"strings"
	"testing"

	"lyricsync/pkg/music"
)

type fakeClient struct {
	replies []string
	errs    []error
	prompts []string
}

func (f *fakeClient) Name() string { return "fake" }

func (f *fakeClient) HandleText(ctx context.Context, msg string) (string, error) {
	i := len(f.prompts)
	f.prompts = append(f.prompts, msg)
	var err error
	if i < len(f.errs) {
		err = f.errs[i]
	}
	if err != nil {
		return "", err
	}
	return f.replies[i], nil
}

func TestNormalize(t *testing.T) {
	client := &fakeClient{replies: []string{"```json\n{\"is_song\": true, \"title\": \"晴天\", \"artist\": \"周杰伦\"}\n```"}}
	n := NewNormalizer(client)

	got, err := n.Normalize(context.Background(), music.SearchQuery{Title: "周杰伦 - 晴天 (官方MV)", Duration: 269})
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if got.Title != "晴天" || got.Artist != "周杰伦" || got.Duration != 269 {
		t.Errorf("Unexpected query: %+v", got)
	}
	if !strings.Contains(client.prompts[0], "周杰伦 - 晴天 (官方MV)") {
		t.Errorf("Prompt does not contain media title: %s", client.prompts[0])
	}
}

func TestNormalizeNotSong(t *testing.T) {
	n := NewNormalizer(&fakeClient{replies: []string{`{"is_song": false}`}})
	original := music.SearchQuery{Title: "Podcast episode 12"}

	got, err := n.Normalize(context.Background(), original)
	if err == nil {
		t.Fatal("Expected error for non-song title")
	}
	if got != original {
		t.Errorf("Expected original query back, got %+v", got)
	}
}

func TestNormalizeRetries(t *testing.T) {
	client := &fakeClient{
		errs:    []error{errors.New("boom"), nil},
		replies: []string{"", `{"is_song": true, "title": "Song", "artist": "Band"}`},
	}
	n := NewNormalizer(client)
	n.retryDelay = 0

	got, err := n.Normalize(context.Background(), music.SearchQuery{Title: "x"})
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if got.Title != "Song" || len(client.prompts) != 2 {
		t.Errorf("Expected success on second attempt, got %+v after %d calls", got, len(client.prompts))
	}
}

func TestNormalizeGarbage(t *testing.T) {
	n := NewNormalizer(&fakeClient{replies: []string{"I think this is a song"}})
	if _, err := n.Normalize(context.Background(), music.SearchQuery{Title: "x"}); err == nil {
		t.Error("Expected parse error")
	}
}
