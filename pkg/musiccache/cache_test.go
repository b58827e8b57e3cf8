package musiccache

import (
	"testing"

	"lyricsync/pkg/music"
)

func TestAddGet(t *testing.T) {
	c := New()
	lyrics := &music.Lyrics{TrackID: "1"}

	if _, ok := c.Get("a"); ok {
		t.Fatal("Empty cache returned an entry")
	}

	c.Add("a", lyrics)
	got, ok := c.Get("a")
	if !ok || got != lyrics {
		t.Errorf("Expected cached lyrics, got %v %v", got, ok)
	}

	replacement := &music.Lyrics{TrackID: "2"}
	c.Add("a", replacement)
	if got, _ := c.Get("a"); got != replacement {
		t.Errorf("Expected entry to be replaced")
	}
}

func TestAddIgnoresEmpty(t *testing.T) {
	c := New()
	c.Add("", &music.Lyrics{})
	c.Add("a", nil)
	if c.Len() != 0 {
		t.Errorf("Expected empty cache, got %d entries", c.Len())
	}
}

func TestClear(t *testing.T) {
	c := New()
	c.Add("a", &music.Lyrics{})
	c.Add("b", &music.Lyrics{})
	c.Clear()
	if c.Len() != 0 {
		t.Errorf("Expected empty cache after Clear, got %d", c.Len())
	}
	if _, ok := c.Get("a"); ok {
		t.Error("Entry survived Clear")
	}
}
