package app

import (
	"context"
	"errors"
	"io"
	"testing"

	"lyricsync/internal/config"
)

func TestFormatMessage(t *testing.T) {
	payload := `{"text":"hello","line_index":2,"loading":false,"synced":true}`

	got, err := formatMessage(payload, false)
	if err != nil || got != "hello" {
		t.Errorf("Expected %q, got %q (%v)", "hello", got, err)
	}

	got, err = formatMessage(payload, true)
	if err != nil || got != payload {
		t.Errorf("Expected raw payload, got %q (%v)", got, err)
	}

	if _, err := formatMessage("not json", false); err == nil {
		t.Error("Expected error for malformed payload")
	}
}

func TestListenRequiresRedis(t *testing.T) {
	err := Listen(context.Background(), config.Default(), io.Discard, false)
	if !errors.Is(err, errRedisDisabled) {
		t.Errorf("Expected errRedisDisabled, got %v", err)
	}
}
