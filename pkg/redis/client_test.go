package redis

import (
	"strings"
	"testing"
)

func TestNewClientUnreachable(t *testing.T) {
	// nothing listens on port 1
	client, err := NewClient("127.0.0.1:1", "", 0, "lyricsync:test")
	if err == nil {
		client.Close()
		t.Fatal("Expected connection error")
	}
	if !strings.Contains(err.Error(), "127.0.0.1:1") {
		t.Errorf("Expected address in error, got %v", err)
	}
}
