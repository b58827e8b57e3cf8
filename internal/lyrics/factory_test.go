package lyrics

import (
	"context"
	"testing"

	"lyricsync/internal/config"
	"lyricsync/pkg/ai"
)

func TestNewManagerOrder(t *testing.T) {
	cfg := config.Default().Providers
	cfg.Local.Dir = t.TempDir()
	cfg.Musixmatch.APIKey = "key"

	manager := NewManager(cfg)
	want := []string{"Local files", "LRCLib", "Musixmatch", "NetEase Cloud Music"}
	got := manager.Names()
	if len(got) != len(want) {
		t.Fatalf("Expected %v, got %v", want, got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("Position %d: expected %s, got %s", i, want[i], got[i])
		}
	}

	available := 0
	for _, p := range manager.Providers() {
		if p.IsAvailable() {
			available++
		}
	}
	// netease stays disabled by default
	if available != 3 {
		t.Errorf("Expected 3 available providers, got %d", available)
	}
}

func TestNewManagerWithoutLRCLib(t *testing.T) {
	cfg := config.Default().Providers
	cfg.LRCLib.Enabled = false

	for _, name := range NewManager(cfg).Names() {
		if name == "LRCLib" {
			t.Error("Disabled LRCLib provider was registered")
		}
	}
}

func TestNewAIClientDisabled(t *testing.T) {
	client, err := NewAIClient(context.Background(), config.AIConfig{ModuleName: "gemini"})
	if err != nil || client != nil {
		t.Errorf("Expected no client without API key, got %v %v", client, err)
	}
}

func TestNewAIClientOpenAI(t *testing.T) {
	client, err := NewAIClient(context.Background(), config.AIConfig{ModuleName: "gpt-4o-mini", APIKey: "sk", BaseURL: "http://localhost:1"})
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if client.Name() != "openai" {
		t.Errorf("Expected openai client, got %s", client.Name())
	}
}

func TestNewNormalizers(t *testing.T) {
	if got := NewNormalizers(nil); len(got) != 1 {
		t.Errorf("Expected only the title splitter, got %d normalizers", len(got))
	}
	var client ai.AiInterface = fakeAI{}
	normalizers := NewNormalizers(client)
	if len(normalizers) != 2 {
		t.Fatalf("Expected two normalizers, got %d", len(normalizers))
	}
	if _, ok := normalizers[1].(*ai.Normalizer); !ok {
		t.Errorf("Expected model normalizer last, got %T", normalizers[1])
	}
}

type fakeAI struct{}

func (fakeAI) Name() string { return "fake" }
func (fakeAI) HandleText(context.Context, string) (string, error) {
	return `{"is_song": false}`, nil
}
