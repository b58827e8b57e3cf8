package lyrics

import (
	"context"
	"fmt"

	"lyricsync/internal/config"
	"lyricsync/pkg/ai"
	"lyricsync/pkg/ai/gemini"
	"lyricsync/pkg/ai/openai"
	"lyricsync/pkg/local"
	"lyricsync/pkg/lrclib"
	"lyricsync/pkg/music"
	"lyricsync/pkg/musixmatch"
	"lyricsync/pkg/netease"
)

// NewProviders builds every configured provider. Providers whose
// prerequisites are missing are still returned and report themselves unavailable.
func NewProviders(cfg config.ProvidersConfig) []music.Provider {
	providers := []music.Provider{
		local.NewProvider(cfg.Local.Dir),
		musixmatch.NewClient(musixmatch.Options{
			APIKey:  cfg.Musixmatch.APIKey,
			BaseURL: cfg.Musixmatch.BaseURL,
			Timeout: cfg.Timeout,
		}),
		netease.NewClient(netease.Options{
			Enabled: cfg.NetEase.Enabled,
			BaseURL: cfg.NetEase.BaseURL,
			Cookie:  cfg.NetEase.Cookie,
			Timeout: cfg.Timeout,
		}),
	}
	if cfg.LRCLib.Enabled {
		providers = append(providers, lrclib.NewClient(lrclib.Options{
			BaseURL:           cfg.LRCLib.BaseURL,
			Timeout:           cfg.Timeout,
			RequestsPerSecond: cfg.LRCLib.RequestsPerSecond,
			SearchFallback:    cfg.LRCLib.SearchFallback,
		}))
	}
	return providers
}

// NewManager 根据配置创建提供商管理器
func NewManager(cfg config.ProvidersConfig) *music.Manager {
	return music.NewManager(NewProviders(cfg)...)
}

// NewAIClient 创建用于识别歌名的大模型客户端，未配置 API key 时返回 nil
func NewAIClient(ctx context.Context, cfg config.AIConfig) (ai.AiInterface, error) {
	if cfg.APIKey == "" {
		return nil, nil
	}
	if cfg.ModuleName == "gemini" {
		client, err := gemini.NewGemini(ctx, cfg.APIKey, "")
		if err != nil {
			return nil, fmt.Errorf("failed to create gemini client: %w", err)
		}
		return client, nil
	}
	return openai.NewOpenAi(cfg.APIKey, cfg.ModuleName, cfg.BaseURL), nil
}

// NewNormalizers returns the query normalizers in the order they run: the
// built-in title cleanup, then the model when one is configured.
func NewNormalizers(client ai.AiInterface) []music.QueryNormalizer {
	normalizers := []music.QueryNormalizer{TitleSplitter{}}
	if client != nil {
		normalizers = append(normalizers, ai.NewNormalizer(client))
	}
	return normalizers
}
