package music

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

func logger() *zerolog.Logger {
	l := log.With().Str("component", "music-manager").Logger()
	return &l
}

// AttemptObserver 每次请求提供商后调用，err 为 nil 表示成功
type AttemptObserver func(provider Provider, err error, elapsed time.Duration)

// Manager 歌词提供商管理器，按优先级依次尝试
type Manager struct {
	providers []Provider
	observer  AttemptObserver
}

// NewManager 创建管理器，提供商在构造时按优先级从高到低排序一次
func NewManager(providers ...Provider) *Manager {
	sorted := make([]Provider, len(providers))
	copy(sorted, providers)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Priority() > sorted[j].Priority() })

	if len(sorted) == 0 {
		logger().Warn().Msg("No lyrics providers configured")
	} else {
		logger().Info().
			Int("provider_count", len(sorted)).
			Strs("providers", names(sorted)).
			Msg("Lyrics provider manager initialized")
	}

	return &Manager{providers: sorted}
}

// FetchLyrics 依次请求可用的提供商，返回第一个成功的结果。
// 不可用的提供商直接跳过，失败的提供商在本轮不会重试。
func (m *Manager) FetchLyrics(ctx context.Context, query SearchQuery) (*Lyrics, error) {
	attempts := 0
	for _, provider := range m.providers {
		if !provider.IsAvailable() {
			logger().Debug().Str("provider", provider.Name()).Msg("Provider unavailable, skipping")
			continue
		}
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrNetwork, err)
		}
		attempts++

		logger().Info().
			Str("provider", provider.Name()).
			Str("title", query.Title).
			Str("artist", query.Artist).
			Float64("duration", query.Duration).
			Int("attempt", attempts).
			Msg("Trying provider")

		start := time.Now()
		lyrics, err := provider.FetchLyrics(ctx, query)
		if m.observer != nil {
			m.observer(provider, err, time.Since(start))
		}
		if err != nil {
			logger().Warn().
				Str("provider", provider.Name()).
				Str("kind", string(KindOf(err))).
				Err(err).
				Msg("Provider failed")
			continue
		}

		logger().Info().
			Str("provider", provider.Name()).
			Int("lines", len(lyrics.Lines)).
			Bool("synced", lyrics.IsSynced).
			Msg("Successfully got lyrics")
		return lyrics, nil
	}

	return nil, fmt.Errorf("all %d providers failed for '%s': %w", attempts, query, ErrNotFound)
}

// SetObserver 设置请求观察者，需在 FetchLyrics 并发调用前设置
func (m *Manager) SetObserver(observer AttemptObserver) {
	m.observer = observer
}

// Providers 返回排序后的提供商
func (m *Manager) Providers() []Provider {
	return m.providers
}

// Names 获取所有提供商名称（按优先级）
func (m *Manager) Names() []string {
	return names(m.providers)
}

func names(providers []Provider) []string {
	result := make([]string, len(providers))
	for i, provider := range providers {
		result[i] = provider.Name()
	}
	return result
}
