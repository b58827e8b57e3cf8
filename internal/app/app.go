package app

import (
	"context"
	"fmt"
	"io"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"lyricsync/internal/config"
	"lyricsync/internal/i3block"
	"lyricsync/internal/ipc"
	"lyricsync/internal/lyrics"
	"lyricsync/internal/metrics"
	"lyricsync/internal/player"
	"lyricsync/pkg/ai"
	"lyricsync/pkg/fileutil"
	"lyricsync/pkg/local"
	"lyricsync/pkg/music"
	"lyricsync/pkg/redis"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

const (
	watchDebounce  = 500 * time.Millisecond
	publishTimeout = 2 * time.Second
)

// SetupLogging 设置 zerolog 的全局配置
func SetupLogging(level string) error {
	zerolog.TimeFieldFormat = time.RFC3339
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})

	lvl, err := zerolog.ParseLevel(level)
	if err != nil {
		return fmt.Errorf("invalid log level %q: %w", level, err)
	}
	zerolog.SetGlobalLevel(lvl)
	return nil
}

type App struct {
	cfg       *config.Config
	player    *player.Client
	service   *lyrics.Service
	ipcServer *ipc.Server
	metrics   *metrics.Metrics
	i3block   *i3block.Controller
	redis     *redis.Client
	aiClient  ai.AiInterface
	local     *local.Provider

	// 当前曲目，nil 表示没有播放
	current atomic.Pointer[music.Track]
	// 只保留最新的快照，输出跟不上时旧快照直接丢弃
	snapshots chan lyrics.Snapshot
}

func New(ctx context.Context, cfg *config.Config) (*App, error) {
	a := &App{
		cfg:       cfg,
		player:    player.NewClient(cfg.App.Player),
		ipcServer: ipc.NewServer(cfg.App.SocketPath),
		local:     local.NewProvider(cfg.Providers.Local.Dir),
		snapshots: make(chan lyrics.Snapshot, 1),
	}

	if cfg.Metrics.Addr != "" {
		a.metrics = metrics.New()
	}
	a.ipcServer.OnClientsChanged(a.metrics.SetIPCClients)

	if cfg.I3Block.Enabled {
		a.i3block = i3block.NewController(cfg.I3Block.Process, cfg.I3Block.Signal)
	}

	if cfg.Redis.Enabled {
		client, err := redis.NewClient(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB, cfg.Redis.Channel)
		if err != nil {
			return nil, fmt.Errorf("failed to connect to redis: %w", err)
		}
		a.redis = client
	}

	aiClient, err := lyrics.NewAIClient(ctx, cfg.AI)
	if err != nil {
		a.closeClients()
		return nil, err
	}
	a.aiClient = aiClient
	if aiClient != nil {
		log.Info().Str("model", aiClient.Name()).Msg("AI query normalizer enabled")
	}

	manager := lyrics.NewManager(cfg.Providers)
	manager.SetObserver(a.metrics.ProviderAttempt)
	log.Info().Strs("providers", manager.Names()).Msg("Lyrics providers")

	a.service = lyrics.NewService(lyrics.Options{
		Fetcher:      manager,
		Normalizers:  lyrics.NewNormalizers(aiClient),
		FetchTimeout: cfg.App.FetchTimeout,
		Listener:     a.onSnapshot,
		Metrics:      a.metrics,
	})
	return a, nil
}

// Run 启动所有组件，直到 ctx 结束
func (a *App) Run(ctx context.Context) error {
	if err := a.ipcServer.Start(); err != nil {
		return fmt.Errorf("failed to start IPC server: %w", err)
	}
	defer a.Close()
	a.onSnapshot(lyrics.Snapshot{Sync: lyrics.SyncState{CurrentLineIndex: lyrics.NoLine}})

	var wg sync.WaitGroup
	goFunc := func(fn func()) {
		wg.Add(1)
		go func() {
			defer wg.Done()
			fn()
		}()
	}

	goFunc(func() {
		if err := a.service.Run(ctx); err != nil && ctx.Err() == nil {
			log.Error().Err(err).Msg("Lyrics service exited")
		}
	})
	goFunc(func() { a.output(ctx) })
	goFunc(func() { a.pollTrack(ctx) })
	goFunc(func() { a.pollPosition(ctx) })

	if a.metrics != nil {
		goFunc(func() {
			if err := a.metrics.Serve(ctx, a.cfg.Metrics.Addr); err != nil {
				log.Error().Err(err).Msg("Metrics server failed")
			}
		})
	}
	if a.i3block != nil {
		goFunc(func() { a.i3block.Run(ctx) })
	}
	if a.cfg.Providers.Local.Watch && a.local.IsAvailable() {
		goFunc(func() { a.watchLocal(ctx) })
	}

	log.Info().Msg("Starting player check loop...")

	<-ctx.Done()
	wg.Wait()
	log.Info().Msg("Shutting down")
	return nil
}

// Close 关闭 socket 并释放外部连接
func (a *App) Close() {
	a.ipcServer.Close()
	a.closeClients()
}

func (a *App) closeClients() {
	if a.redis != nil {
		if err := a.redis.Close(); err != nil {
			log.Warn().Err(err).Msg("Failed to close redis client")
		}
	}
	if closer, ok := a.aiClient.(io.Closer); ok {
		closer.Close()
	}
}

// onSnapshot 在服务循环中调用，不能阻塞
func (a *App) onSnapshot(snap lyrics.Snapshot) {
	select {
	case a.snapshots <- snap:
		return
	default:
	}
	select {
	case <-a.snapshots:
	default:
	}
	select {
	case a.snapshots <- snap:
	default:
	}
}

func (a *App) output(ctx context.Context) {
	var lastMsg, lastState string
	for {
		select {
		case <-ctx.Done():
			return
		case snap := <-a.snapshots:
			msg, err := render(snap, a.cfg.App.Format)
			if err != nil {
				log.Error().Err(err).Msg("Failed to render state")
				continue
			}
			if msg != lastMsg {
				lastMsg = msg
				a.display(msg)
			}

			if a.redis == nil {
				continue
			}
			state, err := render(snap, "json")
			if err != nil || state == lastState {
				continue
			}
			lastState = state
			a.publish(ctx, NewState(snap))
		}
	}
}

func (a *App) display(msg string) {
	a.ipcServer.Broadcast(msg)

	if path := a.cfg.App.OutputFile; path != "" {
		if err := fileutil.WriteFileAtomic(path, []byte(msg+"\n"), 0644); err != nil {
			log.Warn().Err(err).Str("path", path).Msg("Failed to write output file")
		}
	}

	if a.i3block != nil {
		if err := a.i3block.Signal(); err != nil {
			log.Debug().Err(err).Msg("Failed to signal i3blocks")
		}
	}
}

func (a *App) publish(ctx context.Context, state State) {
	ctx, cancel := context.WithTimeout(ctx, publishTimeout)
	defer cancel()
	if _, err := a.redis.Publish(ctx, state); err != nil {
		log.Warn().Err(err).Msg("Failed to publish state to redis")
	}
}

func (a *App) pollTrack(ctx context.Context) {
	ticker := time.NewTicker(a.cfg.App.CheckInterval)
	defer ticker.Stop()

	for {
		a.updateTrack(ctx)
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func (a *App) updateTrack(ctx context.Context) {
	track, err := a.player.CurrentTrack(ctx)
	if err != nil {
		if a.current.Swap(nil) != nil {
			log.Debug().Err(err).Msg("Player stopped")
		}
		a.service.TrackChanged(nil)
		return
	}
	a.current.Store(track)
	a.service.TrackChanged(track)
}

func (a *App) pollPosition(ctx context.Context) {
	ticker := time.NewTicker(a.cfg.App.PositionInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
		if a.current.Load() == nil {
			continue
		}
		pos, err := a.player.Position(ctx)
		if err != nil {
			log.Debug().Err(err).Msg("Failed to get player position")
			continue
		}
		a.service.UpdatePosition(pos + a.cfg.App.Offset)
	}
}

// watchLocal 本地歌词文件变化后清空缓存并重新获取当前曲目的歌词
func (a *App) watchLocal(ctx context.Context) {
	changed := make(chan struct{}, 1)
	go func() {
		err := a.local.Watch(ctx, func(string) {
			select {
			case changed <- struct{}{}:
			default:
			}
		})
		if err != nil {
			log.Warn().Err(err).Msg("Local lyrics watcher stopped")
		}
	}()

	timer := time.NewTimer(watchDebounce)
	timer.Stop()
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-changed:
			timer.Reset(watchDebounce)
		case <-timer.C:
			a.service.ClearCache()
			if track := a.current.Load(); track != nil {
				log.Info().Str("track_id", track.ID).Msg("Local lyrics changed, refreshing")
				a.service.FetchLyrics(*track)
			}
		}
	}
}
