package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog/log"
)

const (
	appName = "lyricsync"

	DefaultSocketPath       = "/tmp/lyrics_app.sock"
	DefaultOutputFile       = "/tmp/lyrics"
	DefaultCheckInterval    = 2 * time.Second
	DefaultPositionInterval = 200 * time.Millisecond
	DefaultFetchTimeout     = 30 * time.Second
	DefaultProviderTimeout  = 10 * time.Second
	DefaultRedisChannel     = "lyricsync:snapshots"
	DefaultI3BlockSignal    = 21
)

// TomlConfig TOML配置文件结构，时长以字符串表示
type TomlConfig struct {
	App struct {
		SocketPath       string   `toml:"socket_path"`
		Player           string   `toml:"player"`
		CheckInterval    string   `toml:"check_interval"`
		PositionInterval string   `toml:"position_interval"`
		FetchTimeout     string   `toml:"fetch_timeout"`
		LogLevel         string   `toml:"log_level"`
		OutputFile       *string  `toml:"output_file"`
		Format           string   `toml:"format"`
		Offset           *float64 `toml:"offset"`
	} `toml:"app"`

	Providers struct {
		Timeout string `toml:"timeout"`

		LRCLib struct {
			Enabled           *bool   `toml:"enabled"`
			BaseURL           string  `toml:"base_url"`
			SearchFallback    bool    `toml:"search_fallback"`
			RequestsPerSecond float64 `toml:"requests_per_second"`
		} `toml:"lrclib"`

		NetEase struct {
			Enabled bool   `toml:"enabled"`
			BaseURL string `toml:"base_url"`
			Cookie  string `toml:"cookie"`
		} `toml:"netease"`

		Musixmatch struct {
			APIKey  string `toml:"api_key"`
			BaseURL string `toml:"base_url"`
		} `toml:"musixmatch"`

		Local struct {
			Dir   string `toml:"dir"`
			Watch *bool  `toml:"watch"`
		} `toml:"local"`
	} `toml:"providers"`

	AI struct {
		ModuleName string `toml:"module_name"`
		APIKey     string `toml:"api_key"`
		BaseURL    string `toml:"base_url"` // for OpenAI
	} `toml:"ai"`

	Redis struct {
		Enabled  bool   `toml:"enabled"`
		Addr     string `toml:"addr"`
		Password string `toml:"password"`
		DB       int    `toml:"db"`
		Channel  string `toml:"channel"`
	} `toml:"redis"`

	I3Block struct {
		Enabled bool   `toml:"enabled"`
		Signal  int    `toml:"signal"`
		Process string `toml:"process"`
	} `toml:"i3block"`

	Metrics struct {
		Addr string `toml:"addr"`
	} `toml:"metrics"`
}

// AppConfig 应用配置
type AppConfig struct {
	SocketPath       string        `validate:"required"`
	Player           string        // playerctl --player，为空时由 playerctl 选择
	CheckInterval    time.Duration `validate:"gt=0"`
	PositionInterval time.Duration `validate:"gt=0"`
	FetchTimeout     time.Duration `validate:"gt=0"`
	LogLevel         string        `validate:"oneof=trace debug info warn error"`
	OutputFile       string        // 为空表示不写文件
	Format           string        `validate:"oneof=text json"`
	Offset           float64       // 秒，加到播放器进度上，正数表示提前显示
}

type LRCLibConfig struct {
	Enabled           bool
	BaseURL           string  `validate:"omitempty,url"`
	SearchFallback    bool
	RequestsPerSecond float64 `validate:"gte=0"`
}

type NetEaseConfig struct {
	Enabled bool
	BaseURL string `validate:"omitempty,url"`
	Cookie  string
}

type MusixmatchConfig struct {
	APIKey  string
	BaseURL string `validate:"omitempty,url"`
}

type LocalConfig struct {
	Dir   string
	Watch bool
}

// ProvidersConfig 歌词提供商配置
type ProvidersConfig struct {
	Timeout    time.Duration `validate:"gt=0"`
	LRCLib     LRCLibConfig
	NetEase    NetEaseConfig
	Musixmatch MusixmatchConfig
	Local      LocalConfig
}

// AIConfig AI配置，APIKey 为空时不启用
type AIConfig struct {
	ModuleName string
	APIKey     string
	BaseURL    string `validate:"omitempty,url"`
}

// RedisConfig Redis配置
type RedisConfig struct {
	Enabled  bool
	Addr     string `validate:"required_if=Enabled true"`
	Password string
	DB       int    `validate:"gte=0"`
	Channel  string `validate:"required_if=Enabled true"`
}

// I3BlockConfig i3blocks 刷新信号配置，实际发送 SIGRTMIN+Signal
type I3BlockConfig struct {
	Enabled bool
	Signal  int    `validate:"gte=1,lte=30"`
	Process string `validate:"required"`
}

type MetricsConfig struct {
	Addr string `validate:"omitempty,hostname_port"`
}

// Config 主配置结构
type Config struct {
	App       AppConfig
	Providers ProvidersConfig
	AI        AIConfig
	Redis     RedisConfig
	I3Block   I3BlockConfig
	Metrics   MetricsConfig
}

// Default 返回默认配置
func Default() *Config {
	return &Config{
		App: AppConfig{
			SocketPath:       DefaultSocketPath,
			CheckInterval:    DefaultCheckInterval,
			PositionInterval: DefaultPositionInterval,
			FetchTimeout:     DefaultFetchTimeout,
			LogLevel:         "info",
			OutputFile:       DefaultOutputFile,
			Format:           "text",
		},
		Providers: ProvidersConfig{
			Timeout: DefaultProviderTimeout,
			LRCLib:  LRCLibConfig{Enabled: true},
			Local: LocalConfig{
				Dir:   getDefaultLyricsDir(),
				Watch: true,
			},
		},
		AI: AIConfig{
			ModuleName: "gemini",
		},
		Redis: RedisConfig{
			Addr:    "localhost:6379",
			Channel: DefaultRedisChannel,
		},
		I3Block: I3BlockConfig{
			Signal:  DefaultI3BlockSignal,
			Process: "i3blocks",
		},
	}
}

func getDefaultLyricsDir() string {
	// 优先使用 XDG_DATA_HOME 环境变量
	if dataHome := os.Getenv("XDG_DATA_HOME"); dataHome != "" {
		return filepath.Join(dataHome, appName, "lyrics")
	}

	homeDir, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(homeDir, ".local", "share", appName, "lyrics")
}

// DefaultPath 获取配置文件路径
func DefaultPath() string {
	// 优先使用 XDG_CONFIG_HOME 环境变量
	if configHome := os.Getenv("XDG_CONFIG_HOME"); configHome != "" {
		return filepath.Join(configHome, appName, "config.toml")
	}

	// 否则使用用户主目录下的 .config
	homeDir, err := os.UserHomeDir()
	if err != nil {
		log.Warn().Err(err).Msg("Cannot get user home directory")
		return "config.toml" // 回退到当前目录
	}

	return filepath.Join(homeDir, ".config", appName, "config.toml")
}

// Load 读取配置文件并覆盖默认值，path 为空时使用默认路径。
// 文件不存在时使用默认配置。
func Load(path string) (*Config, error) {
	if path == "" {
		path = DefaultPath()
	}

	var tomlConfig TomlConfig
	_, err := toml.DecodeFile(path, &tomlConfig)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		log.Info().Str("path", path).Msg("Config file not found, using defaults")
	case err != nil:
		return nil, fmt.Errorf("failed to load config file %s: %w", path, err)
	default:
		log.Info().Str("path", path).Msg("Loaded config")
	}

	cfg := Default()
	if err := cfg.apply(&tomlConfig); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", path, err)
	}

	if err := validator.New().Struct(cfg); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return cfg, nil
}

// apply 用配置文件中的非零值覆盖当前配置
func (c *Config) apply(t *TomlConfig) error {
	var err error

	if t.App.SocketPath != "" {
		c.App.SocketPath = t.App.SocketPath
	}
	c.App.Player = t.App.Player
	if c.App.CheckInterval, err = overrideDuration(c.App.CheckInterval, t.App.CheckInterval, "app.check_interval"); err != nil {
		return err
	}
	if c.App.PositionInterval, err = overrideDuration(c.App.PositionInterval, t.App.PositionInterval, "app.position_interval"); err != nil {
		return err
	}
	if c.App.FetchTimeout, err = overrideDuration(c.App.FetchTimeout, t.App.FetchTimeout, "app.fetch_timeout"); err != nil {
		return err
	}
	if t.App.LogLevel != "" {
		c.App.LogLevel = t.App.LogLevel
	}
	if t.App.OutputFile != nil {
		c.App.OutputFile = *t.App.OutputFile
	}
	if t.App.Format != "" {
		c.App.Format = t.App.Format
	}
	if t.App.Offset != nil {
		c.App.Offset = *t.App.Offset
	}

	// 从TOML配置中覆盖提供商设置
	p := &t.Providers
	if c.Providers.Timeout, err = overrideDuration(c.Providers.Timeout, p.Timeout, "providers.timeout"); err != nil {
		return err
	}
	if p.LRCLib.Enabled != nil {
		c.Providers.LRCLib.Enabled = *p.LRCLib.Enabled
	}
	if p.LRCLib.BaseURL != "" {
		c.Providers.LRCLib.BaseURL = p.LRCLib.BaseURL
	}
	c.Providers.LRCLib.SearchFallback = p.LRCLib.SearchFallback
	c.Providers.LRCLib.RequestsPerSecond = p.LRCLib.RequestsPerSecond

	c.Providers.NetEase = NetEaseConfig{
		Enabled: p.NetEase.Enabled,
		BaseURL: p.NetEase.BaseURL,
		Cookie:  p.NetEase.Cookie,
	}
	c.Providers.Musixmatch = MusixmatchConfig{
		APIKey:  p.Musixmatch.APIKey,
		BaseURL: p.Musixmatch.BaseURL,
	}
	if p.Local.Dir != "" {
		c.Providers.Local.Dir = expandHome(p.Local.Dir)
	}
	if p.Local.Watch != nil {
		c.Providers.Local.Watch = *p.Local.Watch
	}

	// 从TOML配置中覆盖AI设置
	if t.AI.ModuleName != "" {
		c.AI.ModuleName = t.AI.ModuleName
	}
	if t.AI.BaseURL != "" {
		c.AI.BaseURL = t.AI.BaseURL
	}
	if t.AI.APIKey != "" {
		c.AI.APIKey = t.AI.APIKey
	}

	// 从TOML配置中覆盖Redis设置
	c.Redis.Enabled = t.Redis.Enabled
	if t.Redis.Addr != "" {
		c.Redis.Addr = t.Redis.Addr
	}
	if t.Redis.Password != "" {
		c.Redis.Password = t.Redis.Password
	}
	if t.Redis.DB != 0 {
		c.Redis.DB = t.Redis.DB
	}
	if t.Redis.Channel != "" {
		c.Redis.Channel = t.Redis.Channel
	}

	c.I3Block.Enabled = t.I3Block.Enabled
	if t.I3Block.Signal != 0 {
		c.I3Block.Signal = t.I3Block.Signal
	}
	if t.I3Block.Process != "" {
		c.I3Block.Process = t.I3Block.Process
	}

	c.Metrics.Addr = t.Metrics.Addr
	return nil
}

func overrideDuration(current time.Duration, value, key string) (time.Duration, error) {
	if value == "" {
		return current, nil
	}
	duration, err := time.ParseDuration(value)
	if err != nil {
		return current, fmt.Errorf("invalid %s format '%s': %w", key, value, err)
	}
	return duration, nil
}

func expandHome(path string) string {
	if len(path) < 2 || path[:2] != "~/" {
		return path
	}
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	return filepath.Join(homeDir, path[2:])
}
