package config

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config represents runtime configuration for the service.
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Gemini    GeminiConfig    `mapstructure:"gemini"`
	Weather   WeatherConfig   `mapstructure:"weather"`
	Documents DocumentsConfig `mapstructure:"documents"`
	Chat      ChatConfig      `mapstructure:"chat"`
	Storage   StorageConfig   `mapstructure:"storage"`
	Redis     RedisConfig     `mapstructure:"redis"`
	Log       LogConfig       `mapstructure:"log"`
}

type ServerConfig struct {
	Address        string   `mapstructure:"address"`
	StaticDir      string   `mapstructure:"static_dir"`
	IndexFile      string   `mapstructure:"index_file"`
	MaxUploadBytes int64    `mapstructure:"max_upload_bytes"`
	AllowOrigins   []string `mapstructure:"allow_origins"`
}

type GeminiConfig struct {
	APIKey  string        `mapstructure:"api_key"`
	Model   string        `mapstructure:"model"`
	BaseURL string        `mapstructure:"base_url"`
	Timeout time.Duration `mapstructure:"timeout"`
}

type WeatherConfig struct {
	APIKey  string        `mapstructure:"api_key"`
	BaseURL string        `mapstructure:"base_url"`
	Timeout time.Duration `mapstructure:"timeout"`
}

type DocumentsConfig struct {
	Dir          string `mapstructure:"dir"`
	ContextChars int    `mapstructure:"context_chars"`
	Watch        bool   `mapstructure:"watch"`
	LoadWorkers  int    `mapstructure:"load_workers"`
}

// ChatConfig bounds the replayed conversation. Zero keeps every turn.
type ChatConfig struct {
	MaxHistoryTurns int `mapstructure:"max_history_turns"`
}

// StorageConfig selects the transcript database. An empty driver disables it;
// a zero retention keeps rows forever.
type StorageConfig struct {
	Driver        string        `mapstructure:"driver"`
	DSN           string        `mapstructure:"dsn"`
	Retention     time.Duration `mapstructure:"retention"`
	PruneInterval time.Duration `mapstructure:"prune_interval"`
}

type RedisConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
	Channel  string `mapstructure:"channel"`
}

type LogConfig struct {
	Level       string `mapstructure:"level"`
	Development bool   `mapstructure:"development"`
}

// Load reads configuration from the provided path (optional) and the environment.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
	}

	v.SetEnvPrefix("DOCCHAT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	// the front end deployment ships these two under their historical names
	_ = v.BindEnv("gemini.api_key", "DOCCHAT_GEMINI_API_KEY", "GEMINI_API_KEY")
	_ = v.BindEnv("weather.api_key", "DOCCHAT_WEATHER_API_KEY", "OPENWEATHER_KEY")

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	if cfg.Documents.Dir != "" && !filepath.IsAbs(cfg.Documents.Dir) {
		if abs, err := filepath.Abs(cfg.Documents.Dir); err == nil {
			cfg.Documents.Dir = abs
		}
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.address", ":5000")
	v.SetDefault("server.static_dir", "static")
	v.SetDefault("server.index_file", "templates/index_blue.html")
	v.SetDefault("server.max_upload_bytes", 10<<20)
	v.SetDefault("server.allow_origins", []string{"*"})

	v.SetDefault("gemini.api_key", "")
	v.SetDefault("gemini.model", "gemini-2.0-flash")
	v.SetDefault("gemini.base_url", "")
	v.SetDefault("gemini.timeout", 15*time.Second)

	v.SetDefault("weather.api_key", "")
	v.SetDefault("weather.base_url", "https://api.openweathermap.org/data/2.5/weather")
	v.SetDefault("weather.timeout", 10*time.Second)

	v.SetDefault("documents.dir", "uploaded_files")
	v.SetDefault("documents.context_chars", 3000)
	v.SetDefault("documents.watch", false)
	v.SetDefault("documents.load_workers", 4)

	v.SetDefault("chat.max_history_turns", 0)

	v.SetDefault("storage.driver", "")
	v.SetDefault("storage.dsn", "")
	v.SetDefault("storage.retention", 30*24*time.Hour)
	v.SetDefault("storage.prune_interval", time.Hour)

	v.SetDefault("redis.enabled", false)
	v.SetDefault("redis.host", "127.0.0.1")
	v.SetDefault("redis.port", 6379)
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.channel", "docchat:documents")

	v.SetDefault("log.level", "info")
	v.SetDefault("log.development", false)
}

func (c *Config) validate() error {
	if c.Documents.Dir == "" {
		return errors.New("documents.dir must be configured")
	}
	if c.Documents.ContextChars <= 0 {
		return fmt.Errorf("documents.context_chars must be positive, got %d", c.Documents.ContextChars)
	}
	if c.Chat.MaxHistoryTurns < 0 {
		return fmt.Errorf("chat.max_history_turns cannot be negative, got %d", c.Chat.MaxHistoryTurns)
	}
	if c.Gemini.Timeout <= 0 || c.Weather.Timeout <= 0 {
		return errors.New("gemini.timeout and weather.timeout must be positive")
	}
	switch strings.ToLower(c.Storage.Driver) {
	case "", "sqlite", "sqlite3", "mysql":
	default:
		return fmt.Errorf("unsupported storage driver: %s", c.Storage.Driver)
	}
	return nil
}
