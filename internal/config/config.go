// Package config loads and validates crawler configuration via Viper.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/footdata/understat-crawler/internal/crawl"
)

// Storage provider names.
const (
	ProviderLocal  = "local"
	ProviderMemory = "memory"
	ProviderGCS    = "gcs"
)

// Config captures all configuration knobs loaded via Viper.
type Config struct {
	Crawler  CrawlerConfig  `mapstructure:"crawler"`
	Throttle ThrottleConfig `mapstructure:"throttle"`
	Storage  StorageConfig  `mapstructure:"storage"`
	Server   ServerConfig   `mapstructure:"server"`
	Logging  LoggingConfig  `mapstructure:"logging"`
}

// CrawlerConfig governs the crawl run itself.
type CrawlerConfig struct {
	BaseURL        string   `mapstructure:"base_url"`
	Leagues        []string `mapstructure:"leagues"`
	Seasons        []string `mapstructure:"seasons"`
	BatchSize      int      `mapstructure:"batch_size"`
	UserAgent      string   `mapstructure:"user_agent"`
	TimeoutSeconds int      `mapstructure:"timeout_seconds"`
	RateLimitRPS   float64  `mapstructure:"rate_limit_rps"`
	RateLimitBurst int      `mapstructure:"rate_limit_burst"`
}

// ThrottleConfig controls sentinel detection and backoff.
type ThrottleConfig struct {
	Sentinel        string `mapstructure:"sentinel"`
	MinDelaySeconds int    `mapstructure:"min_delay_seconds"`
	MaxDelaySeconds int    `mapstructure:"max_delay_seconds"`
	// MaxAttempts caps attempts per URL; 0 retries until real content
	// arrives, which is the production default.
	MaxAttempts int `mapstructure:"max_attempts"`
}

// StorageConfig selects and parameterizes the blob store.
type StorageConfig struct {
	Provider  string `mapstructure:"provider"`
	RootDir   string `mapstructure:"root_dir"`
	GCSBucket string `mapstructure:"gcs_bucket"`
}

// ServerConfig controls the ops HTTP server.
type ServerConfig struct {
	Enabled bool `mapstructure:"enabled"`
	Port    int  `mapstructure:"port"`
}

// LoggingConfig toggles zap development features.
type LoggingConfig struct {
	Development bool `mapstructure:"development"`
}

// Load builds a Config from disk and environment.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("UNDERSTAT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("crawler.base_url", "https://understat.com")
	v.SetDefault("crawler.leagues", []string{"EPL", "La_liga", "Bundesliga", "Serie_A", "Ligue_1", "RFPL"})
	v.SetDefault("crawler.seasons", []string{"2014-2015", "2015-2016", "2016-2017", "2017-2018", "2018-2019"})
	v.SetDefault("crawler.batch_size", 10)
	v.SetDefault("crawler.user_agent", "understat-crawler/1.0")
	v.SetDefault("crawler.timeout_seconds", 15)
	v.SetDefault("crawler.rate_limit_rps", 0)
	v.SetDefault("crawler.rate_limit_burst", 1)
	v.SetDefault("throttle.sentinel", "closed.php")
	v.SetDefault("throttle.min_delay_seconds", 1)
	v.SetDefault("throttle.max_delay_seconds", 5)
	v.SetDefault("throttle.max_attempts", 0)
	v.SetDefault("storage.provider", ProviderLocal)
	v.SetDefault("storage.root_dir", "data")
	v.SetDefault("server.enabled", false)
	v.SetDefault("server.port", 8080)
	v.SetDefault("logging.development", true)
}

// Validate enforces required values and reasonable limits.
func (c Config) Validate() error {
	if c.Crawler.BaseURL == "" {
		return fmt.Errorf("crawler.base_url must be set")
	}
	if c.Crawler.BatchSize <= 0 {
		return fmt.Errorf("crawler.batch_size must be > 0")
	}
	if c.Crawler.TimeoutSeconds <= 0 {
		return fmt.Errorf("crawler.timeout_seconds must be > 0")
	}
	for _, s := range c.Crawler.Seasons {
		if err := crawl.Season(s).Validate(); err != nil {
			return fmt.Errorf("crawler.seasons: %w", err)
		}
	}
	if c.Throttle.MinDelaySeconds <= 0 {
		return fmt.Errorf("throttle.min_delay_seconds must be > 0")
	}
	if c.Throttle.MaxDelaySeconds < c.Throttle.MinDelaySeconds {
		return fmt.Errorf("throttle.max_delay_seconds must be >= throttle.min_delay_seconds")
	}
	switch c.Storage.Provider {
	case ProviderLocal:
		if c.Storage.RootDir == "" {
			return fmt.Errorf("storage.root_dir must be set for the local provider")
		}
	case ProviderMemory:
	case ProviderGCS:
		if c.Storage.GCSBucket == "" {
			return fmt.Errorf("storage.gcs_bucket must be set for the gcs provider")
		}
	default:
		return fmt.Errorf("unknown storage provider %q", c.Storage.Provider)
	}
	if c.Server.Enabled && c.Server.Port <= 0 {
		return fmt.Errorf("server.port must be > 0 when the ops server is enabled")
	}
	return nil
}

// Seasons returns the configured seasons as typed labels.
func (c Config) Seasons() []crawl.Season {
	seasons := make([]crawl.Season, len(c.Crawler.Seasons))
	for i, s := range c.Crawler.Seasons {
		seasons[i] = crawl.Season(s)
	}
	return seasons
}

// Timeout converts the HTTP timeout to a duration.
func (c Config) Timeout() time.Duration {
	return time.Duration(c.Crawler.TimeoutSeconds) * time.Second
}
