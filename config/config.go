package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

// Config is the process-wide server configuration, loaded once at
// startup and passed by value into constructors.
type Config struct {
	ListenAddr   string
	TMDBAPIKey   string
	FanartAPIKey string

	// MetaCacheEntries bounds the metadata cache (LRU ceiling).
	MetaCacheEntries int
	// MetaMaxAge / MetaStaleWindow / MetaErrorWindow shape the
	// freshness policy of the metadata cache.
	MetaMaxAge      time.Duration
	MetaStaleWindow time.Duration
	MetaErrorWindow time.Duration

	// UpstreamRPS paces calls to the upstream provider; 0 disables.
	UpstreamRPS float64
	// UpstreamMaxInFlight caps outstanding upstream calls across all
	// requests; 0 disables the gate.
	UpstreamMaxInFlight int
	// EnrichWorkers is the per-request enrichment fan-out width.
	EnrichWorkers int

	LogFile string
}

// Load reads configuration from defaults, an optional config.yaml in
// the working directory, and the environment.
func Load() (*Config, error) {
	v := viper.New()

	v.SetDefault("listen_addr", ":7000")
	v.SetDefault("meta_cache_entries", 20000)
	v.SetDefault("meta_max_age", "6h")
	v.SetDefault("meta_stale_window", "24h")
	v.SetDefault("meta_error_window", "168h")
	v.SetDefault("upstream_rps", 40.0)
	v.SetDefault("upstream_max_in_flight", 32)
	v.SetDefault("enrich_workers", 8)
	v.SetDefault("log_file", "")

	v.AutomaticEnv()
	if err := v.BindEnv("tmdb_api_key", "TMDB_API"); err != nil {
		return nil, err
	}
	if err := v.BindEnv("fanart_api_key", "FANART_API"); err != nil {
		return nil, err
	}
	if err := v.BindEnv("listen_addr", "LISTEN_ADDR"); err != nil {
		return nil, err
	}

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("config: read config file: %w", err)
		}
	}

	cfg := &Config{
		ListenAddr:          v.GetString("listen_addr"),
		TMDBAPIKey:          v.GetString("tmdb_api_key"),
		FanartAPIKey:        v.GetString("fanart_api_key"),
		MetaCacheEntries:    v.GetInt("meta_cache_entries"),
		MetaMaxAge:          v.GetDuration("meta_max_age"),
		MetaStaleWindow:     v.GetDuration("meta_stale_window"),
		MetaErrorWindow:     v.GetDuration("meta_error_window"),
		UpstreamRPS:         v.GetFloat64("upstream_rps"),
		UpstreamMaxInFlight: v.GetInt("upstream_max_in_flight"),
		EnrichWorkers:       v.GetInt("enrich_workers"),
		LogFile:             v.GetString("log_file"),
	}
	if cfg.TMDBAPIKey == "" {
		return nil, fmt.Errorf("config: TMDB_API key is required")
	}
	return cfg, nil
}
