// Package config loads application settings from config.yaml and the
// environment. Listener settings (host, port, data dir) stay on the CLI
// options in cmd/sichatas.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all application configuration.
type Config struct {
	Log       LogConfig       `mapstructure:"log"`
	Map       MapConfig       `mapstructure:"map"`
	Fetch     FetchConfig     `mapstructure:"fetch"`
	Isochrone IsochroneConfig `mapstructure:"isochrone"`
	Redis     RedisConfig     `mapstructure:"redis"`
	Persist   PersistConfig   `mapstructure:"persist"`
	Catalog   CatalogConfig   `mapstructure:"catalog"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// MapConfig carries the basemap key and the access token. Both may be empty;
// the map then renders with an unauthenticated style and isochrones are off.
type MapConfig struct {
	Key      string `mapstructure:"key"`
	Token    string `mapstructure:"token"`
	StyleURL string `mapstructure:"style_url"`
}

// StyleWithKey returns the basemap style URL with the service key applied.
func (m MapConfig) StyleWithKey() string {
	if strings.Contains(m.StyleURL, "%s") {
		return fmt.Sprintf(m.StyleURL, m.Key)
	}
	return m.StyleURL
}

type FetchConfig struct {
	BaseURL     string `mapstructure:"base_url"`
	Concurrency int    `mapstructure:"concurrency"`
	Timeout     int    `mapstructure:"timeout"`
}

// TimeoutDuration returns the per-request fetch timeout.
func (f FetchConfig) TimeoutDuration() time.Duration {
	return time.Duration(f.Timeout) * time.Second
}

type IsochroneConfig struct {
	BaseURL  string `mapstructure:"base_url"`
	Profile  string `mapstructure:"profile"`
	Method   string `mapstructure:"method"`
	Interval int    `mapstructure:"interval"`
	Colors   string `mapstructure:"colors"`
	CacheTTL int    `mapstructure:"cache_ttl"`
}

type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

type PersistConfig struct {
	Workers    int `mapstructure:"workers"`
	QueueDepth int `mapstructure:"queue_depth"`
}

type CatalogConfig struct {
	File string `mapstructure:"file"`
}

// Load reads configuration from an optional config.yaml and environment
// variables prefixed with SICHATAS_ (SICHATAS_MAP_TOKEN → map.token).
func Load(searchPaths ...string) (*Config, error) {
	v := viper.New()

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")
	v.SetDefault("map.key", "")
	v.SetDefault("map.token", "")
	v.SetDefault("map.style_url", "https://basemap.mapid.io/styles/street-new-generation/style.json?key=%s")
	v.SetDefault("fetch.base_url", "")
	v.SetDefault("fetch.concurrency", 1)
	v.SetDefault("fetch.timeout", 30)
	v.SetDefault("isochrone.base_url", "https://api.mapbox.com")
	v.SetDefault("isochrone.profile", "driving")
	v.SetDefault("isochrone.method", "contours_minutes")
	v.SetDefault("isochrone.interval", 10)
	v.SetDefault("isochrone.colors", "6706ce,04e813,4286f4")
	v.SetDefault("isochrone.cache_ttl", 3600)
	v.SetDefault("redis.addr", "")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("persist.workers", 2)
	v.SetDefault("persist.queue_depth", 64)
	v.SetDefault("catalog.file", "")

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	if len(searchPaths) == 0 {
		searchPaths = []string{".", "./configs"}
	}
	for _, p := range searchPaths {
		v.AddConfigPath(p)
	}
	_ = v.ReadInConfig() // OK if missing

	v.SetEnvPrefix("SICHATAS")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// The front-end names for the two map credentials are honoured too.
	_ = v.BindEnv("map.key", "SICHATAS_MAP_KEY", "MAPID_KEY")
	_ = v.BindEnv("map.token", "SICHATAS_MAP_TOKEN", "MAPBOX_TOKEN")

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks that numeric settings are sane. Missing credentials are not
// an error.
func (c *Config) Validate() error {
	var errs []string

	if c.Fetch.Concurrency < 1 {
		errs = append(errs, fmt.Sprintf("fetch.concurrency must be >= 1, got %d", c.Fetch.Concurrency))
	}
	if c.Fetch.Timeout <= 0 {
		errs = append(errs, "fetch.timeout must be positive")
	}
	if c.Isochrone.Interval <= 0 {
		errs = append(errs, "isochrone.interval must be positive")
	}
	switch c.Isochrone.Method {
	case "contours_minutes", "contours_meters":
	default:
		errs = append(errs, fmt.Sprintf("isochrone.method must be contours_minutes or contours_meters, got %q", c.Isochrone.Method))
	}
	if c.Persist.Workers < 1 {
		errs = append(errs, "persist.workers must be >= 1")
	}
	if c.Persist.QueueDepth < 1 {
		errs = append(errs, "persist.queue_depth must be >= 1")
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}
