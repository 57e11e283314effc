// Package config loads and validates service configuration via Viper.
package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

// Config captures all service configuration knobs loaded via Viper.
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Auth      AuthConfig      `mapstructure:"auth"`
	Logging   LoggingConfig   `mapstructure:"logging"`
	Providers ProvidersConfig `mapstructure:"providers"`
	Quota     QuotaConfig     `mapstructure:"quota"`
	RateLimit RateLimitConfig `mapstructure:"rate_limit"`
	Fetch     FetchConfig     `mapstructure:"fetch"`
	Filter    FilterConfig    `mapstructure:"filter"`
	Redis     RedisConfig     `mapstructure:"redis"`
	DB        DBConfig        `mapstructure:"db"`
	Archive   ArchiveConfig   `mapstructure:"archive"`
	PubSub    PubSubConfig    `mapstructure:"pubsub"`
	Headless  HeadlessConfig  `mapstructure:"headless"`
}

// ServerConfig controls HTTP server behavior.
type ServerConfig struct {
	Port           int `mapstructure:"port"`
	TimeoutSeconds int `mapstructure:"timeout_seconds"`
}

// AuthConfig defines API authentication toggles. The approval gate itself runs
// upstream; this is only the service-to-service key.
type AuthConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	APIKey  string `mapstructure:"api_key"`
}

// LoggingConfig toggles zap development features.
type LoggingConfig struct {
	Development bool `mapstructure:"development"`
}

// ProvidersConfig holds one API key per external provider. An empty key disables
// the provider gracefully rather than erroring.
type ProvidersConfig struct {
	HereAPIKey        string `mapstructure:"here_api_key"`
	FoursquareAPIKey  string `mapstructure:"foursquare_api_key"`
	GooglePlacesKey   string `mapstructure:"google_places_key"`
	OutscraperAPIKey  string `mapstructure:"outscraper_api_key"`
	YelpAPIKey        string `mapstructure:"yelp_api_key"`
	SerperAPIKey      string `mapstructure:"serper_api_key"`
	BraveAPIKey       string `mapstructure:"brave_api_key"`
	ScrapingdogAPIKey string `mapstructure:"scrapingdog_api_key"`
	GoogleCSEKey      string `mapstructure:"google_cse_key"`
	GoogleCSECX       string `mapstructure:"google_cse_cx"`
	HunterAPIKey      string `mapstructure:"hunter_api_key"`
	ZipAPIKey         string `mapstructure:"zip_api_key"`
}

// QuotaConfig tunes the monthly budget tracker.
type QuotaConfig struct {
	SafetyBuffer int            `mapstructure:"safety_buffer"`
	Limits       map[string]int `mapstructure:"limits"`
}

// RateLimitConfig sets the inbound fixed-window defaults.
type RateLimitConfig struct {
	DefaultLimit  int `mapstructure:"default_limit"`
	WindowSeconds int `mapstructure:"window_seconds"`
}

// FetchConfig governs outbound page fetching.
type FetchConfig struct {
	TimeoutSeconds int    `mapstructure:"timeout_seconds"`
	UserAgent      string `mapstructure:"user_agent"`
	MaxBodyBytes   int    `mapstructure:"max_body_bytes"`
	PerDomainRPS   int    `mapstructure:"per_domain_rps"`
}

// FilterConfig exposes the relevance heuristics as tunable parameters. The
// defaults were tuned empirically against known business/website pairs; validate
// changes against that corpus rather than re-deriving them.
type FilterConfig struct {
	MinNameTokens int `mapstructure:"min_name_tokens"`
	MaxPathDepth  int `mapstructure:"max_path_depth"`
}

// RedisConfig locates the optional geocode cache.
type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// DBConfig controls access to the quota ledger database.
type DBConfig struct {
	DSN          string `mapstructure:"dsn"`
	MaxOpenConns int    `mapstructure:"max_open_conns"`
}

// ArchiveConfig sets the scrape archive destination. Kind is one of gcs, local,
// memory, none.
type ArchiveConfig struct {
	Kind      string `mapstructure:"kind"`
	GCSBucket string `mapstructure:"gcs_bucket"`
	LocalDir  string `mapstructure:"local_dir"`
	Prefix    string `mapstructure:"prefix"`
}

// PubSubConfig holds metadata for enrichment event notifications.
type PubSubConfig struct {
	ProjectID string `mapstructure:"project_id"`
	TopicName string `mapstructure:"topic_name"`
}

// HeadlessConfig configures the chromedp rendering fallback.
type HeadlessConfig struct {
	Enabled       bool `mapstructure:"enabled"`
	NavTimeoutSec int  `mapstructure:"nav_timeout_seconds"`
	MinHTMLBytes  int  `mapstructure:"min_html_bytes"`
}

// Load builds a Config from disk/environment.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("LEADSCOUT")
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
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.timeout_seconds", 60)
	v.SetDefault("logging.development", true)
	v.SetDefault("quota.safety_buffer", 50)
	v.SetDefault("rate_limit.default_limit", 30)
	v.SetDefault("rate_limit.window_seconds", 60)
	v.SetDefault("fetch.timeout_seconds", 10)
	v.SetDefault("fetch.user_agent", "leadscout-bot/0.1")
	v.SetDefault("fetch.max_body_bytes", 2*1024*1024)
	v.SetDefault("fetch.per_domain_rps", 2)
	v.SetDefault("filter.min_name_tokens", 2)
	v.SetDefault("filter.max_path_depth", 3)
	v.SetDefault("archive.kind", "none")
	v.SetDefault("archive.prefix", "scrapes")
	v.SetDefault("headless.enabled", false)
	v.SetDefault("headless.nav_timeout_seconds", 15)
	v.SetDefault("headless.min_html_bytes", 1024)
	v.SetDefault("db.max_open_conns", 4)
}

// Validate rejects configurations the service cannot run with.
func (c Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port %d", c.Server.Port)
	}
	if c.Auth.Enabled && c.Auth.APIKey == "" {
		return errors.New("auth enabled but no api key configured")
	}
	switch c.Archive.Kind {
	case "", "none", "memory", "local", "gcs":
	default:
		return fmt.Errorf("unknown archive kind %q", c.Archive.Kind)
	}
	if c.Archive.Kind == "gcs" && c.Archive.GCSBucket == "" {
		return errors.New("archive kind gcs requires a bucket")
	}
	if c.Archive.Kind == "local" && c.Archive.LocalDir == "" {
		return errors.New("archive kind local requires a directory")
	}
	if c.Filter.MinNameTokens < 1 {
		return errors.New("filter.min_name_tokens must be at least 1")
	}
	return nil
}
