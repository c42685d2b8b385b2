// Package config loads and validates service configuration via Viper.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config captures all service configuration knobs loaded via Viper.
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Auth     AuthConfig     `mapstructure:"auth"`
	CORS     CORSConfig     `mapstructure:"cors"`
	HTTP     HTTPConfig     `mapstructure:"http"`
	Headless HeadlessConfig `mapstructure:"headless"`
	Lineup   LineupConfig   `mapstructure:"lineup"`
	Social   SocialConfig   `mapstructure:"social"`
	Storage  StorageConfig  `mapstructure:"storage"`
	DB       DBConfig       `mapstructure:"db"`
	PubSub   PubSubConfig   `mapstructure:"pubsub"`
	Logging  LoggingConfig  `mapstructure:"logging"`
}

// ServerConfig controls HTTP server behavior.
type ServerConfig struct {
	Port                  int `mapstructure:"port"`
	RequestTimeoutSeconds int `mapstructure:"request_timeout_seconds"`
}

// AuthConfig defines API authentication toggles.
type AuthConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	APIKey  string `mapstructure:"api_key"`
}

// CORSConfig lists the origins allowed to call the API from a browser.
type CORSConfig struct {
	AllowedOrigins []string `mapstructure:"allowed_origins"`
}

// HTTPConfig configures outbound fetch behavior.
type HTTPConfig struct {
	UserAgent      string  `mapstructure:"user_agent"`
	TimeoutSeconds int     `mapstructure:"timeout_seconds"`
	MaxAttempts    int     `mapstructure:"max_attempts"`
	BackoffStepMs  int     `mapstructure:"backoff_step_ms"`
	RespectRobots  bool    `mapstructure:"respect_robots"`
	RateLimitRPS   float64 `mapstructure:"rate_limit_rps"`
	RateLimitBurst int     `mapstructure:"rate_limit_burst"`
}

// HeadlessConfig configures the headless rendering fallback.
type HeadlessConfig struct {
	Enabled         bool `mapstructure:"enabled"`
	MaxParallel     int  `mapstructure:"max_parallel"`
	NavTimeoutSec   int  `mapstructure:"nav_timeout_seconds"`
	PromotionThresh int  `mapstructure:"promotion_threshold"`

	// WaitSelector must match before the rendered DOM is captured.
	WaitSelector   string `mapstructure:"wait_selector"`
	ScrollToBottom bool   `mapstructure:"scroll_to_bottom"`
}

// LineupConfig points the lineup scraper at its source pages.
type LineupConfig struct {
	URLTemplate      string `mapstructure:"url_template"`
	SnapshotFailures bool   `mapstructure:"snapshot_failures"`
}

// SocialConfig holds per-platform credentials and API endpoints.
type SocialConfig struct {
	Platforms []string        `mapstructure:"platforms"`
	Twitter   TwitterConfig   `mapstructure:"twitter"`
	Instagram InstagramConfig `mapstructure:"instagram"`
	Facebook  FacebookConfig  `mapstructure:"facebook"`
	YouTube   YouTubeConfig   `mapstructure:"youtube"`
	TikTok    TikTokConfig    `mapstructure:"tiktok"`
	// RecentPosts bounds how many posts feed the engagement figures.
	RecentPosts int `mapstructure:"recent_posts"`
}

// TwitterConfig configures the X/Twitter API v2 source.
type TwitterConfig struct {
	BaseURL     string `mapstructure:"base_url"`
	BearerToken string `mapstructure:"bearer_token"`
	Username    string `mapstructure:"username"`
}

// InstagramConfig configures the Instagram Graph API source.
type InstagramConfig struct {
	BaseURL     string `mapstructure:"base_url"`
	AccessToken string `mapstructure:"access_token"`
	AccountID   string `mapstructure:"account_id"`
}

// FacebookConfig configures the Facebook Graph API source.
type FacebookConfig struct {
	BaseURL     string `mapstructure:"base_url"`
	AccessToken string `mapstructure:"access_token"`
	PageID      string `mapstructure:"page_id"`
}

// YouTubeConfig configures the YouTube Data API source.
type YouTubeConfig struct {
	BaseURL   string `mapstructure:"base_url"`
	APIKey    string `mapstructure:"api_key"`
	ChannelID string `mapstructure:"channel_id"`
}

// TikTokConfig configures the TikTok profile scraper.
type TikTokConfig struct {
	BaseURL  string `mapstructure:"base_url"`
	Username string `mapstructure:"username"`
}

// StorageConfig selects where failure snapshots are written.
type StorageConfig struct {
	Provider    string `mapstructure:"provider"`
	LocalDir    string `mapstructure:"local_dir"`
	GCSBucket   string `mapstructure:"gcs_bucket"`
	Prefix      string `mapstructure:"prefix"`
	ContentType string `mapstructure:"content_type"`
}

// DBConfig controls access to the relational database.
type DBConfig struct {
	DSN                    string `mapstructure:"dsn"`
	Table                  string `mapstructure:"table"`
	MaxConns               int32  `mapstructure:"max_conns"`
	MinConns               int32  `mapstructure:"min_conns"`
	MaxConnLifetimeMinutes int    `mapstructure:"max_conn_lifetime_minutes"`
	AutoMigrate            bool   `mapstructure:"auto_migrate"`
}

// PubSubConfig holds metadata for publish-subscribe notifications.
type PubSubConfig struct {
	ProjectID string `mapstructure:"project_id"`
	TopicName string `mapstructure:"topic_name"`
}

// LoggingConfig toggles zap development features.
type LoggingConfig struct {
	Development bool `mapstructure:"development"`
}

// Storage providers accepted by StorageConfig.Provider.
const (
	StorageNone   = "none"
	StorageMemory = "memory"
	StorageLocal  = "local"
	StorageGCS    = "gcs"
)

// Platforms lists the social platforms in collection order.
var Platforms = []string{"twitter", "instagram", "facebook", "youtube", "tiktok"}

// envAliases binds keys to the conventional variable names used by hosting
// platforms and third-party dashboards, in addition to the OVALSYNC_ prefix.
var envAliases = map[string][]string{
	"server.port":                   {"PORT"},
	"db.dsn":                        {"DATABASE_URL"},
	"auth.api_key":                  {"API_KEY"},
	"pubsub.project_id":             {"GOOGLE_CLOUD_PROJECT"},
	"social.twitter.bearer_token":   {"TWITTER_BEARER_TOKEN"},
	"social.twitter.username":       {"TWITTER_USERNAME"},
	"social.instagram.access_token": {"INSTAGRAM_ACCESS_TOKEN"},
	"social.instagram.account_id":   {"INSTAGRAM_ACCOUNT_ID"},
	"social.facebook.access_token":  {"FACEBOOK_ACCESS_TOKEN"},
	"social.facebook.page_id":       {"FACEBOOK_PAGE_ID"},
	"social.youtube.api_key":        {"YOUTUBE_API_KEY"},
	"social.youtube.channel_id":     {"YOUTUBE_CHANNEL_ID"},
	"social.tiktok.username":        {"TIKTOK_USERNAME"},
}

// Load builds a Config from an optional .env file, a config file and the environment.
func Load(path string) (Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Config{}, fmt.Errorf("load .env: %w", err)
	}

	v := viper.New()
	v.SetEnvPrefix("OVALSYNC")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)
	if err := bindAliases(v); err != nil {
		return Config{}, err
	}

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

func bindAliases(v *viper.Viper) error {
	for key, names := range envAliases {
		prefixed := "OVALSYNC_" + strings.ToUpper(strings.ReplaceAll(key, ".", "_"))
		args := append([]string{key, prefixed}, names...)
		if err := v.BindEnv(args...); err != nil {
			return fmt.Errorf("bind env %s: %w", key, err)
		}
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.request_timeout_seconds", 60)
	v.SetDefault("cors.allowed_origins", []string{"*"})
	v.SetDefault("http.user_agent", "Mozilla/5.0 (compatible; ovalsync/1.0)")
	v.SetDefault("http.timeout_seconds", 15)
	v.SetDefault("http.max_attempts", 3)
	v.SetDefault("http.backoff_step_ms", 500)
	v.SetDefault("http.respect_robots", false)
	v.SetDefault("http.rate_limit_rps", 2.0)
	v.SetDefault("http.rate_limit_burst", 2)
	v.SetDefault("headless.enabled", false)
	v.SetDefault("headless.max_parallel", 1)
	v.SetDefault("headless.nav_timeout_seconds", 25)
	v.SetDefault("headless.promotion_threshold", 2048)
	v.SetDefault("headless.wait_selector", "body")
	v.SetDefault("headless.scroll_to_bottom", true)
	v.SetDefault("lineup.url_template", "https://www.espn.co.uk/rugby/lineups/_/gameId/{match_id}")
	v.SetDefault("lineup.snapshot_failures", true)
	v.SetDefault("social.platforms", Platforms)
	v.SetDefault("social.recent_posts", 10)
	v.SetDefault("social.twitter.base_url", "https://api.twitter.com")
	v.SetDefault("social.instagram.base_url", "https://graph.facebook.com/v19.0")
	v.SetDefault("social.facebook.base_url", "https://graph.facebook.com/v19.0")
	v.SetDefault("social.youtube.base_url", "https://www.googleapis.com")
	v.SetDefault("social.tiktok.base_url", "https://www.tiktok.com")
	v.SetDefault("storage.provider", StorageNone)
	v.SetDefault("storage.local_dir", "data/snapshots")
	v.SetDefault("storage.prefix", "snapshots")
	v.SetDefault("storage.content_type", "text/html; charset=utf-8")
	v.SetDefault("db.table", "social_stats")
	v.SetDefault("db.max_conns", 4)
	v.SetDefault("db.max_conn_lifetime_minutes", 30)
	v.SetDefault("db.auto_migrate", false)
	v.SetDefault("logging.development", false)
}

// Validate enforces required values and reasonable limits.
func (c Config) Validate() error {
	if c.Server.Port <= 0 {
		return fmt.Errorf("server.port must be > 0")
	}
	if c.HTTP.TimeoutSeconds <= 0 {
		return fmt.Errorf("http.timeout_seconds must be > 0")
	}
	if c.HTTP.MaxAttempts <= 0 {
		return fmt.Errorf("http.max_attempts must be > 0")
	}
	if c.HTTP.BackoffStepMs < 0 {
		return fmt.Errorf("http.backoff_step_ms must be >= 0")
	}
	if c.Headless.Enabled && c.Headless.MaxParallel <= 0 {
		return fmt.Errorf("headless.max_parallel must be > 0 when headless is enabled")
	}
	if c.Auth.Enabled && c.Auth.APIKey == "" {
		return fmt.Errorf("auth.api_key must be set when auth is enabled")
	}
	if !strings.Contains(c.Lineup.URLTemplate, "{match_id}") {
		return fmt.Errorf("lineup.url_template must contain {match_id}")
	}
	for _, p := range c.Social.Platforms {
		if !isKnownPlatform(p) {
			return fmt.Errorf("social.platforms: unknown platform %q", p)
		}
	}
	switch c.Storage.Provider {
	case StorageNone, StorageMemory:
	case StorageLocal:
		if c.Storage.LocalDir == "" {
			return fmt.Errorf("storage.local_dir must be set for the local provider")
		}
	case StorageGCS:
		if c.Storage.GCSBucket == "" {
			return fmt.Errorf("storage.gcs_bucket must be set for the gcs provider")
		}
	default:
		return fmt.Errorf("unknown storage provider %q", c.Storage.Provider)
	}
	if c.PubSub.TopicName != "" && c.PubSub.ProjectID == "" {
		return fmt.Errorf("pubsub.project_id must be set when pubsub.topic_name is set")
	}
	return nil
}

func isKnownPlatform(name string) bool {
	for _, p := range Platforms {
		if p == name {
			return true
		}
	}
	return false
}

// FetchTimeout is the per-request budget for outbound calls.
func (c Config) FetchTimeout() time.Duration {
	return time.Duration(c.HTTP.TimeoutSeconds) * time.Second
}

// BackoffStep is the linear retry increment for page fetches.
func (c Config) BackoffStep() time.Duration {
	return time.Duration(c.HTTP.BackoffStepMs) * time.Millisecond
}

// RequestTimeout bounds inbound API requests.
func (c Config) RequestTimeout() time.Duration {
	if c.Server.RequestTimeoutSeconds <= 0 {
		return 60 * time.Second
	}
	return time.Duration(c.Server.RequestTimeoutSeconds) * time.Second
}
