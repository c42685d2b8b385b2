package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestLoadWithFileOverrides(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	configYAML := `
server:
  port: 9090
auth:
  enabled: true
  api_key: secret
cors:
  allowed_origins: ["https://fantasy.example"]
http:
  user_agent: test-agent
  timeout_seconds: 45
  max_attempts: 4
  backoff_step_ms: 100
lineup:
  url_template: "https://rugby.example/match/{match_id}/teams"
social:
  platforms: [twitter, youtube]
  recent_posts: 5
  youtube:
    channel_id: UC123
storage:
  provider: local
  local_dir: /tmp/snapshots
logging:
  development: true
`
	if err := os.WriteFile(path, []byte(configYAML), 0o600); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Server.Port != 9090 {
		t.Fatalf("expected port 9090, got %d", cfg.Server.Port)
	}
	if !cfg.Auth.Enabled || cfg.Auth.APIKey != "secret" {
		t.Fatalf("expected auth enabled with secret key")
	}
	if len(cfg.CORS.AllowedOrigins) != 1 || cfg.CORS.AllowedOrigins[0] != "https://fantasy.example" {
		t.Fatalf("unexpected cors origins: %v", cfg.CORS.AllowedOrigins)
	}
	if cfg.HTTP.MaxAttempts != 4 || cfg.HTTP.UserAgent != "test-agent" {
		t.Fatalf("expected http overrides to apply: %+v", cfg.HTTP)
	}
	if got := cfg.FetchTimeout(); got != 45*time.Second {
		t.Fatalf("expected fetch timeout 45s, got %v", got)
	}
	if got := cfg.BackoffStep(); got != 100*time.Millisecond {
		t.Fatalf("expected backoff step 100ms, got %v", got)
	}
	if strings.Join(cfg.Social.Platforms, ",") != "twitter,youtube" {
		t.Fatalf("unexpected platforms: %v", cfg.Social.Platforms)
	}
	if cfg.Social.YouTube.ChannelID != "UC123" || cfg.Social.RecentPosts != 5 {
		t.Fatalf("expected social overrides to apply: %+v", cfg.Social)
	}
	if cfg.Storage.Provider != StorageLocal || cfg.Storage.LocalDir != "/tmp/snapshots" {
		t.Fatalf("expected storage overrides: %+v", cfg.Storage)
	}
	if !cfg.Logging.Development {
		t.Fatalf("expected development logging")
	}
}

func TestLoadDefaults(t *testing.T) {
	t.Parallel()

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.HTTP.MaxAttempts != 3 || cfg.HTTP.BackoffStepMs != 500 {
		t.Fatalf("unexpected retry defaults: %+v", cfg.HTTP)
	}
	if cfg.DB.Table != "social_stats" {
		t.Fatalf("expected default table social_stats, got %q", cfg.DB.Table)
	}
	if len(cfg.Social.Platforms) != len(Platforms) {
		t.Fatalf("expected all platforms by default, got %v", cfg.Social.Platforms)
	}
	if len(cfg.CORS.AllowedOrigins) != 1 || cfg.CORS.AllowedOrigins[0] != "*" {
		t.Fatalf("expected permissive cors default, got %v", cfg.CORS.AllowedOrigins)
	}
}

func TestLoadReadsCredentialsFromEnvironment(t *testing.T) {
	t.Setenv("TWITTER_BEARER_TOKEN", "bearer-from-env")
	t.Setenv("DATABASE_URL", "postgres://localhost/ovalsync")
	t.Setenv("OVALSYNC_SOCIAL_TIKTOK_USERNAME", "ovalfantasy")
	t.Setenv("PORT", "7070")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Social.Twitter.BearerToken != "bearer-from-env" {
		t.Fatalf("expected bearer token from env, got %q", cfg.Social.Twitter.BearerToken)
	}
	if cfg.DB.DSN != "postgres://localhost/ovalsync" {
		t.Fatalf("expected DATABASE_URL to populate db.dsn, got %q", cfg.DB.DSN)
	}
	if cfg.Social.TikTok.Username != "ovalfantasy" {
		t.Fatalf("expected prefixed env to populate tiktok username, got %q", cfg.Social.TikTok.Username)
	}
	if cfg.Server.Port != 7070 {
		t.Fatalf("expected PORT override, got %d", cfg.Server.Port)
	}
}

func TestValidate(t *testing.T) {
	t.Parallel()

	base := func() Config {
		return Config{
			Server:  ServerConfig{Port: 8080},
			HTTP:    HTTPConfig{TimeoutSeconds: 10, MaxAttempts: 3},
			Lineup:  LineupConfig{URLTemplate: "https://x.example/{match_id}"},
			Storage: StorageConfig{Provider: StorageNone},
		}
	}

	testCases := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"valid", func(*Config) {}, ""},
		{"bad port", func(c *Config) { c.Server.Port = 0 }, "server.port"},
		{"no attempts", func(c *Config) { c.HTTP.MaxAttempts = 0 }, "http.max_attempts"},
		{"auth without key", func(c *Config) { c.Auth.Enabled = true }, "auth.api_key"},
		{"template without placeholder", func(c *Config) { c.Lineup.URLTemplate = "https://x.example" }, "{match_id}"},
		{"unknown platform", func(c *Config) { c.Social.Platforms = []string{"myspace"} }, "unknown platform"},
		{"gcs without bucket", func(c *Config) { c.Storage.Provider = StorageGCS }, "gcs_bucket"},
		{"unknown storage", func(c *Config) { c.Storage.Provider = "s3" }, "unknown storage provider"},
		{"topic without project", func(c *Config) { c.PubSub.TopicName = "stats" }, "pubsub.project_id"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			cfg := base()
			tc.mutate(&cfg)
			err := cfg.Validate()
			if tc.wantErr == "" {
				if err != nil {
					t.Fatalf("Validate() error = %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tc.wantErr) {
				t.Fatalf("Validate() error = %v, want containing %q", err, tc.wantErr)
			}
		})
	}
}
