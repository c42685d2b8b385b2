// Package server builds the application's dependency graph from configuration
// and runs the HTTP service.
package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"

	"github.com/ovalfantasy/ovalsync/internal/api"
	"github.com/ovalfantasy/ovalsync/internal/clock/system"
	"github.com/ovalfantasy/ovalsync/internal/config"
	collyfetcher "github.com/ovalfantasy/ovalsync/internal/fetcher/colly"
	headlessfetcher "github.com/ovalfantasy/ovalsync/internal/fetcher/headless"
	"github.com/ovalfantasy/ovalsync/internal/hash/sha256"
	"github.com/ovalfantasy/ovalsync/internal/headless/detector"
	"github.com/ovalfantasy/ovalsync/internal/id/uuid"
	"github.com/ovalfantasy/ovalsync/internal/lineup"
	"github.com/ovalfantasy/ovalsync/internal/logging"
	"github.com/ovalfantasy/ovalsync/internal/metrics"
	"github.com/ovalfantasy/ovalsync/internal/policy/ratelimit"
	gcppublisher "github.com/ovalfantasy/ovalsync/internal/publisher/pubsub"
	"github.com/ovalfantasy/ovalsync/internal/scrape"
	"github.com/ovalfantasy/ovalsync/internal/socialstats"
	"github.com/ovalfantasy/ovalsync/internal/storage"
	memorystorage "github.com/ovalfantasy/ovalsync/internal/storage/memory"
	pgstore "github.com/ovalfantasy/ovalsync/internal/storage/postgres"
)

// App contains the application's dependencies.
type App struct {
	cfg       config.Config
	logger    *zap.Logger
	apiServer *api.Server
	lineups   *lineup.Service
	collector *socialstats.Collector

	statsDB   *pgstore.StatsStore
	headless  *headlessfetcher.Fetcher
	publisher *gcppublisher.Publisher
	blobClose func() error

	events scrape.Publisher
}

// Option adjusts how Build wires the application.
type Option func(*App)

// WithPublisher replaces the Pub/Sub publisher, for local runs and tests.
// Events are published only when pubsub.topic_name is set.
func WithPublisher(p scrape.Publisher) Option {
	return func(a *App) { a.events = p }
}

// Build creates the application's dependencies. Resources opened before a
// failure are released before the error is returned.
func Build(ctx context.Context, cfg config.Config, opts ...Option) (*App, error) {
	logger, err := logging.New(cfg.Logging.Development)
	if err != nil {
		return nil, fmt.Errorf("logger init failed: %w", err)
	}
	zap.ReplaceGlobals(logger)
	return BuildWithLogger(ctx, cfg, logger, opts...)
}

// BuildWithLogger is Build with a caller-supplied logger.
func BuildWithLogger(ctx context.Context, cfg config.Config, logger *zap.Logger, opts ...Option) (*App, error) {
	metrics.Init()
	app := &App{cfg: cfg, logger: logger, blobClose: func() error { return nil }}
	for _, opt := range opts {
		opt(app)
	}
	logger.Info("building application dependencies",
		zap.Int("server_port", cfg.Server.Port),
		zap.Strings("platforms", cfg.Social.Platforms),
		zap.String("storage", cfg.Storage.Provider),
	)

	if err := app.setup(ctx); err != nil {
		app.closeInfrastructure()
		return nil, err
	}
	return app, nil
}

func (a *App) setup(ctx context.Context) error {
	cfg := a.cfg
	clock := system.New()
	ids := uuid.New()

	limiter := ratelimit.New(ratelimit.Config{
		DefaultRPS:   cfg.HTTP.RateLimitRPS,
		DefaultBurst: cfg.HTTP.RateLimitBurst,
	})
	pages := collyfetcher.New(collyfetcher.Config{
		UserAgent:     cfg.HTTP.UserAgent,
		RespectRobots: cfg.HTTP.RespectRobots,
		Timeout:       cfg.FetchTimeout(),
		MaxAttempts:   cfg.HTTP.MaxAttempts,
		BackoffStep:   cfg.BackoffStep(),
		Limiter:       limiter,
	})
	a.logger.Info("using colly page fetcher", zap.String("user_agent", cfg.HTTP.UserAgent))

	blobs, err := a.setupStorage(ctx)
	if err != nil {
		return err
	}
	stats, err := a.setupDatabase(ctx)
	if err != nil {
		return err
	}
	publisher, err := a.setupPublisher(ctx)
	if err != nil {
		return err
	}

	lineupOpts := lineup.Options{
		URLTemplate: cfg.Lineup.URLTemplate,
		Fetcher:     pages,
		Publisher:   publisher,
		Topic:       cfg.PubSub.TopicName,
		Clock:       clock,
		IDs:         ids,
		Logger:      a.logger,
	}
	if cfg.Lineup.SnapshotFailures && blobs != nil {
		lineupOpts.Blobs = blobs
	}
	if cfg.Headless.Enabled {
		a.headless, err = headlessfetcher.NewChromedp(headlessfetcher.Config{
			MaxParallel:       cfg.Headless.MaxParallel,
			UserAgent:         cfg.HTTP.UserAgent,
			NavigationTimeout: time.Duration(cfg.Headless.NavTimeoutSec) * time.Second,
			WaitSelector:      cfg.Headless.WaitSelector,
			ScrollToBottom:    cfg.Headless.ScrollToBottom,
		})
		if err != nil {
			a.logger.Warn("headless fetcher init failed", zap.Error(err))
		} else {
			lineupOpts.Headless = a.headless
			lineupOpts.Detector = detector.NewHeuristic(cfg.Headless.PromotionThresh)
			a.logger.Info("using headless fetcher", zap.Int("max_parallel", cfg.Headless.MaxParallel))
		}
	}
	a.lineups, err = lineup.NewService(lineupOpts)
	if err != nil {
		return fmt.Errorf("lineup service init failed: %w", err)
	}

	a.logger.Info("social credentials",
		logging.Credential("twitter_bearer_token", cfg.Social.Twitter.BearerToken),
		logging.Credential("instagram_access_token", cfg.Social.Instagram.AccessToken),
		logging.Credential("facebook_access_token", cfg.Social.Facebook.AccessToken),
		logging.Credential("youtube_api_key", cfg.Social.YouTube.APIKey),
	)
	rest := socialstats.NewRestClient(socialstats.ClientConfig{
		UserAgent:   cfg.HTTP.UserAgent,
		Timeout:     cfg.FetchTimeout(),
		MaxAttempts: cfg.HTTP.MaxAttempts,
		BackoffStep: cfg.BackoffStep(),
		Limiter:     limiter,
	})
	collectorOpts := socialstats.CollectorOptions{
		Sources:   Sources(cfg.Social, rest, pages),
		Publisher: publisher,
		Topic:     cfg.PubSub.TopicName,
		Clock:     clock,
		IDs:       ids,
		Logger:    a.logger,
	}
	if stats != nil {
		collectorOpts.Store = stats
	}
	a.collector, err = socialstats.NewCollector(collectorOpts)
	if err != nil {
		return fmt.Errorf("stats collector init failed: %w", err)
	}

	apiKey := ""
	if cfg.Auth.Enabled {
		apiKey = cfg.Auth.APIKey
	}
	a.apiServer = api.NewServer(api.Options{
		Lineups:        a.lineups,
		Stats:          a.collector,
		Hasher:         sha256.New(),
		RequestIDs:     ids.MustNewID,
		Ready:          a.Ready,
		AllowedOrigins: cfg.CORS.AllowedOrigins,
		APIKey:         apiKey,
		RequestTimeout: cfg.RequestTimeout(),
		Logger:         a.logger,
	})
	return nil
}

// Sources builds one source per configured platform, in configuration order.
func Sources(cfg config.SocialConfig, rest *resty.Client, pages scrape.Fetcher) []socialstats.Source {
	sources := make([]socialstats.Source, 0, len(cfg.Platforms))
	for _, platform := range cfg.Platforms {
		switch platform {
		case socialstats.PlatformTwitter:
			sources = append(sources, socialstats.NewTwitter(rest, socialstats.TwitterOptions{
				BaseURL:     cfg.Twitter.BaseURL,
				BearerToken: cfg.Twitter.BearerToken,
				Username:    cfg.Twitter.Username,
				RecentPosts: cfg.RecentPosts,
			}))
		case socialstats.PlatformInstagram:
			sources = append(sources, socialstats.NewInstagram(rest, socialstats.GraphOptions{
				BaseURL:     cfg.Instagram.BaseURL,
				AccessToken: cfg.Instagram.AccessToken,
				ObjectID:    cfg.Instagram.AccountID,
				RecentPosts: cfg.RecentPosts,
			}))
		case socialstats.PlatformFacebook:
			sources = append(sources, socialstats.NewFacebook(rest, socialstats.GraphOptions{
				BaseURL:     cfg.Facebook.BaseURL,
				AccessToken: cfg.Facebook.AccessToken,
				ObjectID:    cfg.Facebook.PageID,
				RecentPosts: cfg.RecentPosts,
			}))
		case socialstats.PlatformYouTube:
			sources = append(sources, socialstats.NewYouTube(rest, socialstats.YouTubeOptions{
				BaseURL:   cfg.YouTube.BaseURL,
				APIKey:    cfg.YouTube.APIKey,
				ChannelID: cfg.YouTube.ChannelID,
			}))
		case socialstats.PlatformTikTok:
			sources = append(sources, socialstats.NewTikTok(pages, socialstats.TikTokOptions{
				BaseURL:  cfg.TikTok.BaseURL,
				Username: cfg.TikTok.Username,
			}))
		}
	}
	return sources
}

func (a *App) setupStorage(ctx context.Context) (scrape.BlobStore, error) {
	blobs, closeFn, err := storage.Open(ctx, a.cfg.Storage)
	if err != nil {
		return nil, fmt.Errorf("blob store init failed: %w", err)
	}
	a.blobClose = closeFn
	if blobs == nil {
		a.logger.Info("snapshot storage disabled")
		return nil, nil
	}
	a.logger.Info("using snapshot storage",
		zap.String("provider", a.cfg.Storage.Provider),
		zap.String("prefix", a.cfg.Storage.Prefix),
	)
	return blobs, nil
}

func (a *App) setupDatabase(ctx context.Context) (socialstats.StatsStore, error) {
	if a.cfg.DB.DSN == "" {
		a.logger.Warn("No DSN specified for database, keeping social stats in memory")
		return memorystorage.NewStatsStore(), nil
	}
	if a.cfg.DB.AutoMigrate {
		if err := pgstore.Migrate(ctx, a.cfg.DB.DSN); err != nil {
			return nil, fmt.Errorf("database migration failed: %w", err)
		}
		a.logger.Info("database migrations applied")
	}
	var err error
	a.statsDB, err = pgstore.NewStatsStore(ctx, pgstore.StatsStoreConfig{
		DSN:             a.cfg.DB.DSN,
		Table:           a.cfg.DB.Table,
		MaxConns:        a.cfg.DB.MaxConns,
		MinConns:        a.cfg.DB.MinConns,
		MaxConnLifetime: time.Duration(a.cfg.DB.MaxConnLifetimeMinutes) * time.Minute,
	})
	if err != nil {
		return nil, fmt.Errorf("stats store init failed: %w", err)
	}
	a.logger.Info("stats store initialized", zap.String("table", a.cfg.DB.Table))
	return a.statsDB, nil
}

func (a *App) setupPublisher(ctx context.Context) (scrape.Publisher, error) {
	if a.events != nil {
		a.logger.Info("using injected event publisher", zap.String("topic", a.cfg.PubSub.TopicName))
		return a.events, nil
	}
	if a.cfg.PubSub.TopicName == "" || a.cfg.PubSub.ProjectID == "" {
		a.logger.Warn("No Pub/Sub topic configured, events will not be published")
		return nil, nil
	}
	var err error
	a.publisher, err = gcppublisher.Open(ctx, a.cfg.PubSub.ProjectID)
	if err != nil {
		return nil, fmt.Errorf("pubsub client init failed: %w", err)
	}
	a.logger.Info(
		"Pub/Sub publisher initialized",
		zap.String("project", a.cfg.PubSub.ProjectID),
		zap.String("topic", a.cfg.PubSub.TopicName),
	)
	return a.publisher, nil
}

// Logger returns the application logger.
func (a *App) Logger() *zap.Logger { return a.logger }

// Handler returns the HTTP API handler.
func (a *App) Handler() http.Handler { return a.apiServer.Handler() }

// Lineups returns the lineup scraping service.
func (a *App) Lineups() api.LineupScraper { return a.lineups }

// Collector returns the social stats collector.
func (a *App) Collector() api.StatsCollector { return a.collector }

// Ready reports whether the database, when configured, is reachable.
func (a *App) Ready(ctx context.Context) error {
	if a.statsDB == nil {
		return nil
	}
	return a.statsDB.Ping(ctx)
}

// Run starts the HTTP server and blocks until the context is canceled or a
// termination signal arrives.
func (a *App) Run(ctx context.Context) error {
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", a.cfg.Server.Port),
		Handler:           a.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		a.logger.Info("http server started", zap.Int("port", a.cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.logger.Error("http server error", zap.Error(err))
			serveErr <- err
			stop()
		}
	}()

	<-ctx.Done()
	a.logger.Info("shutdown initiated")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		a.logger.Error("server shutdown error", zap.Error(err))
	}
	a.Close()

	select {
	case err := <-serveErr:
		return fmt.Errorf("http server: %w", err)
	default:
		return nil
	}
}

// Close releases every resource the App opened. It is safe to call more than once.
func (a *App) Close() {
	a.closeInfrastructure()
	if err := a.logger.Sync(); err != nil {
		a.logger.Debug("logger sync failed", zap.Error(err))
	}
	a.logger.Info("shutdown complete")
}

func (a *App) closeInfrastructure() {
	if a.headless != nil {
		a.headless.Close()
		a.headless = nil
	}
	if a.publisher != nil {
		if err := a.publisher.Close(); err != nil {
			a.logger.Warn("pubsub client close failed", zap.Error(err))
		}
		a.publisher = nil
	}
	if a.blobClose != nil {
		if err := a.blobClose(); err != nil {
			a.logger.Warn("blob store close failed", zap.Error(err))
		}
		a.blobClose = nil
	}
	if a.statsDB != nil {
		a.statsDB.Close()
		a.statsDB = nil
	}
}
