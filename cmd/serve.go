package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"cloud.google.com/go/pubsub"
	gcstorage "cloud.google.com/go/storage"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/tenkpostcards/leadscout/internal/api"
	"github.com/tenkpostcards/leadscout/internal/archive"
	"github.com/tenkpostcards/leadscout/internal/config"
	"github.com/tenkpostcards/leadscout/internal/contacts"
	"github.com/tenkpostcards/leadscout/internal/events"
	"github.com/tenkpostcards/leadscout/internal/fetcher"
	collyfetcher "github.com/tenkpostcards/leadscout/internal/fetcher/colly"
	headlessfetcher "github.com/tenkpostcards/leadscout/internal/fetcher/headless"
	"github.com/tenkpostcards/leadscout/internal/geo"
	"github.com/tenkpostcards/leadscout/internal/junkfilter"
	"github.com/tenkpostcards/leadscout/internal/logging"
	"github.com/tenkpostcards/leadscout/internal/metrics"
	"github.com/tenkpostcards/leadscout/internal/places"
	"github.com/tenkpostcards/leadscout/internal/quota"
	"github.com/tenkpostcards/leadscout/internal/ratelimit"
	"github.com/tenkpostcards/leadscout/internal/resolver"
	"github.com/tenkpostcards/leadscout/internal/websearch"
)

// newServeCmd creates the 'serve' subcommand, which runs the HTTP API.
func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Starts the leadscout HTTP API",
		Long: `Wires every configured provider into the discovery, resolution, and
enrichment pipeline and serves the REST API until interrupted.`,
		RunE: runServeCommand,
	}
}

func runServeCommand(cmd *cobra.Command, _ []string) error {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logger, err := logging.New(cfg.Logging.Development)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer logger.Sync() //nolint:errcheck
	zap.ReplaceGlobals(logger)

	metrics.Init()

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	client := &http.Client{Timeout: 15 * time.Second}

	tracker, closeTracker, err := buildQuotaTracker(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer closeTracker()

	geoCache := buildGeoCache(cfg, logger)

	here := places.NewHere(cfg.Providers.HereAPIKey, client, tracker, geoCache, logger)
	searchers := map[string]places.Searcher{
		"here":       here,
		"foursquare": places.NewFoursquare(cfg.Providers.FoursquareAPIKey, client, tracker, logger),
		"google":     places.NewGooglePlaces(cfg.Providers.GooglePlacesKey, client, tracker, logger),
		"outscraper": places.NewOutscraper(cfg.Providers.OutscraperAPIKey, client, tracker, logger),
		"yelp":       places.NewYelp(cfg.Providers.YelpAPIKey, client, tracker, logger),
	}

	filter := junkfilter.New(junkfilter.Options{
		MinNameTokens: cfg.Filter.MinNameTokens,
		MaxPathDepth:  cfg.Filter.MaxPathDepth,
	})
	res := resolver.New(buildWebSearchProviders(cfg, client, tracker), filter, logger)

	crawlFetch := collyfetcher.New(collyfetcher.Config{
		UserAgent: cfg.Fetch.UserAgent,
		Timeout:   time.Duration(cfg.Fetch.TimeoutSeconds) * time.Second,
		MaxRate:   float64(cfg.Fetch.PerDomainRPS),
	})

	var renderer fetcher.Fetcher
	if cfg.Headless.Enabled {
		headless, herr := headlessfetcher.NewChromedp(headlessfetcher.Config{
			UserAgent:         cfg.Fetch.UserAgent,
			NavigationTimeout: time.Duration(cfg.Headless.NavTimeoutSec) * time.Second,
		})
		if herr != nil {
			logger.Warn("headless fetcher init failed", zap.Error(herr))
		} else {
			renderer = headless
			defer headless.Close()
		}
	}

	store, err := buildArchive(ctx, cfg)
	if err != nil {
		return err
	}

	var verifier contacts.Verifier
	if cfg.Providers.HunterAPIKey != "" {
		verifier = contacts.NewHunter(cfg.Providers.HunterAPIKey, client, tracker, logger)
	} else {
		verifier = contacts.FormatVerifier{Lookup: contacts.DefaultMXLookup, Logger: logger}
	}

	extractor := contacts.NewExtractor(crawlFetch, renderer, verifier, store, logger.Named("contacts"))
	extractor.SetPromoteThreshold(cfg.Headless.MinHTMLBytes)

	publisher, closePublisher, err := buildPublisher(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer closePublisher()

	limiter := ratelimit.New(ratelimit.Config{
		DefaultLimit:  cfg.RateLimit.DefaultLimit,
		DefaultWindow: time.Duration(cfg.RateLimit.WindowSeconds) * time.Second,
	})

	server := api.NewServer(api.Deps{
		Searchers: searchers,
		Radius:    here,
		Resolver:  res,
		Extractor: extractor,
		Verifier:  verifier,
		Zip:       geo.NewZipClient(cfg.Providers.ZipAPIKey, client),
		Limiter:   limiter,
		Publisher: publisher,
		Filter:    filter,
		Client:    client,
		Logger:    logger.Named("api"),
	}, cfg)

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:           server.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		logger.Info("http server started", zap.Int("port", cfg.Server.Port))
		if serr := srv.ListenAndServe(); serr != nil && !errors.Is(serr, http.ErrServerClosed) {
			logger.Error("http server error", zap.Error(serr))
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutdown initiated")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown error", zap.Error(err))
	}
	logger.Info("shutdown complete")
	return nil
}

// buildQuotaTracker backs the tracker with Postgres when a DSN is configured so
// monthly counts survive restarts, and with memory otherwise.
func buildQuotaTracker(ctx context.Context, cfg config.Config, logger *zap.Logger) (*quota.Tracker, func(), error) {
	limits := cfg.Quota.Limits
	if len(limits) == 0 {
		limits = quota.DefaultLimits()
	}

	if cfg.DB.DSN == "" {
		tracker := quota.New(quota.NewMemoryStore(), limits, cfg.Quota.SafetyBuffer, logger)
		return tracker, func() {}, nil
	}

	pool, err := pgxpool.New(ctx, cfg.DB.DSN)
	if err != nil {
		return nil, nil, fmt.Errorf("connect quota database: %w", err)
	}
	tracker := quota.New(quota.NewPostgresStore(pool), limits, cfg.Quota.SafetyBuffer, logger)
	return tracker, pool.Close, nil
}

func buildGeoCache(cfg config.Config, logger *zap.Logger) geo.Cache {
	if cfg.Redis.Addr == "" {
		return geo.NewMemoryCache()
	}
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	logger.Info("geocode cache backed by redis", zap.String("addr", cfg.Redis.Addr))
	return geo.NewRedisCache(rdb)
}

// buildWebSearchProviders returns the resolution cascade in cost order:
// cheapest and most accurate first.
func buildWebSearchProviders(cfg config.Config, client *http.Client, gate websearch.QuotaGate) []websearch.Provider {
	return []websearch.Provider{
		websearch.NewSerper(cfg.Providers.SerperAPIKey, client, gate),
		websearch.NewGoogleCSE(cfg.Providers.GoogleCSEKey, cfg.Providers.GoogleCSECX, client, gate),
		websearch.NewBrave(cfg.Providers.BraveAPIKey, client, gate),
		websearch.NewScrapingdog(cfg.Providers.ScrapingdogAPIKey, client, gate),
	}
}

func buildArchive(ctx context.Context, cfg config.Config) (archive.Store, error) {
	switch cfg.Archive.Kind {
	case "gcs":
		gcs, err := gcstorage.NewClient(ctx)
		if err != nil {
			return nil, fmt.Errorf("init gcs client: %w", err)
		}
		return archive.NewGCS(gcs, cfg.Archive.GCSBucket)
	case "local":
		return archive.NewLocal(cfg.Archive.LocalDir)
	case "memory":
		return archive.NewMemory(), nil
	case "", "none":
		return archive.Noop{}, nil
	default:
		return nil, fmt.Errorf("unknown archive kind %q", cfg.Archive.Kind)
	}
}

func buildPublisher(ctx context.Context, cfg config.Config, logger *zap.Logger) (events.Publisher, func(), error) {
	if cfg.PubSub.ProjectID == "" || cfg.PubSub.TopicName == "" {
		return events.Noop{}, func() {}, nil
	}
	client, err := pubsub.NewClient(ctx, cfg.PubSub.ProjectID)
	if err != nil {
		return nil, nil, fmt.Errorf("init pubsub client: %w", err)
	}
	pub, err := events.NewPubSub(client, cfg.PubSub.TopicName)
	if err != nil {
		return nil, nil, err
	}
	logger.Info("event publisher backed by pubsub",
		zap.String("project", cfg.PubSub.ProjectID), zap.String("topic", cfg.PubSub.TopicName))
	return pub, func() {
		pub.Stop()
		client.Close() //nolint:errcheck
	}, nil
}
