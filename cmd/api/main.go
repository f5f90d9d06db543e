package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"

	"aidispatch/internal/dispatch"
	"aidispatch/internal/domain"
	"aidispatch/internal/http/handlers"
	httpapi "aidispatch/internal/http/httpapi"
	"aidispatch/internal/imageref"
	"aidispatch/internal/infra"
	"aidispatch/internal/infra/credentials"
	"aidispatch/internal/infra/geoip"
	"aidispatch/internal/infra/oidc"
	"aidispatch/internal/middleware"
	"aidispatch/internal/oplog"
	"aidispatch/internal/providers"
	"aidispatch/internal/ratelimit"
	"aidispatch/internal/storage"
)

func main() {
	_ = godotenv.Load()

	cfg, err := infra.LoadConfig()
	if err != nil {
		panic(err)
	}
	logger := infra.NewLogger(cfg.AppEnv, "api")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var (
		pool   *pgxpool.Pool
		runner *infra.SQLRunner
	)
	if cfg.DatabaseURL != "" {
		pool, err = infra.NewDBPool(ctx, cfg)
		if err != nil {
			logger.Fatal().Err(err).Msg("failed to connect database")
		}
		defer pool.Close()
		runner = infra.NewSQLRunner(pool, logger)
	}

	var rdb *redis.Client
	if cfg.RateLimitBackend == "redis" {
		rdb, err = infra.NewRedisClient(ctx, cfg)
		if err != nil {
			logger.Fatal().Err(err).Msg("failed to connect redis")
		}
		defer rdb.Close()
	}

	// Environment tokens win; integration_tokens fills the gaps.
	var creds *credentials.Store
	if runner != nil {
		creds = credentials.NewStore(runner)
	}
	token := func(p domain.ProviderName, fromEnv string) string {
		v, err := creds.Resolve(ctx, p, fromEnv)
		if err != nil {
			logger.Warn().Err(err).Str("provider", string(p)).Msg("credentials lookup failed")
		}
		return v
	}

	httpClient := &http.Client{Timeout: cfg.ProviderTimeout}
	registry, err := providers.NewRegistry(ctx, providers.Config{
		ReplicateToken: token(domain.ProviderReplicate, cfg.ReplicateAPIToken),
		StabilityToken: token(domain.ProviderStability, cfg.StabilityAPIToken),
		GeminiAPIKey:   token(domain.ProviderGemini, cfg.GeminiAPIKey),
		GeminiModel:    cfg.GeminiModel,
		RunwayToken:    token(domain.ProviderRunway, cfg.RunwayAPIToken),
		ResizeURL:      cfg.ResizeServiceURL,
		HTTPClient:     httpClient,
		Logger:         &logger,
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to build providers")
	}

	store, err := windowStore(ctx, cfg, runner, rdb, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to prepare rate limit store")
	}
	limiter, err := ratelimit.NewLimiter(ratelimit.Options{
		Store:    store,
		Ceiling:  cfg.RateLimitPerHour,
		AdminIDs: cfg.AdminOverrideUserIDs,
		Policy:   domain.ParseFailurePolicy(cfg.RateLimitFailurePolicy),
		Logger:   &logger,
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to build rate limiter")
	}

	var (
		logWriter oplog.Writer = oplog.NopWriter{}
		logReader oplog.Reader = oplog.NopReader{}
	)
	if cfg.OperationLogEnabled() {
		opLog := oplog.NewPostgresStore(runner, cfg.OperationLogTable)
		if err := opLog.EnsureSchema(ctx); err != nil {
			logger.Fatal().Err(err).Msg("failed to prepare operation log")
		}
		logWriter, logReader = opLog, opLog
	} else {
		logger.Warn().Msg("OPERATION_LOG_TABLE not configured, operation logging disabled")
	}

	fileStore, err := storage.NewFileStore(cfg.StoragePath)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to prepare storage")
	}

	dispatcher, err := dispatch.New(dispatch.Options{
		Providers: registry,
		Limiter:   limiter,
		Log:       logWriter,
		LogPolicy: domain.ParseFailurePolicy(cfg.OperationLogFailurePolicy),
		Saver:     storage.NewSaver(fileStore, imageref.NewResolver(nil), cfg.StorageBaseURL),
		Timeout:   cfg.ProviderTimeout,
		Logger:    &logger,
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to build dispatcher")
	}

	app := &handlers.App{
		Dispatcher: dispatcher,
		Catalog:    registry,
		Ledger:     logReader,
		Logger:     &logger,
		Ready: func(ctx context.Context) error {
			if pool != nil {
				if err := pool.Ping(ctx); err != nil {
					return err
				}
			}
			if rdb != nil {
				return rdb.Ping(ctx).Err()
			}
			return nil
		},
	}
	var countries geoip.Lookup
	if cfg.GeoIPDBPath != "" {
		db, err := geoip.Open(cfg.GeoIPDBPath)
		if err != nil {
			logger.Warn().Err(err).Msg("geoip disabled")
		} else {
			defer db.Close()
			countries = db
		}
	}

	router := httpapi.NewRouter(app, httpapi.Options{
		Verifier:       tokenVerifier(cfg),
		Countries:      countries,
		JWTSecret:      cfg.JWTSecret,
		AllowedOrigins: cfg.CORSAllowedOrigins,
		Logger:         logger,
		StaticDir:      fileStore.BasePath(),
	})

	server := infra.NewHTTPServer(cfg, router)
	go func() {
		logger.Info().
			Str("addr", server.Addr()).
			Dur("write_timeout", server.WriteTimeout()).
			Str("rate_limit_backend", cfg.RateLimitBackend).
			Strs("providers", providerNames(registry)).
			Msg("API listening")
		if err := server.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal().Err(err).Msg("http server failed")
		}
	}()

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("failed to shutdown server")
	}
	logger.Info().Msg("server stopped")
}

// windowStore builds the configured rate-limit store. Stores without native
// expiry get a background purge loop bound to ctx.
func windowStore(ctx context.Context, cfg *infra.Config, runner *infra.SQLRunner, rdb *redis.Client, logger infra.Logger) (ratelimit.Store, error) {
	switch cfg.RateLimitBackend {
	case "postgres":
		store := ratelimit.NewPostgresStore(runner, cfg.RateLimitTable, nil)
		if err := store.EnsureSchema(ctx); err != nil {
			return nil, err
		}
		go ratelimit.RunPurge(ctx, store, cfg.RateLimitPurgeInterval, logger)
		return store, nil
	case "redis":
		return ratelimit.NewRedisStore(rdb, cfg.RateLimitTable), nil
	default:
		logger.Warn().Msg("using in-memory rate limit store; quotas reset on restart")
		store := ratelimit.NewMemoryStore(nil)
		go ratelimit.RunPurge(ctx, store, cfg.RateLimitPurgeInterval, logger)
		return store, nil
	}
}

func providerNames(r *providers.Registry) []string {
	names := r.Names()
	out := make([]string, len(names))
	for i, n := range names {
		out[i] = string(n)
	}
	return out
}

// tokenVerifier accepts HS256 tokens when JWT_SECRET is set and RS256 tokens
// from OIDC_ISSUER when that is set.
func tokenVerifier(cfg *infra.Config) middleware.TokenVerifier {
	var vs middleware.Verifiers
	if cfg.JWTSecret != "" {
		vs = append(vs, middleware.HMACVerifier{Secret: cfg.JWTSecret})
	}
	if cfg.OIDCIssuer != "" {
		keys := oidc.NewKeySet(cfg.OIDCIssuer, &http.Client{Timeout: 10 * time.Second})
		vs = append(vs, middleware.OIDCVerifier{Keys: keys, Audience: cfg.OIDCAudience})
	}
	return vs
}
