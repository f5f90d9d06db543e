package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"aidispatch/internal/infra"
	"aidispatch/internal/ratelimit"
)

func main() {
	_ = godotenv.Load()

	var (
		userFlag  string
		resetFlag bool
	)
	flag.StringVar(&userFlag, "user", "", "identity id whose hourly window to inspect")
	flag.BoolVar(&resetFlag, "reset", false, "delete the current window so the user starts from zero")
	flag.Parse()

	userID := strings.TrimSpace(userFlag)
	if userID == "" {
		exitWithError(errors.New("-user is required"))
	}

	cfg, err := infra.LoadConfig()
	if err != nil {
		exitWithError(err)
	}
	logger := infra.NewLogger("cli", "quota")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	var store ratelimit.Store
	switch cfg.RateLimitBackend {
	case "postgres":
		pool, err := infra.NewDBPool(ctx, cfg)
		if err != nil {
			exitWithError(err)
		}
		defer pool.Close()
		store = ratelimit.NewPostgresStore(infra.NewSQLRunner(pool, logger), cfg.RateLimitTable, nil)
	case "redis":
		rdb, err := infra.NewRedisClient(ctx, cfg)
		if err != nil {
			exitWithError(err)
		}
		defer rdb.Close()
		store = ratelimit.NewRedisStore(rdb, cfg.RateLimitTable)
	default:
		exitWithError(fmt.Errorf("rate limit backend %q keeps no shared state", cfg.RateLimitBackend))
	}

	limiter, err := ratelimit.NewLimiter(ratelimit.Options{
		Store:    store,
		Ceiling:  cfg.RateLimitPerHour,
		AdminIDs: cfg.AdminOverrideUserIDs,
		Logger:   &logger,
	})
	if err != nil {
		exitWithError(err)
	}

	window, err := limiter.Status(ctx, userID)
	if err != nil {
		exitWithError(err)
	}
	now := time.Now()
	fmt.Printf("user=%s admin=%t\n", userID, limiter.IsAdmin(userID))
	fmt.Printf("window_start=%s operations=%d/%d retry_after=%ds\n",
		time.Unix(window.WindowStart, 0).UTC().Format(time.RFC3339),
		window.Operations, limiter.Ceiling(), ratelimit.RetryAfter(now.Unix()))

	if resetFlag {
		if err := limiter.Reset(ctx, userID); err != nil {
			exitWithError(fmt.Errorf("failed to reset window: %w", err))
		}
		fmt.Println("window reset")
	}
}

func exitWithError(err error) {
	fmt.Fprintln(os.Stderr, err)
	os.Exit(1)
}
