package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"

	"aidispatch/internal/domain"
	"aidispatch/internal/infra"
	"aidispatch/internal/infra/credentials"
)

var envKeys = map[domain.ProviderName]string{
	domain.ProviderReplicate: "REPLICATE_API_TOKEN",
	domain.ProviderStability: "STABILITY_API_TOKEN",
	domain.ProviderGemini:    "GCP_API_TOKEN",
	domain.ProviderRunway:    "RUNWAY_API_TOKEN",
}

func main() {
	_ = godotenv.Load()

	var (
		keyFlag      string
		providerFlag string
		listFlag     bool
	)
	flag.StringVar(&keyFlag, "key", "", "API token for the selected provider (falls back to the provider's environment variable)")
	flag.StringVar(&providerFlag, "provider", string(domain.DefaultProvider), "provider to configure (replicate, stability, gemini, runway)")
	flag.BoolVar(&listFlag, "list", false, "list providers with a stored token and exit")
	flag.Parse()

	dbURL := strings.TrimSpace(os.Getenv("DATABASE_URL"))
	if dbURL == "" {
		fmt.Fprintln(os.Stderr, "DATABASE_URL is required")
		os.Exit(1)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pool, err := pgxpool.New(ctx, dbURL)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to create pool: %v\n", err)
		os.Exit(1)
	}
	defer pool.Close()

	logger := infra.NewLogger("cli", "providerkey")
	store := credentials.NewStore(infra.NewSQLRunner(pool, logger))
	if err := store.EnsureSchema(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "failed to prepare integration_tokens: %v\n", err)
		os.Exit(1)
	}

	if listFlag {
		entries, err := store.List(ctx)
		if err != nil {
			fmt.Fprintf(os.Stderr, "failed to list tokens: %v\n", err)
			os.Exit(1)
		}
		for _, e := range entries {
			fmt.Printf("%s\tupdated %s\n", e.Provider, e.UpdatedAt.Format(time.RFC3339))
		}
		return
	}

	provider, ok := domain.ParseProvider(providerFlag)
	if !ok {
		fmt.Fprintf(os.Stderr, "unsupported provider %q\n", providerFlag)
		os.Exit(1)
	}
	envKey, ok := envKeys[provider]
	if !ok {
		fmt.Fprintf(os.Stderr, "%s does not use an API token\n", provider)
		os.Exit(1)
	}

	key := strings.TrimSpace(keyFlag)
	if key == "" {
		key = strings.TrimSpace(os.Getenv(envKey))
	}
	if key == "" {
		fmt.Fprintf(os.Stderr, "%s API token is required via -key or %s\n", provider, envKey)
		os.Exit(1)
	}

	props := map[string]any{"source": "providerkey", "stored_at": time.Now().UTC().Format(time.RFC3339)}
	if err := store.SetToken(ctx, provider, key, props); err != nil {
		fmt.Fprintf(os.Stderr, "failed to persist %s token: %v\n", provider, err)
		os.Exit(1)
	}

	fmt.Printf("%s API token stored successfully\n", strings.ToUpper(string(provider)))
}
