package handlers

import (
	"context"
	"encoding/json"
	"io"
	"net/http"

	"github.com/rs/zerolog"

	"aidispatch/internal/dispatch"
	"aidispatch/internal/domain"
	"aidispatch/internal/infra"
	"aidispatch/internal/oplog"
	"aidispatch/internal/providers"
)

// Dispatcher runs one AI operation.
type Dispatcher interface {
	Dispatch(ctx context.Context, req dispatch.Request) (*dispatch.Result, error)
}

// ProviderCatalog exposes the registered providers.
type ProviderCatalog interface {
	Names() []domain.ProviderName
	Provider(name string) (providers.AIProvider, error)
}

type App struct {
	Dispatcher Dispatcher
	Catalog    ProviderCatalog
	Ledger     oplog.Reader
	Logger     *infra.Logger
	// Ready reports dependency health; nil means always ready.
	Ready func(ctx context.Context) error
}

func (a *App) json(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func (a *App) error(w http.ResponseWriter, code int, errCode, message string) {
	a.json(w, code, map[string]any{"error": map[string]string{"code": errCode, "message": message}})
}

func (a *App) logger() *infra.Logger {
	if a.Logger == nil {
		l := infra.Logger(zerolog.New(io.Discard))
		return &l
	}
	return a.Logger
}
