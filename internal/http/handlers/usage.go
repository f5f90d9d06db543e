package handlers

import (
	"net/http"
	"strconv"

	"aidispatch/internal/middleware"
	"aidispatch/internal/oplog"
)

// Usage returns the caller's operation log, newest first.
func (a *App) Usage(w http.ResponseWriter, r *http.Request) {
	id, ok := middleware.IdentityFromContext(r.Context())
	if !ok {
		a.error(w, http.StatusUnauthorized, "unauthorized", "missing identity")
		return
	}
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	reader := a.Ledger
	if reader == nil {
		reader = oplog.NopReader{}
	}
	entries, err := reader.List(r.Context(), id.ID, limit)
	if err != nil {
		a.logger().Error().Err(err).Str("identity_id", id.ID).Msg("usage: list failed")
		a.error(w, http.StatusInternalServerError, "internal", "failed to load usage")
		return
	}
	if entries == nil {
		entries = []oplog.Entry{}
	}
	a.json(w, http.StatusOK, map[string]any{
		"items":        entries,
		"totalCostUsd": oplog.TotalCost(entries),
	})
}
