package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"

	"aidispatch/internal/dispatch"
	"aidispatch/internal/domain"
	"aidispatch/internal/middleware"
	"aidispatch/internal/opserror"
)

const maxDispatchBody = 30 << 20

type dispatchError struct {
	Error    opserror.OperationErrorPayload `json:"error"`
	Friendly opserror.FriendlyError         `json:"friendly"`
}

// Dispatch runs one operation for the authenticated caller.
func (a *App) Dispatch(w http.ResponseWriter, r *http.Request) {
	id, ok := middleware.IdentityFromContext(r.Context())
	if !ok {
		a.error(w, http.StatusUnauthorized, "unauthorized", "missing identity")
		return
	}
	requestID := middleware.RequestIDFromContext(r.Context())

	var req dispatch.Request
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxDispatchBody)).Decode(&req); err != nil {
		a.writeOperationError(w, domain.InvalidInputf("invalid payload"), req, requestID)
		return
	}
	req.IdentityID = id.ID
	req.UserSub = id.Sub
	req.RequestID = requestID

	res, err := a.Dispatcher.Dispatch(r.Context(), req)
	if err != nil {
		a.writeOperationError(w, err, req, requestID)
		return
	}
	a.json(w, http.StatusOK, res)
}

func (a *App) writeOperationError(w http.ResponseWriter, err error, req dispatch.Request, requestID string) {
	provider := req.Provider
	if provider == "" {
		provider = string(domain.DefaultProvider)
	}
	payload := opserror.FromError(err, provider, req.Operation, requestID)
	if payload.Code == opserror.CodeRateLimit && payload.RetryAfter > 0 {
		w.Header().Set("Retry-After", strconv.Itoa(payload.RetryAfter))
	}
	a.json(w, opserror.HTTPStatus(payload.Code), dispatchError{
		Error:    payload,
		Friendly: opserror.ToFriendly(payload),
	})
}
