package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"aidispatch/internal/dispatch"
	"aidispatch/internal/domain"
	"aidispatch/internal/middleware"
	"aidispatch/internal/oplog"
	"aidispatch/internal/providers"
	"aidispatch/internal/providers/capability"
	"aidispatch/internal/ratelimit"
)

type stubDispatcher struct {
	got dispatch.Request
	res *dispatch.Result
	err error
}

func (s *stubDispatcher) Dispatch(_ context.Context, req dispatch.Request) (*dispatch.Result, error) {
	s.got = req
	return s.res, s.err
}

type stubLedger struct {
	entries []oplog.Entry
	err     error
}

func (s stubLedger) List(context.Context, string, int) ([]oplog.Entry, error) {
	return s.entries, s.err
}

func authed(req *http.Request) *http.Request {
	ctx := middleware.ContextWithIdentity(req.Context(), middleware.Identity{ID: "id-1", Sub: "sub-1"})
	return req.WithContext(ctx)
}

func TestDispatchFillsIdentity(t *testing.T) {
	d := &stubDispatcher{res: &dispatch.Result{Result: "https://x/out.png", Provider: domain.ProviderReplicate}}
	app := &App{Dispatcher: d}

	req := authed(httptest.NewRequest(http.MethodPost, "/v1/dispatch", strings.NewReader(`{"operation":"generateImage","prompt":"a fox","identityId":"spoofed"}`)))
	rr := httptest.NewRecorder()
	app.Dispatch(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d body=%s", rr.Code, rr.Body.String())
	}
	if d.got.IdentityID != "id-1" || d.got.UserSub != "sub-1" || d.got.Prompt != "a fox" {
		t.Fatalf("unexpected request %+v", d.got)
	}
}

func TestDispatchRateLimitResponse(t *testing.T) {
	d := &stubDispatcher{err: &domain.RateLimitError{RetryAfter: 125, Limit: 10}}
	app := &App{Dispatcher: d}

	rr := httptest.NewRecorder()
	app.Dispatch(rr, authed(httptest.NewRequest(http.MethodPost, "/v1/dispatch", strings.NewReader(`{"operation":"generateImage","prompt":"p"}`))))

	if rr.Code != http.StatusTooManyRequests || rr.Header().Get("Retry-After") != "125" {
		t.Fatalf("status=%d retry-after=%q", rr.Code, rr.Header().Get("Retry-After"))
	}
	var body dispatchError
	if err := json.NewDecoder(rr.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.Error.Code != "RATE_LIMIT" || body.Error.Provider != "replicate" {
		t.Fatalf("unexpected payload %+v", body.Error)
	}
	if !strings.Contains(body.Friendly.UserMessage, "about 3 min") || !body.Friendly.CanRetry {
		t.Fatalf("unexpected friendly %+v", body.Friendly)
	}
}

func TestDispatchProviderErrorResponse(t *testing.T) {
	d := &stubDispatcher{err: fmt.Errorf("gemini: no image: %w", domain.ErrProviderFailure)}
	app := &App{Dispatcher: d}

	rr := httptest.NewRecorder()
	app.Dispatch(rr, authed(httptest.NewRequest(http.MethodPost, "/v1/dispatch", strings.NewReader(`{"operation":"generateImage","provider":"gemini","prompt":"p"}`))))

	if rr.Code != http.StatusBadGateway {
		t.Fatalf("status = %d", rr.Code)
	}
	var body dispatchError
	_ = json.NewDecoder(rr.Body).Decode(&body)
	if body.Friendly.CanRetry || !strings.Contains(body.Friendly.UserMessage, "Gemini") {
		t.Fatalf("unexpected friendly %+v", body.Friendly)
	}
}

func TestDispatchRejectsBadJSON(t *testing.T) {
	app := &App{Dispatcher: &stubDispatcher{}}
	rr := httptest.NewRecorder()
	app.Dispatch(rr, authed(httptest.NewRequest(http.MethodPost, "/v1/dispatch", strings.NewReader(`{`))))
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("status = %d", rr.Code)
	}
}

func TestDispatchRequiresIdentity(t *testing.T) {
	app := &App{Dispatcher: &stubDispatcher{}}
	rr := httptest.NewRecorder()
	app.Dispatch(rr, httptest.NewRequest(http.MethodPost, "/v1/dispatch", strings.NewReader(`{}`)))
	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d", rr.Code)
	}
}

func TestProvidersListsOperationMap(t *testing.T) {
	registry := providers.NewRegistryWith(map[domain.ProviderName]providers.AIProvider{
		domain.ProviderReplicate: capability.Base{Name: domain.ProviderReplicate, Endpoint: "https://api.replicate.com/v1"},
		domain.ProviderClipDrop:  capability.Base{Name: domain.ProviderClipDrop},
	})
	app := &App{Catalog: registry}

	rr := httptest.NewRecorder()
	app.Providers(rr, httptest.NewRequest(http.MethodGet, "/v1/providers", nil))

	var body struct {
		Items []providerView `json:"items"`
	}
	if err := json.NewDecoder(rr.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(body.Items) != 2 {
		t.Fatalf("items = %d", len(body.Items))
	}
	rep := body.Items[0]
	if rep.Name != domain.ProviderReplicate || rep.DisplayName != "Replicate" || !rep.Default || len(rep.Operations) != 2 {
		t.Fatalf("unexpected replicate view %+v", rep)
	}
	if body.Items[1].Name != domain.ProviderClipDrop || len(body.Items[1].Operations) != 0 {
		t.Fatalf("clipdrop should list no operations: %+v", body.Items[1])
	}
}

func TestUsageReturnsTotal(t *testing.T) {
	app := &App{Ledger: stubLedger{entries: []oplog.Entry{{CostUSD: 0.25}, {CostUSD: 0.0052}}}}
	rr := httptest.NewRecorder()
	app.Usage(rr, authed(httptest.NewRequest(http.MethodGet, "/v1/usage?limit=5", nil)))

	var body struct {
		Items []oplog.Entry `json:"items"`
		Total float64       `json:"totalCostUsd"`
	}
	if err := json.NewDecoder(rr.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(body.Items) != 2 || math.Abs(body.Total-0.2552) > 1e-9 {
		t.Fatalf("unexpected usage %+v", body)
	}

	app = &App{Ledger: stubLedger{err: errors.New("db down")}}
	rr = httptest.NewRecorder()
	app.Usage(rr, authed(httptest.NewRequest(http.MethodGet, "/v1/usage", nil)))
	if rr.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d", rr.Code)
	}
}

func TestHealth(t *testing.T) {
	rr := httptest.NewRecorder()
	(&App{}).Health(rr, httptest.NewRequest(http.MethodGet, "/v1/healthz", nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d", rr.Code)
	}

	app := &App{Ready: func(context.Context) error { return errors.New("db down") }}
	rr = httptest.NewRecorder()
	app.Health(rr, httptest.NewRequest(http.MethodGet, "/v1/healthz", nil))
	if rr.Code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d", rr.Code)
	}
}

type styleProvider struct {
	capability.Base
	style string
}

func (p *styleProvider) StyleTransfer(_ context.Context, _, styleImageRef string) (string, error) {
	p.style = styleImageRef
	return "data:image/png;base64,QUJD", nil
}

func TestDispatchStyleTransferBody(t *testing.T) {
	stability := &styleProvider{Base: capability.Base{Name: domain.ProviderStability}}
	limiter, err := ratelimit.NewLimiter(ratelimit.Options{Store: ratelimit.NewMemoryStore(time.Now)})
	if err != nil {
		t.Fatalf("new limiter: %v", err)
	}
	d, err := dispatch.New(dispatch.Options{
		Providers: providers.NewRegistryWith(map[domain.ProviderName]providers.AIProvider{domain.ProviderStability: stability}),
		Limiter:   limiter,
	})
	if err != nil {
		t.Fatalf("new dispatcher: %v", err)
	}
	app := &App{Dispatcher: d}

	body := `{"operation":"styleTransfer","provider":"stability","prompt":"p","styleImageUrl":"https://x/style.png"}`
	rr := httptest.NewRecorder()
	app.Dispatch(rr, authed(httptest.NewRequest(http.MethodPost, "/v1/dispatch", strings.NewReader(body))))

	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d body=%s", rr.Code, rr.Body.String())
	}
	if stability.style != "https://x/style.png" {
		t.Fatalf("style image = %q", stability.style)
	}
}
