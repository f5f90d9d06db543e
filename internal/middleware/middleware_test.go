package middleware

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"net/netip"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/rs/zerolog"
)

const testSecret = "test-secret"

func identityEcho(t *testing.T) http.Handler {
	t.Helper()
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id, ok := IdentityFromContext(r.Context())
		if !ok {
			t.Errorf("identity missing from context")
		}
		_, _ = w.Write([]byte(id.ID + "|" + id.Sub))
	})
}

func signed(t *testing.T, claims TokenClaims) string {
	t.Helper()
	token, err := SignJWT(testSecret, claims)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	return token
}

func TestAuthJWTPrefersIdentityClaim(t *testing.T) {
	token := signed(t, TokenClaims{
		IdentityID:       "us-east-1:abc",
		RegisteredClaims: jwt.RegisteredClaims{Subject: "user-1", ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour))},
	})
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()

	AuthJWT(testSecret)(identityEcho(t)).ServeHTTP(rec, req)

	if rec.Code != http.StatusOK || rec.Body.String() != "us-east-1:abc|user-1" {
		t.Fatalf("status=%d body=%q", rec.Code, rec.Body.String())
	}
}

func TestAuthJWTFallsBackToSubject(t *testing.T) {
	token := signed(t, TokenClaims{RegisteredClaims: jwt.RegisteredClaims{Subject: "user-2"}})
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "bearer "+token)
	rec := httptest.NewRecorder()

	AuthJWT(testSecret)(identityEcho(t)).ServeHTTP(rec, req)

	if rec.Body.String() != "user-2|user-2" {
		t.Fatalf("body = %q", rec.Body.String())
	}
}

func TestAuthJWTRejects(t *testing.T) {
	expired := signed(t, TokenClaims{RegisteredClaims: jwt.RegisteredClaims{
		Subject:   "user-3",
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Minute)),
	}})
	other, _ := SignJWT("other-secret", TokenClaims{RegisteredClaims: jwt.RegisteredClaims{Subject: "user-3"}})
	noSubject := signed(t, TokenClaims{})

	for name, header := range map[string]string{
		"missing":    "",
		"scheme":     "Basic abc",
		"expired":    "Bearer " + expired,
		"signature":  "Bearer " + other,
		"no subject": "Bearer " + noSubject,
	} {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		if header != "" {
			req.Header.Set("Authorization", header)
		}
		rec := httptest.NewRecorder()
		AuthJWT(testSecret)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			t.Errorf("%s: handler should not run", name)
		})).ServeHTTP(rec, req)
		if rec.Code != http.StatusUnauthorized {
			t.Fatalf("%s: status = %d", name, rec.Code)
		}
	}
}

func TestRequestIDAndLogger(t *testing.T) {
	var buf bytes.Buffer
	h := RequestID(Logger(zerolog.New(&buf))(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if RequestIDFromContext(r.Context()) != "rid-1" {
			t.Errorf("request id not propagated")
		}
		w.WriteHeader(http.StatusTeapot)
	})))
	req := httptest.NewRequest(http.MethodGet, "/v1/healthz", nil)
	req.Header.Set("X-Request-ID", "rid-1")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Header().Get("X-Request-ID") != "rid-1" {
		t.Fatalf("response header missing request id")
	}
	line := buf.String()
	if !strings.Contains(line, `"request_id":"rid-1"`) || !strings.Contains(line, `"status":418`) {
		t.Fatalf("unexpected access log %s", line)
	}
}

func TestCORS(t *testing.T) {
	h := CORS([]string{"https://app.example"})(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))

	req := httptest.NewRequest(http.MethodOptions, "/v1/dispatch", nil)
	req.Header.Set("Origin", "https://app.example")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusNoContent || rec.Header().Get("Access-Control-Allow-Origin") != "https://app.example" {
		t.Fatalf("preflight not handled: %d %v", rec.Code, rec.Header())
	}

	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Origin", "https://evil.example")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Header().Get("Access-Control-Allow-Origin") != "" {
		t.Fatalf("unexpected origin allowed")
	}
}

func TestRequestIDReplacesMalformedHeader(t *testing.T) {
	var got string
	h := RequestID(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = RequestIDFromContext(r.Context())
	}))
	for _, bad := range []string{"", "has space", "line\nbreak", strings.Repeat("a", 200)} {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set(RequestIDHeader, bad)
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		if got == bad || len(got) != 36 {
			t.Fatalf("inbound id %q should be replaced, got %q", bad, got)
		}
		if rec.Header().Get(RequestIDHeader) != got {
			t.Fatalf("response header %q does not match context %q", rec.Header().Get(RequestIDHeader), got)
		}
	}
}

func TestCORSWildcardOmitsCredentials(t *testing.T) {
	h := CORS([]string{"*"})(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	req := httptest.NewRequest(http.MethodOptions, "/v1/dispatch", nil)
	req.Header.Set("Origin", "https://anything.example")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Header().Get("Access-Control-Allow-Origin") != "https://anything.example" {
		t.Fatalf("wildcard should echo origin, got %v", rec.Header())
	}
	if rec.Header().Get("Access-Control-Allow-Credentials") != "" {
		t.Fatalf("wildcard must not allow credentials")
	}
	if rec.Header().Get("Access-Control-Max-Age") != "600" {
		t.Fatalf("missing preflight max age")
	}
}

type fakeCountries map[string]string

func (f fakeCountries) Country(addr netip.Addr) (string, error) {
	return f[addr.String()], nil
}

func TestCountryTagsAccessLog(t *testing.T) {
	var buf bytes.Buffer
	h := Country(fakeCountries{"81.2.69.142": "GB"})(Logger(zerolog.New(&buf))(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {})))

	req := httptest.NewRequest(http.MethodGet, "/v1/providers", nil)
	req.RemoteAddr = "81.2.69.142:4000"
	h.ServeHTTP(httptest.NewRecorder(), req)
	if !strings.Contains(buf.String(), `"country":"GB"`) {
		t.Fatalf("access log missing country: %s", buf.String())
	}

	buf.Reset()
	req.RemoteAddr = "10.0.0.1:4000"
	h.ServeHTTP(httptest.NewRecorder(), req)
	if strings.Contains(buf.String(), "country") {
		t.Fatalf("unknown address should not be tagged: %s", buf.String())
	}
}

func TestCountryNilLookupPassesThrough(t *testing.T) {
	called := false
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { called = true })
	Country(nil)(next).ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))
	if !called {
		t.Fatalf("handler not called")
	}
}
