// Package oidctest serves a fake OpenID Connect issuer for tests.
package oidctest

import (
	"crypto/rsa"
	"encoding/base64"
	"encoding/json"
	"math/big"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
)

// Issuer is a running fake issuer.
type Issuer struct {
	*httptest.Server
	hits atomic.Int64
}

// Hits reports how many requests the issuer served.
func (i *Issuer) Hits() int64 { return i.hits.Load() }

// NewIssuer serves a discovery document and a JWKS holding keys. The server
// is closed when the test ends.
func NewIssuer(t testing.TB, keys map[string]*rsa.PublicKey) *Issuer {
	t.Helper()
	iss := &Issuer{}
	iss.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		iss.hits.Add(1)
		w.Header().Set("Content-Type", "application/json")
		switch r.URL.Path {
		case "/.well-known/openid-configuration":
			_ = json.NewEncoder(w).Encode(map[string]string{"issuer": iss.URL, "jwks_uri": iss.URL + "/keys"})
		case "/keys":
			set := []map[string]string{}
			for kid, key := range keys {
				set = append(set, map[string]string{
					"kid": kid,
					"kty": "RSA",
					"alg": "RS256",
					"n":   base64.RawURLEncoding.EncodeToString(key.N.Bytes()),
					"e":   base64.RawURLEncoding.EncodeToString(big.NewInt(int64(key.E)).Bytes()),
				})
			}
			_ = json.NewEncoder(w).Encode(map[string]any{"keys": set})
		default:
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(iss.Close)
	return iss
}
