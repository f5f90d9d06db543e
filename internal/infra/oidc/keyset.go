// Package oidc fetches and caches the RSA signing keys an OpenID Connect
// issuer publishes, for verifying identity tokens.
package oidc

import (
	"context"
	"crypto/rsa"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"math/big"
	"net/http"
	"strings"
	"sync"
	"time"
)

const (
	refreshAfter = time.Hour
	// minRefetch bounds how often unknown key ids can trigger a fetch.
	minRefetch = time.Minute
)

var ErrUnknownKey = errors.New("oidc: unknown key id")

type jwks struct {
	Keys []jwk `json:"keys"`
}

type jwk struct {
	Kid string `json:"kid"`
	Kty string `json:"kty"`
	Alg string `json:"alg"`
	N   string `json:"n"`
	E   string `json:"e"`
}

// KeySet caches an issuer's keys and refetches them hourly, or when an
// unknown key id shows up at most once a minute.
type KeySet struct {
	issuer     string
	httpClient *http.Client
	now        func() time.Time

	mu      sync.RWMutex
	cache   map[string]*rsa.PublicKey
	fetched time.Time
}

func NewKeySet(issuer string, client *http.Client) *KeySet {
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	return &KeySet{
		issuer:     strings.TrimRight(issuer, "/"),
		httpClient: client,
		now:        time.Now,
		cache:      make(map[string]*rsa.PublicKey),
	}
}

// Issuer returns the normalized issuer URL.
func (k *KeySet) Issuer() string { return k.issuer }

// Key returns the public key for kid.
func (k *KeySet) Key(ctx context.Context, kid string) (*rsa.PublicKey, error) {
	if err := k.ensureKeys(ctx); err != nil {
		return nil, err
	}
	if key, ok := k.keyFor(kid); ok {
		return key, nil
	}
	k.mu.RLock()
	recent := k.now().Sub(k.fetched) < minRefetch
	k.mu.RUnlock()
	if !recent {
		if err := k.refresh(ctx); err != nil {
			return nil, err
		}
		if key, ok := k.keyFor(kid); ok {
			return key, nil
		}
	}
	return nil, fmt.Errorf("%w %q", ErrUnknownKey, kid)
}

func (k *KeySet) ensureKeys(ctx context.Context) error {
	k.mu.RLock()
	fresh := k.now().Sub(k.fetched) < refreshAfter && len(k.cache) > 0
	k.mu.RUnlock()
	if fresh {
		return nil
	}
	return k.refresh(ctx)
}

func (k *KeySet) refresh(ctx context.Context) error {
	var discovery struct {
		JWKSURI string `json:"jwks_uri"`
	}
	if err := k.getJSON(ctx, k.issuer+"/.well-known/openid-configuration", &discovery); err != nil {
		return fmt.Errorf("oidc: discovery: %w", err)
	}
	if discovery.JWKSURI == "" {
		return errors.New("oidc: discovery document has no jwks_uri")
	}
	var set jwks
	if err := k.getJSON(ctx, discovery.JWKSURI, &set); err != nil {
		return fmt.Errorf("oidc: fetch keys: %w", err)
	}
	keys := make(map[string]*rsa.PublicKey)
	for _, key := range set.Keys {
		if key.Kty != "RSA" {
			continue
		}
		pub, err := rsaKeyFromJWK(key)
		if err != nil {
			continue
		}
		keys[key.Kid] = pub
	}
	if len(keys) == 0 {
		return errors.New("oidc: no RSA keys published")
	}
	k.mu.Lock()
	k.cache = keys
	k.fetched = k.now()
	k.mu.Unlock()
	return nil
}

func (k *KeySet) getJSON(ctx context.Context, url string, v any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}
	resp, err := k.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status %d", resp.StatusCode)
	}
	return json.NewDecoder(resp.Body).Decode(v)
}

func (k *KeySet) keyFor(kid string) (*rsa.PublicKey, bool) {
	k.mu.RLock()
	defer k.mu.RUnlock()
	pk, ok := k.cache[kid]
	return pk, ok
}

func rsaKeyFromJWK(j jwk) (*rsa.PublicKey, error) {
	nBytes, err := base64.RawURLEncoding.DecodeString(j.N)
	if err != nil {
		return nil, err
	}
	eBytes, err := base64.RawURLEncoding.DecodeString(j.E)
	if err != nil {
		return nil, err
	}
	e := 0
	for _, b := range eBytes {
		e = e<<8 + int(b)
	}
	if e == 0 {
		return nil, errors.New("invalid exponent")
	}
	return &rsa.PublicKey{N: new(big.Int).SetBytes(nBytes), E: e}, nil
}
