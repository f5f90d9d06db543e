package middleware

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"

	"aidispatch/internal/infra/oidc"
)

// TokenClaims carries the caller identity. IdentityID is the stable id usage
// and quota are keyed by; Sub is the upstream subject.
type TokenClaims struct {
	IdentityID string `json:"identity_id,omitempty"`
	jwt.RegisteredClaims
}

// Identity is the authenticated caller.
type Identity struct {
	ID  string
	Sub string
}

type identityKey struct{}

// SignJWT issues an HS256 token for claims.
func SignJWT(secret string, claims TokenClaims) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(secret))
	if err != nil {
		return "", fmt.Errorf("middleware: sign token: %w", err)
	}
	return signed, nil
}

// VerifyJWT parses and validates an HS256 token.
func VerifyJWT(secret, tokenString string) (*TokenClaims, error) {
	claims := &TokenClaims{}
	_, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (any, error) {
		return []byte(secret), nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return nil, err
	}
	if claims.IdentityID == "" && claims.Subject == "" {
		return nil, errors.New("token has no subject")
	}
	return claims, nil
}

// TokenVerifier validates a bearer token and returns its claims.
type TokenVerifier interface {
	Verify(ctx context.Context, token string) (*TokenClaims, error)
}

// HMACVerifier accepts HS256 tokens signed with a shared secret.
type HMACVerifier struct {
	Secret string
}

func (v HMACVerifier) Verify(_ context.Context, token string) (*TokenClaims, error) {
	return VerifyJWT(v.Secret, token)
}

// OIDCVerifier accepts RS256 tokens issued by an OpenID Connect provider.
type OIDCVerifier struct {
	Keys     *oidc.KeySet
	Audience string
}

func (v OIDCVerifier) Verify(ctx context.Context, tokenString string) (*TokenClaims, error) {
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodRS256.Alg()}),
		jwt.WithIssuer(v.Keys.Issuer()),
		jwt.WithExpirationRequired(),
	}
	if v.Audience != "" {
		opts = append(opts, jwt.WithAudience(v.Audience))
	}
	claims := &TokenClaims{}
	_, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (any, error) {
		kid, _ := token.Header["kid"].(string)
		if kid == "" {
			return nil, errors.New("token has no kid")
		}
		return v.Keys.Key(ctx, kid)
	}, opts...)
	if err != nil {
		return nil, err
	}
	if claims.Subject == "" {
		return nil, errors.New("token has no subject")
	}
	return claims, nil
}

// Verifiers tries each verifier in turn and returns the first success.
type Verifiers []TokenVerifier

func (vs Verifiers) Verify(ctx context.Context, token string) (*TokenClaims, error) {
	err := errors.New("no token verifier configured")
	for _, v := range vs {
		var claims *TokenClaims
		if claims, err = v.Verify(ctx, token); err == nil {
			return claims, nil
		}
	}
	return nil, err
}

// AuthJWT authenticates HS256 tokens signed with secret.
func AuthJWT(secret string) func(http.Handler) http.Handler {
	return Auth(HMACVerifier{Secret: secret})
}

// Auth rejects requests without a bearer token accepted by v and stores the
// caller identity in the request context.
func Auth(v TokenVerifier) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				http.Error(w, "missing authorization", http.StatusUnauthorized)
				return
			}
			parts := strings.SplitN(authHeader, " ", 2)
			if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
				http.Error(w, "invalid authorization", http.StatusUnauthorized)
				return
			}
			claims, err := v.Verify(r.Context(), strings.TrimSpace(parts[1]))
			if err != nil {
				http.Error(w, "invalid token", http.StatusUnauthorized)
				return
			}
			id := claims.IdentityID
			if id == "" {
				id = claims.Subject
			}
			ctx := ContextWithIdentity(r.Context(), Identity{ID: id, Sub: claims.Subject})
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// IdentityFromContext returns the caller stored by Auth.
func IdentityFromContext(ctx context.Context) (Identity, bool) {
	v, ok := ctx.Value(identityKey{}).(Identity)
	return v, ok && v.ID != ""
}

func ContextWithIdentity(ctx context.Context, id Identity) context.Context {
	if strings.TrimSpace(id.ID) == "" {
		return ctx
	}
	return context.WithValue(ctx, identityKey{}, id)
}
