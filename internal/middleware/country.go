package middleware

import (
	"context"
	"net/http"
	"net/netip"

	"aidispatch/internal/infra/geoip"
)

type countryKey struct{}

// Country resolves the client's country once per request and stores it for
// the access log. A nil lookup disables it.
func Country(lookup geoip.Lookup) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if lookup == nil {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			addr, err := netip.ParseAddr(clientIP(r))
			if err == nil {
				if code, err := lookup.Country(addr); err == nil && code != "" {
					r = r.WithContext(context.WithValue(r.Context(), countryKey{}, code))
				}
			}
			next.ServeHTTP(w, r)
		})
	}
}

func CountryFromContext(ctx context.Context) string {
	code, _ := ctx.Value(countryKey{}).(string)
	return code
}
