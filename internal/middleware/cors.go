package middleware

import (
	"net/http"
	"strconv"
)

const corsMaxAge = 10 * 60

type corsPolicy struct {
	origins  map[string]bool
	wildcard bool
}

func (p corsPolicy) allows(origin string) bool {
	return origin != "" && (p.wildcard || p.origins[origin])
}

// CORS answers preflights and echoes allowed origins. "*" allows any origin
// without credentials; listed origins may send credentials.
func CORS(allowedOrigins []string) func(http.Handler) http.Handler {
	p := corsPolicy{origins: make(map[string]bool, len(allowedOrigins))}
	for _, origin := range allowedOrigins {
		if origin == "*" {
			p.wildcard = true
			continue
		}
		p.origins[origin] = true
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			origin := r.Header.Get("Origin")
			h := w.Header()
			h.Add("Vary", "Origin")
			if p.allows(origin) {
				h.Set("Access-Control-Allow-Origin", origin)
				if p.origins[origin] {
					h.Set("Access-Control-Allow-Credentials", "true")
				}
				h.Set("Access-Control-Expose-Headers", RequestIDHeader+", Retry-After")
			}
			if r.Method != http.MethodOptions {
				next.ServeHTTP(w, r)
				return
			}
			if p.allows(origin) {
				h.Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
				h.Set("Access-Control-Allow-Headers", "Authorization, Content-Type, "+RequestIDHeader)
				h.Set("Access-Control-Max-Age", strconv.Itoa(corsMaxAge))
			}
			w.WriteHeader(http.StatusNoContent)
		})
	}
}
