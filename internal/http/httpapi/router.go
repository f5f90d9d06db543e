package httpapi

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"aidispatch/internal/http/handlers"
	"aidispatch/internal/infra"
	"aidispatch/internal/infra/geoip"
	"aidispatch/internal/middleware"
)

// Options configures the router.
type Options struct {
	JWTSecret string
	// Verifier, when set, is used instead of HS256 with JWTSecret.
	Verifier       middleware.TokenVerifier
	AllowedOrigins []string
	Logger         infra.Logger
	// StaticDir, when set, is served under /static.
	StaticDir string
	// Countries, when set, tags access log lines with the client country.
	Countries geoip.Lookup
	// PublicLimit caps unauthenticated requests per client per minute.
	PublicLimit int
}

func NewRouter(app *handlers.App, opts Options) http.Handler {
	r := chi.NewRouter()
	r.Use(
		middleware.RequestID,
		chimw.RealIP,
		chimw.Recoverer,
		middleware.Country(opts.Countries),
		middleware.Logger(opts.Logger),
		middleware.CORS(opts.AllowedOrigins),
	)

	publicLimit := opts.PublicLimit
	if publicLimit <= 0 {
		publicLimit = 120
	}

	r.Group(func(r chi.Router) {
		r.Use(middleware.Throttle(publicLimit, time.Minute))
		r.Get("/v1/healthz", app.Health)
		r.Get("/v1/providers", app.Providers)
		if opts.StaticDir != "" {
			r.Handle("/static/*", http.StripPrefix("/static/", http.FileServer(http.Dir(opts.StaticDir))))
		}
	})

	r.Group(func(r chi.Router) {
		verifier := opts.Verifier
		if verifier == nil {
			verifier = middleware.HMACVerifier{Secret: opts.JWTSecret}
		}
		r.Use(middleware.Auth(verifier))
		r.Post("/v1/dispatch", app.Dispatch)
		r.Get("/v1/usage", app.Usage)
	})

	return r
}
