package infra

import (
	"context"
	"net/http"
	"time"
)

// HTTPServer runs a handler with the timeouts from Config. WriteTimeout must
// outlast PROVIDER_TIMEOUT_SECONDS or slow video jobs are cut off mid-response.
type HTTPServer struct {
	server *http.Server
}

func NewHTTPServer(cfg *Config, handler http.Handler) *HTTPServer {
	write := cfg.HTTPWriteTimeout
	if floor := cfg.ProviderTimeout + 10*time.Second; write < floor {
		write = floor
	}
	return &HTTPServer{server: &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           handler,
		ReadTimeout:       cfg.HTTPReadTimeout,
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      write,
		IdleTimeout:       cfg.HTTPIdleTimeout,
	}}
}

// Addr returns the listen address.
func (s *HTTPServer) Addr() string { return s.server.Addr }

// WriteTimeout returns the effective response deadline.
func (s *HTTPServer) WriteTimeout() time.Duration { return s.server.WriteTimeout }

// Start blocks serving requests until Shutdown.
func (s *HTTPServer) Start() error {
	return s.server.ListenAndServe()
}

// Shutdown drains in-flight requests.
func (s *HTTPServer) Shutdown(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}
