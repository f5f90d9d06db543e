package infra

import (
	"net/http"
	"testing"
	"time"
)

func TestNewHTTPServerOutlastsProviderTimeout(t *testing.T) {
	cfg := &Config{Port: "9000", HTTPWriteTimeout: 30 * time.Second, ProviderTimeout: 120 * time.Second}
	srv := NewHTTPServer(cfg, http.NotFoundHandler())
	if srv.Addr() != ":9000" {
		t.Fatalf("addr = %q", srv.Addr())
	}
	if srv.WriteTimeout() != 130*time.Second {
		t.Fatalf("write timeout = %s, want 130s", srv.WriteTimeout())
	}

	cfg.HTTPWriteTimeout = 200 * time.Second
	if got := NewHTTPServer(cfg, http.NotFoundHandler()).WriteTimeout(); got != 200*time.Second {
		t.Fatalf("configured write timeout should win when longer, got %s", got)
	}
}
