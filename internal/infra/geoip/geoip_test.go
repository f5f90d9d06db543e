package geoip

import (
	"net/netip"
	"path/filepath"
	"testing"
)

func TestRoutable(t *testing.T) {
	cases := map[string]bool{
		"8.8.8.8":            true,
		"2001:4860::8888":    true,
		"::ffff:203.0.114.5": true,
		"127.0.0.1":          false,
		"10.1.2.3":           false,
		"192.168.0.10":       false,
		"fe80::1":            false,
		"0.0.0.0":            false,
		"::ffff:192.168.1.1": false,
	}
	for in, want := range cases {
		if got := Routable(netip.MustParseAddr(in)); got != want {
			t.Fatalf("Routable(%s) = %v, want %v", in, got, want)
		}
	}
	if Routable(netip.Addr{}) {
		t.Fatalf("zero addr should not be routable")
	}
}

func TestOpenMissingFile(t *testing.T) {
	if _, err := Open(filepath.Join(t.TempDir(), "missing.mmdb")); err == nil {
		t.Fatalf("expected error for missing database")
	}
}
