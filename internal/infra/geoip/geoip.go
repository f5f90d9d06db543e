// Package geoip maps client addresses to ISO country codes using a MaxMind
// GeoIP2 or GeoLite2 country database.
package geoip

import (
	"fmt"
	"net"
	"net/netip"

	"github.com/oschwald/geoip2-golang"
)

// Lookup resolves the country of an address. An empty code means unknown.
type Lookup interface {
	Country(addr netip.Addr) (string, error)
}

// DB is a Lookup backed by an mmap'd database file.
type DB struct {
	reader *geoip2.Reader
}

// Open loads the database at path.
func Open(path string) (*DB, error) {
	reader, err := geoip2.Open(path)
	if err != nil {
		return nil, fmt.Errorf("geoip: open %s: %w", path, err)
	}
	return &DB{reader: reader}, nil
}

func (d *DB) Country(addr netip.Addr) (string, error) {
	if !Routable(addr) {
		return "", nil
	}
	record, err := d.reader.Country(net.IP(addr.AsSlice()))
	if err != nil {
		return "", fmt.Errorf("geoip: lookup %s: %w", addr, err)
	}
	return record.Country.IsoCode, nil
}

func (d *DB) Close() error {
	return d.reader.Close()
}

// Routable reports whether addr can appear in a country database.
func Routable(addr netip.Addr) bool {
	addr = addr.Unmap()
	return addr.IsValid() &&
		!addr.IsLoopback() &&
		!addr.IsPrivate() &&
		!addr.IsLinkLocalUnicast() &&
		!addr.IsUnspecified()
}
