package geo

import (
	"context"
	"errors"
	"fmt"
	"net"

	"github.com/oschwald/geoip2-golang"
)

const Unknown = "Unknown"

var ErrNoLocation = errors.New("no location for address")

type Location struct {
	Country string
	City    string
}

// UnknownLocation is what callers record when a lookup fails.
var UnknownLocation = Location{Country: Unknown, City: Unknown}

// Locator resolves a network address to a coarse location.
type Locator interface {
	Lookup(ctx context.Context, addr string) (Location, error)
}

// MaxMind looks addresses up in a local GeoLite2/GeoIP2 City database.
type MaxMind struct {
	db *geoip2.Reader
}

func OpenMaxMind(path string) (*MaxMind, error) {
	db, err := geoip2.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open geoip db: %w", err)
	}
	return &MaxMind{db: db}, nil
}

// Lookup returns the ISO country code and English city name. Either may come
// back as Unknown when the database has the address but not that field.
// The read itself is a local memory-mapped lookup; ctx is only checked before it.
func (m *MaxMind) Lookup(ctx context.Context, addr string) (Location, error) {
	if err := ctx.Err(); err != nil {
		return Location{}, err
	}
	ip := net.ParseIP(addr)
	if ip == nil {
		return Location{}, fmt.Errorf("%w: unparsable address %q", ErrNoLocation, addr)
	}
	rec, err := m.db.City(ip)
	if err != nil {
		return Location{}, err
	}
	loc := Location{Country: rec.Country.IsoCode, City: rec.City.Names["en"]}
	if loc.Country == "" && loc.City == "" {
		return Location{}, fmt.Errorf("%w: %s", ErrNoLocation, addr)
	}
	return fill(loc), nil
}

func (m *MaxMind) Close() error { return m.db.Close() }

// Nop is used when no geolocation database is configured.
type Nop struct{}

func (Nop) Lookup(context.Context, string) (Location, error) {
	return Location{}, ErrNoLocation
}

// Resolve never fails: errors and blank fields come back as Unknown.
func Resolve(ctx context.Context, l Locator, addr string) (Location, error) {
	loc, err := l.Lookup(ctx, addr)
	if err != nil {
		return UnknownLocation, err
	}
	return fill(loc), nil
}

func fill(loc Location) Location {
	if loc.Country == "" {
		loc.Country = Unknown
	}
	if loc.City == "" {
		loc.City = Unknown
	}
	return loc
}

var (
	_ Locator = (*MaxMind)(nil)
	_ Locator = Nop{}
)
