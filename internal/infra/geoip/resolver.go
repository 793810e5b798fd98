package geoip

import (
	"errors"
	"fmt"
	"net"
	"strings"
	"sync"

	"github.com/oschwald/geoip2-golang"
)

// ErrUnavailable is returned when the resolver is not initialized.
var ErrUnavailable = errors.New("geoip resolver unavailable")

// maxCached bounds the per-process lookup cache.
const maxCached = 4096

// CountryResolver resolves ISO country codes from IP addresses.
type CountryResolver interface {
	CountryCode(ip string) (string, error)
}

// Resolver provides country lookups backed by a MaxMind GeoIP2 database.
// Loopback and private addresses never hit the database.
type Resolver struct {
	reader *geoip2.Reader

	mu    sync.Mutex
	cache map[string]string
}

// NewResolver opens the GeoIP database at the given path. When the path is
// empty, nil is returned and locale detection relies on request headers.
func NewResolver(path string) (*Resolver, error) {
	if strings.TrimSpace(path) == "" {
		return nil, nil
	}
	reader, err := geoip2.Open(path)
	if err != nil {
		return nil, fmt.Errorf("geoip: open database: %w", err)
	}
	return &Resolver{reader: reader, cache: make(map[string]string)}, nil
}

// CountryCode returns the ISO country code for the provided IP.
func (r *Resolver) CountryCode(ip string) (string, error) {
	parsed := net.ParseIP(strings.TrimSpace(ip))
	if parsed == nil {
		return "", fmt.Errorf("geoip: invalid ip %q", ip)
	}
	if parsed.IsLoopback() || parsed.IsPrivate() || parsed.IsUnspecified() {
		return "", nil
	}
	if r == nil || r.reader == nil {
		return "", ErrUnavailable
	}

	key := parsed.String()
	r.mu.Lock()
	code, ok := r.cache[key]
	r.mu.Unlock()
	if ok {
		return code, nil
	}

	record, err := r.reader.Country(parsed)
	if err != nil {
		return "", fmt.Errorf("geoip: lookup country: %w", err)
	}
	if record != nil {
		code = record.Country.IsoCode
	}

	r.mu.Lock()
	if len(r.cache) >= maxCached {
		r.cache = make(map[string]string)
	}
	r.cache[key] = code
	r.mu.Unlock()
	return code, nil
}

// Lookup adapts the resolver to the I18N middleware. A nil resolver yields a
// nil lookup.
func (r *Resolver) Lookup() func(ip string) (string, error) {
	if r == nil {
		return nil
	}
	return r.CountryCode
}

// Close closes the underlying database reader.
func (r *Resolver) Close() error {
	if r == nil || r.reader == nil {
		return nil
	}
	return r.reader.Close()
}
