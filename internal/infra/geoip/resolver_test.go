package geoip

import (
	"errors"
	"testing"
)

func TestNewResolverWithoutPath(t *testing.T) {
	r, err := NewResolver(" ")
	if err != nil || r != nil {
		t.Fatalf("NewResolver(\"\") = %v, %v", r, err)
	}
	if r.Lookup() != nil {
		t.Fatal("nil resolver produced a lookup")
	}
	if err := r.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
}

func TestCountryCodeSkipsPrivateAddresses(t *testing.T) {
	var r *Resolver
	for _, ip := range []string{"127.0.0.1", "10.1.2.3", "192.168.0.10", "::1"} {
		code, err := r.CountryCode(ip)
		if err != nil || code != "" {
			t.Fatalf("CountryCode(%s) = %q, %v", ip, code, err)
		}
	}
}

func TestCountryCodeWithoutDatabase(t *testing.T) {
	var r *Resolver
	if _, err := r.CountryCode("203.0.113.4"); !errors.Is(err, ErrUnavailable) {
		t.Fatalf("error = %v, want ErrUnavailable", err)
	}
	if _, err := r.CountryCode("not-an-ip"); err == nil {
		t.Fatal("expected error for invalid ip")
	}
}

func TestNewResolverMissingFile(t *testing.T) {
	if _, err := NewResolver("/nonexistent/GeoLite2-Country.mmdb"); err == nil {
		t.Fatal("expected error for missing database")
	}
}
