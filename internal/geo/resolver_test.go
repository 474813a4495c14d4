package geo

import (
	"errors"
	"net/http"
	"testing"
)

func edgeHeaders(pairs ...string) http.Header {
	h := http.Header{}
	for i := 0; i < len(pairs); i += 2 {
		h.Set(pairs[i], pairs[i+1])
	}
	return h
}

// brokenResolver has no database behind it, so any test that reaches the
// fallback path fails loudly instead of silently passing.
func brokenResolver(skipHeaders bool) *Resolver {
	return NewResolver(NewReader("/nonexistent/clientinfo-test.mmdb"), skipHeaders)
}

func TestResolve_LocalIPSkipsEverything(t *testing.T) {
	s := brokenResolver(false)
	h := edgeHeaders("CF-IPCountry", "US", "CF-IPCity", "Chicago")

	for _, ip := range []string{"127.0.0.1", "::1", "10.0.0.1", "192.168.1.50"} {
		loc, err := s.Resolve(ip, h, false)
		if err != nil {
			t.Fatalf("Resolve(%q) returned error: %v", ip, err)
		}
		if loc != nil {
			t.Errorf("Resolve(%q) = %+v, want nil for local address", ip, loc)
		}
	}
}

func TestResolve_CloudflareFastPath(t *testing.T) {
	s := brokenResolver(false)
	h := edgeHeaders(
		"CF-IPCountry", "US",
		"CF-Region-Code", "CA",
		"CF-IPCity", "San Francisco",
	)

	loc, err := s.Resolve("8.8.8.8", h, false)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if loc == nil {
		t.Fatal("expected a location from edge headers")
	}
	if loc.Country != "US" || loc.Region != "US-CA" || loc.City != "San Francisco" {
		t.Errorf("unexpected location: %+v", loc)
	}
	if loc.Source != SourceEdgeHeader {
		t.Errorf("expected edge header source, got %q", loc.Source)
	}
}

func TestResolve_VercelFastPath(t *testing.T) {
	s := brokenResolver(false)
	h := edgeHeaders(
		"X-Vercel-IP-Country", "DE",
		"X-Vercel-IP-Country-Region", "BE",
		"X-Vercel-IP-City", "Berlin",
	)

	loc, err := s.Resolve("8.8.8.8", h, false)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if loc == nil || loc.Country != "DE" || loc.Region != "DE-BE" || loc.City != "Berlin" {
		t.Errorf("unexpected location: %+v", loc)
	}
}

func TestResolve_MangledHeaderRecovered(t *testing.T) {
	s := brokenResolver(false)
	// "São Paulo" after its UTF-8 bytes were decoded as Latin-1.
	h := edgeHeaders(
		"CF-IPCountry", "BR",
		"CF-IPCity", "SÃ£o Paulo",
	)

	loc, err := s.Resolve("8.8.8.8", h, false)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if loc == nil || loc.City != "São Paulo" {
		t.Errorf("expected recovered city name, got %+v", loc)
	}
}

func TestResolve_PayloadIPSuppressesFastPath(t *testing.T) {
	s := brokenResolver(false)
	h := edgeHeaders("CF-IPCountry", "US")

	_, err := s.Resolve("8.8.8.8", h, true)
	if !errors.Is(err, ErrDatabaseUnavailable) {
		t.Errorf("expected database error once headers are bypassed, got %v", err)
	}
}

func TestResolve_SkipHeadersFlag(t *testing.T) {
	s := brokenResolver(true)
	h := edgeHeaders("CF-IPCountry", "US")

	_, err := s.Resolve("8.8.8.8", h, false)
	if !errors.Is(err, ErrDatabaseUnavailable) {
		t.Errorf("expected database error with headers disabled, got %v", err)
	}
}

func TestResolve_MalformedIPIsNoMatch(t *testing.T) {
	s := brokenResolver(false)

	loc, err := s.Resolve("not-an-ip", http.Header{}, false)
	if err != nil {
		t.Fatalf("malformed IP must not error: %v", err)
	}
	if loc != nil {
		t.Errorf("malformed IP must not resolve, got %+v", loc)
	}
}

func TestRegionCode(t *testing.T) {
	tests := []struct {
		country string
		region  string
		want    string
	}{
		{"US", "CA", "US-CA"},
		{"US", "US-CA", "US-CA"},
		{"", "CA", ""},
		{"US", "", ""},
		{"", "", ""},
	}

	for _, tt := range tests {
		if got := RegionCode(tt.country, tt.region); got != tt.want {
			t.Errorf("RegionCode(%q, %q) = %q, want %q", tt.country, tt.region, got, tt.want)
		}
	}
}

func TestRecoverUTF8(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"ascii untouched", "Chicago", "Chicago"},
		{"mangled utf8 recovered", "SÃ£o Paulo", "São Paulo"},
		{"plain latin1 kept", "Málaga", "Málaga"},
		{"wide runes kept", "東京", "東京"},
		{"empty", "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := RecoverUTF8(tt.in); got != tt.want {
				t.Errorf("RecoverUTF8(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}
