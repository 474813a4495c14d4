// Package geo resolves client IP addresses to coarse geographic
// locations, preferring geolocation headers stamped by a trusted edge
// proxy and falling back to a local MaxMind database.
package geo

import (
	"net"
	"net/http"
	"strings"
	"unicode/utf8"

	"github.com/TomasB/clientinfo/internal/clientip"
)

// Cloudflare and Vercel stamp these on requests that crossed their edge.
const (
	headerCFCountry = "cf-ipcountry"
	headerCFRegion  = "cf-region-code"
	headerCFCity    = "cf-ipcity"

	headerVercelCountry = "x-vercel-ip-country"
	headerVercelRegion  = "x-vercel-ip-country-region"
	headerVercelCity    = "x-vercel-ip-city"
)

// Location sources.
const (
	SourceEdgeHeader = "edge_header"
	SourceDatabase   = "database"
)

// Location is a resolved geographic position. Empty fields are
// unresolved, not "empty string" values. Source records which strategy
// produced the result.
type Location struct {
	Country string
	Region  string
	City    string
	Source  string
}

// Resolver decides between the edge-header fast path and a database
// lookup for each request.
type Resolver struct {
	reader      *Reader
	skipHeaders bool
}

// NewResolver returns a Resolver backed by the given database reader.
// When skipHeaders is set, edge geolocation headers are never trusted
// and every lookup goes through the database.
func NewResolver(reader *Reader, skipHeaders bool) *Resolver {
	return &Resolver{reader: reader, skipHeaders: skipHeaders}
}

// Resolve returns the location for ip, or nil when it cannot be
// determined. Local addresses and database misses are nil with a nil
// error; only a broken database produces an error.
//
// The edge-header fast path is skipped when the IP was supplied in the
// request payload: edge headers describe the proxied connection, not an
// IP the caller substituted.
func (s *Resolver) Resolve(ip string, h http.Header, ipFromPayload bool) (*Location, error) {
	if clientip.IsLocal(ip) {
		return nil, nil
	}

	if !ipFromPayload && !s.skipHeaders {
		if loc := locationFromHeaders(h); loc != nil {
			return loc, nil
		}
	}

	return s.lookup(ip)
}

// locationFromHeaders reads edge-stamped geolocation headers, Cloudflare
// first, then Vercel. Values pass through RecoverUTF8 because some edges
// emit these headers Latin-1 encoded.
func locationFromHeaders(h http.Header) *Location {
	if h.Get(headerCFCountry) != "" {
		country := RecoverUTF8(h.Get(headerCFCountry))
		return &Location{
			Country: country,
			Region:  RegionCode(country, RecoverUTF8(h.Get(headerCFRegion))),
			City:    RecoverUTF8(h.Get(headerCFCity)),
			Source:  SourceEdgeHeader,
		}
	}

	if h.Get(headerVercelCountry) != "" {
		country := RecoverUTF8(h.Get(headerVercelCountry))
		return &Location{
			Country: country,
			Region:  RegionCode(country, RecoverUTF8(h.Get(headerVercelRegion))),
			City:    RecoverUTF8(h.Get(headerVercelCity)),
			Source:  SourceEdgeHeader,
		}
	}

	return nil
}

// lookup queries the database. A missing record is a normal outcome.
func (s *Resolver) lookup(ip string) (*Location, error) {
	addr := net.ParseIP(clientip.StripPort(ip))
	if addr == nil {
		return nil, nil
	}

	record, err := s.reader.City(addr)
	if err != nil {
		return nil, err
	}

	country := record.Country.IsoCode
	if country == "" {
		country = record.RegisteredCountry.IsoCode
	}

	var region string
	if len(record.Subdivisions) > 0 {
		region = record.Subdivisions[0].IsoCode
	}

	loc := &Location{
		Country: country,
		Region:  RegionCode(country, region),
		City:    record.City.Names["en"],
		Source:  SourceDatabase,
	}
	if loc.Country == "" && loc.Region == "" && loc.City == "" {
		return nil, nil
	}
	return loc, nil
}

// RegionCode composes an ISO 3166-2 style code from a country and a
// subdivision. Either part missing yields no code; a region that already
// carries a hyphen is assumed composite and passed through unchanged.
func RegionCode(country, region string) string {
	if country == "" || region == "" {
		return ""
	}
	if strings.Contains(region, "-") {
		return region
	}
	return country + "-" + region
}

// RecoverUTF8 undoes Latin-1 mis-decoding of a header value. Upstream
// proxies sometimes decode UTF-8 header bytes as Latin-1, turning each
// byte into its own rune; re-serializing those runes as bytes recovers
// the original text. Strings that do not fit that shape are returned
// unchanged.
func RecoverUTF8(s string) string {
	mangled := false
	for _, r := range s {
		if r > 0xFF {
			return s
		}
		if r > 0x7F {
			mangled = true
		}
	}
	if !mangled {
		return s
	}

	b := make([]byte, 0, len(s))
	for _, r := range s {
		b = append(b, byte(r))
	}
	if !utf8.Valid(b) {
		return s
	}
	return string(b)
}
