// Package clientinfo aggregates per-request identity metadata: client
// IP, geographic location, device category and browser/OS, resolved
// from the request headers and an optional client-supplied payload.
package clientinfo

import (
	"net/http"
	"net/url"

	ua "github.com/mileusna/useragent"

	"github.com/TomasB/clientinfo/internal/clientip"
	"github.com/TomasB/clientinfo/internal/device"
	"github.com/TomasB/clientinfo/internal/geo"
)

// Payload carries client-supplied overrides sent alongside an analytics
// event. All fields are optional; non-empty values win over what the
// request itself reports.
type Payload struct {
	IP        string `json:"ip"`
	UserAgent string `json:"userAgent"`
	Screen    string `json:"screen"`
}

// ClientInfo is the resolved metadata record handed to the analytics
// pipeline. A fresh value is built per request; empty fields were
// unresolvable.
type ClientInfo struct {
	UserAgent string `json:"userAgent"`
	Browser   string `json:"browser,omitempty"`
	OS        string `json:"os,omitempty"`
	IP        string `json:"ip"`
	Country   string `json:"country,omitempty"`
	Region    string `json:"region,omitempty"`
	City      string `json:"city,omitempty"`
	Device    string `json:"device,omitempty"`

	// LocationSource records which strategy produced the location, for
	// metrics only.
	LocationSource string `json:"-"`
}

// Service wires the header resolver, location resolver and device
// classifier into a single resolution step.
type Service struct {
	locations      *geo.Resolver
	clientIPHeader string
}

// New returns a Service. clientIPHeader optionally names a
// deployment-specific header consulted when resolving the client IP.
func New(locations *geo.Resolver, clientIPHeader string) *Service {
	return &Service{locations: locations, clientIPHeader: clientIPHeader}
}

// Resolve builds the ClientInfo record for a request. Missing metadata
// degrades to empty fields; the only error is a location subsystem
// failure, which the caller should log and treat as a server fault.
func (s *Service) Resolve(r *http.Request, p *Payload) (*ClientInfo, error) {
	if p == nil {
		p = &Payload{}
	}

	userAgent := p.UserAgent
	if userAgent == "" {
		userAgent = r.UserAgent()
	}

	ip := p.IP
	fromPayload := ip != ""
	if !fromPayload {
		ip, _ = clientip.Resolve(r.Header, s.clientIPHeader)
	}

	loc, err := s.locations.Resolve(ip, r.Header, fromPayload)
	if err != nil {
		return nil, err
	}

	info := &ClientInfo{
		UserAgent: userAgent,
		IP:        ip,
	}
	if loc != nil {
		info.Country = safeDecodeURI(loc.Country)
		info.Region = safeDecodeURI(loc.Region)
		info.City = safeDecodeURI(loc.City)
		info.LocationSource = loc.Source
	}

	parsed := ua.Parse(userAgent)
	info.Browser = parsed.Name
	info.OS = parsed.OS
	info.Device = device.Classify(p.Screen, parsed.OS)

	return info, nil
}

// safeDecodeURI undoes percent-encoding that some upstreams apply to
// geo header values. PathUnescape keeps literal '+' intact, which city
// names may contain. Values that fail to decode come back unchanged.
func safeDecodeURI(s string) string {
	if s == "" {
		return s
	}
	decoded, err := url.PathUnescape(s)
	if err != nil {
		return s
	}
	return decoded
}
