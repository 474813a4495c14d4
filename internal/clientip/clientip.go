package clientip

import (
	"net/http"
	"net/netip"
	"regexp"
	"strings"
)

// Proxy headers consulted after CF-Connecting-IP, the configured custom
// header, and X-Forwarded-For have all come up empty. Order matters: the
// list is walked front to back and the first non-empty value wins.
var fallbackHeaders = []string{
	"x-real-ip",
	"x-client-ip",
	"x-cluster-client-ip",
	"true-client-ip",
	"fastly-client-ip",
	"forwarded-for",
	"forwarded",
}

// forwardedForPattern extracts the for= parameter from an RFC 7239
// Forwarded header. The value may be quoted, and IPv6 addresses come
// wrapped in brackets.
var forwardedForPattern = regexp.MustCompile(`for="?(\[?[0-9a-fA-F:.]+]?)`)

// Resolve returns the best-guess client IP from the request headers.
//
// Precedence, first non-empty match wins:
//  1. CF-Connecting-IP (set by the Cloudflare edge, not client-spoofable)
//  2. customHeader, a deployment-specific header name (may be empty)
//  3. X-Forwarded-For, taking the leftmost (closest-to-client) entry
//  4. the fixed fallback header list
//
// The returned string is not validated as an IP address; downstream
// consumers must tolerate malformed values. The boolean reports whether
// any header produced a value at all.
func Resolve(h http.Header, customHeader string) (string, bool) {
	if v := h.Get("cf-connecting-ip"); v != "" {
		return v, true
	}

	if customHeader != "" {
		if v := h.Get(customHeader); v != "" {
			return v, true
		}
	}

	if xff := h.Get("x-forwarded-for"); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		if first = strings.TrimSpace(first); first != "" {
			return first, true
		}
	}

	for _, name := range fallbackHeaders {
		v := h.Get(name)
		if v == "" {
			continue
		}
		if name == "forwarded" {
			if m := forwardedForPattern.FindStringSubmatch(v); m != nil {
				return strings.Trim(m[1], "[]"), true
			}
			continue
		}
		return v, true
	}

	return "", false
}

// IsLocal reports whether ip is loopback, private, link-local or
// unspecified. Such addresses never geolocate. Malformed input is not
// local; the caller treats it as an address with no known location.
func IsLocal(ip string) bool {
	addr, err := netip.ParseAddr(StripPort(ip))
	if err != nil {
		return false
	}
	addr = addr.Unmap()
	return addr.IsLoopback() ||
		addr.IsPrivate() ||
		addr.IsLinkLocalUnicast() ||
		addr.IsLinkLocalMulticast() ||
		addr.IsUnspecified()
}

// StripPort removes a trailing :port from an IP string, handling the
// bracketed IPv6 form. Strings without a port pass through unchanged.
func StripPort(ip string) string {
	if ap, err := netip.ParseAddrPort(ip); err == nil {
		return ap.Addr().String()
	}
	return ip
}
