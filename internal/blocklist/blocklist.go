// Package blocklist filters client IPs against a configured set of
// exact addresses and CIDR ranges.
package blocklist

import (
	"log/slog"
	"net/netip"
	"strings"
)

// Blocklist is the parsed form of the IGNORED_IPS setting. It is built
// once at startup and is safe for concurrent use; a nil Blocklist never
// matches anything.
type Blocklist struct {
	exact  map[string]struct{}
	ranges []netip.Prefix
}

// Parse builds a Blocklist from a comma-separated list of IP literals
// and CIDR ranges. Malformed CIDR entries are logged and skipped rather
// than aborting the rest of the list; non-CIDR entries are kept verbatim
// for exact matching.
func Parse(list string) *Blocklist {
	list = strings.TrimSpace(list)
	if list == "" {
		return nil
	}

	bl := &Blocklist{exact: make(map[string]struct{})}
	for _, entry := range strings.Split(list, ",") {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		if strings.Contains(entry, "/") {
			prefix, err := netip.ParsePrefix(entry)
			if err != nil {
				slog.Warn("ignoring malformed blocklist range", "entry", entry, "error", err)
				continue
			}
			bl.ranges = append(bl.ranges, prefix)
			continue
		}
		bl.exact[entry] = struct{}{}
	}
	return bl
}

// Contains reports whether ip matches any configured entry. Exact string
// matches short-circuit before any parsing. CIDR ranges only match an
// address of the same family; a candidate that fails to parse simply
// never falls inside a range.
func (b *Blocklist) Contains(ip string) bool {
	if b == nil {
		return false
	}
	if _, ok := b.exact[ip]; ok {
		return true
	}
	if len(b.ranges) == 0 {
		return false
	}

	addr, err := netip.ParseAddr(ip)
	if err != nil {
		return false
	}
	for _, prefix := range b.ranges {
		if prefix.Addr().Is4() != addr.Is4() {
			continue
		}
		if prefix.Contains(addr) {
			return true
		}
	}
	return false
}

// Len returns the number of configured entries, for startup logging.
func (b *Blocklist) Len() int {
	if b == nil {
		return 0
	}
	return len(b.exact) + len(b.ranges)
}
