// Package metrics exposes Prometheus counters for the resolution
// pipeline.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// SourceNone labels resolutions where no location was found; resolved
// requests carry the geo package's source label instead.
const SourceNone = "none"

var (
	// ResolutionsTotal counts resolved requests by where the location
	// came from (edge_header, database, none) and whether it errored.
	ResolutionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "clientinfo_resolutions_total",
			Help: "Total client info resolutions by location source and result.",
		},
		[]string{"source", "result"},
	)

	// BlockedTotal counts requests dropped by the IP blocklist.
	BlockedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "clientinfo_blocked_total",
			Help: "Total requests dropped because the client IP matched the blocklist.",
		},
	)
)
