package resolve

import (
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/TomasB/clientinfo/internal/blocklist"
	"github.com/TomasB/clientinfo/internal/clientinfo"
	"github.com/TomasB/clientinfo/internal/geo"
	"github.com/TomasB/clientinfo/internal/metrics"
)

// Handler resolves client metadata for inbound analytics events.
type Handler struct {
	service *clientinfo.Service
	blocked *blocklist.Blocklist
}

// NewHandler creates a resolve handler. blocked may be nil when no
// blocklist is configured.
func NewHandler(service *clientinfo.Service, blocked *blocklist.Blocklist) *Handler {
	return &Handler{service: service, blocked: blocked}
}

// Resolve handles POST /api/v1/resolve. The JSON body is an optional
// payload of client-supplied overrides; an empty body is valid.
func (h *Handler) Resolve(c *gin.Context) {
	var payload clientinfo.Payload
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&payload); err != nil && !errors.Is(err, io.EOF) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid payload: " + err.Error()})
			return
		}
	}

	info, err := h.service.Resolve(c.Request, &payload)
	if err != nil {
		slog.Error("client info resolution failed", "error", err)
		metrics.ResolutionsTotal.WithLabelValues(metrics.SourceNone, "error").Inc()
		status := http.StatusInternalServerError
		if errors.Is(err, geo.ErrDatabaseUnavailable) {
			status = http.StatusServiceUnavailable
		}
		c.JSON(status, gin.H{"error": "resolution failed"})
		return
	}

	if h.blocked.Contains(info.IP) {
		slog.Debug("request dropped by blocklist", "ip", info.IP)
		metrics.BlockedTotal.Inc()
		c.Status(http.StatusNoContent)
		return
	}

	source := info.LocationSource
	if source == "" {
		source = metrics.SourceNone
	}
	metrics.ResolutionsTotal.WithLabelValues(source, "success").Inc()

	c.JSON(http.StatusOK, info)
}
