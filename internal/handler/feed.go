package handler

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"chartstream/internal/domain"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel/attribute"
)

// GetStatus returns the upstream transport connection state.
func (h *Handler) GetStatus(c *gin.Context) {
	_, span := h.tracer.Start(c.Request.Context(), "handler.get-status")
	defer span.End()

	c.JSON(http.StatusOK, h.feed.TransportStatus())
}

// GetSymbols lists the catalog of known tickers plus the supported
// bar resolutions.
func (h *Handler) GetSymbols(c *gin.Context) {
	_, span := h.tracer.Start(c.Request.Context(), "handler.get-symbols")
	defer span.End()

	c.JSON(http.StatusOK, gin.H{
		"symbols":     domain.Catalog,
		"resolutions": domain.SupportedResolutions,
	})
}

// ResolveSymbol turns a free-form ticker into chart metadata.
func (h *Handler) ResolveSymbol(c *gin.Context) {
	ctx, span := h.tracer.Start(c.Request.Context(), "handler.resolve-symbol")
	defer span.End()

	ticker := c.Query("ticker")
	if ticker == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing ticker parameter"})
		return
	}
	span.SetAttributes(attribute.String("ticker", ticker))

	info, err := h.feed.ResolveSymbol(ctx, ticker)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, info)
}

// GetHistory returns historical bars for a symbol over [from, to),
// both bounds in unix seconds.
func (h *Handler) GetHistory(c *gin.Context) {
	ctx, span := h.tracer.Start(c.Request.Context(), "handler.get-history")
	defer span.End()

	ticker := c.Param("symbol")
	span.SetAttributes(attribute.String("symbol", ticker))

	info, err := h.feed.ResolveSymbol(ctx, ticker)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	}

	resolution := domain.Resolution(c.DefaultQuery("resolution", "60"))
	from, errFrom := strconv.ParseInt(c.Query("from"), 10, 64)
	to, errTo := strconv.ParseInt(c.Query("to"), 10, 64)
	if errFrom != nil || errTo != nil || from >= to {
		c.JSON(http.StatusBadRequest, gin.H{"error": "from and to must be unix seconds with from < to"})
		return
	}

	bars, noData, err := h.feed.GetBars(ctx, info, resolution, time.Unix(from, 0), time.Unix(to, 0))
	if err != nil {
		if errors.Is(err, domain.ErrInvalidResolution) {
			c.JSON(http.StatusBadRequest, gin.H{
				"error":                 "unsupported resolution: " + string(resolution),
				"supported_resolutions": domain.SupportedResolutions,
			})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"symbol":     info.Symbol,
		"resolution": resolution,
		"bars":       bars,
		"no_data":    noData,
	})
}
