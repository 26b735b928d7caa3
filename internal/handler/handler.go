package handler

import (
	"net/http"
	"time"

	"chartstream/internal/feed"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.opentelemetry.io/otel/trace"
)

type Handler struct {
	tracer   trace.Tracer
	feed     *feed.Service
	subLimit *RateLimiter
	upgrader websocket.Upgrader
}

// New builds the HTTP handler set. subsPerMinute caps how fast a single
// stream client may add subscriptions.
func New(tracer trace.Tracer, feedService *feed.Service, subsPerMinute int) *Handler {
	if subsPerMinute <= 0 {
		subsPerMinute = 60
	}
	return &Handler{
		tracer:   tracer,
		feed:     feedService,
		subLimit: NewRateLimiter(subsPerMinute, time.Minute/time.Duration(subsPerMinute)),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}
}

func (h *Handler) RegisterRoutes(r *gin.Engine) {
	r.GET("/health", h.Health)
	r.GET("/api/status", h.GetStatus)
	r.GET("/api/symbols", h.GetSymbols)
	r.GET("/api/symbols/resolve", h.ResolveSymbol)
	r.GET("/api/history/:symbol", h.GetHistory)
	r.GET("/api/stream", h.Stream)
}
