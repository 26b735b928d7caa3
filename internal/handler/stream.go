package handler

import (
	"encoding/json"
	"log"
	"time"

	"chartstream/internal/domain"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.opentelemetry.io/otel/attribute"
)

const (
	clientSendBuffer = 256
	clientPingEvery  = 45 * time.Second
	clientReadWindow = 90 * time.Second
)

// clientRequest is what a stream client sends: subscribe/unsubscribe
// plus the fields the action needs.
type clientRequest struct {
	Action     string `json:"action"`
	Symbol     string `json:"symbol,omitempty"`
	Resolution string `json:"resolution,omitempty"`
	ID         string `json:"id,omitempty"`
}

type serverFrame struct {
	Type       string      `json:"type"`
	ID         string      `json:"id,omitempty"`
	Symbol     string      `json:"symbol,omitempty"`
	Resolution string      `json:"resolution,omitempty"`
	Bar        *domain.Bar `json:"bar,omitempty"`
	Error      string      `json:"error,omitempty"`
}

type streamClient struct {
	conn *websocket.Conn
	out  chan serverFrame
	done chan struct{}
	subs map[string]struct{}
}

func (cl *streamClient) send(frame serverFrame) {
	select {
	case cl.out <- frame:
	default:
		// Slow consumer, drop the frame rather than stall the feed.
	}
}

// Stream upgrades the request to a websocket and serves live bar
// subscriptions over it. Each subscription gets its own id; all of a
// client's subscriptions are torn down when the socket closes.
func (h *Handler) Stream(c *gin.Context) {
	_, span := h.tracer.Start(c.Request.Context(), "handler.stream")
	defer span.End()

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Printf("handler: websocket upgrade: %v", err)
		return
	}
	defer conn.Close()

	cl := &streamClient{
		conn: conn,
		out:  make(chan serverFrame, clientSendBuffer),
		done: make(chan struct{}),
		subs: make(map[string]struct{}),
	}
	span.SetAttributes(attribute.String("remote", conn.RemoteAddr().String()))

	go cl.writePump()
	defer close(cl.done)
	defer func() {
		for id := range cl.subs {
			h.feed.UnsubscribeBars(id)
		}
	}()

	_ = conn.SetReadDeadline(time.Now().Add(clientReadWindow))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(clientReadWindow))
	})

	for {
		mt, data, err := conn.ReadMessage()
		if err != nil {
			return
		}
		if mt != websocket.TextMessage {
			continue
		}

		var req clientRequest
		if err := json.Unmarshal(data, &req); err != nil {
			cl.send(serverFrame{Type: "error", Error: "malformed request"})
			continue
		}

		switch req.Action {
		case "subscribe":
			h.handleSubscribe(c, cl, req)
		case "unsubscribe":
			if _, ok := cl.subs[req.ID]; ok {
				h.feed.UnsubscribeBars(req.ID)
				delete(cl.subs, req.ID)
			}
			cl.send(serverFrame{Type: "unsubscribed", ID: req.ID})
		default:
			cl.send(serverFrame{Type: "error", Error: "unknown action: " + req.Action})
		}
	}
}

func (h *Handler) handleSubscribe(c *gin.Context, cl *streamClient, req clientRequest) {
	ctx := c.Request.Context()

	if err := h.subLimit.Wait(ctx); err != nil {
		cl.send(serverFrame{Type: "error", Error: "subscription rate limit: " + err.Error()})
		return
	}

	info, err := h.feed.ResolveSymbol(ctx, req.Symbol)
	if err != nil {
		cl.send(serverFrame{Type: "error", Error: err.Error()})
		return
	}

	resolution := domain.Resolution(req.Resolution)
	id := uuid.NewString()
	err = h.feed.SubscribeBars(ctx, info, resolution, id, func(bar domain.Bar) {
		b := bar
		cl.send(serverFrame{
			Type:       "bar",
			ID:         id,
			Symbol:     info.Symbol,
			Resolution: string(resolution),
			Bar:        &b,
		})
	})
	if err != nil {
		cl.send(serverFrame{Type: "error", Error: err.Error()})
		return
	}

	cl.subs[id] = struct{}{}
	cl.send(serverFrame{
		Type:       "subscribed",
		ID:         id,
		Symbol:     info.Symbol,
		Resolution: string(resolution),
	})
}

func (cl *streamClient) writePump() {
	ping := time.NewTicker(clientPingEvery)
	defer ping.Stop()
	for {
		select {
		case frame := <-cl.out:
			if err := cl.conn.WriteJSON(frame); err != nil {
				return
			}
		case <-ping.C:
			_ = cl.conn.WriteMessage(websocket.PingMessage, nil)
		case <-cl.done:
			return
		}
	}
}
