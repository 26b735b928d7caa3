package handler

import (
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"chartstream/internal/feed"
	"chartstream/internal/stream"
	"chartstream/internal/symbols"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

func dialStream(t *testing.T, svc *feed.Service) (*websocket.Conn, func()) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	h := New(testTracer, svc, 600)
	r := gin.New()
	h.RegisterRoutes(r)

	srv := httptest.NewServer(r)
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/api/stream"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		srv.Close()
		t.Fatalf("dial stream: %v", err)
	}
	return conn, func() {
		conn.Close()
		srv.Close()
	}
}

func readFrame(t *testing.T, conn *websocket.Conn) serverFrame {
	t.Helper()
	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var frame serverFrame
	if err := conn.ReadJSON(&frame); err != nil {
		t.Fatalf("read frame: %v", err)
	}
	return frame
}

func TestStreamSubscribeAndBars(t *testing.T) {
	transport := &fakeTransport{}
	svc := feed.NewService(testTracer, symbols.NewParser(), nil, nil)
	svc.AttachTransport(transport)

	conn, cleanup := dialStream(t, svc)
	defer cleanup()

	err := conn.WriteJSON(clientRequest{Action: "subscribe", Symbol: "BTCUSD", Resolution: "1"})
	if err != nil {
		t.Fatalf("write subscribe: %v", err)
	}

	ack := readFrame(t, conn)
	if ack.Type != "subscribed" || ack.ID == "" || ack.Symbol != "BTCUSD" {
		t.Fatalf("unexpected ack: %+v", ack)
	}

	// The transport-level subscribe may land just after the ack frame.
	deadline := time.Now().Add(time.Second)
	for len(transport.subscribed()) == 0 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	if len(transport.subscribed()) != 1 || transport.subscribed()[0] != "BTCUSD" {
		t.Fatalf("unexpected transport subscribes: %v", transport.subscribed())
	}

	svc.HandleMessage(stream.PriceUpdate{Symbol: "BTCUSD", Timestamp: 1700000000000, Price: 42500})

	bar := readFrame(t, conn)
	if bar.Type != "bar" || bar.ID != ack.ID || bar.Bar == nil {
		t.Fatalf("unexpected bar frame: %+v", bar)
	}
	if bar.Bar.Close != 42500 {
		t.Errorf("expected close 42500, got %v", bar.Bar.Close)
	}

	if err := conn.WriteJSON(clientRequest{Action: "unsubscribe", ID: ack.ID}); err != nil {
		t.Fatalf("write unsubscribe: %v", err)
	}
	done := readFrame(t, conn)
	if done.Type != "unsubscribed" || done.ID != ack.ID {
		t.Fatalf("unexpected unsubscribe frame: %+v", done)
	}
}

func TestStreamRejectsBadRequests(t *testing.T) {
	svc := feed.NewService(testTracer, symbols.NewParser(), nil, nil)
	svc.AttachTransport(&fakeTransport{})

	conn, cleanup := dialStream(t, svc)
	defer cleanup()

	if err := conn.WriteMessage(websocket.TextMessage, []byte("{nope")); err != nil {
		t.Fatalf("write garbage: %v", err)
	}
	if frame := readFrame(t, conn); frame.Type != "error" {
		t.Fatalf("expected error frame for garbage, got %+v", frame)
	}

	if err := conn.WriteJSON(clientRequest{Action: "subscribe", Symbol: "BTCUSD", Resolution: "7"}); err != nil {
		t.Fatalf("write subscribe: %v", err)
	}
	if frame := readFrame(t, conn); frame.Type != "error" {
		t.Fatalf("expected error frame for bad resolution, got %+v", frame)
	}

	if err := conn.WriteJSON(clientRequest{Action: "rewind"}); err != nil {
		t.Fatalf("write unknown action: %v", err)
	}
	if frame := readFrame(t, conn); frame.Type != "error" {
		t.Fatalf("expected error frame for unknown action, got %+v", frame)
	}
}

func TestStreamDisconnectTearsDownSubscriptions(t *testing.T) {
	transport := &fakeTransport{}
	svc := feed.NewService(testTracer, symbols.NewParser(), nil, nil)
	svc.AttachTransport(transport)

	conn, cleanup := dialStream(t, svc)

	if err := conn.WriteJSON(clientRequest{Action: "subscribe", Symbol: "ETHUSD", Resolution: "5"}); err != nil {
		t.Fatalf("write subscribe: %v", err)
	}
	if ack := readFrame(t, conn); ack.Type != "subscribed" {
		t.Fatalf("unexpected ack: %+v", ack)
	}

	cleanup()

	deadline := time.Now().Add(time.Second)
	for len(transport.unsubscribed()) == 0 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	if len(transport.unsubscribed()) != 1 || transport.unsubscribed()[0] != "ETHUSD" {
		t.Fatalf("expected transport unsubscribe on disconnect, got %v", transport.unsubscribed())
	}
}
