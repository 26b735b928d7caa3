// feedsim is a stand-in for the upstream price feed: a websocket server
// speaking the same frame protocol, emitting random-walk ticks for every
// subscribed symbol. Point FEED_WS_URL at it for local development.
package main

import (
	"encoding/json"
	"log"
	"math/rand"
	"net/http"
	"os"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/joho/godotenv"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(*http.Request) bool { return true },
}

type command struct {
	Type   string `json:"type"`
	Symbol string `json:"symbol,omitempty"`
}

type frame struct {
	Type      string  `json:"type"`
	Symbol    string  `json:"symbol,omitempty"`
	Timestamp int64   `json:"timestamp,omitempty"`
	Price     float64 `json:"price,omitempty"`
	Volume    float64 `json:"volume,omitempty"`
}

// walker is a per-symbol random walk. Prices drift a fraction of a percent
// per tick and never go below a floor.
type walker struct {
	price float64
}

func (w *walker) next() float64 {
	w.price *= 1 + (rand.Float64()-0.5)*0.004
	if w.price < 0.01 {
		w.price = 0.01
	}
	return w.price
}

func startPrice(symbol string) float64 {
	switch {
	case len(symbol) >= 3 && symbol[:3] == "BTC":
		return 40000 + rand.Float64()*10000
	case len(symbol) >= 3 && symbol[:3] == "ETH":
		return 2000 + rand.Float64()*800
	default:
		return 1 + rand.Float64()*100
	}
}

type session struct {
	mu      sync.Mutex
	conn    *websocket.Conn
	walkers map[string]*walker
}

func (s *session) writeJSON(v any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.conn.WriteJSON(v); err != nil {
		log.Printf("feedsim: write: %v", err)
	}
}

func (s *session) handleCommand(data []byte) {
	var cmd command
	if err := json.Unmarshal(data, &cmd); err != nil {
		log.Printf("feedsim: malformed command: %v", err)
		return
	}

	s.mu.Lock()
	switch cmd.Type {
	case "subscribe":
		if _, ok := s.walkers[cmd.Symbol]; !ok {
			s.walkers[cmd.Symbol] = &walker{price: startPrice(cmd.Symbol)}
		}
		s.mu.Unlock()
		s.writeJSON(frame{Type: "subscription_success", Symbol: cmd.Symbol})
	case "unsubscribe":
		delete(s.walkers, cmd.Symbol)
		s.mu.Unlock()
		s.writeJSON(frame{Type: "unsubscription_success", Symbol: cmd.Symbol})
	case "ping":
		s.mu.Unlock()
		s.writeJSON(frame{Type: "pong"})
	default:
		s.mu.Unlock()
		log.Printf("feedsim: unknown command %q", cmd.Type)
	}
}

func (s *session) tickLoop(done <-chan struct{}, every time.Duration) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-done:
			return
		case <-ticker.C:
			now := time.Now().UnixMilli()
			s.mu.Lock()
			updates := make([]frame, 0, len(s.walkers))
			for symbol, w := range s.walkers {
				updates = append(updates, frame{
					Type:      "price_update",
					Symbol:    symbol,
					Timestamp: now,
					Price:     w.next(),
					Volume:    rand.Float64() * 2,
				})
			}
			s.mu.Unlock()
			for _, u := range updates {
				s.writeJSON(u)
			}
		}
	}
}

func serveStream(tickEvery time.Duration) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			log.Printf("feedsim: upgrade: %v", err)
			return
		}
		defer conn.Close()
		log.Printf("feedsim: client connected from %s", conn.RemoteAddr())

		s := &session{conn: conn, walkers: make(map[string]*walker)}
		done := make(chan struct{})
		go s.tickLoop(done, tickEvery)
		defer close(done)

		for {
			_, data, err := conn.ReadMessage()
			if err != nil {
				log.Printf("feedsim: client gone: %v", err)
				return
			}
			s.handleCommand(data)
		}
	}
}

func main() {
	godotenv.Load()

	addr := os.Getenv("FEEDSIM_ADDR")
	if addr == "" {
		addr = ":8765"
	}

	http.HandleFunc("/stream", serveStream(500*time.Millisecond))

	log.Printf("feedsim listening on %s", addr)
	if err := http.ListenAndServe(addr, nil); err != nil {
		log.Fatalf("feedsim: %v", err)
	}
}
