// Package stream owns the single upstream WebSocket connection: the wire
// codec, the connection state machine and reconnection with exponential
// backoff.
package stream

import (
	"encoding/json"
	"fmt"

	"chartstream/internal/domain"
)

// Message is one decoded inbound frame. The message set is closed; consumers
// switch exhaustively on the concrete type.
type Message interface {
	isMessage()
}

// PriceUpdate is a tick for one transport symbol. Open, High, Low and Volume
// are optional on the wire.
type PriceUpdate struct {
	Symbol    string
	Timestamp int64 // ms since epoch
	Price     float64
	Open      *float64
	High      *float64
	Low       *float64
	Volume    *float64
}

// SubscribeAck acknowledges an outbound subscribe. Informational only.
type SubscribeAck struct {
	Symbol string
}

// UnsubscribeAck acknowledges an outbound unsubscribe. Informational only.
type UnsubscribeAck struct {
	Symbol string
}

// Pong is the heartbeat reply.
type Pong struct{}

func (PriceUpdate) isMessage()    {}
func (SubscribeAck) isMessage()   {}
func (UnsubscribeAck) isMessage() {}
func (Pong) isMessage()           {}

// Tick converts the update into the aggregator's input form.
func (u PriceUpdate) Tick() domain.Tick {
	return domain.Tick{
		Symbol: u.Symbol,
		Time:   u.Timestamp,
		Price:  u.Price,
		High:   u.High,
		Low:    u.Low,
		Volume: u.Volume,
	}
}

type envelope struct {
	Type      string   `json:"type"`
	Symbol    string   `json:"symbol,omitempty"`
	Timestamp int64    `json:"timestamp,omitempty"`
	Price     float64  `json:"price,omitempty"`
	Open      *float64 `json:"open,omitempty"`
	High      *float64 `json:"high,omitempty"`
	Low       *float64 `json:"low,omitempty"`
	Volume    *float64 `json:"volume,omitempty"`
}

// Decode parses one inbound JSON text frame into its message type. Frames
// with an unknown or missing type are an error; callers log and drop them.
func Decode(frame []byte) (Message, error) {
	var env envelope
	if err := json.Unmarshal(frame, &env); err != nil {
		return nil, fmt.Errorf("malformed frame: %w", err)
	}
	switch env.Type {
	case "price_update":
		if env.Symbol == "" {
			return nil, fmt.Errorf("price_update without symbol")
		}
		return PriceUpdate{
			Symbol:    env.Symbol,
			Timestamp: env.Timestamp,
			Price:     env.Price,
			Open:      env.Open,
			High:      env.High,
			Low:       env.Low,
			Volume:    env.Volume,
		}, nil
	case "subscription_success":
		return SubscribeAck{Symbol: env.Symbol}, nil
	case "unsubscription_success":
		return UnsubscribeAck{Symbol: env.Symbol}, nil
	case "pong":
		return Pong{}, nil
	default:
		return nil, fmt.Errorf("unknown frame type %q", env.Type)
	}
}

type command struct {
	Type   string `json:"type"`
	Symbol string `json:"symbol,omitempty"`
}

func encodeSubscribe(symbol string) []byte {
	b, _ := json.Marshal(command{Type: "subscribe", Symbol: symbol})
	return b
}

func encodeUnsubscribe(symbol string) []byte {
	b, _ := json.Marshal(command{Type: "unsubscribe", Symbol: symbol})
	return b
}

func encodePing() []byte {
	b, _ := json.Marshal(command{Type: "ping"})
	return b
}
