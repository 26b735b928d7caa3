package stream

import (
	"testing"
)

func TestDecodePriceUpdate(t *testing.T) {
	t.Parallel()

	frame := []byte(`{"type":"price_update","symbol":"BTCUSD","timestamp":1700000000000,"price":43210.5,"high":43300,"volume":1.5}`)
	msg, err := Decode(frame)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	u, ok := msg.(PriceUpdate)
	if !ok {
		t.Fatalf("expected PriceUpdate, got %T", msg)
	}
	if u.Symbol != "BTCUSD" || u.Timestamp != 1700000000000 || u.Price != 43210.5 {
		t.Fatalf("unexpected update: %+v", u)
	}
	if u.High == nil || *u.High != 43300 {
		t.Fatalf("high not decoded: %+v", u.High)
	}
	if u.Open != nil || u.Low != nil {
		t.Fatalf("absent optional fields must stay nil: %+v", u)
	}
	if u.Volume == nil || *u.Volume != 1.5 {
		t.Fatalf("volume not decoded: %+v", u.Volume)
	}

	tick := u.Tick()
	if tick.Symbol != "BTCUSD" || tick.Price != 43210.5 || tick.Time != 1700000000000 {
		t.Fatalf("unexpected tick: %+v", tick)
	}
}

func TestDecodeAcksAndPong(t *testing.T) {
	t.Parallel()

	msg, err := Decode([]byte(`{"type":"subscription_success","symbol":"ETHEUR"}`))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ack, ok := msg.(SubscribeAck); !ok || ack.Symbol != "ETHEUR" {
		t.Fatalf("unexpected message: %#v", msg)
	}

	msg, err = Decode([]byte(`{"type":"unsubscription_success","symbol":"ETHEUR"}`))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ack, ok := msg.(UnsubscribeAck); !ok || ack.Symbol != "ETHEUR" {
		t.Fatalf("unexpected message: %#v", msg)
	}

	msg, err = Decode([]byte(`{"type":"pong"}`))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, ok := msg.(Pong); !ok {
		t.Fatalf("expected Pong, got %#v", msg)
	}
}

func TestDecodeRejectsBadFrames(t *testing.T) {
	t.Parallel()

	for _, frame := range []string{
		`not json`,
		`{"type":"trade","symbol":"BTCUSD"}`,
		`{"symbol":"BTCUSD"}`,
		`{"type":"price_update","timestamp":1}`,
	} {
		if _, err := Decode([]byte(frame)); err == nil {
			t.Errorf("Decode(%q): expected error", frame)
		}
	}
}

func TestEncodeCommands(t *testing.T) {
	t.Parallel()

	if got := string(encodeSubscribe("BTCUSD")); got != `{"type":"subscribe","symbol":"BTCUSD"}` {
		t.Fatalf("unexpected subscribe frame: %s", got)
	}
	if got := string(encodeUnsubscribe("BTCUSD")); got != `{"type":"unsubscribe","symbol":"BTCUSD"}` {
		t.Fatalf("unexpected unsubscribe frame: %s", got)
	}
	if got := string(encodePing()); got != `{"type":"ping"}` {
		t.Fatalf("unexpected ping frame: %s", got)
	}
}
