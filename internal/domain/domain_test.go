package domain

import (
	"errors"
	"testing"
	"time"
)

func TestBucketSeconds(t *testing.T) {
	want := map[Resolution]int64{
		Res1: 60, Res5: 300, Res15: 900, Res30: 1800, Res60: 3600,
		Res240: 14400, Res1D: 86400, Res1W: 604800, Res1M: 2592000,
	}
	for res, secs := range want {
		got, err := res.BucketSeconds()
		if err != nil {
			t.Errorf("BucketSeconds(%q) error: %v", res, err)
		}
		if got != secs {
			t.Errorf("BucketSeconds(%q) = %d, want %d", res, got, secs)
		}
	}
}

func TestBucketSecondsUnknownToken(t *testing.T) {
	if _, err := Resolution("7").BucketSeconds(); !errors.Is(err, ErrInvalidResolution) {
		t.Fatalf("expected ErrInvalidResolution, got %v", err)
	}
	if Resolution("1d").Valid() {
		t.Fatal("lowercase token should not be valid")
	}
}

func TestTransportSymbol(t *testing.T) {
	p := ParsedSymbol{Exchange: "Bitfinex", FromSymbol: "ETH", ToSymbol: "EUR"}
	if p.TransportSymbol() != "ETHEUR" {
		t.Fatalf("unexpected transport symbol: %s", p.TransportSymbol())
	}
	if p.Ticker() != "Bitfinex:ETH/EUR" {
		t.Fatalf("unexpected ticker: %s", p.Ticker())
	}
}

func TestBarCandleRoundTrip(t *testing.T) {
	b := Bar{Time: 1700000040000, Open: 100, High: 110, Low: 95, Close: 105, Volume: 3}
	c := b.ToCandle("BTCUSD", Res1)
	if c.Symbol != "BTCUSD" || c.Interval != "1" {
		t.Fatalf("unexpected candle key: %+v", c)
	}
	if !c.OpenTime.Equal(time.UnixMilli(1700000040000)) {
		t.Fatalf("unexpected open time: %v", c.OpenTime)
	}
	if got := c.ToBar(); got != b {
		t.Fatalf("round trip mismatch: %+v != %+v", got, b)
	}
}

func TestCatalogIndexed(t *testing.T) {
	if len(CatalogByTicker) != len(Catalog) {
		t.Fatalf("catalog index size %d, want %d", len(CatalogByTicker), len(Catalog))
	}
	if _, ok := CatalogByTicker["Bitfinex:BTC/USD"]; !ok {
		t.Fatal("BTC/USD missing from catalog index")
	}
}
