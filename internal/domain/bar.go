package domain

import "time"

// Bar is one OHLCV candle for a fixed time bucket. Time is the bucket start
// in milliseconds since epoch, always aligned to the resolution's bucket size.
type Bar struct {
	Time   int64   `json:"time"`
	Open   float64 `json:"open"`
	High   float64 `json:"high"`
	Low    float64 `json:"low"`
	Close  float64 `json:"close"`
	Volume float64 `json:"volume"`
}

// Tick is a single inbound price update from the transport, not yet
// aggregated into a bar. High, Low and Volume are optional on the wire.
type Tick struct {
	Symbol string
	Time   int64 // ms since epoch
	Price  float64
	High   *float64
	Low    *float64
	Volume *float64
}

// Candle is the storage form of a closed bar, keyed (symbol, interval,
// open_time) in Postgres.
type Candle struct {
	Symbol   string    `json:"symbol"`
	Interval string    `json:"interval"`
	OpenTime time.Time `json:"open_time"`
	Open     float64   `json:"open"`
	High     float64   `json:"high"`
	Low      float64   `json:"low"`
	Close    float64   `json:"close"`
	Volume   float64   `json:"volume"`
}

// ToCandle converts a live bar into its storage form.
func (b Bar) ToCandle(symbol string, resolution Resolution) Candle {
	return Candle{
		Symbol:   symbol,
		Interval: string(resolution),
		OpenTime: time.UnixMilli(b.Time).UTC(),
		Open:     b.Open,
		High:     b.High,
		Low:      b.Low,
		Close:    b.Close,
		Volume:   b.Volume,
	}
}

// ToBar converts a stored candle back into the live representation.
func (c Candle) ToBar() Bar {
	return Bar{
		Time:   c.OpenTime.UnixMilli(),
		Open:   c.Open,
		High:   c.High,
		Low:    c.Low,
		Close:  c.Close,
		Volume: c.Volume,
	}
}
