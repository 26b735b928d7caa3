package domain

import "errors"

// ErrSymbolNotParseable is returned when no ticker grammar matches.
var ErrSymbolNotParseable = errors.New("symbol not parseable")

// ParsedSymbol is the deterministic decomposition of a free-form ticker.
type ParsedSymbol struct {
	Exchange   string `json:"exchange"`
	FromSymbol string `json:"from_symbol"`
	ToSymbol   string `json:"to_symbol"`
}

// TransportSymbol is the concatenated base+quote key used at the wire level,
// distinct from the human-facing ticker ("ETH/EUR" -> "ETHEUR").
func (p ParsedSymbol) TransportSymbol() string {
	return p.FromSymbol + p.ToSymbol
}

// Ticker is the canonical human-facing form, "Exchange:BASE/QUOTE".
func (p ParsedSymbol) Ticker() string {
	return p.Exchange + ":" + p.FromSymbol + "/" + p.ToSymbol
}

// SymbolInfo is the chart-facing metadata for a resolvable symbol.
type SymbolInfo struct {
	Ticker      string       `json:"ticker"`
	Name        string       `json:"name"`
	Description string       `json:"description"`
	Type        string       `json:"type"`
	Session     string       `json:"session"`
	Exchange    string       `json:"exchange"`
	Symbol      string       `json:"symbol"` // transport symbol
	PriceScale  int          `json:"pricescale"`
	MinMov      int          `json:"minmov"`
	HasIntraday bool         `json:"has_intraday"`
	Parsed      ParsedSymbol `json:"-"`
}

// CatalogEntry describes one tradable symbol in the static catalog.
type CatalogEntry struct {
	Ticker      string
	Description string
	Type        string
	Session     string
	PriceScale  int
	MinMov      int
}

// Catalog is the static universe of tradable symbols. Symbol resolution
// falls back to defaults for parseable tickers not listed here.
var Catalog = []CatalogEntry{
	{Ticker: "Bitfinex:BTC/USD", Description: "Bitcoin / US Dollar", Type: "crypto", Session: "24x7", PriceScale: 100, MinMov: 1},
	{Ticker: "Bitfinex:ETH/EUR", Description: "Ethereum / Euro", Type: "crypto", Session: "24x7", PriceScale: 100, MinMov: 1},
	{Ticker: "Bitfinex:ETH/BTC", Description: "Ethereum / Bitcoin", Type: "crypto", Session: "24x7", PriceScale: 100000, MinMov: 1},
	{Ticker: "Bitfinex:LTC/USD", Description: "Litecoin / US Dollar", Type: "crypto", Session: "24x7", PriceScale: 100, MinMov: 1},
	{Ticker: "EURUSD", Description: "Euro / US Dollar", Type: "forex", Session: "24x5", PriceScale: 10000, MinMov: 1},
	{Ticker: "EURTRY", Description: "Euro / Turkish Lira", Type: "forex", Session: "24x5", PriceScale: 10000, MinMov: 1},
	{Ticker: "GBPJPY", Description: "British Pound / Japanese Yen", Type: "forex", Session: "24x5", PriceScale: 1000, MinMov: 1},
	{Ticker: "US500", Description: "S&P 500 Index", Type: "index", Session: "0930-1600", PriceScale: 100, MinMov: 1},
	{Ticker: "GOLD", Description: "Gold Spot / US Dollar", Type: "commodity", Session: "24x5", PriceScale: 100, MinMov: 1},
}

// CatalogByTicker indexes the catalog on the ticker string.
var CatalogByTicker map[string]CatalogEntry

func init() {
	CatalogByTicker = make(map[string]CatalogEntry, len(Catalog))
	for _, e := range Catalog {
		CatalogByTicker[e.Ticker] = e
	}
}
