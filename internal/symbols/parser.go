// Package symbols turns free-form ticker strings into their exchange /
// base / quote decomposition.
package symbols

import (
	"regexp"
	"strings"

	"chartstream/internal/domain"
)

var (
	exchangePairRe = regexp.MustCompile(`^([A-Za-z0-9_]+):([A-Za-z0-9]+)/([A-Za-z0-9]+)$`)
	barePairRe     = regexp.MustCompile(`^([A-Za-z0-9]+)/([A-Za-z0-9]+)$`)
	sixLetterRe    = regexp.MustCompile(`^[A-Za-z]{6}$`)
)

// Parser resolves ticker grammars against configurable exchange defaults.
// Grammars are tried in order: explicit exchange prefix, bare BASE/QUOTE
// pair, concatenated 3+3 forex code, index ticker, commodity literal.
type Parser struct {
	CryptoExchange    string
	ForexExchange     string
	IndexExchange     string
	CommodityExchange string
}

// NewParser returns a parser with the production exchange defaults.
func NewParser() *Parser {
	return &Parser{
		CryptoExchange:    "Bitfinex",
		ForexExchange:     "FOREXCOM",
		IndexExchange:     "SP",
		CommodityExchange: "COMEX",
	}
}

// Parse decomposes a ticker. It never panics; tickers matching no grammar
// return domain.ErrSymbolNotParseable and callers surface the failure as
// "cannot resolve symbol".
func (p *Parser) Parse(ticker string) (domain.ParsedSymbol, error) {
	ticker = strings.TrimSpace(ticker)

	if m := exchangePairRe.FindStringSubmatch(ticker); m != nil {
		return domain.ParsedSymbol{Exchange: m[1], FromSymbol: m[2], ToSymbol: m[3]}, nil
	}

	if m := barePairRe.FindStringSubmatch(ticker); m != nil {
		return domain.ParsedSymbol{Exchange: p.CryptoExchange, FromSymbol: m[1], ToSymbol: m[2]}, nil
	}

	if sixLetterRe.MatchString(ticker) {
		upper := strings.ToUpper(ticker)
		return domain.ParsedSymbol{Exchange: p.ForexExchange, FromSymbol: upper[:3], ToSymbol: upper[3:]}, nil
	}

	if strings.Contains(ticker, "500") || strings.Contains(ticker, "INDEX") {
		return domain.ParsedSymbol{Exchange: p.IndexExchange, FromSymbol: ticker, ToSymbol: "USD"}, nil
	}

	if ticker == "GOLD" {
		return domain.ParsedSymbol{Exchange: p.CommodityExchange, FromSymbol: "GOLD", ToSymbol: "USD"}, nil
	}

	return domain.ParsedSymbol{}, domain.ErrSymbolNotParseable
}
