// Package feed is the live-bar engine: the subscription registry, the
// dispatch path from transport ticks to subscriber callbacks, and the
// chart-facing datafeed operations.
package feed

import (
	"log"
	"sync"

	"chartstream/internal/agg"
	"chartstream/internal/domain"
)

// Subscription is one chart pane's request for live bars of one symbol at
// one resolution. LastBar is owned by the registry and replaced, never
// mutated, on each matching tick.
type Subscription struct {
	ID         string
	Symbol     string // transport symbol, e.g. "ETHEUR"
	Resolution domain.Resolution
	LastBar    *domain.Bar
	Callback   func(domain.Bar)
}

// Registry owns all live subscriptions. Every mutation and every dispatch is
// serialized behind one mutex, which preserves per-symbol ordering and the
// at-most-once-dispatch guarantee in a multi-goroutine process.
type Registry struct {
	mu       sync.Mutex
	subs     map[string]*Subscription
	bySymbol map[string]map[string]struct{}
}

func NewRegistry() *Registry {
	return &Registry{
		subs:     make(map[string]*Subscription),
		bySymbol: make(map[string]map[string]struct{}),
	}
}

// Add registers a subscription and reports whether it is the first one for
// its transport symbol, i.e. whether a transport-level subscribe is due.
// Re-adding an existing id replaces the old subscription.
func (r *Registry) Add(sub *Subscription) (firstForSymbol bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if old, ok := r.subs[sub.ID]; ok {
		r.dropLocked(old)
	}
	r.subs[sub.ID] = sub

	ids, ok := r.bySymbol[sub.Symbol]
	if !ok {
		ids = make(map[string]struct{})
		r.bySymbol[sub.Symbol] = ids
	}
	ids[sub.ID] = struct{}{}
	return len(ids) == 1
}

// Remove drops a subscription. lastForSymbol reports whether no other
// subscription references the same transport symbol, i.e. whether a
// transport-level unsubscribe is due. Unknown ids are a no-op.
func (r *Registry) Remove(id string) (symbol string, lastForSymbol bool, ok bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	sub, exists := r.subs[id]
	if !exists {
		return "", false, false
	}
	r.dropLocked(sub)
	_, stillReferenced := r.bySymbol[sub.Symbol]
	return sub.Symbol, !stillReferenced, true
}

func (r *Registry) dropLocked(sub *Subscription) {
	delete(r.subs, sub.ID)
	ids := r.bySymbol[sub.Symbol]
	delete(ids, sub.ID)
	if len(ids) == 0 {
		delete(r.bySymbol, sub.Symbol)
	}
}

// Symbols returns every transport symbol with at least one live
// subscription. The transport manager reads this to replay subscribes after
// a reconnect.
func (r *Registry) Symbols() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, 0, len(r.bySymbol))
	for symbol := range r.bySymbol {
		out = append(out, symbol)
	}
	return out
}

// Count returns the number of live subscriptions.
func (r *Registry) Count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.subs)
}

// Dispatch folds a tick into every subscription on the tick's symbol,
// replaces each lastBar and invokes the callbacks. A panicking callback is
// contained so one broken chart pane cannot break delivery to the others.
//
// onBar is called once per distinct (symbol, resolution) with the freshest
// bar; onClosed once per finalized bar. Either hook may be nil.
func (r *Registry) Dispatch(tick domain.Tick, onBar func(symbol string, res domain.Resolution, bar domain.Bar), onClosed func(domain.Candle)) {
	r.mu.Lock()
	defer r.mu.Unlock()

	latest := make(map[domain.Resolution]domain.Bar)
	closed := make(map[domain.Resolution]domain.Candle)
	for _, id := range r.idsForSymbolLocked(tick.Symbol) {
		sub := r.subs[id]
		result, err := agg.Apply(sub.LastBar, tick, sub.Resolution)
		if err != nil {
			// Resolutions are validated at subscribe time, so this is a bug.
			log.Printf("feed: dispatch %s/%s: %v", sub.Symbol, sub.Resolution, err)
			continue
		}
		if result.OutOfOrder {
			log.Printf("feed: out-of-order tick for %s/%s dropped (tick %d before bar %d)",
				sub.Symbol, sub.Resolution, tick.Time, sub.LastBar.Time)
			continue
		}
		bar := result.Bar
		sub.LastBar = &bar
		latest[sub.Resolution] = bar
		if result.Closed != nil {
			closed[sub.Resolution] = result.Closed.ToCandle(sub.Symbol, sub.Resolution)
		}
		invoke(sub, bar)
	}

	if onClosed != nil {
		for _, candle := range closed {
			onClosed(candle)
		}
	}
	if onBar != nil {
		for res, bar := range latest {
			onBar(tick.Symbol, res, bar)
		}
	}
}

func (r *Registry) idsForSymbolLocked(symbol string) []string {
	ids := make([]string, 0, len(r.bySymbol[symbol]))
	for id := range r.bySymbol[symbol] {
		ids = append(ids, id)
	}
	return ids
}

func invoke(sub *Subscription, bar domain.Bar) {
	defer func() {
		if rec := recover(); rec != nil {
			log.Printf("feed: subscriber %s callback panic: %v", sub.ID, rec)
		}
	}()
	sub.Callback(bar)
}
