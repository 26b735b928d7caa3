package agg

import (
	"math"

	"chartstream/internal/domain"
)

// Result is the outcome of applying one tick to a subscription's bar state.
type Result struct {
	// Bar is the subscription's new current bar. When the tick is out of
	// order this is the previous bar, unchanged.
	Bar domain.Bar
	// Closed is the finalized bar when the tick opened a new bucket, nil
	// otherwise. Rollovers hand the closed bar to persistence.
	Closed *domain.Bar
	// OutOfOrder marks a tick whose bucket starts before the current bar's.
	// The tick was dropped; time never moves backward.
	OutOfOrder bool
}

// Apply folds a tick into the previous bar for one (symbol, resolution)
// subscription. prev is never mutated; every update is a fresh value.
//
// On bucket rollover the new bar opens at the previous bar's close, not at
// the tick price, so adjacent bars stay visually and analytically continuous.
func Apply(prev *domain.Bar, tick domain.Tick, resolution domain.Resolution) (Result, error) {
	bucket, err := BucketStart(tick.Time, resolution)
	if err != nil {
		return Result{}, err
	}

	// Cold start: no seed history, the tick itself opens the bar.
	if prev == nil {
		return Result{Bar: domain.Bar{
			Time:   bucket * 1000,
			Open:   tick.Price,
			High:   tick.Price,
			Low:    tick.Price,
			Close:  tick.Price,
			Volume: orZero(tick.Volume),
		}}, nil
	}

	prevBucket, err := BucketStart(prev.Time, resolution)
	if err != nil {
		return Result{}, err
	}

	switch {
	case bucket > prevBucket:
		open := prev.Close
		closed := *prev
		return Result{
			Bar: domain.Bar{
				Time:   bucket * 1000,
				Open:   open,
				High:   math.Max(open, tick.Price),
				Low:    math.Min(open, tick.Price),
				Close:  tick.Price,
				Volume: orZero(tick.Volume),
			},
			Closed: &closed,
		}, nil

	case bucket == prevBucket:
		return Result{Bar: domain.Bar{
			Time:   prev.Time,
			Open:   prev.Open,
			High:   math.Max(prev.High, orPrice(tick.High, tick.Price)),
			Low:    math.Min(prev.Low, orPrice(tick.Low, tick.Price)),
			Close:  tick.Price,
			Volume: prev.Volume + orZero(tick.Volume),
		}}, nil

	default:
		return Result{Bar: *prev, OutOfOrder: true}, nil
	}
}

func orPrice(v *float64, price float64) float64 {
	if v == nil {
		return price
	}
	return *v
}

func orZero(v *float64) float64 {
	if v == nil {
		return 0
	}
	return *v
}
