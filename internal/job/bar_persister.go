package job

import (
	"context"
	"log"
	"time"

	"chartstream/internal/domain"

	"go.opentelemetry.io/otel/trace"
)

const maxBatchSize = 100

type CandleWriter interface {
	UpsertCandles(ctx context.Context, candles []domain.Candle) error
}

// BarPersister drains the feed's closed-bar stream and batch-writes it to
// the candle store, keeping database writes off the dispatch path.
type BarPersister struct {
	tracer        trace.Tracer
	writer        CandleWriter
	bars          <-chan domain.Candle
	flushInterval time.Duration
}

func NewBarPersister(tracer trace.Tracer, writer CandleWriter, bars <-chan domain.Candle, flushIntervalSecs int) *BarPersister {
	return &BarPersister{
		tracer:        tracer,
		writer:        writer,
		bars:          bars,
		flushInterval: time.Duration(flushIntervalSecs) * time.Second,
	}
}

// Start consumes closed bars until ctx is cancelled or the stream closes.
// A partial batch is flushed on shutdown so finalized bars are not lost.
func (p *BarPersister) Start(ctx context.Context) {
	log.Println("Bar persister starting...")

	ticker := time.NewTicker(p.flushInterval)
	defer ticker.Stop()

	batch := make([]domain.Candle, 0, maxBatchSize)
	for {
		select {
		case <-ctx.Done():
			p.flush(context.Background(), batch)
			log.Println("Bar persister stopped")
			return
		case candle, ok := <-p.bars:
			if !ok {
				p.flush(ctx, batch)
				log.Println("Bar persister stopped: stream closed")
				return
			}
			batch = append(batch, candle)
			if len(batch) >= maxBatchSize {
				p.flush(ctx, batch)
				batch = batch[:0]
			}
		case <-ticker.C:
			p.flush(ctx, batch)
			batch = batch[:0]
		}
	}
}

func (p *BarPersister) flush(ctx context.Context, batch []domain.Candle) {
	if len(batch) == 0 {
		return
	}

	ctx, span := p.tracer.Start(ctx, "bar-persister.flush")
	defer span.End()

	if err := p.writer.UpsertCandles(ctx, batch); err != nil {
		log.Printf("bar persister flush error (%d candles): %v", len(batch), err)
		return
	}
	log.Printf("Persisted %d closed bar(s)", len(batch))
}
