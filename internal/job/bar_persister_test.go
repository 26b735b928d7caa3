package job

import (
	"context"
	"sync"
	"testing"
	"time"

	"chartstream/internal/domain"

	"go.opentelemetry.io/otel/trace"
)

var testTracer = trace.NewNoopTracerProvider().Tracer("test")

type mockWriter struct {
	mu      sync.Mutex
	flushes [][]domain.Candle
	err     error
}

func (m *mockWriter) UpsertCandles(ctx context.Context, candles []domain.Candle) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.flushes = append(m.flushes, append([]domain.Candle(nil), candles...))
	return nil
}

func (m *mockWriter) total() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, f := range m.flushes {
		n += len(f)
	}
	return n
}

func TestPersisterFlushesOnInterval(t *testing.T) {
	t.Parallel()

	bars := make(chan domain.Candle, 8)
	writer := &mockWriter{}
	p := NewBarPersister(testTracer, writer, bars, 1)
	p.flushInterval = 20 * time.Millisecond

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go p.Start(ctx)

	bars <- domain.Candle{Symbol: "BTCUSD", Interval: "1", Close: 1}
	bars <- domain.Candle{Symbol: "BTCUSD", Interval: "1", Close: 2}

	deadline := time.Now().Add(time.Second)
	for writer.total() < 2 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	if writer.total() != 2 {
		t.Fatalf("expected 2 persisted candles, got %d", writer.total())
	}
}

func TestPersisterFlushesRemainderOnClose(t *testing.T) {
	t.Parallel()

	bars := make(chan domain.Candle, 8)
	writer := &mockWriter{}
	p := NewBarPersister(testTracer, writer, bars, 3600) // interval never fires

	done := make(chan struct{})
	go func() {
		p.Start(context.Background())
		close(done)
	}()

	bars <- domain.Candle{Symbol: "ETHEUR", Interval: "5", Close: 3}
	close(bars)

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("persister did not stop on stream close")
	}
	if writer.total() != 1 {
		t.Fatalf("pending candle not flushed on close, got %d", writer.total())
	}
}

func TestPersisterFlushesFullBatchImmediately(t *testing.T) {
	t.Parallel()

	bars := make(chan domain.Candle, maxBatchSize+8)
	writer := &mockWriter{}
	p := NewBarPersister(testTracer, writer, bars, 3600)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go p.Start(ctx)

	for i := 0; i < maxBatchSize; i++ {
		bars <- domain.Candle{Symbol: "BTCUSD", Interval: "1", Close: float64(i)}
	}

	deadline := time.Now().Add(time.Second)
	for writer.total() < maxBatchSize && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	if writer.total() != maxBatchSize {
		t.Fatalf("full batch not flushed, got %d", writer.total())
	}
}
