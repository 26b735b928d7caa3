package feed

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	"chartstream/internal/domain"
	"chartstream/internal/stream"
	"chartstream/internal/symbols"

	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel/trace"
)

const barCacheTTL = 48 * time.Hour

// Transport is the upstream connection surface the feed drives.
type Transport interface {
	Subscribe(symbol string) error
	Unsubscribe(symbol string) error
	Status() stream.Status
}

// CandleRepository supplies historical candles and the latest stored candle
// used to prime a new subscription's aggregation state.
type CandleRepository interface {
	GetCandlesRange(ctx context.Context, symbol, interval string, from, to time.Time) ([]*domain.Candle, error)
	LatestCandle(ctx context.Context, symbol, interval string) (*domain.Candle, error)
}

// RedisClient is the subset of the Redis API the feed uses.
type RedisClient interface {
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd
	Get(ctx context.Context, key string) *redis.StringCmd
}

// Service implements the chart-facing datafeed operations on top of the
// subscription registry, the transport manager and the history store.
type Service struct {
	tracer    trace.Tracer
	parser    *symbols.Parser
	registry  *Registry
	repo      CandleRepository
	redis     RedisClient
	transport Transport
	closedCh  chan domain.Candle
}

func NewService(tracer trace.Tracer, parser *symbols.Parser, repo CandleRepository, redisClient RedisClient) *Service {
	return &Service{
		tracer:   tracer,
		parser:   parser,
		registry: NewRegistry(),
		repo:     repo,
		redis:    redisClient,
		closedCh: make(chan domain.Candle, 256),
	}
}

// AttachTransport connects the service to its transport manager. Done after
// construction because the manager itself is built around the service's
// HandleMessage and ActiveSymbols.
func (s *Service) AttachTransport(t Transport) {
	s.transport = t
}

// ActiveSymbols lists transport symbols with live subscriptions. Wired as
// the transport manager's resubscribe source.
func (s *Service) ActiveSymbols() []string {
	return s.registry.Symbols()
}

// ClosedBars delivers finalized bars for persistence.
func (s *Service) ClosedBars() <-chan domain.Candle {
	return s.closedCh
}

// TransportStatus exposes the connection status for the REST API and bot.
func (s *Service) TransportStatus() stream.Status {
	if s.transport == nil {
		return stream.Status{}
	}
	return s.transport.Status()
}

// ResolveSymbol parses a free-form ticker and returns chart metadata for it,
// from the catalog when listed, with defaults otherwise.
func (s *Service) ResolveSymbol(ctx context.Context, ticker string) (*domain.SymbolInfo, error) {
	_, span := s.tracer.Start(ctx, "feed.resolve-symbol")
	defer span.End()

	parsed, err := s.parser.Parse(ticker)
	if err != nil {
		return nil, fmt.Errorf("cannot resolve symbol %q: %w", ticker, err)
	}

	info := &domain.SymbolInfo{
		Ticker:      ticker,
		Name:        parsed.FromSymbol + "/" + parsed.ToSymbol,
		Description: parsed.FromSymbol + "/" + parsed.ToSymbol,
		Type:        "crypto",
		Session:     "24x7",
		Exchange:    parsed.Exchange,
		Symbol:      parsed.TransportSymbol(),
		PriceScale:  100,
		MinMov:      1,
		HasIntraday: true,
		Parsed:      parsed,
	}

	entry, ok := domain.CatalogByTicker[ticker]
	if !ok {
		entry, ok = domain.CatalogByTicker[parsed.Ticker()]
	}
	if ok {
		info.Description = entry.Description
		info.Type = entry.Type
		info.Session = entry.Session
		info.PriceScale = entry.PriceScale
		info.MinMov = entry.MinMov
	}
	return info, nil
}

// GetBars returns historical bars for [from, to). noData reports an empty
// period, which the chart treats as "no earlier history".
func (s *Service) GetBars(ctx context.Context, info *domain.SymbolInfo, resolution domain.Resolution, from, to time.Time) ([]domain.Bar, bool, error) {
	ctx, span := s.tracer.Start(ctx, "feed.get-bars")
	defer span.End()

	if !resolution.Valid() {
		return nil, false, domain.ErrInvalidResolution
	}
	if s.repo == nil {
		// Running without a history store, every period is empty.
		return []domain.Bar{}, true, nil
	}

	candles, err := s.repo.GetCandlesRange(ctx, info.Symbol, string(resolution), from, to)
	if err != nil {
		return nil, false, fmt.Errorf("load history for %s/%s: %w", info.Symbol, resolution, err)
	}

	bars := make([]domain.Bar, 0, len(candles))
	for _, c := range candles {
		bars = append(bars, c.ToBar())
	}
	return bars, len(bars) == 0, nil
}

// SubscribeBars registers a live-bar subscription. The first subscription
// for a transport symbol triggers the one transport-level subscribe; later
// ones piggyback on it regardless of resolution.
func (s *Service) SubscribeBars(ctx context.Context, info *domain.SymbolInfo, resolution domain.Resolution, subscriberID string, onBar func(domain.Bar)) error {
	ctx, span := s.tracer.Start(ctx, "feed.subscribe-bars")
	defer span.End()

	if !resolution.Valid() {
		return domain.ErrInvalidResolution
	}
	if info == nil || info.Symbol == "" {
		return domain.ErrSymbolNotParseable
	}

	sub := &Subscription{
		ID:         subscriberID,
		Symbol:     info.Symbol,
		Resolution: resolution,
		LastBar:    s.seedBar(ctx, info.Symbol, resolution),
		Callback:   onBar,
	}

	if first := s.registry.Add(sub); first {
		if err := s.transport.Subscribe(info.Symbol); err != nil {
			log.Printf("feed: transport subscribe %s: %v", info.Symbol, err)
		}
	}
	return nil
}

// UnsubscribeBars removes a subscription and, when it was the last one for
// its transport symbol, the transport-level subscription too. Unknown ids
// are a no-op.
func (s *Service) UnsubscribeBars(subscriberID string) {
	symbol, last, ok := s.registry.Remove(subscriberID)
	if !ok || !last {
		return
	}
	if err := s.transport.Unsubscribe(symbol); err != nil {
		log.Printf("feed: transport unsubscribe %s: %v", symbol, err)
	}
}

// HandleMessage consumes decoded transport frames. Wired as the transport
// manager's message sink.
func (s *Service) HandleMessage(msg stream.Message) {
	switch m := msg.(type) {
	case stream.PriceUpdate:
		s.registry.Dispatch(m.Tick(), s.cacheBar, s.enqueueClosed)
	case stream.SubscribeAck:
		log.Printf("feed: subscription confirmed for %s", m.Symbol)
	case stream.UnsubscribeAck:
		log.Printf("feed: unsubscription confirmed for %s", m.Symbol)
	case stream.Pong:
		// Heartbeat reply, nothing to do.
	}
}

func (s *Service) enqueueClosed(candle domain.Candle) {
	select {
	case s.closedCh <- candle:
	default:
		log.Printf("feed: closed-bar queue full, dropping %s/%s @ %d",
			candle.Symbol, candle.Interval, candle.OpenTime.Unix())
	}
}

// seedBar primes a new subscription: latest-bar cache first, then the
// history store, then cold start (nil) when neither has anything.
func (s *Service) seedBar(ctx context.Context, symbol string, resolution domain.Resolution) *domain.Bar {
	if s.redis != nil {
		if bar, err := s.getBarCache(ctx, symbol, resolution); err != nil {
			log.Printf("feed: bar cache read error: %v", err)
		} else if bar != nil {
			return bar
		}
	}

	if s.repo != nil {
		candle, err := s.repo.LatestCandle(ctx, symbol, string(resolution))
		if err != nil {
			log.Printf("feed: latest candle lookup %s/%s: %v", symbol, resolution, err)
			return nil
		}
		if candle != nil {
			bar := candle.ToBar()
			return &bar
		}
	}
	return nil
}

func (s *Service) cacheBar(symbol string, resolution domain.Resolution, bar domain.Bar) {
	if s.redis == nil {
		return
	}
	data, err := json.Marshal(bar)
	if err != nil {
		return
	}
	if err := s.redis.Set(context.Background(), barCacheKey(symbol, resolution), data, barCacheTTL).Err(); err != nil {
		log.Printf("feed: bar cache write error for %s/%s: %v", symbol, resolution, err)
	}
}

func (s *Service) getBarCache(ctx context.Context, symbol string, resolution domain.Resolution) (*domain.Bar, error) {
	data, err := s.redis.Get(ctx, barCacheKey(symbol, resolution)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var bar domain.Bar
	if err := json.Unmarshal(data, &bar); err != nil {
		return nil, err
	}
	return &bar, nil
}

// LastBarCached returns the cached live bar for a symbol and resolution, for
// the ops bot and status surfaces.
func (s *Service) LastBarCached(ctx context.Context, symbol string, resolution domain.Resolution) (*domain.Bar, error) {
	if s.redis == nil {
		return nil, nil
	}
	return s.getBarCache(ctx, symbol, resolution)
}

func barCacheKey(symbol string, resolution domain.Resolution) string {
	return "bar:" + symbol + ":" + string(resolution)
}
