package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"chartstream/internal/bot"
	"chartstream/internal/cache"
	"chartstream/internal/config"
	"chartstream/internal/db"
	"chartstream/internal/feed"
	"chartstream/internal/handler"
	"chartstream/internal/job"
	"chartstream/internal/repository"
	"chartstream/internal/stream"
	"chartstream/internal/symbols"
	"chartstream/pkg/tracing"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
)

var (
	loadEnvFunc            = godotenv.Load
	loadConfigFunc         = config.Load
	initPostgresFunc       = db.InitPostgres
	initRedisFunc          = cache.InitRedis
	initTracerFunc         = tracing.InitTracer
	newCandleRepoFunc      = repository.NewCandleRepository
	newFeedServiceFunc     = feed.NewService
	newStreamManagerFunc   = stream.NewManager
	connectTransportFunc   = func(m *stream.Manager) { m.Connect() }
	startPersisterFunc     = func(p *job.BarPersister, ctx context.Context) { go p.Start(ctx) }
	startTelegramBotFunc   = bot.StartTelegramBot
	newHandlerFunc         = handler.New
	newRouterFunc          = gin.Default
	setupSignalNotify      = signal.Notify
	waitForSignalFunc      = func(quit <-chan os.Signal) { <-quit }
	startHTTPServerFunc    = func(srv *http.Server) error { return srv.ListenAndServe() }
	shutdownHTTPServerFunc = func(srv *http.Server, ctx context.Context) error { return srv.Shutdown(ctx) }
)

func main() {
	loadEnvFunc()

	cfg := loadConfigFunc()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Init Postgres and Redis
	os.Setenv("DATABASE_URL", cfg.DatabaseURL)
	os.Setenv("REDIS_URL", cfg.RedisURL)
	initPostgresFunc(ctx)
	initRedisFunc(ctx)

	// Init tracing
	tp, tracer, err := initTracerFunc(ctx)
	if err != nil {
		log.Fatalf("failed to initialize tracer: %v", err)
	}
	defer func() {
		if err := tp.Shutdown(ctx); err != nil {
			log.Printf("error shutting down tracer provider: %v", err)
		}
	}()

	// History store is optional, the feed runs live-only without it.
	var candleRepo feed.CandleRepository
	var candleWriter job.CandleWriter
	if db.Pool != nil {
		repo := newCandleRepoFunc(db.Pool, tracer)
		if err := repo.RunMigrations(ctx); err != nil {
			log.Fatalf("failed to run migrations: %v", err)
		}
		candleRepo = repo
		candleWriter = repo
	}
	var redisClient feed.RedisClient
	if cache.Client != nil {
		redisClient = cache.Client
	}

	// Feed service plus the upstream transport. The manager is built around
	// the service's message sink and resubscribe source, then attached.
	parser := &symbols.Parser{
		CryptoExchange:    cfg.DefaultCryptoExchange,
		ForexExchange:     cfg.ForexExchange,
		IndexExchange:     cfg.IndexExchange,
		CommodityExchange: cfg.CommodityExchange,
	}
	feedService := newFeedServiceFunc(tracer, parser, candleRepo, redisClient)

	statusCh := make(chan stream.Status, 16)
	manager := newStreamManagerFunc(stream.Config{
		URL:            cfg.FeedWSURL,
		BaseDelay:      time.Duration(cfg.ReconnectBaseMs) * time.Millisecond,
		MaxAttempts:    cfg.MaxReconnectAttempts,
		ConnectTimeout: time.Duration(cfg.ConnectTimeoutSecs) * time.Second,
	}, feedService.ActiveSymbols, feedService.HandleMessage, func(status stream.Status) {
		select {
		case statusCh <- status:
		default:
		}
	})
	feedService.AttachTransport(manager)
	connectTransportFunc(manager)
	defer manager.Close()

	// Persist closed bars in the background (stopped by ctx cancel)
	if candleWriter != nil {
		persister := job.NewBarPersister(tracer, candleWriter, feedService.ClosedBars(), cfg.FlushIntervalSecs)
		startPersisterFunc(persister, ctx)
	}

	// Start Telegram ops bot
	startTelegramBotFunc(cfg.TelegramBotToken, cfg.TelegramAlertChatID, feedService, statusCh)

	// Create handlers and routes
	h := newHandlerFunc(tracer, feedService, cfg.StreamSubsPerMinute)

	r := newRouterFunc()
	r.Use(otelgin.Middleware("chartstream"))
	r.Use(handler.APIKeyAuth(cfg.APIKey))

	h.RegisterRoutes(r)

	srv := &http.Server{
		Addr:    cfg.HTTPAddr,
		Handler: r,
	}

	go func() {
		if err := startHTTPServerFunc(srv); err != nil && err != http.ErrServerClosed {
			log.Fatalf("listen: %s\n", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	setupSignalNotify(quit, syscall.SIGINT, syscall.SIGTERM)
	waitForSignalFunc(quit)
	log.Println("Shutting down server...")

	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	if err := shutdownHTTPServerFunc(srv, shutdownCtx); err != nil {
		log.Fatal("Server forced to shutdown:", err)
	}

	log.Println("Server exiting")
}
