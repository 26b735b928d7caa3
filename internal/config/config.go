package config

import (
	"log"
	"os"
	"strconv"
	"strings"
)

type Config struct {
	FeedWSURL            string
	ReconnectBaseMs      int
	MaxReconnectAttempts int
	ConnectTimeoutSecs   int

	DatabaseURL string
	RedisURL    string

	HTTPAddr string
	APIKey   string

	TelegramBotToken    string
	TelegramAlertChatID int64

	DefaultCryptoExchange string
	ForexExchange         string
	IndexExchange         string
	CommodityExchange     string

	FlushIntervalSecs   int
	StreamSubsPerMinute int
}

func Load() *Config {
	cfg := &Config{
		DatabaseURL:      os.Getenv("DATABASE_URL"),
		RedisURL:         os.Getenv("REDIS_URL"),
		APIKey:           os.Getenv("API_KEY"),
		TelegramBotToken: os.Getenv("TELEGRAM_BOT_TOKEN"),
	}

	cfg.FeedWSURL = strings.TrimSpace(os.Getenv("FEED_WS_URL"))
	if cfg.FeedWSURL == "" {
		log.Println("Warning: FEED_WS_URL not set, defaulting to ws://localhost:8765/stream")
		cfg.FeedWSURL = "ws://localhost:8765/stream"
	}

	if cfg.DatabaseURL == "" {
		log.Println("Warning: DATABASE_URL not set, history persistence disabled")
	}
	if cfg.RedisURL == "" {
		log.Println("Warning: REDIS_URL not set, defaulting to localhost:6379")
		cfg.RedisURL = "localhost:6379"
	}

	cfg.ReconnectBaseMs = 1000
	if v := os.Getenv("FEED_RECONNECT_BASE_MS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.ReconnectBaseMs = n
		}
	}

	cfg.MaxReconnectAttempts = 5
	if v := os.Getenv("FEED_MAX_RECONNECTS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.MaxReconnectAttempts = n
		}
	}

	cfg.ConnectTimeoutSecs = 10
	if v := os.Getenv("FEED_CONNECT_TIMEOUT_SECS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.ConnectTimeoutSecs = n
		}
	}

	cfg.HTTPAddr = strings.TrimSpace(os.Getenv("HTTP_ADDR"))
	if cfg.HTTPAddr == "" {
		cfg.HTTPAddr = ":8080"
	}

	if v := strings.TrimSpace(os.Getenv("TELEGRAM_ALERT_CHAT_ID")); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			cfg.TelegramAlertChatID = n
		} else {
			log.Printf("Warning: invalid TELEGRAM_ALERT_CHAT_ID=%q, alerts disabled", v)
		}
	}

	cfg.DefaultCryptoExchange = envOr("DEFAULT_CRYPTO_EXCHANGE", "Bitfinex")
	cfg.ForexExchange = envOr("FOREX_EXCHANGE", "FOREXCOM")
	cfg.IndexExchange = envOr("INDEX_EXCHANGE", "SP")
	cfg.CommodityExchange = envOr("COMMODITY_EXCHANGE", "COMEX")

	cfg.FlushIntervalSecs = 5
	if v := os.Getenv("FLUSH_INTERVAL_SECS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.FlushIntervalSecs = n
		}
	}

	cfg.StreamSubsPerMinute = 60
	if v := os.Getenv("STREAM_SUBS_PER_MIN"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.StreamSubsPerMinute = n
		}
	}

	return cfg
}

func envOr(key, fallback string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return fallback
}
