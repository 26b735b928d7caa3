package bot

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"chartstream/internal/domain"
	"chartstream/internal/feed"
	"chartstream/internal/stream"

	tele "gopkg.in/telebot.v3"
)

// StartTelegramBot wires the ops bot: chat commands against the feed
// service plus connection alerts pushed to alertChatID. A missing token
// disables the bot.
func StartTelegramBot(token string, alertChatID int64, feedService *feed.Service, statusCh <-chan stream.Status) {
	if token == "" {
		log.Println("TELEGRAM_BOT_TOKEN not set, skipping Telegram bot startup")
		return
	}
	pref := tele.Settings{
		Token:  token,
		Poller: &tele.LongPoller{Timeout: 10 * time.Second},
	}
	b, err := tele.NewBot(pref)
	if err != nil {
		log.Fatalf("failed to create Telegram bot: %v", err)
	}

	b.Handle("/ping", func(c tele.Context) error {
		return c.Send("pong")
	})

	b.Handle("/status", func(c tele.Context) error {
		status := feedService.TransportStatus()
		msg := fmt.Sprintf("Feed transport: %s", status.State)
		if status.Attempts > 0 {
			msg += fmt.Sprintf("\nReconnect attempts: %d", status.Attempts)
		}
		if status.GaveUp {
			msg += "\nRetry budget exhausted, manual restart needed"
		}
		if status.LastErr != "" {
			msg += "\nLast error: " + status.LastErr
		}
		return c.Send(msg)
	})

	b.Handle("/last", func(c tele.Context) error {
		args := c.Args()
		if len(args) < 2 {
			return c.Send("Usage: /last BTCUSD 1")
		}
		symbol := strings.ToUpper(args[0])
		resolution := domain.Resolution(args[1])
		if !resolution.Valid() {
			return c.Send(fmt.Sprintf("Unknown resolution: %s\nSupported: %v", args[1], domain.SupportedResolutions))
		}
		bar, err := feedService.LastBarCached(context.Background(), symbol, resolution)
		if err != nil {
			return c.Send(fmt.Sprintf("Error reading last bar for %s: %v", symbol, err))
		}
		if bar == nil {
			return c.Send(fmt.Sprintf("No live bar cached for %s/%s", symbol, resolution))
		}
		msg := fmt.Sprintf(
			"%s %s\nO: %.4f  H: %.4f  L: %.4f  C: %.4f\nVolume: %.4f\nBar open: %s",
			symbol, resolution, bar.Open, bar.High, bar.Low, bar.Close, bar.Volume,
			time.UnixMilli(bar.Time).UTC().Format(time.RFC3339),
		)
		return c.Send(msg)
	})

	if statusCh != nil && alertChatID != 0 {
		go watchStatus(b, alertChatID, statusCh)
	}

	log.Println("Telegram bot started")
	go b.Start()
}

// watchStatus forwards connection state changes worth waking someone up
// for: entering reconnection and exhausting the retry budget.
func watchStatus(b *tele.Bot, chatID int64, statusCh <-chan stream.Status) {
	chat := &tele.Chat{ID: chatID}
	var lastState stream.State
	for status := range statusCh {
		switch {
		case status.GaveUp:
			msg := "Feed transport gave up reconnecting"
			if status.LastErr != "" {
				msg += "\nLast error: " + status.LastErr
			}
			if _, err := b.Send(chat, msg); err != nil {
				log.Printf("bot: status alert: %v", err)
			}
		case status.State == stream.StateReconnecting && lastState != stream.StateReconnecting:
			if _, err := b.Send(chat, fmt.Sprintf("Feed transport reconnecting (attempt %d)", status.Attempts)); err != nil {
				log.Printf("bot: status alert: %v", err)
			}
		}
		lastState = status.State
	}
}
