// Command qttwitch-bot connects to Twitch chat, echoes activity to the
// console, and optionally records it to a sqlite chat log.
//
// Configuration comes from the environment (a .env file is loaded when
// present):
//
//	QTTWITCH_NICK      login name; anonymous when unset
//	QTTWITCH_TOKEN     OAuth token; falls back to the OS keychain
//	QTTWITCH_CHANNELS  comma-separated channels to join
//	QTTWITCH_DB        path to the chat log database; logging off when unset
//	QTTWITCH_LOG       log level (trace, debug, info, warn, error)
package main

import (
	"context"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"

	"github.com/SirRandoo/qttwitch"
	"github.com/SirRandoo/qttwitch/internal/logger"
	"github.com/SirRandoo/qttwitch/internal/security"
	"github.com/SirRandoo/qttwitch/internal/storage"
)

func main() {
	// Missing .env is fine; the environment may be set directly.
	_ = godotenv.Load()

	log := logger.For("bot")

	nick := os.Getenv("QTTWITCH_NICK")
	token := os.Getenv("QTTWITCH_TOKEN")
	if token == "" && nick != "" {
		stored, err := security.LoadToken(nick)
		if err != nil {
			log.Warn().Err(err).Msg("keychain lookup failed")
		}
		token = stored
	}

	var channels []string
	for _, channel := range strings.Split(os.Getenv("QTTWITCH_CHANNELS"), ",") {
		if channel = strings.TrimSpace(channel); channel != "" {
			channels = append(channels, channel)
		}
	}
	if len(channels) == 0 {
		log.Fatal().Msg("QTTWITCH_CHANNELS is required")
	}

	var chatLog *storage.ChatLog
	if path := os.Getenv("QTTWITCH_DB"); path != "" {
		var err error
		chatLog, err = storage.Open(path)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to open chat log")
		}
		defer chatLog.Close()
	}

	gateway := qttwitch.New(qttwitch.Config{
		Nick:     nick,
		Token:    token,
		Channels: channels,
	})
	defer gateway.Close()

	gateway.Subscribe(qttwitch.EventChatMessage, func(event qttwitch.Event) {
		msg, ok := event.Data.(qttwitch.PrivateMessage)
		if !ok {
			return
		}
		log.Info().Str("channel", msg.Channel).Str("user", msg.User).Msg(msg.Text)
		record(chatLog, log, storage.Record{
			Channel: msg.Channel,
			Sender:  msg.User,
			Body:    msg.Text,
			Kind:    storage.KindChat,
		})
	})
	gateway.Subscribe(qttwitch.EventNotice, func(event qttwitch.Event) {
		msg, ok := event.Data.(qttwitch.NoticeMessage)
		if !ok {
			return
		}
		log.Info().Str("channel", msg.Channel).Str("msg_id", msg.MsgID).Msg(msg.Text)
		record(chatLog, log, storage.Record{
			Channel: msg.Channel,
			Body:    msg.Text,
			Kind:    storage.KindNotice,
		})
	})
	gateway.Subscribe(qttwitch.EventChatCleared, func(event qttwitch.Event) {
		msg, ok := event.Data.(qttwitch.ClearChatMessage)
		if !ok {
			return
		}
		record(chatLog, log, storage.Record{
			Channel: msg.Channel,
			Sender:  msg.User,
			Kind:    storage.KindClearChat,
		})
	})
	gateway.Subscribe(qttwitch.EventStateChanged, func(event qttwitch.Event) {
		log.Info().Stringer("state", event.Data.(qttwitch.State)).Msg("connection state changed")
	})
	gateway.Subscribe(qttwitch.EventFatal, func(event qttwitch.Event) {
		log.Error().Err(event.Data.(error)).Msg("connection lost for good")
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := gateway.Connect(ctx); err != nil {
		log.Fatal().Err(err).Msg("failed to connect")
	}
	log.Info().Strs("channels", channels).Msg("connected")

	<-ctx.Done()
	log.Info().Msg("shutting down")
}

func record(chatLog *storage.ChatLog, log zerolog.Logger, rec storage.Record) {
	if chatLog == nil {
		return
	}
	if err := chatLog.Write(rec); err != nil {
		log.Warn().Err(err).Msg("failed to write chat log record")
	}
}
