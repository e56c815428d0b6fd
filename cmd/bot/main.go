package main

import (
	"context"
	"errors"
	"log"
	"os/signal"
	"syscall"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/askaipro/askai-bot/internal/admin"
	"github.com/askaipro/askai-bot/internal/billing"
	"github.com/askaipro/askai-bot/internal/config"
	"github.com/askaipro/askai-bot/internal/gemini"
	"github.com/askaipro/askai-bot/internal/service"
	"github.com/askaipro/askai-bot/internal/store"
	"github.com/askaipro/askai-bot/internal/telegram"
	"github.com/askaipro/askai-bot/pkg/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	logr := logger.New()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	botAPI, err := tgbotapi.NewBotAPI(cfg.BotToken)
	if err != nil {
		log.Fatalf("telegram bot: %v", err)
	}

	backend := gemini.NewClient(cfg, logr)
	entitlements := store.NewEntitlementStore(cfg.FreeQuestionLimit)
	pending := store.NewPendingStore()
	issuer := billing.NewIssuer(cfg)
	sender := telegram.NewSender(botAPI)

	dispatcher := service.NewDispatcher(logr, entitlements, pending, backend, issuer, sender)

	bot := telegram.NewBot(cfg, botAPI, logr, dispatcher)

	adminServer := admin.NewServer(cfg.AdminListenAddr, cfg.AdminUsername, cfg.AdminPassword, logr, dispatcher, botAPI)
	go func() {
		if err := adminServer.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			logr.Error("admin server stopped", "err", err)
		}
	}()

	if err := bot.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logr.Error("bot stopped", "err", err)
	}
}
