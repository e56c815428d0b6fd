// Package telegram adapts Telegram updates to the dispatcher and implements
// its outbound transport.
package telegram

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/askaipro/askai-bot/internal/billing"
	"github.com/askaipro/askai-bot/internal/config"
	"github.com/askaipro/askai-bot/internal/service"
)

type Bot struct {
	cfg        config.Config
	api        *tgbotapi.BotAPI
	log        *slog.Logger
	dispatcher *service.Dispatcher
}

func NewBot(cfg config.Config, api *tgbotapi.BotAPI, log *slog.Logger, dispatcher *service.Dispatcher) *Bot {
	return &Bot{
		cfg:        cfg,
		api:        api,
		log:        log,
		dispatcher: dispatcher,
	}
}

func (b *Bot) Run(ctx context.Context) error {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60

	updates := b.api.GetUpdatesChan(u)
	b.log.Info("telegram bot started")

	for {
		select {
		case update := <-updates:
			b.handleUpdate(ctx, update)
		case <-ctx.Done():
			b.api.StopReceivingUpdates()
			return ctx.Err()
		}
	}
}

func (b *Bot) handleUpdate(ctx context.Context, update tgbotapi.Update) {
	switch {
	case update.PreCheckoutQuery != nil:
		// Answered inline: Telegram abandons the checkout if the approval
		// does not arrive within seconds, and there is no slow work here.
		if err := billing.ApprovePreCheckout(b.api, update.PreCheckoutQuery); err != nil {
			b.log.Error("pre-checkout failed", "err", err)
		}
	case update.Message != nil:
		// A slow model call for one user must not hold up anyone else's
		// updates; per-user ordering is the dispatcher's job.
		go b.handleMessage(ctx, update.Message)
	}
}

func (b *Bot) handleMessage(ctx context.Context, msg *tgbotapi.Message) {
	if msg.From == nil {
		return
	}
	userID := msg.From.ID

	if msg.SuccessfulPayment != nil {
		b.dispatcher.OnPaymentConfirmed(ctx, msg.SuccessfulPayment.InvoicePayload)
		return
	}

	if msg.IsCommand() {
		b.handleCommand(msg)
		return
	}

	if strings.TrimSpace(msg.Text) == "" {
		b.sendText(msg.Chat.ID, "Send your question as plain text.")
		return
	}

	b.dispatcher.OnMessage(ctx, userID, msg.Text)
}

func (b *Bot) handleCommand(msg *tgbotapi.Message) {
	switch msg.Command() {
	case "start":
		name := msg.From.FirstName
		if name == "" {
			name = "there"
		}
		text := fmt.Sprintf(
			"Hi, %s!\n\nAsk me anything — your first %d questions are free. After that each answer costs %d Telegram Stars.\n\nCommands:\n/quota — check your remaining free questions",
			name, b.cfg.FreeQuestionLimit, b.cfg.AnswerPriceStars,
		)
		b.sendText(msg.Chat.ID, text)
	case "quota":
		left, limit := b.dispatcher.Remaining(msg.From.ID)
		if left > 0 {
			b.sendText(msg.Chat.ID, fmt.Sprintf("You have %d of %d free questions left.", left, limit))
		} else {
			b.sendText(msg.Chat.ID, fmt.Sprintf("Your %d free questions are used up. Each answer now costs %d Telegram Stars.", limit, b.cfg.AnswerPriceStars))
		}
	default:
		b.sendText(msg.Chat.ID, "Unknown command. Just send me your question as text.")
	}
}

func (b *Bot) sendText(chatID int64, text string) {
	msg := tgbotapi.NewMessage(chatID, text)
	if _, err := b.api.Send(msg); err != nil {
		b.log.Error("send text", "err", err)
	}
}
