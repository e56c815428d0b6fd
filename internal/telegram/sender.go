package telegram

import (
	"fmt"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/askaipro/askai-bot/internal/billing"
)

// Sender is the outbound half of the transport: plain replies and invoices.
// It satisfies service.Transport, which keeps the dispatcher free of any
// Telegram types. For a private chat the chat ID equals the user ID.
type Sender struct {
	api *tgbotapi.BotAPI
}

func NewSender(api *tgbotapi.BotAPI) *Sender {
	return &Sender{api: api}
}

func (s *Sender) ReplyText(userID int64, text string) error {
	msg := tgbotapi.NewMessage(userID, text)
	if _, err := s.api.Send(msg); err != nil {
		return fmt.Errorf("send text: %w", err)
	}
	return nil
}

func (s *Sender) SendInvoice(userID int64, inv billing.Invoice) error {
	prices := []tgbotapi.LabeledPrice{
		{
			Label:  inv.PriceLabel,
			Amount: inv.PriceAmount,
		},
	}

	// The provider token stays empty: Telegram Stars payments carry no
	// external provider.
	invoice := tgbotapi.NewInvoice(userID,
		inv.Title,
		inv.Description,
		inv.Payload,
		"",
		"askai-answer",
		inv.Currency,
		prices,
	)

	if _, err := s.api.Send(invoice); err != nil {
		return fmt.Errorf("send invoice: %w", err)
	}
	return nil
}
