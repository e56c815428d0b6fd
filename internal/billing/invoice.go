package billing

import (
	"fmt"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/askaipro/askai-bot/internal/config"
)

// Invoice describes a payment request for one pending question.
type Invoice struct {
	Title       string
	Description string
	Payload     string
	Currency    string
	PriceLabel  string
	PriceAmount int
}

// InvoiceSender delivers an invoice to a user over the chat transport.
type InvoiceSender interface {
	SendInvoice(userID int64, inv Invoice) error
}

// Issuer builds Stars invoices for pending questions.
type Issuer struct {
	currency string
	price    int
}

func NewIssuer(cfg config.Config) *Issuer {
	return &Issuer{
		currency: cfg.PaymentCurrency,
		price:    cfg.AnswerPriceStars,
	}
}

// Issue sends userID an invoice for their pending question. The payload is
// always scoped to userID, so a confirmation can never resolve to another
// user's question.
func (i *Issuer) Issue(sender InvoiceSender, userID int64) error {
	payload, err := EncodePayload(userID)
	if err != nil {
		return err
	}

	inv := Invoice{
		Title:       "AskAI Pro — AI Answer",
		Description: "Get a premium AI-powered response",
		Payload:     payload,
		Currency:    i.currency,
		PriceLabel:  "AI Answer",
		PriceAmount: i.price,
	}
	if err := sender.SendInvoice(userID, inv); err != nil {
		return fmt.Errorf("send invoice: %w", err)
	}
	return nil
}

// Requester is the slice of the Telegram API used to answer checkout queries.
type Requester interface {
	Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error)
}

// ApprovePreCheckout answers a checkout query affirmatively. Every checkout
// is approved: price and currency were fixed by the invoice and are enforced
// by Telegram, and the answer must reach the provider within seconds.
func ApprovePreCheckout(api Requester, query *tgbotapi.PreCheckoutQuery) error {
	response := tgbotapi.PreCheckoutConfig{
		PreCheckoutQueryID: query.ID,
		OK:                 true,
	}
	if _, err := api.Request(response); err != nil {
		return fmt.Errorf("answer pre-checkout: %w", err)
	}
	return nil
}
