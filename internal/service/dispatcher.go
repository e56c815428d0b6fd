// Package service contains the entitlement-and-payment state machine that
// decides what happens to every inbound question and payment confirmation.
package service

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/askaipro/askai-bot/internal/billing"
	"github.com/askaipro/askai-bot/internal/store"
)

// Backend produces an answer for a prompt. Calls may be slow.
type Backend interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// Replier sends a plain-text reply to a user.
type Replier interface {
	ReplyText(userID int64, text string) error
}

// Transport is everything the dispatcher needs from the chat layer.
type Transport interface {
	Replier
	billing.InvoiceSender
}

// Stats is a snapshot of dispatcher counters for the ops server.
type Stats struct {
	UsersTracked     int   `json:"users_tracked"`
	PendingQuestions int   `json:"pending_questions"`
	FreeAnswers      int64 `json:"free_answers"`
	PaidAnswers      int64 `json:"paid_answers"`
	InvoicesIssued   int64 `json:"invoices_issued"`
	BackendFailures  int64 `json:"backend_failures"`
}

const (
	msgResend        = "⚠️ Please send your question again."
	msgFreeFailed    = "😔 Sorry, I could not produce an answer. That attempt still used one of your free questions."
	msgPaidFailed    = "😔 Sorry, your payment went through but I could not produce an answer. Please try asking again."
	msgInvoiceFailed = "😔 Could not send the payment request. Please try again."
)

// Dispatcher routes each inbound message or payment confirmation through the
// quota and paywall rules. Every unit of work runs under its user's own
// lock, so duplicate messages and racing confirmations for one user
// serialize while different users never wait on each other.
type Dispatcher struct {
	log          *slog.Logger
	entitlements *store.EntitlementStore
	pending      *store.PendingStore
	backend      Backend
	issuer       *billing.Issuer
	transport    Transport

	mu    sync.Mutex
	locks map[int64]*sync.Mutex

	freeAnswers     atomic.Int64
	paidAnswers     atomic.Int64
	invoicesIssued  atomic.Int64
	backendFailures atomic.Int64
}

func NewDispatcher(log *slog.Logger, entitlements *store.EntitlementStore, pending *store.PendingStore, backend Backend, issuer *billing.Issuer, transport Transport) *Dispatcher {
	return &Dispatcher{
		log:          log,
		entitlements: entitlements,
		pending:      pending,
		backend:      backend,
		issuer:       issuer,
		transport:    transport,
		locks:        make(map[int64]*sync.Mutex),
	}
}

func (d *Dispatcher) userLock(userID int64) *sync.Mutex {
	d.mu.Lock()
	defer d.mu.Unlock()
	l, ok := d.locks[userID]
	if !ok {
		l = &sync.Mutex{}
		d.locks[userID] = l
	}
	return l
}

// OnMessage handles one inbound question from userID: answer it for free
// while quota remains, otherwise record it and request payment.
func (d *Dispatcher) OnMessage(ctx context.Context, userID int64, text string) {
	lock := d.userLock(userID)
	lock.Lock()
	defer lock.Unlock()

	decision := d.entitlements.CheckAndConsume(userID)
	if decision.RequiresPayment {
		d.requestPayment(userID, text)
		return
	}

	answer, err := d.backend.Generate(ctx, text)
	if err != nil {
		// The free slot stays consumed: quota counts attempts, not answers.
		d.backendFailures.Add(1)
		d.log.Error("free answer generation failed", "user", userID, "err", err)
		d.reply(userID, msgFreeFailed)
		return
	}

	d.freeAnswers.Add(1)
	d.reply(userID, fmt.Sprintf("🎁 Free answer (%d/%d):\n\n%s", decision.Used, decision.Limit, answer))
}

// requestPayment runs under the caller's user lock: the question is recorded
// before the invoice goes out, so an invoice is never sent for a question
// that was not stored.
func (d *Dispatcher) requestPayment(userID int64, text string) {
	d.pending.Put(userID, text)
	if err := d.issuer.Issue(d.transport, userID); err != nil {
		d.log.Error("issue invoice", "user", userID, "err", err)
		d.reply(userID, msgInvoiceFailed)
		return
	}
	d.invoicesIssued.Add(1)
}

// OnPaymentConfirmed resolves a captured payment against the owner's pending
// question and answers it exactly once.
func (d *Dispatcher) OnPaymentConfirmed(ctx context.Context, rawPayload string) {
	payload, err := billing.DecodePayload(rawPayload)
	if err != nil {
		// Without a decodable payload there is no user to apologize to.
		d.log.Error("payment confirmation dropped", "err", err)
		return
	}

	lock := d.userLock(payload.UserID)
	lock.Lock()
	defer lock.Unlock()

	question, ok := d.pending.Take(payload.UserID)
	if !ok {
		// Duplicate delivery or a confirmation that outlived its question.
		d.reply(payload.UserID, msgResend)
		return
	}

	answer, err := d.backend.Generate(ctx, question)
	if err != nil {
		// Accepted policy: the payment is neither retried nor refunded.
		d.backendFailures.Add(1)
		d.log.Error("paid answer generation failed", "user", payload.UserID, "err", err)
		d.reply(payload.UserID, msgPaidFailed)
		return
	}

	d.paidAnswers.Add(1)
	d.reply(payload.UserID, "✅ Payment received!\n\n🤖 AI Answer:\n"+answer)
}

// Remaining reports userID's free questions left and the configured limit.
func (d *Dispatcher) Remaining(userID int64) (int, int) {
	return d.entitlements.Remaining(userID), d.entitlements.Limit()
}

// KnownUsers lists every user the bot has seen, the broadcast target set.
func (d *Dispatcher) KnownUsers() []int64 {
	return d.entitlements.Known()
}

func (d *Dispatcher) Stats() Stats {
	return Stats{
		UsersTracked:     d.entitlements.Tracked(),
		PendingQuestions: d.pending.Len(),
		FreeAnswers:      d.freeAnswers.Load(),
		PaidAnswers:      d.paidAnswers.Load(),
		InvoicesIssued:   d.invoicesIssued.Load(),
		BackendFailures:  d.backendFailures.Load(),
	}
}

func (d *Dispatcher) reply(userID int64, text string) {
	if err := d.transport.ReplyText(userID, text); err != nil {
		d.log.Error("send reply", "user", userID, "err", err)
	}
}
