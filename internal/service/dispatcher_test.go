package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/askaipro/askai-bot/internal/billing"
	"github.com/askaipro/askai-bot/internal/config"
	"github.com/askaipro/askai-bot/internal/store"
)

type fakeBackend struct {
	mu    sync.Mutex
	calls []string
	fail  bool
}

func (f *fakeBackend) Generate(_ context.Context, prompt string) (string, error) {
	f.mu.Lock()
	f.calls = append(f.calls, prompt)
	f.mu.Unlock()
	if f.fail {
		return "", errors.New("backend unavailable")
	}
	return "answer to: " + prompt, nil
}

func (f *fakeBackend) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

type sentInvoice struct {
	userID  int64
	invoice billing.Invoice
}

type fakeTransport struct {
	mu       sync.Mutex
	replies  map[int64][]string
	invoices []sentInvoice
}

func newFakeTransport() *fakeTransport {
	return &fakeTransport{replies: make(map[int64][]string)}
}

func (f *fakeTransport) ReplyText(userID int64, text string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.replies[userID] = append(f.replies[userID], text)
	return nil
}

func (f *fakeTransport) SendInvoice(userID int64, inv billing.Invoice) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.invoices = append(f.invoices, sentInvoice{userID: userID, invoice: inv})
	return nil
}

func (f *fakeTransport) repliesFor(userID int64) []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.replies[userID]...)
}

func (f *fakeTransport) invoicesFor(userID int64) []billing.Invoice {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []billing.Invoice
	for _, s := range f.invoices {
		if s.userID == userID {
			out = append(out, s.invoice)
		}
	}
	return out
}

func newTestDispatcher(limit int, backend *fakeBackend, transport *fakeTransport) *Dispatcher {
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	issuer := billing.NewIssuer(config.Config{PaymentCurrency: "XTR", AnswerPriceStars: 5})
	return NewDispatcher(log, store.NewEntitlementStore(limit), store.NewPendingStore(), backend, issuer, transport)
}

func TestFreeThenPaywallScenario(t *testing.T) {
	backend := &fakeBackend{}
	transport := newFakeTransport()
	d := newTestDispatcher(3, backend, transport)
	ctx := context.Background()

	const user = int64(100)

	d.OnMessage(ctx, user, "hi")
	d.OnMessage(ctx, user, "bye")
	d.OnMessage(ctx, user, "yo")

	replies := transport.repliesFor(user)
	require.Len(t, replies, 3)
	assert.Contains(t, replies[0], "Free answer (1/3)")
	assert.Contains(t, replies[1], "Free answer (2/3)")
	assert.Contains(t, replies[2], "Free answer (3/3)")
	assert.Contains(t, replies[2], "answer to: yo")

	// Quota exhausted: the next question is held and invoiced, not answered.
	d.OnMessage(ctx, user, "why")
	assert.Len(t, transport.repliesFor(user), 3)
	invoices := transport.invoicesFor(user)
	require.Len(t, invoices, 1)
	assert.Equal(t, 3, backend.callCount())

	d.OnPaymentConfirmed(ctx, invoices[0].Payload)
	replies = transport.repliesFor(user)
	require.Len(t, replies, 4)
	assert.Contains(t, replies[3], "Payment received")
	assert.Contains(t, replies[3], "answer to: why")

	// Still paywalled: the next question produces a fresh invoice.
	d.OnMessage(ctx, user, "again")
	require.Len(t, transport.invoicesFor(user), 2)

	stats := d.Stats()
	assert.Equal(t, int64(3), stats.FreeAnswers)
	assert.Equal(t, int64(1), stats.PaidAnswers)
	assert.Equal(t, int64(2), stats.InvoicesIssued)
	assert.Equal(t, 1, stats.PendingQuestions)
}

func TestFailedFreeGenerationStillSpendsQuota(t *testing.T) {
	backend := &fakeBackend{fail: true}
	transport := newFakeTransport()
	d := newTestDispatcher(1, backend, transport)
	ctx := context.Background()

	d.OnMessage(ctx, 5, "question")

	replies := transport.repliesFor(5)
	require.Len(t, replies, 1)
	assert.Contains(t, replies[0], "Sorry")

	// The failed attempt consumed the only free slot.
	d.OnMessage(ctx, 5, "another question")
	assert.Len(t, transport.invoicesFor(5), 1)
	assert.Equal(t, int64(1), d.Stats().BackendFailures)
}

func TestConfirmationWithoutPendingQuestion(t *testing.T) {
	backend := &fakeBackend{}
	transport := newFakeTransport()
	d := newTestDispatcher(0, backend, transport)

	payload, err := billing.EncodePayload(9)
	require.NoError(t, err)

	d.OnPaymentConfirmed(context.Background(), payload)

	replies := transport.repliesFor(9)
	require.Len(t, replies, 1)
	assert.Contains(t, replies[0], "send your question again")
	assert.Equal(t, 0, backend.callCount(), "no backend call without a stored question")
}

func TestDuplicateConfirmationAnswersOnce(t *testing.T) {
	backend := &fakeBackend{}
	transport := newFakeTransport()
	d := newTestDispatcher(0, backend, transport)
	ctx := context.Background()

	d.OnMessage(ctx, 9, "paid question")
	invoices := transport.invoicesFor(9)
	require.Len(t, invoices, 1)

	d.OnPaymentConfirmed(ctx, invoices[0].Payload)
	d.OnPaymentConfirmed(ctx, invoices[0].Payload)

	replies := transport.repliesFor(9)
	require.Len(t, replies, 2)
	assert.Contains(t, replies[0], "Payment received")
	assert.Contains(t, replies[1], "send your question again")
	assert.Equal(t, 1, backend.callCount())
}

func TestMalformedPayloadIsLoggedOnly(t *testing.T) {
	backend := &fakeBackend{}
	transport := newFakeTransport()
	d := newTestDispatcher(0, backend, transport)

	d.OnPaymentConfirmed(context.Background(), "this is not json")

	assert.Empty(t, transport.replies)
	assert.Equal(t, 0, backend.callCount())
}

func TestLastQuestionWins(t *testing.T) {
	backend := &fakeBackend{}
	transport := newFakeTransport()
	d := newTestDispatcher(0, backend, transport)
	ctx := context.Background()

	d.OnMessage(ctx, 3, "question A")
	d.OnMessage(ctx, 3, "question B")
	invoices := transport.invoicesFor(3)
	require.Len(t, invoices, 2)

	d.OnPaymentConfirmed(ctx, invoices[1].Payload)

	replies := transport.repliesFor(3)
	require.Len(t, replies, 1)
	assert.Contains(t, replies[0], "answer to: question B")
	assert.NotContains(t, strings.Join(backend.calls, "\n"), "question A")
}

func TestConfirmationRoutingAcrossUsers(t *testing.T) {
	backend := &fakeBackend{}
	transport := newFakeTransport()
	d := newTestDispatcher(0, backend, transport)
	ctx := context.Background()

	d.OnMessage(ctx, 1, "question from one")
	d.OnMessage(ctx, 2, "question from two")

	invoicesOne := transport.invoicesFor(1)
	invoicesTwo := transport.invoicesFor(2)
	require.Len(t, invoicesOne, 1)
	require.Len(t, invoicesTwo, 1)

	// Confirm in reverse order of asking; each payload resolves to its owner.
	d.OnPaymentConfirmed(ctx, invoicesTwo[0].Payload)
	d.OnPaymentConfirmed(ctx, invoicesOne[0].Payload)

	repliesOne := transport.repliesFor(1)
	repliesTwo := transport.repliesFor(2)
	require.Len(t, repliesOne, 1)
	require.Len(t, repliesTwo, 1)
	assert.Contains(t, repliesOne[0], "answer to: question from one")
	assert.Contains(t, repliesTwo[0], "answer to: question from two")
}

func TestConcurrentDuplicateFirstMessage(t *testing.T) {
	backend := &fakeBackend{}
	transport := newFakeTransport()
	d := newTestDispatcher(1, backend, transport)
	ctx := context.Background()

	const dupes = 25
	var wg sync.WaitGroup
	for i := 0; i < dupes; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			d.OnMessage(ctx, 77, "hello")
		}()
	}
	wg.Wait()

	free := 0
	for _, reply := range transport.repliesFor(77) {
		if strings.Contains(reply, "Free answer") {
			free++
		}
	}
	assert.Equal(t, 1, free, "exactly one duplicate gets the free answer")
	assert.Equal(t, 1, backend.callCount())
	assert.Len(t, transport.invoicesFor(77), dupes-1)
	assert.Equal(t, 0, d.entitlements.Remaining(77))
}

func TestConcurrentUsersDoNotShareState(t *testing.T) {
	backend := &fakeBackend{}
	transport := newFakeTransport()
	d := newTestDispatcher(1, backend, transport)
	ctx := context.Background()

	const users = 20
	var wg sync.WaitGroup
	for u := int64(1); u <= users; u++ {
		wg.Add(1)
		go func(u int64) {
			defer wg.Done()
			d.OnMessage(ctx, u, fmt.Sprintf("question %d", u))
		}(u)
	}
	wg.Wait()

	for u := int64(1); u <= users; u++ {
		replies := transport.repliesFor(u)
		require.Len(t, replies, 1, "user %d", u)
		assert.Contains(t, replies[0], fmt.Sprintf("answer to: question %d", u))
	}
	assert.Equal(t, int64(users), d.Stats().FreeAnswers)
}
