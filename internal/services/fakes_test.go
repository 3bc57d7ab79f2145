package services

import (
	"context"
	"sync"
	"time"

	"finbot/internal/core"
	"finbot/internal/ledger"
	"finbot/internal/sheets"
	"finbot/internal/storage/memory"
)

type sent struct {
	action sheets.Action
	tx     core.Transaction
}

type fakeSink struct {
	mu   sync.Mutex
	sent []sent
	err  error
}

func (f *fakeSink) Send(_ context.Context, action sheets.Action, tx core.Transaction) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, sent{action: action, tx: tx})
	return f.err
}

func (f *fakeSink) Sent() []sent {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]sent(nil), f.sent...)
}

type fakeNotifier struct {
	mu       sync.Mutex
	messages []string
	chatIDs  []string
	err      error
}

func (f *fakeNotifier) Notify(_ context.Context, chatID, message string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.chatIDs = append(f.chatIDs, chatID)
	f.messages = append(f.messages, message)
	return f.err
}

func (f *fakeNotifier) Messages() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.messages...)
}

// fakeSource returns canned results. When gate is set, Fetch blocks until a
// value arrives on it, so tests can control completion order.
type fakeSource struct {
	txs  []core.Transaction
	err  error
	gate chan struct{}
}

func (f *fakeSource) Fetch(ctx context.Context) ([]core.Transaction, error) {
	if f.gate != nil {
		select {
		case <-f.gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	return f.txs, f.err
}

// switchSource delegates to the source registered for each call in order.
type switchSource struct {
	mu      sync.Mutex
	sources []*fakeSource
	calls   int
}

func (s *switchSource) Fetch(ctx context.Context) ([]core.Transaction, error) {
	s.mu.Lock()
	src := s.sources[s.calls]
	s.calls++
	s.mu.Unlock()
	return src.Fetch(ctx)
}

func (s *switchSource) Calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

func fixedClock(t time.Time) Clock {
	return func() time.Time { return t }
}

func newStore() *ledger.Store {
	return ledger.New(memory.New(), nil)
}

func expense(id string, amount int64, date core.Date) core.Transaction {
	return core.Transaction{
		ID:          core.ID(id),
		Amount:      amount,
		Category:    string(core.CategoryFood),
		Description: "item " + id,
		Date:        date,
		Type:        core.Expense,
		Status:      core.Confirmed,
	}
}
