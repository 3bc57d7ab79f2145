package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"finbot/internal/core"
	"finbot/internal/ledger"
	"finbot/internal/log"
	"finbot/internal/metrics"
	"finbot/internal/sheets"

	"github.com/google/uuid"
)

// ErrBadRequest marks caller errors that are not transaction validation.
var ErrBadRequest = errors.New("bad request")

// Clock returns the current time in the user's local calendar.
type Clock func() time.Time

// LocalClock returns a Clock reading wall time in loc.
func LocalClock(loc *time.Location) Clock {
	if loc == nil {
		loc = time.Local
	}
	return func() time.Time { return time.Now().In(loc) }
}

// LedgerService applies local mutations first and then mirrors them to the
// remote through a Pusher. Remote failures never reach the caller.
type LedgerService struct {
	store      *ledger.Store
	pusher     Pusher
	reconciler *Reconciler
	clock      Clock
	logger     *log.Logger
	metrics    *metrics.Metrics
}

func NewLedgerService(store *ledger.Store, pusher Pusher, reconciler *Reconciler, clock Clock, logger *log.Logger, m *metrics.Metrics) *LedgerService {
	if pusher == nil {
		pusher = NopPusher{}
	}
	if clock == nil {
		clock = time.Now
	}
	if logger == nil {
		logger = log.Nop()
	}
	return &LedgerService{
		store:      store,
		pusher:     pusher,
		reconciler: reconciler,
		clock:      clock,
		logger:     logger.WithComponent(log.ComponentLedger),
		metrics:    m,
	}
}

// Now returns the service clock reading.
func (s *LedgerService) Now() time.Time { return s.clock() }

// NewID returns a fresh transaction or message id.
func NewID() core.ID { return core.ID(uuid.NewString()) }

// Create records a user-entered transaction. A missing id or date is filled
// in; status is always CONFIRMED.
func (s *LedgerService) Create(ctx context.Context, tx core.Transaction) (core.Transaction, error) {
	if tx.ID == "" {
		tx.ID = NewID()
	}
	if tx.Date.IsZero() {
		tx.Date = core.DateOf(s.clock())
	}
	tx.Description = strings.TrimSpace(tx.Description)
	tx.Status = core.Confirmed
	tx = tx.Normalize()
	if err := tx.ValidateEntry(); err != nil {
		return core.Transaction{}, fmt.Errorf("validate transaction: %w", err)
	}

	s.store.Add(ctx, tx)
	s.afterMutation(ctx, log.OpCreate, tx)
	s.pusher.Push(ctx, sheets.ActionAdd, tx)
	return tx, nil
}

// AddBatch appends already validated transactions in one mutation and pushes
// an ADD for each.
func (s *LedgerService) AddBatch(ctx context.Context, txs []core.Transaction) {
	if len(txs) == 0 {
		return
	}
	s.store.Add(ctx, txs...)
	s.metrics.SetLedgerSize(len(s.store.Transactions()))
	s.logger.InfoContext(ctx, "Transactions added",
		log.FieldOperation, log.OpCreate, log.FieldCount, len(txs))
	s.pusher.Push(ctx, sheets.ActionAdd, txs...)
}

// Update replaces the transaction with the same id.
func (s *LedgerService) Update(ctx context.Context, tx core.Transaction) (core.Transaction, error) {
	tx.Description = strings.TrimSpace(tx.Description)
	tx = tx.Normalize()
	if err := tx.ValidateEntry(); err != nil {
		return core.Transaction{}, fmt.Errorf("validate transaction: %w", err)
	}
	return tx, s.replace(ctx, tx)
}

func (s *LedgerService) replace(ctx context.Context, tx core.Transaction) error {
	if err := s.store.Replace(ctx, tx); err != nil {
		return err
	}
	s.afterMutation(ctx, log.OpUpdate, tx)
	s.pusher.Push(ctx, sheets.ActionUpdate, tx)
	return nil
}

// Delete removes the transaction. Unknown ids change nothing and push nothing.
func (s *LedgerService) Delete(ctx context.Context, id core.ID) error {
	removed, err := s.store.Remove(ctx, id)
	if err != nil {
		return err
	}
	s.afterMutation(ctx, log.OpDelete, removed)
	s.pusher.Push(ctx, sheets.ActionDelete, removed)
	return nil
}

// Confirm promotes a PENDING transaction with parsed details. An empty date
// keeps the existing one. The pending check and the write happen under one
// store lock, so a concurrent delete or confirm wins cleanly.
func (s *LedgerService) Confirm(ctx context.Context, id core.ID, parsed core.Transaction) (core.Transaction, error) {
	confirmed, err := s.store.Update(ctx, id, func(current core.Transaction) (core.Transaction, error) {
		if !current.IsPending() {
			return core.Transaction{}, fmt.Errorf("confirm %s: %w", id, ledger.ErrNotPending)
		}
		current.Amount = parsed.Amount
		current.Category = parsed.Category
		current.Description = parsed.Description
		current.Type = parsed.Type
		if !parsed.Date.IsZero() {
			current.Date = parsed.Date
		}
		current.Status = core.Confirmed
		current = current.Normalize()
		if err := current.Validate(); err != nil {
			return core.Transaction{}, fmt.Errorf("validate transaction: %w", err)
		}
		return current, nil
	})
	if err != nil {
		return core.Transaction{}, err
	}
	s.afterMutation(ctx, log.OpUpdate, confirmed)
	s.pusher.Push(ctx, sheets.ActionUpdate, confirmed)
	return confirmed, nil
}

func (s *LedgerService) afterMutation(ctx context.Context, op string, tx core.Transaction) {
	s.metrics.SetLedgerSize(len(s.store.Transactions()))
	s.logger.InfoContext(ctx, "Ledger mutated",
		log.NewFields().
			WithOperation(op).
			WithTransaction(tx.ID.String(), string(tx.Type), tx.Amount, tx.Category).
			ToSlice()...)
}

// CorrectBalance rewrites initialBalance so that the balance equals target.
func (s *LedgerService) CorrectBalance(ctx context.Context, target int64) core.Settings {
	txs, settings := s.store.Snapshot()
	updated := core.CorrectBalance(settings, txs, target)
	s.store.UpdateSettings(ctx, updated)
	s.logger.InfoContext(ctx, "Balance corrected",
		"target", target, "initial_balance", updated.InitialBalance)
	return updated
}

// UpdateSettings validates and stores settings. The opening balance is kept
// from the stored settings; CorrectBalance is the way to move it. When the
// remote endpoint changes to a new non-empty value it pulls from it and
// reports whether the pull replaced the ledger.
func (s *LedgerService) UpdateSettings(ctx context.Context, settings core.Settings) (core.Settings, bool, error) {
	settings.AppScriptURL = strings.TrimSpace(settings.AppScriptURL)
	settings.TelegramChatID = strings.TrimSpace(settings.TelegramChatID)
	if settings.ThemeColor == "" {
		settings.ThemeColor = core.ThemeIndigo
	}
	if settings.NotificationTimes == nil {
		settings.NotificationTimes = []string{}
	}
	if err := settings.Validate(); err != nil {
		return core.Settings{}, false, err
	}

	previous := s.store.Settings()
	// Only a balance correction moves the opening balance.
	settings.InitialBalance = previous.InitialBalance
	s.store.UpdateSettings(ctx, settings)

	if settings.AppScriptURL == "" || settings.AppScriptURL == previous.AppScriptURL || s.reconciler == nil {
		return settings, false, nil
	}
	s.logger.InfoContext(ctx, "Remote endpoint changed, pulling", log.FieldRemote, settings.AppScriptURL)
	return settings, s.reconciler.Pull(ctx), nil
}

// Pull runs a reconciler pull.
func (s *LedgerService) Pull(ctx context.Context) bool {
	if s.reconciler == nil {
		return false
	}
	return s.reconciler.Pull(ctx)
}

func (s *LedgerService) Transactions() []core.Transaction { return s.store.Transactions() }

func (s *LedgerService) Settings() core.Settings { return s.store.Settings() }

func (s *LedgerService) Find(id core.ID) (core.Transaction, bool) { return s.store.Find(id) }

// Dashboard summarizes the ledger at the current clock reading.
func (s *LedgerService) Dashboard() core.Dashboard {
	txs, settings := s.store.Snapshot()
	return core.Summarize(settings, txs, s.clock())
}

// Statistics builds the period view.
func (s *LedgerService) Statistics(period core.Period, typ core.TxType) (core.Statistics, error) {
	if !period.Valid() {
		return core.Statistics{}, fmt.Errorf("%w: unknown period %q", ErrBadRequest, period)
	}
	if !typ.Valid() {
		return core.Statistics{}, fmt.Errorf("%w: %q", core.ErrInvalidType, typ)
	}
	return core.Stats(s.store.Transactions(), period, typ, s.clock()), nil
}

// History returns the filtered ledger grouped by day, newest first.
func (s *LedgerService) History(f core.HistoryFilter) []core.DayGroup {
	return core.GroupByDay(core.FilterHistory(s.store.Transactions(), f))
}

// Close waits for in-flight direct pushes.
func (s *LedgerService) Close() error {
	if w, ok := s.pusher.(interface{ Wait() }); ok {
		w.Wait()
	}
	return nil
}
