package services

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"

	"finbot/internal/ledger"
	"finbot/internal/log"
	"finbot/internal/metrics"
	"finbot/internal/sheets"
)

// Reconciler pulls the remote list into the ledger. Each pull takes a
// generation number; a pull whose generation is no longer the latest when
// its fetch returns is discarded, so a slow stale pull never overwrites a
// newer one.
type Reconciler struct {
	source  sheets.Source
	store   *ledger.Store
	logger  *log.Logger
	metrics *metrics.Metrics

	generation atomic.Uint64
	applyMu    sync.Mutex
}

func NewReconciler(source sheets.Source, store *ledger.Store, logger *log.Logger, m *metrics.Metrics) *Reconciler {
	if logger == nil {
		logger = log.Nop()
	}
	return &Reconciler{
		source:  source,
		store:   store,
		logger:  logger.WithComponent(log.ComponentReconcile),
		metrics: m,
	}
}

// Generation returns the number of the most recently started pull.
func (r *Reconciler) Generation() uint64 {
	return r.generation.Load()
}

// Pull fetches the remote list and, on success, replaces the local list with
// it. It reports whether the local list was replaced. Failures leave local
// state untouched.
func (r *Reconciler) Pull(ctx context.Context) bool {
	if r.source == nil {
		r.metrics.IncrPull(metrics.PullSkipped)
		return false
	}
	gen := r.generation.Add(1)

	txs, err := r.source.Fetch(ctx)
	if err != nil {
		if errors.Is(err, sheets.ErrNotConfigured) {
			r.metrics.IncrPull(metrics.PullSkipped)
			r.logger.DebugContext(ctx, "Remote not configured, pull skipped", log.FieldGeneration, gen)
			return false
		}
		r.metrics.IncrPull(metrics.PullFailure)
		r.logger.WarnContext(ctx, "Pull failed, keeping local state",
			log.FieldOperation, log.OpPull,
			log.FieldGeneration, gen,
			log.FieldError, err)
		return false
	}

	r.applyMu.Lock()
	defer r.applyMu.Unlock()
	if latest := r.generation.Load(); latest != gen {
		r.metrics.IncrPull(metrics.PullStale)
		r.logger.InfoContext(ctx, "Discarding stale pull",
			log.FieldGeneration, gen,
			"latest_generation", latest)
		return false
	}

	r.store.ReplaceAll(ctx, txs)
	r.metrics.IncrPull(metrics.PullSuccess)
	r.metrics.SetLedgerSize(len(txs))
	r.logger.InfoContext(ctx, "Pulled remote ledger",
		log.FieldGeneration, gen,
		log.FieldCount, len(txs))
	return true
}
