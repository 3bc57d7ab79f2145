package services

import (
	"context"
	"errors"
	"sync"
	"time"

	"finbot/internal/core"
	"finbot/internal/log"
	"finbot/internal/metrics"
	"finbot/internal/sheets"

	"golang.org/x/sync/errgroup"
)

const (
	DefaultPushTimeout     = 15 * time.Second
	DefaultPushConcurrency = 4
)

// Pusher mirrors local mutations to the remote. Push never blocks on the
// remote and never reports failure: delivery is at-most-once.
type Pusher interface {
	Push(ctx context.Context, action sheets.Action, txs ...core.Transaction)
}

// MutationPublisher is the queue side of the amqp push mode.
type MutationPublisher interface {
	PublishMutation(ctx context.Context, action sheets.Action, tx core.Transaction) error
}

// DirectPusher sends mutations to a Sink from a background goroutine with a
// context detached from the caller and bounded by timeout.
type DirectPusher struct {
	sink        sheets.Sink
	timeout     time.Duration
	concurrency int
	logger      *log.Logger
	metrics     *metrics.Metrics

	wg sync.WaitGroup
}

func NewDirectPusher(sink sheets.Sink, timeout time.Duration, logger *log.Logger, m *metrics.Metrics) *DirectPusher {
	if timeout <= 0 {
		timeout = DefaultPushTimeout
	}
	if logger == nil {
		logger = log.Nop()
	}
	return &DirectPusher{
		sink:        sink,
		timeout:     timeout,
		concurrency: DefaultPushConcurrency,
		logger:      logger.WithComponent(log.ComponentReconcile),
		metrics:     m,
	}
}

func (p *DirectPusher) Push(ctx context.Context, action sheets.Action, txs ...core.Transaction) {
	if p.sink == nil || len(txs) == 0 {
		return
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), p.timeout)

	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		defer cancel()

		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(p.concurrency)
		for _, tx := range txs {
			g.Go(func() error {
				p.send(gctx, action, tx)
				return nil
			})
		}
		_ = g.Wait()
	}()
}

func (p *DirectPusher) send(ctx context.Context, action sheets.Action, tx core.Transaction) {
	err := p.sink.Send(ctx, action, tx)
	switch {
	case err == nil:
		p.metrics.IncrPush(string(action), "ok")
		p.logger.DebugContext(ctx, "Pushed mutation",
			log.FieldAction, string(action), log.FieldTxID, tx.ID.String())
	case errors.Is(err, sheets.ErrNotConfigured):
		p.metrics.IncrPush(string(action), "skipped")
		p.logger.DebugContext(ctx, "Remote not configured, push skipped",
			log.FieldAction, string(action), log.FieldTxID, tx.ID.String())
	default:
		p.metrics.IncrPush(string(action), "error")
		p.logger.WarnContext(ctx, "Push failed",
			log.FieldOperation, log.OpPush,
			log.FieldAction, string(action),
			log.FieldTxID, tx.ID.String(),
			log.FieldError, err)
	}
}

// Wait blocks until every in-flight push has finished.
func (p *DirectPusher) Wait() {
	p.wg.Wait()
}

// QueuePusher publishes mutations for the push worker.
type QueuePusher struct {
	publisher MutationPublisher
	logger    *log.Logger
	metrics   *metrics.Metrics
}

func NewQueuePusher(publisher MutationPublisher, logger *log.Logger, m *metrics.Metrics) *QueuePusher {
	if logger == nil {
		logger = log.Nop()
	}
	return &QueuePusher{
		publisher: publisher,
		logger:    logger.WithComponent(log.ComponentReconcile),
		metrics:   m,
	}
}

func (p *QueuePusher) Push(ctx context.Context, action sheets.Action, txs ...core.Transaction) {
	if p.publisher == nil {
		return
	}
	ctx = context.WithoutCancel(ctx)
	for _, tx := range txs {
		if err := p.publisher.PublishMutation(ctx, action, tx); err != nil {
			p.metrics.IncrPush(string(action), "error")
			p.logger.ErrorContext(ctx, "Failed to publish mutation",
				log.FieldAction, string(action),
				log.FieldTxID, tx.ID.String(),
				log.FieldError, err)
			continue
		}
		p.metrics.IncrPush(string(action), "queued")
	}
}

// NopPusher drops every mutation. Used when no remote backend is configured.
type NopPusher struct{}

func (NopPusher) Push(context.Context, sheets.Action, ...core.Transaction) {}
