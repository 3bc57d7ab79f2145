// Package worker mirrors queued ledger mutations to the remote store.
package worker

import (
	"context"
	"errors"
	"fmt"
	"time"

	"finbot/internal/amqp"
	"finbot/internal/log"
	"finbot/internal/metrics"
	"finbot/internal/sheets"
)

const DefaultSendTimeout = 15 * time.Second

// Consumer delivers mutation messages until ctx is cancelled.
type Consumer interface {
	ConsumeMutations(ctx context.Context, handler func(context.Context, *amqp.MutationMessage) error) error
}

// PushWorker forwards each mutation message to a sheets.Sink. Delivery is
// at most once: a failed send is logged and the message is dropped.
type PushWorker struct {
	sink    sheets.Sink
	timeout time.Duration
	logger  *log.Logger
	metrics *metrics.Metrics
}

func NewPushWorker(sink sheets.Sink, timeout time.Duration, logger *log.Logger, m *metrics.Metrics) *PushWorker {
	if timeout <= 0 {
		timeout = DefaultSendTimeout
	}
	if logger == nil {
		logger = log.Nop()
	}
	return &PushWorker{
		sink:    sink,
		timeout: timeout,
		logger:  logger.WithComponent(log.ComponentWorker),
		metrics: m,
	}
}

// Run consumes from c until ctx is done.
func (w *PushWorker) Run(ctx context.Context, c Consumer) error {
	w.logger.InfoContext(ctx, "Push worker started")
	err := c.ConsumeMutations(ctx, w.HandleMutation)
	if err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("consume mutations: %w", err)
	}
	w.logger.InfoContext(ctx, "Push worker stopped")
	return nil
}

// HandleMutation sends one message to the sink.
func (w *PushWorker) HandleMutation(ctx context.Context, msg *amqp.MutationMessage) error {
	action := string(msg.Action)
	if w.sink == nil {
		w.metrics.IncrPush(action, "skipped")
		w.logger.WarnContext(ctx, "No remote configured, dropping mutation",
			log.FieldAction, action, log.FieldTxID, msg.Data.ID.String())
		return nil
	}

	sendCtx, cancel := context.WithTimeout(ctx, w.timeout)
	defer cancel()

	start := time.Now()
	if err := w.sink.Send(sendCtx, msg.Action, msg.Data); err != nil {
		result := "error"
		if errors.Is(err, sheets.ErrNotConfigured) {
			result = "skipped"
		}
		w.metrics.IncrPush(action, result)
		return fmt.Errorf("send %s %s: %w", action, msg.Data.ID, err)
	}

	w.metrics.IncrPush(action, "ok")
	w.logger.InfoContext(ctx, "Mutation mirrored",
		log.FieldAction, action,
		log.FieldTxID, msg.Data.ID.String(),
		log.FieldDuration, time.Since(start).Milliseconds(),
		"queued_at", msg.Timestamp)
	return nil
}
