package sheets

import (
	"context"
	"errors"

	"finbot/internal/core"
)

// Action tags a pushed mutation. NOTIFY is only used by Notifier.
type Action string

const (
	ActionAdd    Action = "ADD"
	ActionUpdate Action = "UPDATE"
	ActionDelete Action = "DELETE"
	ActionNotify Action = "NOTIFY"
)

// ErrNotConfigured is returned when no remote endpoint is set.
var ErrNotConfigured = errors.New("remote endpoint not configured")

func (a Action) Valid() bool {
	return a == ActionAdd || a == ActionUpdate || a == ActionDelete
}

// Ports for outbound adapters.
type (
	// Source returns the full remote transaction list.
	Source interface {
		Fetch(ctx context.Context) ([]core.Transaction, error)
	}

	// Sink applies a single mutation keyed by transaction id. Remote
	// implementations must treat UPDATE and DELETE as idempotent.
	Sink interface {
		Send(ctx context.Context, action Action, tx core.Transaction) error
	}

	// Notifier delivers a chat message to the user through the remote.
	Notifier interface {
		Notify(ctx context.Context, chatID, message string) error
	}
)
