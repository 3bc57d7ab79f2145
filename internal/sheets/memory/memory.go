// Package memory is an in-process remote: a Source, Sink and Notifier backed
// by a slice. It serves the memory remote backend and tests.
package memory

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sync"

	"finbot/internal/core"
	ports "finbot/internal/sheets"
)

// Ensure interface conformance
var (
	_ ports.Source   = (*Store)(nil)
	_ ports.Sink     = (*Store)(nil)
	_ ports.Notifier = (*Store)(nil)
)

// Notification is a message recorded by Notify.
type Notification struct {
	ChatID  string
	Message string
}

type Store struct {
	mu       sync.Mutex
	items    []core.Transaction
	notified []Notification

	// FetchErr and SendErr, when set, are returned by the matching calls.
	FetchErr error
	SendErr  error
}

func New(items ...core.Transaction) *Store {
	return &Store{items: append([]core.Transaction(nil), items...)}
}

// NewFromFile seeds the store from a JSON array of remote records. A missing
// file yields an empty store.
func NewFromFile(path string) (*Store, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return New(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("read seed file: %w", err)
	}
	var records []map[string]any
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, fmt.Errorf("decode seed file: %w", err)
	}
	items, _ := ports.CoerceAll(records)
	return New(items...), nil
}

func (s *Store) Fetch(_ context.Context) ([]core.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.FetchErr != nil {
		return nil, s.FetchErr
	}
	return append([]core.Transaction(nil), s.items...), nil
}

// Send applies the mutation keyed by id: ADD and UPDATE upsert, DELETE removes.
func (s *Store) Send(_ context.Context, action ports.Action, tx core.Transaction) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.SendErr != nil {
		return s.SendErr
	}
	idx := -1
	for i, t := range s.items {
		if t.ID.Equal(tx.ID) {
			idx = i
			break
		}
	}
	switch action {
	case ports.ActionAdd, ports.ActionUpdate:
		if idx >= 0 {
			s.items[idx] = tx
		} else {
			s.items = append(s.items, tx)
		}
	case ports.ActionDelete:
		if idx >= 0 {
			s.items = append(s.items[:idx], s.items[idx+1:]...)
		}
	default:
		return fmt.Errorf("unsupported action %q", action)
	}
	return nil
}

func (s *Store) Notify(_ context.Context, chatID, message string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.SendErr != nil {
		return s.SendErr
	}
	s.notified = append(s.notified, Notification{ChatID: chatID, Message: message})
	return nil
}

// Items returns a copy of the remote list.
func (s *Store) Items() []core.Transaction {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]core.Transaction(nil), s.items...)
}

// Notifications returns a copy of the recorded notifications.
func (s *Store) Notifications() []Notification {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Notification(nil), s.notified...)
}
