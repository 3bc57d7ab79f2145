// Package ledger holds the authoritative transaction list, settings and chat
// history for the running process.
//
// Every mutation is applied in memory first and then written through to a
// key-value store. A failed write is logged and never rolls the in-memory
// change back: the in-memory state is what the rest of the system reads.
package ledger

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"finbot/internal/core"
	"finbot/internal/log"
)

// Fixed storage keys.
const (
	KeyTransactions = "finbot_transactions"
	KeyChatHistory  = "finbot_chat_history"
	KeySettings     = "finbot_settings"
)

var (
	ErrNotFound   = errors.New("transaction not found")
	ErrNotPending = errors.New("transaction is not pending")
)

// KV is the local persistence port.
type KV interface {
	Get(ctx context.Context, key string) (value string, ok bool, err error)
	Set(ctx context.Context, key, value string) error
}

// Store owns the ledger state. All mutations are serialized.
type Store struct {
	kv     KV
	logger *log.Logger

	mu       sync.RWMutex
	txs      []core.Transaction
	settings core.Settings
	chat     []core.ChatMessage
}

// New creates an empty store backed by kv. Call Load to restore state.
func New(kv KV, logger *log.Logger) *Store {
	if logger == nil {
		logger = log.Nop()
	}
	return &Store{
		kv:       kv,
		logger:   logger.WithComponent(log.ComponentLedger),
		settings: core.DefaultSettings(),
	}
}

// Load restores the last persisted state. Missing or unreadable data degrades
// to defaults; Load never fails.
func (s *Store) Load(ctx context.Context) {
	txs := s.loadTransactions(ctx)
	settings := s.loadSettings(ctx)
	chat := s.loadChat(ctx)

	s.mu.Lock()
	s.txs = txs
	s.settings = settings
	s.chat = chat
	s.mu.Unlock()

	s.logger.InfoContext(ctx, "Ledger loaded",
		log.FieldCount, len(txs),
		"chat_messages", len(chat))
}

func (s *Store) read(ctx context.Context, key string) ([]byte, bool) {
	raw, ok, err := s.kv.Get(ctx, key)
	if err != nil {
		s.logger.WarnContext(ctx, "Failed to read persisted state",
			log.FieldKey, key, log.FieldError, err)
		return nil, false
	}
	if !ok || raw == "" {
		return nil, false
	}
	return []byte(raw), true
}

func (s *Store) loadTransactions(ctx context.Context) []core.Transaction {
	raw, ok := s.read(ctx, KeyTransactions)
	if !ok {
		return nil
	}
	var items []json.RawMessage
	if err := json.Unmarshal(raw, &items); err != nil {
		s.logger.WarnContext(ctx, "Persisted transactions unreadable, starting empty",
			log.FieldError, err)
		return nil
	}
	out := make([]core.Transaction, 0, len(items))
	for _, item := range items {
		var t core.Transaction
		if err := json.Unmarshal(item, &t); err != nil {
			s.logger.WarnContext(ctx, "Dropping unreadable persisted transaction", log.FieldError, err)
			continue
		}
		t = t.Normalize()
		if err := t.Validate(); err != nil {
			s.logger.WarnContext(ctx, "Dropping invalid persisted transaction",
				log.FieldTxID, t.ID.String(), log.FieldError, err)
			continue
		}
		out = append(out, t)
	}
	return out
}

func (s *Store) loadSettings(ctx context.Context) core.Settings {
	raw, ok := s.read(ctx, KeySettings)
	if !ok {
		return core.DefaultSettings()
	}
	settings, err := core.DecodeSettings(raw)
	if err != nil {
		s.logger.WarnContext(ctx, "Persisted settings unreadable, using defaults", log.FieldError, err)
	}
	return settings
}

func (s *Store) loadChat(ctx context.Context) []core.ChatMessage {
	raw, ok := s.read(ctx, KeyChatHistory)
	if !ok {
		return nil
	}
	var chat []core.ChatMessage
	if err := json.Unmarshal(raw, &chat); err != nil {
		s.logger.WarnContext(ctx, "Persisted chat history unreadable, starting empty", log.FieldError, err)
		return nil
	}
	return chat
}

// persist writes value under key. Callers hold s.mu so writes land in
// mutation order.
func (s *Store) persist(ctx context.Context, key string, value any) {
	data, err := json.Marshal(value)
	if err != nil {
		s.logger.ErrorContext(ctx, "Failed to encode ledger state",
			log.FieldKey, key, log.FieldError, err)
		return
	}
	if err := s.kv.Set(ctx, key, string(data)); err != nil {
		s.logger.ErrorContext(ctx, "Failed to persist ledger state",
			log.FieldKey, key, log.FieldOperation, log.OpPersist, log.FieldError, err)
	}
}

// Transactions returns a copy of the current list in ledger order.
func (s *Store) Transactions() []core.Transaction {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]core.Transaction(nil), s.txs...)
}

// Settings returns the current settings.
func (s *Store) Settings() core.Settings {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := s.settings
	out.NotificationTimes = append([]string(nil), s.settings.NotificationTimes...)
	return out
}

// Snapshot returns a consistent copy of transactions and settings.
func (s *Store) Snapshot() ([]core.Transaction, core.Settings) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	settings := s.settings
	settings.NotificationTimes = append([]string(nil), s.settings.NotificationTimes...)
	return append([]core.Transaction(nil), s.txs...), settings
}

// ChatHistory returns a copy of the chat log.
func (s *Store) ChatHistory() []core.ChatMessage {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]core.ChatMessage(nil), s.chat...)
}

// Find looks a transaction up by normalized id.
func (s *Store) Find(id core.ID) (core.Transaction, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if i := indexOf(s.txs, id); i >= 0 {
		return s.txs[i], true
	}
	return core.Transaction{}, false
}

// Mutate applies fn to a copy of the list, installs the result and persists
// it. fn must not retain the slice it is given.
func (s *Store) Mutate(ctx context.Context, fn func([]core.Transaction) []core.Transaction) []core.Transaction {
	s.mu.Lock()
	defer s.mu.Unlock()
	next := fn(append([]core.Transaction(nil), s.txs...))
	s.txs = next
	s.persist(ctx, KeyTransactions, s.txsForStorage())
	return append([]core.Transaction(nil), next...)
}

func (s *Store) txsForStorage() []core.Transaction {
	if s.txs == nil {
		return []core.Transaction{}
	}
	return s.txs
}

// Add appends one or many transactions in a single mutation.
func (s *Store) Add(ctx context.Context, txs ...core.Transaction) {
	if len(txs) == 0 {
		return
	}
	s.Mutate(ctx, func(list []core.Transaction) []core.Transaction {
		return append(list, txs...)
	})
}

// Replace swaps the transaction whose id matches tx.ID.
func (s *Store) Replace(ctx context.Context, tx core.Transaction) error {
	var found bool
	s.Mutate(ctx, func(list []core.Transaction) []core.Transaction {
		if i := indexOf(list, tx.ID); i >= 0 {
			list[i] = tx
			found = true
		}
		return list
	})
	if !found {
		return fmt.Errorf("replace %s: %w", tx.ID, ErrNotFound)
	}
	return nil
}

// Update rewrites the transaction with the given id through fn under the
// store lock. An error from fn leaves the ledger untouched.
func (s *Store) Update(ctx context.Context, id core.ID, fn func(core.Transaction) (core.Transaction, error)) (core.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := indexOf(s.txs, id)
	if i < 0 {
		return core.Transaction{}, fmt.Errorf("update %s: %w", id, ErrNotFound)
	}
	next, err := fn(s.txs[i])
	if err != nil {
		return core.Transaction{}, err
	}
	txs := append([]core.Transaction(nil), s.txs...)
	txs[i] = next
	s.txs = txs
	s.persist(ctx, KeyTransactions, s.txsForStorage())
	return next, nil
}

// Remove deletes every transaction whose id matches and returns the first
// removed one. Ids compare in their normalized string form.
func (s *Store) Remove(ctx context.Context, id core.ID) (core.Transaction, error) {
	var removed *core.Transaction
	s.Mutate(ctx, func(list []core.Transaction) []core.Transaction {
		kept := list[:0]
		for _, t := range list {
			if t.ID.Equal(id) {
				if removed == nil {
					t := t
					removed = &t
				}
				continue
			}
			kept = append(kept, t)
		}
		return kept
	})
	if removed == nil {
		return core.Transaction{}, fmt.Errorf("remove %s: %w", id, ErrNotFound)
	}
	return *removed, nil
}

// ReplaceAll installs txs as the whole ledger.
func (s *Store) ReplaceAll(ctx context.Context, txs []core.Transaction) {
	s.Mutate(ctx, func([]core.Transaction) []core.Transaction {
		return append([]core.Transaction(nil), txs...)
	})
}

// UpdateSettings replaces and persists settings.
func (s *Store) UpdateSettings(ctx context.Context, settings core.Settings) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.settings = settings
	s.persist(ctx, KeySettings, settings)
}

// AppendChat appends messages to the chat log.
func (s *Store) AppendChat(ctx context.Context, msgs ...core.ChatMessage) {
	if len(msgs) == 0 {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.chat = append(s.chat, msgs...)
	s.persist(ctx, KeyChatHistory, s.chat)
}

// ReplaceChat installs a whole chat log, used by backup import.
func (s *Store) ReplaceChat(ctx context.Context, msgs []core.ChatMessage) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.chat = append([]core.ChatMessage{}, msgs...)
	s.persist(ctx, KeyChatHistory, s.chat)
}

func indexOf(list []core.Transaction, id core.ID) int {
	for i, t := range list {
		if t.ID.Equal(id) {
			return i
		}
	}
	return -1
}
