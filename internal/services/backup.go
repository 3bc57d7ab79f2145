package services

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"finbot/internal/core"
	"finbot/internal/ledger"
	"finbot/internal/log"
)

// Snapshot is the export document.
type Snapshot struct {
	Transactions []core.Transaction `json:"transactions"`
	Settings     core.Settings      `json:"settings"`
	ChatHistory  []core.ChatMessage `json:"chatHistory"`
	ExportDate   string             `json:"exportDate"`
}

// Backup exports and imports the whole local state. Imports are local only
// and are not pushed to the remote.
type Backup struct {
	store  *ledger.Store
	clock  Clock
	logger *log.Logger
}

func NewBackup(store *ledger.Store, clock Clock, logger *log.Logger) *Backup {
	if clock == nil {
		clock = time.Now
	}
	if logger == nil {
		logger = log.Nop()
	}
	return &Backup{store: store, clock: clock, logger: logger.WithComponent(log.ComponentBackup)}
}

// Export returns the current state as an indented JSON document.
func (b *Backup) Export() ([]byte, error) {
	txs, settings := b.store.Snapshot()
	snap := Snapshot{
		Transactions: txs,
		Settings:     settings,
		ChatHistory:  b.store.ChatHistory(),
		ExportDate:   b.clock().UTC().Format(time.RFC3339),
	}
	if snap.Transactions == nil {
		snap.Transactions = []core.Transaction{}
	}
	if snap.ChatHistory == nil {
		snap.ChatHistory = []core.ChatMessage{}
	}
	data, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encode backup: %w", err)
	}
	return data, nil
}

type importDocument struct {
	Transactions json.RawMessage `json:"transactions"`
	Settings     json.RawMessage `json:"settings"`
	ChatHistory  json.RawMessage `json:"chatHistory"`
}

func present(raw json.RawMessage) bool {
	return len(raw) > 0 && string(raw) != "null"
}

// Import applies whichever sections the document carries. Any unreadable
// section rejects the whole import and nothing changes. Individual invalid
// transactions are dropped.
func (b *Backup) Import(ctx context.Context, data []byte) bool {
	var doc importDocument
	if err := json.Unmarshal(data, &doc); err != nil {
		b.logger.WarnContext(ctx, "Import rejected", log.FieldError, err)
		return false
	}

	var (
		txs      []core.Transaction
		settings core.Settings
		chat     []core.ChatMessage
	)
	if present(doc.Transactions) {
		var raw []json.RawMessage
		if err := json.Unmarshal(doc.Transactions, &raw); err != nil {
			b.logger.WarnContext(ctx, "Import rejected: transactions unreadable", log.FieldError, err)
			return false
		}
		txs = make([]core.Transaction, 0, len(raw))
		for _, item := range raw {
			var t core.Transaction
			if err := json.Unmarshal(item, &t); err != nil {
				b.logger.WarnContext(ctx, "Dropping unreadable imported transaction", log.FieldError, err)
				continue
			}
			t = t.Normalize()
			if err := t.Validate(); err != nil {
				b.logger.WarnContext(ctx, "Dropping invalid imported transaction",
					log.FieldTxID, t.ID.String(), log.FieldError, err)
				continue
			}
			txs = append(txs, t)
		}
	}
	if present(doc.Settings) {
		var err error
		if settings, err = core.DecodeSettings(doc.Settings); err != nil {
			b.logger.WarnContext(ctx, "Import rejected: settings unreadable", log.FieldError, err)
			return false
		}
	}
	if present(doc.ChatHistory) {
		if err := json.Unmarshal(doc.ChatHistory, &chat); err != nil {
			b.logger.WarnContext(ctx, "Import rejected: chat history unreadable", log.FieldError, err)
			return false
		}
	}

	if present(doc.Transactions) {
		b.store.ReplaceAll(ctx, txs)
	}
	if present(doc.Settings) {
		b.store.UpdateSettings(ctx, settings)
	}
	if present(doc.ChatHistory) {
		b.store.ReplaceChat(ctx, chat)
	}
	b.logger.InfoContext(ctx, "Backup imported",
		log.FieldCount, len(txs),
		"settings", present(doc.Settings),
		"chat_messages", len(chat))
	return true
}
