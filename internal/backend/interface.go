// Package backend builds the persistence, remote and push adapters selected
// by configuration.
package backend

import (
	"context"
	"time"

	"finbot/internal/ledger"
	"finbot/internal/services"
	"finbot/internal/sheets"
)

// CleanupFunc releases resources held by a created backend
type CleanupFunc func() error

// Remote groups the ports offered by the selected remote backend. A port the
// backend does not offer is nil.
type Remote struct {
	Source   sheets.Source
	Sink     sheets.Sink
	Notifier sheets.Notifier
}

// Configured reports whether any remote port is available.
func (r Remote) Configured() bool {
	return r.Source != nil || r.Sink != nil || r.Notifier != nil
}

// Result is everything the server needs from the backend layer.
type Result struct {
	Store   *ledger.Store
	Remote  Remote
	Pusher  services.Pusher
	Cleanup CleanupFunc
}

// Factory creates backends based on configuration
type Factory interface {
	// CreateBackend loads the ledger store and wires the remote and pusher
	// around it.
	CreateBackend(ctx context.Context, config Config) (*Result, error)
}

// Config holds configuration for backend creation
type Config struct {
	KV     KVType
	Remote RemoteType
	Push   PushMode

	// SQLite specific
	SQLiteDBPath string

	// Web app specific
	RemoteURL     string
	RemoteTimeout time.Duration

	// AMQP specific
	AMQPURL      string
	AMQPExchange string
	AMQPQueue    string

	// Google Sheets specific
	GoogleSpreadsheetID      string
	GoogleSheetName          string
	GoogleServiceAccountJSON string
	GoogleServiceAccountFile string
}

// KVType selects the local persistence backend
type KVType string

const (
	SQLiteKV KVType = "sqlite"
	MemoryKV KVType = "memory"
)

func (t KVType) String() string { return string(t) }

func (t KVType) IsValid() bool {
	switch t {
	case SQLiteKV, MemoryKV:
		return true
	default:
		return false
	}
}

// RemoteType selects where pulls, pushes and notifications go
type RemoteType string

const (
	NoRemote     RemoteType = "none"
	WebAppRemote RemoteType = "webapp"
	SheetsRemote RemoteType = "sheets"
)

func (t RemoteType) String() string { return string(t) }

func (t RemoteType) IsValid() bool {
	switch t {
	case NoRemote, WebAppRemote, SheetsRemote:
		return true
	default:
		return false
	}
}

// PushMode selects how local mutations reach the remote
type PushMode string

const (
	DirectPush PushMode = "direct"
	AMQPPush   PushMode = "amqp"
)

func (m PushMode) String() string { return string(m) }

func (m PushMode) IsValid() bool {
	return m == DirectPush || m == AMQPPush
}
