// Package intake turns free text, photos and voice notes into ledger entries
// and chat replies through an external parser.
package intake

import (
	"context"
	"errors"

	"finbot/internal/core"
	"finbot/internal/ledger"
)

var (
	// ErrNothingParsed means the parser returned no usable transaction.
	ErrNothingParsed = errors.New("nothing parsed")
	// ErrNotPending is returned when re-processing a confirmed transaction.
	ErrNotPending = ledger.ErrNotPending
	// ErrParserUnavailable wraps parser transport failures.
	ErrParserUnavailable = errors.New("parser unavailable")
	// ErrEmptyInput is returned when a request carries no text, image or audio.
	ErrEmptyInput = errors.New("empty input")
)

// Input is one user submission. Image and Audio hold raw bytes.
type Input struct {
	Text     string
	Image    []byte
	Audio    []byte
	MIMEType string
}

func (in Input) Empty() bool {
	return in.Text == "" && len(in.Image) == 0 && len(in.Audio) == 0
}

// ParsedTransaction is one proposal from the parser. Fields may be missing
// or out of range; the pipeline applies defaults and the positive-amount rule.
type ParsedTransaction struct {
	Amount      float64     `json:"amount"`
	Category    string      `json:"category"`
	Description string      `json:"description"`
	Date        string      `json:"date"`
	Type        core.TxType `json:"type"`
	Person      string      `json:"person,omitempty"`
	Location    string      `json:"location,omitempty"`
}

// Result is the parser response. A nil Transactions slice means the parser
// returned no array at all.
type Result struct {
	Transactions   []ParsedTransaction `json:"transactions"`
	AnalysisAnswer string              `json:"analysisAnswer"`
}

// Parser extracts transactions and answers from user input. history holds
// recent confirmed transactions used as context; today anchors relative dates.
type Parser interface {
	Parse(ctx context.Context, in Input, history []core.Transaction, today core.Date) (*Result, error)
}

// Advisor writes free-form spending advice from recent transactions.
type Advisor interface {
	Advise(ctx context.Context, history []core.Transaction) (string, error)
}
