package amqp

import (
	"encoding/json"
	"fmt"
	"time"

	"finbot/internal/core"
	"finbot/internal/sheets"
)

// MutationMessage carries one local ledger mutation to the push worker. It
// holds the full transaction so the worker never reads local state.
type MutationMessage struct {
	Action    sheets.Action    `json:"action"`
	Data      core.Transaction `json:"data"`
	Timestamp time.Time        `json:"timestamp"`
}

// NewMutationMessage creates a message stamped with the current time.
func NewMutationMessage(action sheets.Action, tx core.Transaction) *MutationMessage {
	return &MutationMessage{
		Action:    action,
		Data:      tx,
		Timestamp: time.Now(),
	}
}

// ToJSON converts the message to JSON bytes
func (m *MutationMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// MutationMessageFromJSON decodes a message and rejects unknown actions or a
// missing transaction id.
func MutationMessageFromJSON(data []byte) (*MutationMessage, error) {
	var msg MutationMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	if !msg.Action.Valid() {
		return nil, fmt.Errorf("unsupported action %q", msg.Action)
	}
	if msg.Data.ID == "" {
		return nil, core.ErrMissingID
	}
	return &msg, nil
}
