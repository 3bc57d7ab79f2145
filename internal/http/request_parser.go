package http

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"net/http"
	"strconv"
	"strings"

	"finbot/internal/core"
	"finbot/internal/intake"
	"finbot/internal/services"
)

const (
	maxJSONBody = 1 << 20
	// Chat bodies carry base64 photos and voice notes.
	maxChatBody = 20 << 20
)

// Amount accepts either a JSON number or a user-typed string such as "30k".
type Amount int64

func (a *Amount) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		v, err := core.ParseAmount(s)
		if err != nil {
			return err
		}
		*a = Amount(v)
		return nil
	}
	v, err := strconv.ParseFloat(string(b), 64)
	if err != nil {
		return core.ErrInvalidAmount
	}
	*a = Amount(int64(math.Round(v)))
	return nil
}

type transactionRequest struct {
	Amount      Amount      `json:"amount"`
	Category    string      `json:"category"`
	Description string      `json:"description"`
	Date        string      `json:"date"`
	Type        core.TxType `json:"type"`
	Person      string      `json:"person"`
	Location    string      `json:"location"`
}

// toTransaction builds the entry. An empty date is left zero for the service
// to fill with today.
func (req transactionRequest) toTransaction(id core.ID) (core.Transaction, error) {
	tx := core.Transaction{
		ID:          id,
		Amount:      int64(req.Amount),
		Category:    sanitizeInput(req.Category),
		Description: sanitizeInput(req.Description),
		Type:        core.TxType(strings.ToUpper(string(req.Type))),
		Person:      sanitizeInput(req.Person),
		Location:    sanitizeInput(req.Location),
	}
	if strings.TrimSpace(req.Date) != "" {
		d, err := core.ParseDate(strings.TrimSpace(req.Date))
		if err != nil {
			return core.Transaction{}, err
		}
		tx.Date = d
	}
	return tx, nil
}

type balanceRequest struct {
	Target *Amount `json:"target"`
}

type chatRequest struct {
	Text      string `json:"text"`
	ImageData string `json:"imageData"`
	AudioData string `json:"audioData"`
	MIMEType  string `json:"mimeType"`
}

// toInput decodes the base64 payloads. Data URLs are accepted and their
// media type is used when mimeType is empty.
func (req chatRequest) toInput() (intake.Input, error) {
	in := intake.Input{Text: sanitizeInput(req.Text), MIMEType: strings.TrimSpace(req.MIMEType)}
	var err error
	if in.Image, err = decodeMedia(req.ImageData, &in.MIMEType); err != nil {
		return intake.Input{}, fmt.Errorf("%w: imageData: %v", services.ErrBadRequest, err)
	}
	if in.Audio, err = decodeMedia(req.AudioData, &in.MIMEType); err != nil {
		return intake.Input{}, fmt.Errorf("%w: audioData: %v", services.ErrBadRequest, err)
	}
	return in, nil
}

func decodeMedia(data string, mime *string) ([]byte, error) {
	data = strings.TrimSpace(data)
	if data == "" {
		return nil, nil
	}
	if rest, ok := strings.CutPrefix(data, "data:"); ok {
		header, payload, found := strings.Cut(rest, ",")
		if !found {
			return nil, errors.New("malformed data URL")
		}
		if *mime == "" {
			*mime = strings.TrimSuffix(header, ";base64")
		}
		data = payload
	}
	return base64.StdEncoding.DecodeString(data)
}

// decodeJSON reads a size-limited JSON body into v.
func decodeJSON(w http.ResponseWriter, r *http.Request, limit int64, v any) error {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, limit))
	if err != nil {
		return fmt.Errorf("%w: read body: %v", services.ErrBadRequest, err)
	}
	if err := json.Unmarshal(body, v); err != nil {
		if errors.Is(err, core.ErrInvalidAmount) {
			return fmt.Errorf("decode body: %w", err)
		}
		return fmt.Errorf("%w: malformed JSON: %v", services.ErrBadRequest, err)
	}
	return nil
}

// historyFilter reads the ledger book filters from the query string.
func historyFilter(r *http.Request) core.HistoryFilter {
	q := r.URL.Query()
	return core.HistoryFilter{
		Type:     core.TxType(strings.ToUpper(strings.TrimSpace(q.Get("type")))),
		Category: strings.TrimSpace(q.Get("category")),
		Month:    strings.TrimSpace(q.Get("month")),
		Search:   q.Get("q"),
	}
}

// sanitizeInput removes control characters and trims whitespace.
func sanitizeInput(s string) string {
	s = strings.TrimSpace(s)
	return strings.Map(func(r rune) rune {
		if r < 32 && r != 9 && r != 10 && r != 13 {
			return -1
		}
		return r
	}, s)
}
