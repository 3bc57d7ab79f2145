package core

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"
)

const (
	Expense TxType = "EXPENSE"
	Income  TxType = "INCOME"

	Pending   Status = "PENDING"
	Confirmed Status = "CONFIRMED"

	RoleUser Role = "user"
	RoleBot  Role = "bot"
)

const dateLayout = "2006-01-02"

type (
	TxType string
	Status string
	Role   string

	// ID is a transaction identifier. Remote stores may hand ids back as JSON
	// numbers, so ID accepts both forms and always compares as a string.
	ID string

	// Date is a calendar day. Only year, month and day are meaningful.
	Date struct {
		time.Time
	}

	Transaction struct {
		ID          ID     `json:"id"`
		Amount      int64  `json:"amount"`
		Category    string `json:"category"`
		Description string `json:"description"`
		Date        Date   `json:"date"`
		Type        TxType `json:"type"`
		Status      Status `json:"status,omitempty"`
		Person      string `json:"person,omitempty"`
		Location    string `json:"location,omitempty"`
	}

	ChatMessage struct {
		ID                   string `json:"id"`
		Role                 Role   `json:"role"`
		Content              string `json:"content"`
		Timestamp            int64  `json:"timestamp"`
		RelatedTransactionID ID     `json:"relatedTransactionId,omitempty"`
		AudioBase64          string `json:"audioBase64,omitempty"`
	}
)

var (
	ErrMissingID        = errors.New("missing id")
	ErrInvalidAmount    = errors.New("invalid amount")
	ErrEmptyDescription = errors.New("empty description")
	ErrInvalidDate      = errors.New("invalid date")
	ErrInvalidType      = errors.New("invalid transaction type")
	ErrInvalidStatus    = errors.New("invalid transaction status")
	ErrDescriptionLong  = errors.New("description too long (max 200 characters)")
	ErrInvalidSettings  = errors.New("invalid settings")
)

// IsValidationError reports whether err came from input validation.
func IsValidationError(err error) bool {
	for _, target := range []error{
		ErrMissingID, ErrInvalidAmount, ErrEmptyDescription, ErrInvalidDate,
		ErrInvalidType, ErrInvalidStatus, ErrDescriptionLong, ErrInvalidSettings,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

// NewDate creates a new Date from year, month, day
func NewDate(year, month, day int) Date {
	return Date{Time: time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)}
}

// DateOf returns the calendar day of t in t's own location.
func DateOf(t time.Time) Date {
	y, m, d := t.Date()
	return NewDate(y, int(m), d)
}

// ParseDate accepts YYYY-MM-DD or a full ISO timestamp, keeping only the
// date part of the latter.
func ParseDate(s string) (Date, error) {
	s = strings.TrimSpace(s)
	if len(s) > len(dateLayout) && (s[len(dateLayout)] == 'T' || s[len(dateLayout)] == ' ') {
		s = s[:len(dateLayout)]
	}
	t, err := time.Parse(dateLayout, s)
	if err != nil {
		return Date{}, fmt.Errorf("%w: %q", ErrInvalidDate, s)
	}
	return Date{Time: t}, nil
}

func (d Date) String() string {
	if d.IsZero() {
		return ""
	}
	return d.Format(dateLayout)
}

// Month returns the month
func (d Date) Month() int {
	return int(d.Time.Month())
}

// SameMonth reports whether both dates fall in the same calendar month.
func (d Date) SameMonth(o Date) bool {
	return d.Year() == o.Year() && d.Month() == o.Month()
}

func (d Date) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.String())
}

func (d *Date) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return fmt.Errorf("%w: %s", ErrInvalidDate, string(b))
	}
	if s == "" {
		*d = Date{}
		return nil
	}
	parsed, err := ParseDate(s)
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

// NormalizeID renders a raw id value (string or JSON number) as its string form.
func NormalizeID(v any) ID {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return ID(strings.TrimSpace(x))
	case ID:
		return ID(strings.TrimSpace(string(x)))
	case float64:
		return ID(strconv.FormatFloat(x, 'f', -1, 64))
	case json.Number:
		return ID(x.String())
	case int:
		return ID(strconv.Itoa(x))
	case int64:
		return ID(strconv.FormatInt(x, 10))
	default:
		return ID(strings.TrimSpace(fmt.Sprint(x)))
	}
}

func (id ID) String() string { return string(id) }

// Equal compares ids by their normalized string form.
func (id ID) Equal(other ID) bool {
	return NormalizeID(id) == NormalizeID(other)
}

func (id *ID) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if bytes.Equal(b, []byte("null")) {
		*id = ""
		return nil
	}
	dec := json.NewDecoder(bytes.NewReader(b))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return fmt.Errorf("decode id: %w", err)
	}
	switch v.(type) {
	case string, json.Number:
		*id = NormalizeID(v)
		return nil
	default:
		return fmt.Errorf("%w: %s", ErrMissingID, string(b))
	}
}

func (t TxType) Valid() bool { return t == Expense || t == Income }

func (s Status) Valid() bool { return s == "" || s == Pending || s == Confirmed }

// IsPending reports whether the transaction is excluded from aggregates.
func (t Transaction) IsPending() bool { return t.Status == Pending }

// Normalize fills defaults that older payloads may lack.
func (t Transaction) Normalize() Transaction {
	t.ID = NormalizeID(t.ID)
	if t.Status == "" {
		t.Status = Confirmed
	}
	t.Category = strings.TrimSpace(t.Category)
	if t.Category == "" {
		t.Category = string(CategoryOther)
	}
	return t
}

// Validate checks the fields every stored transaction must satisfy.
func (t Transaction) Validate() error {
	if NormalizeID(t.ID) == "" {
		return ErrMissingID
	}
	if t.Amount < 0 {
		return ErrInvalidAmount
	}
	if t.Date.IsZero() {
		return ErrInvalidDate
	}
	if !t.Type.Valid() {
		return ErrInvalidType
	}
	if !t.Status.Valid() {
		return ErrInvalidStatus
	}
	return nil
}

// ValidateEntry applies the stricter rules for user-entered transactions.
func (t Transaction) ValidateEntry() error {
	if err := t.Validate(); err != nil {
		return err
	}
	if t.Amount <= 0 {
		return ErrInvalidAmount
	}
	if len(strings.TrimSpace(t.Description)) == 0 {
		return ErrEmptyDescription
	}
	if utf8.RuneCountInString(t.Description) > 200 {
		return ErrDescriptionLong
	}
	return nil
}
