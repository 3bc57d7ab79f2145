package sheets

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strings"

	"finbot/internal/core"
)

var ErrMalformedRecord = errors.New("malformed remote record")

// Coerce converts one loosely typed remote record into a Transaction.
//
// Required: id, date, type and a non-negative amount. Missing status defaults
// to CONFIRMED; missing category to "Khác". Timestamps in the date field keep
// only their date part. Keys are matched case-insensitively so sheet headers
// ("ID", "Date", ...) and JSON keys both work.
func Coerce(record map[string]any) (core.Transaction, error) {
	get := func(key string) any {
		if v, ok := record[key]; ok {
			return v
		}
		for k, v := range record {
			if strings.EqualFold(k, key) {
				return v
			}
		}
		return nil
	}

	var t core.Transaction
	t.ID = core.NormalizeID(get("id"))
	if t.ID == "" {
		return t, fmt.Errorf("%w: %w", ErrMalformedRecord, core.ErrMissingID)
	}

	amount, err := coerceAmount(get("amount"))
	if err != nil {
		return t, fmt.Errorf("%w: id %s: %w", ErrMalformedRecord, t.ID, err)
	}
	t.Amount = amount

	date, err := core.ParseDate(asString(get("date")))
	if err != nil {
		return t, fmt.Errorf("%w: id %s: %w", ErrMalformedRecord, t.ID, err)
	}
	t.Date = date

	t.Type = core.TxType(strings.ToUpper(asString(get("type"))))
	if !t.Type.Valid() {
		return t, fmt.Errorf("%w: id %s: %w", ErrMalformedRecord, t.ID, core.ErrInvalidType)
	}

	t.Status = core.Status(strings.ToUpper(asString(get("status"))))
	if !t.Status.Valid() {
		return t, fmt.Errorf("%w: id %s: %w", ErrMalformedRecord, t.ID, core.ErrInvalidStatus)
	}

	t.Category = asString(get("category"))
	t.Description = asString(get("description"))
	t.Person = asString(get("person"))
	t.Location = asString(get("location"))

	return t.Normalize(), nil
}

// CoerceAll coerces every record, returning the valid ones and the errors for
// the dropped ones.
func CoerceAll(records []map[string]any) ([]core.Transaction, []error) {
	out := make([]core.Transaction, 0, len(records))
	var errs []error
	for _, r := range records {
		t, err := Coerce(r)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		out = append(out, t)
	}
	return out, errs
}

func coerceAmount(v any) (int64, error) {
	switch x := v.(type) {
	case float64:
		if x < 0 || math.IsNaN(x) || math.IsInf(x, 0) {
			return 0, core.ErrInvalidAmount
		}
		return int64(math.Round(x)), nil
	case json.Number:
		f, err := x.Float64()
		if err != nil {
			return 0, core.ErrInvalidAmount
		}
		return coerceAmount(f)
	case int64:
		if x < 0 {
			return 0, core.ErrInvalidAmount
		}
		return x, nil
	case int:
		return coerceAmount(int64(x))
	case string:
		return core.ParseAmountLenient(x)
	default:
		return 0, core.ErrInvalidAmount
	}
}

func asString(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return strings.TrimSpace(x)
	default:
		return strings.TrimSpace(fmt.Sprint(x))
	}
}
