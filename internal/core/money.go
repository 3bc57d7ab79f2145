// Package core provides amount parsing and formatting utilities.
//
// Amounts are whole đồng held in an int64. VND has no minor unit in practice,
// so there is no fractional part to carry around.
package core

import (
	"strconv"
	"strings"
	"unicode"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

var vndPrinter = message.NewPrinter(language.Vietnamese)

// ParseAmount converts a user-typed amount to đồng.
//
// It accepts grouped digits ("30.000", "30,000"), the "k" shorthand for
// thousands ("30k", "1,5k") and "tr" for millions ("1.2tr"). Currency marks
// (₫, đ, vnd) are ignored. Returns ErrInvalidAmount for negative, zero or
// malformed input.
//
// Examples:
//
//	ParseAmount("30000")  -> 30000, nil
//	ParseAmount("30.000") -> 30000, nil
//	ParseAmount("30k")    -> 30000, nil
//	ParseAmount("1,5tr")  -> 1500000, nil
func ParseAmount(s string) (int64, error) {
	v, err := parseAmount(s)
	if err != nil {
		return 0, err
	}
	if v <= 0 {
		return 0, ErrInvalidAmount
	}
	return v, nil
}

// ParseAmountLenient is ParseAmount without the positive rule, for values read
// back from a remote store where zero-amount pending rows are legal.
func ParseAmountLenient(s string) (int64, error) {
	return parseAmount(s)
}

func parseAmount(s string) (int64, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	for _, mark := range []string{"₫", "vnd", "đ"} {
		s = strings.TrimSuffix(strings.TrimSpace(s), mark)
	}
	s = strings.ReplaceAll(strings.TrimSpace(s), " ", "")
	if s == "" || strings.HasPrefix(s, "-") || strings.HasPrefix(s, "+") {
		return 0, ErrInvalidAmount
	}

	var multiplier int64 = 1
	switch {
	case strings.HasSuffix(s, "tr"):
		multiplier = 1_000_000
		s = strings.TrimSuffix(s, "tr")
	case strings.HasSuffix(s, "k"):
		multiplier = 1_000
		s = strings.TrimSuffix(s, "k")
	}

	if multiplier == 1 {
		// Without a unit suffix both separators are thousands grouping.
		s = strings.NewReplacer(".", "", ",", "").Replace(s)
		return parseDigits(s)
	}

	// With a suffix a single separator marks a fraction of the unit.
	s = strings.ReplaceAll(s, ",", ".")
	parts := strings.Split(s, ".")
	if len(parts) > 2 {
		return 0, ErrInvalidAmount
	}
	whole, err := parseDigits(orZero(parts[0]))
	if err != nil {
		return 0, err
	}
	const maxSafe = (1<<63 - 1) / 1_000_000
	if whole > maxSafe {
		return 0, ErrInvalidAmount
	}
	total := whole * multiplier
	if len(parts) == 2 && parts[1] != "" {
		frac := parts[1]
		if _, err := parseDigits(frac); err != nil {
			return 0, err
		}
		scale := multiplier
		for _, r := range frac {
			scale /= 10
			if scale == 0 {
				break
			}
			total += int64(r-'0') * scale
		}
	}
	return total, nil
}

func parseDigits(s string) (int64, error) {
	if s == "" {
		return 0, ErrInvalidAmount
	}
	for _, r := range s {
		if !unicode.IsDigit(r) || r > unicode.MaxASCII {
			return 0, ErrInvalidAmount
		}
	}
	v, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, ErrInvalidAmount
	}
	return v, nil
}

func orZero(s string) string {
	if s == "" {
		return "0"
	}
	return s
}

// FormatVND renders an amount the way vi-VN currency formatting does, e.g.
// "1.250.000 ₫".
func FormatVND(amount int64) string {
	return vndPrinter.Sprintf("%d ₫", amount)
}
