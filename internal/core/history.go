package core

import (
	"sort"
	"strings"
)

// HistoryFilter selects transactions for the ledger book view. Zero values
// (or "ALL") disable a criterion.
type HistoryFilter struct {
	Type     TxType
	Category string
	// Month is a YYYY-MM prefix matched against the transaction date.
	Month  string
	Search string
}

// DayGroup is one day of the history view. Totals count confirmed items only.
type DayGroup struct {
	Date         Date          `json:"date"`
	Income       int64         `json:"income"`
	Expense      int64         `json:"expense"`
	Net          int64         `json:"net"`
	Transactions []Transaction `json:"transactions"`
}

func (f HistoryFilter) match(t Transaction) bool {
	if f.Type != "" && f.Type != "ALL" && t.Type != f.Type {
		return false
	}
	if f.Category != "" && f.Category != "ALL" && t.Category != f.Category {
		return false
	}
	if f.Month != "" && !strings.HasPrefix(t.Date.String(), f.Month) {
		return false
	}
	if q := strings.ToLower(strings.TrimSpace(f.Search)); q != "" {
		return strings.Contains(strings.ToLower(t.Description), q) ||
			strings.Contains(strings.ToLower(t.Person), q) ||
			strings.Contains(strings.ToLower(t.Location), q)
	}
	return true
}

// FilterHistory returns matching transactions, newest date first. Items on
// the same date keep their ledger order.
func FilterHistory(txs []Transaction, f HistoryFilter) []Transaction {
	out := make([]Transaction, 0, len(txs))
	for _, t := range txs {
		if f.match(t) {
			out = append(out, t)
		}
	}
	sort.SliceStable(out, func(a, b int) bool { return out[a].Date.After(out[b].Date.Time) })
	return out
}

// GroupByDay splits an already sorted list into consecutive day groups.
func GroupByDay(txs []Transaction) []DayGroup {
	var groups []DayGroup
	for _, t := range txs {
		if len(groups) == 0 || !groups[len(groups)-1].Date.Equal(t.Date.Time) {
			groups = append(groups, DayGroup{Date: t.Date})
		}
		g := &groups[len(groups)-1]
		g.Transactions = append(g.Transactions, t)
		if t.IsPending() {
			continue
		}
		switch t.Type {
		case Income:
			g.Income += t.Amount
		case Expense:
			g.Expense += t.Amount
		}
		g.Net = g.Income - g.Expense
	}
	return groups
}

// Recent returns the last n confirmed transactions in ledger order.
func Recent(txs []Transaction, n int) []Transaction {
	confirmed := ConfirmedOnly(txs)
	if n >= 0 && len(confirmed) > n {
		confirmed = confirmed[len(confirmed)-n:]
	}
	return confirmed
}
