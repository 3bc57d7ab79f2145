package core

import (
	"sort"
	"time"
)

const (
	PeriodMonth Period = "month"
	PeriodYear  Period = "year"
	PeriodAll   Period = "all"

	// DeltaSentinel is reported when the previous window is zero: a change
	// from nothing has no ratio.
	DeltaSentinel = 100.0
)

type Period string

func (p Period) Valid() bool {
	return p == PeriodMonth || p == PeriodYear || p == PeriodAll
}

// ConfirmedOnly drops PENDING transactions. Every aggregate below starts here.
func ConfirmedOnly(txs []Transaction) []Transaction {
	out := make([]Transaction, 0, len(txs))
	for _, t := range txs {
		if !t.IsPending() {
			out = append(out, t)
		}
	}
	return out
}

// PendingOnly returns the PENDING transactions in input order.
func PendingOnly(txs []Transaction) []Transaction {
	var out []Transaction
	for _, t := range txs {
		if t.IsPending() {
			out = append(out, t)
		}
	}
	return out
}

func sumTotals(txs []Transaction, keep func(Transaction) bool) PeriodTotals {
	var p PeriodTotals
	for _, t := range txs {
		if t.IsPending() || (keep != nil && !keep(t)) {
			continue
		}
		switch t.Type {
		case Income:
			p.Income += t.Amount
		case Expense:
			p.Expense += t.Amount
		}
	}
	return p
}

// LifetimeTotals sums confirmed income and expense over all time.
func LifetimeTotals(txs []Transaction) PeriodTotals {
	return sumTotals(txs, nil)
}

// Balance is initialBalance plus lifetime income minus lifetime expense,
// recomputed from the full list on every call.
func Balance(s Settings, txs []Transaction) int64 {
	return s.InitialBalance + LifetimeTotals(txs).Net()
}

// CorrectBalance returns settings whose initial balance makes Balance equal
// target for the given transactions.
func CorrectBalance(s Settings, txs []Transaction, target int64) Settings {
	s.InitialBalance = target - LifetimeTotals(txs).Net()
	return s
}

// Totals sums confirmed transactions in the period containing now.
func Totals(txs []Transaction, period Period, now time.Time) PeriodTotals {
	return sumTotals(txs, periodFilter(period, now))
}

func periodFilter(period Period, now time.Time) func(Transaction) bool {
	today := DateOf(now)
	switch period {
	case PeriodMonth:
		return func(t Transaction) bool { return t.Date.SameMonth(today) }
	case PeriodYear:
		return func(t Transaction) bool { return t.Date.Year() == today.Year() }
	default:
		return nil
	}
}

// InPeriod returns the confirmed transactions falling in the period of now.
func InPeriod(txs []Transaction, period Period, now time.Time) []Transaction {
	keep := periodFilter(period, now)
	out := make([]Transaction, 0, len(txs))
	for _, t := range txs {
		if t.IsPending() || (keep != nil && !keep(t)) {
			continue
		}
		out = append(out, t)
	}
	return out
}

// WeekStart returns the Sunday that begins the week containing now.
func WeekStart(now time.Time) Date {
	today := DateOf(now)
	return Date{Time: today.AddDate(0, 0, -int(today.Weekday()))}
}

// TodayExpense sums confirmed expenses dated today.
func TodayExpense(txs []Transaction, now time.Time) int64 {
	today := DateOf(now)
	var sum int64
	for _, t := range txs {
		if t.IsPending() || t.Type != Expense {
			continue
		}
		if t.Date.Equal(today.Time) {
			sum += t.Amount
		}
	}
	return sum
}

// Limit compares today's expense to the daily limit. The ratio is clamped to
// 1; a non-positive limit means no limit is configured.
func Limit(txs []Transaction, dailyLimit int64, now time.Time) LimitStatus {
	st := LimitStatus{
		TodayExpense: TodayExpense(txs, now),
		DailyLimit:   dailyLimit,
	}
	if dailyLimit <= 0 {
		return st
	}
	st.Limited = true
	st.Ratio = float64(st.TodayExpense) / float64(dailyLimit)
	if st.Ratio > 1 {
		st.Ratio = 1
	}
	return st
}

// CategoryBreakdown groups confirmed transactions of one type by category,
// largest first. Equal sums keep the order in which categories first appear.
func CategoryBreakdown(txs []Transaction, typ TxType) []CategoryAmount {
	index := make(map[string]int)
	var out []CategoryAmount
	for _, t := range txs {
		if t.IsPending() || t.Type != typ {
			continue
		}
		i, ok := index[t.Category]
		if !ok {
			i = len(out)
			index[t.Category] = i
			out = append(out, CategoryAmount{Name: t.Category, Icon: CategoryIcon(t.Category)})
		}
		out[i].Amount += t.Amount
	}
	sort.SliceStable(out, func(a, b int) bool { return out[a].Amount > out[b].Amount })
	return out
}

// PercentChange is (current-previous)/previous*100, or DeltaSentinel when
// previous is zero.
func PercentChange(current, previous int64) float64 {
	if previous == 0 {
		return DeltaSentinel
	}
	return float64(current-previous) / float64(previous) * 100
}

// Compare computes expense totals for this/last week (Sunday start) and
// this/last calendar month.
func Compare(txs []Transaction, now time.Time) Comparison {
	today := DateOf(now)
	thisWeek := WeekStart(now)
	lastWeek := Date{Time: thisWeek.AddDate(0, 0, -7)}
	lastMonth := Date{Time: time.Date(today.Year(), today.Time.Month()-1, 1, 0, 0, 0, 0, time.UTC)}

	var c Comparison
	for _, t := range txs {
		if t.IsPending() || t.Type != Expense {
			continue
		}
		switch {
		case !t.Date.Before(thisWeek.Time):
			c.ThisWeek += t.Amount
		case !t.Date.Before(lastWeek.Time):
			c.LastWeek += t.Amount
		}
		switch {
		case t.Date.SameMonth(today):
			c.ThisMonth += t.Amount
		case t.Date.SameMonth(lastMonth):
			c.LastMonth += t.Amount
		}
	}
	c.WeekDelta = PercentChange(c.ThisWeek, c.LastWeek)
	c.MonthDelta = PercentChange(c.ThisMonth, c.LastMonth)
	return c
}

// DailySeries buckets confirmed transactions of the current month by day.
func DailySeries(txs []Transaction, now time.Time) []DailyAmount {
	today := DateOf(now)
	days := time.Date(today.Year(), today.Time.Month()+1, 0, 0, 0, 0, 0, time.UTC).Day()
	out := make([]DailyAmount, days)
	for i := range out {
		out[i].Day = i + 1
	}
	for _, t := range txs {
		if t.IsPending() || !t.Date.SameMonth(today) {
			continue
		}
		b := &out[t.Date.Day()-1]
		if t.Type == Income {
			b.Income += t.Amount
		} else {
			b.Expense += t.Amount
		}
	}
	return out
}

// Summarize builds the dashboard for now.
func Summarize(s Settings, txs []Transaction, now time.Time) Dashboard {
	today := DateOf(now)
	d := Dashboard{
		Month:    Totals(txs, PeriodMonth, now),
		Lifetime: LifetimeTotals(txs),
		Balance:  Balance(s, txs),
		Limit:    Limit(txs, s.DailyLimit, now),
		Pending:  PendingOnly(txs),
	}
	for i := len(txs) - 1; i >= 0; i-- {
		t := txs[i]
		if !t.IsPending() && t.Date.Equal(today.Time) {
			d.Today = append(d.Today, t)
		}
	}
	return d
}

// Stats builds the statistics view for a period and breakdown type.
func Stats(txs []Transaction, period Period, typ TxType, now time.Time) Statistics {
	scoped := InPeriod(txs, period, now)
	st := Statistics{
		Period:     period,
		Totals:     sumTotals(scoped, nil),
		Categories: CategoryBreakdown(scoped, typ),
		Comparison: Compare(txs, now),
	}
	if period == PeriodMonth {
		st.Daily = DailySeries(scoped, now)
	}
	return st
}
