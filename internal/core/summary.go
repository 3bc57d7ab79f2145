package core

// CategoryAmount represents an amount aggregated by category name.
type CategoryAmount struct {
	Name   string `json:"name"`
	Icon   string `json:"icon"`
	Amount int64  `json:"amount"`
}

// PeriodTotals holds income and expense sums over a calendar window.
type PeriodTotals struct {
	Income  int64 `json:"income"`
	Expense int64 `json:"expense"`
}

// Net returns income minus expense.
func (p PeriodTotals) Net() int64 { return p.Income - p.Expense }

// Comparison is the expense change between adjacent weeks and months.
type Comparison struct {
	ThisWeek   int64   `json:"thisWeek"`
	LastWeek   int64   `json:"lastWeek"`
	WeekDelta  float64 `json:"weekDelta"`
	ThisMonth  int64   `json:"thisMonth"`
	LastMonth  int64   `json:"lastMonth"`
	MonthDelta float64 `json:"monthDelta"`
}

// DailyAmount is one bucket of the month view series.
type DailyAmount struct {
	Day     int   `json:"day"`
	Income  int64 `json:"income"`
	Expense int64 `json:"expense"`
}

// LimitStatus reports today's spending against the configured daily limit.
// Limited is false when no limit is configured, in which case Ratio is 0.
type LimitStatus struct {
	TodayExpense int64   `json:"todayExpense"`
	DailyLimit   int64   `json:"dailyLimit"`
	Ratio        float64 `json:"ratio"`
	Limited      bool    `json:"limited"`
}

// Dashboard is the overview for the current moment.
type Dashboard struct {
	Month    PeriodTotals  `json:"month"`
	Lifetime PeriodTotals  `json:"lifetime"`
	Balance  int64         `json:"balance"`
	Limit    LimitStatus   `json:"limit"`
	Pending  []Transaction `json:"pending"`
	Today    []Transaction `json:"today"`
}

// Statistics is the period view: totals, category split, daily series and
// the week/month comparison.
type Statistics struct {
	Period     Period           `json:"period"`
	Totals     PeriodTotals     `json:"totals"`
	Categories []CategoryAmount `json:"categories"`
	Daily      []DailyAmount    `json:"daily,omitempty"`
	Comparison Comparison       `json:"comparison"`
}
