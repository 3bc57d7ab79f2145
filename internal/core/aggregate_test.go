package core

import (
	"math"
	"testing"
	"time"
)

func tx(id string, typ TxType, amount int64, date string, category string) Transaction {
	d, err := ParseDate(date)
	if err != nil {
		panic(err)
	}
	return Transaction{ID: ID(id), Type: typ, Amount: amount, Date: d, Category: category, Description: id, Status: Confirmed}
}

// Wednesday 2024-03-13, local afternoon.
var now = time.Date(2024, 3, 13, 15, 0, 0, 0, time.FixedZone("ICT", 7*3600))

func TestBalanceScenario(t *testing.T) {
	txs := []Transaction{
		tx("1", Income, 1_000_000, "2024-01-01", "Lương"),
		tx("2", Expense, 200_000, "2024-01-02", "Ăn uống"),
	}
	if got := Balance(Settings{}, txs); got != 800_000 {
		t.Fatalf("expected 800000, got %d", got)
	}
}

func TestBalanceIgnoresPending(t *testing.T) {
	p := tx("p", Expense, 999, "2024-01-03", "Khác")
	p.Status = Pending
	txs := []Transaction{tx("1", Income, 500, "2024-01-01", "Lương"), p}
	if got := Balance(Settings{InitialBalance: 100}, txs); got != 600 {
		t.Fatalf("expected 600, got %d", got)
	}
}

func TestCorrectBalanceRoundTrip(t *testing.T) {
	txs := []Transaction{
		tx("1", Income, 1_234_567, "2024-01-01", "Lương"),
		tx("2", Expense, 765_432, "2024-02-02", "Mua sắm"),
		tx("3", Expense, 1, "2024-02-03", "Khác"),
	}
	for _, target := range []int64{0, 5_000_000, -250_000, 1} {
		s := CorrectBalance(Settings{InitialBalance: 42}, txs, target)
		if got := Balance(s, txs); got != target {
			t.Fatalf("target %d: got %d", target, got)
		}
		again := CorrectBalance(s, txs, target)
		if again.InitialBalance != s.InitialBalance {
			t.Fatalf("second correction should be a no-op: %d vs %d", again.InitialBalance, s.InitialBalance)
		}
	}
}

func TestTotalsByPeriod(t *testing.T) {
	txs := []Transaction{
		tx("1", Income, 100, "2024-03-01", "Lương"),
		tx("2", Expense, 30, "2024-03-13", "Ăn uống"),
		tx("3", Expense, 20, "2024-02-28", "Ăn uống"),
		tx("4", Expense, 10, "2023-03-10", "Ăn uống"),
	}
	cases := []struct {
		period Period
		want   PeriodTotals
	}{
		{PeriodMonth, PeriodTotals{Income: 100, Expense: 30}},
		{PeriodYear, PeriodTotals{Income: 100, Expense: 50}},
		{PeriodAll, PeriodTotals{Income: 100, Expense: 60}},
	}
	for _, tc := range cases {
		if got := Totals(txs, tc.period, now); got != tc.want {
			t.Fatalf("%s: expected %+v, got %+v", tc.period, tc.want, got)
		}
	}
}

func TestWeekStartIsSunday(t *testing.T) {
	if got := WeekStart(now).String(); got != "2024-03-10" {
		t.Fatalf("expected 2024-03-10, got %s", got)
	}
	sunday := time.Date(2024, 3, 10, 8, 0, 0, 0, time.UTC)
	if got := WeekStart(sunday).String(); got != "2024-03-10" {
		t.Fatalf("sunday should start its own week, got %s", got)
	}
}

func TestLimit(t *testing.T) {
	txs := []Transaction{
		tx("1", Expense, 300_000, "2024-03-13", "Ăn uống"),
		tx("2", Expense, 400_000, "2024-03-13", "Mua sắm"),
		tx("3", Income, 1_000_000, "2024-03-13", "Lương"),
		tx("4", Expense, 50_000, "2024-03-12", "Ăn uống"),
	}

	st := Limit(txs, 500_000, now)
	if st.TodayExpense != 700_000 || st.Ratio != 1 || !st.Limited {
		t.Fatalf("expected clamped ratio, got %+v", st)
	}

	st = Limit(txs, 1_400_000, now)
	if st.Ratio != 0.5 {
		t.Fatalf("expected 0.5, got %v", st.Ratio)
	}

	st = Limit(txs, 0, now)
	if st.Limited || st.Ratio != 0 || math.IsNaN(st.Ratio) {
		t.Fatalf("zero limit should report no limit, got %+v", st)
	}
}

func TestCategoryBreakdown(t *testing.T) {
	txs := []Transaction{
		tx("1", Expense, 50, "2024-03-01", "Di chuyển"),
		tx("2", Expense, 100, "2024-03-01", "Ăn uống"),
		tx("3", Expense, 50, "2024-03-02", "Giải trí"),
		tx("4", Income, 500, "2024-03-02", "Lương"),
		tx("5", Expense, 25, "2024-03-03", "Di chuyển"),
		tx("6", Income, 120, "2024-03-03", "Thưởng"),
	}
	held := tx("7", Expense, 900, "2024-03-03", "Mua sắm")
	held.Status = Pending
	txs = append(txs, held)

	got := CategoryBreakdown(txs, Expense)
	want := []string{"Ăn uống", "Di chuyển", "Giải trí"}
	if len(got) != len(want) {
		t.Fatalf("expected %d categories, got %+v", len(want), got)
	}
	var sum int64
	for i, c := range got {
		if c.Name != want[i] {
			t.Fatalf("position %d: expected %s, got %s", i, want[i], c.Name)
		}
		sum += c.Amount
	}
	totals := Totals(txs, PeriodAll, now)
	if sum != totals.Expense {
		t.Fatalf("breakdown sum %d does not match expense total %d", sum, totals.Expense)
	}

	var incomeSum int64
	for _, c := range CategoryBreakdown(txs, Income) {
		incomeSum += c.Amount
	}
	if incomeSum != totals.Income {
		t.Fatalf("breakdown sum %d does not match income total %d", incomeSum, totals.Income)
	}
}

func TestCategoryBreakdownTieKeepsFirstSeen(t *testing.T) {
	txs := []Transaction{
		tx("1", Expense, 10, "2024-03-01", "B"),
		tx("2", Expense, 10, "2024-03-01", "A"),
		tx("3", Expense, 10, "2024-03-01", "C"),
	}
	got := CategoryBreakdown(txs, Expense)
	if got[0].Name != "B" || got[1].Name != "A" || got[2].Name != "C" {
		t.Fatalf("unexpected tie order: %+v", got)
	}
	if got[0].Icon != CategoryIcon("Khác") {
		t.Fatalf("free-text category should use the other icon")
	}
}

func TestPercentChange(t *testing.T) {
	cases := []struct {
		current, previous int64
		want              float64
	}{
		{150, 100, 50},
		{50, 100, -50},
		{100, 0, DeltaSentinel},
		{0, 0, DeltaSentinel},
	}
	for _, tc := range cases {
		got := PercentChange(tc.current, tc.previous)
		if got != tc.want || math.IsInf(got, 0) || math.IsNaN(got) {
			t.Fatalf("PercentChange(%d,%d) = %v, want %v", tc.current, tc.previous, got, tc.want)
		}
	}
}

func TestCompare(t *testing.T) {
	txs := []Transaction{
		tx("1", Expense, 100, "2024-03-10", "A"), // this week (Sunday)
		tx("2", Expense, 50, "2024-03-09", "A"),  // last week (Saturday)
		tx("3", Expense, 50, "2024-03-03", "A"),  // last week (Sunday)
		tx("4", Expense, 70, "2024-03-02", "A"),  // two weeks ago
		tx("5", Expense, 200, "2024-02-15", "A"), // last month
		tx("6", Income, 999, "2024-03-11", "A"),
	}
	c := Compare(txs, now)
	if c.ThisWeek != 100 || c.LastWeek != 100 || c.WeekDelta != 0 {
		t.Fatalf("unexpected week comparison: %+v", c)
	}
	if c.ThisMonth != 270 || c.LastMonth != 200 || c.MonthDelta != 35 {
		t.Fatalf("unexpected month comparison: %+v", c)
	}
}

func TestCompareJanuaryRollsBackToDecember(t *testing.T) {
	jan := time.Date(2025, 1, 5, 12, 0, 0, 0, time.UTC)
	txs := []Transaction{tx("1", Expense, 40, "2024-12-20", "A")}
	c := Compare(txs, jan)
	if c.LastMonth != 40 || c.ThisMonth != 0 {
		t.Fatalf("expected december total, got %+v", c)
	}
}

func TestDailySeries(t *testing.T) {
	txs := []Transaction{
		tx("1", Expense, 10, "2024-03-01", "A"),
		tx("2", Income, 20, "2024-03-31", "B"),
		tx("3", Expense, 5, "2024-02-29", "A"),
	}
	got := DailySeries(txs, now)
	if len(got) != 31 {
		t.Fatalf("expected 31 buckets, got %d", len(got))
	}
	if got[0].Expense != 10 || got[30].Income != 20 || got[30].Day != 31 {
		t.Fatalf("unexpected buckets: first=%+v last=%+v", got[0], got[30])
	}
}

func TestSummarize(t *testing.T) {
	p := tx("p", Expense, 0, "2024-03-13", "Khác")
	p.Status = Pending
	txs := []Transaction{
		tx("1", Income, 1000, "2024-03-01", "Lương"),
		tx("2", Expense, 100, "2024-03-13", "Ăn uống"),
		tx("3", Expense, 50, "2024-03-13", "Di chuyển"),
		p,
	}
	d := Summarize(Settings{InitialBalance: 10, DailyLimit: 1000}, txs, now)
	if d.Balance != 860 || d.Month.Expense != 150 || d.Limit.TodayExpense != 150 {
		t.Fatalf("unexpected dashboard: %+v", d)
	}
	if len(d.Pending) != 1 || len(d.Today) != 2 || d.Today[0].ID != "3" {
		t.Fatalf("unexpected pending/today lists: %+v", d)
	}
}

func TestStatsDailyOnlyForMonth(t *testing.T) {
	txs := []Transaction{tx("1", Expense, 10, "2024-03-01", "A")}
	if st := Stats(txs, PeriodYear, Expense, now); st.Daily != nil {
		t.Fatalf("year view should not carry a daily series")
	}
	if st := Stats(txs, PeriodMonth, Expense, now); len(st.Daily) != 31 {
		t.Fatalf("month view should carry a daily series")
	}
}
