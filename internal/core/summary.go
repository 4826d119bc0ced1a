package core

import "time"

// Read-model types the aggregator produces. All of them are derived from
// stored rows; none are persisted.

type (
	// CategoryTotal is an amount aggregated by expense category.
	CategoryTotal struct {
		Category ExpenseCategory
		Total    Money
		Count    int
	}

	// TrendBucket is one month of spending. Month is "YYYY-MM".
	TrendBucket struct {
		Month   string
		Total   Money
		Average Money
		Count   int
	}

	// ForecastPoint is a projected month of spending.
	ForecastPoint struct {
		Month      string
		Predicted  Money
		Confidence string
	}

	// BudgetUsage compares period spending against the couple's budget.
	BudgetUsage struct {
		Budget     Money
		Used       Money
		Remaining  Money
		Percentage Percent
		Period     BudgetPeriod
	}
)

// Forecast projects the naive 3-period linear average forward. Returns nil
// when fewer than three trailing buckets exist; confidence is fixed at
// "medium".
func Forecast(trend []TrendBucket, from time.Time, periods int) []ForecastPoint {
	if len(trend) < 3 || periods <= 0 {
		return nil
	}
	last3 := trend[len(trend)-3:]
	var sum int64
	for _, b := range last3 {
		sum += b.Total.Cents
	}
	avg := Money{Cents: divRoundHalfEven(sum, 3)}

	points := make([]ForecastPoint, 0, periods)
	for i := 1; i <= periods; i++ {
		m := from.AddDate(0, i, 0)
		points = append(points, ForecastPoint{
			Month:      m.Format("2006-01"),
			Predicted:  avg,
			Confidence: "medium",
		})
	}
	return points
}

// ComputeBudgetUsage derives budget usage from the period total. A zero
// budget yields zero percentage rather than an error.
func ComputeBudgetUsage(budget, used Money, period BudgetPeriod) BudgetUsage {
	u := BudgetUsage{
		Budget: budget,
		Used:   used,
		Period: period,
	}
	if rem := budget.Cents - used.Cents; rem > 0 {
		u.Remaining = Money{Cents: rem}
	}
	if budget.Cents > 0 {
		u.Percentage = Percent(divRoundHalfEven(used.Cents*int64(HundredPercent), budget.Cents))
	}
	return u
}

// PeriodBounds returns the half-open window [start, end) containing now for
// the given budget period. Weeks start on Monday.
func PeriodBounds(period BudgetPeriod, now time.Time) (time.Time, time.Time) {
	switch period {
	case PeriodWeekly:
		weekday := int(now.Weekday())
		if weekday == 0 {
			weekday = 7
		}
		start := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location()).
			AddDate(0, 0, -(weekday - 1))
		return start, start.AddDate(0, 0, 7)
	case PeriodYearly:
		start := time.Date(now.Year(), 1, 1, 0, 0, 0, 0, now.Location())
		return start, start.AddDate(1, 0, 0)
	default: // monthly
		start := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, now.Location())
		return start, start.AddDate(0, 1, 0)
	}
}
