package storage

import (
	"context"
	"fmt"
	"sort"
	"time"

	"coppia/internal/core"
)

// ReportScope selects whose expenses feed an aggregation. Exactly one of
// OwnerID or CoupleID should be set.
type ReportScope struct {
	OwnerID  string
	CoupleID string
}

func (s ReportScope) clause() (string, any) {
	if s.CoupleID != "" {
		return `couple_id = ? AND is_shared = 1`, s.CoupleID
	}
	return `owner_id = ?`, s.OwnerID
}

// TotalsByCategory sums full expense amounts per category over [from, to),
// largest total first.
func (r *SQLiteRepository) TotalsByCategory(ctx context.Context, scope ReportScope, from, to time.Time) ([]core.CategoryTotal, error) {
	where, arg := scope.clause()
	rows, err := r.db.QueryContext(ctx,
		`SELECT category, SUM(amount_cents), COUNT(*)
		 FROM expenses
		 WHERE `+where+` AND expense_date >= ? AND expense_date < ?
		 GROUP BY category
		 ORDER BY SUM(amount_cents) DESC`,
		arg, from, to)
	if err != nil {
		return nil, fmt.Errorf("query category totals: %w", err)
	}
	defer rows.Close()

	var totals []core.CategoryTotal
	for rows.Next() {
		var (
			t   core.CategoryTotal
			cat string
		)
		if err := rows.Scan(&cat, &t.Total.Cents, &t.Count); err != nil {
			return nil, fmt.Errorf("scan category total: %w", err)
		}
		t.Category = core.ExpenseCategory(cat)
		totals = append(totals, t)
	}
	return totals, rows.Err()
}

// MonthlyTrend buckets spending by calendar month over [from, to), oldest
// first. Months with no expenses produce no bucket. Bucketing happens in Go
// because the driver's time serialization is not parseable by SQLite's date
// functions.
func (r *SQLiteRepository) MonthlyTrend(ctx context.Context, scope ReportScope, from, to time.Time) ([]core.TrendBucket, error) {
	where, arg := scope.clause()
	rows, err := r.db.QueryContext(ctx,
		`SELECT expense_date, amount_cents
		 FROM expenses
		 WHERE `+where+` AND expense_date >= ? AND expense_date < ?`,
		arg, from, to)
	if err != nil {
		return nil, fmt.Errorf("query monthly trend: %w", err)
	}
	defer rows.Close()

	byMonth := make(map[string]*core.TrendBucket)
	for rows.Next() {
		var (
			date  time.Time
			cents int64
		)
		if err := rows.Scan(&date, &cents); err != nil {
			return nil, fmt.Errorf("scan trend row: %w", err)
		}
		month := date.UTC().Format("2006-01")
		b, ok := byMonth[month]
		if !ok {
			b = &core.TrendBucket{Month: month}
			byMonth[month] = b
		}
		b.Total.Cents += cents
		b.Count++
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	months := make([]string, 0, len(byMonth))
	for m := range byMonth {
		months = append(months, m)
	}
	sort.Strings(months)

	buckets := make([]core.TrendBucket, 0, len(months))
	for _, m := range months {
		b := byMonth[m]
		if b.Count > 0 {
			b.Average = core.Money{Cents: divRoundCents(b.Total.Cents, int64(b.Count))}
		}
		buckets = append(buckets, *b)
	}
	return buckets, nil
}

// divRoundCents rounds half away from zero. Trend averages are display
// figures, not ledger values.
func divRoundCents(num, den int64) int64 {
	if den == 0 {
		return 0
	}
	half := den / 2
	if num < 0 {
		return (num - half) / den
	}
	return (num + half) / den
}
