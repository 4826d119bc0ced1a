package services

import (
	"context"
	"errors"
	"time"

	"coppia/internal/core"
	"coppia/internal/storage"
)

// ReportService produces the read models: category totals, monthly trends,
// forecasts, budget usage. Everything is derived on demand from the
// expense rows; nothing is cached or persisted.
type ReportService struct {
	storage *storage.SQLiteRepository
	now     func() time.Time
}

func NewReportService(storage *storage.SQLiteRepository) *ReportService {
	return &ReportService{storage: storage, now: time.Now}
}

// ReportWindow defaults to the trailing twelve months when From is zero.
type ReportWindow struct {
	From time.Time
	To   time.Time
}

func (s *ReportService) resolve(w ReportWindow) (time.Time, time.Time) {
	to := w.To
	if to.IsZero() {
		to = s.now()
	}
	from := w.From
	if from.IsZero() {
		from = to.AddDate(-1, 0, 0)
	}
	return from, to
}

// CategoryTotals sums the user's own spending per category, largest first.
func (s *ReportService) CategoryTotals(ctx context.Context, userID string, w ReportWindow) ([]core.CategoryTotal, error) {
	from, to := s.resolve(w)
	return s.storage.TotalsByCategory(ctx, storage.ReportScope{OwnerID: userID}, from, to)
}

// CoupleCategoryTotals sums the couple's shared spending per category.
func (s *ReportService) CoupleCategoryTotals(ctx context.Context, userID string, w ReportWindow) ([]core.CategoryTotal, error) {
	scope, err := s.coupleScope(ctx, userID)
	if err != nil {
		return nil, err
	}
	from, to := s.resolve(w)
	return s.storage.TotalsByCategory(ctx, scope, from, to)
}

// MonthlyTrend buckets the user's own spending by month, oldest first.
func (s *ReportService) MonthlyTrend(ctx context.Context, userID string, w ReportWindow) ([]core.TrendBucket, error) {
	from, to := s.resolve(w)
	return s.storage.MonthlyTrend(ctx, storage.ReportScope{OwnerID: userID}, from, to)
}

// CoupleMonthlyTrend buckets the couple's shared spending by month.
func (s *ReportService) CoupleMonthlyTrend(ctx context.Context, userID string, w ReportWindow) ([]core.TrendBucket, error) {
	scope, err := s.coupleScope(ctx, userID)
	if err != nil {
		return nil, err
	}
	from, to := s.resolve(w)
	return s.storage.MonthlyTrend(ctx, scope, from, to)
}

// Forecast projects the user's spending for the coming months from the
// trailing trend. Nil when under three months of history exist.
func (s *ReportService) Forecast(ctx context.Context, userID string, periods int) ([]core.ForecastPoint, error) {
	now := s.now()
	trend, err := s.storage.MonthlyTrend(ctx,
		storage.ReportScope{OwnerID: userID}, now.AddDate(-1, 0, 0), now)
	if err != nil {
		return nil, err
	}
	return core.Forecast(trend, now, periods), nil
}

func (s *ReportService) coupleScope(ctx context.Context, userID string) (storage.ReportScope, error) {
	couple, err := s.storage.FindActiveCoupleOf(ctx, userID)
	if err != nil {
		if errors.Is(err, core.ErrCoupleNotFound) {
			return storage.ReportScope{}, core.ErrNotInCouple
		}
		return storage.ReportScope{}, err
	}
	return storage.ReportScope{CoupleID: couple.ID}, nil
}
