package http

import (
	"net/http"
	"strconv"
	"time"

	"coppia/internal/core"
	"coppia/internal/services"
)

type categoryTotalView struct {
	Category core.ExpenseCategory `json:"category"`
	Total    string               `json:"total"`
	Count    int                  `json:"count"`
}

type trendBucketView struct {
	Month   string `json:"month"`
	Total   string `json:"total"`
	Average string `json:"average"`
	Count   int    `json:"count"`
}

type forecastPointView struct {
	Month      string `json:"month"`
	Predicted  string `json:"predicted"`
	Confidence string `json:"confidence"`
}

func parseReportWindow(r *http.Request) services.ReportWindow {
	q := r.URL.Query()
	var w services.ReportWindow
	if v := q.Get("from"); v != "" {
		if t, err := time.Parse(time.RFC3339, v); err == nil {
			w.From = t
		}
	}
	if v := q.Get("to"); v != "" {
		if t, err := time.Parse(time.RFC3339, v); err == nil {
			w.To = t
		}
	}
	return w
}

func writeCategoryTotals(w http.ResponseWriter, totals []core.CategoryTotal) {
	views := make([]categoryTotalView, 0, len(totals))
	for _, t := range totals {
		views = append(views, categoryTotalView{
			Category: t.Category,
			Total:    t.Total.String(),
			Count:    t.Count,
		})
	}
	writeJSON(w, http.StatusOK, views)
}

func writeTrend(w http.ResponseWriter, trend []core.TrendBucket) {
	views := make([]trendBucketView, 0, len(trend))
	for _, b := range trend {
		views = append(views, trendBucketView{
			Month:   b.Month,
			Total:   b.Total.String(),
			Average: b.Average.String(),
			Count:   b.Count,
		})
	}
	writeJSON(w, http.StatusOK, views)
}

func (s *Server) handleCategoryTotals(w http.ResponseWriter, r *http.Request) {
	totals, err := s.reports.CategoryTotals(r.Context(), userID(r), parseReportWindow(r))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeCategoryTotals(w, totals)
}

func (s *Server) handleCoupleCategoryTotals(w http.ResponseWriter, r *http.Request) {
	totals, err := s.reports.CoupleCategoryTotals(r.Context(), userID(r), parseReportWindow(r))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeCategoryTotals(w, totals)
}

func (s *Server) handleMonthlyTrend(w http.ResponseWriter, r *http.Request) {
	trend, err := s.reports.MonthlyTrend(r.Context(), userID(r), parseReportWindow(r))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeTrend(w, trend)
}

func (s *Server) handleCoupleMonthlyTrend(w http.ResponseWriter, r *http.Request) {
	trend, err := s.reports.CoupleMonthlyTrend(r.Context(), userID(r), parseReportWindow(r))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeTrend(w, trend)
}

func (s *Server) handleForecast(w http.ResponseWriter, r *http.Request) {
	periods := 3
	if v := r.URL.Query().Get("periods"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 && n <= 12 {
			periods = n
		}
	}
	points, err := s.reports.Forecast(r.Context(), userID(r), periods)
	if err != nil {
		writeError(w, r, err)
		return
	}
	views := make([]forecastPointView, 0, len(points))
	for _, p := range points {
		views = append(views, forecastPointView{
			Month:      p.Month,
			Predicted:  p.Predicted.String(),
			Confidence: p.Confidence,
		})
	}
	writeJSON(w, http.StatusOK, views)
}
