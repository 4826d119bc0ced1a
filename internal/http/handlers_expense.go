package http

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"coppia/internal/core"
	"coppia/internal/storage"
)

type expenseView struct {
	ID               string               `json:"id"`
	OwnerID          string               `json:"owner_id"`
	CoupleID         string               `json:"couple_id,omitempty"`
	Title            string               `json:"title"`
	Description      string               `json:"description,omitempty"`
	Amount           string               `json:"amount"`
	Category         core.ExpenseCategory `json:"category"`
	ExpenseDate      time.Time            `json:"expense_date"`
	PaymentMethod    core.PaymentMethod   `json:"payment_method"`
	IsShared         bool                 `json:"is_shared"`
	SharedPercentage float64              `json:"shared_percentage,omitempty"`
	CreatedAt        time.Time            `json:"created_at"`
}

func toExpenseView(e *core.Expense) expenseView {
	return expenseView{
		ID:               e.ID,
		OwnerID:          e.OwnerID,
		CoupleID:         e.CoupleID,
		Title:            e.Title,
		Description:      e.Description,
		Amount:           e.Amount.String(),
		Category:         e.Category,
		ExpenseDate:      e.ExpenseDate,
		PaymentMethod:    e.PaymentMethod,
		IsShared:         e.IsShared,
		SharedPercentage: e.SharedPercentage.Float64(),
		CreatedAt:        e.CreatedAt,
	}
}

type expenseRequest struct {
	Title            string               `json:"title"`
	Description      string               `json:"description,omitempty"`
	Amount           string               `json:"amount"`
	Category         core.ExpenseCategory `json:"category"`
	ExpenseDate      *time.Time           `json:"expense_date,omitempty"`
	PaymentMethod    core.PaymentMethod   `json:"payment_method"`
	IsShared         bool                 `json:"is_shared,omitempty"`
	SharedPercentage *float64             `json:"shared_percentage,omitempty"`
}

func (s *Server) handleCreateExpense(w http.ResponseWriter, r *http.Request) {
	var req expenseRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	cents, err := core.ParseDecimalToCents(req.Amount)
	if err != nil {
		writeError(w, r, err)
		return
	}
	e := &core.Expense{
		OwnerID:       userID(r),
		Title:         req.Title,
		Description:   req.Description,
		Amount:        core.Money{Cents: cents},
		Category:      req.Category,
		PaymentMethod: req.PaymentMethod,
		IsShared:      req.IsShared,
	}
	if req.ExpenseDate != nil {
		e.ExpenseDate = *req.ExpenseDate
	}
	if req.IsShared {
		// Default to an even split when the share is omitted.
		e.SharedPercentage = core.HundredPercent / 2
		if req.SharedPercentage != nil {
			pct, err := core.PercentFromFloat(*req.SharedPercentage)
			if err != nil {
				writeError(w, r, err)
				return
			}
			e.SharedPercentage = pct
		}
	}

	created, err := s.expenses.Create(r.Context(), e)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, toExpenseView(created))
}

// parseExpenseFilter reads the list query parameters shared by the personal
// and couple listings.
func parseExpenseFilter(r *http.Request) storage.ExpenseFilter {
	q := r.URL.Query()
	f := storage.ExpenseFilter{
		Category: core.ExpenseCategory(q.Get("category")),
	}
	if v := q.Get("from"); v != "" {
		if t, err := time.Parse(time.RFC3339, v); err == nil {
			f.From = t
		}
	}
	if v := q.Get("to"); v != "" {
		if t, err := time.Parse(time.RFC3339, v); err == nil {
			f.To = t
		}
	}
	return f
}

func writeExpenseList(w http.ResponseWriter, expenses []core.Expense) {
	views := make([]expenseView, 0, len(expenses))
	for i := range expenses {
		views = append(views, toExpenseView(&expenses[i]))
	}
	writeJSON(w, http.StatusOK, views)
}

func (s *Server) handleListExpenses(w http.ResponseWriter, r *http.Request) {
	expenses, err := s.expenses.List(r.Context(), userID(r), parseExpenseFilter(r))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeExpenseList(w, expenses)
}

func (s *Server) handleListSharedExpenses(w http.ResponseWriter, r *http.Request) {
	expenses, err := s.expenses.ListShared(r.Context(), userID(r), parseExpenseFilter(r))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeExpenseList(w, expenses)
}

func (s *Server) handleGetExpense(w http.ResponseWriter, r *http.Request) {
	e, err := s.expenses.Get(r.Context(), userID(r), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toExpenseView(e))
}

type expensePatchRequest struct {
	Title            *string               `json:"title,omitempty"`
	Description      *string               `json:"description,omitempty"`
	Amount           *string               `json:"amount,omitempty"`
	Category         *core.ExpenseCategory `json:"category,omitempty"`
	ExpenseDate      *time.Time            `json:"expense_date,omitempty"`
	PaymentMethod    *core.PaymentMethod   `json:"payment_method,omitempty"`
	IsShared         *bool                 `json:"is_shared,omitempty"`
	SharedPercentage *float64              `json:"shared_percentage,omitempty"`
}

func (s *Server) handlePatchExpense(w http.ResponseWriter, r *http.Request) {
	var req expensePatchRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	patch := core.ExpensePatch{
		Title:         req.Title,
		Description:   req.Description,
		Category:      req.Category,
		ExpenseDate:   req.ExpenseDate,
		PaymentMethod: req.PaymentMethod,
		IsShared:      req.IsShared,
	}
	if req.Amount != nil {
		cents, err := core.ParseDecimalToCents(*req.Amount)
		if err != nil {
			writeError(w, r, err)
			return
		}
		amount := core.Money{Cents: cents}
		patch.Amount = &amount
	}
	if req.SharedPercentage != nil {
		pct, err := core.PercentFromFloat(*req.SharedPercentage)
		if err != nil {
			writeError(w, r, err)
			return
		}
		patch.SharedPercentage = &pct
	}

	e, err := s.expenses.Patch(r.Context(), userID(r), chi.URLParam(r, "id"), patch)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toExpenseView(e))
}

func (s *Server) handleDeleteExpense(w http.ResponseWriter, r *http.Request) {
	if err := s.expenses.Delete(r.Context(), userID(r), chi.URLParam(r, "id")); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusNoContent, nil)
}

func (s *Server) handleExpenseSplit(w http.ResponseWriter, r *http.Request) {
	shared, personal, err := s.expenses.Split(r.Context(), userID(r), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"shared_amount":   shared.String(),
		"personal_amount": personal.String(),
	})
}
