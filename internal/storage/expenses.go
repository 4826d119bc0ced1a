package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"coppia/internal/core"
)

// ExpenseFilter narrows ListExpenses. Zero values mean "no constraint".
type ExpenseFilter struct {
	OwnerID    string
	CoupleID   string
	Category   core.ExpenseCategory
	SharedOnly bool
	From       time.Time
	To         time.Time
	Limit      int
}

// CreateExpense inserts an expense, assigning ID and CreatedAt when unset.
func (r *SQLiteRepository) CreateExpense(ctx context.Context, e *core.Expense) error {
	if e.ID == "" {
		e.ID = newID()
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now().UTC()
	}
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO expenses (id, owner_id, couple_id, title, description, amount_cents,
		   category, expense_date, payment_method, is_shared, shared_percentage_bps, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		e.ID, e.OwnerID, nullString(e.CoupleID), e.Title, e.Description, e.Amount.Cents,
		string(e.Category), e.ExpenseDate, string(e.PaymentMethod),
		boolToInt(e.IsShared), int64(e.SharedPercentage), e.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert expense: %w", err)
	}
	return nil
}

// GetExpense fetches an expense by ID.
func (r *SQLiteRepository) GetExpense(ctx context.Context, id string) (*core.Expense, error) {
	return scanExpense(r.db.QueryRowContext(ctx, expenseSelect+` WHERE id = ?`, id))
}

// ListExpenses returns expenses matching the filter, newest expense date
// first.
func (r *SQLiteRepository) ListExpenses(ctx context.Context, f ExpenseFilter) ([]core.Expense, error) {
	query := expenseSelect + ` WHERE 1=1`
	var args []any
	if f.OwnerID != "" {
		query += ` AND owner_id = ?`
		args = append(args, f.OwnerID)
	}
	if f.CoupleID != "" {
		query += ` AND couple_id = ?`
		args = append(args, f.CoupleID)
	}
	if f.Category != "" {
		query += ` AND category = ?`
		args = append(args, string(f.Category))
	}
	if f.SharedOnly {
		query += ` AND is_shared = 1`
	}
	if !f.From.IsZero() {
		query += ` AND expense_date >= ?`
		args = append(args, f.From)
	}
	if !f.To.IsZero() {
		query += ` AND expense_date < ?`
		args = append(args, f.To)
	}
	query += ` ORDER BY expense_date DESC, created_at DESC`
	if f.Limit > 0 {
		query += ` LIMIT ?`
		args = append(args, f.Limit)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query expenses: %w", err)
	}
	defer rows.Close()

	var expenses []core.Expense
	for rows.Next() {
		e, err := scanExpense(rows)
		if err != nil {
			return nil, err
		}
		expenses = append(expenses, *e)
	}
	return expenses, rows.Err()
}

// UpdateExpense persists the mutable fields of an expense.
func (r *SQLiteRepository) UpdateExpense(ctx context.Context, e *core.Expense) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE expenses SET title = ?, description = ?, amount_cents = ?, category = ?,
		   expense_date = ?, payment_method = ?, is_shared = ?, shared_percentage_bps = ?
		 WHERE id = ?`,
		e.Title, e.Description, e.Amount.Cents, string(e.Category),
		e.ExpenseDate, string(e.PaymentMethod), boolToInt(e.IsShared),
		int64(e.SharedPercentage), e.ID,
	)
	if err != nil {
		return fmt.Errorf("update expense: %w", err)
	}
	if n, _ := res.RowsAffected(); n != 1 {
		return core.ErrExpenseNotFound
	}
	return nil
}

// SetExpenseCouple rewrites the couple linkage; empty unlinks.
func (r *SQLiteRepository) SetExpenseCouple(ctx context.Context, id, coupleID string) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE expenses SET couple_id = ? WHERE id = ?`, nullString(coupleID), id)
	if err != nil {
		return fmt.Errorf("set expense couple: %w", err)
	}
	if n, _ := res.RowsAffected(); n != 1 {
		return core.ErrExpenseNotFound
	}
	return nil
}

// DeleteExpense removes an expense by ID.
func (r *SQLiteRepository) DeleteExpense(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM expenses WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete expense: %w", err)
	}
	if n, _ := res.RowsAffected(); n != 1 {
		return core.ErrExpenseNotFound
	}
	return nil
}

const expenseSelect = `SELECT id, owner_id, COALESCE(couple_id, ''), title, description,
	amount_cents, category, expense_date, payment_method, is_shared,
	shared_percentage_bps, created_at
	FROM expenses`

func scanExpense(row rowScanner) (*core.Expense, error) {
	var (
		e        core.Expense
		category string
		method   string
		shared   int
		bps      int64
	)
	err := row.Scan(&e.ID, &e.OwnerID, &e.CoupleID, &e.Title, &e.Description,
		&e.Amount.Cents, &category, &e.ExpenseDate, &method, &shared, &bps, &e.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, core.ErrExpenseNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan expense: %w", err)
	}
	e.Category = core.ExpenseCategory(category)
	e.PaymentMethod = core.PaymentMethod(method)
	e.IsShared = shared != 0
	e.SharedPercentage = core.Percent(bps)
	return &e, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
