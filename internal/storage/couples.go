package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"coppia/internal/core"
)

// CreateCouple inserts a pending couple with its invitation secret.
func (r *SQLiteRepository) CreateCouple(ctx context.Context, c *core.Couple) error {
	if c.ID == "" {
		c.ID = newID()
	}
	if c.CreatedAt.IsZero() {
		c.CreatedAt = time.Now().UTC()
	}
	settings, err := json.Marshal(c.Settings)
	if err != nil {
		return fmt.Errorf("marshal settings: %w", err)
	}
	_, err = r.db.ExecContext(ctx,
		`INSERT INTO couples (id, member_a, member_b, name, status, invitation_token,
		   invitation_expiry, shared_budget_cents, budget_period, settings, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		c.ID, c.MemberA, c.MemberB, c.Name, string(c.Status),
		nullString(c.InvitationToken), nullTime(c.InvitationExpiry),
		c.SharedBudget.Cents, string(c.BudgetPeriod), string(settings), c.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert couple: %w", err)
	}
	return nil
}

// GetCouple fetches a couple by ID.
func (r *SQLiteRepository) GetCouple(ctx context.Context, id string) (*core.Couple, error) {
	return r.scanCouple(r.db.QueryRowContext(ctx, coupleSelect+` WHERE id = ?`, id))
}

// GetCoupleByToken fetches the pending couple matching an invitation token.
// Expiry is not checked here; the lifecycle evaluates it lazily.
func (r *SQLiteRepository) GetCoupleByToken(ctx context.Context, token string) (*core.Couple, error) {
	c, err := r.scanCouple(r.db.QueryRowContext(ctx,
		coupleSelect+` WHERE invitation_token = ? AND status = 'pending'`, token))
	if errors.Is(err, core.ErrCoupleNotFound) {
		return nil, core.ErrInvitationNotFound
	}
	return c, err
}

// FindActiveCoupleOf returns the active couple containing the user, or
// ErrCoupleNotFound.
func (r *SQLiteRepository) FindActiveCoupleOf(ctx context.Context, userID string) (*core.Couple, error) {
	return r.scanCouple(r.db.QueryRowContext(ctx,
		coupleSelect+` WHERE status = 'active' AND (member_a = ? OR member_b = ?)`,
		userID, userID))
}

// PendingInvitationsOf lists pending couples where the user is the invited
// slot, newest first. Lapsed invitations are included; callers filter.
func (r *SQLiteRepository) PendingInvitationsOf(ctx context.Context, userID string) ([]core.Couple, error) {
	rows, err := r.db.QueryContext(ctx,
		coupleSelect+` WHERE status = 'pending' AND member_b = ? ORDER BY created_at DESC`,
		userID)
	if err != nil {
		return nil, fmt.Errorf("query pending invitations: %w", err)
	}
	defer rows.Close()

	var couples []core.Couple
	for rows.Next() {
		c, err := r.scanCoupleRow(rows)
		if err != nil {
			return nil, err
		}
		couples = append(couples, *c)
	}
	return couples, rows.Err()
}

// ActivateCouple flips a pending couple to active and stamps both members'
// couple references in one transaction. The couple-side UPDATE is guarded
// on status so at most one concurrent transition wins; the member-side
// UPDATE is guarded on the members being uncoupled so a member who joined
// another couple meanwhile aborts the whole transition.
func (r *SQLiteRepository) ActivateCouple(ctx context.Context, coupleID string) (*core.Couple, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx,
		`UPDATE couples SET status = 'active', invitation_token = NULL, invitation_expiry = NULL
		 WHERE id = ? AND status = 'pending'`, coupleID)
	if err != nil {
		return nil, fmt.Errorf("activate couple: %w", err)
	}
	if n, _ := res.RowsAffected(); n != 1 {
		return nil, ErrStale
	}

	res, err = tx.ExecContext(ctx,
		`UPDATE users SET couple_id = ?
		 WHERE id IN (SELECT member_a FROM couples WHERE id = ?
		              UNION SELECT member_b FROM couples WHERE id = ?)
		   AND couple_id IS NULL`, coupleID, coupleID, coupleID)
	if err != nil {
		return nil, fmt.Errorf("link members: %w", err)
	}
	// Both-or-neither: rolling back leaves the couple pending.
	if n, _ := res.RowsAffected(); n != 2 {
		return nil, core.ErrAlreadyInCouple
	}

	c, err := r.scanCouple(tx.QueryRowContext(ctx, coupleSelect+` WHERE id = ?`, coupleID))
	if err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit activation: %w", err)
	}
	return c, nil
}

// DissolveCouple clears both members' couple references and deletes the
// record in one transaction. Shared expenses and goals keep their couple
// reference; there is no cascading cleanup.
func (r *SQLiteRepository) DissolveCouple(ctx context.Context, coupleID string) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		`UPDATE users SET couple_id = NULL WHERE couple_id = ?`, coupleID); err != nil {
		return fmt.Errorf("unlink members: %w", err)
	}

	res, err := tx.ExecContext(ctx, `DELETE FROM couples WHERE id = ?`, coupleID)
	if err != nil {
		return fmt.Errorf("delete couple: %w", err)
	}
	if n, _ := res.RowsAffected(); n != 1 {
		return core.ErrCoupleNotFound
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit dissolution: %w", err)
	}
	return nil
}

// UpdateCoupleSettings persists the settings, budget, and period fields.
func (r *SQLiteRepository) UpdateCoupleSettings(ctx context.Context, c *core.Couple) error {
	settings, err := json.Marshal(c.Settings)
	if err != nil {
		return fmt.Errorf("marshal settings: %w", err)
	}
	res, err := r.db.ExecContext(ctx,
		`UPDATE couples SET settings = ?, shared_budget_cents = ?, budget_period = ? WHERE id = ?`,
		string(settings), c.SharedBudget.Cents, string(c.BudgetPeriod), c.ID)
	if err != nil {
		return fmt.Errorf("update couple settings: %w", err)
	}
	if n, _ := res.RowsAffected(); n != 1 {
		return core.ErrCoupleNotFound
	}
	return nil
}

const coupleSelect = `SELECT id, member_a, member_b, name, status,
	COALESCE(invitation_token, ''), invitation_expiry,
	shared_budget_cents, budget_period, settings, created_at
	FROM couples`

type rowScanner interface {
	Scan(dest ...any) error
}

func (r *SQLiteRepository) scanCouple(row *sql.Row) (*core.Couple, error) {
	return r.scanCoupleRow(row)
}

func (r *SQLiteRepository) scanCoupleRow(row rowScanner) (*core.Couple, error) {
	var (
		c        core.Couple
		status   string
		expiry   sql.NullTime
		period   string
		settings string
	)
	err := row.Scan(&c.ID, &c.MemberA, &c.MemberB, &c.Name, &status,
		&c.InvitationToken, &expiry, &c.SharedBudget.Cents, &period, &settings, &c.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, core.ErrCoupleNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan couple: %w", err)
	}
	c.Status = core.CoupleStatus(status)
	c.BudgetPeriod = core.BudgetPeriod(period)
	if expiry.Valid {
		c.InvitationExpiry = expiry.Time
	}
	if err := json.Unmarshal([]byte(settings), &c.Settings); err != nil {
		return nil, fmt.Errorf("unmarshal settings: %w", err)
	}
	return &c, nil
}

func nullString(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func nullTime(t time.Time) any {
	if t.IsZero() {
		return nil
	}
	return t
}
