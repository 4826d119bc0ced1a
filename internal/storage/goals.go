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

// GoalFilter narrows ListGoals. Zero values mean "no constraint".
type GoalFilter struct {
	OwnerID  string
	CoupleID string
	Status   core.GoalStatus
}

// CreateGoal inserts a goal, assigning ID and CreatedAt when unset.
func (r *SQLiteRepository) CreateGoal(ctx context.Context, g *core.Goal) error {
	if g.ID == "" {
		g.ID = newID()
	}
	if g.CreatedAt.IsZero() {
		g.CreatedAt = time.Now().UTC()
	}
	settings, milestones, err := marshalGoalBlobs(g)
	if err != nil {
		return err
	}
	_, err = r.db.ExecContext(ctx,
		`INSERT INTO goals (id, owner_id, couple_id, title, description, target_cents,
		   current_cents, status, priority, contribution_method, contribution_settings,
		   milestones, target_date, completed_at, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		g.ID, g.OwnerID, nullString(g.CoupleID), g.Title, g.Description,
		g.TargetAmount.Cents, g.CurrentAmount.Cents, string(g.Status),
		string(g.Priority), string(g.ContributionMethod), settings, milestones,
		nullTime(g.TargetDate), nullTime(g.CompletedAt), g.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert goal: %w", err)
	}
	return nil
}

// GetGoal fetches a goal by ID.
func (r *SQLiteRepository) GetGoal(ctx context.Context, id string) (*core.Goal, error) {
	return scanGoal(r.db.QueryRowContext(ctx, goalSelect+` WHERE id = ?`, id))
}

// ListGoals returns goals matching the filter, urgent priorities first,
// then newest first.
func (r *SQLiteRepository) ListGoals(ctx context.Context, f GoalFilter) ([]core.Goal, error) {
	query := goalSelect + ` WHERE 1=1`
	var args []any
	if f.OwnerID != "" {
		query += ` AND owner_id = ?`
		args = append(args, f.OwnerID)
	}
	if f.CoupleID != "" {
		query += ` AND couple_id = ?`
		args = append(args, f.CoupleID)
	}
	if f.Status != "" {
		query += ` AND status = ?`
		args = append(args, string(f.Status))
	}
	query += ` ORDER BY CASE priority
		WHEN 'urgent' THEN 0 WHEN 'high' THEN 1 WHEN 'medium' THEN 2 ELSE 3 END,
		created_at DESC`

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query goals: %w", err)
	}
	defer rows.Close()

	var goals []core.Goal
	for rows.Next() {
		g, err := scanGoal(rows)
		if err != nil {
			return nil, err
		}
		goals = append(goals, *g)
	}
	return goals, rows.Err()
}

// UpdateGoalMeta persists the patchable fields. Status and amounts are
// written only through the guarded paths below.
func (r *SQLiteRepository) UpdateGoalMeta(ctx context.Context, g *core.Goal) error {
	settings, milestones, err := marshalGoalBlobs(g)
	if err != nil {
		return err
	}
	res, err := r.db.ExecContext(ctx,
		`UPDATE goals SET title = ?, description = ?, target_cents = ?, priority = ?,
		   contribution_method = ?, contribution_settings = ?, milestones = ?, target_date = ?
		 WHERE id = ?`,
		g.Title, g.Description, g.TargetAmount.Cents, string(g.Priority),
		string(g.ContributionMethod), settings, milestones, nullTime(g.TargetDate), g.ID,
	)
	if err != nil {
		return fmt.Errorf("update goal: %w", err)
	}
	if n, _ := res.RowsAffected(); n != 1 {
		return core.ErrGoalNotFound
	}
	return nil
}

// TransitionGoalStatus writes a status change guarded on the status the
// caller observed. A concurrent transition makes the guard miss and the
// caller gets ErrStale to re-read and retry.
func (r *SQLiteRepository) TransitionGoalStatus(ctx context.Context, goalID string, from, to core.GoalStatus) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE goals SET status = ? WHERE id = ? AND status = ?`,
		string(to), goalID, string(from))
	if err != nil {
		return fmt.Errorf("transition goal: %w", err)
	}
	if n, _ := res.RowsAffected(); n != 1 {
		return ErrStale
	}
	return nil
}

// RecordContribution appends a ledger event and writes the recomputed goal
// state in one transaction. The goal UPDATE is guarded on the balance the
// caller read, so of two concurrent writers exactly one commits and the
// other gets ErrStale.
func (r *SQLiteRepository) RecordContribution(ctx context.Context, g *core.Goal, ev *core.ContributionEvent, expectedCents int64) error {
	if ev.ID == "" {
		ev.ID = newID()
	}
	if ev.CreatedAt.IsZero() {
		ev.CreatedAt = time.Now().UTC()
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	settings, milestones, err := marshalGoalBlobs(g)
	if err != nil {
		return err
	}
	res, err := tx.ExecContext(ctx,
		`UPDATE goals SET current_cents = ?, status = ?, milestones = ?,
		   contribution_settings = ?, completed_at = ?
		 WHERE id = ? AND current_cents = ?`,
		g.CurrentAmount.Cents, string(g.Status), milestones, settings,
		nullTime(g.CompletedAt), g.ID, expectedCents,
	)
	if err != nil {
		return fmt.Errorf("update goal balance: %w", err)
	}
	if n, _ := res.RowsAffected(); n != 1 {
		return ErrStale
	}

	_, err = tx.ExecContext(ctx,
		`INSERT INTO contributions (id, goal_id, user_id, kind, amount_cents, note, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		ev.ID, ev.GoalID, ev.UserID, string(ev.Kind), ev.Amount.Cents, ev.Note, ev.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert contribution: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit contribution: %w", err)
	}
	return nil
}

// ListContributions returns a goal's ledger, newest first.
func (r *SQLiteRepository) ListContributions(ctx context.Context, goalID string, limit int) ([]core.ContributionEvent, error) {
	query := `SELECT id, goal_id, user_id, kind, amount_cents, note, created_at
		FROM contributions WHERE goal_id = ? ORDER BY created_at DESC, id DESC`
	args := []any{goalID}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query contributions: %w", err)
	}
	defer rows.Close()

	var events []core.ContributionEvent
	for rows.Next() {
		var (
			ev   core.ContributionEvent
			kind string
		)
		if err := rows.Scan(&ev.ID, &ev.GoalID, &ev.UserID, &kind,
			&ev.Amount.Cents, &ev.Note, &ev.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan contribution: %w", err)
		}
		ev.Kind = core.ContributionKind(kind)
		events = append(events, ev)
	}
	return events, rows.Err()
}

const goalSelect = `SELECT id, owner_id, COALESCE(couple_id, ''), title, description,
	target_cents, current_cents, status, priority, contribution_method,
	contribution_settings, milestones, target_date, completed_at, created_at
	FROM goals`

func scanGoal(row rowScanner) (*core.Goal, error) {
	var (
		g          core.Goal
		status     string
		priority   string
		method     string
		settings   string
		milestones string
		targetDate sql.NullTime
		completed  sql.NullTime
	)
	err := row.Scan(&g.ID, &g.OwnerID, &g.CoupleID, &g.Title, &g.Description,
		&g.TargetAmount.Cents, &g.CurrentAmount.Cents, &status, &priority,
		&method, &settings, &milestones, &targetDate, &completed, &g.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, core.ErrGoalNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan goal: %w", err)
	}
	g.Status = core.GoalStatus(status)
	g.Priority = core.GoalPriority(priority)
	g.ContributionMethod = core.ContributionMethod(method)
	if targetDate.Valid {
		g.TargetDate = targetDate.Time
	}
	if completed.Valid {
		g.CompletedAt = completed.Time
	}
	if err := json.Unmarshal([]byte(settings), &g.ContributionSettings); err != nil {
		return nil, fmt.Errorf("unmarshal contribution settings: %w", err)
	}
	if err := json.Unmarshal([]byte(milestones), &g.Milestones); err != nil {
		return nil, fmt.Errorf("unmarshal milestones: %w", err)
	}
	return &g, nil
}

func marshalGoalBlobs(g *core.Goal) (settings, milestones string, err error) {
	s, err := json.Marshal(g.ContributionSettings)
	if err != nil {
		return "", "", fmt.Errorf("marshal contribution settings: %w", err)
	}
	m, err := json.Marshal(g.Milestones)
	if err != nil {
		return "", "", fmt.Errorf("marshal milestones: %w", err)
	}
	return string(s), string(m), nil
}
