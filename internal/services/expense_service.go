package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"coppia/internal/amqp"
	"coppia/internal/core"
	"coppia/internal/storage"
)

// ExpenseService orchestrates expense tracking. Shared expenses require an
// active couple; the split into shared and personal portions is derived,
// never stored.
type ExpenseService struct {
	storage    *storage.SQLiteRepository
	amqpClient *amqp.Client
}

func NewExpenseService(storage *storage.SQLiteRepository, amqpClient *amqp.Client) *ExpenseService {
	return &ExpenseService{
		storage:    storage,
		amqpClient: amqpClient,
	}
}

// Create validates and stores an expense. A shared expense is linked to the
// owner's active couple and rejected when there is none.
func (s *ExpenseService) Create(ctx context.Context, e *core.Expense) (*core.Expense, error) {
	if e.ExpenseDate.IsZero() {
		e.ExpenseDate = time.Now().UTC()
	}
	if e.IsShared {
		couple, err := s.storage.FindActiveCoupleOf(ctx, e.OwnerID)
		if err != nil {
			if errors.Is(err, core.ErrCoupleNotFound) {
				return nil, core.ErrNoActiveCouple
			}
			return nil, err
		}
		e.CoupleID = couple.ID
	} else {
		e.CoupleID = ""
		e.SharedPercentage = 0
	}
	if err := e.Validate(); err != nil {
		return nil, err
	}
	if err := s.storage.CreateExpense(ctx, e); err != nil {
		return nil, err
	}

	if s.amqpClient != nil {
		ev := amqp.NewEvent(amqp.EventExpenseCreated)
		ev.EntityID = e.ID
		ev.UserID = e.OwnerID
		ev.CoupleID = e.CoupleID
		if err := s.amqpClient.Publish(ctx, ev); err != nil {
			slog.ErrorContext(ctx, "Failed to publish domain event",
				"kind", ev.Kind, "error", err)
		}
	}

	return e, nil
}

// Get returns an expense visible to the user: their own, or a shared one
// belonging to their couple.
func (s *ExpenseService) Get(ctx context.Context, userID, expenseID string) (*core.Expense, error) {
	e, err := s.storage.GetExpense(ctx, expenseID)
	if err != nil {
		return nil, err
	}
	if err := s.authorize(ctx, userID, e); err != nil {
		return nil, err
	}
	return e, nil
}

// List returns the user's expenses matching the filter. The filter's scope
// fields are overridden with the caller's identity.
func (s *ExpenseService) List(ctx context.Context, userID string, f storage.ExpenseFilter) ([]core.Expense, error) {
	f.OwnerID = userID
	f.CoupleID = ""
	return s.storage.ListExpenses(ctx, f)
}

// ListShared returns the couple's shared expenses, both members' included.
func (s *ExpenseService) ListShared(ctx context.Context, userID string, f storage.ExpenseFilter) ([]core.Expense, error) {
	couple, err := s.storage.FindActiveCoupleOf(ctx, userID)
	if err != nil {
		if errors.Is(err, core.ErrCoupleNotFound) {
			return nil, core.ErrNotInCouple
		}
		return nil, err
	}
	f.OwnerID = ""
	f.CoupleID = couple.ID
	f.SharedOnly = true
	return s.storage.ListExpenses(ctx, f)
}

// Patch applies the allow-listed update surface. Only the owner may modify
// an expense; a partner's view of shared expenses is read-only. Toggling
// sharing on requires an active couple, like Create.
func (s *ExpenseService) Patch(ctx context.Context, userID, expenseID string, patch core.ExpensePatch) (*core.Expense, error) {
	e, err := s.storage.GetExpense(ctx, expenseID)
	if err != nil {
		return nil, err
	}
	if e.OwnerID != userID {
		return nil, core.ErrNotOwner
	}

	wasShared := e.IsShared
	if err := e.ApplyPatch(patch); err != nil {
		return nil, err
	}
	if e.IsShared && !wasShared {
		couple, err := s.storage.FindActiveCoupleOf(ctx, userID)
		if err != nil {
			if errors.Is(err, core.ErrCoupleNotFound) {
				return nil, core.ErrNoActiveCouple
			}
			return nil, err
		}
		e.CoupleID = couple.ID
	}
	if !e.IsShared {
		e.CoupleID = ""
	}

	if err := s.updateWithCouple(ctx, e); err != nil {
		return nil, err
	}
	return e, nil
}

// Delete removes an expense. Owner only.
func (s *ExpenseService) Delete(ctx context.Context, userID, expenseID string) error {
	e, err := s.storage.GetExpense(ctx, expenseID)
	if err != nil {
		return err
	}
	if e.OwnerID != userID {
		return core.ErrNotOwner
	}
	return s.storage.DeleteExpense(ctx, expenseID)
}

// Split returns the derived shared and personal portions of an expense.
func (s *ExpenseService) Split(ctx context.Context, userID, expenseID string) (shared, personal core.Money, err error) {
	e, err := s.Get(ctx, userID, expenseID)
	if err != nil {
		return core.Money{}, core.Money{}, err
	}
	return core.SharedAmount(*e), core.PersonalAmount(*e), nil
}

func (s *ExpenseService) updateWithCouple(ctx context.Context, e *core.Expense) error {
	if err := s.storage.UpdateExpense(ctx, e); err != nil {
		return err
	}
	// UpdateExpense leaves couple linkage alone; write it separately so the
	// patchable column set stays narrow.
	if err := s.storage.SetExpenseCouple(ctx, e.ID, e.CoupleID); err != nil {
		return fmt.Errorf("update expense couple link: %w", err)
	}
	return nil
}

func (s *ExpenseService) authorize(ctx context.Context, userID string, e *core.Expense) error {
	if e.OwnerID == userID {
		return nil
	}
	if !e.IsShared || e.CoupleID == "" {
		return core.ErrNotOwner
	}
	couple, err := s.storage.FindActiveCoupleOf(ctx, userID)
	if err != nil {
		if errors.Is(err, core.ErrCoupleNotFound) {
			return core.ErrNotOwner
		}
		return err
	}
	if couple.ID != e.CoupleID {
		return core.ErrNotOwner
	}
	return nil
}
