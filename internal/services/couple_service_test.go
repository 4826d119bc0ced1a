package services

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"coppia/internal/core"
	"coppia/internal/storage"
)

func newTestStorage(t *testing.T) *storage.SQLiteRepository {
	t.Helper()
	repo, err := storage.NewSQLiteRepository(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("NewSQLiteRepository: %v", err)
	}
	t.Cleanup(func() { repo.Close() })
	return repo
}

func registerUser(t *testing.T, repo *storage.SQLiteRepository, email, username string) *core.User {
	t.Helper()
	u := &core.User{Email: email, Username: username, FullName: username, PasswordHash: "x"}
	if err := repo.CreateUser(context.Background(), u); err != nil {
		t.Fatalf("CreateUser(%s): %v", email, err)
	}
	return u
}

func TestInviteAcceptLifecycle(t *testing.T) {
	repo := newTestStorage(t)
	svc := NewCoupleService(repo, nil)
	ctx := context.Background()

	ada := registerUser(t, repo, "ada@example.com", "ada")
	ben := registerUser(t, repo, "ben@example.com", "ben")

	couple, err := svc.Invite(ctx, ada.ID, "ben@example.com", "")
	if err != nil {
		t.Fatalf("Invite: %v", err)
	}
	if couple.Status != core.CouplePending {
		t.Fatalf("status = %s, want pending", couple.Status)
	}
	if couple.Name != "ada & ben" {
		t.Fatalf("default name = %q, want %q", couple.Name, "ada & ben")
	}
	if len(couple.InvitationToken) != 64 {
		t.Fatalf("token length = %d, want 64 hex chars", len(couple.InvitationToken))
	}

	// The inviter cannot accept their own invitation.
	if _, err := svc.Accept(ctx, ada.ID, couple.InvitationToken); !errors.Is(err, core.ErrNotAuthorizedAccepter) {
		t.Fatalf("expected ErrNotAuthorizedAccepter, got %v", err)
	}

	activated, err := svc.Accept(ctx, ben.ID, couple.InvitationToken)
	if err != nil {
		t.Fatalf("Accept: %v", err)
	}
	if activated.Status != core.CoupleActive {
		t.Fatalf("status = %s, want active", activated.Status)
	}

	// The spent token no longer resolves.
	if _, err := svc.Accept(ctx, ben.ID, couple.InvitationToken); !errors.Is(err, core.ErrInvitationNotFound) {
		t.Fatalf("expected ErrInvitationNotFound, got %v", err)
	}

	got, err := svc.Current(ctx, ada.ID)
	if err != nil {
		t.Fatalf("Current: %v", err)
	}
	if got.ID != couple.ID {
		t.Fatalf("current couple = %s, want %s", got.ID, couple.ID)
	}
}

func TestIndependentPendingInvitations(t *testing.T) {
	repo := newTestStorage(t)
	svc := NewCoupleService(repo, nil)
	ctx := context.Background()

	ada := registerUser(t, repo, "ada@example.com", "ada")
	ben := registerUser(t, repo, "ben@example.com", "ben")
	registerUser(t, repo, "cam@example.com", "cam")

	first, err := svc.Invite(ctx, ada.ID, "cam@example.com", "")
	if err != nil {
		t.Fatalf("Invite ada→cam: %v", err)
	}
	second, err := svc.Invite(ctx, ben.ID, "cam@example.com", "")
	if err != nil {
		t.Fatalf("Invite ben→cam: %v", err)
	}

	// Accepting one invitation leaves the other pending.
	if _, err := svc.Accept(ctx, first.MemberB, first.InvitationToken); err != nil {
		t.Fatalf("Accept: %v", err)
	}
	remaining, err := repo.GetCouple(ctx, second.ID)
	if err != nil {
		t.Fatalf("GetCouple: %v", err)
	}
	if remaining.Status != core.CouplePending {
		t.Fatalf("second invitation status = %s, want pending", remaining.Status)
	}

	// The dangling invitation can no longer be accepted, cam is taken.
	if _, err := svc.Accept(ctx, second.MemberB, second.InvitationToken); !errors.Is(err, core.ErrAlreadyInCouple) {
		t.Fatalf("expected ErrAlreadyInCouple, got %v", err)
	}
}

func TestInviteRejections(t *testing.T) {
	repo := newTestStorage(t)
	svc := NewCoupleService(repo, nil)
	ctx := context.Background()

	ada := registerUser(t, repo, "ada@example.com", "ada")
	ben := registerUser(t, repo, "ben@example.com", "ben")
	dan := registerUser(t, repo, "dan@example.com", "dan")

	if _, err := svc.Invite(ctx, ada.ID, "ada@example.com", ""); !errors.Is(err, core.ErrSelfInvitation) {
		t.Fatalf("self invite: expected ErrSelfInvitation, got %v", err)
	}
	if _, err := svc.Invite(ctx, ada.ID, "ghost@example.com", ""); !errors.Is(err, core.ErrPartnerNotFound) {
		t.Fatalf("unknown partner: expected ErrPartnerNotFound, got %v", err)
	}
	if _, err := svc.Invite(ctx, ada.ID, "no-such-id", ""); !errors.Is(err, core.ErrPartnerNotFound) {
		t.Fatalf("unknown partner id: expected ErrPartnerNotFound, got %v", err)
	}

	// The partner can be referenced by user ID as well as email.
	if _, err := svc.Invite(ctx, dan.ID, ben.ID, ""); err != nil {
		t.Fatalf("invite by id: %v", err)
	}

	couple, err := svc.Invite(ctx, ada.ID, "ben@example.com", "")
	if err != nil {
		t.Fatalf("Invite: %v", err)
	}
	if _, err := svc.Accept(ctx, ben.ID, couple.InvitationToken); err != nil {
		t.Fatalf("Accept: %v", err)
	}

	// Coupled users can neither invite nor be invited.
	if _, err := svc.Invite(ctx, ada.ID, "dan@example.com", ""); !errors.Is(err, core.ErrAlreadyInCouple) {
		t.Fatalf("coupled inviter: expected ErrAlreadyInCouple, got %v", err)
	}
	if _, err := svc.Invite(ctx, dan.ID, "ben@example.com", ""); !errors.Is(err, core.ErrPartnerAlreadyCoupled) {
		t.Fatalf("coupled partner: expected ErrPartnerAlreadyCoupled, got %v", err)
	}
}

func TestAcceptExpiredInvitation(t *testing.T) {
	repo := newTestStorage(t)
	svc := NewCoupleService(repo, nil)
	ctx := context.Background()

	ada := registerUser(t, repo, "ada@example.com", "ada")
	ben := registerUser(t, repo, "ben@example.com", "ben")

	couple, err := svc.Invite(ctx, ada.ID, "ben@example.com", "")
	if err != nil {
		t.Fatalf("Invite: %v", err)
	}

	svc.now = func() time.Time { return time.Now().Add(core.InvitationTTL + time.Minute) }
	if _, err := svc.Accept(ctx, ben.ID, couple.InvitationToken); !errors.Is(err, core.ErrInvitationExpired) {
		t.Fatalf("expected ErrInvitationExpired, got %v", err)
	}

	// The lapsed invitation also disappears from the pending list.
	invites, err := svc.PendingInvitations(ctx, ben.ID)
	if err != nil {
		t.Fatalf("PendingInvitations: %v", err)
	}
	if len(invites) != 0 {
		t.Fatalf("expected no valid invitations, got %d", len(invites))
	}
}

func TestAccepterAlreadyCoupled(t *testing.T) {
	repo := newTestStorage(t)
	svc := NewCoupleService(repo, nil)
	ctx := context.Background()

	ada := registerUser(t, repo, "ada@example.com", "ada")
	ben := registerUser(t, repo, "ben@example.com", "ben")
	dan := registerUser(t, repo, "dan@example.com", "dan")

	first, err := svc.Invite(ctx, ada.ID, "ben@example.com", "")
	if err != nil {
		t.Fatalf("Invite(first): %v", err)
	}
	second, err := svc.Invite(ctx, dan.ID, "ben@example.com", "")
	if err != nil {
		t.Fatalf("Invite(second): %v", err)
	}

	if _, err := svc.Accept(ctx, ben.ID, first.InvitationToken); err != nil {
		t.Fatalf("Accept(first): %v", err)
	}
	if _, err := svc.Accept(ctx, ben.ID, second.InvitationToken); !errors.Is(err, core.ErrAlreadyInCouple) {
		t.Fatalf("expected ErrAlreadyInCouple, got %v", err)
	}
}

func TestLeaveDissolvesCouple(t *testing.T) {
	repo := newTestStorage(t)
	svc := NewCoupleService(repo, nil)
	ctx := context.Background()

	ada := registerUser(t, repo, "ada@example.com", "ada")
	ben := registerUser(t, repo, "ben@example.com", "ben")

	couple, err := svc.Invite(ctx, ada.ID, "ben@example.com", "")
	if err != nil {
		t.Fatalf("Invite: %v", err)
	}
	if _, err := svc.Accept(ctx, ben.ID, couple.InvitationToken); err != nil {
		t.Fatalf("Accept: %v", err)
	}

	if err := svc.Leave(ctx, ben.ID); err != nil {
		t.Fatalf("Leave: %v", err)
	}
	for _, u := range []*core.User{ada, ben} {
		if _, err := svc.Current(ctx, u.ID); !errors.Is(err, core.ErrNotInCouple) {
			t.Fatalf("user %s: expected ErrNotInCouple, got %v", u.Username, err)
		}
	}
	if err := svc.Leave(ctx, ben.ID); !errors.Is(err, core.ErrNotInCouple) {
		t.Fatalf("double leave: expected ErrNotInCouple, got %v", err)
	}
}

func TestUpdateSettingsAndBudgetUsage(t *testing.T) {
	repo := newTestStorage(t)
	svc := NewCoupleService(repo, nil)
	expenses := NewExpenseService(repo, nil)
	ctx := context.Background()

	ada := registerUser(t, repo, "ada@example.com", "ada")
	ben := registerUser(t, repo, "ben@example.com", "ben")
	couple, err := svc.Invite(ctx, ada.ID, "ben@example.com", "")
	if err != nil {
		t.Fatalf("Invite: %v", err)
	}
	if _, err := svc.Accept(ctx, ben.ID, couple.InvitationToken); err != nil {
		t.Fatalf("Accept: %v", err)
	}

	budget := core.Money{Cents: 100_000}
	updated, err := svc.UpdateSettings(ctx, ada.ID, core.CoupleSettingsPatch{SharedBudget: &budget})
	if err != nil {
		t.Fatalf("UpdateSettings: %v", err)
	}
	if updated.SharedBudget.Cents != 100_000 {
		t.Fatalf("budget = %d, want 100000", updated.SharedBudget.Cents)
	}

	// A 60% shared expense of 500.00 counts 300.00 against the budget.
	_, err = expenses.Create(ctx, &core.Expense{
		OwnerID:          ada.ID,
		Title:            "groceries",
		Amount:           core.Money{Cents: 50_000},
		Category:         core.CategoryGroceries,
		ExpenseDate:      time.Now(),
		PaymentMethod:    core.PayDebitCard,
		IsShared:         true,
		SharedPercentage: 6000,
	})
	if err != nil {
		t.Fatalf("Create expense: %v", err)
	}

	usage, err := svc.BudgetUsage(ctx, ben.ID)
	if err != nil {
		t.Fatalf("BudgetUsage: %v", err)
	}
	if usage.Used.Cents != 30_000 {
		t.Fatalf("used = %d, want 30000", usage.Used.Cents)
	}
	if usage.Remaining.Cents != 70_000 {
		t.Fatalf("remaining = %d, want 70000", usage.Remaining.Cents)
	}
	if usage.Percentage != 3000 {
		t.Fatalf("percentage = %d bps, want 3000", usage.Percentage)
	}
}
