package storage

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"coppia/internal/core"
)

func newTestRepo(t *testing.T) *SQLiteRepository {
	t.Helper()
	repo, err := NewSQLiteRepository(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("NewSQLiteRepository: %v", err)
	}
	t.Cleanup(func() { repo.Close() })
	return repo
}

func seedUser(t *testing.T, repo *SQLiteRepository, email, username string) *core.User {
	t.Helper()
	u := &core.User{
		Email:        email,
		Username:     username,
		FullName:     username,
		PasswordHash: "x",
	}
	if err := repo.CreateUser(context.Background(), u); err != nil {
		t.Fatalf("CreateUser(%s): %v", email, err)
	}
	return u
}

func seedPendingCouple(t *testing.T, repo *SQLiteRepository, a, b *core.User) *core.Couple {
	t.Helper()
	c := &core.Couple{
		MemberA:          a.ID,
		MemberB:          b.ID,
		Name:             a.DisplayName() + " & " + b.DisplayName(),
		Status:           core.CouplePending,
		InvitationToken:  "tok-" + a.Username + "-" + b.Username,
		InvitationExpiry: time.Now().Add(core.InvitationTTL).UTC(),
		BudgetPeriod:     core.PeriodMonthly,
		Settings:         core.DefaultCoupleSettings(),
	}
	if err := repo.CreateCouple(context.Background(), c); err != nil {
		t.Fatalf("CreateCouple: %v", err)
	}
	return c
}

func TestCreateUserDuplicateEmail(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	seedUser(t, repo, "ada@example.com", "ada")
	dup := &core.User{Email: "ada@example.com", Username: "ada2", PasswordHash: "x"}
	if err := repo.CreateUser(ctx, dup); !errors.Is(err, core.ErrEmailTaken) {
		t.Fatalf("expected ErrEmailTaken, got %v", err)
	}
}

func TestGetUserByEmail(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	want := seedUser(t, repo, "ada@example.com", "ada")
	got, err := repo.GetUserByEmail(ctx, "ada@example.com")
	if err != nil {
		t.Fatalf("GetUserByEmail: %v", err)
	}
	if got.ID != want.ID || got.Username != "ada" {
		t.Fatalf("unexpected user %+v", got)
	}

	if _, err := repo.GetUserByEmail(ctx, "nobody@example.com"); !errors.Is(err, core.ErrUserNotFound) {
		t.Fatalf("expected ErrUserNotFound, got %v", err)
	}
}

func TestCoupleRoundTrip(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	a := seedUser(t, repo, "a@example.com", "ada")
	b := seedUser(t, repo, "b@example.com", "ben")
	c := seedPendingCouple(t, repo, a, b)

	got, err := repo.GetCoupleByToken(ctx, c.InvitationToken)
	if err != nil {
		t.Fatalf("GetCoupleByToken: %v", err)
	}
	if got.ID != c.ID || got.Status != core.CouplePending {
		t.Fatalf("unexpected couple %+v", got)
	}
	if got.Settings.GoalContributionMethod != core.MethodEqual {
		t.Fatalf("settings not round-tripped: %+v", got.Settings)
	}

	if _, err := repo.GetCoupleByToken(ctx, "missing"); !errors.Is(err, core.ErrInvitationNotFound) {
		t.Fatalf("expected ErrInvitationNotFound, got %v", err)
	}
}

func TestActivateCouple(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	a := seedUser(t, repo, "a@example.com", "ada")
	b := seedUser(t, repo, "b@example.com", "ben")
	c := seedPendingCouple(t, repo, a, b)

	activated, err := repo.ActivateCouple(ctx, c.ID)
	if err != nil {
		t.Fatalf("ActivateCouple: %v", err)
	}
	if activated.Status != core.CoupleActive {
		t.Fatalf("status = %s, want active", activated.Status)
	}
	if activated.InvitationToken != "" || !activated.InvitationExpiry.IsZero() {
		t.Fatalf("invitation secret not cleared: %+v", activated)
	}

	for _, id := range []string{a.ID, b.ID} {
		u, err := repo.GetUser(ctx, id)
		if err != nil {
			t.Fatalf("GetUser(%s): %v", id, err)
		}
		if u.CoupleID != c.ID {
			t.Fatalf("user %s couple_id = %q, want %q", id, u.CoupleID, c.ID)
		}
	}

	// Second activation loses the status guard.
	if _, err := repo.ActivateCouple(ctx, c.ID); !errors.Is(err, ErrStale) {
		t.Fatalf("expected ErrStale on re-activation, got %v", err)
	}

	found, err := repo.FindActiveCoupleOf(ctx, b.ID)
	if err != nil {
		t.Fatalf("FindActiveCoupleOf: %v", err)
	}
	if found.ID != c.ID {
		t.Fatalf("found couple %s, want %s", found.ID, c.ID)
	}
}

func TestActivateCoupleMemberAlreadyCoupled(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	a := seedUser(t, repo, "a@example.com", "ada")
	b := seedUser(t, repo, "b@example.com", "ben")
	d := seedUser(t, repo, "d@example.com", "dan")

	first := seedPendingCouple(t, repo, a, b)
	if _, err := repo.ActivateCouple(ctx, first.ID); err != nil {
		t.Fatalf("activate first: %v", err)
	}

	// b accepted another invitation before this one was activated.
	second := seedPendingCouple(t, repo, d, b)
	if _, err := repo.ActivateCouple(ctx, second.ID); !errors.Is(err, core.ErrAlreadyInCouple) {
		t.Fatalf("expected ErrAlreadyInCouple, got %v", err)
	}

	// Transition rolled back: the second couple is still pending and d is
	// still uncoupled.
	got, err := repo.GetCouple(ctx, second.ID)
	if err != nil {
		t.Fatalf("GetCouple: %v", err)
	}
	if got.Status != core.CouplePending {
		t.Fatalf("second couple status = %s, want pending", got.Status)
	}
	u, err := repo.GetUser(ctx, d.ID)
	if err != nil {
		t.Fatalf("GetUser: %v", err)
	}
	if u.CoupleID != "" {
		t.Fatalf("d.couple_id = %q, want empty", u.CoupleID)
	}
}

func TestDissolveCouple(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	a := seedUser(t, repo, "a@example.com", "ada")
	b := seedUser(t, repo, "b@example.com", "ben")
	c := seedPendingCouple(t, repo, a, b)
	if _, err := repo.ActivateCouple(ctx, c.ID); err != nil {
		t.Fatalf("ActivateCouple: %v", err)
	}

	if err := repo.DissolveCouple(ctx, c.ID); err != nil {
		t.Fatalf("DissolveCouple: %v", err)
	}
	if _, err := repo.GetCouple(ctx, c.ID); !errors.Is(err, core.ErrCoupleNotFound) {
		t.Fatalf("expected ErrCoupleNotFound after dissolution, got %v", err)
	}
	for _, id := range []string{a.ID, b.ID} {
		u, err := repo.GetUser(ctx, id)
		if err != nil {
			t.Fatalf("GetUser: %v", err)
		}
		if u.CoupleID != "" {
			t.Fatalf("user %s still coupled after dissolution", id)
		}
	}

	if err := repo.DissolveCouple(ctx, c.ID); !errors.Is(err, core.ErrCoupleNotFound) {
		t.Fatalf("expected ErrCoupleNotFound on double dissolve, got %v", err)
	}
}

func TestPendingInvitationsOf(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	a := seedUser(t, repo, "a@example.com", "ada")
	b := seedUser(t, repo, "b@example.com", "ben")
	d := seedUser(t, repo, "d@example.com", "dan")

	seedPendingCouple(t, repo, a, b)
	seedPendingCouple(t, repo, d, b)

	invites, err := repo.PendingInvitationsOf(ctx, b.ID)
	if err != nil {
		t.Fatalf("PendingInvitationsOf: %v", err)
	}
	if len(invites) != 2 {
		t.Fatalf("got %d invitations, want 2", len(invites))
	}
	// Only the invited slot counts.
	invites, err = repo.PendingInvitationsOf(ctx, a.ID)
	if err != nil {
		t.Fatalf("PendingInvitationsOf(inviter): %v", err)
	}
	if len(invites) != 0 {
		t.Fatalf("inviter should have no pending invitations, got %d", len(invites))
	}
}

func TestExpenseCRUDAndFilters(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	a := seedUser(t, repo, "a@example.com", "ada")
	b := seedUser(t, repo, "b@example.com", "ben")
	c := seedPendingCouple(t, repo, a, b)
	if _, err := repo.ActivateCouple(ctx, c.ID); err != nil {
		t.Fatalf("ActivateCouple: %v", err)
	}

	day := func(d int) time.Time {
		return time.Date(2026, time.March, d, 12, 0, 0, 0, time.UTC)
	}
	mk := func(owner string, cents int64, cat core.ExpenseCategory, shared bool, d int) *core.Expense {
		e := &core.Expense{
			OwnerID:       owner,
			Title:         "expense",
			Amount:        core.Money{Cents: cents},
			Category:      cat,
			ExpenseDate:   day(d),
			PaymentMethod: core.PayCash,
		}
		if shared {
			e.CoupleID = c.ID
			e.IsShared = true
			e.SharedPercentage = core.HundredPercent
		}
		if err := repo.CreateExpense(ctx, e); err != nil {
			t.Fatalf("CreateExpense: %v", err)
		}
		return e
	}

	mk(a.ID, 1000, core.CategoryGroceries, true, 1)
	shared2 := mk(b.ID, 2500, core.CategoryTravel, true, 10)
	mk(a.ID, 500, core.CategoryGroceries, false, 5)

	byCouple, err := repo.ListExpenses(ctx, ExpenseFilter{CoupleID: c.ID, SharedOnly: true})
	if err != nil {
		t.Fatalf("ListExpenses(couple): %v", err)
	}
	if len(byCouple) != 2 {
		t.Fatalf("got %d shared expenses, want 2", len(byCouple))
	}
	if byCouple[0].ID != shared2.ID {
		t.Fatalf("expected newest expense date first, got %s", byCouple[0].ID)
	}

	byOwner, err := repo.ListExpenses(ctx, ExpenseFilter{
		OwnerID:  a.ID,
		Category: core.CategoryGroceries,
		From:     day(1),
		To:       day(6),
	})
	if err != nil {
		t.Fatalf("ListExpenses(owner+category+range): %v", err)
	}
	if len(byOwner) != 2 {
		t.Fatalf("got %d expenses, want 2", len(byOwner))
	}

	got := byCouple[0]
	newTitle := "trip"
	if err := got.ApplyPatch(core.ExpensePatch{Title: &newTitle}); err != nil {
		t.Fatalf("ApplyPatch: %v", err)
	}
	if err := repo.UpdateExpense(ctx, &got); err != nil {
		t.Fatalf("UpdateExpense: %v", err)
	}
	reread, err := repo.GetExpense(ctx, got.ID)
	if err != nil {
		t.Fatalf("GetExpense: %v", err)
	}
	if reread.Title != "trip" || !reread.IsShared || reread.SharedPercentage != core.HundredPercent {
		t.Fatalf("update not persisted: %+v", reread)
	}

	if err := repo.DeleteExpense(ctx, got.ID); err != nil {
		t.Fatalf("DeleteExpense: %v", err)
	}
	if err := repo.DeleteExpense(ctx, got.ID); !errors.Is(err, core.ErrExpenseNotFound) {
		t.Fatalf("expected ErrExpenseNotFound on double delete, got %v", err)
	}
}

func TestGoalContributionLedger(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	a := seedUser(t, repo, "a@example.com", "ada")
	g := &core.Goal{
		OwnerID:            a.ID,
		Title:              "emergency fund",
		TargetAmount:       core.Money{Cents: 100_000},
		Status:             core.GoalActive,
		Priority:           core.PriorityHigh,
		ContributionMethod: core.MethodEqual,
		Milestones:         core.DefaultMilestones(),
	}
	if err := repo.CreateGoal(ctx, g); err != nil {
		t.Fatalf("CreateGoal: %v", err)
	}

	now := time.Date(2026, time.March, 15, 12, 0, 0, 0, time.UTC)
	before := g.CurrentAmount.Cents
	if _, err := g.ApplyContribution(core.Money{Cents: 30_000}, now); err != nil {
		t.Fatalf("ApplyContribution: %v", err)
	}
	ev := &core.ContributionEvent{
		GoalID: g.ID,
		UserID: a.ID,
		Kind:   core.KindContribution,
		Amount: core.Money{Cents: 30_000},
	}
	if err := repo.RecordContribution(ctx, g, ev, before); err != nil {
		t.Fatalf("RecordContribution: %v", err)
	}

	// Writing again against the pre-contribution balance must lose the CAS.
	if err := repo.RecordContribution(ctx, g, ev, before); !errors.Is(err, ErrStale) {
		t.Fatalf("expected ErrStale, got %v", err)
	}

	reread, err := repo.GetGoal(ctx, g.ID)
	if err != nil {
		t.Fatalf("GetGoal: %v", err)
	}
	if reread.CurrentAmount.Cents != 30_000 {
		t.Fatalf("current = %d, want 30000", reread.CurrentAmount.Cents)
	}
	if !reread.Milestones[0].Achieved || reread.Milestones[1].Achieved {
		t.Fatalf("milestones not round-tripped: %+v", reread.Milestones)
	}

	before = reread.CurrentAmount.Cents
	if _, err := reread.ApplyWithdrawal(core.Money{Cents: 10_000}, now.Add(time.Hour), false); err != nil {
		t.Fatalf("ApplyWithdrawal: %v", err)
	}
	wev := &core.ContributionEvent{
		GoalID: reread.ID,
		UserID: a.ID,
		Kind:   core.KindWithdrawal,
		Amount: core.Money{Cents: 10_000},
	}
	if err := repo.RecordContribution(ctx, reread, wev, before); err != nil {
		t.Fatalf("RecordContribution(withdrawal): %v", err)
	}

	ledger, err := repo.ListContributions(ctx, g.ID, 0)
	if err != nil {
		t.Fatalf("ListContributions: %v", err)
	}
	if len(ledger) != 2 {
		t.Fatalf("got %d ledger rows, want 2", len(ledger))
	}
	if ledger[0].Kind != core.KindWithdrawal || ledger[0].Amount.Cents != 10_000 {
		t.Fatalf("expected withdrawal first (newest), got %+v", ledger[0])
	}
	if ledger[1].Kind != core.KindContribution {
		t.Fatalf("expected contribution second, got %+v", ledger[1])
	}
}

func TestTransitionGoalStatus(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	a := seedUser(t, repo, "a@example.com", "ada")
	g := &core.Goal{
		OwnerID:            a.ID,
		Title:              "vacation",
		TargetAmount:       core.Money{Cents: 50_000},
		Status:             core.GoalActive,
		Priority:           core.PriorityMedium,
		ContributionMethod: core.MethodEqual,
	}
	if err := repo.CreateGoal(ctx, g); err != nil {
		t.Fatalf("CreateGoal: %v", err)
	}

	if err := repo.TransitionGoalStatus(ctx, g.ID, core.GoalActive, core.GoalPaused); err != nil {
		t.Fatalf("pause: %v", err)
	}
	// Guard on the old status must miss now.
	if err := repo.TransitionGoalStatus(ctx, g.ID, core.GoalActive, core.GoalPaused); !errors.Is(err, ErrStale) {
		t.Fatalf("expected ErrStale, got %v", err)
	}

	reread, err := repo.GetGoal(ctx, g.ID)
	if err != nil {
		t.Fatalf("GetGoal: %v", err)
	}
	if reread.Status != core.GoalPaused {
		t.Fatalf("status = %s, want paused", reread.Status)
	}
}

func TestReportsAggregation(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	a := seedUser(t, repo, "a@example.com", "ada")
	mk := func(cents int64, cat core.ExpenseCategory, month time.Month, day int) {
		e := &core.Expense{
			OwnerID:       a.ID,
			Title:         "expense",
			Amount:        core.Money{Cents: cents},
			Category:      cat,
			ExpenseDate:   time.Date(2026, month, day, 12, 0, 0, 0, time.UTC),
			PaymentMethod: core.PayCash,
		}
		if err := repo.CreateExpense(ctx, e); err != nil {
			t.Fatalf("CreateExpense: %v", err)
		}
	}

	mk(1000, core.CategoryGroceries, time.January, 5)
	mk(3000, core.CategoryGroceries, time.January, 20)
	mk(2000, core.CategoryTravel, time.February, 3)
	mk(5000, core.CategoryTravel, time.March, 1)

	from := time.Date(2026, time.January, 1, 0, 0, 0, 0, time.UTC)
	to := time.Date(2026, time.April, 1, 0, 0, 0, 0, time.UTC)
	scope := ReportScope{OwnerID: a.ID}

	totals, err := repo.TotalsByCategory(ctx, scope, from, to)
	if err != nil {
		t.Fatalf("TotalsByCategory: %v", err)
	}
	if len(totals) != 2 {
		t.Fatalf("got %d categories, want 2", len(totals))
	}
	if totals[0].Category != core.CategoryTravel || totals[0].Total.Cents != 7000 || totals[0].Count != 2 {
		t.Fatalf("largest category first expected travel/7000/2, got %+v", totals[0])
	}
	if totals[1].Category != core.CategoryGroceries || totals[1].Total.Cents != 4000 {
		t.Fatalf("unexpected second category %+v", totals[1])
	}

	trend, err := repo.MonthlyTrend(ctx, scope, from, to)
	if err != nil {
		t.Fatalf("MonthlyTrend: %v", err)
	}
	want := []struct {
		month string
		total int64
		avg   int64
		count int
	}{
		{"2026-01", 4000, 2000, 2},
		{"2026-02", 2000, 2000, 1},
		{"2026-03", 5000, 5000, 1},
	}
	if len(trend) != len(want) {
		t.Fatalf("got %d buckets, want %d", len(trend), len(want))
	}
	for i, w := range want {
		b := trend[i]
		if b.Month != w.month || b.Total.Cents != w.total || b.Average.Cents != w.avg || b.Count != w.count {
			t.Fatalf("bucket %d = %+v, want %+v", i, b, w)
		}
	}
}

func TestMonthlyTrendBucketsByUTCMonth(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	a := seedUser(t, repo, "a@example.com", "ada")
	lima := time.FixedZone("lima", -5*3600)
	// 23:00 on Jan 31 in UTC-5 is already February in UTC.
	e := &core.Expense{
		OwnerID:       a.ID,
		Title:         "late dinner",
		Amount:        core.Money{Cents: 4500},
		Category:      core.CategoryFoodDining,
		ExpenseDate:   time.Date(2026, time.January, 31, 23, 0, 0, 0, lima),
		PaymentMethod: core.PayDebitCard,
	}
	if err := repo.CreateExpense(ctx, e); err != nil {
		t.Fatalf("CreateExpense: %v", err)
	}

	from := time.Date(2026, time.January, 1, 0, 0, 0, 0, time.UTC)
	to := time.Date(2026, time.March, 1, 0, 0, 0, 0, time.UTC)
	trend, err := repo.MonthlyTrend(ctx, ReportScope{OwnerID: a.ID}, from, to)
	if err != nil {
		t.Fatalf("MonthlyTrend: %v", err)
	}
	if len(trend) != 1 {
		t.Fatalf("got %d buckets, want 1", len(trend))
	}
	if trend[0].Month != "2026-02" {
		t.Fatalf("bucket month = %q, want 2026-02", trend[0].Month)
	}
	if trend[0].Total.Cents != 4500 || trend[0].Count != 1 {
		t.Fatalf("unexpected bucket %+v", trend[0])
	}
}
