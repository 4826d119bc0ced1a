package core

import (
	"testing"
	"time"
)

var testNow = time.Date(2026, 3, 15, 12, 0, 0, 0, time.UTC)

func activeGoal(current, target int64) Goal {
	return Goal{
		ID:                 "g1",
		OwnerID:            "u1",
		Title:              "house",
		TargetAmount:       Money{Cents: target},
		CurrentAmount:      Money{Cents: current},
		Status:             GoalActive,
		Priority:           PriorityHigh,
		ContributionMethod: MethodEqual,
	}
}

func TestProgressIdempotent(t *testing.T) {
	g := activeGoal(25000, 100000)
	first := Progress(g)
	for i := 0; i < 5; i++ {
		if got := Progress(g); got != first {
			t.Fatalf("progress changed without mutation: %+v vs %+v", got, first)
		}
	}
	if first.Percentage != 2500 {
		t.Fatalf("percentage = %d, want 2500", first.Percentage)
	}
	if first.RemainingAmount.Cents != 75000 {
		t.Fatalf("remaining = %d, want 75000", first.RemainingAmount.Cents)
	}
	if first.IsCompleted {
		t.Fatalf("goal at 25%% should not be completed")
	}
}

func TestProgressZeroTarget(t *testing.T) {
	g := activeGoal(500, 0)
	snap := Progress(g)
	if snap.Percentage != 0 || snap.IsCompleted {
		t.Fatalf("zero target should yield zero percentage, got %+v", snap)
	}
}

func TestProgressOverfunded(t *testing.T) {
	g := activeGoal(150000, 100000)
	snap := Progress(g)
	if snap.Percentage != HundredPercent {
		t.Fatalf("percentage capped at 100, got %d", snap.Percentage)
	}
	if snap.RemainingAmount.Cents != 0 {
		t.Fatalf("remaining clamped at 0, got %d", snap.RemainingAmount.Cents)
	}
	if !snap.IsCompleted {
		t.Fatalf("overfunded goal must be completed")
	}
}

func TestApplyContributionCompletesGoal(t *testing.T) {
	// target 1000.00, current 250.00, contribute 750.00
	g := activeGoal(25000, 100000)
	snap, err := g.ApplyContribution(Money{Cents: 75000}, testNow)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if g.CurrentAmount.Cents != 100000 {
		t.Fatalf("current = %d, want 100000", g.CurrentAmount.Cents)
	}
	if g.Status != GoalCompleted {
		t.Fatalf("status = %s, want completed", g.Status)
	}
	if g.CompletedAt != testNow {
		t.Fatalf("completedAt not stamped")
	}
	if snap.Percentage != HundredPercent || !snap.IsCompleted {
		t.Fatalf("snapshot = %+v, want 100%% completed", snap)
	}
}

func TestApplyContributionRejectedWhenInactive(t *testing.T) {
	for _, status := range []GoalStatus{GoalCompleted, GoalPaused, GoalCancelled} {
		g := activeGoal(0, 1000)
		g.Status = status
		if _, err := g.ApplyContribution(Money{Cents: 100}, testNow); err != ErrInactiveGoal {
			t.Fatalf("status %s: expected ErrInactiveGoal, got %v", status, err)
		}
	}
}

func TestApplyContributionRejectsNonPositive(t *testing.T) {
	g := activeGoal(0, 1000)
	if _, err := g.ApplyContribution(Money{Cents: 0}, testNow); err == nil {
		t.Fatalf("expected error for zero amount")
	}
	if _, err := g.ApplyContribution(Money{Cents: -5}, testNow); err == nil {
		t.Fatalf("expected error for negative amount")
	}
}

func TestProgressMonotonicUnderContributions(t *testing.T) {
	g := activeGoal(0, 100000)
	prev := Progress(g).Percentage
	for i := 0; i < 20 && g.Status == GoalActive; i++ {
		if _, err := g.ApplyContribution(Money{Cents: 7000}, testNow); err != nil {
			t.Fatalf("contribution %d failed: %v", i, err)
		}
		pct := Progress(g).Percentage
		if pct < prev {
			t.Fatalf("percentage decreased: %d -> %d", prev, pct)
		}
		prev = pct
	}
}

func TestMilestonesAchievedInOrder(t *testing.T) {
	g := activeGoal(0, 100000)
	g.Milestones = DefaultMilestones()

	if _, err := g.ApplyContribution(Money{Cents: 30000}, testNow); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !g.Milestones[0].Achieved || g.Milestones[0].AchievedDate == nil {
		t.Fatalf("25%% milestone should be achieved at 30%%")
	}
	if g.Milestones[1].Achieved {
		t.Fatalf("50%% milestone should not be achieved at 30%%")
	}

	if _, err := g.ApplyContribution(Money{Cents: 70000}, testNow); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for i, m := range g.Milestones {
		if !m.Achieved {
			t.Fatalf("milestone %d should be achieved at 100%%", i)
		}
	}
}

func TestMilestonesNeverUnmarked(t *testing.T) {
	g := activeGoal(0, 100000)
	g.Milestones = DefaultMilestones()
	if _, err := g.ApplyContribution(Money{Cents: 60000}, testNow); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := g.ApplyWithdrawal(Money{Cents: 50000}, testNow, false); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !g.Milestones[0].Achieved || !g.Milestones[1].Achieved {
		t.Fatalf("achieved milestones must survive withdrawals")
	}
}

func TestWithdrawalBypassesCompletionLock(t *testing.T) {
	g := activeGoal(0, 1000)
	if _, err := g.ApplyContribution(Money{Cents: 1000}, testNow); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if g.Status != GoalCompleted {
		t.Fatalf("goal should be completed")
	}
	// Completed goals reject contributions but not withdrawals.
	if _, err := g.ApplyContribution(Money{Cents: 1}, testNow); err != ErrInactiveGoal {
		t.Fatalf("expected ErrInactiveGoal, got %v", err)
	}
	if _, err := g.ApplyWithdrawal(Money{Cents: 200}, testNow, false); err != nil {
		t.Fatalf("withdrawal from completed goal failed: %v", err)
	}
	if g.Status != GoalCompleted {
		t.Fatalf("without reopen policy the goal stays completed")
	}
}

func TestWithdrawalReopenPolicy(t *testing.T) {
	g := activeGoal(0, 1000)
	g.ApplyContribution(Money{Cents: 1000}, testNow)
	if _, err := g.ApplyWithdrawal(Money{Cents: 200}, testNow, true); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if g.Status != GoalActive {
		t.Fatalf("reopen policy should flip completed back to active, got %s", g.Status)
	}
	if !g.CompletedAt.IsZero() {
		t.Fatalf("completedAt should be cleared on reopen")
	}
}

func TestWithdrawalCannotOverdraw(t *testing.T) {
	g := activeGoal(100, 1000)
	if _, err := g.ApplyWithdrawal(Money{Cents: 200}, testNow, false); err == nil {
		t.Fatalf("expected error withdrawing more than current amount")
	}
}

func TestDaysRemaining(t *testing.T) {
	g := activeGoal(0, 1000)
	if _, ok := DaysRemaining(g, testNow); ok {
		t.Fatalf("no target date should yield ok=false")
	}

	g.TargetDate = testNow.Add(30 * 24 * time.Hour)
	if days, ok := DaysRemaining(g, testNow); !ok || days != 30 {
		t.Fatalf("days = %d ok=%v, want 30 true", days, ok)
	}

	// Partial days round up.
	g.TargetDate = testNow.Add(30*24*time.Hour + time.Hour)
	if days, _ := DaysRemaining(g, testNow); days != 31 {
		t.Fatalf("days = %d, want 31", days)
	}

	// Overdue goals yield a negative count as-is.
	g.TargetDate = testNow.Add(-48 * time.Hour)
	if days, ok := DaysRemaining(g, testNow); !ok || days != -2 {
		t.Fatalf("days = %d ok=%v, want -2 true", days, ok)
	}
}

func TestRequiredMonthlyContribution(t *testing.T) {
	g := activeGoal(0, 100000)
	if _, ok := RequiredMonthlyContribution(g, testNow); ok {
		t.Fatalf("no target date should yield ok=false")
	}

	g.TargetDate = testNow.Add(-24 * time.Hour)
	if _, ok := RequiredMonthlyContribution(g, testNow); ok {
		t.Fatalf("overdue goal should yield ok=false")
	}

	// 1000.00 remaining over 30 days: 1000 / (30/30.44) = 1014.67
	g.TargetDate = testNow.Add(30 * 24 * time.Hour)
	monthly, ok := RequiredMonthlyContribution(g, testNow)
	if !ok {
		t.Fatalf("expected ok")
	}
	if monthly.Cents != 101467 {
		t.Fatalf("monthly = %d, want 101467", monthly.Cents)
	}
}
