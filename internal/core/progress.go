package core

import (
	"sort"
	"time"
)

// avgDaysPerMonthx100 is the average Gregorian month length times 100,
// kept as an integer so the contribution estimate stays in fixed point.
const avgDaysPerMonthx100 = 3044

// ProgressSnapshot is the derived view of a goal's progress.
type ProgressSnapshot struct {
	CurrentAmount   Money
	TargetAmount    Money
	RemainingAmount Money
	Percentage      Percent
	IsCompleted     bool
}

// Progress derives the snapshot from the goal's stored amounts. Pure:
// calling it repeatedly without mutation returns identical results.
func Progress(g Goal) ProgressSnapshot {
	snap := ProgressSnapshot{
		CurrentAmount: g.CurrentAmount,
		TargetAmount:  g.TargetAmount,
	}
	if g.TargetAmount.Cents > 0 {
		pct := Percent(divRoundHalfEven(g.CurrentAmount.Cents*int64(HundredPercent), g.TargetAmount.Cents))
		// An uncapped ratio decides completion before display clamping,
		// so a cent short of target never rounds up to "completed".
		if g.CurrentAmount.Cents >= g.TargetAmount.Cents {
			snap.IsCompleted = true
		}
		if pct > HundredPercent {
			pct = HundredPercent
		}
		snap.Percentage = pct
	}
	if rem := g.TargetAmount.Cents - g.CurrentAmount.Cents; rem > 0 {
		snap.RemainingAmount = Money{Cents: rem}
	}
	return snap
}

// ApplyContribution adds a positive amount to an active goal, flips it to
// completed when the target is reached, and re-evaluates milestones. The
// completion transition is one-way: contributions to a completed goal are
// rejected by the status check, not silently accepted.
func (g *Goal) ApplyContribution(amount Money, now time.Time) (ProgressSnapshot, error) {
	if g.Status != GoalActive {
		return ProgressSnapshot{}, ErrInactiveGoal
	}
	if err := amount.Validate(); err != nil {
		return ProgressSnapshot{}, err
	}
	g.CurrentAmount = g.CurrentAmount.Add(amount)
	if g.CurrentAmount.Cents >= g.TargetAmount.Cents {
		g.Status = GoalCompleted
		g.CompletedAt = now
	}
	g.updateMilestones(now)
	return Progress(*g), nil
}

// ApplyWithdrawal subtracts a positive amount. Withdrawals bypass the
// completion lock used for forward contributions; whether one may reopen a
// completed goal back to active is the caller's policy.
func (g *Goal) ApplyWithdrawal(amount Money, now time.Time, reopenCompleted bool) (ProgressSnapshot, error) {
	if g.Status == GoalCancelled {
		return ProgressSnapshot{}, ErrInactiveGoal
	}
	if err := amount.Validate(); err != nil {
		return ProgressSnapshot{}, err
	}
	if amount.Cents > g.CurrentAmount.Cents {
		return ProgressSnapshot{}, ErrInvalidAmount
	}
	g.CurrentAmount = g.CurrentAmount.Sub(amount)
	if reopenCompleted && g.Status == GoalCompleted && g.CurrentAmount.Cents < g.TargetAmount.Cents {
		g.Status = GoalActive
		g.CompletedAt = time.Time{}
	}
	return Progress(*g), nil
}

// updateMilestones marks every unachieved milestone whose threshold the new
// progress crossed, ascending. Achieved flags are never cleared.
func (g *Goal) updateMilestones(now time.Time) {
	pct := Progress(*g).Percentage
	sort.SliceStable(g.Milestones, func(i, j int) bool {
		return g.Milestones[i].Percentage < g.Milestones[j].Percentage
	})
	for i := range g.Milestones {
		m := &g.Milestones[i]
		if !m.Achieved && m.Percentage <= pct {
			m.Achieved = true
			t := now
			m.AchievedDate = &t
		}
	}
}

// DaysRemaining returns the whole days until the target date, rounding up.
// ok is false when the goal has no target date. Overdue goals yield a
// negative count, returned as-is.
func DaysRemaining(g Goal, now time.Time) (int, bool) {
	if g.TargetDate.IsZero() {
		return 0, false
	}
	diff := g.TargetDate.Sub(now)
	days := int(diff / (24 * time.Hour))
	if diff%(24*time.Hour) > 0 {
		days++
	}
	return days, true
}

// RequiredMonthlyContribution estimates the monthly saving needed to reach
// the target by the target date, using the average month length. ok is
// false when there is no target date or it has passed.
func RequiredMonthlyContribution(g Goal, now time.Time) (Money, bool) {
	days, ok := DaysRemaining(g, now)
	if !ok || days <= 0 {
		return Money{}, false
	}
	remaining := Progress(g).RemainingAmount
	cents := divRoundHalfEven(remaining.Cents*avgDaysPerMonthx100, int64(days)*100)
	return Money{Cents: cents}, true
}
