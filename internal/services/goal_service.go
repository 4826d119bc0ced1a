package services

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"coppia/internal/amqp"
	"coppia/internal/core"
	"coppia/internal/storage"
)

// casRetries bounds the read-modify-write retry loop on contention.
const casRetries = 3

// GoalService orchestrates savings goals and their contribution ledger.
type GoalService struct {
	storage    *storage.SQLiteRepository
	amqpClient *amqp.Client

	// ReopenOnWithdrawal flips a completed goal back to active when a
	// withdrawal drops it under target. Off by default.
	ReopenOnWithdrawal bool

	now func() time.Time
}

func NewGoalService(storage *storage.SQLiteRepository, amqpClient *amqp.Client) *GoalService {
	return &GoalService{
		storage:    storage,
		amqpClient: amqpClient,
		now:        time.Now,
	}
}

// Create validates and stores a new goal. Shared goals require the owner to
// be in an active couple; the goal is linked to it. Milestones default to
// the 25/50/75/100 checkpoints when none are given. A caller-supplied
// starting amount is kept; negative seeds fail validation.
func (s *GoalService) Create(ctx context.Context, g *core.Goal, shared bool) (*core.Goal, error) {
	if shared {
		couple, err := s.storage.FindActiveCoupleOf(ctx, g.OwnerID)
		if err != nil {
			if errors.Is(err, core.ErrCoupleNotFound) {
				return nil, core.ErrNoActiveCouple
			}
			return nil, err
		}
		g.CoupleID = couple.ID
	} else {
		g.CoupleID = ""
	}
	g.Status = core.GoalActive
	if g.Priority == "" {
		g.Priority = core.PriorityMedium
	}
	if g.ContributionMethod == "" {
		g.ContributionMethod = core.MethodEqual
	}
	if len(g.Milestones) == 0 {
		g.Milestones = core.DefaultMilestones()
	}
	if err := g.Validate(); err != nil {
		return nil, err
	}
	if err := s.storage.CreateGoal(ctx, g); err != nil {
		return nil, err
	}
	return g, nil
}

// Get returns a goal visible to the user: their own, or their couple's.
func (s *GoalService) Get(ctx context.Context, userID, goalID string) (*core.Goal, error) {
	g, err := s.storage.GetGoal(ctx, goalID)
	if err != nil {
		return nil, err
	}
	if err := s.authorize(ctx, userID, g); err != nil {
		return nil, err
	}
	return g, nil
}

// List returns the user's goals plus their couple's shared goals.
func (s *GoalService) List(ctx context.Context, userID string, status core.GoalStatus) ([]core.Goal, error) {
	own, err := s.storage.ListGoals(ctx, storage.GoalFilter{OwnerID: userID, Status: status})
	if err != nil {
		return nil, err
	}
	couple, err := s.storage.FindActiveCoupleOf(ctx, userID)
	if errors.Is(err, core.ErrCoupleNotFound) {
		return own, nil
	}
	if err != nil {
		return nil, err
	}
	shared, err := s.storage.ListGoals(ctx, storage.GoalFilter{CoupleID: couple.ID, Status: status})
	if err != nil {
		return nil, err
	}
	goals := own
	for _, g := range shared {
		if g.OwnerID != userID {
			goals = append(goals, g)
		}
	}
	return goals, nil
}

// Patch applies the allow-listed update surface to a goal.
func (s *GoalService) Patch(ctx context.Context, userID, goalID string, patch core.GoalPatch) (*core.Goal, error) {
	g, err := s.Get(ctx, userID, goalID)
	if err != nil {
		return nil, err
	}
	if err := g.ApplyPatch(patch); err != nil {
		return nil, err
	}
	if err := s.storage.UpdateGoalMeta(ctx, g); err != nil {
		return nil, err
	}
	return g, nil
}

// Pause suspends an active goal.
func (s *GoalService) Pause(ctx context.Context, userID, goalID string) error {
	return s.transition(ctx, userID, goalID, (*core.Goal).Pause)
}

// Resume reactivates a paused goal.
func (s *GoalService) Resume(ctx context.Context, userID, goalID string) error {
	return s.transition(ctx, userID, goalID, (*core.Goal).Resume)
}

// Cancel terminates an active or paused goal.
func (s *GoalService) Cancel(ctx context.Context, userID, goalID string) error {
	return s.transition(ctx, userID, goalID, (*core.Goal).Cancel)
}

func (s *GoalService) transition(ctx context.Context, userID, goalID string, apply func(*core.Goal) error) error {
	for attempt := 0; attempt < casRetries; attempt++ {
		g, err := s.Get(ctx, userID, goalID)
		if err != nil {
			return err
		}
		from := g.Status
		if err := apply(g); err != nil {
			return err
		}
		err = s.storage.TransitionGoalStatus(ctx, goalID, from, g.Status)
		if errors.Is(err, storage.ErrStale) {
			continue
		}
		return err
	}
	return storage.ErrStale
}

// Contribute records a contribution against an active goal with
// compare-and-set retry, publishing milestone and completion events for
// checkpoints newly reached.
func (s *GoalService) Contribute(ctx context.Context, userID, goalID string, amount core.Money, note string) (*core.Goal, error) {
	return s.record(ctx, userID, goalID, amount, note, core.KindContribution)
}

// Withdraw records a withdrawal. Withdrawals bypass the active-status
// requirement on completed goals; whether they reopen a completed goal is
// the service's reopen policy.
func (s *GoalService) Withdraw(ctx context.Context, userID, goalID string, amount core.Money, note string) (*core.Goal, error) {
	return s.record(ctx, userID, goalID, amount, note, core.KindWithdrawal)
}

func (s *GoalService) record(ctx context.Context, userID, goalID string, amount core.Money, note string, kind core.ContributionKind) (*core.Goal, error) {
	ev := &core.ContributionEvent{
		GoalID: goalID,
		UserID: userID,
		Kind:   kind,
		Amount: amount,
		Note:   note,
	}
	if err := ev.Validate(); err != nil {
		return nil, err
	}

	for attempt := 0; attempt < casRetries; attempt++ {
		g, err := s.Get(ctx, userID, goalID)
		if err != nil {
			return nil, err
		}
		expected := g.CurrentAmount.Cents
		wasCompleted := g.Status == core.GoalCompleted
		achievedBefore := achievedSet(g.Milestones)

		switch kind {
		case core.KindContribution:
			_, err = g.ApplyContribution(amount, s.now())
		case core.KindWithdrawal:
			_, err = g.ApplyWithdrawal(amount, s.now(), s.ReopenOnWithdrawal)
		}
		if err != nil {
			return nil, err
		}

		err = s.storage.RecordContribution(ctx, g, ev, expected)
		if errors.Is(err, storage.ErrStale) {
			ev.ID = "" // reassigned on the retried insert
			continue
		}
		if err != nil {
			return nil, err
		}

		s.publishProgress(ctx, g, wasCompleted, achievedBefore)
		return g, nil
	}
	return nil, storage.ErrStale
}

// GoalProgress is the snapshot plus pacing figures for one goal.
type GoalProgress struct {
	core.ProgressSnapshot
	DaysRemaining   int
	HasTargetDate   bool
	RequiredMonthly core.Money
	OnSchedule      bool
}

// Progress returns the derived snapshot plus pacing figures for a goal.
func (s *GoalService) Progress(ctx context.Context, userID, goalID string) (*GoalProgress, error) {
	g, err := s.Get(ctx, userID, goalID)
	if err != nil {
		return nil, err
	}
	now := s.now()
	p := &GoalProgress{ProgressSnapshot: core.Progress(*g)}
	p.DaysRemaining, p.HasTargetDate = core.DaysRemaining(*g, now)
	if monthly, ok := core.RequiredMonthlyContribution(*g, now); ok {
		p.RequiredMonthly = monthly
	}
	p.OnSchedule = p.IsCompleted || !p.HasTargetDate || p.DaysRemaining > 0
	return p, nil
}

// Ledger returns a goal's contribution history, newest first.
func (s *GoalService) Ledger(ctx context.Context, userID, goalID string, limit int) ([]core.ContributionEvent, error) {
	if _, err := s.Get(ctx, userID, goalID); err != nil {
		return nil, err
	}
	return s.storage.ListContributions(ctx, goalID, limit)
}

// authorize permits the goal's owner always, and the partner when the goal
// is shared with their couple.
func (s *GoalService) authorize(ctx context.Context, userID string, g *core.Goal) error {
	if g.OwnerID == userID {
		return nil
	}
	if g.CoupleID == "" {
		return core.ErrNotOwner
	}
	couple, err := s.storage.FindActiveCoupleOf(ctx, userID)
	if err != nil {
		if errors.Is(err, core.ErrCoupleNotFound) {
			return core.ErrNotOwner
		}
		return err
	}
	if couple.ID != g.CoupleID {
		return core.ErrNotOwner
	}
	return nil
}

func (s *GoalService) publishProgress(ctx context.Context, g *core.Goal, wasCompleted bool, achievedBefore map[core.Percent]bool) {
	if s.amqpClient == nil {
		return
	}
	for _, m := range g.Milestones {
		if m.Achieved && !achievedBefore[m.Percentage] && m.Percentage != core.HundredPercent {
			ev := amqp.NewEvent(amqp.EventGoalMilestone)
			ev.EntityID = g.ID
			ev.CoupleID = g.CoupleID
			ev.Milestone = int64(m.Percentage)
			s.publish(ctx, ev)
		}
	}
	if g.Status == core.GoalCompleted && !wasCompleted {
		ev := amqp.NewEvent(amqp.EventGoalCompleted)
		ev.EntityID = g.ID
		ev.CoupleID = g.CoupleID
		s.publish(ctx, ev)
	}
}

func (s *GoalService) publish(ctx context.Context, ev *amqp.Event) {
	if err := s.amqpClient.Publish(ctx, ev); err != nil {
		slog.ErrorContext(ctx, "Failed to publish domain event",
			"kind", ev.Kind, "error", err)
	}
}

func achievedSet(ms []core.Milestone) map[core.Percent]bool {
	set := make(map[core.Percent]bool, len(ms))
	for _, m := range ms {
		if m.Achieved {
			set[m.Percentage] = true
		}
	}
	return set
}
