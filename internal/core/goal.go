package core

import (
	"strings"
	"time"
)

// GoalStatus is the lifecycle state of a savings goal.
type GoalStatus string

const (
	GoalActive    GoalStatus = "active"
	GoalCompleted GoalStatus = "completed"
	GoalPaused    GoalStatus = "paused"
	GoalCancelled GoalStatus = "cancelled"
)

// GoalPriority orders goals for display and reminders.
type GoalPriority string

const (
	PriorityLow    GoalPriority = "low"
	PriorityMedium GoalPriority = "medium"
	PriorityHigh   GoalPriority = "high"
	PriorityUrgent GoalPriority = "urgent"
)

func (p GoalPriority) Validate() error {
	switch p {
	case PriorityLow, PriorityMedium, PriorityHigh, PriorityUrgent:
		return nil
	}
	return ErrInvalidPriority
}

// ContributionMethod is the policy for dividing a shared goal's target.
type ContributionMethod string

const (
	MethodEqual      ContributionMethod = "equal"
	MethodPercentage ContributionMethod = "percentage"
	MethodCustom     ContributionMethod = "custom"
)

func (m ContributionMethod) Validate() error {
	switch m {
	case MethodEqual, MethodPercentage, MethodCustom:
		return nil
	}
	return ErrInvalidMethod
}

type (
	// ContributionSplit carries the per-method settings. Exactly the fields
	// for the goal's method are meaningful: percentages for
	// MethodPercentage, amounts for MethodCustom, nothing for MethodEqual.
	ContributionSplit struct {
		MemberAPercentage Percent `json:"member_a_percentage,omitempty"`
		MemberBPercentage Percent `json:"member_b_percentage,omitempty"`
		MemberAAmount     Money   `json:"member_a_amount,omitempty"`
		MemberBAmount     Money   `json:"member_b_amount,omitempty"`
	}

	// Milestone is a percentage checkpoint on a goal. Once achieved it is
	// never un-marked, even if later withdrawals drop the progress back
	// under the threshold.
	Milestone struct {
		Percentage   Percent    `json:"percentage"`
		Achieved     bool       `json:"achieved"`
		AchievedDate *time.Time `json:"achieved_date,omitempty"`
	}

	// Goal is a savings target, personal or shared. CurrentAmount is not
	// capped at TargetAmount.
	Goal struct {
		ID                   string
		OwnerID              string
		CoupleID             string
		Title                string
		Description          string
		TargetAmount         Money
		CurrentAmount        Money
		Status               GoalStatus
		Priority             GoalPriority
		ContributionMethod   ContributionMethod
		ContributionSettings ContributionSplit
		Milestones           []Milestone
		TargetDate           time.Time
		CompletedAt          time.Time
		CreatedAt            time.Time
	}

	// GoalPatch is the allow-listed update surface for a goal. Status,
	// amounts, and completion are driven by contributions and the explicit
	// pause/resume/cancel transitions, never by a patch.
	GoalPatch struct {
		Title                *string
		Description          *string
		TargetAmount         *Money
		Priority             *GoalPriority
		ContributionMethod   *ContributionMethod
		ContributionSettings *ContributionSplit
		TargetDate           *time.Time
		ClearTargetDate      bool
	}
)

// Validate checks the goal invariants, including the per-method shape of
// the contribution settings.
func (g Goal) Validate() error {
	if strings.TrimSpace(g.Title) == "" || len(g.Title) > 200 {
		return ErrEmptyTitle
	}
	if err := g.TargetAmount.Validate(); err != nil {
		return err
	}
	if g.CurrentAmount.Cents < 0 {
		return ErrInvalidAmount
	}
	if err := g.Priority.Validate(); err != nil {
		return err
	}
	if err := g.ContributionMethod.Validate(); err != nil {
		return err
	}
	if err := g.ContributionSettings.ValidateFor(g.ContributionMethod); err != nil {
		return err
	}
	for _, m := range g.Milestones {
		if m.Percentage <= 0 || m.Percentage > HundredPercent {
			return ErrInvalidPercentage
		}
	}
	switch g.Status {
	case GoalActive, GoalCompleted, GoalPaused, GoalCancelled:
	default:
		return ErrInvalidTransition
	}
	return nil
}

// ValidateFor checks the settings shape demanded by the method: the two
// percentages must sum to exactly 100 for MethodPercentage, the two amounts
// must be non-negative for MethodCustom.
func (s ContributionSplit) ValidateFor(m ContributionMethod) error {
	switch m {
	case MethodEqual:
		return nil
	case MethodPercentage:
		if s.MemberAPercentage < 0 || s.MemberBPercentage < 0 {
			return ErrInvalidPercentage
		}
		if s.MemberAPercentage+s.MemberBPercentage != HundredPercent {
			return ErrInvalidPercentage
		}
		return nil
	case MethodCustom:
		if s.MemberAAmount.Cents < 0 || s.MemberBAmount.Cents < 0 {
			return ErrInvalidAmount
		}
		return nil
	}
	return ErrInvalidMethod
}

// Pause suspends an active goal.
func (g *Goal) Pause() error {
	if g.Status != GoalActive {
		return ErrInvalidTransition
	}
	g.Status = GoalPaused
	return nil
}

// Resume reactivates a paused goal.
func (g *Goal) Resume() error {
	if g.Status != GoalPaused {
		return ErrInvalidTransition
	}
	g.Status = GoalActive
	return nil
}

// Cancel terminates an active or paused goal. Terminal.
func (g *Goal) Cancel() error {
	if g.Status != GoalActive && g.Status != GoalPaused {
		return ErrInvalidTransition
	}
	g.Status = GoalCancelled
	return nil
}

// ApplyPatch merges the patch and re-validates the result.
func (g *Goal) ApplyPatch(p GoalPatch) error {
	next := *g
	if p.Title != nil {
		next.Title = *p.Title
	}
	if p.Description != nil {
		next.Description = *p.Description
	}
	if p.TargetAmount != nil {
		next.TargetAmount = *p.TargetAmount
	}
	if p.Priority != nil {
		next.Priority = *p.Priority
	}
	if p.ContributionMethod != nil {
		next.ContributionMethod = *p.ContributionMethod
	}
	if p.ContributionSettings != nil {
		next.ContributionSettings = *p.ContributionSettings
	}
	if p.ClearTargetDate {
		next.TargetDate = time.Time{}
	} else if p.TargetDate != nil {
		next.TargetDate = *p.TargetDate
	}
	if err := next.Validate(); err != nil {
		return err
	}
	*g = next
	return nil
}

// DefaultMilestones returns the standard 25/50/75/100 checkpoints.
func DefaultMilestones() []Milestone {
	return []Milestone{
		{Percentage: 2500},
		{Percentage: 5000},
		{Percentage: 7500},
		{Percentage: 10000},
	}
}
