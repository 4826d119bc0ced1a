package core

import (
	"time"
)

// CoupleStatus is the lifecycle state of a couple record.
type CoupleStatus string

const (
	CouplePending CoupleStatus = "pending"
	CoupleActive  CoupleStatus = "active"
	// CoupleInactive is part of the status contract but no mutation path
	// produces it; dissolution deletes the record instead.
	CoupleInactive CoupleStatus = "inactive"
)

// BudgetPeriod is the window the shared budget applies to.
type BudgetPeriod string

const (
	PeriodWeekly  BudgetPeriod = "weekly"
	PeriodMonthly BudgetPeriod = "monthly"
	PeriodYearly  BudgetPeriod = "yearly"
)

// InvitationTTL is how long a pending invitation stays acceptable.
const InvitationTTL = 24 * time.Hour

type (
	// NotificationSettings toggles the per-couple notification kinds.
	NotificationSettings struct {
		ExpenseAlerts  bool `json:"expense_alerts"`
		GoalReminders  bool `json:"goal_reminders"`
		BudgetWarnings bool `json:"budget_warnings"`
	}

	// PrivacySettings controls what each member can see of the other.
	PrivacySettings struct {
		ShareIndividualExpenses bool `json:"share_individual_expenses"`
		ShareGoals              bool `json:"share_goals"`
	}

	// CoupleSettings is the structured configuration attached to a couple.
	// ExpenseLimitIndividual is in cents; nil means no limit.
	CoupleSettings struct {
		ExpenseApprovalRequired bool                 `json:"expense_approval_required"`
		ExpenseLimitIndividual  *int64               `json:"expense_limit_individual"`
		GoalContributionMethod  ContributionMethod   `json:"goal_contribution_method"`
		Notifications           NotificationSettings `json:"notifications"`
		Privacy                 PrivacySettings      `json:"privacy"`
	}

	// Couple is a bond between exactly two distinct users. While pending it
	// carries the invitation token and expiry; both are cleared on
	// activation and never set again.
	Couple struct {
		ID               string
		MemberA          string // inviter slot
		MemberB          string // invited slot
		Name             string
		Status           CoupleStatus
		InvitationToken  string
		InvitationExpiry time.Time
		SharedBudget     Money
		BudgetPeriod     BudgetPeriod
		Settings         CoupleSettings
		CreatedAt        time.Time
	}

	// CoupleSettingsPatch is the allow-listed update surface for settings.
	// Nil fields are left untouched. Status and invitation fields cannot
	// be patched.
	CoupleSettingsPatch struct {
		ExpenseApprovalRequired *bool
		ExpenseLimitIndividual  *int64
		ClearExpenseLimit       bool
		GoalContributionMethod  *ContributionMethod
		Notifications           *NotificationSettings
		Privacy                 *PrivacySettings
		SharedBudget            *Money
		BudgetPeriod            *BudgetPeriod
	}
)

// DefaultCoupleSettings mirrors the defaults a fresh couple starts with.
func DefaultCoupleSettings() CoupleSettings {
	return CoupleSettings{
		ExpenseApprovalRequired: false,
		ExpenseLimitIndividual:  nil,
		GoalContributionMethod:  MethodEqual,
		Notifications: NotificationSettings{
			ExpenseAlerts:  true,
			GoalReminders:  true,
			BudgetWarnings: true,
		},
		Privacy: PrivacySettings{
			ShareIndividualExpenses: true,
			ShareGoals:              true,
		},
	}
}

func (p BudgetPeriod) Validate() error {
	switch p {
	case PeriodWeekly, PeriodMonthly, PeriodYearly:
		return nil
	}
	return ErrInvalidPeriod
}

// Validate checks the structural invariants of a couple record.
func (c Couple) Validate() error {
	if c.MemberA == "" || c.MemberB == "" || c.MemberA == c.MemberB {
		return ErrSelfInvitation
	}
	if len(c.Name) > 100 {
		return ErrNameTooLong
	}
	if c.SharedBudget.Cents < 0 {
		return ErrInvalidAmount
	}
	if err := c.BudgetPeriod.Validate(); err != nil {
		return err
	}
	switch c.Status {
	case CouplePending:
		if c.InvitationToken == "" || c.InvitationExpiry.IsZero() {
			return ErrInvalidTransition
		}
	case CoupleActive, CoupleInactive:
		if c.InvitationToken != "" || !c.InvitationExpiry.IsZero() {
			return ErrInvalidTransition
		}
	default:
		return ErrInvalidTransition
	}
	return nil
}

// IsMember reports whether userID occupies either slot.
func (c Couple) IsMember(userID string) bool {
	return c.MemberA == userID || c.MemberB == userID
}

// PartnerOf returns the other member's ID, or "" if userID is not a member.
func (c Couple) PartnerOf(userID string) string {
	switch userID {
	case c.MemberA:
		return c.MemberB
	case c.MemberB:
		return c.MemberA
	}
	return ""
}

// InvitationValid reports whether the pending invitation is still
// acceptable at the given instant. Expiry is evaluated lazily; the record
// is not deleted when it lapses.
func (c Couple) InvitationValid(now time.Time) bool {
	return c.Status == CouplePending &&
		c.InvitationToken != "" &&
		!c.InvitationExpiry.IsZero() &&
		now.Before(c.InvitationExpiry)
}

// Activate flips a pending couple to active and clears the invitation
// secret. The caller is responsible for persisting both members' couple
// references in the same transaction.
func (c *Couple) Activate() error {
	if c.Status != CouplePending {
		return ErrInvalidTransition
	}
	c.Status = CoupleActive
	c.InvitationToken = ""
	c.InvitationExpiry = time.Time{}
	return nil
}

// ApplySettingsPatch merges the allow-listed fields into the couple.
func (c *Couple) ApplySettingsPatch(p CoupleSettingsPatch) error {
	if p.GoalContributionMethod != nil {
		if err := p.GoalContributionMethod.Validate(); err != nil {
			return err
		}
		c.Settings.GoalContributionMethod = *p.GoalContributionMethod
	}
	if p.ExpenseApprovalRequired != nil {
		c.Settings.ExpenseApprovalRequired = *p.ExpenseApprovalRequired
	}
	if p.ClearExpenseLimit {
		c.Settings.ExpenseLimitIndividual = nil
	} else if p.ExpenseLimitIndividual != nil {
		if *p.ExpenseLimitIndividual < 0 {
			return ErrInvalidAmount
		}
		limit := *p.ExpenseLimitIndividual
		c.Settings.ExpenseLimitIndividual = &limit
	}
	if p.Notifications != nil {
		c.Settings.Notifications = *p.Notifications
	}
	if p.Privacy != nil {
		c.Settings.Privacy = *p.Privacy
	}
	if p.SharedBudget != nil {
		if p.SharedBudget.Cents < 0 {
			return ErrInvalidAmount
		}
		c.SharedBudget = *p.SharedBudget
	}
	if p.BudgetPeriod != nil {
		if err := p.BudgetPeriod.Validate(); err != nil {
			return err
		}
		c.BudgetPeriod = *p.BudgetPeriod
	}
	return nil
}
