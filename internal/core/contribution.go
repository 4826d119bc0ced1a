package core

import "time"

// ContributionKind distinguishes forward contributions from withdrawals in
// the ledger. Withdrawals are stored with a positive amount and their kind,
// never as negative contributions.
type ContributionKind string

const (
	KindContribution ContributionKind = "contribution"
	KindWithdrawal   ContributionKind = "withdrawal"
)

// ContributionEvent is an immutable ledger row recorded against a goal.
type ContributionEvent struct {
	ID        string
	GoalID    string
	UserID    string
	Kind      ContributionKind
	Amount    Money
	Note      string
	CreatedAt time.Time
}

// Validate checks the event shape; amounts are always positive.
func (e ContributionEvent) Validate() error {
	if e.GoalID == "" || e.UserID == "" {
		return ErrGoalNotFound
	}
	if e.Kind != KindContribution && e.Kind != KindWithdrawal {
		return ErrInvalidMethod
	}
	return e.Amount.Validate()
}
