package core

// Split calculator: pure functions that turn an expense or goal plus a
// split policy into per-member amounts. Nothing here touches storage or
// mutates its inputs.

// SharedAmount returns the portion of the expense attributed to the couple.
// Zero when the expense is not shared.
func SharedAmount(e Expense) Money {
	if !e.IsShared {
		return Money{}
	}
	return e.Amount.ApplyPercent(e.SharedPercentage)
}

// PersonalAmount returns the owner's own portion. Defined as the exact
// complement of SharedAmount so the two always sum to the stored amount.
func PersonalAmount(e Expense) Money {
	return e.Amount.Sub(SharedAmount(e))
}

// ContributionTargets is the per-member division of a goal's target.
type ContributionTargets struct {
	MemberAShare Money
	MemberBShare Money
}

// ResolveContributionTargets computes each member's share of the goal's
// target under its contribution method.
//
// equal: half each, rounded half-to-even. percentage: target scaled by the
// stored percentages, which were validated to sum to 100 at goal
// create/update time and are not re-checked here. custom: the stored
// amounts verbatim, with no cross-check against the target.
func ResolveContributionTargets(g Goal) (ContributionTargets, error) {
	switch g.ContributionMethod {
	case MethodEqual:
		half := g.TargetAmount.Half()
		return ContributionTargets{MemberAShare: half, MemberBShare: half}, nil
	case MethodPercentage:
		return ContributionTargets{
			MemberAShare: g.TargetAmount.ApplyPercent(g.ContributionSettings.MemberAPercentage),
			MemberBShare: g.TargetAmount.ApplyPercent(g.ContributionSettings.MemberBPercentage),
		}, nil
	case MethodCustom:
		return ContributionTargets{
			MemberAShare: g.ContributionSettings.MemberAAmount,
			MemberBShare: g.ContributionSettings.MemberBAmount,
		}, nil
	}
	return ContributionTargets{}, ErrInvalidMethod
}
