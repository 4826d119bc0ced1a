package core

import "errors"

// Domain errors. Each belongs to one of four kinds so the transport layer
// can map them to a status code: validation, not found, conflict,
// authorization.
var (
	// Validation
	ErrInvalidAmount     = errors.New("invalid amount")
	ErrInvalidPercentage = errors.New("invalid percentage")
	ErrEmptyTitle        = errors.New("empty title")
	ErrNameTooLong       = errors.New("name too long")
	ErrInvalidCategory   = errors.New("invalid category")
	ErrInvalidPeriod     = errors.New("invalid budget period")
	ErrInvalidPriority   = errors.New("invalid priority")
	ErrInvalidMethod     = errors.New("invalid contribution method")

	// Not found
	ErrUserNotFound       = errors.New("user not found")
	ErrPartnerNotFound    = errors.New("partner not found")
	ErrCoupleNotFound     = errors.New("couple not found")
	ErrGoalNotFound       = errors.New("goal not found")
	ErrExpenseNotFound    = errors.New("expense not found")
	ErrInvitationNotFound = errors.New("invitation not found")

	// Conflict
	ErrAlreadyInCouple       = errors.New("user already in an active couple")
	ErrPartnerAlreadyCoupled = errors.New("partner already in an active couple")
	ErrSelfInvitation        = errors.New("cannot invite yourself")
	ErrInvitationExpired     = errors.New("invitation expired")
	ErrNotInCouple           = errors.New("user is not in a couple")
	ErrNoActiveCouple        = errors.New("no active couple for shared record")
	ErrInactiveGoal          = errors.New("goal is not active")
	ErrInvalidTransition     = errors.New("invalid status transition")
	ErrEmailTaken            = errors.New("email already registered")

	// Authorization
	ErrNotAuthorizedAccepter = errors.New("not the invited partner")
	ErrNotOwner              = errors.New("not the record owner")
	ErrInvalidCredentials    = errors.New("invalid credentials")
)

// IsValidation reports whether err is a malformed-input error.
func IsValidation(err error) bool {
	for _, e := range []error{
		ErrInvalidAmount, ErrInvalidPercentage, ErrEmptyTitle, ErrNameTooLong,
		ErrInvalidCategory, ErrInvalidPeriod, ErrInvalidPriority, ErrInvalidMethod,
	} {
		if errors.Is(err, e) {
			return true
		}
	}
	return false
}

// IsNotFound reports whether err means a referenced entity is absent.
func IsNotFound(err error) bool {
	for _, e := range []error{
		ErrUserNotFound, ErrPartnerNotFound, ErrCoupleNotFound,
		ErrGoalNotFound, ErrExpenseNotFound, ErrInvitationNotFound,
	} {
		if errors.Is(err, e) {
			return true
		}
	}
	return false
}

// IsConflict reports whether err is a state conflict.
func IsConflict(err error) bool {
	for _, e := range []error{
		ErrAlreadyInCouple, ErrPartnerAlreadyCoupled, ErrSelfInvitation,
		ErrInvitationExpired, ErrNotInCouple, ErrNoActiveCouple,
		ErrInactiveGoal, ErrInvalidTransition, ErrEmailTaken,
	} {
		if errors.Is(err, e) {
			return true
		}
	}
	return false
}

// IsAuthorization reports whether err means the actor is not permitted.
func IsAuthorization(err error) bool {
	for _, e := range []error{ErrNotAuthorizedAccepter, ErrNotOwner, ErrInvalidCredentials} {
		if errors.Is(err, e) {
			return true
		}
	}
	return false
}
