package services

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"coppia/internal/amqp"
	"coppia/internal/core"
	"coppia/internal/storage"
)

// CoupleService orchestrates the relationship lifecycle: invite, accept,
// leave, settings. Domain events are published best-effort; a publish
// failure never fails the request.
type CoupleService struct {
	storage    *storage.SQLiteRepository
	amqpClient *amqp.Client
	now        func() time.Time
}

func NewCoupleService(storage *storage.SQLiteRepository, amqpClient *amqp.Client) *CoupleService {
	return &CoupleService{
		storage:    storage,
		amqpClient: amqpClient,
		now:        time.Now,
	}
}

// Invite creates a pending couple from inviter to the partner identified by
// email or user ID. The inviter must not already be in an active couple,
// neither may the partner, and self-invitations are rejected.
func (s *CoupleService) Invite(ctx context.Context, inviterID, partnerRef, name string) (*core.Couple, error) {
	inviter, err := s.storage.GetUser(ctx, inviterID)
	if err != nil {
		return nil, err
	}
	if _, err := s.storage.FindActiveCoupleOf(ctx, inviterID); err == nil {
		return nil, core.ErrAlreadyInCouple
	} else if !errors.Is(err, core.ErrCoupleNotFound) {
		return nil, err
	}

	partner, err := s.resolvePartner(ctx, partnerRef)
	if err != nil {
		return nil, err
	}
	if partner.ID == inviterID {
		return nil, core.ErrSelfInvitation
	}
	if _, err := s.storage.FindActiveCoupleOf(ctx, partner.ID); err == nil {
		return nil, core.ErrPartnerAlreadyCoupled
	} else if !errors.Is(err, core.ErrCoupleNotFound) {
		return nil, err
	}

	token, err := newInvitationToken()
	if err != nil {
		return nil, fmt.Errorf("generate invitation token: %w", err)
	}

	if name == "" {
		name = inviter.DisplayName() + " & " + partner.DisplayName()
	}
	couple := &core.Couple{
		MemberA:          inviter.ID,
		MemberB:          partner.ID,
		Name:             name,
		Status:           core.CouplePending,
		InvitationToken:  token,
		InvitationExpiry: s.now().Add(core.InvitationTTL).UTC(),
		BudgetPeriod:     core.PeriodMonthly,
		Settings:         core.DefaultCoupleSettings(),
	}
	if err := couple.Validate(); err != nil {
		return nil, err
	}
	if err := s.storage.CreateCouple(ctx, couple); err != nil {
		return nil, err
	}

	ev := amqp.NewEvent(amqp.EventCoupleInvited)
	ev.CoupleID = couple.ID
	ev.UserID = partner.ID
	s.publish(ctx, ev)

	return couple, nil
}

// resolvePartner accepts an email address or a user ID.
func (s *CoupleService) resolvePartner(ctx context.Context, ref string) (*core.User, error) {
	var (
		partner *core.User
		err     error
	)
	if strings.Contains(ref, "@") {
		partner, err = s.storage.GetUserByEmail(ctx, ref)
	} else {
		partner, err = s.storage.GetUser(ctx, ref)
	}
	if err != nil {
		if errors.Is(err, core.ErrUserNotFound) {
			return nil, core.ErrPartnerNotFound
		}
		return nil, err
	}
	return partner, nil
}

// Accept activates the pending couple matching the token. Only the invited
// partner may accept; expiry is checked lazily against the clock, and an
// accepter who joined another couple meanwhile is rejected.
func (s *CoupleService) Accept(ctx context.Context, accepterID, token string) (*core.Couple, error) {
	couple, err := s.storage.GetCoupleByToken(ctx, token)
	if err != nil {
		return nil, err
	}
	if couple.MemberB != accepterID {
		return nil, core.ErrNotAuthorizedAccepter
	}
	if !couple.InvitationValid(s.now()) {
		return nil, core.ErrInvitationExpired
	}
	if _, err := s.storage.FindActiveCoupleOf(ctx, accepterID); err == nil {
		return nil, core.ErrAlreadyInCouple
	} else if !errors.Is(err, core.ErrCoupleNotFound) {
		return nil, err
	}

	activated, err := s.storage.ActivateCouple(ctx, couple.ID)
	if err != nil {
		if errors.Is(err, storage.ErrStale) {
			// A concurrent accept won; the invitation is spent.
			return nil, core.ErrInvitationNotFound
		}
		return nil, err
	}

	ev := amqp.NewEvent(amqp.EventCoupleActivated)
	ev.CoupleID = activated.ID
	ev.UserID = accepterID
	s.publish(ctx, ev)

	return activated, nil
}

// Leave dissolves the member's active couple. Either member may leave; the
// record is deleted and both members are uncoupled. Other pending
// invitations involving either member are untouched.
func (s *CoupleService) Leave(ctx context.Context, userID string) error {
	couple, err := s.storage.FindActiveCoupleOf(ctx, userID)
	if err != nil {
		if errors.Is(err, core.ErrCoupleNotFound) {
			return core.ErrNotInCouple
		}
		return err
	}

	if err := s.storage.DissolveCouple(ctx, couple.ID); err != nil {
		return err
	}

	ev := amqp.NewEvent(amqp.EventCoupleDissolved)
	ev.CoupleID = couple.ID
	ev.UserID = userID
	s.publish(ctx, ev)

	return nil
}

// Current returns the member's active couple, or ErrNotInCouple.
func (s *CoupleService) Current(ctx context.Context, userID string) (*core.Couple, error) {
	couple, err := s.storage.FindActiveCoupleOf(ctx, userID)
	if errors.Is(err, core.ErrCoupleNotFound) {
		return nil, core.ErrNotInCouple
	}
	return couple, err
}

// PendingInvitations lists still-valid invitations where the user is the
// invited partner, newest first. Lapsed invitations are filtered out here.
func (s *CoupleService) PendingInvitations(ctx context.Context, userID string) ([]core.Couple, error) {
	all, err := s.storage.PendingInvitationsOf(ctx, userID)
	if err != nil {
		return nil, err
	}
	now := s.now()
	valid := all[:0]
	for _, c := range all {
		if c.InvitationValid(now) {
			valid = append(valid, c)
		}
	}
	return valid, nil
}

// UpdateSettings applies the allow-listed patch to the member's active
// couple. Either member may update settings.
func (s *CoupleService) UpdateSettings(ctx context.Context, userID string, patch core.CoupleSettingsPatch) (*core.Couple, error) {
	couple, err := s.Current(ctx, userID)
	if err != nil {
		return nil, err
	}
	if err := couple.ApplySettingsPatch(patch); err != nil {
		return nil, err
	}
	if err := s.storage.UpdateCoupleSettings(ctx, couple); err != nil {
		return nil, err
	}
	return couple, nil
}

// BudgetUsage reports the couple's shared spending against its budget for
// the period window containing now.
func (s *CoupleService) BudgetUsage(ctx context.Context, userID string) (*core.BudgetUsage, error) {
	couple, err := s.Current(ctx, userID)
	if err != nil {
		return nil, err
	}

	from, to := core.PeriodBounds(couple.BudgetPeriod, s.now())
	shared, err := s.storage.ListExpenses(ctx, storage.ExpenseFilter{
		CoupleID:   couple.ID,
		SharedOnly: true,
		From:       from,
		To:         to,
	})
	if err != nil {
		return nil, err
	}

	var used core.Money
	for _, e := range shared {
		used.Cents += core.SharedAmount(e).Cents
	}
	usage := core.ComputeBudgetUsage(couple.SharedBudget, used, couple.BudgetPeriod)
	return &usage, nil
}

func (s *CoupleService) publish(ctx context.Context, ev *amqp.Event) {
	if s.amqpClient == nil {
		return
	}
	if err := s.amqpClient.Publish(ctx, ev); err != nil {
		slog.ErrorContext(ctx, "Failed to publish domain event",
			"kind", ev.Kind, "error", err)
	}
}

// newInvitationToken returns 32 random bytes hex-encoded.
func newInvitationToken() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}
