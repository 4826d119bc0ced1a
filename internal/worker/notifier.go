// Package worker turns domain events into notification intents and
// keeps the monthly summary export fresh.
package worker

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"coppia/internal/amqp"
	"coppia/internal/cache"
	"coppia/internal/core"
	"coppia/internal/export"
	"coppia/internal/storage"
)

// Notifier consumes domain events. Delivery of notifications is an
// external collaborator; this worker resolves the couple's settings,
// logs the intent, and for shared expenses refreshes the export.
type Notifier struct {
	storage  *storage.SQLiteRepository
	exporter export.SummaryWriter // nil disables exporting
	couples  *cache.LRU[*core.Couple]

	now func() time.Time
}

func NewNotifier(storage *storage.SQLiteRepository, exporter export.SummaryWriter) *Notifier {
	return &Notifier{
		storage:  storage,
		exporter: exporter,
		couples:  cache.NewLRU[*core.Couple](256, time.Minute),
		now:      time.Now,
	}
}

// coupleOf reads through the cache. Settings changes take up to the TTL
// to be noticed, acceptable for notification toggles.
func (n *Notifier) coupleOf(ctx context.Context, id string) (*core.Couple, error) {
	if c, ok := n.couples.Get(id); ok {
		return c, nil
	}
	c, err := n.storage.GetCouple(ctx, id)
	if err != nil {
		return nil, err
	}
	n.couples.Set(id, c)
	return c, nil
}

// Handle processes one event. A returned error requeues the delivery,
// so lookups that can succeed on retry bubble up while irrelevant or
// suppressed events are dropped silently.
func (n *Notifier) Handle(ctx context.Context, ev *amqp.Event) error {
	switch ev.Kind {
	case amqp.EventCoupleInvited:
		slog.InfoContext(ctx, "Notify: partner invited",
			"couple_id", ev.CoupleID, "user_id", ev.UserID)
		return nil

	case amqp.EventCoupleActivated:
		slog.InfoContext(ctx, "Notify: couple activated",
			"couple_id", ev.CoupleID, "user_id", ev.UserID)
		return nil

	case amqp.EventCoupleDissolved:
		// The couple row is gone by the time this arrives; notify from
		// the envelope alone.
		n.couples.Delete(ev.CoupleID)
		slog.InfoContext(ctx, "Notify: couple dissolved",
			"couple_id", ev.CoupleID, "user_id", ev.UserID)
		return nil

	case amqp.EventGoalMilestone:
		return n.handleGoalEvent(ctx, ev, fmt.Sprintf("milestone %.0f%% reached", float64(ev.Milestone)/100))

	case amqp.EventGoalCompleted:
		return n.handleGoalEvent(ctx, ev, "goal completed")

	case amqp.EventExpenseCreated:
		return n.handleSharedExpense(ctx, ev)
	}

	slog.WarnContext(ctx, "Dropping event of unknown kind", "kind", ev.Kind)
	return nil
}

func (n *Notifier) handleGoalEvent(ctx context.Context, ev *amqp.Event, what string) error {
	if ev.CoupleID == "" {
		// Personal goal, nobody else to notify.
		return nil
	}
	couple, err := n.coupleOf(ctx, ev.CoupleID)
	if err != nil {
		if core.IsNotFound(err) {
			return nil
		}
		return fmt.Errorf("get couple %s: %w", ev.CoupleID, err)
	}
	if !couple.Settings.Notifications.GoalReminders {
		return nil
	}
	slog.InfoContext(ctx, "Notify: "+what,
		"couple_id", couple.ID,
		"goal_id", ev.EntityID,
		"user_id", ev.UserID)
	return nil
}

func (n *Notifier) handleSharedExpense(ctx context.Context, ev *amqp.Event) error {
	if ev.CoupleID == "" {
		return nil
	}
	couple, err := n.coupleOf(ctx, ev.CoupleID)
	if err != nil {
		if core.IsNotFound(err) {
			return nil
		}
		return fmt.Errorf("get couple %s: %w", ev.CoupleID, err)
	}

	if couple.Settings.Notifications.ExpenseAlerts {
		slog.InfoContext(ctx, "Notify: shared expense recorded",
			"couple_id", couple.ID,
			"expense_id", ev.EntityID,
			"user_id", ev.UserID)
	}

	if n.exporter == nil {
		return nil
	}
	return n.exportMonth(ctx, couple, ev.Timestamp)
}

// exportMonth rewrites the summary block for the month the expense
// landed in. Events carry their own timestamp so redeliveries export
// the right month even across a month boundary.
func (n *Notifier) exportMonth(ctx context.Context, couple *core.Couple, at time.Time) error {
	if at.IsZero() {
		at = n.now()
	}
	at = at.UTC()
	from := time.Date(at.Year(), at.Month(), 1, 0, 0, 0, 0, time.UTC)
	to := from.AddDate(0, 1, 0)

	totals, err := n.storage.TotalsByCategory(ctx, storage.ReportScope{CoupleID: couple.ID}, from, to)
	if err != nil {
		return fmt.Errorf("month totals for couple %s: %w", couple.ID, err)
	}

	var total core.Money
	for _, ct := range totals {
		total.Cents += ct.Total.Cents
	}

	summary := export.MonthlySummary{
		CoupleName: couple.Name,
		Month:      from.Format("2006-01"),
		Categories: totals,
		Total:      total,
	}
	if err := n.exporter.WriteMonthlySummary(ctx, summary); err != nil {
		return fmt.Errorf("export summary %s: %w", summary.Month, err)
	}
	return nil
}
