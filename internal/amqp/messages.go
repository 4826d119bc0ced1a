package amqp

import (
	"encoding/json"
	"time"
)

// EventKind is the routing key of a domain event.
type EventKind string

const (
	EventCoupleInvited   EventKind = "couple.invited"
	EventCoupleActivated EventKind = "couple.activated"
	EventCoupleDissolved EventKind = "couple.dissolved"
	EventGoalMilestone   EventKind = "goal.milestone"
	EventGoalCompleted   EventKind = "goal.completed"
	EventExpenseCreated  EventKind = "expense.created"
)

// Event is the lightweight envelope published on domain changes. It carries
// IDs only; consumers fetch current state from the database, so a stale
// redelivery never overwrites newer data.
type Event struct {
	Kind      EventKind `json:"kind"`
	CoupleID  string    `json:"couple_id,omitempty"`
	UserID    string    `json:"user_id,omitempty"`
	EntityID  string    `json:"entity_id,omitempty"`
	Milestone int64     `json:"milestone_bps,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// NewEvent builds an event stamped with the current time.
func NewEvent(kind EventKind) *Event {
	return &Event{Kind: kind, Timestamp: time.Now()}
}

// ToJSON converts the event to JSON bytes.
func (e *Event) ToJSON() ([]byte, error) {
	return json.Marshal(e)
}

// EventFromJSON parses an event from JSON bytes.
func EventFromJSON(data []byte) (*Event, error) {
	var e Event
	if err := json.Unmarshal(data, &e); err != nil {
		return nil, err
	}
	return &e, nil
}
