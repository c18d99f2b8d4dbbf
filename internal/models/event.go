package models

import "time"

// EventStatus tracks where an event sits on the calendar. Events carry no
// approval workflow.
type EventStatus string

const (
	EventStatusUpcoming  EventStatus = "upcoming"
	EventStatusOngoing   EventStatus = "ongoing"
	EventStatusCompleted EventStatus = "completed"
)

// Event represents a persisted calendar event row.
type Event struct {
	ID          string      `db:"id" json:"id"`
	Title       string      `db:"title" json:"title"`
	Description string      `db:"description" json:"description"`
	Department  string      `db:"department" json:"department"`
	EventDate   time.Time   `db:"event_date" json:"event_date"`
	Status      EventStatus `db:"status" json:"status"`
	CreatedBy   string      `db:"created_by" json:"created_by"`
	CreatedAt   time.Time   `db:"created_at" json:"created_at"`
}

// EventFilter captures listing criteria for events.
type EventFilter struct {
	Department string
	Status     string
	HeldOn     *time.Time
}
