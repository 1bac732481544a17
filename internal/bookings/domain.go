// Package bookings provides the booking bounded context: the transactional
// creation engine, the status transition engine, and read access to stored
// bookings. All writes to a booking's status go through the transition
// engine so every change is paired with a history row.
package bookings

import (
	"time"

	"github.com/google/uuid"
)

// Status is the booking lifecycle enum.
type Status string

const (
	StatusPending          Status = "Pending"
	StatusConfirmed        Status = "Confirmed"
	StatusNotAvailable     Status = "NotAvailable"
	StatusCancelled        Status = "Cancelled"
	StatusFollowUpRequired Status = "FollowUpRequired"
)

// MaxPlayers bounds the player count accepted on a booking.
const MaxPlayers = 6

// DefaultDuration is assumed when no end time was given.
const DefaultDuration = time.Hour

// Booking is a reservation at a venue bay.
type Booking struct {
	ID          uuid.UUID
	Reference   string
	MemberID    uuid.UUID
	VenueID     uuid.UUID
	LocationID  uuid.UUID
	BayID       *uuid.UUID
	StartTime   time.Time
	EndTime     time.Time
	PlayerCount int
	GuestNames  string
	Notes       string
	Status      Status
	StaffActor  *string
	CancelledAt *time.Time
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// StatusHistory is one append-only audit row. The row written at creation
// has Previous == Next, anchoring response-time measurements.
type StatusHistory struct {
	ID        uuid.UUID
	BookingID uuid.UUID
	Reference string
	Previous  Status
	Next      Status
	Actor     *string
	Reason    *string
	CreatedAt time.Time
}

// CreateParams are the inputs to the booking transaction engine.
type CreateParams struct {
	MemberID    uuid.UUID
	VenueID     uuid.UUID
	LocationID  uuid.UUID
	BayID       *uuid.UUID // specific bay requested, or nil for first free
	StartTime   time.Time
	EndTime     *time.Time
	PlayerCount int
	GuestNames  string
	Notes       string
}

// TransitionParams are the inputs to the status transition engine.
type TransitionParams struct {
	Reference string
	Next      Status
	Actor     *string
	Reason    *string
}

// validNextStatuses restricts transitions out of each status. Terminal
// statuses allow no further movement.
var validNextStatuses = map[Status][]Status{
	StatusPending:          {StatusConfirmed, StatusNotAvailable, StatusCancelled, StatusFollowUpRequired},
	StatusConfirmed:        {StatusCancelled, StatusFollowUpRequired},
	StatusFollowUpRequired: {StatusConfirmed, StatusCancelled, StatusNotAvailable},
	StatusNotAvailable:     {},
	StatusCancelled:        {},
}

// CanTransition reports whether moving from to next is allowed.
func CanTransition(from, next Status) bool {
	for _, allowed := range validNextStatuses[from] {
		if allowed == next {
			return true
		}
	}
	return false
}

// Duration returns the booking's occupancy window length.
func (b Booking) Duration() time.Duration {
	if b.EndTime.After(b.StartTime) {
		return b.EndTime.Sub(b.StartTime)
	}
	return DefaultDuration
}
