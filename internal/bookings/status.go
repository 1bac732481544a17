package bookings

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"caddie_backend/internal/events"
	"caddie_backend/platform/apperr"
	"caddie_backend/platform/config"
	"caddie_backend/platform/logger"
)

// StatusEngine is the only writer of booking status. Every transition runs
// in one transaction with its history row; a rejected transition writes
// nothing.
type StatusEngine struct {
	pool *pgxpool.Pool
	cfg  config.BookingConfig
	bus  events.Bus
	log  *logger.Logger
	now  func() time.Time
}

// NewStatusEngine creates the status transition engine.
func NewStatusEngine(pool *pgxpool.Pool, cfg config.BookingConfig, bus events.Bus, log *logger.Logger) *StatusEngine {
	return &StatusEngine{
		pool: pool,
		cfg:  cfg,
		bus:  bus,
		log:  log,
		now:  time.Now,
	}
}

// SetClock overrides the time source. Intended for tests.
func (e *StatusEngine) SetClock(now func() time.Time) {
	e.now = now
}

// CancellationDeadline returns the last instant a booking starting at
// start may still be cancelled.
func CancellationDeadline(start time.Time, window time.Duration) time.Time {
	return start.Add(-window)
}

// Transition moves a booking to the next status. Cancellations are checked
// against the configured cancellation window before anything is written.
func (e *StatusEngine) Transition(ctx context.Context, params TransitionParams) (Booking, error) {
	tx, err := e.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return Booking{}, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	booking, err := lockByReference(ctx, tx, params.Reference)
	if err != nil {
		return Booking{}, err
	}

	if !CanTransition(booking.Status, params.Next) {
		return Booking{}, apperr.Policy(apperr.CodeInvalidStatusTransition,
			"booking cannot move from "+string(booking.Status)+" to "+string(params.Next))
	}

	now := e.now()
	var cancelledAt *time.Time
	if params.Next == StatusCancelled {
		if !now.Before(CancellationDeadline(booking.StartTime, e.cfg.GetCancellationWindow())) {
			return Booking{}, apperr.Policy(apperr.CodeCancellationWindowExceeded,
				"the cancellation window for this booking has passed")
		}
		cancelledAt = &now
	}

	_, err = tx.Exec(ctx, `
		UPDATE bookings
		SET status = $2, staff_actor = coalesce($3, staff_actor),
		    cancelled_at = coalesce($4, cancelled_at), updated_at = now()
		WHERE id = $1
	`, booking.ID, string(params.Next), params.Actor, cancelledAt)
	if err != nil {
		return Booking{}, err
	}

	_, err = tx.Exec(ctx, `
		INSERT INTO booking_status_history (booking_id, reference, previous_status, next_status, actor, reason)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, booking.ID, booking.Reference, string(booking.Status), string(params.Next), params.Actor, params.Reason)
	if err != nil {
		return Booking{}, err
	}

	_, err = tx.Exec(ctx, `
		INSERT INTO audit_log (entity, entity_ref, action, actor, detail)
		VALUES ('booking', $1, 'status_transition', $2, $3)
	`, booking.Reference, params.Actor, string(booking.Status)+" -> "+string(params.Next))
	if err != nil {
		return Booking{}, err
	}

	// Cancelling frees the bay for rebooking.
	if params.Next == StatusCancelled && booking.BayID != nil {
		_, err = tx.Exec(ctx, `
			UPDATE bays SET status = 'available', updated_at = now()
			WHERE id = $1 AND status = 'booked'
		`, *booking.BayID)
		if err != nil {
			return Booking{}, err
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return Booking{}, err
	}

	previous := booking.Status
	booking.Status = params.Next
	booking.CancelledAt = cancelledAt

	if e.bus != nil {
		e.bus.Publish(ctx, events.BookingStatusChanged{
			BaseEvent: events.NewBaseEvent(),
			BookingID: booking.ID,
			Reference: booking.Reference,
			MemberID:  booking.MemberID,
			Previous:  string(previous),
			Next:      string(params.Next),
			Actor:     params.Actor,
			Reason:    params.Reason,
		})
	}

	return booking, nil
}

func lockByReference(ctx context.Context, tx pgx.Tx, reference string) (Booking, error) {
	var b Booking
	err := tx.QueryRow(ctx, `
		SELECT id, reference, member_id, venue_id, location_id, bay_id,
		       start_time, end_time, player_count, guest_names, notes,
		       status, staff_actor, cancelled_at, created_at, updated_at
		FROM bookings
		WHERE reference = $1
		FOR UPDATE
	`, reference).Scan(
		&b.ID, &b.Reference, &b.MemberID, &b.VenueID, &b.LocationID, &b.BayID,
		&b.StartTime, &b.EndTime, &b.PlayerCount, &b.GuestNames, &b.Notes,
		&b.Status, &b.StaffActor, &b.CancelledAt, &b.CreatedAt, &b.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return Booking{}, apperr.NotFound("booking not found")
	}
	return b, err
}
