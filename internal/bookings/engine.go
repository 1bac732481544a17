package bookings

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"caddie_backend/internal/events"
	"caddie_backend/platform/apperr"
	"caddie_backend/platform/config"
	"caddie_backend/platform/logger"
)

const pgUniqueViolation = "23505"

// Engine is the booking transaction engine. One Create call is one atomic
// transaction spanning lead-time validation, bay reservation, reference
// generation, and the booking + anchor history inserts. The staff
// notification event is published only after commit.
type Engine struct {
	pool *pgxpool.Pool
	cfg  config.BookingConfig
	bus  events.Bus
	log  *logger.Logger
	now  func() time.Time
}

// NewEngine creates the booking transaction engine.
func NewEngine(pool *pgxpool.Pool, cfg config.BookingConfig, bus events.Bus, log *logger.Logger) *Engine {
	return &Engine{
		pool: pool,
		cfg:  cfg,
		bus:  bus,
		log:  log,
		now:  time.Now,
	}
}

// SetClock overrides the time source. Intended for tests.
func (e *Engine) SetClock(now func() time.Time) {
	e.now = now
}

// ValidateStartTime applies the temporal booking policies: the start must
// not be in the past and must respect the minimum lead time.
func ValidateStartTime(now, start time.Time, leadTime time.Duration) error {
	if start.Before(now) {
		return apperr.Policy(apperr.CodeBookingInPast, "requested time is in the past")
	}
	if start.Before(now.Add(leadTime)) {
		return apperr.Policy(apperr.CodeBookingTooSoon, "requested time is inside the minimum lead time")
	}
	return nil
}

// Create books a bay. On reference collision the whole transaction is
// retried with a fresh reference, up to a bounded number of attempts.
func (e *Engine) Create(ctx context.Context, params CreateParams) (Booking, error) {
	now := e.now()
	if err := ValidateStartTime(now, params.StartTime, e.cfg.GetBookingLeadTime()); err != nil {
		return Booking{}, err
	}
	if params.PlayerCount < 1 || params.PlayerCount > MaxPlayers {
		return Booking{}, apperr.Validation("player count out of range")
	}

	end := params.StartTime.Add(DefaultDuration)
	if params.EndTime != nil && params.EndTime.After(params.StartTime) {
		end = *params.EndTime
	}

	var lastErr error
	for attempt := 0; attempt < maxReferenceAttempts; attempt++ {
		reference := NewReference(e.cfg.GetBookingReferencePrefix())

		booking, err := e.createOnce(ctx, params, reference, end)
		if err == nil {
			e.publishCreated(ctx, booking)
			return booking, nil
		}
		if !isUniqueViolation(err, "bookings_reference_key") {
			return Booking{}, err
		}
		lastErr = err
		e.log.Warn("booking reference collision, regenerating", "reference", reference, "attempt", attempt+1)
	}

	return Booking{}, apperr.Wrap(apperr.KindInternal, "could not generate a unique booking reference", lastErr).
		WithCode(apperr.CodeReferenceExhausted)
}

func (e *Engine) createOnce(ctx context.Context, params CreateParams, reference string, end time.Time) (Booking, error) {
	tx, err := e.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return Booking{}, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	bayID, err := reserveBay(ctx, tx, params)
	if err != nil {
		return Booking{}, err
	}

	var booking Booking
	booking.Reference = reference
	err = tx.QueryRow(ctx, `
		INSERT INTO bookings
			(reference, member_id, venue_id, location_id, bay_id, start_time, end_time,
			 player_count, guest_names, notes, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		RETURNING id, created_at, updated_at
	`, reference, params.MemberID, params.VenueID, params.LocationID, bayID,
		params.StartTime, end, params.PlayerCount, params.GuestNames, params.Notes,
		string(StatusPending),
	).Scan(&booking.ID, &booking.CreatedAt, &booking.UpdatedAt)
	if err != nil {
		return Booking{}, err
	}

	// Anchor history row: previous == next == initial status.
	_, err = tx.Exec(ctx, `
		INSERT INTO booking_status_history (booking_id, reference, previous_status, next_status)
		VALUES ($1, $2, $3, $3)
	`, booking.ID, reference, string(StatusPending))
	if err != nil {
		return Booking{}, err
	}

	if err := tx.Commit(ctx); err != nil {
		return Booking{}, err
	}

	booking.MemberID = params.MemberID
	booking.VenueID = params.VenueID
	booking.LocationID = params.LocationID
	booking.BayID = &bayID
	booking.StartTime = params.StartTime
	booking.EndTime = end
	booking.PlayerCount = params.PlayerCount
	booking.GuestNames = params.GuestNames
	booking.Notes = params.Notes
	booking.Status = StatusPending
	return booking, nil
}

// reserveBay performs the conditional available -> booked transition. Only
// one concurrent reserve can win a given bay.
func reserveBay(ctx context.Context, tx pgx.Tx, params CreateParams) (uuid.UUID, error) {
	if params.BayID != nil {
		tag, err := tx.Exec(ctx, `
			UPDATE bays SET status = 'booked', updated_at = now()
			WHERE id = $1 AND location_id = $2 AND status = 'available'
		`, *params.BayID, params.LocationID)
		if err != nil {
			return uuid.Nil, err
		}
		if tag.RowsAffected() == 0 {
			return uuid.Nil, apperr.Policy(apperr.CodeBayUnavailable, "requested bay is not available")
		}
		return *params.BayID, nil
	}

	var bayID uuid.UUID
	err := tx.QueryRow(ctx, `
		UPDATE bays SET status = 'booked', updated_at = now()
		WHERE id = (
			SELECT id FROM bays
			WHERE location_id = $1 AND status = 'available'
			ORDER BY label
			LIMIT 1
			FOR UPDATE SKIP LOCKED
		)
		RETURNING id
	`, params.LocationID).Scan(&bayID)
	if errors.Is(err, pgx.ErrNoRows) {
		return uuid.Nil, apperr.Policy(apperr.CodeBayUnavailable, "no bays available at that location")
	}
	if err != nil {
		return uuid.Nil, err
	}
	return bayID, nil
}

func (e *Engine) publishCreated(ctx context.Context, booking Booking) {
	if e.bus == nil {
		return
	}

	var memberName, venueName, bayLabel string
	err := e.pool.QueryRow(ctx, `
		SELECT m.display_name, v.name, coalesce(b.label, '')
		FROM bookings bk
		JOIN members m ON m.id = bk.member_id
		JOIN venues v ON v.id = bk.venue_id
		LEFT JOIN bays b ON b.id = bk.bay_id
		WHERE bk.id = $1
	`, booking.ID).Scan(&memberName, &venueName, &bayLabel)
	if err != nil {
		e.log.DatabaseError("load booking event payload", err)
	}

	e.bus.Publish(ctx, events.BookingCreated{
		BaseEvent:   events.NewBaseEvent(),
		BookingID:   booking.ID,
		Reference:   booking.Reference,
		MemberID:    booking.MemberID,
		MemberName:  memberName,
		VenueName:   venueName,
		BayLabel:    bayLabel,
		StartTime:   booking.StartTime,
		PlayerCount: booking.PlayerCount,
	})
}

func isUniqueViolation(err error, constraint string) bool {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return false
	}
	return pgErr.Code == pgUniqueViolation && (constraint == "" || pgErr.ConstraintName == constraint)
}
