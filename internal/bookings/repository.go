package bookings

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"caddie_backend/platform/apperr"
)

// Repository provides read access to stored bookings for status lookups
// and the cancel/modify flow resolution step.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a bookings read repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// LookupCriteria is the best-effort identification a member gives when
// they want to cancel or change a booking without quoting its reference.
type LookupCriteria struct {
	Reference string
	Date      *time.Time
	VenueName string
}

const bookingColumns = `
	bk.id, bk.reference, bk.member_id, bk.venue_id, bk.location_id, bk.bay_id,
	bk.start_time, bk.end_time, bk.player_count, bk.guest_names, bk.notes,
	bk.status, bk.staff_actor, bk.cancelled_at, bk.created_at, bk.updated_at`

func scanBooking(row pgx.Row) (Booking, error) {
	var b Booking
	err := row.Scan(
		&b.ID, &b.Reference, &b.MemberID, &b.VenueID, &b.LocationID, &b.BayID,
		&b.StartTime, &b.EndTime, &b.PlayerCount, &b.GuestNames, &b.Notes,
		&b.Status, &b.StaffActor, &b.CancelledAt, &b.CreatedAt, &b.UpdatedAt,
	)
	return b, err
}

// GetByReference retrieves a booking by its reference, scoped to a member
// so one member can never address another member's booking.
func (r *Repository) GetByReference(ctx context.Context, memberID uuid.UUID, reference string) (Booking, error) {
	b, err := scanBooking(r.pool.QueryRow(ctx, `
		SELECT `+bookingColumns+`
		FROM bookings bk
		WHERE bk.member_id = $1 AND upper(bk.reference) = upper($2)
	`, memberID, strings.TrimSpace(reference)))
	if errors.Is(err, pgx.ErrNoRows) {
		return Booking{}, apperr.NotFound("booking not found")
	}
	return b, err
}

// Find resolves lookup criteria to candidate bookings, most recent start
// first. Cancelled bookings are excluded: they cannot be acted on again.
func (r *Repository) Find(ctx context.Context, memberID uuid.UUID, criteria LookupCriteria) ([]Booking, error) {
	if strings.TrimSpace(criteria.Reference) != "" {
		b, err := r.GetByReference(ctx, memberID, criteria.Reference)
		if err != nil {
			if apperr.GetKind(err) == apperr.KindNotFound {
				return nil, nil
			}
			return nil, err
		}
		if b.Status == StatusCancelled {
			return nil, nil
		}
		return []Booking{b}, nil
	}

	query := `
		SELECT ` + bookingColumns + `
		FROM bookings bk
		JOIN venues v ON v.id = bk.venue_id
		WHERE bk.member_id = $1
		  AND bk.status NOT IN ('Cancelled', 'NotAvailable')`
	args := []interface{}{memberID}

	if criteria.Date != nil {
		args = append(args, *criteria.Date)
		query += ` AND bk.start_time::date = $` + strconv.Itoa(len(args)) + `::date`
	}
	if strings.TrimSpace(criteria.VenueName) != "" {
		args = append(args, "%"+strings.TrimSpace(criteria.VenueName)+"%")
		query += ` AND v.name ILIKE $` + strconv.Itoa(len(args))
	}
	query += ` ORDER BY bk.start_time DESC LIMIT 5`

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var results []Booking
	for rows.Next() {
		b, err := scanBooking(rows)
		if err != nil {
			return nil, err
		}
		results = append(results, b)
	}
	return results, rows.Err()
}

// ListUpcoming returns the member's future non-cancelled bookings.
func (r *Repository) ListUpcoming(ctx context.Context, memberID uuid.UUID, now time.Time) ([]Booking, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+bookingColumns+`
		FROM bookings bk
		WHERE bk.member_id = $1
		  AND bk.start_time >= $2
		  AND bk.status NOT IN ('Cancelled', 'NotAvailable')
		ORDER BY bk.start_time
		LIMIT 10
	`, memberID, now)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var results []Booking
	for rows.Next() {
		b, err := scanBooking(rows)
		if err != nil {
			return nil, err
		}
		results = append(results, b)
	}
	return results, rows.Err()
}

// History returns a booking's status history, oldest first.
func (r *Repository) History(ctx context.Context, bookingID uuid.UUID) ([]StatusHistory, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, booking_id, reference, previous_status, next_status, actor, reason, created_at
		FROM booking_status_history
		WHERE booking_id = $1
		ORDER BY created_at
	`, bookingID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var history []StatusHistory
	for rows.Next() {
		var h StatusHistory
		if err := rows.Scan(&h.ID, &h.BookingID, &h.Reference, &h.Previous, &h.Next, &h.Actor, &h.Reason, &h.CreatedAt); err != nil {
			return nil, err
		}
		history = append(history, h)
	}
	return history, rows.Err()
}
