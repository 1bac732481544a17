// Package venues provides the venue directory: venues, their sub-locations,
// and the bays members book. Bays are the only contended resource in the
// system; their state transitions live in the bookings transaction engine.
package venues

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"caddie_backend/platform/apperr"
	"caddie_backend/platform/cache"
)

// Bay status values. A reserve is only ever the conditional transition
// available -> booked; a release only ever returns booked -> available.
const (
	BayAvailable   = "available"
	BayBooked      = "booked"
	BayMaintenance = "maintenance"
)

// Venue is a bookable site (e.g. a club).
type Venue struct {
	ID       uuid.UUID
	Name     string
	IsActive bool
}

// Location is a sub-location within a venue (floor, wing, range section).
type Location struct {
	ID       uuid.UUID
	VenueID  uuid.UUID
	Name     string
	IsActive bool
}

// Bay is a single bookable unit at a location.
type Bay struct {
	ID         uuid.UUID
	LocationID uuid.UUID
	Label      string
	Status     string
}

const directoryCacheKey = "active_venues"

// Repository provides read access to the venue directory. The active-venue
// list is cached briefly; the cache is an optimization, never authoritative.
type Repository struct {
	pool      *pgxpool.Pool
	directory *cache.TTL[[]Venue]
	now       func() time.Time
}

// NewRepository creates a venues repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{
		pool:      pool,
		directory: cache.NewTTL[[]Venue](4, 30*time.Second),
		now:       time.Now,
	}
}

// SetClock overrides the time source for tests.
func (r *Repository) SetClock(now func() time.Time) {
	r.now = now
}

// ListActiveVenues returns all active venues, cached briefly.
func (r *Repository) ListActiveVenues(ctx context.Context) ([]Venue, error) {
	if cached, ok := r.directory.Get(directoryCacheKey); ok {
		return cached, nil
	}

	rows, err := r.pool.Query(ctx, `
		SELECT id, name, is_active
		FROM venues
		WHERE is_active = true
		ORDER BY name
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var venues []Venue
	for rows.Next() {
		var v Venue
		if err := rows.Scan(&v.ID, &v.Name, &v.IsActive); err != nil {
			return nil, err
		}
		venues = append(venues, v)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}

	r.directory.Set(directoryCacheKey, venues)
	return venues, nil
}

// GetVenue retrieves a venue by ID.
func (r *Repository) GetVenue(ctx context.Context, id uuid.UUID) (Venue, error) {
	var v Venue
	err := r.pool.QueryRow(ctx, `
		SELECT id, name, is_active FROM venues WHERE id = $1
	`, id).Scan(&v.ID, &v.Name, &v.IsActive)
	if errors.Is(err, pgx.ErrNoRows) {
		return Venue{}, apperr.NotFound("venue not found")
	}
	return v, err
}

// ListActiveLocations returns the active sub-locations of a venue.
func (r *Repository) ListActiveLocations(ctx context.Context, venueID uuid.UUID) ([]Location, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, venue_id, name, is_active
		FROM venue_locations
		WHERE venue_id = $1 AND is_active = true
		ORDER BY name
	`, venueID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var locations []Location
	for rows.Next() {
		var l Location
		if err := rows.Scan(&l.ID, &l.VenueID, &l.Name, &l.IsActive); err != nil {
			return nil, err
		}
		locations = append(locations, l)
	}
	return locations, rows.Err()
}

// CountAvailableBays reports how many bays at the location are reservable
// for the given window. A bay is free when it is available and has no
// overlapping non-cancelled booking.
func (r *Repository) CountAvailableBays(ctx context.Context, locationID uuid.UUID, start, end time.Time) (int, error) {
	var count int
	err := r.pool.QueryRow(ctx, `
		SELECT count(*)
		FROM bays b
		WHERE b.location_id = $1
		  AND b.status = 'available'
		  AND NOT EXISTS (
			SELECT 1 FROM bookings bk
			WHERE bk.bay_id = b.id
			  AND bk.status NOT IN ('Cancelled', 'NotAvailable')
			  AND bk.start_time < $3
			  AND bk.end_time > $2
		  )
	`, locationID, start, end).Scan(&count)
	return count, err
}

// SuggestAlternativeSlots returns up to limit alternative start times on the
// same day with at least one free bay, probing hourly around the requested
// time.
func (r *Repository) SuggestAlternativeSlots(ctx context.Context, locationID uuid.UUID, requested time.Time, duration time.Duration, limit int) ([]time.Time, error) {
	if limit < 1 {
		limit = 3
	}

	var slots []time.Time
	for _, candidate := range alternativeCandidates(requested, r.now()) {
		free, err := r.CountAvailableBays(ctx, locationID, candidate, candidate.Add(duration))
		if err != nil {
			return nil, err
		}
		if free > 0 {
			slots = append(slots, candidate)
			if len(slots) >= limit {
				break
			}
		}
	}
	return slots, nil
}

// alternativeCandidates walks hourly steps around the requested start,
// staying on the same day and in the future.
func alternativeCandidates(requested, now time.Time) []time.Time {
	offsets := []time.Duration{
		time.Hour, -time.Hour, 2 * time.Hour, -2 * time.Hour, 3 * time.Hour,
	}
	candidates := make([]time.Time, 0, len(offsets))
	for _, off := range offsets {
		candidate := requested.Add(off)
		if candidate.Day() != requested.Day() || candidate.Before(now) {
			continue
		}
		candidates = append(candidates, candidate)
	}
	return candidates
}
