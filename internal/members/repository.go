// Package members provides the member bounded context: identity resolution
// by contact handle, onboarding progress, and booking-preference defaults.
package members

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"caddie_backend/platform/apperr"
)

// Member is a person reachable over the messaging channel. Members are
// deactivated, never hard-deleted.
type Member struct {
	ID                  uuid.UUID
	Phone               string
	DisplayName         string
	OnboardingCompleted bool
	Locale              string
	Timezone            string
	IsActive            bool
	CreatedAt           time.Time
	UpdatedAt           time.Time
}

// Preferences holds historical defaults used by confirm-default decisions.
type Preferences struct {
	PreferredVenueID *uuid.UUID
	UsualPlayerCount *int
}

// Repository provides data access for members.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a new members repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const memberColumns = `id, phone, display_name, onboarding_completed, locale, timezone, is_active, created_at, updated_at`

func scanMember(row pgx.Row) (Member, error) {
	var m Member
	err := row.Scan(
		&m.ID, &m.Phone, &m.DisplayName, &m.OnboardingCompleted,
		&m.Locale, &m.Timezone, &m.IsActive, &m.CreatedAt, &m.UpdatedAt,
	)
	return m, err
}

// GetByPhone retrieves a member by normalized phone handle.
func (r *Repository) GetByPhone(ctx context.Context, phone string) (Member, error) {
	m, err := scanMember(r.pool.QueryRow(ctx, `
		SELECT `+memberColumns+`
		FROM members
		WHERE phone = $1
	`, phone))
	if errors.Is(err, pgx.ErrNoRows) {
		return Member{}, apperr.NotFound("member not found")
	}
	return m, err
}

// GetByID retrieves a member by ID.
func (r *Repository) GetByID(ctx context.Context, id uuid.UUID) (Member, error) {
	m, err := scanMember(r.pool.QueryRow(ctx, `
		SELECT `+memberColumns+`
		FROM members
		WHERE id = $1
	`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return Member{}, apperr.NotFound("member not found")
	}
	return m, err
}

// Create inserts a member created on first inbound contact. The display
// name may be the transport profile name and is refined during onboarding.
func (r *Repository) Create(ctx context.Context, phone, displayName string) (Member, error) {
	return scanMember(r.pool.QueryRow(ctx, `
		INSERT INTO members (phone, display_name)
		VALUES ($1, $2)
		RETURNING `+memberColumns+`
	`, phone, displayName))
}

// CompleteOnboarding records the member's chosen name and timezone and
// marks onboarding done.
func (r *Repository) CompleteOnboarding(ctx context.Context, id uuid.UUID, displayName, timezone string) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE members
		SET display_name = $2, timezone = $3, onboarding_completed = true, updated_at = now()
		WHERE id = $1
	`, id, displayName, timezone)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return apperr.NotFound("member not found")
	}
	return nil
}

// Deactivate soft-deletes a member.
func (r *Repository) Deactivate(ctx context.Context, id uuid.UUID) error {
	_, err := r.pool.Exec(ctx, `
		UPDATE members SET is_active = false, updated_at = now()
		WHERE id = $1
	`, id)
	return err
}

// GetPreferences derives booking defaults from the member's confirmed
// booking history: the venue and player count they used most recently.
func (r *Repository) GetPreferences(ctx context.Context, id uuid.UUID) (Preferences, error) {
	var p Preferences
	err := r.pool.QueryRow(ctx, `
		SELECT venue_id, player_count
		FROM bookings
		WHERE member_id = $1 AND status IN ('Confirmed', 'Pending')
		ORDER BY created_at DESC
		LIMIT 1
	`, id).Scan(&p.PreferredVenueID, &p.UsualPlayerCount)
	if errors.Is(err, pgx.ErrNoRows) {
		return Preferences{}, nil
	}
	return p, err
}
