package webhook

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Message directions in the conversation log.
const (
	DirectionInbound  = "inbound"
	DirectionOutbound = "outbound"
)

// Repository persists dedup records and the conversation message log.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a webhook repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// ClaimDedup records a delivery for the (member, hash) pair. It returns
// false when an unexpired record already exists, meaning this delivery is
// a duplicate. A conflicting concurrent insert means another delivery won
// the race and is reported as a duplicate too, never as an error.
func (r *Repository) ClaimDedup(ctx context.Context, memberID uuid.UUID, contentHash string, now time.Time, window time.Duration) (bool, error) {
	var expiresAt time.Time
	err := r.pool.QueryRow(ctx, `
		SELECT expires_at FROM message_dedup
		WHERE member_id = $1 AND content_hash = $2
	`, memberID, contentHash).Scan(&expiresAt)
	switch {
	case err == nil:
		if now.Before(expiresAt) {
			return false, nil
		}
		_, err = r.pool.Exec(ctx, `
			DELETE FROM message_dedup WHERE member_id = $1 AND content_hash = $2
		`, memberID, contentHash)
		if err != nil {
			return false, fmt.Errorf("expire dedup record: %w", err)
		}
	case !errors.Is(err, pgx.ErrNoRows):
		return false, fmt.Errorf("read dedup record: %w", err)
	}

	tag, err := r.pool.Exec(ctx, `
		INSERT INTO message_dedup (member_id, content_hash, received_at, expires_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (member_id, content_hash) DO NOTHING
	`, memberID, contentHash, now, now.Add(window))
	if err != nil {
		return false, fmt.Errorf("insert dedup record: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

// LastInboundAt returns when the member's most recent inbound message was
// logged, or nil if there is none.
func (r *Repository) LastInboundAt(ctx context.Context, memberID uuid.UUID) (*time.Time, error) {
	var at time.Time
	err := r.pool.QueryRow(ctx, `
		SELECT created_at FROM conversation_messages
		WHERE member_id = $1 AND direction = $2
		ORDER BY created_at DESC
		LIMIT 1
	`, memberID, DirectionInbound).Scan(&at)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &at, nil
}

// MessageLog is one entry in the conversation log. Body must already be
// redacted by the caller.
type MessageLog struct {
	MemberID          uuid.UUID
	Direction         string
	Body              string
	ProviderMessageID string
	Flow              string
	Decision          string
}

// LogMessage appends one redacted message to the conversation log.
func (r *Repository) LogMessage(ctx context.Context, entry MessageLog, at time.Time) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO conversation_messages (id, member_id, direction, body, provider_message_id, flow, decision, created_at)
		VALUES ($1, $2, $3, $4, NULLIF($5, ''), NULLIF($6, ''), NULLIF($7, ''), $8)
	`, uuid.New(), entry.MemberID, entry.Direction, entry.Body,
		entry.ProviderMessageID, entry.Flow, entry.Decision, at)
	if err != nil {
		return fmt.Errorf("log message: %w", err)
	}
	return nil
}

// RecordDeliveryStatus stores the provider-side delivery status on the
// outbound message it refers to.
func (r *Repository) RecordDeliveryStatus(ctx context.Context, providerMessageID, status string) error {
	_, err := r.pool.Exec(ctx, `
		UPDATE conversation_messages
		SET delivery_status = $2
		WHERE provider_message_id = $1 AND direction = $3
	`, providerMessageID, status, DirectionOutbound)
	return err
}
