package conversation

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"caddie_backend/platform/config"
	"caddie_backend/platform/logger"
)

// SharedContext carries fields meaningful across flows, so a member who
// abandons a booking and starts another does not repeat themselves. Keys
// are flow-agnostic strings; a nil value in a merge deletes the key.
type SharedContext map[string]interface{}

// Shared context keys.
const (
	SharedVenueID    = "venue_id"
	SharedVenueName  = "venue_name"
	SharedLocationID = "location_id"
	SharedDate       = "date"
	SharedTime       = "time"
	SharedPlayers    = "players"
)

// Merge applies updates onto s: new keys win, nil deletes.
func (s SharedContext) Merge(updates SharedContext) {
	for k, v := range updates {
		if v == nil {
			delete(s, k)
			continue
		}
		s[k] = v
	}
}

// GetString returns a string value by key.
func (s SharedContext) GetString(key string) (string, bool) {
	v, ok := s[key].(string)
	return v, ok
}

// GetInt returns an integer value by key. JSON round-trips store numbers as
// float64.
func (s SharedContext) GetInt(key string) (int, bool) {
	switch v := s[key].(type) {
	case int:
		return v, true
	case float64:
		return int(v), true
	}
	return 0, false
}

// Envelope wraps one flow's private state with the cross-flow shared
// context. At most one exists per member.
type Envelope struct {
	Flow      Flow            `json:"flow"`
	State     json.RawMessage `json:"state"`
	Shared    SharedContext   `json:"shared,omitempty"`
	UpdatedAt time.Time       `json:"-"`
}

// DecodeState unmarshals the per-flow state record.
func (e *Envelope) DecodeState(out interface{}) error {
	if len(e.State) == 0 {
		return nil
	}
	return json.Unmarshal(e.State, out)
}

// flowStateRows is the row access the store drives: one payload and
// timestamp per member.
type flowStateRows interface {
	read(ctx context.Context, memberID uuid.UUID) (payload []byte, updatedAt time.Time, found bool, err error)
	write(ctx context.Context, memberID uuid.UUID, payload []byte, at time.Time) error
	purge(ctx context.Context, memberID uuid.UUID) error
}

// EnvelopeStore persists flow envelopes with a bounded lifetime. Envelopes
// older than the TTL are treated as absent and purged on read.
type EnvelopeStore struct {
	rows flowStateRows
	ttl  time.Duration
	log  *logger.Logger
	now  func() time.Time
}

// NewEnvelopeStore creates the store.
func NewEnvelopeStore(pool *pgxpool.Pool, cfg config.ConversationConfig, log *logger.Logger) *EnvelopeStore {
	return &EnvelopeStore{rows: &flowStateTable{pool: pool}, ttl: cfg.GetStateTTL(), log: log, now: time.Now}
}

// SetClock overrides the time source for tests.
func (s *EnvelopeStore) SetClock(now func() time.Time) {
	s.now = now
}

// Get reads the member's envelope. Expired state is deleted and reported
// as absent, so the next turn starts a fresh flow.
func (s *EnvelopeStore) Get(ctx context.Context, memberID uuid.UUID) (*Envelope, error) {
	payload, updatedAt, found, err := s.rows.read(ctx, memberID)
	if err != nil {
		return nil, fmt.Errorf("read flow state: %w", err)
	}
	if !found {
		return nil, nil
	}

	if s.now().Sub(updatedAt) > s.ttl {
		if err := s.Clear(ctx, memberID); err != nil {
			s.log.DatabaseError("purge_expired_flow_state", err)
		}
		return nil, nil
	}

	env, err := decodeEnvelope(payload)
	if err != nil {
		// Unreadable state is discarded rather than poisoning every turn.
		s.log.DatabaseError("decode_flow_state", err)
		if err := s.Clear(ctx, memberID); err != nil {
			s.log.DatabaseError("purge_bad_flow_state", err)
		}
		return nil, nil
	}
	env.UpdatedAt = updatedAt
	return env, nil
}

// Save upserts the envelope, merging sharedUpdates into any previously
// stored shared context. Only the enveloped shape is ever written.
func (s *EnvelopeStore) Save(ctx context.Context, memberID uuid.UUID, flow Flow, state interface{}, sharedUpdates SharedContext) error {
	raw, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("encode flow state: %w", err)
	}

	shared := SharedContext{}
	existing, _, found, err := s.rows.read(ctx, memberID)
	if err != nil {
		return fmt.Errorf("read flow state: %w", err)
	}
	if found && len(existing) > 0 {
		if env, decErr := decodeEnvelope(existing); decErr == nil && env.Shared != nil {
			shared = env.Shared
		}
	}
	shared.Merge(sharedUpdates)

	payload, err := json.Marshal(Envelope{Flow: flow, State: raw, Shared: shared})
	if err != nil {
		return fmt.Errorf("encode envelope: %w", err)
	}
	if err := s.rows.write(ctx, memberID, payload, s.now()); err != nil {
		return fmt.Errorf("write flow state: %w", err)
	}
	return nil
}

// Clear deletes the member's envelope unconditionally.
func (s *EnvelopeStore) Clear(ctx context.Context, memberID uuid.UUID) error {
	return s.rows.purge(ctx, memberID)
}

// flowStateTable is the pgx-backed row access.
type flowStateTable struct {
	pool *pgxpool.Pool
}

func (t *flowStateTable) read(ctx context.Context, memberID uuid.UUID) ([]byte, time.Time, bool, error) {
	var payload []byte
	var updatedAt time.Time
	err := t.pool.QueryRow(ctx, `
		SELECT payload, updated_at FROM flow_states WHERE member_id = $1
	`, memberID).Scan(&payload, &updatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, time.Time{}, false, nil
	}
	if err != nil {
		return nil, time.Time{}, false, err
	}
	return payload, updatedAt, true, nil
}

func (t *flowStateTable) write(ctx context.Context, memberID uuid.UUID, payload []byte, at time.Time) error {
	_, err := t.pool.Exec(ctx, `
		INSERT INTO flow_states (member_id, payload, updated_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (member_id) DO UPDATE SET payload = $2, updated_at = $3
	`, memberID, payload, at)
	return err
}

func (t *flowStateTable) purge(ctx context.Context, memberID uuid.UUID) error {
	_, err := t.pool.Exec(ctx, `DELETE FROM flow_states WHERE member_id = $1`, memberID)
	return err
}

// decodeEnvelope reads a stored payload. The current shape carries a flow
// discriminator; older deployments stored the bare new-booking state with
// no wrapper, and those rows decode as a new-booking envelope. This is the
// only place that knows about the legacy shape.
func decodeEnvelope(payload []byte) (*Envelope, error) {
	var head struct {
		Flow Flow `json:"flow"`
	}
	if err := json.Unmarshal(payload, &head); err != nil {
		return nil, err
	}
	if head.Flow != "" {
		var env Envelope
		if err := json.Unmarshal(payload, &env); err != nil {
			return nil, err
		}
		return &env, nil
	}
	return &Envelope{Flow: FlowNewBooking, State: json.RawMessage(payload)}, nil
}
