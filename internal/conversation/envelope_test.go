package conversation

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"

	"caddie_backend/platform/logger"
)

// memoryFlowStateRows backs the store with a map for TTL and purge tests.
type memoryFlowStateRows struct {
	payloads  map[uuid.UUID][]byte
	updatedAt map[uuid.UUID]time.Time
	purged    int
}

func newMemoryFlowStateRows() *memoryFlowStateRows {
	return &memoryFlowStateRows{
		payloads:  map[uuid.UUID][]byte{},
		updatedAt: map[uuid.UUID]time.Time{},
	}
}

func (m *memoryFlowStateRows) read(_ context.Context, memberID uuid.UUID) ([]byte, time.Time, bool, error) {
	payload, ok := m.payloads[memberID]
	if !ok {
		return nil, time.Time{}, false, nil
	}
	return payload, m.updatedAt[memberID], true, nil
}

func (m *memoryFlowStateRows) write(_ context.Context, memberID uuid.UUID, payload []byte, at time.Time) error {
	m.payloads[memberID] = payload
	m.updatedAt[memberID] = at
	return nil
}

func (m *memoryFlowStateRows) purge(_ context.Context, memberID uuid.UUID) error {
	m.purged++
	delete(m.payloads, memberID)
	delete(m.updatedAt, memberID)
	return nil
}

func envelopeTestStore(rows flowStateRows, ttl time.Duration, now time.Time) *EnvelopeStore {
	store := &EnvelopeStore{rows: rows, ttl: ttl, log: logger.New("test"), now: time.Now}
	store.SetClock(func() time.Time { return now })
	return store
}

func TestEnvelopeStoreRoundTrip(t *testing.T) {
	now := time.Date(2026, 3, 14, 10, 0, 0, 0, time.UTC)
	rows := newMemoryFlowStateRows()
	store := envelopeTestStore(rows, time.Hour, now)
	memberID := uuid.New()

	reference := "CB-7KQ2MX"
	if err := store.Save(context.Background(), memberID, FlowCancelBooking, &CancelState{Reference: &reference}, SharedContext{SharedVenueName: "Topgolf"}); err != nil {
		t.Fatal(err)
	}

	env, err := store.Get(context.Background(), memberID)
	if err != nil {
		t.Fatal(err)
	}
	if env == nil || env.Flow != FlowCancelBooking {
		t.Fatalf("env = %+v", env)
	}
	var st CancelState
	if err := env.DecodeState(&st); err != nil {
		t.Fatal(err)
	}
	if st.Reference == nil || *st.Reference != reference {
		t.Fatalf("reference = %v", st.Reference)
	}
	if name, _ := env.Shared.GetString(SharedVenueName); name != "Topgolf" {
		t.Fatalf("shared venue = %q", name)
	}
}

// An envelope older than the TTL reads as absent and is purged, so the
// next turn starts a fresh flow.
func TestEnvelopeStoreExpiredStateIsAbsent(t *testing.T) {
	now := time.Date(2026, 3, 14, 10, 0, 0, 0, time.UTC)
	rows := newMemoryFlowStateRows()
	store := envelopeTestStore(rows, time.Hour, now)
	memberID := uuid.New()

	rows.payloads[memberID] = []byte(`{"flow":"new-booking","state":{}}`)
	rows.updatedAt[memberID] = now.Add(-2 * time.Hour)

	env, err := store.Get(context.Background(), memberID)
	if err != nil {
		t.Fatal(err)
	}
	if env != nil {
		t.Fatalf("expired envelope surfaced: %+v", env)
	}
	if rows.purged != 1 {
		t.Fatalf("purged %d times, want 1", rows.purged)
	}
}

// State a minute short of the TTL still surfaces.
func TestEnvelopeStoreFreshStateSurvives(t *testing.T) {
	now := time.Date(2026, 3, 14, 10, 0, 0, 0, time.UTC)
	rows := newMemoryFlowStateRows()
	store := envelopeTestStore(rows, time.Hour, now)
	memberID := uuid.New()

	rows.payloads[memberID] = []byte(`{"flow":"support","state":{}}`)
	rows.updatedAt[memberID] = now.Add(-59 * time.Minute)

	env, err := store.Get(context.Background(), memberID)
	if err != nil {
		t.Fatal(err)
	}
	if env == nil || env.Flow != FlowSupport {
		t.Fatalf("env = %+v", env)
	}
}

// Unreadable rows are discarded instead of poisoning every turn.
func TestEnvelopeStoreGarbageStateIsPurged(t *testing.T) {
	now := time.Date(2026, 3, 14, 10, 0, 0, 0, time.UTC)
	rows := newMemoryFlowStateRows()
	store := envelopeTestStore(rows, time.Hour, now)
	memberID := uuid.New()

	rows.payloads[memberID] = []byte(`not json`)
	rows.updatedAt[memberID] = now

	env, err := store.Get(context.Background(), memberID)
	if err != nil {
		t.Fatal(err)
	}
	if env != nil {
		t.Fatalf("garbage envelope surfaced: %+v", env)
	}
	if rows.purged != 1 {
		t.Fatalf("purged %d times, want 1", rows.purged)
	}
}

func TestDecodeEnvelopeCurrentShape(t *testing.T) {
	payload := []byte(`{"flow":"cancel-booking","state":{"reference":"CB-7KQ2MX"},"shared":{"venue_name":"Topgolf"}}`)
	env, err := decodeEnvelope(payload)
	if err != nil {
		t.Fatal(err)
	}
	if env.Flow != FlowCancelBooking {
		t.Fatalf("flow = %s", env.Flow)
	}
	var st CancelState
	if err := env.DecodeState(&st); err != nil {
		t.Fatal(err)
	}
	if st.Reference == nil || *st.Reference != "CB-7KQ2MX" {
		t.Fatalf("reference = %v", st.Reference)
	}
	if name, _ := env.Shared.GetString(SharedVenueName); name != "Topgolf" {
		t.Fatalf("shared venue = %q", name)
	}
}

// Rows written before envelopes existed hold the bare new-booking state.
func TestDecodeEnvelopeLegacyShape(t *testing.T) {
	payload := []byte(`{"venue_name":"Topgolf","date":"2026-03-15","players":2}`)
	env, err := decodeEnvelope(payload)
	if err != nil {
		t.Fatal(err)
	}
	if env.Flow != FlowNewBooking {
		t.Fatalf("legacy rows must decode as new-booking, got %s", env.Flow)
	}
	var st BookingState
	if err := env.DecodeState(&st); err != nil {
		t.Fatal(err)
	}
	if st.VenueName == nil || *st.VenueName != "Topgolf" {
		t.Fatalf("venue = %v", st.VenueName)
	}
	if st.Players == nil || *st.Players != 2 {
		t.Fatalf("players = %v", st.Players)
	}
}

func TestDecodeEnvelopeRejectsGarbage(t *testing.T) {
	if _, err := decodeEnvelope([]byte(`not json`)); err == nil {
		t.Fatal("expected an error")
	}
}

func TestSharedContextMerge(t *testing.T) {
	shared := SharedContext{SharedVenueName: "Topgolf", SharedDate: "2026-03-15"}
	shared.Merge(SharedContext{
		SharedDate:      "2026-03-16", // new value wins
		SharedVenueName: nil,          // nil deletes
		SharedPlayers:   3,
	})

	if _, ok := shared.GetString(SharedVenueName); ok {
		t.Fatal("nil merge value should delete the key")
	}
	if d, _ := shared.GetString(SharedDate); d != "2026-03-16" {
		t.Fatalf("date = %q", d)
	}
	if n, _ := shared.GetInt(SharedPlayers); n != 3 {
		t.Fatalf("players = %d", n)
	}
}

func TestSharedContextGetIntFromJSON(t *testing.T) {
	// Numbers round-trip through JSONB as float64.
	shared := SharedContext{SharedPlayers: float64(4)}
	if n, ok := shared.GetInt(SharedPlayers); !ok || n != 4 {
		t.Fatalf("GetInt = %d, %v", n, ok)
	}
}
