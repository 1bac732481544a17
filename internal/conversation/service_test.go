package conversation

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"

	"caddie_backend/internal/events"
	"caddie_backend/internal/members"
	"caddie_backend/platform/cache"
	"caddie_backend/platform/logger"
)

// memoryStore is an in-memory envelope store for orchestrator tests.
type memoryStore struct {
	envelopes map[uuid.UUID]*Envelope
	cleared   int
}

func newMemoryStore() *memoryStore {
	return &memoryStore{envelopes: map[uuid.UUID]*Envelope{}}
}

func (s *memoryStore) Get(_ context.Context, memberID uuid.UUID) (*Envelope, error) {
	return s.envelopes[memberID], nil
}

func (s *memoryStore) Save(_ context.Context, memberID uuid.UUID, flow Flow, state interface{}, shared SharedContext) error {
	raw, err := json.Marshal(state)
	if err != nil {
		return err
	}
	s.envelopes[memberID] = &Envelope{Flow: flow, State: raw, Shared: shared}
	return nil
}

func (s *memoryStore) Clear(_ context.Context, memberID uuid.UUID) error {
	s.cleared++
	delete(s.envelopes, memberID)
	return nil
}

type recordingBus struct {
	published []events.Event
}

func (b *recordingBus) Publish(_ context.Context, event events.Event) {
	b.published = append(b.published, event)
}

func serviceForSupport(store *memoryStore, bus *recordingBus) *Service {
	oracle := testOracle(&scriptClient{err: errAlwaysFails})
	return NewService(
		store,
		NewRouter(oracle),
		NewCorrectionDetector(oracle, cache.NewTTL[bool](8, time.Minute)),
		nil,
		bus,
		nil, nil, nil, nil, nil,
		NewSupportFlow(),
		logger.New("test"),
	)
}

func TestHandleMessageConfirmedHandoffReachesStaff(t *testing.T) {
	store := newMemoryStore()
	bus := &recordingBus{}
	svc := serviceForSupport(store, bus)

	member := members.Member{
		ID:                  uuid.New(),
		Phone:               "+31612345678",
		DisplayName:         "Sam",
		OnboardingCompleted: true,
		Timezone:            "UTC",
	}
	topic := "my bay screen was broken"
	state, err := json.Marshal(SupportState{Topic: &topic, Confirming: true})
	if err != nil {
		t.Fatal(err)
	}
	store.envelopes[member.ID] = &Envelope{Flow: FlowSupport, State: state}

	reply, err := svc.HandleMessage(context.Background(), member, "yes")
	if err != nil {
		t.Fatal(err)
	}
	if reply.Text == "" {
		t.Fatal("member must get the acknowledgement")
	}
	if store.cleared != 1 {
		t.Fatalf("envelope cleared %d times, want 1", store.cleared)
	}

	if len(bus.published) != 1 {
		t.Fatalf("published %d events, want 1", len(bus.published))
	}
	handoff, ok := bus.published[0].(events.SupportHandoffRequested)
	if !ok {
		t.Fatalf("event = %T, want SupportHandoffRequested", bus.published[0])
	}
	if handoff.Topic != topic {
		t.Errorf("topic = %q", handoff.Topic)
	}
	if handoff.MemberID != member.ID || handoff.Phone != member.Phone {
		t.Errorf("member fields not carried: %+v", handoff)
	}
}

// A declined handoff stays mid-flow and must not reach staff.
func TestHandleMessageDeclinedHandoffPublishesNothing(t *testing.T) {
	store := newMemoryStore()
	bus := &recordingBus{}
	svc := serviceForSupport(store, bus)

	member := members.Member{ID: uuid.New(), DisplayName: "Sam", OnboardingCompleted: true, Timezone: "UTC"}
	topic := "membership pricing"
	state, err := json.Marshal(SupportState{Topic: &topic, Confirming: true})
	if err != nil {
		t.Fatal(err)
	}
	store.envelopes[member.ID] = &Envelope{Flow: FlowSupport, State: state}

	if _, err := svc.HandleMessage(context.Background(), member, "no"); err != nil {
		t.Fatal(err)
	}
	if len(bus.published) != 0 {
		t.Fatalf("published %d events, want 0", len(bus.published))
	}
}
