package webhook

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"caddie_backend/internal/conversation"
	"caddie_backend/internal/members"
	"caddie_backend/platform/logger"
)

type stubResolver struct {
	member members.Member
	err    error
	panics bool
}

func (r *stubResolver) ResolveOrCreate(_ context.Context, _, _ string) (members.Resolution, error) {
	if r.panics {
		panic("resolver exploded")
	}
	if r.err != nil {
		return members.Resolution{}, r.err
	}
	return members.Resolution{Member: r.member}, nil
}

type stubConversation struct {
	reply conversation.Reply
	err   error
	calls int
}

func (c *stubConversation) HandleMessage(_ context.Context, _ members.Member, _ string) (conversation.Reply, error) {
	c.calls++
	return c.reply, c.err
}

// memoryInboundLog scripts the dedup and debounce reads and records every
// transcript write.
type memoryInboundLog struct {
	fresh       bool
	lastInbound *time.Time
	entries     []MessageLog
}

func (l *memoryInboundLog) ClaimDedup(_ context.Context, _ uuid.UUID, _ string, _ time.Time, _ time.Duration) (bool, error) {
	return l.fresh, nil
}

func (l *memoryInboundLog) LastInboundAt(_ context.Context, _ uuid.UUID) (*time.Time, error) {
	return l.lastInbound, nil
}

func (l *memoryInboundLog) LogMessage(_ context.Context, entry MessageLog, _ time.Time) error {
	l.entries = append(l.entries, entry)
	return nil
}

func (l *memoryInboundLog) RecordDeliveryStatus(_ context.Context, _, _ string) error {
	return nil
}

// A service with zero dedup and debounce windows never touches the
// repository before member resolution, so these paths run without a
// database.
func boundaryTestService(resolver memberResolver, conv conversationHandler) *Service {
	return NewService(nil, resolver, conv, webhookTestConfig{token: "topsecret"}, logger.New("test"))
}

func TestProcessResolutionFailureDegradesToApology(t *testing.T) {
	svc := boundaryTestService(&stubResolver{err: errors.New("db down")}, &stubConversation{})

	reply := svc.Process(context.Background(), Inbound{From: "+31612345678", Body: "hi"})
	if reply != apology {
		t.Errorf("reply = %q, want apology", reply)
	}
}

func TestProcessPanicDegradesToApology(t *testing.T) {
	svc := boundaryTestService(&stubResolver{panics: true}, &stubConversation{})

	reply := svc.Process(context.Background(), Inbound{From: "+31612345678", Body: "hi"})
	if reply != apology {
		t.Errorf("reply = %q, want apology", reply)
	}
}

func pipelineTestService(repo *memoryInboundLog, conv *stubConversation, cfg webhookTestConfig) *Service {
	resolver := &stubResolver{member: members.Member{ID: uuid.New(), Phone: "+31612345678", OnboardingCompleted: true}}
	svc := NewService(repo, resolver, conv, cfg, logger.New("test"))
	svc.SetClock(func() time.Time { return time.Date(2026, 3, 14, 10, 0, 0, 0, time.UTC) })
	return svc
}

// A second delivery of the same content inside the dedup window yields an
// empty acknowledgement and never reaches the flow.
func TestProcessDuplicateDeliverySuppressed(t *testing.T) {
	repo := &memoryInboundLog{fresh: false}
	conv := &stubConversation{reply: conversation.Reply{Text: "should not be sent"}}
	svc := pipelineTestService(repo, conv, webhookTestConfig{token: "topsecret", dedup: time.Minute})

	reply := svc.Process(context.Background(), Inbound{From: "+31612345678", Body: "book a bay"})
	if reply != "" {
		t.Errorf("reply = %q, want empty", reply)
	}
	if conv.calls != 0 {
		t.Errorf("flow invoked %d times on a duplicate", conv.calls)
	}
	if len(repo.entries) != 0 {
		t.Errorf("duplicate logged %d entries, want 0", len(repo.entries))
	}
}

// A rapid-fire second message inside the debounce window is logged for the
// transcript but produces no flow turn and no reply.
func TestProcessDebouncedDeliveryLoggedNotDispatched(t *testing.T) {
	last := time.Date(2026, 3, 14, 9, 59, 58, 0, time.UTC)
	repo := &memoryInboundLog{fresh: true, lastInbound: &last}
	conv := &stubConversation{reply: conversation.Reply{Text: "should not be sent"}}
	svc := pipelineTestService(repo, conv, webhookTestConfig{token: "topsecret", dedup: time.Minute, debounce: 5 * time.Second})

	reply := svc.Process(context.Background(), Inbound{From: "+31612345678", Body: "and one more thing"})
	if reply != "" {
		t.Errorf("reply = %q, want empty", reply)
	}
	if conv.calls != 0 {
		t.Errorf("flow invoked %d times on a debounced message", conv.calls)
	}
	if len(repo.entries) != 1 || repo.entries[0].Direction != DirectionInbound {
		t.Fatalf("entries = %+v, want one inbound log", repo.entries)
	}
}

// A fresh delivery runs the flow exactly once and logs both directions.
func TestProcessFreshDeliveryRunsFlowOnce(t *testing.T) {
	repo := &memoryInboundLog{fresh: true}
	conv := &stubConversation{reply: conversation.Reply{Text: "Which day would you like to play?"}}
	svc := pipelineTestService(repo, conv, webhookTestConfig{token: "topsecret", dedup: time.Minute, debounce: 5 * time.Second})

	reply := svc.Process(context.Background(), Inbound{From: "+31612345678", Body: "book a bay"})
	if reply != "Which day would you like to play?" {
		t.Errorf("reply = %q", reply)
	}
	if conv.calls != 1 {
		t.Errorf("flow invoked %d times, want 1", conv.calls)
	}
	if len(repo.entries) != 2 {
		t.Fatalf("entries = %+v, want inbound and outbound", repo.entries)
	}
	if repo.entries[0].Direction != DirectionInbound || repo.entries[1].Direction != DirectionOutbound {
		t.Errorf("directions = %q, %q", repo.entries[0].Direction, repo.entries[1].Direction)
	}
}

func TestRenderAck(t *testing.T) {
	t.Run("empty reply renders an empty envelope", func(t *testing.T) {
		out := RenderAck("")
		if strings.Contains(out, "<Message>") {
			t.Errorf("empty reply must not carry a Message element: %q", out)
		}
		if !strings.Contains(out, "Response") {
			t.Errorf("ack missing Response envelope: %q", out)
		}
	})

	t.Run("reply is wrapped in a Message element", func(t *testing.T) {
		out := RenderAck("See you tomorrow at 2pm")
		if !strings.Contains(out, "<Message>See you tomorrow at 2pm</Message>") {
			t.Errorf("unexpected ack: %q", out)
		}
	})

	t.Run("reply text is escaped", func(t *testing.T) {
		out := RenderAck("Terms & conditions")
		if !strings.Contains(out, "Terms &amp; conditions") {
			t.Errorf("ampersand not escaped: %q", out)
		}
	})
}

func TestMemberLocksSerializePerMember(t *testing.T) {
	locks := newMemberLocks()
	memberID := uuid.New()

	var events []string
	var mu sync.Mutex
	record := func(e string) {
		mu.Lock()
		events = append(events, e)
		mu.Unlock()
	}

	release := locks.lock(memberID)

	done := make(chan struct{})
	go func() {
		second := locks.lock(memberID)
		record("second acquired")
		second()
		close(done)
	}()

	record("first releasing")
	release()
	<-done

	mu.Lock()
	defer mu.Unlock()
	if len(events) != 2 || events[0] != "first releasing" || events[1] != "second acquired" {
		t.Errorf("events = %v, want release before second acquisition", events)
	}
}

func TestMemberLocksIndependentMembers(t *testing.T) {
	locks := newMemberLocks()

	releaseA := locks.lock(uuid.New())
	defer releaseA()

	acquired := make(chan struct{})
	go func() {
		releaseB := locks.lock(uuid.New())
		releaseB()
		close(acquired)
	}()

	select {
	case <-acquired:
	case <-time.After(time.Second):
		t.Error("lock on a different member must not block")
	}
}
