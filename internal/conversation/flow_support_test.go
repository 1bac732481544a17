package conversation

import (
	"context"
	"testing"

	"caddie_backend/internal/members"
)

func TestSupportFlowGenericOpenerAsksForTopic(t *testing.T) {
	f := NewSupportFlow()
	st := &SupportState{}

	d, err := f.Advance(context.Background(), members.Member{}, "I need help", st)
	if err != nil {
		t.Fatal(err)
	}
	if ask, ok := d.(Ask); !ok || ask.Field != "topic" {
		t.Fatalf("decision = %#v, want Ask(topic)", d)
	}
}

func TestSupportFlowTopicThenHandoff(t *testing.T) {
	f := NewSupportFlow()
	st := &SupportState{}

	d, err := f.Advance(context.Background(), members.Member{}, "my bay's screen was broken during my last visit", st)
	if err != nil {
		t.Fatal(err)
	}
	confirm, ok := d.(ConfirmHandoff)
	if !ok {
		t.Fatalf("decision = %T, want ConfirmHandoff", d)
	}
	if confirm.Topic == "" {
		t.Fatal("topic should carry the member's words")
	}

	d, err = f.Advance(context.Background(), members.Member{}, "yes", st)
	if err != nil {
		t.Fatal(err)
	}
	handoff, ok := d.(Handoff)
	if !ok {
		t.Fatalf("decision = %T, want Handoff", d)
	}
	if handoff.Topic != *st.Topic {
		t.Fatalf("handoff topic = %q", handoff.Topic)
	}
}

func TestSupportFlowDecliningHandoff(t *testing.T) {
	f := NewSupportFlow()
	topic := "membership pricing"
	st := &SupportState{Topic: &topic, Confirming: true}

	d, err := f.Advance(context.Background(), members.Member{}, "no", st)
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := d.(Clarify); !ok {
		t.Fatalf("decision = %T, want Clarify", d)
	}
	if st.Topic != nil {
		t.Fatal("declined topic should be dropped")
	}
}
