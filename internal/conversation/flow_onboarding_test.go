package conversation

import (
	"context"
	"testing"

	"caddie_backend/internal/members"
)

type fakeOnboarder struct {
	completed []string
	err       error
}

func (o *fakeOnboarder) CompleteOnboarding(_ context.Context, _ members.Member, displayName, _ string) error {
	o.completed = append(o.completed, displayName)
	return o.err
}

func TestOnboardingFlowOffersProfileName(t *testing.T) {
	f := NewOnboardingFlow(testOracle(&scriptClient{err: errAlwaysFails}), &fakeOnboarder{})
	m := members.Member{DisplayName: "Alex", OnboardingCompleted: false}

	st := &OnboardingState{}
	d, err := f.Advance(context.Background(), m, "hi", st)
	if err != nil {
		t.Fatal(err)
	}
	cd, ok := d.(ConfirmDefault)
	if !ok {
		t.Fatalf("decision = %T, want ConfirmDefault", d)
	}
	if cd.Default != "Alex" {
		t.Fatalf("default = %q", cd.Default)
	}
}

func TestOnboardingFlowCompletes(t *testing.T) {
	onboarder := &fakeOnboarder{}
	f := NewOnboardingFlow(testOracle(&scriptClient{err: errAlwaysFails}), onboarder)
	m := members.Member{DisplayName: "Alex", OnboardingCompleted: false}

	name := "Alex"
	st := &OnboardingState{Name: &name, Asked: true, Confirming: true}
	d, err := f.Advance(context.Background(), m, "yes", st)
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := d.(Complete); !ok {
		t.Fatalf("decision = %T, want Complete", d)
	}
	if len(onboarder.completed) != 1 || onboarder.completed[0] != "Alex" {
		t.Fatalf("completed = %v", onboarder.completed)
	}
}

func TestOnboardingFlowRejectedNameReasks(t *testing.T) {
	f := NewOnboardingFlow(testOracle(&scriptClient{err: errAlwaysFails}), &fakeOnboarder{})
	m := members.Member{DisplayName: "Alex", OnboardingCompleted: false}

	name := "Alex"
	st := &OnboardingState{Name: &name, Asked: true, Confirming: true}
	d, err := f.Advance(context.Background(), m, "no", st)
	if err != nil {
		t.Fatal(err)
	}
	if ask, ok := d.(Ask); !ok || ask.Field != "name" {
		t.Fatalf("decision = %#v, want Ask(name)", d)
	}

	// Their next message is the answer, even when the oracle is down.
	d, err = f.Advance(context.Background(), m, "Sam", st)
	if err != nil {
		t.Fatal(err)
	}
	cd, ok := d.(ConfirmDefault)
	if !ok {
		t.Fatalf("decision = %T, want ConfirmDefault", d)
	}
	if cd.Default != "Sam" {
		t.Fatalf("default = %q", cd.Default)
	}
}

func TestOnboardingFlowNoProfileNameAsks(t *testing.T) {
	f := NewOnboardingFlow(testOracle(&scriptClient{err: errAlwaysFails}), &fakeOnboarder{})
	m := members.Member{OnboardingCompleted: false}

	st := &OnboardingState{}
	d, err := f.Advance(context.Background(), m, "hello", st)
	if err != nil {
		t.Fatal(err)
	}
	if ask, ok := d.(Ask); !ok || ask.Field != "name" {
		t.Fatalf("decision = %#v, want Ask(name)", d)
	}
}

// A member row whose display name is a phone number must be asked for a
// real name, never greeted with "Should we call you +31612345678?".
func TestOnboardingFlowPhoneShapedProfileNameNotOffered(t *testing.T) {
	f := NewOnboardingFlow(testOracle(&scriptClient{err: errAlwaysFails}), &fakeOnboarder{})
	m := members.Member{Phone: "+31612345678", DisplayName: "+31612345678", OnboardingCompleted: false}

	st := &OnboardingState{}
	d, err := f.Advance(context.Background(), m, "hi", st)
	if err != nil {
		t.Fatal(err)
	}
	if ask, ok := d.(Ask); !ok || ask.Field != "name" {
		t.Fatalf("decision = %#v, want Ask(name)", d)
	}
}
