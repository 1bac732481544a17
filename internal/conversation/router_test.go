package conversation

import (
	"context"
	"errors"
	"testing"

	"caddie_backend/internal/members"
)

func TestRouteOnboardingOverride(t *testing.T) {
	client := &scriptClient{payload: []byte(`{"intent":"new-booking"}`)}
	r := NewRouter(testOracle(client))

	m := members.Member{OnboardingCompleted: false}
	if got := r.Route(context.Background(), m, "book me a bay", nil); got != IntentOnboarding {
		t.Fatalf("Route = %s, want onboarding", got)
	}
	if client.calls != 0 {
		t.Fatal("the oracle must never see a pre-onboarding message")
	}
}

func TestRouteClassifies(t *testing.T) {
	r := NewRouter(testOracle(&scriptClient{payload: []byte(`{"intent":"cancel-booking"}`)}))
	m := members.Member{OnboardingCompleted: true}
	if got := r.Route(context.Background(), m, "cancel my booking", nil); got != IntentCancelBooking {
		t.Fatalf("Route = %s, want cancel-booking", got)
	}
}

func TestRouteFallsBackToClarify(t *testing.T) {
	r := NewRouter(testOracle(&scriptClient{err: errors.New("timeout")}))
	m := members.Member{OnboardingCompleted: true}
	if got := r.Route(context.Background(), m, "???", nil); got != IntentClarify {
		t.Fatalf("Route = %s, want clarify", got)
	}
}

func TestFlowForIntent(t *testing.T) {
	tests := []struct {
		intent Intent
		flow   Flow
		ok     bool
	}{
		{IntentNewBooking, FlowNewBooking, true},
		{IntentBookingStatus, FlowBookingStatus, true},
		{IntentCancelBooking, FlowCancelBooking, true},
		{IntentModifyBooking, FlowModifyBooking, true},
		{IntentOnboarding, FlowOnboarding, true},
		{IntentSupport, FlowSupport, true},
		{IntentFAQ, "", false},
		{IntentClarify, "", false},
	}
	for _, tt := range tests {
		flow, ok := flowForIntent(tt.intent)
		if flow != tt.flow || ok != tt.ok {
			t.Errorf("flowForIntent(%s) = %s, %v; want %s, %v", tt.intent, flow, ok, tt.flow, tt.ok)
		}
	}
}
