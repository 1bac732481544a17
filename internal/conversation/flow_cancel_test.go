package conversation

import (
	"context"
	"testing"
	"time"

	"caddie_backend/internal/bookings"
	"caddie_backend/platform/apperr"
	"caddie_backend/platform/config"
)

type fakeTransitioner struct {
	params  []bookings.TransitionParams
	booking bookings.Booking
	err     error
}

func (tr *fakeTransitioner) Transition(_ context.Context, params bookings.TransitionParams) (bookings.Booking, error) {
	tr.params = append(tr.params, params)
	if tr.err != nil {
		return bookings.Booking{}, tr.err
	}
	return tr.booking, nil
}

func cancelTestConfig() *config.Config {
	return &config.Config{
		BookingLeadTime:        time.Hour,
		CancellationWindow:     2 * time.Hour,
		BookingReferencePrefix: "CB-",
	}
}

func TestCancelFlowEmitsLookup(t *testing.T) {
	client := &scriptClient{payload: []byte(`{"reference":"CB-7KQ2MX"}`)}
	f := NewCancelFlow(testOracle(client), &fakeTransitioner{}, cancelTestConfig())

	st := &CancelState{}
	d, err := f.Advance(context.Background(), bookingTestMember(), "cancel CB-7KQ2MX", st)
	if err != nil {
		t.Fatal(err)
	}
	lookup, ok := d.(Lookup)
	if !ok {
		t.Fatalf("decision = %T, want Lookup", d)
	}
	if lookup.Criteria.Reference != "CB-7KQ2MX" {
		t.Fatalf("criteria = %+v", lookup.Criteria)
	}
}

func TestCancelFlowResolveLookup(t *testing.T) {
	f := NewCancelFlow(testOracle(&scriptClient{err: errAlwaysFails}), &fakeTransitioner{}, cancelTestConfig())
	start := time.Date(2026, 3, 15, 14, 0, 0, 0, time.UTC)

	t.Run("no candidates", func(t *testing.T) {
		st := &CancelState{}
		if _, ok := f.ResolveLookup(st, nil).(Clarify); !ok {
			t.Fatal("want Clarify")
		}
	})

	t.Run("one candidate moves to confirmation", func(t *testing.T) {
		st := &CancelState{}
		d := f.ResolveLookup(st, []bookings.Booking{{Reference: "CB-7KQ2MX", StartTime: start}})
		if _, ok := d.(Review); !ok {
			t.Fatalf("decision = %T, want Review", d)
		}
		if !st.Confirming || st.Reference == nil || *st.Reference != "CB-7KQ2MX" {
			t.Fatalf("state = %+v", st)
		}
	})

	t.Run("several candidates ask for the reference", func(t *testing.T) {
		st := &CancelState{}
		d := f.ResolveLookup(st, []bookings.Booking{
			{Reference: "CB-AAAAAA", StartTime: start},
			{Reference: "CB-BBBBBB", StartTime: start.Add(24 * time.Hour)},
		})
		if ask, ok := d.(Ask); !ok || ask.Field != "reference" {
			t.Fatalf("decision = %#v", d)
		}
	})
}

func TestCancelFlowConfirmCancels(t *testing.T) {
	tr := &fakeTransitioner{booking: bookings.Booking{Reference: "CB-7KQ2MX", Status: bookings.StatusCancelled}}
	f := NewCancelFlow(testOracle(&scriptClient{err: errAlwaysFails}), tr, cancelTestConfig())

	ref := "CB-7KQ2MX"
	st := &CancelState{Reference: &ref, Confirming: true}
	d, err := f.Advance(context.Background(), bookingTestMember(), "yes", st)
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := d.(Submitted); !ok {
		t.Fatalf("decision = %T, want Submitted", d)
	}
	if len(tr.params) != 1 || tr.params[0].Next != bookings.StatusCancelled {
		t.Fatalf("transition params = %+v", tr.params)
	}
}

func TestCancelFlowDecliningKeepsTheBooking(t *testing.T) {
	tr := &fakeTransitioner{}
	f := NewCancelFlow(testOracle(&scriptClient{err: errAlwaysFails}), tr, cancelTestConfig())

	ref := "CB-7KQ2MX"
	st := &CancelState{Reference: &ref, Confirming: true}
	d, err := f.Advance(context.Background(), bookingTestMember(), "no", st)
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := d.(Submitted); !ok {
		t.Fatalf("decision = %T, want terminal Submitted", d)
	}
	if len(tr.params) != 0 {
		t.Fatal("declining must not touch the booking")
	}
}

func TestCancelFlowWindowExceeded(t *testing.T) {
	tr := &fakeTransitioner{err: apperr.Policy(apperr.CodeCancellationWindowExceeded, "too late")}
	f := NewCancelFlow(testOracle(&scriptClient{err: errAlwaysFails}), tr, cancelTestConfig())

	ref := "CB-7KQ2MX"
	st := &CancelState{Reference: &ref, Confirming: true}
	d, err := f.Advance(context.Background(), bookingTestMember(), "yes", st)
	if err != nil {
		t.Fatal(err)
	}
	sub, ok := d.(Submitted)
	if !ok {
		t.Fatalf("decision = %T, want Submitted denial", d)
	}
	if sub.Reference != ref {
		t.Fatalf("reference = %q", sub.Reference)
	}
}
