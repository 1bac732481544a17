package members

import (
	"context"
	"testing"

	"github.com/google/uuid"

	"caddie_backend/platform/apperr"
	"caddie_backend/platform/logger"
)

// memoryMemberStore holds members by phone for service tests.
type memoryMemberStore struct {
	byPhone map[string]Member
	created []Member
}

func newMemoryMemberStore() *memoryMemberStore {
	return &memoryMemberStore{byPhone: map[string]Member{}}
}

func (s *memoryMemberStore) GetByPhone(_ context.Context, phone string) (Member, error) {
	if m, ok := s.byPhone[phone]; ok {
		return m, nil
	}
	return Member{}, apperr.NotFound("member not found")
}

func (s *memoryMemberStore) Create(_ context.Context, phone, displayName string) (Member, error) {
	m := Member{ID: uuid.New(), Phone: phone, DisplayName: displayName}
	s.byPhone[phone] = m
	s.created = append(s.created, m)
	return m, nil
}

func (s *memoryMemberStore) CompleteOnboarding(_ context.Context, id uuid.UUID, displayName, timezone string) error {
	for phone, m := range s.byPhone {
		if m.ID == id {
			m.DisplayName = displayName
			m.Timezone = timezone
			m.OnboardingCompleted = true
			s.byPhone[phone] = m
		}
	}
	return nil
}

func (s *memoryMemberStore) GetPreferences(_ context.Context, _ uuid.UUID) (Preferences, error) {
	return Preferences{}, nil
}

func TestResolveOrCreate(t *testing.T) {
	t.Run("known handle resolves without creating", func(t *testing.T) {
		store := newMemoryMemberStore()
		store.byPhone["+31612345678"] = Member{ID: uuid.New(), Phone: "+31612345678", DisplayName: "Sam"}
		svc := NewService(store, logger.New("test"))

		res, err := svc.ResolveOrCreate(context.Background(), "+31 6 12345678", "")
		if err != nil {
			t.Fatal(err)
		}
		if res.Created {
			t.Error("existing member reported as created")
		}
		if res.Member.DisplayName != "Sam" {
			t.Errorf("display name = %q", res.Member.DisplayName)
		}
	})

	t.Run("profile name carried onto the new member", func(t *testing.T) {
		store := newMemoryMemberStore()
		svc := NewService(store, logger.New("test"))

		res, err := svc.ResolveOrCreate(context.Background(), "+31612345678", " Sam ")
		if err != nil {
			t.Fatal(err)
		}
		if !res.Created {
			t.Fatal("expected a created member")
		}
		if res.Member.DisplayName != "Sam" {
			t.Errorf("display name = %q", res.Member.DisplayName)
		}
	})

	// A member without a profile name stays nameless until onboarding;
	// their number must never become their name.
	t.Run("missing profile name leaves the name empty", func(t *testing.T) {
		store := newMemoryMemberStore()
		svc := NewService(store, logger.New("test"))

		res, err := svc.ResolveOrCreate(context.Background(), "+31612345678", "")
		if err != nil {
			t.Fatal(err)
		}
		if res.Member.DisplayName != "" {
			t.Errorf("display name = %q, want empty", res.Member.DisplayName)
		}
	})

	t.Run("unparseable handle rejected", func(t *testing.T) {
		svc := NewService(newMemoryMemberStore(), logger.New("test"))
		if _, err := svc.ResolveOrCreate(context.Background(), "not a number", "Sam"); err == nil {
			t.Fatal("expected an error")
		}
	})
}
