package bookings

import (
	"regexp"
	"strings"
	"testing"
)

func TestNewReferenceFormat(t *testing.T) {
	pattern := regexp.MustCompile(`^CB-[23456789ABCDEFGHJKMNPQRSTUVWXYZ]{6}$`)
	for i := 0; i < 100; i++ {
		ref := NewReference("CB-")
		if !pattern.MatchString(ref) {
			t.Fatalf("reference %q does not match expected format", ref)
		}
	}
}

func TestNewReferenceAvoidsAmbiguousCharacters(t *testing.T) {
	for _, c := range "0O1IL" {
		if strings.ContainsRune(referenceAlphabet, c) {
			t.Errorf("alphabet contains ambiguous character %q", c)
		}
	}
}

func TestNewReferenceVariesAcrossCalls(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 50; i++ {
		seen[NewReference("CB-")] = true
	}
	// Collisions over a 31^6 space in 50 draws mean the generator is broken.
	if len(seen) < 50 {
		t.Fatalf("expected 50 distinct references, got %d", len(seen))
	}
}
