package venues

import "testing"

func TestResolveNameExact(t *testing.T) {
	names := []string{"Topgolf", "Five Iron", "Clubhouse North"}

	cases := []struct {
		input string
		want  string
	}{
		{"Topgolf", "Topgolf"},
		{"  topgolf ", "Topgolf"},
		{"FIVE IRON", "Five Iron"},
		{"book me at topgolf tomorrow", "Topgolf"},
	}

	for _, tc := range cases {
		got := ResolveName(tc.input, names)
		if got.Outcome != MatchExact {
			t.Errorf("ResolveName(%q) outcome = %v, want MatchExact", tc.input, got.Outcome)
			continue
		}
		if got.Name != tc.want {
			t.Errorf("ResolveName(%q) = %q, want %q", tc.input, got.Name, tc.want)
		}
	}
}

func TestResolveNameFuzzy(t *testing.T) {
	names := []string{"Topgolf", "Five Iron", "Clubhouse North"}

	got := ResolveName("topgolv", names)
	if got.Outcome != MatchFuzzy {
		t.Fatalf("ResolveName(topgolv) outcome = %v (similarity %.2f), want MatchFuzzy", got.Outcome, got.Similarity)
	}
	if got.Name != "Topgolf" {
		t.Errorf("ResolveName(topgolv) = %q, want Topgolf", got.Name)
	}
}

func TestResolveNameWeakAndNone(t *testing.T) {
	names := []string{"Topgolf", "Five Iron"}

	weak := ResolveName("that iron place", names)
	if weak.Outcome != MatchWeak && weak.Outcome != MatchNone {
		t.Errorf("weak input resolved as %v (similarity %.2f), want weak or none", weak.Outcome, weak.Similarity)
	}

	none := ResolveName("zzzzqqqq", names)
	if none.Outcome != MatchNone {
		t.Errorf("garbage input resolved as %v, want MatchNone", none.Outcome)
	}

	empty := ResolveName("", names)
	if empty.Outcome != MatchNone || empty.Index != -1 {
		t.Errorf("empty input resolved as %v index %d, want MatchNone/-1", empty.Outcome, empty.Index)
	}
}
