package domain

import "testing"

func TestParseMultiplicity(t *testing.T) {
	cases := []struct {
		in        string
		lower     int
		upper     int
		unbounded bool
		text      string
	}{
		{in: "1", lower: 1, upper: 1, text: "1"},
		{in: "0..1", lower: 0, upper: 1, text: "0..1"},
		{in: "2..5", lower: 2, upper: 5, text: "2..5"},
		{in: "3..*", lower: 3, unbounded: true, text: "3..*"},
		{in: "*", lower: 0, unbounded: true, text: "*"},
		{in: " 2 .. 3 ", lower: 2, upper: 3, text: "2..3"},
		{in: "0..*", lower: 0, unbounded: true, text: "*"},
	}
	for _, tc := range cases {
		for round := 0; round < 2; round++ {
			got := ParseMultiplicity(tc.in)
			if got.Lower != tc.lower {
				t.Fatalf("%q: lower = %d, want %d", tc.in, got.Lower, tc.lower)
			}
			if got.Unbounded() != tc.unbounded {
				t.Fatalf("%q: unbounded = %v, want %v", tc.in, got.Unbounded(), tc.unbounded)
			}
			if !tc.unbounded && *got.Upper != tc.upper {
				t.Fatalf("%q: upper = %d, want %d", tc.in, *got.Upper, tc.upper)
			}
			if got.String() != tc.text {
				t.Fatalf("%q: String() = %q, want %q", tc.in, got.String(), tc.text)
			}
		}
	}
}

func TestParseMultiplicityFailsClosed(t *testing.T) {
	for _, in := range []string{"", "abc", "-1", "3..1", "1..x", "..", "1..2..3"} {
		got := ParseMultiplicity(in)
		if got.Lower != 1 || got.Upper == nil || *got.Upper != 1 {
			t.Fatalf("%q: expected 1..1, got %s", in, got)
		}
	}
}

func TestMultiplicityClampAndAllows(t *testing.T) {
	m := ParseMultiplicity("2..3")
	if m.Clamp(5) != 3 || m.Clamp(2) != 2 {
		t.Fatalf("unexpected clamp results")
	}
	if !m.Allows(3) || m.Allows(4) {
		t.Fatalf("unexpected allows results")
	}
	open := ParseMultiplicity("1..*")
	if open.Clamp(100) != 100 || !open.Allows(1000) {
		t.Fatalf("open bound must not limit")
	}
}

func TestRelationshipMultiplicity(t *testing.T) {
	rel := Relationship{Type: RelCompositeAggregation}
	if _, ok := rel.Multiplicity(); ok {
		t.Fatalf("expected no multiplicity")
	}
	rel.Properties.Set(PropMultiplicity, "2..*")
	m, ok := rel.Multiplicity()
	if !ok || m.Lower != 2 || !m.Unbounded() {
		t.Fatalf("unexpected multiplicity %+v", m)
	}
	if !rel.Type.IsAggregation() || RelGeneralization.IsAggregation() {
		t.Fatalf("unexpected aggregation classification")
	}
}
