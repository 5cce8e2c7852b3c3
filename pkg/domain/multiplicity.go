package domain

import (
	"strconv"
	"strings"
)

// Multiplicity is a resolved lower/upper bound pair. A nil Upper means the
// bound is open ("*").
type Multiplicity struct {
	Lower int
	Upper *int
}

// Unbounded reports whether the upper bound is open.
func (m Multiplicity) Unbounded() bool { return m.Upper == nil }

// Allows reports whether n instances satisfy the upper bound.
func (m Multiplicity) Allows(n int) bool {
	return m.Upper == nil || n <= *m.Upper
}

// Clamp limits n to the upper bound.
func (m Multiplicity) Clamp(n int) int {
	if m.Upper != nil && n > *m.Upper {
		return *m.Upper
	}
	return n
}

// String renders the multiplicity in its canonical textual form.
func (m Multiplicity) String() string {
	switch {
	case m.Upper == nil && m.Lower == 0:
		return "*"
	case m.Upper == nil:
		return strconv.Itoa(m.Lower) + "..*"
	case *m.Upper == m.Lower:
		return strconv.Itoa(m.Lower)
	default:
		return strconv.Itoa(m.Lower) + ".." + strconv.Itoa(*m.Upper)
	}
}

func bound(n int) *int { return &n }

// ParseMultiplicity accepts "N", "N..M", "N..*" and "*". Anything else,
// including ranges whose upper bound is below the lower bound, resolves to 1..1.
func ParseMultiplicity(raw string) Multiplicity {
	s := strings.TrimSpace(raw)
	if s == "*" {
		return Multiplicity{}
	}
	failClosed := Multiplicity{Lower: 1, Upper: bound(1)}
	lo, hi, isRange := strings.Cut(s, "..")
	lower, err := strconv.Atoi(strings.TrimSpace(lo))
	if err != nil || lower < 0 {
		return failClosed
	}
	if !isRange {
		return Multiplicity{Lower: lower, Upper: bound(lower)}
	}
	hi = strings.TrimSpace(hi)
	if hi == "*" {
		return Multiplicity{Lower: lower}
	}
	upper, err := strconv.Atoi(hi)
	if err != nil || upper < lower {
		return failClosed
	}
	return Multiplicity{Lower: lower, Upper: bound(upper)}
}
