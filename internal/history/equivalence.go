package history

import (
	"bytes"
	"encoding/json"
	"time"

	"modelcore/pkg/domain"
)

// Equivalence decides whether two snapshots describe the same logical state.
// Strategies use it to classify a push as a transient change of the top entry.
type Equivalence func(a, b domain.Snapshot) bool

// PositionInsensitive treats snapshots that differ only in object coordinates
// or modification stamps as equivalent.
func PositionInsensitive(a, b domain.Snapshot) bool {
	return sameFingerprint(fingerprint(Strip(a)), fingerprint(Strip(b)))
}

// Exact reports byte-for-byte equality of the serialized snapshots.
func Exact(a, b domain.Snapshot) bool {
	return sameFingerprint(fingerprint(a), fingerprint(b))
}

// Strip returns a copy of s with coordinates and modification audit fields
// zeroed.
func Strip(s domain.Snapshot) domain.Snapshot {
	out := s.Clone()
	for i := range out.Elements {
		clearModified(&out.Elements[i].Audit)
	}
	for i := range out.Relationships {
		clearModified(&out.Relationships[i].Audit)
	}
	for i := range out.Diagrams {
		d := &out.Diagrams[i]
		clearModified(&d.Audit)
		for j := range d.Objects {
			d.Objects[j].X = 0
			d.Objects[j].Y = 0
		}
	}
	return out
}

func clearModified(a *domain.Audit) {
	a.ModifiedAt = time.Time{}
	a.ModifiedBy = ""
}

// fingerprint serializes s canonically. Map keys are sorted by encoding/json
// and properties keep insertion order, so equal states encode identically.
// A snapshot that cannot be encoded (NaN coordinates) yields nil.
func fingerprint(s domain.Snapshot) []byte {
	raw, err := json.Marshal(s)
	if err != nil {
		return nil
	}
	return raw
}

// sameFingerprint never matches an unencodable snapshot, so such states are
// always recorded.
func sameFingerprint(a, b []byte) bool {
	return a != nil && b != nil && bytes.Equal(a, b)
}
