// Package buckets splits a model snapshot into the per-collection JSON
// payloads stored by the durable backends.
package buckets

import (
	"encoding/json"
	"fmt"

	"modelcore/pkg/domain"
)

// Bucket names, one row or key per collection.
const (
	Elements      = "elements"
	Relationships = "relationships"
	Diagrams      = "diagrams"
	Links         = "element_diagrams"
)

// Names lists every bucket in write order.
var Names = []string{Elements, Relationships, Diagrams, Links}

func target(s *domain.Snapshot, bucket string) any {
	switch bucket {
	case Elements:
		return &s.Elements
	case Relationships:
		return &s.Relationships
	case Diagrams:
		return &s.Diagrams
	case Links:
		return &s.ElementDiagrams
	}
	return nil
}

// Encode marshals each collection of s.
func Encode(s domain.Snapshot) (map[string][]byte, error) {
	out := make(map[string][]byte, len(Names))
	for _, bucket := range Names {
		data, err := json.Marshal(target(&s, bucket))
		if err != nil {
			return nil, fmt.Errorf("encode %s: %w", bucket, err)
		}
		out[bucket] = data
	}
	return out, nil
}

// Decode rebuilds a snapshot from stored payloads. Unknown buckets and empty
// payloads are ignored so a fresh database decodes to an empty snapshot.
func Decode(payloads map[string][]byte) (domain.Snapshot, error) {
	var s domain.Snapshot
	for bucket, payload := range payloads {
		if len(payload) == 0 {
			continue
		}
		dst := target(&s, bucket)
		if dst == nil {
			continue
		}
		if err := json.Unmarshal(payload, dst); err != nil {
			return domain.Snapshot{}, fmt.Errorf("decode %s: %w", bucket, err)
		}
	}
	return s, nil
}
