package memory

import (
	"fmt"
	"slices"

	"modelcore/pkg/domain"
)

// memoryState holds the three collections plus the element/diagram links.
// Records stored in the maps are never mutated in place: every write stores a
// fresh clone, so clone() can copy the maps shallowly.
type memoryState struct {
	elements      map[string]domain.Element
	elementOrder  []string
	relationships map[string]domain.Relationship
	relOrder      []string
	diagrams      map[string]domain.Diagram
	diagramOrder  []string
	// element id -> diagram id and the reverse direction
	links       map[string]string
	linkedBy    map[string]string
	rootPackage string
	index       backrefIndex
}

func newMemoryState() memoryState {
	return memoryState{
		elements:      make(map[string]domain.Element),
		relationships: make(map[string]domain.Relationship),
		diagrams:      make(map[string]domain.Diagram),
		links:         make(map[string]string),
		linkedBy:      make(map[string]string),
		index:         newBackrefIndex(),
	}
}

func (s memoryState) clone() memoryState {
	out := memoryState{
		elements:      make(map[string]domain.Element, len(s.elements)),
		elementOrder:  slices.Clone(s.elementOrder),
		relationships: make(map[string]domain.Relationship, len(s.relationships)),
		relOrder:      slices.Clone(s.relOrder),
		diagrams:      make(map[string]domain.Diagram, len(s.diagrams)),
		diagramOrder:  slices.Clone(s.diagramOrder),
		links:         make(map[string]string, len(s.links)),
		linkedBy:      make(map[string]string, len(s.linkedBy)),
		rootPackage:   s.rootPackage,
		index:         s.index.clone(),
	}
	for k, v := range s.elements {
		out.elements[k] = v
	}
	for k, v := range s.relationships {
		out.relationships[k] = v
	}
	for k, v := range s.diagrams {
		out.diagrams[k] = v
	}
	for k, v := range s.links {
		out.links[k] = v
	}
	for k, v := range s.linkedBy {
		out.linkedBy[k] = v
	}
	return out
}

func (s *memoryState) putElement(e domain.Element) {
	if _, exists := s.elements[e.ID]; !exists {
		s.elementOrder = append(s.elementOrder, e.ID)
	}
	s.elements[e.ID] = domain.CloneElement(e)
}

func (s *memoryState) dropElement(id string) {
	delete(s.elements, id)
	s.elementOrder = removeID(s.elementOrder, id)
}

func (s *memoryState) putRelationship(r domain.Relationship) {
	if prev, exists := s.relationships[r.ID]; exists {
		s.index.removeRelationship(prev)
	} else {
		s.relOrder = append(s.relOrder, r.ID)
	}
	s.relationships[r.ID] = domain.CloneRelationship(r)
	s.index.addRelationship(r)
}

func (s *memoryState) dropRelationship(id string) {
	if prev, ok := s.relationships[id]; ok {
		s.index.removeRelationship(prev)
	}
	delete(s.relationships, id)
	s.relOrder = removeID(s.relOrder, id)
}

func (s *memoryState) putDiagram(d domain.Diagram) {
	if prev, exists := s.diagrams[d.ID]; exists {
		s.index.removeDiagram(prev)
	} else {
		s.diagramOrder = append(s.diagramOrder, d.ID)
	}
	s.diagrams[d.ID] = domain.CloneDiagram(d)
	s.index.addDiagram(d)
}

func (s *memoryState) dropDiagram(id string) {
	if prev, ok := s.diagrams[id]; ok {
		s.index.removeDiagram(prev)
	}
	delete(s.diagrams, id)
	s.diagramOrder = removeID(s.diagramOrder, id)
}

func (s *memoryState) link(elementID, diagramID string) {
	s.unlinkElement(elementID)
	if prev, ok := s.linkedBy[diagramID]; ok {
		delete(s.links, prev)
	}
	s.links[elementID] = diagramID
	s.linkedBy[diagramID] = elementID
}

func (s *memoryState) unlinkElement(elementID string) {
	if diag, ok := s.links[elementID]; ok {
		delete(s.linkedBy, diag)
		delete(s.links, elementID)
	}
}

func (s *memoryState) unlinkDiagram(diagramID string) {
	if elem, ok := s.linkedBy[diagramID]; ok {
		delete(s.links, elem)
		delete(s.linkedBy, diagramID)
	}
}

func removeID(order []string, id string) []string {
	return slices.DeleteFunc(order, func(v string) bool { return v == id })
}

func snapshotFromMemoryState(state memoryState) domain.Snapshot {
	s := domain.Snapshot{
		Elements:        make([]domain.Element, 0, len(state.elementOrder)),
		Relationships:   make([]domain.Relationship, 0, len(state.relOrder)),
		Diagrams:        make([]domain.Diagram, 0, len(state.diagramOrder)),
		ElementDiagrams: make(map[string]string, len(state.links)),
	}
	for _, id := range state.elementOrder {
		s.Elements = append(s.Elements, domain.CloneElement(state.elements[id]))
	}
	for _, id := range state.relOrder {
		s.Relationships = append(s.Relationships, domain.CloneRelationship(state.relationships[id]))
	}
	for _, id := range state.diagramOrder {
		s.Diagrams = append(s.Diagrams, domain.CloneDiagram(state.diagrams[id]))
	}
	for k, v := range state.links {
		s.ElementDiagrams[k] = v
	}
	return s
}

// memoryStateFromSnapshot rebuilds state and the back-reference index. The
// snapshot must already be validated.
func memoryStateFromSnapshot(s domain.Snapshot) (memoryState, error) {
	state := newMemoryState()
	for _, e := range s.Elements {
		if _, dup := state.elements[e.ID]; dup {
			return memoryState{}, fmt.Errorf("duplicate element id %q", e.ID)
		}
		state.putElement(e)
		if state.rootPackage == "" && e.Type == domain.ElementPackage && e.Owner == "" {
			state.rootPackage = e.ID
		}
	}
	for _, r := range s.Relationships {
		if _, dup := state.relationships[r.ID]; dup {
			return memoryState{}, fmt.Errorf("duplicate relationship id %q", r.ID)
		}
		state.putRelationship(r)
	}
	for _, d := range s.Diagrams {
		if _, dup := state.diagrams[d.ID]; dup {
			return memoryState{}, fmt.Errorf("duplicate diagram id %q", d.ID)
		}
		state.putDiagram(d)
	}
	for elem, diag := range s.ElementDiagrams {
		state.links[elem] = diag
		state.linkedBy[diag] = elem
	}
	return state, nil
}

// migrateSnapshot normalizes imported data: nil collections become empty and
// part definitions stored as block names are rewritten to block ids.
func migrateSnapshot(snapshot domain.Snapshot) domain.Snapshot {
	migrated := snapshot.Clone()
	ids := make(map[string]struct{}, len(migrated.Elements))
	blocksByName := make(map[string]string)
	for _, e := range migrated.Elements {
		ids[e.ID] = struct{}{}
		if e.Type == domain.ElementBlock && e.Name != "" {
			if _, seen := blocksByName[e.Name]; !seen {
				blocksByName[e.Name] = e.ID
			}
		}
	}
	resolve := func(props *domain.Properties) {
		def, ok := props.Get(domain.PropDefinition)
		if !ok || def == "" {
			return
		}
		if _, known := ids[def]; known {
			return
		}
		if mapped, ok := blocksByName[def]; ok {
			props.Set(domain.PropDefinition, mapped)
		}
	}
	for i := range migrated.Elements {
		if migrated.Elements[i].Type == domain.ElementPart {
			resolve(&migrated.Elements[i].Properties)
		}
	}
	for i := range migrated.Diagrams {
		for j := range migrated.Diagrams[i].Objects {
			if migrated.Diagrams[i].Objects[j].Type == domain.ElementPart {
				resolve(&migrated.Diagrams[i].Objects[j].Properties)
			}
		}
	}
	return migrated
}
