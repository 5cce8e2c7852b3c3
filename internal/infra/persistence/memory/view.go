package memory

import "modelcore/pkg/domain"

type transactionView struct {
	state *memoryState
}

func (v transactionView) ListElements() []Element {
	out := make([]Element, 0, len(v.state.elementOrder))
	for _, id := range v.state.elementOrder {
		out = append(out, domain.CloneElement(v.state.elements[id]))
	}
	return out
}

func (v transactionView) ListRelationships(filter domain.RelationshipFilter) []Relationship {
	ids := v.state.relOrder
	// narrow through the index when an endpoint is pinned
	if filter.Source != "" || filter.Target != "" {
		pinned := filter.Source
		if pinned == "" {
			pinned = filter.Target
		}
		touching := make(map[string]struct{})
		for _, id := range v.state.index.elementRels.ids(pinned) {
			touching[id] = struct{}{}
		}
		narrowed := make([]string, 0, len(touching))
		for _, id := range v.state.relOrder {
			if _, ok := touching[id]; ok {
				narrowed = append(narrowed, id)
			}
		}
		ids = narrowed
	}
	out := make([]Relationship, 0)
	for _, id := range ids {
		if r := v.state.relationships[id]; filter.Matches(r) {
			out = append(out, domain.CloneRelationship(r))
		}
	}
	return out
}

func (v transactionView) ListDiagrams() []Diagram {
	out := make([]Diagram, 0, len(v.state.diagramOrder))
	for _, id := range v.state.diagramOrder {
		out = append(out, domain.CloneDiagram(v.state.diagrams[id]))
	}
	return out
}

func (v transactionView) FindElement(id string) (Element, bool) {
	e, ok := v.state.elements[id]
	if !ok {
		return Element{}, false
	}
	return domain.CloneElement(e), true
}

func (v transactionView) FindRelationship(id string) (Relationship, bool) {
	r, ok := v.state.relationships[id]
	if !ok {
		return Relationship{}, false
	}
	return domain.CloneRelationship(r), true
}

func (v transactionView) FindDiagram(id string) (Diagram, bool) {
	d, ok := v.state.diagrams[id]
	if !ok {
		return Diagram{}, false
	}
	return domain.CloneDiagram(d), true
}

func (v transactionView) LinkedDiagram(elementID string) (string, bool) {
	id, ok := v.state.links[elementID]
	return id, ok
}

func (v transactionView) LinkedElement(diagramID string) (string, bool) {
	id, ok := v.state.linkedBy[diagramID]
	return id, ok
}

func (v transactionView) Referrers(elementID string) ([]string, []string) {
	return v.state.index.elementRels.ids(elementID), v.state.index.elementDiagrams.ids(elementID)
}

func (v transactionView) RootPackage() string {
	return v.state.rootPackage
}
