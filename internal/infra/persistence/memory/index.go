package memory

import (
	"sort"

	"modelcore/pkg/domain"
)

// refSet counts references from one record kind to an id. Counts let a
// diagram place the same element several times and still unindex cleanly.
type refSet map[string]map[string]int

func (r refSet) add(target, from string) {
	if target == "" {
		return
	}
	m, ok := r[target]
	if !ok {
		m = make(map[string]int)
		r[target] = m
	}
	m[from]++
}

func (r refSet) remove(target, from string) {
	m, ok := r[target]
	if !ok {
		return
	}
	if m[from] <= 1 {
		delete(m, from)
	} else {
		m[from]--
	}
	if len(m) == 0 {
		delete(r, target)
	}
}

func (r refSet) ids(target string) []string {
	m := r[target]
	if len(m) == 0 {
		return nil
	}
	out := make([]string, 0, len(m))
	for id := range m {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

func (r refSet) clone() refSet {
	out := make(refSet, len(r))
	for k, v := range r {
		inner := make(map[string]int, len(v))
		for id, n := range v {
			inner[id] = n
		}
		out[k] = inner
	}
	return out
}

// backrefIndex maps element and relationship ids to the records naming them so
// cascades never scan every diagram.
type backrefIndex struct {
	// element id -> relationship ids with that element as an endpoint
	elementRels refSet
	// element id -> diagram ids placing, listing, fathering or owning it
	elementDiagrams refSet
	// relationship id -> diagram ids visualizing or listing it
	relDiagrams refSet
}

func newBackrefIndex() backrefIndex {
	return backrefIndex{
		elementRels:     make(refSet),
		elementDiagrams: make(refSet),
		relDiagrams:     make(refSet),
	}
}

func (x backrefIndex) clone() backrefIndex {
	return backrefIndex{
		elementRels:     x.elementRels.clone(),
		elementDiagrams: x.elementDiagrams.clone(),
		relDiagrams:     x.relDiagrams.clone(),
	}
}

func (x backrefIndex) addRelationship(r domain.Relationship) {
	x.elementRels.add(r.Source, r.ID)
	if r.Target != r.Source {
		x.elementRels.add(r.Target, r.ID)
	}
}

func (x backrefIndex) removeRelationship(r domain.Relationship) {
	x.elementRels.remove(r.Source, r.ID)
	if r.Target != r.Source {
		x.elementRels.remove(r.Target, r.ID)
	}
}

func diagramElementRefs(d domain.Diagram) []string {
	refs := make([]string, 0, len(d.Objects)+len(d.Elements)+2)
	for _, obj := range d.Objects {
		if obj.ElementID != "" {
			refs = append(refs, obj.ElementID)
		}
	}
	refs = append(refs, d.Elements...)
	if d.Father != "" {
		refs = append(refs, d.Father)
	}
	if d.Package != "" {
		refs = append(refs, d.Package)
	}
	return refs
}

func diagramRelationshipRefs(d domain.Diagram) []string {
	refs := make([]string, 0, len(d.Connections)+len(d.Relationships))
	for _, conn := range d.Connections {
		if conn.RelationshipID != "" {
			refs = append(refs, conn.RelationshipID)
		}
	}
	return append(refs, d.Relationships...)
}

func (x backrefIndex) addDiagram(d domain.Diagram) {
	for _, id := range diagramElementRefs(d) {
		x.elementDiagrams.add(id, d.ID)
	}
	for _, id := range diagramRelationshipRefs(d) {
		x.relDiagrams.add(id, d.ID)
	}
}

func (x backrefIndex) removeDiagram(d domain.Diagram) {
	for _, id := range diagramElementRefs(d) {
		x.elementDiagrams.remove(id, d.ID)
	}
	for _, id := range diagramRelationshipRefs(d) {
		x.relDiagrams.remove(id, d.ID)
	}
}
