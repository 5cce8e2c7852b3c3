package domain

import (
	"fmt"
	"maps"
	"slices"
	"strconv"
)

// Snapshot is a deep, serializable copy of the model collections. Slices keep
// the store's insertion order so a round trip is lossless.
type Snapshot struct {
	Elements        []Element         `json:"elements"`
	Relationships   []Relationship    `json:"relationships"`
	Diagrams        []Diagram         `json:"diagrams"`
	ElementDiagrams map[string]string `json:"element_diagrams"`
}

// Clone returns a copy sharing no memory with s.
func (s Snapshot) Clone() Snapshot {
	out := Snapshot{
		Elements:        make([]Element, len(s.Elements)),
		Relationships:   make([]Relationship, len(s.Relationships)),
		Diagrams:        make([]Diagram, len(s.Diagrams)),
		ElementDiagrams: make(map[string]string, len(s.ElementDiagrams)),
	}
	for i, e := range s.Elements {
		out.Elements[i] = CloneElement(e)
	}
	for i, r := range s.Relationships {
		out.Relationships[i] = CloneRelationship(r)
	}
	for i, d := range s.Diagrams {
		out.Diagrams[i] = CloneDiagram(d)
	}
	for k, v := range s.ElementDiagrams {
		out.ElementDiagrams[k] = v
	}
	return out
}

// Validate checks referential integrity: relationship endpoints, owners,
// diagram packages, fathers, placements, connections and links must resolve,
// and an element-diagram link pairs one element with one diagram. The first
// violation is returned.
func (s Snapshot) Validate() error {
	elements := make(map[string]ElementType, len(s.Elements))
	for _, e := range s.Elements {
		elements[e.ID] = e.Type
	}
	relationships := make(map[string]struct{}, len(s.Relationships))
	for _, r := range s.Relationships {
		relationships[r.ID] = struct{}{}
	}
	diagrams := make(map[string]struct{}, len(s.Diagrams))
	for _, d := range s.Diagrams {
		diagrams[d.ID] = struct{}{}
	}
	for _, e := range s.Elements {
		if e.Owner == "" {
			continue
		}
		t, ok := elements[e.Owner]
		if !ok {
			return MissingElement(e.Owner, "owner")
		}
		if t != ElementPackage {
			return &OwnerError{Owner: e.Owner, Reason: "owner is not a package"}
		}
	}
	for _, r := range s.Relationships {
		if _, ok := elements[r.Source]; !ok {
			return MissingElement(r.Source, "source")
		}
		if _, ok := elements[r.Target]; !ok {
			return MissingElement(r.Target, "target")
		}
	}
	for _, d := range s.Diagrams {
		if err := d.validateRefs(elements, relationships); err != nil {
			return err
		}
	}
	linkedBy := make(map[string]string, len(s.ElementDiagrams))
	for _, elemID := range slices.Sorted(maps.Keys(s.ElementDiagrams)) {
		diagID := s.ElementDiagrams[elemID]
		if _, ok := elements[elemID]; !ok {
			return MissingElement(elemID, "link")
		}
		if _, ok := diagrams[diagID]; !ok {
			return MissingDiagram(diagID, "link")
		}
		if other, taken := linkedBy[diagID]; taken {
			return fmt.Errorf("diagram %q is linked to both %q and %q", diagID, other, elemID)
		}
		linkedBy[diagID] = elemID
	}
	return nil
}

func (d Diagram) validateRefs(elements map[string]ElementType, relationships map[string]struct{}) error {
	if d.Package != "" {
		t, ok := elements[d.Package]
		if !ok {
			return MissingElement(d.Package, "package")
		}
		if t != ElementPackage {
			return &OwnerError{Owner: d.Package, Reason: "diagram package is not a package"}
		}
	}
	if d.Father != "" {
		if _, ok := elements[d.Father]; !ok {
			return MissingElement(d.Father, "father")
		}
	}
	for _, id := range d.Elements {
		if _, ok := elements[id]; !ok {
			return MissingElement(id, "elements")
		}
	}
	for _, id := range d.Relationships {
		if _, ok := relationships[id]; !ok {
			return MissingRelationship(id)
		}
	}
	objects := make(map[int]struct{}, len(d.Objects))
	for _, obj := range d.Objects {
		if _, dup := objects[obj.ID]; dup {
			return fmt.Errorf("diagram %q: duplicate object id %d", d.ID, obj.ID)
		}
		objects[obj.ID] = struct{}{}
		if obj.ElementID == "" {
			continue
		}
		if _, ok := elements[obj.ElementID]; !ok {
			return MissingElement(obj.ElementID, "element_id")
		}
	}
	for _, conn := range d.Connections {
		if _, ok := objects[conn.Src]; !ok {
			return &ReferenceError{Entity: EntityDiagramObject, ID: strconv.Itoa(conn.Src), Field: "src"}
		}
		if _, ok := objects[conn.Dst]; !ok {
			return &ReferenceError{Entity: EntityDiagramObject, ID: strconv.Itoa(conn.Dst), Field: "dst"}
		}
		if conn.RelationshipID == "" {
			continue
		}
		if _, ok := relationships[conn.RelationshipID]; !ok {
			return MissingRelationship(conn.RelationshipID)
		}
	}
	return nil
}

// CloneElement deep-copies an element.
func CloneElement(e Element) Element {
	e.Properties = e.Properties.Clone()
	return e
}

// CloneRelationship deep-copies a relationship.
func CloneRelationship(r Relationship) Relationship {
	r.Properties = r.Properties.Clone()
	return r
}

// CloneObject deep-copies a diagram object.
func CloneObject(o DiagramObject) DiagramObject {
	o.Properties = o.Properties.Clone()
	return o
}

// CloneConnection deep-copies a diagram connection.
func CloneConnection(c DiagramConnection) DiagramConnection {
	c.Properties = c.Properties.Clone()
	return c
}

// CloneDiagram deep-copies a diagram including its placements.
func CloneDiagram(d Diagram) Diagram {
	d.Tags = cloneStrings(d.Tags)
	d.Elements = cloneStrings(d.Elements)
	d.Relationships = cloneStrings(d.Relationships)
	if len(d.Objects) == 0 {
		d.Objects = nil
	} else {
		objects := make([]DiagramObject, len(d.Objects))
		for i, o := range d.Objects {
			objects[i] = CloneObject(o)
		}
		d.Objects = objects
	}
	if len(d.Connections) == 0 {
		d.Connections = nil
	} else {
		conns := make([]DiagramConnection, len(d.Connections))
		for i, c := range d.Connections {
			conns[i] = CloneConnection(c)
		}
		d.Connections = conns
	}
	return d
}

func cloneStrings(values []string) []string {
	if len(values) == 0 {
		return nil
	}
	return slices.Clone(values)
}
