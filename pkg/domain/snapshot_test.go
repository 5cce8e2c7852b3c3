package domain

import (
	"errors"
	"reflect"
	"testing"
)

func sampleSnapshot() Snapshot {
	return Snapshot{
		Elements: []Element{
			{ID: "root", Type: ElementPackage, Name: "Root"},
			{ID: "b1", Type: ElementBlock, Name: "Motor", Owner: "root", Properties: NewProperties(PropPorts, "in, out")},
			{ID: "b2", Type: ElementBlock, Name: "Car", Owner: "root"},
		},
		Relationships: []Relationship{
			{ID: "r1", Type: RelCompositeAggregation, Source: "b2", Target: "b1", Properties: NewProperties(PropMultiplicity, "1")},
		},
		Diagrams: []Diagram{{
			ID:      "d1",
			Type:    DiagramInternalBlock,
			Name:    "Car IBD",
			Father:  "b2",
			Tags:    []string{"x"},
			Objects: []DiagramObject{{ID: 1, Type: ElementBlockBoundary, ElementID: "b2", Properties: NewProperties(PropName, "Car")}},
		}},
		ElementDiagrams: map[string]string{"b2": "d1"},
	}
}

func TestSnapshotCloneIsDeep(t *testing.T) {
	snap := sampleSnapshot()
	clone := snap.Clone()
	if !reflect.DeepEqual(snap, clone) {
		t.Fatalf("clone differs from source")
	}
	clone.Elements[1].Properties.Set(PropPorts, "changed")
	clone.Diagrams[0].Objects[0].Properties.Set(PropName, "changed")
	clone.Diagrams[0].Tags[0] = "y"
	clone.ElementDiagrams["b1"] = "d1"
	if snap.Elements[1].Properties.Value(PropPorts) != "in, out" {
		t.Fatalf("element properties aliased")
	}
	if snap.Diagrams[0].Objects[0].Properties.Value(PropName) != "Car" {
		t.Fatalf("object properties aliased")
	}
	if snap.Diagrams[0].Tags[0] != "x" {
		t.Fatalf("tags aliased")
	}
	if _, ok := snap.ElementDiagrams["b1"]; ok {
		t.Fatalf("link map aliased")
	}
}

func TestSnapshotValidate(t *testing.T) {
	if err := sampleSnapshot().Validate(); err != nil {
		t.Fatalf("expected valid snapshot: %v", err)
	}

	dangling := sampleSnapshot()
	dangling.Relationships[0].Target = "missing"
	err := dangling.Validate()
	if !errors.Is(err, ErrDanglingReference) {
		t.Fatalf("expected dangling reference, got %v", err)
	}
	var refErr *ReferenceError
	if !errors.As(err, &refErr) || refErr.ID != "missing" || refErr.Field != "target" {
		t.Fatalf("unexpected reference error %+v", refErr)
	}

	badOwner := sampleSnapshot()
	badOwner.Elements[2].Owner = "b1"
	if err := badOwner.Validate(); !errors.Is(err, ErrInvalidOwner) {
		t.Fatalf("expected invalid owner, got %v", err)
	}

	badLink := sampleSnapshot()
	badLink.ElementDiagrams["b1"] = "nope"
	if err := badLink.Validate(); !errors.Is(err, ErrDanglingReference) {
		t.Fatalf("expected dangling link, got %v", err)
	}

	badFather := sampleSnapshot()
	badFather.Diagrams[0].Father = "ghost"
	if err := badFather.Validate(); !errors.Is(err, ErrDanglingReference) {
		t.Fatalf("expected dangling father, got %v", err)
	}

	badObject := sampleSnapshot()
	badObject.Diagrams[0].Objects[0].ElementID = "ghost"
	if err := badObject.Validate(); !errors.Is(err, ErrDanglingReference) {
		t.Fatalf("expected dangling placement, got %v", err)
	}

	shared := sampleSnapshot()
	shared.ElementDiagrams["b1"] = "d1"
	if err := shared.Validate(); err == nil {
		t.Fatalf("expected a diagram linked to two elements to be rejected")
	}
}

func TestDiagramHelpers(t *testing.T) {
	d := Diagram{
		Tags:        []string{TagSafetyManagement},
		Objects:     []DiagramObject{{ID: 3}, {ID: 7}},
		Connections: []DiagramConnection{{ID: 2}},
	}
	if d.NextObjectID() != 8 || d.NextConnectionID() != 3 {
		t.Fatalf("unexpected next ids %d %d", d.NextObjectID(), d.NextConnectionID())
	}
	if (Diagram{}).NextObjectID() != 1 {
		t.Fatalf("empty diagram should start at 1")
	}
	if _, ok := d.FindObject(7); !ok {
		t.Fatalf("expected object 7")
	}
	if !d.HasTag(TagSafetyManagement) {
		t.Fatalf("expected tag")
	}
}

func TestErrorKinds(t *testing.T) {
	cases := []struct {
		err  error
		kind error
	}{
		{MissingElement("x", "source"), ErrDanglingReference},
		{MissingDiagram("d", ""), ErrDanglingReference},
		{MissingRelationship("r"), ErrDanglingReference},
		{&NameError{Name: "A", Existing: "e1"}, ErrDuplicateName},
		{&OwnerError{Owner: "p", Reason: "missing"}, ErrInvalidOwner},
		{&LimitError{Parent: "a", Definition: "b", Limit: 1}, ErrLimitExceeded},
	}
	for _, tc := range cases {
		if !errors.Is(tc.err, tc.kind) {
			t.Fatalf("%v does not match %v", tc.err, tc.kind)
		}
		if tc.err.Error() == "" {
			t.Fatalf("empty error message")
		}
	}
}
