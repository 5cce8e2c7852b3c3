package domain

import "testing"

func TestPhaseScopeVisibility(t *testing.T) {
	all := PhaseScope{}
	if !all.Visible("concept") || !all.Visible(GlobalPhase) {
		t.Fatalf("empty scope sees everything")
	}

	scope := PhaseScope{Active: "design", Reuse: []string{"concept"}, ReuseProducts: []DiagramType{DiagramGovernance}}
	if !scope.Visible("design") || !scope.Visible(GlobalPhase) || !scope.Visible("concept") {
		t.Fatalf("expected active, global and reused phases to be visible")
	}
	if scope.Visible("production") {
		t.Fatalf("foreign phase must be hidden")
	}

	other := Diagram{Type: DiagramBlock, Phase: "production"}
	if scope.DiagramVisible(other) {
		t.Fatalf("foreign diagram must be hidden")
	}
	other.Tags = []string{TagSafetyManagement}
	if !scope.DiagramVisible(other) {
		t.Fatalf("safety-management diagrams are always visible")
	}
	gov := Diagram{Type: DiagramGovernance, Phase: "production"}
	if !scope.DiagramVisible(gov) || !scope.ObjectVisible(gov, DiagramObject{Phase: "production"}) {
		t.Fatalf("reused products stay visible")
	}

	ibd := Diagram{Type: DiagramInternalBlock, Phase: "design"}
	if scope.ObjectVisible(ibd, DiagramObject{Phase: "production"}) {
		t.Fatalf("foreign object must be hidden")
	}
	if !scope.ConnectionVisible(ibd, DiagramConnection{Phase: GlobalPhase}) {
		t.Fatalf("global connection must be visible")
	}

	elem := Element{Phase: "production"}
	if scope.ElementVisible(elem, nil) {
		t.Fatalf("foreign element must be hidden")
	}
	if !scope.ElementVisible(elem, &gov) {
		t.Fatalf("element implemented by a reused product must be visible")
	}
}

func TestPhaseScopeReadOnly(t *testing.T) {
	scope := PhaseScope{Active: "design", Reuse: []string{"concept"}, ReuseProducts: []DiagramType{DiagramGovernance}}
	if !scope.ElementReadOnly(Element{Phase: "concept"}, nil) {
		t.Fatalf("reused element should be read-only")
	}
	if scope.ElementReadOnly(Element{Phase: "design"}, nil) || scope.ElementReadOnly(Element{}, nil) {
		t.Fatalf("active and global elements are writable")
	}
	gov := Diagram{Type: DiagramGovernance, Phase: "concept"}
	if !scope.DiagramReadOnly(gov) {
		t.Fatalf("reused diagram should be read-only")
	}
	if !scope.ElementReadOnly(Element{Phase: "production"}, &gov) {
		t.Fatalf("element linked to reused product should be read-only")
	}
	if (PhaseScope{}).DiagramReadOnly(gov) {
		t.Fatalf("no active phase means nothing is read-only")
	}
}
