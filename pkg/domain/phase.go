package domain

import "slices"

// GlobalPhase tags records that are visible from every lifecycle phase.
const GlobalPhase = ""

// PhaseScope describes which lifecycle phases a caller can see. An empty
// Active phase sees everything.
type PhaseScope struct {
	Active string
	// Reuse lists phases whose records stay visible (read-only) from Active.
	Reuse []string
	// ReuseProducts lists diagram types reused from other phases.
	ReuseProducts []DiagramType
}

// Visible reports whether a record tagged with phase is visible.
func (s PhaseScope) Visible(phase string) bool {
	if s.Active == "" || phase == GlobalPhase {
		return true
	}
	return phase == s.Active || slices.Contains(s.Reuse, phase)
}

func (s PhaseScope) reusesProduct(t DiagramType) bool {
	return slices.Contains(s.ReuseProducts, t)
}

// ElementVisible applies the phase rule to an element. linked is the diagram
// implementing the element, if any.
func (s PhaseScope) ElementVisible(e Element, linked *Diagram) bool {
	if s.Visible(e.Phase) {
		return true
	}
	return linked != nil && s.reusesProduct(linked.Type)
}

// DiagramVisible applies the phase rule to a diagram.
func (s PhaseScope) DiagramVisible(d Diagram) bool {
	if d.HasTag(TagSafetyManagement) || s.Visible(d.Phase) {
		return true
	}
	return s.reusesProduct(d.Type)
}

// ObjectVisible applies the phase rule to an object placed on d.
func (s PhaseScope) ObjectVisible(d Diagram, obj DiagramObject) bool {
	if d.HasTag(TagSafetyManagement) || s.reusesProduct(d.Type) {
		return true
	}
	return s.Visible(obj.Phase)
}

// ConnectionVisible applies the phase rule to a connection drawn on d.
func (s PhaseScope) ConnectionVisible(d Diagram, conn DiagramConnection) bool {
	if d.HasTag(TagSafetyManagement) || s.reusesProduct(d.Type) {
		return true
	}
	return s.Visible(conn.Phase)
}

// ElementReadOnly reports whether e originates from a reused phase or work product.
func (s PhaseScope) ElementReadOnly(e Element, linked *Diagram) bool {
	if s.Active == "" || e.Phase == GlobalPhase {
		return false
	}
	if e.Phase != s.Active && slices.Contains(s.Reuse, e.Phase) {
		return true
	}
	return linked != nil && s.reusesProduct(linked.Type) && linked.Phase != s.Active
}

// DiagramReadOnly reports whether d originates from a reused phase or work product.
func (s PhaseScope) DiagramReadOnly(d Diagram) bool {
	if s.Active == "" || d.Phase == GlobalPhase || d.Phase == s.Active {
		return false
	}
	return slices.Contains(s.Reuse, d.Phase) || s.reusesProduct(d.Type)
}
