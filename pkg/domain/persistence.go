package domain

import (
	"context"
	"time"
)

// RelationshipFilter narrows relationship listings. Zero fields match anything.
type RelationshipFilter struct {
	Type   RelationshipType
	Source string
	Target string
}

// Matches reports whether r satisfies the filter.
func (f RelationshipFilter) Matches(r Relationship) bool {
	if f.Type != "" && r.Type != f.Type {
		return false
	}
	if f.Source != "" && r.Source != f.Source {
		return false
	}
	if f.Target != "" && r.Target != f.Target {
		return false
	}
	return true
}

// TransactionView provides read-only access to snapshot data for rules and
// propagation. Listings follow insertion order.
type TransactionView interface {
	ListElements() []Element
	ListRelationships(filter RelationshipFilter) []Relationship
	ListDiagrams() []Diagram
	FindElement(id string) (Element, bool)
	FindRelationship(id string) (Relationship, bool)
	FindDiagram(id string) (Diagram, bool)
	// LinkedDiagram returns the diagram implementing elementID.
	LinkedDiagram(elementID string) (string, bool)
	// LinkedElement returns the element implemented by diagramID.
	LinkedElement(diagramID string) (string, bool)
	// Referrers returns the relationships touching elementID and the ids of
	// diagrams that place or list it, using the store's back-reference index.
	Referrers(elementID string) (relationships []string, diagrams []string)
	RootPackage() string
}

// Transaction exposes the model operations that a persistence implementation
// must support within an atomic scope.
type Transaction interface {
	TransactionView
	Now() time.Time
	ActivePhase() string
	CreateElement(Element) (Element, error)
	UpdateElement(id string, mutator func(*Element) error) (Element, error)
	RenameElement(id, name string) (Element, error)
	DeleteElement(id string) error
	CreateRelationship(Relationship) (Relationship, error)
	UpdateRelationship(id string, mutator func(*Relationship) error) (Relationship, error)
	DeleteRelationship(id string) error
	CreateDiagram(Diagram) (Diagram, error)
	UpdateDiagram(id string, mutator func(*Diagram) error) (Diagram, error)
	DeleteDiagram(id string) error
	AddDiagramObject(diagramID string, obj DiagramObject) (DiagramObject, error)
	UpdateDiagramObject(diagramID string, objID int, mutator func(*DiagramObject) error) (DiagramObject, error)
	RemoveDiagramObject(diagramID string, objID int) error
	AddDiagramConnection(diagramID string, conn DiagramConnection) (DiagramConnection, error)
	RemoveDiagramConnection(diagramID string, connID int) error
	LinkDiagram(elementID, diagramID string) error
}

// PersistentStore is a minimal abstraction over durable backends. It mirrors
// the subset of store capabilities used directly by higher layers.
type PersistentStore interface {
	RunInTransaction(ctx context.Context, fn func(Transaction) error) (Result, error)
	View(ctx context.Context, fn func(TransactionView) error) error
	ExportState() Snapshot
	ImportState(Snapshot) error
	GetElement(id string) (Element, bool)
	ListElements() []Element
	ListRelationships(filter RelationshipFilter) []Relationship
	GetDiagram(id string) (Diagram, bool)
	ListDiagrams() []Diagram
}
