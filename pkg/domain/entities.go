// Package domain defines the core model records, value types, and rule
// evaluation primitives used by modelcore.
package domain

import "time"

// EntityType identifies the collection a record lives in.
type EntityType string

// Supported entity type identifiers used in Change records and persistence buckets.
const (
	// EntityElement identifies a model element record.
	EntityElement EntityType = "element"
	// EntityRelationship identifies a directed relationship record.
	EntityRelationship EntityType = "relationship"
	// EntityDiagram identifies a diagram record.
	EntityDiagram EntityType = "diagram"
	// EntityDiagramObject identifies a placement inside a diagram.
	EntityDiagramObject EntityType = "diagram_object"
	// EntityDiagramLink identifies an element to diagram association.
	EntityDiagramLink EntityType = "element_diagram"
)

// ElementType tags an element with its modeling kind.
type ElementType string

// Element kinds understood by the store and the propagation procedures. Other
// values are accepted and stored verbatim.
const (
	ElementPackage       ElementType = "Package"
	ElementBlock         ElementType = "Block"
	ElementPart          ElementType = "Part"
	ElementPort          ElementType = "Port"
	ElementAction        ElementType = "Action"
	ElementActivity      ElementType = "Activity"
	ElementRequirement   ElementType = "Requirement"
	ElementTask          ElementType = "Task"
	ElementBlockBoundary ElementType = "Block Boundary"
)

// RelationshipType tags a directed edge between two elements.
type RelationshipType string

// Relationship kinds with built-in propagation behavior.
const (
	RelGeneralization       RelationshipType = "Generalization"
	RelAggregation          RelationshipType = "Aggregation"
	RelCompositeAggregation RelationshipType = "Composite Aggregation"
	RelAssociation          RelationshipType = "Association"
	RelTrace                RelationshipType = "Trace"
	RelConnector            RelationshipType = "Connector"
	RelFlow                 RelationshipType = "Flow"
)

// IsAggregation reports whether the relationship implies part instances.
func (t RelationshipType) IsAggregation() bool {
	return t == RelAggregation || t == RelCompositeAggregation
}

// DiagramType tags a diagram with its notation.
type DiagramType string

// Diagram kinds referenced by propagation.
const (
	DiagramBlock         DiagramType = "Block Diagram"
	DiagramInternalBlock DiagramType = "Internal Block Diagram"
	DiagramActivity      DiagramType = "Activity Diagram"
	DiagramGovernance    DiagramType = "Governance Diagram"
	DiagramUseCase       DiagramType = "Use Case Diagram"
)

// TagSafetyManagement marks diagrams that stay visible in every phase.
const TagSafetyManagement = "safety-management"

// Severity captures rule outcomes.
type Severity string

// Rule evaluation severities determine commit behavior and logging.
const (
	// SeverityBlock blocks transaction commit.
	SeverityBlock Severity = "block"
	// SeverityWarn logs a warning but allows commit.
	SeverityWarn Severity = "warn"
	SeverityLog  Severity = "log"
)

// Audit carries authorship metadata shared by all top-level records.
type Audit struct {
	Author     string    `json:"author,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
	ModifiedBy string    `json:"modified_by,omitempty"`
	ModifiedAt time.Time `json:"modified_at"`
}

// Element is a typed, uniquely identified model node.
type Element struct {
	ID         string      `json:"id"`
	Type       ElementType `json:"type"`
	Name       string      `json:"name"`
	Properties Properties  `json:"properties,omitempty"`
	Owner      string      `json:"owner,omitempty"`
	Phase      string      `json:"phase,omitempty"`
	Audit
}

// Relationship is a typed directed edge between two element ids.
type Relationship struct {
	ID         string           `json:"id"`
	Type       RelationshipType `json:"type"`
	Source     string           `json:"source"`
	Target     string           `json:"target"`
	Stereotype string           `json:"stereotype,omitempty"`
	Properties Properties       `json:"properties,omitempty"`
	Phase      string           `json:"phase,omitempty"`
	Audit
}

// Touches reports whether either endpoint equals id.
func (r Relationship) Touches(id string) bool {
	return r.Source == id || r.Target == id
}

// Multiplicity resolves the relationship's multiplicity property. The second
// return value is false when no multiplicity was declared.
func (r Relationship) Multiplicity() (Multiplicity, bool) {
	raw, ok := r.Properties.Get(PropMultiplicity)
	if !ok || raw == "" {
		return Multiplicity{}, false
	}
	return ParseMultiplicity(raw), true
}

// DiagramObject is a visual placement inside a diagram. ElementID may be
// empty for purely visual objects such as ports.
type DiagramObject struct {
	ID         int         `json:"obj_id"`
	Type       ElementType `json:"obj_type"`
	ElementID  string      `json:"element_id,omitempty"`
	X          float64     `json:"x"`
	Y          float64     `json:"y"`
	Width      float64     `json:"width,omitempty"`
	Height     float64     `json:"height,omitempty"`
	Properties Properties  `json:"properties,omitempty"`
	Phase      string      `json:"phase,omitempty"`
}

// Definition returns the block id an instance object is typed by.
func (o DiagramObject) Definition() string {
	return o.Properties.Value(PropDefinition)
}

// DiagramConnection links two diagram objects, optionally visualizing a relationship.
type DiagramConnection struct {
	ID             int        `json:"conn_id"`
	Type           string     `json:"conn_type"`
	Src            int        `json:"src"`
	Dst            int        `json:"dst"`
	RelationshipID string     `json:"relationship_id,omitempty"`
	Properties     Properties `json:"properties,omitempty"`
	Phase          string     `json:"phase,omitempty"`
}

// Diagram is a named container of visual placements.
type Diagram struct {
	ID            string              `json:"id"`
	Type          DiagramType         `json:"type"`
	Name          string              `json:"name"`
	Package       string              `json:"package,omitempty"`
	Description   string              `json:"description,omitempty"`
	Father        string              `json:"father,omitempty"`
	Tags          []string            `json:"tags,omitempty"`
	Elements      []string            `json:"elements,omitempty"`
	Relationships []string            `json:"relationships,omitempty"`
	Objects       []DiagramObject     `json:"objects,omitempty"`
	Connections   []DiagramConnection `json:"connections,omitempty"`
	Phase         string              `json:"phase,omitempty"`
	Audit
}

// HasTag reports whether tag is attached to the diagram.
func (d Diagram) HasTag(tag string) bool {
	for _, t := range d.Tags {
		if t == tag {
			return true
		}
	}
	return false
}

// FindObject returns the object with the provided local id.
func (d Diagram) FindObject(id int) (DiagramObject, bool) {
	for _, obj := range d.Objects {
		if obj.ID == id {
			return obj, true
		}
	}
	return DiagramObject{}, false
}

// NextObjectID returns an object id not yet used by the diagram.
func (d Diagram) NextObjectID() int {
	next := 1
	for _, obj := range d.Objects {
		if obj.ID >= next {
			next = obj.ID + 1
		}
	}
	return next
}

// NextConnectionID returns a connection id not yet used by the diagram.
func (d Diagram) NextConnectionID() int {
	next := 1
	for _, conn := range d.Connections {
		if conn.ID >= next {
			next = conn.ID + 1
		}
	}
	return next
}

// Change describes a mutation applied to an entity during a transaction.
type Change struct {
	Entity EntityType
	Action Action
	Before any
	After  any
}

// Action indicates the type of modification performed.
type Action string

// Change actions enumerate supported CRUD operations captured in audit trail.
const (
	// ActionCreate indicates an entity was created.
	ActionCreate Action = "create"
	// ActionUpdate indicates an entity was updated.
	ActionUpdate Action = "update"
	ActionDelete Action = "delete"
)

// Violation reports a failed rule evaluation.
type Violation struct {
	Rule     string
	Severity Severity
	Message  string
	Entity   EntityType
	EntityID string
}

// Result aggregates violations from the rules engine.
type Result struct {
	Violations []Violation
}

// Merge appends violations from another result.
func (r *Result) Merge(other Result) {
	if len(other.Violations) == 0 {
		return
	}
	r.Violations = append(r.Violations, other.Violations...)
}

// HasBlocking returns true if the result contains blocking violations.
func (r Result) HasBlocking() bool {
	for _, v := range r.Violations {
		if v.Severity == SeverityBlock {
			return true
		}
	}
	return false
}

// RuleViolationError is returned when blocking violations are present.
type RuleViolationError struct {
	Result Result
}

func (e RuleViolationError) Error() string {
	return "transaction blocked by rules"
}
