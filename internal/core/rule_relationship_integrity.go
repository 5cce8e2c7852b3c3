package core

import (
	"context"
	"fmt"

	"modelcore/pkg/domain"
)

// NewRelationshipIntegrityRule returns the rule rejecting relationships or
// diagram placements that name elements absent from the model.
func NewRelationshipIntegrityRule() domain.Rule {
	return relationshipIntegrityRule{}
}

type relationshipIntegrityRule struct{}

func (relationshipIntegrityRule) Name() string { return "relationship_integrity" }

func (relationshipIntegrityRule) Evaluate(_ context.Context, view domain.RuleView, _ []domain.Change) (domain.Result, error) {
	res := domain.Result{}
	missing := func(id string) bool {
		_, ok := view.FindElement(id)
		return !ok
	}
	for _, rel := range view.ListRelationships(domain.RelationshipFilter{}) {
		for _, end := range []string{rel.Source, rel.Target} {
			if missing(end) {
				res.Violations = append(res.Violations, domain.Violation{
					Rule:     "relationship_integrity",
					Severity: domain.SeverityBlock,
					Message:  fmt.Sprintf("relationship %s (%s) references missing element %s", rel.ID, rel.Type, end),
					Entity:   domain.EntityRelationship,
					EntityID: rel.ID,
				})
			}
		}
	}
	for _, d := range view.ListDiagrams() {
		for _, obj := range d.Objects {
			if obj.ElementID != "" && missing(obj.ElementID) {
				res.Violations = append(res.Violations, domain.Violation{
					Rule:     "relationship_integrity",
					Severity: domain.SeverityBlock,
					Message:  fmt.Sprintf("diagram %s object %d references missing element %s", d.Name, obj.ID, obj.ElementID),
					Entity:   domain.EntityDiagram,
					EntityID: d.ID,
				})
			}
		}
	}
	return res, nil
}
