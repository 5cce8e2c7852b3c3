package core

import (
	"context"
	"fmt"

	"modelcore/internal/propagation"
	"modelcore/pkg/domain"
)

// NewPartMultiplicityRule returns the rule blocking commits that add parts of
// a block beyond what its aggregations allow. Parts left over after a bound
// is lowered are not blocked; a whole-model evaluation reports them as
// warnings until they are pruned with RemoveExcessParts.
func NewPartMultiplicityRule() domain.Rule {
	return partMultiplicityRule{engine: propagation.New(nil)}
}

type partMultiplicityRule struct {
	engine *propagation.Engine
}

func (partMultiplicityRule) Name() string { return "part_multiplicity" }

type partKey struct{ parent, definition string }

type partKeys struct {
	order []partKey
	seen  map[partKey]struct{}
}

func (k *partKeys) add(parent, definition string) {
	if parent == "" || definition == "" {
		return
	}
	key := partKey{parent, definition}
	if _, dup := k.seen[key]; dup {
		return
	}
	k.seen[key] = struct{}{}
	k.order = append(k.order, key)
}

func (r partMultiplicityRule) Evaluate(_ context.Context, view domain.RuleView, changes []domain.Change) (domain.Result, error) {
	keys := &partKeys{seen: make(map[partKey]struct{})}
	severity := domain.SeverityBlock
	if changes == nil {
		severity = domain.SeverityWarn
		wholeModelKeys(view, keys)
	} else {
		grownKeys(view, changes, keys)
	}

	res := domain.Result{}
	for _, k := range keys.order {
		if !r.engine.MultiplicityLimitExceeded(view, k.parent, k.definition, nil) {
			continue
		}
		res.Violations = append(res.Violations, domain.Violation{
			Rule:     "part_multiplicity",
			Severity: severity,
			Message:  fmt.Sprintf("block %s holds more parts of %s than its multiplicity allows", k.parent, k.definition),
			Entity:   domain.EntityElement,
			EntityID: k.parent,
		})
	}
	return res, nil
}

func wholeModelKeys(view domain.RuleView, keys *partKeys) {
	for _, e := range view.ListElements() {
		if e.Type == domain.ElementPart {
			keys.add(e.Properties.Value(domain.PropParent), e.Properties.Value(domain.PropDefinition))
		}
	}
	for _, d := range view.ListDiagrams() {
		owner := diagramOwner(view, d)
		for def := range partCounts(d) {
			keys.add(owner, def)
		}
	}
}

// grownKeys collects the parent and definition pairs whose part count rose
// in changes.
func grownKeys(view domain.RuleView, changes []domain.Change, keys *partKeys) {
	partOf := func(v any) (partKey, bool) {
		e, ok := v.(domain.Element)
		if !ok || e.Type != domain.ElementPart {
			return partKey{}, false
		}
		return partKey{e.Properties.Value(domain.PropParent), e.Properties.Value(domain.PropDefinition)}, true
	}
	for _, c := range changes {
		switch c.Entity {
		case domain.EntityElement:
			after, ok := partOf(c.After)
			if !ok {
				continue
			}
			if before, had := partOf(c.Before); had && before == after {
				continue
			}
			keys.add(after.parent, after.definition)
		case domain.EntityDiagram:
			after, ok := c.After.(domain.Diagram)
			if !ok {
				continue
			}
			var before map[string]int
			if d, had := c.Before.(domain.Diagram); had {
				before = partCounts(d)
			}
			owner := diagramOwner(view, after)
			for def, n := range partCounts(after) {
				if n > before[def] {
					keys.add(owner, def)
				}
			}
		}
	}
}

func diagramOwner(view domain.RuleView, d domain.Diagram) string {
	if owner, ok := view.LinkedElement(d.ID); ok {
		return owner
	}
	return d.Father
}

func partCounts(d domain.Diagram) map[string]int {
	counts := make(map[string]int)
	for _, obj := range d.Objects {
		if obj.Type == domain.ElementPart {
			counts[obj.Definition()]++
		}
	}
	return counts
}
