// Package propagation keeps derived model data consistent after a mutation:
// inherited block properties, part instances implied by aggregations, ports
// mirrored onto part objects, and names that follow block renames.
//
// Every procedure takes the caller's domain.Transaction so the derived edits
// commit or roll back together with the triggering change.
package propagation

import (
	"io"
	"log/slog"
	"slices"

	"modelcore/pkg/domain"
)

// Engine runs propagation procedures. It holds no model state.
type Engine struct {
	logger *slog.Logger
}

// New constructs an Engine. A nil logger discards output.
func New(logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Engine{logger: logger}
}

// generalizationParents returns the targets of Generalization edges leaving id.
func generalizationParents(view domain.TransactionView, id string) []string {
	var out []string
	for _, rel := range view.ListRelationships(domain.RelationshipFilter{Type: domain.RelGeneralization, Source: id}) {
		if !slices.Contains(out, rel.Target) {
			out = append(out, rel.Target)
		}
	}
	return out
}

// generalizationChildren returns the sources of Generalization edges entering id.
func generalizationChildren(view domain.TransactionView, id string) []string {
	var out []string
	for _, rel := range view.ListRelationships(domain.RelationshipFilter{Type: domain.RelGeneralization, Target: id}) {
		if !slices.Contains(out, rel.Source) {
			out = append(out, rel.Source)
		}
	}
	return out
}

// ancestors returns every generalization ancestor of id, nearest first.
func ancestors(view domain.TransactionView, id string) []string {
	seen := map[string]struct{}{id: {}}
	var out []string
	queue := []string{id}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		for _, p := range generalizationParents(view, cur) {
			if _, ok := seen[p]; ok {
				continue
			}
			seen[p] = struct{}{}
			out = append(out, p)
			queue = append(queue, p)
		}
	}
	return out
}

// descendants returns every generalization descendant of id, nearest first.
func descendants(view domain.TransactionView, id string) []string {
	seen := map[string]struct{}{id: {}}
	var out []string
	queue := []string{id}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		for _, c := range generalizationChildren(view, cur) {
			if _, ok := seen[c]; ok {
				continue
			}
			seen[c] = struct{}{}
			out = append(out, c)
			queue = append(queue, c)
		}
	}
	return out
}

// blockByName returns the first block named name.
func blockByName(view domain.TransactionView, name string) (domain.Element, bool) {
	if name == "" {
		return domain.Element{}, false
	}
	for _, e := range view.ListElements() {
		if e.Type == domain.ElementBlock && e.Name == name {
			return e, true
		}
	}
	return domain.Element{}, false
}

// linkedDiagram resolves the diagram implementing elementID.
func linkedDiagram(view domain.TransactionView, elementID string) (domain.Diagram, bool) {
	id, ok := view.LinkedDiagram(elementID)
	if !ok {
		return domain.Diagram{}, false
	}
	return view.FindDiagram(id)
}

func requireElement(view domain.TransactionView, id, field string) (domain.Element, error) {
	e, ok := view.FindElement(id)
	if !ok {
		return domain.Element{}, domain.MissingElement(id, field)
	}
	return e, nil
}

// setList writes a list property, deleting the key when the list is empty.
func setList(props *domain.Properties, key string, items []string) {
	if len(items) == 0 {
		props.Delete(key)
		return
	}
	props.Set(key, domain.JoinList(items))
}
