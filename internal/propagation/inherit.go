package propagation

import (
	"modelcore/pkg/domain"
)

// InheritProperties merges the inheritable list properties of every
// generalization ancestor into childID. The child's own entries keep their
// position; ancestor entries whose canonical name is already present are
// skipped. Repeated calls change nothing.
func (e *Engine) InheritProperties(tx domain.Transaction, childID string) error {
	return e.inherit(tx, childID, make(map[string]struct{}))
}

func (e *Engine) inherit(tx domain.Transaction, id string, done map[string]struct{}) error {
	if _, ok := done[id]; ok {
		return nil
	}
	done[id] = struct{}{}
	child, err := requireElement(tx, id, "")
	if err != nil {
		return err
	}
	parents := generalizationParents(tx, id)
	if len(parents) == 0 {
		return nil
	}
	for _, p := range parents {
		if err := e.inherit(tx, p, done); err != nil {
			return err
		}
	}

	props := child.Properties.Clone()
	changed := false
	for _, key := range domain.InheritedKeys {
		items := domain.SplitList(props.Value(key))
		for _, p := range parents {
			parent, err := requireElement(tx, p, "target")
			if err != nil {
				return err
			}
			var added bool
			items, added = mergeEntries(items, domain.SplitList(parent.Properties.Value(key)))
			changed = changed || added
		}
		if len(items) > 0 {
			props.Set(key, domain.JoinList(items))
		}
	}
	if !changed {
		return nil
	}
	if _, err := tx.UpdateElement(id, func(el *domain.Element) error {
		el.Properties = props
		return nil
	}); err != nil {
		return err
	}
	e.logger.Debug("inherited block properties", "block", id, "parents", len(parents))
	return nil
}

// mergeEntries appends entries of src not yet present in dst by canonical name.
func mergeEntries(dst, src []string) ([]string, bool) {
	seen := make(map[string]struct{}, len(dst))
	for _, d := range dst {
		seen[domain.CanonicalName(d)] = struct{}{}
	}
	added := false
	for _, s := range src {
		key := domain.CanonicalName(s)
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		dst = append(dst, s)
		added = true
	}
	return dst, added
}

// removalSet maps an inheritable key to the canonical names being withdrawn.
type removalSet map[string]map[string]struct{}

func (r removalSet) empty() bool {
	for _, names := range r {
		if len(names) > 0 {
			return false
		}
	}
	return true
}

// without drops every name still provided by one of providers.
func (r removalSet) without(tx domain.TransactionView, providers []string) removalSet {
	out := make(removalSet, len(r))
	for key, names := range r {
		kept := make(map[string]struct{}, len(names))
		for name := range names {
			kept[name] = struct{}{}
		}
		for _, p := range providers {
			provider, ok := tx.FindElement(p)
			if !ok {
				continue
			}
			for _, entry := range domain.SplitList(provider.Properties.Value(key)) {
				delete(kept, domain.CanonicalName(entry))
			}
		}
		out[key] = kept
	}
	return out
}

// RemoveInheritedProperties withdraws what parentID contributed to childID:
// entries are removed by canonical name unless another generalization parent
// still provides them, part objects for withdrawn part properties leave the
// child's diagram, and the removal continues through the child's descendants.
func (e *Engine) RemoveInheritedProperties(tx domain.Transaction, childID, parentID string) error {
	if _, err := requireElement(tx, childID, ""); err != nil {
		return err
	}
	parent, ok := tx.FindElement(parentID)
	if !ok {
		return nil
	}
	removed := make(removalSet, len(domain.InheritedKeys))
	for _, key := range domain.InheritedKeys {
		names := make(map[string]struct{})
		for _, entry := range domain.SplitList(parent.Properties.Value(key)) {
			names[domain.CanonicalName(entry)] = struct{}{}
		}
		removed[key] = names
	}
	var others []string
	for _, p := range generalizationParents(tx, childID) {
		if p != parentID {
			others = append(others, p)
		}
	}
	return e.subtract(tx, childID, removed.without(tx, others), map[string]struct{}{parentID: {}})
}

// subtract removes the names in removed from id and its descendants.
func (e *Engine) subtract(tx domain.Transaction, id string, removed removalSet, done map[string]struct{}) error {
	if _, ok := done[id]; ok || removed.empty() {
		return nil
	}
	done[id] = struct{}{}
	block, ok := tx.FindElement(id)
	if !ok {
		return nil
	}
	props := block.Properties.Clone()
	var droppedParts []string
	changed := false
	for _, key := range domain.InheritedKeys {
		names := removed[key]
		if len(names) == 0 {
			continue
		}
		var kept []string
		for _, entry := range domain.SplitList(props.Value(key)) {
			if _, drop := names[domain.CanonicalName(entry)]; drop {
				changed = true
				if key == domain.PropPartProperties {
					droppedParts = append(droppedParts, entry)
				}
				continue
			}
			kept = append(kept, entry)
		}
		setList(&props, key, kept)
	}
	if changed {
		if _, err := tx.UpdateElement(id, func(el *domain.Element) error {
			el.Properties = props
			return nil
		}); err != nil {
			return err
		}
	}
	for _, entry := range droppedParts {
		def, ok := blockByName(tx, domain.ParsePartProperty(entry).Definition)
		if !ok {
			continue
		}
		if err := e.dropPartObjects(tx, id, def.ID); err != nil {
			return err
		}
	}
	if changed {
		e.logger.Debug("removed inherited block properties", "block", id, "parts", len(droppedParts))
	}
	for _, child := range generalizationChildren(tx, id) {
		var others []string
		for _, p := range generalizationParents(tx, child) {
			if p != id {
				others = append(others, p)
			}
		}
		if err := e.subtract(tx, child, removed.without(tx, others), done); err != nil {
			return err
		}
	}
	return nil
}

// dropPartObjects removes Part objects typed by definitionID from the diagram
// linked to blockID. Part elements owned by the block are deleted outright.
func (e *Engine) dropPartObjects(tx domain.Transaction, blockID, definitionID string) error {
	diagram, ok := linkedDiagram(tx, blockID)
	if !ok {
		return nil
	}
	for _, obj := range diagram.Objects {
		if obj.Type != domain.ElementPart || obj.Definition() != definitionID {
			continue
		}
		if part, ok := tx.FindElement(obj.ElementID); ok && part.Properties.Value(domain.PropParent) == blockID {
			if err := tx.DeleteElement(part.ID); err != nil {
				return err
			}
			continue
		}
		if err := tx.RemoveDiagramObject(diagram.ID, obj.ID); err != nil {
			return err
		}
	}
	return nil
}

// PropagateBlockChanges re-applies inheritance to every descendant of blockID
// and brings their diagrams up to date with the inherited part properties and ports.
func (e *Engine) PropagateBlockChanges(tx domain.Transaction, blockID string) error {
	if _, err := requireElement(tx, blockID, ""); err != nil {
		return err
	}
	for _, child := range descendants(tx, blockID) {
		if err := e.InheritProperties(tx, child); err != nil {
			return err
		}
		if err := e.SyncPartPropertyParts(tx, child); err != nil {
			return err
		}
		if err := e.MirrorPorts(tx, child); err != nil {
			return err
		}
	}
	return nil
}
