package propagation

import (
	"strings"

	"modelcore/pkg/domain"
)

// renameEntry rewrites a partProperties entry whose definition is oldName,
// keeping any "name:" prefix and bracketed multiplicity.
func renameEntry(entry, oldName, newName string) (string, bool) {
	parsed := domain.ParsePartProperty(entry)
	if parsed.Definition != oldName {
		return entry, false
	}
	var b strings.Builder
	switch {
	case parsed.Name != parsed.Definition:
		b.WriteString(parsed.Name)
		b.WriteString(":")
		b.WriteString(newName)
	default:
		b.WriteString(newName)
	}
	if parsed.Multiplicity != "" {
		b.WriteString("[")
		b.WriteString(parsed.Multiplicity)
		b.WriteString("]")
	}
	return b.String(), true
}

// renamePart maps an instance name derived from oldName onto newName.
func renamePart(name, oldName, newName string) (string, bool) {
	if name == oldName {
		return newName, true
	}
	if strings.HasPrefix(name, oldName+"[") {
		return newName + name[len(oldName):], true
	}
	return name, false
}

// unnamedInstances groups the Part instances of a block that had no name,
// and therefore carry generated names, by their parent.
func unnamedInstances(view domain.TransactionView, blockID string) map[string][]domain.Element {
	out := make(map[string][]domain.Element)
	for _, el := range view.ListElements() {
		if el.Type != domain.ElementPart || el.Properties.Value(domain.PropDefinition) != blockID {
			continue
		}
		if !generatedPartName(el.Name) {
			continue
		}
		parent := el.Properties.Value(domain.PropParent)
		out[parent] = append(out[parent], el)
	}
	return out
}

func generatedPartName(name string) bool {
	digits := strings.TrimPrefix(name, "Part")
	if digits == name || digits == "" {
		return false
	}
	return strings.Trim(digits, "0123456789") == ""
}

// PropagateRename follows a block rename from oldName to the block's current
// name: Part instances and rendered object names derived from the old name,
// partProperties entries of every block, and the whole's listing of the block
// for every aggregation targeting it. Descendants of every touched block are
// then re-inherited.
func (e *Engine) PropagateRename(tx domain.Transaction, blockID, oldName string) error {
	block, err := requireElement(tx, blockID, "")
	if err != nil {
		return err
	}
	newName := block.Name
	if newName == oldName {
		return nil
	}

	if oldName == "" {
		for _, group := range unnamedInstances(tx, blockID) {
			for i, el := range group {
				name := newName
				if len(group) > 1 {
					name = instanceName(newName, i+1)
				}
				if _, err := tx.RenameElement(el.ID, name); err != nil {
					return err
				}
			}
		}
	} else {
		for _, el := range tx.ListElements() {
			if el.Type != domain.ElementPart || el.Properties.Value(domain.PropDefinition) != blockID {
				continue
			}
			if renamed, ok := renamePart(el.Name, oldName, newName); ok {
				if _, err := tx.RenameElement(el.ID, renamed); err != nil {
					return err
				}
			}
		}
	}

	for _, d := range tx.ListDiagrams() {
		for _, obj := range d.Objects {
			if !instantiates(obj, blockID) || obj.Properties.Value(domain.PropName) != oldName || oldName == "" {
				continue
			}
			if _, err := tx.UpdateDiagramObject(d.ID, obj.ID, func(o *domain.DiagramObject) error {
				o.Properties.Set(domain.PropName, newName)
				return nil
			}); err != nil {
				return err
			}
		}
	}

	touched := make(map[string]struct{})
	if oldName != "" {
		for _, el := range tx.ListElements() {
			if el.Type != domain.ElementBlock {
				continue
			}
			entries := domain.SplitList(el.Properties.Value(domain.PropPartProperties))
			changed := false
			for i, entry := range entries {
				if renamed, ok := renameEntry(entry, oldName, newName); ok {
					entries[i] = renamed
					changed = true
				}
			}
			if !changed {
				continue
			}
			if _, err := tx.UpdateElement(el.ID, func(u *domain.Element) error {
				u.Properties.Set(domain.PropPartProperties, domain.JoinList(entries))
				return nil
			}); err != nil {
				return err
			}
			touched[el.ID] = struct{}{}
		}
	}

	for _, rel := range tx.ListRelationships(domain.RelationshipFilter{Target: blockID}) {
		if !rel.Type.IsAggregation() {
			continue
		}
		if err := ensurePartProperty(tx, rel.Source, newName); err != nil {
			return err
		}
		touched[rel.Source] = struct{}{}
	}

	touched[blockID] = struct{}{}
	for id := range touched {
		for _, child := range descendants(tx, id) {
			if err := e.InheritProperties(tx, child); err != nil {
				return err
			}
		}
	}
	e.logger.Debug("propagated block rename", "block", blockID, "from", oldName, "to", newName)
	return nil
}
