package propagation

import (
	"strconv"

	"modelcore/pkg/domain"
)

// SyncPartPropertyParts places one Part object per partProperties entry of
// blockID in the block's linked diagram. Entries are deduplicated by canonical
// name, entries whose definition already has Part objects there are skipped,
// and aggregation bounds are respected. A bracketed multiplicity on the entry
// asks for its lower bound of instances.
func (e *Engine) SyncPartPropertyParts(tx domain.Transaction, blockID string) error {
	_, err := e.syncPartProperties(tx, blockID)
	return err
}

func (e *Engine) syncPartProperties(tx domain.Transaction, blockID string) ([]domain.DiagramObject, error) {
	block, err := requireElement(tx, blockID, "")
	if err != nil {
		return nil, err
	}
	diagram, ok := linkedDiagram(tx, blockID)
	if !ok {
		return nil, nil
	}
	defined := make(map[string]struct{})
	for _, obj := range diagram.Objects {
		if obj.Type == domain.ElementPart {
			defined[obj.Definition()] = struct{}{}
		}
	}
	seen := make(map[string]struct{})
	var added []domain.DiagramObject
	for _, entry := range domain.SplitList(block.Properties.Value(domain.PropPartProperties)) {
		key := domain.CanonicalName(entry)
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		parsed := domain.ParsePartProperty(entry)
		def, ok := blockByName(tx, parsed.Definition)
		if !ok {
			continue
		}
		if _, placed := defined[def.ID]; placed {
			continue
		}
		defined[def.ID] = struct{}{}
		if existing := partInstances(tx, blockID, def.ID); len(existing) > 0 {
			objs, err := placeInstances(tx, blockID, existing)
			if err != nil {
				return nil, err
			}
			added = append(added, objs...)
			continue
		}
		want := 1
		if parsed.Multiplicity != "" {
			m := domain.ParseMultiplicity(parsed.Multiplicity)
			want = m.Clamp(m.Lower)
		}
		for range want {
			candidate := domain.DiagramObject{Type: domain.ElementPart, Properties: domain.NewProperties(domain.PropDefinition, def.ID)}
			if e.MultiplicityLimitExceeded(tx, blockID, def.ID, []domain.DiagramObject{candidate}) {
				e.logger.Debug("part property limit reached", "block", blockID, "definition", def.ID)
				break
			}
			if _, err := createInstances(tx, block, def, parsed.Name, 1); err != nil {
				return nil, err
			}
			objs, err := placeInstances(tx, blockID, partInstances(tx, blockID, def.ID))
			if err != nil {
				return nil, err
			}
			added = append(added, objs...)
		}
	}
	return added, nil
}

// SetIBDFather makes diagramID the internal block diagram of blockID: the
// diagram's father is set and linked, a Block Boundary is placed, parts implied
// by aggregations and part properties are rendered, parts shown on the
// diagrams of generalization parents are copied with their ports, and the
// block's ports are mirrored. The newly placed part objects are returned.
func (e *Engine) SetIBDFather(tx domain.Transaction, diagramID, blockID string) ([]domain.DiagramObject, error) {
	diagram, ok := tx.FindDiagram(diagramID)
	if !ok {
		return nil, domain.MissingDiagram(diagramID, "")
	}
	block, err := requireElement(tx, blockID, "father")
	if err != nil {
		return nil, err
	}
	if diagram.Father != blockID {
		if _, err := tx.UpdateDiagram(diagramID, func(d *domain.Diagram) error {
			d.Father = blockID
			return nil
		}); err != nil {
			return nil, err
		}
	}
	if err := tx.LinkDiagram(blockID, diagramID); err != nil {
		return nil, err
	}
	if !hasBoundary(diagram, blockID) {
		if _, err := tx.AddDiagramObject(diagramID, domain.DiagramObject{
			Type:       domain.ElementBlockBoundary,
			ElementID:  blockID,
			X:          20,
			Y:          20,
			Width:      640,
			Height:     420,
			Properties: domain.NewProperties(domain.PropName, block.Name),
		}); err != nil {
			return nil, err
		}
	}

	if err := e.InheritProperties(tx, blockID); err != nil {
		return nil, err
	}
	var added []domain.DiagramObject
	for _, owner := range append([]string{blockID}, ancestors(tx, blockID)...) {
		for _, rel := range tx.ListRelationships(domain.RelationshipFilter{Source: owner}) {
			if !rel.Type.IsAggregation() {
				continue
			}
			objs, err := e.syncAggregation(tx, blockID, rel.Target)
			if err != nil {
				return nil, err
			}
			added = append(added, objs...)
		}
	}
	objs, err := e.syncPartProperties(tx, blockID)
	if err != nil {
		return nil, err
	}
	added = append(added, objs...)
	objs, err = e.inheritFatherParts(tx, diagramID, blockID)
	if err != nil {
		return nil, err
	}
	added = append(added, objs...)
	if err := e.MirrorPorts(tx, blockID); err != nil {
		return nil, err
	}
	e.logger.Debug("set ibd father", "diagram", diagramID, "block", blockID, "added", len(added))
	return added, nil
}

func hasBoundary(d domain.Diagram, blockID string) bool {
	for _, obj := range d.Objects {
		if obj.Type == domain.ElementBlockBoundary && obj.ElementID == blockID {
			return true
		}
	}
	return false
}

// inheritFatherParts copies the Part objects shown on the linked diagrams of
// blockID's generalization parents into diagramID, together with the ports
// they host. Parts already shown are left alone.
func (e *Engine) inheritFatherParts(tx domain.Transaction, diagramID, blockID string) ([]domain.DiagramObject, error) {
	var added []domain.DiagramObject
	for _, parentID := range generalizationParents(tx, blockID) {
		source, ok := linkedDiagram(tx, parentID)
		if !ok || source.ID == diagramID {
			continue
		}
		target, ok := tx.FindDiagram(diagramID)
		if !ok {
			return nil, domain.MissingDiagram(diagramID, "")
		}
		shown := make(map[string]struct{}, len(target.Objects))
		for _, obj := range target.Objects {
			if obj.ElementID != "" {
				shown[obj.ElementID] = struct{}{}
			}
		}
		for _, obj := range source.Objects {
			if obj.Type != domain.ElementPart || obj.ElementID == "" {
				continue
			}
			if _, ok := shown[obj.ElementID]; ok {
				continue
			}
			copied := domain.CloneObject(obj)
			copied.ID = 0
			placed, err := tx.AddDiagramObject(diagramID, copied)
			if err != nil {
				return nil, err
			}
			shown[obj.ElementID] = struct{}{}
			added = append(added, placed)
			for _, port := range hostedPorts(source, obj.ID) {
				portCopy := domain.CloneObject(port)
				portCopy.ID = 0
				portCopy.Properties.Set(domain.PropParent, strconv.Itoa(placed.ID))
				if _, err := tx.AddDiagramObject(diagramID, portCopy); err != nil {
					return nil, err
				}
			}
		}
	}
	return added, nil
}
