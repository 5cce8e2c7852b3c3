package propagation

import (
	"strconv"

	"modelcore/pkg/domain"
)

// instantiates reports whether obj renders blockID: a Part typed by the block
// or the block's own boundary.
func instantiates(obj domain.DiagramObject, blockID string) bool {
	switch obj.Type {
	case domain.ElementPart:
		return obj.Definition() == blockID
	case domain.ElementBlockBoundary:
		return obj.ElementID == blockID
	}
	return false
}

// MirrorPorts makes the Port objects hosted by every Part or Block Boundary
// object instantiating blockID match the block's ports property. Hosted ports
// are deleted with their connections and recreated on the host's right edge
// under object ids the diagram has not used before.
func (e *Engine) MirrorPorts(tx domain.Transaction, blockID string) error {
	block, err := requireElement(tx, blockID, "")
	if err != nil {
		return err
	}
	want := domain.SplitList(block.Properties.Value(domain.PropPorts))
	for _, d := range tx.ListDiagrams() {
		for _, host := range d.Objects {
			if !instantiates(host, blockID) {
				continue
			}
			if err := e.mirrorOnto(tx, d.ID, host, want); err != nil {
				return err
			}
		}
	}
	return nil
}

func (e *Engine) mirrorOnto(tx domain.Transaction, diagramID string, host domain.DiagramObject, want []string) error {
	d, ok := tx.FindDiagram(diagramID)
	if !ok {
		return domain.MissingDiagram(diagramID, "")
	}
	next := d.NextObjectID()
	for _, port := range hostedPorts(d, host.ID) {
		if err := tx.RemoveDiagramObject(diagramID, port.ID); err != nil {
			return err
		}
	}
	want = dedupe(want)
	parent := strconv.Itoa(host.ID)
	for i, name := range want {
		if _, err := tx.AddDiagramObject(diagramID, domain.DiagramObject{
			ID:         next + i,
			Type:       domain.ElementPort,
			X:          host.X + host.Width,
			Y:          host.Y + float64(i+1)*host.Height/float64(len(want)+1),
			Properties: domain.NewProperties(domain.PropParent, parent, domain.PropName, name),
		}); err != nil {
			return err
		}
	}
	if host.Properties.Value(domain.PropPorts) != domain.JoinList(want) {
		if _, err := tx.UpdateDiagramObject(diagramID, host.ID, func(obj *domain.DiagramObject) error {
			setList(&obj.Properties, domain.PropPorts, want)
			return nil
		}); err != nil {
			return err
		}
	}
	return nil
}

func dedupe(names []string) []string {
	seen := make(map[string]struct{}, len(names))
	out := names[:0:0]
	for _, name := range names {
		if _, dup := seen[name]; dup {
			continue
		}
		seen[name] = struct{}{}
		out = append(out, name)
	}
	return out
}

// hostedPorts returns the Port objects whose parent is hostID.
func hostedPorts(d domain.Diagram, hostID int) []domain.DiagramObject {
	parent := strconv.Itoa(hostID)
	var out []domain.DiagramObject
	for _, obj := range d.Objects {
		if obj.Type == domain.ElementPort && obj.Properties.Value(domain.PropParent) == parent {
			out = append(out, obj)
		}
	}
	return out
}
