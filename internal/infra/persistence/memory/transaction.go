package memory

import (
	"fmt"
	"slices"
	"strconv"
	"strings"
	"time"

	"modelcore/pkg/domain"
)

// transaction represents a mutation set applied to the store state.
type transaction struct {
	transactionView
	store   *Store
	state   memoryState
	changes []Change
	now     time.Time
	author  string
	scope   domain.PhaseScope
	frozen  map[string]struct{}
}

// helper to record and append change entries.
func (tx *transaction) recordChange(change Change) {
	tx.changes = append(tx.changes, change)
}

// Now returns the timestamp applied to every record touched by the transaction.
func (tx *transaction) Now() time.Time { return tx.now }

// ActivePhase returns the phase new records are tagged with.
func (tx *transaction) ActivePhase() string { return tx.scope.Active }

func (tx *transaction) stampNew(a *domain.Audit) {
	if a.Author == "" {
		a.Author = tx.author
	}
	a.CreatedAt = tx.now
	a.ModifiedAt = tx.now
	a.ModifiedBy = tx.author
}

func (tx *transaction) touch(a *domain.Audit) {
	a.ModifiedAt = tx.now
	a.ModifiedBy = tx.author
}

// siblingScope reports whether two elements share a naming scope. Parts are
// scoped by their parent block, everything else by owner and type.
func siblingScope(a, b Element) bool {
	pa, aHas := a.Properties.Get(domain.PropParent)
	pb, bHas := b.Properties.Get(domain.PropParent)
	if aHas || bHas {
		return aHas && bHas && pa == pb
	}
	return a.Owner == b.Owner && a.Type == b.Type
}

// nameOwner returns the id of a sibling of candidate already named name.
func (tx *transaction) nameOwner(candidate Element, name string) (string, bool) {
	if name == "" {
		return "", false
	}
	for _, id := range tx.state.elementOrder {
		if id == candidate.ID {
			continue
		}
		other := tx.state.elements[id]
		if other.Name == name && siblingScope(candidate, other) {
			return id, true
		}
	}
	return "", false
}

func (tx *transaction) uniqueName(candidate Element) string {
	base := candidate.Name
	name := base
	for suffix := 1; ; suffix++ {
		if _, taken := tx.nameOwner(candidate, name); !taken {
			return name
		}
		name = fmt.Sprintf("%s_%d", base, suffix)
	}
}

func (tx *transaction) defaultName(candidate Element) string {
	base := strings.ReplaceAll(string(candidate.Type), " ", "")
	if base == "" {
		base = "Element"
	}
	for suffix := 1; ; suffix++ {
		name := base + strconv.Itoa(suffix)
		if _, taken := tx.nameOwner(candidate, name); !taken {
			return name
		}
	}
}

func (tx *transaction) checkOwner(owner, self string) error {
	pkg, ok := tx.state.elements[owner]
	if !ok {
		return &domain.OwnerError{Owner: owner, Reason: "package does not exist"}
	}
	if pkg.Type != domain.ElementPackage {
		return &domain.OwnerError{Owner: owner, Reason: "owner is not a package"}
	}
	for cur := owner; cur != ""; cur = tx.state.elements[cur].Owner {
		if cur == self {
			return &domain.OwnerError{Owner: owner, Reason: "ownership cycle"}
		}
	}
	return nil
}

func (tx *transaction) linkedDiagramOf(elementID string) *Diagram {
	id, ok := tx.state.links[elementID]
	if !ok {
		return nil
	}
	d, ok := tx.state.diagrams[id]
	if !ok {
		return nil
	}
	return &d
}

// CreateElement stores a new element. Empty owners default to the root
// package; names are made unique among siblings.
func (tx *transaction) CreateElement(e Element) (Element, error) {
	if e.Type == "" {
		return Element{}, fmt.Errorf("element type is required")
	}
	if e.ID == "" {
		e.ID = tx.store.newID()
	}
	if _, exists := tx.state.elements[e.ID]; exists {
		return Element{}, fmt.Errorf("element %q already exists", e.ID)
	}
	if e.Owner == "" {
		e.Owner = tx.state.rootPackage
	}
	if err := tx.checkOwner(e.Owner, e.ID); err != nil {
		return Element{}, err
	}
	e.Properties = e.Properties.Clone()
	if e.Name == "" {
		e.Name = tx.defaultName(e)
	} else {
		e.Name = tx.uniqueName(e)
	}
	if e.Phase == "" {
		e.Phase = tx.scope.Active
	}
	tx.stampNew(&e.Audit)
	tx.state.putElement(e)
	tx.recordChange(Change{Entity: domain.EntityElement, Action: domain.ActionCreate, After: domain.CloneElement(e)})
	return domain.CloneElement(e), nil
}

// UpdateElement mutates an element using the provided mutator function.
func (tx *transaction) UpdateElement(id string, mutator func(*Element) error) (Element, error) {
	current, ok := tx.state.elements[id]
	if !ok {
		return Element{}, domain.MissingElement(id, "")
	}
	before := domain.CloneElement(current)
	current = domain.CloneElement(current)
	if err := mutator(&current); err != nil {
		return Element{}, err
	}
	current.ID = id
	if id == tx.state.rootPackage {
		current.Owner = ""
		current.Type = domain.ElementPackage
	} else if current.Owner != before.Owner {
		if current.Owner == "" {
			current.Owner = tx.state.rootPackage
		}
		if err := tx.checkOwner(current.Owner, id); err != nil {
			return Element{}, err
		}
	}
	if current.Name != before.Name || current.Owner != before.Owner || current.Type != before.Type {
		if existing, taken := tx.nameOwner(current, current.Name); taken {
			return Element{}, &domain.NameError{Name: current.Name, Existing: existing}
		}
	}
	tx.touch(&current.Audit)
	tx.state.putElement(current)
	tx.recordChange(Change{Entity: domain.EntityElement, Action: domain.ActionUpdate, Before: before, After: domain.CloneElement(current)})
	return domain.CloneElement(current), nil
}

// RenameElement changes an element's display name. Derived names elsewhere in
// the model are left for the caller to propagate.
func (tx *transaction) RenameElement(id, name string) (Element, error) {
	return tx.UpdateElement(id, func(e *Element) error {
		e.Name = name
		return nil
	})
}

// DeleteElement removes an element together with the relationships naming it,
// its diagram placements, its diagram link and the Part elements it is the
// parent of. Deleting a package re-homes its contents to the package's owner.
// Deleting a missing element is a no-op.
func (tx *transaction) DeleteElement(id string) error {
	current, ok := tx.state.elements[id]
	if !ok {
		return nil
	}
	if id == tx.state.rootPackage {
		return &domain.OwnerError{Owner: id, Reason: "root package cannot be deleted"}
	}
	if tx.scope.ElementReadOnly(current, tx.linkedDiagramOf(id)) {
		return fmt.Errorf("delete element %q: %w", id, domain.ErrReadOnly)
	}
	if current.Type == domain.ElementPackage {
		if err := tx.rehomePackageContents(current); err != nil {
			return err
		}
	}
	for _, partID := range tx.partsOf(id) {
		if err := tx.DeleteElement(partID); err != nil {
			return err
		}
	}
	for _, relID := range tx.state.index.elementRels.ids(id) {
		if err := tx.DeleteRelationship(relID); err != nil {
			return err
		}
	}
	for _, diagID := range tx.state.index.elementDiagrams.ids(id) {
		tx.scrubDiagram(diagID, id)
	}
	if _, linked := tx.state.links[id]; linked {
		tx.recordChange(Change{Entity: domain.EntityDiagramLink, Action: domain.ActionDelete, Before: id})
		tx.state.unlinkElement(id)
	}
	tx.state.dropElement(id)
	tx.recordChange(Change{Entity: domain.EntityElement, Action: domain.ActionDelete, Before: domain.CloneElement(current)})
	return nil
}

// partsOf lists the Part elements whose parent is id.
func (tx *transaction) partsOf(id string) []string {
	var out []string
	for _, elemID := range tx.state.elementOrder {
		e := tx.state.elements[elemID]
		if e.Type == domain.ElementPart && elemID != id && e.Properties.Value(domain.PropParent) == id {
			out = append(out, elemID)
		}
	}
	return out
}

func (tx *transaction) rehomePackageContents(pkg Element) error {
	parent := pkg.Owner
	if parent == "" {
		parent = tx.state.rootPackage
	}
	for _, childID := range slices.Clone(tx.state.elementOrder) {
		if tx.state.elements[childID].Owner != pkg.ID {
			continue
		}
		if _, err := tx.UpdateElement(childID, func(e *Element) error {
			e.Owner = parent
			e.Name = tx.uniqueName(Element{ID: e.ID, Type: e.Type, Name: e.Name, Owner: parent, Properties: e.Properties})
			return nil
		}); err != nil {
			return err
		}
	}
	for _, diagID := range tx.state.index.elementDiagrams.ids(pkg.ID) {
		if tx.state.diagrams[diagID].Package != pkg.ID {
			continue
		}
		if _, err := tx.UpdateDiagram(diagID, func(d *Diagram) error {
			d.Package = parent
			return nil
		}); err != nil {
			return err
		}
	}
	return nil
}

// scrubDiagram removes every placement of elementID from a diagram along with
// ports hosted by removed objects and connections touching them.
func (tx *transaction) scrubDiagram(diagramID, elementID string) {
	d, ok := tx.state.diagrams[diagramID]
	if !ok {
		return
	}
	before := domain.CloneDiagram(d)
	d = domain.CloneDiagram(d)
	removed := make(map[int]struct{})
	d.Objects = slices.DeleteFunc(d.Objects, func(o domain.DiagramObject) bool {
		if o.ElementID == elementID {
			removed[o.ID] = struct{}{}
			return true
		}
		return false
	})
	d.Objects, d.Connections = dropDependents(d.Objects, d.Connections, removed)
	d.Elements = removeID(d.Elements, elementID)
	if d.Father == elementID {
		d.Father = ""
	}
	tx.touch(&d.Audit)
	tx.state.putDiagram(d)
	tx.recordChange(Change{Entity: domain.EntityDiagram, Action: domain.ActionUpdate, Before: before, After: domain.CloneDiagram(d)})
}

// dropDependents removes ports parented to removed objects (transitively) and
// connections with a removed endpoint.
func dropDependents(objects []domain.DiagramObject, conns []domain.DiagramConnection, removed map[int]struct{}) ([]domain.DiagramObject, []domain.DiagramConnection) {
	for {
		n := len(removed)
		objects = slices.DeleteFunc(objects, func(o domain.DiagramObject) bool {
			parent, err := strconv.Atoi(o.Properties.Value(domain.PropParent))
			if err != nil {
				return false
			}
			if _, gone := removed[parent]; gone {
				removed[o.ID] = struct{}{}
				return true
			}
			return false
		})
		if len(removed) == n {
			break
		}
	}
	conns = slices.DeleteFunc(conns, func(c domain.DiagramConnection) bool {
		_, srcGone := removed[c.Src]
		_, dstGone := removed[c.Dst]
		return srcGone || dstGone
	})
	return objects, conns
}

// CreateRelationship stores a directed edge. Both endpoints must exist.
func (tx *transaction) CreateRelationship(r Relationship) (Relationship, error) {
	if r.Type == "" {
		return Relationship{}, fmt.Errorf("relationship type is required")
	}
	if r.ID == "" {
		r.ID = tx.store.newID()
	}
	if _, exists := tx.state.relationships[r.ID]; exists {
		return Relationship{}, fmt.Errorf("relationship %q already exists", r.ID)
	}
	if err := tx.checkEndpoints(r); err != nil {
		return Relationship{}, err
	}
	if r.Stereotype == "" {
		r.Stereotype = strings.ToLower(string(r.Type))
	}
	if r.Phase == "" {
		r.Phase = tx.scope.Active
	}
	r.Properties = r.Properties.Clone()
	tx.stampNew(&r.Audit)
	tx.state.putRelationship(r)
	tx.recordChange(Change{Entity: domain.EntityRelationship, Action: domain.ActionCreate, After: domain.CloneRelationship(r)})
	return domain.CloneRelationship(r), nil
}

func (tx *transaction) checkEndpoints(r Relationship) error {
	if _, ok := tx.state.elements[r.Source]; !ok {
		return domain.MissingElement(r.Source, "source")
	}
	if _, ok := tx.state.elements[r.Target]; !ok {
		return domain.MissingElement(r.Target, "target")
	}
	return nil
}

// UpdateRelationship mutates a relationship; retargeted endpoints must exist.
func (tx *transaction) UpdateRelationship(id string, mutator func(*Relationship) error) (Relationship, error) {
	current, ok := tx.state.relationships[id]
	if !ok {
		return Relationship{}, domain.MissingRelationship(id)
	}
	before := domain.CloneRelationship(current)
	current = domain.CloneRelationship(current)
	if err := mutator(&current); err != nil {
		return Relationship{}, err
	}
	current.ID = id
	if err := tx.checkEndpoints(current); err != nil {
		return Relationship{}, err
	}
	tx.touch(&current.Audit)
	tx.state.putRelationship(current)
	tx.recordChange(Change{Entity: domain.EntityRelationship, Action: domain.ActionUpdate, Before: before, After: domain.CloneRelationship(current)})
	return domain.CloneRelationship(current), nil
}

// DeleteRelationship removes a relationship and the connections drawing it.
// Deleting a missing relationship is a no-op.
func (tx *transaction) DeleteRelationship(id string) error {
	current, ok := tx.state.relationships[id]
	if !ok {
		return nil
	}
	for _, diagID := range tx.state.index.relDiagrams.ids(id) {
		d := domain.CloneDiagram(tx.state.diagrams[diagID])
		before := domain.CloneDiagram(d)
		d.Connections = slices.DeleteFunc(d.Connections, func(c domain.DiagramConnection) bool {
			return c.RelationshipID == id
		})
		d.Relationships = removeID(d.Relationships, id)
		tx.touch(&d.Audit)
		tx.state.putDiagram(d)
		tx.recordChange(Change{Entity: domain.EntityDiagram, Action: domain.ActionUpdate, Before: before, After: domain.CloneDiagram(d)})
	}
	tx.state.dropRelationship(id)
	tx.recordChange(Change{Entity: domain.EntityRelationship, Action: domain.ActionDelete, Before: domain.CloneRelationship(current)})
	return nil
}

func (tx *transaction) uniqueDiagramName(d Diagram) string {
	taken := func(name string) bool {
		for _, id := range tx.state.diagramOrder {
			if id != d.ID && tx.state.diagrams[id].Name == name {
				return true
			}
		}
		return false
	}
	name := d.Name
	for suffix := 1; taken(name); suffix++ {
		name = fmt.Sprintf("%s_%d", d.Name, suffix)
	}
	return name
}

// checkDiagramRefs validates every element and relationship a diagram names.
func (tx *transaction) checkDiagramRefs(d Diagram) error {
	if err := tx.checkOwner(d.Package, ""); err != nil {
		return err
	}
	if d.Father != "" {
		if _, ok := tx.state.elements[d.Father]; !ok {
			return domain.MissingElement(d.Father, "father")
		}
	}
	for _, id := range d.Elements {
		if _, ok := tx.state.elements[id]; !ok {
			return domain.MissingElement(id, "elements")
		}
	}
	for _, id := range d.Relationships {
		if _, ok := tx.state.relationships[id]; !ok {
			return domain.MissingRelationship(id)
		}
	}
	objIDs := make(map[int]struct{}, len(d.Objects))
	for _, obj := range d.Objects {
		if _, dup := objIDs[obj.ID]; dup {
			return fmt.Errorf("diagram %q: duplicate object id %d", d.ID, obj.ID)
		}
		objIDs[obj.ID] = struct{}{}
		if obj.ElementID != "" {
			if _, ok := tx.state.elements[obj.ElementID]; !ok {
				return domain.MissingElement(obj.ElementID, "element_id")
			}
		}
	}
	for _, conn := range d.Connections {
		if err := checkConnection(d, objIDs, conn); err != nil {
			return err
		}
		if conn.RelationshipID != "" {
			if _, ok := tx.state.relationships[conn.RelationshipID]; !ok {
				return domain.MissingRelationship(conn.RelationshipID)
			}
		}
	}
	return nil
}

func checkConnection(d Diagram, objIDs map[int]struct{}, conn domain.DiagramConnection) error {
	if _, ok := objIDs[conn.Src]; !ok {
		return &domain.ReferenceError{Entity: domain.EntityDiagramObject, ID: strconv.Itoa(conn.Src), Field: "src"}
	}
	if _, ok := objIDs[conn.Dst]; !ok {
		return &domain.ReferenceError{Entity: domain.EntityDiagramObject, ID: strconv.Itoa(conn.Dst), Field: "dst"}
	}
	return nil
}

// CreateDiagram stores a new diagram in a package (the root package by default).
func (tx *transaction) CreateDiagram(d Diagram) (Diagram, error) {
	if d.Type == "" {
		return Diagram{}, fmt.Errorf("diagram type is required")
	}
	if d.ID == "" {
		d.ID = tx.store.newID()
	}
	if _, exists := tx.state.diagrams[d.ID]; exists {
		return Diagram{}, fmt.Errorf("diagram %q already exists", d.ID)
	}
	if d.Package == "" {
		d.Package = tx.state.rootPackage
	}
	d = domain.CloneDiagram(d)
	for i := range d.Objects {
		if d.Objects[i].ID == 0 {
			d.Objects[i].ID = d.NextObjectID()
		}
		if d.Objects[i].Phase == "" {
			d.Objects[i].Phase = tx.scope.Active
		}
	}
	if err := tx.checkDiagramRefs(d); err != nil {
		return Diagram{}, err
	}
	if d.Name != "" {
		d.Name = tx.uniqueDiagramName(d)
	}
	if d.Phase == "" {
		d.Phase = tx.scope.Active
	}
	tx.stampNew(&d.Audit)
	tx.state.putDiagram(d)
	tx.recordChange(Change{Entity: domain.EntityDiagram, Action: domain.ActionCreate, After: domain.CloneDiagram(d)})
	return domain.CloneDiagram(d), nil
}

// UpdateDiagram mutates a diagram; every reference it holds is revalidated.
func (tx *transaction) UpdateDiagram(id string, mutator func(*Diagram) error) (Diagram, error) {
	current, ok := tx.state.diagrams[id]
	if !ok {
		return Diagram{}, domain.MissingDiagram(id, "")
	}
	before := domain.CloneDiagram(current)
	current = domain.CloneDiagram(current)
	if err := mutator(&current); err != nil {
		return Diagram{}, err
	}
	current.ID = id
	if current.Package == "" {
		current.Package = tx.state.rootPackage
	}
	if err := tx.checkDiagramRefs(current); err != nil {
		return Diagram{}, err
	}
	tx.touch(&current.Audit)
	tx.state.putDiagram(current)
	tx.recordChange(Change{Entity: domain.EntityDiagram, Action: domain.ActionUpdate, Before: before, After: domain.CloneDiagram(current)})
	return domain.CloneDiagram(current), nil
}

// DeleteDiagram removes a diagram and any element link to it. Deleting a
// missing diagram is a no-op.
func (tx *transaction) DeleteDiagram(id string) error {
	current, ok := tx.state.diagrams[id]
	if !ok {
		return nil
	}
	if _, frozen := tx.frozen[id]; frozen || tx.scope.DiagramReadOnly(current) {
		return fmt.Errorf("delete diagram %q: %w", id, domain.ErrReadOnly)
	}
	if _, linked := tx.state.linkedBy[id]; linked {
		tx.recordChange(Change{Entity: domain.EntityDiagramLink, Action: domain.ActionDelete, Before: tx.state.linkedBy[id]})
		tx.state.unlinkDiagram(id)
	}
	tx.state.dropDiagram(id)
	tx.recordChange(Change{Entity: domain.EntityDiagram, Action: domain.ActionDelete, Before: domain.CloneDiagram(current)})
	return nil
}

// AddDiagramObject places an object on a diagram, assigning the next free
// object id when obj.ID is zero.
func (tx *transaction) AddDiagramObject(diagramID string, obj domain.DiagramObject) (domain.DiagramObject, error) {
	d, ok := tx.state.diagrams[diagramID]
	if !ok {
		return domain.DiagramObject{}, domain.MissingDiagram(diagramID, "")
	}
	if obj.ID == 0 {
		obj.ID = d.NextObjectID()
	}
	if obj.Phase == "" {
		obj.Phase = tx.scope.Active
	}
	obj = domain.CloneObject(obj)
	updated, err := tx.UpdateDiagram(diagramID, func(d *Diagram) error {
		d.Objects = append(d.Objects, obj)
		return nil
	})
	if err != nil {
		return domain.DiagramObject{}, err
	}
	placed, _ := updated.FindObject(obj.ID)
	return placed, nil
}

// UpdateDiagramObject mutates a single placement; its id is immutable.
func (tx *transaction) UpdateDiagramObject(diagramID string, objID int, mutator func(*domain.DiagramObject) error) (domain.DiagramObject, error) {
	var result domain.DiagramObject
	_, err := tx.UpdateDiagram(diagramID, func(d *Diagram) error {
		for i := range d.Objects {
			if d.Objects[i].ID != objID {
				continue
			}
			if err := mutator(&d.Objects[i]); err != nil {
				return err
			}
			d.Objects[i].ID = objID
			result = domain.CloneObject(d.Objects[i])
			return nil
		}
		return &domain.ReferenceError{Entity: domain.EntityDiagramObject, ID: strconv.Itoa(objID)}
	})
	if err != nil {
		return domain.DiagramObject{}, err
	}
	return result, nil
}

// RemoveDiagramObject deletes a placement, the ports it hosts and connections
// touching any of them. Removing a missing object is a no-op.
func (tx *transaction) RemoveDiagramObject(diagramID string, objID int) error {
	d, ok := tx.state.diagrams[diagramID]
	if !ok {
		return domain.MissingDiagram(diagramID, "")
	}
	if _, exists := d.FindObject(objID); !exists {
		return nil
	}
	_, err := tx.UpdateDiagram(diagramID, func(d *Diagram) error {
		removed := map[int]struct{}{objID: {}}
		d.Objects = slices.DeleteFunc(d.Objects, func(o domain.DiagramObject) bool { return o.ID == objID })
		d.Objects, d.Connections = dropDependents(d.Objects, d.Connections, removed)
		return nil
	})
	return err
}

// AddDiagramConnection draws a connection between two objects of a diagram.
func (tx *transaction) AddDiagramConnection(diagramID string, conn domain.DiagramConnection) (domain.DiagramConnection, error) {
	d, ok := tx.state.diagrams[diagramID]
	if !ok {
		return domain.DiagramConnection{}, domain.MissingDiagram(diagramID, "")
	}
	if conn.ID == 0 {
		conn.ID = d.NextConnectionID()
	}
	for _, existing := range d.Connections {
		if existing.ID == conn.ID {
			return domain.DiagramConnection{}, fmt.Errorf("diagram %q: duplicate connection id %d", diagramID, conn.ID)
		}
	}
	if conn.Phase == "" {
		conn.Phase = tx.scope.Active
	}
	conn = domain.CloneConnection(conn)
	if _, err := tx.UpdateDiagram(diagramID, func(d *Diagram) error {
		d.Connections = append(d.Connections, conn)
		return nil
	}); err != nil {
		return domain.DiagramConnection{}, err
	}
	return domain.CloneConnection(conn), nil
}

// RemoveDiagramConnection deletes a connection. Removing a missing connection is a no-op.
func (tx *transaction) RemoveDiagramConnection(diagramID string, connID int) error {
	d, ok := tx.state.diagrams[diagramID]
	if !ok {
		return domain.MissingDiagram(diagramID, "")
	}
	if !slices.ContainsFunc(d.Connections, func(c domain.DiagramConnection) bool { return c.ID == connID }) {
		return nil
	}
	_, err := tx.UpdateDiagram(diagramID, func(d *Diagram) error {
		d.Connections = slices.DeleteFunc(d.Connections, func(c domain.DiagramConnection) bool { return c.ID == connID })
		return nil
	})
	return err
}

// LinkDiagram associates an element with the diagram implementing it, or
// clears the association when diagramID is empty. Links are one-to-one: any
// previous link on either side is replaced.
func (tx *transaction) LinkDiagram(elementID, diagramID string) error {
	if _, ok := tx.state.elements[elementID]; !ok {
		return domain.MissingElement(elementID, "")
	}
	if diagramID == "" {
		if prev, linked := tx.state.links[elementID]; linked {
			tx.state.unlinkElement(elementID)
			tx.recordChange(Change{Entity: domain.EntityDiagramLink, Action: domain.ActionDelete, Before: [2]string{elementID, prev}})
		}
		return nil
	}
	if _, ok := tx.state.diagrams[diagramID]; !ok {
		return domain.MissingDiagram(diagramID, "")
	}
	prev := tx.state.links[elementID]
	tx.state.link(elementID, diagramID)
	tx.recordChange(Change{Entity: domain.EntityDiagramLink, Action: domain.ActionUpdate, Before: [2]string{elementID, prev}, After: [2]string{elementID, diagramID}})
	return nil
}

func (tx *transaction) renamePhase(old, renamed string) error {
	for _, id := range slices.Clone(tx.state.elementOrder) {
		if tx.state.elements[id].Phase != old {
			continue
		}
		if _, err := tx.UpdateElement(id, func(e *Element) error { e.Phase = renamed; return nil }); err != nil {
			return err
		}
	}
	for _, id := range slices.Clone(tx.state.relOrder) {
		if tx.state.relationships[id].Phase != old {
			continue
		}
		if _, err := tx.UpdateRelationship(id, func(r *Relationship) error { r.Phase = renamed; return nil }); err != nil {
			return err
		}
	}
	for _, id := range slices.Clone(tx.state.diagramOrder) {
		if _, err := tx.UpdateDiagram(id, func(d *Diagram) error {
			if d.Phase == old {
				d.Phase = renamed
			}
			for i := range d.Objects {
				if d.Objects[i].Phase == old {
					d.Objects[i].Phase = renamed
				}
			}
			for i := range d.Connections {
				if d.Connections[i].Phase == old {
					d.Connections[i].Phase = renamed
				}
			}
			return nil
		}); err != nil {
			return err
		}
	}
	return nil
}
