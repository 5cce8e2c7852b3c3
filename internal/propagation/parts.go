package propagation

import (
	"fmt"
	"slices"
	"strconv"
	"strings"

	"modelcore/pkg/domain"
)

const (
	partWidth  = 80
	partHeight = 40
)

// aggregationEdges returns the aggregation relationships from wholeID or one of
// its generalization ancestors to partID, the whole's own edges first.
func aggregationEdges(view domain.TransactionView, wholeID, partID string) []domain.Relationship {
	var out []domain.Relationship
	for _, owner := range append([]string{wholeID}, ancestors(view, wholeID)...) {
		for _, rel := range view.ListRelationships(domain.RelationshipFilter{Source: owner, Target: partID}) {
			if rel.Type.IsAggregation() {
				out = append(out, rel)
			}
		}
	}
	return out
}

// partLimit sums the upper bounds of the aggregations from parentID to
// definitionID. The second result is false when any bound is open or
// undeclared, or when no aggregation exists.
func partLimit(view domain.TransactionView, parentID, definitionID string) (int, bool) {
	edges := aggregationEdges(view, parentID, definitionID)
	if len(edges) == 0 {
		return 0, false
	}
	total := 0
	for _, rel := range edges {
		m, declared := rel.Multiplicity()
		if !declared || m.Unbounded() {
			return 0, false
		}
		total += *m.Upper
	}
	return total, true
}

// partInstances returns the Part elements of parentID typed by definitionID.
func partInstances(view domain.TransactionView, parentID, definitionID string) []domain.Element {
	var out []domain.Element
	for _, e := range view.ListElements() {
		if e.Type == domain.ElementPart &&
			e.Properties.Value(domain.PropParent) == parentID &&
			e.Properties.Value(domain.PropDefinition) == definitionID {
			out = append(out, e)
		}
	}
	return out
}

// associatedDiagrams returns the diagram linked to parentID and every diagram
// holding a Block Boundary for it.
func associatedDiagrams(view domain.TransactionView, parentID string) []domain.Diagram {
	var out []domain.Diagram
	linkedID, _ := view.LinkedDiagram(parentID)
	for _, d := range view.ListDiagrams() {
		if d.ID == linkedID {
			out = append(out, d)
			continue
		}
		for _, obj := range d.Objects {
			if obj.Type == domain.ElementBlockBoundary && obj.ElementID == parentID {
				out = append(out, d)
				break
			}
		}
	}
	return out
}

// instanceCount counts the parts of parentID typed by definitionID, taking the
// larger of the Part elements and the distinct Part objects on its diagrams.
func instanceCount(view domain.TransactionView, parentID, definitionID string) (int, map[string]struct{}) {
	placed := make(map[string]struct{})
	anonymous := 0
	for _, d := range associatedDiagrams(view, parentID) {
		for _, obj := range d.Objects {
			if obj.Type != domain.ElementPart || obj.Definition() != definitionID {
				continue
			}
			if obj.ElementID == "" {
				anonymous++
				continue
			}
			placed[obj.ElementID] = struct{}{}
		}
	}
	count := len(placed) + anonymous
	if n := len(partInstances(view, parentID, definitionID)); n > count {
		count = n
	}
	return count, placed
}

// MultiplicityLimitExceeded reports whether adding objects to the diagrams of
// parentID would place more parts of definitionID than the aggregations from
// parentID allow. Open or undeclared bounds are never exceeded.
func (e *Engine) MultiplicityLimitExceeded(view domain.TransactionView, parentID, definitionID string, objects []domain.DiagramObject) bool {
	limit, bounded := partLimit(view, parentID, definitionID)
	if !bounded {
		return false
	}
	count, placed := instanceCount(view, parentID, definitionID)
	for _, obj := range objects {
		if obj.Type != domain.ElementPart || obj.Definition() != definitionID {
			continue
		}
		if _, already := placed[obj.ElementID]; already && obj.ElementID != "" {
			continue
		}
		count++
	}
	return count > limit
}

// ensurePartProperty lists name in the whole's partProperties unless an entry
// already names it as its definition.
func ensurePartProperty(tx domain.Transaction, wholeID, name string) error {
	if name == "" {
		return nil
	}
	whole, err := requireElement(tx, wholeID, "source")
	if err != nil {
		return err
	}
	entries := domain.SplitList(whole.Properties.Value(domain.PropPartProperties))
	for _, entry := range entries {
		if domain.ParsePartProperty(entry).Definition == name {
			return nil
		}
	}
	entries = append(entries, name)
	_, err = tx.UpdateElement(wholeID, func(el *domain.Element) error {
		el.Properties.Set(domain.PropPartProperties, domain.JoinList(entries))
		return nil
	})
	return err
}

// instanceName renders the display name of the i-th instance (1-based).
func instanceName(base string, i int) string {
	return fmt.Sprintf("%s[%d]", base, i)
}

// nextInstanceIndex returns the first index whose bracketed name is unused.
func nextInstanceIndex(instances []domain.Element, base string) int {
	used := make(map[int]struct{}, len(instances))
	prefix := base + "["
	for _, inst := range instances {
		if !strings.HasPrefix(inst.Name, prefix) || !strings.HasSuffix(inst.Name, "]") {
			continue
		}
		if n, err := strconv.Atoi(inst.Name[len(prefix) : len(inst.Name)-1]); err == nil {
			used[n] = struct{}{}
		}
	}
	for i := 1; ; i++ {
		if _, taken := used[i]; !taken {
			return i
		}
	}
}

// createInstances adds count Part elements of part under whole named after
// base. A lone instance carries the plain name; once there are several, every
// plain named instance is renumbered with a bracketed index.
func createInstances(tx domain.Transaction, whole, part domain.Element, base string, count int) ([]domain.Element, error) {
	if count <= 0 {
		return nil, nil
	}
	instances := partInstances(tx, whole.ID, part.ID)
	total := len(instances) + count
	if total > 1 && base != "" {
		for i, inst := range instances {
			if inst.Name != base {
				continue
			}
			renamed, err := tx.RenameElement(inst.ID, instanceName(base, nextInstanceIndex(instances, base)))
			if err != nil {
				return nil, err
			}
			instances[i] = renamed
		}
	}
	created := make([]domain.Element, 0, count)
	for range count {
		name := base
		if total > 1 && base != "" {
			name = instanceName(base, nextInstanceIndex(instances, base))
		}
		inst, err := tx.CreateElement(domain.Element{
			Type:  domain.ElementPart,
			Name:  name,
			Owner: whole.Owner,
			Properties: domain.NewProperties(
				domain.PropDefinition, part.ID,
				domain.PropParent, whole.ID,
			),
		})
		if err != nil {
			return nil, err
		}
		instances = append(instances, inst)
		created = append(created, inst)
	}
	return created, nil
}

// placeInstances adds a Part object to the whole's linked diagram for every
// instance not yet shown there.
func placeInstances(tx domain.Transaction, wholeID string, instances []domain.Element) ([]domain.DiagramObject, error) {
	diagram, ok := linkedDiagram(tx, wholeID)
	if !ok {
		return nil, nil
	}
	shown := make(map[string]struct{}, len(diagram.Objects))
	for _, obj := range diagram.Objects {
		shown[obj.ElementID] = struct{}{}
	}
	var added []domain.DiagramObject
	n := len(diagram.Objects)
	for _, inst := range instances {
		if _, ok := shown[inst.ID]; ok {
			continue
		}
		obj, err := tx.AddDiagramObject(diagram.ID, domain.DiagramObject{
			Type:       domain.ElementPart,
			ElementID:  inst.ID,
			X:          float64(40 + 120*(n%4)),
			Y:          float64(80 + 80*(n/4)),
			Width:      partWidth,
			Height:     partHeight,
			Properties: domain.NewProperties(domain.PropDefinition, inst.Properties.Value(domain.PropDefinition)),
		})
		if err != nil {
			return nil, err
		}
		n++
		shown[inst.ID] = struct{}{}
		added = append(added, obj)
	}
	return added, nil
}

// SyncAggregationParts brings the parts of wholeID typed by partID up to the
// aggregation's lower bound, capped at its upper bound. An aggregation
// without a multiplicity asks for one instance; a declared lower bound of
// zero asks for none. Existing instances are never removed. Once any instance
// exists the part block is listed in the whole's partProperties and the first
// instance is recorded on the relationship as its part element.
func (e *Engine) SyncAggregationParts(tx domain.Transaction, wholeID, partID string) error {
	_, err := e.syncAggregation(tx, wholeID, partID)
	return err
}

func (e *Engine) syncAggregation(tx domain.Transaction, wholeID, partID string) ([]domain.DiagramObject, error) {
	whole, err := requireElement(tx, wholeID, "source")
	if err != nil {
		return nil, err
	}
	part, err := requireElement(tx, partID, "target")
	if err != nil {
		return nil, err
	}
	edges := aggregationEdges(tx, wholeID, partID)
	if len(edges) == 0 {
		return nil, nil
	}
	rel := edges[0]
	target := 1
	if m, declared := rel.Multiplicity(); declared {
		target = m.Clamp(m.Lower)
	}
	existing := partInstances(tx, wholeID, partID)
	if target == 0 && len(existing) == 0 {
		return nil, nil
	}
	if err := ensurePartProperty(tx, wholeID, part.Name); err != nil {
		return nil, err
	}
	if missing := target - len(existing); missing > 0 {
		if _, err := createInstances(tx, whole, part, part.Name, missing); err != nil {
			return nil, err
		}
		e.logger.Debug("created part instances", "whole", wholeID, "part", partID, "count", missing)
	}
	instances := partInstances(tx, wholeID, partID)
	if rel.Source == wholeID && len(instances) > 0 {
		if err := setPartElem(tx, rel, instances); err != nil {
			return nil, err
		}
	}
	return placeInstances(tx, wholeID, instances)
}

// setPartElem records the first instance on rel unless a live one is recorded.
func setPartElem(tx domain.Transaction, rel domain.Relationship, instances []domain.Element) error {
	current := rel.Properties.Value(domain.PropPartElem)
	if current != "" && slices.ContainsFunc(instances, func(e domain.Element) bool { return e.ID == current }) {
		return nil
	}
	_, err := tx.UpdateRelationship(rel.ID, func(r *domain.Relationship) error {
		r.Properties.Set(domain.PropPartElem, instances[0].ID)
		return nil
	})
	return err
}

// AddCompositeAggregationPart ensures a Composite Aggregation from wholeID to
// partID exists, applies multiplicity when given, and synchronizes parts.
func (e *Engine) AddCompositeAggregationPart(tx domain.Transaction, wholeID, partID, multiplicity string) error {
	if _, err := requireElement(tx, wholeID, "source"); err != nil {
		return err
	}
	if _, err := requireElement(tx, partID, "target"); err != nil {
		return err
	}
	existing := tx.ListRelationships(domain.RelationshipFilter{Type: domain.RelCompositeAggregation, Source: wholeID, Target: partID})
	if len(existing) == 0 {
		var props domain.Properties
		if multiplicity != "" {
			props.Set(domain.PropMultiplicity, multiplicity)
		}
		if _, err := tx.CreateRelationship(domain.Relationship{
			Type:       domain.RelCompositeAggregation,
			Source:     wholeID,
			Target:     partID,
			Properties: props,
		}); err != nil {
			return err
		}
	} else if rel := existing[0]; multiplicity != "" && rel.Properties.Value(domain.PropMultiplicity) != multiplicity {
		if _, err := tx.UpdateRelationship(rel.ID, func(r *domain.Relationship) error {
			r.Properties.Set(domain.PropMultiplicity, multiplicity)
			return nil
		}); err != nil {
			return err
		}
	}
	return e.SyncAggregationParts(tx, wholeID, partID)
}

// AddMultiplicityParts adds count more instances of partID to wholeID on an
// explicit request. It fails with a LimitError when the aggregation's upper
// bound would be exceeded.
func (e *Engine) AddMultiplicityParts(tx domain.Transaction, wholeID, partID string, count int) ([]domain.Element, error) {
	whole, err := requireElement(tx, wholeID, "source")
	if err != nil {
		return nil, err
	}
	part, err := requireElement(tx, partID, "target")
	if err != nil {
		return nil, err
	}
	if count <= 0 {
		return nil, nil
	}
	if limit, bounded := partLimit(tx, wholeID, partID); bounded {
		if n, _ := instanceCount(tx, wholeID, partID); n+count > limit {
			return nil, &domain.LimitError{Parent: wholeID, Definition: partID, Limit: limit}
		}
	}
	created, err := createInstances(tx, whole, part, part.Name, count)
	if err != nil {
		return nil, err
	}
	instances := partInstances(tx, wholeID, partID)
	if edges := aggregationEdges(tx, wholeID, partID); len(edges) > 0 {
		if err := ensurePartProperty(tx, wholeID, part.Name); err != nil {
			return nil, err
		}
		if edges[0].Source == wholeID {
			if err := setPartElem(tx, edges[0], instances); err != nil {
				return nil, err
			}
		}
	}
	if _, err := placeInstances(tx, wholeID, instances); err != nil {
		return nil, err
	}
	return created, nil
}

// RemoveExcessParts deletes the most recently created instances of partID
// beyond the aggregation's upper bound and returns how many were removed.
// The relationship's recorded part element is kept when possible.
func (e *Engine) RemoveExcessParts(tx domain.Transaction, wholeID, partID string) (int, error) {
	if _, err := requireElement(tx, wholeID, "source"); err != nil {
		return 0, err
	}
	limit, bounded := partLimit(tx, wholeID, partID)
	if !bounded {
		return 0, nil
	}
	instances := partInstances(tx, wholeID, partID)
	excess := len(instances) - limit
	if excess <= 0 {
		return 0, nil
	}
	keep := make(map[string]struct{})
	for _, rel := range aggregationEdges(tx, wholeID, partID) {
		if id := rel.Properties.Value(domain.PropPartElem); id != "" {
			keep[id] = struct{}{}
		}
	}
	removed := 0
	for i := len(instances) - 1; i >= 0 && removed < excess; i-- {
		if _, kept := keep[instances[i].ID]; kept {
			continue
		}
		if err := tx.DeleteElement(instances[i].ID); err != nil {
			return removed, err
		}
		removed++
	}
	e.logger.Info("removed excess parts", "whole", wholeID, "part", partID, "removed", removed, "limit", limit)
	return removed, nil
}

// RemoveAggregationPart withdraws partID from wholeID: the partProperties
// entries naming it are removed from the whole and from descendants that do
// not inherit it elsewhere, every instance is deleted and the relationship's
// part element reference is cleared.
func (e *Engine) RemoveAggregationPart(tx domain.Transaction, wholeID, partID string) error {
	whole, err := requireElement(tx, wholeID, "source")
	if err != nil {
		return err
	}
	part, ok := tx.FindElement(partID)
	if !ok {
		return nil
	}
	names := make(map[string]struct{})
	for _, entry := range domain.SplitList(whole.Properties.Value(domain.PropPartProperties)) {
		if part.Name != "" && domain.ParsePartProperty(entry).Definition == part.Name {
			names[domain.CanonicalName(entry)] = struct{}{}
		}
	}
	if err := e.subtract(tx, wholeID, removalSet{domain.PropPartProperties: names}, make(map[string]struct{})); err != nil {
		return err
	}
	for _, inst := range partInstances(tx, wholeID, partID) {
		if err := tx.DeleteElement(inst.ID); err != nil {
			return err
		}
	}
	for _, rel := range tx.ListRelationships(domain.RelationshipFilter{Source: wholeID, Target: partID}) {
		if !rel.Type.IsAggregation() || !rel.Properties.Has(domain.PropPartElem) {
			continue
		}
		if _, err := tx.UpdateRelationship(rel.ID, func(r *domain.Relationship) error {
			r.Properties.Delete(domain.PropPartElem)
			return nil
		}); err != nil {
			return err
		}
	}
	return nil
}
