package propagation

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"modelcore/pkg/domain"
)

func instanceNames(h *harness, wholeID, partID string) []string {
	var names []string
	for _, e := range h.store.ListElementsOfType(domain.ElementPart) {
		if e.Properties.Value(domain.PropParent) == wholeID && e.Properties.Value(domain.PropDefinition) == partID {
			names = append(names, e.Name)
		}
	}
	return names
}

func TestCompositeAggregationGrowsWithoutRemoval(t *testing.T) {
	h := newHarness(t)
	whole := h.block("Whole")
	wheel := h.block("Wheel")
	ibd := h.ibd(whole.ID)

	h.run(func(tx domain.Transaction) error {
		return h.engine.AddCompositeAggregationPart(tx, whole.ID, wheel.ID, "2..3")
	})
	assert.Len(t, partObjects(h.diagram(ibd.ID), wheel.ID), 2)
	assert.Equal(t, []string{"Wheel[1]", "Wheel[2]"}, instanceNames(h, whole.ID, wheel.ID))
	assert.Equal(t, "Wheel", h.get(whole.ID).Properties.Value(domain.PropPartProperties))

	h.run(func(tx domain.Transaction) error {
		return h.engine.AddCompositeAggregationPart(tx, whole.ID, wheel.ID, "3..3")
	})
	assert.Len(t, partObjects(h.diagram(ibd.ID), wheel.ID), 3)

	h.run(func(tx domain.Transaction) error {
		return h.engine.AddCompositeAggregationPart(tx, whole.ID, wheel.ID, "1")
	})
	assert.Len(t, partObjects(h.diagram(ibd.ID), wheel.ID), 3, "lowering the bound never removes parts")

	rels := h.store.ListRelationships(domain.RelationshipFilter{Source: whole.ID, Target: wheel.ID})
	require.Len(t, rels, 1)
	partElem := rels[0].Properties.Value(domain.PropPartElem)
	require.NotEmpty(t, partElem)

	var removed int
	h.run(func(tx domain.Transaction) error {
		var err error
		removed, err = h.engine.RemoveExcessParts(tx, whole.ID, wheel.ID)
		return err
	})
	assert.Equal(t, 2, removed)
	objs := partObjects(h.diagram(ibd.ID), wheel.ID)
	require.Len(t, objs, 1)
	assert.Equal(t, partElem, objs[0].ElementID, "the recorded part element survives")
}

func TestAggregationWithoutDiagramRecordsPartElement(t *testing.T) {
	h := newHarness(t)
	whole := h.block("Whole")
	part := h.block("Part")
	h.relate(domain.RelAggregation, whole.ID, part.ID)

	h.run(func(tx domain.Transaction) error { return h.engine.SyncAggregationParts(tx, whole.ID, part.ID) })

	rel := h.store.ListRelationships(domain.RelationshipFilter{Source: whole.ID})[0]
	pid := rel.Properties.Value(domain.PropPartElem)
	require.NotEmpty(t, pid)
	inst := h.get(pid)
	assert.Equal(t, domain.ElementPart, inst.Type)
	assert.Equal(t, "Part", inst.Name)
	assert.Equal(t, "aggregation", rel.Stereotype)

	h.run(func(tx domain.Transaction) error { return h.engine.SyncAggregationParts(tx, whole.ID, part.ID) })
	assert.Len(t, instanceNames(h, whole.ID, part.ID), 1, "sync is idempotent")
}

func TestAddMultiplicityPartsRespectsLimit(t *testing.T) {
	h := newHarness(t)
	whole := h.block("Whole")
	part := h.block("P")
	ibd := h.ibd(whole.ID)
	h.relate(domain.RelCompositeAggregation, whole.ID, part.ID, domain.PropMultiplicity, "1..2")
	h.run(func(tx domain.Transaction) error { return h.engine.SyncAggregationParts(tx, whole.ID, part.ID) })

	h.run(func(tx domain.Transaction) error {
		created, err := h.engine.AddMultiplicityParts(tx, whole.ID, part.ID, 1)
		require.Len(t, created, 1)
		return err
	})
	assert.Len(t, partObjects(h.diagram(ibd.ID), part.ID), 2)
	assert.ElementsMatch(t, []string{"P[1]", "P[2]"}, instanceNames(h, whole.ID, part.ID))

	err := h.try(func(tx domain.Transaction) error {
		_, err := h.engine.AddMultiplicityParts(tx, whole.ID, part.ID, 1)
		return err
	})
	require.ErrorIs(t, err, domain.ErrLimitExceeded)
	var limitErr *domain.LimitError
	require.True(t, errors.As(err, &limitErr))
	assert.Equal(t, 2, limitErr.Limit)
	assert.Len(t, partObjects(h.diagram(ibd.ID), part.ID), 2)
}

func TestMultiplicityLimitExceeded(t *testing.T) {
	h := newHarness(t)
	whole := h.block("Whole")
	bounded := h.block("Bounded")
	open := h.block("Open")
	h.ibd(whole.ID)
	h.relate(domain.RelAggregation, whole.ID, bounded.ID, domain.PropMultiplicity, "1")
	h.relate(domain.RelCompositeAggregation, whole.ID, bounded.ID, domain.PropMultiplicity, "0..1")
	h.relate(domain.RelAggregation, whole.ID, open.ID, domain.PropMultiplicity, "2..*")

	candidate := func(def string, n int) []domain.DiagramObject {
		out := make([]domain.DiagramObject, n)
		for i := range out {
			out[i] = domain.DiagramObject{Type: domain.ElementPart, Properties: domain.NewProperties(domain.PropDefinition, def)}
		}
		return out
	}
	require.NoError(t, h.store.View(t.Context(), func(view domain.TransactionView) error {
		assert.False(t, h.engine.MultiplicityLimitExceeded(view, whole.ID, bounded.ID, candidate(bounded.ID, 2)))
		assert.True(t, h.engine.MultiplicityLimitExceeded(view, whole.ID, bounded.ID, candidate(bounded.ID, 3)))
		assert.False(t, h.engine.MultiplicityLimitExceeded(view, whole.ID, open.ID, candidate(open.ID, 50)))
		assert.False(t, h.engine.MultiplicityLimitExceeded(view, whole.ID, "unrelated", candidate("unrelated", 5)))
		return nil
	}))
}

func TestRemoveAggregationPart(t *testing.T) {
	h := newHarness(t)
	whole := h.block("Whole")
	part := h.block("Part")
	child := h.block("Child")
	h.relate(domain.RelGeneralization, child.ID, whole.ID)
	ibd := h.ibd(whole.ID)

	h.run(func(tx domain.Transaction) error {
		if err := h.engine.AddCompositeAggregationPart(tx, whole.ID, part.ID, ""); err != nil {
			return err
		}
		return h.engine.InheritProperties(tx, child.ID)
	})
	require.Equal(t, "Part", h.get(child.ID).Properties.Value(domain.PropPartProperties))

	h.run(func(tx domain.Transaction) error { return h.engine.RemoveAggregationPart(tx, whole.ID, part.ID) })

	assert.Empty(t, h.get(whole.ID).Properties.Value(domain.PropPartProperties))
	assert.Empty(t, h.get(child.ID).Properties.Value(domain.PropPartProperties))
	assert.Empty(t, partObjects(h.diagram(ibd.ID), part.ID))
	assert.Empty(t, instanceNames(h, whole.ID, part.ID))
	rel := h.store.ListRelationships(domain.RelationshipFilter{Source: whole.ID, Target: part.ID})[0]
	assert.False(t, rel.Properties.Has(domain.PropPartElem))
}

func TestAggregationSyncFollowsInheritedRelationships(t *testing.T) {
	h := newHarness(t)
	parent := h.block("Parent")
	child := h.block("Child")
	engine := h.block("Engine")
	h.relate(domain.RelGeneralization, child.ID, parent.ID)
	h.relate(domain.RelCompositeAggregation, parent.ID, engine.ID, domain.PropMultiplicity, "2")
	childIBD := h.ibd(child.ID)

	h.run(func(tx domain.Transaction) error { return h.engine.SyncAggregationParts(tx, child.ID, engine.ID) })
	assert.Len(t, partObjects(h.diagram(childIBD.ID), engine.ID), 2)
}

func TestZeroLowerBoundCreatesNoParts(t *testing.T) {
	h := newHarness(t)
	truck := h.block("Truck")
	trailer := h.block("Trailer")
	ibd := h.ibd(truck.ID)

	h.run(func(tx domain.Transaction) error {
		return h.engine.AddCompositeAggregationPart(tx, truck.ID, trailer.ID, "0..1")
	})
	assert.Empty(t, partObjects(h.diagram(ibd.ID), trailer.ID))
	assert.Empty(t, instanceNames(h, truck.ID, trailer.ID))
	assert.Empty(t, h.get(truck.ID).Properties.Value(domain.PropPartProperties))
	rel := h.store.ListRelationships(domain.RelationshipFilter{Source: truck.ID, Target: trailer.ID})[0]
	assert.False(t, rel.Properties.Has(domain.PropPartElem))

	h.run(func(tx domain.Transaction) error {
		_, err := h.engine.AddMultiplicityParts(tx, truck.ID, trailer.ID, 1)
		return err
	})
	assert.Len(t, partObjects(h.diagram(ibd.ID), trailer.ID), 1)
	assert.Equal(t, "Trailer", h.get(truck.ID).Properties.Value(domain.PropPartProperties))
	rel = h.store.ListRelationships(domain.RelationshipFilter{Source: truck.ID, Target: trailer.ID})[0]
	assert.NotEmpty(t, rel.Properties.Value(domain.PropPartElem))

	err := h.try(func(tx domain.Transaction) error {
		_, err := h.engine.AddMultiplicityParts(tx, truck.ID, trailer.ID, 1)
		return err
	})
	require.ErrorIs(t, err, domain.ErrLimitExceeded)
}

func TestPartPropertyWithZeroLowerBoundIsNotInstantiated(t *testing.T) {
	h := newHarness(t)
	spare := h.block("Spare")
	seat := h.block("Seat")
	truck := h.block("Truck", domain.PropPartProperties, "Spare[0..2], Seat[1]")
	var ibd domain.Diagram
	h.run(func(tx domain.Transaction) error {
		var err error
		if ibd, err = tx.CreateDiagram(domain.Diagram{Type: domain.DiagramInternalBlock, Name: "Truck IBD"}); err != nil {
			return err
		}
		_, err = h.engine.SetIBDFather(tx, ibd.ID, truck.ID)
		return err
	})
	d := h.diagram(ibd.ID)
	assert.Empty(t, partObjects(d, spare.ID))
	assert.Len(t, partObjects(d, seat.ID), 1)
}
