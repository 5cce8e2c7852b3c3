package core

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"modelcore/internal/history"
	"modelcore/pkg/domain"
)

func fixedClock() Clock {
	base := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	var tick int
	return ClockFunc(func() time.Time {
		tick++
		return base.Add(time.Duration(tick) * time.Second)
	})
}

func newTestService(t *testing.T, opts ...ServiceOption) *Service {
	t.Helper()
	opts = append([]ServiceOption{WithClock(fixedClock())}, opts...)
	return NewInMemoryService(NewDefaultRulesEngine(), opts...)
}

func mustBlock(t *testing.T, svc *Service, name string, kv ...string) Element {
	t.Helper()
	block, _, err := svc.CreateBlock(context.Background(), name, "", domain.NewProperties(kv...))
	if err != nil {
		t.Fatalf("create block %s: %v", name, err)
	}
	return block
}

func mustIBD(t *testing.T, svc *Service, owner string) Diagram {
	t.Helper()
	ctx := context.Background()
	d, _, err := svc.CreateDiagram(ctx, Diagram{Type: domain.DiagramInternalBlock, Name: "IBD"})
	if err != nil {
		t.Fatalf("create ibd: %v", err)
	}
	if _, _, err := svc.SetIBDFather(ctx, d.ID, owner); err != nil {
		t.Fatalf("set ibd father: %v", err)
	}
	return d
}

func partObjectsOf(d Diagram, definition string) []DiagramObject {
	var out []DiagramObject
	for _, obj := range d.Objects {
		if obj.Type == domain.ElementPart && obj.Definition() == definition {
			out = append(out, obj)
		}
	}
	return out
}

func TestUndoRestoresPositionThenCreation(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t)

	diagram, _, err := svc.CreateDiagram(ctx, Diagram{Type: domain.DiagramActivity, Name: "Flow"})
	if err != nil {
		t.Fatalf("create diagram: %v", err)
	}
	task, obj, _, err := svc.CreateElementOnDiagram(ctx, diagram.ID, Element{Type: domain.ElementTask, Name: "T"}, 1, 1)
	if err != nil {
		t.Fatalf("create task: %v", err)
	}
	if _, _, err := svc.MoveObject(ctx, diagram.ID, obj.ID, 5, 5); err != nil {
		t.Fatalf("move task: %v", err)
	}

	ok, err := svc.Undo(ctx)
	if err != nil || !ok {
		t.Fatalf("first undo: ok=%v err=%v", ok, err)
	}
	d, _ := svc.Store().GetDiagram(diagram.ID)
	got, found := d.FindObject(obj.ID)
	if !found || got.X != 1 || got.Y != 1 {
		t.Fatalf("expected task back at (1,1), got %+v found=%v", got, found)
	}

	ok, err = svc.Undo(ctx)
	if err != nil || !ok {
		t.Fatalf("second undo: ok=%v err=%v", ok, err)
	}
	if _, exists := svc.Store().GetElement(task.ID); exists {
		t.Fatalf("expected task to be gone after second undo")
	}

	ok, err = svc.Redo(ctx)
	if err != nil || !ok {
		t.Fatalf("redo: ok=%v err=%v", ok, err)
	}
	if _, exists := svc.Store().GetElement(task.ID); !exists {
		t.Fatalf("expected task restored by redo")
	}
}

func TestMoveRunCollapsesToEndpoints(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t)
	diagram, _, err := svc.CreateDiagram(ctx, Diagram{Type: domain.DiagramBlock, Name: "BDD"})
	if err != nil {
		t.Fatalf("create diagram: %v", err)
	}
	_, obj, _, err := svc.CreateElementOnDiagram(ctx, diagram.ID, Element{Type: domain.ElementBlock, Name: "B"}, 0, 0)
	if err != nil {
		t.Fatalf("place block: %v", err)
	}
	before, _ := svc.History().Depth()
	for i := 1; i <= 5; i++ {
		if _, _, err := svc.MoveObject(ctx, diagram.ID, obj.ID, float64(i), 0); err != nil {
			t.Fatalf("move %d: %v", i, err)
		}
	}
	after, _ := svc.History().Depth()
	if after != before+1 {
		t.Fatalf("expected a move run to add one entry, depth %d -> %d", before, after)
	}

	if ok, err := svc.Undo(ctx); err != nil || !ok {
		t.Fatalf("undo: ok=%v err=%v", ok, err)
	}
	d, _ := svc.Store().GetDiagram(diagram.ID)
	if got, _ := d.FindObject(obj.ID); got.X != 0 {
		t.Fatalf("expected undo to return to x=0, got %v", got.X)
	}
}

func TestFailedActionLeavesHistoryUntouched(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t)
	mustBlock(t, svc, "A")
	if ok, err := svc.Undo(ctx); err != nil || !ok {
		t.Fatalf("undo: ok=%v err=%v", ok, err)
	}
	_, redoBefore := svc.History().Depth()
	if redoBefore == 0 {
		t.Fatalf("expected redo entry after undo")
	}

	if _, err := svc.DeleteElement(ctx, "missing"); !errors.Is(err, domain.ErrDanglingReference) {
		t.Fatalf("expected dangling reference, got %v", err)
	}
	if _, redo := svc.History().Depth(); redo != redoBefore {
		t.Fatalf("failed action cleared redo: %d -> %d", redoBefore, redo)
	}
	if ok, err := svc.Redo(ctx); err != nil || !ok {
		t.Fatalf("redo after failed action: ok=%v err=%v", ok, err)
	}
}

func TestUndoOnFreshServiceReportsNothing(t *testing.T) {
	svc := newTestService(t)
	ok, err := svc.Undo(context.Background())
	if err != nil {
		t.Fatalf("undo: %v", err)
	}
	if ok {
		t.Fatalf("expected nothing to undo")
	}
	if ok, _ := svc.Redo(context.Background()); ok {
		t.Fatalf("expected nothing to redo")
	}
}

func TestGeneralizationInheritsAndWithdraws(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t)
	parent := mustBlock(t, svc, "Vehicle", domain.PropPorts, "power", domain.PropOperations, "start")
	child := mustBlock(t, svc, "Car")

	gen, _, err := svc.CreateRelationship(ctx, Relationship{Type: domain.RelGeneralization, Source: child.ID, Target: parent.ID})
	if err != nil {
		t.Fatalf("create generalization: %v", err)
	}
	got, _ := svc.Store().GetElement(child.ID)
	if v := got.Properties.Value(domain.PropPorts); v != "power" {
		t.Fatalf("expected inherited ports, got %q", v)
	}
	if v := got.Properties.Value(domain.PropOperations); v != "start" {
		t.Fatalf("expected inherited operations, got %q", v)
	}

	if _, _, err := svc.SetElementProperty(ctx, parent.ID, domain.PropOperations, "start, stop"); err != nil {
		t.Fatalf("set operations: %v", err)
	}
	got, _ = svc.Store().GetElement(child.ID)
	if v := got.Properties.Value(domain.PropOperations); v != "start, stop" {
		t.Fatalf("expected parent change pushed to child, got %q", v)
	}

	if _, err := svc.DeleteRelationship(ctx, gen.ID); err != nil {
		t.Fatalf("delete generalization: %v", err)
	}
	got, _ = svc.Store().GetElement(child.ID)
	if got.Properties.Value(domain.PropPorts) != "" || got.Properties.Value(domain.PropOperations) != "" {
		t.Fatalf("expected inherited values withdrawn, got %+v", got.Properties)
	}
}

func TestAggregationPartsAndLimits(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t)
	whole := mustBlock(t, svc, "Car")
	wheel := mustBlock(t, svc, "Wheel")
	ibd := mustIBD(t, svc, whole.ID)

	rel, _, err := svc.CreateRelationship(ctx, Relationship{
		Type:       domain.RelCompositeAggregation,
		Source:     whole.ID,
		Target:     wheel.ID,
		Properties: domain.NewProperties(domain.PropMultiplicity, "1..2"),
	})
	if err != nil {
		t.Fatalf("create aggregation: %v", err)
	}
	d, _ := svc.Store().GetDiagram(ibd.ID)
	if n := len(partObjectsOf(d, wheel.ID)); n != 1 {
		t.Fatalf("expected one wheel placed, got %d", n)
	}

	created, _, err := svc.AddPart(ctx, whole.ID, wheel.ID, 1)
	if err != nil || len(created) != 1 {
		t.Fatalf("add part: created=%d err=%v", len(created), err)
	}
	undoBefore, _ := svc.History().Depth()
	if _, _, err := svc.AddPart(ctx, whole.ID, wheel.ID, 1); !errors.Is(err, domain.ErrLimitExceeded) {
		t.Fatalf("expected limit error, got %v", err)
	}
	if undo, _ := svc.History().Depth(); undo != undoBefore {
		t.Fatalf("rejected action recorded history")
	}

	_, _, err = svc.AddDiagramObject(ctx, ibd.ID, DiagramObject{
		Type:       domain.ElementPart,
		Properties: domain.NewProperties(domain.PropDefinition, wheel.ID),
	})
	var limitErr *domain.LimitError
	if !errors.As(err, &limitErr) {
		t.Fatalf("expected LimitError placing a third wheel, got %v", err)
	}
	if limitErr.Limit != 2 || limitErr.Parent != whole.ID {
		t.Fatalf("unexpected limit error %+v", limitErr)
	}

	if _, _, err := svc.UpdateMultiplicity(ctx, rel.ID, "1"); err != nil {
		t.Fatalf("lower multiplicity: %v", err)
	}
	d, _ = svc.Store().GetDiagram(ibd.ID)
	if n := len(partObjectsOf(d, wheel.ID)); n != 2 {
		t.Fatalf("lowering the bound must not remove parts, got %d", n)
	}
	checked, err := svc.Check(ctx)
	if err != nil || len(checked.Violations) != 1 || checked.HasBlocking() {
		t.Fatalf("expected the surplus wheel reported as a warning, got %+v (%v)", checked.Violations, err)
	}
	removed, _, err := svc.RemoveExcessParts(ctx, whole.ID, wheel.ID)
	if err != nil || removed != 1 {
		t.Fatalf("remove excess: removed=%d err=%v", removed, err)
	}
	if checked, err = svc.Check(ctx); err != nil || len(checked.Violations) != 0 {
		t.Fatalf("expected a clean model after pruning, got %+v (%v)", checked.Violations, err)
	}

	if _, err := svc.DeleteRelationship(ctx, rel.ID); err != nil {
		t.Fatalf("delete aggregation: %v", err)
	}
	d, _ = svc.Store().GetDiagram(ibd.ID)
	if n := len(partObjectsOf(d, wheel.ID)); n != 0 {
		t.Fatalf("expected parts withdrawn with the aggregation, got %d", n)
	}
}

func TestRenameBlockRewritesPartProperties(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t)
	car := mustBlock(t, svc, "Car", domain.PropPartProperties, "Motor[2]")
	motor := mustBlock(t, svc, "Motor")
	_ = car

	renamed, _, err := svc.RenameElement(ctx, motor.ID, "Engine")
	if err != nil {
		t.Fatalf("rename: %v", err)
	}
	if renamed.Name != "Engine" {
		t.Fatalf("expected renamed block, got %q", renamed.Name)
	}
	got, _ := svc.Store().GetElement(car.ID)
	if v := got.Properties.Value(domain.PropPartProperties); v != "Engine[2]" {
		t.Fatalf("expected part property rewritten, got %q", v)
	}
}

func TestRetargetRelationshipMovesInheritance(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t)
	a := mustBlock(t, svc, "A", domain.PropOperations, "fromA")
	b := mustBlock(t, svc, "B", domain.PropOperations, "fromB")
	child := mustBlock(t, svc, "Child")
	gen, _, err := svc.CreateRelationship(ctx, Relationship{Type: domain.RelGeneralization, Source: child.ID, Target: a.ID})
	if err != nil {
		t.Fatalf("create generalization: %v", err)
	}
	if _, _, err := svc.RetargetRelationship(ctx, gen.ID, "", b.ID); err != nil {
		t.Fatalf("retarget: %v", err)
	}
	got, _ := svc.Store().GetElement(child.ID)
	if v := got.Properties.Value(domain.PropOperations); v != "fromB" {
		t.Fatalf("expected operations from B only, got %q", v)
	}
}

func TestSetBlockPortsMirrorsOntoParts(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t)
	whole := mustBlock(t, svc, "Whole")
	part := mustBlock(t, svc, "Pump")
	ibd := mustIBD(t, svc, whole.ID)
	if _, _, err := svc.CreateRelationship(ctx, Relationship{Type: domain.RelAggregation, Source: whole.ID, Target: part.ID}); err != nil {
		t.Fatalf("create aggregation: %v", err)
	}

	updated, _, err := svc.SetBlockPorts(ctx, part.ID, []string{"in", "out"})
	if err != nil {
		t.Fatalf("set ports: %v", err)
	}
	if v := updated.Properties.Value(domain.PropPorts); v != "in, out" {
		t.Fatalf("unexpected ports %q", v)
	}
	d, _ := svc.Store().GetDiagram(ibd.ID)
	ports := 0
	for _, obj := range d.Objects {
		if obj.Type == domain.ElementPort {
			ports++
		}
	}
	if ports != 2 {
		t.Fatalf("expected two mirrored ports, got %d", ports)
	}

	if _, _, err := svc.SetBlockPorts(ctx, whole.ID+"-missing", nil); err == nil {
		t.Fatalf("expected error for missing block")
	}
}

func TestDeleteBlockWithdrawsContributions(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t)
	whole := mustBlock(t, svc, "Whole")
	part := mustBlock(t, svc, "Gear")
	if _, _, err := svc.CreateRelationship(ctx, Relationship{Type: domain.RelAggregation, Source: whole.ID, Target: part.ID}); err != nil {
		t.Fatalf("create aggregation: %v", err)
	}
	if _, err := svc.DeleteElement(ctx, part.ID); err != nil {
		t.Fatalf("delete part block: %v", err)
	}
	got, _ := svc.Store().GetElement(whole.ID)
	if v := got.Properties.Value(domain.PropPartProperties); v != "" {
		t.Fatalf("expected part property withdrawn, got %q", v)
	}
	for _, e := range svc.Store().ListElementsOfType(domain.ElementPart) {
		if e.Properties.Value(domain.PropDefinition) == part.ID {
			t.Fatalf("part instance %s survived its definition", e.ID)
		}
	}
}

func TestResizeRejectsNegativeSize(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t)
	d, _, err := svc.CreateDiagram(ctx, Diagram{Type: domain.DiagramBlock, Name: "BDD"})
	if err != nil {
		t.Fatalf("create diagram: %v", err)
	}
	_, obj, _, err := svc.CreateElementOnDiagram(ctx, d.ID, Element{Type: domain.ElementBlock}, 10, 10)
	if err != nil {
		t.Fatalf("place: %v", err)
	}
	if _, _, err := svc.ResizeObject(ctx, d.ID, obj.ID, -1, 5); err == nil {
		t.Fatalf("expected negative size to be rejected")
	}
	resized, _, err := svc.ResizeObject(ctx, d.ID, obj.ID, 80, 40)
	if err != nil {
		t.Fatalf("resize: %v", err)
	}
	if resized.Width != 80 || resized.Height != 40 {
		t.Fatalf("unexpected size %vx%v", resized.Width, resized.Height)
	}
}

func TestLoadSnapshotClearsHistory(t *testing.T) {
	ctx := context.Background()
	source := newTestService(t)
	block := mustBlock(t, source, "Imported")
	snap := source.Snapshot()

	svc := newTestService(t)
	mustBlock(t, svc, "Local")
	if err := svc.LoadSnapshot(ctx, snap); err != nil {
		t.Fatalf("load snapshot: %v", err)
	}
	if _, ok := svc.Store().GetElement(block.ID); !ok {
		t.Fatalf("expected imported block")
	}
	if undo, redo := svc.History().Depth(); undo != 0 || redo != 0 {
		t.Fatalf("expected empty history, got %d/%d", undo, redo)
	}

	bad := snap.Clone()
	bad.Relationships = append(bad.Relationships, Relationship{ID: "r", Type: domain.RelTrace, Source: "x", Target: "y"})
	if err := svc.LoadSnapshot(ctx, bad); !errors.Is(err, domain.ErrDanglingReference) {
		t.Fatalf("expected dangling reference, got %v", err)
	}
	if _, ok := svc.Store().GetElement(block.ID); !ok {
		t.Fatalf("failed load must leave the model untouched")
	}
}

func TestRenamePhaseIsUndoable(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t)
	svc.SetActivePhase("Concept")
	block := mustBlock(t, svc, "Phased")
	if _, err := svc.RenamePhase(ctx, "Concept", "Design"); err != nil {
		t.Fatalf("rename phase: %v", err)
	}
	got, _ := svc.Store().GetElement(block.ID)
	if got.Phase != "Design" {
		t.Fatalf("expected phase rewritten, got %q", got.Phase)
	}
	if ok, err := svc.Undo(ctx); err != nil || !ok {
		t.Fatalf("undo: ok=%v err=%v", ok, err)
	}
	got, _ = svc.Store().GetElement(block.ID)
	if got.Phase != "Concept" {
		t.Fatalf("expected phase restored, got %q", got.Phase)
	}
}

func TestWithHistoryCapacity(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t, WithHistory(history.NewManager(history.WithCapacity(2), history.WithStrategy(history.AppendOnly))))
	for _, name := range []string{"A", "B", "C", "D"} {
		mustBlock(t, svc, name)
	}
	var undone int
	for {
		ok, err := svc.Undo(ctx)
		if err != nil {
			t.Fatalf("undo: %v", err)
		}
		if !ok {
			break
		}
		undone++
	}
	if undone != 2 {
		t.Fatalf("expected capacity to bound history to 2 undos, got %d", undone)
	}
	if got := svc.Store().Stats().Elements; got != 3 {
		t.Fatalf("expected root plus A and B after undos, got %d elements", got)
	}
	if svc.History().Strategy() != history.AppendOnly {
		t.Fatalf("expected configured strategy")
	}
}

func TestFullCapacityOfActionsUndoesToStart(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t)
	base := svc.Store().Stats().Elements
	for i := range history.DefaultCapacity {
		mustBlock(t, svc, fmt.Sprintf("Block%d", i))
	}
	for i := range history.DefaultCapacity {
		if ok, err := svc.Undo(ctx); err != nil || !ok {
			t.Fatalf("undo %d: ok=%v err=%v", i+1, ok, err)
		}
	}
	if got := svc.Store().Stats().Elements; got != base {
		t.Fatalf("expected %d elements after undoing every action, got %d", base, got)
	}
	if ok, _ := svc.Undo(ctx); ok {
		t.Fatalf("expected history exhausted")
	}
	for i := range history.DefaultCapacity {
		if ok, err := svc.Redo(ctx); err != nil || !ok {
			t.Fatalf("redo %d: ok=%v err=%v", i+1, ok, err)
		}
	}
	if got := svc.Store().Stats().Elements; got != base+history.DefaultCapacity {
		t.Fatalf("expected every action redone, got %d elements", got)
	}
}

func TestPackagesAndLinks(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t)
	pkg, _, err := svc.CreatePackage(ctx, "Subsystem", "")
	if err != nil {
		t.Fatalf("create package: %v", err)
	}
	block, _, err := svc.CreateBlock(ctx, "Controller", pkg.ID, nil)
	if err != nil {
		t.Fatalf("create block: %v", err)
	}
	qn, err := svc.Store().QualifiedName(block.ID)
	if err != nil {
		t.Fatalf("qualified name: %v", err)
	}
	if qn == "" || qn == block.Name {
		t.Fatalf("expected qualified name to include package, got %q", qn)
	}

	d, _, err := svc.CreateDiagram(ctx, Diagram{Type: domain.DiagramInternalBlock, Name: "Controller IBD"})
	if err != nil {
		t.Fatalf("create diagram: %v", err)
	}
	if _, err := svc.LinkDiagram(ctx, block.ID, d.ID); err != nil {
		t.Fatalf("link: %v", err)
	}
	if linked, ok := svc.Store().LinkedDiagram(block.ID); !ok || linked != d.ID {
		t.Fatalf("expected link to %s, got %s", d.ID, linked)
	}
	if _, err := svc.DeleteDiagram(ctx, d.ID); err != nil {
		t.Fatalf("delete diagram: %v", err)
	}
	if _, ok := svc.Store().LinkedDiagram(block.ID); ok {
		t.Fatalf("expected link cleared with the diagram")
	}
	if _, err := svc.DeleteDiagram(ctx, d.ID); err == nil {
		t.Fatalf("expected error deleting a missing diagram")
	}
}

type unnamedBlockRule struct{}

func (unnamedBlockRule) Name() string { return "unnamed_block" }

func (unnamedBlockRule) Evaluate(_ context.Context, view domain.RuleView, _ []Change) (Result, error) {
	var res Result
	for _, e := range view.ListElements() {
		if e.Type == domain.ElementBlock && e.Name == "Unnamed" {
			res.Violations = append(res.Violations, domain.Violation{
				Rule: "unnamed_block", Severity: domain.SeverityWarn, Message: "placeholder name", Entity: domain.EntityElement, EntityID: e.ID,
			})
		}
	}
	return res, nil
}

func TestCheckEvaluatesWholeModel(t *testing.T) {
	ctx := context.Background()
	engine := NewDefaultRulesEngine()
	engine.Register(unnamedBlockRule{})
	svc := NewInMemoryService(engine, WithClock(fixedClock()))

	res, err := svc.Check(ctx)
	if err != nil || len(res.Violations) != 0 {
		t.Fatalf("expected clean model, got %+v (%v)", res, err)
	}
	block := mustBlock(t, svc, "Unnamed")
	undo, _ := svc.History().Depth()

	res, err = svc.Check(ctx)
	if err != nil {
		t.Fatalf("check: %v", err)
	}
	if len(res.Violations) != 1 || res.Violations[0].EntityID != block.ID {
		t.Fatalf("expected one violation for %s, got %+v", block.ID, res.Violations)
	}
	if after, _ := svc.History().Depth(); after != undo {
		t.Fatalf("check must not record history")
	}
}
