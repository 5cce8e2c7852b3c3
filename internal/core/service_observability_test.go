package core

import (
	"bytes"
	"context"
	"errors"
	"expvar"
	"strings"
	"testing"
	"time"

	"modelcore/pkg/domain"
)

type captureAuditRecorder struct {
	entries []AuditEntry
}

func (c *captureAuditRecorder) Record(_ context.Context, entry AuditEntry) {
	c.entries = append(c.entries, entry)
}

func (c *captureAuditRecorder) has(op string, status AuditStatus, predicate func(AuditEntry) bool) bool {
	for _, entry := range c.entries {
		if entry.Operation == op && entry.Status == status {
			if predicate == nil || predicate(entry) {
				return true
			}
		}
	}
	return false
}

type metricsCall struct {
	op       string
	success  bool
	duration time.Duration
}

type captureMetricsRecorder struct {
	calls []metricsCall
}

func (c *captureMetricsRecorder) Observe(_ context.Context, op string, success bool, duration time.Duration) {
	c.calls = append(c.calls, metricsCall{op: op, success: success, duration: duration})
}

func (c *captureMetricsRecorder) has(op string, success bool) bool {
	for _, call := range c.calls {
		if call.op == op && call.success == success {
			return true
		}
	}
	return false
}

type captureTracer struct {
	started []string
	ended   []spanRecord
}

type spanRecord struct {
	op  string
	err error
}

func (c *captureTracer) Start(ctx context.Context, op string) (context.Context, TraceSpan) {
	c.started = append(c.started, op)
	return ctx, &captureSpan{tracer: c, op: op}
}

func (c *captureTracer) has(op string, success bool) bool {
	for _, record := range c.ended {
		if record.op == op {
			if success && record.err == nil {
				return true
			}
			if !success && record.err != nil {
				return true
			}
		}
	}
	return false
}

type captureSpan struct {
	tracer *captureTracer
	op     string
}

func (s *captureSpan) End(err error) {
	s.tracer.ended = append(s.tracer.ended, spanRecord{op: s.op, err: err})
}

func TestServiceObservabilityComplianceModel(t *testing.T) {
	ctx := context.Background()
	audit := &captureAuditRecorder{}
	metrics := &captureMetricsRecorder{}
	tracer := &captureTracer{}

	svc := NewInMemoryService(NewDefaultRulesEngine(),
		WithAuditRecorder(audit),
		WithMetricsRecorder(metrics),
		WithTracer(tracer),
		WithServiceAuthor("analyst"),
	)

	block, _, err := svc.CreateBlock(ctx, "Pump", "", nil)
	if err != nil {
		t.Fatalf("create block: %v", err)
	}
	if !audit.has("create_element", AuditStatusSuccess, func(entry AuditEntry) bool {
		return entry.EntityID == block.ID && entry.Author == "analyst"
	}) {
		t.Fatalf("expected audit entry for create_element success")
	}

	if _, _, err := svc.RenameElement(ctx, block.ID, "Valve"); err != nil {
		t.Fatalf("rename element: %v", err)
	}
	if _, _, err := svc.SetElementProperty(ctx, block.ID, domain.PropOperations, "open"); err != nil {
		t.Fatalf("set property: %v", err)
	}

	if _, err := svc.DeleteElement(ctx, "missing-element"); err == nil {
		t.Fatalf("expected delete_element error for missing id")
	}
	if !audit.has("delete_element", AuditStatusError, func(entry AuditEntry) bool { return entry.Error != "" }) {
		t.Fatalf("expected audit error entry for delete_element")
	}
	if !metrics.has("delete_element", false) {
		t.Fatalf("expected metrics entry for failed delete_element")
	}
	if !tracer.has("delete_element", false) {
		t.Fatalf("expected trace span for failed delete_element")
	}

	diagram, _, err := svc.CreateDiagram(ctx, Diagram{Type: domain.DiagramBlock, Name: "BDD"})
	if err != nil {
		t.Fatalf("create diagram: %v", err)
	}
	obj, _, err := svc.AddDiagramObject(ctx, diagram.ID, DiagramObject{Type: domain.ElementBlock, ElementID: block.ID})
	if err != nil {
		t.Fatalf("add object: %v", err)
	}
	if _, _, err := svc.MoveObject(ctx, diagram.ID, obj.ID, 10, 20); err != nil {
		t.Fatalf("move object: %v", err)
	}
	if _, err := svc.Undo(ctx); err != nil {
		t.Fatalf("undo: %v", err)
	}
	if _, err := svc.Redo(ctx); err != nil {
		t.Fatalf("redo: %v", err)
	}
	if _, err := svc.DeleteElement(ctx, block.ID); err != nil {
		t.Fatalf("delete element: %v", err)
	}

	successOps := []string{
		"create_element",
		"rename_element",
		"set_element_property",
		"create_diagram",
		"add_diagram_object",
		"move_object",
		"undo",
		"redo",
		"delete_element",
	}

	for _, op := range successOps {
		if !metrics.has(op, true) {
			t.Fatalf("expected metrics success entry for %s", op)
		}
		if !tracer.has(op, true) {
			t.Fatalf("expected finished span for %s", op)
		}
		if !audit.has(op, AuditStatusSuccess, nil) {
			t.Fatalf("expected audit success entry for %s", op)
		}
	}
	if len(tracer.started) != len(tracer.ended) {
		t.Fatalf("every started span must end: %d started, %d ended", len(tracer.started), len(tracer.ended))
	}
}

func TestServiceRecordsBlockedViolations(t *testing.T) {
	ctx := context.Background()
	audit := &captureAuditRecorder{}
	engine := NewRulesEngine()
	engine.Register(blockAllRule{})
	svc := NewInMemoryService(engine, WithAuditRecorder(audit))

	_, res, err := svc.CreateBlock(ctx, "Blocked", "", nil)
	var violation RuleViolationError
	if !errors.As(err, &violation) {
		t.Fatalf("expected rule violation, got %v", err)
	}
	if !res.HasBlocking() {
		t.Fatalf("expected blocking result, got %+v", res)
	}
	if !audit.has("create_element", AuditStatusError, func(entry AuditEntry) bool { return len(entry.Violations) == 1 }) {
		t.Fatalf("expected violations on the audit entry")
	}
}

type blockAllRule struct{}

func (blockAllRule) Name() string { return "block_all" }

func (blockAllRule) Evaluate(_ context.Context, _ domain.RuleView, changes []Change) (Result, error) {
	if len(changes) == 0 {
		return Result{}, nil
	}
	return Result{Violations: []Violation{{Rule: "block_all", Severity: SeverityBlock, Message: "blocked"}}}, nil
}

const entryStatusSuccess = "success"
const entryStatusError = "error"

func TestExpvarMetricsRecorderExports(t *testing.T) {
	recorder := NewExpvarMetricsRecorder("")
	if recorder.Name() == "" {
		t.Fatalf("expected recorder to have export name")
	}
	recorder.Observe(context.Background(), "test_op", true, 10*time.Millisecond)
	recorder.Observe(context.Background(), "test_op", false, 5*time.Millisecond)

	snapshot := recorder.Snapshot()
	if snapshot.DurationsMS["test_op"] <= 0 {
		t.Fatalf("expected positive duration, snapshot=%+v", snapshot)
	}
	if snapshot.Results["test_op"][entryStatusSuccess] != 1 || snapshot.Results["test_op"][entryStatusError] != 1 {
		t.Fatalf("unexpected results snapshot=%+v", snapshot)
	}

	if v := expvar.Get(recorder.Name()); v == nil {
		t.Fatalf("expected expvar export to be registered")
	} else if !strings.Contains(v.String(), "test_op") {
		t.Fatalf("expected expvar output to contain operation: %s", v.String())
	}
}

func TestJSONTraceTracerExports(t *testing.T) {
	var buf bytes.Buffer
	tracer := NewJSONTracer(&buf)
	_, span := tracer.Start(context.Background(), "trace_op")
	span.End(nil)

	entries := tracer.Entries()
	if len(entries) != 1 {
		t.Fatalf("expected single span entry, got %d", len(entries))
	}
	if entries[0].Operation != "trace_op" || entries[0].Status != entryStatusSuccess {
		t.Fatalf("unexpected span entry: %+v", entries[0])
	}
	if !strings.Contains(buf.String(), "\"operation\":\"trace_op\"") {
		t.Fatalf("expected JSON output to contain operation: %q", buf.String())
	}
}
