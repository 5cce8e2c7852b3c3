package core

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"modelcore/internal/history"
	"modelcore/internal/infra/persistence/memory"
	"modelcore/internal/propagation"
	"modelcore/pkg/domain"
)

// Service exposes whole modeling actions on top of the store. Each action runs
// its mutation and the resulting propagation in a single transaction and is
// recorded in the undo history when it commits.
type Service struct {
	mu sync.Mutex

	store       Store
	propagation *propagation.Engine
	history     *history.Manager

	logger  Logger
	clock   Clock
	audit   AuditRecorder
	metrics MetricsRecorder
	tracer  Tracer
	author  string
}

// ServiceOption configures optional collaborators of a Service.
type ServiceOption func(*Service)

// WithLogger routes service logs to logger.
func WithLogger(logger Logger) ServiceOption {
	return func(s *Service) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithClock overrides the clock used for audit timing.
func WithClock(clock Clock) ServiceOption {
	return func(s *Service) {
		if clock != nil {
			s.clock = clock
		}
	}
}

// WithAuditRecorder receives one entry per operation.
func WithAuditRecorder(recorder AuditRecorder) ServiceOption {
	return func(s *Service) {
		if recorder != nil {
			s.audit = recorder
		}
	}
}

// WithMetricsRecorder receives the outcome and latency of every operation.
func WithMetricsRecorder(recorder MetricsRecorder) ServiceOption {
	return func(s *Service) {
		if recorder != nil {
			s.metrics = recorder
		}
	}
}

// WithTracer starts a span per operation.
func WithTracer(tracer Tracer) ServiceOption {
	return func(s *Service) {
		if tracer != nil {
			s.tracer = tracer
		}
	}
}

// WithHistory replaces the default undo history.
func WithHistory(manager *history.Manager) ServiceOption {
	return func(s *Service) {
		if manager != nil {
			s.history = manager
		}
	}
}

// WithPropagationEngine replaces the default propagation engine.
func WithPropagationEngine(engine *propagation.Engine) ServiceOption {
	return func(s *Service) {
		if engine != nil {
			s.propagation = engine
		}
	}
}

// WithServiceAuthor stamps author on audit entries and on records touched
// through the service.
func WithServiceAuthor(author string) ServiceOption {
	return func(s *Service) { s.author = author }
}

func newService(opts []ServiceOption) *Service {
	s := &Service{
		propagation: propagation.New(nil),
		history:     history.NewManager(),
		logger:      noopLogger{},
		clock:       systemClock{},
		audit:       noopAudit{},
		metrics:     noopMetrics{},
		tracer:      noopTracer{},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// NewService constructs a service backed by the supplied store.
func NewService(store Store, opts ...ServiceOption) *Service {
	s := newService(opts)
	s.store = store
	if s.author != "" {
		store.SetAuthor(s.author)
	}
	return s
}

// NewInMemoryService creates a service and in-memory store with the given rules engine.
func NewInMemoryService(engine *RulesEngine, opts ...ServiceOption) *Service {
	s := newService(opts)
	s.store = memory.NewStore(engine, memory.WithClock(s.clock.Now), memory.WithAuthor(s.author))
	return s
}

// NewServiceFromConfig opens the configured backend with the default rules and
// applies the history, author and phase settings.
func NewServiceFromConfig(ctx context.Context, cfg Config, opts ...ServiceOption) (*Service, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	historyOpts, err := cfg.HistoryOptions()
	if err != nil {
		return nil, err
	}
	store, err := OpenPersistentStore(ctx, cfg.Storage, NewDefaultRulesEngine(), memory.WithAuthor(cfg.Author))
	if err != nil {
		return nil, fmt.Errorf("open %s store: %w", cfg.Storage.Driver, err)
	}
	if cfg.ActivePhase != "" {
		store.SetActivePhase(cfg.ActivePhase)
	}
	opts = append([]ServiceOption{WithHistory(history.NewManager(historyOpts...)), WithServiceAuthor(cfg.Author)}, opts...)
	return NewService(store, opts...), nil
}

// Store returns the underlying storage implementation.
func (s *Service) Store() Store {
	return s.store
}

// History returns the undo history.
func (s *Service) History() *history.Manager {
	return s.history
}

// Close releases the backing store.
func (s *Service) Close() error {
	return CloseStore(s.store)
}

// observe wraps fn with tracing, metrics, audit and logging under the
// service mutex.
func (s *Service) observe(ctx context.Context, op string, fn func(context.Context) (string, Result, error)) (Result, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	start := s.clock.Now()
	ctx, span := s.tracer.Start(ctx, op)
	entityID, res, err := fn(ctx)
	duration := s.clock.Now().Sub(start)
	span.End(err)
	s.metrics.Observe(ctx, op, err == nil, duration)

	entry := AuditEntry{
		Operation:  op,
		Status:     AuditStatusSuccess,
		EntityID:   entityID,
		Author:     s.author,
		Violations: res.Violations,
		StartedAt:  start,
		Duration:   duration,
	}
	if err != nil {
		entry.Status = AuditStatusError
		entry.Error = err.Error()
		s.logger.Warn("operation failed", "operation", op, "entity", entityID, "error", err)
	} else {
		s.logger.Debug("operation completed", "operation", op, "entity", entityID, "duration", duration)
		for _, v := range res.Violations {
			s.logger.Warn("rule violation", "rule", v.Rule, "severity", string(v.Severity), "entity", v.EntityID, "message", v.Message)
		}
	}
	s.audit.Record(ctx, entry)
	return res, err
}

// mutate runs fn as one undoable action.
func (s *Service) mutate(ctx context.Context, op string, fn func(tx domain.Transaction) (string, error)) (Result, error) {
	return s.observe(ctx, op, func(ctx context.Context) (string, Result, error) {
		pre := s.store.ExportState()
		var entityID string
		res, err := s.store.RunInTransaction(ctx, func(tx domain.Transaction) error {
			var err error
			entityID, err = fn(tx)
			return err
		})
		if err != nil {
			return entityID, res, err
		}
		s.history.PushUndoState(pre)
		s.history.Record(s.store)
		return entityID, res, nil
	})
}

// CreatePackage creates a package under ownerID, or under the root package
// when ownerID is empty.
func (s *Service) CreatePackage(ctx context.Context, name, ownerID string) (Element, Result, error) {
	return s.CreateElement(ctx, Element{Type: domain.ElementPackage, Name: name, Owner: ownerID})
}

// CreateElement persists a new element.
func (s *Service) CreateElement(ctx context.Context, element Element) (Element, Result, error) {
	var created Element
	res, err := s.mutate(ctx, "create_element", func(tx domain.Transaction) (string, error) {
		var err error
		created, err = tx.CreateElement(element)
		return created.ID, err
	})
	return created, res, err
}

// CreateBlock creates a block in ownerID with the given properties.
func (s *Service) CreateBlock(ctx context.Context, name, ownerID string, props domain.Properties) (Element, Result, error) {
	return s.CreateElement(ctx, Element{Type: domain.ElementBlock, Name: name, Owner: ownerID, Properties: props})
}

// CreateElementOnDiagram creates element and places it on diagramID at (x, y)
// as a single action.
func (s *Service) CreateElementOnDiagram(ctx context.Context, diagramID string, element Element, x, y float64) (Element, DiagramObject, Result, error) {
	var (
		created Element
		placed  DiagramObject
	)
	res, err := s.mutate(ctx, "create_element_on_diagram", func(tx domain.Transaction) (string, error) {
		if _, ok := tx.FindDiagram(diagramID); !ok {
			return "", domain.MissingDiagram(diagramID, "")
		}
		var err error
		if created, err = tx.CreateElement(element); err != nil {
			return "", err
		}
		placed, err = s.addObject(tx, diagramID, DiagramObject{Type: created.Type, ElementID: created.ID, X: x, Y: y, Properties: partObjectProps(created)})
		return created.ID, err
	})
	return created, placed, res, err
}

func partObjectProps(e Element) domain.Properties {
	if e.Type != domain.ElementPart {
		return nil
	}
	if def := e.Properties.Value(domain.PropDefinition); def != "" {
		return domain.NewProperties(domain.PropDefinition, def)
	}
	return nil
}

// RenameElement renames an element. Renaming a block rewrites the names
// derived from it.
func (s *Service) RenameElement(ctx context.Context, id, name string) (Element, Result, error) {
	var renamed Element
	res, err := s.mutate(ctx, "rename_element", func(tx domain.Transaction) (string, error) {
		before, ok := tx.FindElement(id)
		if !ok {
			return id, domain.MissingElement(id, "")
		}
		var err error
		if renamed, err = tx.RenameElement(id, name); err != nil {
			return id, err
		}
		if before.Type == domain.ElementBlock && before.Name != renamed.Name {
			if err := s.propagation.PropagateRename(tx, id, before.Name); err != nil {
				return id, err
			}
			renamed, _ = tx.FindElement(id)
		}
		return id, nil
	})
	return renamed, res, err
}

// DeleteElement removes an element with its relationships, placements and
// links. Deleting a block first withdraws what it contributed to its wholes
// and generalization children.
func (s *Service) DeleteElement(ctx context.Context, id string) (Result, error) {
	return s.mutate(ctx, "delete_element", func(tx domain.Transaction) (string, error) {
		e, ok := tx.FindElement(id)
		if !ok {
			return id, domain.MissingElement(id, "")
		}
		if e.Type == domain.ElementBlock {
			if err := s.withdrawBlock(tx, id); err != nil {
				return id, err
			}
		}
		return id, tx.DeleteElement(id)
	})
}

func (s *Service) withdrawBlock(tx domain.Transaction, id string) error {
	for _, rel := range tx.ListRelationships(domain.RelationshipFilter{Target: id}) {
		switch {
		case rel.Type.IsAggregation():
			if err := s.propagation.RemoveAggregationPart(tx, rel.Source, id); err != nil {
				return err
			}
		case rel.Type == domain.RelGeneralization:
			if err := s.propagation.RemoveInheritedProperties(tx, rel.Source, id); err != nil {
				return err
			}
		}
	}
	return nil
}

// SetElementProperty sets key on an element; an empty value removes it.
// Changes to inherited block properties are pushed to descendants.
func (s *Service) SetElementProperty(ctx context.Context, id, key, value string) (Element, Result, error) {
	var updated Element
	res, err := s.mutate(ctx, "set_element_property", func(tx domain.Transaction) (string, error) {
		var err error
		updated, err = tx.UpdateElement(id, func(e *Element) error {
			if value == "" {
				e.Properties.Delete(key)
			} else {
				e.Properties.Set(key, value)
			}
			return nil
		})
		if err != nil {
			return id, err
		}
		if updated.Type != domain.ElementBlock {
			return id, nil
		}
		if err := s.propagateBlockProperty(tx, id, key); err != nil {
			return id, err
		}
		updated, _ = tx.FindElement(id)
		return id, nil
	})
	return updated, res, err
}

func (s *Service) propagateBlockProperty(tx domain.Transaction, blockID, key string) error {
	switch key {
	case domain.PropPartProperties:
		if err := s.propagation.SyncPartPropertyParts(tx, blockID); err != nil {
			return err
		}
	case domain.PropPorts:
		if err := s.propagation.MirrorPorts(tx, blockID); err != nil {
			return err
		}
	}
	for _, inherited := range domain.InheritedKeys {
		if key == inherited {
			return s.propagation.PropagateBlockChanges(tx, blockID)
		}
	}
	return nil
}

// SetBlockPorts replaces the block's port list and mirrors it onto every
// part object typed by the block and its descendants.
func (s *Service) SetBlockPorts(ctx context.Context, blockID string, ports []string) (Element, Result, error) {
	var updated Element
	res, err := s.mutate(ctx, "set_block_ports", func(tx domain.Transaction) (string, error) {
		var err error
		updated, err = tx.UpdateElement(blockID, func(e *Element) error {
			if e.Type != domain.ElementBlock {
				return fmt.Errorf("element %s is a %s, not a block", e.ID, e.Type)
			}
			if len(ports) == 0 {
				e.Properties.Delete(domain.PropPorts)
			} else {
				e.Properties.Set(domain.PropPorts, domain.JoinList(ports))
			}
			return nil
		})
		if err != nil {
			return blockID, err
		}
		if err := s.propagateBlockProperty(tx, blockID, domain.PropPorts); err != nil {
			return blockID, err
		}
		updated, _ = tx.FindElement(blockID)
		return blockID, nil
	})
	return updated, res, err
}

// CreateRelationship persists rel and applies its consequences: a
// generalization makes the source inherit from the target, an aggregation
// instantiates the parts it implies.
func (s *Service) CreateRelationship(ctx context.Context, rel Relationship) (Relationship, Result, error) {
	var created Relationship
	res, err := s.mutate(ctx, "create_relationship", func(tx domain.Transaction) (string, error) {
		var err error
		if created, err = tx.CreateRelationship(rel); err != nil {
			return "", err
		}
		if err := s.applyRelationship(tx, created); err != nil {
			return created.ID, err
		}
		created, _ = tx.FindRelationship(created.ID)
		return created.ID, nil
	})
	return created, res, err
}

func (s *Service) applyRelationship(tx domain.Transaction, rel Relationship) error {
	switch {
	case rel.Type == domain.RelGeneralization:
		if err := s.propagation.InheritProperties(tx, rel.Source); err != nil {
			return err
		}
		if err := s.propagation.SyncPartPropertyParts(tx, rel.Source); err != nil {
			return err
		}
		if err := s.propagation.MirrorPorts(tx, rel.Source); err != nil {
			return err
		}
		return s.propagation.PropagateBlockChanges(tx, rel.Source)
	case rel.Type.IsAggregation():
		return s.propagation.SyncAggregationParts(tx, rel.Source, rel.Target)
	}
	return nil
}

func (s *Service) withdrawRelationship(tx domain.Transaction, rel Relationship) error {
	switch {
	case rel.Type == domain.RelGeneralization:
		return s.propagation.RemoveInheritedProperties(tx, rel.Source, rel.Target)
	case rel.Type.IsAggregation():
		for _, other := range tx.ListRelationships(domain.RelationshipFilter{Source: rel.Source, Target: rel.Target}) {
			if other.ID != rel.ID && other.Type.IsAggregation() {
				return nil
			}
		}
		return s.propagation.RemoveAggregationPart(tx, rel.Source, rel.Target)
	}
	return nil
}

// UpdateMultiplicity changes an aggregation's multiplicity and adds the parts
// a larger lower bound implies. Existing parts are never removed here; see
// RemoveExcessParts.
func (s *Service) UpdateMultiplicity(ctx context.Context, relID, multiplicity string) (Relationship, Result, error) {
	var updated Relationship
	res, err := s.mutate(ctx, "update_multiplicity", func(tx domain.Transaction) (string, error) {
		var err error
		updated, err = tx.UpdateRelationship(relID, func(r *Relationship) error {
			if !r.Type.IsAggregation() {
				return fmt.Errorf("relationship %s is a %s, not an aggregation", r.ID, r.Type)
			}
			if multiplicity == "" {
				r.Properties.Delete(domain.PropMultiplicity)
			} else {
				r.Properties.Set(domain.PropMultiplicity, multiplicity)
			}
			return nil
		})
		if err != nil {
			return relID, err
		}
		if err := s.propagation.SyncAggregationParts(tx, updated.Source, updated.Target); err != nil {
			return relID, err
		}
		updated, _ = tx.FindRelationship(relID)
		return relID, nil
	})
	return updated, res, err
}

// RetargetRelationship moves a relationship's endpoints. Consequences of the
// old endpoints are withdrawn before the new ones are applied.
func (s *Service) RetargetRelationship(ctx context.Context, relID, source, target string) (Relationship, Result, error) {
	var updated Relationship
	res, err := s.mutate(ctx, "retarget_relationship", func(tx domain.Transaction) (string, error) {
		before, ok := tx.FindRelationship(relID)
		if !ok {
			return relID, domain.MissingRelationship(relID)
		}
		if source == "" {
			source = before.Source
		}
		if target == "" {
			target = before.Target
		}
		if source == before.Source && target == before.Target {
			updated = before
			return relID, nil
		}
		var err error
		updated, err = tx.UpdateRelationship(relID, func(r *Relationship) error {
			r.Source = source
			r.Target = target
			return nil
		})
		if err != nil {
			return relID, err
		}
		if err := s.withdrawRelationship(tx, before); err != nil {
			return relID, err
		}
		if err := s.applyRelationship(tx, updated); err != nil {
			return relID, err
		}
		updated, _ = tx.FindRelationship(relID)
		return relID, nil
	})
	return updated, res, err
}

// DeleteRelationship removes a relationship after withdrawing what it
// propagated.
func (s *Service) DeleteRelationship(ctx context.Context, relID string) (Result, error) {
	return s.mutate(ctx, "delete_relationship", func(tx domain.Transaction) (string, error) {
		rel, ok := tx.FindRelationship(relID)
		if !ok {
			return relID, domain.MissingRelationship(relID)
		}
		if err := s.withdrawRelationship(tx, rel); err != nil {
			return relID, err
		}
		return relID, tx.DeleteRelationship(relID)
	})
}

// CreateDiagram persists a new diagram.
func (s *Service) CreateDiagram(ctx context.Context, diagram Diagram) (Diagram, Result, error) {
	var created Diagram
	res, err := s.mutate(ctx, "create_diagram", func(tx domain.Transaction) (string, error) {
		var err error
		created, err = tx.CreateDiagram(diagram)
		return created.ID, err
	})
	return created, res, err
}

// DeleteDiagram removes a diagram and its element link.
func (s *Service) DeleteDiagram(ctx context.Context, id string) (Result, error) {
	return s.mutate(ctx, "delete_diagram", func(tx domain.Transaction) (string, error) {
		if _, ok := tx.FindDiagram(id); !ok {
			return id, domain.MissingDiagram(id, "")
		}
		return id, tx.DeleteDiagram(id)
	})
}

// LinkDiagram makes diagramID the implementation of elementID. An empty
// diagramID clears the element's link.
func (s *Service) LinkDiagram(ctx context.Context, elementID, diagramID string) (Result, error) {
	return s.mutate(ctx, "link_diagram", func(tx domain.Transaction) (string, error) {
		return elementID, tx.LinkDiagram(elementID, diagramID)
	})
}

// SetIBDFather makes diagramID the internal block diagram of blockID and
// returns the part objects it placed.
func (s *Service) SetIBDFather(ctx context.Context, diagramID, blockID string) ([]DiagramObject, Result, error) {
	var placed []DiagramObject
	res, err := s.mutate(ctx, "set_ibd_father", func(tx domain.Transaction) (string, error) {
		var err error
		placed, err = s.propagation.SetIBDFather(tx, diagramID, blockID)
		return diagramID, err
	})
	return placed, res, err
}

// AddPart creates count more part instances of partID in wholeID. It fails
// with a LimitError when the aggregation bound would be exceeded.
func (s *Service) AddPart(ctx context.Context, wholeID, partID string, count int) ([]Element, Result, error) {
	var created []Element
	res, err := s.mutate(ctx, "add_part", func(tx domain.Transaction) (string, error) {
		var err error
		created, err = s.propagation.AddMultiplicityParts(tx, wholeID, partID, count)
		return wholeID, err
	})
	return created, res, err
}

// RemoveExcessParts deletes part instances beyond the aggregation bound and
// reports how many were removed.
func (s *Service) RemoveExcessParts(ctx context.Context, wholeID, partID string) (int, Result, error) {
	var removed int
	res, err := s.mutate(ctx, "remove_excess_parts", func(tx domain.Transaction) (string, error) {
		var err error
		removed, err = s.propagation.RemoveExcessParts(tx, wholeID, partID)
		return wholeID, err
	})
	return removed, res, err
}

// AddDiagramObject places obj on diagramID. Part objects are refused when the
// diagram's block already shows as many parts of that definition as allowed.
func (s *Service) AddDiagramObject(ctx context.Context, diagramID string, obj DiagramObject) (DiagramObject, Result, error) {
	var placed DiagramObject
	res, err := s.mutate(ctx, "add_diagram_object", func(tx domain.Transaction) (string, error) {
		var err error
		placed, err = s.addObject(tx, diagramID, obj)
		return diagramID, err
	})
	return placed, res, err
}

func (s *Service) addObject(tx domain.Transaction, diagramID string, obj DiagramObject) (DiagramObject, error) {
	if obj.Type == domain.ElementPart && obj.Definition() != "" {
		d, ok := tx.FindDiagram(diagramID)
		if !ok {
			return DiagramObject{}, domain.MissingDiagram(diagramID, "")
		}
		parent, linked := tx.LinkedElement(diagramID)
		if !linked {
			parent = d.Father
		}
		if parent != "" && s.propagation.MultiplicityLimitExceeded(tx, parent, obj.Definition(), []DiagramObject{obj}) {
			return DiagramObject{}, &domain.LimitError{Parent: parent, Definition: obj.Definition(), Limit: declaredLimit(tx, parent, obj.Definition())}
		}
	}
	return tx.AddDiagramObject(diagramID, obj)
}

// declaredLimit reports the tightest upper bound among the aggregations from
// parent to definition.
func declaredLimit(view domain.TransactionView, parent, definition string) int {
	limit := -1
	for _, rel := range view.ListRelationships(domain.RelationshipFilter{Source: parent, Target: definition}) {
		if !rel.Type.IsAggregation() {
			continue
		}
		if m, ok := rel.Multiplicity(); ok && m.Upper != nil && (limit < 0 || *m.Upper < limit) {
			limit = *m.Upper
		}
	}
	return max(limit, 0)
}

// MoveObject sets an object's position.
func (s *Service) MoveObject(ctx context.Context, diagramID string, objID int, x, y float64) (DiagramObject, Result, error) {
	var moved DiagramObject
	res, err := s.mutate(ctx, "move_object", func(tx domain.Transaction) (string, error) {
		var err error
		moved, err = tx.UpdateDiagramObject(diagramID, objID, func(o *DiagramObject) error {
			o.X, o.Y = x, y
			return nil
		})
		return diagramID, err
	})
	return moved, res, err
}

// ResizeObject sets an object's size.
func (s *Service) ResizeObject(ctx context.Context, diagramID string, objID int, width, height float64) (DiagramObject, Result, error) {
	var resized DiagramObject
	res, err := s.mutate(ctx, "resize_object", func(tx domain.Transaction) (string, error) {
		if width < 0 || height < 0 {
			return diagramID, fmt.Errorf("object size %gx%g must not be negative", width, height)
		}
		var err error
		resized, err = tx.UpdateDiagramObject(diagramID, objID, func(o *DiagramObject) error {
			o.Width, o.Height = width, height
			return nil
		})
		return diagramID, err
	})
	return resized, res, err
}

// RenamePhase rewrites phase labels across the model.
func (s *Service) RenamePhase(ctx context.Context, old, renamed string) (Result, error) {
	return s.observe(ctx, "rename_phase", func(ctx context.Context) (string, Result, error) {
		pre := s.store.ExportState()
		res, err := s.store.RenamePhase(ctx, old, renamed)
		if err != nil {
			return old, res, err
		}
		s.history.PushUndoState(pre)
		s.history.Record(s.store)
		return renamed, res, nil
	})
}

// SetActivePhase changes the phase new records are stamped with.
func (s *Service) SetActivePhase(phase string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.store.SetActivePhase(phase)
}

// ErrHistoryRestore wraps failures to restore a recorded state. An exhausted
// history is not an error; Undo and Redo report it by returning false.
var ErrHistoryRestore = errors.New("history restore failed")

// Undo restores the state before the most recent action. It reports false
// when there is nothing to undo.
func (s *Service) Undo(ctx context.Context) (bool, error) {
	return s.step(ctx, "undo", s.history.Undo)
}

// Redo reapplies the most recently undone action.
func (s *Service) Redo(ctx context.Context) (bool, error) {
	return s.step(ctx, "redo", s.history.Redo)
}

func (s *Service) step(ctx context.Context, op string, fn func(history.Source) (bool, error)) (bool, error) {
	var applied bool
	_, err := s.observe(ctx, op, func(context.Context) (string, Result, error) {
		var err error
		applied, err = fn(s.store)
		if err != nil {
			return "", Result{}, fmt.Errorf("%w: %w", ErrHistoryRestore, err)
		}
		return "", Result{}, nil
	})
	return applied, err
}

// ClearHistory drops every recorded state.
func (s *Service) ClearHistory() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.history.ClearHistory()
}

// LoadSnapshot replaces the model with snap and starts a fresh history.
func (s *Service) LoadSnapshot(ctx context.Context, snap Snapshot) error {
	_, err := s.observe(ctx, "load_snapshot", func(context.Context) (string, Result, error) {
		if err := s.store.ImportState(snap); err != nil {
			return "", Result{}, err
		}
		s.history.ClearHistory()
		return "", Result{}, nil
	})
	return err
}

// Check evaluates every registered rule against the whole model without
// changing it.
func (s *Service) Check(ctx context.Context) (Result, error) {
	return s.observe(ctx, "check", func(ctx context.Context) (string, Result, error) {
		engine := s.store.RulesEngine()
		var res Result
		err := s.store.View(ctx, func(view domain.TransactionView) error {
			var err error
			res, err = engine.Evaluate(ctx, view, nil)
			return err
		})
		return "", res, err
	})
}

// Snapshot returns a deep copy of the current model.
func (s *Service) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.store.ExportState()
}
