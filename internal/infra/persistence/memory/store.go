// Package memory provides the in-memory model repository: the authoritative
// element, relationship and diagram collections with transactional mutation.
package memory

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"modelcore/pkg/domain"
)

// Compile-time contract assertions ensuring memory.Store adheres to the domain persistence interfaces.
var _ domain.PersistentStore = (*Store)(nil)

type (
	// Element aliases domain.Element for in-memory persistence operations.
	Element = domain.Element
	// Relationship aliases domain.Relationship.
	Relationship = domain.Relationship
	// Diagram aliases domain.Diagram.
	Diagram = domain.Diagram
	// Snapshot aliases domain.Snapshot used for export and import.
	Snapshot = domain.Snapshot
	// Change aliases domain.Change captured in transactions.
	Change = domain.Change
	// Result aliases domain.Result summarizing rule evaluation.
	Result = domain.Result
	// RulesEngine aliases domain.RulesEngine used to evaluate rules.
	RulesEngine = domain.RulesEngine
	// Transaction aliases domain.Transaction representing a mutable unit of work.
	Transaction = domain.Transaction
	// TransactionView aliases domain.TransactionView providing read-only state.
	TransactionView = domain.TransactionView
)

// RootPackageName names the package created for an empty store.
const RootPackageName = "Root"

// Store provides an in-memory transactional model repository.
type Store struct {
	mu     sync.RWMutex
	state  memoryState
	engine *RulesEngine
	nowFn  func() time.Time
	idFn   func() string
	author string
	scope  domain.PhaseScope
	frozen map[string]struct{}
}

// Option customizes a Store at construction time.
type Option func(*Store)

// WithClock overrides the time source used for audit fields.
func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		if now != nil {
			s.nowFn = now
		}
	}
}

// WithIDGenerator overrides identifier generation.
func WithIDGenerator(fn func() string) Option {
	return func(s *Store) {
		if fn != nil {
			s.idFn = fn
		}
	}
}

// WithAuthor sets the author stamped onto new and modified records.
func WithAuthor(author string) Option {
	return func(s *Store) { s.author = author }
}

// NewStore constructs an in-memory store backed by the provided rules engine.
// The store starts with a single root package.
func NewStore(engine *RulesEngine, opts ...Option) *Store {
	if engine == nil {
		engine = domain.NewRulesEngine()
	}
	s := &Store{
		state:  newMemoryState(),
		engine: engine,
		nowFn:  func() time.Time { return time.Now().UTC() },
		idFn:   uuid.NewString,
		frozen: make(map[string]struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.state.rootPackage = s.ensureRoot(&s.state)
	return s
}

func (s *Store) newID() string {
	return s.idFn()
}

func (s *Store) ensureRoot(state *memoryState) string {
	if state.rootPackage != "" {
		return state.rootPackage
	}
	now := s.nowFn()
	root := Element{
		ID:    s.newID(),
		Type:  domain.ElementPackage,
		Name:  RootPackageName,
		Audit: domain.Audit{Author: s.author, CreatedAt: now, ModifiedBy: s.author, ModifiedAt: now},
	}
	state.putElement(root)
	return root.ID
}

// ExportState clones the current store state for external persistence.
func (s *Store) ExportState() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return snapshotFromMemoryState(s.state)
}

// ImportState replaces the store state with the provided snapshot. Snapshots
// failing referential integrity are rejected and the store is left unchanged.
// A snapshot without a root package gains one.
func (s *Store) ImportState(snapshot Snapshot) error {
	migrated := migrateSnapshot(snapshot)
	if err := migrated.Validate(); err != nil {
		return fmt.Errorf("import state: %w", err)
	}
	state, err := memoryStateFromSnapshot(migrated)
	if err != nil {
		return fmt.Errorf("import state: %w", err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	state.rootPackage = s.ensureRoot(&state)
	s.state = state
	return nil
}

// RulesEngine exposes the currently configured engine.
func (s *Store) RulesEngine() *RulesEngine {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.engine
}

// NowFunc returns the time provider used by the in-memory store.
func (s *Store) NowFunc() func() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.nowFn
}

// SetAuthor changes the author stamped onto subsequent mutations.
func (s *Store) SetAuthor(author string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.author = author
}

// PhaseScope returns the active lifecycle visibility settings.
func (s *Store) PhaseScope() domain.PhaseScope {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.scope
}

// SetPhaseScope replaces the lifecycle visibility settings. New records are
// tagged with scope.Active.
func (s *Store) SetPhaseScope(scope domain.PhaseScope) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.scope = scope
}

// SetActivePhase changes only the active phase.
func (s *Store) SetActivePhase(phase string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.scope.Active = phase
}

// FreezeDiagram marks a diagram immutable; deletes against it fail.
func (s *Store) FreezeDiagram(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.frozen[id] = struct{}{}
}

// RunInTransaction executes fn within a transactional copy of the store state.
// Nothing is committed when fn fails or a blocking rule violation is found.
func (s *Store) RunInTransaction(ctx context.Context, fn func(tx Transaction) error) (Result, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx := s.newTransaction(s.state.clone())

	if err := fn(tx); err != nil {
		return Result{}, err
	}

	var result Result
	if s.engine != nil {
		res, err := s.engine.Evaluate(ctx, tx.transactionView, tx.changes)
		if err != nil {
			return Result{}, err
		}
		result = res
		if res.HasBlocking() {
			return res, domain.RuleViolationError{Result: res}
		}
	}

	s.state = tx.state
	return result, nil
}

func (s *Store) newTransaction(state memoryState) *transaction {
	// changes stays non-nil even when fn changes nothing; rules treat nil as
	// a whole-model evaluation.
	tx := &transaction{
		store:   s,
		state:   state,
		now:     s.nowFn(),
		author:  s.author,
		scope:   s.scope,
		frozen:  s.frozen,
		changes: []Change{},
	}
	tx.transactionView = transactionView{state: &tx.state}
	return tx
}

// View executes fn against a read-only snapshot of the store state.
func (s *Store) View(_ context.Context, fn func(TransactionView) error) error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	snapshot := s.state.clone()
	return fn(transactionView{state: &snapshot})
}

// RenamePhase rewrites every record tagged old to new, including diagram
// objects and connections, and follows the rename in the phase scope.
func (s *Store) RenamePhase(ctx context.Context, old, renamed string) (Result, error) {
	if old == renamed {
		return Result{}, nil
	}
	res, err := s.RunInTransaction(ctx, func(tx Transaction) error {
		return tx.(*transaction).renamePhase(old, renamed)
	})
	if err != nil {
		return res, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.scope.Active == old {
		s.scope.Active = renamed
	}
	reuse := slices.Clone(s.scope.Reuse)
	for i, p := range reuse {
		if p == old {
			reuse[i] = renamed
		}
	}
	s.scope.Reuse = reuse
	return res, nil
}

// GetElement returns an element by id.
func (s *Store) GetElement(id string) (Element, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return transactionView{state: &s.state}.FindElement(id)
}

// ListElements returns every element in insertion order.
func (s *Store) ListElements() []Element {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return transactionView{state: &s.state}.ListElements()
}

// ListElementsOfType returns elements of type t in insertion order.
func (s *Store) ListElementsOfType(t domain.ElementType) []Element {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Element, 0)
	for _, id := range s.state.elementOrder {
		if e := s.state.elements[id]; e.Type == t {
			out = append(out, domain.CloneElement(e))
		}
	}
	return out
}

// ListRelationships returns relationships matching filter in insertion order.
func (s *Store) ListRelationships(filter domain.RelationshipFilter) []Relationship {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return transactionView{state: &s.state}.ListRelationships(filter)
}

// GetRelationship returns a relationship by id.
func (s *Store) GetRelationship(id string) (Relationship, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return transactionView{state: &s.state}.FindRelationship(id)
}

// GetDiagram returns a diagram by id.
func (s *Store) GetDiagram(id string) (Diagram, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return transactionView{state: &s.state}.FindDiagram(id)
}

// ListDiagrams returns every diagram in insertion order.
func (s *Store) ListDiagrams() []Diagram {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return transactionView{state: &s.state}.ListDiagrams()
}

// LinkedDiagram returns the diagram implementing elementID.
func (s *Store) LinkedDiagram(elementID string) (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.state.links[elementID]
	return id, ok
}

// RootPackage returns the id of the root package.
func (s *Store) RootPackage() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state.rootPackage
}

func (s *Store) linkedDiagramLocked(elementID string) *Diagram {
	id, ok := s.state.links[elementID]
	if !ok {
		return nil
	}
	d, ok := s.state.diagrams[id]
	if !ok {
		return nil
	}
	return &d
}

// VisibleElements returns elements visible under scope.
func (s *Store) VisibleElements(scope domain.PhaseScope) []Element {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Element, 0, len(s.state.elementOrder))
	for _, id := range s.state.elementOrder {
		e := s.state.elements[id]
		if scope.ElementVisible(e, s.linkedDiagramLocked(id)) {
			out = append(out, domain.CloneElement(e))
		}
	}
	return out
}

// VisibleDiagrams returns diagrams visible under scope.
func (s *Store) VisibleDiagrams(scope domain.PhaseScope) []Diagram {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Diagram, 0, len(s.state.diagramOrder))
	for _, id := range s.state.diagramOrder {
		if d := s.state.diagrams[id]; scope.DiagramVisible(d) {
			out = append(out, domain.CloneDiagram(d))
		}
	}
	return out
}

// VisibleObjects returns the objects of diagramID visible under scope.
func (s *Store) VisibleObjects(diagramID string, scope domain.PhaseScope) []domain.DiagramObject {
	s.mu.RLock()
	defer s.mu.RUnlock()
	d, ok := s.state.diagrams[diagramID]
	if !ok {
		return nil
	}
	out := make([]domain.DiagramObject, 0, len(d.Objects))
	for _, obj := range d.Objects {
		if scope.ObjectVisible(d, obj) {
			out = append(out, domain.CloneObject(obj))
		}
	}
	return out
}

// VisibleConnections returns the connections of diagramID visible under scope.
func (s *Store) VisibleConnections(diagramID string, scope domain.PhaseScope) []domain.DiagramConnection {
	s.mu.RLock()
	defer s.mu.RUnlock()
	d, ok := s.state.diagrams[diagramID]
	if !ok {
		return nil
	}
	out := make([]domain.DiagramConnection, 0, len(d.Connections))
	for _, conn := range d.Connections {
		if scope.ConnectionVisible(d, conn) {
			out = append(out, domain.CloneConnection(conn))
		}
	}
	return out
}

// ElementReadOnly reports whether the element belongs to a reused phase or product.
func (s *Store) ElementReadOnly(id string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.state.elements[id]
	if !ok {
		return false
	}
	return s.scope.ElementReadOnly(e, s.linkedDiagramLocked(id))
}

// DiagramReadOnly reports whether the diagram is frozen or reused.
func (s *Store) DiagramReadOnly(id string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if _, frozen := s.frozen[id]; frozen {
		return true
	}
	d, ok := s.state.diagrams[id]
	return ok && s.scope.DiagramReadOnly(d)
}

// QualifiedName renders the owner chain of id as "Root::Pkg::Name".
func (s *Store) QualifiedName(id string) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.state.elements[id]
	if !ok {
		return "", domain.MissingElement(id, "")
	}
	parts := []string{displayName(e)}
	seen := map[string]struct{}{id: {}}
	for owner := e.Owner; owner != ""; {
		if _, loop := seen[owner]; loop {
			break
		}
		seen[owner] = struct{}{}
		parent, ok := s.state.elements[owner]
		if !ok {
			return "", domain.MissingElement(owner, "owner")
		}
		parts = append(parts, displayName(parent))
		owner = parent.Owner
	}
	for i, j := 0, len(parts)-1; i < j; i, j = i+1, j-1 {
		parts[i], parts[j] = parts[j], parts[i]
	}
	return strings.Join(parts, "::"), nil
}

func displayName(e Element) string {
	if e.Name != "" {
		return e.Name
	}
	return e.ID
}

// Stats summarizes collection sizes.
type Stats struct {
	Elements      int `json:"elements"`
	Relationships int `json:"relationships"`
	Diagrams      int `json:"diagrams"`
	Links         int `json:"links"`
}

// Stats returns collection sizes.
func (s *Store) Stats() Stats {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return Stats{
		Elements:      len(s.state.elements),
		Relationships: len(s.state.relationships),
		Diagrams:      len(s.state.diagrams),
		Links:         len(s.state.links),
	}
}
