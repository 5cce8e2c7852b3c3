// Package history keeps bounded undo and redo stacks of model snapshots.
package history

import (
	"fmt"
	"io"
	"log/slog"
	"sync"

	"modelcore/pkg/domain"
)

// DefaultCapacity bounds each stack when no capacity is configured.
const DefaultCapacity = 20

// Source is the live model the manager restores states into.
type Source interface {
	ExportState() domain.Snapshot
	ImportState(domain.Snapshot) error
}

type entry struct {
	state domain.Snapshot
	fp    []byte
}

// Manager records snapshots and moves between them. It is safe for concurrent
// use, although callers normally serialize whole actions themselves.
type Manager struct {
	mu         sync.Mutex
	capacity   int
	strategy   Strategy
	equivalent Equivalence
	logger     *slog.Logger

	undo []entry
	redo []entry

	runBase   *domain.Snapshot
	runLength int
}

// Option configures a Manager.
type Option func(*Manager)

// WithCapacity bounds both stacks. Values below one keep the default.
func WithCapacity(n int) Option {
	return func(m *Manager) {
		if n > 0 {
			m.capacity = n
		}
	}
}

// WithStrategy selects the deduplication strategy.
func WithStrategy(s Strategy) Option {
	return func(m *Manager) {
		if _, ok := strategyNames[s]; ok {
			m.strategy = s
		}
	}
}

// WithEquivalence replaces the logical-state predicate.
func WithEquivalence(eq Equivalence) Option {
	return func(m *Manager) {
		if eq != nil {
			m.equivalent = eq
		}
	}
}

// WithLogger routes debug output to logger.
func WithLogger(logger *slog.Logger) Option {
	return func(m *Manager) {
		if logger != nil {
			m.logger = logger
		}
	}
}

// NewManager constructs an empty history.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		capacity:   DefaultCapacity,
		strategy:   DefaultStrategy,
		equivalent: PositionInsensitive,
		logger:     slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Strategy reports the active deduplication strategy.
func (m *Manager) Strategy() Strategy { return m.strategy }

// RunLength reports how many equivalent pushes the current run has absorbed.
// Only CountedRun maintains it.
func (m *Manager) RunLength() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.runLength
}

// Depth reports the sizes of the undo and redo stacks.
func (m *Manager) Depth() (undo, redo int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.undo), len(m.redo)
}

// PushUndoState records state on the undo stack. It returns false when the
// stack was left untouched because state duplicates the top entry exactly.
// Any accepted push clears the redo stack.
func (m *Manager) PushUndoState(state domain.Snapshot) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.pushLocked(state, m.capacity)
}

// Record pushes the current state of src. A recorded live state is the base
// undo steps away from, not a step itself, so the stack keeps one entry more
// than its capacity and capacity recorded actions stay fully undoable.
func (m *Manager) Record(src Source) bool {
	state := src.ExportState()
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.pushLocked(state, m.capacity+1)
}

func (m *Manager) pushLocked(state domain.Snapshot, limit int) bool {
	state = state.Clone()
	fp := fingerprint(state)
	if len(m.undo) == 0 {
		m.undo = append(m.undo, entry{state: state, fp: fp})
	} else {
		if sameFingerprint(m.undo[len(m.undo)-1].fp, fp) {
			return false
		}
		m.push(state, fp)
	}
	if len(m.undo) > limit {
		m.undo = m.undo[len(m.undo)-limit:]
	}
	m.redo = nil
	m.logger.Debug("undo state recorded", "strategy", m.strategy.String(), "undo", len(m.undo))
	return true
}

// Undo restores the most recent recorded state that differs from the live
// state. The live state moves to the redo stack. It returns false when there
// is nothing to undo.
func (m *Manager) Undo(src Source) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	ok, err := m.step(src, &m.undo, &m.redo)
	if ok {
		m.logger.Debug("undo applied", "undo", len(m.undo), "redo", len(m.redo))
	}
	return ok, err
}

// Redo reapplies the most recently undone state.
func (m *Manager) Redo(src Source) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	ok, err := m.step(src, &m.redo, &m.undo)
	if ok {
		m.logger.Debug("redo applied", "undo", len(m.undo), "redo", len(m.redo))
	}
	return ok, err
}

// step pops from one stack into the live model and pushes the live state on
// the other. Entries identical to the live state are discarded first so the
// call never silently does nothing while history remains.
func (m *Manager) step(src Source, from, to *[]entry) (bool, error) {
	current := src.ExportState()
	currentFP := fingerprint(current)
	for len(*from) > 0 && sameFingerprint((*from)[len(*from)-1].fp, currentFP) {
		*from = (*from)[:len(*from)-1]
	}
	if len(*from) == 0 {
		return false, nil
	}
	target := (*from)[len(*from)-1]
	if err := src.ImportState(target.state.Clone()); err != nil {
		return false, fmt.Errorf("restore snapshot: %w", err)
	}
	*from = (*from)[:len(*from)-1]
	*to = append(*to, entry{state: current, fp: currentFP})
	if len(*to) > m.capacity {
		*to = (*to)[len(*to)-m.capacity:]
	}
	m.runBase = nil
	m.runLength = 0
	return true, nil
}

// ClearHistory empties both stacks.
func (m *Manager) ClearHistory() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.undo = nil
	m.redo = nil
	m.runBase = nil
	m.runLength = 0
}
