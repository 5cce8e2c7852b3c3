package history

import (
	"fmt"
	"strings"

	"modelcore/pkg/domain"
)

// Strategy selects how consecutive pushes of the same logical state collapse.
type Strategy int

const (
	// AppendOnly overwrites the top only when the two entries below the new
	// state already share its logical state.
	AppendOnly Strategy = iota + 1
	// RunCompression keeps the first and the latest state of a run.
	RunCompression
	// CountedRun keeps the first and latest state of a run and counts its length.
	CountedRun
	// TripleCollapse appends unconditionally and drops the middle of three
	// equivalent entries.
	TripleCollapse
)

// DefaultStrategy is used when no strategy is configured.
const DefaultStrategy = RunCompression

var strategyNames = map[Strategy]string{
	AppendOnly:     "append-only",
	RunCompression: "run-compression",
	CountedRun:     "counted-run",
	TripleCollapse: "triple-collapse",
}

func (s Strategy) String() string {
	if name, ok := strategyNames[s]; ok {
		return name
	}
	return fmt.Sprintf("strategy(%d)", int(s))
}

// ParseStrategy resolves a configured strategy name. The short aliases v1..v4
// are accepted as well.
func ParseStrategy(raw string) (Strategy, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "":
		return DefaultStrategy, nil
	case "append-only", "v1":
		return AppendOnly, nil
	case "run-compression", "v2":
		return RunCompression, nil
	case "counted-run", "v3":
		return CountedRun, nil
	case "triple-collapse", "v4":
		return TripleCollapse, nil
	}
	return 0, fmt.Errorf("unknown history strategy %q", raw)
}

// push applies the strategy to a non-empty undo stack. Exact duplicates of
// the top were already rejected by the caller.
func (m *Manager) push(state domain.Snapshot, fp []byte) {
	top := len(m.undo) - 1
	entry := entry{state: state, fp: fp}
	sameAsTop := m.equivalent(m.undo[top].state, state)

	switch m.strategy {
	case AppendOnly:
		if sameAsTop && top >= 1 && m.equivalent(m.undo[top-1].state, state) {
			m.undo[top] = entry
			return
		}
		m.undo = append(m.undo, entry)
	case CountedRun:
		if !sameAsTop {
			m.runLength = 0
			m.undo = append(m.undo, entry)
			return
		}
		if m.runLength > 0 {
			m.undo[top] = entry
		} else {
			m.undo = append(m.undo, entry)
		}
		m.runLength++
	case TripleCollapse:
		m.undo = append(m.undo, entry)
		n := len(m.undo)
		if n >= 3 && sameAsTop && m.equivalent(m.undo[n-3].state, state) {
			m.undo = append(m.undo[:n-2], m.undo[n-1])
		}
	default:
		if !sameAsTop {
			m.runBase = nil
			m.undo = append(m.undo, entry)
			return
		}
		if m.runBase != nil && m.equivalent(*m.runBase, state) {
			m.undo[top] = entry
			return
		}
		m.undo = append(m.undo, entry)
		base := state
		m.runBase = &base
	}
}
