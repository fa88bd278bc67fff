// Package pipeline coordinates the generator, sender, and receiver roles
// that together drive one synchronization run through its four phases:
// file-list exchange, generator/transfer, redo, and statistics.
package pipeline

import "fmt"

// Phase identifies one of the four sequential stages of a run (spec.md
// 4.6). A run moves strictly forward through these; there is no going
// back to an earlier phase once it has closed.
type Phase int

const (
	// PhaseFileList covers building, exchanging, and sorting the file
	// list (pkg/flist) before any transfer decision is made.
	PhaseFileList Phase = iota
	// PhaseTransfer is the main generator/sender/receiver loop: for each
	// file in NDX order, decide an action, transfer it, and apply it.
	PhaseTransfer
	// PhaseRedo retries files whose transfer failed in a retriable way
	// (checksum mismatch or changed basis) during PhaseTransfer.
	PhaseRedo
	// PhaseStatistics finalizes and reports transfer counters. No more
	// files move once this phase begins.
	PhaseStatistics
	// PhaseDone marks a completed run; no further phase transitions are
	// permitted.
	PhaseDone
)

// String renders the phase name for logging.
func (p Phase) String() string {
	switch p {
	case PhaseFileList:
		return "file-list"
	case PhaseTransfer:
		return "transfer"
	case PhaseRedo:
		return "redo"
	case PhaseStatistics:
		return "statistics"
	case PhaseDone:
		return "done"
	default:
		return fmt.Sprintf("phase(%d)", int(p))
	}
}

// Machine tracks the current phase of a run and enforces the strict
// forward-only ordering spec.md 4.6 describes. It carries no transfer
// state of its own; Coordinator owns that.
type Machine struct {
	current Phase
}

// NewMachine returns a Machine positioned at PhaseFileList.
func NewMachine() *Machine {
	return &Machine{current: PhaseFileList}
}

// Current returns the active phase.
func (m *Machine) Current() Phase {
	return m.current
}

// Advance moves to the next phase in sequence. It reports an error if
// called after PhaseDone, or if the run has already finished.
func (m *Machine) Advance() error {
	switch m.current {
	case PhaseFileList:
		m.current = PhaseTransfer
	case PhaseTransfer:
		m.current = PhaseRedo
	case PhaseRedo:
		m.current = PhaseStatistics
	case PhaseStatistics:
		m.current = PhaseDone
	case PhaseDone:
		return fmt.Errorf("pipeline: cannot advance past %s", PhaseDone)
	default:
		return fmt.Errorf("pipeline: unknown phase %d", m.current)
	}
	return nil
}

// SkipRedo moves directly from PhaseTransfer to PhaseStatistics, for runs
// where nothing needs a retry. It is a no-op (and an error) from any
// other phase.
func (m *Machine) SkipRedo() error {
	if m.current != PhaseTransfer {
		return fmt.Errorf("pipeline: SkipRedo only valid from %s, currently %s", PhaseTransfer, m.current)
	}
	m.current = PhaseStatistics
	return nil
}
