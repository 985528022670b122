// Package fsm implements the read-only finite-state-machine lookups used
// by the orchestrator to enumerate the states a turn may transition into.
package fsm

import "github.com/agentoven/agent-runtime/pkg/models"

// Machine wraps a models.StateMachine with O(1) name lookup.
type Machine struct {
	byName     map[string]models.State
	order      []string
	freeStates map[string]bool
	freeOrder  []string
}

// New builds a Machine from sm. sm may be nil or empty; Get and
// NextCandidates degrade gracefully in that case.
func New(sm *models.StateMachine) *Machine {
	m := &Machine{
		byName:     make(map[string]models.State),
		freeStates: make(map[string]bool),
	}
	if sm == nil {
		return m
	}
	for _, s := range sm.States {
		if _, seen := m.byName[s.Name]; seen {
			continue
		}
		m.byName[s.Name] = s
		m.order = append(m.order, s.Name)
	}
	for _, name := range sm.FreeStates {
		if _, ok := m.byName[name]; !ok {
			continue
		}
		if !m.freeStates[name] {
			m.freeStates[name] = true
			m.freeOrder = append(m.freeOrder, name)
		}
	}
	return m
}

// Get returns the named state, or false if it doesn't exist.
func (m *Machine) Get(name string) (models.State, bool) {
	s, ok := m.byName[name]
	return s, ok
}

// Empty reports whether this machine has no states at all.
func (m *Machine) Empty() bool {
	return len(m.order) == 0
}

// NextCandidates returns the ordered, de-duplicated set of states reachable
// from currentName, per SPEC_FULL.md §4.5:
//
//   - if currentName is empty or unknown: every free state first, then
//     every non-free state, both in declaration order;
//   - otherwise: the union of current.NextStates and the free states, in
//     declaration order, de-duplicated.
func (m *Machine) NextCandidates(currentName string) []models.State {
	current, ok := m.byName[currentName]
	if currentName == "" || !ok {
		return m.allStatesFreeFirst()
	}

	seen := make(map[string]bool)
	var out []models.State
	for _, name := range current.NextStates {
		if seen[name] {
			continue
		}
		if s, ok := m.byName[name]; ok {
			seen[name] = true
			out = append(out, s)
		}
	}
	for _, name := range m.freeOrder {
		if seen[name] {
			continue
		}
		seen[name] = true
		out = append(out, m.byName[name])
	}
	return out
}

func (m *Machine) allStatesFreeFirst() []models.State {
	var out []models.State
	for _, name := range m.freeOrder {
		out = append(out, m.byName[name])
	}
	for _, name := range m.order {
		if m.freeStates[name] {
			continue
		}
		out = append(out, m.byName[name])
	}
	return out
}

// Validate checks the StateMachine invariants from SPEC_FULL.md §3: every
// name referenced in next_states or free_states must exist in states, and
// entry_state (if set) must exist.
func Validate(sm *models.StateMachine) error {
	if sm == nil {
		return nil
	}
	names := make(map[string]bool, len(sm.States))
	for _, s := range sm.States {
		names[s.Name] = true
	}
	for _, s := range sm.States {
		for _, next := range s.NextStates {
			if !names[next] {
				return &InvariantError{Reason: "next_states references unknown state " + next}
			}
		}
	}
	for _, free := range sm.FreeStates {
		if !names[free] {
			return &InvariantError{Reason: "free_states references unknown state " + free}
		}
	}
	if sm.EntryState != "" && !names[sm.EntryState] {
		return &InvariantError{Reason: "entry_state references unknown state " + sm.EntryState}
	}
	return nil
}

// InvariantError reports a violated StateMachine invariant.
type InvariantError struct{ Reason string }

func (e *InvariantError) Error() string { return "fsm invariant violated: " + e.Reason }
