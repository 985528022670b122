package fsm

import (
	"testing"

	"github.com/agentoven/agent-runtime/pkg/models"
)

func machine() *Machine {
	sm := &models.StateMachine{
		States: []models.State{
			{Name: "greeting", NextStates: []string{"qualify"}},
			{Name: "qualify", NextStates: []string{"close"}},
			{Name: "close", NextStates: []string{}},
			{Name: "fallback"},
		},
		FreeStates: []string{"fallback"},
		EntryState: "greeting",
	}
	return New(sm)
}

func TestNextCandidatesUnknownCurrentReturnsFreeFirst(t *testing.T) {
	m := machine()
	got := m.NextCandidates("")
	if len(got) == 0 || got[0].Name != "fallback" {
		t.Fatalf("expected fallback first, got %+v", got)
	}
}

func TestNextCandidatesKnownCurrentUnionsFreeStates(t *testing.T) {
	m := machine()
	got := m.NextCandidates("greeting")
	names := map[string]bool{}
	for _, s := range got {
		names[s.Name] = true
	}
	if !names["qualify"] || !names["fallback"] {
		t.Fatalf("expected qualify and fallback in candidates, got %+v", got)
	}
	if len(got) != 2 {
		t.Fatalf("expected de-duplicated candidates of length 2, got %d: %+v", len(got), got)
	}
}

func TestNextCandidatesEmptyTerminalState(t *testing.T) {
	m := machine()
	got := m.NextCandidates("close")
	if len(got) != 1 || got[0].Name != "fallback" {
		t.Fatalf("expected only fallback for a terminal state, got %+v", got)
	}
}

func TestGetUnknownState(t *testing.T) {
	m := machine()
	if _, ok := m.Get("nope"); ok {
		t.Fatal("expected Get to report false for an unknown state")
	}
}

func TestValidateRejectsUnknownNextState(t *testing.T) {
	sm := &models.StateMachine{
		States: []models.State{{Name: "a", NextStates: []string{"ghost"}}},
	}
	if err := Validate(sm); err == nil {
		t.Fatal("expected validation error for unknown next_states reference")
	}
}

func TestValidateRejectsUnknownEntryState(t *testing.T) {
	sm := &models.StateMachine{
		States:     []models.State{{Name: "a"}},
		EntryState: "ghost",
	}
	if err := Validate(sm); err == nil {
		t.Fatal("expected validation error for unknown entry_state")
	}
}

func TestValidateAcceptsWellFormedMachine(t *testing.T) {
	if err := Validate((&models.StateMachine{
		States:     []models.State{{Name: "a", NextStates: []string{"b"}}, {Name: "b"}},
		FreeStates: []string{"b"},
		EntryState: "a",
	})); err != nil {
		t.Fatalf("unexpected validation error: %v", err)
	}
}

func TestEmptyMachine(t *testing.T) {
	m := New(nil)
	if !m.Empty() {
		t.Fatal("expected nil state machine to be empty")
	}
	if got := m.NextCandidates(""); len(got) != 0 {
		t.Fatalf("expected no candidates from an empty machine, got %+v", got)
	}
}
