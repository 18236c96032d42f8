package engine

import (
	"sync"

	"tablecore/pkg/tabular"
)

// SelectionState holds the process-wide display selection: which load cases,
// combinations and patterns display reads include, and which result
// categories. It is mutated independently of staging and forwarded verbatim
// to the model store with every display read.
type SelectionState struct {
	mu  sync.RWMutex
	sel tabular.Selection
}

// NewSelectionState constructs an empty selection, meaning no narrowing.
func NewSelectionState() *SelectionState {
	return &SelectionState{}
}

// SetCases selects load cases for display reads. Requires at least one name.
func (s *SelectionState) SetCases(names []string) error {
	if len(names) == 0 {
		return tabular.EmptySelectionError{Kind: "load cases"}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sel.Cases = append([]string(nil), names...)
	return nil
}

// SetCombinations selects load combinations for display reads.
func (s *SelectionState) SetCombinations(names []string) error {
	if len(names) == 0 {
		return tabular.EmptySelectionError{Kind: "load combinations"}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sel.Combinations = append([]string(nil), names...)
	return nil
}

// SetPatterns selects load patterns for display reads.
func (s *SelectionState) SetPatterns(names []string) error {
	if len(names) == 0 {
		return tabular.EmptySelectionError{Kind: "load patterns"}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sel.Patterns = append([]string(nil), names...)
	return nil
}

// SetOutputOptions replaces the result-category configuration after
// validating internal range consistency.
func (s *SelectionState) SetOutputOptions(opts tabular.OutputOptions) error {
	if err := opts.Validate(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sel.Options = opts
	return nil
}

// Current returns a copy of the selection as it stands.
func (s *SelectionState) Current() tabular.Selection {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.sel.Clone()
}
