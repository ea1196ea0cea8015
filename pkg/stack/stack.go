// © 2025 Platform Engineering Labs Inc.
//
// SPDX-License-Identifier: FSL-1.1-ALv2

package stack

import (
	"fmt"
	"sort"

	"github.com/platform-engineering-labs/tessera/pkg/token"
)

// Stack is a deployable unit: a named scope owning addressable resources
// and the exports already allocated against it. Unit membership of a
// resource is fixed at creation.
type Stack struct {
	app  *App
	name string

	resources []*Resource
	byID      map[string]*Resource

	exports     []*Export
	exportByKey map[string]*Export

	deps map[string]struct{}
}

// Export records one externally visible value of a unit. At most one
// export exists per distinct (unit, value) pair.
type Export struct {
	Name  string
	Value any
}

func (s *Stack) Name() string { return s.name }
func (s *Stack) App() *App    { return s.app }

// NewResource adds an addressable resource to the unit. Logical ids are
// unique within a stack.
func (s *Stack) NewResource(logicalID, resourceType string, props map[string]any) (*Resource, error) {
	if logicalID == "" {
		return nil, fmt.Errorf("resource logical id must not be empty")
	}

	s.app.mu.Lock()
	defer s.app.mu.Unlock()

	if _, exists := s.byID[logicalID]; exists {
		return nil, fmt.Errorf("resource %q already exists in stack %q", logicalID, s.name)
	}
	if props == nil {
		props = make(map[string]any)
	}
	r := &Resource{
		stack:      s,
		logicalID:  logicalID,
		typ:        resourceType,
		props:      props,
		references: make(map[string]*token.Token),
	}
	s.resources = append(s.resources, r)
	s.byID[logicalID] = r
	return r, nil
}

// Resources returns the unit's resources in creation order.
func (s *Stack) Resources() []*Resource {
	s.app.mu.Lock()
	defer s.app.mu.Unlock()
	out := make([]*Resource, len(s.resources))
	copy(out, s.resources)
	return out
}

func (s *Stack) Resource(logicalID string) *Resource {
	s.app.mu.Lock()
	defer s.app.mu.Unlock()
	return s.byID[logicalID]
}

// Exports returns the unit's export records sorted by name.
func (s *Stack) Exports() []*Export {
	s.app.mu.Lock()
	defer s.app.mu.Unlock()
	out := make([]*Export, len(s.exports))
	copy(out, s.exports)
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Dependencies returns the sorted names of units this unit imports from.
// The unit's publication must be sequenced after all of them.
func (s *Stack) Dependencies() []string {
	s.app.mu.Lock()
	defer s.app.mu.Unlock()
	out := make([]string, 0, len(s.deps))
	for name := range s.deps {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// SameUnit reports whether two resources belong to the same deployable
// unit.
func SameUnit(a, b *Resource) bool {
	return a.Stack() == b.Stack()
}
