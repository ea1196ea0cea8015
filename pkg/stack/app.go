// © 2025 Platform Engineering Labs Inc.
//
// SPDX-License-Identifier: FSL-1.1-ALv2

// Package stack models deployable units and the bridge that wires
// cross-unit references through named exports and imports.
package stack

import (
	"fmt"
	"sync"

	"github.com/segmentio/ksuid"

	"github.com/platform-engineering-labs/tessera/pkg/document"
	"github.com/platform-engineering-labs/tessera/pkg/token"
)

// App is the root of one build session. It owns the token registry, the
// stacks and the export dedup table. Independent sessions never share
// state: create a fresh App per build.
type App struct {
	id     string
	tokens *token.Registry

	mu     sync.Mutex
	stacks []*Stack
	byName map[string]*Stack
}

func NewApp() *App {
	return &App{
		id:     ksuid.New().String(),
		tokens: token.NewRegistry(),
		byName: make(map[string]*Stack),
	}
}

func (a *App) ID() string { return a.id }

// Tokens returns the session's token registry.
func (a *App) Tokens() *token.Registry { return a.tokens }

// NewStack creates a deployable unit. Unit names are unique within a
// session.
func (a *App) NewStack(name string) (*Stack, error) {
	if name == "" {
		return nil, fmt.Errorf("stack name must not be empty")
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	if _, exists := a.byName[name]; exists {
		return nil, fmt.Errorf("stack %q already exists", name)
	}
	s := &Stack{
		app:         a,
		name:        name,
		byID:        make(map[string]*Resource),
		exportByKey: make(map[string]*Export),
		deps:        make(map[string]struct{}),
	}
	a.stacks = append(a.stacks, s)
	a.byName[name] = s
	return s, nil
}

// Stacks returns the session's stacks in creation order.
func (a *App) Stacks() []*Stack {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make([]*Stack, len(a.stacks))
	copy(out, a.stacks)
	return out
}

func (a *App) Stack(name string) *Stack {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.byName[name]
}

// UnitDependencies returns the names of the units that must be published
// before the named unit. Consumed by an external deployment
// orchestrator.
func (a *App) UnitDependencies(name string) []string {
	s := a.Stack(name)
	if s == nil {
		return nil
	}
	return s.Dependencies()
}

// CrossUnitToken returns a token for a value produced by one unit and
// consumed anywhere. Resolved inside the producing unit it renders in
// place; resolved in any other unit it routes through the export/import
// bridge.
func (a *App) CrossUnitToken(producing *Stack, v any, hint string) *token.Token {
	return a.tokens.New(func(ctx token.ResolveContext) (any, error) {
		unit := ctx.Unit()
		if unit == "" || unit == producing.name {
			return ctx.ResolveUnder(producing.name, v)
		}
		consuming := a.Stack(unit)
		if consuming == nil {
			return nil, fmt.Errorf("unknown deployable unit %q", unit)
		}
		return a.bridgeValue(ctx, consuming, producing, v, hint)
	}, hint)
}

// bridgeValue is the cross-unit reference bridge. The value is resolved
// in the producing unit, must come out as a stable scalar-ish leaf, and
// is then exported under a content-addressed name; the consuming unit
// gets an import expression and an ordering dependency on the producing
// unit. Export allocation is memoized by (unit, value), so repeated
// bridging of the same logical reference reuses one export record.
func (a *App) bridgeValue(ctx token.ResolveContext, consuming, producing *Stack, v any, hint string) (any, error) {
	resolved, err := ctx.ResolveUnder(producing.name, v)
	if err != nil {
		return nil, err
	}
	if !exportable(resolved) {
		return nil, &UnsupportedCrossUnitValueError{
			Producing: producing.name,
			Consuming: consuming.name,
			Hint:      hint,
			Value:     resolved,
		}
	}

	key, err := document.Canonical(resolved)
	if err != nil {
		return nil, err
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	exp, ok := producing.exportByKey[string(key)]
	if !ok {
		digest, err := document.Hash(resolved)
		if err != nil {
			return nil, err
		}
		exp = &Export{
			Name:  fmt.Sprintf("%s-export-%s", producing.name, digest[:12]),
			Value: resolved,
		}
		producing.exportByKey[string(key)] = exp
		producing.exports = append(producing.exports, exp)
	}

	consuming.deps[producing.name] = struct{}{}

	return map[string]any{"ImportFrom": producing.name + ":" + exp.Name}, nil
}

// exportable reports whether a resolved value is supported as a
// cross-unit export: a plain scalar, or a single-key reference
// expression over a scalar. Arbitrary structured trees are not.
func exportable(v any) bool {
	if document.IsScalar(v) {
		return true
	}
	m, ok := v.(map[string]any)
	if !ok || len(m) != 1 {
		return false
	}
	for k, inner := range m {
		if k != "Ref" && k != "Attr" {
			return false
		}
		if !document.IsScalar(inner) {
			return false
		}
	}
	return true
}
