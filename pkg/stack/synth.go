// © 2025 Platform Engineering Labs Inc.
//
// SPDX-License-Identifier: FSL-1.1-ALv2

package stack

import (
	"fmt"
	"sync"

	"github.com/sourcegraph/conc"

	"github.com/platform-engineering-labs/tessera/pkg/document"
	"github.com/platform-engineering-labs/tessera/pkg/resolve"
)

// SynthOptions configures a render of the whole session.
type SynthOptions struct {
	// DropEmpty drops mapping entries whose resolved value is empty.
	DropEmpty bool

	// Parallel renders independent stacks concurrently. The export table
	// stays the single point of truth: allocation is serialized behind
	// the session mutex, and output ordering is canonical either way.
	Parallel bool
}

// RenderedStack is the finished, token-free document of one unit plus
// its ordering dependencies.
type RenderedStack struct {
	Name         string
	Template     map[string]any
	JSON         []byte
	Dependencies []string
}

// Assembly is the output of one render pass over every stack.
type Assembly struct {
	order  []string
	byName map[string]*RenderedStack
}

func (a *Assembly) Stacks() []*RenderedStack {
	out := make([]*RenderedStack, 0, len(a.order))
	for _, name := range a.order {
		out = append(out, a.byName[name])
	}
	return out
}

func (a *Assembly) Stack(name string) *RenderedStack {
	return a.byName[name]
}

// Synth resolves every resource property tree and assembles one document
// per stack. Rendering the same session twice yields byte-identical
// documents.
func (app *App) Synth(opts SynthOptions) (*Assembly, error) {
	resolver := resolve.New(app.tokens)
	stacks := app.Stacks()

	// Phase one: resolve resource trees. Cross-unit references observed
	// here register exports and dependency edges on the session.
	resolved := make([]map[string]any, len(stacks))
	if opts.Parallel {
		var wg conc.WaitGroup
		var mu sync.Mutex
		var firstErr error
		for i, s := range stacks {
			i, s := i, s
			wg.Go(func() {
				out, err := renderResources(resolver, s, opts)
				mu.Lock()
				defer mu.Unlock()
				if err != nil && firstErr == nil {
					firstErr = err
					return
				}
				resolved[i] = out
			})
		}
		wg.Wait()
		if firstErr != nil {
			return nil, firstErr
		}
	} else {
		for i, s := range stacks {
			out, err := renderResources(resolver, s, opts)
			if err != nil {
				return nil, err
			}
			resolved[i] = out
		}
	}

	// Phase two: assemble documents. Exports allocated during phase one
	// are final by now, whichever stack triggered them.
	assembly := &Assembly{byName: make(map[string]*RenderedStack, len(stacks))}
	for i, s := range stacks {
		template := map[string]any{"Resources": resolved[i]}

		exports := s.Exports()
		if len(exports) > 0 {
			outputs := make([]any, 0, len(exports))
			for _, exp := range exports {
				outputs = append(outputs, map[string]any{
					"ExportName": exp.Name,
					"Value":      exp.Value,
				})
			}
			template["Outputs"] = outputs
		}

		raw, err := document.Marshal(template)
		if err != nil {
			return nil, fmt.Errorf("failed to serialize stack %q: %w", s.name, err)
		}

		assembly.order = append(assembly.order, s.name)
		assembly.byName[s.name] = &RenderedStack{
			Name:         s.name,
			Template:     template,
			JSON:         raw,
			Dependencies: s.Dependencies(),
		}
	}
	return assembly, nil
}

func renderResources(resolver *resolve.Resolver, s *Stack, opts SynthOptions) (map[string]any, error) {
	tree := make(map[string]any)
	for _, r := range s.Resources() {
		tree[r.logicalID] = map[string]any{
			"Type":       r.typ,
			"Properties": r.props,
		}
	}

	out, err := resolver.Resolve(tree, resolve.Options{Unit: s.name, DropEmpty: opts.DropEmpty})
	if err != nil {
		return nil, fmt.Errorf("failed to render stack %q: %w", s.name, err)
	}
	return out.(map[string]any), nil
}
