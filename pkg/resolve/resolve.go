// © 2025 Platform Engineering Labs Inc.
//
// SPDX-License-Identifier: FSL-1.1-ALv2

// Package resolve walks value trees and substitutes every token with its
// producer's output, transitively, until the tree is token-free.
package resolve

import (
	"fmt"
	"sort"
	"strconv"

	"github.com/goccy/go-json"

	"github.com/platform-engineering-labs/tessera/pkg/document"
	"github.com/platform-engineering-labs/tessera/pkg/token"
)

// Omit is the explicit undefined marker. With Options.DropEmpty set,
// mapping entries resolving to Omit (or to an empty mapping/sequence)
// are dropped; otherwise Omit renders as null.
var Omit = omitMarker{}

type omitMarker struct{}

// Options configures one resolution pass.
type Options struct {
	// Unit is the deployable unit being rendered. Producers see it via
	// the resolve context and use it for boundary decisions.
	Unit string

	// DropEmpty drops mapping entries whose resolved value is an empty
	// mapping/sequence or the Omit marker. Default keeps them.
	DropEmpty bool
}

// Resolver performs resolution passes against one session's token
// registry.
type Resolver struct {
	reg *token.Registry
}

func New(reg *token.Registry) *Resolver {
	return &Resolver{reg: reg}
}

// Resolve renders tree into a literal tree. Traversal is depth-first and
// deterministic: mapping keys in sorted order, sequence indices in
// order. Each token's producer runs at most once per pass; its result is
// cached and itself resolved transitively.
func (r *Resolver) Resolve(tree any, opts Options) (any, error) {
	c := &pass{
		resolver:  r,
		unit:      opts.Unit,
		dropEmpty: opts.DropEmpty,
		resolving: make(map[int]bool),
		cache:     make(map[int]any),
	}
	return c.resolve(tree)
}

// pass holds the state of a single resolution pass and implements
// token.ResolveContext for the producers it invokes.
type pass struct {
	resolver  *Resolver
	unit      string
	dropEmpty bool
	resolving map[int]bool
	cache     map[int]any
	chain     []string
}

func (c *pass) Unit() string { return c.unit }

// ResolveUnder re-enters the pass under a different unit scope. The
// cycle-detection set is shared, so a producer chain that loops back
// through another unit still fails with a CycleError instead of
// recursing forever. The producer cache is not shared across scopes:
// the same token can legitimately resolve to different values in
// different units.
func (c *pass) ResolveUnder(unit string, v any) (any, error) {
	nested := &pass{
		resolver:  c.resolver,
		unit:      unit,
		dropEmpty: c.dropEmpty,
		resolving: c.resolving,
		cache:     make(map[int]any),
		chain:     c.chain,
	}
	out, err := nested.resolve(v)
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (c *pass) resolve(v any) (any, error) {
	switch t := v.(type) {
	case nil, bool, int, int64, float64, json.Number, omitMarker:
		return t, nil
	case *token.Token:
		return c.resolveToken(t)
	case string:
		return c.resolveString(t)
	case map[string]any:
		return c.resolveMap(t)
	case []any:
		return c.resolveSlice(t)
	default:
		return nil, fmt.Errorf("cannot resolve value of type %T", v)
	}
}

func (c *pass) resolveToken(t *token.Token) (any, error) {
	if cached, ok := c.cache[t.ID()]; ok {
		return cached, nil
	}
	if c.resolving[t.ID()] {
		return nil, &CycleError{Chain: append(append([]string{}, c.chain...), t.Hint())}
	}

	c.resolving[t.ID()] = true
	c.chain = append(c.chain, t.Hint())
	defer func() {
		delete(c.resolving, t.ID())
		c.chain = c.chain[:len(c.chain)-1]
	}()

	produced, err := t.Produce(c)
	if err != nil {
		return nil, err
	}

	// A producer may return a value that itself contains tokens.
	resolved, err := c.resolve(produced)
	if err != nil {
		return nil, err
	}

	c.cache[t.ID()] = resolved
	return resolved, nil
}

func (c *pass) resolveString(s string) (any, error) {
	segments := c.resolver.reg.Scan(s)
	if len(segments) == 1 && segments[0].Token == nil {
		return s, nil
	}

	// A string that is exactly one marker substitutes the whole value,
	// preserving its type.
	if len(segments) == 1 {
		return c.resolveToken(segments[0].Token)
	}

	out := ""
	for _, seg := range segments {
		if seg.Token == nil {
			out += seg.Literal
			continue
		}
		resolved, err := c.resolveToken(seg.Token)
		if err != nil {
			return nil, err
		}
		frag, err := stringify(resolved)
		if err != nil {
			return nil, fmt.Errorf("cannot embed %s in string %q: %w", seg.Token.Hint(), s, err)
		}
		out += frag
	}
	return out, nil
}

func (c *pass) resolveMap(m map[string]any) (any, error) {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	out := make(map[string]any, len(m))
	for _, k := range keys {
		resolved, err := c.resolve(m[k])
		if err != nil {
			return nil, err
		}
		if _, omitted := resolved.(omitMarker); omitted {
			if c.dropEmpty {
				continue
			}
			out[k] = nil
			continue
		}
		if c.dropEmpty && document.IsEmpty(resolved) {
			continue
		}
		out[k] = resolved
	}
	return out, nil
}

func (c *pass) resolveSlice(s []any) (any, error) {
	out := make([]any, 0, len(s))
	for _, item := range s {
		resolved, err := c.resolve(item)
		if err != nil {
			return nil, err
		}
		if _, omitted := resolved.(omitMarker); omitted {
			resolved = nil
		}
		out = append(out, resolved)
	}
	return out, nil
}

func stringify(v any) (string, error) {
	switch t := v.(type) {
	case string:
		return t, nil
	case bool:
		return strconv.FormatBool(t), nil
	case int:
		return strconv.Itoa(t), nil
	case int64:
		return strconv.FormatInt(t, 10), nil
	case float64:
		return strconv.FormatFloat(t, 'g', -1, 64), nil
	case json.Number:
		return t.String(), nil
	default:
		return "", fmt.Errorf("value of type %T is not a scalar", v)
	}
}
