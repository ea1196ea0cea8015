// © 2025 Platform Engineering Labs Inc.
//
// SPDX-License-Identifier: FSL-1.1-ALv2

package stack

import (
	"fmt"

	"github.com/platform-engineering-labs/tessera/pkg/token"
)

// Resource is an addressable entity inside a deployable unit. Its
// identity and attributes are not known until deploy time, so references
// to them are tokens.
type Resource struct {
	stack     *Stack
	logicalID string
	typ       string
	props     map[string]any

	// references memoizes one token per attribute.
	references map[string]*token.Token
}

func (r *Resource) LogicalID() string { return r.logicalID }
func (r *Resource) Type() string      { return r.typ }
func (r *Resource) Stack() *Stack     { return r.stack }

// Properties returns the live property tree. Mutations are visible to
// the next render.
func (r *Resource) Properties() map[string]any {
	return r.props
}

// ReplaceProperties swaps the whole property tree, keeping the map
// identity other holders may have captured.
func (r *Resource) ReplaceProperties(props map[string]any) {
	r.stack.app.mu.Lock()
	defer r.stack.app.mu.Unlock()

	for k := range r.props {
		delete(r.props, k)
	}
	for k, v := range props {
		r.props[k] = v
	}
}

func (r *Resource) SetProperty(key string, v any) {
	r.stack.app.mu.Lock()
	defer r.stack.app.mu.Unlock()
	r.props[key] = v
}

// AppendProperty appends an item to a sequence-valued property, creating
// the sequence if absent.
func (r *Resource) AppendProperty(key string, item any) {
	r.stack.app.mu.Lock()
	defer r.stack.app.mu.Unlock()

	existing, _ := r.props[key].([]any)
	r.props[key] = append(existing, item)
}

// Ref returns the token for the resource's identity attribute.
func (r *Resource) Ref() *token.Token {
	return r.reference("Ref")
}

// Attr returns the token for a named attribute of the resource.
func (r *Resource) Attr(name string) *token.Token {
	return r.reference(name)
}

func (r *Resource) reference(attr string) *token.Token {
	r.stack.app.mu.Lock()
	if t, ok := r.references[attr]; ok {
		r.stack.app.mu.Unlock()
		return t
	}
	r.stack.app.mu.Unlock()

	hint := fmt.Sprintf("%s/%s#%s", r.stack.name, r.logicalID, attr)
	t := r.stack.app.tokens.New(func(ctx token.ResolveContext) (any, error) {
		unit := ctx.Unit()
		if unit == "" || unit == r.stack.name {
			return r.localForm(attr), nil
		}
		consuming := r.stack.app.Stack(unit)
		if consuming == nil {
			return nil, fmt.Errorf("unknown deployable unit %q", unit)
		}
		return r.stack.app.bridgeValue(ctx, consuming, r.stack, r.localForm(attr), hint)
	}, hint)

	r.stack.app.mu.Lock()
	r.references[attr] = t
	r.stack.app.mu.Unlock()
	return t
}

// localForm is the in-unit rendering of a reference: a symbolic
// expression the provider substitutes at deploy time.
func (r *Resource) localForm(attr string) any {
	if attr == "Ref" {
		return map[string]any{"Ref": r.logicalID}
	}
	return map[string]any{"Attr": fmt.Sprintf("%s.%s", r.logicalID, attr)}
}
