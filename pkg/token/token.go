// © 2025 Platform Engineering Labs Inc.
//
// SPDX-License-Identifier: FSL-1.1-ALv2

package token

import (
	"fmt"
	"regexp"
	"strconv"
	"sync"

	"github.com/segmentio/ksuid"
)

// Producer computes the concrete value a token stands in for. The result
// may itself contain further tokens; the resolver substitutes those
// transitively. A producer is invoked at most once per resolution pass.
type Producer func(ctx ResolveContext) (any, error)

// ResolveContext is what a producer sees of the resolution pass that is
// invoking it. Unit is the deployable unit currently being rendered, so
// producers can make boundary-aware decisions. ResolveUnder re-enters the
// same pass with a different unit scope, sharing its cycle-detection
// state.
type ResolveContext interface {
	Unit() string
	ResolveUnder(unit string, v any) (any, error)
}

// Token is an opaque stand-in for a value that is not known until the
// whole tree has been built. Tokens are only ever created through a
// Registry; the unexported fields make the type unforgeable from
// deserialized input.
type Token struct {
	id      int
	session string
	hint    string
	produce Producer
}

func (t *Token) ID() int { return t.id }

// Hint returns the display hint used in diagnostics, or a generated
// fallback.
func (t *Token) Hint() string {
	if t.hint != "" {
		return t.hint
	}
	return fmt.Sprintf("Token[%d]", t.id)
}

// String renders the marker form, which may be embedded inside larger
// literal strings and recovered by Registry.Scan.
func (t *Token) String() string {
	return fmt.Sprintf("${Token[%d]}", t.id)
}

func (t *Token) Produce(ctx ResolveContext) (any, error) {
	return t.produce(ctx)
}

// IsToken reports whether v is a token. The check is structural on the
// private type, so ordinary values that merely look like the marker
// encoding never match.
func IsToken(v any) bool {
	_, ok := v.(*Token)
	return ok
}

// Registry allocates tokens and owns the ordinal→token table for one
// build session. Registries are never shared across sessions.
type Registry struct {
	mu      sync.Mutex
	session string
	tokens  []*Token
}

func NewRegistry() *Registry {
	return &Registry{session: ksuid.New().String()}
}

// Session returns the registry's unique session id.
func (r *Registry) Session() string { return r.session }

// New registers producer and returns a fresh token.
func (r *Registry) New(produce Producer, hint string) *Token {
	r.mu.Lock()
	defer r.mu.Unlock()

	t := &Token{
		id:      len(r.tokens),
		session: r.session,
		hint:    hint,
		produce: produce,
	}
	r.tokens = append(r.tokens, t)
	return t
}

// Static returns a token that always produces v. Useful for testing and
// for late-bound literals.
func (r *Registry) Static(v any, hint string) *Token {
	return r.New(func(ResolveContext) (any, error) { return v, nil }, hint)
}

func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.tokens)
}

func (r *Registry) lookup(id int) *Token {
	r.mu.Lock()
	defer r.mu.Unlock()
	if id < 0 || id >= len(r.tokens) {
		return nil
	}
	return r.tokens[id]
}

var markerPattern = regexp.MustCompile(`\$\{Token\[(\d+)\]\}`)

// Segment is one piece of a scanned string: either a literal run or a
// token reference.
type Segment struct {
	Literal string
	Token   *Token
}

// Scan splits s into literal and token segments. Only ordinals present
// in this registry are honored; a marker-shaped substring that does not
// name a registered token stays literal, so serialized input cannot
// forge a token.
func (r *Registry) Scan(s string) []Segment {
	matches := markerPattern.FindAllStringSubmatchIndex(s, -1)
	if len(matches) == 0 {
		return []Segment{{Literal: s}}
	}

	var segments []Segment
	last := 0
	for _, m := range matches {
		id, err := strconv.Atoi(s[m[2]:m[3]])
		if err != nil {
			continue
		}
		t := r.lookup(id)
		if t == nil {
			continue
		}
		if m[0] > last {
			segments = append(segments, Segment{Literal: s[last:m[0]]})
		}
		segments = append(segments, Segment{Token: t})
		last = m[1]
	}
	if last < len(s) {
		segments = append(segments, Segment{Literal: s[last:]})
	}
	if segments == nil {
		segments = []Segment{{Literal: s}}
	}
	return segments
}

// ContainsMarker reports whether s contains at least one marker that
// resolves to a token in this registry.
func (r *Registry) ContainsMarker(s string) bool {
	segs := r.Scan(s)
	for _, seg := range segs {
		if seg.Token != nil {
			return true
		}
	}
	return false
}
