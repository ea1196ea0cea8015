// © 2025 Platform Engineering Labs Inc.
//
// SPDX-License-Identifier: FSL-1.1-ALv2

package connect

import (
	"github.com/platform-engineering-labs/tessera/pkg/stack"
)

// Member is anything that can belong to a peer set: a writable local
// group, a foreign group known only by id, or another peer set.
type Member interface {
	memberKey() string
}

// Endpoint is a concrete connection endpoint (a group), as opposed to a
// composite peer set.
type Endpoint interface {
	Member
	// peerID is the identity attribute referenced by rules on the other
	// side: a token for local groups, a literal for foreign ones.
	peerID() any
}

// Group is a locally owned, writable rule container attached to a
// resource. Ingress and egress rules land in the resource's property
// tree and render with the resource's unit.
type Group struct {
	resource *stack.Resource

	// allowAllOutbound marks groups whose outbound traffic is already
	// unrestricted; individual egress rules would be redundant.
	allowAllOutbound bool
}

func NewGroup(resource *stack.Resource, allowAllOutbound bool) *Group {
	return &Group{resource: resource, allowAllOutbound: allowAllOutbound}
}

func (g *Group) Resource() *stack.Resource { return g.resource }

func (g *Group) memberKey() string {
	return "group:" + g.resource.Stack().Name() + "/" + g.resource.LogicalID()
}

func (g *Group) peerID() any {
	return g.resource.Ref()
}

// OutboundPolicy is what we know about a foreign group's own egress
// filtering.
type OutboundPolicy int

const (
	OutboundUnknown OutboundPolicy = iota
	OutboundAllowAll
	OutboundRestricted
)

// ForeignGroup is a peer that is not owned by this session: its rule
// containers are not writable, and only its identity is known. An
// outbound rule on its behalf is emitted only when the group is
// explicitly known to restrict its own outbound traffic.
type ForeignGroup struct {
	id     string
	policy OutboundPolicy
}

func NewForeignGroup(id string, policy OutboundPolicy) *ForeignGroup {
	return &ForeignGroup{id: id, policy: policy}
}

func (f *ForeignGroup) ID() string             { return f.id }
func (f *ForeignGroup) Policy() OutboundPolicy { return f.policy }

func (f *ForeignGroup) memberKey() string { return "foreign:" + f.id }
func (f *ForeignGroup) peerID() any       { return f.id }

// PeerSet is a growable set of same-identity members treated as one
// logical connection endpoint. Rules recorded against the set apply to
// all current and future members.
type PeerSet struct {
	name    string
	members []Member
	present map[string]struct{}
	grants  []*grant

	// parents are the sets this set is nested in. Grants recorded on a
	// containing set cover members added to this set later, so replay
	// has to walk upward.
	parents []*PeerSet
}

// NewPeerSet creates an empty peer set. Set names identify sets in
// diagnostics and recursion guards, so keep them unique per graph.
func NewPeerSet(name string) *PeerSet {
	return &PeerSet{name: name, present: make(map[string]struct{})}
}

func (p *PeerSet) Name() string      { return p.name }
func (p *PeerSet) memberKey() string { return "set:" + p.name }

func (p *PeerSet) has(key string) bool {
	_, ok := p.present[key]
	return ok
}

func (p *PeerSet) add(m Member) {
	p.members = append(p.members, m)
	p.present[m.memberKey()] = struct{}{}
	if nested, ok := m.(*PeerSet); ok {
		nested.parents = append(nested.parents, p)
	}
}

// relevantGrants returns the grants recorded on this set and on every
// set that transitively contains it. Containment may be mutual; the
// visited set bounds the walk.
func (p *PeerSet) relevantGrants(visited map[*PeerSet]bool) []*grant {
	if visited[p] {
		return nil
	}
	visited[p] = true

	out := append([]*grant{}, p.grants...)
	for _, parent := range p.parents {
		out = append(out, parent.relevantGrants(visited)...)
	}
	return out
}

// contains reports whether target is this set or a transitive member
// of it.
func (p *PeerSet) contains(target *PeerSet, visited map[*PeerSet]bool) bool {
	if p == target {
		return true
	}
	if visited[p] {
		return false
	}
	visited[p] = true

	for _, m := range p.members {
		if nested, ok := m.(*PeerSet); ok && nested.contains(target, visited) {
			return true
		}
	}
	return false
}

func (p *PeerSet) recordGrant(gr *grant) {
	for _, existing := range p.grants {
		if existing == gr {
			return
		}
	}
	p.grants = append(p.grants, gr)
}

// endpoints flattens the set into concrete endpoints. Sets may contain
// each other, including mutually; the visited set bounds the walk.
func (p *PeerSet) endpoints(visited map[*PeerSet]bool) []Endpoint {
	if visited[p] {
		return nil
	}
	visited[p] = true

	var out []Endpoint
	seen := make(map[string]struct{})
	for _, m := range p.members {
		switch t := m.(type) {
		case Endpoint:
			if _, dup := seen[t.memberKey()]; dup {
				continue
			}
			seen[t.memberKey()] = struct{}{}
			out = append(out, t)
		case *PeerSet:
			for _, ep := range t.endpoints(visited) {
				if _, dup := seen[ep.memberKey()]; dup {
					continue
				}
				seen[ep.memberKey()] = struct{}{}
				out = append(out, ep)
			}
		}
	}
	return out
}
