// © 2025 Platform Engineering Labs Inc.
//
// SPDX-License-Identifier: FSL-1.1-ALv2

package connect

import (
	"fmt"
	"sort"

	"github.com/platform-engineering-labs/tessera/pkg/document"
	"github.com/platform-engineering-labs/tessera/pkg/stack"
)

// grant is one recorded allow between two peer sets. Grants are replayed
// against members added later.
type grant struct {
	src  *PeerSet
	dst  *PeerSet
	port Port
	desc string
}

// Graph applies allow-access grants between peer sets, emitting egress
// rules on source members and ingress rules on destination members.
// Application is memoized per (port, source member, destination member)
// so replay, mutual grants and repeated identical grants never
// duplicate rules.
type Graph struct {
	inProgress map[string]struct{}
	applied    map[string]struct{}
}

func NewGraph() *Graph {
	return &Graph{
		inProgress: make(map[string]struct{}),
		applied:    make(map[string]struct{}),
	}
}

// Allow grants traffic from every member of src to every member of dst
// on the given port. The rules apply to current members immediately and
// to future members on AddMember. Mutually referential sets terminate:
// an (src, dst, port) pair already being processed is skipped rather
// than re-entered.
func (g *Graph) Allow(src, dst *PeerSet, port Port, desc string) error {
	if err := port.Validate(); err != nil {
		return err
	}

	pk := pairKey(src, dst, port)
	if _, busy := g.inProgress[pk]; busy {
		return nil
	}
	g.inProgress[pk] = struct{}{}
	defer delete(g.inProgress, pk)

	gr := &grant{src: src, dst: dst, port: port, desc: desc}
	src.recordGrant(gr)
	dst.recordGrant(gr)

	srcEps := src.endpoints(make(map[*PeerSet]bool))
	dstEps := dst.endpoints(make(map[*PeerSet]bool))
	for _, s := range srcEps {
		for _, d := range dstEps {
			if err := g.applyPair(gr, s, d); err != nil {
				return err
			}
		}
	}
	return nil
}

// AddMember adds a member to a set and replays every grant the set, or
// any set containing it, has ever participated in against the new
// member. Adding a member that is already present is a
// DuplicateMemberError; the caller decides whether to ignore it.
func (g *Graph) AddMember(set *PeerSet, m Member) error {
	if set.has(m.memberKey()) {
		return &DuplicateMemberError{Set: set.name, Member: m.memberKey()}
	}
	set.add(m)

	// Grants recorded on a set containing this one also cover the new
	// member, so the replay walks the containment chain upward.
	newEps := memberEndpoints(m)
	for _, gr := range set.relevantGrants(make(map[*PeerSet]bool)) {
		if gr.src.contains(set, make(map[*PeerSet]bool)) {
			dstEps := gr.dst.endpoints(make(map[*PeerSet]bool))
			for _, ne := range newEps {
				for _, d := range dstEps {
					if err := g.applyPair(gr, ne, d); err != nil {
						return err
					}
				}
			}
		}
		if gr.dst.contains(set, make(map[*PeerSet]bool)) {
			srcEps := gr.src.endpoints(make(map[*PeerSet]bool))
			for _, s := range srcEps {
				for _, ne := range newEps {
					if err := g.applyPair(gr, s, ne); err != nil {
						return err
					}
				}
			}
		}
	}
	return nil
}

// applyPair emits the rules for one ordered (source, destination)
// endpoint pair of a grant.
func (g *Graph) applyPair(gr *grant, s, d Endpoint) error {
	key := fmt.Sprintf("%s|%s|%s", gr.port.String(), s.memberKey(), d.memberKey())
	if _, done := g.applied[key]; done {
		return nil
	}
	g.applied[key] = struct{}{}

	// Identical source and destination: one self-referential
	// ingress/egress pair on the member suffices.
	if s.memberKey() == d.memberKey() {
		if lg, ok := s.(*Group); ok {
			lg.resource.AppendProperty("IngressRules", ruleEntry(gr, lg.peerID()))
			if !lg.allowAllOutbound {
				lg.resource.AppendProperty("EgressRules", ruleEntry(gr, lg.peerID()))
			}
		}
		return nil
	}

	// Ingress on the destination's writable side.
	if dg, ok := d.(*Group); ok {
		dg.resource.AppendProperty("IngressRules", ruleEntry(gr, s.peerID()))
	}

	// Egress from the source.
	switch sg := s.(type) {
	case *Group:
		if sg.allowAllOutbound {
			return nil
		}
		switch dt := d.(type) {
		case *ForeignGroup:
			sg.resource.AppendProperty("EgressRules", ruleEntry(gr, dt.peerID()))
		case *Group:
			if stack.SameUnit(sg.resource, dt.resource) {
				sg.resource.AppendProperty("EgressRules", ruleEntry(gr, dt.peerID()))
			} else {
				// The destination's unit already imports the source's
				// identity for its ingress rule, so the egress rule is
				// emitted there too, attached to the source group via
				// the same memoized import. The source's unit gains no
				// reverse dependency.
				return emitDetachedEgress(dt.resource.Stack(), gr, sg.peerID(), dt.peerID(), key)
			}
		}
	case *ForeignGroup:
		// A foreign group's own containers are not writable. Only emit
		// an outbound rule on its behalf when it is explicitly known to
		// restrict its own outbound traffic.
		if sg.policy != OutboundRestricted {
			return nil
		}
		if dg, ok := d.(*Group); ok {
			return emitDetachedEgress(dg.resource.Stack(), gr, sg.peerID(), dg.peerID(), key)
		}
	}
	return nil
}

// emitDetachedEgress creates a standalone egress rule resource in unit,
// attached to a group that is not writable from here.
func emitDetachedEgress(unit *stack.Stack, gr *grant, groupID, peerID any, key string) error {
	digest, err := document.Hash(key)
	if err != nil {
		return err
	}
	props := ruleEntry(gr, peerID)
	props["Group"] = groupID

	_, err = unit.NewResource("EgressRule"+digest[:10], "tessera/egress-rule", props)
	return err
}

func ruleEntry(gr *grant, peer any) map[string]any {
	return map[string]any{
		"Description": gr.desc,
		"Protocol":    string(gr.port.Protocol),
		"FromPort":    gr.port.From,
		"ToPort":      gr.port.To,
		"Peer":        peer,
	}
}

func memberEndpoints(m Member) []Endpoint {
	switch t := m.(type) {
	case Endpoint:
		return []Endpoint{t}
	case *PeerSet:
		return t.endpoints(make(map[*PeerSet]bool))
	}
	return nil
}

func pairKey(src, dst *PeerSet, port Port) string {
	names := []string{src.name, dst.name}
	sort.Strings(names)
	return names[0] + "|" + names[1] + "|" + port.String()
}
