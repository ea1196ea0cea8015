// © 2025 Platform Engineering Labs Inc.
//
// SPDX-License-Identifier: FSL-1.1-ALv2

// Package blueprint loads a declarative YAML description of stacks,
// resources, cross-stack references and connections, and builds the
// corresponding engine session.
package blueprint

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"
	"gopkg.in/yaml.v3"

	"github.com/platform-engineering-labs/tessera/pkg/connect"
	"github.com/platform-engineering-labs/tessera/pkg/document"
	"github.com/platform-engineering-labs/tessera/pkg/stack"
)

type Blueprint struct {
	Name          string             `yaml:"name"`
	Stacks        []StackSpec        `yaml:"stacks"`
	Groups        []GroupSpec        `yaml:"groups"`
	ForeignGroups []ForeignGroupSpec `yaml:"foreignGroups"`
	Connections   []ConnectionSpec   `yaml:"connections"`
}

type StackSpec struct {
	Name      string         `yaml:"name"`
	Resources []ResourceSpec `yaml:"resources"`
}

type ResourceSpec struct {
	ID         string         `yaml:"id"`
	Type       string         `yaml:"type"`
	Properties map[string]any `yaml:"properties"`
}

type GroupSpec struct {
	Name             string `yaml:"name"`
	Stack            string `yaml:"stack"`
	Resource         string `yaml:"resource"`
	AllowAllOutbound bool   `yaml:"allowAllOutbound"`
}

type ForeignGroupSpec struct {
	Name           string `yaml:"name"`
	ID             string `yaml:"id"`
	OutboundPolicy string `yaml:"outboundPolicy"`
}

type ConnectionSpec struct {
	From        string `yaml:"from"`
	To          string `yaml:"to"`
	Port        string `yaml:"port"`
	Description string `yaml:"description"`
}

func Load(raw []byte) (*Blueprint, error) {
	var bp Blueprint
	if err := yaml.Unmarshal(raw, &bp); err != nil {
		return nil, fmt.Errorf("failed to parse blueprint: %w", err)
	}
	if bp.Name == "" {
		return nil, fmt.Errorf("blueprint has no name")
	}
	return &bp, nil
}

func LoadFile(path string) (*Blueprint, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read blueprint: %w", err)
	}
	return Load(raw)
}

// Build is the engine session constructed from a blueprint.
type Build struct {
	App   *stack.App
	Graph *connect.Graph
	Sets  map[string]*connect.PeerSet
}

// Build creates stacks and resources, rewrites `$ref` property objects
// into reference tokens, and applies the declared connections.
func (bp *Blueprint) Build() (*Build, error) {
	app := stack.NewApp()

	for _, ss := range bp.Stacks {
		st, err := app.NewStack(ss.Name)
		if err != nil {
			return nil, err
		}
		for _, rs := range ss.Resources {
			props := rs.Properties
			if props == nil {
				props = make(map[string]any)
			}
			if _, err := st.NewResource(rs.ID, rs.Type, props); err != nil {
				return nil, err
			}
		}
	}

	// Second pass, once every referenced resource exists: swap each
	// {"$ref": "stack/resource#Attr"} object for its token marker.
	for _, ss := range bp.Stacks {
		st := app.Stack(ss.Name)
		for _, rs := range ss.Resources {
			if err := rewriteRefs(app, st.Resource(rs.ID)); err != nil {
				return nil, err
			}
		}
	}

	graph := connect.NewGraph()
	sets := make(map[string]*connect.PeerSet)

	for _, gs := range bp.Groups {
		st := app.Stack(gs.Stack)
		if st == nil {
			return nil, fmt.Errorf("group %q references unknown stack %q", gs.Name, gs.Stack)
		}
		res := st.Resource(gs.Resource)
		if res == nil {
			return nil, fmt.Errorf("group %q references unknown resource %q in stack %q", gs.Name, gs.Resource, gs.Stack)
		}
		set := connect.NewPeerSet(gs.Name)
		if err := graph.AddMember(set, connect.NewGroup(res, gs.AllowAllOutbound)); err != nil {
			return nil, err
		}
		sets[gs.Name] = set
	}

	for _, fs := range bp.ForeignGroups {
		policy, err := parsePolicy(fs.OutboundPolicy)
		if err != nil {
			return nil, fmt.Errorf("foreign group %q: %w", fs.Name, err)
		}
		set := connect.NewPeerSet(fs.Name)
		if err := graph.AddMember(set, connect.NewForeignGroup(fs.ID, policy)); err != nil {
			return nil, err
		}
		sets[fs.Name] = set
	}

	for _, cs := range bp.Connections {
		src, ok := sets[cs.From]
		if !ok {
			return nil, fmt.Errorf("connection references unknown peer %q", cs.From)
		}
		dst, ok := sets[cs.To]
		if !ok {
			return nil, fmt.Errorf("connection references unknown peer %q", cs.To)
		}
		port, err := ParsePort(cs.Port)
		if err != nil {
			return nil, err
		}
		if err := graph.Allow(src, dst, port, cs.Description); err != nil {
			return nil, err
		}
	}

	return &Build{App: app, Graph: graph, Sets: sets}, nil
}

// rewriteRefs walks a resource's property JSON and replaces every
// object carrying a `$ref` key with the marker string of the referenced
// attribute token.
func rewriteRefs(app *stack.App, res *stack.Resource) error {
	raw, err := document.Marshal(res.Properties())
	if err != nil {
		return err
	}

	var refs []refSite
	findRefs("", gjson.ParseBytes(raw), &refs)
	if len(refs) == 0 {
		return nil
	}

	out := string(raw)
	for _, site := range refs {
		tok, err := lookupRef(app, site.target)
		if err != nil {
			return fmt.Errorf("resource %s/%s: %w", res.Stack().Name(), res.LogicalID(), err)
		}
		out, err = sjson.Set(out, site.path, tok.String())
		if err != nil {
			return err
		}
	}

	parsed, err := document.Parse([]byte(out))
	if err != nil {
		return err
	}
	res.ReplaceProperties(parsed.(map[string]any))
	return nil
}

type refSite struct {
	path   string
	target string
}

func findRefs(basePath string, value gjson.Result, refs *[]refSite) {
	if value.IsObject() {
		if ref := value.Get("$ref"); ref.Exists() {
			*refs = append(*refs, refSite{path: basePath, target: ref.String()})
			return
		}
		value.ForEach(func(key, val gjson.Result) bool {
			findRefs(joinPath(basePath, key.String()), val, refs)
			return true
		})
		return
	}
	if value.IsArray() {
		i := 0
		value.ForEach(func(_, val gjson.Result) bool {
			findRefs(joinPath(basePath, strconv.Itoa(i)), val, refs)
			i++
			return true
		})
	}
}

func joinPath(base, key string) string {
	if base == "" {
		return key
	}
	return base + "." + key
}

// lookupRef resolves "stack/resource" (identity) or
// "stack/resource#Attr" into the attribute token.
func lookupRef(app *stack.App, target string) (fmt.Stringer, error) {
	attr := "Ref"
	path := target
	if idx := strings.Index(target, "#"); idx >= 0 {
		attr = target[idx+1:]
		path = target[:idx]
	}
	parts := strings.SplitN(path, "/", 2)
	if len(parts) != 2 || attr == "" {
		return nil, fmt.Errorf("malformed $ref %q (want stack/resource or stack/resource#Attr)", target)
	}

	st := app.Stack(parts[0])
	if st == nil {
		return nil, fmt.Errorf("$ref %q names unknown stack %q", target, parts[0])
	}
	res := st.Resource(parts[1])
	if res == nil {
		return nil, fmt.Errorf("$ref %q names unknown resource %q", target, parts[1])
	}
	if attr == "Ref" {
		return res.Ref(), nil
	}
	return res.Attr(attr), nil
}

// ParsePort parses "tcp/443", "udp/1000-2000", "icmp/8" or "all".
func ParsePort(s string) (connect.Port, error) {
	if s == "all" {
		return connect.AllTraffic(), nil
	}
	parts := strings.SplitN(s, "/", 2)
	if len(parts) != 2 {
		return connect.Port{}, fmt.Errorf("malformed port %q (want proto/port, proto/from-to or all)", s)
	}

	from, to, err := parseRange(parts[1])
	if err != nil {
		return connect.Port{}, fmt.Errorf("malformed port %q: %w", s, err)
	}

	switch parts[0] {
	case "tcp":
		return connect.TCPRange(from, to), nil
	case "udp":
		return connect.UDPRange(from, to), nil
	case "icmp":
		if from != to {
			return connect.Port{}, fmt.Errorf("malformed port %q: icmp takes a single message type", s)
		}
		return connect.ICMP(from), nil
	default:
		return connect.Port{}, fmt.Errorf("unknown protocol %q", parts[0])
	}
}

func parseRange(s string) (int, int, error) {
	if from, to, ok := strings.Cut(s, "-"); ok {
		f, err := strconv.Atoi(from)
		if err != nil {
			return 0, 0, err
		}
		t, err := strconv.Atoi(to)
		if err != nil {
			return 0, 0, err
		}
		return f, t, nil
	}
	p, err := strconv.Atoi(s)
	if err != nil {
		return 0, 0, err
	}
	return p, p, nil
}

func parsePolicy(s string) (connect.OutboundPolicy, error) {
	switch s {
	case "", "unknown":
		return connect.OutboundUnknown, nil
	case "allow-all":
		return connect.OutboundAllowAll, nil
	case "restricted":
		return connect.OutboundRestricted, nil
	default:
		return connect.OutboundUnknown, fmt.Errorf("unknown outbound policy %q", s)
	}
}
