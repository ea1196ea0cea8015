// © 2025 Platform Engineering Labs Inc.
//
// SPDX-License-Identifier: FSL-1.1-ALv2

// Package renderer formats engine output for humans: stack summaries,
// dependency tables and construct trees.
package renderer

import (
	"fmt"
	"strings"

	"github.com/ddddddO/gtree"
	"github.com/olekukonko/tablewriter"
	"github.com/olekukonko/tablewriter/renderer"
	"github.com/olekukonko/tablewriter/tw"

	"github.com/platform-engineering-labs/tessera/internal/cli/display"
	"github.com/platform-engineering-labs/tessera/pkg/stack"
)

func newTable(buf *strings.Builder) *tablewriter.Table {
	return tablewriter.NewTable(buf,
		tablewriter.WithHeaderAutoFormat(tw.Off),
		tablewriter.WithRenderer(renderer.NewBlueprint(tw.Rendition{
			Settings: tw.Settings{Separators: tw.Separators{BetweenRows: tw.On}},
		})))
}

// RenderAssemblySummary renders one row per stack: resource count,
// export count and dependencies.
func RenderAssemblySummary(app *stack.App, assembly *stack.Assembly) (string, error) {
	var buf strings.Builder
	table := newTable(&buf)
	table.Header(display.LightBlue("Stack"), "Resources", "Exports", display.Grey("Depends On"))

	rendered := assembly.Stacks()
	data := make([][]any, len(rendered))
	for i, rs := range rendered {
		s := app.Stack(rs.Name)
		deps := strings.Join(rs.Dependencies, ", ")
		if deps == "" {
			deps = display.Grey("-")
		}
		data[i] = []any{
			display.LightBlue(rs.Name),
			fmt.Sprintf("%d", len(s.Resources())),
			fmt.Sprintf("%d", len(s.Exports())),
			deps,
		}
	}

	if err := table.Bulk(data); err != nil {
		return "", err
	}
	if err := table.Render(); err != nil {
		return "", err
	}
	return buf.String(), nil
}

// RenderDependencies renders the ordering edges consumed by a
// deployment orchestrator.
func RenderDependencies(assembly *stack.Assembly) (string, error) {
	var buf strings.Builder
	table := newTable(&buf)
	table.Header(display.LightBlue("Stack"), display.Grey("Must Deploy After"))

	var data [][]any
	for _, rs := range assembly.Stacks() {
		if len(rs.Dependencies) == 0 {
			data = append(data, []any{display.LightBlue(rs.Name), display.Grey("-")})
			continue
		}
		for _, dep := range rs.Dependencies {
			data = append(data, []any{display.LightBlue(rs.Name), dep})
		}
	}

	if err := table.Bulk(data); err != nil {
		return "", err
	}
	if err := table.Render(); err != nil {
		return "", err
	}
	return buf.String(), nil
}

// RenderTree renders the session's stacks and resources as a tree.
func RenderTree(name string, app *stack.App) (string, error) {
	root := gtree.NewRoot(display.Gold(name))
	for _, s := range app.Stacks() {
		stackNode := root.Add(display.LightBlue(s.Name()))
		for _, r := range s.Resources() {
			stackNode.Add(fmt.Sprintf("%s %s", r.LogicalID(), display.Grey(r.Type())))
		}
		if exports := s.Exports(); len(exports) > 0 {
			expNode := stackNode.Add(display.Grey("exports"))
			for _, exp := range exports {
				expNode.Add(exp.Name)
			}
		}
	}

	var buf strings.Builder
	if err := gtree.OutputProgrammably(&buf, root); err != nil {
		return "", err
	}
	return buf.String(), nil
}
