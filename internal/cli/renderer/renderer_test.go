// © 2025 Platform Engineering Labs Inc.
//
// SPDX-License-Identifier: FSL-1.1-ALv2

//go:build unit

package renderer

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/platform-engineering-labs/tessera/pkg/stack"
)

func demoApp(t *testing.T) (*stack.App, *stack.Assembly) {
	t.Helper()
	app := stack.NewApp()
	network, err := app.NewStack("network")
	require.NoError(t, err)
	application, err := app.NewStack("app")
	require.NoError(t, err)

	vpc, err := network.NewResource("Vpc", "tessera/network", nil)
	require.NoError(t, err)
	web, err := application.NewResource("Web", "tessera/service", nil)
	require.NoError(t, err)
	web.SetProperty("VpcId", vpc.Ref())

	assembly, err := app.Synth(stack.SynthOptions{})
	require.NoError(t, err)
	return app, assembly
}

func TestRenderAssemblySummary(t *testing.T) {
	app, assembly := demoApp(t)

	out, err := RenderAssemblySummary(app, assembly)

	require.NoError(t, err)
	assert.Contains(t, out, "network")
	assert.Contains(t, out, "app")
	assert.Contains(t, out, "Exports")
}

func TestRenderDependencies(t *testing.T) {
	_, assembly := demoApp(t)

	out, err := RenderDependencies(assembly)

	require.NoError(t, err)
	assert.Contains(t, out, "Must Deploy After")
	assert.Contains(t, out, "network")
}

func TestRenderTree(t *testing.T) {
	app, _ := demoApp(t)

	out, err := RenderTree("demo", app)

	require.NoError(t, err)
	assert.Contains(t, out, "demo")
	assert.Contains(t, out, "Vpc")
	assert.Contains(t, out, "exports")
	assert.Contains(t, out, "network-export-")
}
