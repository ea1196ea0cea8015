// © 2025 Platform Engineering Labs Inc.
//
// SPDX-License-Identifier: FSL-1.1-ALv2

//go:build unit

package stack

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/platform-engineering-labs/tessera/pkg/document"
)

func TestApp_NewStack(t *testing.T) {
	app := NewApp()

	network, err := app.NewStack("network")
	require.NoError(t, err)
	assert.Equal(t, "network", network.Name())
	assert.Same(t, network, app.Stack("network"))

	_, err = app.NewStack("network")
	assert.ErrorContains(t, err, "already exists")

	_, err = app.NewStack("")
	assert.ErrorContains(t, err, "must not be empty")
}

func TestStack_NewResource(t *testing.T) {
	app := NewApp()
	network, err := app.NewStack("network")
	require.NoError(t, err)

	vpc, err := network.NewResource("Vpc", "tessera/network", map[string]any{"Cidr": "10.0.0.0/16"})
	require.NoError(t, err)
	assert.Equal(t, "Vpc", vpc.LogicalID())
	assert.Same(t, vpc, network.Resource("Vpc"))

	_, err = network.NewResource("Vpc", "tessera/network", nil)
	assert.ErrorContains(t, err, "already exists")
}

func TestResource_ReferenceMemoization(t *testing.T) {
	app := NewApp()
	network, err := app.NewStack("network")
	require.NoError(t, err)
	vpc, err := network.NewResource("Vpc", "tessera/network", nil)
	require.NoError(t, err)

	assert.Same(t, vpc.Ref(), vpc.Ref())
	assert.Same(t, vpc.Attr("CidrBlock"), vpc.Attr("CidrBlock"))
	assert.NotSame(t, vpc.Ref(), vpc.Attr("CidrBlock"))
}

func TestSynth_SameUnitReferences(t *testing.T) {
	app := NewApp()
	network, err := app.NewStack("network")
	require.NoError(t, err)

	vpc, err := network.NewResource("Vpc", "tessera/network", map[string]any{"Cidr": "10.0.0.0/16"})
	require.NoError(t, err)
	subnet, err := network.NewResource("Subnet", "tessera/subnet", nil)
	require.NoError(t, err)
	subnet.SetProperty("VpcId", vpc.Ref())
	subnet.SetProperty("Az", vpc.Attr("PrimaryAz"))

	assembly, err := app.Synth(SynthOptions{})
	require.NoError(t, err)

	rendered := assembly.Stack("network")
	require.NotNil(t, rendered)

	props := rendered.Template["Resources"].(map[string]any)["Subnet"].(map[string]any)["Properties"].(map[string]any)
	assert.Equal(t, map[string]any{"Ref": "Vpc"}, props["VpcId"])
	assert.Equal(t, map[string]any{"Attr": "Vpc.PrimaryAz"}, props["Az"])

	// Same-unit references never allocate exports or dependencies.
	assert.Empty(t, network.Exports())
	assert.Empty(t, rendered.Dependencies)
}

func TestSynth_CrossUnitReferences(t *testing.T) {
	app := NewApp()
	network, err := app.NewStack("network")
	require.NoError(t, err)
	application, err := app.NewStack("app")
	require.NoError(t, err)

	vpc, err := network.NewResource("Vpc", "tessera/network", nil)
	require.NoError(t, err)
	web, err := application.NewResource("Web", "tessera/service", nil)
	require.NoError(t, err)
	web.SetProperty("VpcId", vpc.Ref())

	assembly, err := app.Synth(SynthOptions{})
	require.NoError(t, err)

	digest, err := document.Hash(map[string]any{"Ref": "Vpc"})
	require.NoError(t, err)
	exportName := fmt.Sprintf("network-export-%s", digest[:12])

	// The consumer gets an import expression in place of the value.
	appProps := assembly.Stack("app").Template["Resources"].(map[string]any)["Web"].(map[string]any)["Properties"].(map[string]any)
	assert.Equal(t, map[string]any{"ImportFrom": "network:" + exportName}, appProps["VpcId"])

	// The producer publishes the referenced expression under that name.
	outputs := assembly.Stack("network").Template["Outputs"].([]any)
	require.Len(t, outputs, 1)
	assert.Equal(t, map[string]any{
		"ExportName": exportName,
		"Value":      map[string]any{"Ref": "Vpc"},
	}, outputs[0])

	// Ordering edges point from consumer to producer only.
	assert.Equal(t, []string{"network"}, assembly.Stack("app").Dependencies)
	assert.Empty(t, assembly.Stack("network").Dependencies)
	assert.Equal(t, []string{"network"}, app.UnitDependencies("app"))
}

func TestSynth_ExportDeduplication(t *testing.T) {
	app := NewApp()
	network, err := app.NewStack("network")
	require.NoError(t, err)
	application, err := app.NewStack("app")
	require.NoError(t, err)
	ops, err := app.NewStack("ops")
	require.NoError(t, err)

	vpc, err := network.NewResource("Vpc", "tessera/network", nil)
	require.NoError(t, err)

	web, err := application.NewResource("Web", "tessera/service", nil)
	require.NoError(t, err)
	web.SetProperty("VpcId", vpc.Ref())
	web.SetProperty("AlsoVpcId", vpc.Ref())

	monitor, err := ops.NewResource("Monitor", "tessera/service", nil)
	require.NoError(t, err)
	monitor.SetProperty("VpcId", vpc.Ref())

	assembly, err := app.Synth(SynthOptions{})
	require.NoError(t, err)

	// One distinct value, one export, however many consumers.
	require.Len(t, network.Exports(), 1)

	// Rendering again changes nothing.
	again, err := app.Synth(SynthOptions{})
	require.NoError(t, err)
	require.Len(t, network.Exports(), 1)
	for _, s := range []string{"network", "app", "ops"} {
		assert.Equal(t, string(assembly.Stack(s).JSON), string(again.Stack(s).JSON))
	}
}

func TestSynth_CrossUnitAttr(t *testing.T) {
	app := NewApp()
	network, err := app.NewStack("network")
	require.NoError(t, err)
	application, err := app.NewStack("app")
	require.NoError(t, err)

	vpc, err := network.NewResource("Vpc", "tessera/network", nil)
	require.NoError(t, err)
	web, err := application.NewResource("Web", "tessera/service", nil)
	require.NoError(t, err)
	web.SetProperty("Cidr", vpc.Attr("CidrBlock"))

	assembly, err := app.Synth(SynthOptions{})
	require.NoError(t, err)

	outputs := assembly.Stack("network").Template["Outputs"].([]any)
	require.Len(t, outputs, 1)
	assert.Equal(t, map[string]any{"Attr": "Vpc.CidrBlock"}, outputs[0].(map[string]any)["Value"])
}

func TestSynth_CrossUnitToken(t *testing.T) {
	t.Run("renders in place inside the producing unit", func(t *testing.T) {
		app := NewApp()
		network, err := app.NewStack("network")
		require.NoError(t, err)

		tok := app.CrossUnitToken(network, "10.0.0.0/16", "network#cidr")
		res, err := network.NewResource("Vpc", "tessera/network", nil)
		require.NoError(t, err)
		res.SetProperty("Cidr", tok)

		assembly, err := app.Synth(SynthOptions{})
		require.NoError(t, err)

		props := assembly.Stack("network").Template["Resources"].(map[string]any)["Vpc"].(map[string]any)["Properties"].(map[string]any)
		assert.Equal(t, "10.0.0.0/16", props["Cidr"])
		assert.Empty(t, network.Exports())
	})

	t.Run("bridges scalars across units", func(t *testing.T) {
		app := NewApp()
		network, err := app.NewStack("network")
		require.NoError(t, err)
		application, err := app.NewStack("app")
		require.NoError(t, err)

		tok := app.CrossUnitToken(network, "10.0.0.0/16", "network#cidr")
		res, err := application.NewResource("Web", "tessera/service", nil)
		require.NoError(t, err)
		res.SetProperty("Cidr", tok)

		_, err = app.Synth(SynthOptions{})
		require.NoError(t, err)

		exports := network.Exports()
		require.Len(t, exports, 1)
		assert.Equal(t, "10.0.0.0/16", exports[0].Value)
	})

	t.Run("rejects structured values at the boundary", func(t *testing.T) {
		app := NewApp()
		network, err := app.NewStack("network")
		require.NoError(t, err)
		application, err := app.NewStack("app")
		require.NoError(t, err)

		tok := app.CrossUnitToken(network, map[string]any{"a": 1, "b": 2}, "network#blob")
		res, err := application.NewResource("Web", "tessera/service", nil)
		require.NoError(t, err)
		res.SetProperty("Blob", tok)

		_, err = app.Synth(SynthOptions{})

		var boundaryErr *UnsupportedCrossUnitValueError
		require.ErrorAs(t, err, &boundaryErr)
		assert.Equal(t, "network", boundaryErr.Producing)
		assert.Equal(t, "app", boundaryErr.Consuming)
		assert.Equal(t, "network#blob", boundaryErr.Hint)
	})
}

func TestSynth_CrossUnitReferenceInsideString(t *testing.T) {
	app := NewApp()
	network, err := app.NewStack("network")
	require.NoError(t, err)
	application, err := app.NewStack("app")
	require.NoError(t, err)

	vpc, err := network.NewResource("Vpc", "tessera/network", nil)
	require.NoError(t, err)
	web, err := application.NewResource("Web", "tessera/service", nil)
	require.NoError(t, err)

	// The bridged value is an import expression, not a scalar, so it
	// cannot be spliced into a larger string.
	web.SetProperty("Note", "vpc is "+vpc.Ref().String())

	_, err = app.Synth(SynthOptions{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "cannot embed")
}

func TestSynth_Parallel(t *testing.T) {
	build := func() *App {
		app := NewApp()
		network, err := app.NewStack("network")
		require.NoError(t, err)
		application, err := app.NewStack("app")
		require.NoError(t, err)
		ops, err := app.NewStack("ops")
		require.NoError(t, err)

		vpc, err := network.NewResource("Vpc", "tessera/network", map[string]any{"Cidr": "10.0.0.0/16"})
		require.NoError(t, err)
		web, err := application.NewResource("Web", "tessera/service", nil)
		require.NoError(t, err)
		web.SetProperty("VpcId", vpc.Ref())
		monitor, err := ops.NewResource("Monitor", "tessera/service", nil)
		require.NoError(t, err)
		monitor.SetProperty("VpcId", vpc.Ref())
		monitor.SetProperty("WebId", web.Ref())
		return app
	}

	serial, err := build().Synth(SynthOptions{})
	require.NoError(t, err)
	parallel, err := build().Synth(SynthOptions{Parallel: true})
	require.NoError(t, err)

	for _, s := range []string{"network", "app", "ops"} {
		assert.Equal(t, string(serial.Stack(s).JSON), string(parallel.Stack(s).JSON))
	}
	assert.Equal(t, []string{"app", "network"}, parallel.Stack("ops").Dependencies)
}

func TestSameUnit(t *testing.T) {
	app := NewApp()
	network, err := app.NewStack("network")
	require.NoError(t, err)
	application, err := app.NewStack("app")
	require.NoError(t, err)

	a, err := network.NewResource("A", "tessera/network", nil)
	require.NoError(t, err)
	b, err := network.NewResource("B", "tessera/network", nil)
	require.NoError(t, err)
	c, err := application.NewResource("C", "tessera/service", nil)
	require.NoError(t, err)

	assert.True(t, SameUnit(a, b))
	assert.False(t, SameUnit(a, c))
}
