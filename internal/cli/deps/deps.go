// © 2025 Platform Engineering Labs Inc.
//
// SPDX-License-Identifier: FSL-1.1-ALv2

package deps

import (
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/platform-engineering-labs/tessera/internal/blueprint"
	"github.com/platform-engineering-labs/tessera/internal/cli/cmd"
	"github.com/platform-engineering-labs/tessera/internal/cli/renderer"
	"github.com/platform-engineering-labs/tessera/internal/logging"
	"github.com/platform-engineering-labs/tessera/internal/util"
	"github.com/platform-engineering-labs/tessera/pkg/stack"
)

type DepsOptions struct {
	BlueprintFile string
}

func validateDepsOptions(opts *DepsOptions) error {
	if opts.BlueprintFile == "" {
		return cmd.FlagErrorf("blueprint file is required")
	}
	return nil
}

func DepsCmd() *cobra.Command {
	command := &cobra.Command{
		Use:   "deps",
		Short: "Show the cross-stack dependency edges a blueprint produces",
		PreRun: func(cmd *cobra.Command, args []string) {
			level := logging.NoLoggingLevel
			if verbose, _ := cmd.Flags().GetBool("verbose"); verbose {
				level = slog.LevelDebug
			}
			logging.SetupClientLogging(util.ExpandHomePath("~/.tessera/log/client.log"), level)
		},
		RunE: func(command *cobra.Command, args []string) error {
			opts := &DepsOptions{}
			opts.BlueprintFile = command.Flags().Arg(0)

			if err := validateDepsOptions(opts); err != nil {
				return err
			}
			return runDeps(command, opts)
		},
		Annotations: map[string]string{
			"type": "Blueprint",
			"args": "<blueprint file>",
		},
		SilenceErrors: true,
	}

	return command
}

func runDeps(command *cobra.Command, opts *DepsOptions) error {
	bp, err := blueprint.LoadFile(opts.BlueprintFile)
	if err != nil {
		return err
	}

	build, err := bp.Build()
	if err != nil {
		return err
	}

	// Dependencies only materialize once references are bridged, so a
	// full render pass has to happen first.
	assembly, err := build.App.Synth(stack.SynthOptions{})
	if err != nil {
		return err
	}

	out, err := renderer.RenderDependencies(assembly)
	if err != nil {
		return err
	}
	command.Println(out)
	return nil
}
