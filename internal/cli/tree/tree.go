// © 2025 Platform Engineering Labs Inc.
//
// SPDX-License-Identifier: FSL-1.1-ALv2

package tree

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

type TreeOptions struct {
	BlueprintFile string
}

func validateTreeOptions(opts *TreeOptions) error {
	if opts.BlueprintFile == "" {
		return cmd.FlagErrorf("blueprint file is required")
	}
	return nil
}

func TreeCmd() *cobra.Command {
	command := &cobra.Command{
		Use:   "tree",
		Short: "Show the stacks, resources and exports of a blueprint as a tree",
		PreRun: func(cmd *cobra.Command, args []string) {
			level := logging.NoLoggingLevel
			if verbose, _ := cmd.Flags().GetBool("verbose"); verbose {
				level = slog.LevelDebug
			}
			logging.SetupClientLogging(util.ExpandHomePath("~/.tessera/log/client.log"), level)
		},
		RunE: func(command *cobra.Command, args []string) error {
			opts := &TreeOptions{}
			opts.BlueprintFile = command.Flags().Arg(0)

			if err := validateTreeOptions(opts); err != nil {
				return err
			}
			return runTree(command, opts)
		},
		Annotations: map[string]string{
			"type": "Blueprint",
			"args": "<blueprint file>",
		},
		SilenceErrors: true,
	}

	return command
}

func runTree(command *cobra.Command, opts *TreeOptions) error {
	bp, err := blueprint.LoadFile(opts.BlueprintFile)
	if err != nil {
		return err
	}

	build, err := bp.Build()
	if err != nil {
		return err
	}

	// Exports only exist after a render pass has bridged the
	// cross-stack references.
	if _, err := build.App.Synth(stack.SynthOptions{}); err != nil {
		return err
	}

	out, err := renderer.RenderTree(bp.Name, build.App)
	if err != nil {
		return err
	}
	command.Println(out)
	return nil
}
