// © 2025 Platform Engineering Labs Inc.
//
// SPDX-License-Identifier: FSL-1.1-ALv2

package synth

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/platform-engineering-labs/tessera/internal/blueprint"
	"github.com/platform-engineering-labs/tessera/internal/cli/cmd"
	"github.com/platform-engineering-labs/tessera/internal/cli/display"
	"github.com/platform-engineering-labs/tessera/internal/cli/renderer"
	"github.com/platform-engineering-labs/tessera/internal/logging"
	"github.com/platform-engineering-labs/tessera/internal/util"
	"github.com/platform-engineering-labs/tessera/pkg/document"
	"github.com/platform-engineering-labs/tessera/pkg/stack"
)

type SynthOptions struct {
	BlueprintFile string
	OutputDir     string
	DropEmpty     bool
	Parallel      bool
}

func validateSynthOptions(opts *SynthOptions) error {
	if opts.BlueprintFile == "" {
		return cmd.FlagErrorf("blueprint file is required")
	}
	return nil
}

func SynthCmd() *cobra.Command {
	command := &cobra.Command{
		Use:   "synth",
		Short: "Render a blueprint into deployable stack documents",
		PreRun: func(cmd *cobra.Command, args []string) {
			level := logging.NoLoggingLevel
			if verbose, _ := cmd.Flags().GetBool("verbose"); verbose {
				level = slog.LevelDebug
			}
			logging.SetupClientLogging(util.ExpandHomePath("~/.tessera/log/client.log"), level)
		},
		RunE: func(command *cobra.Command, args []string) error {
			opts := &SynthOptions{}
			opts.BlueprintFile = command.Flags().Arg(0)
			opts.OutputDir, _ = command.Flags().GetString("output")
			opts.DropEmpty, _ = command.Flags().GetBool("drop-empty")
			opts.Parallel, _ = command.Flags().GetBool("parallel")

			if err := validateSynthOptions(opts); err != nil {
				return err
			}
			return runSynth(command, opts)
		},
		Annotations: map[string]string{
			"type": "Blueprint",
			"args": "<blueprint file>",
		},
		SilenceErrors: true,
	}

	command.Flags().StringP("output", "o", "tessera.out", "Directory for the rendered stack documents")
	command.Flags().Bool("drop-empty", false, "Drop mapping entries that resolve to empty values")
	command.Flags().Bool("parallel", false, "Render independent stacks concurrently")

	return command
}

func runSynth(command *cobra.Command, opts *SynthOptions) error {
	bp, err := blueprint.LoadFile(opts.BlueprintFile)
	if err != nil {
		return err
	}

	build, err := bp.Build()
	if err != nil {
		return err
	}

	assembly, err := build.App.Synth(stack.SynthOptions{
		DropEmpty: opts.DropEmpty,
		Parallel:  opts.Parallel,
	})
	if err != nil {
		return err
	}

	if err := util.EnsureFolderHierarchy(opts.OutputDir); err != nil {
		return err
	}
	for _, rs := range assembly.Stacks() {
		pretty, err := document.MarshalIndent(rs.Template)
		if err != nil {
			return err
		}
		path := filepath.Join(opts.OutputDir, rs.Name+".json")
		if err := os.WriteFile(path, append(pretty, '\n'), 0644); err != nil {
			return fmt.Errorf("failed to write %s: %w", path, err)
		}
	}

	summary, err := renderer.RenderAssemblySummary(build.App, assembly)
	if err != nil {
		return err
	}
	command.Println(summary)
	display.Success(fmt.Sprintf("Wrote %d stack document(s) to %s", len(assembly.Stacks()), opts.OutputDir))
	return nil
}
