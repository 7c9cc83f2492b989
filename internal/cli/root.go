// Package cli implements the meshlens command-line interface.
//
// Commands:
//   - solve: solve a group file and write the lens transform
//   - synth: generate a group with a known field, optionally solve it and
//     report how well the field was recovered
//   - mesh: build a mesh for a point set and save it for reuse
//   - version: print build information
//
// All commands accept --config (TOML solver settings) and --verbose.
package cli

import (
	"context"
	"os"

	charmlog "github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"meshlens/internal/config"
	"meshlens/internal/version"
)

// globals holds the persistent flags shared by every command.
type globals struct {
	configPath string
	verbose    bool
}

// options loads the configuration named by --config.
func (g *globals) options() (config.Config, error) {
	return config.Load(g.configPath)
}

// NewRootCommand builds the command tree.
func NewRootCommand() *cobra.Command {
	g := &globals{}

	root := &cobra.Command{
		Use:          "meshlens",
		Short:        "meshlens solves a shared lens distortion from tile point matches",
		Long:         `meshlens estimates per-tile affine transforms and a mesh-based lens-correction field shared by every tile of an acquisition group.`,
		Version:      version.Version,
		SilenceUsage: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			level := charmlog.InfoLevel
			if g.verbose {
				level = charmlog.DebugLevel
			}
			cmd.SetContext(withLogger(cmd.Context(), newLogger(os.Stderr, level)))
		},
	}

	root.SetVersionTemplate(version.Template())
	root.PersistentFlags().StringVarP(&g.configPath, "config", "c", "", "TOML file with solver settings")
	root.PersistentFlags().BoolVarP(&g.verbose, "verbose", "v", false, "enable verbose logging")

	root.AddCommand(newSolveCmd(g))
	root.AddCommand(newSynthCmd(g))
	root.AddCommand(newMeshCmd(g))
	root.AddCommand(newVersionCmd())

	return root
}

// Execute runs the CLI.
func Execute(ctx context.Context) error {
	return NewRootCommand().ExecuteContext(ctx)
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			cmd.Print(version.Template())
		},
	}
}
