package root

import (
	"github.com/spf13/cobra"
)

// rootCmd is the base command for the VoxCampus admin CLI. Subcommands are attached in wire.go.
var rootCmd = &cobra.Command{
	Use:           "voxcampus",
	Short:         "VoxCampus admin CLI",
	Long:          "Administrative utilities for VoxCampus (bootstrap, institutions, collection schemas, demo sweeps, guest tokens, dev tokens).",
	SilenceErrors: true,
	SilenceUsage:  true,
}

// Execute runs the CLI.
func Execute() error {
	return rootCmd.Execute()
}

// Root returns the mutable root command for wiring from subpackages.
func Root() *cobra.Command {
	return rootCmd
}
