// Package cmd contains the gateway binary's CLI commands.
package cmd

import (
	"github.com/spf13/cobra"
)

var version = "dev"

var rootCmd = &cobra.Command{
	Use:          "gateway",
	Short:        "Chat-platform gateway for plugin processes",
	Long:         `gateway exposes a platform's chat events and REST capabilities to a fleet of plugin processes over a length-framed JSON protocol.`,
	SilenceUsage: true,
}

// Execute runs the gateway binary's root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(versionCmd)
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		cmd.Println("gateway " + version)
	},
}
