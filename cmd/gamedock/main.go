package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	configDir string

	rootCmd = &cobra.Command{
		Use:           "gamedock",
		Short:         "Manage a game library through store backends",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
)

func init() {
	rootCmd.PersistentFlags().StringVar(&configDir, "config-dir", "", "directory holding gamedock.toml (default: $GAMEDOCK_CONFIG_DIR or the user config dir)")
	rootCmd.AddCommand(serveCmd, titlesCmd, commandsCmd, configCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "gamedock:", err)
		os.Exit(1)
	}
}
