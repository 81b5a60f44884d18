package commands

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// outputFormat controls the output format for commands that render
// structured results (currently only "text").
var outputFormat string

// rootCmd is the top-level cobra command for loranetctl.
var rootCmd = &cobra.Command{
	Use:   "loranetctl",
	Short: "Offline tooling for the loranet mesh frame format",
	Long:  "loranetctl decodes and encodes loranet frames and manages site keys without a running daemon.",

	// Silence cobra's built-in usage/error printing so we control it.
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&outputFormat, "format", "text", "output format: text")

	rootCmd.AddCommand(decodeCmd())
	rootCmd.AddCommand(encodeCmd())
	rootCmd.AddCommand(keygenCmd())
	rootCmd.AddCommand(versionCmd())
}

// Execute runs the root command and exits with code 1 on error.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
