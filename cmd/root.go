// Package cmd implements the ember CLI using cobra.
package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

const version = "0.1.0"
const logo = "🔥"

// rootCmd is the base command.
var rootCmd = &cobra.Command{
	Use:   "ember",
	Short: logo + " ember — home assistant agent",
	Long:  logo + " ember — an LLM-driven assistant for conversational home control",
}

// Execute runs the root command and exits on error.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.Version = version

	rootCmd.AddCommand(initCmd)
	rootCmd.AddCommand(chatCmd)
	rootCmd.AddCommand(statusCmd)
}
