package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/emberhome/ember/internal/config"
)

var initForce bool

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Write a default config file",
	RunE:  runInit,
}

func init() {
	initCmd.Flags().BoolVarP(&initForce, "force", "f", false, "Overwrite an existing config")
}

func runInit(_ *cobra.Command, _ []string) error {
	path := config.ConfigPath()
	if _, err := os.Stat(path); err == nil && !initForce {
		return fmt.Errorf("config already exists at %s (use --force to overwrite)", path)
	}

	cfg := config.DefaultConfig()
	if err := config.Save(&cfg, path); err != nil {
		return err
	}
	fmt.Printf("%s Wrote default config to %s\n", logo, path)
	fmt.Println("Set provider.apiKey before running `ember chat`.")
	return nil
}
