package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/emberhome/ember/internal/config"
	"github.com/emberhome/ember/internal/providers"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show ember status",
	RunE:  runStatus,
}

func runStatus(_ *cobra.Command, _ []string) error {
	cfgPath := config.ConfigPath()

	fmt.Printf("%s ember Status\n\n", logo)

	_, statErr := os.Stat(cfgPath)
	cfgMark := "✗"
	if statErr == nil {
		cfgMark = "✓"
	}
	fmt.Printf("Config:   %s %s\n", cfgPath, cfgMark)

	cfg, err := config.Load(cfgPath)
	if err != nil {
		fmt.Printf("  (could not load config: %v)\n", err)
		return nil
	}

	fmt.Printf("Provider: %s\n", cfg.Provider.Name)
	fmt.Printf("Model:    %s\n", cfg.Provider.Model)

	spec := providers.FindByName(cfg.Provider.Name)
	if spec == nil {
		spec = providers.FindByModel(cfg.Provider.Model)
	}
	if spec != nil {
		fmt.Printf("Backend:  %s (%s family, %d-token window)\n",
			spec.Label(), spec.Family, spec.ContextWindow)
	}

	switch {
	case cfg.Provider.APIKey != "":
		fmt.Println("API key:  ✓")
	case cfg.Provider.Name == "local":
		fmt.Println("API key:  (not required)")
	default:
		fmt.Println("API key:  (not set)")
	}
	return nil
}
