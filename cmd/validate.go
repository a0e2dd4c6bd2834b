package cmd

import (
	"fmt"
	"os"

	"github.com/geekxflood/common/config"
	"github.com/spf13/cobra"
)

// validateCmd represents the validate command.
var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate a configuration file",
	Long:  `Validate a configuration file against gosnmpd's CUE schema without binding a socket.`,
	Example: `  # Validate a configuration file
  gosnmpd validate --config config.yaml

  # Validate using default config locations
  gosnmpd validate`,
	RunE: validateConfig,
}

func init() {
	rootCmd.AddCommand(validateCmd)
}

func validateConfig(cmd *cobra.Command, args []string) error {
	configPath := cfgFile
	if configPath == "" {
		defaultPaths := []string{
			"config.yaml",
			"config.yml",
			"/etc/gosnmpd/config.yaml",
			"/etc/gosnmpd/config.yml",
		}
		for _, path := range defaultPaths {
			if _, err := os.Stat(path); err == nil {
				configPath = path
				break
			}
		}
		if configPath == "" {
			return fmt.Errorf("no configuration file found, specify with --config or create config.yaml")
		}
	}

	fmt.Printf("Validating configuration file: %s\n", configPath)

	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		return fmt.Errorf("configuration file not found: %s", configPath)
	}

	manager, err := config.NewManager(config.Options{
		SchemaPath: "cmd/schemas/config.cue",
		ConfigPath: configPath,
	})
	if err != nil {
		return fmt.Errorf("configuration validation failed: %w", err)
	}
	defer manager.Close()

	if err := manager.Validate(); err != nil {
		return fmt.Errorf("configuration validation failed: %w", err)
	}

	fmt.Println("Configuration syntax is valid")
	fmt.Println("Configuration validation completed successfully")
	return nil
}
