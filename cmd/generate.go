package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
)

var (
	outputFile string
	force      bool
)

// generateCmd represents the generate command.
var generateCmd = &cobra.Command{
	Use:   "generate",
	Short: "Generate a sample configuration file",
	Long:  `Generate a sample configuration file for gosnmpd.`,
	Example: `  # Generate config to stdout
  gosnmpd generate

  # Generate config to a specific file
  gosnmpd generate --output config.yaml

  # Overwrite an existing file
  gosnmpd generate --output config.yaml --force`,
	RunE: generateConfig,
}

func init() {
	rootCmd.AddCommand(generateCmd)
	generateCmd.Flags().StringVarP(&outputFile, "output", "o", "", "Output file path (default: stdout)")
	generateCmd.Flags().BoolVarP(&force, "force", "f", false, "Overwrite existing file")
}

func generateConfig(cmd *cobra.Command, args []string) error {
	configYAML := `# gosnmpd configuration
# Sample configuration with default values. Modify to fit your environment.

agent:
  port: 161
  max_packet: 8000
  community:
    - "public"
  sys_contact: ""
  sys_name: ""
  sys_location: ""
  host_ident: "gosnmpd"
  host: "0.0.0.0"
  read_timeout: "30s"
  plugin_dir: ""
  stats_db: ""

proxy:
  timeout: "2s"
  max_retries: 2
  retry_delay: "200ms"

metrics:
  enabled: true
  listen_address: ":9090"
  metrics_path: "/metrics"
  health_path: "/health"

stats:
  enabled: false
  connection_string: "./gosnmpd_requests.db"
  retention_days: 7
  flush_interval: "5s"
  batch_size: 50

logging:
  level: "info"
  format: "json"
`

	if outputFile == "" {
		fmt.Print(configYAML)
		return nil
	}

	if _, err := os.Stat(outputFile); err == nil && !force {
		return fmt.Errorf("file %s already exists, use --force to overwrite", outputFile)
	}

	if dir := filepath.Dir(outputFile); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
	}

	if err := os.WriteFile(outputFile, []byte(configYAML), 0644); err != nil {
		return fmt.Errorf("failed to write configuration file: %w", err)
	}

	fmt.Printf("Configuration file generated: %s\n", outputFile)
	return nil
}
