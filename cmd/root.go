// Package cmd provides the command-line interface for gosnmpd.
package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/geekxflood/common/config"
	"github.com/geekxflood/common/logging"
	"github.com/geekxflood/gosnmpd/internal/agent"
	"github.com/geekxflood/gosnmpd/internal/metrics"
	"github.com/geekxflood/gosnmpd/internal/reload"
	"github.com/geekxflood/gosnmpd/internal/server"
	"github.com/geekxflood/gosnmpd/internal/stats"
	"github.com/geekxflood/gosnmpd/internal/validate"
	"github.com/spf13/cobra"
)

var (
	cfgFile string
	version = "dev" // set by build flags
)

// rootCmd represents the base command when called without any subcommands.
var rootCmd = &cobra.Command{
	Use:     "gosnmpd",
	Version: version,
	Short:   "An SNMPv1 agent backed by a user-extensible plugin MIB tree",
	Long: `gosnmpd serves SNMPv1 GetRequest and GetNextRequest PDUs out of a
MIB tree assembled from plugins (deferred producer functions) and proxies
(delegation to upstream agents).`,
	Example: `  # Start the agent with default config
  gosnmpd

  # Start with a specific configuration file
  gosnmpd --config /etc/gosnmpd/config.yaml

  # Generate a sample configuration
  gosnmpd generate --output config.yaml

  # Validate a configuration file
  gosnmpd validate --config config.yaml`,
	RunE: runAgent,
}

// Execute adds all child commands to rootCmd and runs it. Called once
// from main.main.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func runAgent(cmd *cobra.Command, args []string) error {
	manager, configPath, err := loadConfig()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	defer manager.Close()

	logLevel, _ := manager.GetString("logging.level", "info")
	logFormat, _ := manager.GetString("logging.format", "json")
	logger, _, err := logging.NewLogger(logging.Config{Level: logLevel, Format: logFormat})
	if err != nil {
		return fmt.Errorf("failed to build logger: %w", err)
	}

	a, err := agent.NewFromConfig(manager, logger)
	if err != nil {
		return fmt.Errorf("failed to build agent: %w", err)
	}

	if pluginDir, _ := manager.GetString("agent.plugin_dir", ""); pluginDir != "" {
		if _, err := a.WatchPluginDir(pluginDir); err != nil {
			return fmt.Errorf("failed to watch plugin directory %s: %w", pluginDir, err)
		}
		fmt.Printf("Watching plugin directory: %s\n", pluginDir)
	}

	statsCfg, err := stats.ConfigFromProvider(manager)
	if err != nil {
		return fmt.Errorf("failed to load stats configuration: %w", err)
	}
	statsLog, err := stats.Open(statsCfg)
	if err != nil {
		return fmt.Errorf("failed to open stats log: %w", err)
	}
	defer statsLog.Close()

	serverCfg, err := server.ConfigFromProvider(manager)
	if err != nil {
		return fmt.Errorf("failed to load server configuration: %w", err)
	}
	validateCfg, err := validate.ConfigFromProvider(manager)
	if err != nil {
		return fmt.Errorf("failed to load request-validation configuration: %w", err)
	}
	srv := server.New(serverCfg, a, logger).WithStats(statsLog).WithValidator(validate.New(validateCfg))

	metricsManager, err := metrics.NewManager(manager, logger)
	if err != nil {
		return fmt.Errorf("failed to build metrics manager: %w", err)
	}
	if err := metricsManager.Start(); err != nil {
		return fmt.Errorf("failed to start metrics server: %w", err)
	}
	defer metricsManager.Stop()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigChan
		fmt.Println("\nReceived shutdown signal, stopping agent...")
		cancel()
	}()

	reloadCfg, err := reload.ConfigFromProvider(manager)
	if err != nil {
		return fmt.Errorf("failed to load reload configuration: %w", err)
	}
	watcher := reload.New(reloadCfg, configPath, "cmd/schemas/config.cue", func(cfg config.Provider) error {
		communities, err := cfg.GetStringSlice("agent.community", a.Communities())
		if err != nil {
			return err
		}
		a.SetCommunities(communities)
		return nil
	}, logger)
	if err := watcher.Start(); err != nil {
		return fmt.Errorf("failed to start config watcher: %w", err)
	}
	defer watcher.Stop()

	if err := srv.Start(ctx); err != nil {
		return fmt.Errorf("failed to start agent: %w", err)
	}

	fmt.Println("gosnmpd started successfully. Press Ctrl+C to stop.")
	<-ctx.Done()

	srv.Shutdown()
	fmt.Println("Agent stopped.")
	return nil
}

func loadConfig() (config.Manager, string, error) {
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
	}

	if configPath == "" {
		fmt.Println("No configuration file found, using schema defaults")
	} else {
		fmt.Printf("Loading configuration from: %s\n", configPath)
	}

	manager, err := config.NewManager(config.Options{
		SchemaPath: "cmd/schemas/config.cue",
		ConfigPath: configPath,
	})
	if err != nil {
		return nil, "", fmt.Errorf("failed to create config manager: %w", err)
	}
	return manager, configPath, nil
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "Configuration file path")
}
