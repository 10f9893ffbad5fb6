// Package cmd implements commands for the lens executable.
package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/manifest-network/lens/cmd/api"
	"github.com/manifest-network/lens/cmd/common"
	"github.com/manifest-network/lens/config"
	"github.com/manifest-network/lens/log"
)

var (
	// Path to the configuration file.
	configFile string

	rootCmd = &cobra.Command{
		Use:   "lens",
		Short: "Chain data-access layer",
		Run:   rootMain,
	}
)

func rootMain(cmd *cobra.Command, args []string) {
	cfg, err := config.InitConfig(configFile)
	if err != nil {
		log.NewDefaultLogger("init").Error("init failed", "error", err)
		os.Exit(1)
	}
	if err := common.Init(cfg); err != nil {
		log.NewDefaultLogger("init").Error("init failed", "error", err)
		os.Exit(1)
	}
	logger := common.RootLogger()

	if cfg.Server == nil {
		logger.Error("no services configured; provide a server section")
		os.Exit(1)
	}

	apiService, err := api.Init(cfg)
	if err != nil {
		logger.Error("failed to initialize api service", "err", err)
		os.Exit(1)
	}
	defer apiService.Shutdown()

	logger.Info("started all services")
	apiService.Start()
}

// Execute spawns the main entry point after handling the config file.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.Flags().StringVar(&configFile, "config", "./config/lens.yml", "path to the config.yml file")
	api.Register(rootCmd)
}
