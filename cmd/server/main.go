package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"taskmanager/internal/config"
	"taskmanager/internal/logger"
	"taskmanager/internal/server"
	"taskmanager/internal/version"

	"github.com/spf13/cobra"
)

var configPath string

var rootCmd = &cobra.Command{
	Use:   "taskmanager",
	Short: "Task manager API server",
	Long: `Serve the task manager REST API.

Settings come from built-in defaults, then the TOML file named by --config
or CONFIG_FILE, then environment variables (a .env file is loaded first).

Examples:
  taskmanager                          # firebase identity, MongoDB on localhost
  taskmanager --config taskmanager.toml
  IDENTITY_PROVIDER=local LOCAL_IDENTITY_SECRET=dev MONGODB_URI=memory:// taskmanager`,
	Version:       version.Get().String(),
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE:          runServer,
}

func init() {
	rootCmd.Flags().StringVar(&configPath, "config", "", "path to a TOML config file")
}

func runServer(cmd *cobra.Command, _ []string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	log := logger.New(cfg.Log, os.Stdout)

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	srv, err := server.New(ctx, cfg, log)
	if err != nil {
		return fmt.Errorf("failed to create server: %w", err)
	}
	defer func() {
		if err := srv.Close(); err != nil {
			log.Error().Err(err).Msg("close")
		}
	}()

	return srv.Run(ctx)
}

func main() {
	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
