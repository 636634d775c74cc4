package main

import (
	"errors"
	"fmt"
	"os"

	"bot-builder-go/internal/config"
	"bot-builder-go/internal/logger"
	"bot-builder-go/internal/quickstrategy"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

// app holds what every subcommand needs. It is filled in by the root
// command's pre-run hook.
type app struct {
	cfg    config.Config
	log    *zap.Logger
	engine *quickstrategy.Engine
}

var current app

var rootCmd = &cobra.Command{
	Use:   "botbuilder",
	Short: "Bot builder workspace tools",
	Long: `botbuilder manages bot programs outside the browser: list and describe quick strategies,
expand them into saved documents, compare documents and run them in dry-run mode.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		dir, _ := cmd.Flags().GetString("config")
		a, err := newApp(dir)
		if err != nil {
			return err
		}
		current = a
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if current.log != nil {
			_ = current.log.Sync()
		}
	},
}

func newApp(configDir string) (app, error) {
	cfg, err := config.LoadConfig(configDir)
	if err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return app{}, fmt.Errorf("could not load config: %w", err)
		}
		cfg = config.Default()
	}

	log, err := logger.NewLogger(cfg.Logger.Level, cfg.Logger.Format)
	if err != nil {
		return app{}, fmt.Errorf("could not initialize logger: %w", err)
	}

	engine, err := quickstrategy.FromConfig(cfg.Workspace, log)
	if err != nil {
		return app{}, err
	}
	return app{cfg: cfg, log: log, engine: engine}, nil
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().String("config", "./configs", "Directory containing config.yml")
}

func main() {
	Execute()
}
