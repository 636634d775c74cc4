package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"bot-builder-go/internal/database"
	"bot-builder-go/internal/runner"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var runCmd = &cobra.Command{
	Use:   "run <document>",
	Short: "Run a saved document in dry-run mode until it completes or is interrupted",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		log := current.log
		cfg := current.cfg.Runner
		if ticks, _ := cmd.Flags().GetInt("max-ticks"); ticks > 0 {
			cfg.MaxTicks = ticks
		}

		db, err := database.NewDatabase(&current.cfg)
		if err != nil {
			return err
		}
		snapshot, err := database.NewDocumentStore(db).Load(args[0])
		if err != nil {
			return err
		}

		engine := runner.NewEngine(log, cfg, db, runner.NewDryRunExecutor(log))
		id, err := engine.Start(cmd.Context(), snapshot)
		if err != nil {
			return err
		}

		sigchan := make(chan os.Signal, 1)
		signal.Notify(sigchan, syscall.SIGINT, syscall.SIGTERM)
		defer signal.Stop(sigchan)

		select {
		case <-engine.Done():
		case <-sigchan:
			log.Info("Shutdown signal received, stopping bot...")
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := engine.Stop(ctx); err != nil {
				log.Error("Bot did not stop in time", zap.Error(err))
			}
		}

		runs, err := engine.Runs(1)
		if err != nil {
			return err
		}
		if len(runs) > 0 {
			r := runs[0]
			fmt.Fprintf(cmd.OutOrStdout(), "run %s: %s after %d ticks\n", id, r.Outcome, r.Ticks)
		}
		return nil
	},
}

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Show recent runs",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		limit, _ := cmd.Flags().GetInt("limit")
		db, err := database.NewDatabase(&current.cfg)
		if err != nil {
			return err
		}
		engine := runner.NewEngine(current.log, current.cfg.Runner, db, runner.NewDryRunExecutor(current.log))
		runs, err := engine.Runs(limit)
		if err != nil {
			return err
		}
		for _, r := range runs {
			fmt.Fprintf(cmd.OutOrStdout(), "%s  %-9s  %4d ticks  %3d blocks  %s\n",
				r.StartedAt.Format(time.RFC3339), r.Outcome, r.Ticks, r.Blocks, r.UUID)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(runCmd, historyCmd)
	runCmd.Flags().Int("max-ticks", 0, "Stop after this many ticks (overrides runner.max_ticks)")
	historyCmd.Flags().Int("limit", 10, "Number of runs to show")
}
