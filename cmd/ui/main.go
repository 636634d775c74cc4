package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"bot-builder-go/internal/client"
	"bot-builder-go/internal/config"
	"bot-builder-go/internal/database"
	"bot-builder-go/internal/logger"
	"bot-builder-go/internal/metrics"
	"bot-builder-go/internal/quickstrategy"
	"bot-builder-go/internal/runner"
	"bot-builder-go/internal/session"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

const shutdownTimeout = 5 * time.Second

func main() {
	// Load configuration
	cfg, err := config.LoadConfig("./configs")
	if err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
			os.Exit(1)
		}
		cfg = config.Default()
	}

	// Initialize logger
	log, err := logger.NewLogger(cfg.Logger.Level, cfg.Logger.Format)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	// Connect to the database
	db, err := database.NewDatabase(&cfg)
	if err != nil {
		log.Fatal("Failed to connect to database", zap.Error(err))
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	m := metrics.New(registry)

	strategies, err := quickstrategy.FromConfig(cfg.Workspace, log, quickstrategy.WithMetrics(m))
	if err != nil {
		log.Fatal("Failed to load quick strategies", zap.Error(err))
	}

	bot := runner.NewEngine(log, cfg.Runner, db, runner.NewDryRunExecutor(log))
	documents := database.NewDocumentStore(db)
	sessions := session.NewManager(log, documents, bot, m)
	accounts := client.NewRestClient(&cfg.API, log)

	apiHandler := NewAPIHandler(log, documents, sessions, strategies, bot, accounts)
	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Server.Port),
		Handler: NewRouter(apiHandler, registry),
	}

	serverErrors := make(chan error, 1)
	go func() {
		log.Info("Starting web server", zap.String("address", srv.Addr))
		serverErrors <- srv.ListenAndServe()
	}()

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-serverErrors:
		log.Fatal("Web server failed", zap.Error(err))

	case sig := <-shutdown:
		log.Info("Shutting down", zap.Stringer("signal", sig))

		ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		if err := srv.Shutdown(ctx); err != nil {
			log.Error("Graceful shutdown did not complete", zap.Duration("timeout", shutdownTimeout), zap.Error(err))
			if err := srv.Close(); err != nil {
				log.Error("Failed to close server", zap.Error(err))
			}
		}
		sessions.CloseAll()
		if err := bot.Stop(ctx); err != nil {
			log.Error("Failed to stop bot", zap.Error(err))
		}
		log.Info("Web server stopped")
	}
}
