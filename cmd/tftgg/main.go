// Package main implements the tftgg gateway daemon.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"tftgg/internal/config"
	"tftgg/internal/server"
)

const version = "0.1.0"

var flags struct {
	configPath string
	logLevel   string
}

var rootCmd = &cobra.Command{
	Use:   "tftgg",
	Short: "GraphQL gateway for TFT game analytics",
	Long: `tftgg fronts the TFT data service with request coalescing, windowed
batching, result caching, and JS plugin operations.`,
	Version: version,
	RunE:    runServe,
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the gateway version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("tftgg %s\n", version)
	},
}

func init() {
	rootCmd.Flags().StringVar(&flags.configPath, "config", "", "path to config file (json or yaml)")
	rootCmd.Flags().StringVar(&flags.logLevel, "log-level", "", "override the configured log level")
	rootCmd.AddCommand(versionCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// runServe loads the config, starts the server, and blocks until a shutdown
// signal arrives
func runServe(cmd *cobra.Command, args []string) error {
	// A missing .env file is fine; real environment variables still apply
	_ = godotenv.Load()

	cfg, err := config.Load(flags.configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if flags.logLevel != "" {
		cfg.LogLevel = flags.logLevel
	}

	logger := setupLogger(cfg.LogLevel)
	logger.Info().
		Str("version", version).
		Str("config", flags.configPath).
		Str("addr", cfg.ListenAddr()).
		Msg("starting tftgg")

	srv, err := server.New(cfg, logger)
	if err != nil {
		return fmt.Errorf("failed to create server: %w", err)
	}

	if err := srv.Start(); err != nil {
		return fmt.Errorf("failed to start server: %w", err)
	}

	// Wait for shutdown signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit

	logger.Info().Str("signal", sig.String()).Msg("received shutdown signal")

	// Graceful shutdown with timeout
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Stop(ctx); err != nil {
		logger.Error().Err(err).Msg("error during shutdown")
	}
	return nil
}

// setupLogger configures the zerolog logger
func setupLogger(level string) zerolog.Logger {
	var logLevel zerolog.Level
	switch level {
	case "trace":
		logLevel = zerolog.TraceLevel
	case "debug":
		logLevel = zerolog.DebugLevel
	case "info":
		logLevel = zerolog.InfoLevel
	case "warn":
		logLevel = zerolog.WarnLevel
	case "error":
		logLevel = zerolog.ErrorLevel
	default:
		logLevel = zerolog.InfoLevel
	}

	zerolog.SetGlobalLevel(logLevel)

	output := zerolog.ConsoleWriter{
		Out:        os.Stdout,
		TimeFormat: time.RFC3339,
	}

	return zerolog.New(output).With().Timestamp().Logger()
}
