package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/matheusjcandido/transcription/internal/config"
	"github.com/matheusjcandido/transcription/internal/metrics"
	"github.com/matheusjcandido/transcription/internal/server"
	"github.com/matheusjcandido/transcription/internal/transcriber"
	"github.com/matheusjcandido/transcription/internal/transcription"
)

const (
	defaultConfigPath = "configs/config.yaml"
	defaultEnvPath    = ".env"
	serviceName       = "audio-transcriber"
	serviceVersion    = "1.0.0"
)

func main() {
	// Parse command line flags
	configPath := flag.String("config", defaultConfigPath, "Path to configuration file")
	envPath := flag.String("env", defaultEnvPath, "Path to an optional .env file")
	flag.Parse()

	if err := config.LoadDotEnv(*envPath); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load %s: %v\n", *envPath, err)
		os.Exit(1)
	}

	// The default config file is optional, an explicit one is not
	path := *configPath
	if path == defaultConfigPath {
		if _, err := os.Stat(path); errors.Is(err, fs.ErrNotExist) {
			path = ""
		}
	}

	cfg, err := config.Load(path, os.Getenv)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	logger := initLogger(cfg.Logging)

	logger.Info("Service starting",
		slog.String("service", serviceName),
		slog.String("version", serviceVersion),
		slog.String("config_path", path),
	)

	// Log configuration summary (without sensitive data)
	logger.Info("Configuration loaded",
		slog.String("http_address", fmt.Sprintf("%s:%d", cfg.HTTP.Address, cfg.HTTP.Port)),
		slog.String("provider", cfg.Transcription.Provider),
		slog.String("model", cfg.Transcription.Model),
		slog.String("default_language", cfg.Transcription.DefaultLanguage),
		slog.String("temp_dir", cfg.Upload.TempDir),
		slog.Int("recommended_max_mb", cfg.Upload.RecommendedMaxMB),
		slog.Bool("enforce_max_size", cfg.Upload.EnforceMaxSize),
		slog.Bool("api_key_configured", cfg.Transcription.APIKey != ""),
		slog.Bool("env_credential_only", cfg.EnvCredentialOnly()),
		slog.String("log_level", cfg.Logging.Level),
	)

	// Initialize Prometheus metrics
	appMetrics := metrics.NewMetrics(nil)
	logger.Info("Prometheus metrics initialized")

	provider, err := newProvider(cfg.Transcription)
	if err != nil {
		logger.Error("Failed to create transcription provider", slog.String("error", err.Error()))
		os.Exit(1)
	}

	service, err := transcriber.NewService(transcriber.Config{
		TempDir:             cfg.Upload.TempDir,
		AllowedExtensions:   cfg.Upload.AllowedExtensions,
		Model:               cfg.Transcription.Model,
		RecommendedMaxBytes: cfg.Upload.GetRecommendedMaxBytes(),
		EnforceMaxSize:      cfg.Upload.EnforceMaxSize,
	}, provider, appMetrics, logger)
	if err != nil {
		logger.Error("Failed to create transcriber", slog.String("error", err.Error()))
		os.Exit(1)
	}
	logger.Info("Transcriber initialized", slog.String("provider", service.ProviderName()))

	httpServer, err := server.NewHTTPServer(cfg, logger, service, appMetrics)
	if err != nil {
		logger.Error("Failed to create HTTP server", slog.String("error", err.Error()))
		os.Exit(1)
	}

	if err := httpServer.Start(); err != nil {
		logger.Error("Failed to start HTTP server", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// Setup signal handling for graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	logger.Info("Service started successfully, waiting for signals...")

	sig := <-sigChan
	logger.Info("Received shutdown signal", slog.String("signal", sig.String()))

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := httpServer.Stop(shutdownCtx); err != nil {
		logger.Error("Error stopping HTTP server", slog.String("error", err.Error()))
	}

	if stats, ok := service.Stats(); ok {
		logger.Info("Final transcription statistics",
			slog.Uint64("total_requests", stats.TotalRequests),
			slog.Uint64("success_requests", stats.SuccessRequests),
			slog.Uint64("failed_requests", stats.FailedRequests),
		)
	}

	logger.Info("Service stopped")
}

// newProvider builds the transcription backend named in the configuration
func newProvider(cfg config.TranscriptionConfig) (transcription.Provider, error) {
	switch cfg.Provider {
	case config.ProviderHTTP:
		return transcription.NewClient(transcription.Config{
			BaseURL:   cfg.BaseURL,
			Model:     cfg.Model,
			Timeout:   cfg.GetTimeoutDuration(),
			UserAgent: serviceName + "/" + serviceVersion,
		})
	case config.ProviderOpenAI:
		return transcription.NewOpenAIProvider(transcription.OpenAIConfig{
			BaseURL: cfg.BaseURL,
			Model:   cfg.Model,
			Timeout: cfg.GetTimeoutDuration(),
		}), nil
	default:
		return nil, fmt.Errorf("unknown provider %q", cfg.Provider)
	}
}

// initLogger creates and configures the structured logger based on configuration
func initLogger(cfg config.LoggingConfig) *slog.Logger {
	var level slog.Level
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{
		Level:     level,
		AddSource: level == slog.LevelDebug,
	}

	var output *os.File
	switch cfg.Output {
	case "stderr":
		output = os.Stderr
	case "stdout", "":
		output = os.Stdout
	default:
		// Anything else is a file path
		file, err := os.OpenFile(cfg.Output, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to open log file %s: %v, falling back to stdout\n", cfg.Output, err)
			output = os.Stdout
		} else {
			output = file
		}
	}

	var handler slog.Handler
	if cfg.Format == "json" {
		handler = slog.NewJSONHandler(output, opts)
	} else {
		handler = slog.NewTextHandler(output, opts)
	}

	return slog.New(handler)
}
