package main

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"

	"github.com/ujcatapi/ujcatapi/cmd/ujcatapi/internal/config"
	"github.com/ujcatapi/ujcatapi/cmd/ujcatapi/internal/constants"
	"github.com/ujcatapi/ujcatapi/cmd/ujcatapi/internal/logging"
	"github.com/ujcatapi/ujcatapi/cmd/ujcatapi/internal/preflight"
	"github.com/ujcatapi/ujcatapi/cmd/ujcatapi/internal/reporting"
	"github.com/ujcatapi/ujcatapi/cmd/ujcatapi/internal/sanitize"
	"github.com/ujcatapi/ujcatapi/cmd/ujcatapi/internal/server"
)

func main() {
	configPath := flag.String("config", "", "path to configuration file (default: "+constants.DefaultConfigPath+")")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	if cfg.Logging.Path != "" {
		if _, err := preflight.Run(preflight.LogFile(cfg.Logging.Path)); err != nil {
			fmt.Fprintf(os.Stderr, "Preflight checks failed: %v\n", err)
			os.Exit(1)
		}
	}

	sanitizer := sanitize.New(sanitize.Options{
		AdditionalFields: cfg.Logging.AdditionalSensitiveFields,
	})

	reporter, err := reporting.New(reporting.Config{
		Enabled:     cfg.Sentry.Enabled,
		DSN:         cfg.Sentry.DSN,
		Environment: cfg.Sentry.Environment,
		Release:     cfg.Sentry.Release,
		SampleRate:  cfg.Sentry.SampleRate,
	}, sanitizer)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize error reporting: %v\n", err)
		os.Exit(1)
	}

	logging.Init(loggerConfig(cfg, sanitizer, reporter))
	logger := logging.GetLogger()

	logger.WithFields(map[string]any{
		"addr":             cfg.Server.Addr(),
		"environment":      cfg.Environment,
		"error_reporting":  reporter.Enabled(),
		"redact_sensitive": cfg.Logging.RedactSensitive,
		"sensitive_fields": len(sanitizer.Fields()),
		"cors_origins":     cfg.CORS.AllowedOriginsRegexps,
	}).Info("Configuration loaded")

	srv, err := server.New(server.Options{
		Config:    cfg,
		Logger:    logger,
		Sanitizer: sanitizer,
		Reporter:  reporter,
	})
	if err != nil {
		logger.ErrorWithErr("Failed to create server", err)
		os.Exit(1)
	}

	if err := srv.Run(); err != nil {
		logger.ErrorWithErr("Server error", err)
		os.Exit(1)
	}

	logger.Info("Server stopped gracefully")
}

// loggerConfig maps the logging section of cfg onto the logger. With a log
// directory, console output also goes to stdout while the file gets the
// simple format.
func loggerConfig(cfg *config.AppConfig, sanitizer *sanitize.Sanitizer, reporter *reporting.Reporter) logging.LoggerConfig {
	lc := logging.LoggerConfig{
		Level:            logging.Level(cfg.Logging.Level),
		Format:           cfg.Logging.Format,
		ServiceName:      constants.ServiceName,
		Version:          config.Version(),
		Sanitizer:        sanitizer,
		DisableRedaction: !cfg.Logging.RedactSensitive,
	}
	if cfg.Logging.Path != "" {
		lc.FilePath = filepath.Join(cfg.Logging.Path, constants.DefaultLogFile)
		lc.DualOutput = cfg.Logging.Format == logging.FormatConsole
	}
	if reporter.Enabled() {
		lc.Reporter = reporter
	}
	return lc
}
