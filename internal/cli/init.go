// Package cli holds the initialization steps shared by the messbook
// entrypoints.
package cli

import (
	"os"

	"github.com/joho/godotenv"

	"messbook/internal/config"
	applog "messbook/internal/log"
	"messbook/internal/storage"
)

// SetupLogger installs the default structured logger and returns it.
func SetupLogger(component string) *applog.Logger {
	cfg := applog.DefaultConfig()
	cfg.Component = component
	logger := applog.New(cfg)
	applog.SetDefault(logger)
	return logger
}

// LoadEnvFile loads .env for local development. Missing files are fine.
func LoadEnvFile() {
	_ = godotenv.Load()
}

// LoadAndValidateConfig loads configuration or exits on validation
// failure.
func LoadAndValidateConfig(logger *applog.Logger) *config.Config {
	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		logger.Error("Configuration validation failed", applog.FieldError, err)
		os.Exit(1)
	}
	return cfg
}

// InitRepository opens the ledger database or exits on failure.
func InitRepository(logger *applog.Logger, dbPath string) *storage.Repository {
	repo, err := storage.NewRepository(dbPath)
	if err != nil {
		logger.Error("Failed to initialize ledger database", applog.FieldError, err, "path", dbPath)
		os.Exit(1)
	}
	return repo
}
