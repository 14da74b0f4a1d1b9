package commands

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/energyexe/harmonizer/internal/contracts"
	"github.com/energyexe/harmonizer/pkg/config"
	"github.com/energyexe/harmonizer/pkg/database"
	"github.com/energyexe/harmonizer/pkg/logger"
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "harmonizer",
	Short: "Generation telemetry harmonization engine",
	Long: `Harmonizer turns raw multi-source generation telemetry into the
canonical hourly fact table.

Usage:
  go run ./cmd/harmonizer [command]

Examples:
  go run ./cmd/harmonizer process --date 2024-03-10
  go run ./cmd/harmonizer process --date 2024-03-10 --source ELEXON --check
  go run ./cmd/harmonizer batch --start 2023-01-01 --end 2023-12-31 --monthly --workers 4
  go run ./cmd/harmonizer schedule`,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() error {
	return rootCmd.Execute()
}

// setup loads configuration and builds the logger every command needs.
func setup() (*config.Config, *logger.Logger, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, fmt.Errorf("load config: %w", err)
	}
	return cfg, logger.New(cfg), nil
}

// openDB connects the pool; callers must Close it.
func openDB(cfg *config.Config) (*database.DB, error) {
	db, err := database.New(cfg)
	if err != nil {
		return nil, fmt.Errorf("connect database: %w", err)
	}
	return db, nil
}

// parseDay parses a YYYY-MM-DD flag value as a UTC day.
func parseDay(flag, value string) (time.Time, error) {
	d, err := time.ParseInLocation("2006-01-02", value, time.UTC)
	if err != nil {
		return time.Time{}, fmt.Errorf("--%s must be YYYY-MM-DD: %w", flag, err)
	}
	return d, nil
}

// parseSourceFlag validates an optional --source value.
func parseSourceFlag(value string) (string, error) {
	if value == "" {
		return "", nil
	}
	return contracts.ParseSource(value)
}
