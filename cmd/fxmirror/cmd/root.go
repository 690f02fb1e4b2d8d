package cmd

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/rustyeddy/fxmirror/config"
	"github.com/rustyeddy/fxmirror/internal/logger"
)

var rootCmd = &cobra.Command{
	Use:   "fxmirror",
	Short: "Mirror brokerage client exposure into a hedge book",
	Long: `fxmirror reads the per-symbol net client exposure from a manager feed,
consolidates it into USD pairs and trades a hedge position that mirrors it.

It provides tools for:
  - Running the decision cycle headless or behind a status API
  - Paper trading against a seeded in-memory terminal
  - Live execution through OANDA
  - Generating and validating configuration files
  - Querying the SQLite trade journal`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

var (
	cfgPath  string
	logLevel string
	envFile  string
)

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() error {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		return err
	}
	return nil
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgPath, "config", "c", "", "path to config file (YAML or JSON); defaults are used when empty")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level override: debug|info|warn|error")
	rootCmd.PersistentFlags().StringVar(&envFile, "env-file", ".env", "dotenv file with secrets; ignored when missing")
}

// loadConfig reads the dotenv file, then the config file (or the defaults),
// and overlays secrets from the environment.
func loadConfig() (*config.Config, error) {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("load %s: %w", envFile, err)
		}
	}

	cfg := config.Default()
	if cfgPath != "" {
		var err error
		if cfg, err = config.LoadFromFile(cfgPath); err != nil {
			return nil, err
		}
	}
	return cfg.ApplyEnv(os.LookupEnv), nil
}

func newLogger(cfg *config.Config) (*zap.Logger, error) {
	level := cfg.Log.Level
	if logLevel != "" {
		level = logLevel
	}
	return logger.New(level)
}
