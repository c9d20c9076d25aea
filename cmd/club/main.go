package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"club-registration/internal/config"
)

const (
	envfileFlagName    = "envfile"
	envFileDefaultName = ".env"
)

var (
	envFilename string
	cfg         config.Config
	logger      *slog.Logger
)

var rootCmd = &cobra.Command{
	Use:   "club",
	Short: "Sports club registration front-end",
	Long: "Registration front-end for trainees and coaches.\n\n" +
		"Configuration is read from the environment, optionally seeded from an env file.",
	SilenceUsage:      true,
	PersistentPreRunE: setup,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&envFilename, envfileFlagName, envFileDefaultName,
		"env file to load before reading the environment")
	rootCmd.AddCommand(serveCmd, optionsCmd, reportCmd)
}

func setup(cmd *cobra.Command, args []string) error {
	if err := godotenv.Load(envFilename); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("load %s: %w", envFilename, err)
	}
	var err error
	cfg, err = config.FromEnv()
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}
	logger = newLogger(cfg.LogLevel)
	slog.SetDefault(logger)
	return nil
}

func newLogger(level string) *slog.Logger {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: lvl}))
}

func main() {
	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		os.Exit(1)
	}
}
