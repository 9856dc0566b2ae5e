package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"mealgraph/internal/app"
	"mealgraph/internal/config"
	"mealgraph/internal/logger"
)

var (
	configPath string
	verbose    bool
)

// openApp is replaced in tests.
var openApp = app.New

var rootCmd = &cobra.Command{
	Use:           "mealctl",
	Short:         "mealctl recomputes and searches the food graph",
	Long:          "mealctl pushes ingredient, recipe, meal and container edits through the nutrition cascade and searches the catalog.",
	SilenceUsage:  true,
	SilenceErrors: true,
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "config.json", "Path to the JSON config file")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Log every cascade step")
}

func withApp(cmd *cobra.Command, run func(context.Context, *app.App) error) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	level := cfg.Level()
	if verbose {
		level = logger.LevelVerbose
	}
	log := logger.New(level, cmd.ErrOrStderr())

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	a, err := openApp(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer a.Close()
	return run(ctx, a)
}
