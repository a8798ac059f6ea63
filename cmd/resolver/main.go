// Package main provides the resolver CLI that runs entity resolution batches
// against the catalog store.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/primerjalnik/backend/config"
	"github.com/primerjalnik/backend/internal/app"
	"github.com/primerjalnik/backend/internal/infrastructure/logging"
)

var (
	// Global flags
	outputJSON bool
	verbose    bool

	// Configuration and logger
	cfg    *config.Config
	logger zerolog.Logger
)

// rootCmd represents the base command.
var rootCmd = &cobra.Command{
	Use:   "resolver",
	Short: "Entity resolution batch jobs for the price comparison catalog",
	Long: `Resolver groups raw retailer listings into canonical products.

Use this tool to:
- Ingest scraped listings from a JSON file
- Run a resolution batch once or on an interval
- Verify that every listing belongs to exactly one product
- Export the price comparison workbook

Configuration is read from PRIMERJALNIK_* environment variables, .env and config.yaml.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		cfg, err = config.Load()
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}

		logFormat := "console"
		if outputJSON {
			logFormat = "json"
		}
		level := cfg.Log.Level
		if verbose {
			level = "debug"
		}

		logger = logging.New(logging.Config{
			Level:       level,
			Format:      logFormat,
			Output:      os.Stderr,
			ServiceName: "resolver",
		})
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVar(&outputJSON, "json", false, "output in JSON format")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")

	rootCmd.AddCommand(newIngestCmd())
	rootCmd.AddCommand(newRunCmd())
	rootCmd.AddCommand(newWatchCmd())
	rootCmd.AddCommand(newVerifyCmd())
	rootCmd.AddCommand(newExportCmd())
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// withApp builds the application for one command and tears it down after.
func withApp(fn func(ctx context.Context, a *app.App) error) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := app.New(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer a.Close()

	return fn(ctx, a)
}
