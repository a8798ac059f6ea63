package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/primerjalnik/backend/internal/app"
	"github.com/primerjalnik/backend/internal/domain"
	"github.com/primerjalnik/backend/internal/infrastructure/export"
	"github.com/primerjalnik/backend/internal/usecase"
)

// newIngestCmd creates the ingest subcommand.
func newIngestCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "ingest FILE",
		Short: "Store scraped listings from a JSON array file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			rows, err := readListings(args[0])
			if err != nil {
				return err
			}
			return withApp(func(ctx context.Context, a *app.App) error {
				report, err := a.Resolution.Ingest(ctx, rows)
				if err != nil {
					return err
				}
				return printResult(cmd.OutOrStdout(), report, fmt.Sprintf(
					"Accepted %d listings, rejected %d", len(report.Accepted), len(report.Rejected)))
			})
		},
	}
}

// newRunCmd creates the run subcommand.
func newRunCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Resolve pending listings and re-merge single-retailer products once",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(func(ctx context.Context, a *app.App) error {
				report, err := runOnce(ctx, a)
				if err != nil {
					return err
				}
				return printResult(cmd.OutOrStdout(), report, summarize(report))
			})
		},
	}
}

// newWatchCmd creates the watch subcommand.
func newWatchCmd() *cobra.Command {
	var interval time.Duration

	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Run resolution on a fixed interval until interrupted",
		RunE: func(cmd *cobra.Command, args []string) error {
			if interval <= 0 {
				interval = cfg.Resolution.Interval
			}
			if interval <= 0 {
				return errors.New("interval must be positive")
			}

			return withApp(func(ctx context.Context, a *app.App) error {
				logger.Info().Dur("interval", interval).Msg("watching for pending listings")

				ticker := time.NewTicker(interval)
				defer ticker.Stop()

				for {
					report, err := runOnce(ctx, a)
					if err != nil && ctx.Err() == nil {
						logger.Error().Err(err).Msg("resolution run failed")
					} else if err == nil {
						logger.Info().Msg(summarize(report))
					}

					select {
					case <-ctx.Done():
						logger.Info().Msg("stopping")
						return nil
					case <-ticker.C:
					}
				}
			})
		},
	}

	cmd.Flags().DurationVar(&interval, "interval", 0, "time between runs (default: resolution.interval)")
	return cmd
}

// newVerifyCmd creates the verify subcommand.
func newVerifyCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "verify",
		Short: "Check that every resolved listing belongs to exactly one product",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(func(ctx context.Context, a *app.App) error {
				report, err := a.Resolution.VerifyPartition(ctx)
				if err != nil {
					return err
				}
				if err := printResult(cmd.OutOrStdout(), report, fmt.Sprintf(
					"%d listings, %d products, %d unresolved, %d violations",
					report.Listings, report.Products, report.Unresolved, len(report.Violations))); err != nil {
					return err
				}
				return report.Err()
			})
		},
	}
}

// newExportCmd creates the export subcommand.
func newExportCmd() *cobra.Command {
	var out string

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Write the price comparison workbook",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(func(ctx context.Context, a *app.App) error {
				products, err := a.Store.ListProducts(ctx)
				if err != nil {
					return fmt.Errorf("loading products: %w", err)
				}
				if err := export.SaveXLSX(out, products); err != nil {
					return err
				}
				return printResult(cmd.OutOrStdout(), map[string]interface{}{
					"file":     out,
					"products": len(products),
				}, fmt.Sprintf("Wrote %d products to %s", len(products), out))
			})
		},
	}

	cmd.Flags().StringVarP(&out, "out", "o", "prices.xlsx", "output file")
	return cmd
}

// runOnce runs a full resolution pass and refreshes search when the catalog
// changed.
func runOnce(ctx context.Context, a *app.App) (usecase.RunReport, error) {
	report, err := a.Resolution.Run(ctx)
	if err != nil {
		return report, err
	}
	if report.Changed() {
		if err := a.Search.Refresh(ctx); err != nil {
			logger.Warn().Err(err).Msg("refreshing search after run")
		}
	}
	return report, nil
}

func summarize(r usecase.RunReport) string {
	return fmt.Sprintf(
		"processed %d (auto %d, ai %d, standalone %d, failed %d), merged %d of %d examined, %d AI calls in %dms",
		r.Resolution.Processed, r.Resolution.AutoMerged, r.Resolution.AIConfirmed,
		r.Resolution.Standalone, r.Resolution.Failed,
		r.Merge.Merged, r.Merge.Examined,
		r.Resolution.AICalls+r.Merge.AICalls, r.DurationMs)
}

func readListings(path string) ([]domain.RawListing, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read listings: %w", err)
	}
	var rows []domain.RawListing
	if err := json.Unmarshal(data, &rows); err != nil {
		return nil, fmt.Errorf("parse listings: %w", err)
	}
	return rows, nil
}

// printResult writes v as JSON with --json, otherwise the human summary.
func printResult(w io.Writer, v interface{}, summary string) error {
	if outputJSON {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	}
	_, err := fmt.Fprintln(w, summary)
	return err
}
