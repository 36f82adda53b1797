package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"flipscout/config"
	"flipscout/metrics"
	"flipscout/models"
	"flipscout/scraper"
	"flipscout/scraper/fixture"
	"flipscout/scraper/redfin"
	"flipscout/services"
	"flipscout/storage"
	"flipscout/utils"
)

func newRunCommand(opts *options) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Collect listings, estimate comps and append the results",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(opts)
			if err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			logger := utils.NewLoggerLevel(utils.ParseLevel(cfg.Run.LogLevel))
			return runPipeline(ctx, cfg, opts.dryRun, logger, cmd)
		},
	}
	cmd.Flags().StringSliceVar(&opts.regions, "regions", nil, "Region (postal) codes to scan, overriding the config")
	cmd.Flags().StringVar(&opts.sink, "sink", "", "Sink to append to: csv, postgres or sqlite")
	cmd.Flags().BoolVar(&opts.dryRun, "dry-run", false, "Run the pipeline without writing to the sink")
	return cmd
}

func runPipeline(ctx context.Context, cfg *config.Config, dryRun bool, logger *utils.Logger, cmd *cobra.Command) error {
	logger.Info("=== flipscout starting ===")
	logger.Info("Config — regions: %v | source: %s | sink: %s | radius: %.2f mi | max price: %.0f",
		cfg.Run.RegionCodes, cfg.Source.Kind, cfg.Sink.Kind, cfg.Screening.RadiusMiles, cfg.Screening.MaxPrice)

	recorder := metrics.NewRecorder("")
	started := time.Now()

	res, err := execute(ctx, cfg, dryRun, logger)
	if res == nil {
		res = &services.Result{Report: &models.RunReport{
			StartedAt:  started,
			FinishedAt: time.Now(),
			Regions:    cfg.Run.RegionCodes,
			Err:        err,
		}}
	}

	insights := services.NewInsightService(cfg.Run.TopDeals, logger)
	if perr := insights.Print(cmd.OutOrStdout(), insights.Generate(res)); perr != nil {
		logger.Warn("Could not print report: %v", perr)
	}

	if path := cfg.Run.MetricsTextfile; path != "" {
		recorder.Observe(res.Report)
		if merr := recorder.WriteTextfile(path); merr != nil {
			logger.Warn("Could not write metrics: %v", merr)
		} else {
			logger.Debug("Metrics written to %s", path)
		}
	}

	if err != nil {
		logger.Error("Run failed: %v", err)
		return err
	}
	logger.Info("=== Done! ForSale: %d | Sold_Comps: %d ===", res.Report.ActiveKept, res.Report.SoldKept)
	return nil
}

func execute(ctx context.Context, cfg *config.Config, dryRun bool, logger *utils.Logger) (*services.Result, error) {
	pipeline, err := services.NewPipeline(cfg, logger)
	if err != nil {
		return nil, err
	}

	src, closeSrc := openSource(cfg, logger)
	defer closeSrc()

	harvest, err := scraper.Collect(ctx, src, cfg.Run.RegionCodes, scraper.Options{
		MaxConcurrency: cfg.Source.MaxConcurrency,
		Interval:       time.Duration(cfg.Source.RateLimitMs) * time.Millisecond,
		MaxRetries:     cfg.Source.MaxRetries,
		RetryDelay:     2 * time.Second,
	}, logger)
	if err != nil {
		return nil, fmt.Errorf("collect listings: %w", err)
	}

	var w storage.TableWriter
	if !dryRun {
		w, err = openSink(ctx, cfg, logger)
		if err != nil {
			return nil, err
		}
		defer w.Close()
	}

	return pipeline.Run(ctx, harvest.Batch(), w)
}

func openSource(cfg *config.Config, logger *utils.Logger) (scraper.Source, func()) {
	if cfg.Source.Kind == "fixture" {
		return fixture.New(cfg.Source.FixtureActive, cfg.Source.FixtureSold, logger), func() {}
	}
	r := redfin.New(cfg.Source, logger)
	return r, func() { _ = r.Close() }
}

func openSink(ctx context.Context, cfg *config.Config, logger *utils.Logger) (storage.TableWriter, error) {
	switch cfg.Sink.Kind {
	case "postgres":
		w, err := storage.NewPostgresWriter(ctx, cfg.DSN())
		if err != nil {
			logger.Error("Failed to connect to PostgreSQL: %v", err)
			logger.Error("Make sure Docker is running: docker compose up -d")
			return nil, err
		}
		logger.Info("[sink] Appending to PostgreSQL %s/%s", cfg.Sink.PostgresHost, cfg.Sink.PostgresDB)
		return w, nil
	case "sqlite":
		w, err := storage.NewSQLiteWriter(ctx, cfg.Sink.SQLitePath)
		if err != nil {
			return nil, err
		}
		logger.Info("[sink] Appending to SQLite %s", cfg.Sink.SQLitePath)
		return w, nil
	default:
		w, err := storage.NewCSVWriter(cfg.Sink.CSVDir)
		if err != nil {
			return nil, err
		}
		logger.Info("[sink] Appending CSV files in %s", cfg.Sink.CSVDir)
		return w, nil
	}
}
