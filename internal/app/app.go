package app

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/jedib0t/go-pretty/v6/table"

	"CommitteeHarvester/internal/config"
	"CommitteeHarvester/internal/infrastructure/journal"
	"CommitteeHarvester/internal/infrastructure/scholars"
	"CommitteeHarvester/internal/infrastructure/storage"
	"CommitteeHarvester/internal/infrastructure/store"
	"CommitteeHarvester/internal/logging"
	"CommitteeHarvester/internal/usecase"
)

// Application wires configuration into the pipeline stages each subcommand runs.
type Application struct {
	cfg    config.Config
	logger *slog.Logger
	client *scholars.Client
}

// New builds a runnable application instance.
func New(cfg config.Config, baseLogger *slog.Logger) *Application {
	if baseLogger == nil {
		baseLogger = logging.New(cfg.Logging.Level)
	}

	return &Application{
		cfg:    cfg,
		logger: baseLogger,
		client: scholars.NewClient(cfg.API, cfg.Crawl, nil),
	}
}

// Crawl builds the worklist snapshot from the directory listing.
func (a *Application) Crawl(ctx context.Context) error {
	crawler := usecase.NewCrawler(a.client, a.cfg.Crawl, a.logger.With("component", "crawler"))
	count, err := crawler.Run(ctx, a.cfg.Paths.Worklist)
	if err != nil {
		return fmt.Errorf("crawl directory: %w", err)
	}

	a.logger.Info("worklist written", "path", a.cfg.Paths.Worklist, "profiles", count)
	return nil
}

// Harvest runs this invocation's chunk of the worklist. A non-empty retryFile
// restricts the worklist to its identifiers before chunking.
func (a *Application) Harvest(ctx context.Context, retryFile string) error {
	profiles, err := usecase.LoadWorklist(a.cfg.Paths.Worklist)
	if err != nil {
		return err
	}

	restrict, err := usecase.LoadRestrictSet(retryFile)
	if err != nil {
		return err
	}

	roleStore, err := store.NewFileStore(a.cfg.Paths.StoreDir)
	if err != nil {
		return err
	}

	fetchJournal, err := journal.New(a.cfg.Paths.LogDir, a.cfg.Chunk.Index)
	if err != nil {
		return err
	}

	chunk := usecase.Partition(profiles, a.cfg.Chunk.Index, a.cfg.Chunk.Total, restrict)
	workers := usecase.HarvestWorkers(a.cfg.Workers, a.cfg.WorkersExplicit, restrict != nil)
	a.logger.Info("chunk selected",
		"chunk", a.cfg.Chunk.Index,
		"of", a.cfg.Chunk.Total,
		"entries", len(chunk),
		"worklist", len(profiles),
		"retry_mode", restrict != nil,
		"workers", workers)

	fetcher := usecase.NewFetcher(a.client, a.cfg.Retry, a.logger.With("component", "fetcher"))
	harvester := usecase.NewHarvester(usecase.HarvesterDeps{
		Fetcher: fetcher,
		Store:   roleStore,
		Journal: fetchJournal,
		Logger:  a.logger.With("component", "harvester"),
	}, workers, a.cfg.Output.Mode, a.cfg.Chunk.Index)

	summary, err := harvester.Run(ctx, chunk)
	if err != nil {
		return err
	}

	printHarvestSummary(summary)
	return nil
}

// Merge folds every artifact into the merged dataset file.
func (a *Application) Merge(_ context.Context) error {
	roleStore, err := store.NewFileStore(a.cfg.Paths.StoreDir)
	if err != nil {
		return err
	}

	dataset, stats, err := usecase.Merge(roleStore, a.cfg.Output.Mode, a.logger.With("component", "merge"))
	if err != nil {
		return err
	}

	if err := usecase.WriteMerged(a.cfg.Paths.MergedOutput, dataset); err != nil {
		return err
	}

	a.logger.Info("merged dataset written", "path", a.cfg.Paths.MergedOutput)
	printMergeSummary(stats)
	return nil
}

// Load upserts the merged dataset into Postgres.
func (a *Application) Load(ctx context.Context) error {
	if a.cfg.Database.DSN == "" {
		return fmt.Errorf("load requires database.dsn (or DATABASE_DSN)")
	}

	dataset, err := usecase.ReadMerged(a.cfg.Paths.MergedOutput)
	if err != nil {
		return err
	}

	sink, err := storage.Open(ctx, a.cfg.Database.DSN)
	if err != nil {
		return err
	}
	defer sink.Close()

	loaded := 0
	for id, roles := range dataset {
		if err := sink.UpsertRoles(ctx, roles); err != nil {
			return fmt.Errorf("load subject %s: %w", id, err)
		}
		loaded += len(roles)
	}

	a.logger.Info("load complete", "subjects", len(dataset), "roles", loaded)
	return nil
}

func printHarvestSummary(summary usecase.Summary) {
	tw := table.NewWriter()
	tw.SetOutputMirror(os.Stdout)
	tw.AppendHeader(table.Row{"Processed", "Fetched", "Empty", "Skipped", "Failed", "Exhausted", "Retried"})
	tw.AppendRow(table.Row{
		summary.Processed, summary.Fetched, summary.Empty,
		summary.Skipped, summary.Failed, summary.Exhausted, summary.Retried,
	})
	tw.Render()
}

func printMergeSummary(stats usecase.MergeStats) {
	tw := table.NewWriter()
	tw.SetOutputMirror(os.Stdout)
	tw.AppendHeader(table.Row{"Merged", "Unique Keys", "Skipped", "Empty"})
	tw.AppendRow(table.Row{stats.Merged, stats.UniqueKeys, stats.Skipped, stats.Empty})
	tw.Render()
}
