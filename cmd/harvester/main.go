package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"CommitteeHarvester/internal/app"
	"CommitteeHarvester/internal/config"
	"CommitteeHarvester/internal/logging"
)

var (
	flagChunkID    int
	flagChunkTotal int
	flagWorkers    int
	flagOutputMode string
	flagRetryFile  string
)

func main() {
	root := &cobra.Command{
		Use:   "harvester",
		Short: "Harvests graduate committee participation from the scholars directory",
		Long: `harvester is a batch ETL pipeline over a university research directory.

crawl builds the worklist snapshot from the directory's user listing.
harvest fetches one chunk of the worklist with bounded concurrency, classifies
committee activities into role records, and persists one artifact per subject.
merge folds all artifacts into a single grouped dataset.
load upserts the merged dataset into Postgres.

Chunked runs are launched independently (one process per chunk); keep the chunk
total fixed for the whole run, since chunk boundaries shift when it changes.`,
		SilenceUsage: true,
	}

	root.PersistentFlags().IntVar(&flagChunkID, "chunk-id", -1, "chunk index for this invocation (overrides config)")
	root.PersistentFlags().IntVar(&flagChunkTotal, "chunk-total", 0, "total chunk count (overrides config)")
	root.PersistentFlags().IntVar(&flagWorkers, "workers", 0, "concurrent fetch workers (overrides config)")
	root.PersistentFlags().StringVar(&flagOutputMode, "output-mode", "", "artifact layout: per-entity or chunked")

	root.AddCommand(crawlCmd(), harvestCmd(), mergeCmd(), loadCmd())

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

// buildApp resolves config (file, env, then flags) and wires the application.
func buildApp() (*app.Application, error) {
	cfg := config.Load()

	if flagChunkID >= 0 {
		cfg.Chunk.Index = flagChunkID
	}
	if flagChunkTotal > 0 {
		cfg.Chunk.Total = flagChunkTotal
	}
	if flagWorkers > 0 {
		cfg.Workers = flagWorkers
		cfg.WorkersExplicit = true
	}
	if flagOutputMode != "" {
		cfg.Output.Mode = config.OutputMode(flagOutputMode)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return app.New(cfg, logging.New(cfg.Logging.Level)), nil
}

func crawlCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "crawl",
		Short: "Build the worklist snapshot from the directory listing",
		RunE: func(cmd *cobra.Command, _ []string) error {
			application, err := buildApp()
			if err != nil {
				return err
			}
			return application.Crawl(cmd.Context())
		},
	}
}

func harvestCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "harvest",
		Short: "Fetch and classify committee roles for this invocation's chunk",
		RunE: func(cmd *cobra.Command, _ []string) error {
			application, err := buildApp()
			if err != nil {
				return err
			}
			return application.Harvest(cmd.Context(), flagRetryFile)
		},
	}
	cmd.Flags().StringVar(&flagRetryFile, "retry-file", "", "newline-delimited identifiers to restrict the worklist (retry mode)")
	return cmd
}

func mergeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "merge",
		Short: "Fold all artifacts into the merged dataset",
		RunE: func(cmd *cobra.Command, _ []string) error {
			application, err := buildApp()
			if err != nil {
				return err
			}
			return application.Merge(cmd.Context())
		},
	}
}

func loadCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "load",
		Short: "Upsert the merged dataset into Postgres",
		RunE: func(cmd *cobra.Command, _ []string) error {
			application, err := buildApp()
			if err != nil {
				return err
			}
			return application.Load(cmd.Context())
		},
	}
}
