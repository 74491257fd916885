package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"geoshard-pipeline/internal/config"
	"geoshard-pipeline/internal/metrics"
	"geoshard-pipeline/internal/notify"
	"geoshard-pipeline/internal/pipeline"
	"geoshard-pipeline/internal/storage"
	"geoshard-pipeline/internal/store"
)

var (
	configPath string
	verbose    bool
	datasetID  string

	cfg    config.Config
	logger *zap.Logger
)

var rootCmd = &cobra.Command{
	Use:   "geoshard",
	Short: "Geospatial shard-processing pipeline",
	Long: `geoshard ingests a geospatial file, partitions it into a bounded set of
shards, computes per-shard geometric statistics in parallel, and merges the
partial results into a single manifest with job-status tracking and a
rendered outcome notification.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		cfg, err = config.Load(configPath)
		if err != nil {
			return err
		}
		zapCfg := zap.NewProductionConfig()
		if verbose {
			zapCfg.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
		}
		logger, err = zapCfg.Build()
		if err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Sync()
		}
	},
}

var runCmd = &cobra.Command{
	Use:   "run [file]",
	Short: "Process a local geospatial file end to end",
	Long: `Copies the file into the input namespace under ingest/{datasetId}/ and
runs the full workflow synchronously: partition, parallel shard processing,
aggregation, status update, and notification.`,
	Args: cobra.ExactArgs(1),
	RunE: runPipeline,
}

var statusCmd = &cobra.Command{
	Use:   "status [datasetId]",
	Short: "Show the job record for a dataset",
	Args:  cobra.ExactArgs(1),
	RunE:  showStatus,
}

var jobsCmd = &cobra.Command{
	Use:   "jobs",
	Short: "List all jobs",
	RunE:  listJobs,
}

func runPipeline(cmd *cobra.Command, args []string) error {
	filePath := args[0]
	data, err := os.ReadFile(filePath)
	if err != nil {
		return fmt.Errorf("failed to read input file: %w", err)
	}

	if datasetID == "" {
		datasetID = uuid.New().String()
	}

	jobs, err := store.Open(cfg.DBPath)
	if err != nil {
		return fmt.Errorf("failed to open job store: %w", err)
	}
	defer jobs.Close()

	input, err := storage.NewDirStore(cfg.InputDir)
	if err != nil {
		return err
	}
	output, err := storage.NewDirStore(cfg.OutputDir)
	if err != nil {
		return err
	}

	ctx := context.Background()
	key := fmt.Sprintf("ingest/%s/%s", datasetID, filepath.Base(filePath))
	if err := input.Put(ctx, key, data, ""); err != nil {
		return err
	}

	workflow := pipeline.NewWorkflow(pipeline.Deps{
		Input:       input,
		Output:      output,
		Jobs:        jobs,
		Sink:        metrics.NewLogSink(logger),
		Notifier:    notify.NewLogNotifier(logger),
		MaxFileSize: cfg.MaxFileSizeBytes,
		MaxShards:   cfg.MaxShards,
		Log:         logger,
	})

	summary, err := workflow.Run(ctx, key, int64(len(data)))
	if err != nil {
		return fmt.Errorf("pipeline failed: %w", err)
	}
	return printJSON(cmd, summary)
}

func showStatus(cmd *cobra.Command, args []string) error {
	jobs, err := store.Open(cfg.DBPath)
	if err != nil {
		return fmt.Errorf("failed to open job store: %w", err)
	}
	defer jobs.Close()

	rec, err := jobs.GetJob(args[0])
	if err != nil {
		return err
	}
	return printJSON(cmd, rec)
}

func listJobs(cmd *cobra.Command, args []string) error {
	jobs, err := store.Open(cfg.DBPath)
	if err != nil {
		return fmt.Errorf("failed to open job store: %w", err)
	}
	defer jobs.Close()

	entries, err := jobs.ListJobs()
	if err != nil {
		return err
	}
	return printJSON(cmd, entries)
}

func printJSON(cmd *cobra.Command, v interface{}) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), string(data))
	return nil
}

func main() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "path to YAML config file")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")
	runCmd.Flags().StringVar(&datasetID, "dataset", "", "dataset identifier (default: random UUID)")

	rootCmd.AddCommand(runCmd, statusCmd, jobsCmd)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
