// superpose explores candidate variants of a build snapshot and selects one
// winner per round by fitness-proportionate draw.
package main

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"superpose/internal/config"
	"superpose/internal/fitness"
	"superpose/internal/pipeline"
)

var version = "0.3.0"

var (
	verbose    bool
	configPath string

	snapshotPath   string
	directivesPath string
	seed           int64
	workers        int
	evalTimeout    time.Duration
	ledgerPath     string

	testWeight        float64
	performanceWeight float64
	probabilityWeight float64
	complexityWeight  float64

	logger *zap.Logger
)

var rootCmd = &cobra.Command{
	Use:   "superpose",
	Short: "superpose - variant exploration and selection pipeline",
	Long: `superpose materializes candidate variants of a base build snapshot,
evaluates them concurrently against a fixed check battery, scores them,
and selects exactly one winner by weighted probabilistic draw.

Evaluation is a seeded stochastic policy, not real execution: the same
seed, snapshot, and directives reproduce a round exactly.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		cfg := zap.NewProductionConfig()
		if verbose {
			cfg.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
		}
		var err error
		logger, err = cfg.Build()
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
	Use:   "run",
	Short: "Run one exploration round",
	Long: `Reads a base snapshot and a list of directive sets, materializes one
candidate variant per set, evaluates the batch, and prints the winner.

Example:
  superpose run --snapshot snap.yaml --directives dirs.yaml --seed 42`,
	RunE: runRound,
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the superpose version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("superpose %s\n", version)
	},
}

func runRound(cmd *cobra.Command, args []string) error {
	base, sets, err := loadInputs(snapshotPath, directivesPath)
	if err != nil {
		return err
	}

	cfg := config.Default()
	if configPath != "" {
		if cfg, err = config.Load(configPath); err != nil {
			return err
		}
	}
	if cmd.Flags().Changed("seed") {
		cfg.Seed = seed
	}
	if workers > 0 {
		cfg.Evaluation.Workers = workers
	}
	if cmd.Flags().Changed("timeout") {
		cfg.EvalTimeout = evalTimeout.String()
	}
	if ledgerPath != "" {
		cfg.Ledger = config.LedgerConfig{Backend: "sqlite", Path: ledgerPath}
	}

	criteria := fitness.Criteria{
		TestWeight:        testWeight,
		PerformanceWeight: performanceWeight,
		ProbabilityWeight: probabilityWeight,
		ComplexityWeight:  complexityWeight,
	}

	p, err := pipeline.New(cfg,
		pipeline.WithLogger(logger),
		pipeline.WithEvents(pipeline.Events{
			VariantsCreated: func(ids []string) {
				logger.Info("variants created", zap.Int("count", len(ids)))
			},
			BatchCompleted: func(batchID string, summary map[string]string) {
				logger.Info("batch completed",
					zap.String("batch", batchID),
					zap.Any("summary", summary))
			},
			VariantSelected: func(id string, fit float64) {
				logger.Info("variant selected",
					zap.String("winner", id),
					zap.Float64("fitness", fit))
			},
		}),
	)
	if err != nil {
		return err
	}

	res, err := p.Explore(cmd.Context(), base, sets, criteria)
	if err != nil {
		return err
	}

	fmt.Println(renderResult(res, cfg.Seed))
	return nil
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "path to superpose.yaml")

	runCmd.Flags().StringVar(&snapshotPath, "snapshot", "", "base snapshot YAML (required)")
	runCmd.Flags().StringVar(&directivesPath, "directives", "", "directive sets YAML (required)")
	runCmd.Flags().Int64Var(&seed, "seed", 0, "random seed (default: time-based)")
	runCmd.Flags().IntVar(&workers, "workers", 0, "evaluation worker pool size (default: NumCPU)")
	runCmd.Flags().DurationVar(&evalTimeout, "timeout", 30*time.Second, "evaluation batch timeout")
	runCmd.Flags().StringVar(&ledgerPath, "ledger", "", "sqlite ledger path (default: in-memory)")
	runCmd.Flags().Float64Var(&testWeight, "test-weight", 0.25, "fitness weight for test results")
	runCmd.Flags().Float64Var(&performanceWeight, "performance-weight", 0.25, "fitness weight for performance")
	runCmd.Flags().Float64Var(&probabilityWeight, "probability-weight", 0.25, "fitness weight for variant mass")
	runCmd.Flags().Float64Var(&complexityWeight, "complexity-weight", 0.25, "fitness weight for simplicity")
	_ = runCmd.MarkFlagRequired("snapshot")
	_ = runCmd.MarkFlagRequired("directives")

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(versionCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
