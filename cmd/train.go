package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/kilianp07/railflow/app"
	"github.com/kilianp07/railflow/core/classifier"
	coremetrics "github.com/kilianp07/railflow/core/metrics"
	"github.com/kilianp07/railflow/core/pipeline"
	"github.com/kilianp07/railflow/infra/modelstore"
)

var (
	trainSamples int
	trainSeed    uint64
	trainJSON    bool
)

var trainCmd = &cobra.Command{
	Use:   "train",
	Short: "Train the congestion model on synthetic data and save it",
	RunE:  runTrain,
}

func init() {
	trainCmd.Flags().IntVarP(&trainSamples, "samples", "n", 0, "number of synthetic records (default from config)")
	trainCmd.Flags().Uint64Var(&trainSeed, "seed", 0, "generation seed (default from config)")
	trainCmd.Flags().BoolVar(&trainJSON, "json", false, "print the training report as JSON")
	rootCmd.AddCommand(trainCmd)
}

func runTrain(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if trainSamples > 0 {
		cfg.Model.Samples = trainSamples
	}
	if trainSeed > 0 {
		cfg.Model.Seed = trainSeed
	}
	sink, err := coremetrics.NewMetricsSink(cfg.Metrics.Sinks)
	if err != nil {
		return fmt.Errorf("metrics sink: %w", err)
	}
	store, err := modelstore.New(cfg.Model.Store())
	if err != nil {
		return err
	}
	defer store.Close()

	orch, err := app.NewOrchestrator(cfg, pipeline.Options{Sink: sink})
	if err != nil {
		return err
	}
	rep, err := orch.Train(ctx, app.NewTrainer(cfg), cfg.Model.Samples, cfg.Model.Seed)
	if err != nil {
		return fmt.Errorf("train: %w", err)
	}
	if err := orch.Save(ctx, store); err != nil {
		return err
	}
	if trainJSON {
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(rep)
	}
	printReport(cmd.OutOrStdout(), rep)
	fmt.Fprintf(cmd.OutOrStdout(), "model saved to %s (%s)\n", cfg.Model.Path, cfg.Model.Backend)
	return nil
}

func printReport(w io.Writer, rep classifier.Report) {
	fmt.Fprintf(w, "samples: %d (train %d, test %d)\n", rep.Samples, rep.TrainSize, rep.TestSize)
	fmt.Fprintf(w, "class distribution: free=%d congested=%d\n", rep.ClassDistribution[0], rep.ClassDistribution[1])
	for _, cv := range rep.CV {
		fmt.Fprintf(w, "cv %-18s %.4f (+/- %.4f)\n", cv.Family, cv.Mean, cv.Std*2)
	}
	fmt.Fprintf(w, "selected: %s\n", rep.Family)
	fmt.Fprintf(w, "train accuracy: %.4f\ntest accuracy:  %.4f\ngap: %.4f\n", rep.TrainAccuracy, rep.TestAccuracy, rep.Gap)
	if rep.Overfitting {
		fmt.Fprintln(w, "warning: overfitting (train/test gap above 0.10)")
	}
	if rep.Underfitting {
		fmt.Fprintln(w, "warning: underfitting (test accuracy below 0.70)")
	}
	fmt.Fprintf(w, "confusion: [[%d %d] [%d %d]]\n", rep.Confusion[0][0], rep.Confusion[0][1], rep.Confusion[1][0], rep.Confusion[1][1])
	fmt.Fprintf(w, "precision: free=%.3f congested=%.3f\n", rep.Precision[0], rep.Precision[1])
	fmt.Fprintf(w, "recall:    free=%.3f congested=%.3f\n", rep.Recall[0], rep.Recall[1])
}
