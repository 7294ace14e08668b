package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/kilianp07/railflow/app"
	"github.com/kilianp07/railflow/core/classifier"
	"github.com/kilianp07/railflow/core/synthetic"
	"github.com/kilianp07/railflow/pkg/report"
)

var (
	reportSamples int
	reportSeed    uint64
	reportOutput  string
	reportTrain   bool
)

var reportCmd = &cobra.Command{
	Use:   "report",
	Short: "Render an HTML report of the synthetic training data",
	RunE:  runReport,
}

func init() {
	reportCmd.Flags().IntVarP(&reportSamples, "samples", "n", 5000, "number of records")
	reportCmd.Flags().Uint64Var(&reportSeed, "seed", 42, "generation seed")
	reportCmd.Flags().StringVarP(&reportOutput, "output", "o", "congestion_report.html", "output HTML file")
	reportCmd.Flags().BoolVar(&reportTrain, "train", false, "train on the records and include cross-validation scores")
	rootCmd.AddCommand(reportCmd)
}

func runReport(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	recs := synthetic.Generate(reportSamples, reportSeed)
	var rep *classifier.Report
	if reportTrain {
		r, _, err := app.NewTrainer(cfg).Train(context.Background(), recs)
		if err != nil {
			return fmt.Errorf("train: %w", err)
		}
		rep = &r
	}
	f, err := os.Create(reportOutput)
	if err != nil {
		return err
	}
	defer f.Close()
	if err := report.Render(f, report.Summarize(recs), rep); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "report written to %s\n", reportOutput)
	return nil
}
