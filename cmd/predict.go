package cmd

import (
	"context"
	"encoding/json"
	"time"

	"github.com/spf13/cobra"

	"github.com/kilianp07/railflow/app"
	"github.com/kilianp07/railflow/core/pipeline"
	"github.com/kilianp07/railflow/infra/modelstore"
)

var predictCmd = &cobra.Command{
	Use:   "predict",
	Short: "Predict congestion for a JSON array of trains read from stdin",
	Long: "Reads a JSON array of train objects from stdin and writes a result envelope to stdout. " +
		"Failures are written as {error, details, timestamp} and exit with a non-zero status.",
	RunE: runPredict,
}

func init() {
	rootCmd.AddCommand(predictCmd)
}

func runPredict(cmd *cobra.Command, args []string) error {
	res := predict(cmd)
	if err := json.NewEncoder(cmd.OutOrStdout()).Encode(res.Value()); err != nil {
		return err
	}
	if !res.OK() {
		return errReported
	}
	return nil
}

func predict(cmd *cobra.Command) pipeline.Result {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return pipeline.Failure(pipeline.MsgPredictionFailed, err, time.Now())
	}
	store, err := modelstore.New(cfg.Model.Store())
	if err != nil {
		return pipeline.Failure(pipeline.MsgPredictionFailed, err, time.Now())
	}
	defer store.Close()
	orch, err := app.NewOrchestrator(cfg, pipeline.Options{})
	if err != nil {
		return pipeline.Failure(pipeline.MsgPredictionFailed, err, time.Now())
	}
	if err := orch.Load(context.Background(), store); err != nil {
		return pipeline.Failure(pipeline.MsgPredictionFailed, err, time.Now())
	}
	return pipeline.PredictReader(orch, cmd.InOrStdin(), nil)
}
