package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/kilianp07/railflow/infra/modelstore"
	"github.com/kilianp07/railflow/qa/scenarios"
)

var scenariosCmd = &cobra.Command{
	Use:   "scenarios <file>...",
	Short: "Run YAML scenarios against the saved model",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runScenarios,
}

func init() {
	rootCmd.AddCommand(scenariosCmd)
}

func runScenarios(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	store, err := modelstore.New(cfg.Model.Store())
	if err != nil {
		return err
	}
	defer store.Close()
	m, err := store.Load(context.Background())
	if err != nil {
		return err
	}
	r := scenarios.Runner{Model: m, Policy: cfg.Ingestion.Policy()}
	failed := 0
	for _, path := range args {
		sc, err := scenarios.Load(path)
		if err != nil {
			return err
		}
		out, err := r.Run(sc)
		if err != nil {
			return err
		}
		status := "ok"
		if !out.Passed() {
			status = "FAIL"
			failed++
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%-4s %s (%d cases)\n", status, out.Scenario, out.Cases)
		for _, mm := range out.Mismatches {
			fmt.Fprintf(cmd.OutOrStdout(), "     %s\n", mm)
		}
	}
	if failed > 0 {
		return fmt.Errorf("%d scenario(s) failed", failed)
	}
	return nil
}
