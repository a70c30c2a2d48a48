package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"StockPredictor/internal/di"
	"StockPredictor/internal/domain/models"
	"StockPredictor/internal/services/dataload"
	"StockPredictor/internal/usecase"
	"StockPredictor/pkg/config"
)

type predictFlags struct {
	symbol string
	source string
	file   string
	policy string
	pretty bool
}

func newPredictCmd() *cobra.Command {
	var f predictFlags
	cmd := &cobra.Command{
		Use:   "predict",
		Short: "Run one prediction and print the result as JSON",
		RunE: func(cmd *cobra.Command, _ []string) error {
			path, _ := cmd.Flags().GetString("config")
			cfg, err := config.LoadWithEnv(path)
			if err != nil {
				return fmt.Errorf("config load failed: %w", err)
			}
			// stdout carries the result only.
			cfg.Log.Output = "stderr"
			cfg.Predictor.SimulatedLatency = 0
			if f.policy != "" {
				cfg.Predictor.ModelPolicy = f.policy
			}

			params, err := f.params()
			if err != nil {
				return err
			}

			uc, err := di.InitializePredictionUseCase(cfg)
			if err != nil {
				return fmt.Errorf("initialization failed: %w", err)
			}
			res, err := uc.Predict(cmd.Context(), params)
			if err != nil {
				return err
			}

			enc := json.NewEncoder(cmd.OutOrStdout())
			if f.pretty {
				enc.SetIndent("", "  ")
			}
			return enc.Encode(res)
		},
	}
	cmd.Flags().StringVar(&f.symbol, "symbol", "", "ticker symbol (required)")
	cmd.Flags().StringVar(&f.source, "source", models.SourceSample, "data source: sample, simulated, remote, store")
	cmd.Flags().StringVar(&f.file, "file", "", "CSV or JSON series file; overrides --source")
	cmd.Flags().StringVar(&f.policy, "policy", "", "model policy override: per_call or cached")
	cmd.Flags().BoolVar(&f.pretty, "pretty", false, "indent JSON output")
	_ = cmd.MarkFlagRequired("symbol")
	return cmd
}

func (f predictFlags) params() (usecase.PredictParams, error) {
	p := usecase.PredictParams{Symbol: f.symbol, Source: f.source}
	if f.file == "" {
		return p, nil
	}
	format, err := dataload.FormatOf(f.file)
	if err != nil {
		return p, err
	}
	data, err := os.ReadFile(f.file)
	if err != nil {
		return p, fmt.Errorf("read %s: %w", f.file, err)
	}
	p.Source = models.SourceFile
	p.File = data
	p.Format = format
	return p, nil
}
