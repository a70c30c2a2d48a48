package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"StockPredictor/internal/di"
	"StockPredictor/internal/services/dataload"
	"StockPredictor/internal/usecase"
	"StockPredictor/pkg/config"
	applogger "StockPredictor/pkg/logger"
)

func newImportCmd() *cobra.Command {
	var symbol, file string
	cmd := &cobra.Command{
		Use:   "import",
		Short: "Load a CSV or JSON series file into the ClickHouse series store",
		RunE: func(cmd *cobra.Command, _ []string) error {
			path, _ := cmd.Flags().GetString("config")
			cfg, err := config.LoadWithEnv(path)
			if err != nil {
				return fmt.Errorf("config load failed: %w", err)
			}
			if !cfg.ClickHouse.Enabled {
				return errors.New("clickhouse is not enabled")
			}
			symbol = usecase.NormalizeSymbol(symbol)
			if symbol == "" {
				return usecase.ErrSymbolRequired
			}

			format, err := dataload.FormatOf(file)
			if err != nil {
				return err
			}
			data, err := os.ReadFile(file)
			if err != nil {
				return fmt.Errorf("read %s: %w", file, err)
			}
			points, err := dataload.Parse(format, data)
			if err != nil {
				return err
			}

			cfg.Log.Output = "stderr"
			log, err := di.ProvideLogger(cfg)
			if err != nil {
				return err
			}
			ch, err := di.ProvideClickHouseClient(cfg)
			if err != nil {
				return err
			}
			defer ch.Close()
			store, err := di.ProvideSeriesStore(cfg, ch, log)
			if err != nil {
				return err
			}

			if err := store.Save(cmd.Context(), symbol, points); err != nil {
				return fmt.Errorf("save series: %w", err)
			}
			log.Info("series imported",
				applogger.String("symbol", symbol),
				applogger.Int("points", len(points)),
				applogger.String("database", ch.Database()))
			return nil
		},
	}
	cmd.Flags().StringVar(&symbol, "symbol", "", "ticker symbol (required)")
	cmd.Flags().StringVar(&file, "file", "", "CSV or JSON series file (required)")
	_ = cmd.MarkFlagRequired("symbol")
	_ = cmd.MarkFlagRequired("file")
	return cmd
}
