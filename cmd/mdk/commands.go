package main

import (
	"encoding/json"
	"fmt"
	"io"
	"math"

	"github.com/spf13/cobra"

	"MDK/internal/domain"
	"MDK/internal/domain/models"
	"MDK/internal/domain/service"
	"MDK/internal/services/metric"
	modelsvc "MDK/internal/services/models"
	"MDK/internal/services/preprocess"
	"MDK/internal/usecase"
	"MDK/pkg/logger"
)

type rootOptions struct {
	seed     int64
	workers  int
	logLevel string
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}
	root := &cobra.Command{
		Use:           "mdk",
		Short:         "Train and evaluate OHLCV models and compute risk/return metrics",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().Int64Var(&opts.seed, "seed", 42, "random seed threaded into every model")
	root.PersistentFlags().IntVar(&opts.workers, "workers", 0, "parallel fit workers (0 = GOMAXPROCS)")
	root.PersistentFlags().StringVar(&opts.logLevel, "log-level", "warn", "debug, info, warn or error")

	root.AddCommand(
		newTrainCmd(opts),
		newInferCmd(opts),
		newForecastCmd(opts),
		newMetricCmd(),
		newModelsCmd(),
		newStandardizeCmd(),
	)
	return root
}

func (o *rootOptions) factory() (*modelsvc.Factory, error) {
	log, err := logger.New(&logger.Config{Level: o.logLevel, Format: "console", Output: "stderr"})
	if err != nil {
		return nil, err
	}
	return modelsvc.NewFactory(
		modelsvc.WithSeed(o.seed),
		modelsvc.WithWorkers(o.workers),
		modelsvc.WithLogger(log),
	), nil
}

func parseOverrides(raw string) (map[string]interface{}, error) {
	if raw == "" {
		return nil, nil
	}
	var m map[string]interface{}
	if err := json.Unmarshal([]byte(raw), &m); err != nil {
		return nil, domain.Validation("config", "model config is not a JSON object: %v", err)
	}
	return m, nil
}

func printJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func newTrainCmd(opts *rootOptions) *cobra.Command {
	var model, csvPath, out, rawConfig string
	cmd := &cobra.Command{
		Use:   "train",
		Short: "Train a model family on a CSV and write its artifacts",
		RunE: func(cmd *cobra.Command, _ []string) error {
			overrides, err := parseOverrides(rawConfig)
			if err != nil {
				return err
			}
			f, err := opts.factory()
			if err != nil {
				return err
			}
			df, err := preprocess.LoadCSV(csvPath)
			if err != nil {
				return err
			}
			res, err := usecase.RunTraining(f, model, df, out, overrides)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), res)
		},
	}
	cmd.Flags().StringVar(&model, "model", "", "model family name")
	cmd.Flags().StringVar(&csvPath, "csv", "", "training CSV with open, high, low, close, volume")
	cmd.Flags().StringVar(&out, "out", "trained_models", "artifact base directory")
	cmd.Flags().StringVar(&rawConfig, "config", "", "JSON object of configuration overrides")
	_ = cmd.MarkFlagRequired("model")
	_ = cmd.MarkFlagRequired("csv")
	return cmd
}

// loadModel rebuilds a trained instance from dir/<model>.
func loadModel(opts *rootOptions, name, dir, rawConfig string) (service.Model, error) {
	overrides, err := parseOverrides(rawConfig)
	if err != nil {
		return nil, err
	}
	f, err := opts.factory()
	if err != nil {
		return nil, err
	}
	m, err := f.WithSaveDirOf(dir).CreateModel(name, overrides)
	if err != nil {
		return nil, err
	}
	if err := m.Load(); err != nil {
		return nil, err
	}
	return m, nil
}

func newInferCmd(opts *rootOptions) *cobra.Command {
	var model, dir, csvPath, rawConfig string
	cmd := &cobra.Command{
		Use:   "infer",
		Short: "Predict one value per eligible row of a CSV",
		RunE: func(cmd *cobra.Command, _ []string) error {
			m, err := loadModel(opts, model, dir, rawConfig)
			if err != nil {
				return err
			}
			ds, err := preprocess.LoadDataset(csvPath)
			if err != nil {
				return err
			}
			preds, err := m.Inference(ds)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), preds)
		},
	}
	cmd.Flags().StringVar(&model, "model", "", "model family name")
	cmd.Flags().StringVar(&dir, "dir", "trained_models", "artifact base directory used at training")
	cmd.Flags().StringVar(&csvPath, "csv", "", "input CSV")
	cmd.Flags().StringVar(&rawConfig, "config", "", "JSON object of configuration overrides used at training")
	_ = cmd.MarkFlagRequired("model")
	_ = cmd.MarkFlagRequired("csv")
	return cmd
}

func newForecastCmd(opts *rootOptions) *cobra.Command {
	var model, dir, csvPath, rawConfig string
	var steps int
	cmd := &cobra.Command{
		Use:   "forecast",
		Short: "Forecast future values; --csv supplies the recent window where the family needs it",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if steps < 1 {
				return domain.Validation("forecast", "steps must be >= 1, got %d", steps)
			}
			m, err := loadModel(opts, model, dir, rawConfig)
			if err != nil {
				return err
			}
			var history *models.Dataset
			if csvPath != "" {
				if history, err = preprocess.LoadDataset(csvPath); err != nil {
					return err
				}
			}
			fc, err := m.Forecast(steps, history)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), fc)
		},
	}
	cmd.Flags().StringVar(&model, "model", "", "model family name")
	cmd.Flags().StringVar(&dir, "dir", "trained_models", "artifact base directory used at training")
	cmd.Flags().IntVar(&steps, "steps", 1, "number of future steps")
	cmd.Flags().StringVar(&csvPath, "csv", "", "recent history CSV")
	cmd.Flags().StringVar(&rawConfig, "config", "", "JSON object of configuration overrides used at training")
	_ = cmd.MarkFlagRequired("model")
	return cmd
}

type metricResult struct {
	Metric string   `json:"metric"`
	Value  *float64 `json:"value"`
}

func newMetricCmd() *cobra.Command {
	var name, csvPath string
	cmd := &cobra.Command{
		Use:   "metric",
		Short: "Compute a risk/return metric over the close column of a CSV",
		RunE: func(cmd *cobra.Command, _ []string) error {
			m, err := metric.NewFactory().CreateMetric(name)
			if err != nil {
				return err
			}
			ds, err := preprocess.LoadDataset(csvPath)
			if err != nil {
				return err
			}
			res := metricResult{Metric: m.Name()}
			if v := m.Calculate(ds.PriceSeries()); !math.IsNaN(v) && !math.IsInf(v, 0) {
				res.Value = &v
			}
			return printJSON(cmd.OutOrStdout(), res)
		},
	}
	cmd.Flags().StringVar(&name, "name", "", "metric name")
	cmd.Flags().StringVar(&csvPath, "csv", "", "price CSV")
	_ = cmd.MarkFlagRequired("name")
	_ = cmd.MarkFlagRequired("csv")
	return cmd
}

func newModelsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "models",
		Short: "List registered model families and metrics",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return printJSON(cmd.OutOrStdout(), map[string][]string{
				"models":  modelsvc.Names(),
				"metrics": metric.Names(),
			})
		},
	}
}

func newStandardizeCmd() *cobra.Command {
	var dateColumn string
	cmd := &cobra.Command{
		Use:   "standardize IN OUT",
		Short: "Rewrite a ';' separated CSV as a clean comma separated one",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			df, err := preprocess.StandardizeCSV(args[0], args[1], dateColumn)
			if err != nil {
				return err
			}
			_, err = fmt.Fprintf(cmd.OutOrStdout(), "wrote %d rows to %s\n", df.Nrow(), args[1])
			return err
		},
	}
	cmd.Flags().StringVar(&dateColumn, "date-column", "", "column parsed as a date")
	return cmd
}
