package models

import (
	"MDK/internal/domain/service"
	"MDK/internal/services/features"
	"MDK/pkg/ml/linreg"
)

func init() {
	Register(Regression, newRegression(Regression, false))
	Register(RegressionTimeSeries, newRegression(RegressionTimeSeries, true))
}

func newRegression(name string, lagged bool) Constructor {
	return func(env Env, overrides map[string]interface{}) (service.Model, error) {
		var cfg RegressionConfig
		if err := bindConfig(name, &cfg, env.Seed, overrides); err != nil {
			return nil, err
		}
		return newTabular(name, env, cfg.TabularConfig, lagged, func(sp *features.Split) (*linreg.Model, error) {
			return linreg.Fit(sp.XTrain, sp.YTrain)
		}), nil
	}
}
