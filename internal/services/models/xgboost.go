package models

import (
	"MDK/internal/domain/service"
	"MDK/internal/services/features"
	"MDK/pkg/logger"
	"MDK/pkg/ml/boost"
)

func init() {
	Register(Xgboost, newXgboost(Xgboost, false))
	Register(XgboostTimeSeries, newXgboost(XgboostTimeSeries, true))
}

func newXgboost(name string, lagged bool) Constructor {
	return func(env Env, overrides map[string]interface{}) (service.Model, error) {
		var cfg XgboostConfig
		if err := bindConfig(name, &cfg, env.Seed, overrides); err != nil {
			return nil, err
		}
		opts := boost.Options{
			Rounds:              cfg.NumBoostRound,
			Eta:                 cfg.Eta,
			MaxDepth:            cfg.MaxDepth,
			Lambda:              cfg.Lambda,
			MinChildWeight:      cfg.MinChildWeight,
			EarlyStoppingRounds: cfg.EarlyStoppingRounds,
		}
		log := env.Log
		if log == nil {
			log = logger.Nop()
		}
		return newTabular(name, env, cfg.TabularConfig, lagged, func(sp *features.Split) (*boost.Regressor, error) {
			m, err := boost.Fit(sp.XTrain, sp.YTrain, sp.XVal, sp.YVal, opts)
			if err != nil {
				return nil, err
			}
			log.Debug("boosting finished",
				logger.Int("best_iteration", m.BestIteration),
				logger.Float64("best_rmse", m.BestScore))
			return m, nil
		}), nil
	}
}
