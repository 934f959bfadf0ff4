package models

import (
	"context"

	"MDK/internal/domain/service"
	"MDK/internal/services/features"
	"MDK/pkg/ml/forest"
)

func init() {
	Register(RandomForest, newRandomForest(RandomForest, false))
	Register(RandomForestTimeSeries, newRandomForest(RandomForestTimeSeries, true))
}

func newRandomForest(name string, lagged bool) Constructor {
	return func(env Env, overrides map[string]interface{}) (service.Model, error) {
		var cfg RandomForestConfig
		if err := bindConfig(name, &cfg, env.Seed, overrides); err != nil {
			return nil, err
		}
		opts := forest.Options{
			NEstimators:     cfg.NEstimators,
			MaxDepth:        cfg.MaxDepth,
			MinSamplesSplit: cfg.MinSamplesSplit,
			MinSamplesLeaf:  cfg.MinSamplesLeaf,
			MaxFeatures:     cfg.MaxFeatures,
			Bootstrap:       true,
			Seed:            cfg.RandomState,
			Workers:         env.Workers,
		}
		return newTabular(name, env, cfg.TabularConfig, lagged, func(sp *features.Split) (*forest.Regressor, error) {
			return forest.Fit(context.Background(), sp.XTrain, sp.YTrain, opts)
		}), nil
	}
}
