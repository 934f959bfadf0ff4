package models

import (
	"encoding/json"

	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"

	"MDK/internal/domain"
)

var validate = validator.New()

// seeded configs take the factory seed unless an override names one.
type seeded interface {
	defaultSeed(seed int64)
}

// bindConfig fills cfg from `default` tags, applies the factory seed,
// overlays overrides through their JSON names and validates the result.
func bindConfig(op string, cfg interface{}, seed int64, overrides map[string]interface{}) error {
	if err := defaults.Set(cfg); err != nil {
		return domain.Validation(op, "defaults: %v", err)
	}
	if s, ok := cfg.(seeded); ok {
		s.defaultSeed(seed)
	}
	if len(overrides) > 0 {
		raw, err := json.Marshal(overrides)
		if err != nil {
			return domain.Validation(op, "config overrides: %v", err)
		}
		if err := json.Unmarshal(raw, cfg); err != nil {
			return domain.Validation(op, "config overrides: %v", err)
		}
	}
	if err := validate.Struct(cfg); err != nil {
		return domain.Validation(op, "config: %v", err)
	}
	return nil
}

// TabularConfig is shared by the regression, random forest and boosted
// tree families.
type TabularConfig struct {
	ScalerFeatureRange []float64 `json:"scaler_feature_range" default:"[0,1]" validate:"len=2"`
	TestSize           float64   `json:"test_size" default:"0.2" validate:"gt=0,lt=1"`
	RandomState        int64     `json:"random_state"`
	NLags              int       `json:"n_lags" default:"5" validate:"gte=1"`
}

func (c *TabularConfig) defaultSeed(seed int64) { c.RandomState = seed }

type RegressionConfig struct {
	TabularConfig
}

type RandomForestConfig struct {
	TabularConfig
	NEstimators     int `json:"n_estimators" default:"100" validate:"gte=1"`
	MaxDepth        int `json:"max_depth" validate:"gte=0"`
	MinSamplesSplit int `json:"min_samples_split" default:"2" validate:"gte=2"`
	MinSamplesLeaf  int `json:"min_samples_leaf" default:"1" validate:"gte=1"`
	MaxFeatures     int `json:"max_features" validate:"gte=0"`
}

type XgboostConfig struct {
	TabularConfig
	NumBoostRound       int     `json:"num_boost_round" default:"100" validate:"gte=1"`
	EarlyStoppingRounds int     `json:"early_stopping_rounds" default:"10" validate:"gte=0"`
	Eta                 float64 `json:"eta" default:"0.3" validate:"gt=0,lte=1"`
	MaxDepth            int     `json:"max_depth" default:"6" validate:"gte=1"`
	Lambda              float64 `json:"lambda" default:"1" validate:"gte=0"`
	MinChildWeight      int     `json:"min_child_weight" default:"1" validate:"gte=1"`
}

type ArimaConfig struct {
	BestParams    []int  `json:"best_params" default:"[1,1,0]" validate:"len=3,dive,gte=0"`
	UseGridSearch bool   `json:"use_grid_search" default:"true"`
	PValues       []int  `json:"p_values" default:"[0,1]" validate:"min=1,dive,gte=0"`
	DValues       []int  `json:"d_values" default:"[0,1]" validate:"min=1,dive,gte=0"`
	QValues       []int  `json:"q_values" default:"[0,1,2]" validate:"min=1,dive,gte=0"`
	MaxIter       int    `json:"max_iter" default:"100" validate:"gte=1"`
	Interval      string `json:"interval" default:"D" validate:"required"`
}

type ProphetConfig struct {
	Growth                string  `json:"growth" default:"linear" validate:"oneof=linear logistic"`
	ChangepointPriorScale float64 `json:"changepoint_prior_scale" default:"0.25" validate:"gt=0"`
	NChangepoints         int     `json:"n_changepoints" default:"25" validate:"gte=0"`
	ChangepointRange      float64 `json:"changepoint_range" default:"0.8" validate:"gt=0,lte=1"`
	SeasonalityMode       string  `json:"seasonality_mode" default:"multiplicative" validate:"oneof=additive multiplicative"`
	YearlySeasonality     bool    `json:"yearly_seasonality" default:"false"`
	WeeklySeasonality     bool    `json:"weekly_seasonality" default:"true"`
	DailySeasonality      bool    `json:"daily_seasonality" default:"true"`
	Periods               int     `json:"periods" default:"365" validate:"gte=1"`
}

type LSTMConfig struct {
	InputSize             int       `json:"input_size" default:"1" validate:"eq=1"`
	HiddenSize            int       `json:"hidden_size" default:"64" validate:"gte=1"`
	OutputSize            int       `json:"output_size" default:"1" validate:"eq=1"`
	NumLayers             int       `json:"num_layers" default:"2" validate:"gte=1"`
	Dropout               float64   `json:"dropout" default:"0.5" validate:"gte=0,lt=1"`
	LearningRate          float64   `json:"learning_rate" default:"0.0001" validate:"gt=0"`
	BatchSize             int       `json:"batch_size" default:"32" validate:"gte=1"`
	Epochs                int       `json:"epochs" default:"100" validate:"gte=1"`
	EarlyStoppingPatience int       `json:"early_stopping_patience" default:"10" validate:"gte=0"`
	ValidationSplit       float64   `json:"validation_split" default:"0.2" validate:"gte=0,lt=1"`
	TimeSteps             int       `json:"time_steps" default:"60" validate:"gte=1"`
	Interval              string    `json:"interval" default:"D" validate:"required"`
	ClipNorm              float64   `json:"clip_norm" default:"1" validate:"gt=0"`
	ScalerFeatureRange    []float64 `json:"scaler_feature_range" default:"[0,1]" validate:"len=2"`
	Seed                  int64     `json:"seed"`
}

func (c *LSTMConfig) defaultSeed(seed int64) { c.Seed = seed }
