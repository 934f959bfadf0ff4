package models

import (
	"encoding/json"
	"math"
	"time"
)

// Predictions aligns model output to input rows. A NaN value is the
// missing marker: the row exists in the input but carries no prediction.
type Predictions struct {
	Index  []int
	Dates  []time.Time // empty when the input had no dates
	Values []float64
}

// NewPredictions allocates n rows, all missing.
func NewPredictions(index []int, dates []time.Time) *Predictions {
	p := &Predictions{
		Index:  append([]int(nil), index...),
		Values: make([]float64, len(index)),
	}
	if len(dates) == len(index) {
		p.Dates = append([]time.Time(nil), dates...)
	}
	for i := range p.Values {
		p.Values[i] = math.NaN()
	}
	return p
}

func (p *Predictions) Len() int { return len(p.Values) }

func (p *Predictions) IsMissing(i int) bool { return math.IsNaN(p.Values[i]) }

// Last returns the last non-missing value.
func (p *Predictions) Last() (float64, bool) {
	for i := len(p.Values) - 1; i >= 0; i-- {
		if !math.IsNaN(p.Values[i]) {
			return p.Values[i], true
		}
	}
	return math.NaN(), false
}

type predictionRow struct {
	Index      int        `json:"index"`
	Date       *time.Time `json:"date,omitempty"`
	Prediction *float64   `json:"prediction"`
}

// MarshalJSON renders rows with the missing marker as null.
func (p *Predictions) MarshalJSON() ([]byte, error) {
	rows := make([]predictionRow, len(p.Values))
	for i := range p.Values {
		rows[i].Index = p.Index[i]
		if len(p.Dates) == len(p.Values) {
			d := p.Dates[i]
			rows[i].Date = &d
		}
		if !math.IsNaN(p.Values[i]) && !math.IsInf(p.Values[i], 0) {
			v := p.Values[i]
			rows[i].Prediction = &v
		}
	}
	return json.Marshal(rows)
}

// UnsupportedMarker fills forecasts of families without native forecasting.
const UnsupportedMarker = "N/A"

// Forecast holds future-dated predictions. Supported=false means the family
// has no forecasting capability and Steps placeholders were requested.
type Forecast struct {
	Supported bool
	Steps     int
	Dates     []time.Time
	Values    []float64
}

func UnsupportedForecast(steps int) *Forecast {
	return &Forecast{Supported: false, Steps: steps}
}

type forecastRow struct {
	Date     *time.Time  `json:"date,omitempty"`
	Forecast interface{} `json:"forecast"`
}

func (f *Forecast) MarshalJSON() ([]byte, error) {
	rows := make([]forecastRow, f.Steps)
	for i := range rows {
		if !f.Supported {
			rows[i].Forecast = UnsupportedMarker
			continue
		}
		if i < len(f.Dates) {
			d := f.Dates[i]
			rows[i].Date = &d
		}
		if i < len(f.Values) && !math.IsNaN(f.Values[i]) && !math.IsInf(f.Values[i], 0) {
			rows[i].Forecast = f.Values[i]
		}
	}
	return json.Marshal(struct {
		Supported bool          `json:"supported"`
		Rows      []forecastRow `json:"rows"`
	}{f.Supported, rows})
}

// Evaluation summarises a training run on its held-out partition.
type Evaluation struct {
	R2        float64            `json:"r2,omitempty"`
	MSE       float64            `json:"mse,omitempty"`
	MAE       float64            `json:"mae,omitempty"`
	ValLoss   float64            `json:"val_loss,omitempty"`
	Epochs    int                `json:"epochs,omitempty"`
	Order     []int              `json:"order,omitempty"`
	AIC       float64            `json:"aic,omitempty"`
	Extra     map[string]float64 `json:"extra,omitempty"`
	TrainRows int                `json:"train_rows"`
	ValRows   int                `json:"val_rows"`
}

// ArtifactPaths are the local files a training run produced.
type ArtifactPaths struct {
	Model  string `json:"model_artifact_path"`
	Scaler string `json:"scaler_artifact_path,omitempty"`
}

func (a ArtifactPaths) HasScaler() bool { return a.Scaler != "" }

// MarshalJSON zeroes non-finite scores, which encoding/json rejects.
func (e Evaluation) MarshalJSON() ([]byte, error) {
	type plain Evaluation
	c := plain(e)
	c.R2, c.MSE, c.MAE, c.ValLoss, c.AIC = finite(c.R2), finite(c.MSE), finite(c.MAE), finite(c.ValLoss), finite(c.AIC)
	if len(c.Extra) > 0 {
		extra := make(map[string]float64, len(c.Extra))
		for k, v := range c.Extra {
			extra[k] = finite(v)
		}
		c.Extra = extra
	}
	return json.Marshal(c)
}

func finite(v float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	return v
}
