package models

import (
	"time"

	"gonum.org/v1/gonum/mat"

	"MDK/internal/domain"
	"MDK/internal/domain/models"
	"MDK/internal/domain/service"
	"MDK/internal/services/artifacts"
	"MDK/internal/services/features"
	"MDK/pkg/logger"
	"MDK/pkg/ml/lstm"
	"MDK/pkg/util"
)

const lstmLogEvery = 10

func init() {
	Register(LSTM, newLSTM)
}

type lstmFamily struct {
	base
	cfg      LSTMConfig
	interval util.Interval
	net      *lstm.Network
	scaler   *features.MinMaxScaler
}

func newLSTM(env Env, overrides map[string]interface{}) (service.Model, error) {
	var cfg LSTMConfig
	if err := bindConfig(LSTM, &cfg, env.Seed, overrides); err != nil {
		return nil, err
	}
	iv, err := util.ParseInterval(cfg.Interval)
	if err != nil {
		return nil, domain.Validation(LSTM, "interval: %v", err)
	}
	f := &lstmFamily{base: newBase(LSTM, service.NetworkWeights, true, env), cfg: cfg, interval: iv}
	// the architecture exists before any weights are loaded into it
	if f.net, err = lstm.New(f.netConfig(), cfg.Seed); err != nil {
		return nil, domain.Validation(LSTM, "%v", err)
	}
	return f, nil
}

func (l *lstmFamily) netConfig() lstm.Config {
	return lstm.Config{
		InputSize:  l.cfg.InputSize,
		HiddenSize: l.cfg.HiddenSize,
		OutputSize: l.cfg.OutputSize,
		NumLayers:  l.cfg.NumLayers,
		Dropout:    l.cfg.Dropout,
	}
}

// closes resamples dated input to the configured interval.
func (l *lstmFamily) closes(ds *models.Dataset) (*models.Dataset, error) {
	if !ds.HasDates() {
		return ds, nil
	}
	return features.Resample(ds, l.interval)
}

func column(xs []float64) *mat.Dense { return mat.NewDense(len(xs), 1, append([]float64(nil), xs...)) }

func (l *lstmFamily) scale(xs []float64) []float64 {
	out := make([]float64, len(xs))
	for i, v := range xs {
		out[i] = l.scaler.Scale1(v)
	}
	return out
}

func sequences(windows [][]float64) [][][]float64 {
	out := make([][][]float64, len(windows))
	for i, w := range windows {
		seq := make([][]float64, len(w))
		for t, v := range w {
			seq[t] = []float64{v}
		}
		out[i] = seq
	}
	return out
}

func (l *lstmFamily) Train(ds *models.Dataset) error {
	series, err := l.closes(ds)
	if err != nil {
		return err
	}
	ts := l.cfg.TimeSteps
	if series.Len() <= ts {
		return domain.InsufficientData(l.op("train"), ts+1, series.Len())
	}
	r := l.cfg.ScalerFeatureRange
	l.scaler = features.NewMinMaxScaler(r[0], r[1])
	if err := l.scaler.Fit(column(series.Close)); err != nil {
		return domain.TrainingFailure(l.op("train"), err)
	}
	windows, targets := features.Windows(l.scale(series.Close), ts)
	seqs := sequences(windows)
	samples := make([]lstm.Sample, len(seqs))
	for i := range seqs {
		samples[i] = lstm.Sample{X: seqs[i], Y: []float64{targets[i]}}
	}
	cut := int(float64(len(samples)) * (1 - l.cfg.ValidationSplit))
	if cut < 1 {
		cut = 1
	}
	train, val := samples[:cut], samples[cut:]

	if l.net, err = lstm.New(l.netConfig(), l.cfg.Seed); err != nil {
		return domain.TrainingFailure(l.op("train"), err)
	}
	l.ready = true
	var best []lstm.Param
	res, err := l.net.Fit(train, val, lstm.TrainConfig{
		LearningRate: l.cfg.LearningRate,
		BatchSize:    l.cfg.BatchSize,
		Epochs:       l.cfg.Epochs,
		Patience:     l.cfg.EarlyStoppingPatience,
		ClipNorm:     l.cfg.ClipNorm,
	}, lstm.Hooks{
		OnImprove: func(epoch int, valLoss float64) error {
			best = l.net.StateDict()
			return l.Save()
		},
		OnEpoch: func(epoch int, trainLoss, valLoss float64) {
			if epoch%lstmLogEvery == 0 {
				l.log.Debug("lstm epoch",
					logger.Int("epoch", epoch),
					logger.Float64("train_loss", trainLoss),
					logger.Float64("val_loss", valLoss))
			}
		},
	})
	if err != nil {
		l.ready = false
		return domain.TrainingFailure(l.op("train"), err)
	}
	if best != nil {
		if err := l.net.LoadStateDict(stateMap(best)); err != nil {
			return domain.TrainingFailure(l.op("train"), err)
		}
	}
	if res.EarlyStop {
		l.log.Info("early stopping", logger.Int("epoch", res.Epochs), logger.Int("best_epoch", res.BestEpoch))
	}
	l.eval = models.Evaluation{ValLoss: res.BestValLoss, Epochs: res.Epochs, TrainRows: len(train), ValRows: len(val)}
	// the best checkpoint is already on disk unless no epoch improved
	if best == nil {
		return l.Save()
	}
	return nil
}

func stateMap(ps []lstm.Param) map[string]*mat.Dense {
	out := make(map[string]*mat.Dense, len(ps))
	for _, p := range ps {
		out[p.Name] = p.Data
	}
	return out
}

// Inference predicts the value following every full window; the result is
// aligned to the rows after the first time_steps.
func (l *lstmFamily) Inference(ds *models.Dataset) (*models.Predictions, error) {
	if err := l.requireReady("inference"); err != nil {
		return nil, err
	}
	series, err := l.closes(ds)
	if err != nil {
		return nil, err
	}
	ts := l.cfg.TimeSteps
	windows, _ := features.Windows(l.scale(series.Close), ts)
	if len(windows) == 0 {
		return nil, domain.InsufficientData(l.op("inference"), ts+1, series.Len())
	}
	tail := series.Slice(ts, series.Len())
	out := models.NewPredictions(tail.RowIndex(), tail.Dates)
	for i, row := range l.net.Predict(sequences(windows)) {
		out.Values[i] = l.scaler.Unscale1(row[0])
	}
	return out, nil
}

// Forecast rolls the network forward one step at a time from the last
// time_steps rows of history, feeding each prediction back in.
func (l *lstmFamily) Forecast(steps int, history *models.Dataset) (*models.Forecast, error) {
	if err := l.requireReady("forecast"); err != nil {
		return nil, err
	}
	if err := l.checkSteps(steps); err != nil {
		return nil, err
	}
	if history == nil {
		return nil, domain.InsufficientData(l.op("forecast"), l.cfg.TimeSteps, 0)
	}
	series, err := l.closes(history)
	if err != nil {
		return nil, err
	}
	ts := l.cfg.TimeSteps
	if series.Len() < ts {
		return nil, domain.InsufficientData(l.op("forecast"), ts, series.Len())
	}
	window := l.scale(series.Close[series.Len()-ts:])
	fc := &models.Forecast{Supported: true, Steps: steps, Values: make([]float64, steps)}
	for k := 0; k < steps; k++ {
		next := l.net.Predict(sequences([][]float64{window}))[0][0]
		fc.Values[k] = l.scaler.Unscale1(next)
		window = append(window[1:], next)
	}
	if series.HasDates() {
		last := series.Dates[series.Len()-1]
		fc.Dates = make([]time.Time, steps)
		for k := range fc.Dates {
			fc.Dates[k] = l.interval.Add(last, k+1)
		}
	}
	return fc, nil
}

func (l *lstmFamily) tensors() []artifacts.Tensor {
	state := l.net.StateDict()
	out := make([]artifacts.Tensor, len(state))
	for i, p := range state {
		out[i] = artifacts.Tensor{Name: p.Name, Data: p.Data}
	}
	return out
}

func (l *lstmFamily) Save() error {
	if err := l.requireReady("save"); err != nil {
		return err
	}
	paths := l.Artifacts()
	if err := artifacts.SaveWeights(paths.Model, l.tensors()); err != nil {
		return err
	}
	return artifacts.SaveObject(paths.Scaler, l.scaler)
}

// Load reads weights into the network built at construction. A missing
// weights file is an error; the random initialisation is never served.
func (l *lstmFamily) Load() error {
	paths, err := l.verify()
	if err != nil {
		return err
	}
	ws, err := artifacts.LoadWeights(paths.Model)
	if err != nil {
		return err
	}
	if err := l.net.LoadStateDict(ws); err != nil {
		return domain.Validation(l.op("load"), "%v", err)
	}
	scaler := &features.MinMaxScaler{}
	if err := artifacts.LoadObject(paths.Scaler, scaler); err != nil {
		return err
	}
	l.scaler, l.ready = scaler, true
	return nil
}
