// Package preprocess turns raw tabular input into a cleaned OHLCV dataset.
package preprocess

import (
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/go-gota/gota/dataframe"
	"github.com/go-gota/gota/series"

	"MDK/internal/domain"
	"MDK/internal/domain/models"
	"MDK/pkg/util"
)

const op = "preprocess"

// Preprocess validates the required columns, drops rows with a null in any
// of them and coerces them to float64. The optional date column is parsed
// with its zone removed and rows are sorted by it.
func Preprocess(df dataframe.DataFrame) (*models.Dataset, error) {
	if df.Err != nil {
		return nil, domain.Validation(op, "invalid frame: %v", df.Err)
	}
	have := map[string]bool{}
	for _, name := range df.Names() {
		have[name] = true
	}
	var missing []string
	for _, col := range models.RequiredColumns {
		if !have[col] {
			missing = append(missing, col)
		}
	}
	if len(missing) > 0 {
		return nil, domain.Validation(op, "missing required columns: %s", strings.Join(missing, ", "))
	}

	n := df.Nrow()
	raw := make([][]string, len(models.RequiredColumns))
	keep := make([]bool, n)
	for i := range keep {
		keep[i] = true
	}
	for j, col := range models.RequiredColumns {
		s := df.Col(col)
		raw[j] = s.Records()
		nan := s.IsNaN()
		for i := 0; i < n; i++ {
			if nan[i] || isNull(raw[j][i]) {
				keep[i] = false
			}
		}
	}

	var dates []string
	if have[models.ColDate] {
		dates = df.Col(models.ColDate).Records()
	}

	candles := make([]models.Candle, 0, n)
	for i := 0; i < n; i++ {
		if !keep[i] {
			continue
		}
		var vals [5]float64
		for j, col := range models.RequiredColumns {
			v, err := strconv.ParseFloat(strings.TrimSpace(raw[j][i]), 64)
			if err != nil {
				return nil, domain.Validation(op, "column %s contains non-numeric values", col)
			}
			vals[j] = v
		}
		c := models.Candle{Open: vals[0], High: vals[1], Low: vals[2], Volume: vals[3], Close: vals[4]}
		if dates != nil {
			t, ok := util.ParseTime(dates[i])
			if !ok {
				return nil, domain.Validation(op, "unparseable %s %q", models.ColDate, dates[i])
			}
			c.Date = util.StripZone(t)
		}
		candles = append(candles, c)
	}
	if dates != nil {
		sort.SliceStable(candles, func(a, b int) bool { return candles[a].Date.Before(candles[b].Date) })
	}
	return models.NewDataset(candles, dates != nil), nil
}

func isNull(v string) bool {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "", "nan", "na", "null", "<nil>":
		return true
	}
	return false
}

// ToDataFrame renders a dataset back into a frame Preprocess accepts.
func ToDataFrame(ds *models.Dataset) dataframe.DataFrame {
	cols := []series.Series{}
	if ds.HasDates() {
		dates := make([]string, ds.Len())
		for i, d := range ds.Dates {
			dates[i] = d.Format(time.RFC3339Nano)
		}
		cols = append(cols, series.New(dates, series.String, models.ColDate))
	}
	for _, name := range models.RequiredColumns {
		v, _ := ds.Column(name)
		cols = append(cols, series.New(append([]float64(nil), v...), series.Float, name))
	}
	return dataframe.New(cols...)
}

// FromCandles is ToDataFrame for raw request rows.
func FromCandles(rows []models.Candle) dataframe.DataFrame {
	withDates := false
	for _, r := range rows {
		if !r.Date.IsZero() {
			withDates = true
			break
		}
	}
	return ToDataFrame(models.NewDataset(rows, withDates))
}
