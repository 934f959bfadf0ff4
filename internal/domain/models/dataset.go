package models

import (
	"fmt"
	"time"
)

// Required OHLCV columns, in the order the tabular models consume them.
const (
	ColDate   = "date"
	ColOpen   = "open"
	ColHigh   = "high"
	ColLow    = "low"
	ColClose  = "close"
	ColVolume = "volume"
)

// RequiredColumns lists the numeric columns every cleaned dataset carries.
var RequiredColumns = []string{ColOpen, ColHigh, ColLow, ColVolume, ColClose}

// Candle represents one OHLCV record.
type Candle struct {
	Date   time.Time `json:"date"`
	Open   float64   `json:"open"`
	High   float64   `json:"high"`
	Low    float64   `json:"low"`
	Close  float64   `json:"close"`
	Volume float64   `json:"volume"`
}

// Dataset is a cleaned, time-ordered OHLCV table stored column-wise.
// Dates is nil when the source had no date column. Index holds the row
// position each row had in the table it was derived from.
type Dataset struct {
	Index  []int
	Dates  []time.Time
	Open   []float64
	High   []float64
	Low    []float64
	Close  []float64
	Volume []float64
}

// NewDataset builds a dataset from candles. withDates=false drops the dates.
func NewDataset(candles []Candle, withDates bool) *Dataset {
	n := len(candles)
	ds := &Dataset{
		Index:  make([]int, n),
		Open:   make([]float64, n),
		High:   make([]float64, n),
		Low:    make([]float64, n),
		Close:  make([]float64, n),
		Volume: make([]float64, n),
	}
	if withDates {
		ds.Dates = make([]time.Time, n)
	}
	for i, c := range candles {
		ds.Index[i] = i
		ds.Open[i], ds.High[i], ds.Low[i], ds.Close[i], ds.Volume[i] = c.Open, c.High, c.Low, c.Close, c.Volume
		if withDates {
			ds.Dates[i] = c.Date
		}
	}
	return ds
}

func (d *Dataset) Len() int {
	if d == nil {
		return 0
	}
	return len(d.Close)
}

func (d *Dataset) HasDates() bool { return d != nil && len(d.Dates) == len(d.Close) && len(d.Dates) > 0 }

// RowIndex returns Index, or 0..n-1 when the dataset was built by hand.
func (d *Dataset) RowIndex() []int {
	if len(d.Index) == d.Len() {
		return d.Index
	}
	idx := make([]int, d.Len())
	for i := range idx {
		idx[i] = i
	}
	return idx
}

// Column returns a numeric column by name.
func (d *Dataset) Column(name string) ([]float64, error) {
	switch name {
	case ColOpen:
		return d.Open, nil
	case ColHigh:
		return d.High, nil
	case ColLow:
		return d.Low, nil
	case ColClose:
		return d.Close, nil
	case ColVolume:
		return d.Volume, nil
	}
	return nil, fmt.Errorf("unknown column %q", name)
}

// Candles materialises the rows.
func (d *Dataset) Candles() []Candle {
	out := make([]Candle, d.Len())
	for i := range out {
		out[i] = Candle{Open: d.Open[i], High: d.High[i], Low: d.Low[i], Close: d.Close[i], Volume: d.Volume[i]}
		if d.HasDates() {
			out[i].Date = d.Dates[i]
		}
	}
	return out
}

// Slice returns rows [i, j) as a new dataset sharing no memory with d.
func (d *Dataset) Slice(i, j int) *Dataset {
	if i < 0 {
		i = 0
	}
	if j > d.Len() {
		j = d.Len()
	}
	if i > j {
		i = j
	}
	out := &Dataset{
		Index:  append([]int(nil), d.RowIndex()[i:j]...),
		Open:   append([]float64(nil), d.Open[i:j]...),
		High:   append([]float64(nil), d.High[i:j]...),
		Low:    append([]float64(nil), d.Low[i:j]...),
		Close:  append([]float64(nil), d.Close[i:j]...),
		Volume: append([]float64(nil), d.Volume[i:j]...),
	}
	if d.HasDates() {
		out.Dates = append([]time.Time(nil), d.Dates[i:j]...)
	}
	return out
}

// Tail returns the last n rows.
func (d *Dataset) Tail(n int) *Dataset {
	return d.Slice(d.Len()-n, d.Len())
}

// PriceSeries is the input of every metric: closes with optional dates.
type PriceSeries struct {
	Dates []time.Time
	Close []float64
}

func (d *Dataset) PriceSeries() PriceSeries {
	return PriceSeries{Dates: d.Dates, Close: d.Close}
}

// Closes returns a copy of the close column.
func (d *Dataset) Closes() []float64 {
	return append([]float64(nil), d.Close...)
}
