package features

import (
	"fmt"
	"time"

	"gonum.org/v1/gonum/mat"

	"MDK/internal/domain"
	"MDK/internal/domain/models"
)

// Table is a dense feature matrix with named columns. Index keeps the row
// position each row had in the dataset it was built from, so predictions can
// be aligned back after warmup rows were dropped.
type Table struct {
	Columns []string
	Index   []int
	Dates   []time.Time
	Data    *mat.Dense
}

// FromDataset copies the required OHLCV columns into a table.
func FromDataset(ds *models.Dataset) *Table {
	return build(ds, 0, "", 0)
}

// LagName is the column name of the k-th lag.
func LagName(k int) string { return fmt.Sprintf("lag_%d", k) }

// CreateLagFeatures appends lag_1..lag_n of target and drops the leading
// nLags rows. lag_k at output row i equals target at input row i-k.
func CreateLagFeatures(ds *models.Dataset, target string, nLags int) (*Table, error) {
	if nLags < 1 {
		return nil, domain.Validation("lag features", "n_lags must be positive, got %d", nLags)
	}
	if _, err := ds.Column(target); err != nil {
		return nil, domain.Validation("lag features", "%v", err)
	}
	if ds.Len() < nLags+1 {
		return nil, domain.InsufficientData("lag features", nLags+1, ds.Len())
	}
	return build(ds, nLags, target, nLags), nil
}

func build(ds *models.Dataset, nLags int, target string, skip int) *Table {
	cols := append([]string(nil), models.RequiredColumns...)
	for k := 1; k <= nLags; k++ {
		cols = append(cols, LagName(k))
	}
	rows := ds.Len() - skip
	t := &Table{Columns: cols, Index: make([]int, rows)}
	if rows == 0 {
		return t
	}
	t.Data = mat.NewDense(rows, len(cols), nil)
	src := make([][]float64, len(models.RequiredColumns))
	for j, name := range models.RequiredColumns {
		src[j], _ = ds.Column(name)
	}
	var tcol []float64
	if nLags > 0 {
		tcol, _ = ds.Column(target)
	}
	idx := ds.RowIndex()
	for i := 0; i < rows; i++ {
		r := i + skip
		t.Index[i] = idx[r]
		for j := range src {
			t.Data.Set(i, j, src[j][r])
		}
		for k := 1; k <= nLags; k++ {
			t.Data.Set(i, len(src)+k-1, tcol[r-k])
		}
	}
	if ds.HasDates() {
		t.Dates = append([]time.Time(nil), ds.Dates[skip:]...)
	}
	return t
}

func (t *Table) Rows() int { return len(t.Index) }

func (t *Table) colIndex(name string) (int, error) {
	for i, c := range t.Columns {
		if c == name {
			return i, nil
		}
	}
	return -1, domain.Validation("feature table", "missing column %q", name)
}

// Col returns a copy of one column.
func (t *Table) Col(name string) ([]float64, error) {
	j, err := t.colIndex(name)
	if err != nil {
		return nil, err
	}
	out := make([]float64, t.Rows())
	if t.Data != nil {
		mat.Col(out, j, t.Data)
	}
	return out, nil
}

// Select returns a new matrix holding the named columns in order.
func (t *Table) Select(names ...string) (*mat.Dense, error) {
	if t.Rows() == 0 {
		return nil, domain.InsufficientData("feature table", 1, 0)
	}
	out := mat.NewDense(t.Rows(), len(names), nil)
	col := make([]float64, t.Rows())
	for k, name := range names {
		j, err := t.colIndex(name)
		if err != nil {
			return nil, err
		}
		mat.Col(col, j, t.Data)
		out.SetCol(k, col)
	}
	return out, nil
}
