package preprocess

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/go-gota/gota/dataframe"

	"MDK/internal/domain"
	"MDK/internal/domain/models"
)

func frame(t *testing.T, csv string) dataframe.DataFrame {
	t.Helper()
	df := dataframe.ReadCSV(strings.NewReader(csv), dataframe.DetectTypes(false))
	if df.Err != nil {
		t.Fatalf("read: %v", df.Err)
	}
	return df
}

const raw = `date,open,high,low,close,volume
2024-01-03,3,4,2,3.5,300
2024-01-01,1,2,0.5,1.5,100
2024-01-02,NaN,3,1,2.5,200
2024-01-04,4,5,3,4.5,
`

func TestPreprocessDropsNullsAndSorts(t *testing.T) {
	ds, err := Preprocess(frame(t, raw))
	if err != nil {
		t.Fatalf("preprocess: %v", err)
	}
	if ds.Len() != 2 {
		t.Fatalf("expected 2 rows, got %d", ds.Len())
	}
	if ds.Close[0] != 1.5 || ds.Close[1] != 3.5 {
		t.Fatalf("rows not sorted by date: %v", ds.Close)
	}
	if !ds.HasDates() || ds.Dates[0].Day() != 1 {
		t.Fatalf("dates not parsed")
	}
}

func TestPreprocessMissingColumn(t *testing.T) {
	_, err := Preprocess(frame(t, "open,high,low,close\n1,2,3,4\n"))
	if !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
	if !strings.Contains(err.Error(), "volume") {
		t.Fatalf("error should name the column: %v", err)
	}
}

func TestPreprocessNonNumeric(t *testing.T) {
	_, err := Preprocess(frame(t, "open,high,low,close,volume\n1,2,3,abc,5\n"))
	if !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestPreprocessIdempotent(t *testing.T) {
	once, err := Preprocess(frame(t, raw))
	if err != nil {
		t.Fatalf("preprocess: %v", err)
	}
	twice, err := Preprocess(ToDataFrame(once))
	if err != nil {
		t.Fatalf("second preprocess: %v", err)
	}
	if twice.Len() != once.Len() {
		t.Fatalf("row count changed %d -> %d", once.Len(), twice.Len())
	}
	for i := 0; i < once.Len(); i++ {
		if once.Close[i] != twice.Close[i] || once.Volume[i] != twice.Volume[i] || !once.Dates[i].Equal(twice.Dates[i]) {
			t.Fatalf("row %d changed", i)
		}
	}
}

func TestLoadCSVNormalisesNames(t *testing.T) {
	path := filepath.Join(t.TempDir(), "in.csv")
	if err := os.WriteFile(path, []byte(" Date ,OPEN,High,low,Close,Volume\n2024-01-01,1,2,0,1,10\n"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	ds, err := LoadDataset(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if ds.Len() != 1 || !ds.HasDates() {
		t.Fatalf("unexpected dataset %+v", ds)
	}
}

func TestStandardizeCSV(t *testing.T) {
	dir := t.TempDir()
	in := filepath.Join(dir, "raw.csv")
	out := filepath.Join(dir, "clean.csv")
	body := " date ; open ;close\n2024-01-01;1;2\nnot-a-date;3;4\n2024-01-03;;6\n"
	if err := os.WriteFile(in, []byte(body), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	df, err := StandardizeCSV(in, out, "date")
	if err != nil {
		t.Fatalf("standardize: %v", err)
	}
	if df.Nrow() != 1 {
		t.Fatalf("expected one clean row, got %d", df.Nrow())
	}
	data, err := os.ReadFile(out)
	if err != nil {
		t.Fatalf("read output: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	if lines[0] != "date,open,close" || !strings.HasPrefix(lines[1], "2024-01-01 00:00:00,") {
		t.Fatalf("unexpected output %q", data)
	}
	if _, err := StandardizeCSV(in, out, "when"); !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("expected validation error for unknown date column")
	}
}

func TestFromCandles(t *testing.T) {
	ds, err := Preprocess(FromCandles([]models.Candle{{Open: 1, High: 2, Low: 0, Close: 1, Volume: 3}}))
	if err != nil || ds.Len() != 1 || ds.HasDates() {
		t.Fatalf("unexpected %v %v", ds, err)
	}
}
