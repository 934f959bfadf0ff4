package preprocess

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/go-gota/gota/dataframe"
	"github.com/go-gota/gota/series"

	"MDK/internal/domain"
	"MDK/internal/domain/models"
	"MDK/pkg/util"
)

func readFrame(path string, delimiter rune) (dataframe.DataFrame, error) {
	f, err := os.Open(path)
	if err != nil {
		return dataframe.DataFrame{}, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()
	df := dataframe.ReadCSV(f,
		dataframe.WithDelimiter(delimiter),
		dataframe.HasHeader(true),
		dataframe.DetectTypes(false),
		dataframe.DefaultType(series.String),
	)
	if df.Err != nil {
		return df, domain.Validation("read csv", "%s: %v", path, df.Err)
	}
	return df, nil
}

// renameColumns applies fn to every column name.
func renameColumns(df dataframe.DataFrame, fn func(string) string) dataframe.DataFrame {
	for _, name := range df.Names() {
		if to := fn(name); to != name {
			df = df.Rename(to, name)
		}
	}
	return df
}

// LoadCSV reads a comma separated file with a header row. Column names are
// trimmed and lower-cased.
func LoadCSV(path string) (dataframe.DataFrame, error) {
	df, err := readFrame(path, ',')
	if err != nil {
		return df, err
	}
	return renameColumns(df, func(s string) string { return strings.ToLower(strings.TrimSpace(s)) }), nil
}

// LoadDataset is LoadCSV followed by Preprocess.
func LoadDataset(path string) (*models.Dataset, error) {
	df, err := LoadCSV(path)
	if err != nil {
		return nil, err
	}
	return Preprocess(df)
}

// StandardizeCSV rewrites a ';' separated file as a clean comma separated
// one: names trimmed, dateColumn (when set) parsed with unparseable values
// treated as null, rows with any null dropped.
func StandardizeCSV(in, out, dateColumn string) (dataframe.DataFrame, error) {
	df, err := readFrame(in, ';')
	if err != nil {
		return df, err
	}
	df = renameColumns(df, strings.TrimSpace)

	if dateColumn != "" {
		found := false
		for _, name := range df.Names() {
			found = found || name == dateColumn
		}
		if !found {
			return df, domain.Validation("standardize", "date column %q not found in the data", dateColumn)
		}
		recs := df.Col(dateColumn).Records()
		parsed := make([]string, len(recs))
		for i, r := range recs {
			if t, ok := util.ParseTime(r); ok {
				parsed[i] = util.StripZone(t).Format(time.DateTime)
			}
		}
		df = df.Mutate(series.New(parsed, series.String, dateColumn))
	}

	keep := make([]int, 0, df.Nrow())
	cols := make([][]string, df.Ncol())
	for j, name := range df.Names() {
		cols[j] = df.Col(name).Records()
	}
	for i := 0; i < df.Nrow(); i++ {
		ok := true
		for j := range cols {
			if isNull(cols[j][i]) {
				ok = false
				break
			}
		}
		if ok {
			keep = append(keep, i)
		}
	}
	if len(keep) == 0 {
		return df, domain.Validation("standardize", "%s has no complete rows", in)
	}
	df = df.Subset(keep)
	if df.Err != nil {
		return df, fmt.Errorf("standardize %s: %w", in, df.Err)
	}

	f, err := os.Create(out)
	if err != nil {
		return df, fmt.Errorf("create %s: %w", out, err)
	}
	defer f.Close()
	if err := df.WriteCSV(f); err != nil {
		return df, fmt.Errorf("write %s: %w", out, err)
	}
	return df, nil
}
