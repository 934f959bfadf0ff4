package util

import (
	"testing"
	"time"
)

func TestParseInterval(t *testing.T) {
	cases := map[string]Interval{
		"D":     {N: 1, Unit: Day},
		"H":     {N: 1, Unit: Hour},
		"5min":  {N: 5, Unit: Minute},
		"15T":   {N: 15, Unit: Minute},
		"W":     {N: 1, Unit: Week},
		"M":     {N: 1, Unit: Month},
		"30m":   {N: 30, Unit: Minute},
		"2D":    {N: 2, Unit: Day},
	}
	for in, want := range cases {
		got, err := ParseInterval(in)
		if err != nil {
			t.Fatalf("%s: %v", in, err)
		}
		if got != want {
			t.Fatalf("%s: got %+v want %+v", in, got, want)
		}
	}
	for _, bad := range []string{"", "X", "0D", "D5"} {
		if _, err := ParseInterval(bad); err == nil {
			t.Fatalf("expected error for %q", bad)
		}
	}
}

func TestIntervalFloorAndAdd(t *testing.T) {
	ts := time.Date(2024, 5, 15, 13, 47, 12, 0, time.UTC) // Wednesday
	if got := MustInterval("D").Floor(ts); !got.Equal(time.Date(2024, 5, 15, 0, 0, 0, 0, time.UTC)) {
		t.Fatalf("day floor %v", got)
	}
	if got := MustInterval("15min").Floor(ts); !got.Equal(time.Date(2024, 5, 15, 13, 45, 0, 0, time.UTC)) {
		t.Fatalf("15min floor %v", got)
	}
	if got := MustInterval("W").Floor(ts); !got.Equal(time.Date(2024, 5, 13, 0, 0, 0, 0, time.UTC)) {
		t.Fatalf("week floor %v", got)
	}
	if got := MustInterval("M").Floor(ts); !got.Equal(time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)) {
		t.Fatalf("month floor %v", got)
	}
	if got := MustInterval("H").Add(ts, 2); !got.Equal(ts.Add(2 * time.Hour)) {
		t.Fatalf("hour add %v", got)
	}
	if got := MustInterval("M").Add(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), 3); got.Month() != time.April {
		t.Fatalf("month add %v", got)
	}
}

func TestSnakeToPascal(t *testing.T) {
	cases := [][2]string{
		{"lstm", "Lstm"},
		{"random_forest_time_series", "RandomForestTimeSeries"},
		{"sharpe_ratio", "SharpeRatio"},
		{"_x__y", "XY"},
	}
	for _, c := range cases {
		if got := SnakeToPascal(c[0]); got != c[1] {
			t.Fatalf("%s: got %s want %s", c[0], got, c[1])
		}
	}
}
