package util

import (
	"fmt"
	"strconv"
	"strings"
	"time"
	"unicode"
)

type IntervalUnit int

const (
	Minute IntervalUnit = iota
	Hour
	Day
	Week
	Month
)

// Interval is a resampling frequency such as "D", "H", "5min", "15T", "W", "M".
type Interval struct {
	N    int
	Unit IntervalUnit
}

// ParseInterval accepts frequency aliases ("D", "H", "15min"). Lower-case
// "m" is minutes and upper-case "M" is months. Weeks start on Monday;
// months are labelled by their first day.
func ParseInterval(s string) (Interval, error) {
	s = strings.TrimSpace(s)
	i := 0
	for i < len(s) && unicode.IsDigit(rune(s[i])) {
		i++
	}
	n := 1
	if i > 0 {
		v, err := strconv.Atoi(s[:i])
		if err != nil || v <= 0 {
			return Interval{}, fmt.Errorf("invalid interval %q", s)
		}
		n = v
	}
	switch s[i:] {
	case "T", "min", "m":
		return Interval{N: n, Unit: Minute}, nil
	case "H", "h":
		return Interval{N: n, Unit: Hour}, nil
	case "D", "d":
		return Interval{N: n, Unit: Day}, nil
	case "W", "w":
		return Interval{N: n, Unit: Week}, nil
	case "M", "MS", "ME":
		return Interval{N: n, Unit: Month}, nil
	}
	return Interval{}, fmt.Errorf("invalid interval %q", s)
}

// MustInterval is ParseInterval for trusted constants.
func MustInterval(s string) Interval {
	iv, err := ParseInterval(s)
	if err != nil {
		panic(err)
	}
	return iv
}

// Floor returns the start of the bucket containing t.
func (iv Interval) Floor(t time.Time) time.Time {
	t = StripZone(t)
	switch iv.Unit {
	case Minute:
		return t.Truncate(time.Duration(iv.N) * time.Minute)
	case Hour:
		return t.Truncate(time.Duration(iv.N) * time.Hour)
	case Day:
		day := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
		if iv.N == 1 {
			return day
		}
		days := day.Unix() / 86400
		return time.Unix((days-days%int64(iv.N))*86400, 0).UTC()
	case Week:
		day := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
		offset := (int(day.Weekday()) + 6) % 7
		monday := day.AddDate(0, 0, -offset)
		if iv.N == 1 {
			return monday
		}
		// 1970-01-05 was a Monday
		weeks := int(monday.Sub(time.Date(1970, 1, 5, 0, 0, 0, 0, time.UTC)).Hours() / (24 * 7))
		return monday.AddDate(0, 0, -7*(((weeks%iv.N)+iv.N)%iv.N))
	default:
		months := t.Year()*12 + int(t.Month()) - 1
		months -= months % iv.N
		return time.Date(months/12, time.Month(months%12+1), 1, 0, 0, 0, 0, time.UTC)
	}
}

// Add advances t by k intervals.
func (iv Interval) Add(t time.Time, k int) time.Time {
	switch iv.Unit {
	case Minute:
		return t.Add(time.Duration(k*iv.N) * time.Minute)
	case Hour:
		return t.Add(time.Duration(k*iv.N) * time.Hour)
	case Day:
		return t.AddDate(0, 0, k*iv.N)
	case Week:
		return t.AddDate(0, 0, 7*k*iv.N)
	default:
		return t.AddDate(0, k*iv.N, 0)
	}
}

func (iv Interval) String() string {
	unit := [...]string{"min", "H", "D", "W", "MS"}[iv.Unit]
	if iv.N == 1 {
		return unit
	}
	return strconv.Itoa(iv.N) + unit
}
