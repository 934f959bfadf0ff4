package util

import "strings"

// SnakeToPascal converts "random_forest_time_series" to "RandomForestTimeSeries".
func SnakeToPascal(s string) string {
	var b strings.Builder
	for _, part := range strings.Split(s, "_") {
		if part == "" {
			continue
		}
		b.WriteString(strings.ToUpper(part[:1]))
		b.WriteString(strings.ToLower(part[1:]))
	}
	return b.String()
}
