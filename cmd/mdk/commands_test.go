package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeCSV(t *testing.T, n int) string {
	t.Helper()
	var b strings.Builder
	b.WriteString("Date,Open,High,Low,Close,Volume\n")
	for i := 0; i < n; i++ {
		c := 100 + float64(i)
		fmt.Fprintf(&b, "2024-01-%02d,%g,%g,%g,%g,%d\n", 1+i%28, c-0.5, c+1, c-1, c, 1000+i)
	}
	path := filepath.Join(t.TempDir(), "prices.csv")
	if err := os.WriteFile(path, []byte(b.String()), 0o600); err != nil {
		t.Fatalf("write csv: %v", err)
	}
	return path
}

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestTrainThenInfer(t *testing.T) {
	csv := writeCSV(t, 28)
	dir := t.TempDir()

	out, err := run(t, "train", "--model", "regression", "--csv", csv, "--out", dir)
	if err != nil {
		t.Fatalf("train: %v", err)
	}
	var res struct {
		ModelName string `json:"model_name"`
		Artifacts struct {
			Model string `json:"model_artifact_path"`
		} `json:"artifacts"`
	}
	if err := json.Unmarshal([]byte(out), &res); err != nil {
		t.Fatalf("decode %q: %v", out, err)
	}
	if _, err := os.Stat(res.Artifacts.Model); err != nil {
		t.Fatalf("artifact missing: %v", err)
	}

	out, err = run(t, "infer", "--model", "regression", "--dir", dir, "--csv", csv)
	if err != nil {
		t.Fatalf("infer: %v", err)
	}
	var preds []struct {
		Prediction *float64 `json:"prediction"`
	}
	if err := json.Unmarshal([]byte(out), &preds); err != nil {
		t.Fatalf("decode predictions: %v", err)
	}
	if len(preds) != 28 || preds[0].Prediction == nil {
		t.Fatalf("unexpected predictions: %s", out)
	}

	out, err = run(t, "forecast", "--model", "regression", "--dir", dir, "--steps", "2")
	if err != nil {
		t.Fatalf("forecast: %v", err)
	}
	if !strings.Contains(out, `"N/A"`) {
		t.Fatalf("regression forecast should be unsupported: %s", out)
	}
}

func TestInferWithoutArtifacts(t *testing.T) {
	csv := writeCSV(t, 10)
	if _, err := run(t, "infer", "--model", "lstm", "--dir", t.TempDir(), "--csv", csv); err == nil {
		t.Fatalf("expected an error for a missing artifact")
	}
}

func TestMetricAndModels(t *testing.T) {
	csv := writeCSV(t, 20)
	out, err := run(t, "metric", "--name", "maximum_drawdown", "--csv", csv)
	if err != nil {
		t.Fatalf("metric: %v", err)
	}
	if !strings.Contains(out, `"value": 0`) {
		t.Fatalf("rising series should have zero drawdown: %s", out)
	}

	if _, err := run(t, "metric", "--name", "nope", "--csv", csv); err == nil {
		t.Fatalf("expected unknown metric error")
	}

	out, err = run(t, "models")
	if err != nil {
		t.Fatalf("models: %v", err)
	}
	if !strings.Contains(out, `"arima"`) || !strings.Contains(out, `"sharpe_ratio"`) {
		t.Fatalf("listing incomplete: %s", out)
	}
}

func TestBadConfigOverride(t *testing.T) {
	csv := writeCSV(t, 20)
	if _, err := run(t, "train", "--model", "regression", "--csv", csv, "--out", t.TempDir(), "--config", "[1,2]"); err == nil {
		t.Fatalf("expected a validation error for a non-object config")
	}
}
