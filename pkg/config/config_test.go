package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func write(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	return path
}

func TestDefaults(t *testing.T) {
	c := Default()
	if c.MDK.Seed != 42 || c.MDK.RecentRows != 100 || c.MDK.ArtifactDir != "trained_models" {
		t.Fatalf("mdk defaults: %+v", c.MDK)
	}
	if c.Serving.ModelCacheTTL != 30*time.Minute {
		t.Fatalf("cache ttl %v", c.Serving.ModelCacheTTL)
	}
	if err := c.Validate(); err != nil {
		t.Fatalf("defaults invalid: %v", err)
	}
}

func TestLoadKeepsDefaults(t *testing.T) {
	c, err := Load(write(t, "environment: test\nmdk:\n  artifact_dir: /tmp/models\n  recent_rows: 80\n"))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if c.MDK.ArtifactDir != "/tmp/models" || c.MDK.RecentRows != 80 {
		t.Fatalf("overrides lost: %+v", c.MDK)
	}
	if c.Server.Port != 8080 || c.Kafka.JobsTopic != "mdk.training.jobs" {
		t.Fatalf("defaults lost: port=%d topic=%s", c.Server.Port, c.Kafka.JobsTopic)
	}
}

func TestValidateRejects(t *testing.T) {
	cases := []string{
		"mdk:\n  recent_rows: 10\n",
		"kafka:\n  enabled: true\n",
		"logging:\n  level: chatty\n",
	}
	for _, body := range cases {
		if _, err := Load(write(t, body)); err == nil {
			t.Fatalf("expected error for %q", body)
		}
	}
}

func TestLoadWithEnv(t *testing.T) {
	t.Setenv("MDK_ARTIFACT_DIR", "/srv/models")
	t.Setenv("KAFKA_BROKERS", "a:9092,b:9092")
	t.Setenv("LOG_LEVEL", "DEBUG")
	c, err := LoadWithEnv("")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if c.MDK.ArtifactDir != "/srv/models" || !c.Kafka.Enabled || len(c.Kafka.Brokers) != 2 || c.Logging.Level != "debug" {
		t.Fatalf("env not applied: %+v %+v %s", c.MDK, c.Kafka.Brokers, c.Logging.Level)
	}
}
