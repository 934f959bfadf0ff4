package clickhouse

import (
	"context"
	"testing"
	"time"

	ch "github.com/ClickHouse/clickhouse-go/v2"
)

func TestOptions(t *testing.T) {
	cfg := defaultConfig()
	for _, opt := range []ClientOption{
		WithAddr("ch.local", 8123),
		WithAuth("market", "mdk", "secret"),
		WithHTTP(true),
		WithTimeouts(0, time.Minute, 90*time.Second),
		WithPool(0, 2, 0),
	} {
		opt(&cfg)
	}
	o := options(cfg)
	if len(o.Addr) != 1 || o.Addr[0] != "ch.local:8123" {
		t.Fatalf("addr = %v", o.Addr)
	}
	if o.Auth.Database != "market" || o.Auth.Username != "mdk" || o.Auth.Password != "secret" {
		t.Fatalf("auth = %+v", o.Auth)
	}
	if o.Protocol != ch.HTTP {
		t.Fatalf("protocol = %v", o.Protocol)
	}
	if o.Settings["max_execution_time"] != 90 {
		t.Fatalf("settings = %v", o.Settings)
	}
	if o.DialTimeout != 5*time.Second || o.ReadTimeout != time.Minute {
		t.Fatalf("timeouts dial=%v read=%v", o.DialTimeout, o.ReadTimeout)
	}
	if cfg.MaxOpenConns != 10 || cfg.MaxIdleConns != 2 {
		t.Fatalf("pool = %d/%d", cfg.MaxOpenConns, cfg.MaxIdleConns)
	}
}

func TestAuthKeepsDefaults(t *testing.T) {
	cfg := defaultConfig()
	WithAuth("", "", "")(&cfg)
	WithAddr("ch.local", 0)(&cfg)
	if cfg.Database != "default" || cfg.User != "default" || cfg.Port != 9000 {
		t.Fatalf("defaults lost: %+v", cfg)
	}
}

func TestNewClientRequiresHost(t *testing.T) {
	if _, err := NewClient(context.Background()); err == nil {
		t.Fatalf("expected an error without a host")
	}
}
