package config

import (
	"os"
	"testing"
)

func writeTempConfig(t *testing.T, extra string) string {
	t.Helper()
	content := `service:
  name: "realtime-strategies"
  version: "1.0"
bus:
  url: "nats://localhost:4222"
  consumer:
    topic: "orderbook.>"
    queue_group: "strategies"
  publish:
    topic: "strategies.signals"
store:
  uri: "mongodb://localhost:27017"
  database: "strategies"
` + extra
	f, err := os.CreateTemp("", "cfg-*.yml")
	if err != nil {
		t.Fatalf("create temp file: %v", err)
	}
	if _, err := f.WriteString(content); err != nil {
		t.Fatalf("write temp file: %v", err)
	}
	if err := f.Close(); err != nil {
		t.Fatalf("close temp file: %v", err)
	}
	return f.Name()
}

func TestLoadConfigAppliesDefaults(t *testing.T) {
	path := writeTempConfig(t, "")
	defer os.Remove(path)

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}
	if cfg.Service.Name != "realtime-strategies" {
		t.Errorf("unexpected service name: %s", cfg.Service.Name)
	}
	if cfg.ConfigMgr.CacheTTL != 60_000_000_000 {
		t.Errorf("expected default cache_ttl of 1m, got %s", cfg.ConfigMgr.CacheTTL)
	}
	if cfg.Depth.MaxSymbols != 500 {
		t.Errorf("expected default max_symbols of 500, got %d", cfg.Depth.MaxSymbols)
	}
	if cfg.Router.BreakerFailureThreshold != 5 {
		t.Errorf("expected default breaker_failure_threshold of 5, got %d", cfg.Router.BreakerFailureThreshold)
	}
}

func TestLoadConfigMissingServiceNameFails(t *testing.T) {
	path := writeTempConfig(t, "")
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read temp file: %v", err)
	}
	os.Remove(path)

	bad := string(data)
	bad = bad[len(`service:
  name: "realtime-strategies"
  version: "1.0"
`):]
	badPath := path + ".bad"
	if err := os.WriteFile(badPath, []byte(bad), 0o600); err != nil {
		t.Fatalf("write bad config: %v", err)
	}
	defer os.Remove(badPath)

	if _, err := LoadConfig(badPath); err == nil {
		t.Fatal("expected validation error for missing service.name")
	}
}

func TestLoadConfigMissingBusURLFails(t *testing.T) {
	path := writeTempConfig(t, "")
	defer os.Remove(path)
	os.Setenv("NATS_URL", "")

	content := `service:
  name: "realtime-strategies"
  version: "1.0"
store:
  uri: "mongodb://localhost:27017"
  database: "strategies"
`
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("overwrite config: %v", err)
	}

	if _, err := LoadConfig(path); err == nil {
		t.Fatal("expected validation error for missing bus.url")
	}
}

func TestLoadConfigEnvOverridesBusURL(t *testing.T) {
	path := writeTempConfig(t, "")
	defer os.Remove(path)

	os.Setenv("NATS_URL", "nats://override:4222")
	defer os.Unsetenv("NATS_URL")

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}
	if cfg.Bus.URL != "nats://override:4222" {
		t.Errorf("expected env override, got %s", cfg.Bus.URL)
	}
}
