package config

import (
	"os"
	"path/filepath"
	"testing"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadDefaults(t *testing.T) {
	t.Setenv("GEXBOARD_API_KEY", "test-key")

	path := writeConfig(t, "")
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.Upstream.BaseURL != "https://api.gex.bot" {
		t.Errorf("unexpected base URL %s", cfg.Upstream.BaseURL)
	}
	if cfg.Upstream.APIKey != "test-key" {
		t.Errorf("api key not picked up from env")
	}
	if cfg.Server.Port != "8080" {
		t.Errorf("unexpected port %s", cfg.Server.Port)
	}
	if cfg.Refresh.IntervalSec != 60 {
		t.Errorf("unexpected refresh interval %d", cfg.Refresh.IntervalSec)
	}
	if cfg.Refresh.Timezone != "America/New_York" {
		t.Errorf("unexpected timezone %s", cfg.Refresh.Timezone)
	}
	if cfg.Logging.Level != "info" {
		t.Errorf("unexpected log level %s", cfg.Logging.Level)
	}
}

func TestLoadFileOverridesDefaults(t *testing.T) {
	t.Setenv("GEXBOARD_API_KEY", "test-key")

	path := writeConfig(t, `
server:
  port: "9999"
refresh:
  interval_sec: 15
logging:
  level: debug
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.Server.Port != "9999" {
		t.Errorf("unexpected port %s", cfg.Server.Port)
	}
	if cfg.Refresh.IntervalSec != 15 {
		t.Errorf("unexpected refresh interval %d", cfg.Refresh.IntervalSec)
	}
	if cfg.Logging.Level != "debug" {
		t.Errorf("unexpected log level %s", cfg.Logging.Level)
	}
}

func TestLoadMissingAPIKey(t *testing.T) {
	t.Setenv("GEXBOARD_API_KEY", "")

	path := writeConfig(t, "")
	if _, err := Load(path); err == nil {
		t.Error("expected error for missing api key")
	}
}

func TestLoadRejectsShortInterval(t *testing.T) {
	t.Setenv("GEXBOARD_API_KEY", "test-key")

	path := writeConfig(t, `
refresh:
  interval_sec: 2
`)
	if _, err := Load(path); err == nil {
		t.Error("expected error for interval below 5 seconds")
	}
}

func TestLoadNotifyRequiresTopic(t *testing.T) {
	t.Setenv("GEXBOARD_API_KEY", "test-key")

	path := writeConfig(t, `
notify:
  enabled: true
`)
	if _, err := Load(path); err == nil {
		t.Error("expected error for enabled notify without topic")
	}
}

func TestValidateSymbol(t *testing.T) {
	valid := []string{"SPX", "SPY", "NDX", "BRK.B", "A", "RUT2000.X_1"}
	for _, s := range valid {
		if err := ValidateSymbol(s); err != nil {
			t.Errorf("expected %q to validate: %v", s, err)
		}
	}

	invalid := []string{"", "spx", "1SPX", "SPX SPY", "TOOLONGSYMBOL", "SP-X"}
	for _, s := range invalid {
		if err := ValidateSymbol(s); err == nil {
			t.Errorf("expected %q to be rejected", s)
		}
	}
}

func TestValidateDate(t *testing.T) {
	if err := ValidateDate("2025-01-07"); err != nil {
		t.Errorf("expected valid date: %v", err)
	}
	for _, d := range []string{"", "2025/01/07", "01-07-2025", "2025-1-7", "not-a-date"} {
		if err := ValidateDate(d); err == nil {
			t.Errorf("expected %q to be rejected", d)
		}
	}
}
