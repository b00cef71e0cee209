package daemon

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/baekya-protocol/baekya/internal/domain"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.API.Host != "127.0.0.1" {
		t.Errorf("API.Host = %q, want %q", cfg.API.Host, "127.0.0.1")
	}
	if cfg.API.Port != 3000 {
		t.Errorf("API.Port = %d, want %d", cfg.API.Port, 3000)
	}
	if !cfg.API.Metrics {
		t.Error("API.Metrics should be true by default")
	}
	if cfg.Emission.Male != 80 || cfg.Emission.Female != 85 || cfg.Emission.Default != 80 {
		t.Errorf("Emission = %+v, want 80/85/80", cfg.Emission)
	}
	if !cfg.Issuance.Enabled || cfg.Issuance.Schedule != "@daily" {
		t.Errorf("Issuance = %+v, want enabled @daily", cfg.Issuance)
	}
	if !cfg.Bootstrap.DefaultDAOs {
		t.Error("Bootstrap.DefaultDAOs should be true by default")
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("default config invalid: %v", err)
	}
}

func TestLoad_MissingFileGivesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.toml"))
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if cfg.API.Port != DefaultConfig().API.Port {
		t.Errorf("API.Port = %d, want default", cfg.API.Port)
	}
}

func TestLoad_OverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), ConfigFile)
	body := `
[api]
port = 8080

[log]
level = "debug"
format = "json"

[emission]
female_life_expectancy = 87.5

[issuance]
schedule = "@every 6h"
window = "6h"
min_guarantee = 2

[bootstrap]
initial_operator = "did:baekya:alice"
`
	if err := os.WriteFile(path, []byte(body), 0600); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if cfg.API.Port != 8080 || cfg.API.Host != "127.0.0.1" {
		t.Errorf("API = %+v, want port override and default host", cfg.API)
	}
	if cfg.Log.Format != "json" || cfg.Log.Level != "debug" {
		t.Errorf("Log = %+v", cfg.Log)
	}
	if cfg.Emission.Female != 87.5 || cfg.Emission.Male != 80 {
		t.Errorf("Emission = %+v", cfg.Emission)
	}
	if cfg.Bootstrap.InitialOperator != "did:baekya:alice" || !cfg.Bootstrap.DefaultDAOs {
		t.Errorf("Bootstrap = %+v", cfg.Bootstrap)
	}

	sched, err := cfg.IssuanceSchedule()
	if err != nil {
		t.Fatalf("IssuanceSchedule() error: %v", err)
	}
	if sched.Window != 6*time.Hour || sched.Schedule != "@every 6h" {
		t.Errorf("schedule = %+v", sched)
	}
	if pc := cfg.Protocol(); pc.MinGuarantee != domain.Tokens(2) || pc.Emission.LifeExpectancy.Female != 87.5 {
		t.Errorf("Protocol() = %+v", pc)
	}
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"syntax", "[api\nport = 1"},
		{"port", "[api]\nport = 70000"},
		{"log format", "[log]\nformat = \"xml\""},
		{"life expectancy", "[emission]\nmale_life_expectancy = 0"},
		{"schedule", "[issuance]\nschedule = \"sometimes\""},
		{"window", "[issuance]\nwindow = \"a day\""},
		{"min guarantee", "[issuance]\nmin_guarantee = -1"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), ConfigFile)
			if err := os.WriteFile(path, []byte(tt.body), 0600); err != nil {
				t.Fatal(err)
			}
			if _, err := Load(path); err == nil {
				t.Errorf("Load(%s) should fail", tt.name)
			}
		})
	}
}

func TestLoad_DisabledIssuanceSkipsSchedule(t *testing.T) {
	path := filepath.Join(t.TempDir(), ConfigFile)
	body := "[issuance]\nenabled = false\nschedule = \"sometimes\"\n"
	if err := os.WriteFile(path, []byte(body), 0600); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(path); err != nil {
		t.Errorf("disabled issuance should not validate its schedule: %v", err)
	}
}

func TestSave_RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", ConfigFile)
	cfg := DefaultConfig()
	cfg.API.Port = 9090
	cfg.Bootstrap.InitialOperator = "op"

	if err := Save(path, cfg); err != nil {
		t.Fatalf("Save() error: %v", err)
	}
	got, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if got != cfg {
		t.Errorf("round trip = %+v, want %+v", got, cfg)
	}
}

func TestHome(t *testing.T) {
	t.Setenv("BAEKYA_HOME", "/srv/baekya")
	if got := Home(); got != "/srv/baekya" {
		t.Errorf("Home() = %q, want /srv/baekya", got)
	}
	if got := DefaultPath(); got != filepath.Join("/srv/baekya", ConfigFile) {
		t.Errorf("DefaultPath() = %q", got)
	}
	if got := DefaultConfig().DataDir(); got != filepath.Join("/srv/baekya", "data") {
		t.Errorf("DataDir() = %q", got)
	}
}

func TestAddr(t *testing.T) {
	cfg := DefaultConfig()
	if got := cfg.Addr(); got != "127.0.0.1:3000" {
		t.Errorf("Addr() = %q, want 127.0.0.1:3000", got)
	}
}

func TestLoad_ZeroMinGuarantee(t *testing.T) {
	path := filepath.Join(t.TempDir(), ConfigFile)
	if err := os.WriteFile(path, []byte("[issuance]\nmin_guarantee = 0\n"), 0600); err != nil {
		t.Fatal(err)
	}
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if got := cfg.Protocol().MinGuarantee; got != 0 {
		t.Errorf("MinGuarantee = %v, want 0", got)
	}
}
