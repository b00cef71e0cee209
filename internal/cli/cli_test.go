package cli

import (
	"bytes"
	"path/filepath"
	"strings"
	"testing"

	"github.com/baekya-protocol/baekya/internal/daemon"
)

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	t.Setenv("BAEKYA_HOME", t.TempDir())
	cfgFile = ""

	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs(args)
	err := rootCmd.Execute()
	return out.String(), err
}

func TestVersion(t *testing.T) {
	out, err := run(t, "version")
	if err != nil {
		t.Fatalf("version: %v", err)
	}
	if !strings.HasPrefix(out, "baekyad "+Version) {
		t.Errorf("output = %q", out)
	}
}

func TestConfigInit(t *testing.T) {
	path := filepath.Join(t.TempDir(), daemon.ConfigFile)

	if _, err := run(t, "config", "init", "--config", path); err != nil {
		t.Fatalf("config init: %v", err)
	}
	cfg, err := daemon.Load(path)
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if cfg != daemon.DefaultConfig() {
		t.Errorf("written config = %+v, want defaults", cfg)
	}

	if _, err := run(t, "config", "init", "--config", path); err == nil {
		t.Error("second init without --force should fail")
	}
}

func TestConfigShow(t *testing.T) {
	out, err := run(t, "config", "show")
	if err != nil {
		t.Fatalf("config show: %v", err)
	}
	if !strings.Contains(out, "[issuance]") || !strings.Contains(out, `schedule = "@daily"`) {
		t.Errorf("output missing issuance section:\n%s", out)
	}
}
