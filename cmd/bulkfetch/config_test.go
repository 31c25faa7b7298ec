package main

import (
	"flag"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/edgar-tools/bulkfetch/pkg/edgar"
)

func newFlagSet() *flag.FlagSet {
	return flag.NewFlagSet("bulkfetch", flag.ContinueOnError)
}

// clearEnv blanks every BULKFETCH variable so ambient environment
// cannot leak into a test.
func clearEnv(t *testing.T) {
	t.Helper()
	for _, name := range []string{
		"BULKFETCH_CONFIG",
		"BULKFETCH_DIR",
		"BULKFETCH_PREFIX",
		"BULKFETCH_START",
		"BULKFETCH_END",
		"BULKFETCH_AGENT",
		"BULKFETCH_RATE",
		"BULKFETCH_CONCURRENCY",
		"BULKFETCH_LOG_LEVEL",
		"BULKFETCH_PRETTY",
		"BULKFETCH_METRICS_ADDR",
	} {
		t.Setenv(name, "")
	}
}

func writeConfigFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("writing config file: %v", err)
	}
	return path
}

func TestResolve_Defaults(t *testing.T) {
	clearEnv(t)

	opts, err := resolve(newFlagSet(), nil)
	if err != nil {
		t.Fatalf("resolve() error = %v", err)
	}

	if opts.Dir != "downloads" {
		t.Errorf("Dir = %q, want downloads", opts.Dir)
	}
	if opts.Start != "1994Q1" {
		t.Errorf("Start = %q, want 1994Q1", opts.Start)
	}
	if want := edgar.QuarterOf(time.Now()).String(); opts.End != want {
		t.Errorf("End = %q, want current quarter %q", opts.End, want)
	}
	if opts.Rate != edgar.DefaultRateLimit {
		t.Errorf("Rate = %v, want %v", opts.Rate, edgar.DefaultRateLimit)
	}
	if opts.Concurrency != 8 {
		t.Errorf("Concurrency = %d, want 8", opts.Concurrency)
	}
	if opts.Level != "info" {
		t.Errorf("Level = %q, want info", opts.Level)
	}
	if opts.Agent != "" {
		t.Errorf("Agent = %q, want empty", opts.Agent)
	}
	if opts.Pretty {
		t.Error("Pretty = true, want false")
	}
}

func TestResolve_ConfigFile(t *testing.T) {
	clearEnv(t)

	path := writeConfigFile(t, `
dir: /data/edgar
agent: research@example.com
rate: 5
concurrency: 4
pretty: true
metrics_addr: ":9090"
`)

	opts, err := resolve(newFlagSet(), []string{"-config", path})
	if err != nil {
		t.Fatalf("resolve() error = %v", err)
	}

	if opts.Dir != "/data/edgar" {
		t.Errorf("Dir = %q, want /data/edgar", opts.Dir)
	}
	if opts.Agent != "research@example.com" {
		t.Errorf("Agent = %q", opts.Agent)
	}
	if opts.Rate != 5 {
		t.Errorf("Rate = %v, want 5", opts.Rate)
	}
	if opts.Concurrency != 4 {
		t.Errorf("Concurrency = %d, want 4", opts.Concurrency)
	}
	if !opts.Pretty {
		t.Error("Pretty = false, want true")
	}
	if opts.MetricsAddr != ":9090" {
		t.Errorf("MetricsAddr = %q, want :9090", opts.MetricsAddr)
	}

	// Keys the file omits keep their defaults.
	if opts.Start != "1994Q1" {
		t.Errorf("Start = %q, want 1994Q1", opts.Start)
	}
}

func TestResolve_ConfigFileFromEnv(t *testing.T) {
	clearEnv(t)

	path := writeConfigFile(t, "dir: /data/edgar\n")
	t.Setenv("BULKFETCH_CONFIG", path)

	opts, err := resolve(newFlagSet(), nil)
	if err != nil {
		t.Fatalf("resolve() error = %v", err)
	}
	if opts.Dir != "/data/edgar" {
		t.Errorf("Dir = %q, want /data/edgar", opts.Dir)
	}
}

func TestResolve_EnvOverridesFile(t *testing.T) {
	clearEnv(t)

	path := writeConfigFile(t, "dir: from-file\nagent: file@example.com\n")
	t.Setenv("BULKFETCH_DIR", "from-env")

	opts, err := resolve(newFlagSet(), []string{"-config", path})
	if err != nil {
		t.Fatalf("resolve() error = %v", err)
	}

	if opts.Dir != "from-env" {
		t.Errorf("Dir = %q, want from-env", opts.Dir)
	}
	// Values only the file sets still come through.
	if opts.Agent != "file@example.com" {
		t.Errorf("Agent = %q, want file@example.com", opts.Agent)
	}
}

func TestResolve_FlagsOverrideEnv(t *testing.T) {
	clearEnv(t)

	t.Setenv("BULKFETCH_RATE", "5")
	t.Setenv("BULKFETCH_AGENT", "env@example.com")

	opts, err := resolve(newFlagSet(), []string{"-rate", "2.5"})
	if err != nil {
		t.Fatalf("resolve() error = %v", err)
	}

	if opts.Rate != 2.5 {
		t.Errorf("Rate = %v, want 2.5", opts.Rate)
	}
	if opts.Agent != "env@example.com" {
		t.Errorf("Agent = %q, want env@example.com", opts.Agent)
	}
}

func TestResolve_InvalidEnvValues(t *testing.T) {
	tests := []struct {
		name  string
		key   string
		value string
	}{
		{name: "rate not a number", key: "BULKFETCH_RATE", value: "ten"},
		{name: "concurrency not a number", key: "BULKFETCH_CONCURRENCY", value: "many"},
		{name: "pretty not a bool", key: "BULKFETCH_PRETTY", value: "maybe"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clearEnv(t)
			t.Setenv(tt.key, tt.value)

			if _, err := resolve(newFlagSet(), nil); err == nil {
				t.Errorf("resolve() expected error for %s=%q", tt.key, tt.value)
			}
		})
	}
}

func TestResolve_MissingConfigFile(t *testing.T) {
	clearEnv(t)

	if _, err := resolve(newFlagSet(), []string{"-config", filepath.Join(t.TempDir(), "missing.yaml")}); err == nil {
		t.Error("resolve() expected error for missing config file")
	}
}
