package main

import (
	"os"
	"path/filepath"
	"testing"
)

func TestParseFlagsDefaults(t *testing.T) {
	opts, err := parseFlags(nil)
	if err != nil {
		t.Fatalf("parseFlags: %v", err)
	}
	if opts.Port != 9401 || opts.NShards != 256 || opts.LoadFactor != 75 {
		t.Fatalf("unexpected defaults: %+v", opts)
	}
}

func TestParseFlagsOverridesDefaults(t *testing.T) {
	opts, err := parseFlags([]string{"--port", "7000", "--nshards", "8", "--usecas"})
	if err != nil {
		t.Fatalf("parseFlags: %v", err)
	}
	if opts.Port != 7000 || opts.NShards != 8 || !opts.UseCAS {
		t.Fatalf("flags did not override defaults: %+v", opts)
	}
}

func TestParseFlagsMaxMemoryAndMaxConnsAreDistinct(t *testing.T) {
	opts, err := parseFlags([]string{"--maxconns", "64", "--maxmemory", "1073741824"})
	if err != nil {
		t.Fatalf("parseFlags: %v", err)
	}
	if opts.MaxConns != 64 {
		t.Fatalf("MaxConns = %d, want 64", opts.MaxConns)
	}
	if opts.MaxMemory != 1<<30 {
		t.Fatalf("MaxMemory = %d, want %d", opts.MaxMemory, int64(1<<30))
	}
}

func TestParseFlagsYAMLThenFlagOverride(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	yaml := "port: 7001\nnshards: 32\nusecas: true\n"
	if err := os.WriteFile(path, []byte(yaml), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	opts, err := parseFlags([]string{"--config", path})
	if err != nil {
		t.Fatalf("parseFlags: %v", err)
	}
	if opts.Port != 7001 || opts.NShards != 32 || !opts.UseCAS {
		t.Fatalf("YAML values not applied: %+v", opts)
	}

	// An explicit flag still wins over the YAML file's value.
	opts2, err := parseFlags([]string{"--config", path, "--port", "9999"})
	if err != nil {
		t.Fatalf("parseFlags: %v", err)
	}
	if opts2.Port != 9999 || opts2.NShards != 32 {
		t.Fatalf("flag did not override YAML: %+v", opts2)
	}
}
