package config

import (
	"os"
	"path/filepath"
	"testing"
)

func writeTempConfig(t *testing.T, contents string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "sim.yaml")
	if err := os.WriteFile(path, []byte(contents), 0644); err != nil {
		t.Fatalf("writing temp config: %v", err)
	}
	return path
}

func TestLoad_AbsentSectionsKeepDefaults(t *testing.T) {
	path := writeTempConfig(t, "workloads:\n  - name: w1\n    ops: 10\n")
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Cluster.ComputeNodes != 4 {
		t.Errorf("ComputeNodes = %d, want default 4", cfg.Cluster.ComputeNodes)
	}
	if cfg.NIC.SQDepth != 512 {
		t.Errorf("SQDepth = %d, want default 512", cfg.NIC.SQDepth)
	}
	if cfg.Index.Kind != Sherman {
		t.Errorf("Index.Kind = %q, want default sherman", cfg.Index.Kind)
	}
}

func TestLoad_OverridesPresentFieldsOnly(t *testing.T) {
	path := writeTempConfig(t, "cluster:\n  compute_nodes: 8\nworkloads: []\n")
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Cluster.ComputeNodes != 8 {
		t.Errorf("ComputeNodes = %d, want 8", cfg.Cluster.ComputeNodes)
	}
	if cfg.Cluster.MemoryNodes != 2 {
		t.Errorf("MemoryNodes = %d, want untouched default 2", cfg.Cluster.MemoryNodes)
	}
}

func TestLoad_UnknownFieldIsError(t *testing.T) {
	path := writeTempConfig(t, "cluster:\n  compute_nodse: 8\n")
	if _, err := Load(path); err == nil {
		t.Fatal("expected an error for a typo'd field under strict decoding")
	}
}

func TestLoad_InvalidIndexKindIsError(t *testing.T) {
	path := writeTempConfig(t, "index:\n  kind: not-a-real-kind\n")
	if _, err := Load(path); err == nil {
		t.Fatal("expected an error for an invalid index.kind")
	}
}

func TestLoad_WorkloadDefaultsApplied(t *testing.T) {
	path := writeTempConfig(t, "workloads:\n  - ops: 5\n")
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(cfg.Workloads) != 1 {
		t.Fatalf("len(Workloads) = %d, want 1", len(cfg.Workloads))
	}
	w := cfg.Workloads[0]
	if w.Name != "workload" {
		t.Errorf("Name = %q, want default 'workload'", w.Name)
	}
	if w.Mix.Read != 1.0 {
		t.Errorf("Mix.Read = %v, want default 1.0", w.Mix.Read)
	}
	if w.RangeLen != 1 {
		t.Errorf("RangeLen = %d, want default 1", w.RangeLen)
	}
}

func TestLoad_MissingFileIsError(t *testing.T) {
	if _, err := Load("/nonexistent/sim.yaml"); err == nil {
		t.Fatal("expected an error for a missing config file")
	}
}
