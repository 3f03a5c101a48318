package workload

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/rmemtree/rmemtree-sim/sim/config"
)

func TestRunner_ShermanWorkloadProducesSummaryRow(t *testing.T) {
	dir := t.TempDir()
	conf := *config.Default()
	conf.Cluster.ComputeNodes = 1
	conf.Cluster.ThreadsPerCompute = 1
	conf.Metrics.OutDir = dir
	conf.Metrics.DumpPerOpTrace = false
	conf.Workloads = []config.Workload{{Name: "w1", Ops: 20, Mix: config.Mix{Read: 0.8}, Keyspace: 100, Zipf: 0.9, RangeLen: 1}}

	r := NewRunner(conf)
	if err := r.RunAll(); err != nil {
		t.Fatalf("RunAll: %v", err)
	}

	data, err := os.ReadFile(filepath.Join(dir, "metrics_summary.csv"))
	if err != nil {
		t.Fatalf("reading summary: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	if len(lines) != 2 {
		t.Fatalf("expected header + 1 row, got %d lines", len(lines))
	}
	if !strings.Contains(lines[1], "w1") {
		t.Errorf("summary row missing workload name: %q", lines[1])
	}
}

func TestRunner_DexWorkloadProducesSummaryRow(t *testing.T) {
	dir := t.TempDir()
	conf := *config.Default()
	conf.Index.Kind = config.Dex
	conf.Cluster.ComputeNodes = 1
	conf.Cluster.ThreadsPerCompute = 1
	conf.Metrics.OutDir = dir
	conf.Metrics.DumpPerOpTrace = false
	conf.Dex.NumPartitions = 8
	conf.Workloads = []config.Workload{{Name: "w2", Ops: 20, Mix: config.Mix{Read: 1.0}, Keyspace: 50, Zipf: 1.2, RangeLen: 1}}

	r := NewRunner(conf)
	if err := r.RunAll(); err != nil {
		t.Fatalf("RunAll: %v", err)
	}

	data, err := os.ReadFile(filepath.Join(dir, "metrics_summary.csv"))
	if err != nil {
		t.Fatalf("reading summary: %v", err)
	}
	if !strings.Contains(string(data), "dex") {
		t.Errorf("summary missing dex index kind: %q", string(data))
	}
}

func TestRunner_TraceFileWrittenWhenEnabled(t *testing.T) {
	dir := t.TempDir()
	conf := *config.Default()
	conf.Cluster.ComputeNodes = 1
	conf.Cluster.ThreadsPerCompute = 1
	conf.Metrics.OutDir = dir
	conf.Metrics.DumpPerOpTrace = true
	conf.Workloads = []config.Workload{{Name: "w3", Ops: 5, Mix: config.Mix{Read: 1.0}, Keyspace: 10, Zipf: 0.5, RangeLen: 1}}

	r := NewRunner(conf)
	if err := r.RunAll(); err != nil {
		t.Fatalf("RunAll: %v", err)
	}

	if _, err := os.Stat(filepath.Join(dir, "op_trace_w3_sherman.csv")); err != nil {
		t.Fatalf("expected trace file: %v", err)
	}
}
