// Package config loads and validates the simulation run description: the
// cluster topology, NIC capability model, index kind and its tunables,
// the workload list, and metrics output settings (spec §6). Decoding is
// strict (unknown YAML keys are a hard error) while missing sections or
// fields silently fall back to the documented defaults.
package config

import (
	"bytes"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Mix is the read/write ratio for one workload.
type Mix struct {
	Read  float64 `yaml:"read"`
	Write float64 `yaml:"write"`
}

// Workload describes one run of ops against the configured index.
type Workload struct {
	Name     string  `yaml:"name"`
	Ops      int     `yaml:"ops"`
	Mix      Mix     `yaml:"mix"`
	Keyspace uint64  `yaml:"keyspace"`
	Zipf     float64 `yaml:"zipf"`
	RangeLen uint32  `yaml:"range_len"`
}

// IOPSCaps are the per-verb IOPS ceilings advertised by the NIC.
type IOPSCaps struct {
	CAS        uint64 `yaml:"cas"`
	ReadSmall  uint64 `yaml:"read_small"`
	WriteSmall uint64 `yaml:"write_small"`
}

// NIC captures the RDMA NIC's service-time and throughput model.
type NIC struct {
	LinkGbps        float64  `yaml:"link_gbps"`
	BaseRTTUS       float64  `yaml:"base_rtt_us"`
	PerByteUS       float64  `yaml:"per_byte_us"`
	CASOnchipRTTUS  float64  `yaml:"cas_onchip_rtt_us"`
	IOPSCapsPerQP   IOPSCaps `yaml:"iops_caps_per_qp"`
	QPPerThread     int      `yaml:"qp_per_thread"`
	InOrderRC       bool     `yaml:"in_order_rc"`

	TBCASOpsPerS   float64 `yaml:"tb_cas_ops_per_s"`
	TBReadOpsPerS  float64 `yaml:"tb_read_ops_per_s"`
	TBWriteOpsPerS float64 `yaml:"tb_write_ops_per_s"`
	TBBurstOps     float64 `yaml:"tb_burst_ops"`
	SmallThreshold int     `yaml:"small_threshold"`

	PCIeDoorbellUS     float64 `yaml:"pcie_doorbell_us"`
	PCIeDescUS         float64 `yaml:"pcie_desc_us"`
	DoorbellBatchLimit int     `yaml:"doorbell_batch_limit"`
	SQDepth            int     `yaml:"sq_depth"`
}

// Cluster is the compute/memory-node topology.
type Cluster struct {
	ComputeNodes       int   `yaml:"compute_nodes"`
	MemoryNodes        int   `yaml:"memory_nodes"`
	ThreadsPerCompute  int   `yaml:"threads_per_compute"`
	CSCacheBytes       int64 `yaml:"cs_cache_bytes"`
	MSCPUCores         int   `yaml:"ms_cpu_cores"`
}

// MemoryServer describes the remote memory node's onchip cache and DRAM.
type MemoryServer struct {
	RNICOnchipBytes int64   `yaml:"rnic_onchip_bytes"`
	DRAMLatencyUS   float64 `yaml:"dram_latency_us"`
}

// IndexKind selects which client algorithm a run exercises.
type IndexKind string

const (
	Sherman IndexKind = "sherman"
	Dex     IndexKind = "dex"
)

// HOCL is Sherman's hierarchical on-chip locking tunables (local lock
// table handoff, then CAS on the global lock table).
type HOCL struct {
	Enable          bool    `yaml:"enable"`
	GLTSlots        int     `yaml:"glt_slots"`
	LLTEnable       bool    `yaml:"llt_enable"`
	LLTLocalWaitUS  float64 `yaml:"llt_local_wait_us"`
}

// RDWC is Sherman's delegation/write-combining tunables.
type RDWC struct {
	Enable           bool    `yaml:"enable"`
	WindowUS         float64 `yaml:"window_us"`
	CollisionPolicy  string  `yaml:"collision_policy"` // "bypass" | "queue"
}

// Sherman holds every Index-A tunable (spec §4.7).
type Sherman struct {
	Combine                bool    `yaml:"combine_commands"`
	HOCL                   HOCL    `yaml:"hocl"`
	TwoLevelVersioning     bool    `yaml:"two_level_versioning"`
	CacheLevels            int     `yaml:"cache_levels"`
	RDWC                   RDWC    `yaml:"rdwc"`
	GLTHashSeed            uint32  `yaml:"glt_hash_seed"`
	CASMaxRetries          int     `yaml:"cas_max_retries"`
	CASBackoffUS           float64 `yaml:"cas_backoff_us"`
	ModelGLTCollisions     bool    `yaml:"model_glt_collisions"`
	LeafMaxEntries         int     `yaml:"leaf_max_entries"`
	SplitThreshold         float64 `yaml:"split_threshold"`
	MergeThreshold         float64 `yaml:"merge_threshold"`
	EnableSplits           bool    `yaml:"enable_splits"`
	EnableMerges           bool    `yaml:"enable_merges"`
	EnableTwoLevelVersions bool    `yaml:"enable_two_level_versions"`
}

// Offload is Dex's MS-CPU offload decision tunable.
type Offload struct {
	Enable             bool    `yaml:"enable"`
	MSCPUBudgetOpsPerS float64 `yaml:"ms_cpu_budget_ops_per_s"`
}

// Dex holds every Index-B tunable (spec §4.8).
type Dex struct {
	LogicalPartitioning  bool    `yaml:"logical_partitioning"`
	PathAwareCache       bool    `yaml:"path_aware_cache"`
	Offload              Offload `yaml:"offload"`
	NumPartitions        int     `yaml:"num_partitions"`
	RepartitionPeriodMS  float64 `yaml:"repartition_period_ms"`
	RepartitionTopK      int     `yaml:"repartition_topK"`
	RemapBroadcastUS     float64 `yaml:"remap_broadcast_us"`
	CacheInvalProb       float64 `yaml:"cache_inval_prob"`
}

// ShermanAblations toggle individual Sherman mechanisms off for a run.
type ShermanAblations struct {
	DisableCombine  bool `yaml:"disable_combine"`
	DisableHOCL     bool `yaml:"disable_hocl"`
	DisableVersions bool `yaml:"disable_versions"`
}

// DexAblations toggle individual Dex mechanisms off for a run.
type DexAblations struct {
	DisablePartitioning bool `yaml:"disable_partitioning"`
	DisablePathCache    bool `yaml:"disable_path_cache"`
	DisableOffload      bool `yaml:"disable_offload"`
}

// Ablations bundles both index families' ablation toggles.
type Ablations struct {
	Sherman ShermanAblations `yaml:"sherman"`
	Dex     DexAblations     `yaml:"dex"`
}

// Index is the index-family-agnostic configuration: which kind is
// active, the shared node layout, and both families' tunables (only the
// active kind's tunables are consulted at runtime).
type Index struct {
	Kind           IndexKind `yaml:"kind"`
	NodeBytes      int64     `yaml:"node_bytes"`
	LeafEntryBytes int64     `yaml:"leaf_entry_bytes"`
	Sherman        Sherman   `yaml:"-"`
	Dex            Dex       `yaml:"-"`
	Ablations      Ablations `yaml:"ablations"`
}

// Metrics controls percentile reporting and trace/summary output.
type Metrics struct {
	Ptiles           []int  `yaml:"ptiles"`
	DumpPerOpTrace   bool   `yaml:"dump_per_op_trace"`
	OutDir           string `yaml:"out_dir"`
}

// Config is the full run description parsed from a YAML file.
type Config struct {
	Cluster      Cluster      `yaml:"cluster"`
	NIC          NIC          `yaml:"nic"`
	MemoryServer MemoryServer `yaml:"memory_server"`
	Index        Index        `yaml:"index"`
	Sherman      Sherman      `yaml:"sherman"`
	Dex          Dex          `yaml:"dex"`
	Workloads    []Workload   `yaml:"workloads"`
	Metrics      Metrics      `yaml:"metrics"`
}

// Default returns a Config pre-populated with every documented default,
// matching the reference implementation's struct-literal initializers.
func Default() *Config {
	return &Config{
		Cluster: Cluster{
			ComputeNodes:      4,
			MemoryNodes:       2,
			ThreadsPerCompute: 16,
			CSCacheBytes:      256 * 1024 * 1024,
			MSCPUCores:        2,
		},
		NIC: NIC{
			LinkGbps:       100,
			BaseRTTUS:      2.0,
			PerByteUS:      1e-5,
			CASOnchipRTTUS: 0.7,
			IOPSCapsPerQP: IOPSCaps{
				CAS:        120_000_000,
				ReadSmall:  8_500_000,
				WriteSmall: 9_000_000,
			},
			QPPerThread:        1,
			InOrderRC:          true,
			TBCASOpsPerS:       120e6,
			TBReadOpsPerS:      8.5e6,
			TBWriteOpsPerS:     9.0e6,
			TBBurstOps:         64,
			SmallThreshold:     256,
			PCIeDoorbellUS:     0.25,
			PCIeDescUS:         0.03,
			DoorbellBatchLimit: 16,
			SQDepth:            512,
		},
		MemoryServer: MemoryServer{
			RNICOnchipBytes: 256 * 1024,
			DRAMLatencyUS:   0.6,
		},
		Index: Index{
			Kind:           Sherman,
			NodeBytes:      4096,
			LeafEntryBytes: 24,
		},
		Sherman: Sherman{
			Combine: true,
			HOCL: HOCL{
				Enable:    true,
				GLTSlots:  131072,
				LLTEnable: true,
			},
			TwoLevelVersioning:     true,
			CacheLevels:            2,
			RDWC:                   RDWC{Enable: false, WindowUS: 100.0, CollisionPolicy: "queue"},
			GLTHashSeed:            0x9e3779b9,
			CASMaxRetries:          16,
			CASBackoffUS:           0.5,
			ModelGLTCollisions:     true,
			LeafMaxEntries:         -1,
			SplitThreshold:         0.95,
			MergeThreshold:         0.30,
			EnableSplits:           true,
			EnableMerges:           false,
			EnableTwoLevelVersions: true,
		},
		Dex: Dex{
			LogicalPartitioning: true,
			PathAwareCache:      true,
			Offload:             Offload{Enable: true, MSCPUBudgetOpsPerS: 3_000_000},
			NumPartitions:       256,
			RepartitionPeriodMS: 250.0,
			RepartitionTopK:     8,
			RemapBroadcastUS:    100.0,
			CacheInvalProb:      0.25,
		},
		Metrics: Metrics{
			Ptiles:         []int{50, 95, 99},
			DumpPerOpTrace: true,
			OutDir:         "out",
		},
	}
}

// Load reads and strictly decodes path into a Config seeded with
// defaults. Unknown keys in any present section are a hard decode
// error; an absent section or field simply keeps its default.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config %s: %w", path, err)
	}

	cfg := Default()

	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(cfg); err != nil {
		return nil, fmt.Errorf("parsing config %s: %w", path, err)
	}

	if cfg.Index.Kind != Sherman && cfg.Index.Kind != Dex {
		return nil, fmt.Errorf("index.kind must be %q or %q, got %q", Sherman, Dex, cfg.Index.Kind)
	}

	// sherman/dex tunables live at top level in the YAML (matching the
	// original's separate "sherman:"/"dex:" sections) but are surfaced
	// through Index for convenient per-kind lookup at runtime.
	cfg.Index.Sherman = cfg.Sherman
	cfg.Index.Dex = cfg.Dex

	for i := range cfg.Workloads {
		w := &cfg.Workloads[i]
		if w.Name == "" {
			w.Name = "workload"
		}
		if w.Mix.Read == 0 && w.Mix.Write == 0 {
			w.Mix.Read = 1.0
		}
		if w.RangeLen == 0 {
			w.RangeLen = 1
		}
	}

	return cfg, nil
}
