// Package workload drives one or more configured workloads against a
// freshly built fleet of index clients, recording latency and traffic
// metrics and appending a CSV summary row per run (spec §6/§4.9).
package workload

import (
	"fmt"
	"math/rand"
	"os"
	"path/filepath"

	"github.com/rmemtree/rmemtree-sim/sim"
	"github.com/rmemtree/rmemtree-sim/sim/config"
	"github.com/rmemtree/rmemtree-sim/sim/index"
	"github.com/rmemtree/rmemtree-sim/sim/metrics"
	"github.com/rmemtree/rmemtree-sim/sim/rdma"
	"github.com/rmemtree/rmemtree-sim/sim/zipf"
)

// dexRNGSeed seeds each Dex instance's independent cache-invalidation
// coin flip, kept separate from the workload's own key/mix sampling
// stream so one doesn't perturb the other.
const dexRNGSeed = 42

// mixRNGSeed seeds the per-workload read/write mix and Zipf-key draw,
// matching the reference implementation's fixed mt19937_64 seed so runs
// are reproducible across invocations.
const mixRNGSeed = 42

// Runner owns one event loop, one NIC, and the Metrics sink shared by
// every index instance across a sequence of workload runs.
type Runner struct {
	conf config.Config
	loop *sim.Loop
	nic  *rdma.NIC
	m    *metrics.Metrics

	indices []index.Index
}

// NewRunner constructs a Runner for conf. A fresh Loop and NIC are
// created; runWorkload resets loop/NIC/metrics state between workloads.
func NewRunner(conf config.Config) *Runner {
	loop := sim.NewLoop()
	caps := rdma.Caps{
		LinkGbps:           conf.NIC.LinkGbps,
		BaseRTTUS:          conf.NIC.BaseRTTUS,
		CASOnchipRTTUS:     conf.NIC.CASOnchipRTTUS,
		PCIeDoorbellUS:     conf.NIC.PCIeDoorbellUS,
		PCIeDescUS:         conf.NIC.PCIeDescUS,
		DoorbellBatchLimit: conf.NIC.DoorbellBatchLimit,
		SQDepth:            conf.NIC.SQDepth,
		TBCASOpsPerS:       conf.NIC.TBCASOpsPerS,
		TBReadOpsPerS:      conf.NIC.TBReadOpsPerS,
		TBWriteOpsPerS:     conf.NIC.TBWriteOpsPerS,
		TBBurstOps:         conf.NIC.TBBurstOps,
	}
	return &Runner{
		conf: conf,
		loop: loop,
		nic:  rdma.NewNIC(loop, caps),
		m:    &metrics.Metrics{},
	}
}

// ablatedSherman returns conf.Sherman with the configured ablations
// applied to a private copy, leaving the base config untouched.
func ablatedSherman(conf config.Config) config.Sherman {
	sh := conf.Sherman
	a := conf.Index.Ablations.Sherman
	if a.DisableCombine {
		sh.Combine = false
	}
	if a.DisableHOCL {
		sh.HOCL.Enable = false
	}
	if a.DisableVersions {
		sh.EnableTwoLevelVersions = false
		sh.TwoLevelVersioning = false
	}
	return sh
}

// ablatedDex returns conf.Dex with the configured ablations applied to
// a private copy.
func ablatedDex(conf config.Config) config.Dex {
	dx := conf.Dex
	a := conf.Index.Ablations.Dex
	if a.DisablePartitioning {
		dx.LogicalPartitioning = false
	}
	if a.DisablePathCache {
		dx.PathAwareCache = false
	}
	if a.DisableOffload {
		dx.Offload.Enable = false
	}
	return dx
}

func (r *Runner) makeIndexForCS(csID, msID, qp int, cacheBytes int64) index.Index {
	ctx := index.Ctx{
		Loop:           r.loop,
		NIC:            r.nic,
		CSID:           csID,
		MSID:           msID,
		QP:             qp,
		NodeBytes:      r.conf.Index.NodeBytes,
		LeafEntryBytes: r.conf.Index.LeafEntryBytes,
	}
	switch r.conf.Index.Kind {
	case config.Dex:
		return index.NewDex(ctx, ablatedDex(r.conf), cacheBytes, r.conf.Cluster.ComputeNodes,
			r.conf.Dex.Offload.MSCPUBudgetOpsPerS, rand.New(rand.NewSource(dexRNGSeed)))
	default:
		return index.NewSherman(ctx, ablatedSherman(r.conf), cacheBytes)
	}
}

// RunAll executes every configured workload in order, appending one
// summary CSV row (and, if enabled, one trace CSV) per workload under
// conf.Metrics.OutDir.
func (r *Runner) RunAll() error {
	if err := os.MkdirAll(r.conf.Metrics.OutDir, 0755); err != nil {
		return fmt.Errorf("creating output dir: %w", err)
	}
	for _, wl := range r.conf.Workloads {
		r.runWorkload(wl)
	}
	return nil
}

func (r *Runner) runWorkload(wl config.Workload) {
	r.loop = sim.NewLoop()
	r.m.Reset()

	var trace *metrics.Trace
	if r.conf.Metrics.DumpPerOpTrace {
		name := fmt.Sprintf("op_trace_%s_%s.csv", wl.Name, r.conf.Index.Kind)
		trace = metrics.OpenTrace(filepath.Join(r.conf.Metrics.OutDir, name))
		defer trace.Close()
	}
	r.m.SetTrace(trace)

	caps := r.nic.Caps
	r.nic = rdma.NewNIC(r.loop, caps)

	cs := r.conf.Cluster.ComputeNodes
	tp := r.conf.Cluster.ThreadsPerCompute
	r.indices = make([]index.Index, 0, cs*tp)
	for c := 0; c < cs; c++ {
		for th := 0; th < tp; th++ {
			ms := c % r.conf.Cluster.MemoryNodes
			r.indices = append(r.indices, r.makeIndexForCS(c, ms, th, r.conf.Cluster.CSCacheBytes))
		}
	}

	z := zipf.New(wl.Keyspace, wl.Zipf)
	rng := rand.New(rand.NewSource(mixRNGSeed))

	for i := 0; i < wl.Ops; i++ {
		idx := r.indices[i%len(r.indices)]
		isRead := rng.Float64() < wl.Mix.Read
		key := z.Sample(rng.Float64())
		opID := uint64(i)
		r.loop.After(0, func() {
			if isRead {
				idx.Get(key, r.m, opID)
			} else {
				idx.Put(key, r.m, opID)
			}
		})
	}
	r.loop.Run()

	r.m.AppendSummary(filepath.Join(r.conf.Metrics.OutDir, "metrics_summary.csv"), string(r.conf.Index.Kind), wl.Name)
}
