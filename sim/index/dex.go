package index

import (
	"math/rand"

	"github.com/rmemtree/rmemtree-sim/sim"
	"github.com/rmemtree/rmemtree-sim/sim/cache"
	"github.com/rmemtree/rmemtree-sim/sim/config"
	"github.com/rmemtree/rmemtree-sim/sim/metrics"
	"github.com/rmemtree/rmemtree-sim/sim/rdma"
)

// Dex is the partitioned, offload-capable B+-tree client (Index B, spec
// §4.8): keys are logically sharded across compute nodes with periodic
// repartitioning, a path-aware two-level cache, and a cost-based choice
// between one-sided RDMA reads and server-CPU offload via SEND/RECV.
type Dex struct {
	ctx  Ctx
	conf config.Dex
	rng  *rand.Rand

	cache *cache.LRU

	csTotal     int
	bucketOwner []int

	msReadyAt       sim.SimTime
	msBudgetOpsPerS float64
}

// NewDex constructs a Dex client bound to ctx, with csTotal compute
// nodes sharing the partition map and msBudgetOpsPerS as the remote
// memory server's CPU-offload service rate. rng drives the cache
// invalidation coin flip in doRepartition deterministically.
func NewDex(ctx Ctx, conf config.Dex, cacheBytes int64, csTotal int, msBudgetOpsPerS float64, rng *rand.Rand) *Dex {
	d := &Dex{
		ctx:             ctx,
		conf:            conf,
		rng:             rng,
		cache:           cache.New(cacheBytes),
		csTotal:         csTotal,
		msBudgetOpsPerS: msBudgetOpsPerS,
	}
	d.initPartitions()
	d.scheduleRepartition()
	return d
}

func (d *Dex) initPartitions() {
	d.bucketOwner = make([]int, d.conf.NumPartitions)
	for i := range d.bucketOwner {
		d.bucketOwner[i] = i % d.csTotal
	}
}

func (d *Dex) bucketOf(key uint64) int {
	return int(key % uint64(d.conf.NumPartitions))
}

func (d *Dex) scheduleRepartition() {
	d.ctx.Loop.After(sim.SimTime(d.conf.RepartitionPeriodMS*1000.0), func() {
		d.doRepartition()
		d.scheduleRepartition()
	})
}

// doRepartition charges the periodic partition-map broadcast, optionally
// wipes the path-aware cache, and rotates ownership of the hottest
// buckets among compute nodes (spec §4.8/§4.9).
func (d *Dex) doRepartition() {
	s := rdma.Req{Verb: rdma.Send, Target: rdma.DRAM, Bytes: 128, ComputeID: d.ctx.CSID, QP: d.ctx.QP, MemID: d.ctx.MSID}
	d.ctx.NIC.Post(s)

	if d.rng.Float64() < d.conf.CacheInvalProb {
		d.cache = cache.New(d.cache.CapBytes)
	}

	for k := 0; k < d.conf.RepartitionTopK && k < d.conf.NumPartitions; k++ {
		d.bucketOwner[k] = (d.bucketOwner[k] + 1) % d.csTotal
	}
}

func (d *Dex) offloadCostEst(rangeLen int) sim.SimTime {
	svc := (float64(rangeLen) / d.msBudgetOpsPerS) * 1e6
	const rtt = 4.0
	return sim.SimTime(svc + rtt)
}

func (d *Dex) onesidedCostEst(misses int, bytes int64) sim.SimTime {
	return sim.SimTime(float64(misses) * (d.ctx.NIC.Caps.BaseRTTUS + float64(bytes)/d.ctx.NIC.Caps.BytesPerUS()))
}

// Get implements spec §4.8 GET.
func (d *Dex) Get(key uint64, m *metrics.Metrics, opID uint64) {
	start := d.ctx.Loop.Now
	done := start
	br0, bw0 := m.BytesRead, m.BytesWrite
	rr0, rw0 := m.RemoteReads, m.RemoteWrites

	bucket := d.bucketOf(key)
	owner := d.ctx.CSID
	if d.conf.LogicalPartitioning {
		owner = d.bucketOwner[bucket]
	}
	if owner != d.ctx.CSID {
		s1 := rdma.Req{Verb: rdma.Send, Target: rdma.DRAM, Bytes: 64, ComputeID: d.ctx.CSID, QP: d.ctx.QP, MemID: d.ctx.MSID}
		cs1 := d.ctx.NIC.Post(s1)
		m.SendOps++
		r1 := rdma.Req{Verb: rdma.Recv, Target: rdma.DRAM, Bytes: 64, ComputeID: d.ctx.CSID, QP: d.ctx.QP, MemID: d.ctx.MSID}
		cr1 := d.ctx.NIC.Post(r1)
		m.RecvOps++
		done = maxTime(done, maxTime(cs1, cr1))
	}

	for lvl := 0; lvl < 2; lvl++ {
		k := cache.Key{NodeID: key >> uint(16*(2-lvl)), Level: lvl}
		hit := d.conf.PathAwareCache && d.cache.Get(k)
		if !hit {
			r := rdma.Req{Verb: rdma.Read, Target: rdma.DRAM, Bytes: d.ctx.NodeBytes, ComputeID: d.ctx.CSID, QP: d.ctx.QP, MemID: d.ctx.MSID}
			c := d.ctx.NIC.Post(r)
			done = maxTime(done, c)
			m.RemoteReads++
			m.BytesRead += uint64(d.ctx.NodeBytes)
			if d.conf.PathAwareCache {
				d.cache.Put(k, d.ctx.NodeBytes)
			}
		}
	}

	useOffload := false
	if d.conf.Offload.Enable {
		est1 := d.onesidedCostEst(1, d.ctx.LeafEntryBytes)
		est2 := d.offloadCostEst(1)
		useOffload = est2 < est1
	}

	if useOffload {
		startMS := maxTime(done, d.msReadyAt)
		svcUS := (1.0 / d.conf.Offload.MSCPUBudgetOpsPerS) * 1e6
		finMS := startMS + sim.SimTime(svcUS)
		d.msReadyAt = finMS

		s := rdma.Req{Verb: rdma.Send, Target: rdma.DRAM, Bytes: 64, ComputeID: d.ctx.CSID, QP: d.ctx.QP, MemID: d.ctx.MSID}
		r := rdma.Req{Verb: rdma.Recv, Target: rdma.DRAM, Bytes: 64, ComputeID: d.ctx.CSID, QP: d.ctx.QP, MemID: d.ctx.MSID}
		c1 := d.ctx.NIC.Post(s)
		c2 := d.ctx.NIC.Post(r)
		done = maxTime(done, maxTime(finMS, maxTime(c1, c2)))
		m.SendOps++
		m.RecvOps++
	} else {
		r := rdma.Req{Verb: rdma.Read, Target: rdma.DRAM, Bytes: d.ctx.LeafEntryBytes, ComputeID: d.ctx.CSID, QP: d.ctx.QP, MemID: d.ctx.MSID}
		c := d.ctx.NIC.Post(r)
		done = maxTime(done, c)
		m.RemoteReads++
		m.BytesRead += uint64(d.ctx.LeafEntryBytes)
	}

	d.ctx.Loop.At(done, func() {
		m.Ops++
		lat := float64(done - start)
		m.AddLatency(lat)
		m.DumpOp(opID, "GET", lat, m.RemoteReads-rr0, m.RemoteWrites-rw0, 0, m.SendOps, m.RecvOps, m.BytesRead-br0, m.BytesWrite-bw0)
	})
}

// Put implements spec §4.8 PUT: the GET path is reused to locate and
// fetch the entry, followed by a single independent WRITE.
func (d *Dex) Put(key uint64, m *metrics.Metrics, opID uint64) {
	d.Get(key, m, opID)

	start := d.ctx.Loop.Now
	done := start
	bw0 := m.BytesWrite
	rw0 := m.RemoteWrites

	w := rdma.Req{Verb: rdma.Write, Target: rdma.DRAM, Bytes: d.ctx.LeafEntryBytes, ComputeID: d.ctx.CSID, QP: d.ctx.QP, MemID: d.ctx.MSID}
	c := d.ctx.NIC.Post(w)
	done = maxTime(done, c)
	m.RemoteWrites++
	m.BytesWrite += uint64(d.ctx.LeafEntryBytes)

	d.ctx.Loop.At(done, func() {
		m.Ops++
		lat := float64(done - start)
		m.AddLatency(lat)
		m.DumpOp(opID, "PUT", lat, 0, m.RemoteWrites-rw0, 0, 0, 0, 0, m.BytesWrite-bw0)
	})
}
