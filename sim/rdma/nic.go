package rdma

import "github.com/rmemtree/rmemtree-sim/sim"

// Caps describes the NIC/link capabilities shared by every queue pair
// (spec §6 nic.* config keys).
type Caps struct {
	LinkGbps        float64
	BaseRTTUS       float64
	CASOnchipRTTUS  float64
	PCIeDoorbellUS  float64
	PCIeDescUS      float64
	DoorbellBatchLimit int
	SQDepth         int
	TBCASOpsPerS    float64
	TBReadOpsPerS   float64
	TBWriteOpsPerS  float64
	TBBurstOps      float64
}

// BytesPerUS converts the link's Gbps rating into a bytes-per-microsecond
// service rate (spec §4.2 step 5).
func (c Caps) BytesPerUS() float64 {
	return (c.LinkGbps * 1e3) / 8.0
}

// qpState is the per-(compute-id, qp-id) state machine of spec §3:
// completion frontier, posting frontier, outstanding WQE count, and one
// token bucket per verb class. Created lazily on first use.
type qpState struct {
	readyAt     sim.SimTime
	postReadyAt sim.SimTime
	outstanding int
	tbCAS       TokenBucket
	tbRead      TokenBucket
	tbWrite     TokenBucket
}

type qpKey struct {
	computeID int
	qp        int
}

// NIC is the shared collaborator every index client posts requests
// through. It owns no index-specific state — only per-QP frontiers.
type NIC struct {
	loop  *sim.Loop
	Caps  Caps
	qps   map[qpKey]*qpState
}

// NewNIC creates a NIC bound to the given event loop and capability set.
func NewNIC(loop *sim.Loop, caps Caps) *NIC {
	return &NIC{loop: loop, Caps: caps, qps: make(map[qpKey]*qpState)}
}

func (n *NIC) qpFor(computeID, qp int) *qpState {
	key := qpKey{computeID, qp}
	st, ok := n.qps[key]
	if !ok {
		st = &qpState{}
		st.tbCAS.init(n.Caps.TBCASOpsPerS, n.Caps.TBBurstOps, n.loop.Now)
		st.tbRead.init(n.Caps.TBReadOpsPerS, n.Caps.TBBurstOps, n.loop.Now)
		st.tbWrite.init(n.Caps.TBWriteOpsPerS, n.Caps.TBBurstOps, n.loop.Now)
		n.qps[key] = st
	}
	return st
}

func pickBucket(st *qpState, v Verb) *TokenBucket {
	switch v {
	case CAS:
		return &st.tbCAS
	case Read:
		return &st.tbRead
	default: // WRITE/SEND/RECV
		return &st.tbWrite
	}
}

// Post charges a single request's posting, backpressure, token-bucket,
// and service-time costs to its queue pair and returns the completion
// time (spec §4.2). Ordering is enforced per QP: readyAt is monotone.
func (n *NIC) Post(r Req) sim.SimTime {
	st := n.qpFor(r.ComputeID, r.QP)

	// 1) PCIe posting: descriptor + doorbell, charged against the posting
	// frontier (not the completion frontier).
	t := max(n.loop.Now, st.postReadyAt)
	st.postReadyAt = t + sim.SimTime(n.Caps.PCIeDescUS+n.Caps.PCIeDoorbellUS)

	// 2) SQ depth backpressure: if the queue is full, posting cannot
	// proceed until the completion frontier frees a slot.
	if st.outstanding >= n.Caps.SQDepth {
		st.postReadyAt = max(st.postReadyAt, st.readyAt)
		if st.outstanding > 0 {
			st.outstanding--
		}
	}

	// 3) Token bucket: one token from the verb-appropriate bucket.
	tb := pickBucket(st, r.Verb)
	tTokens := tb.acquire(1.0, st.postReadyAt)

	// 4) Wire/NIC service time.
	var svc sim.SimTime
	if r.Verb == CAS && r.Target == OnchipRNIC {
		svc = sim.SimTime(n.Caps.CASOnchipRTTUS)
	} else {
		svc = sim.SimTime(n.Caps.BaseRTTUS) + sim.SimTime(float64(r.Bytes)/n.Caps.BytesPerUS())
	}

	// 5) In-order completion frontier.
	start := max(n.loop.Now, st.readyAt, tTokens)
	done := start + svc
	st.readyAt = done
	st.outstanding++
	n.loop.At(done, func() {
		if st.outstanding > 0 {
			st.outstanding--
		}
	})
	return done
}

// PostChain charges one batch of PCIe posting costs — n descriptors plus
// one doorbell per doorbell_batch_limit requests — then posts each
// request in the chain sequentially, returning the last one's completion
// time (spec §4.2 post_chain).
func (n *NIC) PostChain(chain []Req) sim.SimTime {
	if len(chain) == 0 {
		return n.loop.Now
	}
	st := n.qpFor(chain[0].ComputeID, chain[0].QP)
	t := max(n.loop.Now, st.postReadyAt)
	count := len(chain)
	batches := (count + n.Caps.DoorbellBatchLimit - 1) / n.Caps.DoorbellBatchLimit
	t += sim.SimTime(float64(count)*n.Caps.PCIeDescUS + float64(batches)*n.Caps.PCIeDoorbellUS)
	st.postReadyAt = t

	done := n.loop.Now
	for _, r := range chain {
		done = n.Post(r)
	}
	return done
}
