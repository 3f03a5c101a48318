// Package index implements the two B+-tree client state machines that
// drive RDMA traffic against a remote-memory node: the hierarchical-lock
// client (Sherman, spec §4.7) and the partitioned offload-capable client
// (Dex, spec §4.8). Both reach the event loop and the shared NIC through
// Ctx; each client keeps its own node cache, and the Metrics sink is
// passed to every Get/Put call.
package index

import (
	"github.com/rmemtree/rmemtree-sim/sim"
	"github.com/rmemtree/rmemtree-sim/sim/metrics"
	"github.com/rmemtree/rmemtree-sim/sim/rdma"
)

// Ctx bundles everything an index client needs to post RDMA traffic and
// account for it: the event loop, the shared NIC, this instance's
// compute/memory/queue-pair identity, and the node/entry byte sizes.
type Ctx struct {
	Loop           *sim.Loop
	NIC            *rdma.NIC
	CSID           int
	MSID           int
	QP             int
	NodeBytes      int64
	LeafEntryBytes int64
}

// Index is the common client interface: fetch or mutate one key,
// charging whatever RDMA traffic the algorithm requires and recording
// the outcome in m under op_id.
type Index interface {
	Get(key uint64, m *metrics.Metrics, opID uint64)
	Put(key uint64, m *metrics.Metrics, opID uint64)
}
