// Package sim provides the core discrete-event simulation engine for the
// disaggregated-memory B+-tree index simulator.
//
// # Reading Guide
//
//   - event.go: virtual time, the Callback type, the Loop, and the priority queue
//     that drives every other component.
//
// # Architecture
//
// sim defines only the event loop itself; every other concern lives in a
// sub-package:
//   - sim/rdma: the NIC/QP model (token buckets, PCIe posting, backpressure)
//   - sim/cache: the byte-bounded LRU node cache
//   - sim/locks: the hierarchical GLT/LLT lock tables
//   - sim/hopscotch: the per-leaf hopscotch overlay
//   - sim/delegation: the RDWC read/write delegation & coalescing table
//   - sim/zipf: the Zipf-distributed key sampler
//   - sim/index: the Index interface plus the sherman and dex clients
//   - sim/metrics: counters, latency percentiles, and CSV trace output
//   - sim/config: the flat configuration schema and its strict YAML loader
//   - sim/workload: the per-workload runner that wires all of the above
package sim
