// Package sim provides the tick-driven request flow engine for server-sim.
//
// # Reading Guide
//
// Start with these files to understand the simulation kernel:
//   - request.go: Request lifecycle (pending → completed | dropped | terminated)
//   - pending.go: per-node PendingQueue ordered by maturation tick
//   - node.go: Node kinds (producer, processor, consumer) and the outgoing step
//   - network.go: node arena, connections, traversal and the per-tick pass
//   - simulator.go: the tick loop and scheduled events
//
// # Architecture
//
// A Network owns every Node and addresses it by a stable NodeID. Connections
// are stored as id pairs and registered in both endpoints' adjacency sets.
// One tick is one full pass over Network.Traverse, calling the outgoing step
// of every reachable node in traversal order. Routing happens synchronously
// inside the pass, so a request forwarded to a node later in traversal order
// can mature and move on within the same tick.
//
// Sub-packages:
//   - sim/trace/: pure-data diagnostic records (drops, forced terminations)
//   - sim/metrics/: Prometheus registry implementing Observer
//   - sim/scenario/: declarative YAML/TOML scenarios that build a Simulator
//
// # Key Interfaces
//
//   - ProcessingTimeFunc: per-node latency model, may read queue size and degradation
//   - TransformFunc: per-node rewrite or fan-out of matured requests
//   - Observer: lifecycle callbacks for metrics and tracing
//   - Event: scheduled driver actions (traffic injection, degradation, removal)
package sim
