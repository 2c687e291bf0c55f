package sim

import (
	"fmt"
	"math"
	"math/rand"
	"sort"

	"github.com/google/uuid"
)

// NodeID is the stable identity of a node inside its Network. IDs are issued
// by the network on registration and increase monotonically; 0 means unregistered.
type NodeID int64

// Kind is the role of a node in the request flow.
type Kind string

const (
	KindProducer  Kind = "producer"  // originates traffic
	KindProcessor Kind = "processor" // buffers, transforms and forwards
	KindConsumer  Kind = "consumer"  // terminal sink
)

// DefaultProcessingTime is the delay, in ticks, charged by a node without a ProcessingTimeFunc.
const DefaultProcessingTime int64 = 10

// ProcessingTimeFunc returns how long node needs for req. It may read the
// node's queue length and degradation to model load and degraded capacity.
// A negative result is a fault surfaced by Enqueue.
type ProcessingTimeFunc func(node *Node, req *Request) int64

// TransformFunc rewrites a matured request into zero or more outgoing
// requests. It must not touch the node's queue; new requests are created
// with node.Spawn.
type TransformFunc func(node *Node, tick int64, req *Request) []*Request

// Node is a vertex of the request flow graph. The three kinds share this
// struct; the kind tag selects producer and consumer overrides of the
// processing time, transform and outgoing step.
type Node struct {
	Name        string
	Description string
	// Target is an optional routing label indexed by the network on AddNode.
	Target string

	// ProcessingTime is ignored for producers, which always charge 0.
	ProcessingTime ProcessingTimeFunc
	// Transform is ignored for consumers, which never forward.
	Transform TransformFunc

	id          NodeID
	kind        Kind
	consumes    map[RequestType]struct{}
	produces    map[RequestType]struct{}
	degradation float64
	queue       *PendingQueue
	outgoing    connectionSet
	incoming    connectionSet
	delivered   int64

	network *Network
	rng     *rand.Rand
}

func newNode(kind Kind, consumes, produces []RequestType) *Node {
	n := &Node{
		kind:     kind,
		consumes: make(map[RequestType]struct{}),
		produces: make(map[RequestType]struct{}),
		queue:    NewPendingQueue(),
		outgoing: make(connectionSet),
		incoming: make(connectionSet),
	}
	for _, t := range consumes {
		n.consumes[t] = struct{}{}
	}
	for _, t := range produces {
		n.produces[t] = struct{}{}
	}
	return n
}

// NewProducer creates a traffic origin. Producers consume nothing.
func NewProducer(produces ...RequestType) *Node {
	return newNode(KindProducer, nil, produces)
}

// NewProcessor creates an intermediate node.
func NewProcessor(consumes, produces []RequestType) *Node {
	return newNode(KindProcessor, consumes, produces)
}

// NewConsumer creates a terminal sink.
func NewConsumer(consumes ...RequestType) *Node {
	return newNode(KindConsumer, consumes, nil)
}

// ID returns the network-issued id, or 0 before registration.
func (n *Node) ID() NodeID { return n.id }

// Kind returns the node role.
func (n *Node) Kind() Kind { return n.kind }

// Label returns Name, or a generated label for unnamed nodes.
func (n *Node) Label() string {
	if n.Name != "" {
		return n.Name
	}
	return fmt.Sprintf("%s-%d", n.kind, n.id)
}

// Consumes reports whether the node accepts requests of type t.
func (n *Node) Consumes(t RequestType) bool {
	_, ok := n.consumes[t]
	return ok
}

// ConsumedTypes returns the consumed types in sorted order.
func (n *Node) ConsumedTypes() []RequestType { return sortedTypes(n.consumes) }

// ProducedTypes returns the produced types in sorted order.
func (n *Node) ProducedTypes() []RequestType { return sortedTypes(n.produces) }

// Degradation returns the current degradation level in [0, 1].
func (n *Node) Degradation() float64 { return n.degradation }

// SetDegradation sets the degradation level, clamped to [0, 1].
func (n *Node) SetDegradation(level float64) error {
	if math.IsNaN(level) {
		return fmt.Errorf("%w: degradation must be a number", ErrInvalidConfiguration)
	}
	n.degradation = math.Max(0, math.Min(1, level))
	return nil
}

// Queue exposes the pending queue for introspection. Callers outside the
// engine must treat it as read-only.
func (n *Node) Queue() *PendingQueue { return n.queue }

// QueueLen returns the number of pending requests.
func (n *Node) QueueLen() int { return n.queue.Len() }

// RequestCount returns how many requests a consumer has drained so far.
func (n *Node) RequestCount() int64 { return n.delivered }

// Outgoing returns the outgoing connections ordered by target id.
func (n *Node) Outgoing() []Connection { return n.outgoing.sorted() }

// Incoming returns the incoming connections ordered by source id.
func (n *Node) Incoming() []Connection { return n.incoming.sorted() }

// Network returns the owning network, or nil for an unregistered node.
func (n *Node) Network() *Network { return n.network }

// Spawn creates a new request of type typ started at tick, with an ID
// issued by the owning network.
func (n *Node) Spawn(tick int64, typ RequestType) *Request {
	if n.network == nil {
		return NewRequest(uuid.NewString(), typ, tick)
	}
	return NewRequest(n.network.newRequestID(), typ, tick)
}

// Enqueue accepts req: it is scheduled at tick + processing time.
func (n *Node) Enqueue(tick int64, req *Request) error {
	delay := n.processingTime(req)
	if delay < 0 {
		return fmt.Errorf("%w: node %s returned %d for request %s", ErrInvalidProcessingTime, n.Label(), delay, req.ID)
	}
	req.State = StatePending
	n.queue.Add(PendingEntry{Request: req, ExecuteAt: tick + delay})
	return nil
}

func (n *Node) processingTime(req *Request) int64 {
	if n.kind == KindProducer {
		return 0
	}
	if n.ProcessingTime == nil {
		return DefaultProcessingTime
	}
	return n.ProcessingTime(n, req)
}

func (n *Node) transform(tick int64, req *Request) []*Request {
	if n.Transform == nil {
		return []*Request{req}
	}
	return n.Transform(n, tick, req)
}

// Generate creates count requests at tick and enqueues them on the producer.
// Each request picks one of the produced types by weighted random choice;
// nil weights mean uniform. Types are weighted in sorted order (see ProducedTypes).
func (n *Node) Generate(tick int64, count int, weights []float64) error {
	if n.kind != KindProducer {
		return fmt.Errorf("%w: node %s is a %s, only producers generate traffic", ErrInvalidConfiguration, n.Label(), n.kind)
	}
	if len(n.produces) == 0 {
		return fmt.Errorf("%w: producer %s has no produced types", ErrInvalidConfiguration, n.Label())
	}
	types := n.ProducedTypes()
	if err := ValidateWeights(weights, len(types)); err != nil {
		return err
	}
	if n.network == nil {
		return fmt.Errorf("producer %s: %w", n.Label(), ErrNotRegistered)
	}
	if weights == nil {
		weights = make([]float64, len(types))
		for i := range weights {
			weights[i] = 1
		}
	}
	for i := 0; i < count; i++ {
		req := n.Spawn(tick, SelectWeighted(n.rng, types, weights))
		if err := n.Enqueue(tick, req); err != nil {
			return err
		}
		n.network.observer.RequestGenerated(tick, n, req)
	}
	return nil
}

// ProcessOutgoing is the per-tick step. Non-consumers take every entry due
// at tick, transform it, remove it from the queue and deliver each result to
// every outgoing connection whose target consumes its type. Results inherit
// the original ExecuteAt: processing time is charged once, on ingress.
// A result no connection accepts is dropped with a diagnostic.
// Consumers drain their whole queue into the delivered count.
func (n *Node) ProcessOutgoing(tick int64) error {
	if n.network == nil {
		return fmt.Errorf("node %s: %w", n.Label(), ErrNotRegistered)
	}
	if n.kind == KindConsumer {
		n.drain(tick)
		return nil
	}
	for _, entry := range n.queue.Due(tick) {
		results := n.transform(tick, entry.Request)
		n.queue.Remove(entry)
		for _, req := range results {
			if req == nil {
				continue
			}
			if err := n.route(tick, PendingEntry{Request: req, ExecuteAt: entry.ExecuteAt}); err != nil {
				return err
			}
		}
	}
	return nil
}

// route delivers entry.Request along matching outgoing connections. The first
// accepting target receives the request itself, further targets receive forks.
func (n *Node) route(tick int64, entry PendingEntry) error {
	req := entry.Request
	accepted := 0
	for _, con := range n.outgoing.sorted() {
		target := n.network.nodes[con.To]
		if target == nil || !target.Consumes(req.Type) {
			continue
		}
		out := req
		if accepted > 0 {
			out = req.fork()
		}
		if err := target.Enqueue(tick, out); err != nil {
			return err
		}
		accepted++
	}
	if accepted == 0 {
		n.network.drop(tick, n, entry)
	}
	return nil
}

func (n *Node) drain(tick int64) {
	for _, entry := range n.queue.DrainAll() {
		req := entry.Request
		req.State = StateCompleted
		req.End(tick, true)
		n.delivered++
		n.network.observer.RequestDelivered(tick, n, req)
	}
}

// terminate force-ends everything still queued on n.
func (n *Node) terminate(tick int64) []*Request {
	entries := n.queue.DrainAll()
	ended := make([]*Request, 0, len(entries))
	for _, entry := range entries {
		req := entry.Request
		req.State = StateTerminated
		req.End(tick, false)
		ended = append(ended, req)
	}
	return ended
}

func (n *Node) String() string {
	return fmt.Sprintf("Node: (ID: %d, Kind: %s, Name: %s, Pending: %d)", n.id, n.kind, n.Name, n.queue.Len())
}

func sortedTypes(set map[RequestType]struct{}) []RequestType {
	out := make([]RequestType, 0, len(set))
	for t := range set {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
