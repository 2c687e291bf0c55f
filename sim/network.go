package sim

import (
	"fmt"
	"iter"
	"slices"
	"sort"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// DropPolicy decides what happens to a request no outgoing connection accepts.
type DropPolicy string

const (
	// DropKeep discards the request without terminating it; it simply leaves the simulation.
	DropKeep DropPolicy = "keep"
	// DropTerminate marks the request failed and sets EndedAt to the drop tick.
	DropTerminate DropPolicy = "terminate"
)

// validDropPolicies maps accepted drop policy strings.
var validDropPolicies = map[DropPolicy]bool{
	DropKeep:      true,
	DropTerminate: true,
	"":            true, // empty defaults to keep
}

// IsValidDropPolicy returns true if the given string is a recognized drop policy.
func IsValidDropPolicy(policy string) bool {
	return validDropPolicies[DropPolicy(policy)]
}

// NodeFactory instantiates one node for NewNetwork.
type NodeFactory func() *Node

// Option configures a Network at construction.
type Option func(*Network)

// WithSeed sets the key every producer and the request ID stream derive from.
func WithSeed(seed int64) Option {
	return func(n *Network) { n.rng = NewPartitionedRNG(NewSimulationKey(seed)) }
}

// WithDropPolicy sets the routing-miss policy. Empty means DropKeep.
func WithDropPolicy(p DropPolicy) Option {
	return func(n *Network) {
		if p == "" {
			p = DropKeep
		}
		n.dropPolicy = p
	}
}

// WithObserver adds a lifecycle observer.
func WithObserver(obs Observer) Option {
	return func(n *Network) { n.observers = append(n.observers, obs) }
}

// Network is the arena owning every node. The root producer is fixed at
// construction, is always a member and always seeds traversal.
//
// Thread-safety: NOT thread-safe. Must be called from single goroutine.
type Network struct {
	root    *Node
	nodes   map[NodeID]*Node
	targets map[string]map[NodeID]*Node
	nextID  NodeID

	rng        *PartitionedRNG
	dropPolicy DropPolicy
	observers  Observers
	observer   Observer
}

// NewNetwork builds a network from the root producer plus one node per
// factory. It fails with ErrDuplicateNode if two factories (or a factory and
// the root) yield the same node instance.
func NewNetwork(root *Node, factories []NodeFactory, opts ...Option) (*Network, error) {
	if root == nil {
		return nil, fmt.Errorf("%w: root node is required", ErrInvalidConfiguration)
	}
	if root.kind != KindProducer {
		return nil, fmt.Errorf("%w: root node must be a producer, got %s", ErrInvalidConfiguration, root.kind)
	}
	if root.network != nil {
		return nil, fmt.Errorf("%w: root node %s already belongs to a network", ErrDuplicateNode, root.Label())
	}

	seen := map[*Node]bool{root: true}
	instances := make([]*Node, 0, len(factories))
	for i, factory := range factories {
		node := factory()
		if node == nil {
			return nil, fmt.Errorf("%w: factory %d returned nil", ErrInvalidConfiguration, i)
		}
		if seen[node] || node.network != nil {
			return nil, fmt.Errorf("%w: factory %d returned node %s twice", ErrDuplicateNode, i, node.Label())
		}
		seen[node] = true
		instances = append(instances, node)
	}

	n := &Network{
		root:       root,
		nodes:      make(map[NodeID]*Node),
		targets:    make(map[string]map[NodeID]*Node),
		rng:        NewPartitionedRNG(NewSimulationKey(0)),
		dropPolicy: DropKeep,
	}
	for _, opt := range opts {
		opt(n)
	}
	n.observer = n.observers

	n.register(root)
	for _, node := range instances {
		n.register(node)
	}
	return n, nil
}

// AddObserver attaches an observer after construction.
func (n *Network) AddObserver(obs Observer) {
	n.observers = append(n.observers, obs)
	n.observer = n.observers
}

// AddNode registers node and, if it carries a Target label, indexes it for
// label lookup.
func (n *Network) AddNode(node *Node) error {
	if node == nil {
		return fmt.Errorf("%w: node is nil", ErrInvalidConfiguration)
	}
	if node.network != nil {
		return fmt.Errorf("%w: node %s is already registered", ErrDuplicateNode, node.Label())
	}
	n.register(node)
	return nil
}

func (n *Network) register(node *Node) {
	n.nextID++
	node.id = n.nextID
	node.network = n
	node.rng = n.rng.ForSubsystem(SubsystemProducer(node.id))
	n.nodes[node.id] = node
	if node.Target != "" {
		if n.targets[node.Target] == nil {
			n.targets[node.Target] = make(map[NodeID]*Node)
		}
		n.targets[node.Target][node.id] = node
	}
	logrus.Debugf("registered %s node %s (id %d)", node.kind, node.Label(), node.id)
}

// RemoveNode severs every connection of node, terminates the requests it
// still holds (Success=false, EndedAt=tick) and removes it from the network.
func (n *Network) RemoveNode(node *Node, tick int64) error {
	if err := n.checkMember(node); err != nil {
		return err
	}
	if node == n.root {
		return ErrRootRemoval
	}
	for c := range node.outgoing {
		n.Disconnect(c)
	}
	for c := range node.incoming {
		n.Disconnect(c)
	}
	for _, req := range node.terminate(tick) {
		n.observer.RequestTerminated(tick, node, req)
	}
	delete(n.nodes, node.id)
	if node.Target != "" {
		delete(n.targets[node.Target], node.id)
		if len(n.targets[node.Target]) == 0 {
			delete(n.targets, node.Target)
		}
	}
	node.network = nil
	logrus.Infof("[tick %07d] removed node %s (id %d)", tick, node.Label(), node.id)
	return nil
}

// Connect creates the edge from → to. Type compatibility is not checked
// here; it is enforced at delivery time. Connecting an existing pair again
// returns the existing connection.
func (n *Network) Connect(from, to *Node) (Connection, error) {
	if err := n.checkMember(from); err != nil {
		return Connection{}, fmt.Errorf("connect from: %w", err)
	}
	if err := n.checkMember(to); err != nil {
		return Connection{}, fmt.Errorf("connect to: %w", err)
	}
	c := Connection{From: from.id, To: to.id}
	link(from, to, c)
	return c, nil
}

// Disconnect removes c from both endpoints and reports whether anything was
// removed. Disconnecting an absent connection is a no-op.
func (n *Network) Disconnect(c Connection) bool {
	return unlink(n.nodes[c.From], n.nodes[c.To], c)
}

func (n *Network) checkMember(node *Node) error {
	if node == nil {
		return fmt.Errorf("%w: nil node", ErrUnknownNode)
	}
	if node.network != n || n.nodes[node.id] != node {
		return fmt.Errorf("%w: %s", ErrUnknownNode, node.Label())
	}
	return nil
}

// Traverse yields the nodes reachable from the root via outgoing
// connections: the root first, then a depth-first walk guarded by a visited
// set, so cycles terminate. Siblings are visited in ascending id order.
// Every call starts a fresh pass.
func (n *Network) Traverse() iter.Seq[*Node] {
	return func(yield func(*Node) bool) {
		visited := map[NodeID]bool{n.root.id: true}
		if !yield(n.root) {
			return
		}
		stack := []*Node{n.root}
		for len(stack) > 0 {
			current := stack[len(stack)-1]
			stack = stack[:len(stack)-1]
			for _, c := range current.outgoing.sorted() {
				next := n.nodes[c.To]
				if next == nil || visited[next.id] {
					continue
				}
				visited[next.id] = true
				if !yield(next) {
					return
				}
				stack = append(stack, next)
			}
		}
	}
}

// TraversalOrder collects one pass of Traverse.
func (n *Network) TraversalOrder() []*Node {
	return slices.Collect(n.Traverse())
}

// Step runs one tick: the outgoing step of every reachable node, once, in
// traversal order. Requests forwarded to a node that has not yet run this
// tick are visible to it within the same pass.
func (n *Network) Step(tick int64) error {
	visited := 0
	for node := range n.Traverse() {
		if err := node.ProcessOutgoing(tick); err != nil {
			return fmt.Errorf("tick %d: node %s: %w", tick, node.Label(), err)
		}
		visited++
	}
	logrus.Debugf("[tick %07d] processed %d reachable nodes", tick, visited)
	n.observer.TickCompleted(tick, n)
	return nil
}

// drop reports a routing miss and applies the drop policy.
func (n *Network) drop(tick int64, node *Node, entry PendingEntry) {
	req := entry.Request
	logrus.Warnf("[tick %07d] no connection for request %s with type %s at node %s", tick, req.ID, req.Type, node.Label())
	if n.dropPolicy == DropTerminate {
		req.State = StateDropped
		req.End(tick, false)
	}
	n.observer.RequestDropped(tick, node, entry)
}

func (n *Network) newRequestID() string {
	id, err := uuid.NewRandomFromReader(n.rng.ForSubsystem(SubsystemRequestIDs))
	if err != nil {
		return uuid.NewString()
	}
	return id.String()
}

// Root returns the root producer.
func (n *Network) Root() *Node { return n.root }

// Node returns the member with the given id.
func (n *Network) Node(id NodeID) (*Node, bool) {
	node, ok := n.nodes[id]
	return node, ok
}

// Nodes returns every member, including unreachable ones, ordered by id.
func (n *Network) Nodes() []*Node {
	out := make([]*Node, 0, len(n.nodes))
	for _, node := range n.nodes {
		out = append(out, node)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].id < out[j].id })
	return out
}

// NodesByTarget returns the members indexed under the routing label, ordered by id.
func (n *Network) NodesByTarget(target string) []*Node {
	out := make([]*Node, 0, len(n.targets[target]))
	for _, node := range n.targets[target] {
		out = append(out, node)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].id < out[j].id })
	return out
}

// Connections returns every edge ordered by (From, To).
func (n *Network) Connections() []Connection {
	var out []Connection
	for _, node := range n.nodes {
		for c := range node.outgoing {
			out = append(out, c)
		}
	}
	sortConnections(out)
	return out
}

// Len returns the number of member nodes.
func (n *Network) Len() int { return len(n.nodes) }

// PendingRequests returns the total queue length across all members.
func (n *Network) PendingRequests() int {
	total := 0
	for _, node := range n.nodes {
		total += node.queue.Len()
	}
	return total
}

// DropPolicy returns the configured routing-miss policy.
func (n *Network) DropPolicy() DropPolicy { return n.dropPolicy }
