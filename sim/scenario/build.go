package scenario

import (
	"fmt"
	"math"

	"github.com/sirupsen/logrus"

	"github.com/server-sim/server-sim/sim"
	"github.com/server-sim/server-sim/sim/trace"
)

// Built is a scenario turned into live engine objects.
type Built struct {
	Simulator *sim.Simulator
	Network   *sim.Network
	Nodes     map[string]*sim.Node
	Trace     *trace.SimulationTrace
	// Ticks is the number of passes the scenario asks for.
	Ticks int
}

// Build validates s and constructs its network, simulator, trace and
// scheduled events. Extra observers are attached to the network.
func Build(s *Scenario, observers ...sim.Observer) (*Built, error) {
	if err := s.Validate(); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}

	nodes := make(map[string]*sim.Node, len(s.Nodes))
	var root *sim.Node
	factories := make([]sim.NodeFactory, 0, len(s.Nodes)-1)
	for i := range s.Nodes {
		spec := &s.Nodes[i]
		node := newNode(spec)
		nodes[spec.Name] = node
		if spec.Name == s.Root {
			root = node
			continue
		}
		factories = append(factories, func() *sim.Node { return node })
	}

	st := trace.NewSimulationTrace(trace.TraceConfig{Level: trace.TraceLevel(s.TraceLevel)})
	opts := []sim.Option{
		sim.WithSeed(s.Seed),
		sim.WithDropPolicy(sim.DropPolicy(s.DropPolicy)),
		sim.WithObserver(sim.NewTraceRecorder(st)),
	}
	for _, obs := range observers {
		opts = append(opts, sim.WithObserver(obs))
	}
	network, err := sim.NewNetwork(root, factories, opts...)
	if err != nil {
		return nil, fmt.Errorf("building network: %w", err)
	}
	for i := range s.Nodes {
		spec := &s.Nodes[i]
		if err := nodes[spec.Name].SetDegradation(spec.Degradation); err != nil {
			return nil, fmt.Errorf("node %q: %w", spec.Name, err)
		}
	}

	for _, c := range s.Connections {
		if _, err := network.Connect(nodes[c.From], nodes[c.To]); err != nil {
			return nil, fmt.Errorf("connecting %s -> %s: %w", c.From, c.To, err)
		}
	}

	simulator := sim.NewSimulator(network, s.TickRate)
	for _, inj := range s.Injections {
		producer := nodes[inj.Producer]
		simulator.Schedule(&sim.GenerateEvent{
			At:       inj.At,
			Producer: producer,
			Count:    inj.Count,
			Weights:  alignWeights(producer, producesOf(s, inj.Producer), inj.Weights),
			Every:    inj.Every,
			Until:    inj.Until,
		})
	}
	for _, ev := range s.Events {
		switch ev.Kind {
		case "degrade":
			simulator.Schedule(&sim.DegradeEvent{At: ev.At, Node: nodes[ev.Node], Level: ev.Level})
		case "remove":
			simulator.Schedule(&sim.RemoveNodeEvent{At: ev.At, Node: nodes[ev.Node]})
		}
	}

	logrus.Infof("built scenario %q: %d nodes, %d connections, %d scheduled events",
		s.Name, network.Len(), len(network.Connections()), simulator.PendingEvents())

	return &Built{
		Simulator: simulator,
		Network:   network,
		Nodes:     nodes,
		Trace:     st,
		Ticks:     s.Ticks,
	}, nil
}

func newNode(spec *NodeSpec) *sim.Node {
	var node *sim.Node
	switch spec.Kind {
	case "producer":
		node = sim.NewProducer(toTypes(spec.Produces)...)
	case "consumer":
		node = sim.NewConsumer(toTypes(spec.Consumes)...)
	default:
		node = sim.NewProcessor(toTypes(spec.Consumes), toTypes(spec.Produces))
	}
	node.Name = spec.Name
	node.Description = spec.Description
	node.Target = spec.Target
	if spec.Processing != nil {
		node.ProcessingTime = processingTime(*spec.Processing)
	}
	if len(spec.Transform) > 0 {
		node.Transform = transform(spec.Transform)
	}
	return node
}

// processingTime implements the ProcessingSpec latency model. A zero
// degraded threshold disables the degraded base.
func processingTime(p ProcessingSpec) sim.ProcessingTimeFunc {
	degraded := p.DegradedBaseMs > 0 && p.DegradedThreshold > 0
	return func(node *sim.Node, _ *sim.Request) int64 {
		base := p.BaseMs
		if degraded && node.Degradation() >= p.DegradedThreshold {
			base = p.DegradedBaseMs
		}
		return base + int64(math.Floor(float64(node.QueueLen())*p.QueueMsPerEntry))
	}
}

// transform applies the rules: the first To type rewrites the matured
// request in place, every further To type spawns a new request. Types
// without a rule pass through.
func transform(rules []TransformRule) sim.TransformFunc {
	byType := make(map[sim.RequestType][]sim.RequestType, len(rules))
	for _, r := range rules {
		byType[sim.RequestType(r.From)] = toTypes(r.To)
	}
	return func(node *sim.Node, tick int64, req *sim.Request) []*sim.Request {
		to, ok := byType[req.Type]
		if !ok {
			return []*sim.Request{req}
		}
		out := make([]*sim.Request, 0, len(to))
		req.Type = to[0]
		out = append(out, req)
		for _, t := range to[1:] {
			spawned := node.Spawn(tick, t)
			spawned.Target = req.Target
			out = append(out, spawned)
		}
		return out
	}
}

// alignWeights maps weights given in the scenario's produces order onto the
// sorted order sim.Node.Generate uses.
func alignWeights(producer *sim.Node, produces []string, weights []float64) []float64 {
	if weights == nil {
		return nil
	}
	byType := make(map[sim.RequestType]float64, len(weights))
	for i, t := range uniq(produces) {
		byType[sim.RequestType(t)] = weights[i]
	}
	types := producer.ProducedTypes()
	aligned := make([]float64, len(types))
	for i, t := range types {
		aligned[i] = byType[t]
	}
	return aligned
}

func producesOf(s *Scenario, name string) []string {
	for _, n := range s.Nodes {
		if n.Name == name {
			return n.Produces
		}
	}
	return nil
}

func toTypes(names []string) []sim.RequestType {
	out := make([]sim.RequestType, len(names))
	for i, n := range names {
		out[i] = sim.RequestType(n)
	}
	return out
}
