package sim

import (
	"bytes"
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewSimulator_DefaultTickRate(t *testing.T) {
	net, _, _, _ := newChain(t)
	s := NewSimulator(net, 0)
	assert.Equal(t, DefaultTickRate, s.TickRate)
	assert.Equal(t, int64(0), s.Clock)
	assert.NotNil(t, s.Metrics)
}

func TestSimulator_Step_AdvancesClock(t *testing.T) {
	net, _, _, _ := newChain(t)
	s := NewSimulator(net, 25)
	require.NoError(t, s.Step())
	require.NoError(t, s.Step())
	assert.Equal(t, int64(50), s.Clock)
	assert.Equal(t, 2, s.Passes)
	assert.Equal(t, 2, s.Metrics.Ticks)
}

// TestSimulator_Conservation verifies that every generated request is
// accounted for: delivered, still queued, or dropped.
func TestSimulator_Conservation(t *testing.T) {
	// GIVEN P -> N -> C with a steady injection
	net, p, n, c := newChain(t, WithSeed(3))
	s := NewSimulator(net, 5)
	s.Schedule(&GenerateEvent{At: 0, Producer: p, Count: 7, Every: 20, Until: 100})

	// WHEN run for a while
	require.NoError(t, s.Simulate(30))

	// THEN generated = delivered + queued + dropped
	m := s.Metrics
	queued := p.QueueLen() + n.QueueLen() + c.QueueLen()
	assert.Equal(t, 7*6, m.GeneratedRequests)
	assert.Equal(t, m.GeneratedRequests, m.CompletedRequests+queued+m.DroppedRequests)
	assert.Equal(t, int64(m.CompletedRequests), c.RequestCount())
	assert.Equal(t, 0, m.DroppedRequests)
	assert.Equal(t, s.Clock, m.SimEndedTime)
}

func TestSimulator_LatencyMatchesProcessingTime(t *testing.T) {
	// GIVEN tick rate 1 so each tick is observed
	net, p, n, _ := newChain(t)
	n.ProcessingTime = constDelay(20)
	s := NewSimulator(net, 1)
	s.Schedule(&GenerateEvent{At: 0, Producer: p, Count: 1})

	require.NoError(t, s.Simulate(25))

	// THEN the request spent exactly N's processing time in flight
	assert.Equal(t, 1, s.Metrics.CompletedRequests)
	assert.Equal(t, int64(20), s.Metrics.MaxLatency)
	assert.InDelta(t, 20.0, s.Metrics.AverageLatency(), 1e-9)
}

func TestSimulator_DropAtDeadEnd(t *testing.T) {
	// GIVEN P -> N where N has no outgoing connection
	rec := &recorder{}
	p := NewProducer(TypeAPI)
	n := NewProcessor([]RequestType{TypeAPI}, []RequestType{TypeAPI})
	net, err := NewNetwork(p, []NodeFactory{fixed(n)}, WithObserver(rec))
	require.NoError(t, err)
	_, err = net.Connect(p, n)
	require.NoError(t, err)
	s := NewSimulator(net, 10)
	s.Schedule(&GenerateEvent{At: 0, Producer: p, Count: 1})

	// WHEN the request matures on N
	require.NoError(t, s.Simulate(3))

	// THEN a drop is reported and no queue holds the request
	require.Len(t, rec.dropped, 1)
	assert.Equal(t, 0, net.PendingRequests())
	assert.Equal(t, 1, s.Metrics.DroppedRequests)
	assert.Equal(t, 1, s.Metrics.DroppedByType[TypeAPI])
	req := rec.dropped[0].Request
	assert.False(t, req.Ended, "keep policy leaves the request unterminated")
}

func TestSimulator_DropTerminatePolicy(t *testing.T) {
	rec := &recorder{}
	p := NewProducer(TypeAPI)
	net, err := NewNetwork(p, nil, WithObserver(rec), WithDropPolicy(DropTerminate))
	require.NoError(t, err)
	s := NewSimulator(net, 10)
	s.Schedule(&GenerateEvent{At: 0, Producer: p, Count: 2})

	require.NoError(t, s.Simulate(1))

	require.Len(t, rec.dropped, 2)
	for _, e := range rec.dropped {
		assert.Equal(t, StateDropped, e.Request.State)
		assert.True(t, e.Request.Ended)
		assert.False(t, e.Request.Success)
		assert.Equal(t, int64(0), e.Request.EndedAt)
	}
	assert.Equal(t, DropTerminate, net.DropPolicy())
}

func TestSimulator_GenerateEvent_RepeatsUntil(t *testing.T) {
	net, p, _, _ := newChain(t)
	s := NewSimulator(net, 10)
	s.Schedule(&GenerateEvent{At: 0, Producer: p, Count: 1, Every: 30, Until: 90})

	require.NoError(t, s.Simulate(20))

	// at 0, 30, 60, 90
	assert.Equal(t, 4, s.Metrics.GeneratedRequests)
	assert.Equal(t, 0, s.PendingEvents())
}

func TestSimulator_GenerateEvent_UnalignedTimestamp(t *testing.T) {
	// GIVEN an event between two passes
	rec := &recorder{}
	net, p, _, _ := newChain(t, WithObserver(rec))
	s := NewSimulator(net, 100)
	s.Schedule(&GenerateEvent{At: 150, Producer: p, Count: 1})

	// WHEN the clock passes it
	require.NoError(t, s.Simulate(2))
	assert.Equal(t, 0, s.Metrics.GeneratedRequests)
	require.NoError(t, s.Step())

	// THEN it fires on the first pass at or after its timestamp, stamped with the clock
	require.Len(t, rec.generated, 1)
	assert.Equal(t, int64(200), rec.generated[0].StartedAt)
}

func TestSimulator_DegradeEvent(t *testing.T) {
	net, _, n, _ := newChain(t)
	s := NewSimulator(net, 10)
	s.Schedule(&DegradeEvent{At: 20, Node: n, Level: 0.75})

	require.NoError(t, s.Simulate(2))
	assert.Equal(t, 0.0, n.Degradation())
	require.NoError(t, s.Step())
	assert.Equal(t, 0.75, n.Degradation())
}

func TestSimulator_RemoveNodeEvent_TerminatesInFlight(t *testing.T) {
	// GIVEN N holding requests far from maturity
	net, p, n, c := newChain(t)
	n.ProcessingTime = constDelay(1000)
	s := NewSimulator(net, 10)
	s.Schedule(&GenerateEvent{At: 0, Producer: p, Count: 5})
	s.Schedule(&RemoveNodeEvent{At: 50, Node: n})

	// WHEN N is removed mid-run
	require.NoError(t, s.Simulate(10))

	// THEN its requests are terminated and nothing reaches C
	assert.Equal(t, 5, s.Metrics.TerminatedRequests)
	assert.Equal(t, int64(0), c.RequestCount())
	assert.Equal(t, 2, net.Len())
}

func TestSimulator_RemoveRootEvent_Fails(t *testing.T) {
	net, p, _, _ := newChain(t)
	s := NewSimulator(net, 10)
	s.Schedule(&RemoveNodeEvent{At: 0, Node: p})
	err := s.Simulate(1)
	assert.True(t, errors.Is(err, ErrRootRemoval))
}

func TestSimulator_InvalidProcessingTime_Surfaces(t *testing.T) {
	net, p, n, _ := newChain(t)
	n.ProcessingTime = constDelay(-1)
	s := NewSimulator(net, 10)
	s.Schedule(&GenerateEvent{At: 0, Producer: p, Count: 1})

	err := s.Simulate(1)
	assert.True(t, errors.Is(err, ErrInvalidProcessingTime))
}

func TestSimulator_WeightedGeneration_OneToThree(t *testing.T) {
	// GIVEN a producer of two types with weights [1, 3] in sorted-type order
	p := NewProducer(TypeAPI, TypeStaticFile)
	api := NewConsumer(TypeAPI)
	static := NewConsumer(TypeStaticFile)
	net, err := NewNetwork(p, []NodeFactory{fixed(api), fixed(static)}, WithSeed(99))
	require.NoError(t, err)
	_, err = net.Connect(p, api)
	require.NoError(t, err)
	_, err = net.Connect(p, static)
	require.NoError(t, err)
	s := NewSimulator(net, 10)
	s.Schedule(&GenerateEvent{At: 0, Producer: p, Count: 100_000, Weights: []float64{1, 3}})

	// WHEN everything is delivered
	require.NoError(t, s.Simulate(1))

	// THEN the consumer split is close to 1:3
	total := float64(api.RequestCount() + static.RequestCount())
	require.Equal(t, 100_000.0, total)
	share := float64(api.RequestCount()) / total
	assert.Less(t, math.Abs(share-0.25), 0.01, "api share %.4f", share)
}

func TestSimulator_SameSeed_SameOutcome(t *testing.T) {
	run := func() (int64, int64) {
		p := NewProducer(TypeAPI, TypeStaticFile)
		api := NewConsumer(TypeAPI)
		static := NewConsumer(TypeStaticFile)
		net, err := NewNetwork(p, []NodeFactory{fixed(api), fixed(static)}, WithSeed(5))
		require.NoError(t, err)
		_, _ = net.Connect(p, api)
		_, _ = net.Connect(p, static)
		s := NewSimulator(net, 10)
		s.Schedule(&GenerateEvent{At: 0, Producer: p, Count: 500})
		require.NoError(t, s.Simulate(1))
		return api.RequestCount(), static.RequestCount()
	}
	a1, s1 := run()
	a2, s2 := run()
	assert.Equal(t, a1, a2)
	assert.Equal(t, s1, s2)
}

func TestMetrics_Fprint(t *testing.T) {
	net, p, _, _ := newChain(t)
	s := NewSimulator(net, 10)
	s.Schedule(&GenerateEvent{At: 0, Producer: p, Count: 2})
	require.NoError(t, s.Simulate(5))

	var buf bytes.Buffer
	s.Metrics.Fprint(&buf)
	out := buf.String()
	assert.Contains(t, out, "=== Simulation Metrics ===")
	assert.Contains(t, out, "Completed Requests   : 2")
	assert.Contains(t, out, "consumer C")
}
