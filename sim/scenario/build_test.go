package scenario

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/server-sim/server-sim/sim"
)

func TestBuild_ChainScenario_DeliversAllTraffic(t *testing.T) {
	// GIVEN the chain scenario (client -> server -> storage/db)
	s, err := Load(filepath.Join("testdata", "chain.yaml"))
	require.NoError(t, err)

	// WHEN it is built and run for its configured ticks
	built, err := Build(s)
	require.NoError(t, err)
	require.NoError(t, built.Simulator.Simulate(built.Ticks))

	// THEN every generated request reaches a consumer and nothing is left pending
	m := built.Simulator.Metrics
	assert.Equal(t, 100, m.GeneratedRequests)
	assert.Equal(t, 100, m.CompletedRequests)
	assert.Zero(t, m.DroppedRequests)
	assert.Zero(t, built.Network.PendingRequests())
	assert.Equal(t, int64(100), built.Nodes["storage"].RequestCount()+built.Nodes["db"].RequestCount())
	// server charges 20 ticks on ingress; consumers drain within the same pass
	assert.Equal(t, int64(20), m.MaxLatency)
	assert.Empty(t, built.Trace.Drops)
}

func TestBuild_WiresNetworkAndEvents(t *testing.T) {
	built, err := Build(Default())
	require.NoError(t, err)

	// root first, ids in declaration order
	assert.Equal(t, built.Nodes["client"], built.Network.Root())
	assert.Equal(t, sim.NodeID(1), built.Nodes["client"].ID())
	assert.Equal(t, 4, built.Network.Len())
	assert.Len(t, built.Network.Connections(), 3)
	assert.Equal(t, []*sim.Node{built.Nodes["server"]}, built.Network.NodesByTarget("web"))
	// one injection and one degrade event
	assert.Equal(t, 2, built.Simulator.PendingEvents())
	assert.Equal(t, 2000, built.Ticks)
}

func TestBuild_TransformRewritesAndFansOut(t *testing.T) {
	// GIVEN a processor that turns every ApiRequest into a Database and an Event request
	s := &Scenario{
		Root:  "client",
		Ticks: 3,
		Nodes: []NodeSpec{
			{Name: "client", Kind: "producer", Produces: []string{"ApiRequest"}},
			{Name: "api", Kind: "processor", Consumes: []string{"ApiRequest"}, Produces: []string{"Database", "Event"},
				Processing: &ProcessingSpec{BaseMs: 0},
				Transform:  []TransformRule{{From: "ApiRequest", To: []string{"Database", "Event"}}}},
			{Name: "db", Kind: "consumer", Consumes: []string{"Database"}},
			{Name: "bus", Kind: "consumer", Consumes: []string{"Event"}},
		},
		Connections: []ConnectionSpec{{From: "client", To: "api"}, {From: "api", To: "db"}, {From: "api", To: "bus"}},
		Injections:  []InjectionSpec{{Producer: "client", Count: 10}},
	}

	// WHEN built and run
	built, err := Build(s)
	require.NoError(t, err)
	require.NoError(t, built.Simulator.Simulate(built.Ticks))

	// THEN each request reaches db as Database and spawns one Event for bus
	assert.Equal(t, int64(10), built.Nodes["db"].RequestCount())
	assert.Equal(t, int64(10), built.Nodes["bus"].RequestCount())
	assert.Equal(t, 10, built.Simulator.Metrics.GeneratedRequests)
}

func TestBuild_ProcessingModel_UsesDegradedBase(t *testing.T) {
	// GIVEN a processing model with a degraded fallback
	fn := processingTime(ProcessingSpec{BaseMs: 5, QueueMsPerEntry: 0.5, DegradedBaseMs: 100, DegradedThreshold: 0.5})
	node := sim.NewProcessor([]sim.RequestType{sim.TypeStaticFile}, nil)
	req := sim.NewRequest("r", sim.TypeStaticFile, 0)

	// WHEN the node is healthy and empty
	assert.Equal(t, int64(5), fn(node, req))

	// WHEN the queue holds three entries: floor(3 * 0.5) = 1
	for _, id := range []string{"a", "b", "c"} {
		require.NoError(t, node.Enqueue(0, sim.NewRequest(id, sim.TypeStaticFile, 0)))
	}
	assert.Equal(t, int64(6), fn(node, req))

	// WHEN degradation crosses the threshold
	require.NoError(t, node.SetDegradation(0.5))
	assert.Equal(t, int64(101), fn(node, req))
}

func TestBuild_ProcessingModel_OmittedThreshold_KeepsBase(t *testing.T) {
	// GIVEN a degraded base without a threshold
	fn := processingTime(ProcessingSpec{BaseMs: 5, DegradedBaseMs: 100})
	node := sim.NewProcessor([]sim.RequestType{sim.TypeStaticFile}, nil)
	req := sim.NewRequest("r", sim.TypeStaticFile, 0)

	// THEN a healthy node charges the normal base
	assert.Equal(t, int64(5), fn(node, req))

	// AND even a fully degraded node does not switch
	require.NoError(t, node.SetDegradation(1))
	assert.Equal(t, int64(5), fn(node, req))
}

func TestBuild_DefaultScenario_DegradationRaisesLatency(t *testing.T) {
	run := func(degrade bool) int64 {
		s := Default()
		s.Injections[0].Count = 10
		if !degrade {
			s.Events = nil
		}
		built, err := Build(s)
		require.NoError(t, err)
		require.NoError(t, built.Simulator.Simulate(built.Ticks))
		return built.Simulator.Metrics.MaxLatency
	}

	// GIVEN the built-in scenario with and without the server degrading halfway
	healthy := run(false)
	degraded := run(true)

	// THEN only the degraded run charges the 200 tick base on the server
	assert.Less(t, healthy, int64(200))
	assert.GreaterOrEqual(t, degraded, int64(200))
}

func TestBuild_AlignWeights_FollowsSortedTypes(t *testing.T) {
	// GIVEN a producer declared as [StaticFile, ApiRequest] with weights [3, 1]
	producer := sim.NewProducer(sim.TypeStaticFile, sim.TypeAPI)

	// WHEN weights are aligned to the sorted produced types [ApiRequest, StaticFile]
	got := alignWeights(producer, []string{"StaticFile", "ApiRequest"}, []float64{3, 1})

	// THEN the StaticFile weight follows its type
	assert.Equal(t, []float64{1, 3}, got)
	assert.Nil(t, alignWeights(producer, []string{"StaticFile", "ApiRequest"}, nil))
}

func TestBuild_InvalidScenario_ReturnsError(t *testing.T) {
	s := Default()
	s.Root = "db"
	_, err := Build(s)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid scenario")
}

func TestBuild_SameSeed_IsReproducible(t *testing.T) {
	run := func() (int64, int64) {
		s := Default()
		s.Ticks = 20
		s.Injections[0].Every = 500
		built, err := Build(s)
		require.NoError(t, err)
		require.NoError(t, built.Simulator.Simulate(built.Ticks))
		return built.Nodes["storage"].RequestCount(), built.Nodes["db"].RequestCount()
	}
	s1, d1 := run()
	s2, d2 := run()
	assert.Equal(t, s1, s2)
	assert.Equal(t, d1, d2)
	assert.Positive(t, s1+d1)
}
