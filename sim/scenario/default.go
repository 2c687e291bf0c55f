package scenario

// Default returns the built-in scenario: a client producing API and static
// traffic into a web server that serves static files from storage and turns
// API calls into database queries. Halfway through, the server degrades and
// its base latency rises from 50 to 200 ticks.
func Default() *Scenario {
	return &Scenario{
		Version:    "1",
		Name:       "web-stack",
		Seed:       42,
		TickRate:   100,
		Ticks:      2000,
		DropPolicy: "keep",
		Root:       "client",
		Nodes: []NodeSpec{
			{
				Name:     "client",
				Kind:     "producer",
				Produces: []string{"ApiRequest", "StaticFile"},
			},
			{
				Name:     "server",
				Kind:     "processor",
				Target:   "web",
				Consumes: []string{"StaticFile", "ApiRequest"},
				Produces: []string{"StaticFile", "Database"},
				Processing: &ProcessingSpec{
					BaseMs:            50,
					QueueMsPerEntry:   0.5,
					DegradedBaseMs:    200,
					DegradedThreshold: 0.5,
				},
				Transform: []TransformRule{
					{From: "ApiRequest", To: []string{"Database"}},
				},
			},
			{
				Name:     "storage",
				Kind:     "consumer",
				Consumes: []string{"StaticFile"},
			},
			{
				Name:     "db",
				Kind:     "consumer",
				Consumes: []string{"Database"},
			},
		},
		Connections: []ConnectionSpec{
			{From: "client", To: "server"},
			{From: "server", To: "storage"},
			{From: "server", To: "db"},
		},
		Injections: []InjectionSpec{
			{At: 0, Producer: "client", Count: 1000, Weights: []float64{3, 1}, Every: 100000},
		},
		Events: []EventSpec{
			{At: 100000, Kind: "degrade", Node: "server", Level: 0.8},
		},
	}
}
