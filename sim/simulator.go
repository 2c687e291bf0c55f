// sim/simulator.go
package sim

import (
	"container/heap"
	"fmt"

	"github.com/sirupsen/logrus"
)

// DefaultTickRate is the clock advance per pass, in ticks (milliseconds of simulated time).
const DefaultTickRate int64 = 100

// Simulator is the driver that holds simulation time, scheduled events and
// the network it advances.
type Simulator struct {
	Clock int64
	// TickRate is added to Clock after every pass.
	TickRate int64
	Network  *Network
	Metrics  *Metrics
	// Passes counts completed Step calls.
	Passes int

	events EventQueue
	seq    uint64
}

// NewSimulator creates a driver for network starting at tick 0. A
// non-positive tickRate falls back to DefaultTickRate. The simulator's
// Metrics are attached to the network as an observer.
func NewSimulator(network *Network, tickRate int64) *Simulator {
	if tickRate <= 0 {
		tickRate = DefaultTickRate
	}
	s := &Simulator{
		TickRate: tickRate,
		Network:  network,
		Metrics:  NewMetrics(),
		events:   make(EventQueue, 0),
	}
	network.AddObserver(s.Metrics)
	return s
}

// Schedule pushes an event into the simulator's event queue.
func (sim *Simulator) Schedule(ev Event) {
	sim.seq++
	heap.Push(&sim.events, scheduledEvent{event: ev, seq: sim.seq})
}

// PendingEvents returns the number of scheduled events not yet executed.
func (sim *Simulator) PendingEvents() int {
	return len(sim.events)
}

// Step executes every event due at Clock, runs one full network pass at
// Clock and advances Clock by TickRate.
func (sim *Simulator) Step() error {
	for len(sim.events) > 0 && sim.events[0].event.Timestamp() <= sim.Clock {
		ev := heap.Pop(&sim.events).(scheduledEvent).event
		logrus.Debugf("[tick %07d] Executing %T", sim.Clock, ev)
		if err := ev.Execute(sim); err != nil {
			return fmt.Errorf("event %T at tick %d: %w", ev, sim.Clock, err)
		}
	}
	if err := sim.Network.Step(sim.Clock); err != nil {
		return err
	}
	sim.Clock += sim.TickRate
	sim.Passes++
	return nil
}

// Simulate drives ticks full passes. It stops at the first error.
func (sim *Simulator) Simulate(ticks int) error {
	logrus.Infof("[tick %07d] simulating %d passes (tick rate %d)", sim.Clock, ticks, sim.TickRate)
	for i := 0; i < ticks; i++ {
		if err := sim.Step(); err != nil {
			return err
		}
	}
	sim.Metrics.SimEndedTime = sim.Clock
	logrus.Infof("[tick %07d] Simulation ended", sim.Clock)
	return nil
}
