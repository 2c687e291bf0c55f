package sim

import (
	"container/heap"
	"fmt"

	"github.com/sirupsen/logrus"
)

// Event defines the interface for scheduled driver actions.
// Each event has a Timestamp (in ticks) and an Execute method that is run
// before the first pass whose clock is at or after the timestamp.
type Event interface {
	Timestamp() int64
	Execute(*Simulator) error
}

type scheduledEvent struct {
	event Event
	seq   uint64
}

// EventQueue implements heap.Interface with deterministic ordering:
// timestamp, then scheduling order.
type EventQueue []scheduledEvent

func (eq EventQueue) Len() int { return len(eq) }
func (eq EventQueue) Less(i, j int) bool {
	if eq[i].event.Timestamp() != eq[j].event.Timestamp() {
		return eq[i].event.Timestamp() < eq[j].event.Timestamp()
	}
	return eq[i].seq < eq[j].seq
}
func (eq EventQueue) Swap(i, j int) { eq[i], eq[j] = eq[j], eq[i] }

func (eq *EventQueue) Push(x any) {
	*eq = append(*eq, x.(scheduledEvent))
}

func (eq *EventQueue) Pop() any {
	old := *eq
	n := len(old)
	item := old[n-1]
	*eq = old[0 : n-1]
	return item
}

// GenerateEvent injects traffic on a producer. With Every > 0 it reschedules
// itself every Every ticks until Until (inclusive; 0 means no end).
type GenerateEvent struct {
	At       int64
	Producer *Node
	Count    int
	Weights  []float64
	Every    int64
	Until    int64
}

// Timestamp returns the scheduled time of the GenerateEvent.
func (e *GenerateEvent) Timestamp() int64 { return e.At }

// Execute generates Count requests at the simulator clock.
func (e *GenerateEvent) Execute(sim *Simulator) error {
	logrus.Debugf("<< Generate: %d requests on %s at %d ticks", e.Count, e.Producer.Label(), sim.Clock)
	if err := e.Producer.Generate(sim.Clock, e.Count, e.Weights); err != nil {
		return fmt.Errorf("generate on %s: %w", e.Producer.Label(), err)
	}
	if e.Every > 0 {
		next := e.At + e.Every
		if e.Until == 0 || next <= e.Until {
			repeat := *e
			repeat.At = next
			sim.Schedule(&repeat)
		}
	}
	return nil
}

// DegradeEvent sets a node's degradation level.
type DegradeEvent struct {
	At    int64
	Node  *Node
	Level float64
}

// Timestamp returns the scheduled time of the DegradeEvent.
func (e *DegradeEvent) Timestamp() int64 { return e.At }

// Execute applies the degradation level.
func (e *DegradeEvent) Execute(sim *Simulator) error {
	logrus.Infof("<< Degrade: %s to %.2f at %d ticks", e.Node.Label(), e.Level, sim.Clock)
	return e.Node.SetDegradation(e.Level)
}

// RemoveNodeEvent removes a node from the network, ending its in-flight requests.
type RemoveNodeEvent struct {
	At   int64
	Node *Node
}

// Timestamp returns the scheduled time of the RemoveNodeEvent.
func (e *RemoveNodeEvent) Timestamp() int64 { return e.At }

// Execute removes the node at the simulator clock.
func (e *RemoveNodeEvent) Execute(sim *Simulator) error {
	return sim.Network.RemoveNode(e.Node, sim.Clock)
}

var _ heap.Interface = (*EventQueue)(nil)
