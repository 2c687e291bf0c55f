// Defines the Request struct that models one unit of traffic in the simulation.
// Tracks the type tag used for routing, lifecycle ticks and the final outcome.

package sim

import (
	"fmt"
)

// RequestType is the routing tag of a request. Nodes declare the types they
// consume; delivery only happens to nodes whose consumed set contains the tag.
type RequestType string

const (
	TypeStaticFile RequestType = "StaticFile"
	TypeAPI        RequestType = "ApiRequest"
	TypeDatabase   RequestType = "Database"
	TypeEvent      RequestType = "Event"
	TypeFault      RequestType = "FaultRequest"
)

// RequestAction describes what a request asks the receiving system to do.
type RequestAction string

const (
	ActionRead    RequestAction = "read"
	ActionWrite   RequestAction = "write"
	ActionExecute RequestAction = "execute"
	ActionAll     RequestAction = "all"
)

// RequestState represents the lifecycle state of a request.
type RequestState string

const (
	StatePending    RequestState = "pending"    // held by some node's pending queue
	StateCompleted  RequestState = "completed"  // drained by a consumer
	StateDropped    RequestState = "dropped"    // no outgoing connection accepted it
	StateTerminated RequestState = "terminated" // its node was removed while it was queued
)

// Request models a single request's lifecycle in the simulation.
// A request is owned by exactly one pending queue at a time. EndedAt is
// only meaningful once Ended is true.
type Request struct {
	ID     string        // Unique identifier for the request
	Type   RequestType   // Routing tag
	Action RequestAction // read, write, execute, all

	State     RequestState
	StartedAt int64 // Tick at which the request was created
	EndedAt   int64 // Tick of terminal disposition
	Ended     bool  // Whether EndedAt has been set
	Success   bool

	// Target is an optional routing hint matched against node target labels
	// by external routing logic. The traversal itself ignores it.
	Target string

	forks int // number of fan-out copies derived from this request
}

// NewRequest creates a pending request of the given type started at tick.
func NewRequest(id string, typ RequestType, tick int64) *Request {
	return &Request{
		ID:        id,
		Type:      typ,
		Action:    ActionAll,
		State:     StatePending,
		StartedAt: tick,
	}
}

// End records the terminal disposition of the request. The first call sets
// EndedAt and Success; later calls leave the request untouched and return false.
func (req *Request) End(tick int64, success bool) bool {
	if req.Ended {
		return false
	}
	req.Ended = true
	req.EndedAt = tick
	req.Success = success
	return true
}

// Latency returns EndedAt - StartedAt, or 0 while the request is still open.
func (req *Request) Latency() int64 {
	if !req.Ended {
		return 0
	}
	return req.EndedAt - req.StartedAt
}

// fork derives a copy for an additional fan-out target. The copy shares type,
// action, start tick and target but gets its own identity, so each queue
// owns a distinct request object.
func (req *Request) fork() *Request {
	req.forks++
	return &Request{
		ID:        fmt.Sprintf("%s.%d", req.ID, req.forks),
		Type:      req.Type,
		Action:    req.Action,
		State:     StatePending,
		StartedAt: req.StartedAt,
		Target:    req.Target,
	}
}

// String returns a human-readable representation of a Request.
func (req Request) String() string {
	return fmt.Sprintf("Request: (ID: %s, Type: %s, State: %s, StartedAt: %d)", req.ID, req.Type, req.State, req.StartedAt)
}
