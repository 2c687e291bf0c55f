package sim

import (
	"fmt"
	"sort"
)

// Connection is a directed edge, always in the direction of the request.
// It is a value (an id pair) registered in From's outgoing set and in To's
// incoming set; two connections with the same endpoints are the same edge.
type Connection struct {
	From NodeID
	To   NodeID
}

func (c Connection) String() string {
	return fmt.Sprintf("%d->%d", c.From, c.To)
}

// connectionSet is one side of a node's adjacency.
type connectionSet map[Connection]struct{}

// sorted returns the connections ordered by (From, To) for reproducible iteration.
func (s connectionSet) sorted() []Connection {
	out := make([]Connection, 0, len(s))
	for c := range s {
		out = append(out, c)
	}
	sortConnections(out)
	return out
}

func sortConnections(cons []Connection) {
	sort.Slice(cons, func(i, j int) bool {
		if cons[i].From != cons[j].From {
			return cons[i].From < cons[j].From
		}
		return cons[i].To < cons[j].To
	})
}

// link registers c on both endpoints. Callers validate both nodes first,
// so registration cannot stop halfway.
func link(from, to *Node, c Connection) {
	from.outgoing[c] = struct{}{}
	to.incoming[c] = struct{}{}
}

// unlink removes c from whichever endpoints still hold it. Idempotent.
func unlink(from, to *Node, c Connection) bool {
	removed := false
	if from != nil {
		if _, ok := from.outgoing[c]; ok {
			delete(from.outgoing, c)
			removed = true
		}
	}
	if to != nil {
		if _, ok := to.incoming[c]; ok {
			delete(to.incoming, c)
			removed = true
		}
	}
	return removed
}
