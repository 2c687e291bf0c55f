package sim

// Observer receives request lifecycle notifications from a Network.
// Implementations must not mutate the network from a callback.
type Observer interface {
	RequestGenerated(tick int64, producer *Node, req *Request)
	RequestDelivered(tick int64, consumer *Node, req *Request)
	// RequestDropped is the routing-miss diagnostic: no outgoing connection of
	// node accepted the matured entry.
	RequestDropped(tick int64, node *Node, entry PendingEntry)
	RequestTerminated(tick int64, node *Node, req *Request)
	TickCompleted(tick int64, network *Network)
}

// Observers fans every notification out to each member in order.
type Observers []Observer

func (o Observers) RequestGenerated(tick int64, producer *Node, req *Request) {
	for _, obs := range o {
		obs.RequestGenerated(tick, producer, req)
	}
}

func (o Observers) RequestDelivered(tick int64, consumer *Node, req *Request) {
	for _, obs := range o {
		obs.RequestDelivered(tick, consumer, req)
	}
}

func (o Observers) RequestDropped(tick int64, node *Node, entry PendingEntry) {
	for _, obs := range o {
		obs.RequestDropped(tick, node, entry)
	}
}

func (o Observers) RequestTerminated(tick int64, node *Node, req *Request) {
	for _, obs := range o {
		obs.RequestTerminated(tick, node, req)
	}
}

func (o Observers) TickCompleted(tick int64, network *Network) {
	for _, obs := range o {
		obs.TickCompleted(tick, network)
	}
}
