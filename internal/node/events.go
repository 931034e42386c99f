package node

import "time"

// EventType names a node state transition.
type EventType string

const (
	EventStarted        EventType = "started"
	EventStopped        EventType = "stopped"
	EventPeerDiscovered EventType = "peer_discovered"
	EventPeerSeen       EventType = "peer_seen"
	EventDMXTimeout     EventType = "dmx_timeout"
	EventDMXResumed     EventType = "dmx_resumed"
)

// Event is published to every EventSink of the node.
type Event struct {
	Type EventType `json:"type"`
	Node string    `json:"node"`
	Peer *Peer     `json:"peer,omitempty"`
	Time time.Time `json:"time"`
}

// EventSink receives node events. Publish is called from the receive loop
// and must not block.
type EventSink interface {
	Publish(Event)
}

// EventSinkFunc adapts a function to an EventSink.
type EventSinkFunc func(Event)

func (f EventSinkFunc) Publish(e Event) { f(e) }
