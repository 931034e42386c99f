package node

import "time"

// Status is a point-in-time view of the node for monitoring.
type Status struct {
	ID          string    `json:"id"`
	State       string    `json:"state"`
	Interface   string    `json:"interface"`
	IP          string    `json:"ip"`
	Broadcast   string    `json:"broadcast"`
	MAC         string    `json:"mac"`
	Port        int       `json:"port"`
	Network     uint8     `json:"network"`
	SubNet      uint8     `json:"subnet"`
	Universe    uint8     `json:"universe"`
	Received    uint64    `json:"received"`
	DMXFrames   uint64    `json:"dmxFrames"`
	Ignored     uint64    `json:"ignored"`
	Invalid     uint64    `json:"invalid"`
	LastDMX     time.Time `json:"lastDmx"`
	DMXTimedOut bool      `json:"dmxTimedOut"`
	Peers       int       `json:"peers"`
	Handlers    int       `json:"handlers"`
	PollReplies uint32    `json:"pollReplies"`
}

// Status returns the current counters and addressing.
func (n *Node) Status() Status {
	n.mu.Lock()
	state, iface := n.state, n.iface
	n.mu.Unlock()

	s := Status{
		ID:          n.id.String(),
		State:       state.String(),
		Interface:   iface.Name,
		Port:        n.cfg.Port,
		Network:     n.cfg.Network,
		SubNet:      n.cfg.SubNet,
		Universe:    n.cfg.Universe,
		Received:    n.received.Load(),
		DMXFrames:   n.dmxFrames.Load(),
		Ignored:     n.ignored.Load(),
		Invalid:     n.invalid.Load(),
		DMXTimedOut: n.timedOut.Load(),
		Peers:       n.peers.Len(),
		Handlers:    n.handlers.Len(),
		PollReplies: n.replies.Load(),
	}
	if iface.IP != nil {
		s.IP = iface.IP.String()
		s.Broadcast = iface.Broadcast.String()
		s.MAC = iface.MAC.String()
	}
	if last := n.lastDMX.Load(); last != 0 {
		s.LastDMX = time.Unix(0, last)
	}
	return s
}
