package handlers

import (
	"time"

	"artnetnode/internal/clientmqtt"
	"artnetnode/internal/debounce"
	"artnetnode/internal/logger"
	"artnetnode/internal/node"
)

const peersKey = "peers"

// PeerPublisher publishes the peer list as one retained message after a
// burst of poll replies has settled.
type PeerPublisher struct {
	log      *logger.Log
	pub      clientmqtt.Publisher
	snapshot func() []node.Peer
	debounce *debounce.Debouncer[string]
}

var _ node.EventSink = (*PeerPublisher)(nil)

// NewPeerPublisher publishes snapshot() to <prefix>/peers at most once per
// delay of quiet.
func NewPeerPublisher(log logger.Logger, pub clientmqtt.Publisher, delay time.Duration, snapshot func() []node.Peer) *PeerPublisher {
	p := &PeerPublisher{
		log:      log.With(logger.Fields{"module": "mqtt"}),
		pub:      pub,
		snapshot: snapshot,
	}
	p.debounce = debounce.New(delay, p.flush, debounce.WithLogger(log))
	return p
}

func (p *PeerPublisher) Publish(e node.Event) {
	switch e.Type {
	case node.EventPeerDiscovered, node.EventPeerSeen:
		p.debounce.Call(peersKey)
	}
}

// Close drops a pending publish and waits for a running one.
func (p *PeerPublisher) Close() {
	p.debounce.Terminate()
}

func (p *PeerPublisher) flush(string) {
	peers := p.snapshot()
	if err := p.pub.Publish(p.pub.Topic(peersKey), true, peers); err != nil {
		p.log.Errorf("publish peers: %v", err)
		return
	}
	p.log.Debugf("published %d peers", len(peers))
}
