package handlers

import (
	"bytes"
	"sync"

	"artnetnode/internal/clientmqtt"
	"artnetnode/internal/logger"
	"artnetnode/internal/node"
)

// Bridge publishes its DMX slice to MQTT whenever a value changes.
//
// Topics: <prefix>/<name> carries the clientmqtt.Payload,
// <prefix>/<name>/status carries "online" or "offline" (retained).
type Bridge struct {
	log     *logger.Log
	pub     clientmqtt.Publisher
	name    string
	address int

	mu     sync.Mutex
	last   []byte
	online bool
}

var _ node.Handler = (*Bridge)(nil)

// NewBridge returns a bridge for the slots starting at address.
func NewBridge(log logger.Logger, pub clientmqtt.Publisher, name string, address int) *Bridge {
	return &Bridge{
		log:     log.With(logger.Fields{"module": "mqtt", "handler": name}),
		pub:     pub,
		name:    name,
		address: address,
	}
}

func (b *Bridge) OnDMX(data []byte) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if !b.online {
		b.online = true
		b.status(clientmqtt.StatusOnline)
	}
	if b.last != nil && bytes.Equal(b.last, data) {
		return
	}
	b.last = data
	b.send(data)
}

// OnTimeout publishes a zeroed slice and the offline status.
func (b *Bridge) OnTimeout() {
	b.mu.Lock()
	defer b.mu.Unlock()

	width := len(b.last)
	if width == 0 {
		return
	}
	b.last = make([]byte, width)
	b.send(b.last)
	if b.online {
		b.online = false
		b.status(clientmqtt.StatusOffline)
	}
}

func (b *Bridge) OnShutdown() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.online = false
	b.status(clientmqtt.StatusOffline)
}

// Topic is where the DMX values are published.
func (b *Bridge) Topic() string {
	return b.pub.Topic(b.name)
}

func (b *Bridge) send(data []byte) {
	if err := b.pub.Publish(b.Topic(), false, clientmqtt.NewPayload(b.address, data)); err != nil {
		b.log.Errorf("publish dmx: %v", err)
	}
}

func (b *Bridge) status(s string) {
	if err := b.pub.Publish(b.pub.Topic(b.name, "status"), true, s); err != nil {
		b.log.Errorf("publish status: %v", err)
	}
}
