package handlers

import (
	"testing"

	"artnetnode/internal/clientmqtt"
	"artnetnode/internal/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBridge_PublishesChanges(t *testing.T) {
	pub := &fakePublisher{}
	b := NewBridge(logger.Discard(), pub, "dimmers", 9)

	b.OnDMX([]byte{1, 2})
	b.OnDMX([]byte{1, 2})
	b.OnDMX([]byte{1, 3})

	msgs := pub.messages()
	require.Len(t, msgs, 3)
	assert.Equal(t, published{"artnet/dimmers/status", true, clientmqtt.StatusOnline}, msgs[0])
	assert.Equal(t, published{"artnet/dimmers", false, clientmqtt.Payload{
		{Channel: 9, Value: 1}, {Channel: 10, Value: 2},
	}}, msgs[1])
	assert.Equal(t, clientmqtt.Payload{
		{Channel: 9, Value: 1}, {Channel: 10, Value: 3},
	}, msgs[2].payload)
	assert.Equal(t, "artnet/dimmers", b.Topic())
}

func TestBridge_Timeout(t *testing.T) {
	pub := &fakePublisher{}
	b := NewBridge(logger.Discard(), pub, "dimmers", 1)

	b.OnTimeout()
	assert.Empty(t, pub.messages())

	b.OnDMX([]byte{10, 20, 30})
	b.OnTimeout()

	msgs := pub.messages()
	require.Len(t, msgs, 4)
	assert.Equal(t, clientmqtt.Payload{
		{Channel: 1, Value: 0}, {Channel: 2, Value: 0}, {Channel: 3, Value: 0},
	}, msgs[2].payload)
	assert.Equal(t, published{"artnet/dimmers/status", true, clientmqtt.StatusOffline}, msgs[3])

	// resumed traffic goes online again
	b.OnDMX([]byte{10, 20, 30})
	msgs = pub.messages()
	require.Len(t, msgs, 6)
	assert.Equal(t, clientmqtt.StatusOnline, msgs[4].payload)
}

func TestBridge_Shutdown(t *testing.T) {
	pub := &fakePublisher{}
	b := NewBridge(logger.Discard(), pub, "dimmers", 1)

	b.OnShutdown()

	assert.Equal(t, []published{{"artnet/dimmers/status", true, clientmqtt.StatusOffline}}, pub.messages())
}
