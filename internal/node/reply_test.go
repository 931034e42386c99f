package node

import (
	"testing"

	"artnetnode/internal/artnet"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPollReply(t *testing.T) {
	iface, err := loopback("")
	require.NoError(t, err)
	cfg := Config{Network: 3, SubNet: 4, Universe: 5, ShortName: "relay", LongName: "relay node"}.withDefaults()

	r := pollReply(cfg, iface, 12)

	assert.Equal(t, [4]byte{127, 0, 0, 1}, r.IPAddress)
	assert.Equal(t, uint8(3), r.NetSwitch)
	assert.Equal(t, uint8(4), r.SubSwitch)
	assert.Equal(t, uint8(5), r.SwIn[0])
	assert.Equal(t, uint16(1), r.NumPorts)
	assert.Equal(t, "relay", r.ShortName)
	assert.Equal(t, "relay node", r.LongName)
	assert.Equal(t, "#0001 [0012] OK", r.NodeReport)
	assert.Equal(t, [6]byte{0x02, 0, 0, 0, 0, 1}, r.MACAddress)
	assert.Equal(t, artnet.PortTypeInput|artnet.PortTypeOutput, r.PortTypes[0])

	b, err := r.MarshalBinary()
	require.NoError(t, err)
	assert.Len(t, b, artnet.PollReplyLength)
}
