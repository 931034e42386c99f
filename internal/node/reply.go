package node

import (
	"fmt"

	"artnetnode/internal/artnet"
)

const (
	oemCode  = 0x4242
	estaCode = 0x4242
)

// pollReply builds the node's ArtPollReply. count is the number of replies
// sent so far, reported in the node report field.
func pollReply(cfg Config, iface Interface, count uint32) *artnet.PollReply {
	r := &artnet.PollReply{
		VersionInfo:      0,
		NetSwitch:        cfg.Network,
		SubSwitch:        cfg.SubNet,
		Oem:              oemCode,
		ESTAManufacturer: estaCode,
		ShortName:        cfg.ShortName,
		LongName:         cfg.LongName,
		NodeReport:       fmt.Sprintf("#0001 [%04d] OK", count%10000),
		NumPorts:         1,
		Style:            artnet.StyleNode,
		Status2:          artnet.Status2PortAddr15,
	}
	r.PortTypes[0] = artnet.PortTypeInput | artnet.PortTypeOutput | artnet.PortTypeDMX512
	r.SwIn[0] = cfg.Universe
	copy(r.IPAddress[:], iface.IP.To4())
	copy(r.BindIP[:], iface.IP.To4())
	copy(r.MACAddress[:], iface.MAC)
	return r
}
