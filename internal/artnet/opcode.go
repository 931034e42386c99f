package artnet

import "fmt"

// OpCode is the Art-Net operation code carried at offset 8 of every packet.
type OpCode uint16

const (
	OpPoll      OpCode = 0x2000
	OpPollReply OpCode = 0x2100
	OpDMX       OpCode = 0x5000
	// OpNzs is the non-zero start code variant of ArtDmx. It decodes to *DMX.
	OpNzs OpCode = 0x5100
)

// decoders maps an opcode to the decode path of its packet variant.
var decoders = map[OpCode]func([]byte) (Packet, error){
	OpPoll:      decodePoll,
	OpPollReply: decodePollReply,
	OpDMX:       decodeDMX,
	OpNzs:       decodeDMX,
}

// Known reports whether the opcode has a decoder.
func (o OpCode) Known() bool {
	_, ok := decoders[o]
	return ok
}

func (o OpCode) String() string {
	switch o {
	case OpPoll:
		return "OpPoll"
	case OpPollReply:
		return "OpPollReply"
	case OpDMX:
		return "OpDmx"
	case OpNzs:
		return "OpNzs"
	default:
		return fmt.Sprintf("OpCode(0x%04x)", uint16(o))
	}
}
