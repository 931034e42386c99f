package artnet

// PollLength is the size of an ArtPoll packet.
const PollLength = 14

const (
	offsetTalkToMe = 12
	offsetPriority = 13
)

// TalkToMe flags.
const (
	TalkToMeReplyOnChange uint8 = 1 << 1
	TalkToMeDiagnostics   uint8 = 1 << 2
	TalkToMeUnicast       uint8 = 1 << 3
)

// Poll is an ArtPoll discovery request.
type Poll struct {
	TalkToMe uint8
	Priority uint8
}

func (*Poll) packet() {}

// OpCode implements Packet.
func (*Poll) OpCode() OpCode { return OpPoll }

// MarshalBinary implements encoding.BinaryMarshaler.
func (p *Poll) MarshalBinary() ([]byte, error) {
	b := newPacket(OpPoll, PollLength)
	PutUint16MSB(b, offsetVersion, ProtocolVersion)
	b[offsetTalkToMe] = p.TalkToMe
	b[offsetPriority] = p.Priority
	return b, nil
}

// UnmarshalBinary implements encoding.BinaryUnmarshaler.
func (p *Poll) UnmarshalBinary(b []byte) error {
	if len(b) != PollLength {
		return malformed(OpPoll, "length %d, want %d", len(b), PollLength)
	}
	if !HasID(b) {
		return ErrBadMagic
	}
	if op := OpCode(ReadUint16LSB(b, offsetOpCode)); op != OpPoll {
		return malformed(OpPoll, "unexpected opcode %s", op)
	}
	if err := checkVersion(OpPoll, b); err != nil {
		return err
	}
	p.TalkToMe = b[offsetTalkToMe]
	p.Priority = b[offsetPriority]
	return nil
}

func decodePoll(b []byte) (Packet, error) {
	p := &Poll{}
	if err := p.UnmarshalBinary(b); err != nil {
		return nil, err
	}
	return p, nil
}
