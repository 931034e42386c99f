package artnet

import "fmt"

// MinDMXLength is the smallest ArtDmx datagram accepted.
const MinDMXLength = 20

const (
	offsetSequence = 12
	offsetPhysical = 13
	offsetSubUni   = 14
	offsetNet      = 15
	offsetLength   = 16
	offsetData     = 18
)

// DMX is an ArtDmx (or ArtNzs) data frame.
//
// The 15 bit Port-Address is split over two bytes: offset 14 holds the
// sub-net in its high nibble and the universe in its low nibble, offset 15
// holds the 7 bit net.
type DMX struct {
	// Op is OpNzs for ArtNzs frames. The zero value and OpDMX encode as
	// ArtDmx.
	Op       OpCode
	Sequence uint8
	Physical uint8
	Net      uint8
	SubNet   uint8
	Universe uint8
	Data     []byte
}

func (*DMX) packet() {}

// OpCode implements Packet.
func (d *DMX) OpCode() OpCode {
	if d.Op == OpNzs {
		return OpNzs
	}
	return OpDMX
}

// PortAddress returns the 15 bit Port-Address of the frame.
func (d *DMX) PortAddress() uint16 {
	return uint16(d.Net&0x7f)<<8 | uint16(d.SubNet&0x0f)<<4 | uint16(d.Universe&0x0f)
}

// String formats the address as net:subnet:universe.
func (d *DMX) String() string {
	return fmt.Sprintf("%d:%d:%d", d.Net, d.SubNet, d.Universe)
}

// MarshalBinary implements encoding.BinaryMarshaler. Frames with fewer than
// two slots are padded to the minimum datagram size; the length field keeps
// the real slot count.
func (d *DMX) MarshalBinary() ([]byte, error) {
	switch {
	case d.Op != 0 && d.Op != OpDMX && d.Op != OpNzs:
		return nil, fmt.Errorf("art-net: %s is not a dmx opcode", d.Op)
	case d.Net > 0x7f:
		return nil, fmt.Errorf("art-net: net %d out of range 0-127", d.Net)
	case d.SubNet > 0x0f:
		return nil, fmt.Errorf("art-net: sub-net %d out of range 0-15", d.SubNet)
	case d.Universe > 0x0f:
		return nil, fmt.Errorf("art-net: universe %d out of range 0-15", d.Universe)
	case len(d.Data) > MaxDMXLength:
		return nil, fmt.Errorf("art-net: %d dmx slots, max %d", len(d.Data), MaxDMXLength)
	}

	n := offsetData + len(d.Data)
	if n < MinDMXLength {
		n = MinDMXLength
	}
	b := newPacket(d.OpCode(), n)
	PutUint16MSB(b, offsetVersion, ProtocolVersion)
	b[offsetSequence] = d.Sequence
	b[offsetPhysical] = d.Physical
	b[offsetSubUni] = d.SubNet<<4 | d.Universe
	b[offsetNet] = d.Net
	PutUint16MSB(b, offsetLength, uint16(len(d.Data)))
	copy(b[offsetData:], d.Data)
	return b, nil
}

// UnmarshalBinary implements encoding.BinaryUnmarshaler. Data is copied out
// of b.
func (d *DMX) UnmarshalBinary(b []byte) error {
	if len(b) < MinDMXLength {
		return malformed(OpDMX, "length %d, want at least %d", len(b), MinDMXLength)
	}
	if !HasID(b) {
		return ErrBadMagic
	}
	op := OpCode(ReadUint16LSB(b, offsetOpCode))
	if op != OpDMX && op != OpNzs {
		return malformed(OpDMX, "unexpected opcode %s", op)
	}
	if err := checkVersion(op, b); err != nil {
		return err
	}

	length := int(ReadUint16MSB(b, offsetLength))
	if length > MaxDMXLength {
		return malformed(op, "data length %d exceeds %d", length, MaxDMXLength)
	}
	if offsetData+length > len(b) {
		return malformed(op, "data length %d exceeds datagram (%d bytes)", length, len(b))
	}

	d.Op = 0
	if op == OpNzs {
		d.Op = OpNzs
	}
	d.Sequence = b[offsetSequence]
	d.Physical = b[offsetPhysical]
	d.SubNet = b[offsetSubUni] >> 4
	d.Universe = b[offsetSubUni] & 0x0f
	d.Net = b[offsetNet] & 0x7f
	d.Data = make([]byte, length)
	copy(d.Data, b[offsetData:offsetData+length])
	return nil
}

func decodeDMX(b []byte) (Packet, error) {
	d := &DMX{}
	if err := d.UnmarshalBinary(b); err != nil {
		return nil, err
	}
	return d, nil
}
