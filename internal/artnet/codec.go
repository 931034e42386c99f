// Package artnet implements the Art-Net wire format for the packets a node
// has to understand: ArtPoll, ArtPollReply and ArtDmx (including ArtNzs).
package artnet

import (
	"bytes"
	"encoding"
	"encoding/binary"
	"fmt"
)

const (
	// Port is the Art-Net UDP port (0x1936).
	Port = 6454
	// ProtocolVersion is the lowest protocol revision accepted and the one sent.
	ProtocolVersion uint16 = 14
	// MaxDMXLength is the number of slots in a DMX universe.
	MaxDMXLength = 512

	idLength     = 8
	headerLength = 10 // id + opcode

	offsetOpCode  = 8
	offsetVersion = 10
)

// ID is the packet identifier every Art-Net datagram starts with.
var ID = [idLength]byte{'A', 'r', 't', '-', 'N', 'e', 't', 0x00}

// Packet is one of *Poll, *PollReply or *DMX.
type Packet interface {
	encoding.BinaryMarshaler
	OpCode() OpCode
	packet()
}

// Decode validates the packet id and opcode of b and decodes it into the
// matching packet variant. b is not retained.
func Decode(b []byte) (Packet, error) {
	if len(b) < idLength {
		return nil, malformed(0, "packet too short: %d bytes", len(b))
	}
	if !HasID(b) {
		return nil, ErrBadMagic
	}
	if len(b) < headerLength {
		return nil, malformed(0, "packet too short for opcode: %d bytes", len(b))
	}

	op := OpCode(ReadUint16LSB(b, offsetOpCode))
	decode, ok := decoders[op]
	if !ok {
		return nil, fmt.Errorf("%w: 0x%04x", ErrUnknownOpCode, uint16(op))
	}
	return decode(b)
}

// Encode returns the wire representation of p.
func Encode(p Packet) ([]byte, error) {
	return p.MarshalBinary()
}

// HasID reports whether b starts with the Art-Net packet id.
func HasID(b []byte) bool {
	return len(b) >= idLength && bytes.Equal(b[:idLength], ID[:])
}

// ReadUint16MSB reads a 16 bit value stored high byte first.
func ReadUint16MSB(b []byte, offset int) uint16 {
	return binary.BigEndian.Uint16(b[offset : offset+2])
}

// ReadUint16LSB reads a 16 bit value stored low byte first.
func ReadUint16LSB(b []byte, offset int) uint16 {
	return binary.LittleEndian.Uint16(b[offset : offset+2])
}

// PutUint16MSB writes v high byte first.
func PutUint16MSB(b []byte, offset int, v uint16) {
	binary.BigEndian.PutUint16(b[offset:offset+2], v)
}

// PutUint16LSB writes v low byte first.
func PutUint16LSB(b []byte, offset int, v uint16) {
	binary.LittleEndian.PutUint16(b[offset:offset+2], v)
}

// ReadASCII reads a NUL terminated string from a field of width bytes.
func ReadASCII(b []byte, offset, width int) string {
	field := b[offset : offset+width]
	if i := bytes.IndexByte(field, 0); i >= 0 {
		field = field[:i]
	}
	return string(field)
}

// PutASCII writes s into a field of width bytes, leaving room for the
// terminating NUL. The rest of the field is zeroed.
func PutASCII(b []byte, offset, width int, s string) error {
	if len(s) > width-1 {
		return fmt.Errorf("%q is longer than %d characters", s, width-1)
	}
	for i := 0; i < len(s); i++ {
		if s[i] == 0 || s[i] > 0x7f {
			return fmt.Errorf("%q is not printable ascii", s)
		}
	}
	field := b[offset : offset+width]
	n := copy(field, s)
	for i := n; i < width; i++ {
		field[i] = 0
	}
	return nil
}

// newPacket allocates a buffer of n bytes with id and opcode filled in.
func newPacket(op OpCode, n int) []byte {
	b := make([]byte, n)
	copy(b, ID[:])
	PutUint16LSB(b, offsetOpCode, uint16(op))
	return b
}

func checkVersion(op OpCode, b []byte) error {
	if v := ReadUint16MSB(b, offsetVersion); v < ProtocolVersion {
		return malformed(op, "protocol version %d below %d", v, ProtocolVersion)
	}
	return nil
}
