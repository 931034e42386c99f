package artnet

import (
	"errors"
	"fmt"
)

var (
	// ErrBadMagic is returned when a datagram does not start with "Art-Net\0".
	ErrBadMagic = errors.New("art-net: bad packet id")
	// ErrUnknownOpCode is returned for opcodes without a decoder.
	ErrUnknownOpCode = errors.New("art-net: unknown opcode")
	// ErrMalformed matches every *MalformedError.
	ErrMalformed = errors.New("art-net: malformed packet")
)

// MalformedError describes a length, version or field violation.
type MalformedError struct {
	OpCode OpCode
	Reason string
}

func (e *MalformedError) Error() string {
	if e.OpCode == 0 {
		return fmt.Sprintf("art-net: malformed packet: %s", e.Reason)
	}
	return fmt.Sprintf("art-net: malformed %s: %s", e.OpCode, e.Reason)
}

func (e *MalformedError) Is(target error) bool {
	return target == ErrMalformed
}

func malformed(op OpCode, format string, args ...interface{}) error {
	return &MalformedError{OpCode: op, Reason: fmt.Sprintf(format, args...)}
}
