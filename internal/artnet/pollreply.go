package artnet

import "fmt"

// PollReplyLength is the size of an ArtPollReply packet.
const PollReplyLength = 239

const (
	offsetIPAddress   = 10
	offsetUDPPort     = 14
	offsetVersionInfo = 16
	offsetNetSwitch   = 18
	offsetSubSwitch   = 19
	offsetOem         = 20
	offsetUBEAVersion = 22
	offsetStatus1     = 23
	offsetESTA        = 24
	offsetShortName   = 26
	offsetLongName    = 44
	offsetNodeReport  = 108
	offsetNumPorts    = 172
	offsetPortTypes   = 174
	offsetGoodInput   = 178
	offsetGoodOutput  = 182
	offsetSwIn        = 186
	offsetSwOut       = 190
	offsetSwVideo     = 194
	offsetSwMacro     = 195
	offsetSwRemote    = 196
	offsetStyle       = 200
	offsetMACAddress  = 201
	offsetBindIP      = 207
	offsetBindIndex   = 211
	offsetStatus2     = 212

	shortNameWidth  = 18
	longNameWidth   = 64
	nodeReportWidth = 64

	// MaxPorts is the number of ports a single ArtPollReply describes.
	MaxPorts = 4
)

// Port type bits.
const (
	PortTypeOutput uint8 = 1 << 7
	PortTypeInput  uint8 = 1 << 6
	PortTypeDMX512 uint8 = 0x00
)

// Style codes.
const (
	StyleNode       uint8 = 0x00
	StyleController uint8 = 0x01
	StyleMedia      uint8 = 0x02
	StyleRoute      uint8 = 0x03
	StyleBackup     uint8 = 0x04
	StyleConfig     uint8 = 0x05
	StyleVisual     uint8 = 0x06
)

// Status2 bits.
const (
	Status2WebConfig   uint8 = 1 << 0
	Status2DHCP        uint8 = 1 << 1
	Status2DHCPCapable uint8 = 1 << 2
	Status2PortAddr15  uint8 = 1 << 3
)

// PollReply is an ArtPollReply discovery response. The UDP port field is
// always 0x1936 on the wire and is not represented.
type PollReply struct {
	IPAddress        [4]byte
	VersionInfo      uint16
	NetSwitch        uint8
	SubSwitch        uint8
	Oem              uint16
	UBEAVersion      uint8
	Status1          uint8
	ESTAManufacturer uint16
	ShortName        string
	LongName         string
	NodeReport       string
	NumPorts         uint16
	PortTypes        [MaxPorts]uint8
	GoodInput        [MaxPorts]uint8
	GoodOutput       [MaxPorts]uint8
	SwIn             [MaxPorts]uint8
	SwOut            [MaxPorts]uint8
	SwVideo          uint8
	SwMacro          uint8
	SwRemote         uint8
	Style            uint8
	MACAddress       [6]byte
	BindIP           [4]byte
	BindIndex        uint8
	Status2          uint8
}

func (*PollReply) packet() {}

// OpCode implements Packet.
func (*PollReply) OpCode() OpCode { return OpPollReply }

func (r *PollReply) validate() error {
	if r.NetSwitch > 0x7f {
		return fmt.Errorf("art-net: net switch %d out of range 0-127", r.NetSwitch)
	}
	if r.SubSwitch > 0x0f {
		return fmt.Errorf("art-net: sub switch %d out of range 0-15", r.SubSwitch)
	}
	if r.NumPorts > MaxPorts {
		return fmt.Errorf("art-net: %d ports, max %d", r.NumPorts, MaxPorts)
	}
	for i := 0; i < MaxPorts; i++ {
		if r.SwIn[i] > 0x0f || r.SwOut[i] > 0x0f {
			return fmt.Errorf("art-net: port %d universe out of range 0-15", i)
		}
	}
	return nil
}

// MarshalBinary implements encoding.BinaryMarshaler.
func (r *PollReply) MarshalBinary() ([]byte, error) {
	if err := r.validate(); err != nil {
		return nil, err
	}

	b := newPacket(OpPollReply, PollReplyLength)
	copy(b[offsetIPAddress:], r.IPAddress[:])
	PutUint16LSB(b, offsetUDPPort, Port)
	PutUint16MSB(b, offsetVersionInfo, r.VersionInfo)
	b[offsetNetSwitch] = r.NetSwitch
	b[offsetSubSwitch] = r.SubSwitch
	PutUint16MSB(b, offsetOem, r.Oem)
	b[offsetUBEAVersion] = r.UBEAVersion
	b[offsetStatus1] = r.Status1
	PutUint16LSB(b, offsetESTA, r.ESTAManufacturer)

	if err := PutASCII(b, offsetShortName, shortNameWidth, r.ShortName); err != nil {
		return nil, fmt.Errorf("art-net: short name: %w", err)
	}
	if err := PutASCII(b, offsetLongName, longNameWidth, r.LongName); err != nil {
		return nil, fmt.Errorf("art-net: long name: %w", err)
	}
	if err := PutASCII(b, offsetNodeReport, nodeReportWidth, r.NodeReport); err != nil {
		return nil, fmt.Errorf("art-net: node report: %w", err)
	}

	PutUint16MSB(b, offsetNumPorts, r.NumPorts)
	copy(b[offsetPortTypes:], r.PortTypes[:])
	copy(b[offsetGoodInput:], r.GoodInput[:])
	copy(b[offsetGoodOutput:], r.GoodOutput[:])
	copy(b[offsetSwIn:], r.SwIn[:])
	copy(b[offsetSwOut:], r.SwOut[:])
	b[offsetSwVideo] = r.SwVideo
	b[offsetSwMacro] = r.SwMacro
	b[offsetSwRemote] = r.SwRemote
	b[offsetStyle] = r.Style
	copy(b[offsetMACAddress:], r.MACAddress[:])
	copy(b[offsetBindIP:], r.BindIP[:])
	b[offsetBindIndex] = r.BindIndex
	b[offsetStatus2] = r.Status2
	return b, nil
}

// UnmarshalBinary implements encoding.BinaryUnmarshaler.
func (r *PollReply) UnmarshalBinary(b []byte) error {
	if len(b) != PollReplyLength {
		return malformed(OpPollReply, "length %d, want %d", len(b), PollReplyLength)
	}
	if !HasID(b) {
		return ErrBadMagic
	}
	if op := OpCode(ReadUint16LSB(b, offsetOpCode)); op != OpPollReply {
		return malformed(OpPollReply, "unexpected opcode %s", op)
	}

	*r = PollReply{
		VersionInfo:      ReadUint16MSB(b, offsetVersionInfo),
		NetSwitch:        b[offsetNetSwitch] & 0x7f,
		SubSwitch:        b[offsetSubSwitch] & 0x0f,
		Oem:              ReadUint16MSB(b, offsetOem),
		UBEAVersion:      b[offsetUBEAVersion],
		Status1:          b[offsetStatus1],
		ESTAManufacturer: ReadUint16LSB(b, offsetESTA),
		ShortName:        ReadASCII(b, offsetShortName, shortNameWidth),
		LongName:         ReadASCII(b, offsetLongName, longNameWidth),
		NodeReport:       ReadASCII(b, offsetNodeReport, nodeReportWidth),
		NumPorts:         ReadUint16MSB(b, offsetNumPorts),
		SwVideo:          b[offsetSwVideo],
		SwMacro:          b[offsetSwMacro],
		SwRemote:         b[offsetSwRemote],
		Style:            b[offsetStyle],
		BindIndex:        b[offsetBindIndex],
		Status2:          b[offsetStatus2],
	}
	copy(r.IPAddress[:], b[offsetIPAddress:])
	copy(r.PortTypes[:], b[offsetPortTypes:])
	copy(r.GoodInput[:], b[offsetGoodInput:])
	copy(r.GoodOutput[:], b[offsetGoodOutput:])
	for i := 0; i < MaxPorts; i++ {
		r.SwIn[i] = b[offsetSwIn+i] & 0x0f
		r.SwOut[i] = b[offsetSwOut+i] & 0x0f
	}
	copy(r.MACAddress[:], b[offsetMACAddress:])
	copy(r.BindIP[:], b[offsetBindIP:])
	return nil
}

func decodePollReply(b []byte) (Packet, error) {
	r := &PollReply{}
	if err := r.UnmarshalBinary(b); err != nil {
		return nil, err
	}
	return r, nil
}
