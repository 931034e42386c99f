package node

import (
	"fmt"
	"time"

	"artnetnode/internal/artnet"
)

const (
	defaultDMXTimeout = 10 * time.Second
	defaultName       = "ArtNetNode"
)

// Config is the node identity and addressing. The node keeps its own copy;
// changing a Config after New has no effect.
type Config struct {
	Network  uint8 // 0-127
	SubNet   uint8 // 0-15
	Universe uint8 // 0-15, advertised on the single input port

	// Interface selects the network interface: a name ("eth0"), a CIDR
	// ("192.168.6.0/24") or empty for the first usable interface.
	Interface string

	Port       int
	DMXTimeout time.Duration
	ShortName  string
	LongName   string
}

func (c Config) withDefaults() Config {
	if c.Port == 0 {
		c.Port = artnet.Port
	}
	if c.DMXTimeout == 0 {
		c.DMXTimeout = defaultDMXTimeout
	}
	if c.ShortName == "" {
		c.ShortName = defaultName
	}
	if c.LongName == "" {
		c.LongName = c.ShortName
	}
	return c
}

// Validate checks the addressing ranges and name lengths.
func (c Config) Validate() error {
	switch {
	case c.Network > 127:
		return fmt.Errorf("network %d out of range 0-127", c.Network)
	case c.SubNet > 15:
		return fmt.Errorf("sub-net %d out of range 0-15", c.SubNet)
	case c.Universe > 15:
		return fmt.Errorf("universe %d out of range 0-15", c.Universe)
	case c.Port < 0 || c.Port > 65535:
		return fmt.Errorf("port %d out of range", c.Port)
	case c.DMXTimeout < 0:
		return fmt.Errorf("dmx timeout %s is negative", c.DMXTimeout)
	case len(c.ShortName) > 17:
		return fmt.Errorf("short name %q longer than 17 characters", c.ShortName)
	case len(c.LongName) > 63:
		return fmt.Errorf("long name %q longer than 63 characters", c.LongName)
	case !printableASCII(c.ShortName):
		return fmt.Errorf("short name %q is not printable ascii", c.ShortName)
	case !printableASCII(c.LongName):
		return fmt.Errorf("long name %q is not printable ascii", c.LongName)
	}
	return nil
}

// printableASCII reports whether s fits the fixed-width name fields of a
// poll reply byte for byte.
func printableASCII(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] < 0x20 || s[i] > 0x7e {
			return false
		}
	}
	return true
}
