// Package console drives a go-artnet controller that sends test patterns
// to a node and logs the nodes it discovers.
package console

import (
	"context"
	"encoding/binary"
	"fmt"
	"os"
	"strings"
	"time"

	"artnetnode/internal/logger"
	"artnetnode/internal/node"
	"github.com/Haba1234/go-artnet"
)

const stepInterval = 500 * time.Millisecond

type Conf struct {
	Network  uint8
	SubNet   uint8
	Universe uint8
	Pattern  string
	Interval time.Duration // Interval - how often discovered nodes are logged.
	CIDR     string        // CIDR - network of the interface to send from.
}

// Console is an Art-Net controller sending a test pattern.
type Console struct {
	log         *logger.Log
	cfg         Conf
	sender      *artnet.Controller
	state       *State
	pattern     Pattern
	sendTrigger chan UniverseStateMap
	ctx         context.Context
	cancel      context.CancelFunc
	done        chan struct{}
}

// NewConsole resolves the interface in cfg.CIDR and prepares the controller.
func NewConsole(log logger.Logger, cfg Conf) (*Console, error) {
	pattern, err := ParsePattern(cfg.Pattern)
	if err != nil {
		return nil, err
	}
	if cfg.Network > 127 || cfg.SubNet > 15 || cfg.Universe > 15 {
		return nil, fmt.Errorf("address %d:%d:%d out of range", cfg.Network, cfg.SubNet, cfg.Universe)
	}
	if cfg.Interval <= 0 {
		cfg.Interval = 30 * time.Second
	}

	iface, err := node.ResolveInterface(cfg.CIDR)
	if err != nil {
		return nil, fmt.Errorf("failed to find the art-net IP: %w", err)
	}

	host, err := os.Hostname()
	if err != nil {
		return nil, fmt.Errorf("failed to resolve hostname: %w", err)
	}
	host = strings.ToLower(strings.Split(host, ".")[0])

	l := log.With(logger.Fields{"module": "console"})
	l.Infof("Using ArtNet IP %s and hostname %s", iface.IP.String(), host)

	senderLogger := artnet.NewDefaultLogger("info")

	return &Console{
		log:         l,
		cfg:         cfg,
		sender:      artnet.NewController(host, iface.IP, senderLogger, artnet.MaxFPS(1)),
		state:       NewState(),
		pattern:     pattern,
		sendTrigger: make(chan UniverseStateMap, 100),
	}, nil
}

// Start the controller and the pattern.
func (c *Console) Start(ctx context.Context) error {
	if err := c.sender.Start(); err != nil {
		return fmt.Errorf("failed to start Controller: %w", err)
	}

	c.ctx, c.cancel = context.WithCancel(ctx)
	c.done = make(chan struct{})
	go c.sendBackground()
	go c.debugDevices()
	go c.runPattern()
	return nil
}

// Stop blacks out the target universe and stops the controller.
func (c *Console) Stop() {
	if c.cancel == nil {
		return
	}
	c.cancel()
	<-c.done

	u := PortAddress(c.cfg.Network, c.cfg.SubNet, c.cfg.Universe)
	c.sender.SendDMXToAddress(Universe{}, UniverseToAddress(u))
	c.sender.Stop()
}

// PortAddress packs net, sub-net and universe into the 15-bit port-address.
func PortAddress(network, subnet, universe uint8) uint16 {
	return uint16(network&0x7f)<<8 | uint16(subnet&0x0f)<<4 | uint16(universe&0x0f)
}

// UniverseToAddress converts a port-address to a go-artnet address.
// universe: high byte - Net, low byte - SubUni.
func UniverseToAddress(universe uint16) artnet.Address {
	v := make([]uint8, 2)
	binary.BigEndian.PutUint16(v, universe)

	return artnet.Address{
		Net:    v[0],
		SubUni: v[1],
	}
}

func (c *Console) triggerSend() {
	select {
	case c.sendTrigger <- c.state.Get():
	default:
		c.log.Warn("send queue full, frame dropped")
	}
}

func (c *Console) sendBackground() {
	for {
		select {
		case <-c.ctx.Done():
			return
		case data := <-c.sendTrigger:
			for u, dmx := range data {
				c.log.Tracef("DMX. Sending universe %v", u)
				c.sender.SendDMXToAddress(dmx, UniverseToAddress(u))
			}
		}
	}
}

func (c *Console) runPattern() {
	defer close(c.done)

	u := PortAddress(c.cfg.Network, c.cfg.SubNet, c.cfg.Universe)
	c.log.Infof("sending %q to %d:%d:%d", c.cfg.Pattern, c.cfg.Network, c.cfg.SubNet, c.cfg.Universe)

	t := time.NewTicker(stepInterval)
	defer t.Stop()
	for step := 0; ; step++ {
		c.state.SetUniverse(u, c.pattern(step))
		c.triggerSend()

		select {
		case <-c.ctx.Done():
			return
		case <-t.C:
		}
	}
}

// NodeToString returns a string representation of the given node.
func NodeToString(n *artnet.ControlledNode) (string, NodeInfo) {
	var inputs, outputs []string
	info := NodeInfo{Name: n.Node.Name}

	for _, p := range n.Node.InputPorts {
		inputs = append(inputs, fmt.Sprintf("%s: %s", p.Address.String(), p.Type.String()))
	}
	for _, p := range n.Node.OutputPorts {
		outputs = append(outputs, fmt.Sprintf("%s: %s", p.Address.String(), p.Type.String()))
		info.Outputs = append(info.Outputs, uint16(p.Address.Integer()))
	}

	return fmt.Sprintf(
		"IP=%s name=%q type=%q manufacturer=%q desc=%q inputs=%q outputs=%q",
		n.UDPAddress.String(), n.Node.Name, n.Node.Type,
		n.Node.Manufacturer, n.Node.Description,
		strings.Join(inputs, "; "), strings.Join(outputs, "; "),
	), info
}

func (c *Console) debugDevices() {
	target := PortAddress(c.cfg.Network, c.cfg.SubNet, c.cfg.Universe)

	t := time.NewTicker(c.cfg.Interval)
	defer t.Stop()
	for {
		select {
		case <-c.ctx.Done():
			return
		case <-t.C:
		}

		nodes := c.sender.Nodes
		c.log.Infof("Currently %d devices are registered", len(nodes))
		infos := make([]NodeInfo, 0, len(nodes))
		for _, n := range nodes {
			s, info := NodeToString(n)
			c.log.Info(s)
			infos = append(infos, info)
		}
		if names := Receivers(infos, target); len(names) == 0 {
			c.log.Warnf("no registered device outputs %d:%d:%d", c.cfg.Network, c.cfg.SubNet, c.cfg.Universe)
		} else {
			c.log.Infof("%d:%d:%d is output by %s", c.cfg.Network, c.cfg.SubNet, c.cfg.Universe, strings.Join(names, ", "))
		}
	}
}

// Receivers returns the names of the nodes with an output on universe.
func Receivers(nodes []NodeInfo, universe uint16) []string {
	var names []string
	for _, n := range nodes {
		if n.Serves(universe) {
			names = append(names, n.Name)
		}
	}
	return names
}
