// Package node runs an Art-Net node: it announces itself, answers polls,
// tracks peers and hands DMX data for its net and sub-net to handlers.
package node

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"artnetnode/internal/artnet"
	"artnetnode/internal/logger"
	"github.com/google/uuid"
)

const (
	// readTimeout bounds one iteration of the receive loop.
	readTimeout    = 100 * time.Millisecond
	stopTimeout    = 5 * time.Second
	readBufferSize = 2048
)

// ErrAlreadyRunning is returned by Start on a node that is not stopped.
var ErrAlreadyRunning = errors.New("art-net node already started")

// State is the lifecycle state of a Node.
type State int32

const (
	Stopped State = iota
	Starting
	Running
	Stopping
)

func (s State) String() string {
	switch s {
	case Stopped:
		return "stopped"
	case Starting:
		return "starting"
	case Running:
		return "running"
	case Stopping:
		return "stopping"
	default:
		return fmt.Sprintf("State(%d)", int32(s))
	}
}

// Option configures a Node.
type Option func(*Node)

// WithEvents adds event sinks.
func WithEvents(sinks ...EventSink) Option {
	return func(n *Node) { n.sinks = append(n.sinks, sinks...) }
}

// WithResolver replaces ResolveInterface.
func WithResolver(resolve func(selector string) (Interface, error)) Option {
	return func(n *Node) { n.resolve = resolve }
}

// WithClock replaces time.Now for DMX timeout and peer bookkeeping.
func WithClock(now func() time.Time) Option {
	return func(n *Node) { n.now = now }
}

// Node is an Art-Net node.
type Node struct {
	cfg      Config
	id       uuid.UUID
	log      *logger.Log
	handlers *Registry
	peers    *PeerRegistry
	sinks    []EventSink
	resolve  func(string) (Interface, error)
	now      func() time.Time

	stopTimeout time.Duration

	mu     sync.Mutex
	state  State
	iface  Interface
	cancel context.CancelFunc
	done   chan struct{}
	// ctxEnded marks a loop that ended with the Start context. Stop is
	// still owed.
	ctxEnded bool

	lastDMX   atomic.Int64 // unix nanoseconds
	timedOut  atomic.Bool
	replies   atomic.Uint32
	received  atomic.Uint64
	dmxFrames atomic.Uint64
	ignored   atomic.Uint64
	invalid   atomic.Uint64
}

// New creates a stopped node. Handlers are registered on Handlers() before
// Start.
func New(cfg Config, log logger.Logger, opts ...Option) (*Node, error) {
	cfg = cfg.withDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("art-net node config: %w", err)
	}

	n := &Node{
		cfg:      cfg,
		id:       uuid.New(),
		log:      log.With(logger.Fields{"module": "art-net"}),
		handlers: NewRegistry(),
		peers:    NewPeerRegistry(),
		resolve:  ResolveInterface,
		now:      time.Now,

		stopTimeout: stopTimeout,
	}
	for _, opt := range opts {
		opt(n)
	}
	return n, nil
}

// Config returns the node configuration with defaults applied.
func (n *Node) Config() Config { return n.cfg }

// ID is a random identifier of this node instance.
func (n *Node) ID() string { return n.id.String() }

// Handlers returns the handler registry.
func (n *Node) Handlers() *Registry { return n.handlers }

// Peers returns the peer registry.
func (n *Node) Peers() *PeerRegistry { return n.peers }

// State returns the lifecycle state.
func (n *Node) State() State {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.state
}

// Start resolves the interface, binds the Art-Net port, announces the node
// and starts the receive loop. The loop also ends when ctx is cancelled,
// which moves the node to Stopping; Stop still has to be called to notify
// the handlers.
func (n *Node) Start(ctx context.Context) error {
	n.mu.Lock()
	if n.state != Stopped {
		n.mu.Unlock()
		return ErrAlreadyRunning
	}
	n.state = Starting
	n.mu.Unlock()

	iface, conn, err := n.open()
	if err != nil {
		n.setState(Stopped)
		return err
	}

	n.log.Infof("Configuring ArtNetNode with interface:%s, address:%s, network:%d, subnet:%d, universe:%d",
		iface.Name, iface.IP, n.cfg.Network, n.cfg.SubNet, n.cfg.Universe)

	loopCtx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})

	n.mu.Lock()
	n.iface = iface
	n.cancel = cancel
	n.done = done
	n.mu.Unlock()

	n.handlers.reopen()
	n.lastDMX.Store(n.now().UnixNano())
	n.timedOut.Store(false)

	// Controllers already on the network learn about the node right away.
	n.sendPollReply(iface)

	n.setState(Running)
	go n.run(loopCtx, conn, iface, done)

	n.log.Infof("ArtNetNode on %s:%d started", iface.IP, n.cfg.Port)
	n.publish(Event{Type: EventStarted})
	return nil
}

func (n *Node) open() (Interface, *net.UDPConn, error) {
	iface, err := n.resolve(n.cfg.Interface)
	if err != nil {
		return Interface{}, nil, err
	}
	if iface.IP.To4() == nil {
		return Interface{}, nil, &InterfaceError{Selector: n.cfg.Interface, Err: errNoIPv4}
	}

	conn, err := net.ListenUDP("udp4", &net.UDPAddr{IP: net.IPv4zero, Port: n.cfg.Port})
	if err != nil {
		return Interface{}, nil, fmt.Errorf("bind udp port %d: %w", n.cfg.Port, err)
	}
	return iface, conn, nil
}

// Stop ends the receive loop, waits for it up to five seconds and calls
// OnShutdown on every handler. It is a no-op unless the node is running, or
// stopping after its context ended, and may be called from any goroutine.
//
// A loop stuck in a handler past the wait keeps the node in Stopping until
// it returns; no handler is called after OnShutdown.
func (n *Node) Stop() {
	n.mu.Lock()
	if n.state != Running && !(n.state == Stopping && n.ctxEnded) {
		n.mu.Unlock()
		return
	}
	n.state = Stopping
	n.ctxEnded = false
	cancel, done, iface := n.cancel, n.done, n.iface
	n.mu.Unlock()

	n.log.Infof("Stopping ArtNetNode on %s", iface.IP)
	cancel()

	timer := time.NewTimer(n.stopTimeout)
	defer timer.Stop()
	select {
	case <-done:
	case <-timer.C:
		n.log.Errorf("receive loop did not stop within %s", n.stopTimeout)
		n.log.Info("Sending shutdown signal to handlers")
		n.handlers.NotifyShutdown()
		go func() {
			<-done
			n.finishStop(iface)
		}()
		return
	}

	n.log.Info("Sending shutdown signal to handlers")
	n.handlers.NotifyShutdown()
	n.finishStop(iface)
}

func (n *Node) finishStop(iface Interface) {
	n.mu.Lock()
	n.state = Stopped
	n.cancel = nil
	n.done = nil
	n.mu.Unlock()
	n.handlers.setFrozen(false)

	n.log.Infof("ArtNetNode on %s stopped", iface.IP)
	n.publish(Event{Type: EventStopped})
}

func (n *Node) setState(s State) {
	n.mu.Lock()
	n.state = s
	n.mu.Unlock()
}

func (n *Node) run(ctx context.Context, conn *net.UDPConn, iface Interface, done chan<- struct{}) {
	defer close(done)
	defer n.loopEnded()
	defer conn.Close()

	buf := make([]byte, readBufferSize)
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		_ = conn.SetReadDeadline(time.Now().Add(readTimeout))
		size, src, err := conn.ReadFromUDP(buf)
		if err != nil {
			var ne net.Error
			if errors.As(err, &ne) && ne.Timeout() {
				n.checkTimeout(n.now())
				continue
			}
			if ctx.Err() != nil {
				return
			}
			n.log.Errorf("receive: %v", err)
			select {
			case <-ctx.Done():
				return
			case <-time.After(readTimeout):
			}
			continue
		}

		n.handleDatagram(buf[:size], src, iface)
		if ctx.Err() != nil {
			return
		}
		n.checkTimeout(n.now())
	}
}

// loopEnded moves a running node to Stopping when the loop returned on its
// own, which only happens when the Start context ends.
func (n *Node) loopEnded() {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.state != Running {
		return
	}
	n.state = Stopping
	n.ctxEnded = true
	n.log.Warn("Start context ended, receive loop stopped")
}

func (n *Node) handleDatagram(b []byte, src *net.UDPAddr, iface Interface) {
	n.received.Add(1)

	p, err := artnet.Decode(b)
	if err != nil {
		n.invalid.Add(1)
		n.log.Warnf("Invalid packet received from %s: %v", src, err)
		n.log.Debugf("payload %s", hex.EncodeToString(b))
		return
	}

	switch p := p.(type) {
	case *artnet.Poll:
		n.log.Infof("Poll received from %s", src)
		n.sendPollReply(iface)
	case *artnet.PollReply:
		n.handlePollReply(p)
	case *artnet.DMX:
		n.handleDMX(p)
	default:
		n.log.Warnf("unhandled packet %T from %s", p, src)
	}
}

func (n *Node) handlePollReply(p *artnet.PollReply) {
	now := n.now()
	ip := net.IP(p.IPAddress[:])

	typ := EventPeerSeen
	if n.peers.Upsert(p.ShortName, ip, now) {
		typ = EventPeerDiscovered
		n.log.Infof("First poll reply seen from %q (%s)", p.ShortName, ip)
	}

	peer, _ := n.peers.Get(p.ShortName)
	n.publish(Event{Type: typ, Peer: &peer})
}

func (n *Node) handleDMX(p *artnet.DMX) {
	if p.Net != n.cfg.Network || p.SubNet != n.cfg.SubNet {
		n.ignored.Add(1)
		return
	}

	n.log.Tracef("DMX data received for %s, %d bytes", p, len(p.Data))
	n.dmxFrames.Add(1)
	n.lastDMX.Store(n.now().UnixNano())
	if n.timedOut.Swap(false) {
		n.log.Info("DMX data received again")
		n.publish(Event{Type: EventDMXResumed})
	}
	n.handlers.Dispatch(p.Universe, p.Data)
}

// checkTimeout signals the handlers once when no DMX frame for this node
// arrived for the configured timeout.
func (n *Node) checkTimeout(now time.Time) {
	if n.timedOut.Load() {
		return
	}
	last := time.Unix(0, n.lastDMX.Load())
	if now.Sub(last) < n.cfg.DMXTimeout {
		return
	}

	n.timedOut.Store(true)
	n.log.Warnf("No DMX data received for %s", n.cfg.DMXTimeout)
	n.publish(Event{Type: EventDMXTimeout})
	n.handlers.NotifyTimeout()
}

// sendPollReply broadcasts the node's ArtPollReply on the interface
// broadcast address and on 255.255.255.255 from a short-lived socket.
func (n *Node) sendPollReply(iface Interface) {
	count := n.replies.Add(1)
	b, err := pollReply(n.cfg, iface, count).MarshalBinary()
	if err != nil {
		n.log.Errorf("build poll reply: %v", err)
		return
	}

	conn, err := net.ListenUDP("udp4", nil)
	if err != nil {
		n.log.Errorf("open poll reply socket: %v", err)
		return
	}
	defer conn.Close()

	for _, dst := range []net.IP{iface.Broadcast, net.IPv4bcast} {
		if dst == nil {
			continue
		}
		if _, err := conn.WriteToUDP(b, &net.UDPAddr{IP: dst, Port: n.cfg.Port}); err != nil {
			n.log.Warnf("send poll reply to %s: %v", dst, err)
		}
	}
}

func (n *Node) publish(e Event) {
	e.Node = n.id.String()
	if e.Time.IsZero() {
		e.Time = n.now()
	}
	for _, s := range n.sinks {
		s.Publish(e)
	}
}
