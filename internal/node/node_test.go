package node

import (
	"context"
	"errors"
	"net"
	"sync"
	"testing"
	"time"

	"artnetnode/internal/artnet"
	"artnetnode/internal/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type eventLog struct {
	mu     sync.Mutex
	events []Event
}

func (l *eventLog) Publish(e Event) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.events = append(l.events, e)
}

func (l *eventLog) count(typ EventType) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	n := 0
	for _, e := range l.events {
		if e.Type == typ {
			n++
		}
	}
	return n
}

func loopback(string) (Interface, error) {
	return Interface{
		Name:      "lo",
		IP:        net.IPv4(127, 0, 0, 1).To4(),
		Broadcast: net.IPv4(127, 255, 255, 255).To4(),
		MAC:       net.HardwareAddr{0x02, 0, 0, 0, 0, 1},
	}, nil
}

// getFreePort returns an available UDP port by letting the OS assign one.
func getFreePort(t *testing.T) int {
	t.Helper()
	conn, err := net.ListenUDP("udp4", &net.UDPAddr{IP: net.IPv4(127, 0, 0, 1)})
	require.NoError(t, err)
	defer conn.Close()
	return conn.LocalAddr().(*net.UDPAddr).Port
}

func send(t *testing.T, port int, p artnet.Packet) {
	t.Helper()
	b, err := artnet.Encode(p)
	require.NoError(t, err)
	conn, err := net.DialUDP("udp4", nil, &net.UDPAddr{IP: net.IPv4(127, 0, 0, 1), Port: port})
	require.NoError(t, err)
	defer conn.Close()
	_, err = conn.Write(b)
	require.NoError(t, err)
}

func newTestNode(t *testing.T, cfg Config, opts ...Option) *Node {
	t.Helper()
	n, err := New(cfg, logger.Discard(), append([]Option{WithResolver(loopback)}, opts...)...)
	require.NoError(t, err)
	return n
}

func TestNew_InvalidConfig(t *testing.T) {
	_, err := New(Config{Network: 128}, logger.Discard())
	assert.Error(t, err)

	_, err = New(Config{ShortName: "a very long short name"}, logger.Discard())
	assert.Error(t, err)

	_, err = New(Config{ShortName: "bühne"}, logger.Discard())
	assert.ErrorContains(t, err, "not printable ascii")

	_, err = New(Config{ShortName: "stage", LongName: "stage\nleft"}, logger.Discard())
	assert.ErrorContains(t, err, "not printable ascii")
}

func TestNew_Defaults(t *testing.T) {
	n, err := New(Config{}, logger.Discard())
	require.NoError(t, err)

	cfg := n.Config()
	assert.Equal(t, artnet.Port, cfg.Port)
	assert.Equal(t, 10*time.Second, cfg.DMXTimeout)
	assert.Equal(t, "ArtNetNode", cfg.ShortName)
	assert.Equal(t, Stopped, n.State())
	assert.NotEmpty(t, n.ID())
}

func TestNode_DMXFilter(t *testing.T) {
	n := newTestNode(t, Config{Network: 1, SubNet: 2})
	rec := &recorder{}
	require.NoError(t, n.Handlers().Register(Descriptor{Name: "rec", Universe: 3, Address: 1, Width: 2}, rec))

	n.handleDMX(&artnet.DMX{Net: 1, SubNet: 2, Universe: 3, Data: []byte{5, 6, 7}})
	n.handleDMX(&artnet.DMX{Net: 0, SubNet: 2, Universe: 3, Data: []byte{1, 1}})
	n.handleDMX(&artnet.DMX{Net: 1, SubNet: 0, Universe: 3, Data: []byte{1, 1}})

	frames, _, _ := rec.counts()
	assert.Equal(t, 1, frames)
	assert.Equal(t, []byte{5, 6}, rec.last())

	st := n.Status()
	assert.Equal(t, uint64(1), st.DMXFrames)
	assert.Equal(t, uint64(2), st.Ignored)
}

func TestNode_TimeoutOncePerEpisode(t *testing.T) {
	clock := &fakeClock{now: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
	events := &eventLog{}
	n := newTestNode(t, Config{}, WithClock(clock.Now), WithEvents(events))
	rec := &recorder{}
	require.NoError(t, n.Handlers().Register(Descriptor{Name: "rec", Address: 1, Width: 1}, rec))
	n.lastDMX.Store(clock.Now().UnixNano())

	clock.Advance(9 * time.Second)
	n.checkTimeout(clock.Now())
	_, timeouts, _ := rec.counts()
	assert.Zero(t, timeouts)

	clock.Advance(time.Second)
	n.checkTimeout(clock.Now())
	clock.Advance(5 * time.Second)
	n.checkTimeout(clock.Now())
	_, timeouts, _ = rec.counts()
	assert.Equal(t, 1, timeouts, "one notification per silence episode")
	assert.True(t, n.Status().DMXTimedOut)

	n.handleDMX(&artnet.DMX{Data: []byte{1, 2}})
	assert.False(t, n.Status().DMXTimedOut)
	assert.Equal(t, 1, events.count(EventDMXResumed))

	clock.Advance(10 * time.Second)
	n.checkTimeout(clock.Now())
	_, timeouts, _ = rec.counts()
	assert.Equal(t, 2, timeouts, "a new episode fires again")
	assert.Equal(t, 2, events.count(EventDMXTimeout))
}

func TestNode_PollReplyUpdatesPeers(t *testing.T) {
	events := &eventLog{}
	n := newTestNode(t, Config{}, WithEvents(events))

	reply := &artnet.PollReply{ShortName: "desk", IPAddress: [4]byte{10, 0, 0, 2}}
	n.handlePollReply(reply)
	n.handlePollReply(reply)

	assert.Equal(t, 1, n.Peers().Len())
	assert.Equal(t, 1, events.count(EventPeerDiscovered))
	assert.Equal(t, 1, events.count(EventPeerSeen))

	p, ok := n.Peers().Get("desk")
	require.True(t, ok)
	assert.Equal(t, "10.0.0.2", p.Address.String())
}

func TestNode_StartFailsOnInterface(t *testing.T) {
	resolveErr := &InterfaceError{Selector: "eth9", Err: errNoIPv4}
	n, err := New(Config{Interface: "eth9"}, logger.Discard(),
		WithResolver(func(string) (Interface, error) { return Interface{}, resolveErr }))
	require.NoError(t, err)

	err = n.Start(context.Background())
	var ie *InterfaceError
	assert.True(t, errors.As(err, &ie))
	assert.Equal(t, Stopped, n.State())
}

func TestNode_StartFailsOnBind(t *testing.T) {
	busy, err := net.ListenUDP("udp4", &net.UDPAddr{IP: net.IPv4zero})
	require.NoError(t, err)
	defer busy.Close()

	n := newTestNode(t, Config{Port: busy.LocalAddr().(*net.UDPAddr).Port})
	assert.Error(t, n.Start(context.Background()))
	assert.Equal(t, Stopped, n.State())
}

func TestNode_Lifecycle(t *testing.T) {
	port := getFreePort(t)
	events := &eventLog{}
	n := newTestNode(t, Config{Network: 0, SubNet: 1, Universe: 2, Port: port, DMXTimeout: time.Hour},
		WithEvents(events))

	rec := &recorder{}
	require.NoError(t, n.Handlers().Register(Descriptor{Name: "rec", Universe: 2, Address: 3, Width: 2}, rec))

	require.NoError(t, n.Start(context.Background()))
	defer n.Stop()
	assert.Equal(t, Running, n.State())
	assert.ErrorIs(t, n.Start(context.Background()), ErrAlreadyRunning)
	assert.ErrorIs(t, n.Handlers().Register(Descriptor{Name: "late", Address: 1, Width: 1}, NopHandler{}), ErrRegistryFrozen)

	send(t, port, &artnet.DMX{SubNet: 1, Universe: 2, Data: ramp()})
	require.Eventually(t, func() bool {
		frames, _, _ := rec.counts()
		return frames == 1
	}, 2*time.Second, 10*time.Millisecond)
	assert.Equal(t, []byte{2, 3}, rec.last())

	send(t, port, &artnet.PollReply{ShortName: "console"})
	require.Eventually(t, func() bool {
		_, ok := n.Peers().Get("console")
		return ok
	}, 2*time.Second, 10*time.Millisecond)

	sent := n.Status().PollReplies
	send(t, port, &artnet.Poll{})
	require.Eventually(t, func() bool {
		return n.Status().PollReplies > sent
	}, 2*time.Second, 10*time.Millisecond)

	invalid := n.Status().Invalid
	conn, err := net.DialUDP("udp4", nil, &net.UDPAddr{IP: net.IPv4(127, 0, 0, 1), Port: port})
	require.NoError(t, err)
	_, err = conn.Write([]byte("not art-net at all"))
	require.NoError(t, err)
	conn.Close()
	require.Eventually(t, func() bool {
		return n.Status().Invalid > invalid
	}, 2*time.Second, 10*time.Millisecond)
	assert.Equal(t, Running, n.State(), "bad datagrams do not stop the loop")

	n.Stop()
	n.Stop()
	_, _, shutdowns := rec.counts()
	assert.Equal(t, 1, shutdowns)
	assert.Equal(t, Stopped, n.State())
	assert.Equal(t, 1, events.count(EventStarted))
	assert.Equal(t, 1, events.count(EventStopped))
}

func TestNode_TimeoutWhileRunning(t *testing.T) {
	port := getFreePort(t)
	n := newTestNode(t, Config{Port: port, DMXTimeout: 200 * time.Millisecond})
	rec := &recorder{}
	require.NoError(t, n.Handlers().Register(Descriptor{Name: "rec", Address: 1, Width: 1}, rec))

	require.NoError(t, n.Start(context.Background()))
	defer n.Stop()

	timeouts := func() int {
		_, c, _ := rec.counts()
		return c
	}
	require.Eventually(t, func() bool { return timeouts() == 1 }, 2*time.Second, 10*time.Millisecond)
	time.Sleep(400 * time.Millisecond)
	assert.Equal(t, 1, timeouts())

	send(t, port, &artnet.DMX{Data: []byte{1, 2}})
	require.Eventually(t, func() bool { return timeouts() == 2 }, 2*time.Second, 10*time.Millisecond)
}

func TestNode_StopFromOtherGoroutines(t *testing.T) {
	n := newTestNode(t, Config{Port: getFreePort(t)})
	rec := &recorder{}
	require.NoError(t, n.Handlers().Register(Descriptor{Name: "rec", Address: 1, Width: 1}, rec))
	require.NoError(t, n.Start(context.Background()))

	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			n.Stop()
		}()
	}
	wg.Wait()

	require.Eventually(t, func() bool { return n.State() == Stopped }, 2*time.Second, 10*time.Millisecond)
	_, _, shutdowns := rec.counts()
	assert.Equal(t, 1, shutdowns)
}

func TestNode_Restart(t *testing.T) {
	n := newTestNode(t, Config{Port: getFreePort(t)})

	require.NoError(t, n.Start(context.Background()))
	n.Stop()
	require.NoError(t, n.Start(context.Background()))
	n.Stop()
	assert.Equal(t, Stopped, n.State())
}

func TestNode_StopWaitsForStuckHandler(t *testing.T) {
	port := getFreePort(t)
	events := &eventLog{}
	n := newTestNode(t, Config{Port: port, DMXTimeout: time.Hour}, WithEvents(events))
	n.stopTimeout = 50 * time.Millisecond

	entered := make(chan struct{})
	release := make(chan struct{})
	var once sync.Once
	stuck := HandlerFunc(func([]byte) {
		once.Do(func() { close(entered) })
		<-release
	})
	after := &recorder{}
	require.NoError(t, n.Handlers().Register(Descriptor{Name: "stuck", Address: 1, Width: 1}, stuck))
	require.NoError(t, n.Handlers().Register(Descriptor{Name: "after", Address: 1, Width: 1}, after))
	require.NoError(t, n.Start(context.Background()))

	send(t, port, &artnet.DMX{Data: []byte{1, 2}})
	select {
	case <-entered:
	case <-time.After(2 * time.Second):
		t.Fatal("handler never called")
	}

	n.Stop()
	assert.Equal(t, Stopping, n.State())
	assert.ErrorIs(t, n.Start(context.Background()), ErrAlreadyRunning)
	assert.Zero(t, events.count(EventStopped))

	close(release)
	require.Eventually(t, func() bool { return n.State() == Stopped }, 2*time.Second, 10*time.Millisecond)

	frames, _, shutdowns := after.counts()
	assert.Zero(t, frames, "no frame is delivered after shutdown")
	assert.Equal(t, 1, shutdowns)
	assert.Equal(t, 1, events.count(EventStopped))
}

func TestNode_ContextCancelMovesToStopping(t *testing.T) {
	n := newTestNode(t, Config{Port: getFreePort(t), DMXTimeout: time.Hour})
	rec := &recorder{}
	require.NoError(t, n.Handlers().Register(Descriptor{Name: "rec", Address: 1, Width: 1}, rec))

	ctx, cancel := context.WithCancel(context.Background())
	require.NoError(t, n.Start(ctx))
	cancel()

	require.Eventually(t, func() bool { return n.State() == Stopping }, 2*time.Second, 10*time.Millisecond)
	assert.ErrorIs(t, n.Start(context.Background()), ErrAlreadyRunning)

	n.Stop()
	n.Stop()
	assert.Equal(t, Stopped, n.State())
	_, _, shutdowns := rec.counts()
	assert.Equal(t, 1, shutdowns)

	require.NoError(t, n.Start(context.Background()))
	n.Stop()
	assert.Equal(t, Stopped, n.State())
}

func TestState_String(t *testing.T) {
	assert.Equal(t, "running", Running.String())
	assert.Equal(t, "State(9)", State(9).String())
}
