package handlers

import (
	"fmt"
	"sync"

	"artnetnode/internal/logger"
	"artnetnode/internal/node"
)

const (
	// RelayWidth is the number of DMX slots a relay handler occupies.
	RelayWidth = 8
	// RelayCount is the number of relays driven from the first slots.
	RelayCount = 4

	offThreshold = 102
	onThreshold  = 153
)

// Output switches relays. Channel is 0-based.
type Output interface {
	Set(channel int, on bool) error
	// Release returns every channel to its idle state and frees the device.
	Release() error
}

// Relay drives on/off outputs from DMX levels with hysteresis: a level
// at or below 102 switches a relay off, at or above 153 switches it on,
// anything in between keeps the current state.
type Relay struct {
	log *logger.Log
	out Output

	mu       sync.Mutex
	states   []bool
	released bool
}

var _ node.Handler = (*Relay)(nil)

// NewRelay returns a relay handler with count relays in the startup (off)
// state.
func NewRelay(log logger.Logger, name string, out Output, count int) (*Relay, error) {
	if count < 1 || count > RelayWidth {
		return nil, fmt.Errorf("relay %s: count %d out of range 1-%d", name, count, RelayWidth)
	}
	r := &Relay{
		log:    log.With(logger.Fields{"module": "relay", "handler": name}),
		out:    out,
		states: make([]bool, count),
	}
	for i := range r.states {
		if err := out.Set(i, false); err != nil {
			return nil, fmt.Errorf("relay %s: init channel %d: %w", name, i, err)
		}
	}
	return r, nil
}

func (r *Relay) OnDMX(data []byte) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.released {
		return
	}

	for i := range r.states {
		if i >= len(data) {
			break
		}
		switch v := data[i]; {
		case v <= offThreshold && r.states[i]:
			r.set(i, false)
		case v >= onThreshold && !r.states[i]:
			r.set(i, true)
		}
	}
}

// OnTimeout returns every relay to the startup state.
func (r *Relay) OnTimeout() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.released {
		return
	}
	for i, on := range r.states {
		if on {
			r.set(i, false)
		}
	}
}

func (r *Relay) OnShutdown() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.released {
		return
	}
	r.released = true
	for i := range r.states {
		r.states[i] = false
	}
	if err := r.out.Release(); err != nil {
		r.log.Errorf("release outputs: %v", err)
	}
}

// States returns the current relay states.
func (r *Relay) States() []bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]bool, len(r.states))
	copy(out, r.states)
	return out
}

func (r *Relay) set(i int, on bool) {
	if err := r.out.Set(i, on); err != nil {
		r.log.Errorf("relay %d: %v", i, err)
		return
	}
	r.states[i] = on
	r.log.Debugf("relay %d set to %s", i, onOff(on))
}

func onOff(on bool) string {
	if on {
		return "on"
	}
	return "off"
}

// SimulatedOutput logs relay changes instead of driving hardware.
type SimulatedOutput struct {
	log *logger.Log

	mu     sync.Mutex
	levels map[int]bool
}

// NewSimulatedOutput returns an Output that only logs.
func NewSimulatedOutput(log logger.Logger, name string) *SimulatedOutput {
	return &SimulatedOutput{
		log:    log.With(logger.Fields{"module": "relay", "output": name}),
		levels: make(map[int]bool),
	}
}

func (s *SimulatedOutput) Set(channel int, on bool) error {
	s.mu.Lock()
	s.levels[channel] = on
	s.mu.Unlock()
	s.log.Infof("output %d %s", channel, onOff(on))
	return nil
}

func (s *SimulatedOutput) Release() error {
	s.mu.Lock()
	s.levels = make(map[int]bool)
	s.mu.Unlock()
	s.log.Info("outputs released")
	return nil
}

// Level reports the last state written to channel.
func (s *SimulatedOutput) Level(channel int) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.levels[channel]
}
