package node

import (
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"artnetnode/internal/artnet"
)

// Handler consumes a slice of one DMX universe.
//
// Callbacks run on the node's receive loop and must not block.
type Handler interface {
	// OnDMX receives exactly Width bytes starting at the descriptor's address.
	// The slice is owned by the handler.
	OnDMX(data []byte)
	// OnTimeout is called once per DMX silence episode.
	OnTimeout()
	// OnShutdown is called once when the node stops.
	OnShutdown()
}

// NopHandler implements Handler with no-ops. Embed it to pick the
// callbacks to implement.
type NopHandler struct{}

func (NopHandler) OnDMX([]byte) {}
func (NopHandler) OnTimeout()   {}
func (NopHandler) OnShutdown()  {}

// HandlerFunc adapts a function to a Handler that ignores timeouts and
// shutdown.
type HandlerFunc func(data []byte)

func (f HandlerFunc) OnDMX(data []byte) { f(data) }
func (HandlerFunc) OnTimeout()          {}
func (HandlerFunc) OnShutdown()         {}

// Descriptor binds a range of DMX slots of one universe to a handler.
type Descriptor struct {
	Name     string `json:"name"`
	Universe uint8  `json:"universe"`
	Address  int    `json:"address"` // 1-based first slot
	Width    int    `json:"width"`
}

// ConstructionError reports an invalid descriptor.
type ConstructionError struct {
	Descriptor Descriptor
	Reason     string
}

func (e *ConstructionError) Error() string {
	return fmt.Sprintf("handler %q: %s", e.Descriptor.Name, e.Reason)
}

// NewDescriptor validates that address and width describe a range inside a
// 512 slot universe.
func NewDescriptor(name string, universe uint8, address, width int) (Descriptor, error) {
	d := Descriptor{Name: name, Universe: universe, Address: address, Width: width}
	return d, d.validate()
}

func (d Descriptor) validate() error {
	switch {
	case d.Universe > 15:
		return &ConstructionError{d, fmt.Sprintf("universe %d out of range 0-15", d.Universe)}
	case d.Address < 1 || d.Address > artnet.MaxDMXLength:
		return &ConstructionError{d, fmt.Sprintf("address %d should be a valid DMX address between 1 and 512", d.Address)}
	case d.Width < 1 || d.Address+d.Width-1 > artnet.MaxDMXLength:
		return &ConstructionError{d, fmt.Sprintf("width %d is not valid for address %d", d.Width, d.Address)}
	}
	return nil
}

// ErrRegistryFrozen is returned by Register once the node has started.
var ErrRegistryFrozen = errors.New("handler registry is frozen while the node runs")

type registration struct {
	desc    Descriptor
	handler Handler
}

// Registry is the ordered list of registered handlers.
type Registry struct {
	mu      sync.RWMutex
	entries []registration
	frozen  bool

	// shutdown is set once OnShutdown went out; later frames and timeouts
	// are dropped.
	shutdown atomic.Bool
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{}
}

// Register adds h for the slots described by d.
func (r *Registry) Register(d Descriptor, h Handler) error {
	if err := d.validate(); err != nil {
		return err
	}
	if h == nil {
		return &ConstructionError{d, "nil handler"}
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.frozen {
		return ErrRegistryFrozen
	}
	r.entries = append(r.entries, registration{desc: d, handler: h})
	return nil
}

// Dispatch hands every handler bound to universe its slice of data and
// returns how many handlers were called. Slots missing from a short frame
// read as zero.
func (r *Registry) Dispatch(universe uint8, data []byte) int {
	called := 0
	for _, e := range r.snapshot() {
		if r.shutdown.Load() {
			return called
		}
		if e.desc.Universe != universe {
			continue
		}
		from := e.desc.Address - 1
		slice := make([]byte, e.desc.Width)
		if from < len(data) {
			copy(slice, data[from:])
		}
		e.handler.OnDMX(slice)
		called++
	}
	return called
}

// NotifyTimeout calls OnTimeout on every handler.
func (r *Registry) NotifyTimeout() {
	for _, e := range r.snapshot() {
		if r.shutdown.Load() {
			return
		}
		e.handler.OnTimeout()
	}
}

// NotifyShutdown calls OnShutdown on every handler. Dispatch and
// NotifyTimeout do nothing afterwards until the node starts again.
func (r *Registry) NotifyShutdown() {
	r.shutdown.Store(true)
	for _, e := range r.snapshot() {
		e.handler.OnShutdown()
	}
}

// Descriptors returns the registered descriptors in registration order.
func (r *Registry) Descriptors() []Descriptor {
	entries := r.snapshot()
	out := make([]Descriptor, len(entries))
	for i, e := range entries {
		out[i] = e.desc
	}
	return out
}

// Len returns the number of registered handlers.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.entries)
}

func (r *Registry) setFrozen(frozen bool) {
	r.mu.Lock()
	r.frozen = frozen
	r.mu.Unlock()
}

// reopen freezes the registry for a run and re-enables delivery.
func (r *Registry) reopen() {
	r.setFrozen(true)
	r.shutdown.Store(false)
}

// snapshot returns the entries without holding the lock during callbacks.
// Appends never modify the elements visible through an older slice header.
func (r *Registry) snapshot() []registration {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.entries[:len(r.entries):len(r.entries)]
}
