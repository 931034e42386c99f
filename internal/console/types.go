package console

import "sync"

// Universe wraps the 512 byte array for convenience.
type Universe [512]byte

// UniverseStateMap holds the state of all used universes.
type UniverseStateMap map[uint16]Universe

// State is the last value of every channel the console has set.
type State struct {
	mu        sync.Mutex
	universes UniverseStateMap
}

func NewState() *State {
	return &State{universes: make(UniverseStateMap)}
}

// SetUniverse replaces a whole universe.
func (s *State) SetUniverse(universe uint16, data Universe) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.universes[universe] = data
}

// Get returns a copy of the state.
func (s *State) Get() UniverseStateMap {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(UniverseStateMap, len(s.universes))
	for k, v := range s.universes {
		out[k] = v
	}
	return out
}

// NodeInfo is the short description of a discovered node.
type NodeInfo struct {
	Name    string
	Outputs []uint16 // port-addresses of the output ports
}

// Serves reports whether the node has an output port on universe.
func (n NodeInfo) Serves(universe uint16) bool {
	for _, o := range n.Outputs {
		if o == universe {
			return true
		}
	}
	return false
}
