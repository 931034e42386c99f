package node

import (
	"net"
	"sort"
	"sync"
	"time"
)

// Peer is another Art-Net node seen through its ArtPollReply.
type Peer struct {
	Name      string    `json:"name"`
	Address   net.IP    `json:"address"`
	FirstSeen time.Time `json:"firstSeen"`
	LastSeen  time.Time `json:"lastSeen"`
}

// Age is the time since the peer last replied.
func (p Peer) Age(now time.Time) time.Duration {
	return now.Sub(p.LastSeen)
}

// PeerRegistry maps a peer's short name to its record. Peers never expire.
type PeerRegistry struct {
	mu    sync.RWMutex
	peers map[string]Peer
}

// NewPeerRegistry creates an empty registry.
func NewPeerRegistry() *PeerRegistry {
	return &PeerRegistry{peers: make(map[string]Peer)}
}

// Upsert records a reply from name at now. It reports true when name was
// not known before; later calls only move LastSeen.
func (r *PeerRegistry) Upsert(name string, addr net.IP, now time.Time) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if p, ok := r.peers[name]; ok {
		p.LastSeen = now
		r.peers[name] = p
		return false
	}
	r.peers[name] = Peer{
		Name:      name,
		Address:   append(net.IP(nil), addr...),
		FirstSeen: now,
		LastSeen:  now,
	}
	return true
}

// Get returns the record for name.
func (r *PeerRegistry) Get(name string) (Peer, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.peers[name]
	return p, ok
}

// Snapshot returns a copy of all peers sorted by name.
func (r *PeerRegistry) Snapshot() []Peer {
	r.mu.RLock()
	out := make([]Peer, 0, len(r.peers))
	for _, p := range r.peers {
		out = append(out, p)
	}
	r.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Len returns the number of known peers.
func (r *PeerRegistry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.peers)
}
