// Package membership maintains the local view of peer servers on the
// broadcast domain. The table is the authoritative ring membership for
// the election protocol.
package membership

import (
	"net"
	"sort"
	"sync"
	"time"

	"github.com/polenoz/ringchat/pkg/domain"
)

// PeerRecord describes one known peer server.
type PeerRecord struct {
	ID          domain.NodeID
	IP          net.IP
	ServicePort int
	IsLeader    bool
	LastSeen    time.Time
}

// ServiceAddr returns the peer's unicast service endpoint.
func (r PeerRecord) ServiceAddr() *net.UDPAddr {
	return &net.UDPAddr{IP: r.IP, Port: r.ServicePort}
}

// NewTable creates an empty peer table. The table never stores a
// record for self; observations carrying the local id are discarded.
func NewTable(self domain.NodeID) *Table {
	return &Table{
		self:  self,
		peers: map[domain.NodeID]PeerRecord{},
	}
}

// Table holds peer records keyed by node id. All access is serialized
// through the table's lock; callers receive copies, never references
// into the map.
type Table struct {
	mu    sync.RWMutex
	self  domain.NodeID
	peers map[domain.NodeID]PeerRecord
}

// Observe updates-or-inserts a peer record and refreshes its LastSeen.
// LastSeen never moves backwards, so replayed or reordered datagrams
// cannot make a live peer look stale.
func (t *Table) Observe(id domain.NodeID, ip net.IP, servicePort int, isLeader bool, now time.Time) {
	if id == t.self {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()

	rec, exists := t.peers[id]
	if exists && now.Before(rec.LastSeen) {
		now = rec.LastSeen
	}
	t.peers[id] = PeerRecord{
		ID:          id,
		IP:          ip,
		ServicePort: servicePort,
		IsLeader:    isLeader,
		LastSeen:    now,
	}
}

// MarkLeader records id as the cluster leader and clears the advisory
// leader flag on every other peer.
func (t *Table) MarkLeader(id domain.NodeID) {
	t.mu.Lock()
	defer t.mu.Unlock()

	for k, v := range t.peers {
		v.IsLeader = k == id
		t.peers[k] = v
	}
}

// Remove drops a peer, typically after a failed unicast during an
// election forward.
func (t *Table) Remove(id domain.NodeID) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.peers, id)
}

// EvictStale removes every peer not observed within ttl and returns
// the evicted records for logging.
func (t *Table) EvictStale(now time.Time, ttl time.Duration) []PeerRecord {
	t.mu.Lock()
	defer t.mu.Unlock()

	var evicted []PeerRecord
	for id, rec := range t.peers {
		if now.Sub(rec.LastSeen) > ttl {
			evicted = append(evicted, rec)
			delete(t.peers, id)
		}
	}
	return evicted
}

// SnapshotSorted returns a copy of all peer records ordered by node id
// ascending. Election steps work on this immutable snapshot so a ring
// walk never observes a mid-mutation view.
func (t *Table) SnapshotSorted() []PeerRecord {
	t.mu.RLock()
	defer t.mu.RUnlock()

	out := make([]PeerRecord, 0, len(t.peers))
	for _, rec := range t.peers {
		out = append(out, rec)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Len reports the number of known peers.
func (t *Table) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.peers)
}
