package chat

import (
	"fmt"
	"net"
	"sync"

	"github.com/polenoz/ringchat/pkg/domain"
)

// ClientRecord describes one admitted chat client.
type ClientRecord struct {
	ID   domain.ClientID
	IP   net.IP
	Port int
	Name string
}

// Addr returns the client's receive endpoint.
func (r ClientRecord) Addr() *net.UDPAddr {
	return &net.UDPAddr{IP: r.IP, Port: r.Port}
}

// NewRoster creates an empty client roster.
func NewRoster() *Roster {
	return &Roster{clients: map[domain.ClientID]ClientRecord{}}
}

// Roster holds the clients admitted during the current leader term.
// Admissions are serialized through the roster's lock, so concurrent
// joins always produce distinct display names.
type Roster struct {
	mu       sync.Mutex
	clients  map[domain.ClientID]ClientRecord
	admitted int
}

// Admit registers a client and assigns its display name. The name
// counter only ever moves forward, so a name is never handed out twice
// within a leader term even after clients leave. A repeated join for a
// known id returns the existing record unchanged.
func (r *Roster) Admit(id domain.ClientID, ip net.IP, port int) (ClientRecord, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if rec, ok := r.clients[id]; ok {
		return rec, false
	}
	r.admitted++
	rec := ClientRecord{
		ID:   id,
		IP:   ip,
		Port: port,
		Name: fmt.Sprintf("Client %d", r.admitted),
	}
	r.clients[id] = rec
	return rec, true
}

// Release removes a client and returns its record if it was present.
func (r *Roster) Release(id domain.ClientID) (ClientRecord, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	rec, ok := r.clients[id]
	if ok {
		delete(r.clients, id)
	}
	return rec, ok
}

// Lookup returns the record for id if the client is admitted.
func (r *Roster) Lookup(id domain.ClientID) (ClientRecord, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	rec, ok := r.clients[id]
	return rec, ok
}

// Snapshot returns a copy of all admitted clients for fanout.
func (r *Roster) Snapshot() []ClientRecord {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]ClientRecord, 0, len(r.clients))
	for _, rec := range r.clients {
		out = append(out, rec)
	}
	return out
}

// Reset drops every record and restarts the name counter. Called when
// the local node loses the leader role; the roster does not survive a
// leader transition.
func (r *Roster) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.clients = map[domain.ClientID]ClientRecord{}
	r.admitted = 0
}

// Len reports the number of admitted clients.
func (r *Roster) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.clients)
}
