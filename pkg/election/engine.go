// Package election implements leader election over a logical ring of
// server ids, in the Chang–Roberts style: a token carrying the maximum
// id observed so far circulates the ring until it returns to its
// owner, who becomes leader and announces itself on the discovery
// port.
package election

import (
	"net"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/polenoz/ringchat/pkg/domain"
	"github.com/polenoz/ringchat/pkg/membership"
	"github.com/polenoz/ringchat/pkg/wire"
)

// SendFunc delivers an election token to a successor's service
// endpoint. A non-nil error means the successor is unreachable and
// should be evicted from the ring.
type SendFunc func(addr *net.UDPAddr, d wire.Datagram) error

// AnnounceFunc broadcasts a datagram on the discovery port.
type AnnounceFunc func(d wire.Datagram) error

// NewEngine creates an election engine for the local node.
func NewEngine(self domain.NodeID, servicePort int, peers *membership.Table,
	send SendFunc, announce AnnounceFunc, logger *zap.Logger) *Engine {
	return &Engine{
		logger:        logger,
		self:          self,
		servicePort:   servicePort,
		peers:         peers,
		send:          send,
		announce:      announce,
		lastHeartbeat: time.Now(),
	}
}

// Engine owns the node's role within the cluster: whether it leads,
// whether it has voted in the current election round, and when it last
// heard the leader's heartbeat. All role transitions go through the
// engine so readers always observe a consistent value.
type Engine struct {
	logger      *zap.Logger
	self        domain.NodeID
	servicePort int
	peers       *membership.Table
	send        SendFunc
	announce    AnnounceFunc

	// OnElected runs after this node wins an election, OnDeposed after
	// it observes a different leader while leading. Both are invoked
	// without the role lock held.
	OnElected func()
	OnDeposed func()

	mu            sync.Mutex
	isLeader      bool
	voted         bool
	lastHeartbeat time.Time
}

// Self returns the local node id.
func (e *Engine) Self() domain.NodeID {
	return e.self
}

// IsLeader reports whether this node currently holds the leader role.
func (e *Engine) IsLeader() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.isLeader
}

// SinceHeartbeat returns the time elapsed since the last leader
// heartbeat was observed.
func (e *Engine) SinceHeartbeat(now time.Time) time.Duration {
	e.mu.Lock()
	defer e.mu.Unlock()
	return now.Sub(e.lastHeartbeat)
}

// ObserveHeartbeat records a leader heartbeat. A heartbeat from a
// different node while this node leads means another leader exists;
// the local node steps down and adopts the sender.
func (e *Engine) ObserveHeartbeat(id domain.NodeID, now time.Time) {
	if id == e.self {
		return
	}
	e.mu.Lock()
	e.lastHeartbeat = now
	deposed := e.isLeader
	e.isLeader = false
	e.mu.Unlock()

	if deposed {
		e.logger.Info("stepping down, another leader is heartbeating",
			zap.String("leader", id.String()))
		if e.OnDeposed != nil {
			e.OnDeposed()
		}
	}
}

// ObserveLeader applies a leader announcement. The announcement closes
// the current election round: the vote flag resets regardless of who
// won, and the local role follows the announced id.
func (e *Engine) ObserveLeader(id domain.NodeID) {
	e.mu.Lock()
	wasLeader := e.isLeader
	e.isLeader = id == e.self
	e.voted = false
	e.lastHeartbeat = time.Now()
	e.mu.Unlock()

	e.peers.MarkLeader(id)

	if wasLeader && id != e.self {
		e.logger.Info("stepping down, new leader announced",
			zap.String("leader", id.String()))
		if e.OnDeposed != nil {
			e.OnDeposed()
		}
	}
}

// Initiate starts a new election round by forwarding the local id to
// the ring successor. Initiating counts as voting.
func (e *Engine) Initiate() {
	e.logger.Info("initiating leader election")
	e.mu.Lock()
	e.voted = true
	e.mu.Unlock()
	e.forward(e.self)
}

// HandleToken applies the ring forwarding rule to a received election
// token:
//
//   - a token greater than the local id is always forwarded unchanged,
//     or the circulating maximum would die here
//   - a token equal to the local id has been around the whole ring:
//     this node wins
//   - a smaller token is replaced by the local id and forwarded, but
//     only once per round; while voted, smaller tokens are discarded
func (e *Engine) HandleToken(token domain.NodeID) {
	e.mu.Lock()
	switch {
	case token > e.self:
		e.voted = true
		e.mu.Unlock()
		e.forward(token)
	case token == e.self:
		if e.isLeader {
			// Our own token came back again; the win already happened.
			e.mu.Unlock()
			return
		}
		e.mu.Unlock()
		e.win()
	default:
		if e.voted {
			e.mu.Unlock()
			return
		}
		e.voted = true
		e.mu.Unlock()
		e.forward(e.self)
	}
}

// forward sends the token to the first reachable ring successor.
// Unreachable successors are evicted and the next offset is tried; if
// the ring degenerates to only this node, it wins immediately.
func (e *Engine) forward(token domain.NodeID) {
	for _, succ := range e.successors() {
		d := wire.Datagram{Type: wire.TypeElection, Token: token.String()}
		if err := e.send(succ.ServiceAddr(), d); err != nil {
			e.logger.Warn("removing unreachable peer from ring",
				zap.String("peer", succ.ID.String()),
				zap.Error(err))
			e.peers.Remove(succ.ID)
			continue
		}
		return
	}
	e.win()
}

// successors returns the candidate successors of the local node in
// ring order: peers with a greater id ascending, then the wrap-around
// to peers with a smaller id.
func (e *Engine) successors() []membership.PeerRecord {
	snapshot := e.peers.SnapshotSorted()
	out := make([]membership.PeerRecord, 0, len(snapshot))
	for _, p := range snapshot {
		if p.ID > e.self {
			out = append(out, p)
		}
	}
	for _, p := range snapshot {
		if p.ID < e.self {
			out = append(out, p)
		}
	}
	return out
}

// win transitions the node to leader, announces the result on the
// discovery port and hands control to OnElected to start heartbeating.
func (e *Engine) win() {
	e.mu.Lock()
	already := e.isLeader
	e.isLeader = true
	e.voted = true
	e.mu.Unlock()

	if already {
		return
	}
	e.logger.Info("election won, announcing leadership")

	d := wire.Datagram{
		Type: wire.TypeLeader,
		ID:   e.self.String(),
		Port: e.servicePort,
	}
	if err := e.announce(d); err != nil {
		e.logger.Warn("leader announcement failed", zap.Error(err))
	}
	if e.OnElected != nil {
		e.OnElected()
	}
}
