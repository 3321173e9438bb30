package discovery

import (
	"net"
	"time"

	"go.uber.org/zap"

	"github.com/polenoz/ringchat/pkg/domain"
	"github.com/polenoz/ringchat/pkg/election"
	"github.com/polenoz/ringchat/pkg/membership"
	"github.com/polenoz/ringchat/pkg/wire"
)

// NewHandler builds the dispatch function for the discovery endpoint.
// The returned handler feeds peer observations into the membership
// table and role observations into the election engine. Discover and
// heartbeat datagrams carrying the local id are ignored; a leader
// announcement carrying the local id still reaches the engine but
// creates no peer record, so a node never tracks itself.
func NewHandler(self domain.NodeID, peers *membership.Table, engine *election.Engine,
	logger *zap.Logger) func(d wire.Datagram, from *net.UDPAddr) {

	return func(d wire.Datagram, from *net.UDPAddr) {
		id := domain.NodeID(d.ID)

		switch d.Type {
		case wire.TypeDiscover:
			if id == self {
				return
			}
			peers.Observe(id, from.IP, d.Port, d.IsLeader, time.Now())

		case wire.TypeHeartbeat:
			if id == self {
				return
			}
			peers.Observe(id, from.IP, d.Port, true, time.Now())
			engine.ObserveHeartbeat(id, time.Now())

		case wire.TypeLeader:
			logger.Info("leader announced",
				zap.String("leader", id.String()),
				zap.String("addr", from.IP.String()))
			if id != self {
				peers.Observe(id, from.IP, d.Port, true, time.Now())
			}
			engine.ObserveLeader(id)
		}
	}
}
