// Package chat hosts the client-facing side of a server node: the
// roster of admitted clients and the service-endpoint state machine
// that admits, relays and releases them. Every node listens on its
// service endpoint, but client traffic only has an effect on the node
// that currently leads; election tokens are handled on every node.
package chat

import (
	"net"

	"go.uber.org/zap"

	"github.com/polenoz/ringchat/pkg/domain"
	"github.com/polenoz/ringchat/pkg/wire"
)

// TokenHandler receives election tokens arriving on the service
// endpoint.
type TokenHandler interface {
	HandleToken(token domain.NodeID)
	IsLeader() bool
}

// SendFunc delivers a datagram to a client endpoint. Send failures are
// logged and skipped; fanout never aborts on a single dead client.
type SendFunc func(addr *net.UDPAddr, d wire.Datagram) error

// NewService wires a service dispatcher over the given roster.
func NewService(roster *Roster, elections TokenHandler, send SendFunc, logger *zap.Logger) *Service {
	return &Service{
		logger:    logger,
		roster:    roster,
		elections: elections,
		send:      send,
	}
}

// Service dispatches datagrams received on the service endpoint.
type Service struct {
	logger    *zap.Logger
	roster    *Roster
	elections TokenHandler
	send      SendFunc
}

// Handle processes one datagram from the service endpoint.
func (s *Service) Handle(d wire.Datagram, from *net.UDPAddr) {
	if d.Type == wire.TypeElection {
		s.elections.HandleToken(domain.NodeID(d.Token))
		return
	}
	if !s.elections.IsLeader() {
		// Clients re-join the current leader on their own; traffic
		// reaching a follower is stale and dropped.
		return
	}

	switch d.Type {
	case wire.TypeJoin:
		s.handleJoin(d, from)
	case wire.TypeMessage:
		s.handleMessage(d)
	case wire.TypeLeave:
		s.handleLeave(d)
	}
}

func (s *Service) handleJoin(d wire.Datagram, from *net.UDPAddr) {
	id := domain.ClientID(d.ID)
	rec, isNew := s.roster.Admit(id, from.IP, d.Port)

	welcome := wire.Datagram{Type: wire.TypeWelcome, Name: rec.Name}
	if err := s.send(rec.Addr(), welcome); err != nil {
		s.logger.Warn("welcome send failed",
			zap.String("client", id.String()), zap.Error(err))
	}
	if !isNew {
		return
	}
	s.logger.Info("client joined",
		zap.String("client", id.String()),
		zap.String("name", rec.Name))

	notice := wire.Datagram{
		Type: wire.TypeNotice,
		Text: rec.Name + " ist beigetreten.",
	}
	s.fanout(notice, id)
}

func (s *Service) handleMessage(d wire.Datagram) {
	id := domain.ClientID(d.ID)
	sender, ok := s.roster.Lookup(id)
	if !ok {
		// Message from a client that never joined or already left.
		s.logger.Warn("dropping message from unknown client",
			zap.String("client", id.String()))
		return
	}
	d.SenderName = sender.Name
	s.fanout(d, id)
}

func (s *Service) handleLeave(d wire.Datagram) {
	id := domain.ClientID(d.ID)
	rec, ok := s.roster.Release(id)
	if !ok {
		return
	}
	s.logger.Info("client left",
		zap.String("client", id.String()),
		zap.String("name", rec.Name))

	notice := wire.Datagram{
		Type: wire.TypeNotice,
		Text: rec.Name + " hat den Chat verlassen.",
	}
	s.fanout(notice, "")
}

// fanout sends d to every admitted client except exclude. Per-client
// send errors are logged and skipped.
func (s *Service) fanout(d wire.Datagram, exclude domain.ClientID) {
	for _, rec := range s.roster.Snapshot() {
		if rec.ID == exclude {
			continue
		}
		if err := s.send(rec.Addr(), d); err != nil {
			s.logger.Warn("fanout send failed",
				zap.String("client", rec.ID.String()),
				zap.Error(err))
		}
	}
}
