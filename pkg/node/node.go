// Package node assembles a chat server process: both UDP endpoints,
// the membership and roster tables, the election engine and every
// background worker, with a single Run call driving the lifecycle.
package node

import (
	"context"
	"fmt"
	"net"
	"time"

	"go.uber.org/zap"

	"github.com/polenoz/ringchat/pkg/chat"
	"github.com/polenoz/ringchat/pkg/discovery"
	"github.com/polenoz/ringchat/pkg/domain"
	"github.com/polenoz/ringchat/pkg/election"
	"github.com/polenoz/ringchat/pkg/membership"
	"github.com/polenoz/ringchat/pkg/transport"
	"github.com/polenoz/ringchat/pkg/wire"
)

// DefaultDiscoveryPort is the well-known port shared by every server
// and client on the broadcast domain.
const DefaultDiscoveryPort = 5010

// Config carries the tunables of a server node. Intervals exist as
// configuration so tests can shrink them; production deployments use
// the defaults.
type Config struct {
	ServicePort   int
	DiscoveryPort int

	DiscoverInterval  time.Duration
	HeartbeatInterval time.Duration
	MonitorInterval   time.Duration
	EvictInterval     time.Duration
	HeartbeatTimeout  time.Duration
	PeerTTL           time.Duration

	// BootDelay is the pause before the first election, giving the
	// discovery broadcaster one full period to populate the ring.
	BootDelay time.Duration
}

// DefaultConfig returns the production configuration for a node
// serving clients on servicePort.
func DefaultConfig(servicePort int) Config {
	return Config{
		ServicePort:       servicePort,
		DiscoveryPort:     DefaultDiscoveryPort,
		DiscoverInterval:  10 * time.Second,
		HeartbeatInterval: 10 * time.Second,
		MonitorInterval:   10 * time.Second,
		EvictInterval:     5 * time.Second,
		HeartbeatTimeout:  20 * time.Second,
		PeerTTL:           20 * time.Second,
		BootDelay:         10 * time.Second,
	}
}

type worker interface {
	Run() error
	Stop() error
}

// New creates a node with a freshly generated id.
func New(cfg Config, logger *zap.Logger) *Node {
	id := domain.NewNodeID()
	return &Node{
		logger: logger.With(zap.String("node", id.String())),
		cfg:    cfg,
		id:     id,
		peers:  membership.NewTable(id),
	}
}

// Node is one server process of the replicated chat fleet.
type Node struct {
	logger *zap.Logger
	cfg    Config
	id     domain.NodeID
	peers  *membership.Table
}

// ID returns the node's identifier.
func (n *Node) ID() domain.NodeID {
	return n.id
}

// Run opens both endpoints, starts all background workers and blocks
// until ctx is cancelled. A bind failure is fatal and returned to the
// caller.
func (n *Node) Run(ctx context.Context) error {
	discConn, err := transport.ListenDiscovery(n.cfg.DiscoveryPort)
	if err != nil {
		return err
	}
	svcConn, err := transport.ListenService(n.cfg.ServicePort)
	if err != nil {
		discConn.Close()
		return err
	}
	n.logger.Info("server starting",
		zap.Int("servicePort", n.cfg.ServicePort),
		zap.Int("discoveryPort", n.cfg.DiscoveryPort))

	bcast := transport.BroadcastAddr(n.cfg.DiscoveryPort)
	announce := func(d wire.Datagram) error {
		return transport.Send(discConn, bcast, d)
	}
	unicast := func(addr *net.UDPAddr, d wire.Datagram) error {
		return transport.Send(svcConn, addr, d)
	}

	engine := election.NewEngine(n.id, n.cfg.ServicePort, n.peers, unicast, announce, n.logger)
	beacon := discovery.NewBeacon(n.id, n.cfg.ServicePort, n.cfg.HeartbeatInterval, announce, n.logger)
	roster := chat.NewRoster()
	engine.OnElected = beacon.Start
	engine.OnDeposed = func() {
		beacon.Stop()
		roster.Reset()
	}
	defer beacon.Stop()

	svc := chat.NewService(roster, engine, unicast, n.logger)

	workers := []worker{
		transport.NewListener("discovery", discConn,
			discovery.NewHandler(n.id, n.peers, engine, n.logger), n.logger),
		transport.NewListener("service", svcConn, svc.Handle, n.logger),
		discovery.NewBroadcaster(engine, n.cfg.ServicePort, n.cfg.DiscoverInterval, announce, n.logger),
		discovery.NewMonitor(engine, n.cfg.MonitorInterval, n.cfg.HeartbeatTimeout, n.logger),
		discovery.NewEvictor(n.peers, n.cfg.EvictInterval, n.cfg.PeerTTL, n.logger),
	}
	for _, w := range workers {
		if err := w.Run(); err != nil {
			return err
		}
		n.logger.Debug("background worker started",
			zap.String("type", fmt.Sprintf("%T", w)))
		defer w.Stop()
	}

	bootTimer := time.NewTimer(n.cfg.BootDelay)
	defer bootTimer.Stop()
	select {
	case <-bootTimer.C:
		n.logger.Info("bootstrap grace period over")
		engine.Initiate()
	case <-ctx.Done():
		return nil
	}

	<-ctx.Done()
	n.logger.Info("shutting down")
	return nil
}
