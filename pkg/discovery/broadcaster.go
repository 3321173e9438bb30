// Package discovery contains the loops that keep the cluster view
// alive: periodic self-announcement, the discovery-endpoint dispatch,
// the leader heartbeat beacon and the failure monitor.
package discovery

import (
	"time"

	"go.uber.org/zap"

	"github.com/polenoz/ringchat/pkg/election"
	"github.com/polenoz/ringchat/pkg/wire"
)

// AnnounceFunc broadcasts a datagram on the discovery port.
type AnnounceFunc func(d wire.Datagram) error

// NewBroadcaster creates the periodic self-announcement worker.
func NewBroadcaster(engine *election.Engine, servicePort int, interval time.Duration,
	announce AnnounceFunc, logger *zap.Logger) *Broadcaster {
	return &Broadcaster{
		logger:      logger,
		engine:      engine,
		servicePort: servicePort,
		interval:    interval,
		announce:    announce,
	}
}

// Broadcaster announces the local node on the discovery port at a
// fixed interval so peers can build their membership view.
type Broadcaster struct {
	logger      *zap.Logger
	engine      *election.Engine
	servicePort int
	interval    time.Duration
	announce    AnnounceFunc

	shutdown chan chan error
}

func (b *Broadcaster) Run() error {
	b.shutdown = make(chan chan error)

	go func() {
		ticker := time.NewTicker(b.interval)
		defer ticker.Stop()
		for {
			select {
			case respCh := <-b.shutdown:
				respCh <- nil
				return
			case <-ticker.C:
				d := wire.Datagram{
					Type:     wire.TypeDiscover,
					ID:       b.engine.Self().String(),
					Port:     b.servicePort,
					IsLeader: b.engine.IsLeader(),
				}
				if err := b.announce(d); err != nil {
					b.logger.Warn("discovery broadcast failed", zap.Error(err))
				}
			}
		}
	}()
	return nil
}

func (b *Broadcaster) Stop() error {
	errCh := make(chan error)
	b.shutdown <- errCh
	return <-errCh
}
