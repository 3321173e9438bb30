package discovery

import (
	"time"

	"go.uber.org/zap"

	"github.com/polenoz/ringchat/pkg/election"
	"github.com/polenoz/ringchat/pkg/membership"
)

// NewMonitor creates the leader failure detector.
func NewMonitor(engine *election.Engine, interval, timeout time.Duration, logger *zap.Logger) *Monitor {
	return &Monitor{
		logger:   logger,
		engine:   engine,
		interval: interval,
		timeout:  timeout,
	}
}

// Monitor watches the leader's heartbeats and starts a new election
// round when they stop arriving.
type Monitor struct {
	logger   *zap.Logger
	engine   *election.Engine
	interval time.Duration
	timeout  time.Duration

	shutdown chan chan error
}

func (m *Monitor) Run() error {
	m.shutdown = make(chan chan error)

	go func() {
		ticker := time.NewTicker(m.interval)
		defer ticker.Stop()
		for {
			select {
			case respCh := <-m.shutdown:
				respCh <- nil
				return
			case <-ticker.C:
				if m.engine.IsLeader() {
					continue
				}
				if silence := m.engine.SinceHeartbeat(time.Now()); silence > m.timeout {
					m.logger.Warn("leader unresponsive",
						zap.Duration("silence", silence))
					m.engine.Initiate()
				}
			}
		}
	}()
	return nil
}

func (m *Monitor) Stop() error {
	errCh := make(chan error)
	m.shutdown <- errCh
	return <-errCh
}

// NewEvictor creates the stale-peer sweeper.
func NewEvictor(peers *membership.Table, interval, ttl time.Duration, logger *zap.Logger) *Evictor {
	return &Evictor{
		logger:   logger,
		peers:    peers,
		interval: interval,
		ttl:      ttl,
	}
}

// Evictor periodically removes peers that have not been observed
// within the ttl, keeping the ring free of dead members.
type Evictor struct {
	logger   *zap.Logger
	peers    *membership.Table
	interval time.Duration
	ttl      time.Duration

	shutdown chan chan error
}

func (e *Evictor) Run() error {
	e.shutdown = make(chan chan error)

	go func() {
		ticker := time.NewTicker(e.interval)
		defer ticker.Stop()
		for {
			select {
			case respCh := <-e.shutdown:
				respCh <- nil
				return
			case <-ticker.C:
				for _, rec := range e.peers.EvictStale(time.Now(), e.ttl) {
					e.logger.Info("evicted stale peer",
						zap.String("peer", rec.ID.String()),
						zap.Time("lastSeen", rec.LastSeen))
				}
			}
		}
	}()
	return nil
}

func (e *Evictor) Stop() error {
	errCh := make(chan error)
	e.shutdown <- errCh
	return <-errCh
}
