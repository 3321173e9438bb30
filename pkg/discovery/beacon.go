package discovery

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/polenoz/ringchat/pkg/domain"
	"github.com/polenoz/ringchat/pkg/wire"
)

// NewBeacon creates the leader heartbeat emitter. The beacon is idle
// until the local node wins an election.
func NewBeacon(self domain.NodeID, servicePort int, interval time.Duration,
	announce AnnounceFunc, logger *zap.Logger) *Beacon {
	return &Beacon{
		logger:      logger,
		self:        self,
		servicePort: servicePort,
		interval:    interval,
		announce:    announce,
	}
}

// Beacon broadcasts leader heartbeats while the local node holds the
// leader role. Each leader term gets a fresh loop: Start spawns it,
// Stop cancels it through an explicit signal rather than a polled
// flag.
type Beacon struct {
	logger      *zap.Logger
	self        domain.NodeID
	servicePort int
	interval    time.Duration
	announce    AnnounceFunc

	mu     sync.Mutex
	cancel context.CancelFunc
}

// Start begins heartbeating. Starting an already-running beacon is a
// no-op, so a repeated election win within one term is harmless.
func (b *Beacon) Start() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.cancel != nil {
		return
	}
	ctx, cancel := context.WithCancel(context.Background())
	b.cancel = cancel
	go b.loop(ctx)
}

// Stop terminates the heartbeat loop. Safe to call when not running.
func (b *Beacon) Stop() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.cancel == nil {
		return
	}
	b.cancel()
	b.cancel = nil
}

func (b *Beacon) loop(ctx context.Context) {
	// First beat goes out immediately so clients rebind to a new
	// leader without waiting a full interval.
	b.beat()

	ticker := time.NewTicker(b.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			b.beat()
		}
	}
}

func (b *Beacon) beat() {
	d := wire.Datagram{
		Type: wire.TypeHeartbeat,
		ID:   b.self.String(),
		Port: b.servicePort,
	}
	if err := b.announce(d); err != nil {
		b.logger.Warn("heartbeat broadcast failed", zap.Error(err))
	}
}
