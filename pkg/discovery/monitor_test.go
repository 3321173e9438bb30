package discovery

import (
	"net"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/polenoz/ringchat/pkg/election"
	"github.com/polenoz/ringchat/pkg/membership"
	"github.com/polenoz/ringchat/pkg/wire"
)

type announceRecorder struct {
	mu   sync.Mutex
	sent []wire.Datagram
}

func (r *announceRecorder) announce(d wire.Datagram) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sent = append(r.sent, d)
	return nil
}

func (r *announceRecorder) count(tp wire.Type) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, d := range r.sent {
		if d.Type == tp {
			n++
		}
	}
	return n
}

func TestMonitorTriggersElectionOnSilence(t *testing.T) {
	peers := membership.NewTable("self")
	rec := &announceRecorder{}
	send := func(addr *net.UDPAddr, d wire.Datagram) error { return nil }
	engine := election.NewEngine("self", 5000, peers, send, rec.announce, zap.NewNop())

	m := NewMonitor(engine, 10*time.Millisecond, 25*time.Millisecond, zap.NewNop())
	if err := m.Run(); err != nil {
		t.Fatal(err)
	}
	defer m.Stop()

	// The ring is empty, so the triggered election resolves to an
	// immediate self-win and a leader announcement.
	deadline := time.After(time.Second)
	for rec.count(wire.TypeLeader) == 0 {
		select {
		case <-deadline:
			t.Fatal("monitor never initiated an election")
		case <-time.After(5 * time.Millisecond):
		}
	}
	if !engine.IsLeader() {
		t.Fatal("node did not win the self-election")
	}
}

func TestMonitorQuietWhileLeaderBeats(t *testing.T) {
	peers := membership.NewTable("self")
	rec := &announceRecorder{}
	send := func(addr *net.UDPAddr, d wire.Datagram) error { return nil }
	engine := election.NewEngine("self", 5000, peers, send, rec.announce, zap.NewNop())

	m := NewMonitor(engine, 10*time.Millisecond, 150*time.Millisecond, zap.NewNop())
	if err := m.Run(); err != nil {
		t.Fatal(err)
	}
	defer m.Stop()

	// Keep the heartbeat fresh for a while; no election may trigger.
	for i := 0; i < 10; i++ {
		engine.ObserveHeartbeat("lead", time.Now())
		time.Sleep(10 * time.Millisecond)
	}
	if n := rec.count(wire.TypeLeader); n != 0 {
		t.Fatalf("monitor initiated %d elections despite live heartbeats", n)
	}
}

func TestEvictorSweepsStalePeers(t *testing.T) {
	peers := membership.NewTable("self")
	peers.Observe("zzz", net.IPv4(10, 0, 0, 9), 5009, false, time.Now().Add(-time.Minute))

	e := NewEvictor(peers, 10*time.Millisecond, 20*time.Second, zap.NewNop())
	if err := e.Run(); err != nil {
		t.Fatal(err)
	}
	defer e.Stop()

	deadline := time.After(time.Second)
	for peers.Len() != 0 {
		select {
		case <-deadline:
			t.Fatal("stale peer never evicted")
		case <-time.After(5 * time.Millisecond):
		}
	}
}

func TestBeaconBeatsWhileStarted(t *testing.T) {
	rec := &announceRecorder{}
	b := NewBeacon("self", 5000, 10*time.Millisecond, rec.announce, zap.NewNop())

	b.Start()
	deadline := time.After(time.Second)
	for rec.count(wire.TypeHeartbeat) < 2 {
		select {
		case <-deadline:
			t.Fatal("beacon produced no heartbeats")
		case <-time.After(5 * time.Millisecond):
		}
	}
	b.Stop()

	// Let any in-flight beat drain, then verify the loop is gone.
	time.Sleep(30 * time.Millisecond)
	settled := rec.count(wire.TypeHeartbeat)
	time.Sleep(50 * time.Millisecond)
	if after := rec.count(wire.TypeHeartbeat); after != settled {
		t.Fatalf("beacon kept beating after stop: %d -> %d", settled, after)
	}
}

func TestBeaconRestartsPerTerm(t *testing.T) {
	rec := &announceRecorder{}
	b := NewBeacon("self", 5000, 5*time.Millisecond, rec.announce, zap.NewNop())

	b.Start()
	b.Start() // second win within a term must not double the loop
	time.Sleep(20 * time.Millisecond)
	b.Stop()
	b.Stop() // stopping when idle is safe

	b.Start()
	deadline := time.After(time.Second)
	before := rec.count(wire.TypeHeartbeat)
	for rec.count(wire.TypeHeartbeat) <= before {
		select {
		case <-deadline:
			t.Fatal("beacon did not restart for the new term")
		case <-time.After(5 * time.Millisecond):
		}
	}
	b.Stop()
}
