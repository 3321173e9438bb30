package node

import (
	"testing"
	"time"

	"go.uber.org/zap"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig(5003)

	if cfg.ServicePort != 5003 {
		t.Fatalf("service port not adopted: %d", cfg.ServicePort)
	}
	if cfg.DiscoveryPort != DefaultDiscoveryPort {
		t.Fatalf("unexpected discovery port: %d", cfg.DiscoveryPort)
	}
	if cfg.HeartbeatTimeout <= cfg.HeartbeatInterval {
		t.Fatal("heartbeat timeout must outlast the heartbeat interval")
	}
	if cfg.PeerTTL <= cfg.DiscoverInterval {
		t.Fatal("peer ttl must outlast the discovery interval")
	}
}

func TestNewNodesGetDistinctIds(t *testing.T) {
	logger := zap.NewNop()
	cfg := DefaultConfig(5000)

	seen := map[string]bool{}
	for i := 0; i < 100; i++ {
		id := New(cfg, logger).ID().String()
		if id == "" {
			t.Fatal("empty node id")
		}
		if seen[id] {
			t.Fatalf("node id %q generated twice", id)
		}
		seen[id] = true
	}

	// Ids must be comparable as strings; a later id from the same
	// process sorts after an earlier one thanks to the XID time
	// component, which keeps ring positions stable across the fleet.
	a := New(cfg, logger).ID()
	time.Sleep(time.Second)
	b := New(cfg, logger).ID()
	if !(a < b) {
		t.Fatalf("expected %q < %q", a, b)
	}
}
