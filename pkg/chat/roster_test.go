package chat

import (
	"fmt"
	"net"
	"testing"

	"github.com/polenoz/ringchat/pkg/domain"
)

var testIP = net.IPv4(10, 0, 0, 5)

func TestAdmitAssignsSequentialNames(t *testing.T) {
	roster := NewRoster()

	for i := 1; i <= 3; i++ {
		id := domain.ClientID(fmt.Sprintf("c%d", i))
		rec, isNew := roster.Admit(id, testIP, 6000+i)
		if !isNew {
			t.Fatalf("admission %d not reported as new", i)
		}
		expected := fmt.Sprintf("Client %d", i)
		if rec.Name != expected {
			t.Fatalf("expected name %q, got %q", expected, rec.Name)
		}
	}
}

func TestAdmitIdempotent(t *testing.T) {
	roster := NewRoster()

	first, _ := roster.Admit("c1", testIP, 6001)
	again, isNew := roster.Admit("c1", testIP, 6001)

	if isNew {
		t.Fatal("repeated join reported as new admission")
	}
	if again.Name != first.Name || again.Port != first.Port || !again.IP.Equal(first.IP) {
		t.Fatalf("repeated join changed the record: %+v != %+v", again, first)
	}
	if roster.Len() != 1 {
		t.Fatalf("expected 1 client, found %d", roster.Len())
	}
}

func TestNamesNeverReused(t *testing.T) {
	roster := NewRoster()

	roster.Admit("c1", testIP, 6001)
	roster.Admit("c2", testIP, 6002)
	roster.Release("c1")

	rec, _ := roster.Admit("c3", testIP, 6003)
	if rec.Name != "Client 3" {
		t.Fatalf("name reused after a leave: %q", rec.Name)
	}

	seen := map[string]bool{}
	for _, r := range roster.Snapshot() {
		if seen[r.Name] {
			t.Fatalf("duplicate display name %q", r.Name)
		}
		seen[r.Name] = true
	}
}

func TestRelease(t *testing.T) {
	roster := NewRoster()
	roster.Admit("c1", testIP, 6001)

	rec, ok := roster.Release("c1")
	if !ok || rec.Name != "Client 1" {
		t.Fatalf("release returned %+v, %v", rec, ok)
	}
	if _, ok := roster.Lookup("c1"); ok {
		t.Fatal("released client still present")
	}
	if _, ok := roster.Release("c1"); ok {
		t.Fatal("second release reported a record")
	}
}

func TestResetRestartsNaming(t *testing.T) {
	roster := NewRoster()
	roster.Admit("c1", testIP, 6001)
	roster.Admit("c2", testIP, 6002)

	roster.Reset()

	if roster.Len() != 0 {
		t.Fatal("reset left records behind")
	}
	rec, _ := roster.Admit("c3", testIP, 6003)
	if rec.Name != "Client 1" {
		t.Fatalf("naming did not restart with the term: %q", rec.Name)
	}
}
