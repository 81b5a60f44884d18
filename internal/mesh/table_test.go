package mesh_test

import (
	"errors"
	"testing"

	"github.com/loranet/loranet/internal/mesh"
)

func TestNewRosterTableRejectsBroadcastAddr(t *testing.T) {
	t.Parallel()

	_, err := mesh.NewRosterTable([]byte{0x01, mesh.BroadcastAddr, 0x02})
	if !errors.Is(err, mesh.ErrInvalidPeer) {
		t.Errorf("error = %v, want %v", err, mesh.ErrInvalidPeer)
	}
}

func TestRosterTableLookup(t *testing.T) {
	t.Parallel()

	table, err := mesh.NewRosterTable([]byte{0x01, 0x02, 0x03})
	if err != nil {
		t.Fatalf("NewRosterTable: %v", err)
	}

	if table.Len() != 3 {
		t.Fatalf("Len() = %d, want 3", table.Len())
	}
	if n := table.Lookup(0x02); n == nil || n.Addr != 0x02 {
		t.Errorf("Lookup(0x02) = %+v, want addr 0x02", n)
	}
	if n := table.Lookup(0x99); n != nil {
		t.Errorf("Lookup(0x99) = %+v, want nil", n)
	}
}

func TestRosterTableDiscoverDropsUnknownPeers(t *testing.T) {
	t.Parallel()

	table, err := mesh.NewRosterTable([]byte{0x01})
	if err != nil {
		t.Fatalf("NewRosterTable: %v", err)
	}

	if n, ok := table.Discover(0x01); !ok || n.Addr != 0x01 {
		t.Errorf("Discover(0x01) = %+v, %v, want known peer, true", n, ok)
	}
	if n, ok := table.Discover(0x02); ok || n != nil {
		t.Errorf("Discover(0x02) on a roster table = %+v, %v, want nil, false", n, ok)
	}
}

func TestDiscoveryTableAdmitsUpToCapacity(t *testing.T) {
	t.Parallel()

	table := mesh.NewDiscoveryTable(2)

	n1, ok := table.Discover(0x10)
	if !ok || n1 == nil {
		t.Fatalf("first Discover failed: %+v, %v", n1, ok)
	}
	n2, ok := table.Discover(0x20)
	if !ok || n2 == nil {
		t.Fatalf("second Discover failed: %+v, %v", n2, ok)
	}
	if table.Len() != 2 {
		t.Fatalf("Len() = %d, want 2", table.Len())
	}

	// Third distinct peer overflows capacity and is silently dropped.
	n3, ok := table.Discover(0x30)
	if ok || n3 != nil {
		t.Errorf("Discover beyond capacity = %+v, %v, want nil, false", n3, ok)
	}
	if table.Len() != 2 {
		t.Errorf("Len() after overflow = %d, want 2", table.Len())
	}

	// Re-discovering an already-admitted peer is idempotent, not a new slot.
	again, ok := table.Discover(0x10)
	if !ok || again != n1 {
		t.Errorf("re-Discover(0x10) = %+v, %v, want the original record, true", again, ok)
	}
}

func TestDiscoveryTableAtPreservesInsertionOrder(t *testing.T) {
	t.Parallel()

	table := mesh.NewDiscoveryTable(3)
	table.Discover(0x01)
	table.Discover(0x02)

	if table.At(0).Addr != 0x01 || table.At(1).Addr != 0x02 {
		t.Errorf("At() order = [%x %x], want [01 02]", table.At(0).Addr, table.At(1).Addr)
	}
}
