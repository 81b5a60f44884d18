package mesh

import "errors"

// ErrTableModeConflict indicates SetNodes and EnableDiscovery were both
// requested; spec §6 calls these "mutually exclusive modes".
var ErrTableModeConflict = errors.New("mesh: roster and discovery modes are mutually exclusive")

// PeerTable is the ordered collection of peer records (spec §4.B): either
// a fixed, pre-populated roster, or a fixed-capacity discovery buffer that
// fills in as new source addresses are observed. Grounded in shape on the
// teacher's unsolicited-session policy (unsolicited.go): an unknown, but
// policy-permitted, inbound source gets a record auto-created on first
// contact. Here the only policy is remaining capacity -- spec §4.B names
// no further admission check.
type PeerTable struct {
	nodes     []*Node
	discovery bool
}

// NewRosterTable builds a static table from addr, one Node per address.
// Addr entries of BroadcastAddr are rejected (spec §3 invariant: addr !=
// 0xFF for any peer that participates in traffic).
func NewRosterTable(addrs []byte) (*PeerTable, error) {
	nodes := make([]*Node, 0, len(addrs))
	for _, a := range addrs {
		if a == BroadcastAddr {
			return nil, ErrInvalidPeer
		}
		nodes = append(nodes, NewNode(a, nil))
	}
	return &PeerTable{nodes: nodes}, nil
}

// NewDiscoveryTable builds an empty table of the given capacity that
// fills in as unknown peers make first contact (spec §4.B discovery).
func NewDiscoveryTable(capacity int) *PeerTable {
	return &PeerTable{
		nodes:     make([]*Node, 0, capacity),
		discovery: true,
	}
}

// Len returns the number of populated peer slots.
func (t *PeerTable) Len() int {
	return len(t.nodes)
}

// At returns the peer at index i in table order, for scheduler scans.
func (t *PeerTable) At(i int) *Node {
	return t.nodes[i]
}

// Lookup finds the peer record for addr, or nil if none exists yet.
func (t *PeerTable) Lookup(addr byte) *Node {
	for _, n := range t.nodes {
		if n.Addr == addr {
			return n
		}
	}
	return nil
}

// Discover admits a new peer record for addr if the table is in discovery
// mode and has remaining capacity. Returns the new (or pre-existing)
// record, and ok=false if the frame that triggered discovery must be
// silently dropped (discovery disabled, or buffer full -- spec §4.B "No
// eviction; overflow causes silent drop").
func (t *PeerTable) Discover(addr byte) (*Node, bool) {
	if n := t.Lookup(addr); n != nil {
		return n, true
	}
	if !t.discovery || len(t.nodes) >= cap(t.nodes) {
		return nil, false
	}

	n := NewNode(addr, nil)
	t.nodes = append(t.nodes, n)
	return n, true
}
