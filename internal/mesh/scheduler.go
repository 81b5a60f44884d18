package mesh

import "time"

// Scheduler-wide pacing constants (spec §4.D).
const (
	// schedulerFoundIntvl is the scheduler-wide wake interval after a
	// candidate was found and a handshake initiated this scan.
	schedulerFoundIntvl = 5000 * time.Millisecond

	// schedulerIdleIntvl is the scheduler-wide wake interval after a scan
	// finds no candidate.
	schedulerIdleIntvl = 2000 * time.Millisecond

	// schedulerPostHandshakeIntvl is the wake interval the initiator side
	// arms after completing a handshake (spec §4.C), so peers queued
	// behind the one that just finished get a prompt turn.
	schedulerPostHandshakeIntvl = 1000 * time.Millisecond
)

// resetScheduler decides when to (re)initiate a handshake against each
// peer in the table, in table order, one handshake per tick at most
// (spec §4.D). It holds the scheduler-wide pacing value -- distinct from
// any single peer's reset_intvl.
type resetScheduler struct {
	wakeAt    time.Time
	wakeIntvl time.Duration
}

// newResetScheduler starts the scheduler armed to fire on the very next
// tick (spec's original firmware initializes reset_intvl to 0 at Init).
func newResetScheduler() *resetScheduler {
	return &resetScheduler{}
}

// tick scans table for the first due peer, arms its handshake, and sends
// RST_1 via send. Returns true if a handshake was initiated this tick.
func (s *resetScheduler) tick(now time.Time, table *PeerTable, e *entropy, send func(n *Node, session [sessionLen]byte)) bool {
	if now.Sub(s.wakeAt) < s.wakeIntvl {
		return false
	}
	s.wakeAt = now

	for i := 0; i < table.Len(); i++ {
		n := table.At(i)
		if !n.dueForRetry(now) {
			continue
		}

		session := n.beginRetry(now, e)
		s.wakeIntvl = schedulerFoundIntvl
		send(n, session)
		return true
	}

	s.wakeIntvl = schedulerIdleIntvl
	return false
}

// rescheduleAfterHandshake re-arms the scheduler-wide pacing value so a
// peer table scan resumes promptly after a handshake completes (spec
// §4.C initiator-side actionRescheduleTable).
func (s *resetScheduler) rescheduleAfterHandshake(now time.Time) {
	s.wakeAt = now
	s.wakeIntvl = schedulerPostHandshakeIntvl
}
