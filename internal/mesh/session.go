package mesh

import (
	"math"
	"sync/atomic"
	"time"
)

// ResetSchedule is the sum type spec §9 asks for in place of the original
// firmware's signed "nullable duration" sentinel: either no retry is
// scheduled (Disabled), or a retry is due once Interval has elapsed since
// reset_last.
type ResetSchedule struct {
	Disabled bool
	Interval time.Duration
}

// disabledSchedule is "do not retry" (spec §4.C: reset_intvl <- -1).
func disabledSchedule() ResetSchedule {
	return ResetSchedule{Disabled: true}
}

// scheduledIn is a retry due after d.
func scheduledIn(d time.Duration) ResetSchedule {
	if d < 0 {
		d = 0
	}
	return ResetSchedule{Interval: d}
}

// maxResetTrial is the saturation point for reset_trial (spec §3).
const maxResetTrial = 30

// Node is a peer record, one per reachable correspondent (spec §3).
type Node struct {
	// Addr is the remote unit address. 0xFF means "not yet known" and is
	// only ever observed in an unfilled discovery buffer slot.
	Addr byte

	// Session state.
	session      [sessionLen]byte
	sessionSet   atomic.Bool
	counterSend  uint16
	counterRecv  atomic.Uint32 // stores uint16 range; atomic for metrics reads

	// In-flight handshake state.
	resetSession [sessionLen]byte
	resetTrial   uint8
	resetLast    time.Time
	resetIntvl   ResetSchedule

	// Last-packet link metrics, updated on any accepted frame from this
	// peer. Exposed via atomics so the metrics collector can read them
	// from another goroutine without coordinating with Engine.Process.
	rssi atomic.Int32
	snr  atomic.Uint64 // math.Float64bits

	callbacks PeerCallbacks
}

// NewNode constructs a peer record for addr. cb may be nil, in which case
// notifications are silently dropped until SetCallbacks is called.
func NewNode(addr byte, cb PeerCallbacks) *Node {
	n := &Node{Addr: addr, callbacks: cb}
	if n.callbacks == nil {
		n.callbacks = noopCallbacks{}
	}
	return n
}

// SetCallbacks (re)binds the application capability for this peer.
func (n *Node) SetCallbacks(cb PeerCallbacks) {
	if cb == nil {
		cb = noopCallbacks{}
	}
	n.callbacks = cb
}

// SessionSet reports whether a live session is established with this peer.
func (n *Node) SessionSet() bool {
	return n.sessionSet.Load()
}

// CounterRecv returns the highest inbound counter accepted so far.
func (n *Node) CounterRecv() uint16 {
	return uint16(n.counterRecv.Load())
}

// CounterSend returns the next outbound packet counter value. Only safe
// to read from the Engine.Process goroutine (the field is not atomic:
// it is written on every send).
func (n *Node) CounterSend() uint16 {
	return n.counterSend
}

// ResetTrial returns the number of consecutive unanswered handshake
// attempts.
func (n *Node) ResetTrial() uint8 {
	return n.resetTrial
}

// LinkMetrics returns the last observed RSSI/SNR for this peer.
func (n *Node) LinkMetrics() (rssi int32, snr float64) {
	return n.rssi.Load(), math.Float64frombits(n.snr.Load())
}

// updateLinkMetrics records RSSI/SNR from an accepted frame.
func (n *Node) updateLinkMetrics(rssi int, snr float64) {
	n.rssi.Store(int32(rssi))
	n.snr.Store(math.Float64bits(snr))
}

// setSession atomically adopts a newly completed handshake's session id
// and counter_recv, per spec §4.C's adoption step, and clears the
// in-flight candidate.
func (n *Node) setSession(session [sessionLen]byte, counterRecv uint16) {
	n.session = session
	n.sessionSet.Store(true)
	n.counterRecv.Store(uint32(counterRecv))
	n.resetSession = [sessionLen]byte{}
	n.resetIntvl = disabledSchedule()
}

// dueForRetry reports whether this peer is eligible for the scheduler to
// initiate (or re-initiate) a handshake at time now (spec §4.D step: "addr
// != 0xFF and reset_intvl >= 0 and now - reset_last >= reset_intvl").
func (n *Node) dueForRetry(now time.Time) bool {
	if n.Addr == BroadcastAddr {
		return false
	}
	if n.resetIntvl.Disabled {
		return false
	}
	return now.Sub(n.resetLast) >= n.resetIntvl.Interval
}

// beginRetry records a new handshake attempt: advances reset_trial (with
// saturation), sets the next backoff interval, stamps reset_last, and
// returns a fresh candidate session id (spec §4.D steps 1-4).
func (n *Node) beginRetry(now time.Time, e *entropy) [sessionLen]byte {
	n.resetLast = now
	n.resetIntvl = scheduledIn(time.Duration(int(n.resetTrial)*5000+e.jitter(5000)) * time.Millisecond)
	if n.resetTrial < maxResetTrial {
		n.resetTrial++
	}
	n.resetSession = e.sessionID()
	return n.resetSession
}

// scheduleImmediateReset arms a peer for an immediate handshake attempt on
// the next scheduler tick -- used after a counter_send wrap (spec §4.A
// send contract). A freshly constructed Node needs no call: its zero-value
// schedule is already due.
func (n *Node) scheduleImmediateReset() {
	n.resetTrial = 0
	n.resetIntvl = scheduledIn(0)
}
