package mesh

// This file implements the session-reset handshake as a pure transition
// table, in the shape of a classic FSM-over-a-map: state + event -> new
// state + side effects the caller must execute. No Session dependency, no
// I/O -- trivially testable against spec §4.C in isolation.
//
// Message flow (I = initiator, R = responder, S = session id, C = counter
// challenge):
//
//	I -> R  RST_1  session=S                  counter=arbitrary
//	R -> I  RST_2  session=S, data=C           counter=R.counter_recv+1 (clamped)
//	I -> R  RST_3  session=S                   counter=C
//	R -> I  RST_4  session=S                   counter=C+1

// MsgType is the one-byte message type tag (spec §3). Values 0..3 are
// reserved for the handshake; 4..255 are application message types
// delivered upward unchanged.
type MsgType byte

const (
	MsgRST1 MsgType = 0
	MsgRST2 MsgType = 1
	MsgRST3 MsgType = 2
	MsgRST4 MsgType = 3

	// FirstAppMsgType is the lowest message type value available to the
	// application layer.
	FirstAppMsgType MsgType = 4
)

// IsHandshake reports whether mt is one of the reserved RST_1..RST_4 types.
func (mt MsgType) IsHandshake() bool {
	return mt <= MsgRST4
}

// handshakeRole distinguishes the two sides of an in-flight exchange.
type handshakeRole uint8

const (
	roleInitiator handshakeRole = iota
	roleResponder
)

// handshakeEvent is the pure-FSM input: which RST_k arrived.
type handshakeEvent uint8

const (
	eventRecvRST1 handshakeEvent = iota
	eventRecvRST2
	eventRecvRST3
	eventRecvRST4
)

// handshakeAction is a side effect the caller (Engine) must execute after
// a transition.
type handshakeAction uint8

const (
	// actionSendRST2 sends RST_2 with the challenge counter computed by
	// the caller from counter_recv.
	actionSendRST2 handshakeAction = iota + 1
	// actionSendRST3 sends RST_3 echoing the challenge counter.
	actionSendRST3
	// actionSendRST4 sends RST_4 with challenge+1.
	actionSendRST4
	// actionAdoptSession atomically adopts reset_session as session,
	// clears reset_session, sets reset_intvl to the disabled sentinel,
	// and invokes OnSessionReset.
	actionAdoptSession
	// actionRescheduleTable asks the scheduler to re-scan the peer table
	// after 1s, so peers queued behind this one get their turn (initiator
	// side only, spec §4.C).
	actionRescheduleTable
)

// handshakeResult is the outcome of applying a handshake event.
type handshakeResult struct {
	accepted bool
	actions  []handshakeAction
}

// rejected is the canonical "discard silently" result -- spec §4.C
// "Rejections" and §7 ErrHandshakeMismatch.
var rejected = handshakeResult{accepted: false}

// applyRST1 is the responder's reaction to an inbound RST_1 carrying
// sentSession. Spec §4.C: "copy S into reset_session (no further state
// change yet), send RST_2 with C." No rejection path exists for RST_1 --
// any proposal overwrites the in-flight candidate, including racing with
// a handshake the responder itself initiated (spec §9 open question:
// this race is not reconciled, intentionally preserved).
func applyRST1() handshakeResult {
	return handshakeResult{accepted: true, actions: []handshakeAction{actionSendRST2}}
}

// applyRST2 is the initiator's reaction to an inbound RST_2. sessionMatch
// reports whether sent_session == reset_session; recvCounter is the
// packet's counter field; priorCounterRecv is counter_recv before this
// packet. Spec §4.C: accept iff sessionMatch and recvCounter >
// priorCounterRecv.
func applyRST2(sessionMatch bool, recvCounter, priorCounterRecv uint16) handshakeResult {
	if !sessionMatch {
		return rejected
	}
	if !counterGreater(recvCounter, priorCounterRecv) {
		return rejected
	}
	return handshakeResult{accepted: true, actions: []handshakeAction{actionSendRST3}}
}

// applyRST3 is the responder's reaction to an inbound RST_3. sessionMatch
// is sent_session == reset_session; recvCounter is the packet's counter;
// expectedChallenge is C as computed from counter_recv at RST_1 time
// (recomputed fresh here per spec, since the responder does not persist
// C between RST_1 and RST_3). Spec §4.C: accept iff sessionMatch and
// recvCounter == expectedChallenge, then send RST_4 and adopt the session.
func applyRST3(sessionMatch bool, recvCounter, expectedChallenge uint16) handshakeResult {
	if !sessionMatch {
		return rejected
	}
	if recvCounter != expectedChallenge {
		return rejected
	}
	return handshakeResult{
		accepted: true,
		actions:  []handshakeAction{actionSendRST4, actionAdoptSession},
	}
}

// applyRST4 is the initiator's reaction to an inbound RST_4. sessionMatch
// is sent_session == reset_session; recvCounter is the packet's counter;
// priorCounterRecv is counter_recv as it stood after RST_2 processing.
// Spec §4.C: accept iff sessionMatch and recvCounter strictly greater than
// priorCounterRecv, then adopt the session and ask the scheduler to
// re-scan the table after 1s.
func applyRST4(sessionMatch bool, recvCounter, priorCounterRecv uint16) handshakeResult {
	if !sessionMatch {
		return rejected
	}
	if !counterGreater(recvCounter, priorCounterRecv) {
		return rejected
	}
	return handshakeResult{
		accepted: true,
		actions:  []handshakeAction{actionAdoptSession, actionRescheduleTable},
	}
}

// counterGreater reports whether a is strictly greater than b, without
// wraparound semantics -- spec §4.C's comparisons operate on the raw u16
// counter progression within a single handshake and are never expected to
// cross a wrap boundary (a wrap forces a fresh handshake first, spec §4.A
// send contract).
func counterGreater(a, b uint16) bool {
	return a > b
}

// challengeCounter computes C = (counterRecv + 1) mod 2^16, clamped to 0
// if it would land in (0xFFFB..=0xFFFF), reserving headroom from wrap
// (spec §4.C footnote).
func challengeCounter(counterRecv uint16) uint16 {
	c := counterRecv + 1
	if c > 0xFFFA {
		return 0
	}
	return c
}
