package mesh

import (
	"errors"
	"fmt"
	"log/slog"
	"time"
)

// Radio is the engine's view of the driver contract (spec.md's "Radio
// driver requirements" now captured in §6 of this package's design notes).
// It is declared here, at the point of consumption, rather than imported
// from internal/radio: the dependency arrow runs from mesh to its
// collaborators, never back, so any type satisfying this method set --
// radio.MockRadio, radio.UDPRadio, or a future hardware driver -- works as
// an Engine's Radio without internal/radio ever needing to know mesh
// exists.
type Radio interface {
	RandomSource

	BeginPacket() bool
	Write(p []byte)
	EndPacket(async bool) error
	IsTransmitting() bool
	ParsePacket() int
	Read() (b byte, ok bool)
	PacketRSSI() int
	PacketSNR() float64
}

// MetricsReporter is the narrow observability capability the engine drives.
// Engine works with the no-op default when none is supplied; production
// wiring binds this to internal/metrics.Collector.
type MetricsReporter interface {
	FrameSent(msgType MsgType)
	FrameReceived(msgType MsgType)
	FrameDropped(reason string)
	HandshakeAttempt()
	HandshakeCompleted()
	DutyCycleExceeded(exceeded bool)
	PeerLinkUpdated(addr byte, rssi int32, snr float64)
}

type noopMetrics struct{}

func (noopMetrics) FrameSent(MsgType)                    {}
func (noopMetrics) FrameReceived(MsgType)                {}
func (noopMetrics) FrameDropped(string)                  {}
func (noopMetrics) HandshakeAttempt()                    {}
func (noopMetrics) HandshakeCompleted()                  {}
func (noopMetrics) DutyCycleExceeded(bool)               {}
func (noopMetrics) PeerLinkUpdated(byte, int32, float64) {}

// defaultDutyWindow/defaultDutyPermillage arm the governor with a
// conservative default until SetDutyCycle is called explicitly.
const (
	defaultDutyWindow     = 60 * time.Second
	defaultDutyPermillage = 10
)

// EngineOption configures optional Engine parameters, in the shape of the
// teacher's SessionOption functional-options pattern.
type EngineOption func(*Engine)

// WithLogger attaches a structured logger. A nil logger is ignored and
// the default discard logger remains in place.
func WithLogger(logger *slog.Logger) EngineOption {
	return func(e *Engine) {
		if logger != nil {
			e.logger = logger
		}
	}
}

// WithMetrics attaches a MetricsReporter. A nil reporter is ignored.
func WithMetrics(mr MetricsReporter) EngineOption {
	return func(e *Engine) {
		if mr != nil {
			e.metrics = mr
		}
	}
}

// Engine is the dispatcher: the process-wide instance that owns the
// radio, the peer table, the duty-cycle governor, and the reset
// scheduler, and drives them all from a single Process call (spec §4.F).
// It is not a forced singleton -- NewEngine returns a value the host
// owns -- but nothing about its design supports more than one live
// instance driving the same Radio concurrently (§5: "presumes no
// concurrent entry").
type Engine struct {
	radio Radio

	siteID    []byte
	key       []byte
	localAddr byte

	table *PeerTable
	duty  *DutyCycleGovernor
	sched *resetScheduler
	ent   *entropy

	logger  *slog.Logger
	metrics MetricsReporter
}

// NewEngine constructs an Engine bound to radio. Init must be called
// before Process or Send will do anything useful.
func NewEngine(r Radio, opts ...EngineOption) *Engine {
	e := &Engine{
		radio:     r,
		localAddr: BroadcastAddr,
		logger:    slog.Default(),
		metrics:   noopMetrics{},
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Init seeds the engine's entropy source from the radio's noise floor,
// derives the AES-128 frame key from the operator-supplied site key, and
// arms a default duty-cycle governor (spec §6 init, one-shot). key must
// be 16 bytes; siteID is copied and becomes the on-air site prefix.
func (e *Engine) Init(siteID, key []byte) error {
	if len(key) != 16 {
		return fmt.Errorf("mesh: site key must be 16 bytes, got %d", len(key))
	}

	derived, err := DeriveKey(key, siteID)
	if err != nil {
		return err
	}

	e.siteID = append([]byte(nil), siteID...)
	e.key = derived
	e.ent = newEntropy(e.radio)
	e.sched = newResetScheduler()
	e.duty = NewDutyCycleGovernor(defaultDutyWindow, defaultDutyPermillage, time.Now())

	e.logger = e.logger.With(slog.String("component", "mesh.engine"))
	return nil
}

// SetLocalAddr sets this unit's address. 0xFF is reserved and rejected.
func (e *Engine) SetLocalAddr(addr byte) error {
	if addr == BroadcastAddr {
		return ErrInvalidPeer
	}
	e.localAddr = addr
	return nil
}

// GetLocalAddr returns this unit's configured address.
func (e *Engine) GetLocalAddr() byte {
	return e.localAddr
}

// SetNodes installs a fixed roster. Mutually exclusive with
// EnableDiscovery; calling either a second time is an error.
func (e *Engine) SetNodes(addrs []byte) error {
	if e.table != nil {
		return ErrTableModeConflict
	}
	table, err := NewRosterTable(addrs)
	if err != nil {
		return err
	}
	e.table = table
	return nil
}

// EnableDiscovery installs a fixed-capacity discovery buffer. Mutually
// exclusive with SetNodes.
func (e *Engine) EnableDiscovery(capacity int) error {
	if e.table != nil {
		return ErrTableModeConflict
	}
	e.table = NewDiscoveryTable(capacity)
	return nil
}

// SetDutyCycle (re)configures the transmit-time budget (spec §4.E
// clamps). Safe to call again after Init to apply a reloaded config.
func (e *Engine) SetDutyCycle(window time.Duration, permillage int) {
	if e.duty == nil {
		e.duty = NewDutyCycleGovernor(window, permillage, time.Now())
		return
	}
	e.duty.Reconfigure(window, permillage)
}

// Table exposes the peer table for read-only inspection (metrics
// collection, admin tooling).
func (e *Engine) Table() *PeerTable {
	return e.table
}

// Process is the single entry point the host loop calls repeatedly (spec
// §4.F). Per tick, in order: duty governor, reset scheduler, receive
// path. No step blocks.
func (e *Engine) Process(now time.Time) {
	wasExceeded := e.duty.Exceeded()
	e.duty.Tick(now, e.radio.IsTransmitting())
	if e.duty.Exceeded() != wasExceeded {
		e.metrics.DutyCycleExceeded(e.duty.Exceeded())
	}

	e.sched.tick(now, e.table, e.ent, e.sendRST1)

	e.receive(now)
}

// Send wraps _send for application traffic to an already-established
// peer (spec §6 "Per peer: send(msg_type, data) wrapping _send").
func (e *Engine) Send(addr byte, msgType MsgType, data []byte) error {
	n := e.table.Lookup(addr)
	if n == nil {
		return ErrInvalidPeer
	}
	if !n.SessionSet() {
		return ErrNoSession
	}
	return e._send(n, n.session, msgType, n.counterSend, data)
}

// _send implements the generic send contract (spec §4.A): reject a
// reserved destination, a spent duty budget, or a busy radio; otherwise
// encode, encrypt, transmit, and advance counter_send. The wire counter
// value is always the caller's explicit argument -- handshake replies
// carry the message-specific challenge value from fsm.go, while RST_1
// and application sends carry the peer's current counter_send -- but
// counter_send itself only ever advances here, by exactly one, on every
// successful send regardless of what counter value went out on the wire.
func (e *Engine) _send(n *Node, session [sessionLen]byte, msgType MsgType, counter uint16, data []byte) error {
	if n.Addr == BroadcastAddr {
		return ErrInvalidPeer
	}
	if e.duty.Exceeded() {
		return ErrDutyCycleExceeded
	}
	if !e.radio.BeginPacket() {
		return ErrRadioBusy
	}

	plain := Plaintext{
		ToAddr:   n.Addr,
		FromAddr: e.localAddr,
		MsgType:  byte(msgType),
		Session:  session,
		Counter:  counter,
		Data:     data,
	}
	encoded, err := EncodePlaintext(plain)
	if err != nil {
		return fmt.Errorf("mesh: encode outbound frame: %w", err)
	}

	seed := e.ent.ivSeed()
	ciphertext, err := EncryptFrame(e.key, seed, encoded)
	if err != nil {
		return fmt.Errorf("mesh: encrypt outbound frame: %w", err)
	}

	e.radio.Write(BuildFrame(e.siteID, seed, ciphertext))
	if err := e.radio.EndPacket(true); err != nil {
		return fmt.Errorf("mesh: radio end packet: %w", err)
	}

	n.counterSend++
	if n.counterSend == 0 {
		n.scheduleImmediateReset()
	}

	e.metrics.FrameSent(msgType)
	return nil
}

// sendRST1 is the scheduler's send callback (spec §4.D step 5): session
// was just freshly generated by Node.beginRetry and already stashed in
// reset_session.
func (e *Engine) sendRST1(n *Node, session [sessionLen]byte) {
	if err := e._send(n, session, MsgRST1, n.counterSend, nil); err != nil {
		e.logger.Debug("rst1 send failed", slog.Int("peer", int(n.Addr)), slog.String("error", err.Error()))
		return
	}
	e.metrics.HandshakeAttempt()
}

// receive implements spec §4.A's receive contract followed by dispatch
// (spec §4.F step 3). recv() is non-blocking: if no frame is pending,
// this is a no-op.
func (e *Engine) receive(now time.Time) {
	n := e.radio.ParsePacket()
	if n == 0 {
		return
	}

	raw := make([]byte, 0, n)
	for {
		b, ok := e.radio.Read()
		if !ok {
			break
		}
		raw = append(raw, b)
	}

	seed, ciphertext, err := SplitFrame(e.siteID, raw)
	if err != nil {
		e.dropFrame(err)
		return
	}

	plainBytes, err := DecryptFrame(e.key, seed, ciphertext)
	if err != nil {
		e.dropFrame(err)
		return
	}

	p, err := DecodePlaintext(plainBytes)
	if err != nil {
		e.dropFrame(err)
		return
	}

	if p.ToAddr != e.localAddr {
		e.dropFrame(errNotLocalAddr)
		return
	}

	node, ok := e.table.Discover(p.FromAddr)
	if !ok {
		e.dropFrame(errDiscoveryDropped)
		return
	}

	node.updateLinkMetrics(e.radio.PacketRSSI(), e.radio.PacketSNR())
	rssi, snr := node.LinkMetrics()
	e.metrics.PeerLinkUpdated(node.Addr, rssi, snr)
	e.metrics.FrameReceived(MsgType(p.MsgType))

	switch mt := MsgType(p.MsgType); mt {
	case MsgRST1:
		e.handleRST1(node, p)
	case MsgRST2:
		e.handleRST2(node, p)
	case MsgRST3:
		e.handleRST3(node, p)
	case MsgRST4:
		e.handleRST4(node, p, now)
	default:
		e.handleAppMessage(node, mt, p)
	}
}

// handleRST1 is the responder's reaction to an inbound proposal (spec
// §4.C): stash the proposed session, then reply with the counter
// challenge derived from counter_recv.
func (e *Engine) handleRST1(n *Node, p Plaintext) {
	result := applyRST1()
	n.resetSession = p.Session

	challenge := challengeCounter(n.CounterRecv())
	data := []byte{byte(challenge >> 8), byte(challenge)}

	for _, action := range result.actions {
		if action == actionSendRST2 {
			if err := e._send(n, p.Session, MsgRST2, challenge, data); err != nil {
				e.logger.Debug("rst2 send failed", slog.Int("peer", int(n.Addr)), slog.String("error", err.Error()))
			}
		}
	}
}

// handleRST2 is the initiator's reaction (spec §4.C): adopt the echoed
// challenge as counter_send, raise counter_recv, and answer with RST_3.
func (e *Engine) handleRST2(n *Node, p Plaintext) {
	result := applyRST2(p.Session == n.resetSession, p.Counter, n.CounterRecv())
	if !result.accepted {
		e.dropFrame(fmt.Errorf("rst2 from %d: %w", n.Addr, ErrHandshakeMismatch))
		return
	}

	challenge := p.Counter
	n.counterSend = challenge
	n.counterRecv.Store(uint32(challenge))

	for _, action := range result.actions {
		if action == actionSendRST3 {
			if err := e._send(n, n.resetSession, MsgRST3, challenge, nil); err != nil {
				e.logger.Debug("rst3 send failed", slog.Int("peer", int(n.Addr)), slog.String("error", err.Error()))
			}
		}
	}
}

// handleRST3 is the responder's reaction (spec §4.C): recompute the
// challenge fresh from counter_recv, reply RST_4, and adopt the session.
func (e *Engine) handleRST3(n *Node, p Plaintext) {
	expected := challengeCounter(n.CounterRecv())
	result := applyRST3(p.Session == n.resetSession, p.Counter, expected)
	if !result.accepted {
		e.dropFrame(fmt.Errorf("rst3 from %d: %w", n.Addr, ErrHandshakeMismatch))
		return
	}

	for _, action := range result.actions {
		switch action {
		case actionSendRST4:
			if err := e._send(n, n.resetSession, MsgRST4, expected+1, nil); err != nil {
				e.logger.Debug("rst4 send failed", slog.Int("peer", int(n.Addr)), slog.String("error", err.Error()))
			}
		case actionAdoptSession:
			e.adoptSession(n, p.Counter)
		}
	}
}

// handleRST4 is the initiator's reaction (spec §4.C): adopt the session
// and nudge the scheduler to re-scan the table promptly.
func (e *Engine) handleRST4(n *Node, p Plaintext, now time.Time) {
	result := applyRST4(p.Session == n.resetSession, p.Counter, n.CounterRecv())
	if !result.accepted {
		e.dropFrame(fmt.Errorf("rst4 from %d: %w", n.Addr, ErrHandshakeMismatch))
		return
	}

	for _, action := range result.actions {
		switch action {
		case actionAdoptSession:
			e.adoptSession(n, p.Counter)
		case actionRescheduleTable:
			e.sched.rescheduleAfterHandshake(now)
		}
	}
}

func (e *Engine) adoptSession(n *Node, counterRecv uint16) {
	n.setSession(n.resetSession, counterRecv)
	n.callbacks.OnSessionReset()
	e.metrics.HandshakeCompleted()
}

// handleAppMessage implements spec §4.C's application-traffic validation:
// accepted iff the session matches and the counter strictly advances.
func (e *Engine) handleAppMessage(n *Node, mt MsgType, p Plaintext) {
	if !n.SessionSet() || p.Session != n.session {
		e.dropFrame(fmt.Errorf("app frame from %d: %w", n.Addr, ErrHandshakeMismatch))
		return
	}
	if !counterGreater(p.Counter, n.CounterRecv()) {
		e.dropFrame(fmt.Errorf("app frame from %d: %w", n.Addr, ErrHandshakeMismatch))
		return
	}

	n.counterRecv.Store(uint32(p.Counter))
	n.callbacks.ProcessMessage(mt, p.Data)
}

func (e *Engine) dropFrame(err error) {
	label := "handshake_mismatch"
	var de *decodeError
	if errors.As(err, &de) {
		label = de.Label()
	} else if !errors.Is(err, ErrHandshakeMismatch) {
		label = "unknown"
	}
	e.metrics.FrameDropped(label)
	e.logger.Debug("frame dropped", slog.String("reason", label), slog.String("detail", err.Error()))
}
