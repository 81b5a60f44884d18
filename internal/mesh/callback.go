package mesh

// PeerCallbacks is the application-layer capability a peer is registered
// with (spec §4.G). The engine is polymorphic over this interface --
// distinct peers may supply distinct implementations, injected at
// registration time (spec §9's "capability interface... injected when
// peers are registered"), the same way the teacher's StateCallback is a
// function value handed to the manager rather than a hard dependency.
type PeerCallbacks interface {
	// OnSessionReset is invoked once a handshake completes, whether this
	// node acted as initiator or responder.
	OnSessionReset()

	// ProcessMessage delivers an authenticated, in-order, non-handshake
	// payload upward.
	ProcessMessage(msgType MsgType, data []byte)
}

// noopCallbacks is used for peer slots that have not yet been assigned an
// application handler (e.g. a freshly discovered, not-yet-configured
// peer). It silently drops notifications rather than requiring every
// caller to nil-check.
type noopCallbacks struct{}

func (noopCallbacks) OnSessionReset() {}

func (noopCallbacks) ProcessMessage(_ MsgType, _ []byte) {}
