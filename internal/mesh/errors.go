package mesh

import "errors"

// Sentinel errors for Engine.Send and the frame decode path. All of these
// are handled locally -- nothing is ever propagated over the air (§7).
var (
	// ErrNoSession indicates a send was attempted before a successful
	// handshake established a session with the peer.
	ErrNoSession = errors.New("mesh: no session established with peer")

	// ErrInvalidPeer indicates an address that cannot be used as an
	// endpoint: the reserved 0xFF ("broadcast/none") given as a
	// destination, local address, or roster entry, or a Send destination
	// that is not in the peer table.
	ErrInvalidPeer = errors.New("mesh: invalid peer address (reserved 0xFF or not in peer table)")

	// ErrDutyCycleExceeded indicates the transmit-time budget for the
	// current duty-cycle window has been spent.
	ErrDutyCycleExceeded = errors.New("mesh: duty cycle budget exceeded")

	// ErrRadioBusy indicates the radio driver rejected BeginPacket.
	ErrRadioBusy = errors.New("mesh: radio rejected begin packet")

	// ErrDecodeFailure is the umbrella reason for a silently dropped
	// inbound frame: site mismatch, undersize ciphertext, CRC failure, or
	// an illegal address field. Wrapped with a more specific sentinel
	// below so metrics and logs can distinguish the cause.
	ErrDecodeFailure = errors.New("mesh: frame decode failed")

	// ErrHandshakeMismatch indicates an RST_k carried the wrong session id
	// or an unexpected counter value and was discarded.
	ErrHandshakeMismatch = errors.New("mesh: handshake session/counter mismatch")
)

// Decode-failure sub-reasons, each wrapping ErrDecodeFailure via errors.Is.
// The label is the stable short string used for metrics; msg is the prose
// detail appended to log lines.
var (
	errSiteMismatch     = wrapDecode("site_mismatch", "site id does not match")
	errUndersize        = wrapDecode("undersize", "ciphertext shorter than minimum frame")
	errCRCFailed        = wrapDecode("crc", "CRC-16 check failed")
	errIllegalAddress   = wrapDecode("illegal_address", "from/to address is 0xFF or from == to")
	errNotLocalAddr     = wrapDecode("not_local", "to address does not match local unit address")
	errDiscoveryDropped = wrapDecode("discovery_full", "discovery buffer full, frame dropped")
)

// decodeError binds one of the sub-reasons above to ErrDecodeFailure so
// callers can both errors.Is(err, ErrDecodeFailure) and distinguish the
// specific cause via its stable Label for metrics.
type decodeError struct {
	label string
	msg   string
}

func wrapDecode(label, msg string) *decodeError {
	return &decodeError{label: label, msg: msg}
}

func (e *decodeError) Error() string {
	return "mesh: frame decode failed: " + e.msg
}

func (e *decodeError) Unwrap() error {
	return ErrDecodeFailure
}

// Label returns the short, stable string used as a metrics label for
// decode failures (e.g. "site_mismatch", "crc").
func (e *decodeError) Label() string {
	return e.label
}
