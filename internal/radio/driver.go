// Package radio defines the external LoRa radio driver contract (spec §6
// "Radio driver requirements") and provides two concrete, non-hardware
// implementations used for local demonstration and deterministic testing.
// The real hardware driver (SPI/UART to an SX127x-class transceiver) is
// explicitly out of scope per spec §1; this package only owns the
// boundary interface and the test doubles standing in for it.
package radio

// Radio is the external collaborator the mesh engine drives every tick
// (spec §6): begin/end-packet semantics (there is no abort operation; a
// packet begun with BeginPacket is only ever finished by EndPacket), a
// byte-stream write, a
// non-blocking parse of a pending inbound packet, sequential read, the
// transmitting signal the duty-cycle governor edge-triggers on, last-
// packet link metrics, and one bit of entropy per call.
type Radio interface {
	// BeginPacket prepares the radio to transmit, returning false if the
	// radio is busy or otherwise refuses (spec §7 ErrRadioBusy).
	BeginPacket() bool

	// Write appends bytes to the packet being assembled since BeginPacket.
	Write(p []byte)

	// EndPacket transmits the assembled packet. async selects whether the
	// call returns immediately (radio transmits in the background, status
	// observable via IsTransmitting) or blocks until done.
	EndPacket(async bool) error

	// IsTransmitting reports whether the radio is currently mid-burst.
	// The duty-cycle governor polls this every tick and reacts to edges.
	IsTransmitting() bool

	// ParsePacket is a non-blocking check for a pending inbound frame; it
	// returns the frame length, or 0 if none is pending.
	ParsePacket() int

	// Read consumes the next byte of the frame most recently reported by
	// ParsePacket. ok is false once the frame is exhausted.
	Read() (b byte, ok bool)

	// PacketRSSI returns the received signal strength of the last parsed
	// packet, in dBm.
	PacketRSSI() int

	// PacketSNR returns the signal-to-noise ratio of the last parsed
	// packet, in dB.
	PacketSNR() float64

	// RandomBit returns one bit of entropy sampled from the radio's noise
	// floor, used to seed the engine's PRNG at Init (spec §5).
	RandomBit() bool
}
