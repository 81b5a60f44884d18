package radio

import (
	"math/rand/v2"
	"sync"
	"time"
)

// MockRadio is an in-process Radio implementation connected to a peer
// MockRadio by buffered channels, used for deterministic engine tests and
// for local demonstration without hardware. Grounded in shape on the
// teacher's MockPacketConn (internal/netio/mock_test.go): an injectable,
// mutex-guarded fake that records what was written and lets the test
// script what gets read back.
type MockRadio struct {
	mu sync.Mutex

	name string
	now  func() time.Time

	// outbox is where EndPacket delivers the assembled frame; inbox is
	// where ParsePacket reads one back. NewMockPair cross-wires a pair so
	// one radio's outbox is the other's inbox.
	outbox chan []byte
	inbox  chan []byte

	// building accumulates bytes between BeginPacket and EndPacket.
	building []byte
	began    bool

	// pending is the frame currently being read out via ParsePacket/Read.
	pending    []byte
	pendingPos int

	// bytePeriod is the simulated on-air time per byte, used to drive
	// IsTransmitting for duty-cycle governor tests.
	bytePeriod time.Duration
	busyUntil  time.Time

	rssi int
	snr  float64

	rng *rand.Rand
}

// NewMockPair builds two MockRadios wired to each other: bytes written by
// a's EndPacket become the next frame b.ParsePacket reports, and vice
// versa. bytePeriod simulates on-air time per byte for duty-cycle tests;
// pass 0 for instantaneous (IsTransmitting never observably true).
func NewMockPair(bytePeriod time.Duration) (a, b *MockRadio) {
	aToB := make(chan []byte, 8)
	bToA := make(chan []byte, 8)

	a = newMockRadio("a", aToB, bToA, bytePeriod)
	b = newMockRadio("b", bToA, aToB, bytePeriod)
	return a, b
}

func newMockRadio(name string, out, in chan []byte, bytePeriod time.Duration) *MockRadio {
	return &MockRadio{
		name:       name,
		now:        time.Now,
		outbox:     out,
		inbox:      in,
		bytePeriod: bytePeriod,
		rssi:       -60,
		snr:        9.5,
		rng:        rand.New(rand.NewPCG(uint64(len(name)), 0xC0FFEE)),
	}
}

// SetClock overrides the time source (tests wanting deterministic airtime
// accounting should supply a controllable clock).
func (r *MockRadio) SetClock(now func() time.Time) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.now = now
}

// SetLinkMetrics overrides the RSSI/SNR reported for subsequently parsed
// packets.
func (r *MockRadio) SetLinkMetrics(rssi int, snr float64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.rssi = rssi
	r.snr = snr
}

func (r *MockRadio) BeginPacket() bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.now().Before(r.busyUntil) {
		return false
	}
	r.began = true
	r.building = r.building[:0]
	return true
}

func (r *MockRadio) Write(p []byte) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.building = append(r.building, p...)
}

func (r *MockRadio) EndPacket(_ bool) error {
	r.mu.Lock()
	frame := append([]byte(nil), r.building...)
	r.began = false
	r.busyUntil = r.now().Add(time.Duration(len(frame)) * r.bytePeriod)
	r.mu.Unlock()

	select {
	case r.outbox <- frame:
	default:
		// Outbox full: drop, same as a real radio losing a frame to
		// interference -- the protocol layer's handshake retries cover it.
	}
	return nil
}

func (r *MockRadio) IsTransmitting() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.now().Before(r.busyUntil)
}

func (r *MockRadio) ParsePacket() int {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.pendingPos < len(r.pending) {
		return 0 // previous frame not yet fully drained
	}

	select {
	case frame := <-r.inbox:
		r.pending = frame
		r.pendingPos = 0
		return len(frame)
	default:
		return 0
	}
}

func (r *MockRadio) Read() (byte, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.pendingPos >= len(r.pending) {
		return 0, false
	}
	b := r.pending[r.pendingPos]
	r.pendingPos++
	return b, true
}

func (r *MockRadio) PacketRSSI() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.rssi
}

func (r *MockRadio) PacketSNR() float64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.snr
}

func (r *MockRadio) RandomBit() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.rng.IntN(2) == 1
}
