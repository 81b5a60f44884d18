// udp.go: loopback UDP transport standing in for the SX127x driver during
// integration tests (spec §1 explicitly keeps the hardware driver out of
// scope, but a network-shaped stand-in lets test/integration exercise two
// full Engines across a real socket rather than an in-process channel).
// Grounded in shape on the teacher's netio.VXLANConn: a single UDP socket,
// a logger scoped with component/local fields, a mutex guarding only the
// closed flag, and RSSI/SNR reported to the engine the way a real radio
// would report last-packet link metrics.
package radio

import (
	"crypto/rand"
	"fmt"
	"log/slog"
	"net"
	"sync"
)

// udpBufSize bounds a single datagram; generously larger than
// MaxCiphertextLen since this adapter carries raw frame bytes.
const udpBufSize = 2048

// UDPRadio implements Radio over a UDP socket, one frame per datagram, for
// integration tests that want two independent engine processes (or
// goroutines) talking over a real socket instead of an in-memory channel.
// It does not simulate airtime: IsTransmitting always reports false once
// EndPacket returns, since UDP send is not a multi-tick burst.
type UDPRadio struct {
	conn   *net.UDPConn
	remote *net.UDPAddr
	logger *slog.Logger

	mu     sync.Mutex
	closed bool

	building []byte

	recv chan []byte

	pending    []byte
	pendingPos int

	rssi int
	snr  float64
}

// NewUDPRadio binds local and targets remote, starting a background
// goroutine that reads datagrams into a buffered channel so ParsePacket
// can stay non-blocking the way the mesh engine's tick loop requires.
func NewUDPRadio(local, remote string, logger *slog.Logger) (*UDPRadio, error) {
	laddr, err := net.ResolveUDPAddr("udp", local)
	if err != nil {
		return nil, fmt.Errorf("radio: resolve local %s: %w", local, err)
	}
	raddr, err := net.ResolveUDPAddr("udp", remote)
	if err != nil {
		return nil, fmt.Errorf("radio: resolve remote %s: %w", remote, err)
	}

	conn, err := net.ListenUDP("udp", laddr)
	if err != nil {
		return nil, fmt.Errorf("radio: listen %s: %w", local, err)
	}

	r := &UDPRadio{
		conn:   conn,
		remote: raddr,
		logger: logger.With(slog.String("component", "radio.udp"), slog.String("local", local)),
		recv:   make(chan []byte, 16),
		rssi:   -40,
		snr:    12,
	}
	go r.readLoop()
	return r, nil
}

func (r *UDPRadio) readLoop() {
	buf := make([]byte, udpBufSize)
	for {
		n, _, err := r.conn.ReadFromUDP(buf)
		if err != nil {
			r.mu.Lock()
			closed := r.closed
			r.mu.Unlock()
			if closed {
				return
			}
			r.logger.Warn("udp read failed", slog.String("error", err.Error()))
			continue
		}
		frame := make([]byte, n)
		copy(frame, buf[:n])
		select {
		case r.recv <- frame:
		default:
			r.logger.Warn("udp receive buffer full, dropping frame")
		}
	}
}

// Close releases the underlying socket.
func (r *UDPRadio) Close() error {
	r.mu.Lock()
	r.closed = true
	r.mu.Unlock()
	return r.conn.Close()
}

func (r *UDPRadio) BeginPacket() bool {
	r.building = r.building[:0]
	return true
}

func (r *UDPRadio) Write(p []byte) {
	r.building = append(r.building, p...)
}

func (r *UDPRadio) EndPacket(_ bool) error {
	_, err := r.conn.WriteToUDP(r.building, r.remote)
	if err != nil {
		return fmt.Errorf("radio: send to %s: %w", r.remote, err)
	}
	return nil
}

// IsTransmitting always reports false: a UDP send is not a multi-tick
// burst the way an actual LoRa transmission is.
func (r *UDPRadio) IsTransmitting() bool {
	return false
}

func (r *UDPRadio) ParsePacket() int {
	if r.pendingPos < len(r.pending) {
		return 0
	}
	select {
	case frame := <-r.recv:
		r.pending = frame
		r.pendingPos = 0
		return len(frame)
	default:
		return 0
	}
}

func (r *UDPRadio) Read() (byte, bool) {
	if r.pendingPos >= len(r.pending) {
		return 0, false
	}
	b := r.pending[r.pendingPos]
	r.pendingPos++
	return b, true
}

func (r *UDPRadio) PacketRSSI() int {
	return r.rssi
}

func (r *UDPRadio) PacketSNR() float64 {
	return r.snr
}

// RandomBit draws one bit from the process CSPRNG; a loopback adapter has
// no radio noise floor to sample.
func (r *UDPRadio) RandomBit() bool {
	var b [1]byte
	if _, err := rand.Read(b[:]); err != nil {
		return false
	}
	return b[0]&1 == 1
}
