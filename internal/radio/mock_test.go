package radio_test

import (
	"testing"
	"time"

	"github.com/loranet/loranet/internal/radio"
)

func sendFrame(t *testing.T, r *radio.MockRadio, frame []byte) {
	t.Helper()
	if !r.BeginPacket() {
		t.Fatal("BeginPacket refused with a fresh radio")
	}
	r.Write(frame)
	if err := r.EndPacket(true); err != nil {
		t.Fatalf("EndPacket: %v", err)
	}
}

func recvFrame(t *testing.T, r *radio.MockRadio) []byte {
	t.Helper()
	n := r.ParsePacket()
	if n == 0 {
		t.Fatal("ParsePacket reported no pending frame")
	}
	out := make([]byte, 0, n)
	for {
		b, ok := r.Read()
		if !ok {
			break
		}
		out = append(out, b)
	}
	return out
}

func TestMockPairRoundTrip(t *testing.T) {
	t.Parallel()

	a, b := radio.NewMockPair(0)
	frame := []byte{0xDE, 0xAD, 0xBE, 0xEF}

	sendFrame(t, a, frame)

	got := recvFrame(t, b)
	if len(got) != len(frame) {
		t.Fatalf("received %d bytes, want %d", len(got), len(frame))
	}
	for i := range frame {
		if got[i] != frame[i] {
			t.Errorf("byte %d = %#02x, want %#02x", i, got[i], frame[i])
		}
	}

	// Nothing pending in the other direction.
	if n := b.ParsePacket(); n != 0 {
		t.Errorf("b.ParsePacket() after already draining = %d, want 0", n)
	}
}

func TestMockPairIsBidirectional(t *testing.T) {
	t.Parallel()

	a, b := radio.NewMockPair(0)

	sendFrame(t, a, []byte{0x01})
	sendFrame(t, b, []byte{0x02})

	if got := recvFrame(t, b); len(got) != 1 || got[0] != 0x01 {
		t.Errorf("b received %v, want [01]", got)
	}
	if got := recvFrame(t, a); len(got) != 1 || got[0] != 0x02 {
		t.Errorf("a received %v, want [02]", got)
	}
}

func TestMockRadioBusyWindowBlocksBeginPacket(t *testing.T) {
	t.Parallel()

	a, _ := radio.NewMockPair(time.Millisecond) // 1ms of simulated airtime per byte

	var now time.Time
	a.SetClock(func() time.Time { return now })

	now = time.Unix(0, 0)
	if !a.BeginPacket() {
		t.Fatal("BeginPacket refused on a fresh radio")
	}
	a.Write(make([]byte, 10)) // 10ms of simulated airtime
	if err := a.EndPacket(true); err != nil {
		t.Fatalf("EndPacket: %v", err)
	}

	if a.IsTransmitting() == false {
		t.Error("IsTransmitting() immediately after EndPacket = false, want true")
	}
	if a.BeginPacket() {
		t.Error("BeginPacket succeeded while the simulated radio should still be busy")
	}

	now = now.Add(11 * time.Millisecond)
	if a.IsTransmitting() {
		t.Error("IsTransmitting() after the busy window elapsed = true, want false")
	}
	if !a.BeginPacket() {
		t.Error("BeginPacket refused after the busy window elapsed")
	}
}

func TestMockRadioLinkMetrics(t *testing.T) {
	t.Parallel()

	a, b := radio.NewMockPair(0)
	b.SetLinkMetrics(-90, 2.5)

	sendFrame(t, a, []byte{0x01})
	recvFrame(t, b)

	if rssi := b.PacketRSSI(); rssi != -90 {
		t.Errorf("PacketRSSI() = %d, want -90", rssi)
	}
	if snr := b.PacketSNR(); snr != 2.5 {
		t.Errorf("PacketSNR() = %v, want 2.5", snr)
	}
}

func TestMockRadioRandomBitIsNotConstant(t *testing.T) {
	t.Parallel()

	a, _ := radio.NewMockPair(0)

	var bits []bool
	for i := 0; i < 16; i++ {
		bits = append(bits, a.RandomBit())
	}

	allSame := true
	for _, b := range bits {
		if b != bits[0] {
			allSame = false
			break
		}
	}
	if allSame {
		t.Error("16 consecutive RandomBit() calls returned the same value; seeding looks broken")
	}
}
