package radio_test

import (
	"log/slog"
	"testing"
	"time"

	"go.uber.org/goleak"

	"github.com/loranet/loranet/internal/radio"
)

// TestMain verifies that UDPRadio's background readLoop goroutine always
// exits once Close is called; a leak here would mean the daemon leaks one
// goroutine per radio restart.
func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(discardWriter{}, nil))
}

type discardWriter struct{}

func (discardWriter) Write(p []byte) (int, error) { return len(p), nil }

func TestUDPRadioRoundTrip(t *testing.T) {
	t.Parallel()

	logger := discardLogger()
	const addrA, addrB = "127.0.0.1:18281", "127.0.0.1:18282"

	a, err := radio.NewUDPRadio(addrA, addrB, logger)
	if err != nil {
		t.Fatalf("NewUDPRadio (a): %v", err)
	}
	defer a.Close()

	b, err := radio.NewUDPRadio(addrB, addrA, logger)
	if err != nil {
		t.Fatalf("NewUDPRadio (b): %v", err)
	}
	defer b.Close()

	if !a.BeginPacket() {
		t.Fatal("BeginPacket refused")
	}
	a.Write([]byte{0xCA, 0xFE})
	if err := a.EndPacket(true); err != nil {
		t.Fatalf("EndPacket: %v", err)
	}

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if n := b.ParsePacket(); n > 0 {
			got := make([]byte, 0, n)
			for {
				bb, ok := b.Read()
				if !ok {
					break
				}
				got = append(got, bb)
			}
			if len(got) != 2 || got[0] != 0xCA || got[1] != 0xFE {
				t.Fatalf("received %x, want cafe", got)
			}
			return
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatal("timed out waiting for the datagram to arrive")
}

func TestUDPRadioCloseStopsReadLoop(t *testing.T) {
	t.Parallel()

	r, err := radio.NewUDPRadio("127.0.0.1:0", "127.0.0.1:0", discardLogger())
	if err != nil {
		t.Fatalf("NewUDPRadio: %v", err)
	}
	if err := r.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	// If readLoop kept retrying after Close instead of returning, its
	// goroutine would outlive the test; goleak's TestMain catches any
	// leaked readLoop goroutine for every test in this package.
}
