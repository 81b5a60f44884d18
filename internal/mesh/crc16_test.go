package mesh

import "testing"

// Known CRC-16/CCITT-FALSE vectors (poly 0x1021, init 0xFFFF).
func TestCRC16KnownVectors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		in   []byte
		want uint16
	}{
		{"empty", nil, 0xFFFF},
		{"ascii 123456789", []byte("123456789"), 0x29B1},
		{"single zero byte", []byte{0x00}, 0xE1F0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := crc16(tt.in); got != tt.want {
				t.Errorf("crc16(%x) = %#04x, want %#04x", tt.in, got, tt.want)
			}
		})
	}
}

func TestCRC16DetectsSingleBitFlip(t *testing.T) {
	t.Parallel()

	buf := []byte{0x01, 0x02, 0x03, 0x04, 0x05}
	want := crc16(buf)

	for i := range buf {
		for bit := 0; bit < 8; bit++ {
			flipped := append([]byte(nil), buf...)
			flipped[i] ^= 1 << bit
			if crc16(flipped) == want {
				t.Errorf("crc16 missed single-bit flip at byte %d bit %d", i, bit)
			}
		}
	}
}
