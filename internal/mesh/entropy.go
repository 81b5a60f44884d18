package mesh

import (
	"crypto/sha256"
	"fmt"
	"math/rand/v2"

	"golang.org/x/crypto/hkdf"
)

// RandomSource abstracts the radio driver's entropy bit (spec §6 "a
// random() entropy bit"). The mesh package depends only on this narrow
// interface -- not on the radio package -- to keep the dependency arrow
// pointing the way spec §2's table describes (engine drives receive;
// nothing in mesh imports radio).
type RandomSource interface {
	// RandomBit returns one bit of entropy from the radio's noise floor.
	RandomBit() bool
}

// seedBits is the number of sequential entropy bits folded into each half
// of the PCG seed pair, the same count the original firmware's init()
// (original_source/LoRaNet.cpp: 32 sequential LoRa.random() & 1 calls
// folded into a u32) uses for its single seed. seedFromRadio reads it
// twice, so 2*seedBits bits are consumed in total.
const seedBits = 32

// seedFromRadio reads seedBits sequential bits from src and folds them
// into a uint64 seed the same way the original accumulated its uint32
// seed: shift left, OR in the new bit. Two independent reads (one for
// each half of the PCG seed pair below) keep the full 64 bits of state
// seeded from the radio rather than padding with zero.
func seedFromRadio(src RandomSource) (hi, lo uint64) {
	for range seedBits {
		hi = hi<<1 | boolBit(src.RandomBit())
	}
	for range seedBits {
		lo = lo<<1 | boolBit(src.RandomBit())
	}
	return hi, lo
}

func boolBit(b bool) uint64 {
	if b {
		return 1
	}
	return 0
}

// entropy wraps a math/rand/v2 generator seeded from the radio's noise
// floor at Init time (spec §5: "The random source must be seeded from
// radio-noise bits or equivalent entropy at init"), used for IV seeds,
// handshake session ids, and scheduler jitter.
type entropy struct {
	rng *rand.Rand
}

// newEntropy seeds a PCG-based generator from src once, applying the
// original firmware's shift-and-OR bit accumulation to each seed half.
func newEntropy(src RandomSource) *entropy {
	hi, lo := seedFromRadio(src)
	return &entropy{rng: rand.New(rand.NewPCG(hi, lo))}
}

// sessionID fills a fresh 8-byte candidate session identifier (spec §4.C:
// "I picks a fresh 8-byte reset_session S from the random source").
func (e *entropy) sessionID() [sessionLen]byte {
	var s [sessionLen]byte
	for i := range s {
		s[i] = byte(e.rng.IntN(0x100))
	}
	return s
}

// ivSeed picks the 2 random bytes transmitted in the clear per outbound
// frame (spec §4.A "IV derivation").
func (e *entropy) ivSeed() [ivSeedLen]byte {
	var s [ivSeedLen]byte
	for i := range s {
		s[i] = byte(e.rng.IntN(0x100))
	}
	return s
}

// jitter returns a uniform value in [0, n) milliseconds, used by the reset
// scheduler's backoff formula (spec §4.D: "rand(0..5000)").
func (e *entropy) jitter(n int) int {
	if n <= 0 {
		return 0
	}
	return e.rng.IntN(n)
}

// DeriveKey binds the operator-supplied 16-byte site key to the site id
// via HKDF-SHA256, so the AES-CBC key actually loaded into the cipher is
// distinct per site even when two sites are misconfigured with the same
// root key, and the raw operator key never reaches the hot encrypt/decrypt
// path directly. This layers on top of (does not replace) the original
// firmware's fixed per-site key. Exported so offline tooling (loranetctl)
// can derive the same frame key a running engine would use.
func DeriveKey(siteKey, siteID []byte) ([]byte, error) {
	r := hkdf.New(sha256.New, siteKey, siteID, []byte("loranet frame key v1"))
	key := make([]byte, 16)
	if _, err := r.Read(key); err != nil {
		return nil, fmt.Errorf("mesh: derive frame key: %w", err)
	}
	return key, nil
}
