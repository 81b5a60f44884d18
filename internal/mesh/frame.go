package mesh

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/subtle"
	"fmt"
)

// -------------------------------------------------------------------------
// On-air layout constants -- spec §4.A / §6.
// -------------------------------------------------------------------------

const (
	// headerLen is the fixed portion of the plaintext record before the
	// variable-length data: to_addr, from_addr, msg_type, session[8],
	// counter[2], data_len.
	headerLen = 14

	// crcLen is the CRC-16 trailer appended after the data field.
	crcLen = 2

	// sessionLen is the width of the session identifier field.
	sessionLen = 8

	// maxDataLen is the largest legal data_len value (one byte, so 255).
	maxDataLen = 255

	// MaxPlaintextLen bounds the plaintext record: header + max data + CRC.
	// Matches spec §9's guidance for a buffer "sized to the maximum legal
	// frame".
	MaxPlaintextLen = headerLen + maxDataLen + crcLen

	// aesBlockLen is the AES block size used for CBC padding.
	aesBlockLen = aes.BlockSize

	// MaxCiphertextLen bounds the padded ciphertext.
	MaxCiphertextLen = MaxPlaintextLen + aesBlockLen

	// ivSeedLen is the width of the random, in-the-clear IV seed.
	ivSeedLen = 2

	// minCiphertextLen is the minimum ciphertext length accepted on
	// receive (spec §4.A receive contract, check (b)).
	minCiphertextLen = 15

	// BroadcastAddr is the reserved "not yet known" / illegal-endpoint
	// address value (spec §3).
	BroadcastAddr byte = 0xFF
)

// Plaintext is a decoded on-air plaintext record (spec §4.A).
type Plaintext struct {
	ToAddr   byte
	FromAddr byte
	MsgType  byte
	Session  [sessionLen]byte
	Counter  uint16
	Data     []byte
}

// encodedLen returns the length of the plaintext record for this payload,
// before CRC and before AES padding: headerLen + len(data) + crcLen.
func encodedLen(dataLen int) int {
	return headerLen + dataLen + crcLen
}

// EncodePlaintext serializes p into the on-wire plaintext record layout
// (spec §4.A), appending the CRC-16 over bytes [0, headerLen+len(data)).
// len(p.Data) must not exceed maxDataLen.
func EncodePlaintext(p Plaintext) ([]byte, error) {
	if len(p.Data) > maxDataLen {
		return nil, fmt.Errorf("mesh: data length %d exceeds maximum %d", len(p.Data), maxDataLen)
	}

	buf := make([]byte, encodedLen(len(p.Data)))
	buf[0] = p.ToAddr
	buf[1] = p.FromAddr
	buf[2] = p.MsgType
	copy(buf[3:3+sessionLen], p.Session[:])
	buf[11] = byte(p.Counter >> 8)
	buf[12] = byte(p.Counter)
	buf[13] = byte(len(p.Data))
	copy(buf[headerLen:headerLen+len(p.Data)], p.Data)

	crc := crc16(buf[:headerLen+len(p.Data)])
	buf[len(buf)-2] = byte(crc >> 8)
	buf[len(buf)-1] = byte(crc)

	return buf, nil
}

// DecodePlaintext parses a plaintext record previously produced by
// EncodePlaintext (or an equivalent peer), validating the CRC and the
// address legality checks from spec §4.A's receive contract: (c) CRC
// verifies, (d) from_addr != 0xFF, to_addr != 0xFF, from_addr != to_addr.
// The (e) to_addr == local_addr and (b) undersize checks are the caller's
// responsibility (they depend on engine-level state not available here).
func DecodePlaintext(buf []byte) (Plaintext, error) {
	if len(buf) < headerLen+crcLen {
		return Plaintext{}, errUndersize
	}

	dataLen := int(buf[13])
	want := encodedLen(dataLen)
	if len(buf) < want {
		return Plaintext{}, errUndersize
	}

	gotCRC := uint16(buf[want-2])<<8 | uint16(buf[want-1])
	wantCRC := crc16(buf[:want-crcLen])
	if subtle.ConstantTimeEq(int32(gotCRC), int32(wantCRC)) != 1 {
		return Plaintext{}, errCRCFailed
	}

	p := Plaintext{
		ToAddr:   buf[0],
		FromAddr: buf[1],
		MsgType:  buf[2],
	}
	copy(p.Session[:], buf[3:3+sessionLen])
	p.Counter = uint16(buf[11])<<8 | uint16(buf[12])
	if dataLen > 0 {
		p.Data = append([]byte(nil), buf[headerLen:headerLen+dataLen]...)
	}

	if p.FromAddr == BroadcastAddr || p.ToAddr == BroadcastAddr || p.FromAddr == p.ToAddr {
		return Plaintext{}, errIllegalAddress
	}

	return p, nil
}

// expandIV repeats the 2-byte IV seed 8 times to build the 16-byte AES-CBC
// initialization vector (spec §4.A "IV derivation"). This saves 14 airtime
// bytes per frame versus transmitting a full-width random IV; the shared
// site-wide key means the IV only needs to defeat keystream reuse within a
// single CBC chain, which the counter and CRC inside the ciphertext cover
// for replay and tampering. Preserved bit-for-bit for interoperability.
func expandIV(seed [ivSeedLen]byte) []byte {
	iv := make([]byte, aesBlockLen)
	for i := 0; i < aesBlockLen; i += ivSeedLen {
		copy(iv[i:i+ivSeedLen], seed[:])
	}
	return iv
}

// padZero pads buf to a multiple of aesBlockLen. Spec §4.A allows arbitrary
// pad bytes (the authoritative length lives inside the ciphertext via
// data_len + CRC), so zero padding is used rather than a self-describing
// scheme such as PKCS#7.
func padZero(buf []byte) []byte {
	padded := len(buf) + aesBlockLen - len(buf)%aesBlockLen
	out := make([]byte, padded)
	copy(out, buf)
	return out
}

// EncryptFrame encrypts a plaintext record under AES-128-CBC with the IV
// derived from seed, per spec §4.A/§6.
func EncryptFrame(key []byte, seed [ivSeedLen]byte, plaintext []byte) ([]byte, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("mesh: aes cipher init: %w", err)
	}

	padded := padZero(plaintext)
	out := make([]byte, len(padded))
	cipher.NewCBCEncrypter(block, expandIV(seed)).CryptBlocks(out, padded)

	return out, nil
}

// DecryptFrame reverses EncryptFrame. ciphertext must be a multiple of the
// AES block size; the caller recovers the true plaintext length from the
// decoded data_len + CRC trailer, so any padding bytes beyond that are
// ignored.
func DecryptFrame(key []byte, seed [ivSeedLen]byte, ciphertext []byte) ([]byte, error) {
	if len(ciphertext)%aesBlockLen != 0 || len(ciphertext) == 0 {
		return nil, errUndersize
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("mesh: aes cipher init: %w", err)
	}

	out := make([]byte, len(ciphertext))
	cipher.NewCBCDecrypter(block, expandIV(seed)).CryptBlocks(out, ciphertext)

	return out, nil
}

// BuildFrame assembles the full on-air byte sequence: site id, IV seed in
// the clear, then ciphertext (spec §6).
func BuildFrame(siteID []byte, seed [ivSeedLen]byte, ciphertext []byte) []byte {
	frame := make([]byte, 0, len(siteID)+ivSeedLen+len(ciphertext))
	frame = append(frame, siteID...)
	frame = append(frame, seed[:]...)
	frame = append(frame, ciphertext...)
	return frame
}

// SplitFrame strips and validates the site-id prefix from a received byte
// sequence, returning the IV seed and ciphertext. Returns errSiteMismatch
// if the prefix does not match, or errUndersize if what remains is shorter
// than the minimum legal ciphertext (spec §4.A checks (a) and (b)).
func SplitFrame(siteID []byte, raw []byte) (seed [ivSeedLen]byte, ciphertext []byte, err error) {
	if len(raw) < len(siteID)+ivSeedLen {
		return seed, nil, errUndersize
	}
	if subtle.ConstantTimeCompare(raw[:len(siteID)], siteID) != 1 {
		return seed, nil, errSiteMismatch
	}

	copy(seed[:], raw[len(siteID):len(siteID)+ivSeedLen])
	ciphertext = raw[len(siteID)+ivSeedLen:]
	if len(ciphertext) < minCiphertextLen {
		return seed, nil, errUndersize
	}

	return seed, ciphertext, nil
}
