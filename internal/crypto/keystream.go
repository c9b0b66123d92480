package crypto

import (
	"crypto/sha256"
	"crypto/sha512"
	"encoding/binary"
	"fmt"

	"golang.org/x/crypto/chacha20"
	"golang.org/x/crypto/salsa20/salsa"

	"github.com/TheMichaelB/vaultctl/internal/models"
)

const salsaBlockSize = 64

const errKeystreamDestroyed = "crypto: keystream used after Destroy"

// salsa20Nonce is the fixed nonce of the inner Salsa20 stream.
var salsa20Nonce = [8]byte{0xE8, 0x30, 0x09, 0x4B, 0x97, 0x20, 0x5D, 0x2A}

// Keystream is a single continuous cursor over cipher output. Successive
// calls return successive, non-overlapping segments.
type Keystream interface {
	// XOR combines the next len(buf) keystream bytes into buf in place.
	XOR(buf []byte)

	// Next returns the next n keystream bytes.
	Next(n int) []byte

	// Destroy zeroes the key material. A destroyed cipher keystream panics on use.
	Destroy()
}

// NewKeystream creates the inner stream cipher selected by id.
func NewKeystream(id models.InnerStreamID, streamKey []byte) (Keystream, error) {
	switch id {
	case models.InnerStreamNone:
		return nullKeystream{}, nil
	case models.InnerStreamSalsa20:
		return newSalsa20Keystream(streamKey), nil
	case models.InnerStreamChaCha20:
		return newChaCha20Keystream(streamKey)
	default:
		return nil, models.NewFormatError("header", id.String(), models.ErrUnsupportedStream)
	}
}

type nullKeystream struct{}

func (nullKeystream) XOR([]byte) {}

func (nullKeystream) Next(n int) []byte { return make([]byte, n) }

func (nullKeystream) Destroy() {}

// salsa20Keystream generates Salsa20 output one 64-byte block at a time.
type salsa20Keystream struct {
	key     [32]byte
	counter [16]byte // nonce || little-endian block counter
	block   [salsaBlockSize]byte
	pos     int

	destroyed bool
}

func newSalsa20Keystream(streamKey []byte) *salsa20Keystream {
	s := &salsa20Keystream{
		key: sha256.Sum256(streamKey),
		pos: salsaBlockSize,
	}
	copy(s.counter[:8], salsa20Nonce[:])
	return s
}

func (s *salsa20Keystream) refill() {
	var zero [salsaBlockSize]byte
	salsa.XORKeyStream(s.block[:], zero[:], &s.counter, &s.key)

	n := binary.LittleEndian.Uint64(s.counter[8:])
	binary.LittleEndian.PutUint64(s.counter[8:], n+1)
	s.pos = 0
}

func (s *salsa20Keystream) XOR(buf []byte) {
	if s.destroyed {
		panic(errKeystreamDestroyed)
	}
	for i := range buf {
		if s.pos == salsaBlockSize {
			s.refill()
		}
		buf[i] ^= s.block[s.pos]
		s.pos++
	}
}

func (s *salsa20Keystream) Next(n int) []byte {
	out := make([]byte, n)
	s.XOR(out)
	return out
}

func (s *salsa20Keystream) Destroy() {
	ClearBytes(s.key[:])
	ClearBytes(s.block[:])
	ClearBytes(s.counter[:])
	s.pos = salsaBlockSize
	s.destroyed = true
}

// chacha20Keystream derives key and nonce from SHA-512 of the stream key.
// The cipher keeps its own copy of the key, which Destroy can only release.
type chacha20Keystream struct {
	c *chacha20.Cipher
}

func newChaCha20Keystream(streamKey []byte) (*chacha20Keystream, error) {
	sum := sha512.Sum512(streamKey)
	defer ClearBytes(sum[:])

	c, err := chacha20.NewUnauthenticatedCipher(sum[:chacha20.KeySize], sum[chacha20.KeySize:chacha20.KeySize+chacha20.NonceSize])
	if err != nil {
		return nil, fmt.Errorf("create chacha20 keystream: %w", err)
	}
	return &chacha20Keystream{c: c}, nil
}

func (k *chacha20Keystream) XOR(buf []byte) {
	if k.c == nil {
		panic(errKeystreamDestroyed)
	}
	k.c.XORKeyStream(buf, buf)
}

func (k *chacha20Keystream) Next(n int) []byte {
	out := make([]byte, n)
	k.XOR(out)
	return out
}

func (k *chacha20Keystream) Destroy() {
	k.c = nil
}
