package crypto

import (
	"crypto/aes"
	"crypto/cipher"
	"errors"
	"fmt"
	"io"

	"github.com/google/uuid"
	"golang.org/x/crypto/chacha20"

	"github.com/TheMichaelB/vaultctl/internal/models"
)

// DefaultReadBufferSize is the ciphertext chunk read per refill.
const DefaultReadBufferSize = 64 * 1024

// NewPayloadReader returns a reader that decrypts r with the outer cipher.
// Malformed ciphertext is not detected here; it surfaces at the start-bytes check.
func NewPayloadReader(cipherID uuid.UUID, key *DerivedKey, r io.Reader, bufSize int) (io.Reader, error) {
	if key == nil || key.Key.Destroyed() {
		return nil, errors.New("payload key is not available")
	}
	if bufSize <= 0 {
		bufSize = DefaultReadBufferSize
	}

	switch cipherID {
	case models.CipherAES256:
		return newCBCReader(key.Key.Bytes(), key.IV, r, bufSize)
	case models.CipherChaCha20:
		c, err := chacha20.NewUnauthenticatedCipher(key.Key.Bytes(), key.IV)
		if err != nil {
			return nil, fmt.Errorf("create chacha20 cipher: %w", err)
		}
		return &cipher.StreamReader{S: c, R: r}, nil
	default:
		return nil, models.NewFormatError("payload", cipherID.String(), models.ErrUnsupportedCipher)
	}
}

// cbcReader decrypts AES-CBC ciphertext incrementally. The last complete
// block is held back until EOF so PKCS#7 padding can be removed.
type cbcReader struct {
	src     io.Reader
	mode    cipher.BlockMode
	chunk   []byte
	pending []byte // ciphertext not yet decrypted
	out     []byte // plaintext ready to serve
	err     error
}

func newCBCReader(key, iv []byte, r io.Reader, bufSize int) (*cbcReader, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("create cipher: %w", err)
	}
	if len(iv) != aes.BlockSize {
		return nil, fmt.Errorf("invalid iv size: expected %d, got %d", aes.BlockSize, len(iv))
	}
	if bufSize < aes.BlockSize {
		bufSize = aes.BlockSize
	}

	return &cbcReader{
		src:   r,
		mode:  cipher.NewCBCDecrypter(block, iv),
		chunk: make([]byte, bufSize),
	}, nil
}

func (c *cbcReader) Read(p []byte) (int, error) {
	for len(c.out) == 0 {
		if c.err != nil {
			return 0, c.err
		}
		c.fill()
	}

	n := copy(p, c.out)
	c.out = c.out[n:]
	return n, nil
}

func (c *cbcReader) fill() {
	n, err := c.src.Read(c.chunk)
	c.pending = append(c.pending, c.chunk[:n]...)

	eof := false
	switch {
	case err == io.EOF:
		eof = true
	case err != nil:
		c.err = err
		return
	}

	ready := len(c.pending) - len(c.pending)%aes.BlockSize
	if !eof && ready == len(c.pending) {
		ready -= aes.BlockSize
	}
	if ready <= 0 && !eof {
		return
	}
	if ready < 0 {
		ready = 0
	}

	plain := make([]byte, ready)
	c.mode.CryptBlocks(plain, c.pending[:ready])
	c.pending = append(c.pending[:0], c.pending[ready:]...)

	if eof {
		if len(c.pending) != 0 {
			c.err = models.NewFormatError("payload", "ciphertext is not a multiple of the block size", io.ErrUnexpectedEOF)
		} else {
			plain = unpad(plain)
			c.err = io.EOF
		}
	}
	c.out = plain
}

// unpad strips PKCS#7 padding. Invalid padding is left in place.
func unpad(b []byte) []byte {
	if len(b) == 0 {
		return b
	}
	pad := int(b[len(b)-1])
	if pad == 0 || pad > aes.BlockSize || pad > len(b) {
		return b
	}
	for _, v := range b[len(b)-pad:] {
		if int(v) != pad {
			return b
		}
	}
	return b[:len(b)-pad]
}
