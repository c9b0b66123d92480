package crypto

import (
	"context"
	"crypto/aes"
	"crypto/sha256"
	"fmt"

	"github.com/TheMichaelB/vaultctl/internal/models"
)

// roundsPerCheck is how many transform rounds run between context checks.
const roundsPerCheck = 1 << 16

// Credentials hold the composite key derived from a password.
type Credentials struct {
	composite *SecureBytes
}

// NewPasswordCredentials computes the composite key SHA-256(SHA-256(password)).
// The password slice is not retained; the caller may clear it afterwards.
func NewPasswordCredentials(password []byte) *Credentials {
	inner := sha256.Sum256(password)
	outer := sha256.Sum256(inner[:])

	composite := NewSecureBytes(sha256.Size)
	copy(composite.Bytes(), outer[:])

	ClearBytes(inner[:])
	ClearBytes(outer[:])

	return &Credentials{composite: composite}
}

// Destroy zeroes the composite key.
func (c *Credentials) Destroy() {
	if c == nil {
		return
	}
	c.composite.Destroy()
}

// Destroyed reports whether the credentials have been consumed.
func (c *Credentials) Destroyed() bool {
	return c == nil || c.composite.Destroyed()
}

// KeyParams carries the header material mixed into the final key.
type KeyParams struct {
	MasterSeed      []byte
	TransformSeed   []byte
	TransformRounds uint64
	IV              []byte
}

// KeyParamsFromHeader extracts the key derivation inputs from a parsed header.
func KeyParamsFromHeader(h *models.Header) KeyParams {
	return KeyParams{
		MasterSeed:      h.MasterSeed,
		TransformSeed:   h.TransformSeed,
		TransformRounds: h.TransformRounds,
		IV:              h.EncryptionIV,
	}
}

// DerivedKey is the final payload key and IV.
type DerivedKey struct {
	Key *SecureBytes
	IV  []byte
}

// Destroy zeroes the key.
func (k *DerivedKey) Destroy() {
	if k == nil {
		return
	}
	k.Key.Destroy()
}

// DeriveKey turns credentials and header parameters into the payload key.
// The output is deterministic for identical inputs. The only errors are
// cancellation and malformed seeds.
func DeriveKey(ctx context.Context, creds *Credentials, params KeyParams) (*DerivedKey, error) {
	if creds.Destroyed() {
		return nil, models.ErrCredentialsConsumed
	}

	transformed, err := transformKey(ctx, creds.composite.Bytes(), params.TransformSeed, params.TransformRounds)
	if err != nil {
		return nil, err
	}
	defer transformed.Destroy()

	h := sha256.New()
	h.Write(params.MasterSeed)
	h.Write(transformed.Bytes())

	iv := make([]byte, len(params.IV))
	copy(iv, params.IV)

	return &DerivedKey{
		Key: WrapSecureBytes(h.Sum(nil)),
		IV:  iv,
	}, nil
}

// transformKey encrypts both 16-byte halves of the composite key with
// AES-256-ECB exactly rounds times and hashes the result.
func transformKey(ctx context.Context, composite, seed []byte, rounds uint64) (*SecureBytes, error) {
	if len(seed) != models.SeedSize {
		return nil, fmt.Errorf("transform seed must be %d bytes, got %d", models.SeedSize, len(seed))
	}
	if len(composite) != sha256.Size {
		return nil, fmt.Errorf("composite key must be %d bytes, got %d", sha256.Size, len(composite))
	}

	block, err := aes.NewCipher(seed)
	if err != nil {
		return nil, fmt.Errorf("create transform cipher: %w", err)
	}

	buf := NewSecureBytes(sha256.Size)
	defer buf.Destroy()
	b := buf.Bytes()
	copy(b, composite)

	left, right := b[:aes.BlockSize], b[aes.BlockSize:]
	for i := uint64(0); i < rounds; i++ {
		if i%roundsPerCheck == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}
		block.Encrypt(left, left)
		block.Encrypt(right, right)
	}

	sum := sha256.Sum256(b)
	out := NewSecureBytes(sha256.Size)
	copy(out.Bytes(), sum[:])
	ClearBytes(sum[:])

	return out, nil
}
