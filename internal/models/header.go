package models

import (
	"fmt"

	"github.com/google/uuid"
)

// Container signatures and supported versions.
const (
	Signature1 uint32 = 0x9AA2D903
	Signature2 uint32 = 0xB54BFB67

	VersionMajorLegacy  uint16 = 2
	VersionMajorCurrent uint16 = 3
)

// Field sizes in bytes.
const (
	SeedSize       = 32
	StartBytesSize = 32
	StreamKeySize  = 32
	AESIVSize      = 16
	ChaCha20IVSize = 12
	KeySize        = 32
	BlockHashSize  = 32
)

// Outer cipher identifiers.
var (
	CipherAES256   = uuid.MustParse("31c1f2e6-bf71-4350-be58-05216afc5aff")
	CipherChaCha20 = uuid.MustParse("d6038a2b-8b6f-4cb5-a524-339a31dbb59a")
)

// HeaderFieldID tags a header TLV field.
type HeaderFieldID uint8

const (
	FieldEndOfHeader HeaderFieldID = iota
	FieldComment
	FieldCipherID
	FieldCompressionFlags
	FieldMasterSeed
	FieldTransformSeed
	FieldTransformRounds
	FieldEncryptionIV
	FieldProtectedStreamKey
	FieldStreamStartBytes
	FieldInnerRandomStreamID
)

// RequiredFields must all be present before decryption proceeds.
var RequiredFields = []HeaderFieldID{
	FieldCipherID,
	FieldMasterSeed,
	FieldEncryptionIV,
	FieldTransformSeed,
	FieldTransformRounds,
	FieldProtectedStreamKey,
	FieldStreamStartBytes,
}

func (f HeaderFieldID) String() string {
	switch f {
	case FieldEndOfHeader:
		return "end_of_header"
	case FieldComment:
		return "comment"
	case FieldCipherID:
		return "cipher_id"
	case FieldCompressionFlags:
		return "compression_flags"
	case FieldMasterSeed:
		return "master_seed"
	case FieldTransformSeed:
		return "transform_seed"
	case FieldTransformRounds:
		return "transform_rounds"
	case FieldEncryptionIV:
		return "encryption_iv"
	case FieldProtectedStreamKey:
		return "protected_stream_key"
	case FieldStreamStartBytes:
		return "stream_start_bytes"
	case FieldInnerRandomStreamID:
		return "inner_random_stream_id"
	default:
		return fmt.Sprintf("field_%d", uint8(f))
	}
}

// Compression declares how the verified payload is encoded.
type Compression uint32

const (
	CompressionNone Compression = iota
	CompressionGZip
)

func (c Compression) String() string {
	switch c {
	case CompressionNone:
		return "none"
	case CompressionGZip:
		return "gzip"
	default:
		return fmt.Sprintf("unknown(%d)", uint32(c))
	}
}

// InnerStreamID selects the cipher protecting individual document values.
type InnerStreamID uint32

const (
	InnerStreamNone InnerStreamID = iota
	InnerStreamArcFour
	InnerStreamSalsa20
	InnerStreamChaCha20
)

func (s InnerStreamID) String() string {
	switch s {
	case InnerStreamNone:
		return "none"
	case InnerStreamArcFour:
		return "arcfour"
	case InnerStreamSalsa20:
		return "salsa20"
	case InnerStreamChaCha20:
		return "chacha20"
	default:
		return fmt.Sprintf("unknown(%d)", uint32(s))
	}
}

// Header is the parsed container preamble. It is not modified after parsing.
type Header struct {
	VersionMajor uint16
	VersionMinor uint16

	CipherID           uuid.UUID
	Compression        Compression
	MasterSeed         []byte
	TransformSeed      []byte
	TransformRounds    uint64
	EncryptionIV       []byte
	ProtectedStreamKey []byte
	StreamStartBytes   []byte
	InnerStreamID      InnerStreamID
	Comment            []byte

	// Size is the byte offset where the encrypted payload begins.
	Size int64
	// Hash is the SHA-256 of the raw header bytes.
	Hash [32]byte
}

// VersionString returns the version as "major.minor".
func (h *Header) VersionString() string {
	return fmt.Sprintf("%d.%d", h.VersionMajor, h.VersionMinor)
}

// CipherName returns a short name for the outer cipher.
func (h *Header) CipherName() string {
	switch h.CipherID {
	case CipherAES256:
		return "aes256-cbc"
	case CipherChaCha20:
		return "chacha20"
	default:
		return h.CipherID.String()
	}
}

// IVSize returns the IV length the outer cipher expects, or 0 if unknown.
func IVSize(cipherID uuid.UUID) int {
	switch cipherID {
	case CipherAES256:
		return AESIVSize
	case CipherChaCha20:
		return ChaCha20IVSize
	default:
		return 0
	}
}

// Validate checks field sizes and enumerated values.
func (h *Header) Validate() error {
	ivSize := IVSize(h.CipherID)
	if ivSize == 0 {
		return NewFormatError("header", h.CipherID.String(), ErrUnsupportedCipher)
	}
	if len(h.EncryptionIV) != ivSize {
		return NewFormatError("header", fmt.Sprintf("encryption_iv must be %d bytes, got %d", ivSize, len(h.EncryptionIV)), nil)
	}

	sized := []struct {
		field HeaderFieldID
		value []byte
		size  int
	}{
		{FieldMasterSeed, h.MasterSeed, SeedSize},
		{FieldTransformSeed, h.TransformSeed, SeedSize},
		{FieldStreamStartBytes, h.StreamStartBytes, StartBytesSize},
	}
	for _, s := range sized {
		if len(s.value) != s.size {
			return NewFormatError("header", fmt.Sprintf("%s must be %d bytes, got %d", s.field, s.size, len(s.value)), nil)
		}
	}

	if len(h.ProtectedStreamKey) == 0 {
		return NewFormatError("header", "protected_stream_key is empty", nil)
	}

	switch h.Compression {
	case CompressionNone, CompressionGZip:
	default:
		return NewFormatError("header", "unknown compression "+h.Compression.String(), nil)
	}

	switch h.InnerStreamID {
	case InnerStreamNone, InnerStreamSalsa20, InnerStreamChaCha20:
	default:
		return NewFormatError("header", h.InnerStreamID.String(), ErrUnsupportedStream)
	}

	return nil
}
