package testutil

import (
	"bytes"
	"compress/gzip"
	"context"
	"crypto/aes"
	"crypto/cipher"
	"crypto/sha256"
	"encoding/base64"
	"encoding/binary"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"golang.org/x/crypto/chacha20"

	"github.com/TheMichaelB/vaultctl/internal/crypto"
	"github.com/TheMichaelB/vaultctl/internal/document"
	"github.com/TheMichaelB/vaultctl/internal/models"
)

// Test credentials used by default fixtures.
const (
	TestPassword  = "correct horse battery staple"
	WrongPassword = "incorrect horse"
)

// SampleDocument is the minimal fixture document. The entry value is
// written in plaintext and protected by the builder.
const SampleDocument = `<root><entry protected="true">hunter2-plaintext</entry></root>`

// SamplePlaintext is the protected value in SampleDocument.
const SamplePlaintext = "hunter2-plaintext"

// KeePassDocument resembles a real database with several protected values.
const KeePassDocument = `<KeePassFile>
	<Meta>
		<Generator>vaultctl-test</Generator>
	</Meta>
	<Root>
		<Group>
			<Name>General</Name>
			<Entry>
				<String><Key>Title</Key><Value>Mail</Value></String>
				<String><Key>Password</Key><Value Protected="True">mail-secret</Value></String>
			</Entry>
			<Entry>
				<String><Key>Title</Key><Value>Bank</Value></String>
				<String><Key>Password</Key><Value Protected="True">bank-secret</Value></String>
				<String><Key>PIN</Key><Value Protected="True">1234</Value></String>
			</Entry>
		</Group>
	</Root>
</KeePassFile>`

// HeaderField is a raw header TLV entry.
type HeaderField struct {
	ID    models.HeaderFieldID
	Value []byte
}

// Block is one hashed block record.
type Block struct {
	Index uint32
	Hash  [32]byte
	Data  []byte
}

// ContainerBuilder produces container bytes for tests.
type ContainerBuilder struct {
	Password    string
	Rounds      uint64
	Cipher      uuid.UUID
	Compression models.Compression
	InnerStream models.InnerStreamID
	BlockSize   int
	Version     uint32

	MasterSeed    []byte
	TransformSeed []byte
	IV            []byte
	StreamKey     []byte
	StartBytes    []byte

	// HeaderHash embeds the header hash into Meta/HeaderHash.
	HeaderHash bool
	// TamperHeaderHash stores a hash that does not match the header.
	TamperHeaderHash bool

	Omit  []models.HeaderFieldID
	Extra []HeaderField

	// CorruptBlock flips one payload bit of that block after hashing. -1 disables.
	CorruptBlock int
	// TerminalHash overrides the all-zero terminal block hash.
	TerminalHash *[32]byte
	Trailing     []byte

	// RawPayload, when set, is used as the block payload verbatim.
	RawPayload []byte
}

// NewContainerBuilder returns a builder with deterministic AES defaults.
func NewContainerBuilder() *ContainerBuilder {
	return &ContainerBuilder{
		Password:      TestPassword,
		Rounds:        64,
		Cipher:        models.CipherAES256,
		Compression:   models.CompressionNone,
		InnerStream:   models.InnerStreamSalsa20,
		BlockSize:     16,
		Version:       uint32(models.VersionMajorCurrent)<<16 | 1,
		MasterSeed:    pattern(0x10, models.SeedSize),
		TransformSeed: pattern(0x40, models.SeedSize),
		IV:            pattern(0x70, models.AESIVSize),
		StreamKey:     pattern(0x90, models.StreamKeySize),
		StartBytes:    pattern(0xC0, models.StartBytesSize),
		CorruptBlock:  -1,
	}
}

// WithChaCha20 switches the outer cipher and IV size.
func (b *ContainerBuilder) WithChaCha20() *ContainerBuilder {
	b.Cipher = models.CipherChaCha20
	b.IV = pattern(0x70, models.ChaCha20IVSize)
	return b
}

// Build encodes xmlDoc into a container. Elements marked protected in xmlDoc
// hold plaintext and are encrypted with the inner stream.
func (b *ContainerBuilder) Build(xmlDoc string) ([]byte, error) {
	header := b.HeaderBytes()

	payload := b.RawPayload
	if payload == nil {
		var err error
		if payload, err = b.documentBytes(xmlDoc, sha256.Sum256(header)); err != nil {
			return nil, err
		}
		if b.Compression == models.CompressionGZip {
			if payload, err = Gzip(payload); err != nil {
				return nil, err
			}
		}
	}

	blocks := SplitBlocks(payload, b.BlockSize)
	if b.CorruptBlock >= 0 {
		if b.CorruptBlock >= len(blocks)-1 {
			return nil, fmt.Errorf("corrupt block %d: only %d data blocks", b.CorruptBlock, len(blocks)-1)
		}
		blocks[b.CorruptBlock].Data[0] ^= 0x01
	}
	if b.TerminalHash != nil {
		blocks[len(blocks)-1].Hash = *b.TerminalHash
	}

	var plain bytes.Buffer
	plain.Write(b.StartBytes)
	plain.Write(EncodeBlocks(blocks))
	plain.Write(b.Trailing)

	ciphertext, err := b.encrypt(plain.Bytes())
	if err != nil {
		return nil, err
	}

	return append(header, ciphertext...), nil
}

// MustBuild is Build that panics on error.
func (b *ContainerBuilder) MustBuild(xmlDoc string) []byte {
	data, err := b.Build(xmlDoc)
	if err != nil {
		panic(err)
	}
	return data
}

// Fields returns the header fields in write order.
func (b *ContainerBuilder) Fields() []HeaderField {
	fields := []HeaderField{
		{models.FieldCipherID, b.Cipher[:]},
		{models.FieldCompressionFlags, u32(uint32(b.Compression))},
		{models.FieldMasterSeed, b.MasterSeed},
		{models.FieldTransformSeed, b.TransformSeed},
		{models.FieldTransformRounds, u64(b.Rounds)},
		{models.FieldEncryptionIV, b.IV},
		{models.FieldProtectedStreamKey, b.StreamKey},
		{models.FieldStreamStartBytes, b.StartBytes},
		{models.FieldInnerRandomStreamID, u32(uint32(b.InnerStream))},
	}

	kept := fields[:0]
	for _, f := range fields {
		if !b.omitted(f.ID) {
			kept = append(kept, f)
		}
	}
	return append(kept, b.Extra...)
}

// HeaderBytes encodes the preamble and header fields.
func (b *ContainerBuilder) HeaderBytes() []byte {
	return EncodeHeader(b.Version, b.Fields())
}

func (b *ContainerBuilder) omitted(id models.HeaderFieldID) bool {
	for _, o := range b.Omit {
		if o == id {
			return true
		}
	}
	return false
}

func (b *ContainerBuilder) documentBytes(xmlDoc string, headerHash [32]byte) ([]byte, error) {
	doc, err := document.Parse(strings.NewReader(xmlDoc))
	if err != nil {
		return nil, fmt.Errorf("parse fixture document: %w", err)
	}

	ks, err := crypto.NewKeystream(b.InnerStream, b.StreamKey)
	if err != nil {
		return nil, err
	}
	defer ks.Destroy()
	Protect(doc, ks)

	if b.HeaderHash {
		if b.TamperHeaderHash {
			headerHash[0] ^= 0xFF
		}
		meta := doc.Root.Child("Meta")
		if meta == nil {
			meta = &document.Element{Name: "Meta"}
			doc.Root.Children = append([]*document.Element{meta}, doc.Root.Children...)
		}
		meta.Children = append(meta.Children, &document.Element{
			Name: "HeaderHash",
			Text: base64.StdEncoding.EncodeToString(headerHash[:]),
		})
	}

	var buf bytes.Buffer
	if err := document.Encode(&buf, doc, document.EncodeOptions{}); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Protect encrypts every protected element in place, in document order.
func Protect(doc *document.Document, ks document.Keystream) {
	_ = doc.Walk(func(e *document.Element) error {
		if !e.IsProtected() {
			return nil
		}
		raw := []byte(e.Text)
		ks.XOR(raw)
		e.Text = base64.StdEncoding.EncodeToString(raw)
		return nil
	})
}

func (b *ContainerBuilder) encrypt(plain []byte) ([]byte, error) {
	creds := crypto.NewPasswordCredentials([]byte(b.Password))
	defer creds.Destroy()

	key, err := crypto.DeriveKey(context.Background(), creds, crypto.KeyParams{
		MasterSeed:      b.MasterSeed,
		TransformSeed:   b.TransformSeed,
		TransformRounds: b.Rounds,
		IV:              b.IV,
	})
	if err != nil {
		return nil, err
	}
	defer key.Destroy()

	switch b.Cipher {
	case models.CipherChaCha20:
		c, err := chacha20.NewUnauthenticatedCipher(key.Key.Bytes(), key.IV)
		if err != nil {
			return nil, err
		}
		out := make([]byte, len(plain))
		c.XORKeyStream(out, plain)
		return out, nil
	default:
		return EncryptCBC(key.Key.Bytes(), key.IV, plain)
	}
}

// EncryptCBC pads plain with PKCS#7 and encrypts it with AES-CBC.
func EncryptCBC(key, iv, plain []byte) ([]byte, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	pad := aes.BlockSize - len(plain)%aes.BlockSize
	padded := append(append([]byte(nil), plain...), bytes.Repeat([]byte{byte(pad)}, pad)...)

	out := make([]byte, len(padded))
	cipher.NewCBCEncrypter(block, iv).CryptBlocks(out, padded)
	return out, nil
}

// EncodeHeader writes signatures, version and fields followed by the end marker.
func EncodeHeader(version uint32, fields []HeaderField) []byte {
	var buf bytes.Buffer
	buf.Write(u32(models.Signature1))
	buf.Write(u32(models.Signature2))
	buf.Write(u32(version))

	for _, f := range fields {
		buf.WriteByte(byte(f.ID))
		buf.Write(u16(uint16(len(f.Value))))
		buf.Write(f.Value)
	}

	buf.WriteByte(byte(models.FieldEndOfHeader))
	buf.Write(u16(4))
	buf.WriteString("\r\n\r\n")
	return buf.Bytes()
}

// SplitBlocks cuts payload into hashed blocks of at most size bytes and
// appends the terminal block.
func SplitBlocks(payload []byte, size int) []Block {
	var blocks []Block
	for i := 0; len(payload) > 0; i++ {
		n := size
		if n > len(payload) {
			n = len(payload)
		}
		data := append([]byte(nil), payload[:n]...)
		blocks = append(blocks, Block{Index: uint32(i), Hash: sha256.Sum256(data), Data: data})
		payload = payload[n:]
	}
	return append(blocks, Block{Index: uint32(len(blocks))})
}

// EncodeBlocks serializes block records.
func EncodeBlocks(blocks []Block) []byte {
	var buf bytes.Buffer
	for _, b := range blocks {
		buf.Write(u32(b.Index))
		buf.Write(b.Hash[:])
		buf.Write(u32(uint32(len(b.Data))))
		buf.Write(b.Data)
	}
	return buf.Bytes()
}

// Gzip compresses data.
func Gzip(data []byte) ([]byte, error) {
	var buf bytes.Buffer
	zw := gzip.NewWriter(&buf)
	if _, err := zw.Write(data); err != nil {
		return nil, err
	}
	if err := zw.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func pattern(start byte, n int) []byte {
	b := make([]byte, n)
	for i := range b {
		b[i] = start + byte(i)
	}
	return b
}

func u16(v uint16) []byte {
	return binary.LittleEndian.AppendUint16(nil, v)
}

func u32(v uint32) []byte {
	return binary.LittleEndian.AppendUint32(nil, v)
}

func u64(v uint64) []byte {
	return binary.LittleEndian.AppendUint64(nil, v)
}
