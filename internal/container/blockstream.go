package container

import (
	"crypto/sha256"
	"encoding/binary"
	"errors"
	"fmt"
	"io"

	"github.com/TheMichaelB/vaultctl/internal/crypto"
	"github.com/TheMichaelB/vaultctl/internal/events"
	"github.com/TheMichaelB/vaultctl/internal/models"
)

const blocksStage = "blocks"

// blockHeaderSize is index(4) + hash(32) + length(4).
const blockHeaderSize = 4 + models.BlockHashSize + 4

// DefaultMaxBlockSize bounds a single block payload.
const DefaultMaxBlockSize = 64 << 20

// emptyHash is SHA-256 of an empty payload.
var emptyHash = sha256.Sum256(nil)

// BlockReaderOptions configures a HashedBlockReader.
type BlockReaderOptions struct {
	MaxBlockSize int
	Strict       bool // reject bytes after the terminal block
	Logger       *events.Logger
}

// HashedBlockReader exposes the verified payloads of a hashed block stream
// as one contiguous reader. Only one block is held in memory at a time and
// no byte of a block is returned before its hash has been checked.
type HashedBlockReader struct {
	r    io.Reader
	opts BlockReaderOptions

	index uint32
	block []byte
	buf   []byte
	total int64
	err   error
}

// NewHashedBlockReader wraps r, which must be positioned at block 0.
func NewHashedBlockReader(r io.Reader, opts BlockReaderOptions) *HashedBlockReader {
	if opts.MaxBlockSize <= 0 {
		opts.MaxBlockSize = DefaultMaxBlockSize
	}
	if opts.Logger == nil {
		opts.Logger = events.NewNopLogger()
	}
	return &HashedBlockReader{r: r, opts: opts}
}

// Read implements io.Reader. Any failure is returned again on every later call.
func (b *HashedBlockReader) Read(p []byte) (int, error) {
	for len(b.buf) == 0 {
		if b.err != nil {
			return 0, b.err
		}
		b.err = b.next()
	}

	n := copy(p, b.buf)
	b.buf = b.buf[n:]
	return n, nil
}

// Err returns the failure that stopped the stream, or nil if the stream is
// still healthy or ended cleanly.
func (b *HashedBlockReader) Err() error {
	if errors.Is(b.err, io.EOF) {
		return nil
	}
	return b.err
}

// Blocks returns the number of data blocks verified so far.
func (b *HashedBlockReader) Blocks() uint32 {
	return b.index
}

// Size returns the number of verified payload bytes.
func (b *HashedBlockReader) Size() int64 {
	return b.total
}

func (b *HashedBlockReader) next() error {
	var hdr [blockHeaderSize]byte
	if _, err := io.ReadFull(b.r, hdr[:]); err != nil {
		return models.WrapReadError(blocksStage, fmt.Sprintf("block %d header truncated", b.index), err)
	}

	index := binary.LittleEndian.Uint32(hdr[0:4])
	var want [models.BlockHashSize]byte
	copy(want[:], hdr[4:4+models.BlockHashSize])
	length := int32(binary.LittleEndian.Uint32(hdr[4+models.BlockHashSize:]))

	if index != b.index {
		return models.NewFormatError(blocksStage, fmt.Sprintf("block index %d, expected %d", index, b.index), nil)
	}
	if length < 0 {
		return models.NewFormatError(blocksStage, fmt.Sprintf("block %d has negative length %d", index, length), nil)
	}
	if int(length) > b.opts.MaxBlockSize {
		return models.NewFormatError(blocksStage, fmt.Sprintf("block %d length %d exceeds limit %d", index, length, b.opts.MaxBlockSize), nil)
	}

	if length == 0 {
		if want != [models.BlockHashSize]byte{} && want != emptyHash {
			return models.NewBlockIntegrityError(index, "terminal hash is not zero")
		}
		return b.finish()
	}

	if cap(b.block) < int(length) {
		b.block = make([]byte, length)
	}
	payload := b.block[:length]
	if _, err := io.ReadFull(b.r, payload); err != nil {
		return models.WrapReadError(blocksStage, fmt.Sprintf("block %d payload truncated", index), err)
	}

	sum := sha256.Sum256(payload)
	if !crypto.ConstantTimeCompare(sum[:], want[:]) {
		return models.NewBlockIntegrityError(index, "hash mismatch")
	}

	b.index++
	b.total += int64(length)
	b.buf = payload
	return nil
}

// finish applies the trailing data policy after the terminal block.
func (b *HashedBlockReader) finish() error {
	var peek [1]byte
	n, err := io.ReadFull(b.r, peek[:])
	if n == 0 {
		if err != nil && !errors.Is(err, io.EOF) {
			return models.WrapReadError(blocksStage, "read after terminal block", err)
		}
		return io.EOF
	}

	if b.opts.Strict {
		return models.NewFormatError(blocksStage, "trailing data after terminal block", nil)
	}

	rest, err := io.Copy(io.Discard, b.r)
	if err != nil {
		return models.WrapReadError(blocksStage, "read trailing data", err)
	}
	b.opts.Logger.WithFields(map[string]interface{}{
		"blocks": b.index,
		"bytes":  rest + 1,
	}).Debug("Ignoring trailing data after terminal block")

	return io.EOF
}
