// Package container reads encrypted vault containers: header, payload
// decryption, hashed blocks and the protected document inside.
package container

import (
	"crypto/sha256"
	"encoding/binary"
	"fmt"
	"io"

	"github.com/google/uuid"

	"github.com/TheMichaelB/vaultctl/internal/events"
	"github.com/TheMichaelB/vaultctl/internal/models"
)

const headerStage = "header"

// preambleSize covers both signatures and the packed version.
const preambleSize = 12

// ParseHeader reads the container preamble and header fields from r. On
// success r is positioned at the first payload byte.
func ParseHeader(r io.Reader) (*models.Header, error) {
	return parseHeader(r, events.NewNopLogger())
}

func parseHeader(r io.Reader, logger *events.Logger) (*models.Header, error) {
	hasher := sha256.New()
	cr := &countingReader{r: io.TeeReader(r, hasher)}

	var pre [preambleSize]byte
	if _, err := io.ReadFull(cr, pre[:]); err != nil {
		return nil, models.WrapReadError(headerStage, "read preamble", err)
	}

	sig1 := binary.LittleEndian.Uint32(pre[0:4])
	sig2 := binary.LittleEndian.Uint32(pre[4:8])
	if sig1 != models.Signature1 || sig2 != models.Signature2 {
		return nil, models.NewFormatError(headerStage, fmt.Sprintf("got %08x %08x", sig1, sig2), models.ErrInvalidSignature)
	}

	version := binary.LittleEndian.Uint32(pre[8:12])
	h := &models.Header{
		VersionMajor: uint16(version >> 16),
		VersionMinor: uint16(version),
	}
	if h.VersionMajor != models.VersionMajorCurrent && h.VersionMajor != models.VersionMajorLegacy {
		return nil, models.NewFormatError(headerStage, fmt.Sprintf("version %d.%d", h.VersionMajor, h.VersionMinor), models.ErrUnsupportedVersion)
	}

	seen := make(map[models.HeaderFieldID]bool)
	for {
		var tl [3]byte
		if _, err := io.ReadFull(cr, tl[:]); err != nil {
			return nil, models.WrapReadError(headerStage, "read field tag", err)
		}

		id := models.HeaderFieldID(tl[0])
		value := make([]byte, binary.LittleEndian.Uint16(tl[1:3]))
		if _, err := io.ReadFull(cr, value); err != nil {
			return nil, models.WrapReadError(headerStage, "read field "+id.String(), err)
		}

		if id == models.FieldEndOfHeader {
			break
		}

		known, err := applyField(h, id, value)
		if err != nil {
			return nil, err
		}
		if !known {
			logger.WithFields(map[string]interface{}{
				"field": uint8(id),
				"size":  len(value),
			}).Debug("Skipping unknown header field")
			continue
		}
		seen[id] = true
	}

	for _, id := range models.RequiredFields {
		if !seen[id] {
			return nil, models.NewFormatError(headerStage, id.String(), models.ErrMissingHeaderField)
		}
	}

	if err := h.Validate(); err != nil {
		return nil, err
	}

	h.Size = cr.n
	copy(h.Hash[:], hasher.Sum(nil))

	return h, nil
}

// applyField stores value in h. It reports false for unknown ids.
func applyField(h *models.Header, id models.HeaderFieldID, value []byte) (bool, error) {
	switch id {
	case models.FieldComment:
		h.Comment = value
	case models.FieldCipherID:
		cipherID, err := uuid.FromBytes(value)
		if err != nil {
			return true, sizeError(id, 16, len(value))
		}
		h.CipherID = cipherID
	case models.FieldCompressionFlags:
		if len(value) != 4 {
			return true, sizeError(id, 4, len(value))
		}
		h.Compression = models.Compression(binary.LittleEndian.Uint32(value))
	case models.FieldMasterSeed:
		h.MasterSeed = value
	case models.FieldTransformSeed:
		h.TransformSeed = value
	case models.FieldTransformRounds:
		if len(value) != 8 {
			return true, sizeError(id, 8, len(value))
		}
		h.TransformRounds = binary.LittleEndian.Uint64(value)
	case models.FieldEncryptionIV:
		h.EncryptionIV = value
	case models.FieldProtectedStreamKey:
		h.ProtectedStreamKey = value
	case models.FieldStreamStartBytes:
		h.StreamStartBytes = value
	case models.FieldInnerRandomStreamID:
		if len(value) != 4 {
			return true, sizeError(id, 4, len(value))
		}
		h.InnerStreamID = models.InnerStreamID(binary.LittleEndian.Uint32(value))
	default:
		return false, nil
	}
	return true, nil
}

func sizeError(id models.HeaderFieldID, want, got int) error {
	return models.NewFormatError(headerStage, fmt.Sprintf("%s must be %d bytes, got %d", id, want, got), nil)
}

// countingReader counts bytes read through it.
type countingReader struct {
	r io.Reader
	n int64
}

func (c *countingReader) Read(p []byte) (int, error) {
	n, err := c.r.Read(p)
	c.n += int64(n)
	return n, err
}
