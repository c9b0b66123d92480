package container

import (
	"compress/gzip"
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/TheMichaelB/vaultctl/internal/config"
	"github.com/TheMichaelB/vaultctl/internal/crypto"
	"github.com/TheMichaelB/vaultctl/internal/document"
	"github.com/TheMichaelB/vaultctl/internal/events"
	"github.com/TheMichaelB/vaultctl/internal/models"
	"github.com/TheMichaelB/vaultctl/internal/storage"
)

// Loader opens and decrypts containers.
type Loader struct {
	cfg    config.LoadConfig
	source storage.Source
	logger *events.Logger
}

// NewLoader creates a loader reading from the local file system.
func NewLoader(cfg config.LoadConfig, logger *events.Logger) *Loader {
	if logger == nil {
		logger = events.NewNopLogger()
	}
	return NewLoaderWithSource(cfg, storage.NewLocalSource(cfg, logger), logger)
}

// NewLoaderWithSource creates a loader that opens paths through source.
func NewLoaderWithSource(cfg config.LoadConfig, source storage.Source, logger *events.Logger) *Loader {
	if logger == nil {
		logger = events.NewNopLogger()
	}
	return &Loader{
		cfg:    cfg,
		source: source,
		logger: logger.WithField("component", "loader"),
	}
}

// ReadHeaderFile parses only the header of the container at path using the
// default load limits.
func ReadHeaderFile(path string) (*models.Header, error) {
	return NewLoader(config.DefaultConfig().Load, nil).ReadHeader(context.Background(), path)
}

// ReadHeader parses only the header of the container at path. No
// credentials are needed.
func (l *Loader) ReadHeader(ctx context.Context, path string) (*models.Header, error) {
	rc, info, err := l.source.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open container: %w", err)
	}
	defer rc.Close()

	return parseHeader(&contextReader{ctx: ctx, r: rc}, l.logger.WithField("container", info.Path))
}

// Load opens the container at path and returns its decrypted document.
// creds are destroyed before Load returns, whatever the outcome.
func (l *Loader) Load(ctx context.Context, path string, creds *crypto.Credentials) (*document.Document, error) {
	defer creds.Destroy()

	rc, info, err := l.source.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open container: %w", err)
	}
	defer rc.Close()

	logger := l.logger.WithField("container", info.Path)
	return l.load(events.WithContainer(ctx, info.Path), logger, rc, creds)
}

// LoadReader is Load over an arbitrary byte source positioned at offset 0.
func (l *Loader) LoadReader(ctx context.Context, r io.Reader, creds *crypto.Credentials) (*document.Document, error) {
	defer creds.Destroy()

	logger := l.logger
	if name := events.GetContainer(ctx); name != "" {
		logger = logger.WithField("container", name)
	}
	return l.load(ctx, logger, r, creds)
}

func (l *Loader) load(ctx context.Context, logger *events.Logger, r io.Reader, creds *crypto.Credentials) (*document.Document, error) {
	start := time.Now()
	src := &contextReader{ctx: ctx, r: r}

	header, err := parseHeader(src, logger)
	if err != nil {
		return nil, err
	}
	logger.WithFields(map[string]interface{}{
		"version":      header.VersionString(),
		"cipher":       header.CipherName(),
		"compression":  header.Compression.String(),
		"rounds":       header.TransformRounds,
		"inner_stream": header.InnerStreamID.String(),
	}).Debug("Parsed header")

	key, err := crypto.DeriveKey(ctx, creds, crypto.KeyParamsFromHeader(header))
	creds.Destroy()
	if err != nil {
		return nil, fmt.Errorf("derive key: %w", err)
	}
	defer key.Destroy()
	logger.WithField("duration_ms", time.Since(start).Milliseconds()).Debug("Derived payload key")

	plain, err := crypto.NewPayloadReader(header.CipherID, key, src, l.cfg.ReadBufferSize)
	if err != nil {
		return nil, err
	}

	if err := verifyStartBytes(plain, header.StreamStartBytes); err != nil {
		return nil, err
	}
	logger.Debug("Start bytes verified")

	blocks := NewHashedBlockReader(plain, BlockReaderOptions{
		MaxBlockSize: l.cfg.MaxBlockSize,
		Strict:       l.cfg.StrictTrailingData,
		Logger:       logger,
	})

	var payload io.Reader = blocks
	if header.Compression == models.CompressionGZip {
		gz, err := gzip.NewReader(blocks)
		if err != nil {
			if berr := blocks.Err(); berr != nil {
				return nil, berr
			}
			return nil, models.WrapStageError("decompress", "open gzip stream", err)
		}
		defer gz.Close()
		payload = &stageReader{r: gz, upstream: blocks, stage: "decompress", reason: "corrupt gzip stream"}
	}

	doc, err := document.Parse(payload)
	if err != nil {
		// A block failure surfaces to the parser as a read error.
		if berr := blocks.Err(); berr != nil {
			return nil, berr
		}
		return nil, err
	}

	// Every block is verified even when the document ends early.
	if _, err := io.Copy(io.Discard, payload); err != nil {
		return nil, err
	}
	if _, err := io.Copy(io.Discard, blocks); err != nil {
		return nil, err
	}
	logger.WithFields(map[string]interface{}{
		"blocks": blocks.Blocks(),
		"bytes":  blocks.Size(),
	}).Debug("Payload verified")

	if l.cfg.VerifyHeaderHash {
		if err := verifyHeaderHash(doc, header); err != nil {
			return nil, err
		}
	}

	ks, err := crypto.NewKeystream(header.InnerStreamID, header.ProtectedStreamKey)
	if err != nil {
		return nil, err
	}
	defer ks.Destroy()

	count, err := document.Unprotect(doc, ks)
	if err != nil {
		return nil, err
	}

	logger.WithFields(map[string]interface{}{
		"protected":   count,
		"duration_ms": time.Since(start).Milliseconds(),
	}).Debug("Container loaded")

	return doc, nil
}

// verifyStartBytes compares the first plaintext bytes with the header copy.
// Wrong password and damaged ciphertext produce the same error.
func verifyStartBytes(r io.Reader, expected []byte) error {
	got := make([]byte, len(expected))
	defer crypto.ClearBytes(got)

	if _, err := io.ReadFull(r, got); err != nil {
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) || errors.Is(err, models.ErrFormat) {
			return &models.IncorrectCredentialsError{}
		}
		return fmt.Errorf("read start bytes: %w", err)
	}

	if !crypto.ConstantTimeCompare(got, expected) {
		return &models.IncorrectCredentialsError{}
	}
	return nil
}

// verifyHeaderHash checks Meta/HeaderHash when the document carries one.
func verifyHeaderHash(doc *document.Document, header *models.Header) error {
	meta := doc.Root.Child("Meta")
	if meta == nil {
		return nil
	}
	el := meta.Child("HeaderHash")
	if el == nil || strings.TrimSpace(el.Text) == "" {
		return nil
	}

	stored, err := base64.StdEncoding.DecodeString(strings.TrimSpace(el.Text))
	if err != nil {
		return models.NewFormatError("document", "header hash is not base64", err)
	}
	if !crypto.ConstantTimeCompare(stored, header.Hash[:]) {
		return &models.IntegrityError{Block: -1, Reason: "header hash mismatch"}
	}
	return nil
}

// contextReader stops reading once ctx is done.
type contextReader struct {
	ctx context.Context
	r   io.Reader
}

func (c *contextReader) Read(p []byte) (int, error) {
	if err := c.ctx.Err(); err != nil {
		return 0, err
	}
	return c.r.Read(p)
}

// stageReader classifies read errors of stage as format errors. Failures
// of the upstream block stream are passed on as they are.
type stageReader struct {
	r        io.Reader
	upstream *HashedBlockReader
	stage    string
	reason   string
}

func (s *stageReader) Read(p []byte) (int, error) {
	n, err := s.r.Read(p)
	if err == nil || errors.Is(err, io.EOF) {
		return n, err
	}
	if uerr := s.upstream.Err(); uerr != nil {
		return n, uerr
	}
	return n, models.WrapStageError(s.stage, s.reason, err)
}
