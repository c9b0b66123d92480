package models

import (
	"context"
	"errors"
	"fmt"
	"io"
)

// Error codes for structured error handling.
const (
	ErrCodeFormat      = "FORMAT_ERROR"
	ErrCodeCredentials = "CREDENTIALS_ERROR"
	ErrCodeIntegrity   = "INTEGRITY_ERROR"
	ErrCodeSource      = "SOURCE_ERROR"
	ErrCodeConfig      = "CONFIG_ERROR"
)

// Sentinel errors. Typed errors below match these with errors.Is.
var (
	ErrFormat               = errors.New("invalid container format")
	ErrIncorrectCredentials = errors.New("incorrect credentials or corrupted container")
	ErrIntegrity            = errors.New("integrity check failed")

	ErrInvalidSignature    = errors.New("invalid container signature")
	ErrUnsupportedVersion  = errors.New("unsupported container version")
	ErrMissingHeaderField  = errors.New("missing required header field")
	ErrUnsupportedCipher   = errors.New("unsupported cipher")
	ErrUnsupportedStream   = errors.New("unsupported inner stream cipher")
	ErrInvalidConfig       = errors.New("invalid configuration")
	ErrCredentialsConsumed = errors.New("credentials already consumed")
)

// FormatError reports a malformed or unsupported header, block framing or document.
type FormatError struct {
	Stage  string // header, payload, blocks, decompress, document
	Reason string
	Err    error
}

func (e *FormatError) Error() string {
	msg := "format error"
	if e.Stage != "" {
		msg += ": " + e.Stage
	}
	if e.Reason != "" {
		msg += ": " + e.Reason
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *FormatError) Unwrap() error {
	return e.Err
}

func (e *FormatError) Is(target error) bool {
	return target == ErrFormat
}

// IncorrectCredentialsError reports a failed start-bytes check. The message is the
// same whether the password was wrong or the container was damaged.
type IncorrectCredentialsError struct{}

func (e *IncorrectCredentialsError) Error() string {
	return ErrIncorrectCredentials.Error()
}

func (e *IncorrectCredentialsError) Is(target error) bool {
	return target == ErrIncorrectCredentials
}

// IntegrityError represents a hash mismatch in a block or in the header.
type IntegrityError struct {
	Block  int64 // -1 when not tied to a block
	Reason string
}

// NewBlockIntegrityError builds an IntegrityError for block index.
func NewBlockIntegrityError(index uint32, reason string) *IntegrityError {
	return &IntegrityError{Block: int64(index), Reason: reason}
}

func (e *IntegrityError) Error() string {
	if e.Block >= 0 {
		return fmt.Sprintf("integrity error: block %d %s", e.Block, e.Reason)
	}
	return fmt.Sprintf("integrity error: %s", e.Reason)
}

func (e *IntegrityError) Is(target error) bool {
	return target == ErrIntegrity
}

// NewFormatError builds a FormatError for a pipeline stage.
func NewFormatError(stage, reason string, err error) *FormatError {
	return &FormatError{Stage: stage, Reason: reason, Err: err}
}

// WrapStageError converts err into a FormatError for stage unless it already
// carries a classification (format, integrity, credentials or cancellation).
func WrapStageError(stage, reason string, err error) error {
	if err == nil {
		return nil
	}
	if IsClassified(err) {
		return err
	}
	return NewFormatError(stage, reason, err)
}

// WrapReadError classifies a failed read at stage. A short read means the
// container is truncated and becomes a FormatError. Any other source failure
// is wrapped but left unclassified so the caller can retry the source.
func WrapReadError(stage, reason string, err error) error {
	switch {
	case err == nil:
		return nil
	case IsClassified(err):
		return err
	case errors.Is(err, io.EOF), errors.Is(err, io.ErrUnexpectedEOF):
		return NewFormatError(stage, reason, err)
	default:
		return fmt.Errorf("%s: %s: %w", stage, reason, err)
	}
}

// IsClassified reports whether err already belongs to the load error taxonomy.
func IsClassified(err error) bool {
	return errors.Is(err, ErrFormat) ||
		errors.Is(err, ErrIntegrity) ||
		errors.Is(err, ErrIncorrectCredentials) ||
		errors.Is(err, context.Canceled) ||
		errors.Is(err, context.DeadlineExceeded)
}

// ErrorCode maps an error to its structured code.
func ErrorCode(err error) string {
	switch {
	case errors.Is(err, ErrIncorrectCredentials):
		return ErrCodeCredentials
	case errors.Is(err, ErrIntegrity):
		return ErrCodeIntegrity
	case errors.Is(err, ErrFormat):
		return ErrCodeFormat
	case errors.Is(err, ErrInvalidConfig):
		return ErrCodeConfig
	default:
		return ErrCodeSource
	}
}
