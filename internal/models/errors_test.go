package models_test

import (
	"context"
	"errors"
	"fmt"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/TheMichaelB/vaultctl/internal/models"
)

func TestFormatError(t *testing.T) {
	tests := []struct {
		name string
		err  *models.FormatError
		want string
	}{
		{
			name: "full",
			err:  models.NewFormatError("header", "cipher_id", models.ErrMissingHeaderField),
			want: "format error: header: cipher_id: missing required header field",
		},
		{
			name: "no cause",
			err:  models.NewFormatError("blocks", "block index 3, expected 2", nil),
			want: "format error: blocks: block index 3, expected 2",
		},
		{
			name: "bare",
			err:  &models.FormatError{},
			want: "format error",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.err.Error())
			assert.ErrorIs(t, tt.err, models.ErrFormat)
			assert.NotErrorIs(t, tt.err, models.ErrIntegrity)
		})
	}
}

func TestFormatErrorUnwrap(t *testing.T) {
	err := fmt.Errorf("load: %w", models.NewFormatError("payload", "truncated", io.ErrUnexpectedEOF))

	assert.ErrorIs(t, err, models.ErrFormat)
	assert.ErrorIs(t, err, io.ErrUnexpectedEOF)

	var fe *models.FormatError
	assert.True(t, errors.As(err, &fe))
	assert.Equal(t, "payload", fe.Stage)
}

func TestIncorrectCredentialsError(t *testing.T) {
	err := &models.IncorrectCredentialsError{}

	assert.ErrorIs(t, err, models.ErrIncorrectCredentials)
	assert.Equal(t, "incorrect credentials or corrupted container", err.Error())
	assert.NotErrorIs(t, err, models.ErrFormat)
}

func TestIntegrityError(t *testing.T) {
	block := models.NewBlockIntegrityError(7, "hash mismatch")
	assert.Equal(t, "integrity error: block 7 hash mismatch", block.Error())
	assert.Equal(t, int64(7), block.Block)
	assert.ErrorIs(t, block, models.ErrIntegrity)

	header := &models.IntegrityError{Block: -1, Reason: "header hash mismatch"}
	assert.Equal(t, "integrity error: header hash mismatch", header.Error())
}

func TestWrapStageError(t *testing.T) {
	assert.NoError(t, models.WrapStageError("blocks", "x", nil))

	plain := errors.New("unexpected EOF")
	wrapped := models.WrapStageError("blocks", "block 0 header truncated", plain)
	assert.ErrorIs(t, wrapped, models.ErrFormat)
	assert.ErrorIs(t, wrapped, plain)

	classified := []error{
		models.NewBlockIntegrityError(1, "hash mismatch"),
		&models.IncorrectCredentialsError{},
		models.NewFormatError("header", "bad", nil),
		context.Canceled,
		fmt.Errorf("read: %w", context.DeadlineExceeded),
	}
	for _, err := range classified {
		assert.Same(t, err, models.WrapStageError("document", "malformed", err), "%v", err)
	}
}

func TestWrapReadError(t *testing.T) {
	assert.NoError(t, models.WrapReadError("header", "x", nil))

	for _, short := range []error{io.EOF, io.ErrUnexpectedEOF} {
		err := models.WrapReadError("header", "read field tag", short)
		assert.ErrorIs(t, err, models.ErrFormat)
		assert.ErrorIs(t, err, short)
	}

	diskErr := errors.New("input/output error")
	err := models.WrapReadError("blocks", "block 2 payload truncated", diskErr)
	assert.ErrorIs(t, err, diskErr)
	assert.NotErrorIs(t, err, models.ErrFormat)
	assert.Equal(t, "blocks: block 2 payload truncated: input/output error", err.Error())
	assert.Equal(t, models.ErrCodeSource, models.ErrorCode(err))

	integrity := models.NewBlockIntegrityError(1, "hash mismatch")
	assert.Same(t, integrity, models.WrapReadError("blocks", "x", integrity))
}

func TestErrorCode(t *testing.T) {
	tests := []struct {
		err  error
		want string
	}{
		{&models.IncorrectCredentialsError{}, models.ErrCodeCredentials},
		{models.NewBlockIntegrityError(0, "hash mismatch"), models.ErrCodeIntegrity},
		{models.NewFormatError("header", "", models.ErrInvalidSignature), models.ErrCodeFormat},
		{fmt.Errorf("%w: bad level", models.ErrInvalidConfig), models.ErrCodeConfig},
		{errors.New("permission denied"), models.ErrCodeSource},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, models.ErrorCode(tt.err), "%v", tt.err)
	}
}
