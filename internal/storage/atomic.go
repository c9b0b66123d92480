package storage

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"
)

// WriteAtomic streams reader into path via a temp file and rename, so
// readers never observe a partial file. maxSize <= 0 disables the limit.
func WriteAtomic(path string, reader io.Reader, mode os.FileMode, maxSize int64) error {
	parentDir := filepath.Dir(path)
	if err := os.MkdirAll(parentDir, 0700); err != nil {
		return fmt.Errorf("create parent directory: %w", err)
	}

	tempPath := fmt.Sprintf("%s.tmp.%d", path, time.Now().UnixNano())
	tempFile, err := os.OpenFile(tempPath, os.O_CREATE|os.O_WRONLY|os.O_EXCL, mode)
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}

	success := false
	defer func() {
		tempFile.Close()
		if !success {
			os.Remove(tempPath)
		}
	}()

	src := reader
	var limited *io.LimitedReader
	if maxSize > 0 {
		limited = &io.LimitedReader{R: reader, N: maxSize + 1} // +1 to detect oversized
		src = limited
	}

	if _, err := io.Copy(tempFile, src); err != nil {
		return fmt.Errorf("write stream: %w", err)
	}

	if limited != nil && limited.N <= 0 {
		return fmt.Errorf("%w: exceeds %d bytes", ErrFileTooLarge, maxSize)
	}

	if err := tempFile.Sync(); err != nil {
		return fmt.Errorf("sync file: %w", err)
	}
	if err := tempFile.Close(); err != nil {
		return fmt.Errorf("close temp file: %w", err)
	}

	if err := os.Rename(tempPath, path); err != nil {
		return fmt.Errorf("rename temp file: %w", err)
	}

	success = true
	return nil
}
