package storage

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/TheMichaelB/vaultctl/internal/config"
	"github.com/TheMichaelB/vaultctl/internal/events"
)

// Source opens container byte streams.
type Source interface {
	// Open returns a reader positioned at offset 0 and the file metadata.
	Open(path string) (io.ReadCloser, FileInfo, error)
}

// FileInfo contains file metadata.
type FileInfo struct {
	Path       string
	Size       int64
	Mode       os.FileMode
	ModTime    time.Time
	IsSymlink  bool
	LinkTarget string
}

// Errors
var (
	ErrNotRegularFile = errors.New("not a regular file")
	ErrFileTooLarge   = errors.New("file too large")
	ErrSymlink        = errors.New("symlinks not allowed")
)

// LocalSource reads containers from the local file system.
type LocalSource struct {
	logger *events.Logger

	// Security settings
	allowSymlinks bool
	maxFileSize   int64
}

// NewLocalSource creates a file system source with the load limits from cfg.
func NewLocalSource(cfg config.LoadConfig, logger *events.Logger) *LocalSource {
	return &LocalSource{
		logger:        logger.WithField("component", "local_source"),
		allowSymlinks: cfg.AllowSymlinks,
		maxFileSize:   cfg.MaxFileSize,
	}
}

// Open validates path and opens it for reading.
func (s *LocalSource) Open(path string) (io.ReadCloser, FileInfo, error) {
	if path == "" {
		return nil, FileInfo{}, errors.New("path is empty")
	}
	if strings.ContainsRune(path, 0) {
		return nil, FileInfo{}, errors.New("invalid path: contains null bytes")
	}

	cleaned := filepath.Clean(path)

	lstat, err := os.Lstat(cleaned)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, FileInfo{}, fmt.Errorf("file not found: %s: %w", path, err)
		}
		return nil, FileInfo{}, fmt.Errorf("stat file: %w", err)
	}

	info := FileInfo{
		Path:      cleaned,
		Mode:      lstat.Mode(),
		ModTime:   lstat.ModTime(),
		IsSymlink: lstat.Mode()&os.ModeSymlink != 0,
	}

	if info.IsSymlink {
		if !s.allowSymlinks {
			return nil, FileInfo{}, fmt.Errorf("%s: %w", path, ErrSymlink)
		}
		if target, err := os.Readlink(cleaned); err == nil {
			info.LinkTarget = target
		}
	}

	file, err := os.Open(cleaned)
	if err != nil {
		return nil, FileInfo{}, fmt.Errorf("open file: %w", err)
	}

	// Stat the open handle so the checks apply to what is actually read.
	stat, err := file.Stat()
	if err != nil {
		file.Close()
		return nil, FileInfo{}, fmt.Errorf("stat file: %w", err)
	}
	if !stat.Mode().IsRegular() {
		file.Close()
		return nil, FileInfo{}, fmt.Errorf("%s: %w", path, ErrNotRegularFile)
	}
	if stat.Size() > s.maxFileSize {
		file.Close()
		return nil, FileInfo{}, fmt.Errorf("%s: %w: %d bytes (max: %d)", path, ErrFileTooLarge, stat.Size(), s.maxFileSize)
	}
	info.Size = stat.Size()

	s.logger.WithFields(map[string]interface{}{
		"path":    cleaned,
		"size":    info.Size,
		"symlink": info.IsSymlink,
	}).Debug("Opened container")

	return file, info, nil
}
