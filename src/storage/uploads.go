// Package storage keeps uploaded broker files on disk while their batch is staged.
package storage

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"github.com/username/dividendlog/backend/src/logger"
)

var ErrOutsideUploadDir = errors.New("path is outside the upload directory")

type UploadStore struct {
	dir string
}

// NewUploadStore creates dir if needed.
func NewUploadStore(dir string) (*UploadStore, error) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("resolving upload dir %s: %w", dir, err)
	}
	if err := os.MkdirAll(abs, 0o750); err != nil {
		return nil, fmt.Errorf("creating upload dir %s: %w", abs, err)
	}
	return &UploadStore{dir: abs}, nil
}

func (s *UploadStore) Dir() string { return s.dir }

// Save writes r to a new file named dividend_import_<broker>_<uuid>.<ext> and
// returns its path. A partially written file is removed.
func (s *UploadStore) Save(brokerID int, ext string, r io.Reader) (string, error) {
	name := fmt.Sprintf("dividend_import_%d_%s.%s", brokerID, uuid.NewString(), ext)
	path := filepath.Join(s.dir, name)

	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o600)
	if err != nil {
		return "", fmt.Errorf("creating upload file: %w", err)
	}
	if _, err := io.Copy(f, r); err != nil {
		f.Close()
		os.Remove(path)
		return "", fmt.Errorf("writing upload file: %w", err)
	}
	if err := f.Close(); err != nil {
		os.Remove(path)
		return "", fmt.Errorf("closing upload file: %w", err)
	}
	logger.L.Debug("Stored uploaded file", "path", path)
	return path, nil
}

func (s *UploadStore) Open(path string) (*os.File, error) {
	if err := s.contains(path); err != nil {
		return nil, err
	}
	return os.Open(path)
}

// Remove deletes a stored file. A file that is already gone is not an error.
func (s *UploadStore) Remove(path string) error {
	if path == "" {
		return nil
	}
	if err := s.contains(path); err != nil {
		return err
	}
	if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("removing upload file: %w", err)
	}
	logger.L.Debug("Removed uploaded file", "path", path)
	return nil
}

func (s *UploadStore) contains(path string) error {
	rel, err := filepath.Rel(s.dir, filepath.Clean(path))
	if err != nil || rel == "." || strings.HasPrefix(rel, "..") {
		return fmt.Errorf("%w: %s", ErrOutsideUploadDir, path)
	}
	return nil
}
