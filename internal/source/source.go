package source

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"path"
	"path/filepath"

	"github.com/google/uuid"
	"github.com/spf13/afero"
)

// ErrSourceMissing is returned when an asset's original path cannot be
// read anymore (file moved or deleted between attempts).
var ErrSourceMissing = errors.New("source file is missing")

// Store abstracts the filesystem the retry sweep re-reads asset bytes from.
// It also stages inline payloads so that an upload submitted as raw bytes
// stays retryable after the request that carried them is gone.
type Store interface {
	// Open returns a reader over the bytes at originalPath.
	Open(originalPath string) (io.ReadCloser, error)

	// Stash writes data to the staging area and returns the path it can be
	// re-read from later.
	Stash(data []byte, filename string) (string, error)
}

// fileStore implements Store on top of an afero filesystem
// (OsFs in production, MemMapFs in tests).
type fileStore struct {
	fs         afero.Fs
	stagingDir string
}

// NewFileStore creates a source store rooted at stagingDir for stashed payloads.
func NewFileStore(filesystem afero.Fs, stagingDir string) Store {
	return &fileStore{fs: filesystem, stagingDir: stagingDir}
}

func (s *fileStore) Open(originalPath string) (io.ReadCloser, error) {
	if originalPath == "" {
		return nil, ErrSourceMissing
	}
	f, err := s.fs.Open(originalPath)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, ErrSourceMissing
		}
		return nil, err
	}
	return f, nil
}

func (s *fileStore) Stash(data []byte, filename string) (string, error) {
	if err := s.fs.MkdirAll(s.stagingDir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create staging dir: %w", err)
	}

	// Unique name so identical filenames from different uploads never collide.
	name := fmt.Sprintf("%s%s", uuid.NewString(), filepath.Ext(filename))
	stagedPath := path.Join(s.stagingDir, name)

	if err := afero.WriteFile(s.fs, stagedPath, data, 0o644); err != nil {
		return "", fmt.Errorf("failed to stage payload: %w", err)
	}
	return stagedPath, nil
}
