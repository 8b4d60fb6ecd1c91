package archive

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// FilesystemArchiver stores exports as files under a root directory,
// one file per key. Writes are atomic (temp file + rename) so an
// interrupted export never leaves a half-written file behind.
type FilesystemArchiver struct {
	name string
	root string
}

var _ Archiver = (*FilesystemArchiver)(nil)

// NewFilesystemArchiver creates a filesystem archiver rooted at the given path.
func NewFilesystemArchiver(name, root string) (*FilesystemArchiver, error) {
	if err := os.MkdirAll(root, 0755); err != nil {
		return nil, fmt.Errorf("failed to create archive root: %w", err)
	}
	return &FilesystemArchiver{name: name, root: root}, nil
}

func (a *FilesystemArchiver) Put(_ context.Context, key string, r io.Reader, size int64) error {
	destPath := filepath.Join(a.root, filepath.FromSlash(key))
	if err := os.MkdirAll(filepath.Dir(destPath), 0755); err != nil {
		return fmt.Errorf("failed to create export directory: %w", err)
	}

	tmpFile, err := os.CreateTemp(filepath.Dir(destPath), ".tmp-*")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpPath := tmpFile.Name()

	success := false
	defer func() {
		if !success {
			os.Remove(tmpPath)
		}
	}()

	written, err := io.Copy(tmpFile, r)
	if err != nil {
		tmpFile.Close()
		return fmt.Errorf("failed to write export: %w", err)
	}
	if err := tmpFile.Close(); err != nil {
		return fmt.Errorf("failed to close temp file: %w", err)
	}

	if written != size {
		return fmt.Errorf("size mismatch: expected %d bytes, got %d", size, written)
	}

	if err := os.Rename(tmpPath, destPath); err != nil {
		return fmt.Errorf("failed to rename temp file: %w", err)
	}

	success = true
	return nil
}

func (a *FilesystemArchiver) Get(_ context.Context, key string, w io.Writer) error {
	f, err := os.Open(filepath.Join(a.root, filepath.FromSlash(key)))
	if err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("export not found: %s", key)
		}
		return fmt.Errorf("failed to open export: %w", err)
	}
	defer f.Close()

	if _, err := io.Copy(w, f); err != nil {
		return fmt.Errorf("failed to read export: %w", err)
	}
	return nil
}

// ValidateSetup verifies that the archive root is an accessible directory.
func (a *FilesystemArchiver) ValidateSetup(context.Context) error {
	info, err := os.Stat(a.root)
	if err != nil {
		return fmt.Errorf("archive root not accessible: %w", err)
	}
	if !info.IsDir() {
		return fmt.Errorf("archive root is not a directory: %s", a.root)
	}
	return nil
}
