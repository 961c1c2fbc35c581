package storage

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// AssetStore is the collaborator responsible for durable storage of uploaded
// image bytes, addressed by server-generated filename.
type AssetStore interface {
	Save(filename string, r io.Reader) error
	Delete(filename string) error
	Exists(filename string) bool
	Path(filename string) string
}

// DiskStore stores assets as plain files under a single root directory.
type DiskStore struct {
	root string
}

// NewDiskStore creates the root directory if needed and returns a DiskStore
func NewDiskStore(root string) (*DiskStore, error) {
	if err := os.MkdirAll(root, os.ModePerm); err != nil {
		return nil, fmt.Errorf("failed to create assets directory %s: %w", root, err)
	}
	return &DiskStore{root: root}, nil
}

// Save writes the asset bytes under filename, replacing any previous content.
// Filenames are generated tokens; the Base call is a safety net against a
// caller ever passing through a client-controlled path.
func (s *DiskStore) Save(filename string, r io.Reader) error {
	dst, err := os.Create(s.Path(filename))
	if err != nil {
		return fmt.Errorf("failed to create asset file: %w", err)
	}
	defer dst.Close()

	if _, err := io.Copy(dst, r); err != nil {
		return fmt.Errorf("failed to write asset file: %w", err)
	}
	return nil
}

// Delete removes the asset. A missing file is not an error.
func (s *DiskStore) Delete(filename string) error {
	err := os.Remove(s.Path(filename))
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to delete asset file: %w", err)
	}
	return nil
}

// Exists reports whether the asset is present on disk
func (s *DiskStore) Exists(filename string) bool {
	_, err := os.Stat(s.Path(filename))
	return err == nil
}

// Path returns the on-disk location of the asset
func (s *DiskStore) Path(filename string) string {
	return filepath.Join(s.root, filepath.Base(filename))
}
