package service

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

// MediaStore keeps uploaded originals (sighting media, case photos) on local disk,
// where face extraction reads them.
type MediaStore struct {
	root string
}

// NewMediaStore creates a store rooted at root.
func NewMediaStore(root string) *MediaStore {
	return &MediaStore{root: root}
}

// Save streams r into root/dir/<uuid><ext> and returns the file path.
func (m *MediaStore) Save(_ context.Context, dir, ext string, r io.Reader) (string, error) {
	ext = strings.ToLower(filepath.Ext("x" + ext))

	target := filepath.Join(m.root, dir)
	if err := os.MkdirAll(target, 0o755); err != nil {
		return "", fmt.Errorf("create media dir: %w", err)
	}

	path := filepath.Join(target, uuid.NewString()+ext)

	f, err := os.Create(path) //nolint:gosec // name is generated
	if err != nil {
		return "", fmt.Errorf("create media file: %w", err)
	}

	if _, err := io.Copy(f, r); err != nil {
		_ = f.Close()
		_ = os.Remove(path)

		return "", fmt.Errorf("write media file: %w", err)
	}

	if err := f.Close(); err != nil {
		_ = os.Remove(path)

		return "", fmt.Errorf("close media file: %w", err)
	}

	return path, nil
}

// Delete removes the file at path. Missing files are not an error.
func (m *MediaStore) Delete(_ context.Context, path string) error {
	if path == "" {
		return nil
	}

	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("delete media file: %w", err)
	}

	return nil
}
