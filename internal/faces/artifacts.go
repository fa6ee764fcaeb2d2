package faces

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/uuid"

	"github.com/reunite/hub/internal/models"
)

// ArtifactStore persists face crops and reads them back for alert attachments.
type ArtifactStore interface {
	// Save stores data under key and returns the path to reference it by.
	Save(ctx context.Context, key string, data []byte) (string, error)
	Load(ctx context.Context, path string) ([]byte, error)
	Delete(ctx context.Context, path string) error
}

// ArtifactKey names the crop of one face. Image faces are numbered by detection
// index; video faces also carry the source frame index.
func ArtifactKey(sightingID uuid.UUID, kind models.MediaKind, frameIndex, faceIndex int) string {
	dir := fmt.Sprintf("sightings/sighting_%s", sightingID)
	if kind == models.MediaKindVideo {
		return fmt.Sprintf("%s/face_%d_%d.jpg", dir, frameIndex, faceIndex)
	}

	return fmt.Sprintf("%s/sighting_face_%d.jpg", dir, faceIndex)
}

// DiskStore keeps artifacts on the local filesystem below root.
type DiskStore struct {
	root string
}

// NewDiskStore creates a store rooted at root.
func NewDiskStore(root string) *DiskStore {
	return &DiskStore{root: root}
}

// Save writes data to root/key, creating directories as needed.
func (s *DiskStore) Save(_ context.Context, key string, data []byte) (string, error) {
	path := filepath.Join(s.root, filepath.FromSlash(key))

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return "", fmt.Errorf("create artifact dir: %w", err)
	}

	if err := os.WriteFile(path, data, 0o644); err != nil { //nolint:gosec // crops are served to operators
		return "", fmt.Errorf("write artifact: %w", err)
	}

	return path, nil
}

// Load reads the file at path.
func (s *DiskStore) Load(_ context.Context, path string) ([]byte, error) {
	data, err := os.ReadFile(path) //nolint:gosec // path comes from our own Save
	if err != nil {
		return nil, fmt.Errorf("read artifact: %w", err)
	}

	return data, nil
}

// Delete removes the file at path. Missing files are not an error.
func (s *DiskStore) Delete(_ context.Context, path string) error {
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("delete artifact: %w", err)
	}

	return nil
}
