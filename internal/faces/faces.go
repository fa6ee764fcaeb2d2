// Package faces turns sighting media into face crops and embeddings.
//
// The embedding capability itself sits behind the FaceEmbedder strategy interface.
// One strategy is chosen from configuration at startup and injected into an
// Extractor, which handles frame sampling, size filtering and artifact storage.
package faces

import (
	"context"
	"errors"
	"image"

	"github.com/google/uuid"
)

var (
	// ErrMediaUnreadable is returned when media cannot be opened or decoded.
	ErrMediaUnreadable = errors.New("media unreadable")
	// ErrNoFaceFound is returned by ExtractPrimary when the image holds no usable face.
	ErrNoFaceFound = errors.New("no face found")
	// ErrFrameRejected marks a Detect error specific to one frame. The extractor
	// skips that frame and keeps going.
	ErrFrameRejected = errors.New("frame rejected")
	// ErrEmbedderUnavailable marks a Detect error caused by the strategy itself,
	// such as an unreachable face service. Extraction stops so the run can be retried.
	ErrEmbedderUnavailable = errors.New("face embedder unavailable")
)

// Detection is one face found in a frame.
type Detection struct {
	Box       image.Rectangle
	Score     float64
	Embedding []float32
}

// Area returns the bounding box area in pixels.
func (d Detection) Area() int {
	return d.Box.Dx() * d.Box.Dy()
}

// FaceEmbedder detects faces in a frame and embeds each one.
// Every embedding returned by one implementation has the same length, and Version
// identifies the vector space so stored blobs from another strategy are never compared.
type FaceEmbedder interface {
	Detect(ctx context.Context, frame image.Image) ([]Detection, error)
	Version() byte
	Name() string
}

// Artifact is one extracted face: where its crop was stored and its embedding.
type Artifact struct {
	SightingID uuid.UUID
	FrameIndex int
	FaceIndex  int
	Path       string
	Box        image.Rectangle
	Score      float64
	Embedding  []float32
}
