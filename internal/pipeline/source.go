package pipeline

import (
	"context"

	"github.com/reunite/hub/internal/faces"
	"github.com/reunite/hub/internal/models"
)

// FaceStream is a single-pass sequence of extracted faces.
type FaceStream interface {
	Next() bool
	Artifact() faces.Artifact
	Err() error
	Close() error
}

// FaceSource opens the face stream of a sighting's media.
type FaceSource interface {
	Open(ctx context.Context, s *models.Sighting) (FaceStream, error)
	// Version is the embedding strategy version of every face the source yields.
	Version() byte
}

type extractorSource struct {
	extractor *faces.Extractor
}

// NewExtractorSource adapts a faces.Extractor to FaceSource.
func NewExtractorSource(e *faces.Extractor) FaceSource {
	return extractorSource{extractor: e}
}

func (s extractorSource) Open(ctx context.Context, sighting *models.Sighting) (FaceStream, error) {
	stream, err := s.extractor.Extract(ctx, sighting.ID, sighting.MediaPath, sighting.MediaKind)
	if err != nil {
		return nil, err
	}

	return stream, nil
}

func (s extractorSource) Version() byte {
	return s.extractor.Version()
}
