//go:build !gocv

package faces

import (
	"context"
	"errors"
	"image"
)

// ErrOpenCVUnavailable is returned when the opencv strategy is selected in a build
// without the gocv tag.
var ErrOpenCVUnavailable = errors.New("opencv strategy requires a build with -tags gocv")

// OpenCVEmbedder is unavailable in this build.
type OpenCVEmbedder struct{}

// NewOpenCVEmbedder always fails in builds without OpenCV.
func NewOpenCVEmbedder(string) (*OpenCVEmbedder, error) {
	return nil, ErrOpenCVUnavailable
}

// Name returns the strategy name.
func (o *OpenCVEmbedder) Name() string { return "opencv" }

// Version returns zero: no vectors are produced.
func (o *OpenCVEmbedder) Version() byte { return 0 }

// Close is a no-op.
func (o *OpenCVEmbedder) Close() error { return nil }

// Detect always fails.
func (o *OpenCVEmbedder) Detect(context.Context, image.Image) ([]Detection, error) {
	return nil, ErrOpenCVUnavailable
}

// NewVideoDecoder returns a decoder that rejects every file, so video sightings are
// reported as unreadable.
func NewVideoDecoder() VideoDecoder {
	return unsupportedVideoDecoder{}
}
