package faces

import (
	"context"
	"errors"
	"fmt"
	"image"
	"io"
	"log/slog"

	"github.com/google/uuid"

	"github.com/reunite/hub/internal/models"
)

// DefaultMinFaceSize is the minimum face width and height in pixels.
const DefaultMinFaceSize = 50

// Extractor streams faces out of sighting media using one FaceEmbedder strategy.
type Extractor struct {
	embedder    FaceEmbedder
	store       ArtifactStore
	video       VideoDecoder
	minFaceSize int
	logger      *slog.Logger
}

// ExtractorOption configures an Extractor.
type ExtractorOption func(*Extractor)

// WithVideoDecoder sets the decoder used for video sightings.
func WithVideoDecoder(d VideoDecoder) ExtractorOption {
	return func(e *Extractor) {
		if d != nil {
			e.video = d
		}
	}
}

// WithMinFaceSize sets the minimum face side in pixels.
func WithMinFaceSize(n int) ExtractorOption {
	return func(e *Extractor) {
		if n > 0 {
			e.minFaceSize = n
		}
	}
}

// WithLogger sets the logger for per-frame diagnostics.
func WithLogger(l *slog.Logger) ExtractorOption {
	return func(e *Extractor) {
		if l != nil {
			e.logger = l
		}
	}
}

// NewExtractor creates an extractor over embedder, saving crops into store.
func NewExtractor(embedder FaceEmbedder, store ArtifactStore, opts ...ExtractorOption) *Extractor {
	e := &Extractor{
		embedder:    embedder,
		store:       store,
		video:       unsupportedVideoDecoder{},
		minFaceSize: DefaultMinFaceSize,
		logger:      slog.Default(),
	}

	for _, opt := range opts {
		opt(e)
	}

	return e
}

// Version returns the strategy version of every embedding this extractor produces.
func (e *Extractor) Version() byte {
	return e.embedder.Version()
}

// Store returns the artifact store crops are written to.
func (e *Extractor) Store() ArtifactStore {
	return e.store
}

// Extract opens the media and returns a stream of its faces. Nothing is decoded
// beyond the first frame until Next is called. An error wrapping ErrMediaUnreadable
// means the media could not be opened at all; the stream may also end with such an
// error if a later frame fails to decode, or with the embedder's error when Detect
// fails for a reason other than ErrFrameRejected.
func (e *Extractor) Extract(ctx context.Context, sightingID uuid.UUID, mediaPath string, kind models.MediaKind) (*FaceStream, error) {
	var (
		src frameSource
		err error
	)

	switch kind {
	case models.MediaKindImage:
		src, err = openImageSource(mediaPath)
	case models.MediaKindVideo:
		src, err = e.openVideoSource(mediaPath)
	default:
		err = fmt.Errorf("%w: unknown media kind %q", ErrMediaUnreadable, kind)
	}

	if err != nil {
		return nil, err
	}

	return &FaceStream{
		ctx:        ctx,
		extractor:  e,
		src:        src,
		sightingID: sightingID,
		kind:       kind,
	}, nil
}

// ExtractPrimary returns the embedding of the largest face in the image at path.
// Returns ErrNoFaceFound when no face is detected or the largest one is below the
// minimum size.
func (e *Extractor) ExtractPrimary(ctx context.Context, imagePath string) ([]float32, error) {
	img, err := decodeImageFile(imagePath)
	if err != nil {
		return nil, err
	}

	detections, err := e.embedder.Detect(ctx, img)
	if err != nil {
		return nil, fmt.Errorf("detect faces: %w", err)
	}

	best, ok := largest(detections)
	if !ok || !keepFace(best, e.minFaceSize) || len(best.Embedding) == 0 {
		return nil, ErrNoFaceFound
	}

	return best.Embedding, nil
}

func (e *Extractor) openVideoSource(path string) (frameSource, error) {
	reader, err := e.video.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: open video %s: %w", ErrMediaUnreadable, path, err)
	}

	return &videoSource{reader: reader, interval: SampleInterval(reader.FPS()), next: 0}, nil
}

// frameSource yields sampled frames with their index in the source media.
type frameSource interface {
	nextFrame() (img image.Image, index int, err error)
	close() error
}

type imageSource struct {
	img  image.Image
	done bool
}

func openImageSource(path string) (*imageSource, error) {
	img, err := decodeImageFile(path)
	if err != nil {
		return nil, err
	}

	return &imageSource{img: img}, nil
}

func (s *imageSource) nextFrame() (image.Image, int, error) {
	if s.done {
		return nil, 0, io.EOF
	}

	s.done = true

	return s.img, 0, nil
}

func (s *imageSource) close() error { return nil }

type videoSource struct {
	reader   VideoReader
	interval int
	next     int
}

// nextFrame reads frames until one falls on the sampling interval.
func (s *videoSource) nextFrame() (image.Image, int, error) {
	for {
		img, err := s.reader.Read()
		if err != nil {
			if errors.Is(err, io.EOF) {
				return nil, 0, io.EOF
			}

			return nil, 0, fmt.Errorf("%w: read frame %d: %w", ErrMediaUnreadable, s.next, err)
		}

		index := s.next
		s.next++

		if index%s.interval == 0 {
			return img, index, nil
		}
	}
}

func (s *videoSource) close() error { return s.reader.Close() }

// FaceStream is a lazy, single-pass sequence of extracted faces.
//
//	for stream.Next() {
//		a := stream.Artifact()
//	}
//	err := stream.Err()
type FaceStream struct {
	ctx        context.Context //nolint:containedctx // stream is bound to one extraction call
	extractor  *Extractor
	src        frameSource
	sightingID uuid.UUID
	kind       models.MediaKind

	frame      image.Image
	frameIndex int
	pending    []Detection
	faceIndex  int

	current  Artifact
	err      error
	finished bool
	frames   int
}

// Next advances to the next face. It returns false at the end or on error.
func (s *FaceStream) Next() bool {
	if s.finished {
		return false
	}

	for {
		if err := s.ctx.Err(); err != nil {
			return s.fail(err)
		}

		for s.faceIndex < len(s.pending) {
			d := s.pending[s.faceIndex]
			i := s.faceIndex
			s.faceIndex++

			if !keepFace(d, s.extractor.minFaceSize) || len(d.Embedding) == 0 {
				continue
			}

			artifact, err := s.store(d, i)
			if err != nil {
				s.extractor.logger.Warn("Failed to store face artifact, skipping face",
					"sighting_id", s.sightingID, "frame", s.frameIndex, "face", i, "error", err)

				continue
			}

			s.current = artifact

			return true
		}

		frame, index, err := s.src.nextFrame()
		if err != nil {
			if errors.Is(err, io.EOF) {
				s.finished = true

				return false
			}

			return s.fail(err)
		}

		s.frames++

		detections, err := s.extractor.embedder.Detect(s.ctx, frame)
		if err != nil {
			if !errors.Is(err, ErrFrameRejected) {
				return s.fail(fmt.Errorf("detect faces in frame %d: %w", index, err))
			}

			// a frame the strategy rejects is skipped like a frame with no faces
			s.extractor.logger.Warn("Face detection rejected frame",
				"sighting_id", s.sightingID, "frame", index, "strategy", s.extractor.embedder.Name(), "error", err)

			detections = nil
		}

		s.frame = frame
		s.frameIndex = index
		s.pending = detections
		s.faceIndex = 0
	}
}

func (s *FaceStream) store(d Detection, faceIndex int) (Artifact, error) {
	data, err := encodeJPEG(cropFace(s.frame, d.Box))
	if err != nil {
		return Artifact{}, err
	}

	key := ArtifactKey(s.sightingID, s.kind, s.frameIndex, faceIndex)

	path, err := s.extractor.store.Save(s.ctx, key, data)
	if err != nil {
		return Artifact{}, fmt.Errorf("save %s: %w", key, err)
	}

	return Artifact{
		SightingID: s.sightingID,
		FrameIndex: s.frameIndex,
		FaceIndex:  faceIndex,
		Path:       path,
		Box:        d.Box,
		Score:      d.Score,
		Embedding:  d.Embedding,
	}, nil
}

func (s *FaceStream) fail(err error) bool {
	s.err = err
	s.finished = true

	return false
}

// Artifact returns the face Next advanced to.
func (s *FaceStream) Artifact() Artifact {
	return s.current
}

// Err returns the error that ended the stream, if any.
func (s *FaceStream) Err() error {
	return s.err
}

// FramesSampled returns how many frames have been run through detection so far.
func (s *FaceStream) FramesSampled() int {
	return s.frames
}

// Close releases the underlying media.
func (s *FaceStream) Close() error {
	s.finished = true

	return s.src.close()
}
