//go:build gocv

package faces

import (
	"context"
	"errors"
	"fmt"
	"image"
	"io"
	"sync"

	"gocv.io/x/gocv"

	"github.com/reunite/hub/internal/embedding"
	"github.com/reunite/hub/pkg/embeddings"
)

const (
	histogramBins = 256
	histogramSide = 100
)

// OpenCVEmbedder detects faces with a Haar cascade and embeds each one as an
// L2-normalized grayscale histogram of the crop resized to 100x100.
type OpenCVEmbedder struct {
	mu         sync.Mutex // CascadeClassifier is not safe for concurrent use
	classifier gocv.CascadeClassifier
}

// NewOpenCVEmbedder loads the cascade file at cascadePath.
func NewOpenCVEmbedder(cascadePath string) (*OpenCVEmbedder, error) {
	classifier := gocv.NewCascadeClassifier()
	if !classifier.Load(cascadePath) {
		classifier.Close()

		return nil, fmt.Errorf("load cascade %s", cascadePath)
	}

	return &OpenCVEmbedder{classifier: classifier}, nil
}

// Name returns the strategy name.
func (o *OpenCVEmbedder) Name() string { return "opencv" }

// Version returns the embedding version tag for histogram vectors.
func (o *OpenCVEmbedder) Version() byte { return embedding.VersionHistogram }

// Close releases the classifier.
func (o *OpenCVEmbedder) Close() error {
	o.mu.Lock()
	defer o.mu.Unlock()

	return o.classifier.Close()
}

// Detect finds faces in frame and returns one histogram embedding per face.
func (o *OpenCVEmbedder) Detect(_ context.Context, frame image.Image) ([]Detection, error) {
	rgb, err := gocv.ImageToMatRGB(frame)
	if err != nil {
		return nil, fmt.Errorf("%w: convert frame: %w", ErrFrameRejected, err)
	}
	defer rgb.Close()

	gray := gocv.NewMat()
	defer gray.Close()
	gocv.CvtColor(rgb, &gray, gocv.ColorRGBToGray)

	o.mu.Lock()
	rects := o.classifier.DetectMultiScaleWithParams(gray, 1.1, 4, 0, image.Point{}, image.Point{})
	o.mu.Unlock()

	detections := make([]Detection, 0, len(rects))
	for _, r := range rects {
		vec, err := histogramEmbedding(gray, r)
		if err != nil {
			return nil, err
		}

		detections = append(detections, Detection{Box: r, Score: 1, Embedding: vec})
	}

	return detections, nil
}

func histogramEmbedding(gray gocv.Mat, r image.Rectangle) ([]float32, error) {
	roi := gray.Region(r)
	defer roi.Close()

	resized := gocv.NewMat()
	defer resized.Close()
	gocv.Resize(roi, &resized, image.Pt(histogramSide, histogramSide), 0, 0, gocv.InterpolationLinear)

	mask := gocv.NewMat()
	defer mask.Close()

	hist := gocv.NewMat()
	defer hist.Close()
	gocv.CalcHist([]gocv.Mat{resized}, []int{0}, mask, &hist, []int{histogramBins}, []float64{0, histogramBins}, false)

	if hist.Rows() != histogramBins {
		return nil, fmt.Errorf("%w: histogram has %d bins, want %d", ErrFrameRejected, hist.Rows(), histogramBins)
	}

	vec := make([]float32, histogramBins)
	for i := range vec {
		vec[i] = hist.GetFloatAt(i, 0)
	}

	embeddings.NormalizeL2(vec)

	return vec, nil
}

// OpenCVVideoDecoder reads video files with gocv.VideoCapture.
type OpenCVVideoDecoder struct{}

// NewVideoDecoder returns the OpenCV-backed decoder.
func NewVideoDecoder() VideoDecoder {
	return OpenCVVideoDecoder{}
}

// Open starts capture from the file at path.
func (OpenCVVideoDecoder) Open(path string) (VideoReader, error) {
	vc, err := gocv.VideoCaptureFile(path)
	if err != nil {
		return nil, fmt.Errorf("open capture: %w", err)
	}

	if !vc.IsOpened() {
		vc.Close()

		return nil, errors.New("capture not opened")
	}

	return &captureReader{vc: vc, mat: gocv.NewMat()}, nil
}

type captureReader struct {
	vc  *gocv.VideoCapture
	mat gocv.Mat
}

func (c *captureReader) FPS() float64 {
	return c.vc.Get(gocv.VideoCaptureFPS)
}

func (c *captureReader) Read() (image.Image, error) {
	if ok := c.vc.Read(&c.mat); !ok || c.mat.Empty() {
		return nil, io.EOF
	}

	img, err := c.mat.ToImage()
	if err != nil {
		return nil, fmt.Errorf("convert frame: %w", err)
	}

	return img, nil
}

func (c *captureReader) Close() error {
	c.mat.Close()

	return c.vc.Close()
}
