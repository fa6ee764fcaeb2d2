package faces

import (
	"context"
	"image"
	"image/color"
	"image/png"
	"io"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
)

// fakeEmbedder returns canned detections per Detect call, in order. Calls past the
// end of the script return no faces.
type fakeEmbedder struct {
	mu      sync.Mutex
	script  [][]Detection
	errs    map[int]error
	calls   int
	version byte
}

func (f *fakeEmbedder) Detect(_ context.Context, _ image.Image) ([]Detection, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	call := f.calls
	f.calls++

	if err, ok := f.errs[call]; ok {
		return nil, err
	}

	if call < len(f.script) {
		return f.script[call], nil
	}

	return nil, nil
}

func (f *fakeEmbedder) Version() byte { return f.version }
func (f *fakeEmbedder) Name() string  { return "fake" }

func detection(x, y, side int, vec ...float32) Detection {
	return Detection{Box: image.Rect(x, y, x+side, y+side), Score: 0.9, Embedding: vec}
}

func testImage(w, h int) image.Image {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := range h {
		for x := range w {
			img.Set(x, y, color.RGBA{R: uint8(x), G: uint8(y), B: 128, A: 255})
		}
	}

	return img
}

func writePNG(t *testing.T, dir string, w, h int) string {
	t.Helper()

	path := filepath.Join(dir, "sighting.png")
	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close()

	require.NoError(t, png.Encode(f, testImage(w, h)))

	return path
}

// fakeVideo serves a fixed number of identical frames.
type fakeVideo struct {
	fps     float64
	frames  int
	failAt  int
	read    int
	closed  bool
	openErr error
}

func (v *fakeVideo) Open(string) (VideoReader, error) {
	if v.openErr != nil {
		return nil, v.openErr
	}

	return v, nil
}

func (v *fakeVideo) FPS() float64 { return v.fps }

func (v *fakeVideo) Read() (image.Image, error) {
	if v.failAt > 0 && v.read == v.failAt {
		return nil, io.ErrUnexpectedEOF
	}

	if v.read >= v.frames {
		return nil, io.EOF
	}

	v.read++

	return testImage(200, 200), nil
}

func (v *fakeVideo) Close() error {
	v.closed = true

	return nil
}
