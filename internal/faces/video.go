package faces

import (
	"errors"
	"image"
	"math"
)

// ErrVideoUnsupported is returned by the decoder used in builds without OpenCV.
var ErrVideoUnsupported = errors.New("video decoding not available in this build")

// VideoDecoder opens video files for frame-by-frame reading.
type VideoDecoder interface {
	Open(path string) (VideoReader, error)
}

// VideoReader yields decoded frames in order. Read returns io.EOF after the last frame.
type VideoReader interface {
	FPS() float64
	Read() (image.Image, error)
	Close() error
}

// maxSampleInterval caps the interval for decoders reporting absurd frame rates.
const maxSampleInterval = 1 << 20

// SampleInterval returns how many frames apart samples are taken: one per second of
// source at the reported frame rate, or every frame when the rate is unknown.
func SampleInterval(fps float64) int {
	if math.IsNaN(fps) || math.IsInf(fps, 0) || fps < 1 {
		return 1
	}

	if fps >= maxSampleInterval {
		return maxSampleInterval
	}

	return int(fps)
}

type unsupportedVideoDecoder struct{}

func (unsupportedVideoDecoder) Open(string) (VideoReader, error) {
	return nil, ErrVideoUnsupported
}
