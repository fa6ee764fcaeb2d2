package faces

import (
	"bytes"
	"fmt"
	"image"
	"image/jpeg"
	_ "image/png" // register PNG decoder for sighting and enrollment photos
	"os"

	"golang.org/x/image/draw"
)

const (
	// maxCropSide bounds stored crops so attachments stay small.
	maxCropSide = 512
	cropQuality = 90
)

// decodeImageFile reads and decodes a JPEG or PNG file.
func decodeImageFile(path string) (image.Image, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: open %s: %w", ErrMediaUnreadable, path, err)
	}
	defer f.Close()

	img, _, err := image.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("%w: decode %s: %w", ErrMediaUnreadable, path, err)
	}

	return img, nil
}

// cropFace copies box out of frame, downscaling to maxCropSide on the long edge.
func cropFace(frame image.Image, box image.Rectangle) image.Image {
	box = box.Intersect(frame.Bounds())
	w, h := box.Dx(), box.Dy()

	if w > maxCropSide || h > maxCropSide {
		if w >= h {
			h = h * maxCropSide / w
			w = maxCropSide
		} else {
			w = w * maxCropSide / h
			h = maxCropSide
		}
	}

	dst := image.NewRGBA(image.Rect(0, 0, max(w, 1), max(h, 1)))
	draw.BiLinear.Scale(dst, dst.Bounds(), frame, box, draw.Src, nil)

	return dst
}

func encodeJPEG(img image.Image) ([]byte, error) {
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: cropQuality}); err != nil {
		return nil, fmt.Errorf("encode jpeg: %w", err)
	}

	return buf.Bytes(), nil
}

// keepFace reports whether a detection is large enough to be used.
func keepFace(d Detection, minSize int) bool {
	return d.Box.Dx() >= minSize && d.Box.Dy() >= minSize
}

// largest returns the detection with the biggest box area. ok is false for an empty slice.
func largest(detections []Detection) (Detection, bool) {
	if len(detections) == 0 {
		return Detection{}, false
	}

	best := detections[0]
	for _, d := range detections[1:] {
		if d.Area() > best.Area() {
			best = d
		}
	}

	return best, true
}
