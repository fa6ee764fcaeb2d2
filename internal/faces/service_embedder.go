package faces

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"image"
	"io"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	"github.com/hashicorp/go-retryablehttp"
	"golang.org/x/time/rate"

	"github.com/reunite/hub/internal/embedding"
)

const defaultFaceServiceURL = "http://localhost:8000"

// ServiceEmbedderOptions configures the face embedding server client.
type ServiceEmbedderOptions struct {
	BaseURL string
	// RequestsPerSecond caps outbound calls; zero disables the limit.
	RequestsPerSecond float64
	Timeout           time.Duration
	RetryMax          int
}

// ServiceEmbedder calls an external face embedding server that detects and embeds
// every face in an uploaded image.
type ServiceEmbedder struct {
	baseURL    string
	httpClient *retryablehttp.Client
	limiter    *rate.Limiter
}

// faceDetection is one face in the server response.
type faceDetection struct {
	FaceIndex int       `json:"face_index"`
	Dim       int       `json:"dim"`
	Embedding []float32 `json:"embedding"`
	BBox      []float64 `json:"bbox"` // [x1, y1, x2, y2]
	DetScore  float64   `json:"det_score"`
}

// faceResponse is the body returned by POST /embed/face.
type faceResponse struct {
	FacesCount int             `json:"faces_count"`
	Faces      []faceDetection `json:"faces"`
	Model      string          `json:"model"`
}

// NewServiceEmbedder creates a client for the face embedding server.
func NewServiceEmbedder(opts ServiceEmbedderOptions) *ServiceEmbedder {
	if opts.BaseURL == "" {
		opts.BaseURL = defaultFaceServiceURL
	}
	if opts.Timeout == 0 {
		opts.Timeout = 60 * time.Second
	}
	if opts.RetryMax == 0 {
		opts.RetryMax = 3
	}

	retryClient := retryablehttp.NewClient()
	retryClient.RetryMax = opts.RetryMax
	retryClient.HTTPClient.Timeout = opts.Timeout
	retryClient.Logger = nil // errors are logged by the extractor

	limiter := rate.NewLimiter(rate.Inf, 0)
	if opts.RequestsPerSecond > 0 {
		limiter = rate.NewLimiter(rate.Limit(opts.RequestsPerSecond), max(1, int(opts.RequestsPerSecond)))
	}

	return &ServiceEmbedder{
		baseURL:    strings.TrimSuffix(opts.BaseURL, "/"),
		httpClient: retryClient,
		limiter:    limiter,
	}
}

// Name returns the strategy name.
func (s *ServiceEmbedder) Name() string { return "service" }

// Version returns the embedding version tag for vectors from the face server.
func (s *ServiceEmbedder) Version() byte { return embedding.VersionFaceService }

// Detect uploads the frame as JPEG and returns the faces the server found.
func (s *ServiceEmbedder) Detect(ctx context.Context, frame image.Image) ([]Detection, error) {
	data, err := encodeJPEG(frame)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrFrameRejected, err)
	}

	if err := s.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("wait for rate limiter: %w", err)
	}

	body, contentType, err := multipartImage(data)
	if err != nil {
		return nil, err
	}

	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodPost, s.baseURL+"/embed/face", body)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", contentType)

	resp, err := s.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, fmt.Errorf("request failed: %w", ctx.Err())
		}

		return nil, fmt.Errorf("%w: request failed: %w", ErrEmbedderUnavailable, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: read response: %w", ErrEmbedderUnavailable, err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, statusError(resp.StatusCode, respBody)
	}

	var faceResp faceResponse
	if err := json.Unmarshal(respBody, &faceResp); err != nil {
		return nil, fmt.Errorf("%w: parse response: %w", ErrEmbedderUnavailable, err)
	}

	detections := make([]Detection, 0, len(faceResp.Faces))
	for _, f := range faceResp.Faces {
		box, err := bboxToRect(f.BBox)
		if err != nil {
			return nil, fmt.Errorf("%w: face %d: %w", ErrEmbedderUnavailable, f.FaceIndex, err)
		}

		detections = append(detections, Detection{
			Box:       box,
			Score:     f.DetScore,
			Embedding: f.Embedding,
		})
	}

	return detections, nil
}

// statusError classifies a non-200 reply. The server answers 4xx for an image it
// cannot use, so only those skip the frame.
func statusError(status int, body []byte) error {
	err := fmt.Errorf("face service error (status %d): %s", status, string(body))

	switch {
	case status == http.StatusUnauthorized, status == http.StatusForbidden,
		status == http.StatusNotFound, status == http.StatusTooManyRequests:
		return fmt.Errorf("%w: %w", ErrEmbedderUnavailable, err)
	case status >= 400 && status < 500:
		return fmt.Errorf("%w: %w", ErrFrameRejected, err)
	default:
		return fmt.Errorf("%w: %w", ErrEmbedderUnavailable, err)
	}
}

func multipartImage(data []byte) ([]byte, string, error) {
	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)

	part, err := writer.CreateFormFile("file", "frame.jpg")
	if err != nil {
		return nil, "", fmt.Errorf("create form file: %w", err)
	}

	if _, err := part.Write(data); err != nil {
		return nil, "", fmt.Errorf("write image data: %w", err)
	}

	if err := writer.Close(); err != nil {
		return nil, "", fmt.Errorf("close multipart writer: %w", err)
	}

	return buf.Bytes(), writer.FormDataContentType(), nil
}

var errBadBBox = errors.New("bbox must have 4 coordinates")

func bboxToRect(bbox []float64) (image.Rectangle, error) {
	if len(bbox) != 4 {
		return image.Rectangle{}, errBadBBox
	}

	return image.Rect(int(bbox[0]), int(bbox[1]), int(bbox[2]), int(bbox[3])), nil
}
