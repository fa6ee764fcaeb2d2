package faces

import (
	"context"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/reunite/hub/internal/models"
)

type failingStore struct{ *DiskStore }

func (failingStore) Save(context.Context, string, []byte) (string, error) {
	return "", errors.New("disk full")
}

func collect(t *testing.T, stream *FaceStream) []Artifact {
	t.Helper()

	var out []Artifact
	for stream.Next() {
		out = append(out, stream.Artifact())
	}

	require.NoError(t, stream.Close())

	return out
}

func TestExtractor_Image(t *testing.T) {
	t.Run("keeps faces at or above the minimum size and numbers them by detection index", func(t *testing.T) {
		dir := t.TempDir()
		path := writePNG(t, dir, 200, 200)
		embedder := &fakeEmbedder{script: [][]Detection{{
			detection(0, 0, 60, 1, 0),
			detection(100, 100, 20, 0, 1),
			detection(100, 0, 50, 1, 1),
		}}}

		ex := NewExtractor(embedder, NewDiskStore(dir))
		id := uuid.New()

		stream, err := ex.Extract(context.Background(), id, path, models.MediaKindImage)
		require.NoError(t, err)

		got := collect(t, stream)
		require.NoError(t, stream.Err())
		require.Len(t, got, 2)

		assert.Equal(t, 0, got[0].FaceIndex)
		assert.Equal(t, 2, got[1].FaceIndex)
		assert.Equal(t, []float32{1, 1}, got[1].Embedding)
		assert.Equal(t, id, got[0].SightingID)
		assert.Equal(t, "sighting_face_2.jpg", filepath.Base(got[1].Path))

		for _, a := range got {
			_, err := os.Stat(a.Path)
			assert.NoError(t, err, a.Path)
		}

		assert.Equal(t, 1, stream.FramesSampled())
	})

	t.Run("detections without an embedding are dropped", func(t *testing.T) {
		dir := t.TempDir()
		path := writePNG(t, dir, 120, 120)
		embedder := &fakeEmbedder{script: [][]Detection{{detection(0, 0, 60)}}}

		stream, err := NewExtractor(embedder, NewDiskStore(dir)).Extract(context.Background(), uuid.New(), path, models.MediaKindImage)
		require.NoError(t, err)

		assert.Empty(t, collect(t, stream))
		assert.NoError(t, stream.Err())
	})

	t.Run("missing file is unreadable", func(t *testing.T) {
		ex := NewExtractor(&fakeEmbedder{}, NewDiskStore(t.TempDir()))

		_, err := ex.Extract(context.Background(), uuid.New(), filepath.Join(t.TempDir(), "nope.jpg"), models.MediaKindImage)
		assert.ErrorIs(t, err, ErrMediaUnreadable)
	})

	t.Run("garbage bytes are unreadable", func(t *testing.T) {
		dir := t.TempDir()
		path := filepath.Join(dir, "broken.jpg")
		require.NoError(t, os.WriteFile(path, []byte("not an image"), 0o600))

		_, err := NewExtractor(&fakeEmbedder{}, NewDiskStore(dir)).Extract(context.Background(), uuid.New(), path, models.MediaKindImage)
		assert.ErrorIs(t, err, ErrMediaUnreadable)
	})

	t.Run("store failure skips the face", func(t *testing.T) {
		dir := t.TempDir()
		path := writePNG(t, dir, 200, 200)
		embedder := &fakeEmbedder{script: [][]Detection{{detection(0, 0, 60, 1)}}}

		stream, err := NewExtractor(embedder, failingStore{}).Extract(context.Background(), uuid.New(), path, models.MediaKindImage)
		require.NoError(t, err)

		assert.Empty(t, collect(t, stream))
		assert.NoError(t, stream.Err())
	})

	t.Run("cancelled context ends the stream", func(t *testing.T) {
		dir := t.TempDir()
		path := writePNG(t, dir, 200, 200)
		embedder := &fakeEmbedder{script: [][]Detection{{detection(0, 0, 60, 1)}}}

		ctx, cancel := context.WithCancel(context.Background())
		stream, err := NewExtractor(embedder, NewDiskStore(dir)).Extract(ctx, uuid.New(), path, models.MediaKindImage)
		require.NoError(t, err)

		cancel()

		assert.False(t, stream.Next())
		assert.ErrorIs(t, stream.Err(), context.Canceled)
	})
}

func TestExtractor_Video(t *testing.T) {
	t.Run("samples one frame per second of source", func(t *testing.T) {
		dir := t.TempDir()
		video := &fakeVideo{fps: 2.5, frames: 5}
		embedder := &fakeEmbedder{script: [][]Detection{
			{detection(0, 0, 60, 1)},
			{detection(10, 10, 60, 2), detection(100, 100, 60, 3)},
			{},
		}}

		ex := NewExtractor(embedder, NewDiskStore(dir), WithVideoDecoder(video))

		stream, err := ex.Extract(context.Background(), uuid.New(), "clip.mp4", models.MediaKindVideo)
		require.NoError(t, err)

		got := collect(t, stream)
		require.NoError(t, stream.Err())
		require.Len(t, got, 3)

		assert.Equal(t, 0, got[0].FrameIndex)
		assert.Equal(t, 2, got[1].FrameIndex)
		assert.Equal(t, 1, got[2].FaceIndex)
		assert.Equal(t, "face_2_1.jpg", filepath.Base(got[2].Path))
		assert.Equal(t, 3, stream.FramesSampled())
		assert.True(t, video.closed)
	})

	t.Run("rejected frame is skipped", func(t *testing.T) {
		video := &fakeVideo{fps: 1, frames: 2}
		embedder := &fakeEmbedder{
			script: [][]Detection{nil, {detection(0, 0, 60, 1)}},
			errs:   map[int]error{0: fmt.Errorf("%w: bad frame", ErrFrameRejected)},
		}

		stream, err := NewExtractor(embedder, NewDiskStore(t.TempDir()), WithVideoDecoder(video)).
			Extract(context.Background(), uuid.New(), "clip.mp4", models.MediaKindVideo)
		require.NoError(t, err)

		got := collect(t, stream)
		require.NoError(t, stream.Err())
		require.Len(t, got, 1)
		assert.Equal(t, 1, got[0].FrameIndex)
	})

	t.Run("infinite frame rate samples every frame", func(t *testing.T) {
		video := &fakeVideo{fps: math.Inf(1), frames: 3}

		stream, err := NewExtractor(&fakeEmbedder{}, NewDiskStore(t.TempDir()), WithVideoDecoder(video)).
			Extract(context.Background(), uuid.New(), "clip.mp4", models.MediaKindVideo)
		require.NoError(t, err)

		assert.Empty(t, collect(t, stream))
		require.NoError(t, stream.Err())
		assert.Equal(t, 3, stream.FramesSampled())
	})

	t.Run("embedder outage ends the stream", func(t *testing.T) {
		video := &fakeVideo{fps: 1, frames: 3}
		outage := fmt.Errorf("%w: connection refused", ErrEmbedderUnavailable)
		embedder := &fakeEmbedder{
			script: [][]Detection{{detection(0, 0, 60, 1)}},
			errs:   map[int]error{1: outage},
		}

		stream, err := NewExtractor(embedder, NewDiskStore(t.TempDir()), WithVideoDecoder(video)).
			Extract(context.Background(), uuid.New(), "clip.mp4", models.MediaKindVideo)
		require.NoError(t, err)

		got := collect(t, stream)
		require.Len(t, got, 1)
		require.ErrorIs(t, stream.Err(), ErrEmbedderUnavailable)
		assert.NotErrorIs(t, stream.Err(), ErrMediaUnreadable)
		assert.Equal(t, 2, embedder.calls)
	})

	t.Run("unclassified detection error ends the stream", func(t *testing.T) {
		embedder := &fakeEmbedder{errs: map[int]error{0: errors.New("model not loaded")}}
		path := writePNG(t, t.TempDir(), 64, 64)

		stream, err := NewExtractor(embedder, NewDiskStore(t.TempDir())).
			Extract(context.Background(), uuid.New(), path, models.MediaKindImage)
		require.NoError(t, err)

		assert.Empty(t, collect(t, stream))
		require.Error(t, stream.Err())
		assert.Contains(t, stream.Err().Error(), "model not loaded")
	})

	t.Run("open failure is unreadable", func(t *testing.T) {
		video := &fakeVideo{openErr: errors.New("codec")}

		_, err := NewExtractor(&fakeEmbedder{}, NewDiskStore(t.TempDir()), WithVideoDecoder(video)).
			Extract(context.Background(), uuid.New(), "clip.mp4", models.MediaKindVideo)
		assert.ErrorIs(t, err, ErrMediaUnreadable)
	})

	t.Run("default decoder rejects video", func(t *testing.T) {
		_, err := NewExtractor(&fakeEmbedder{}, NewDiskStore(t.TempDir())).
			Extract(context.Background(), uuid.New(), "clip.mp4", models.MediaKindVideo)
		assert.ErrorIs(t, err, ErrMediaUnreadable)
		assert.ErrorIs(t, err, ErrVideoUnsupported)
	})

	t.Run("mid-stream read error ends the stream as unreadable", func(t *testing.T) {
		video := &fakeVideo{fps: 1, frames: 5, failAt: 3}

		stream, err := NewExtractor(&fakeEmbedder{}, NewDiskStore(t.TempDir()), WithVideoDecoder(video)).
			Extract(context.Background(), uuid.New(), "clip.mp4", models.MediaKindVideo)
		require.NoError(t, err)

		assert.Empty(t, collect(t, stream))
		assert.ErrorIs(t, stream.Err(), ErrMediaUnreadable)
		assert.Equal(t, 3, stream.FramesSampled())
	})
}

func TestExtractor_ExtractPrimary(t *testing.T) {
	dir := t.TempDir()
	path := writePNG(t, dir, 200, 200)

	t.Run("returns the largest face", func(t *testing.T) {
		embedder := &fakeEmbedder{script: [][]Detection{{
			detection(0, 0, 60, 1, 0),
			detection(50, 50, 120, 0, 1),
		}}}

		vec, err := NewExtractor(embedder, NewDiskStore(dir)).ExtractPrimary(context.Background(), path)
		require.NoError(t, err)
		assert.Equal(t, []float32{0, 1}, vec)
	})

	t.Run("largest face below the minimum", func(t *testing.T) {
		embedder := &fakeEmbedder{script: [][]Detection{{detection(0, 0, 40, 1)}}}

		_, err := NewExtractor(embedder, NewDiskStore(dir)).ExtractPrimary(context.Background(), path)
		assert.ErrorIs(t, err, ErrNoFaceFound)
	})

	t.Run("no faces", func(t *testing.T) {
		_, err := NewExtractor(&fakeEmbedder{}, NewDiskStore(dir)).ExtractPrimary(context.Background(), path)
		assert.ErrorIs(t, err, ErrNoFaceFound)
	})

	t.Run("custom minimum", func(t *testing.T) {
		embedder := &fakeEmbedder{script: [][]Detection{{detection(0, 0, 40, 1)}}}

		vec, err := NewExtractor(embedder, NewDiskStore(dir), WithMinFaceSize(30)).ExtractPrimary(context.Background(), path)
		require.NoError(t, err)
		assert.Equal(t, []float32{1}, vec)
	})
}

func TestSampleInterval(t *testing.T) {
	tests := []struct {
		fps  float64
		want int
	}{
		{fps: 30, want: 30},
		{fps: 29.97, want: 29},
		{fps: 1, want: 1},
		{fps: 0, want: 1},
		{fps: -5, want: 1},
		{fps: 0.5, want: 1},
		{fps: math.NaN(), want: 1},
		{fps: math.Inf(1), want: 1},
		{fps: math.Inf(-1), want: 1},
		{fps: 1e19, want: maxSampleInterval},
		{fps: maxSampleInterval + 0.5, want: maxSampleInterval},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, SampleInterval(tt.fps), "fps=%v", tt.fps)
	}
}

func TestArtifactKey(t *testing.T) {
	id := uuid.MustParse("0190a1b2-0000-7000-8000-000000000001")

	assert.Equal(t, "sightings/sighting_0190a1b2-0000-7000-8000-000000000001/sighting_face_3.jpg",
		ArtifactKey(id, models.MediaKindImage, 0, 3))
	assert.Equal(t, "sightings/sighting_0190a1b2-0000-7000-8000-000000000001/face_45_1.jpg",
		ArtifactKey(id, models.MediaKindVideo, 45, 1))
}

func TestDiskStore(t *testing.T) {
	store := NewDiskStore(t.TempDir())
	ctx := context.Background()

	path, err := store.Save(ctx, "a/b/c.jpg", []byte("jpeg"))
	require.NoError(t, err)

	data, err := store.Load(ctx, path)
	require.NoError(t, err)
	assert.Equal(t, []byte("jpeg"), data)

	require.NoError(t, store.Delete(ctx, path))
	require.NoError(t, store.Delete(ctx, path))

	_, err = store.Load(ctx, path)
	assert.Error(t, err)
}
