package matching

import (
	"context"
	"math"
	"math/rand/v2"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/reunite/hub/internal/embedding"
	"github.com/reunite/hub/internal/models"
)

func randomVector(r *rand.Rand, dim int) []float32 {
	v := make([]float32, dim)
	for i := range v {
		v[i] = float32(r.NormFloat64())
	}

	return v
}

func entry(codec embedding.Codec, v []float32) models.RegistryEntry {
	return models.RegistryEntry{
		CaseID:    uuid.New(),
		Embedding: codec.Encode(v),
		Active:    true,
		UpdatedAt: time.Now(),
	}
}

type recordingMetrics struct {
	mu       sync.Mutex
	hits     int
	misses   int
	failures map[string]int
}

func (m *recordingMetrics) RecordDecodeCache(_ context.Context, hit bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if hit {
		m.hits++
	} else {
		m.misses++
	}
}

func (m *recordingMetrics) RecordDecodeFailure(_ context.Context, reason string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.failures == nil {
		m.failures = map[string]int{}
	}
	m.failures[reason]++
}

func TestScore(t *testing.T) {
	r := rand.New(rand.NewPCG(1, 2))

	t.Run("always within [0, 1]", func(t *testing.T) {
		for range 200 {
			a, b := randomVector(r, 16), randomVector(r, 16)
			s := Score(a, b)
			assert.GreaterOrEqual(t, s, 0.0)
			assert.LessOrEqual(t, s, 1.0)
		}
	})

	t.Run("self similarity is 1", func(t *testing.T) {
		for range 20 {
			v := randomVector(r, 128)
			assert.InDelta(t, 1.0, Score(v, v), 1e-6)
		}
	})

	t.Run("scale invariant", func(t *testing.T) {
		v := randomVector(r, 32)
		scaled := make([]float32, len(v))
		for i := range v {
			scaled[i] = v[i] * 7.5
		}

		assert.InDelta(t, Score(v, v), Score(v, scaled), 1e-6)
	})

	t.Run("opposite vectors score 0", func(t *testing.T) {
		assert.InDelta(t, 0.0, Score([]float32{1, 0}, []float32{-1, 0}), 1e-9)
	})

	t.Run("orthogonal vectors score one half", func(t *testing.T) {
		assert.InDelta(t, 0.5, Score([]float32{1, 0}, []float32{0, 1}), 1e-9)
	})

	t.Run("degenerate inputs score 0", func(t *testing.T) {
		assert.Zero(t, Score([]float32{1, 2}, []float32{1, 2, 3}))
		assert.Zero(t, Score(nil, nil))
		assert.Zero(t, Score([]float32{0, 0}, []float32{1, 1}))
	})
}

func TestNewEngine(t *testing.T) {
	codec := embedding.NewCodec(embedding.VersionFaceService)

	for _, th := range []float64{0, -0.1, 1.01, math.NaN()} {
		_, err := NewEngine(codec, th, 8)
		assert.Error(t, err, "threshold %v", th)
	}

	_, err := NewEngine(codec, 1, 0)
	assert.Error(t, err, "zero cache size")

	e, err := NewEngine(codec, 1, 8)
	require.NoError(t, err)
	assert.InDelta(t, 1.0, e.Threshold(), 0)
}

func TestEngine_MatchAll(t *testing.T) {
	codec := embedding.NewCodec(embedding.VersionFaceService)
	ctx := context.Background()
	r := rand.New(rand.NewPCG(3, 4))

	probe := randomVector(r, 64)
	registry := []models.RegistryEntry{entry(codec, probe)}
	for range 30 {
		registry = append(registry, entry(codec, randomVector(r, 64)))
	}

	t.Run("results clear the threshold and are sorted", func(t *testing.T) {
		e, err := NewEngine(codec, 0.55, 64)
		require.NoError(t, err)

		got := e.MatchAll(ctx, probe, registry)
		require.NotEmpty(t, got)
		assert.Equal(t, registry[0].CaseID, got[0].Entry.CaseID)
		assert.InDelta(t, 1.0, got[0].Score, 1e-6)

		for i, c := range got {
			assert.GreaterOrEqual(t, c.Score, 0.55)
			if i > 0 {
				assert.LessOrEqual(t, c.Score, got[i-1].Score)
			}
		}
	})

	t.Run("raising the threshold never adds matches", func(t *testing.T) {
		var prev map[uuid.UUID]bool

		for _, th := range []float64{0.3, 0.5, 0.6, 0.8, 0.99} {
			e, err := NewEngine(codec, th, 64)
			require.NoError(t, err)

			cur := map[uuid.UUID]bool{}
			for _, c := range e.MatchAll(ctx, probe, registry) {
				cur[c.Entry.CaseID] = true
			}

			if prev != nil {
				for id := range cur {
					assert.True(t, prev[id], "case %s appeared at threshold %v", id, th)
				}
			}

			prev = cur
		}
	})

	t.Run("corrupt and foreign entries are skipped", func(t *testing.T) {
		metrics := &recordingMetrics{}
		e, err := NewEngine(codec, 0.5, 64, WithMetrics(metrics), WithWorkers(2))
		require.NoError(t, err)

		good := entry(codec, probe)
		truncated := entry(codec, probe)
		truncated.Embedding = truncated.Embedding[:7]
		foreign := entry(embedding.NewCodec(embedding.VersionHistogram), probe)

		got := e.MatchAll(ctx, probe, []models.RegistryEntry{truncated, good, foreign})
		require.Len(t, got, 1)
		assert.Equal(t, good.CaseID, got[0].Entry.CaseID)
		assert.Equal(t, 1, metrics.failures["corrupt"])
		assert.Equal(t, 1, metrics.failures["version_mismatch"])
	})

	t.Run("inactive entries are ignored", func(t *testing.T) {
		e, err := NewEngine(codec, 0.5, 64)
		require.NoError(t, err)

		inactive := entry(codec, probe)
		inactive.Active = false

		assert.Empty(t, e.MatchAll(ctx, probe, []models.RegistryEntry{inactive}))
	})

	t.Run("decoded vectors are cached per case version", func(t *testing.T) {
		metrics := &recordingMetrics{}
		e, err := NewEngine(codec, 0.5, 64, WithMetrics(metrics))
		require.NoError(t, err)

		ent := entry(codec, probe)
		e.MatchAll(ctx, probe, []models.RegistryEntry{ent})
		e.MatchAll(ctx, probe, []models.RegistryEntry{ent})
		assert.Equal(t, 1, metrics.misses)
		assert.Equal(t, 1, metrics.hits)

		// a re-enrolled case carries a new timestamp and a new vector
		other := randomVector(r, 64)
		ent.Embedding = codec.Encode(other)
		ent.UpdatedAt = ent.UpdatedAt.Add(time.Second)

		got := e.MatchAll(ctx, other, []models.RegistryEntry{ent})
		require.Len(t, got, 1)
		assert.InDelta(t, 1.0, got[0].Score, 1e-6)
		assert.Equal(t, 2, metrics.misses)
	})

	t.Run("empty registry", func(t *testing.T) {
		e, err := NewEngine(codec, 0.5, 64)
		require.NoError(t, err)

		assert.Empty(t, e.MatchAll(ctx, probe, nil))
	})
}
