// Package matching scores probe embeddings against the registry of active cases.
package matching

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime"
	"sort"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/reunite/hub/internal/embedding"
	"github.com/reunite/hub/internal/models"
	"github.com/reunite/hub/pkg/cache"
	"github.com/reunite/hub/pkg/embeddings"
)

// DefaultThreshold is the minimum score for a match when none is configured.
const DefaultThreshold = 0.6

// Candidate is a registry entry whose score cleared the threshold.
type Candidate struct {
	Entry models.RegistryEntry
	Score float64
}

// Score maps the cosine similarity of two embeddings onto [0, 1]. Vectors of
// different length, empty vectors and zero vectors score 0.
func Score(probe, known []float32) float64 {
	cos, ok := embeddings.Cosine(probe, known)
	if !ok {
		return 0
	}

	return clamp01((cos + 1) / 2)
}

func clamp01(v float64) float64 {
	switch {
	case v < 0:
		return 0
	case v > 1:
		return 1
	default:
		return v
	}
}

type entryKey struct {
	caseID    uuid.UUID
	updatedAt time.Time
}

func (k entryKey) String() string {
	return fmt.Sprintf("%s@%d", k.caseID, k.updatedAt.UnixNano())
}

// Engine compares probes against registry snapshots. It is safe for concurrent use.
type Engine struct {
	codec     embedding.Codec
	threshold float64
	decoded   *cache.Cache[entryKey, []float32]
	workers   int
	logger    *slog.Logger
	metrics   Metrics
}

// Metrics records decode cache and decode failure counts. Implementations may be nil.
type Metrics interface {
	RecordDecodeCache(ctx context.Context, hit bool)
	RecordDecodeFailure(ctx context.Context, reason string)
}

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets the logger used for skipped registry entries.
func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) {
		if l != nil {
			e.logger = l
		}
	}
}

// WithWorkers bounds the scoring fan-out.
func WithWorkers(n int) Option {
	return func(e *Engine) {
		if n > 0 {
			e.workers = n
		}
	}
}

// WithMetrics sets the metrics sink.
func WithMetrics(m Metrics) Option {
	return func(e *Engine) { e.metrics = m }
}

// NewEngine creates an engine for blobs written by codec. cacheSize bounds the number
// of decoded registry vectors kept in memory.
func NewEngine(codec embedding.Codec, threshold float64, cacheSize int, opts ...Option) (*Engine, error) {
	if !(threshold > 0 && threshold <= 1) {
		return nil, fmt.Errorf("threshold must be in (0, 1], got %v", threshold)
	}

	decoded, err := cache.New[entryKey, []float32](cacheSize, entryKey.String)
	if err != nil {
		return nil, fmt.Errorf("create decode cache: %w", err)
	}

	e := &Engine{
		codec:     codec,
		threshold: threshold,
		decoded:   decoded,
		workers:   runtime.GOMAXPROCS(0),
		logger:    slog.Default(),
	}

	for _, opt := range opts {
		opt(e)
	}

	return e, nil
}

// Threshold returns the minimum accepted score.
func (e *Engine) Threshold() float64 {
	return e.threshold
}

// Codec returns the codec registry blobs are decoded with.
func (e *Engine) Codec() embedding.Codec {
	return e.codec
}

// MatchAll scores probe against every active entry of registry and returns those at
// or above the threshold, best first. Entries that fail to decode are logged and
// score 0.
func (e *Engine) MatchAll(ctx context.Context, probe []float32, registry []models.RegistryEntry) []Candidate {
	scores := make([]float64, len(registry))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.workers)

	for i := range registry {
		if !registry[i].Active {
			continue
		}

		g.Go(func() error {
			known, ok := e.decode(gctx, registry[i])
			if ok {
				scores[i] = Score(probe, known)
			}

			return nil
		})
	}

	_ = g.Wait() // workers never return an error

	var out []Candidate
	for i, s := range scores {
		if s >= e.threshold {
			out = append(out, Candidate{Entry: registry[i], Score: s})
		}
	}

	sort.SliceStable(out, func(a, b int) bool { return out[a].Score > out[b].Score })

	return out
}

func (e *Engine) decode(ctx context.Context, entry models.RegistryEntry) ([]float32, bool) {
	key := entryKey{caseID: entry.CaseID, updatedAt: entry.UpdatedAt}

	vec, hit, err := e.decoded.Get(ctx, key, func(context.Context, entryKey) ([]float32, error) {
		return e.codec.Decode(entry.Embedding)
	})

	if e.metrics != nil {
		e.metrics.RecordDecodeCache(ctx, hit)
	}

	if err != nil {
		reason := "corrupt"
		if errors.Is(err, embedding.ErrVersionMismatch) {
			reason = "version_mismatch"
		}

		e.logger.Warn("Skipping registry entry with undecodable embedding",
			"case_id", entry.CaseID, "reason", reason, "error", err)

		if e.metrics != nil {
			e.metrics.RecordDecodeFailure(ctx, reason)
		}

		return nil, false
	}

	return vec, true
}
