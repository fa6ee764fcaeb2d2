package pipeline

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/reunite/hub/internal/embedding"
	"github.com/reunite/hub/internal/faces"
	"github.com/reunite/hub/internal/huberrors"
	"github.com/reunite/hub/internal/models"
)

var codec = embedding.NewCodec(embedding.VersionFaceService)

type fakeSightings struct {
	mu        sync.Mutex
	sightings map[uuid.UUID]*models.Sighting
	getErr    error
	markErr   error
}

func newFakeSightings(sightings ...*models.Sighting) *fakeSightings {
	f := &fakeSightings{sightings: make(map[uuid.UUID]*models.Sighting)}
	for _, s := range sightings {
		f.sightings[s.ID] = s
	}

	return f
}

func (f *fakeSightings) Get(_ context.Context, id uuid.UUID) (*models.Sighting, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.getErr != nil {
		return nil, f.getErr
	}

	s, ok := f.sightings[id]
	if !ok {
		return nil, huberrors.NewNotFoundError("sighting", "sighting not found")
	}

	cp := *s

	return &cp, nil
}

func (f *fakeSightings) MarkProcessed(_ context.Context, id uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.markErr != nil {
		return f.markErr
	}

	now := time.Now()
	f.sightings[id].Processed = true
	f.sightings[id].ProcessedAt = &now

	return nil
}

func (f *fakeSightings) processed(id uuid.UUID) bool {
	f.mu.Lock()
	defer f.mu.Unlock()

	return f.sightings[id].Processed
}

func (f *fakeSightings) reset(id uuid.UUID) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.sightings[id].Processed = false
}

type fakeCases struct {
	mu        sync.Mutex
	registry  []models.RegistryEntry
	cases     map[uuid.UUID]*models.Case
	listErr   error
	listCalls int
}

func newFakeCases() *fakeCases {
	return &fakeCases{cases: make(map[uuid.UUID]*models.Case)}
}

// add registers an active case with the given embedding.
func (f *fakeCases) add(name string, vec ...float32) uuid.UUID {
	return f.addBlob(name, codec.Encode(vec))
}

func (f *fakeCases) addBlob(name string, blob []byte) uuid.UUID {
	id := uuid.New()
	email := name + "@example.com"

	f.cases[id] = &models.Case{ID: id, Name: name, Email: &email, OwnerEmail: "owner@example.com"}
	f.registry = append(f.registry, models.RegistryEntry{CaseID: id, Embedding: blob, Active: true, UpdatedAt: time.Unix(1, 0)})

	return id
}

func (f *fakeCases) ListActiveRegistry(context.Context) ([]models.RegistryEntry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.listCalls++
	if f.listErr != nil {
		return nil, f.listErr
	}

	return append([]models.RegistryEntry(nil), f.registry...), nil
}

func (f *fakeCases) Get(_ context.Context, id uuid.UUID) (*models.Case, error) {
	c, ok := f.cases[id]
	if !ok {
		return nil, huberrors.NewNotFoundError("case", "case not found")
	}

	return c, nil
}

type fakeStream struct {
	faces  []faces.Artifact
	i      int
	err    error
	closed bool
}

func (s *fakeStream) Next() bool {
	if s.i >= len(s.faces) {
		return false
	}

	s.i++

	return true
}

func (s *fakeStream) Artifact() faces.Artifact { return s.faces[s.i-1] }

func (s *fakeStream) Err() error {
	if s.i >= len(s.faces) {
		return s.err
	}

	return nil
}

func (s *fakeStream) Close() error {
	s.closed = true

	return nil
}

// fakeSource yields preset faces per sighting.
type fakeSource struct {
	mu        sync.Mutex
	faces     map[uuid.UUID][][]float32
	openErr   error
	streamErr error
	streams   []*fakeStream
}

func newFakeSource() *fakeSource {
	return &fakeSource{faces: make(map[uuid.UUID][][]float32)}
}

func (f *fakeSource) Version() byte { return codec.Version() }

func (f *fakeSource) Open(_ context.Context, s *models.Sighting) (FaceStream, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.openErr != nil {
		return nil, f.openErr
	}

	stream := &fakeStream{err: f.streamErr}
	for i, vec := range f.faces[s.ID] {
		stream.faces = append(stream.faces, faces.Artifact{
			SightingID: s.ID,
			FaceIndex:  i,
			Path:       faces.ArtifactKey(s.ID, s.MediaKind, 0, i),
			Embedding:  vec,
		})
	}

	f.streams = append(f.streams, stream)

	return stream, nil
}

// memStore records matches and location history the way the matches repository does.
type memStore struct {
	mu       sync.Mutex
	matches  []models.Match
	history  []models.LocationHistoryEntry
	failCase map[uuid.UUID]bool
}

func newMemStore() *memStore {
	return &memStore{failCase: make(map[uuid.UUID]bool)}
}

func (m *memStore) Record(_ context.Context, p models.RecordMatchParams) (*models.Match, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.failCase[p.CaseID] {
		return nil, huberrors.NewPersistenceError("record match", errors.New("connection reset"))
	}

	match := models.Match{
		ID:              uuid.New(),
		CaseID:          p.CaseID,
		SightingID:      p.SightingID,
		ConfidenceScore: p.Score,
		MatchedFacePath: p.FacePath,
	}
	m.matches = append(m.matches, match)

	if p.Geo != nil {
		m.history = append(m.history, models.LocationHistoryEntry{
			ID:              uuid.New(),
			CaseID:          p.CaseID,
			MatchID:         match.ID,
			Latitude:        p.Geo.Latitude,
			Longitude:       p.Geo.Longitude,
			LocationName:    p.Geo.LocationName,
			ConfidenceScore: p.Score,
		})
	}

	return &match, nil
}

func (m *memStore) matchesFor(sightingID uuid.UUID) []models.Match {
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []models.Match
	for _, match := range m.matches {
		if match.SightingID == sightingID {
			out = append(out, match)
		}
	}

	return out
}

type sentAlert struct {
	caseID, sightingID uuid.UUID
	score              float64
	facePath           string
}

type recordingNotifier struct {
	mu   sync.Mutex
	sent []sentAlert
}

func (n *recordingNotifier) NotifyMatch(_ context.Context, c *models.Case, s *models.Sighting, score float64, facePath string) {
	n.mu.Lock()
	defer n.mu.Unlock()

	n.sent = append(n.sent, sentAlert{caseID: c.ID, sightingID: s.ID, score: score, facePath: facePath})
}

type memFaceIndex struct {
	mu    sync.Mutex
	faces []models.SightingFace
	err   error
}

func (f *memFaceIndex) Insert(_ context.Context, face *models.SightingFace) (uuid.UUID, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.err != nil {
		return uuid.Nil, f.err
	}

	f.faces = append(f.faces, *face)

	return uuid.New(), nil
}

type runMetrics struct {
	mu       sync.Mutex
	runs     map[string]int
	faces    int
	recorded int
	failures int
}

func (m *runMetrics) RecordRun(_ context.Context, state string, _ time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.runs == nil {
		m.runs = make(map[string]int)
	}

	m.runs[state]++
}

func (m *runMetrics) RecordFacesExtracted(_ context.Context, n int) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.faces += n
}

func (m *runMetrics) RecordMatchRecorded(context.Context) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.recorded++
}

func (m *runMetrics) RecordRecordFailure(context.Context) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.failures++
}
