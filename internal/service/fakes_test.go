package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/reunite/hub/internal/huberrors"
	"github.com/reunite/hub/internal/jobs"
	"github.com/reunite/hub/internal/models"
	"github.com/reunite/hub/internal/notify"
)

// fakeTx tracks Commit and Rollback. Other pgx.Tx methods are not used by the services.
type fakeTx struct {
	pgx.Tx
	commitErr  error
	committed  bool
	rolledBack bool
}

func (t *fakeTx) Commit(context.Context) error {
	if t.commitErr != nil {
		return t.commitErr
	}

	t.committed = true

	return nil
}

func (t *fakeTx) Rollback(context.Context) error {
	if !t.committed {
		t.rolledBack = true
	}

	return nil
}

type fakeDB struct {
	beginErr  error
	commitErr error
	txs       []*fakeTx
}

func (d *fakeDB) Begin(context.Context) (pgx.Tx, error) {
	if d.beginErr != nil {
		return nil, d.beginErr
	}

	tx := &fakeTx{commitErr: d.commitErr}
	d.txs = append(d.txs, tx)

	return tx, nil
}

func (d *fakeDB) last() *fakeTx {
	if len(d.txs) == 0 {
		return nil
	}

	return d.txs[len(d.txs)-1]
}

type fakeInserter struct {
	mu        sync.Mutex
	duplicate bool
	err       error
	sightings []uuid.UUID
	backfills []uuid.UUID
	txs       []pgx.Tx
}

func (f *fakeInserter) InsertSightingJobTx(_ context.Context, tx pgx.Tx, args jobs.SightingProcessingArgs) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.err != nil {
		return false, f.err
	}

	f.txs = append(f.txs, tx)
	f.sightings = append(f.sightings, args.SightingID)

	return !f.duplicate, nil
}

func (f *fakeInserter) InsertSightingJob(ctx context.Context, args jobs.SightingProcessingArgs) (bool, error) {
	return f.InsertSightingJobTx(ctx, nil, args)
}

func (f *fakeInserter) InsertCaseBackfillJob(_ context.Context, args jobs.CaseBackfillArgs) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.err != nil {
		return false, f.err
	}

	f.backfills = append(f.backfills, args.CaseID)

	return !f.duplicate, nil
}

type recordingNotifier struct {
	mu   sync.Mutex
	err  error
	sent []notify.Message
}

func (n *recordingNotifier) Name() string { return "recording" }

func (n *recordingNotifier) Send(_ context.Context, msg notify.Message) error {
	n.mu.Lock()
	defer n.mu.Unlock()

	n.sent = append(n.sent, msg)

	return n.err
}

type notificationCount struct {
	event, status string
}

type recordingMetrics struct {
	mu     sync.Mutex
	counts map[notificationCount]int
}

func (m *recordingMetrics) RecordNotification(_ context.Context, event, status string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.counts == nil {
		m.counts = make(map[notificationCount]int)
	}

	m.counts[notificationCount{event, status}]++
}

func (m *recordingMetrics) get(event, status string) int {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.counts[notificationCount{event, status}]
}

type memArtifacts map[string][]byte

func (m memArtifacts) Load(_ context.Context, path string) ([]byte, error) {
	data, ok := m[path]
	if !ok {
		return nil, errors.New("no such artifact")
	}

	return data, nil
}

type memPhotos struct {
	saved   map[string][]byte
	deleted []string
	n       int
}

func (p *memPhotos) Save(_ context.Context, dir, ext string, r io.Reader) (string, error) {
	if p.saved == nil {
		p.saved = make(map[string][]byte)
	}

	var buf bytes.Buffer
	if _, err := io.Copy(&buf, r); err != nil {
		return "", err
	}

	p.n++
	path := fmt.Sprintf("%s/photo%d%s", dir, p.n, ext)
	p.saved[path] = buf.Bytes()

	return path, nil
}

func (p *memPhotos) Delete(_ context.Context, path string) error {
	p.deleted = append(p.deleted, path)

	return nil
}

type fakeCasesRepo struct {
	cases     map[uuid.UUID]*models.Case
	created   *models.NewCase
	updated   *models.CaseUpdate
	createErr error
}

func newFakeCasesRepo(cases ...*models.Case) *fakeCasesRepo {
	r := &fakeCasesRepo{cases: make(map[uuid.UUID]*models.Case)}
	for _, c := range cases {
		r.cases[c.ID] = c
	}

	return r
}

func (r *fakeCasesRepo) Create(_ context.Context, nc *models.NewCase) (*models.Case, error) {
	if r.createErr != nil {
		return nil, r.createErr
	}

	r.created = nc
	c := &models.Case{
		ID:            uuid.New(),
		Name:          nc.Name,
		Email:         nc.Email,
		AadhaarHash:   nc.AadhaarHash,
		PhotoPath:     nc.PhotoPath,
		FaceEmbedding: nc.FaceEmbedding,
		CreatedBy:     nc.CreatedBy,
		OwnerEmail:    "owner@example.com",
	}
	r.cases[c.ID] = c

	return c, nil
}

func (r *fakeCasesRepo) Get(_ context.Context, id uuid.UUID) (*models.Case, error) {
	c, ok := r.cases[id]
	if !ok {
		return nil, huberrors.NewNotFoundError("case", "case not found")
	}

	return c, nil
}

func (r *fakeCasesRepo) List(_ context.Context, _ *models.ListCasesFilters) ([]models.Case, error) {
	out := make([]models.Case, 0, len(r.cases))
	for _, c := range r.cases {
		out = append(out, *c)
	}

	return out, nil
}

func (r *fakeCasesRepo) Update(ctx context.Context, id uuid.UUID, upd *models.CaseUpdate) (*models.Case, error) {
	r.updated = upd

	return r.Get(ctx, id)
}

func (r *fakeCasesRepo) Delete(_ context.Context, id uuid.UUID) (string, error) {
	c, ok := r.cases[id]
	if !ok {
		return "", huberrors.NewNotFoundError("case", "case not found")
	}

	delete(r.cases, id)

	return c.PhotoPath, nil
}

func (r *fakeCasesRepo) MarkFound(ctx context.Context, id uuid.UUID) (*models.Case, error) {
	c, err := r.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	if c.IsFound {
		return nil, huberrors.NewConflictError("case already marked as found")
	}

	c.IsFound = true

	return c, nil
}

type recordingCaseNotifier struct {
	created []uuid.UUID
	found   []uuid.UUID
}

func (n *recordingCaseNotifier) NotifyCaseCreated(_ context.Context, c *models.Case) {
	n.created = append(n.created, c.ID)
}

func (n *recordingCaseNotifier) NotifyPersonFound(_ context.Context, c *models.Case) {
	n.found = append(n.found, c.ID)
}

func ptr[T any](v T) *T { return &v }
