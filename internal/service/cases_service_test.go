package service

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/reunite/hub/internal/embedding"
	"github.com/reunite/hub/internal/faces"
	"github.com/reunite/hub/internal/huberrors"
	"github.com/reunite/hub/internal/models"
)

type fakePrimaryExtractor struct {
	vec  []float32
	err  error
	path string
}

func (f *fakePrimaryExtractor) ExtractPrimary(_ context.Context, path string) ([]float32, error) {
	f.path = path

	return f.vec, f.err
}

type casesFixture struct {
	repo      *fakeCasesRepo
	extractor *fakePrimaryExtractor
	photos    *memPhotos
	notifier  *recordingCaseNotifier
	inserter  *fakeInserter
	svc       *CasesService
}

func newCasesFixture(existing ...*models.Case) *casesFixture {
	f := &casesFixture{
		repo:      newFakeCasesRepo(existing...),
		extractor: &fakePrimaryExtractor{vec: []float32{0.6, 0.8}},
		photos:    &memPhotos{},
		notifier:  &recordingCaseNotifier{},
		inserter:  &fakeInserter{},
	}
	f.svc = NewCasesService(f.repo, f.extractor, embedding.NewCodec(embedding.VersionFaceService),
		f.photos, f.notifier, f.inserter)

	return f
}

func TestCreateCase(t *testing.T) {
	owner := uuid.New()
	input := func() CreateCaseInput {
		return CreateCaseInput{
			Request: models.CreateCaseRequest{
				Name:          " Meera ",
				AadhaarNumber: ptr("123412341234"),
				Email:         ptr("kin@example.com"),
			},
			CreatedBy: owner,
			Photo:     strings.NewReader("photo-bytes"),
			PhotoExt:  ".jpg",
		}
	}

	t.Run("enrolls the primary face", func(t *testing.T) {
		f := newCasesFixture()

		c, err := f.svc.CreateCase(context.Background(), input())
		require.NoError(t, err)

		assert.Equal(t, "Meera", c.Name)
		assert.Equal(t, f.extractor.path, c.PhotoPath)
		assert.Equal(t, []byte("photo-bytes"), f.photos.saved[c.PhotoPath])

		vec, err := embedding.NewCodec(embedding.VersionFaceService).Decode(f.repo.created.FaceEmbedding)
		require.NoError(t, err)
		assert.Equal(t, []float32{0.6, 0.8}, vec)

		sum := sha256.Sum256([]byte("123412341234"))
		require.NotNil(t, f.repo.created.AadhaarHash)
		assert.Equal(t, hex.EncodeToString(sum[:]), *f.repo.created.AadhaarHash)

		assert.Equal(t, []uuid.UUID{c.ID}, f.notifier.created)
		assert.Equal(t, []uuid.UUID{c.ID}, f.inserter.backfills)
		assert.Empty(t, f.photos.deleted)
	})

	t.Run("no face rejects and removes the photo", func(t *testing.T) {
		f := newCasesFixture()
		f.extractor.err = faces.ErrNoFaceFound

		_, err := f.svc.CreateCase(context.Background(), input())
		require.ErrorIs(t, err, huberrors.ErrValidation)
		assert.Nil(t, f.repo.created)
		assert.Len(t, f.photos.deleted, 1)
		assert.Empty(t, f.notifier.created)
		assert.Empty(t, f.inserter.backfills)
	})

	t.Run("insert failure removes the photo", func(t *testing.T) {
		f := newCasesFixture()
		f.repo.createErr = errors.New("db down")

		_, err := f.svc.CreateCase(context.Background(), input())
		require.Error(t, err)
		assert.Len(t, f.photos.deleted, 1)
	})

	t.Run("backfill enqueue failure does not fail enrollment", func(t *testing.T) {
		f := newCasesFixture()
		f.inserter.err = errors.New("river down")

		_, err := f.svc.CreateCase(context.Background(), input())
		require.NoError(t, err)
	})
}

func TestCaseOwnership(t *testing.T) {
	owner, stranger := uuid.New(), uuid.New()
	c := &models.Case{ID: uuid.New(), Name: "A", CreatedBy: owner, PhotoPath: "cases/a.jpg"}

	t.Run("owner and admin can read", func(t *testing.T) {
		f := newCasesFixture(c)

		_, err := f.svc.GetCase(context.Background(), c.ID, &owner)
		require.NoError(t, err)

		_, err = f.svc.GetCase(context.Background(), c.ID, nil)
		require.NoError(t, err)
	})

	t.Run("other users get not found", func(t *testing.T) {
		f := newCasesFixture(c)

		_, err := f.svc.GetCase(context.Background(), c.ID, &stranger)
		require.ErrorIs(t, err, huberrors.ErrNotFound)

		err = f.svc.DeleteCase(context.Background(), c.ID, &stranger)
		require.ErrorIs(t, err, huberrors.ErrNotFound)
		assert.Contains(t, f.repo.cases, c.ID)
	})

	t.Run("update hashes a new aadhaar number", func(t *testing.T) {
		f := newCasesFixture(c)

		_, err := f.svc.UpdateCase(context.Background(), c.ID, &owner, &models.UpdateCaseRequest{
			Phone:         ptr("+91 98450 00000"),
			AadhaarNumber: ptr("999988887777"),
		})
		require.NoError(t, err)
		assert.Equal(t, ptr("+91 98450 00000"), f.repo.updated.Phone)
		assert.Equal(t, HashAadhaar(ptr("999988887777")), f.repo.updated.AadhaarHash)
		assert.Nil(t, f.repo.updated.Name)
	})

	t.Run("delete removes the photo", func(t *testing.T) {
		f := newCasesFixture(c)

		require.NoError(t, f.svc.DeleteCase(context.Background(), c.ID, &owner))
		assert.Equal(t, []string{"cases/a.jpg"}, f.photos.deleted)
	})
}

func TestMarkFound(t *testing.T) {
	c := &models.Case{ID: uuid.New(), Name: "A"}
	f := newCasesFixture(c)

	got, err := f.svc.MarkFound(context.Background(), c.ID)
	require.NoError(t, err)
	assert.True(t, got.IsFound)
	assert.Equal(t, []uuid.UUID{c.ID}, f.notifier.found)

	_, err = f.svc.MarkFound(context.Background(), c.ID)
	require.ErrorIs(t, err, huberrors.ErrConflict)
	assert.Len(t, f.notifier.found, 1)
}

func TestHashAadhaar(t *testing.T) {
	assert.Nil(t, HashAadhaar(nil))
	assert.Nil(t, HashAadhaar(ptr("  ")))
	assert.Equal(t, HashAadhaar(ptr("123412341234")), HashAadhaar(ptr(" 123412341234 ")))
	assert.Len(t, *HashAadhaar(ptr("123412341234")), 64)
}
