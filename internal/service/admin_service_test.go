package service

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/reunite/hub/internal/huberrors"
	"github.com/reunite/hub/internal/models"
)

type fakeAdminRepos struct {
	limit    int
	verified map[uuid.UUID]uuid.UUID
}

func (r *fakeAdminRepos) Get(context.Context) (*models.Stats, error) {
	return &models.Stats{TotalCases: 3, ActiveCases: 2, FoundCases: 1}, nil
}

func (r *fakeAdminRepos) List(_ context.Context, f *models.ListMatchesFilters) ([]models.Match, error) {
	r.limit = f.Limit

	return []models.Match{}, nil
}

func (r *fakeAdminRepos) Verify(_ context.Context, id uuid.UUID, verified bool, by uuid.UUID) (*models.Match, error) {
	if r.verified == nil {
		r.verified = map[uuid.UUID]uuid.UUID{}
	}

	r.verified[id] = by

	return &models.Match{ID: id, Verified: verified, VerifiedBy: &by}, nil
}

func (r *fakeAdminRepos) ListByCase(_ context.Context, caseID uuid.UUID, limit int) ([]models.LocationHistoryEntry, error) {
	r.limit = limit

	return []models.LocationHistoryEntry{{CaseID: caseID}}, nil
}

func TestAdminService(t *testing.T) {
	c := &models.Case{ID: uuid.New(), Name: "A"}
	repos := &fakeAdminRepos{}
	svc := NewAdminService(repos, repos, repos, newFakeCasesRepo(c))

	t.Run("stats", func(t *testing.T) {
		stats, err := svc.Stats(context.Background())
		require.NoError(t, err)
		assert.Equal(t, int64(2), stats.ActiveCases)
	})

	t.Run("verify records the reviewer", func(t *testing.T) {
		matchID, admin := uuid.New(), uuid.New()

		m, err := svc.VerifyMatch(context.Background(), matchID, true, admin)
		require.NoError(t, err)
		assert.True(t, m.Verified)
		assert.Equal(t, admin, repos.verified[matchID])
	})

	t.Run("list matches defaults limit", func(t *testing.T) {
		_, err := svc.ListMatches(context.Background(), &models.ListMatchesFilters{})
		require.NoError(t, err)
		assert.Equal(t, 100, repos.limit)
	})

	t.Run("location history of a known case", func(t *testing.T) {
		entries, err := svc.LocationHistory(context.Background(), c.ID, 0)
		require.NoError(t, err)
		assert.Len(t, entries, 1)
		assert.Equal(t, 100, repos.limit)
	})

	t.Run("location history of an unknown case", func(t *testing.T) {
		_, err := svc.LocationHistory(context.Background(), uuid.New(), 10)
		require.ErrorIs(t, err, huberrors.ErrNotFound)
	})
}
