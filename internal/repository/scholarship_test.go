package repository

import (
	"context"
	"fmt"
	"testing"

	"scholarhub/internal/models"
	"scholarhub/internal/testutil"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestScholarshipFilter_Normalize(t *testing.T) {
	t.Parallel()
	f := ScholarshipFilter{Search: "  oxford ", SortBy: "bogus", Page: -2, Limit: 500}.Normalize()
	assert.Equal(t, "oxford", f.Search)
	assert.Equal(t, SortNewest, f.SortBy)
	assert.Equal(t, 1, f.Page)
	assert.Equal(t, maxPageSize, f.Limit)

	assert.Equal(t, defaultPageSize, ScholarshipFilter{}.Normalize().Limit)
}

func TestScholarshipRepository_SearchPaginates(t *testing.T) {
	db := testutil.NewTestDB(t)
	repo := NewScholarshipRepository(db)
	ctx := context.Background()

	for i := range 12 {
		testutil.CreateScholarship(t, db, func(s *models.Scholarship) {
			s.Name = fmt.Sprintf("Masters Grant %02d", i)
			s.ApplicationFees = float64(100 - i)
		})
	}
	for range 3 {
		testutil.CreateScholarship(t, db, func(s *models.Scholarship) { s.Degree = models.DegreePhD })
	}

	page, err := repo.Search(ctx, ScholarshipFilter{Degree: models.DegreeMasters, Page: 2, Limit: 9})
	require.NoError(t, err)
	assert.EqualValues(t, 12, page.Total)
	assert.Len(t, page.Items, 3)

	page, err = repo.Search(ctx, ScholarshipFilter{Degree: models.DegreeMasters, SortBy: SortFeesAsc, Limit: 2})
	require.NoError(t, err)
	require.Len(t, page.Items, 2)
	assert.Equal(t, "Masters Grant 11", page.Items[0].Name)

	page, err = repo.Search(ctx, ScholarshipFilter{Search: "grant 07"})
	require.NoError(t, err)
	assert.EqualValues(t, 1, page.Total)
}

func TestScholarshipRepository_SearchMatchesUniversityAndCountry(t *testing.T) {
	db := testutil.NewTestDB(t)
	repo := NewScholarshipRepository(db)
	ctx := context.Background()

	testutil.CreateScholarship(t, db, func(s *models.Scholarship) {
		s.UniversityName = "Sorbonne"
		s.UniversityCountry = "France"
	})
	testutil.CreateScholarship(t, db, nil)

	for _, q := range []string{"sorbonne", "FRANCE"} {
		page, err := repo.Search(ctx, ScholarshipFilter{Search: q})
		require.NoError(t, err)
		assert.EqualValues(t, 1, page.Total, q)
	}
}

func TestScholarshipRepository_CheapestAndCRUD(t *testing.T) {
	db := testutil.NewTestDB(t)
	repo := NewScholarshipRepository(db)
	ctx := context.Background()

	for _, fee := range []float64{30, 10, 20} {
		testutil.CreateScholarship(t, db, func(s *models.Scholarship) { s.ApplicationFees = fee })
	}

	cheapest, err := repo.Cheapest(ctx, 2)
	require.NoError(t, err)
	require.Len(t, cheapest, 2)
	assert.InDelta(t, 10, cheapest[0].ApplicationFees, 0.001)
	assert.InDelta(t, 20, cheapest[1].ApplicationFees, 0.001)

	s, err := repo.GetByID(ctx, cheapest[0].ID)
	require.NoError(t, err)
	s.Description = "updated"
	s.ServiceCharge = 0
	require.NoError(t, repo.Update(ctx, s))

	got, err := repo.GetByID(ctx, s.ID)
	require.NoError(t, err)
	assert.Equal(t, "updated", got.Description)
	assert.Zero(t, got.ServiceCharge)

	require.NoError(t, repo.Delete(ctx, s.ID))
	_, err = repo.GetByID(ctx, s.ID)
	assert.Equal(t, 404, models.StatusFor(err))
	assert.Equal(t, 404, models.StatusFor(repo.Delete(ctx, s.ID)))

	n, err := repo.Count(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 2, n)
}
