package service

import (
	"context"
	"testing"

	"scholarhub/internal/models"
	"scholarhub/internal/workflow"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func completedApp() *models.Application {
	app := appIn(workflow.State{Application: workflow.StatusCompleted, Payment: workflow.PaymentPaid})
	app.UniversityName = "Uni of Somewhere"
	return app
}

func TestReviewService_Create(t *testing.T) {
	t.Parallel()
	in := ReviewInput{ScholarshipID: 7, Rating: 5, Comment: " Great programme "}

	t.Run("completed application unlocks a review", func(t *testing.T) {
		t.Parallel()
		apps := noopAppRepo()
		apps.findCompletedFn = func(_ context.Context, userID, scholarshipID uint) (*models.Application, error) {
			assert.Equal(t, student.UserID, userID)
			assert.Equal(t, uint(7), scholarshipID)
			return completedApp(), nil
		}
		svc := NewReviewService(noopReviewRepo(), apps, noopScholarshipRepo())

		review, err := svc.Create(context.Background(), student, in)
		require.NoError(t, err)
		assert.Equal(t, "Great programme", review.Comment)
		assert.Equal(t, "Global Excellence", review.ScholarshipName)
		assert.Equal(t, "Uni of Somewhere", review.UniversityName)
		assert.Equal(t, student.Email, review.UserEmail)
		assert.Equal(t, uint(5), review.ApplicationID)
	})

	t.Run("no completed application", func(t *testing.T) {
		t.Parallel()
		svc := NewReviewService(noopReviewRepo(), noopAppRepo(), noopScholarshipRepo())
		_, err := svc.Create(context.Background(), student, in)
		assertCode(t, err, models.CodeForbidden)
	})

	t.Run("second review is a conflict", func(t *testing.T) {
		t.Parallel()
		apps := noopAppRepo()
		apps.findCompletedFn = func(_ context.Context, _, _ uint) (*models.Application, error) { return completedApp(), nil }
		reviews := noopReviewRepo()
		reviews.hasReviewFn = func(_ context.Context, _, _ uint) (bool, error) { return true, nil }
		svc := NewReviewService(reviews, apps, noopScholarshipRepo())
		_, err := svc.Create(context.Background(), student, in)
		assertCode(t, err, models.CodeConflict)
	})

	t.Run("staff do not review", func(t *testing.T) {
		t.Parallel()
		svc := NewReviewService(noopReviewRepo(), noopAppRepo(), noopScholarshipRepo())
		_, err := svc.Create(context.Background(), moderator, in)
		assertCode(t, err, models.CodeForbidden)
	})

	t.Run("rating out of range", func(t *testing.T) {
		t.Parallel()
		svc := NewReviewService(noopReviewRepo(), noopAppRepo(), noopScholarshipRepo())
		_, err := svc.Create(context.Background(), student, ReviewInput{ScholarshipID: 7, Rating: 6, Comment: "x"})
		assertValidationError(t, err)
	})
}

func TestReviewService_AuthorOnlyEdits(t *testing.T) {
	t.Parallel()
	reviews := noopReviewRepo()
	reviews.getByIDFn = func(_ context.Context, id uint) (*models.Review, error) {
		return &models.Review{ID: id, UserID: student.UserID, Rating: 3, Comment: "ok"}, nil
	}
	var deleted []uint
	reviews.deleteFn = func(_ context.Context, id uint) error {
		deleted = append(deleted, id)
		return nil
	}
	svc := NewReviewService(reviews, noopAppRepo(), noopScholarshipRepo())
	ctx := context.Background()

	updated, err := svc.Update(ctx, student, 1, UpdateReviewInput{Rating: 4, Comment: "better "})
	require.NoError(t, err)
	assert.Equal(t, 4, updated.Rating)
	assert.Equal(t, "better", updated.Comment)

	_, err = svc.Update(ctx, stranger, 1, UpdateReviewInput{Rating: 1, Comment: "bad"})
	assertCode(t, err, models.CodeForbidden)

	assertCode(t, svc.Delete(ctx, stranger, 1), models.CodeForbidden)
	require.NoError(t, svc.Delete(ctx, student, 1))

	assertCode(t, svc.ModeratorDelete(ctx, admin, 2), models.CodeForbidden)
	require.NoError(t, svc.ModeratorDelete(ctx, moderator, 2))
	assert.Equal(t, []uint{1, 2}, deleted)
}

func TestReviewService_ListMine(t *testing.T) {
	t.Parallel()
	reviews := noopReviewRepo()
	var asked []string
	reviews.listByUserFn = func(_ context.Context, email string) ([]models.Review, error) {
		asked = append(asked, email)
		return nil, nil
	}
	svc := NewReviewService(reviews, noopAppRepo(), noopScholarshipRepo())
	ctx := context.Background()

	_, err := svc.ListMine(ctx, student, "")
	require.NoError(t, err)
	_, err = svc.ListMine(ctx, student, "ADA@example.com")
	require.NoError(t, err)
	_, err = svc.ListMine(ctx, student, stranger.Email)
	assertCode(t, err, models.CodeForbidden)
	_, err = svc.ListMine(ctx, moderator, stranger.Email)
	require.NoError(t, err)

	assert.Equal(t, []string{"ada@example.com", "ada@example.com", "bo@example.com"}, asked)
}

func TestReviewService_ListByScholarshipNeedsListing(t *testing.T) {
	t.Parallel()
	svc := NewReviewService(noopReviewRepo(), noopAppRepo(), noopScholarshipRepo())
	_, err := svc.ListByScholarship(context.Background(), 99)
	assertCode(t, err, models.CodeNotFound)
}
