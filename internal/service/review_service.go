package service

import (
	"context"
	"strings"

	"scholarhub/internal/models"
	"scholarhub/internal/repository"
	"scholarhub/internal/validation"
	"scholarhub/internal/workflow"
)

type ReviewService struct {
	reviews      repository.ReviewRepository
	apps         repository.ApplicationRepository
	scholarships repository.ScholarshipRepository
}

// ReviewInput is the review form.
type ReviewInput struct {
	ScholarshipID uint   `json:"scholarshipId" validate:"required"`
	Rating        int    `json:"rating" validate:"required,min=1,max=5"`
	Comment       string `json:"comment" validate:"required,max=2000"`
}

// UpdateReviewInput edits an existing review.
type UpdateReviewInput struct {
	Rating  int    `json:"rating" validate:"required,min=1,max=5"`
	Comment string `json:"comment" validate:"required,max=2000"`
}

func NewReviewService(
	reviews repository.ReviewRepository,
	apps repository.ApplicationRepository,
	scholarships repository.ScholarshipRepository,
) *ReviewService {
	return &ReviewService{reviews: reviews, apps: apps, scholarships: scholarships}
}

// Create adds caller's review of a scholarship they completed an
// application for. One review per student and scholarship.
func (s *ReviewService) Create(ctx context.Context, caller Caller, in ReviewInput) (*models.Review, error) {
	if err := validation.Struct(in); err != nil {
		return nil, err
	}
	if caller.Role != workflow.RoleStudent {
		return nil, models.NewForbiddenError("Only students can review scholarships")
	}

	app, err := s.apps.FindCompleted(ctx, caller.UserID, in.ScholarshipID)
	if err != nil {
		return nil, err
	}
	if app == nil || !workflow.CanReview(app.State()) {
		return nil, models.NewForbiddenError("You can review a scholarship once your application is completed")
	}

	exists, err := s.reviews.HasReview(ctx, caller.UserID, in.ScholarshipID)
	if err != nil {
		return nil, err
	}
	if exists {
		return nil, models.NewConflictError("You have already reviewed this scholarship")
	}

	review := &models.Review{
		ScholarshipID:   in.ScholarshipID,
		ApplicationID:   app.ID,
		UserID:          caller.UserID,
		UserName:        caller.Name,
		UserEmail:       caller.Email,
		UserImage:       caller.PhotoURL,
		ScholarshipName: app.ScholarshipName,
		UniversityName:  app.UniversityName,
		Rating:          in.Rating,
		Comment:         strings.TrimSpace(in.Comment),
	}
	if err := s.reviews.Create(ctx, review); err != nil {
		return nil, err
	}
	return review, nil
}

// Update changes a review its author owns.
func (s *ReviewService) Update(ctx context.Context, caller Caller, id uint, in UpdateReviewInput) (*models.Review, error) {
	if err := validation.Struct(in); err != nil {
		return nil, err
	}
	review, err := s.reviews.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if review.UserID != caller.UserID {
		return nil, models.NewForbiddenError("You can only edit your own reviews")
	}
	comment := strings.TrimSpace(in.Comment)
	if err := s.reviews.Update(ctx, id, in.Rating, comment); err != nil {
		return nil, err
	}
	review.Rating = in.Rating
	review.Comment = comment
	return review, nil
}

// Delete removes a review its author owns.
func (s *ReviewService) Delete(ctx context.Context, caller Caller, id uint) error {
	review, err := s.reviews.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if review.UserID != caller.UserID {
		return models.NewForbiddenError("You can only delete your own reviews")
	}
	return s.reviews.Delete(ctx, id)
}

// ModeratorDelete removes any review.
func (s *ReviewService) ModeratorDelete(ctx context.Context, caller Caller, id uint) error {
	if caller.Role != workflow.RoleModerator {
		return models.NewForbiddenError("Only moderators can remove reviews")
	}
	if _, err := s.reviews.GetByID(ctx, id); err != nil {
		return err
	}
	return s.reviews.Delete(ctx, id)
}

// ListMine returns the reviews written by email. Students may only list
// their own.
func (s *ReviewService) ListMine(ctx context.Context, caller Caller, email string) ([]models.Review, error) {
	email = validation.NormalizeEmail(email)
	if email == "" {
		email = caller.Email
	}
	if caller.Role == workflow.RoleStudent && !strings.EqualFold(email, caller.Email) {
		return nil, models.NewForbiddenError("You can only list your own reviews")
	}
	return s.reviews.ListByUser(ctx, email)
}

func (s *ReviewService) ListByScholarship(ctx context.Context, scholarshipID uint) ([]models.Review, error) {
	if _, err := s.scholarships.GetByID(ctx, scholarshipID); err != nil {
		return nil, err
	}
	return s.reviews.ListByScholarship(ctx, scholarshipID)
}

// ListAll is the moderator review queue.
func (s *ReviewService) ListAll(ctx context.Context, limit, offset int) ([]models.Review, int64, error) {
	return s.reviews.ListAll(ctx, limit, offset)
}
