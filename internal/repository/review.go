package repository

import (
	"context"

	"scholarhub/internal/models"

	"gorm.io/gorm"
)

// RatingSummary aggregates the reviews of one scholarship.
type RatingSummary struct {
	Average float64 `json:"average"`
	Count   int64   `json:"count"`
}

// ReviewRepository defines persistence operations for reviews.
type ReviewRepository interface {
	Create(ctx context.Context, review *models.Review) error
	GetByID(ctx context.Context, id uint) (*models.Review, error)
	Update(ctx context.Context, id uint, rating int, comment string) error
	Delete(ctx context.Context, id uint) error
	ListByUser(ctx context.Context, email string) ([]models.Review, error)
	ListByScholarship(ctx context.Context, scholarshipID uint) ([]models.Review, error)
	ListAll(ctx context.Context, limit, offset int) ([]models.Review, int64, error)
	HasReview(ctx context.Context, userID, scholarshipID uint) (bool, error)
	Summary(ctx context.Context, scholarshipID uint) (RatingSummary, error)
}

type reviewRepository struct {
	db *gorm.DB
}

// NewReviewRepository returns a gorm-backed ReviewRepository.
func NewReviewRepository(db *gorm.DB) ReviewRepository {
	return &reviewRepository{db: db}
}

func (r *reviewRepository) Create(ctx context.Context, review *models.Review) error {
	if err := r.db.WithContext(ctx).Create(review).Error; err != nil {
		if isUniqueConstraintError(err) {
			return models.NewConflictError("You have already reviewed this scholarship")
		}
		return models.NewInternalError(err)
	}
	return nil
}

func (r *reviewRepository) GetByID(ctx context.Context, id uint) (*models.Review, error) {
	var review models.Review
	if err := r.db.WithContext(ctx).First(&review, id).Error; err != nil {
		return nil, notFoundOr(err, "Review", id)
	}
	return &review, nil
}

func (r *reviewRepository) Update(ctx context.Context, id uint, rating int, comment string) error {
	res := r.db.WithContext(ctx).Model(&models.Review{}).Where("id = ?", id).
		Updates(map[string]any{"rating": rating, "comment": comment})
	return expectRow(res, "Review", id)
}

func (r *reviewRepository) Delete(ctx context.Context, id uint) error {
	res := r.db.WithContext(ctx).Delete(&models.Review{}, id)
	return expectRow(res, "Review", id)
}

func (r *reviewRepository) ListByUser(ctx context.Context, email string) ([]models.Review, error) {
	reviews := []models.Review{}
	if err := readDB(r.db).WithContext(ctx).Where("user_email = ?", email).
		Order("created_at DESC, id DESC").Find(&reviews).Error; err != nil {
		return nil, models.NewInternalError(err)
	}
	return reviews, nil
}

func (r *reviewRepository) ListByScholarship(ctx context.Context, scholarshipID uint) ([]models.Review, error) {
	reviews := []models.Review{}
	if err := readDB(r.db).WithContext(ctx).Where("scholarship_id = ?", scholarshipID).
		Order("created_at DESC, id DESC").Find(&reviews).Error; err != nil {
		return nil, models.NewInternalError(err)
	}
	return reviews, nil
}

func (r *reviewRepository) ListAll(ctx context.Context, limit, offset int) ([]models.Review, int64, error) {
	q := readDB(r.db).WithContext(ctx).Model(&models.Review{})
	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, models.NewInternalError(err)
	}
	reviews := []models.Review{}
	if err := q.Order("created_at DESC, id DESC").
		Limit(clampLimit(limit)).Offset(max(offset, 0)).
		Find(&reviews).Error; err != nil {
		return nil, 0, models.NewInternalError(err)
	}
	return reviews, total, nil
}

func (r *reviewRepository) HasReview(ctx context.Context, userID, scholarshipID uint) (bool, error) {
	var n int64
	if err := r.db.WithContext(ctx).Model(&models.Review{}).
		Where("user_id = ? AND scholarship_id = ?", userID, scholarshipID).
		Count(&n).Error; err != nil {
		return false, models.NewInternalError(err)
	}
	return n > 0, nil
}

func (r *reviewRepository) Summary(ctx context.Context, scholarshipID uint) (RatingSummary, error) {
	var out RatingSummary
	err := readDB(r.db).WithContext(ctx).Model(&models.Review{}).
		Select("COALESCE(AVG(rating), 0) AS average, COUNT(*) AS count").
		Where("scholarship_id = ?", scholarshipID).
		Scan(&out).Error
	if err != nil {
		return RatingSummary{}, models.NewInternalError(err)
	}
	return out, nil
}
