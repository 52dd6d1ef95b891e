package repository

import (
	"context"
	"fmt"
	"strings"

	"scholarhub/internal/cache"
	"scholarhub/internal/models"
	"scholarhub/internal/observability"

	"gorm.io/gorm"
)

// Sort orders accepted by ScholarshipFilter.SortBy.
const (
	SortNewest   = "newest"
	SortFeesAsc  = "fees_asc"
	SortFeesDesc = "fees_desc"
	SortDeadline = "deadline"
	SortRank     = "rank"
)

var scholarshipOrder = map[string]string{
	SortNewest:   "created_at DESC",
	SortFeesAsc:  "application_fees ASC",
	SortFeesDesc: "application_fees DESC",
	SortDeadline: "application_deadline ASC",
	SortRank:     "university_world_rank ASC",
}

// ScholarshipFilter is one page of the public search.
type ScholarshipFilter struct {
	Search              string
	SubjectCategory     string
	ScholarshipCategory string
	Degree              string
	Country             string
	SortBy              string
	Page                int
	Limit               int
}

// Normalize fills defaults and clamps paging.
func (f ScholarshipFilter) Normalize() ScholarshipFilter {
	f.Search = strings.TrimSpace(f.Search)
	if _, ok := scholarshipOrder[f.SortBy]; !ok {
		f.SortBy = SortNewest
	}
	if f.Page < 1 {
		f.Page = 1
	}
	f.Limit = clampLimit(f.Limit)
	return f
}

func (f ScholarshipFilter) cacheKey() string {
	return fmt.Sprintf("q=%s|sub=%s|cat=%s|deg=%s|cty=%s|sort=%s|p=%d|l=%d",
		strings.ToLower(f.Search), f.SubjectCategory, f.ScholarshipCategory, f.Degree, f.Country, f.SortBy, f.Page, f.Limit)
}

// ScholarshipPage is one page of results plus the unpaged total.
type ScholarshipPage struct {
	Items []models.Scholarship `json:"items"`
	Total int64                `json:"total"`
}

// ScholarshipRepository defines persistence operations for listings.
type ScholarshipRepository interface {
	Search(ctx context.Context, filter ScholarshipFilter) (*ScholarshipPage, error)
	Cheapest(ctx context.Context, n int) ([]models.Scholarship, error)
	GetByID(ctx context.Context, id uint) (*models.Scholarship, error)
	Create(ctx context.Context, s *models.Scholarship) error
	Update(ctx context.Context, s *models.Scholarship) error
	Delete(ctx context.Context, id uint) error
	Count(ctx context.Context) (int64, error)
}

type scholarshipRepository struct {
	db *gorm.DB
}

// NewScholarshipRepository returns a gorm-backed ScholarshipRepository.
func NewScholarshipRepository(db *gorm.DB) ScholarshipRepository {
	return &scholarshipRepository{db: db}
}

func (r *scholarshipRepository) Search(ctx context.Context, filter ScholarshipFilter) (*ScholarshipPage, error) {
	f := filter.Normalize()
	var page ScholarshipPage

	err := cache.Aside(ctx, cache.ScholarshipListKey(ctx, f.cacheKey()), &page, cache.ListTTL, func() error {
		defer observability.TrackQuery("search", "scholarships")()

		q := readDB(r.db).WithContext(ctx).Model(&models.Scholarship{})
		if f.Search != "" {
			p := likePattern(f.Search)
			q = q.Where("LOWER(name) LIKE ? OR LOWER(university_name) LIKE ? OR LOWER(university_country) LIKE ? OR LOWER(subject_category) LIKE ?", p, p, p, p)
		}
		if f.SubjectCategory != "" {
			q = q.Where("subject_category = ?", f.SubjectCategory)
		}
		if f.ScholarshipCategory != "" {
			q = q.Where("scholarship_category = ?", f.ScholarshipCategory)
		}
		if f.Degree != "" {
			q = q.Where("degree = ?", f.Degree)
		}
		if f.Country != "" {
			q = q.Where("university_country = ?", f.Country)
		}

		if err := q.Count(&page.Total).Error; err != nil {
			return models.NewInternalError(err)
		}
		page.Items = []models.Scholarship{}
		if err := q.Order(scholarshipOrder[f.SortBy] + ", id ASC").
			Limit(f.Limit).
			Offset((f.Page - 1) * f.Limit).
			Find(&page.Items).Error; err != nil {
			return models.NewInternalError(err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &page, nil
}

func (r *scholarshipRepository) Cheapest(ctx context.Context, n int) ([]models.Scholarship, error) {
	if n <= 0 {
		n = 6
	}
	var items []models.Scholarship
	if err := readDB(r.db).WithContext(ctx).
		Order("application_fees ASC, id ASC").
		Limit(n).
		Find(&items).Error; err != nil {
		return nil, models.NewInternalError(err)
	}
	return items, nil
}

func (r *scholarshipRepository) GetByID(ctx context.Context, id uint) (*models.Scholarship, error) {
	var s models.Scholarship
	err := cache.Aside(ctx, cache.ScholarshipKey(id), &s, cache.ScholarshipTTL, func() error {
		if err := readDB(r.db).WithContext(ctx).First(&s, id).Error; err != nil {
			return notFoundOr(err, "Scholarship", id)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &s, nil
}

func (r *scholarshipRepository) Create(ctx context.Context, s *models.Scholarship) error {
	if err := r.db.WithContext(ctx).Create(s).Error; err != nil {
		return models.NewInternalError(err)
	}
	cache.InvalidateScholarship(ctx, s.ID)
	return nil
}

func (r *scholarshipRepository) Update(ctx context.Context, s *models.Scholarship) error {
	res := r.db.WithContext(ctx).Model(s).Select("*").Omit("id", "created_at", "deleted_at").Updates(s)
	if err := expectRow(res, "Scholarship", s.ID); err != nil {
		return err
	}
	cache.InvalidateScholarship(ctx, s.ID)
	return nil
}

func (r *scholarshipRepository) Delete(ctx context.Context, id uint) error {
	res := r.db.WithContext(ctx).Delete(&models.Scholarship{}, id)
	if err := expectRow(res, "Scholarship", id); err != nil {
		return err
	}
	cache.InvalidateScholarship(ctx, id)
	return nil
}

func (r *scholarshipRepository) Count(ctx context.Context) (int64, error) {
	var n int64
	if err := readDB(r.db).WithContext(ctx).Model(&models.Scholarship{}).Count(&n).Error; err != nil {
		return 0, models.NewInternalError(err)
	}
	return n, nil
}
