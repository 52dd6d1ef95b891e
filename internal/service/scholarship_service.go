package service

import (
	"context"
	"strings"
	"time"

	"scholarhub/internal/models"
	"scholarhub/internal/repository"
	"scholarhub/internal/validation"
	"scholarhub/internal/workflow"
)

type ScholarshipService struct {
	repo    repository.ScholarshipRepository
	reviews repository.ReviewRepository
	now     func() time.Time
}

// ScholarshipInput is the add/manage scholarship form.
type ScholarshipInput struct {
	Name                string    `json:"scholarshipName" validate:"required,max=200"`
	UniversityName      string    `json:"universityName" validate:"required,max=200"`
	UniversityImage     string    `json:"universityImage" validate:"omitempty,max=512"`
	UniversityCountry   string    `json:"universityCountry" validate:"required,max=100"`
	UniversityCity      string    `json:"universityCity" validate:"required,max=100"`
	UniversityWorldRank int       `json:"universityWorldRank" validate:"gte=0"`
	SubjectCategory     string    `json:"subjectCategory" validate:"required,max=60"`
	ScholarshipCategory string    `json:"scholarshipCategory" validate:"required,oneof='Full fund' 'Partial fund' 'Self fund'"`
	Degree              string    `json:"degree" validate:"required,oneof=Diploma Bachelor Masters PhD"`
	TuitionFees         float64   `json:"tuitionFees" validate:"gte=0"`
	ApplicationFees     float64   `json:"applicationFees" validate:"gte=0"`
	ServiceCharge       float64   `json:"serviceCharge" validate:"gte=0"`
	ApplicationDeadline time.Time `json:"applicationDeadline" validate:"required"`
	Description         string    `json:"scholarshipDescription" validate:"max=5000"`
}

// PagedScholarships is one page of search results.
type PagedScholarships struct {
	Data       []models.ScholarshipView `json:"data"`
	Total      int64                    `json:"total"`
	TotalPages int                      `json:"totalPages"`
	Page       int                      `json:"page"`
	Limit      int                      `json:"limit"`
}

// ScholarshipDetail is a listing with its reviews.
type ScholarshipDetail struct {
	models.ScholarshipView
	Reviews []models.Review `json:"reviews"`
}

func NewScholarshipService(repo repository.ScholarshipRepository, reviews repository.ReviewRepository) *ScholarshipService {
	return &ScholarshipService{repo: repo, reviews: reviews, now: utcNow}
}

// Search returns one page of listings. The result depends only on filter
// and the stored data.
func (s *ScholarshipService) Search(ctx context.Context, filter repository.ScholarshipFilter) (*PagedScholarships, error) {
	filter = filter.Normalize()
	page, err := s.repo.Search(ctx, filter)
	if err != nil {
		return nil, err
	}
	return &PagedScholarships{
		Data:       s.views(page.Items),
		Total:      page.Total,
		TotalPages: TotalPages(page.Total, filter.Limit),
		Page:       filter.Page,
		Limit:      filter.Limit,
	}, nil
}

// TotalPages is ceil(total/limit).
func TotalPages(total int64, limit int) int {
	if limit <= 0 || total <= 0 {
		return 0
	}
	return int((total + int64(limit) - 1) / int64(limit))
}

// Cheapest lists the n listings with the lowest application fee.
func (s *ScholarshipService) Cheapest(ctx context.Context, n int) ([]models.ScholarshipView, error) {
	items, err := s.repo.Cheapest(ctx, n)
	if err != nil {
		return nil, err
	}
	return s.views(items), nil
}

// Get returns a listing with its countdown, rating summary and reviews.
func (s *ScholarshipService) Get(ctx context.Context, id uint) (*ScholarshipDetail, error) {
	sch, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	view := models.NewScholarshipView(*sch, s.now())

	summary, err := s.reviews.Summary(ctx, id)
	if err != nil {
		return nil, err
	}
	view.RatingAverage = summary.Average
	view.ReviewCount = summary.Count

	reviews, err := s.reviews.ListByScholarship(ctx, id)
	if err != nil {
		return nil, err
	}
	return &ScholarshipDetail{ScholarshipView: view, Reviews: reviews}, nil
}

// requireAdmin guards listing management. Moderators triage applications
// and reviews but never edit the catalogue.
func requireAdmin(caller Caller) error {
	if caller.Role != workflow.RoleAdmin {
		return models.NewForbiddenError("Only admins can manage scholarships")
	}
	return nil
}

func (s *ScholarshipService) Create(ctx context.Context, caller Caller, in ScholarshipInput) (*models.Scholarship, error) {
	if err := requireAdmin(caller); err != nil {
		return nil, err
	}
	if err := validation.Struct(in); err != nil {
		return nil, err
	}
	sch := &models.Scholarship{PostDate: s.now(), PostedByEmail: caller.Email}
	in.applyTo(sch)
	if err := s.repo.Create(ctx, sch); err != nil {
		return nil, err
	}
	return sch, nil
}

func (s *ScholarshipService) Update(ctx context.Context, caller Caller, id uint, in ScholarshipInput) (*models.Scholarship, error) {
	if err := requireAdmin(caller); err != nil {
		return nil, err
	}
	if err := validation.Struct(in); err != nil {
		return nil, err
	}
	sch, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	in.applyTo(sch)
	if err := s.repo.Update(ctx, sch); err != nil {
		return nil, err
	}
	return sch, nil
}

func (s *ScholarshipService) Delete(ctx context.Context, caller Caller, id uint) error {
	if err := requireAdmin(caller); err != nil {
		return err
	}
	return s.repo.Delete(ctx, id)
}

func (s *ScholarshipService) views(items []models.Scholarship) []models.ScholarshipView {
	now := s.now()
	out := make([]models.ScholarshipView, len(items))
	for i, it := range items {
		out[i] = models.NewScholarshipView(it, now)
	}
	return out
}

func (in ScholarshipInput) applyTo(sch *models.Scholarship) {
	sch.Name = strings.TrimSpace(in.Name)
	sch.UniversityName = strings.TrimSpace(in.UniversityName)
	sch.UniversityImage = in.UniversityImage
	sch.UniversityCountry = strings.TrimSpace(in.UniversityCountry)
	sch.UniversityCity = strings.TrimSpace(in.UniversityCity)
	sch.UniversityWorldRank = in.UniversityWorldRank
	sch.SubjectCategory = in.SubjectCategory
	sch.ScholarshipCategory = in.ScholarshipCategory
	sch.Degree = in.Degree
	sch.TuitionFees = in.TuitionFees
	sch.ApplicationFees = in.ApplicationFees
	sch.ServiceCharge = in.ServiceCharge
	sch.ApplicationDeadline = in.ApplicationDeadline.UTC()
	sch.Description = in.Description
}
