package repository

import (
	"context"
	"errors"

	"scholarhub/internal/models"
	"scholarhub/internal/observability"
	"scholarhub/internal/workflow"

	"gorm.io/gorm"
)

// ErrStaleState is wrapped into a CONFLICT when the row no longer holds the
// state a write was computed from.
var ErrStaleState = errors.New("repository: application state changed concurrently")

func staleState() error {
	return &models.AppError{
		Code:    models.CodeConflict,
		Message: "Application was modified by another request",
		Err:     ErrStaleState,
	}
}

// ApplicationFilter narrows List. Zero values match everything.
type ApplicationFilter struct {
	UserID        uint
	Email         string
	ScholarshipID uint
	Status        workflow.ApplicationStatus
	Payment       workflow.PaymentStatus
	// SortBy is "appliedDate" (newest first, default) or "deadline".
	SortBy string
	Limit  int
	Offset int
}

// ApplicationRepository persists applications and their timelines. Every
// status change and its tracking event are written in one transaction.
type ApplicationRepository interface {
	CreateWithEvent(ctx context.Context, app *models.Application, ev *models.TrackingEvent) error
	GetByID(ctx context.Context, id uint) (*models.Application, error)
	GetByTrackingID(ctx context.Context, trackingID string) (*models.Application, error)
	List(ctx context.Context, filter ApplicationFilter) ([]models.Application, int64, error)
	FindActive(ctx context.Context, userID, scholarshipID uint) (*models.Application, error)
	FindCompleted(ctx context.Context, userID, scholarshipID uint) (*models.Application, error)
	UpdateFields(ctx context.Context, id uint, fields map[string]any) error
	Delete(ctx context.Context, id uint) error
	TransitionWithEvent(ctx context.Context, id uint, change StateChange) error
	SetFeedback(ctx context.Context, id uint, feedback string) error
	ListEvents(ctx context.Context, trackingID string) ([]models.TrackingEvent, error)
	CountByState(ctx context.Context) ([]StateCount, error)
}

// StateChange is one validated move between workflow states, written in a
// single transaction together with its event and any moderator feedback.
type StateChange struct {
	From     workflow.State
	To       workflow.State
	Event    *models.TrackingEvent
	Feedback string
}

// StateCount is the number of applications in one state.
type StateCount struct {
	ApplicationStatus workflow.ApplicationStatus `json:"applicationStatus"`
	PaymentStatus     workflow.PaymentStatus     `json:"paymentStatus"`
	Count             int64                      `json:"count"`
}

type applicationRepository struct {
	db *gorm.DB
}

// NewApplicationRepository returns a gorm-backed ApplicationRepository.
func NewApplicationRepository(db *gorm.DB) ApplicationRepository {
	return &applicationRepository{db: db}
}

func (r *applicationRepository) CreateWithEvent(ctx context.Context, app *models.Application, ev *models.TrackingEvent) error {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(app).Error; err != nil {
			return err
		}
		ev.ApplicationID = app.ID
		ev.TrackingID = app.TrackingID
		return tx.Create(ev).Error
	})
	if err != nil {
		if isUniqueConstraintError(err) {
			return models.NewConflictError("An open application for this scholarship already exists")
		}
		return models.NewInternalError(err)
	}
	return nil
}

func (r *applicationRepository) GetByID(ctx context.Context, id uint) (*models.Application, error) {
	var app models.Application
	if err := r.db.WithContext(ctx).First(&app, id).Error; err != nil {
		return nil, notFoundOr(err, "Application", id)
	}
	return &app, nil
}

func (r *applicationRepository) GetByTrackingID(ctx context.Context, trackingID string) (*models.Application, error) {
	var app models.Application
	if err := r.db.WithContext(ctx).Where("tracking_id = ?", trackingID).First(&app).Error; err != nil {
		return nil, notFoundOr(err, "Application", trackingID)
	}
	return &app, nil
}

func (r *applicationRepository) List(ctx context.Context, filter ApplicationFilter) ([]models.Application, int64, error) {
	defer observability.TrackQuery("list", "applications")()

	q := readDB(r.db).WithContext(ctx).Model(&models.Application{})
	if filter.UserID != 0 {
		q = q.Where("user_id = ?", filter.UserID)
	}
	if filter.Email != "" {
		q = q.Where("user_email = ?", filter.Email)
	}
	if filter.ScholarshipID != 0 {
		q = q.Where("scholarship_id = ?", filter.ScholarshipID)
	}
	if filter.Status != "" {
		q = q.Where("application_status = ?", filter.Status)
	}
	if filter.Payment != "" {
		q = q.Where("payment_status = ?", filter.Payment)
	}

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, models.NewInternalError(err)
	}

	order := "created_at DESC, id DESC"
	if filter.SortBy == "deadline" {
		order = "application_deadline ASC, id ASC"
	}

	apps := []models.Application{}
	if err := q.Order(order).
		Limit(clampLimit(filter.Limit)).
		Offset(max(filter.Offset, 0)).
		Find(&apps).Error; err != nil {
		return nil, 0, models.NewInternalError(err)
	}
	return apps, total, nil
}

func (r *applicationRepository) findOne(ctx context.Context, userID, scholarshipID uint, statuses ...workflow.ApplicationStatus) (*models.Application, error) {
	var app models.Application
	err := r.db.WithContext(ctx).
		Where("user_id = ? AND scholarship_id = ? AND application_status IN ?", userID, scholarshipID, statuses).
		Order("id DESC").
		First(&app).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, models.NewInternalError(err)
	}
	return &app, nil
}

// FindActive returns the student's pending or approved application for a
// scholarship, or nil.
func (r *applicationRepository) FindActive(ctx context.Context, userID, scholarshipID uint) (*models.Application, error) {
	return r.findOne(ctx, userID, scholarshipID, workflow.StatusPending, workflow.StatusApproved)
}

// FindCompleted returns the student's completed application for a
// scholarship, or nil.
func (r *applicationRepository) FindCompleted(ctx context.Context, userID, scholarshipID uint) (*models.Application, error) {
	return r.findOne(ctx, userID, scholarshipID, workflow.StatusCompleted)
}

// UpdateFields changes form fields while the application is still pending.
func (r *applicationRepository) UpdateFields(ctx context.Context, id uint, fields map[string]any) error {
	res := r.db.WithContext(ctx).Model(&models.Application{}).
		Where("id = ? AND application_status = ?", id, workflow.StatusPending).
		Updates(fields)
	if res.Error != nil {
		return models.NewInternalError(res.Error)
	}
	if res.RowsAffected == 0 {
		return staleState()
	}
	return nil
}

// Delete removes a pending application and its timeline.
func (r *applicationRepository) Delete(ctx context.Context, id uint) error {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Where("id = ? AND application_status = ?", id, workflow.StatusPending).Delete(&models.Application{})
		if res.Error != nil {
			return models.NewInternalError(res.Error)
		}
		if res.RowsAffected == 0 {
			return staleState()
		}
		if err := tx.Where("application_id = ?", id).Delete(&models.TrackingEvent{}).Error; err != nil {
			return models.NewInternalError(err)
		}
		return nil
	})
	return err
}

// TransitionWithEvent moves the application from one state to another and
// appends the change's event. It fails with a CONFLICT when the row is no
// longer in change.From.
func (r *applicationRepository) TransitionWithEvent(ctx context.Context, id uint, change StateChange) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return transitionTx(tx, id, change)
	})
}

func transitionTx(tx *gorm.DB, id uint, change StateChange) error {
	from, to, ev := change.From, change.To, change.Event
	fields := map[string]any{
		"application_status": to.Application,
		"payment_status":     to.Payment,
	}
	if change.Feedback != "" {
		fields["feedback"] = change.Feedback
	}
	res := tx.Model(&models.Application{}).
		Where("id = ? AND application_status = ? AND payment_status = ?", id, from.Application, from.Payment).
		Updates(fields)
	if res.Error != nil {
		return models.NewInternalError(res.Error)
	}
	if res.RowsAffected == 0 {
		return staleState()
	}
	if ev == nil {
		return nil
	}
	ev.ApplicationID = id
	if err := tx.Create(ev).Error; err != nil {
		return models.NewInternalError(err)
	}
	return nil
}

func (r *applicationRepository) SetFeedback(ctx context.Context, id uint, feedback string) error {
	res := r.db.WithContext(ctx).Model(&models.Application{}).Where("id = ?", id).Update("feedback", feedback)
	return expectRow(res, "Application", id)
}

// ListEvents returns the timeline in the order events were appended.
func (r *applicationRepository) ListEvents(ctx context.Context, trackingID string) ([]models.TrackingEvent, error) {
	events := []models.TrackingEvent{}
	if err := r.db.WithContext(ctx).
		Where("tracking_id = ?", trackingID).
		Order("created_at ASC, id ASC").
		Find(&events).Error; err != nil {
		return nil, models.NewInternalError(err)
	}
	return events, nil
}

func (r *applicationRepository) CountByState(ctx context.Context) ([]StateCount, error) {
	counts := []StateCount{}
	if err := readDB(r.db).WithContext(ctx).Model(&models.Application{}).
		Select("application_status, payment_status, COUNT(*) AS count").
		Group("application_status, payment_status").
		Order("application_status, payment_status").
		Scan(&counts).Error; err != nil {
		return nil, models.NewInternalError(err)
	}
	return counts, nil
}
