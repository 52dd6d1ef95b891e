package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"scholarhub/internal/inflight"
	"scholarhub/internal/models"
	"scholarhub/internal/notifications"
	"scholarhub/internal/repository"
	"scholarhub/internal/workflow"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// appRepoStub is a stub for repository.ApplicationRepository.
type appRepoStub struct {
	createWithEventFn     func(context.Context, *models.Application, *models.TrackingEvent) error
	getByIDFn             func(context.Context, uint) (*models.Application, error)
	getByTrackingIDFn     func(context.Context, string) (*models.Application, error)
	listFn                func(context.Context, repository.ApplicationFilter) ([]models.Application, int64, error)
	findActiveFn          func(context.Context, uint, uint) (*models.Application, error)
	findCompletedFn       func(context.Context, uint, uint) (*models.Application, error)
	updateFieldsFn        func(context.Context, uint, map[string]any) error
	deleteFn              func(context.Context, uint) error
	transitionWithEventFn func(context.Context, uint, repository.StateChange) error
	setFeedbackFn         func(context.Context, uint, string) error
	listEventsFn          func(context.Context, string) ([]models.TrackingEvent, error)
	countByStateFn        func(context.Context) ([]repository.StateCount, error)
}

func (s *appRepoStub) CreateWithEvent(ctx context.Context, app *models.Application, ev *models.TrackingEvent) error {
	return s.createWithEventFn(ctx, app, ev)
}
func (s *appRepoStub) GetByID(ctx context.Context, id uint) (*models.Application, error) {
	return s.getByIDFn(ctx, id)
}
func (s *appRepoStub) GetByTrackingID(ctx context.Context, trackingID string) (*models.Application, error) {
	return s.getByTrackingIDFn(ctx, trackingID)
}
func (s *appRepoStub) List(ctx context.Context, f repository.ApplicationFilter) ([]models.Application, int64, error) {
	return s.listFn(ctx, f)
}
func (s *appRepoStub) FindActive(ctx context.Context, userID, scholarshipID uint) (*models.Application, error) {
	return s.findActiveFn(ctx, userID, scholarshipID)
}
func (s *appRepoStub) FindCompleted(ctx context.Context, userID, scholarshipID uint) (*models.Application, error) {
	return s.findCompletedFn(ctx, userID, scholarshipID)
}
func (s *appRepoStub) UpdateFields(ctx context.Context, id uint, fields map[string]any) error {
	return s.updateFieldsFn(ctx, id, fields)
}
func (s *appRepoStub) Delete(ctx context.Context, id uint) error {
	return s.deleteFn(ctx, id)
}
func (s *appRepoStub) TransitionWithEvent(ctx context.Context, id uint, change repository.StateChange) error {
	return s.transitionWithEventFn(ctx, id, change)
}
func (s *appRepoStub) SetFeedback(ctx context.Context, id uint, feedback string) error {
	return s.setFeedbackFn(ctx, id, feedback)
}
func (s *appRepoStub) ListEvents(ctx context.Context, trackingID string) ([]models.TrackingEvent, error) {
	return s.listEventsFn(ctx, trackingID)
}
func (s *appRepoStub) CountByState(ctx context.Context) ([]repository.StateCount, error) {
	return s.countByStateFn(ctx)
}

func noopAppRepo() *appRepoStub {
	return &appRepoStub{
		createWithEventFn: func(_ context.Context, app *models.Application, _ *models.TrackingEvent) error {
			app.ID = 1
			return nil
		},
		getByIDFn: func(_ context.Context, id uint) (*models.Application, error) {
			return nil, models.NewNotFoundError("Application", id)
		},
		getByTrackingIDFn: func(_ context.Context, tid string) (*models.Application, error) {
			return nil, models.NewNotFoundError("Application", tid)
		},
		listFn:          func(_ context.Context, _ repository.ApplicationFilter) ([]models.Application, int64, error) { return nil, 0, nil },
		findActiveFn:    func(_ context.Context, _, _ uint) (*models.Application, error) { return nil, nil },
		findCompletedFn: func(_ context.Context, _, _ uint) (*models.Application, error) { return nil, nil },
		updateFieldsFn:  func(_ context.Context, _ uint, _ map[string]any) error { return nil },
		deleteFn:        func(_ context.Context, _ uint) error { return nil },
		transitionWithEventFn: func(_ context.Context, _ uint, _ repository.StateChange) error {
			return nil
		},
		setFeedbackFn:  func(_ context.Context, _ uint, _ string) error { return nil },
		listEventsFn:   func(_ context.Context, _ string) ([]models.TrackingEvent, error) { return nil, nil },
		countByStateFn: func(_ context.Context) ([]repository.StateCount, error) { return nil, nil },
	}
}

// scholarshipRepoStub is a stub for repository.ScholarshipRepository.
type scholarshipRepoStub struct {
	searchFn   func(context.Context, repository.ScholarshipFilter) (*repository.ScholarshipPage, error)
	cheapestFn func(context.Context, int) ([]models.Scholarship, error)
	getByIDFn  func(context.Context, uint) (*models.Scholarship, error)
	createFn   func(context.Context, *models.Scholarship) error
	updateFn   func(context.Context, *models.Scholarship) error
	deleteFn   func(context.Context, uint) error
	countFn    func(context.Context) (int64, error)
}

func (s *scholarshipRepoStub) Search(ctx context.Context, f repository.ScholarshipFilter) (*repository.ScholarshipPage, error) {
	return s.searchFn(ctx, f)
}
func (s *scholarshipRepoStub) Cheapest(ctx context.Context, n int) ([]models.Scholarship, error) {
	return s.cheapestFn(ctx, n)
}
func (s *scholarshipRepoStub) GetByID(ctx context.Context, id uint) (*models.Scholarship, error) {
	return s.getByIDFn(ctx, id)
}
func (s *scholarshipRepoStub) Create(ctx context.Context, sch *models.Scholarship) error {
	return s.createFn(ctx, sch)
}
func (s *scholarshipRepoStub) Update(ctx context.Context, sch *models.Scholarship) error {
	return s.updateFn(ctx, sch)
}
func (s *scholarshipRepoStub) Delete(ctx context.Context, id uint) error {
	return s.deleteFn(ctx, id)
}
func (s *scholarshipRepoStub) Count(ctx context.Context) (int64, error) {
	return s.countFn(ctx)
}

func noopScholarshipRepo() *scholarshipRepoStub {
	return &scholarshipRepoStub{
		searchFn: func(_ context.Context, _ repository.ScholarshipFilter) (*repository.ScholarshipPage, error) {
			return &repository.ScholarshipPage{}, nil
		},
		cheapestFn: func(_ context.Context, _ int) ([]models.Scholarship, error) { return nil, nil },
		getByIDFn: func(_ context.Context, id uint) (*models.Scholarship, error) {
			return nil, models.NewNotFoundError("Scholarship", id)
		},
		createFn: func(_ context.Context, _ *models.Scholarship) error { return nil },
		updateFn: func(_ context.Context, _ *models.Scholarship) error { return nil },
		deleteFn: func(_ context.Context, _ uint) error { return nil },
		countFn:  func(_ context.Context) (int64, error) { return 0, nil },
	}
}

// userRepoStub is a stub for repository.UserRepository.
type userRepoStub struct {
	getByIDFn        func(context.Context, uint) (*models.User, error)
	getByEmailFn     func(context.Context, string) (*models.User, error)
	getByGoogleSubFn func(context.Context, string) (*models.User, error)
	createFn         func(context.Context, *models.User) error
	updateFn         func(context.Context, *models.User) error
	updateRoleFn     func(context.Context, uint, workflow.Role) error
	deleteFn         func(context.Context, uint) error
	listFn           func(context.Context, repository.UserFilter) ([]models.User, int64, error)
	countByRoleFn    func(context.Context) (map[workflow.Role]int64, error)
}

func (s *userRepoStub) GetByID(ctx context.Context, id uint) (*models.User, error) {
	return s.getByIDFn(ctx, id)
}
func (s *userRepoStub) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	return s.getByEmailFn(ctx, email)
}
func (s *userRepoStub) GetByGoogleSub(ctx context.Context, sub string) (*models.User, error) {
	return s.getByGoogleSubFn(ctx, sub)
}
func (s *userRepoStub) Create(ctx context.Context, u *models.User) error {
	return s.createFn(ctx, u)
}
func (s *userRepoStub) Update(ctx context.Context, u *models.User) error {
	return s.updateFn(ctx, u)
}
func (s *userRepoStub) UpdateRole(ctx context.Context, id uint, role workflow.Role) error {
	return s.updateRoleFn(ctx, id, role)
}
func (s *userRepoStub) Delete(ctx context.Context, id uint) error {
	return s.deleteFn(ctx, id)
}
func (s *userRepoStub) List(ctx context.Context, f repository.UserFilter) ([]models.User, int64, error) {
	return s.listFn(ctx, f)
}
func (s *userRepoStub) CountByRole(ctx context.Context) (map[workflow.Role]int64, error) {
	return s.countByRoleFn(ctx)
}

func noopUserRepo() *userRepoStub {
	return &userRepoStub{
		getByIDFn: func(_ context.Context, id uint) (*models.User, error) {
			return &models.User{ID: id, Role: workflow.RoleStudent}, nil
		},
		getByEmailFn:     func(_ context.Context, _ string) (*models.User, error) { return nil, nil },
		getByGoogleSubFn: func(_ context.Context, _ string) (*models.User, error) { return nil, nil },
		createFn: func(_ context.Context, u *models.User) error {
			u.ID = 1
			return nil
		},
		updateFn:      func(_ context.Context, _ *models.User) error { return nil },
		updateRoleFn:  func(_ context.Context, _ uint, _ workflow.Role) error { return nil },
		deleteFn:      func(_ context.Context, _ uint) error { return nil },
		listFn:        func(_ context.Context, _ repository.UserFilter) ([]models.User, int64, error) { return nil, 0, nil },
		countByRoleFn: func(_ context.Context) (map[workflow.Role]int64, error) { return nil, nil },
	}
}

// reviewRepoStub is a stub for repository.ReviewRepository.
type reviewRepoStub struct {
	createFn            func(context.Context, *models.Review) error
	getByIDFn           func(context.Context, uint) (*models.Review, error)
	updateFn            func(context.Context, uint, int, string) error
	deleteFn            func(context.Context, uint) error
	listByUserFn        func(context.Context, string) ([]models.Review, error)
	listByScholarshipFn func(context.Context, uint) ([]models.Review, error)
	listAllFn           func(context.Context, int, int) ([]models.Review, int64, error)
	hasReviewFn         func(context.Context, uint, uint) (bool, error)
	summaryFn           func(context.Context, uint) (repository.RatingSummary, error)
}

func (s *reviewRepoStub) Create(ctx context.Context, r *models.Review) error {
	return s.createFn(ctx, r)
}
func (s *reviewRepoStub) GetByID(ctx context.Context, id uint) (*models.Review, error) {
	return s.getByIDFn(ctx, id)
}
func (s *reviewRepoStub) Update(ctx context.Context, id uint, rating int, comment string) error {
	return s.updateFn(ctx, id, rating, comment)
}
func (s *reviewRepoStub) Delete(ctx context.Context, id uint) error {
	return s.deleteFn(ctx, id)
}
func (s *reviewRepoStub) ListByUser(ctx context.Context, email string) ([]models.Review, error) {
	return s.listByUserFn(ctx, email)
}
func (s *reviewRepoStub) ListByScholarship(ctx context.Context, id uint) ([]models.Review, error) {
	return s.listByScholarshipFn(ctx, id)
}
func (s *reviewRepoStub) ListAll(ctx context.Context, limit, offset int) ([]models.Review, int64, error) {
	return s.listAllFn(ctx, limit, offset)
}
func (s *reviewRepoStub) HasReview(ctx context.Context, userID, scholarshipID uint) (bool, error) {
	return s.hasReviewFn(ctx, userID, scholarshipID)
}
func (s *reviewRepoStub) Summary(ctx context.Context, id uint) (repository.RatingSummary, error) {
	return s.summaryFn(ctx, id)
}

func noopReviewRepo() *reviewRepoStub {
	return &reviewRepoStub{
		createFn: func(_ context.Context, r *models.Review) error {
			r.ID = 1
			return nil
		},
		getByIDFn: func(_ context.Context, id uint) (*models.Review, error) {
			return nil, models.NewNotFoundError("Review", id)
		},
		updateFn:            func(_ context.Context, _ uint, _ int, _ string) error { return nil },
		deleteFn:            func(_ context.Context, _ uint) error { return nil },
		listByUserFn:        func(_ context.Context, _ string) ([]models.Review, error) { return nil, nil },
		listByScholarshipFn: func(_ context.Context, _ uint) ([]models.Review, error) { return nil, nil },
		listAllFn:           func(_ context.Context, _, _ int) ([]models.Review, int64, error) { return nil, 0, nil },
		hasReviewFn:         func(_ context.Context, _, _ uint) (bool, error) { return false, nil },
		summaryFn: func(_ context.Context, _ uint) (repository.RatingSummary, error) {
			return repository.RatingSummary{}, nil
		},
	}
}

// paymentRepoStub is a stub for repository.PaymentRepository.
type paymentRepoStub struct {
	createSessionFn      func(context.Context, *models.PaymentSession) error
	getSessionFn         func(context.Context, string) (*models.PaymentSession, error)
	findOpenSessionFn    func(context.Context, uint) (*models.PaymentSession, error)
	markSessionPaidFn    func(context.Context, string, string, time.Time, workflow.State, workflow.State, *models.TrackingEvent) error
	markSessionStatusFn  func(context.Context, string, models.PaymentSessionStatus) error
	recordGatewayEventFn func(context.Context, *models.PaymentGatewayEvent) error
	sumPaidFn            func(context.Context) (float64, error)
}

func (s *paymentRepoStub) CreateSession(ctx context.Context, ps *models.PaymentSession) error {
	return s.createSessionFn(ctx, ps)
}
func (s *paymentRepoStub) GetSession(ctx context.Context, id string) (*models.PaymentSession, error) {
	return s.getSessionFn(ctx, id)
}
func (s *paymentRepoStub) FindOpenSession(ctx context.Context, appID uint) (*models.PaymentSession, error) {
	return s.findOpenSessionFn(ctx, appID)
}
func (s *paymentRepoStub) MarkSessionPaid(ctx context.Context, sessionID, txID string, paidAt time.Time, from, to workflow.State, ev *models.TrackingEvent) error {
	return s.markSessionPaidFn(ctx, sessionID, txID, paidAt, from, to, ev)
}
func (s *paymentRepoStub) MarkSessionStatus(ctx context.Context, sessionID string, status models.PaymentSessionStatus) error {
	return s.markSessionStatusFn(ctx, sessionID, status)
}
func (s *paymentRepoStub) RecordGatewayEvent(ctx context.Context, ev *models.PaymentGatewayEvent) error {
	return s.recordGatewayEventFn(ctx, ev)
}
func (s *paymentRepoStub) SumPaid(ctx context.Context) (float64, error) {
	return s.sumPaidFn(ctx)
}

func noopPaymentRepo() *paymentRepoStub {
	return &paymentRepoStub{
		createSessionFn: func(_ context.Context, _ *models.PaymentSession) error { return nil },
		getSessionFn: func(_ context.Context, id string) (*models.PaymentSession, error) {
			return nil, models.NewNotFoundError("Payment session", id)
		},
		findOpenSessionFn: func(_ context.Context, _ uint) (*models.PaymentSession, error) { return nil, nil },
		markSessionPaidFn: func(_ context.Context, _, _ string, _ time.Time, _, _ workflow.State, _ *models.TrackingEvent) error {
			return nil
		},
		markSessionStatusFn:  func(_ context.Context, _ string, _ models.PaymentSessionStatus) error { return nil },
		recordGatewayEventFn: func(_ context.Context, _ *models.PaymentGatewayEvent) error { return nil },
		sumPaidFn:            func(_ context.Context) (float64, error) { return 0, nil },
	}
}

// lockStub grants every key unless it is listed in held.
type lockStub struct {
	mu       sync.Mutex
	held     map[string]bool
	acquired []string
	released int
}

func newLockStub() *lockStub { return &lockStub{held: map[string]bool{}} }

func (l *lockStub) Acquire(_ context.Context, key string) (func(), error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.held[key] {
		return nil, inflight.ErrInFlight
	}
	l.acquired = append(l.acquired, key)
	return func() {
		l.mu.Lock()
		l.released++
		l.mu.Unlock()
	}, nil
}

// publisherStub records what would have been pushed.
type publisherStub struct {
	mu      sync.Mutex
	changes []notifications.StatusChange
	users   []notifications.Event
	roles   []notifications.Event
	err     error
}

func (p *publisherStub) PublishUser(_ context.Context, _ uint, ev notifications.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.users = append(p.users, ev)
	return p.err
}
func (p *publisherStub) PublishRole(_ context.Context, _ workflow.Role, ev notifications.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.roles = append(p.roles, ev)
	return p.err
}
func (p *publisherStub) PublishStatusChange(_ context.Context, _ uint, c notifications.StatusChange) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.changes = append(p.changes, c)
	return p.err
}

func assertCode(t *testing.T, err error, code string) {
	t.Helper()
	require.Error(t, err)
	var appErr *models.AppError
	require.True(t, errors.As(err, &appErr), "expected AppError, got %T: %v", err, err)
	assert.Equal(t, code, appErr.Code, appErr.Message)
}

// assertValidationError asserts that err is an AppError with code VALIDATION_ERROR.
func assertValidationError(t *testing.T, err error) {
	t.Helper()
	assertCode(t, err, models.CodeValidation)
}

var (
	student   = Caller{UserID: 10, Role: workflow.RoleStudent, Name: "Ada Student", Email: "ada@example.com"}
	stranger  = Caller{UserID: 11, Role: workflow.RoleStudent, Name: "Bo Other", Email: "bo@example.com"}
	moderator = Caller{UserID: 20, Role: workflow.RoleModerator, Name: "Mo Derator", Email: "mod@example.com"}
	admin     = Caller{UserID: 30, Role: workflow.RoleAdmin, Name: "Ad Min", Email: "admin@example.com"}
)
