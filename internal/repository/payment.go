package repository

import (
	"context"
	"errors"
	"time"

	"scholarhub/internal/models"
	"scholarhub/internal/workflow"

	"gorm.io/gorm"
)

// ErrSessionSettled is returned by MarkSessionPaid when another request
// settled the session first.
var ErrSessionSettled = errors.New("repository: payment session already settled")

// PaymentRepository persists checkout sessions and gateway callbacks.
type PaymentRepository interface {
	CreateSession(ctx context.Context, s *models.PaymentSession) error
	GetSession(ctx context.Context, sessionID string) (*models.PaymentSession, error)
	FindOpenSession(ctx context.Context, applicationID uint) (*models.PaymentSession, error)
	MarkSessionPaid(ctx context.Context, sessionID, transactionID string, paidAt time.Time, from, to workflow.State, ev *models.TrackingEvent) error
	MarkSessionStatus(ctx context.Context, sessionID string, status models.PaymentSessionStatus) error
	RecordGatewayEvent(ctx context.Context, ev *models.PaymentGatewayEvent) error
	SumPaid(ctx context.Context) (float64, error)
}

type paymentRepository struct {
	db *gorm.DB
}

// NewPaymentRepository returns a gorm-backed PaymentRepository.
func NewPaymentRepository(db *gorm.DB) PaymentRepository {
	return &paymentRepository{db: db}
}

func (r *paymentRepository) CreateSession(ctx context.Context, s *models.PaymentSession) error {
	if err := r.db.WithContext(ctx).Create(s).Error; err != nil {
		if isUniqueConstraintError(err) {
			return models.NewConflictError("Payment session already exists")
		}
		return models.NewInternalError(err)
	}
	return nil
}

func (r *paymentRepository) GetSession(ctx context.Context, sessionID string) (*models.PaymentSession, error) {
	var s models.PaymentSession
	if err := r.db.WithContext(ctx).Where("session_id = ?", sessionID).First(&s).Error; err != nil {
		return nil, notFoundOr(err, "Payment session", sessionID)
	}
	return &s, nil
}

// FindOpenSession returns the newest open session for an application, or nil.
func (r *paymentRepository) FindOpenSession(ctx context.Context, applicationID uint) (*models.PaymentSession, error) {
	var s models.PaymentSession
	err := r.db.WithContext(ctx).
		Where("application_id = ? AND status = ?", applicationID, models.SessionOpen).
		Order("id DESC").
		First(&s).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, models.NewInternalError(err)
	}
	return &s, nil
}

// MarkSessionPaid settles the session, flips the application to paid and
// appends the paid event in one transaction.
func (r *paymentRepository) MarkSessionPaid(ctx context.Context, sessionID, transactionID string, paidAt time.Time, from, to workflow.State, ev *models.TrackingEvent) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var s models.PaymentSession
		if err := tx.Where("session_id = ?", sessionID).First(&s).Error; err != nil {
			return notFoundOr(err, "Payment session", sessionID)
		}

		res := tx.Model(&models.PaymentSession{}).
			Where("session_id = ? AND status <> ?", sessionID, models.SessionPaid).
			Updates(map[string]any{
				"status":         models.SessionPaid,
				"transaction_id": transactionID,
				"paid_at":        paidAt,
			})
		if res.Error != nil {
			return models.NewInternalError(res.Error)
		}
		if res.RowsAffected == 0 {
			return ErrSessionSettled
		}

		return transitionTx(tx, s.ApplicationID, StateChange{From: from, To: to, Event: ev})
	})
}

func (r *paymentRepository) MarkSessionStatus(ctx context.Context, sessionID string, status models.PaymentSessionStatus) error {
	res := r.db.WithContext(ctx).Model(&models.PaymentSession{}).
		Where("session_id = ? AND status = ?", sessionID, models.SessionOpen).
		Update("status", status)
	if res.Error != nil {
		return models.NewInternalError(res.Error)
	}
	return nil
}

func (r *paymentRepository) RecordGatewayEvent(ctx context.Context, ev *models.PaymentGatewayEvent) error {
	if err := r.db.WithContext(ctx).Create(ev).Error; err != nil {
		return models.NewInternalError(err)
	}
	return nil
}

func (r *paymentRepository) SumPaid(ctx context.Context) (float64, error) {
	var total float64
	if err := readDB(r.db).WithContext(ctx).Model(&models.PaymentSession{}).
		Where("status = ?", models.SessionPaid).
		Select("COALESCE(SUM(amount), 0)").
		Scan(&total).Error; err != nil {
		return 0, models.NewInternalError(err)
	}
	return total, nil
}
