package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"scholarhub/internal/inflight"
	"scholarhub/internal/models"
	"scholarhub/internal/notifications"
	"scholarhub/internal/observability"
	"scholarhub/internal/payment"
	"scholarhub/internal/repository"
	"scholarhub/internal/workflow"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

const DefaultPaymentCurrency = "IDR"

type PaymentService struct {
	apps      repository.ApplicationRepository
	payments  repository.PaymentRepository
	gateway   payment.Gateway
	locks     Locker
	notifier  Publisher
	currency  string
	clientURL string
	now       func() time.Time
}

// PaymentResult is what the success page shows after confirmation.
type PaymentResult struct {
	Success       bool   `json:"success"`
	TransactionID string `json:"transactionId,omitempty"`
	TrackingID    string `json:"trackingId,omitempty"`
	Status        string `json:"status"`
}

func NewPaymentService(
	apps repository.ApplicationRepository,
	payments repository.PaymentRepository,
	gateway payment.Gateway,
	locks Locker,
	notifier Publisher,
	currency, clientURL string,
) *PaymentService {
	if currency == "" {
		currency = DefaultPaymentCurrency
	}
	return &PaymentService{
		apps:      apps,
		payments:  payments,
		gateway:   gateway,
		locks:     locks,
		notifier:  orNop(notifier),
		currency:  strings.ToUpper(currency),
		clientURL: strings.TrimRight(clientURL, "/"),
		now:       utcNow,
	}
}

// StartCheckout opens a gateway checkout for an approved, unpaid
// application owned by caller. A second call while a session is still
// open returns that session instead of creating another.
func (s *PaymentService) StartCheckout(ctx context.Context, caller Caller, applicationID uint) (*models.PaymentSession, error) {
	release, err := acquire(ctx, s.locks, inflight.ApplicationKey(applicationID))
	if err != nil {
		return nil, err
	}
	defer release()

	app, err := s.apps.GetByID(ctx, applicationID)
	if err != nil {
		return nil, err
	}
	if _, err := workflow.Transition(app.State(), actorFor(caller, app), workflow.ActionPay); err != nil {
		return nil, workflowError(err)
	}

	open, err := s.payments.FindOpenSession(ctx, app.ID)
	if err != nil {
		return nil, err
	}
	if open != nil {
		return open, nil
	}

	gross := payment.ToMinor(app.ApplicationFees, s.currency) + payment.ToMinor(app.ServiceCharge, s.currency)
	if gross <= 0 {
		return nil, models.NewValidationError("This application has no fee to pay")
	}

	sessionID := "SH-" + uuid.NewString()
	checkout, err := s.gateway.CreateCheckout(ctx, payment.CheckoutRequest{
		OrderID:       sessionID,
		GrossAmount:   gross,
		Currency:      s.currency,
		CustomerName:  app.UserName,
		CustomerEmail: app.UserEmail,
		CustomerPhone: app.Phone,
		ItemID:        fmt.Sprintf("scholarship-%d", app.ScholarshipID),
		ItemName:      app.ScholarshipName,
		Category:      app.ScholarshipCategory,
		FinishURL:     s.successURL(sessionID),
	})
	if errors.Is(err, payment.ErrUnsupportedCurrency) {
		return nil, models.NewInternalError(err)
	}
	if err != nil {
		return nil, models.NewNetworkError("Payment provider is unavailable, please try again", err)
	}

	session := &models.PaymentSession{
		SessionID:     sessionID,
		ApplicationID: app.ID,
		UserID:        app.UserID,
		Amount:        payment.FromMinor(gross, s.currency),
		GrossAmount:   gross,
		Currency:      s.currency,
		RedirectURL:   checkout.RedirectURL,
		Status:        models.SessionOpen,
	}
	if err := s.payments.CreateSession(ctx, session); err != nil {
		return nil, err
	}
	return session, nil
}

// CancelURL is where the client shows an abandoned checkout.
func (s *PaymentService) CancelURL() string {
	return s.clientURL + "/dashboard/payment-cancelled"
}

func (s *PaymentService) successURL(sessionID string) string {
	return s.clientURL + "/dashboard/payment-success?session_id=" + sessionID
}

// ConfirmPayment asks the gateway whether the session was paid and, if so,
// marks the application paid. Confirming an already paid session returns
// the same result again.
func (s *PaymentService) ConfirmPayment(ctx context.Context, caller Caller, sessionID string) (*PaymentResult, error) {
	sessionID = strings.TrimSpace(sessionID)
	if sessionID == "" {
		return nil, models.NewValidationError("session_id is required")
	}
	session, err := s.payments.GetSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if session.UserID != caller.UserID {
		return nil, models.NewForbiddenError("This payment session belongs to another user")
	}

	release, err := acquire(ctx, s.locks, inflight.ApplicationKey(session.ApplicationID))
	if err != nil {
		return nil, err
	}
	defer release()

	if session.Status == models.SessionPaid {
		return s.paidResult(ctx, session)
	}

	status, err := s.gateway.CheckStatus(ctx, sessionID)
	if errors.Is(err, payment.ErrUnknownOrder) {
		return &PaymentResult{Success: false, Status: string(payment.OutcomePending)}, nil
	}
	if err != nil {
		return nil, models.NewNetworkError("Could not confirm payment with the provider", err)
	}
	return s.apply(ctx, session, status.Outcome, status.TransactionID, status.GrossAmount, caller.UserID)
}

// HandleNotification processes a gateway webhook. Unsigned or mis-signed
// bodies are rejected; everything else is stored before being acted on.
func (s *PaymentService) HandleNotification(ctx context.Context, body []byte) error {
	var n payment.Notification
	if err := json.Unmarshal(body, &n); err != nil {
		return models.NewValidationError("Invalid notification body")
	}
	if !s.gateway.VerifyNotification(n) {
		observability.PaymentNotifications.WithLabelValues("bad_signature").Inc()
		return models.NewUnauthorizedError("Invalid notification signature")
	}

	outcome := payment.MapStatus(n.TransactionStatus, n.FraudStatus)
	observability.PaymentNotifications.WithLabelValues(string(outcome)).Inc()

	if err := s.payments.RecordGatewayEvent(ctx, &models.PaymentGatewayEvent{
		SessionID: n.OrderID,
		Provider:  s.gateway.Name(),
		EventType: n.TransactionStatus,
		Payload:   datatypes.JSON(body),
		Outcome:   string(outcome),
	}); err != nil {
		return err
	}

	session, err := s.payments.GetSession(ctx, n.OrderID)
	if err != nil {
		return err
	}

	release, err := acquire(ctx, s.locks, inflight.ApplicationKey(session.ApplicationID))
	if err != nil {
		return err
	}
	defer release()

	_, err = s.apply(ctx, session, outcome, n.TransactionID, n.GrossAmount, 0)
	return err
}

// apply acts on a gateway outcome. A settlement for any gross amount other
// than the one the session opened with leaves the session open.
func (s *PaymentService) apply(ctx context.Context, session *models.PaymentSession, outcome payment.Outcome, transactionID, gross string, actorID uint) (*PaymentResult, error) {
	switch outcome {
	case payment.OutcomePaid:
		if session.Status == models.SessionPaid {
			break
		}
		if err := payment.MatchesGross(gross, session.GrossAmount, session.Currency); err != nil {
			observability.PaymentNotifications.WithLabelValues("amount_mismatch").Inc()
			slog.ErrorContext(ctx, "settled amount does not match payment session",
				slog.String("session_id", session.SessionID),
				slog.String("transaction_id", transactionID),
				slog.String("error", err.Error()))
			return nil, &models.AppError{Code: models.CodeConflict, Message: "The settled amount does not match this payment", Err: err}
		}
	case payment.OutcomeFailed, payment.OutcomeExpired:
		if session.Status == models.SessionOpen {
			status := models.SessionFailed
			if outcome == payment.OutcomeExpired {
				status = models.SessionExpired
			}
			if err := s.payments.MarkSessionStatus(ctx, session.SessionID, status); err != nil {
				return nil, err
			}
		}
		return &PaymentResult{Success: false, Status: string(outcome)}, nil
	default:
		return &PaymentResult{Success: false, Status: string(outcome)}, nil
	}

	app, err := s.apps.GetByID(ctx, session.ApplicationID)
	if err != nil {
		return nil, err
	}
	from := app.State()
	res, err := workflow.Transition(from, workflow.Actor{Role: workflow.RoleStudent, IsOwner: true}, workflow.ActionPay)
	if err != nil {
		if from.Payment == workflow.PaymentPaid {
			return s.paidResult(ctx, session)
		}
		observability.RecordTransition(string(workflow.ActionPay), err)
		slog.WarnContext(ctx, "payment received for application that cannot be paid",
			slog.String("session_id", session.SessionID),
			slog.Uint64("application_id", uint64(app.ID)),
			slog.String("state", stateLabel(from)))
		return nil, workflowError(err)
	}

	paidAt := s.now()
	ev := &models.TrackingEvent{
		TrackingID:    app.TrackingID,
		Status:        res.Event,
		Details:       fmt.Sprintf("Paid %s %s", payment.FormatMinor(session.GrossAmount, session.Currency), session.Currency),
		Amount:        payment.FromMinor(session.GrossAmount, session.Currency),
		TransactionID: transactionID,
		PaymentStatus: workflow.PaymentPaid,
		ActorID:       actorID,
		CreatedAt:     paidAt,
	}
	err = s.payments.MarkSessionPaid(ctx, session.SessionID, transactionID, paidAt, from, res.Next, ev)
	if errors.Is(err, repository.ErrSessionSettled) {
		return s.paidResult(ctx, session)
	}
	observability.RecordTransition(string(workflow.ActionPay), err)
	if err != nil {
		return nil, err
	}

	observability.LogTransition(ctx, observability.TransitionLog{
		ApplicationID: app.ID,
		TrackingID:    app.TrackingID,
		Action:        string(workflow.ActionPay),
		From:          stateLabel(from),
		To:            stateLabel(res.Next),
		ActorID:       actorID,
	})
	notify(ctx, "notify.status_change", s.notifier.PublishStatusChange(ctx, app.UserID, notifications.StatusChange{
		ApplicationID:   app.ID,
		TrackingID:      app.TrackingID,
		ScholarshipName: app.ScholarshipName,
		From:            from,
		To:              res.Next,
		Event:           res.Event,
		At:              paidAt,
	}))
	return &PaymentResult{Success: true, TransactionID: transactionID, TrackingID: app.TrackingID, Status: string(payment.OutcomePaid)}, nil
}

func (s *PaymentService) paidResult(ctx context.Context, session *models.PaymentSession) (*PaymentResult, error) {
	current, err := s.payments.GetSession(ctx, session.SessionID)
	if err != nil {
		return nil, err
	}
	app, err := s.apps.GetByID(ctx, current.ApplicationID)
	if err != nil {
		return nil, err
	}
	return &PaymentResult{
		Success:       true,
		TransactionID: current.TransactionID,
		TrackingID:    app.TrackingID,
		Status:        string(payment.OutcomePaid),
	}, nil
}
