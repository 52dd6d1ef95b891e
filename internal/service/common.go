package service

import (
	"context"
	"errors"
	"time"

	"scholarhub/internal/inflight"
	"scholarhub/internal/models"
	"scholarhub/internal/notifications"
	"scholarhub/internal/observability"
	"scholarhub/internal/workflow"
)

// Caller is the authenticated user a request acts for.
type Caller struct {
	UserID   uint
	Role     workflow.Role
	Name     string
	Email    string
	PhotoURL string
}

// Locker serializes mutations on one key.
type Locker interface {
	Acquire(ctx context.Context, key string) (func(), error)
}

// Publisher pushes realtime notifications after a change commits.
type Publisher interface {
	PublishUser(ctx context.Context, userID uint, ev notifications.Event) error
	PublishRole(ctx context.Context, role workflow.Role, ev notifications.Event) error
	PublishStatusChange(ctx context.Context, userID uint, change notifications.StatusChange) error
}

type nopPublisher struct{}

func (nopPublisher) PublishUser(context.Context, uint, notifications.Event) error { return nil }
func (nopPublisher) PublishRole(context.Context, workflow.Role, notifications.Event) error {
	return nil
}
func (nopPublisher) PublishStatusChange(context.Context, uint, notifications.StatusChange) error {
	return nil
}

func orNop(p Publisher) Publisher {
	if p == nil {
		return nopPublisher{}
	}
	return p
}

func utcNow() time.Time { return time.Now().UTC() }

// acquire takes key and turns a held lock into a CONFLICT.
func acquire(ctx context.Context, l Locker, key string) (func(), error) {
	release, err := l.Acquire(ctx, key)
	if errors.Is(err, inflight.ErrInFlight) {
		return nil, &models.AppError{
			Code:    models.CodeConflict,
			Message: "Another request for this application is still in progress",
			Err:     err,
		}
	}
	if err != nil {
		return nil, models.NewInternalError(err)
	}
	return release, nil
}

// workflowError maps a rejected transition onto the API error taxonomy.
func workflowError(err error) error {
	var appErr *models.AppError
	switch {
	case err == nil:
		return nil
	case errors.As(err, &appErr):
		return err
	case errors.Is(err, workflow.ErrForbidden):
		return &models.AppError{Code: models.CodeForbidden, Message: "You are not allowed to perform this action", Err: err}
	case errors.Is(err, workflow.ErrSelfRoleChange):
		return &models.AppError{Code: models.CodeForbidden, Message: "You cannot change your own role", Err: err}
	case errors.Is(err, workflow.ErrInvalidTransition):
		return &models.AppError{Code: models.CodeConflict, Message: "Application is not in a state that allows this action", Err: err}
	case errors.Is(err, workflow.ErrUnknownAction):
		return &models.AppError{Code: models.CodeValidation, Message: "Unknown action", Err: err}
	default:
		return models.NewInternalError(err)
	}
}

// notify runs after commit; a failed publish never fails the request.
func notify(ctx context.Context, operation string, err error) {
	if err != nil {
		observability.LogAsyncError(ctx, operation, err)
	}
}
