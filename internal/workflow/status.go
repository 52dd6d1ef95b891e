// Package workflow holds the application lifecycle rules: which actor may move
// an application between states and which timeline event each move appends.
// Nothing in here touches storage; callers persist the returned state.
package workflow

import (
	"errors"
	"strings"
)

// Role is the single role a user holds.
type Role string

const (
	RoleStudent   Role = "student"
	RoleModerator Role = "moderator"
	RoleAdmin     Role = "admin"
)

// ParseRole normalizes a role name. Unknown names are rejected.
func ParseRole(s string) (Role, bool) {
	r := Role(strings.ToLower(strings.TrimSpace(s)))
	return r, r.Valid()
}

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	switch r {
	case RoleStudent, RoleModerator, RoleAdmin:
		return true
	}
	return false
}

// ApplicationStatus is the review axis of an application.
type ApplicationStatus string

const (
	StatusPending   ApplicationStatus = "pending"
	StatusApproved  ApplicationStatus = "approved"
	StatusRejected  ApplicationStatus = "rejected"
	StatusCompleted ApplicationStatus = "completed"
)

// Valid reports whether s is a known application status.
func (s ApplicationStatus) Valid() bool {
	switch s {
	case StatusPending, StatusApproved, StatusRejected, StatusCompleted:
		return true
	}
	return false
}

// PaymentStatus is the payment axis of an application.
type PaymentStatus string

const (
	PaymentUnpaid PaymentStatus = "unpaid"
	PaymentPaid   PaymentStatus = "paid"
)

// Valid reports whether p is a known payment status.
func (p PaymentStatus) Valid() bool {
	return p == PaymentUnpaid || p == PaymentPaid
}

// EventStatus is the label stored on a tracking timeline event.
type EventStatus string

const (
	EventApplyCreated  EventStatus = "apply_created"
	EventApplyApproved EventStatus = "apply-approved"
	EventApplyRejected EventStatus = "apply-rejected"
	EventPaid          EventStatus = "paid"
	EventCompleted     EventStatus = "completed"
)

// Action is something an actor asks to do to an application.
type Action string

const (
	ActionApply    Action = "apply"
	ActionEdit     Action = "edit"
	ActionDelete   Action = "delete"
	ActionApprove  Action = "approve"
	ActionReject   Action = "reject"
	ActionPay      Action = "pay"
	ActionComplete Action = "complete"
	ActionFeedback Action = "feedback"
)

// State is the pair of independent status axes.
type State struct {
	Application ApplicationStatus `json:"applicationStatus"`
	Payment     PaymentStatus     `json:"paymentStatus"`
}

// Initial is the state of a freshly created application.
var Initial = State{Application: StatusPending, Payment: PaymentUnpaid}

var (
	ErrInvalidTransition = errors.New("workflow: transition not allowed from current state")
	ErrForbidden         = errors.New("workflow: actor may not perform this action")
	ErrInconsistentState = errors.New("workflow: inconsistent application state")
	ErrUnknownAction     = errors.New("workflow: unknown action")
	ErrSelfRoleChange    = errors.New("workflow: users cannot change their own role")
)

// Validate rejects states that must never be observed.
func (s State) Validate() error {
	if !s.Application.Valid() || !s.Payment.Valid() {
		return ErrInconsistentState
	}
	if s.Application == StatusPending && s.Payment == PaymentPaid {
		return ErrInconsistentState
	}
	if s.Application == StatusCompleted && s.Payment != PaymentPaid {
		return ErrInconsistentState
	}
	return nil
}

// IsFinal reports whether no further review transition is possible.
// A rejected application is never reopened; the student applies again.
func IsFinal(s ApplicationStatus) bool {
	return s == StatusRejected || s == StatusCompleted
}

// CanEdit reports whether the owner may still change degree or category.
func CanEdit(s State) bool { return s.Application == StatusPending }

// CanDelete reports whether the owner may still withdraw the application.
func CanDelete(s State) bool { return s.Application == StatusPending }

// CanPay reports whether checkout may be offered.
func CanPay(s State) bool {
	return s.Application == StatusApproved && s.Payment == PaymentUnpaid
}

// CanReview reports whether a completed application unlocks a review.
func CanReview(s State) bool { return s.Application == StatusCompleted }

// EventFor returns the timeline event that must be the latest one for s.
func EventFor(s State) EventStatus {
	switch s.Application {
	case StatusApproved:
		if s.Payment == PaymentPaid {
			return EventPaid
		}
		return EventApplyApproved
	case StatusRejected:
		return EventApplyRejected
	case StatusCompleted:
		return EventCompleted
	default:
		return EventApplyCreated
	}
}
