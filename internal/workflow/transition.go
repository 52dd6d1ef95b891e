package workflow

import "fmt"

// Actor is who is asking for a transition.
type Actor struct {
	Role Role
	// IsOwner is true when the actor is the student the application belongs to.
	IsOwner bool
}

// Result is the outcome of an allowed transition.
type Result struct {
	Next State
	// Event is empty when the move does not append to the timeline.
	Event EventStatus
	// Removed is set for a delete.
	Removed bool
}

type rule struct {
	allowed func(Actor) bool
	from    func(State) bool
	apply   func(State) Result
}

func ownerStudent(a Actor) bool { return a.IsOwner && a.Role == RoleStudent }
func owner(a Actor) bool        { return a.IsOwner }
func moderator(a Actor) bool    { return a.Role == RoleModerator }

var rules = map[Action]rule{
	ActionApply: {
		allowed: func(a Actor) bool { return a.Role == RoleStudent },
		from:    func(s State) bool { return s == (State{}) },
		apply:   func(State) Result { return Result{Next: Initial, Event: EventApplyCreated} },
	},
	ActionEdit: {
		allowed: owner,
		from:    CanEdit,
		apply:   func(s State) Result { return Result{Next: s} },
	},
	ActionDelete: {
		allowed: owner,
		from:    CanDelete,
		apply:   func(s State) Result { return Result{Next: s, Removed: true} },
	},
	ActionApprove: {
		allowed: moderator,
		from:    func(s State) bool { return s.Application == StatusPending },
		apply: func(s State) Result {
			return Result{Next: State{Application: StatusApproved, Payment: s.Payment}, Event: EventApplyApproved}
		},
	},
	ActionReject: {
		allowed: moderator,
		from:    func(s State) bool { return s.Application == StatusPending },
		apply: func(s State) Result {
			return Result{Next: State{Application: StatusRejected, Payment: s.Payment}, Event: EventApplyRejected}
		},
	},
	ActionPay: {
		allowed: ownerStudent,
		from:    CanPay,
		apply: func(s State) Result {
			return Result{Next: State{Application: s.Application, Payment: PaymentPaid}, Event: EventPaid}
		},
	},
	ActionComplete: {
		allowed: moderator,
		from: func(s State) bool {
			return s.Application == StatusApproved && s.Payment == PaymentPaid
		},
		apply: func(s State) Result {
			return Result{Next: State{Application: StatusCompleted, Payment: s.Payment}, Event: EventCompleted}
		},
	},
	ActionFeedback: {
		allowed: moderator,
		from:    func(State) bool { return true },
		apply:   func(s State) Result { return Result{Next: s} },
	},
}

// Transition checks whether actor may perform action on an application in
// state from, and returns the resulting state. Role is checked before state,
// so a student asking to approve gets ErrForbidden whatever the state is.
func Transition(from State, actor Actor, action Action) (Result, error) {
	r, ok := rules[action]
	if !ok {
		return Result{}, fmt.Errorf("%w: %q", ErrUnknownAction, action)
	}
	if action != ActionApply {
		if err := from.Validate(); err != nil {
			return Result{}, err
		}
	}
	if !r.allowed(actor) {
		return Result{}, fmt.Errorf("%w: %s as %s", ErrForbidden, action, actor.Role)
	}
	if !r.from(from) {
		return Result{}, fmt.Errorf("%w: %s from %s/%s", ErrInvalidTransition, action, from.Application, from.Payment)
	}
	res := r.apply(from)
	if err := res.Next.Validate(); err != nil {
		return Result{}, err
	}
	return res, nil
}

// ParseModeratorAction maps the moderator form's action field onto an Action.
// "cancel" is the portal's wording for reject.
func ParseModeratorAction(s string) (Action, error) {
	switch s {
	case "approved", "approve":
		return ActionApprove, nil
	case "cancel", "cancelled", "rejected", "reject":
		return ActionReject, nil
	case "completed", "complete":
		return ActionComplete, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownAction, s)
}

// CanChangeRole enforces that only admins change roles and never their own.
func CanChangeRole(actor Role, actorID, targetID uint, to Role) error {
	if actor != RoleAdmin {
		return ErrForbidden
	}
	if actorID == targetID {
		return ErrSelfRoleChange
	}
	if !to.Valid() {
		return fmt.Errorf("%w: unknown role %q", ErrInvalidTransition, to)
	}
	return nil
}
