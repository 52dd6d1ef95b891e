package service

import (
	"context"
	"strings"

	"scholarhub/internal/models"
	"scholarhub/internal/repository"
	"scholarhub/internal/validation"
	"scholarhub/internal/workflow"
)

type UserService struct {
	userRepo repository.UserRepository
}

type UpdateProfileInput struct {
	Name     string `json:"name" validate:"omitempty,max=120"`
	PhotoURL string `json:"photoURL" validate:"omitempty,max=512"`
	Theme    string `json:"theme" validate:"omitempty,theme"`
}

type ListUsersInput struct {
	SearchText string
	Role       string
	Limit      int
	Offset     int
}

func NewUserService(userRepo repository.UserRepository) *UserService {
	return &UserService{userRepo: userRepo}
}

func (s *UserService) ListUsers(ctx context.Context, in ListUsersInput) ([]models.User, int64, error) {
	filter := repository.UserFilter{
		Search: strings.TrimSpace(in.SearchText),
		Limit:  in.Limit,
		Offset: in.Offset,
	}
	if in.Role != "" {
		role, ok := workflow.ParseRole(in.Role)
		if !ok {
			return nil, 0, models.NewValidationError("Invalid role filter")
		}
		filter.Role = role
	}
	return s.userRepo.List(ctx, filter)
}

func (s *UserService) GetUserByID(ctx context.Context, id uint) (*models.User, error) {
	return s.userRepo.GetByID(ctx, id)
}

func (s *UserService) UpdateProfile(ctx context.Context, userID uint, in UpdateProfileInput) (*models.User, error) {
	if err := validation.Struct(in); err != nil {
		return nil, err
	}
	user, err := s.userRepo.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}

	if name := strings.TrimSpace(in.Name); name != "" {
		user.Name = name
	}
	if in.PhotoURL != "" {
		user.PhotoURL = in.PhotoURL
	}
	if in.Theme != "" {
		user.Theme = in.Theme
	}

	if err := s.userRepo.Update(ctx, user); err != nil {
		return nil, err
	}
	return user, nil
}

// ChangeRole sets target's role. Only admins may do this, never on
// themselves.
func (s *UserService) ChangeRole(ctx context.Context, caller Caller, targetID uint, role string) (*models.User, error) {
	to, ok := workflow.ParseRole(role)
	if !ok {
		return nil, models.NewValidationError("Invalid role")
	}
	if err := workflow.CanChangeRole(caller.Role, caller.UserID, targetID, to); err != nil {
		return nil, workflowError(err)
	}
	if err := s.userRepo.UpdateRole(ctx, targetID, to); err != nil {
		return nil, err
	}
	return s.userRepo.GetByID(ctx, targetID)
}

// Delete removes a user account. Admins cannot delete themselves.
func (s *UserService) Delete(ctx context.Context, caller Caller, targetID uint) error {
	if caller.Role != workflow.RoleAdmin {
		return models.NewForbiddenError("Only admins can delete users")
	}
	if caller.UserID == targetID {
		return models.NewForbiddenError("You cannot delete your own account")
	}
	return s.userRepo.Delete(ctx, targetID)
}

// Stats are the admin dashboard counters.
type Stats struct {
	Users        map[workflow.Role]int64 `json:"users"`
	Scholarships int64                   `json:"scholarships"`
	Applications []repository.StateCount `json:"applications"`
	Revenue      float64                 `json:"revenue"`
}

type StatsService struct {
	users        repository.UserRepository
	scholarships repository.ScholarshipRepository
	apps         repository.ApplicationRepository
	payments     repository.PaymentRepository
}

func NewStatsService(
	users repository.UserRepository,
	scholarships repository.ScholarshipRepository,
	apps repository.ApplicationRepository,
	payments repository.PaymentRepository,
) *StatsService {
	return &StatsService{users: users, scholarships: scholarships, apps: apps, payments: payments}
}

func (s *StatsService) Get(ctx context.Context) (*Stats, error) {
	users, err := s.users.CountByRole(ctx)
	if err != nil {
		return nil, err
	}
	scholarships, err := s.scholarships.Count(ctx)
	if err != nil {
		return nil, err
	}
	apps, err := s.apps.CountByState(ctx)
	if err != nil {
		return nil, err
	}
	revenue, err := s.payments.SumPaid(ctx)
	if err != nil {
		return nil, err
	}
	return &Stats{Users: users, Scholarships: scholarships, Applications: apps, Revenue: revenue}, nil
}
