package service

import (
	"context"
	"testing"

	"scholarhub/internal/models"
	"scholarhub/internal/repository"
	"scholarhub/internal/workflow"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUserService_ChangeRole(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		caller   Caller
		target   uint
		role     string
		wantCode string
	}{
		{name: "admin promotes student", caller: admin, target: 10, role: "moderator"},
		{name: "admin demotes with mixed case", caller: admin, target: 20, role: " Student "},
		{name: "admin cannot change self", caller: admin, target: admin.UserID, role: "student", wantCode: models.CodeForbidden},
		{name: "moderator cannot change roles", caller: moderator, target: 10, role: "admin", wantCode: models.CodeForbidden},
		{name: "student cannot self promote", caller: student, target: student.UserID, role: "admin", wantCode: models.CodeForbidden},
		{name: "unknown role", caller: admin, target: 10, role: "superuser", wantCode: models.CodeValidation},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			users := noopUserRepo()
			var gotID uint
			var gotRole workflow.Role
			users.updateRoleFn = func(_ context.Context, id uint, role workflow.Role) error {
				gotID, gotRole = id, role
				return nil
			}
			users.getByIDFn = func(_ context.Context, id uint) (*models.User, error) {
				return &models.User{ID: id, Role: gotRole}, nil
			}
			svc := NewUserService(users)

			user, err := svc.ChangeRole(context.Background(), tt.caller, tt.target, tt.role)
			if tt.wantCode != "" {
				assertCode(t, err, tt.wantCode)
				assert.Zero(t, gotID, "role must not be written")
				return
			}
			require.NoError(t, err)
			want, _ := workflow.ParseRole(tt.role)
			assert.Equal(t, tt.target, gotID)
			assert.Equal(t, want, user.Role)
		})
	}
}

func TestUserService_Delete(t *testing.T) {
	t.Parallel()
	users := noopUserRepo()
	var deleted []uint
	users.deleteFn = func(_ context.Context, id uint) error {
		deleted = append(deleted, id)
		return nil
	}
	svc := NewUserService(users)
	ctx := context.Background()

	require.NoError(t, svc.Delete(ctx, admin, 10))
	assertCode(t, svc.Delete(ctx, admin, admin.UserID), models.CodeForbidden)
	assertCode(t, svc.Delete(ctx, moderator, 10), models.CodeForbidden)
	assert.Equal(t, []uint{10}, deleted)
}

func TestUserService_UpdateProfile(t *testing.T) {
	t.Parallel()
	users := noopUserRepo()
	stored := &models.User{ID: 10, Name: "Ada", Theme: models.ThemeLight, Role: workflow.RoleStudent}
	users.getByIDFn = func(_ context.Context, _ uint) (*models.User, error) {
		cp := *stored
		return &cp, nil
	}
	users.updateFn = func(_ context.Context, u *models.User) error {
		*stored = *u
		return nil
	}
	svc := NewUserService(users)

	user, err := svc.UpdateProfile(context.Background(), 10, UpdateProfileInput{Theme: models.ThemeDark, Name: "  "})
	require.NoError(t, err)
	assert.Equal(t, models.ThemeDark, user.Theme)
	assert.Equal(t, "Ada", user.Name, "blank name is ignored")
	assert.Equal(t, workflow.RoleStudent, stored.Role, "profile update never touches the role")

	_, err = svc.UpdateProfile(context.Background(), 10, UpdateProfileInput{Theme: "neon"})
	assertValidationError(t, err)
}

func TestUserService_ListUsersFiltersByRole(t *testing.T) {
	t.Parallel()
	users := noopUserRepo()
	var got repository.UserFilter
	users.listFn = func(_ context.Context, f repository.UserFilter) ([]models.User, int64, error) {
		got = f
		return []models.User{{ID: 20}}, 1, nil
	}
	svc := NewUserService(users)

	list, total, err := svc.ListUsers(context.Background(), ListUsersInput{SearchText: " mo ", Role: "Moderator", Limit: 5})
	require.NoError(t, err)
	assert.Len(t, list, 1)
	assert.Equal(t, int64(1), total)
	assert.Equal(t, repository.UserFilter{Search: "mo", Role: workflow.RoleModerator, Limit: 5}, got)

	_, _, err = svc.ListUsers(context.Background(), ListUsersInput{Role: "owner"})
	assertValidationError(t, err)
}

func TestStatsService_Get(t *testing.T) {
	t.Parallel()
	users := noopUserRepo()
	users.countByRoleFn = func(context.Context) (map[workflow.Role]int64, error) {
		return map[workflow.Role]int64{workflow.RoleStudent: 12, workflow.RoleModerator: 2, workflow.RoleAdmin: 1}, nil
	}
	scholarships := noopScholarshipRepo()
	scholarships.countFn = func(context.Context) (int64, error) { return 8, nil }
	apps := noopAppRepo()
	apps.countByStateFn = func(context.Context) ([]repository.StateCount, error) {
		return []repository.StateCount{{ApplicationStatus: workflow.StatusPending, PaymentStatus: workflow.PaymentUnpaid, Count: 4}}, nil
	}
	payments := noopPaymentRepo()
	payments.sumPaidFn = func(context.Context) (float64, error) { return 180, nil }

	stats, err := NewStatsService(users, scholarships, apps, payments).Get(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(12), stats.Users[workflow.RoleStudent])
	assert.Equal(t, int64(8), stats.Scholarships)
	require.Len(t, stats.Applications, 1)
	assert.Equal(t, int64(4), stats.Applications[0].Count)
	assert.Equal(t, 180.0, stats.Revenue)
}
