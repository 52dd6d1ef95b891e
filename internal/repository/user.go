package repository

import (
	"context"

	"scholarhub/internal/cache"
	"scholarhub/internal/models"
	"scholarhub/internal/observability"
	"scholarhub/internal/workflow"

	"gorm.io/gorm"
)

// UserFilter narrows the admin user listing.
type UserFilter struct {
	Search string
	Role   workflow.Role
	Limit  int
	Offset int
}

// UserRepository defines persistence operations for users.
type UserRepository interface {
	GetByID(ctx context.Context, id uint) (*models.User, error)
	GetByEmail(ctx context.Context, email string) (*models.User, error)
	GetByGoogleSub(ctx context.Context, sub string) (*models.User, error)
	Create(ctx context.Context, user *models.User) error
	Update(ctx context.Context, user *models.User) error
	UpdateRole(ctx context.Context, id uint, role workflow.Role) error
	Delete(ctx context.Context, id uint) error
	List(ctx context.Context, filter UserFilter) ([]models.User, int64, error)
	CountByRole(ctx context.Context) (map[workflow.Role]int64, error)
}

type userRepository struct {
	db *gorm.DB
}

// NewUserRepository returns a new UserRepository implementation.
func NewUserRepository(db *gorm.DB) UserRepository {
	return &userRepository{db: db}
}

func (r *userRepository) GetByID(ctx context.Context, id uint) (*models.User, error) {
	var user models.User
	key := cache.UserKey(id)

	err := cache.Aside(ctx, key, &user, cache.UserTTL, func() error {
		if err := readDB(r.db).WithContext(ctx).First(&user, id).Error; err != nil {
			return notFoundOr(err, "User", id)
		}
		return nil
	})

	if err != nil {
		return nil, err
	}
	return &user, nil
}

// GetByEmail returns nil, nil when no user has the address.
func (r *userRepository) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	return r.findBy(ctx, "email", email)
}

// GetByGoogleSub returns nil, nil when no user is linked to sub.
func (r *userRepository) GetByGoogleSub(ctx context.Context, sub string) (*models.User, error) {
	return r.findBy(ctx, "google_sub", sub)
}

// findBy reads from the primary: sign-in must see an account created a
// moment ago even if the replica lags.
func (r *userRepository) findBy(ctx context.Context, column, value string) (*models.User, error) {
	var user models.User
	found, err := firstOrNil(r.db.WithContext(ctx).Where(column+" = ?", value), &user)
	if !found {
		return nil, err
	}
	return &user, nil
}

func (r *userRepository) Create(ctx context.Context, user *models.User) error {
	if err := r.db.WithContext(ctx).Create(user).Error; err != nil {
		if isUniqueConstraintError(err) {
			return models.NewConflictError("User already exists")
		}
		return models.NewInternalError(err)
	}
	return nil
}

func (r *userRepository) Update(ctx context.Context, user *models.User) error {
	if err := r.db.WithContext(ctx).Save(user).Error; err != nil {
		return models.NewInternalError(err)
	}
	cache.InvalidateUser(ctx, user.ID)
	return nil
}

func (r *userRepository) UpdateRole(ctx context.Context, id uint, role workflow.Role) error {
	res := r.db.WithContext(ctx).Model(&models.User{}).Where("id = ?", id).Update("role", role)
	if err := expectRow(res, "User", id); err != nil {
		return err
	}
	cache.InvalidateUser(ctx, id)
	return nil
}

func (r *userRepository) Delete(ctx context.Context, id uint) error {
	if err := expectRow(r.db.WithContext(ctx).Delete(&models.User{}, id), "User", id); err != nil {
		return err
	}
	cache.InvalidateUser(ctx, id)
	return nil
}

func (r *userRepository) List(ctx context.Context, filter UserFilter) ([]models.User, int64, error) {
	defer observability.TrackQuery("list", "users")()

	q := readDB(r.db).WithContext(ctx).Model(&models.User{})
	if filter.Search != "" {
		p := likePattern(filter.Search)
		q = q.Where("LOWER(name) LIKE ? OR LOWER(email) LIKE ?", p, p)
	}
	if filter.Role != "" {
		q = q.Where("role = ?", filter.Role)
	}

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, models.NewInternalError(err)
	}

	var users []models.User
	if err := q.Order("created_at DESC, id DESC").
		Limit(clampLimit(filter.Limit)).
		Offset(max(filter.Offset, 0)).
		Find(&users).Error; err != nil {
		return nil, 0, models.NewInternalError(err)
	}
	return users, total, nil
}

func (r *userRepository) CountByRole(ctx context.Context) (map[workflow.Role]int64, error) {
	var rows []struct {
		Role  workflow.Role
		Count int64
	}
	if err := readDB(r.db).WithContext(ctx).Model(&models.User{}).
		Select("role, COUNT(*) AS count").Group("role").Scan(&rows).Error; err != nil {
		return nil, models.NewInternalError(err)
	}
	out := make(map[workflow.Role]int64, len(rows))
	for _, row := range rows {
		out[row.Role] = row.Count
	}
	return out, nil
}
