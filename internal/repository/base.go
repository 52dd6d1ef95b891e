// Package repository implements the data access layer for the application.
package repository

import (
	"errors"
	"strings"

	"scholarhub/internal/database"
	"scholarhub/internal/models"

	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"
)

const (
	defaultPageSize = 10
	maxPageSize     = 100
)

func readDB(primary *gorm.DB) *gorm.DB {
	if db := database.GetReadDB(); db != nil {
		return db
	}
	return primary
}

// isUniqueConstraintError checks if a DB error is a unique constraint violation.
func isUniqueConstraintError(err error) bool {
	if err == nil {
		return false
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "duplicate key") ||
		strings.Contains(msg, "unique constraint") ||
		strings.Contains(msg, "23505")
}

// notFoundOr maps gorm.ErrRecordNotFound to a NOT_FOUND AppError and
// anything else to INTERNAL_ERROR.
func notFoundOr(err error, resource string, id any) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return models.NewNotFoundError(resource, id)
	}
	return models.NewInternalError(err)
}

// expectRow turns a write that matched nothing into NOT_FOUND.
func expectRow(res *gorm.DB, resource string, id any) error {
	if res.Error != nil {
		return models.NewInternalError(res.Error)
	}
	if res.RowsAffected == 0 {
		return models.NewNotFoundError(resource, id)
	}
	return nil
}

// firstOrNil loads the first match into dest. A miss is (false, nil).
func firstOrNil(q *gorm.DB, dest any) (bool, error) {
	err := q.First(dest).Error
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, gorm.ErrRecordNotFound):
		return false, nil
	default:
		return false, models.NewInternalError(err)
	}
}

func clampLimit(limit int) int {
	if limit <= 0 {
		return defaultPageSize
	}
	if limit > maxPageSize {
		return maxPageSize
	}
	return limit
}

// likePattern builds a pattern for LOWER(col) LIKE ?, which behaves the
// same on Postgres and SQLite.
func likePattern(s string) string {
	return "%" + strings.ToLower(strings.TrimSpace(s)) + "%"
}
