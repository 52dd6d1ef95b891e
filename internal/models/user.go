// Package models contains the persisted domain types and the API error shape.
package models

import (
	"time"

	"scholarhub/internal/workflow"

	"gorm.io/gorm"
)

// Theme values a user may persist.
const (
	ThemeLight = "light"
	ThemeDark  = "dark"
)

// User is an account on the portal. Role defaults to student and only an
// admin may change it. Email and GoogleSub are unique among live accounts,
// so a deleted user's email can sign up again.
type User struct {
	ID        uint           `gorm:"primaryKey" json:"id"`
	Name      string         `gorm:"size:120;not null" json:"name"`
	Email     string         `gorm:"size:255;uniqueIndex:idx_users_email,where:deleted_at IS NULL;not null" json:"email"`
	Password  string         `json:"-"`
	PhotoURL  string         `gorm:"size:512" json:"photoURL"`
	Role      workflow.Role  `gorm:"type:varchar(20);not null;default:'student';index" json:"role"`
	Theme     string         `gorm:"type:varchar(10);not null;default:'light'" json:"theme"`
	GoogleSub *string        `gorm:"size:64;uniqueIndex:idx_users_google_sub,where:deleted_at IS NULL" json:"-"`
	CreatedAt time.Time      `json:"createdAt"`
	UpdatedAt time.Time      `json:"updatedAt"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`
}

// BeforeCreate fills defaults gorm's column default would only apply on
// insert paths that omit the field.
func (u *User) BeforeCreate(*gorm.DB) error {
	if u.Role == "" {
		u.Role = workflow.RoleStudent
	}
	if u.Theme == "" {
		u.Theme = ThemeLight
	}
	return nil
}
