package models

import "time"

// Review is a rating a student leaves after a completed application.
type Review struct {
	ID              uint      `gorm:"primaryKey" json:"id"`
	ScholarshipID   uint      `gorm:"not null;uniqueIndex:idx_reviews_user_scholarship,priority:2" json:"scholarshipId"`
	ApplicationID   uint      `gorm:"not null;index" json:"applicationId"`
	UserID          uint      `gorm:"not null;uniqueIndex:idx_reviews_user_scholarship,priority:1" json:"userId"`
	UserName        string    `gorm:"size:120" json:"userName"`
	UserEmail       string    `gorm:"size:255;index" json:"userEmail"`
	UserImage       string    `gorm:"size:512" json:"userImage"`
	ScholarshipName string    `gorm:"size:200" json:"scholarshipName"`
	UniversityName  string    `gorm:"size:200" json:"universityName"`
	Rating          int       `gorm:"not null" json:"rating"`
	Comment         string    `gorm:"type:text" json:"comment"`
	CreatedAt       time.Time `json:"reviewDate"`
	UpdatedAt       time.Time `json:"updatedAt"`
}
