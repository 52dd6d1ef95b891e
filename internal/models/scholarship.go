package models

import (
	"time"

	"scholarhub/internal/workflow"

	"gorm.io/gorm"
)

// Scholarship categories.
const (
	CategoryFullFund    = "Full fund"
	CategoryPartialFund = "Partial fund"
	CategorySelfFund    = "Self fund"
)

// Degrees a scholarship may be offered for.
const (
	DegreeDiploma  = "Diploma"
	DegreeBachelor = "Bachelor"
	DegreeMasters  = "Masters"
	DegreePhD      = "PhD"
)

// Scholarship is a listing students apply to.
type Scholarship struct {
	ID                  uint           `gorm:"primaryKey" json:"id"`
	Name                string         `gorm:"size:200;not null" json:"scholarshipName"`
	UniversityName      string         `gorm:"size:200;not null;index" json:"universityName"`
	UniversityImage     string         `gorm:"size:512" json:"universityImage"`
	UniversityCountry   string         `gorm:"size:100;index" json:"universityCountry"`
	UniversityCity      string         `gorm:"size:100" json:"universityCity"`
	UniversityWorldRank int            `json:"universityWorldRank"`
	SubjectCategory     string         `gorm:"size:60;index" json:"subjectCategory"`
	ScholarshipCategory string         `gorm:"size:30;index" json:"scholarshipCategory"`
	Degree              string         `gorm:"size:20;index" json:"degree"`
	TuitionFees         float64        `json:"tuitionFees"`
	ApplicationFees     float64        `gorm:"not null;default:0;index" json:"applicationFees"`
	ServiceCharge       float64        `gorm:"not null;default:0" json:"serviceCharge"`
	ApplicationDeadline time.Time      `gorm:"not null;index" json:"applicationDeadline"`
	PostDate            time.Time      `json:"scholarshipPostDate"`
	PostedByEmail       string         `gorm:"size:255" json:"postedUserEmail"`
	Description         string         `gorm:"type:text" json:"scholarshipDescription"`
	CreatedAt           time.Time      `json:"createdAt"`
	UpdatedAt           time.Time      `json:"updatedAt"`
	DeletedAt           gorm.DeletedAt `gorm:"index" json:"-"`
}

// IsOpen reports whether the listing still accepts applications at now.
func (s *Scholarship) IsOpen(now time.Time) bool {
	return workflow.IsApplicationOpen(s.ApplicationDeadline, now)
}

// TotalFee is what a student pays at checkout.
func (s *Scholarship) TotalFee() float64 {
	return s.ApplicationFees + s.ServiceCharge
}

// ScholarshipView is a listing plus values derived at read time.
type ScholarshipView struct {
	Scholarship
	IsOpen        bool               `json:"isOpen"`
	Remaining     workflow.Remaining `json:"remaining"`
	RatingAverage float64            `json:"ratingAverage"`
	ReviewCount   int64              `json:"reviewCount"`
}

// NewScholarshipView derives the open flag and countdown for now.
func NewScholarshipView(s Scholarship, now time.Time) ScholarshipView {
	return ScholarshipView{
		Scholarship: s,
		IsOpen:      s.IsOpen(now),
		Remaining:   workflow.Countdown(s.ApplicationDeadline, now),
	}
}
