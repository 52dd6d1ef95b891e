package models

import (
	"time"

	"scholarhub/internal/workflow"
)

// Application is one student's request for one scholarship. TrackingID is
// assigned at creation and never changes.
type Application struct {
	ID                  uint                       `gorm:"primaryKey" json:"id"`
	TrackingID          string                     `gorm:"size:36;uniqueIndex;not null;<-:create" json:"trackingId"`
	ScholarshipID       uint                       `gorm:"not null;index" json:"scholarshipId"`
	UserID              uint                       `gorm:"not null;index" json:"userId"`
	UserName            string                     `gorm:"size:120" json:"userName"`
	UserEmail           string                     `gorm:"size:255;index" json:"userEmail"`
	ScholarshipName     string                     `gorm:"size:200" json:"scholarshipName"`
	UniversityName      string                     `gorm:"size:200" json:"universityName"`
	UniversityAddress   string                     `gorm:"size:255" json:"universityAddress"`
	SubjectCategory     string                     `gorm:"size:60" json:"subjectCategory"`
	Degree              string                     `gorm:"size:20" json:"degree"`
	ScholarshipCategory string                     `gorm:"size:30" json:"scholarshipCategory"`
	ApplicationFees     float64                    `json:"applicationFees"`
	ServiceCharge       float64                    `json:"serviceCharge"`
	ApplicationDeadline time.Time                  `json:"applicationDeadline"`
	Phone               string                     `gorm:"size:30" json:"phone"`
	Photo               string                     `gorm:"size:512" json:"photo"`
	Address             string                     `gorm:"size:255" json:"address"`
	Gender              string                     `gorm:"size:20" json:"gender"`
	SSCResult           string                     `gorm:"size:20" json:"sscResult"`
	HSCResult           string                     `gorm:"size:20" json:"hscResult"`
	StudyGap            string                     `gorm:"size:20" json:"studyGap"`
	ApplicationStatus   workflow.ApplicationStatus `gorm:"type:varchar(20);not null;default:'pending';index" json:"applicationStatus"`
	PaymentStatus       workflow.PaymentStatus     `gorm:"type:varchar(20);not null;default:'unpaid'" json:"paymentStatus"`
	Feedback            string                     `gorm:"type:text" json:"feedback"`
	CreatedAt           time.Time                  `json:"appliedDate"`
	UpdatedAt           time.Time                  `json:"updatedAt"`
}

// State returns the workflow view of the status columns.
func (a *Application) State() workflow.State {
	return workflow.State{Application: a.ApplicationStatus, Payment: a.PaymentStatus}
}

// TrackingEvent is one append-only entry on an application's timeline.
type TrackingEvent struct {
	ID            uint                   `gorm:"primaryKey" json:"id"`
	ApplicationID uint                   `gorm:"not null;index" json:"applicationId"`
	TrackingID    string                 `gorm:"size:36;not null;index:idx_tracking_events_order,priority:1" json:"trackingId"`
	Status        workflow.EventStatus   `gorm:"type:varchar(30);not null" json:"status"`
	Details       string                 `gorm:"type:text" json:"details"`
	Amount        float64                `json:"amount,omitempty"`
	TransactionID string                 `gorm:"size:100" json:"transactionId,omitempty"`
	PaymentStatus workflow.PaymentStatus `gorm:"type:varchar(20)" json:"paymentStatus,omitempty"`
	ActorID       uint                   `json:"-"`
	CreatedAt     time.Time              `gorm:"not null;index:idx_tracking_events_order,priority:2" json:"createdAt"`
}

// TimelineEntries adapts stored events for consistency checks.
func TimelineEntries(events []TrackingEvent) []workflow.TimelineEntry {
	out := make([]workflow.TimelineEntry, len(events))
	for i, e := range events {
		out[i] = workflow.TimelineEntry{Status: e.Status, CreatedAt: e.CreatedAt}
	}
	return out
}
