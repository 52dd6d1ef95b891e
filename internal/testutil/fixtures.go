package testutil

import (
	"testing"
	"time"

	"scholarhub/internal/models"
	"scholarhub/internal/workflow"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// CreateUser inserts a user with the given role.
func CreateUser(t testing.TB, db *gorm.DB, email string, role workflow.Role) *models.User {
	t.Helper()
	u := &models.User{Name: email, Email: email, Role: role}
	if err := db.Create(u).Error; err != nil {
		t.Fatalf("create user %s: %v", email, err)
	}
	return u
}

// CreateScholarship inserts an open Masters listing; mutate tweaks fields
// before the insert.
func CreateScholarship(t testing.TB, db *gorm.DB, mutate func(*models.Scholarship)) *models.Scholarship {
	t.Helper()
	s := &models.Scholarship{
		Name:                "Global Excellence",
		UniversityName:      "University of Testing",
		UniversityCountry:   "Canada",
		UniversityCity:      "Toronto",
		UniversityWorldRank: 42,
		SubjectCategory:     "Engineering",
		ScholarshipCategory: models.CategoryFullFund,
		Degree:              models.DegreeMasters,
		ApplicationFees:     50,
		ServiceCharge:       10,
		ApplicationDeadline: time.Now().Add(30 * 24 * time.Hour),
		PostDate:            time.Now(),
		PostedByEmail:       "admin@example.com",
	}
	if mutate != nil {
		mutate(s)
	}
	if err := db.Create(s).Error; err != nil {
		t.Fatalf("create scholarship: %v", err)
	}
	return s
}

// CreateApplication inserts an application in the given state with a
// timeline consistent with it.
func CreateApplication(t testing.TB, db *gorm.DB, user *models.User, s *models.Scholarship, state workflow.State) *models.Application {
	t.Helper()
	app := &models.Application{
		TrackingID:        uuid.NewString(),
		ScholarshipID:     s.ID,
		UserID:            user.ID,
		UserName:          user.Name,
		UserEmail:         user.Email,
		ScholarshipName:   s.Name,
		UniversityName:    s.UniversityName,
		ApplicationFees:   s.ApplicationFees,
		ServiceCharge:     s.ServiceCharge,
		ApplicationStatus: state.Application,
		PaymentStatus:     state.Payment,
	}
	if err := db.Create(app).Error; err != nil {
		t.Fatalf("create application: %v", err)
	}

	events := []workflow.EventStatus{workflow.EventApplyCreated}
	if state.Application != workflow.StatusPending {
		switch {
		case state.Application == workflow.StatusRejected:
			events = append(events, workflow.EventApplyRejected)
		default:
			events = append(events, workflow.EventApplyApproved)
			if state.Payment == workflow.PaymentPaid {
				events = append(events, workflow.EventPaid)
			}
			if state.Application == workflow.StatusCompleted {
				events = append(events, workflow.EventCompleted)
			}
		}
	}
	base := time.Now().Add(-time.Hour)
	for i, status := range events {
		ev := &models.TrackingEvent{
			ApplicationID: app.ID,
			TrackingID:    app.TrackingID,
			Status:        status,
			CreatedAt:     base.Add(time.Duration(i) * time.Minute),
		}
		if err := db.Create(ev).Error; err != nil {
			t.Fatalf("create tracking event: %v", err)
		}
	}
	return app
}
