// Package seed provides helpers to create demo data for the portal
// database. These helpers are intended for development and testing only.
package seed

import (
	"fmt"
	"strings"
	"time"

	"scholarhub/internal/models"
	"scholarhub/internal/payment"
	"scholarhub/internal/workflow"

	"github.com/brianvoe/gofakeit/v6"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// seedCurrency is what demo payments were made in.
const seedCurrency = "USD"

var (
	subjects = []string{"Agriculture", "Engineering", "Medicine", "Business", "Law", "Computer Science", "Humanities", "Social Science"}
	degrees  = []string{models.DegreeDiploma, models.DegreeBachelor, models.DegreeMasters, models.DegreePhD}
	funding  = []string{models.CategoryFullFund, models.CategoryPartialFund, models.CategorySelfFund}
	genders  = []string{"male", "female", "other"}
	results  = []string{"3.50", "3.75", "4.00", "4.25", "4.50", "4.80", "5.00"}
)

// Factory builds domain entities and persists them to the database.
type Factory struct {
	db           *gorm.DB
	opts         Options
	faker        *gofakeit.Faker
	passwordHash string
}

// NewFactory creates a Factory bound to db. passwordHash is stored on every
// user it creates so one bcrypt run covers the whole seed.
func NewFactory(db *gorm.DB, opts Options, passwordHash string) *Factory {
	seed := opts.RandomSeed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	return &Factory{db: db, opts: opts, faker: gofakeit.New(seed), passwordHash: passwordHash}
}

// pastTime spreads timestamps over the last MaxDays days.
func (f *Factory) pastTime() time.Time {
	maxDays := f.opts.MaxDays
	if maxDays <= 0 {
		maxDays = 30
	}
	back := time.Duration(f.faker.Number(1, maxDays*24*60)) * time.Minute
	return time.Now().UTC().Add(-back)
}

// CreateUser persists a user with the given role.
func (f *Factory) CreateUser(role workflow.Role, overrides ...func(*models.User)) (*models.User, error) {
	first, last := f.faker.FirstName(), f.faker.LastName()
	u := &models.User{
		Name:     first + " " + last,
		Email:    strings.ToLower(fmt.Sprintf("%s.%s.%d@example.com", first, last, f.faker.Number(100, 99999))),
		Password: f.passwordHash,
		PhotoURL: fmt.Sprintf("https://i.pravatar.cc/150?u=%s", f.faker.UUID()),
		Role:     role,
		Theme:    f.faker.RandomString([]string{models.ThemeLight, models.ThemeDark}),
	}
	for _, override := range overrides {
		override(u)
	}
	if err := f.db.Create(u).Error; err != nil {
		return nil, err
	}
	return u, nil
}

// BuildScholarship constructs a listing without persisting it. About one in
// five generated listings is already past its deadline.
func (f *Factory) BuildScholarship(postedBy string) *models.Scholarship {
	deadlineDays := f.faker.Number(5, 180)
	if f.faker.Number(1, 5) == 1 {
		deadlineDays = -f.faker.Number(1, 30)
	}
	city := f.faker.City()
	return &models.Scholarship{
		Name:                fmt.Sprintf("%s %s Scholarship", f.faker.LastName(), f.faker.RandomString([]string{"Merit", "Excellence", "Leadership", "Research", "Access"})),
		UniversityName:      fmt.Sprintf("University of %s", city),
		UniversityImage:     fmt.Sprintf("https://picsum.photos/seed/%s/800/500", f.faker.UUID()),
		UniversityCountry:   f.faker.Country(),
		UniversityCity:      city,
		UniversityWorldRank: f.faker.Number(1, 500),
		SubjectCategory:     f.faker.RandomString(subjects),
		ScholarshipCategory: f.faker.RandomString(funding),
		Degree:              f.faker.RandomString(degrees),
		TuitionFees:         float64(f.faker.Number(0, 60)) * 1000,
		ApplicationFees:     float64(f.faker.Number(0, 120)),
		ServiceCharge:       float64(f.faker.Number(0, 25)),
		ApplicationDeadline: time.Now().UTC().AddDate(0, 0, deadlineDays),
		PostDate:            f.pastTime(),
		PostedByEmail:       postedBy,
		Description:         f.faker.Paragraph(1, 3, 12, " "),
	}
}

// CreateScholarship persists a generated listing.
func (f *Factory) CreateScholarship(postedBy string, overrides ...func(*models.Scholarship)) (*models.Scholarship, error) {
	s := f.BuildScholarship(postedBy)
	for _, override := range overrides {
		override(s)
	}
	if err := f.db.Create(s).Error; err != nil {
		return nil, err
	}
	return s, nil
}

// TimelineFor lists the events an application in state went through, in
// order. The last one is always workflow.EventFor(state).
func TimelineFor(state workflow.State) []workflow.EventStatus {
	events := []workflow.EventStatus{workflow.EventApplyCreated}
	switch state.Application {
	case workflow.StatusRejected:
		events = append(events, workflow.EventApplyRejected)
	case workflow.StatusApproved, workflow.StatusCompleted:
		events = append(events, workflow.EventApplyApproved)
		if state.Payment == workflow.PaymentPaid {
			events = append(events, workflow.EventPaid)
		}
		if state.Application == workflow.StatusCompleted {
			events = append(events, workflow.EventCompleted)
		}
	}
	return events
}

// CreateApplication persists an application in state together with the
// timeline and payment session that state implies.
func (f *Factory) CreateApplication(student *models.User, s *models.Scholarship, state workflow.State) (*models.Application, error) {
	if err := state.Validate(); err != nil {
		return nil, fmt.Errorf("seed application: %w", err)
	}

	applied := f.pastTime()
	app := &models.Application{
		TrackingID:          uuid.NewString(),
		ScholarshipID:       s.ID,
		UserID:              student.ID,
		UserName:            student.Name,
		UserEmail:           student.Email,
		ScholarshipName:     s.Name,
		UniversityName:      s.UniversityName,
		UniversityAddress:   s.UniversityCity + ", " + s.UniversityCountry,
		SubjectCategory:     s.SubjectCategory,
		Degree:              s.Degree,
		ScholarshipCategory: s.ScholarshipCategory,
		ApplicationFees:     s.ApplicationFees,
		ServiceCharge:       s.ServiceCharge,
		ApplicationDeadline: s.ApplicationDeadline,
		Phone:               f.faker.Phone(),
		Photo:               student.PhotoURL,
		Address:             f.faker.Street() + ", " + f.faker.City(),
		Gender:              f.faker.RandomString(genders),
		SSCResult:           f.faker.RandomString(results),
		HSCResult:           f.faker.RandomString(results),
		StudyGap:            f.faker.RandomString([]string{"", "1 year", "2 years"}),
		ApplicationStatus:   state.Application,
		PaymentStatus:       state.Payment,
		CreatedAt:           applied,
	}
	if state.Application != workflow.StatusPending {
		app.Feedback = f.faker.Sentence(8)
	}

	err := f.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(app).Error; err != nil {
			return err
		}
		gross := payment.ToMinor(s.ApplicationFees, seedCurrency) + payment.ToMinor(s.ServiceCharge, seedCurrency)
		for i, status := range TimelineFor(state) {
			ev := &models.TrackingEvent{
				ApplicationID: app.ID,
				TrackingID:    app.TrackingID,
				Status:        status,
				Details:       string(status),
				CreatedAt:     applied.Add(time.Duration(i) * time.Hour),
			}
			if status == workflow.EventPaid {
				ev.Amount = payment.FromMinor(gross, seedCurrency)
				ev.TransactionID = "seed-" + f.faker.UUID()
				ev.PaymentStatus = workflow.PaymentPaid
			}
			if err := tx.Create(ev).Error; err != nil {
				return err
			}
			if status == workflow.EventPaid {
				paidAt := ev.CreatedAt
				session := &models.PaymentSession{
					SessionID:     uuid.NewString(),
					ApplicationID: app.ID,
					UserID:        student.ID,
					Amount:        ev.Amount,
					GrossAmount:   gross,
					Currency:      seedCurrency,
					Status:        models.SessionPaid,
					TransactionID: ev.TransactionID,
					PaidAt:        &paidAt,
				}
				if err := tx.Create(session).Error; err != nil {
					return err
				}
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return app, nil
}

// CreateReview persists a review for a completed application.
func (f *Factory) CreateReview(app *models.Application, student *models.User) (*models.Review, error) {
	if !workflow.CanReview(app.State()) {
		return nil, fmt.Errorf("seed review: application %d is %s", app.ID, app.ApplicationStatus)
	}
	r := &models.Review{
		ScholarshipID:   app.ScholarshipID,
		ApplicationID:   app.ID,
		UserID:          student.ID,
		UserName:        student.Name,
		UserEmail:       student.Email,
		UserImage:       student.PhotoURL,
		ScholarshipName: app.ScholarshipName,
		UniversityName:  app.UniversityName,
		Rating:          f.faker.Number(1, 5),
		Comment:         f.faker.Sentence(14),
	}
	if err := f.db.Create(r).Error; err != nil {
		return nil, err
	}
	return r, nil
}
