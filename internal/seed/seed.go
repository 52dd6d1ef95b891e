package seed

import (
	"fmt"
	"log/slog"
	"strings"

	"scholarhub/internal/models"
	"scholarhub/internal/workflow"

	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

// DefaultPassword is set on every seeded account.
const DefaultPassword = "password123"

// Options configures a seed run.
type Options struct {
	NumStudents     int
	NumModerators   int
	NumScholarships int
	// ApplicationsPerStudent caps how many listings each student applies to.
	ApplicationsPerStudent int
	MaxDays                int
	// RandomSeed makes the generated data reproducible when non-zero.
	RandomSeed int64
	Password   string
}

// Presets are named option sets for cmd/seed.
var Presets = map[string]Options{
	"minimal": {NumStudents: 5, NumModerators: 1, NumScholarships: 0, ApplicationsPerStudent: 2, MaxDays: 14},
	"demo":    {NumStudents: 25, NumModerators: 3, NumScholarships: 20, ApplicationsPerStudent: 3, MaxDays: 60},
	"load":    {NumStudents: 400, NumModerators: 10, NumScholarships: 200, ApplicationsPerStudent: 5, MaxDays: 180},
}

// Summary counts what a run created.
type Summary struct {
	Users        int
	Scholarships int
	Applications int
	Reviews      int
	ByState      map[workflow.State]int
}

// Seeder fills a database with a consistent demo portal.
type Seeder struct {
	db *gorm.DB
}

// NewSeeder creates a Seeder for db.
func NewSeeder(db *gorm.DB) *Seeder {
	return &Seeder{db: db}
}

// ClearAll removes every portal row, children first.
func (s *Seeder) ClearAll() error {
	tables := []any{
		&models.PaymentGatewayEvent{},
		&models.PaymentSession{},
		&models.Review{},
		&models.TrackingEvent{},
		&models.Application{},
		&models.Scholarship{},
		&models.User{},
	}
	tx := s.db.Session(&gorm.Session{AllowGlobalUpdate: true}).Unscoped()
	for _, table := range tables {
		if err := tx.Delete(table).Error; err != nil {
			return fmt.Errorf("clear %T: %w", table, err)
		}
	}
	slog.Info("seed data cleared")
	return nil
}

// ApplyPreset runs the named preset.
func (s *Seeder) ApplyPreset(name string) (*Summary, error) {
	opts, ok := Presets[strings.ToLower(name)]
	if !ok {
		return nil, fmt.Errorf("unknown preset %q", name)
	}
	return s.Run(opts)
}

// statePlan cycles through every reachable state so each seeded portal
// exercises the whole workflow.
var statePlan = []workflow.State{
	workflow.Initial,
	{Application: workflow.StatusApproved, Payment: workflow.PaymentUnpaid},
	{Application: workflow.StatusApproved, Payment: workflow.PaymentPaid},
	{Application: workflow.StatusCompleted, Payment: workflow.PaymentPaid},
	{Application: workflow.StatusRejected, Payment: workflow.PaymentUnpaid},
	workflow.Initial,
}

// Run seeds staff accounts, the built-in catalog plus generated listings,
// students and their applications.
func (s *Seeder) Run(opts Options) (*Summary, error) {
	password := opts.Password
	if password == "" {
		password = DefaultPassword
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("hash seed password: %w", err)
	}
	f := NewFactory(s.db, opts, string(hash))
	sum := &Summary{ByState: make(map[workflow.State]int)}

	admin, err := f.CreateUser(workflow.RoleAdmin)
	if err != nil {
		return nil, fmt.Errorf("create admin: %w", err)
	}
	sum.Users++

	for i := 0; i < opts.NumModerators; i++ {
		if _, err := f.CreateUser(workflow.RoleModerator); err != nil {
			return nil, fmt.Errorf("create moderator: %w", err)
		}
		sum.Users++
	}

	listings, err := Catalog(s.db, admin.Email)
	if err != nil {
		return nil, fmt.Errorf("seed catalog: %w", err)
	}
	for i := 0; i < opts.NumScholarships; i++ {
		sch, err := f.CreateScholarship(admin.Email)
		if err != nil {
			return nil, fmt.Errorf("create scholarship: %w", err)
		}
		listings = append(listings, *sch)
	}
	sum.Scholarships = len(listings)
	slog.Info("scholarships seeded", slog.Int("count", sum.Scholarships))

	perStudent := opts.ApplicationsPerStudent
	if perStudent > len(listings) {
		perStudent = len(listings)
	}

	next := 0
	for i := 0; i < opts.NumStudents; i++ {
		student, err := f.CreateUser(workflow.RoleStudent)
		if err != nil {
			return nil, fmt.Errorf("create student: %w", err)
		}
		sum.Users++

		for j := 0; j < perStudent; j++ {
			listing := &listings[(i+j)%len(listings)]
			state := statePlan[next%len(statePlan)]
			next++

			app, err := f.CreateApplication(student, listing, state)
			if err != nil {
				return nil, fmt.Errorf("create application: %w", err)
			}
			sum.Applications++
			sum.ByState[state]++

			if workflow.CanReview(state) {
				if _, err := f.CreateReview(app, student); err != nil {
					return nil, fmt.Errorf("create review: %w", err)
				}
				sum.Reviews++
			}
		}
	}

	slog.Info("seed complete",
		slog.Int("users", sum.Users),
		slog.Int("scholarships", sum.Scholarships),
		slog.Int("applications", sum.Applications),
		slog.Int("reviews", sum.Reviews))
	return sum, nil
}
