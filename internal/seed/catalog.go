package seed

import (
	_ "embed"
	"errors"
	"fmt"
	"time"

	"scholarhub/internal/models"

	"gopkg.in/yaml.v3"
	"gorm.io/gorm"
)

//go:embed catalog.yaml
var catalogYAML []byte

// CatalogEntry is one built-in listing.
type CatalogEntry struct {
	Name            string  `yaml:"name"`
	University      string  `yaml:"university"`
	Country         string  `yaml:"country"`
	City            string  `yaml:"city"`
	Rank            int     `yaml:"rank"`
	Subject         string  `yaml:"subject"`
	Category        string  `yaml:"category"`
	Degree          string  `yaml:"degree"`
	Tuition         float64 `yaml:"tuition"`
	ApplicationFees float64 `yaml:"applicationFees"`
	ServiceCharge   float64 `yaml:"serviceCharge"`
	DeadlineDays    int     `yaml:"deadlineDays"`
}

// LoadCatalog parses the embedded catalog.
func LoadCatalog() ([]CatalogEntry, error) {
	var doc struct {
		Scholarships []CatalogEntry `yaml:"scholarships"`
	}
	if err := yaml.Unmarshal(catalogYAML, &doc); err != nil {
		return nil, fmt.Errorf("parse catalog: %w", err)
	}
	return doc.Scholarships, nil
}

// Scholarship converts the entry into a listing relative to now.
func (e CatalogEntry) Scholarship(now time.Time, postedBy string) models.Scholarship {
	return models.Scholarship{
		Name:                e.Name,
		UniversityName:      e.University,
		UniversityImage:     fmt.Sprintf("https://picsum.photos/seed/%d/800/500", e.Rank),
		UniversityCountry:   e.Country,
		UniversityCity:      e.City,
		UniversityWorldRank: e.Rank,
		SubjectCategory:     e.Subject,
		ScholarshipCategory: e.Category,
		Degree:              e.Degree,
		TuitionFees:         e.Tuition,
		ApplicationFees:     e.ApplicationFees,
		ServiceCharge:       e.ServiceCharge,
		ApplicationDeadline: now.AddDate(0, 0, e.DeadlineDays),
		PostDate:            now,
		PostedByEmail:       postedBy,
		Description:         fmt.Sprintf("%s for %s applicants at %s.", e.Name, e.Degree, e.University),
	}
}

// Catalog inserts the built-in listings that are not present yet, matched
// by scholarship and university name. Running it twice is a no-op.
func Catalog(db *gorm.DB, postedBy string) ([]models.Scholarship, error) {
	entries, err := LoadCatalog()
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	out := make([]models.Scholarship, 0, len(entries))
	err = db.Transaction(func(tx *gorm.DB) error {
		for _, entry := range entries {
			var existing models.Scholarship
			findErr := tx.Where("name = ? AND university_name = ?", entry.Name, entry.University).First(&existing).Error
			switch {
			case findErr == nil:
				out = append(out, existing)
				continue
			case !errors.Is(findErr, gorm.ErrRecordNotFound):
				return findErr
			}

			s := entry.Scholarship(now, postedBy)
			if err := tx.Create(&s).Error; err != nil {
				return fmt.Errorf("create %q: %w", entry.Name, err)
			}
			out = append(out, s)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}
