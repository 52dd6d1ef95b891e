package database

import "scholarhub/internal/models"

// PersistentModels returns the authoritative set of schema-managed GORM models.
func PersistentModels() []any {
	return []any{
		&models.User{},
		&models.Scholarship{},
		&models.Application{},
		&models.TrackingEvent{},
		&models.Review{},
		&models.PaymentSession{},
		&models.PaymentGatewayEvent{},
	}
}
