package models

import (
	"time"

	"gorm.io/datatypes"
)

// PaymentSessionStatus tracks a checkout attempt.
type PaymentSessionStatus string

const (
	SessionOpen    PaymentSessionStatus = "open"
	SessionPaid    PaymentSessionStatus = "paid"
	SessionFailed  PaymentSessionStatus = "failed"
	SessionExpired PaymentSessionStatus = "expired"
)

// PaymentSession is one checkout started for an approved application.
// SessionID doubles as the gateway order id. GrossAmount is what the
// gateway was asked to charge, in minor units of Currency; Amount is the
// same value in major units.
type PaymentSession struct {
	ID            uint                 `gorm:"primaryKey" json:"id"`
	SessionID     string               `gorm:"size:64;uniqueIndex;not null" json:"sessionId"`
	ApplicationID uint                 `gorm:"not null;index" json:"applicationId"`
	UserID        uint                 `gorm:"not null;index" json:"userId"`
	Amount        float64              `gorm:"not null" json:"amount"`
	GrossAmount   int64                `gorm:"not null;default:0" json:"grossAmount"`
	Currency      string               `gorm:"size:3;not null" json:"currency"`
	RedirectURL   string               `gorm:"size:1024" json:"url"`
	Status        PaymentSessionStatus `gorm:"type:varchar(20);not null;default:'open';index" json:"status"`
	TransactionID string               `gorm:"size:100" json:"transactionId,omitempty"`
	PaidAt        *time.Time           `json:"paidAt,omitempty"`
	CreatedAt     time.Time            `json:"createdAt"`
	UpdatedAt     time.Time            `json:"updatedAt"`
}

// PaymentGatewayEvent keeps the raw notification a gateway sent us.
type PaymentGatewayEvent struct {
	ID         uint           `gorm:"primaryKey" json:"id"`
	SessionID  string         `gorm:"size:64;index" json:"sessionId"`
	Provider   string         `gorm:"size:30;not null" json:"provider"`
	EventType  string         `gorm:"size:40" json:"eventType"`
	Payload    datatypes.JSON `json:"payload"`
	Outcome    string         `gorm:"size:30" json:"outcome"`
	ReceivedAt time.Time      `gorm:"autoCreateTime" json:"receivedAt"`
}
