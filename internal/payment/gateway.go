// Package payment talks to the checkout provider that collects application
// fees.
package payment

import (
	"context"
	"crypto/sha512"
	"crypto/subtle"
	"encoding/hex"
	"errors"
	"strings"
)

// Outcome is the provider status folded into what the portal acts on.
type Outcome string

const (
	OutcomePaid    Outcome = "paid"
	OutcomePending Outcome = "pending"
	OutcomeFailed  Outcome = "failed"
	OutcomeExpired Outcome = "expired"
)

var (
	ErrGatewayUnavailable  = errors.New("payment: gateway unavailable")
	ErrUnknownOrder        = errors.New("payment: order not found at gateway")
	ErrUnsupportedCurrency = errors.New("payment: currency not supported by gateway")
)

// CheckoutRequest describes one fee payment.
type CheckoutRequest struct {
	OrderID       string
	// GrossAmount is the charge in minor units of Currency.
	GrossAmount   int64
	Currency      string
	CustomerName  string
	CustomerEmail string
	CustomerPhone string
	ItemID        string
	ItemName      string
	Category      string
	// FinishURL is where the provider sends the browser after payment.
	FinishURL string
}

// Checkout is where the student is sent to pay.
type Checkout struct {
	Token       string
	RedirectURL string
}

// Status is the provider's view of an order.
type Status struct {
	OrderID           string
	TransactionID     string
	TransactionStatus string
	FraudStatus       string
	GrossAmount       string
	Outcome           Outcome
}

// Gateway is a hosted checkout provider.
type Gateway interface {
	Name() string
	CreateCheckout(ctx context.Context, req CheckoutRequest) (*Checkout, error)
	CheckStatus(ctx context.Context, orderID string) (*Status, error)
	// VerifyNotification checks a webhook body was signed with our key.
	VerifyNotification(n Notification) bool
}

// Notification is the webhook body the provider posts on status changes.
type Notification struct {
	TransactionTime   string `json:"transaction_time"`
	TransactionStatus string `json:"transaction_status"`
	StatusCode        string `json:"status_code"`
	SignatureKey      string `json:"signature_key"`
	OrderID           string `json:"order_id"`
	GrossAmount       string `json:"gross_amount"`
	PaymentType       string `json:"payment_type"`
	FraudStatus       string `json:"fraud_status"`
	TransactionID     string `json:"transaction_id"`
}

// Sign computes sha512(order_id + status_code + gross_amount + serverKey).
func Sign(n Notification, serverKey string) string {
	sum := sha512.Sum512([]byte(n.OrderID + n.StatusCode + n.GrossAmount + serverKey))
	return hex.EncodeToString(sum[:])
}

// VerifySignature reports whether n carries a valid signature for serverKey.
func VerifySignature(n Notification, serverKey string) bool {
	if n.SignatureKey == "" || serverKey == "" {
		return false
	}
	want := Sign(n, serverKey)
	got := strings.ToLower(n.SignatureKey)
	return subtle.ConstantTimeCompare([]byte(want), []byte(got)) == 1
}

// MapStatus folds a provider transaction status into an Outcome. A capture
// still under fraud challenge is not money we hold yet.
func MapStatus(transactionStatus, fraudStatus string) Outcome {
	switch strings.ToLower(transactionStatus) {
	case "settlement":
		return OutcomePaid
	case "capture":
		if strings.EqualFold(fraudStatus, "challenge") {
			return OutcomePending
		}
		if strings.EqualFold(fraudStatus, "deny") {
			return OutcomeFailed
		}
		return OutcomePaid
	case "expire":
		return OutcomeExpired
	case "deny", "cancel", "failure", "refund", "partial_refund":
		return OutcomeFailed
	default:
		return OutcomePending
	}
}
