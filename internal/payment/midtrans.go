package payment

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"scholarhub/internal/observability"

	midtrans "github.com/midtrans/midtrans-go"
	"github.com/midtrans/midtrans-go/coreapi"
	"github.com/midtrans/midtrans-go/snap"
)

// midtransCurrency is the only currency Snap charges in.
const midtransCurrency = "IDR"

// Midtrans is the Snap checkout gateway.
type Midtrans struct {
	serverKey string
	snap      snap.Client
	core      coreapi.Client
}

// NewMidtrans builds a client for the sandbox or production environment.
func NewMidtrans(serverKey string, production bool) *Midtrans {
	env := midtrans.Sandbox
	if production {
		env = midtrans.Production
	}
	m := &Midtrans{serverKey: serverKey}
	m.snap.New(serverKey, env)
	m.core.New(serverKey, env)
	return m
}

func (m *Midtrans) Name() string { return "midtrans" }

func (m *Midtrans) CreateCheckout(ctx context.Context, req CheckoutRequest) (_ *Checkout, err error) {
	_, span := observability.StartClientSpan(ctx, "midtrans", "snap.create_transaction")
	defer func() { span.End(err) }()

	if !strings.EqualFold(req.Currency, midtransCurrency) {
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedCurrency, req.Currency)
	}
	gross := req.GrossAmount
	if gross <= 0 {
		return nil, fmt.Errorf("payment: invalid amount %d", gross)
	}

	snapReq := &snap.Request{
		TransactionDetails: midtrans.TransactionDetails{
			OrderID:  req.OrderID,
			GrossAmt: gross,
		},
		CustomerDetail: &midtrans.CustomerDetails{
			FName: req.CustomerName,
			Email: req.CustomerEmail,
			Phone: req.CustomerPhone,
		},
		Items: &[]midtrans.ItemDetails{
			{
				ID:       req.ItemID,
				Price:    gross,
				Qty:      1,
				Name:     truncate(req.ItemName, 50),
				Category: req.Category,
			},
		},
	}

	if req.FinishURL != "" {
		snapReq.Callbacks = &snap.Callbacks{Finish: req.FinishURL}
	}

	resp, mErr := m.snap.CreateTransaction(snapReq)
	if mErr != nil {
		return nil, fmt.Errorf("%w: %s", ErrGatewayUnavailable, mErr.Message)
	}
	return &Checkout{Token: resp.Token, RedirectURL: resp.RedirectURL}, nil
}

func (m *Midtrans) CheckStatus(ctx context.Context, orderID string) (_ *Status, err error) {
	_, span := observability.StartClientSpan(ctx, "midtrans", "core.check_transaction")
	defer func() { span.End(err) }()

	resp, mErr := m.core.CheckTransaction(orderID)
	if mErr != nil {
		if mErr.StatusCode == http.StatusNotFound {
			return nil, ErrUnknownOrder
		}
		return nil, fmt.Errorf("%w: %s", ErrGatewayUnavailable, mErr.Message)
	}
	if resp.StatusCode == "404" {
		return nil, ErrUnknownOrder
	}
	return &Status{
		OrderID:           resp.OrderID,
		TransactionID:     resp.TransactionID,
		TransactionStatus: resp.TransactionStatus,
		FraudStatus:       resp.FraudStatus,
		GrossAmount:       resp.GrossAmount,
		Outcome:           MapStatus(resp.TransactionStatus, resp.FraudStatus),
	}, nil
}

func (m *Midtrans) VerifyNotification(n Notification) bool {
	return VerifySignature(n, m.serverKey)
}

// truncate keeps at most n runes of s.
func truncate(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n])
}
