package payment

import (
	"context"
	"sync"
)

// Fake is an in-memory Gateway for tests and local runs without provider
// credentials. Orders start pending; Settle marks one paid.
type Fake struct {
	mu        sync.Mutex
	ServerKey string
	BaseURL   string
	// Err, when set, is returned by every gateway call.
	Err     error
	orders  map[string]*Status
	Created []CheckoutRequest
}

// NewFake returns a Fake that signs notifications with serverKey.
func NewFake(serverKey string) *Fake {
	return &Fake{ServerKey: serverKey, BaseURL: "https://checkout.test/pay/", orders: make(map[string]*Status)}
}

func (f *Fake) Name() string { return "fake" }

func (f *Fake) CreateCheckout(_ context.Context, req CheckoutRequest) (*Checkout, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.Err != nil {
		return nil, f.Err
	}
	f.Created = append(f.Created, req)
	f.orders[req.OrderID] = &Status{
		OrderID:           req.OrderID,
		TransactionStatus: "pending",
		GrossAmount:       FormatMinor(req.GrossAmount, req.Currency),
		Outcome:           OutcomePending,
	}
	return &Checkout{Token: "tok-" + req.OrderID, RedirectURL: f.BaseURL + req.OrderID}, nil
}

func (f *Fake) CheckStatus(_ context.Context, orderID string) (*Status, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.Err != nil {
		return nil, f.Err
	}
	st, ok := f.orders[orderID]
	if !ok {
		return nil, ErrUnknownOrder
	}
	cp := *st
	return &cp, nil
}

func (f *Fake) VerifyNotification(n Notification) bool {
	return VerifySignature(n, f.ServerKey)
}

// Settle marks an order paid under transactionID.
func (f *Fake) Settle(orderID, transactionID string) {
	f.setStatus(orderID, transactionID, "settlement")
}

// SettleAmount marks an order paid with a gross amount other than the one
// it was opened for.
func (f *Fake) SettleAmount(orderID, transactionID, grossAmount string) {
	f.setStatus(orderID, transactionID, "settlement")
	f.mu.Lock()
	defer f.mu.Unlock()
	f.orders[orderID].GrossAmount = grossAmount
}

// Expire marks an order expired.
func (f *Fake) Expire(orderID string) {
	f.setStatus(orderID, "", "expire")
}

func (f *Fake) setStatus(orderID, transactionID, status string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	st, ok := f.orders[orderID]
	if !ok {
		st = &Status{OrderID: orderID}
		f.orders[orderID] = st
	}
	st.TransactionStatus = status
	if transactionID != "" {
		st.TransactionID = transactionID
	}
	st.Outcome = MapStatus(status, "")
}

// SignedNotification builds a webhook body for orderID signed with the
// fake's key.
func (f *Fake) SignedNotification(orderID, transactionID, status, grossAmount string) Notification {
	n := Notification{
		TransactionStatus: status,
		StatusCode:        "200",
		OrderID:           orderID,
		GrossAmount:       grossAmount,
		TransactionID:     transactionID,
	}
	n.SignatureKey = Sign(n, f.ServerKey)
	return n
}
