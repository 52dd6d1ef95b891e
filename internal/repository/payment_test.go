package repository

import (
	"context"
	"testing"
	"time"

	"scholarhub/internal/models"
	"scholarhub/internal/testutil"
	"scholarhub/internal/workflow"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/datatypes"
)

func TestPaymentRepository_MarkSessionPaidOnce(t *testing.T) {
	db := testutil.NewTestDB(t)
	repo := NewPaymentRepository(db)
	apps := NewApplicationRepository(db)
	ctx := context.Background()

	u := testutil.CreateUser(t, db, "ana@example.com", workflow.RoleStudent)
	s := testutil.CreateScholarship(t, db, nil)
	approved := workflow.State{Application: workflow.StatusApproved, Payment: workflow.PaymentUnpaid}
	app := testutil.CreateApplication(t, db, u, s, approved)

	session := &models.PaymentSession{SessionID: "sess-1", ApplicationID: app.ID, UserID: u.ID, Amount: 60, Currency: "USD", Status: models.SessionOpen}
	require.NoError(t, repo.CreateSession(ctx, session))

	open, err := repo.FindOpenSession(ctx, app.ID)
	require.NoError(t, err)
	require.NotNil(t, open)
	assert.Equal(t, "sess-1", open.SessionID)

	paid := workflow.State{Application: workflow.StatusApproved, Payment: workflow.PaymentPaid}
	ev := func() *models.TrackingEvent {
		return &models.TrackingEvent{TrackingID: app.TrackingID, Status: workflow.EventPaid, Amount: 60, TransactionID: "tx-1", PaymentStatus: workflow.PaymentPaid, CreatedAt: time.Now()}
	}
	require.NoError(t, repo.MarkSessionPaid(ctx, "sess-1", "tx-1", time.Now(), approved, paid, ev()))

	err = repo.MarkSessionPaid(ctx, "sess-1", "tx-1", time.Now(), approved, paid, ev())
	assert.ErrorIs(t, err, ErrSessionSettled)

	got, err := repo.GetSession(ctx, "sess-1")
	require.NoError(t, err)
	assert.Equal(t, models.SessionPaid, got.Status)
	assert.Equal(t, "tx-1", got.TransactionID)
	assert.NotNil(t, got.PaidAt)

	stored, err := apps.GetByID(ctx, app.ID)
	require.NoError(t, err)
	assert.Equal(t, paid, stored.State())

	events, err := apps.ListEvents(ctx, app.TrackingID)
	require.NoError(t, err)
	require.NoError(t, workflow.ValidateTimeline(models.TimelineEntries(events), stored.State()))
	assert.Equal(t, "tx-1", events[len(events)-1].TransactionID)

	total, err := repo.SumPaid(ctx)
	require.NoError(t, err)
	assert.InDelta(t, 60, total, 0.001)

	open, err = repo.FindOpenSession(ctx, app.ID)
	require.NoError(t, err)
	assert.Nil(t, open)
}

func TestPaymentRepository_MarkSessionPaidRollsBackWhenApplicationMoved(t *testing.T) {
	db := testutil.NewTestDB(t)
	repo := NewPaymentRepository(db)
	ctx := context.Background()

	u := testutil.CreateUser(t, db, "ana@example.com", workflow.RoleStudent)
	s := testutil.CreateScholarship(t, db, nil)
	app := testutil.CreateApplication(t, db, u, s, workflow.Initial)
	require.NoError(t, repo.CreateSession(ctx, &models.PaymentSession{SessionID: "sess-2", ApplicationID: app.ID, UserID: u.ID, Amount: 1, Currency: "USD"}))

	approved := workflow.State{Application: workflow.StatusApproved, Payment: workflow.PaymentUnpaid}
	paid := workflow.State{Application: workflow.StatusApproved, Payment: workflow.PaymentPaid}
	err := repo.MarkSessionPaid(ctx, "sess-2", "tx", time.Now(), approved, paid, &models.TrackingEvent{TrackingID: app.TrackingID, Status: workflow.EventPaid})
	assert.ErrorIs(t, err, ErrStaleState)

	got, err := repo.GetSession(ctx, "sess-2")
	require.NoError(t, err)
	assert.Equal(t, models.SessionOpen, got.Status, "session update rolled back")
}

func TestPaymentRepository_StatusAndGatewayEvents(t *testing.T) {
	db := testutil.NewTestDB(t)
	repo := NewPaymentRepository(db)
	ctx := context.Background()

	require.NoError(t, repo.CreateSession(ctx, &models.PaymentSession{SessionID: "sess-3", ApplicationID: 1, UserID: 1, Amount: 5, Currency: "USD"}))
	require.NoError(t, repo.MarkSessionStatus(ctx, "sess-3", models.SessionExpired))
	got, err := repo.GetSession(ctx, "sess-3")
	require.NoError(t, err)
	assert.Equal(t, models.SessionExpired, got.Status)

	_, err = repo.GetSession(ctx, "missing")
	assert.Equal(t, 404, models.StatusFor(err))

	ev := &models.PaymentGatewayEvent{SessionID: "sess-3", Provider: "midtrans", EventType: "expire", Payload: datatypes.JSON(`{"order_id":"sess-3"}`), Outcome: "expired"}
	require.NoError(t, repo.RecordGatewayEvent(ctx, ev))
	assert.NotZero(t, ev.ID)

	err = repo.CreateSession(ctx, &models.PaymentSession{SessionID: "sess-3", ApplicationID: 1, UserID: 1, Amount: 5, Currency: "USD"})
	assert.Equal(t, 409, models.StatusFor(err))
}
