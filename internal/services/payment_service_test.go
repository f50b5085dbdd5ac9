package services

import (
	"context"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"topup-service/internal/gateway"
	"topup-service/internal/models"
)

func TestOpenCheckoutCreatesSingleAttempt(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()
	acct := e.seedAccount(t)

	order, _, err := e.orderS.Create(ctx, acct.ID, dec("50"), "fakepay")
	require.NoError(t, err)

	att, err := e.payS.OpenCheckout(ctx, acct.ID, order.ID)
	require.NoError(t, err)
	assert.Equal(t, "sess-"+att.ID, att.ExternalID)
	assert.NotEmpty(t, att.CheckoutURL)

	// Second call returns the same attempt and opens no new session.
	again, err := e.payS.OpenCheckout(ctx, acct.ID, order.ID)
	require.NoError(t, err)
	assert.Equal(t, att.ID, again.ID)
	assert.Equal(t, att.CheckoutURL, again.CheckoutURL)
	assert.Equal(t, 1, e.gw.sessions)
}

func TestOpenCheckoutResumesSessionWithoutURL(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()
	acct := e.seedAccount(t)
	_, att := e.seedOrderWithAttempt(t, acct.ID, "50")

	// Simulate a crash between session creation and URL storage.
	a := e.store.attempts[att.ID]
	a.CheckoutURL = ""
	e.store.attempts[att.ID] = a

	got, err := e.payS.OpenCheckout(ctx, acct.ID, att.OrderID)
	require.NoError(t, err)
	assert.Equal(t, "https://pay.example/resume/"+att.ExternalID, got.CheckoutURL)
	assert.Equal(t, 1, e.gw.sessions)
}

func TestOpenCheckoutRejectsNonPendingOrder(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()
	acct := e.seedAccount(t)

	order, _, err := e.orderS.Create(ctx, acct.ID, dec("50"), "fakepay")
	require.NoError(t, err)
	require.NoError(t, e.orders.SetStatus(ctx, nil, order.ID, models.OrderCancelled))

	_, err = e.payS.OpenCheckout(ctx, acct.ID, order.ID)
	assert.ErrorIs(t, err, ErrOrderNotPending)
}

func TestHandleWebhookSettlesApprovedPayment(t *testing.T) {
	e := newTestEnv(t)
	e.seedTier(t, "10", "", "10", 1)
	ctx := context.Background()
	acct := e.seedAccount(t)
	_, att := e.seedOrderWithAttempt(t, acct.ID, "50")

	e.gw.byExternal["ext-1"] = gateway.PaymentInfo{Status: gateway.StatusApproved, AttemptID: att.ID}

	req := httptest.NewRequest("POST", "/webhooks/fakepay", nil)
	require.NoError(t, e.payS.HandleWebhook(ctx, "fakepay", req, []byte(`{}`)))

	a, err := e.attempts.GetByID(ctx, att.ID)
	require.NoError(t, err)
	assert.Equal(t, models.AttemptPaid, a.Status)

	w, err := e.wallets.GetByAccount(ctx, acct.ID)
	require.NoError(t, err)
	assert.True(t, w.Balance.Equal(dec("50")))
	assert.True(t, w.BonusBalance.Equal(dec("5")))
}

func TestHandleWebhookUnknownLocalAttempt(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()

	// The gateway knows the payment but it references no attempt of ours.
	e.gw.byExternal["ext-1"] = gateway.PaymentInfo{Status: gateway.StatusApproved, AttemptID: "not-ours"}

	req := httptest.NewRequest("POST", "/webhooks/fakepay", nil)
	err := e.payS.HandleWebhook(ctx, "fakepay", req, []byte(`{}`))
	assert.ErrorIs(t, err, ErrAttemptNotFound)
}

func TestHandleWebhookDuplicateDeliveriesCreditOnce(t *testing.T) {
	e := newTestEnv(t)
	e.seedTier(t, "10", "", "10", 1)
	ctx := context.Background()
	acct := e.seedAccount(t)
	_, att := e.seedOrderWithAttempt(t, acct.ID, "50")

	e.gw.byExternal["ext-1"] = gateway.PaymentInfo{Status: gateway.StatusApproved, AttemptID: att.ID}

	for i := 0; i < 5; i++ {
		req := httptest.NewRequest("POST", "/webhooks/fakepay", nil)
		require.NoError(t, e.payS.HandleWebhook(ctx, "fakepay", req, []byte(`{}`)))
	}

	// Duplicate deliveries are re-checked asynchronously; wait for the
	// no-op passes to drain.
	require.Eventually(t, func() bool {
		a, err := e.attempts.GetByID(ctx, att.ID)
		return err == nil && a.Status == models.AttemptPaid
	}, 2*time.Second, 10*time.Millisecond)
	time.Sleep(50 * time.Millisecond)

	w, err := e.wallets.GetByAccount(ctx, acct.ID)
	require.NoError(t, err)
	assert.True(t, w.Balance.Equal(dec("50")))
	assert.Len(t, e.store.entries, 2)
	assert.Len(t, e.store.hooks, 1)
}

func TestHandleWebhookUnknownGateway(t *testing.T) {
	e := newTestEnv(t)
	req := httptest.NewRequest("POST", "/webhooks/nope", nil)
	err := e.payS.HandleWebhook(context.Background(), "nope", req, nil)
	assert.ErrorIs(t, err, ErrGatewayUnknown)
}

func TestHandleReturnSettlesViaExternalReference(t *testing.T) {
	e := newTestEnv(t)
	e.seedTier(t, "10", "", "10", 1)
	ctx := context.Background()
	acct := e.seedAccount(t)
	_, att := e.seedOrderWithAttempt(t, acct.ID, "50")

	e.gw.setAttemptStatus(att.ID, gateway.StatusApproved)

	st, err := e.payS.HandleReturn(ctx, url.Values{"external_reference": {att.ID}})
	require.NoError(t, err)
	assert.Equal(t, gateway.StatusApproved, st)

	a, err := e.attempts.GetByID(ctx, att.ID)
	require.NoError(t, err)
	assert.Equal(t, models.AttemptPaid, a.Status)
}

func TestHandleReturnIgnoresClaimedStatus(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()
	acct := e.seedAccount(t)
	_, att := e.seedOrderWithAttempt(t, acct.ID, "50")

	// Redirect says approved; gateway still reports pending. Nothing moves.
	st, err := e.payS.HandleReturn(ctx, url.Values{
		"external_reference": {att.ID},
		"status":             {"approved"},
	})
	require.NoError(t, err)
	assert.Equal(t, gateway.StatusPending, st)

	a, err := e.attempts.GetByID(ctx, att.ID)
	require.NoError(t, err)
	assert.Equal(t, models.AttemptPending, a.Status)
	assert.Empty(t, e.store.entries)
}

func TestStatusPollSettlesApprovedAttempt(t *testing.T) {
	e := newTestEnv(t)
	e.seedTier(t, "10", "", "10", 1)
	ctx := context.Background()
	acct := e.seedAccount(t)
	_, att := e.seedOrderWithAttempt(t, acct.ID, "50")

	e.gw.setAttemptStatus(att.ID, gateway.StatusApproved)

	got, err := e.payS.Status(ctx, acct.ID, att.ID)
	require.NoError(t, err)
	assert.Equal(t, models.AttemptPaid, got.PaymentStatus)
	assert.Equal(t, models.OrderCompleted, got.OrderStatus)
	assert.True(t, got.Completed)
}

func TestStatusPollRejectsForeignAttempt(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()
	acct := e.seedAccount(t)
	other, err := e.accounts.Create(ctx, "other", "other@example.com", "x", "user")
	require.NoError(t, err)
	_, att := e.seedOrderWithAttempt(t, acct.ID, "50")

	_, err = e.payS.Status(ctx, other.ID, att.ID)
	assert.ErrorIs(t, err, ErrNotOwner)
}

func TestConfirmSettlesWithoutGateway(t *testing.T) {
	e := newTestEnv(t)
	e.seedTier(t, "10", "", "10", 1)
	ctx := context.Background()
	acct := e.seedAccount(t)
	order, _ := e.seedOrderWithAttempt(t, acct.ID, "50")

	// Gateway unreachable; staff confirms anyway.
	e.gw.lookupErr = assert.AnError

	att, err := e.payS.Confirm(ctx, order.ID)
	require.NoError(t, err)
	assert.Equal(t, models.AttemptPaid, att.Status)

	// Confirming again is harmless.
	att, err = e.payS.Confirm(ctx, order.ID)
	require.NoError(t, err)
	assert.Equal(t, models.AttemptPaid, att.Status)
	assert.Len(t, e.store.entries, 2)
}

func TestConfirmWithoutAttempt(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()
	acct := e.seedAccount(t)
	order, _, err := e.orderS.Create(ctx, acct.ID, dec("50"), "fakepay")
	require.NoError(t, err)

	_, err = e.payS.Confirm(ctx, order.ID)
	assert.ErrorIs(t, err, ErrAttemptNotFound)
}
