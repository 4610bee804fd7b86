package ledger

import (
	"bytes"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stageworks/roster_backend/models"
	"github.com/stageworks/roster_backend/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stripe/stripe-go/v76"
	"github.com/stripe/stripe-go/v76/webhook"
)

func TestChargeToUnmatched(t *testing.T) {
	created := time.Date(2024, time.September, 3, 17, 4, 5, 0, time.UTC)
	ch := &stripe.Charge{
		ID:           "ch_3Pabc",
		Amount:       12550,
		Created:      created.Unix(),
		Description:  "Fall tuition",
		ReceiptEmail: "receipt@example.com",
		BillingDetails: &stripe.ChargeBillingDetails{
			Name: "Pat Parent",
		},
		PaymentMethodDetails: &stripe.ChargePaymentMethodDetails{
			Card: &stripe.ChargePaymentMethodDetailsCard{Brand: "visa", Last4: "4242"},
		},
	}

	got := ChargeToUnmatched(ch)
	assert.Equal(t, "125.5", got.Amount.String())
	assert.True(t, got.PaymentDate.Equal(created))
	assert.Equal(t, models.PaymentMethodCard, got.Method)
	assert.Equal(t, "visa", got.CardBrand)
	assert.Equal(t, "4242", got.CardLast4)
	assert.Equal(t, "Pat Parent", got.CustomerName)
	assert.Equal(t, "receipt@example.com", got.CustomerEmail)
	assert.Equal(t, "Fall tuition", got.Notes)
	assert.Equal(t, models.UnmatchedSourceStripe, got.Source)

	bare := ChargeToUnmatched(&stripe.Charge{ID: "ch_2", Amount: 500, ReceiptEmail: "nope"})
	assert.Equal(t, models.PaymentMethodStripe, bare.Method)
	assert.Empty(t, bare.CustomerEmail)
}

func signedEvent(t *testing.T, secret string, eventType string, chargeId string) *webhook.SignedPayload {
	t.Helper()
	payload := fmt.Sprintf(`{
		"id": "evt_%s",
		"object": "event",
		"type": %q,
		"api_version": "2020-08-27",
		"data": {"object": {
			"id": %q, "object": "charge", "amount": 5000, "created": 1725382800,
			"billing_details": {"name": "Pat Parent", "email": "pat@example.com"}
		}}
	}`, chargeId, eventType, chargeId)
	return webhook.GenerateTestSignedPayload(&webhook.UnsignedPayload{Payload: []byte(payload), Secret: secret})
}

func postWebhook(r http.Handler, signed *webhook.SignedPayload) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/webhooks/stripe", bytes.NewReader(signed.Payload))
	req.Header.Set("Stripe-Signature", signed.Header)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestStripeWebhookRecordsCharges(t *testing.T) {
	testutil.NewTestDB(t)
	t.Setenv("STRIPE_WEBHOOK_SECRET", "whsec_test")
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.POST("/webhooks/stripe", StripeWebhookHandler())

	w := postWebhook(r, signedEvent(t, "whsec_test", "charge.succeeded", "ch_100"))
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	w = postWebhook(r, signedEvent(t, "whsec_test", "charge.succeeded", "ch_100"))
	assert.Equal(t, http.StatusNoContent, w.Code, "a replayed charge is acknowledged")

	w = postWebhook(r, signedEvent(t, "whsec_test", "charge.refunded", "ch_101"))
	assert.Equal(t, http.StatusNoContent, w.Code)

	w = postWebhook(r, signedEvent(t, "whsec_other", "charge.succeeded", "ch_102"))
	assert.Equal(t, http.StatusBadRequest, w.Code)

	pool, err := models.ListUnmatchedPayments(testutil.Ctx("staff"))
	require.NoError(t, err)
	require.Len(t, pool, 1)
	assert.Equal(t, "pat@example.com", pool[0].CustomerEmail)
	assert.Equal(t, "50", pool[0].Amount.String())
}

func TestStripeWebhookRequiresSecret(t *testing.T) {
	t.Setenv("STRIPE_WEBHOOK_SECRET", "")
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.POST("/webhooks/stripe", StripeWebhookHandler())

	w := postWebhook(r, signedEvent(t, "whsec_test", "charge.succeeded", "ch_1"))
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}
