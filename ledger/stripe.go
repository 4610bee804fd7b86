package ledger

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"github.com/stageworks/roster_backend/config"
	"github.com/stageworks/roster_backend/models"
	"github.com/stageworks/roster_backend/utils"
	"github.com/stripe/stripe-go/v76"
	"github.com/stripe/stripe-go/v76/webhook"
)

const maxWebhookBody = int64(65536)

// ChargeToUnmatched converts a succeeded charge into a pool entry. Amounts arrive in
// the currency's minor unit.
func ChargeToUnmatched(ch *stripe.Charge) *models.NewUnmatchedPayment {
	input := &models.NewUnmatchedPayment{
		Amount:            decimal.New(ch.Amount, -2),
		PaymentDate:       time.Unix(ch.Created, 0).UTC(),
		Method:            models.PaymentMethodStripe,
		ExternalPaymentId: ch.ID,
		Notes:             ch.Description,
		Source:            models.UnmatchedSourceStripe,
	}
	if ch.BillingDetails != nil {
		input.CustomerName = ch.BillingDetails.Name
		input.CustomerEmail = ch.BillingDetails.Email
	}
	if input.CustomerEmail == "" {
		input.CustomerEmail = ch.ReceiptEmail
	}
	if ch.PaymentMethodDetails != nil && ch.PaymentMethodDetails.Card != nil {
		input.Method = models.PaymentMethodCard
		input.CardBrand = string(ch.PaymentMethodDetails.Card.Brand)
		input.CardLast4 = ch.PaymentMethodDetails.Card.Last4
	}
	input.CustomerEmail = strings.TrimSpace(input.CustomerEmail)
	if !utils.IsValidEmail(input.CustomerEmail) {
		input.CustomerEmail = ""
	}
	return input
}

// StripeWebhookHandler records succeeded charges in the unmatched pool. Replayed
// events whose charge is already known are acknowledged without a new row.
func StripeWebhookHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		logger := config.GetLogger()
		secret := os.Getenv("STRIPE_WEBHOOK_SECRET")
		if secret == "" {
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": "stripe webhook is not configured"})
			return
		}

		payload, err := io.ReadAll(io.LimitReader(c.Request.Body, maxWebhookBody))
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
			return
		}
		event, err := webhook.ConstructEventWithOptions(payload, c.GetHeader("Stripe-Signature"), secret,
			webhook.ConstructEventOptions{IgnoreAPIVersionMismatch: true})
		if err != nil {
			config.LogError(logger, "ledger", "StripeWebhookHandler", "ConstructEvent", nil, err)
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid signature"})
			return
		}

		if event.Type != stripe.EventTypeChargeSucceeded {
			c.Status(http.StatusNoContent)
			return
		}
		var charge stripe.Charge
		if err := json.Unmarshal(event.Data.Raw, &charge); err != nil {
			config.LogError(logger, "ledger", "StripeWebhookHandler", "Unmarshal charge", event.ID, err)
			c.JSON(http.StatusBadRequest, gin.H{"error": "malformed charge"})
			return
		}

		payment, err := models.CreateUnmatchedPayment(c.Request.Context(), ChargeToUnmatched(&charge))
		if errors.Is(err, models.ErrDuplicatePayment) {
			logger.WithFields(logrus.Fields{"module": "ledger", "chargeId": charge.ID, "eventId": event.ID}).
				Info("stripe charge already recorded")
			c.Status(http.StatusNoContent)
			return
		}
		if err != nil {
			config.LogError(logger, "ledger", "StripeWebhookHandler", "CreateUnmatchedPayment", charge.ID, err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusCreated, payment)
	}
}
