package models

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stageworks/roster_backend/config"
	"github.com/stageworks/roster_backend/utils"
	"gorm.io/gorm"
)

var (
	ErrDuplicatePayment = errors.New("payment with this external id already exists")
	ErrInvalidAmount    = errors.New("amount must be greater than zero")
)

// UnmatchedPayment is a received payment not yet attributed to a member.
type UnmatchedPayment struct {
	ID                int             `gorm:"primary_key" json:"id"`
	Amount            decimal.Decimal `gorm:"type:decimal(12,2);not null" json:"amount"`
	PaymentDate       time.Time       `gorm:"not null" json:"payment_date"`
	Method            PaymentMethod   `gorm:"size:20;not null" json:"method"`
	ExternalPaymentId *string         `gorm:"size:100;uniqueIndex" json:"external_payment_id"`
	CardBrand         string          `gorm:"size:30" json:"card_brand"`
	CardLast4         string          `gorm:"size:4" json:"card_last4"`
	CustomerName      string          `gorm:"size:200" json:"customer_name"`
	CustomerEmail     string          `gorm:"size:255" json:"customer_email"`
	Notes             string          `gorm:"type:text" json:"notes"`
	Source            string          `gorm:"size:20;not null;default:manual" json:"source"`
	CreatedAt         time.Time       `gorm:"autoCreateTime" json:"created_at"`
}

type NewUnmatchedPayment struct {
	Amount            decimal.Decimal `json:"amount"`
	PaymentDate       time.Time       `json:"payment_date" validate:"required"`
	Method            PaymentMethod   `json:"method" validate:"required,oneof=card cash check other stripe"`
	ExternalPaymentId string          `json:"external_payment_id" validate:"max=100"`
	CardBrand         string          `json:"card_brand" validate:"max=30"`
	CardLast4         string          `json:"card_last4" validate:"omitempty,len=4,numeric"`
	CustomerName      string          `json:"customer_name" validate:"max=200"`
	CustomerEmail     string          `json:"customer_email" validate:"omitempty,email"`
	Notes             string          `json:"notes"`
	Source            string          `json:"source"`
}

// ExternalPaymentIdExists checks both pools, including deactivated payments.
func ExternalPaymentIdExists(ctx context.Context, db *gorm.DB, externalId string) (bool, error) {
	if externalId == "" {
		return false, nil
	}
	var count int64
	if err := db.WithContext(ctx).Model(&UnmatchedPayment{}).Where("external_payment_id = ?", externalId).Count(&count).Error; err != nil {
		return false, err
	}
	if count > 0 {
		return true, nil
	}
	if err := db.WithContext(ctx).Model(&Payment{}).Where("external_payment_id = ?", externalId).Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

// CreateUnmatchedPayment adds a payment to the pool. ErrDuplicatePayment when the external id is already known.
func CreateUnmatchedPayment(ctx context.Context, input *NewUnmatchedPayment) (*UnmatchedPayment, error) {
	input.ExternalPaymentId = strings.TrimSpace(input.ExternalPaymentId)
	if err := utils.GetValidator().Struct(input); err != nil {
		return nil, err
	}
	if !input.Amount.IsPositive() {
		return nil, ErrInvalidAmount
	}

	db := config.GetDB()
	exists, err := ExternalPaymentIdExists(ctx, db, input.ExternalPaymentId)
	if err != nil {
		return nil, err
	}
	if exists {
		return nil, ErrDuplicatePayment
	}

	source := input.Source
	if source == "" {
		source = UnmatchedSourceManual
	}
	payment := UnmatchedPayment{
		Amount:            input.Amount,
		PaymentDate:       input.PaymentDate,
		Method:            input.Method,
		ExternalPaymentId: utils.NilIfEmpty(input.ExternalPaymentId),
		CardBrand:         input.CardBrand,
		CardLast4:         input.CardLast4,
		CustomerName:      input.CustomerName,
		CustomerEmail:     input.CustomerEmail,
		Notes:             input.Notes,
		Source:            source,
	}
	if err := db.WithContext(ctx).Create(&payment).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, ErrDuplicatePayment
		}
		return nil, err
	}
	return &payment, nil
}

func GetUnmatchedPayment(ctx context.Context, id int) (*UnmatchedPayment, error) {
	var payment UnmatchedPayment
	if err := config.GetDB().WithContext(ctx).First(&payment, id).Error; err != nil {
		return nil, notFoundOr(err)
	}
	return &payment, nil
}

func ListUnmatchedPayments(ctx context.Context) ([]*UnmatchedPayment, error) {
	var results []*UnmatchedPayment
	if err := config.GetDB().WithContext(ctx).Order("payment_date DESC, id DESC").Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}

func notFoundOr(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return utils.ErrorRecordNotFound
	}
	return err
}
