package models

import (
	"context"
	"errors"
	"fmt"

	"github.com/stageworks/roster_backend/config"
	"github.com/stageworks/roster_backend/utils"
	"gorm.io/gorm"
)

var (
	ErrPaymentNotActive = errors.New("payment is not active")
	ErrPaymentLocked    = errors.New("payment is being reconciled by another request")
)

const paymentLockType = "PaymentReconciliation"

type AssignPaymentInput struct {
	UnmatchedPaymentId int   `json:"unmatched_payment_id" validate:"required"`
	MemberId           int   `json:"member_id" validate:"required"`
	PaymentScheduleId  *int  `json:"payment_schedule_id"`
	IsLate             *bool `json:"is_late"`
}

func lockPayment(ctx context.Context, key string, funcName string) (func(), error) {
	release, err := utils.ObtainLock(ctx, paymentLockType, key, "PaymentReconciliation", funcName)
	if errors.Is(err, utils.ErrResourceLocked) {
		return release, ErrPaymentLocked
	}
	return release, err
}

// AssignUnmatchedPayment moves a pool payment onto a member's ledger.
// Lateness: explicit override, else derived from the schedule, else false.
func AssignUnmatchedPayment(ctx context.Context, input AssignPaymentInput) (*Payment, error) {
	release, err := lockPayment(ctx, fmt.Sprintf("unmatched:%d", input.UnmatchedPaymentId), "AssignUnmatchedPayment")
	defer release()
	if err != nil {
		return nil, err
	}

	var payment Payment
	err = config.GetDB().WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var unmatched UnmatchedPayment
		if err := tx.First(&unmatched, input.UnmatchedPaymentId).Error; err != nil {
			return notFoundOr(err)
		}
		var member Member
		if err := tx.Select("id").First(&member, input.MemberId).Error; err != nil {
			return notFoundOr(err)
		}
		var schedule *PaymentSchedule
		if input.PaymentScheduleId != nil {
			var s PaymentSchedule
			if err := tx.First(&s, *input.PaymentScheduleId).Error; err != nil {
				return notFoundOr(err)
			}
			schedule = &s
		}

		payment = Payment{
			MemberId:          member.ID,
			Amount:            unmatched.Amount,
			PaymentDate:       unmatched.PaymentDate,
			Method:            unmatched.Method,
			ExternalPaymentId: unmatched.ExternalPaymentId,
			CardBrand:         unmatched.CardBrand,
			CardLast4:         unmatched.CardLast4,
			CustomerName:      unmatched.CustomerName,
			CustomerEmail:     unmatched.CustomerEmail,
			Note:              unmatched.Notes,
			PaymentScheduleId: input.PaymentScheduleId,
			IsActive:          utils.NewTrue(),
			AssignedBy:        utils.ActorFromContext(ctx),
		}
		switch {
		case input.IsLate != nil:
			payment.IsLate = *input.IsLate
		case schedule != nil:
			payment.IsLate = payment.DerivedLate(schedule)
		}

		if err := tx.Create(&payment).Error; err != nil {
			return err
		}
		return tx.Delete(&unmatched).Error
	})
	if err != nil {
		return nil, err
	}
	return &payment, nil
}

// UnassignPayment deactivates an active payment and returns a fresh pool row carrying its source attributes.
func UnassignPayment(ctx context.Context, paymentId int) (*UnmatchedPayment, error) {
	release, err := lockPayment(ctx, fmt.Sprintf("payment:%d", paymentId), "UnassignPayment")
	defer release()
	if err != nil {
		return nil, err
	}

	var unmatched UnmatchedPayment
	err = config.GetDB().WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var payment Payment
		if err := tx.First(&payment, paymentId).Error; err != nil {
			return notFoundOr(err)
		}
		if !payment.Active() {
			return ErrPaymentNotActive
		}
		res := tx.Model(&Payment{}).Where("id = ? AND is_active = ?", payment.ID, true).Update("is_active", false)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrPaymentNotActive
		}

		unmatched = UnmatchedPayment{
			Amount:            payment.Amount,
			PaymentDate:       payment.PaymentDate,
			Method:            payment.Method,
			ExternalPaymentId: payment.ExternalPaymentId,
			CardBrand:         payment.CardBrand,
			CardLast4:         payment.CardLast4,
			CustomerName:      payment.CustomerName,
			CustomerEmail:     payment.CustomerEmail,
			Notes:             payment.Note,
			Source:            UnmatchedSourceUnassigned,
		}
		return tx.Create(&unmatched).Error
	})
	if err != nil {
		return nil, err
	}
	return &unmatched, nil
}
