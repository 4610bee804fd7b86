package models

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stageworks/roster_backend/config"
)

// Payment is a payment assigned to a member. Unassigning flips IsActive off rather than deleting.
type Payment struct {
	ID                int             `gorm:"primary_key" json:"id"`
	MemberId          int             `gorm:"index;not null" json:"member_id"`
	Amount            decimal.Decimal `gorm:"type:decimal(12,2);not null" json:"amount"`
	PaymentDate       time.Time       `gorm:"not null" json:"payment_date"`
	Method            PaymentMethod   `gorm:"size:20;not null" json:"method"`
	ExternalPaymentId *string         `gorm:"size:100;index" json:"external_payment_id"`
	CardBrand         string          `gorm:"size:30" json:"card_brand"`
	CardLast4         string          `gorm:"size:4" json:"card_last4"`
	CustomerName      string          `gorm:"size:200" json:"customer_name"`
	CustomerEmail     string          `gorm:"size:255" json:"customer_email"`
	Note              string          `gorm:"type:text" json:"note"`
	PaymentScheduleId *int            `gorm:"index" json:"payment_schedule_id"`
	IsActive          *bool           `gorm:"not null;default:true" json:"is_active"`
	IsLate            bool            `gorm:"not null;default:false" json:"is_late"`
	AssignedBy        string          `gorm:"size:100" json:"assigned_by"`
	CreatedAt         time.Time       `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt         time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
}

func (p Payment) Active() bool {
	return p.IsActive != nil && *p.IsActive
}

// DerivedLate compares calendar dates: late iff paid strictly after the schedule's due date.
// Without a schedule the persisted flag stands.
func (p Payment) DerivedLate(schedule *PaymentSchedule) bool {
	if schedule == nil {
		return p.IsLate
	}
	return dateOnly(p.PaymentDate).After(dateOnly(schedule.DueDate))
}

func dateOnly(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func GetPayment(ctx context.Context, id int) (*Payment, error) {
	var payment Payment
	if err := config.GetDB().WithContext(ctx).First(&payment, id).Error; err != nil {
		return nil, notFoundOr(err)
	}
	return &payment, nil
}

// ListMemberPayments returns a member's ledger; includeInactive keeps unassigned history rows.
func ListMemberPayments(ctx context.Context, memberId int, includeInactive bool) ([]*Payment, error) {
	q := config.GetDB().WithContext(ctx).Where("member_id = ?", memberId)
	if !includeInactive {
		q = q.Where("is_active = ?", true)
	}
	var results []*Payment
	if err := q.Order("payment_date, id").Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}

// ListSeasonPayments returns active payments of members enrolled in season.
func ListSeasonPayments(ctx context.Context, season string) ([]*Payment, error) {
	var results []*Payment
	err := config.GetDB().WithContext(ctx).
		Joins("JOIN members ON members.id = payments.member_id").
		Where("members.season = ? AND payments.is_active = ?", season, true).
		Order("payments.payment_date, payments.id").
		Find(&results).Error
	if err != nil {
		return nil, err
	}
	return results, nil
}
