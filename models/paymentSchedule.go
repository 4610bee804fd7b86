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

var ErrScheduleInUse = errors.New("payment schedule has payments and cannot be deleted")

// PaymentSchedule is one installment due date for a season.
type PaymentSchedule struct {
	ID        int             `gorm:"primary_key" json:"id"`
	Season    string          `gorm:"size:20;index;not null" json:"season"`
	Name      string          `gorm:"size:100;not null" json:"name"`
	DueDate   time.Time       `gorm:"not null" json:"due_date"`
	Amount    decimal.Decimal `gorm:"type:decimal(12,2);not null;default:0" json:"amount"`
	CreatedAt time.Time       `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
}

type NewPaymentSchedule struct {
	Season  string          `json:"season" validate:"required,max=20"`
	Name    string          `json:"name" validate:"required,max=100"`
	DueDate time.Time       `json:"due_date" validate:"required"`
	Amount  decimal.Decimal `json:"amount"`
}

func CreatePaymentSchedule(ctx context.Context, input *NewPaymentSchedule) (*PaymentSchedule, error) {
	input.Season = strings.TrimSpace(input.Season)
	input.Name = strings.TrimSpace(input.Name)
	if err := utils.GetValidator().Struct(input); err != nil {
		return nil, err
	}
	schedule := PaymentSchedule{
		Season:  input.Season,
		Name:    input.Name,
		DueDate: input.DueDate,
		Amount:  input.Amount,
	}
	if err := config.GetDB().WithContext(ctx).Create(&schedule).Error; err != nil {
		return nil, err
	}
	return &schedule, nil
}

// GetPaymentSchedule reads through the PaymentSchedule:$id cache.
func GetPaymentSchedule(ctx context.Context, id int) (*PaymentSchedule, error) {
	cached, err := utils.RetrieveRedis[PaymentSchedule](id)
	if err != nil {
		return nil, err
	}
	if cached != nil {
		return cached, nil
	}
	var schedule PaymentSchedule
	if err := config.GetDB().WithContext(ctx).First(&schedule, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, utils.ErrorRecordNotFound
		}
		return nil, err
	}
	if err := utils.StoreRedis[PaymentSchedule](&schedule, id); err != nil {
		return nil, err
	}
	return &schedule, nil
}

func UpdatePaymentSchedule(ctx context.Context, id int, input *NewPaymentSchedule) (*PaymentSchedule, error) {
	input.Season = strings.TrimSpace(input.Season)
	input.Name = strings.TrimSpace(input.Name)
	if err := utils.GetValidator().Struct(input); err != nil {
		return nil, err
	}
	db := config.GetDB()
	var schedule PaymentSchedule
	if err := db.WithContext(ctx).First(&schedule, id).Error; err != nil {
		return nil, notFoundOr(err)
	}
	schedule.Season = input.Season
	schedule.Name = input.Name
	schedule.DueDate = input.DueDate
	schedule.Amount = input.Amount
	if err := db.WithContext(ctx).Save(&schedule).Error; err != nil {
		return nil, err
	}
	if err := utils.RemoveRedisItem[PaymentSchedule](id); err != nil {
		return nil, err
	}
	return &schedule, nil
}

// DeletePaymentSchedule refuses while any payment, active or not, points at the schedule.
func DeletePaymentSchedule(ctx context.Context, id int) (*PaymentSchedule, error) {
	db := config.GetDB()
	var schedule PaymentSchedule
	if err := db.WithContext(ctx).First(&schedule, id).Error; err != nil {
		return nil, notFoundOr(err)
	}
	var count int64
	if err := db.WithContext(ctx).Model(&Payment{}).Where("payment_schedule_id = ?", id).Count(&count).Error; err != nil {
		return nil, err
	}
	if count > 0 {
		return nil, ErrScheduleInUse
	}
	if err := db.WithContext(ctx).Delete(&schedule).Error; err != nil {
		return nil, err
	}
	if err := utils.RemoveRedisItem[PaymentSchedule](id); err != nil {
		return nil, err
	}
	return &schedule, nil
}

func GetPaymentSchedulesByIds(ctx context.Context, ids []int) ([]*PaymentSchedule, error) {
	var results []*PaymentSchedule
	if err := config.GetDB().WithContext(ctx).Where("id IN ?", utils.UniqueSlice(ids)).Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}

func ListPaymentSchedules(ctx context.Context, season string) ([]*PaymentSchedule, error) {
	q := config.GetDB().WithContext(ctx).Model(&PaymentSchedule{})
	if season != "" {
		q = q.Where("season = ?", season)
	}
	var results []*PaymentSchedule
	if err := q.Order("due_date, id").Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}
