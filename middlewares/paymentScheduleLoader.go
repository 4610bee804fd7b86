package middlewares

import (
	"context"

	"github.com/graph-gophers/dataloader/v7"
	"github.com/stageworks/roster_backend/models"
	"gorm.io/gorm"
)

type paymentScheduleReader struct {
	db *gorm.DB
}

func (r *paymentScheduleReader) getPaymentSchedules(ctx context.Context, ids []int) []*dataloader.Result[*models.PaymentSchedule] {
	var results []models.PaymentSchedule
	err := r.db.WithContext(ctx).Where("id IN ?", ids).Find(&results).Error
	if err != nil {
		return handleError[*models.PaymentSchedule](len(ids), err)
	}
	return generateLoaderResults(results, ids)
}

// GetPaymentSchedule returns nil, nil for an id with no schedule row.
func GetPaymentSchedule(ctx context.Context, id int) (*models.PaymentSchedule, error) {
	loaders := For(ctx)
	return loaders.paymentScheduleLoader.Load(ctx, id)()
}

func GetPaymentSchedules(ctx context.Context, ids []int) ([]*models.PaymentSchedule, []error) {
	loaders := For(ctx)
	return loaders.paymentScheduleLoader.LoadMany(ctx, ids)()
}
