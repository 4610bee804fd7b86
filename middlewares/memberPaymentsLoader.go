package middlewares

import (
	"context"

	"github.com/graph-gophers/dataloader/v7"
	"github.com/stageworks/roster_backend/models"
	"gorm.io/gorm"
)

type memberPaymentsReader struct {
	db *gorm.DB
}

// active payments only
func (r *memberPaymentsReader) getMemberPayments(ctx context.Context, memberIds []int) []*dataloader.Result[[]*models.Payment] {
	var results []models.Payment
	err := r.db.WithContext(ctx).
		Where("member_id IN ? AND is_active = ?", memberIds, true).
		Order("payment_date, id").
		Find(&results).Error
	if err != nil {
		return handleError[[]*models.Payment](len(memberIds), err)
	}
	return generateLoaderArrayResults(results, memberIds)
}

func GetMembersPayments(ctx context.Context, memberIds []int) ([][]*models.Payment, []error) {
	loaders := For(ctx)
	return loaders.memberPaymentsLoader.LoadMany(ctx, memberIds)()
}
