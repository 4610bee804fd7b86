package middlewares

import (
	"context"

	"github.com/graph-gophers/dataloader/v7"
	"github.com/stageworks/roster_backend/models"
	"gorm.io/gorm"
)

type memberReader struct {
	db *gorm.DB
}

func (r *memberReader) getMembers(ctx context.Context, ids []int) []*dataloader.Result[*models.Member] {
	var results []models.Member
	err := r.db.WithContext(ctx).Where("id IN ?", ids).Find(&results).Error
	if err != nil {
		return handleError[*models.Member](len(ids), err)
	}
	return generateLoaderResults(results, ids)
}

func GetMember(ctx context.Context, id int) (*models.Member, error) {
	loaders := For(ctx)
	return loaders.memberLoader.Load(ctx, id)()
}

func GetMembers(ctx context.Context, ids []int) ([]*models.Member, []error) {
	loaders := For(ctx)
	return loaders.memberLoader.LoadMany(ctx, ids)()
}
