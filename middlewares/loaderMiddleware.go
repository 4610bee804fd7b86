package middlewares

import (
	"context"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/graph-gophers/dataloader/v7"
	"github.com/stageworks/roster_backend/config"
	"github.com/stageworks/roster_backend/models"
	"gorm.io/gorm"
)

type ctxKey string

const (
	loadersKey = ctxKey("dataloaders")
)

// Loaders wrap the request-scoped data loaders injected via middleware
type Loaders struct {
	memberLoader          *dataloader.Loader[int, *models.Member]
	paymentScheduleLoader *dataloader.Loader[int, *models.PaymentSchedule]
	memberPaymentsLoader  *dataloader.Loader[int, []*models.Payment]
}

// NewLoaders instantiates data loaders for the middleware
func NewLoaders(conn *gorm.DB) *Loaders {
	mr := &memberReader{db: conn}
	sr := &paymentScheduleReader{db: conn}
	pr := &memberPaymentsReader{db: conn}
	return &Loaders{
		memberLoader:          dataloader.NewBatchedLoader(mr.getMembers, dataloader.WithWait[int, *models.Member](time.Millisecond)),
		paymentScheduleLoader: dataloader.NewBatchedLoader(sr.getPaymentSchedules, dataloader.WithWait[int, *models.PaymentSchedule](time.Millisecond)),
		memberPaymentsLoader:  dataloader.NewBatchedLoader(pr.getMemberPayments, dataloader.WithWait[int, []*models.Payment](time.Millisecond)),
	}
}

func LoaderMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		loader := NewLoaders(config.GetDB())
		ctx := WithLoaders(c.Request.Context(), loader)
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}

func WithLoaders(ctx context.Context, loaders *Loaders) context.Context {
	return context.WithValue(ctx, loadersKey, loaders)
}

// For returns the request's loaders, building a fresh set when none were injected.
func For(ctx context.Context) *Loaders {
	if loaders, ok := ctx.Value(loadersKey).(*Loaders); ok {
		return loaders
	}
	return NewLoaders(config.GetDB())
}

// handleError creates array of result with the same error repeated for as many items requested
func handleError[T any](itemsLength int, err error) []*dataloader.Result[T] {
	result := make([]*dataloader.Result[T], itemsLength)
	for i := 0; i < itemsLength; i++ {
		result[i] = &dataloader.Result[T]{Error: err}
	}
	return result
}

// turns results from db into dataloader results, one per requested id.
// Missing ids resolve to nil data.
func generateLoaderResults[T models.Identifier](results []T, ids []int) []*dataloader.Result[*T] {
	resultMap := make(map[int]*T, len(results))
	for i := range results {
		resultMap[results[i].GetId()] = &results[i]
	}

	loaderResults := make([]*dataloader.Result[*T], 0, len(ids))
	for _, id := range ids {
		loaderResults = append(loaderResults, &dataloader.Result[*T]{Data: resultMap[id]})
	}
	return loaderResults
}

// each id has many related results
func generateLoaderArrayResults[T models.RelatedData](results []T, referenceIds []int) (loaderResults []*dataloader.Result[[]*T]) {
	resultMap := make(map[int][]*T)
	for _, result := range results {
		// creating a new variable every turn, to avoid pointing to the adddress of result
		copy := result
		resultMap[result.GetReferenceId()] = append(resultMap[result.GetReferenceId()], &copy)
	}
	for _, id := range referenceIds {
		resultArray := resultMap[id]
		loaderResults = append(loaderResults, &dataloader.Result[[]*T]{Data: resultArray})
	}
	return loaderResults
}
