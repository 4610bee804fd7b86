package models_test

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stageworks/roster_backend/models"
	"github.com/stageworks/roster_backend/testutil"
	"github.com/stageworks/roster_backend/utils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPaymentScheduleLifecycle(t *testing.T) {
	db := testutil.NewTestDB(t)
	ctx := testutil.Ctx("admin")

	schedule := seedSchedule(t, day(2024, time.September, 1))
	got, err := models.GetPaymentSchedule(ctx, schedule.ID)
	require.NoError(t, err)
	assert.Equal(t, "Fall installment", got.Name)

	updated, err := models.UpdatePaymentSchedule(ctx, schedule.ID, &models.NewPaymentSchedule{
		Season: "2024-2025", Name: "Fall (revised)", DueDate: day(2024, time.September, 15), Amount: decimal.NewFromInt(175),
	})
	require.NoError(t, err)
	assert.Equal(t, "Fall (revised)", updated.Name)
	assert.True(t, updated.Amount.Equal(decimal.NewFromInt(175)))

	member := testutil.SeedMember(t, db, models.Member{Email: "sched@example.com"})
	require.NoError(t, db.Create(&models.Payment{
		MemberId:          member.ID,
		Amount:            decimal.NewFromInt(175),
		PaymentDate:       day(2024, time.September, 10),
		Method:            models.PaymentMethodCheck,
		PaymentScheduleId: &schedule.ID,
		IsActive:          utils.NewTrue(),
	}).Error)

	_, err = models.DeletePaymentSchedule(ctx, schedule.ID)
	assert.ErrorIs(t, err, models.ErrScheduleInUse)

	spare := seedSchedule(t, day(2025, time.January, 1))
	_, err = models.DeletePaymentSchedule(ctx, spare.ID)
	require.NoError(t, err)
	_, err = models.GetPaymentSchedule(ctx, spare.ID)
	assert.ErrorIs(t, err, utils.ErrorRecordNotFound)

	list, err := models.ListPaymentSchedules(ctx, "2024-2025")
	require.NoError(t, err)
	assert.Len(t, list, 1)
}
