package middlewares

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stageworks/roster_backend/models"
	"github.com/stageworks/roster_backend/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemberLoaderKeepsRequestOrder(t *testing.T) {
	db := testutil.NewTestDB(t)
	a := testutil.SeedMember(t, db, models.Member{Email: "a@example.com", FirstName: "A"})
	b := testutil.SeedMember(t, db, models.Member{Email: "b@example.com", FirstName: "B"})
	ctx := WithLoaders(context.Background(), NewLoaders(db))

	members, errs := GetMembers(ctx, []int{b.ID, 999, a.ID})
	for _, err := range errs {
		assert.NoError(t, err)
	}
	require.Len(t, members, 3)
	assert.Equal(t, "B", members[0].FirstName)
	assert.Nil(t, members[1], "missing ids resolve to nil")
	assert.Equal(t, "A", members[2].FirstName)

	one, err := GetMember(ctx, a.ID)
	require.NoError(t, err)
	assert.Equal(t, a.ID, one.ID)
}

func TestMemberPaymentsLoaderGroupsActiveRows(t *testing.T) {
	db := testutil.NewTestDB(t)
	a := testutil.SeedMember(t, db, models.Member{Email: "a@example.com"})
	b := testutil.SeedMember(t, db, models.Member{Email: "b@example.com"})
	pay := func(memberId int, day int, active bool) {
		require.NoError(t, db.Create(&models.Payment{
			MemberId:    memberId,
			Amount:      decimal.NewFromInt(int64(day)),
			PaymentDate: time.Date(2024, time.September, day, 0, 0, 0, 0, time.UTC),
			Method:      models.PaymentMethodCash,
			IsActive:    &active,
		}).Error)
	}
	pay(a.ID, 5, true)
	pay(a.ID, 2, true)
	pay(a.ID, 3, false)

	ctx := WithLoaders(context.Background(), NewLoaders(db))
	lists, errs := GetMembersPayments(ctx, []int{a.ID, b.ID})
	for _, err := range errs {
		assert.NoError(t, err)
	}
	require.Len(t, lists, 2)
	require.Len(t, lists[0], 2)
	assert.Equal(t, 2, lists[0][0].PaymentDate.Day())
	assert.Equal(t, 5, lists[0][1].PaymentDate.Day())
	assert.Empty(t, lists[1])
}

func TestPaymentScheduleLoaderFallsBackWithoutMiddleware(t *testing.T) {
	db := testutil.NewTestDB(t)
	s := models.PaymentSchedule{Season: "2024-2025", Name: "Deposit", DueDate: time.Now()}
	require.NoError(t, db.Create(&s).Error)

	got, err := GetPaymentSchedule(context.Background(), s.ID)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "Deposit", got.Name)
}
