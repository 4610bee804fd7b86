package models_test

import (
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
	"github.com/stageworks/roster_backend/models"
	"github.com/stageworks/roster_backend/testutil"
	"github.com/stageworks/roster_backend/utils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateMemberNormalizesManualEntry(t *testing.T) {
	testutil.NewTestDB(t)
	t.Setenv("DEFAULT_PHONE_REGION", "US")
	ctx := testutil.Ctx("staff")

	member, err := models.CreateMember(ctx, &models.NewMember{
		FirstName:   "  Ada ",
		LastName:    "Lovelace",
		Email:       " Ada@Example.COM ",
		Phone:       "(650) 253-0000",
		ParentEmail: "Parent@Example.com",
		Season:      "2024-2025",
	})
	require.NoError(t, err)
	assert.Equal(t, "Ada", member.FirstName)
	assert.Equal(t, "ada@example.com", member.Email)
	assert.Equal(t, "parent@example.com", member.ParentEmail)
	assert.Equal(t, "+16502530000", member.Phone)
	assert.Equal(t, models.MemberSourceManual, member.Source)
	assert.Nil(t, member.ExternalSubmissionId)

	_, err = models.CreateMember(ctx, &models.NewMember{FirstName: "Other", LastName: "Person", Email: "ADA@example.com"})
	assert.ErrorIs(t, err, models.ErrDuplicateEmail)

	_, err = models.CreateMember(ctx, &models.NewMember{FirstName: "Bad", LastName: "Phone", Email: "bad@example.com", Phone: "12"})
	assert.ErrorIs(t, err, models.ErrInvalidPhone)

	_, err = models.CreateMember(ctx, &models.NewMember{FirstName: "No", LastName: "Email"})
	var verrs validator.ValidationErrors
	assert.ErrorAs(t, err, &verrs)
}

func TestUpdateMemberKeepsOwnEmail(t *testing.T) {
	db := testutil.NewTestDB(t)
	ctx := testutil.Ctx("staff")
	member := testutil.SeedMember(t, db, models.Member{Email: "keep@example.com", Season: "2024-2025"})
	testutil.SeedMember(t, db, models.Member{Email: "taken@example.com"})

	updated, err := models.UpdateMember(ctx, member.ID, &models.NewMember{
		FirstName: "Renamed", LastName: "Member", Email: "KEEP@example.com", Section: "Brass",
	})
	require.NoError(t, err)
	assert.Equal(t, "Renamed", updated.FirstName)
	assert.Equal(t, "Brass", updated.Section)
	assert.Equal(t, "2024-2025", updated.Season, "blank season leaves the stored one")

	_, err = models.UpdateMember(ctx, member.ID, &models.NewMember{FirstName: "A", LastName: "B", Email: "Taken@Example.com"})
	assert.ErrorIs(t, err, models.ErrDuplicateEmail)

	_, err = models.UpdateMember(ctx, 4242, &models.NewMember{FirstName: "A", LastName: "B", Email: "x@example.com"})
	assert.ErrorIs(t, err, utils.ErrorRecordNotFound)
}

func TestUpdateMemberTuition(t *testing.T) {
	db := testutil.NewTestDB(t)
	ctx := testutil.Ctx("staff")
	member := testutil.SeedMember(t, db, models.Member{Email: "fee@example.com"})

	updated, err := models.UpdateMemberTuition(ctx, member.ID, decimal.RequireFromString("1200.50"))
	require.NoError(t, err)
	assert.True(t, updated.TuitionAmount.Equal(decimal.RequireFromString("1200.50")))

	_, err = models.UpdateMemberTuition(ctx, member.ID, decimal.NewFromInt(-1))
	assert.ErrorIs(t, err, models.ErrNegativeTuition)
}

func TestDeleteMemberGuardedByPayments(t *testing.T) {
	db := testutil.NewTestDB(t)
	ctx := testutil.Ctx("admin")
	free := testutil.SeedMember(t, db, models.Member{Email: "free@example.com"})
	paid := testutil.SeedMember(t, db, models.Member{Email: "paid@example.com"})

	require.NoError(t, db.Create(&models.Payment{
		MemberId:    paid.ID,
		Amount:      decimal.NewFromInt(50),
		PaymentDate: time.Now(),
		Method:      models.PaymentMethodCash,
		IsActive:    utils.NewFalse(),
	}).Error)

	_, err := models.DeleteMember(ctx, paid.ID)
	assert.ErrorIs(t, err, models.ErrMemberHasPayments, "inactive history still blocks deletion")

	_, err = models.DeleteMember(ctx, free.ID)
	require.NoError(t, err)
	_, err = models.GetMember(ctx, free.ID)
	assert.ErrorIs(t, err, utils.ErrorRecordNotFound)
}

func TestListMembersFilters(t *testing.T) {
	db := testutil.NewTestDB(t)
	ctx := testutil.Ctx("viewer")
	testutil.SeedMember(t, db, models.Member{FirstName: "Ana", LastName: "Zed", Email: "ana@example.com", Season: "2024-2025", Section: "Strings"})
	testutil.SeedMember(t, db, models.Member{FirstName: "Bo", LastName: "Young", Email: "bo@example.com", Season: "2024-2025", Section: "Brass", Source: models.MemberSourceJotform})
	testutil.SeedMember(t, db, models.Member{FirstName: "Cy", LastName: "Xu", Email: "cy@example.com", Season: "2023-2024", Section: "Strings"})

	all, err := models.ListMembers(ctx, models.MemberFilter{})
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, "Xu", all[0].LastName)

	season, err := models.ListMembers(ctx, models.MemberFilter{Season: "2024-2025", Section: "Strings"})
	require.NoError(t, err)
	require.Len(t, season, 1)
	assert.Equal(t, "Ana", season[0].FirstName)

	imported, err := models.ListMembers(ctx, models.MemberFilter{Source: string(models.MemberSourceJotform)})
	require.NoError(t, err)
	require.Len(t, imported, 1)

	search, err := models.ListMembers(ctx, models.MemberFilter{Search: "YOUNG"})
	require.NoError(t, err)
	require.Len(t, search, 1)
	assert.Equal(t, "bo@example.com", search[0].Email)
}

func TestCurrentAge(t *testing.T) {
	leap := models.Member{Birthday: "2008-02-29"}
	assert.Equal(t, 15, *leap.CurrentAge(time.Date(2024, time.February, 28, 12, 0, 0, 0, time.UTC)))
	assert.Equal(t, 16, *leap.CurrentAge(time.Date(2024, time.February, 29, 12, 0, 0, 0, time.UTC)))
	assert.Equal(t, 16, *leap.CurrentAge(time.Date(2024, time.March, 1, 12, 0, 0, 0, time.UTC)))

	stored := 12
	assert.Equal(t, &stored, models.Member{Age: &stored}.CurrentAge(time.Now()))
	assert.Equal(t, &stored, models.Member{Age: &stored, Birthday: "not a date"}.CurrentAge(time.Now()))
	assert.Nil(t, models.Member{}.CurrentAge(time.Now()))
}
