package models_test

import (
	"testing"

	"github.com/stageworks/roster_backend/config"
	"github.com/stageworks/roster_backend/models"
	"github.com/stageworks/roster_backend/testutil"
	"github.com/stageworks/roster_backend/utils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateUserAndDuplicates(t *testing.T) {
	testutil.NewTestDB(t)
	ctx := testutil.Ctx("admin")

	user, err := models.CreateUser(ctx, &models.NewUser{
		Username: "maria", Name: "Maria", Email: "Maria@Example.com", Password: "s3cretpass", Role: models.UserRoleStaff,
	})
	require.NoError(t, err)
	assert.Empty(t, user.Password)
	assert.Equal(t, "maria@example.com", utils.DereferencePtr(user.Email))

	_, err = models.CreateUser(ctx, &models.NewUser{
		Username: "maria", Name: "Other", Password: "s3cretpass", Role: models.UserRoleViewer,
	})
	assert.ErrorIs(t, err, models.ErrDuplicateUser)

	_, err = models.CreateUser(ctx, &models.NewUser{
		Username: "boss", Name: "Boss", Password: "s3cretpass", Role: models.UserRole("owner"),
	})
	assert.ErrorIs(t, err, models.ErrInvalidUserRole)
}

func TestUpsertAdminThenLoginChecks(t *testing.T) {
	db := testutil.NewTestDB(t)
	ctx := testutil.Ctx("seed")

	admin, created, err := models.UpsertAdmin(ctx, db, "root", "Root", "first-password")
	require.NoError(t, err)
	assert.True(t, created)
	assert.Equal(t, models.UserRoleAdmin, admin.Role)

	_, created, err = models.UpsertAdmin(ctx, db, "root", "", "second-password")
	require.NoError(t, err)
	assert.False(t, created)

	var stored models.User
	require.NoError(t, config.GetDB().Where("username = ?", "root").Take(&stored).Error)
	assert.NoError(t, utils.ComparePassword(stored.Password, "second-password"))
	assert.Equal(t, "Root", stored.Name)

	_, err = models.Login(ctx, "root", "first-password")
	assert.ErrorIs(t, err, models.ErrInvalidCredentials)
	_, err = models.Login(ctx, "nobody", "whatever1")
	assert.ErrorIs(t, err, models.ErrInvalidCredentials)

	require.NoError(t, db.Model(&stored).Update("is_active", false).Error)
	_, err = models.Login(ctx, "root", "second-password")
	assert.ErrorIs(t, err, models.ErrUserDisabled)
}

func TestUserRoleRank(t *testing.T) {
	assert.Greater(t, models.UserRoleAdmin.Rank(), models.UserRoleStaff.Rank())
	assert.Greater(t, models.UserRoleStaff.Rank(), models.UserRoleViewer.Rank())
	assert.False(t, models.UserRole("guest").IsValid())
}
