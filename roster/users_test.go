package roster

import (
	"fmt"
	"net/http"
	"testing"

	"github.com/stageworks/roster_backend/models"
	"github.com/stageworks/roster_backend/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoginAndUserAdministration(t *testing.T) {
	testutil.NewTestDB(t)
	t.Setenv("TOKEN_HOUR_LIFESPAN", "12")
	admin := newRosterRouter("root", models.UserRoleAdmin)
	anonymous := newRosterRouter("", "")

	w := testutil.Do(t, admin, http.MethodPost, "/api/users", map[string]any{
		"username": "maria", "name": "Maria", "password": "longenough", "role": "staff",
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	user := testutil.DecodeJSON[models.User](t, w)
	assert.Empty(t, user.Password)

	w = testutil.Do(t, admin, http.MethodPost, "/api/users", map[string]any{
		"username": "maria", "name": "Maria Again", "password": "longenough", "role": "staff",
	})
	assert.Equal(t, http.StatusConflict, w.Code)

	w = testutil.Do(t, admin, http.MethodPost, "/api/users", map[string]any{
		"username": "boss", "name": "Boss", "password": "longenough", "role": "owner",
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = testutil.Do(t, anonymous, http.MethodPost, "/api/login", map[string]any{"username": "maria", "password": "wrong-password"})
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = testutil.Do(t, anonymous, http.MethodPost, "/api/login", map[string]any{"username": "maria", "password": "longenough"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	info := testutil.DecodeJSON[models.LoginInfo](t, w)
	assert.NotEmpty(t, info.Token)
	assert.Equal(t, models.UserRoleStaff, info.Role)

	w = testutil.Do(t, admin, http.MethodPut, fmt.Sprintf("/api/users/%d/role", user.ID), map[string]any{"role": "admin"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, models.UserRoleAdmin, testutil.DecodeJSON[models.User](t, w).Role)

	w = testutil.Do(t, admin, http.MethodPut, fmt.Sprintf("/api/users/%d/role", user.ID), map[string]any{"role": "emperor"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = testutil.Do(t, newRosterRouter("maria", models.UserRoleStaff), http.MethodGet, "/api/users", nil)
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = testutil.Do(t, newRosterRouter("maria", models.UserRoleAdmin), http.MethodGet, "/api/me", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "maria", testutil.DecodeJSON[models.User](t, w).Username)

	w = testutil.Do(t, anonymous, http.MethodGet, "/api/me", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}
