package testutil

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stageworks/roster_backend/models"
	"github.com/stageworks/roster_backend/utils"
	"github.com/stretchr/testify/require"
)

// NewRouter returns a test-mode engine whose requests act as username with role.
// An empty username leaves requests anonymous.
func NewRouter(username string, role models.UserRole) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(func(c *gin.Context) {
		if username != "" {
			ctx := utils.SetUsernameInContext(c.Request.Context(), username)
			ctx = utils.SetUserRoleInContext(ctx, string(role))
			c.Request = c.Request.WithContext(ctx)
		}
		c.Next()
	})
	return r
}

// Do sends body (marshalled to JSON unless nil) and returns the recorder.
func Do(t *testing.T, h http.Handler, method string, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(b)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

// DecodeJSON unmarshals a recorder body into T.
func DecodeJSON[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out), w.Body.String())
	return out
}
