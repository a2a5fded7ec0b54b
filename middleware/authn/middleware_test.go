package authn

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/pulsefeed/authkit/services/tokens"
	"github.com/pulsefeed/authkit/testutils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupCodec() *tokens.Service {
	return tokens.NewService(testutils.GetTestConfig(), nil)
}

func performRequest(t *testing.T, middleware echo.MiddlewareFunc, method, path, authHeader string) *httptest.ResponseRecorder {
	t.Helper()
	e := echo.New()
	req := httptest.NewRequest(method, path, nil)
	if authHeader != "" {
		req.Header.Set("Authorization", authHeader)
	}
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	handler := middleware(func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{"message": "success"})
	})
	require.NoError(t, handler(c))
	return rec
}

func TestAuthenticate(t *testing.T) {
	codec := setupCodec()
	middleware := Authenticate(codec, nil)

	t.Run("missing header returns 401 MISSING_TOKEN", func(t *testing.T) {
		rec := performRequest(t, middleware, http.MethodGet, "/api/admin/users", "")

		assert.Equal(t, http.StatusUnauthorized, rec.Code)
		assert.Contains(t, rec.Body.String(), CodeMissingToken)
	})

	t.Run("non-bearer scheme returns 401 INVALID_TOKEN", func(t *testing.T) {
		rec := performRequest(t, middleware, http.MethodGet, "/api/admin/users", "Basic abc123")

		assert.Equal(t, http.StatusUnauthorized, rec.Code)
		assert.Contains(t, rec.Body.String(), CodeInvalidToken)
	})

	t.Run("empty bearer value returns 401 MISSING_TOKEN", func(t *testing.T) {
		rec := performRequest(t, middleware, http.MethodGet, "/api/admin/users", "Bearer ")

		assert.Equal(t, http.StatusUnauthorized, rec.Code)
		assert.Contains(t, rec.Body.String(), CodeMissingToken)
	})

	t.Run("garbage token returns 401 INVALID_TOKEN", func(t *testing.T) {
		rec := performRequest(t, middleware, http.MethodGet, "/api/admin/users", "Bearer not.a.token")

		assert.Equal(t, http.StatusUnauthorized, rec.Code)
		assert.Contains(t, rec.Body.String(), CodeInvalidToken)
	})

	t.Run("valid token reaches the handler with identity attached", func(t *testing.T) {
		token, err := codec.IssueAccessToken(42, []string{"Moderator"})
		require.NoError(t, err)

		e := echo.New()
		req := httptest.NewRequest(http.MethodGet, "/api/admin/users", nil)
		req.Header.Set("Authorization", "Bearer "+token)
		rec := httptest.NewRecorder()
		c := e.NewContext(req, rec)

		handler := middleware(func(c echo.Context) error {
			assert.Equal(t, uint(42), GetAccountID(c))
			assert.Equal(t, []string{"Moderator"}, GetRoles(c))
			require.NotNil(t, GetClaims(c))
			assert.Equal(t, uint(42), GetClaims(c).AccountID)
			return c.NoContent(http.StatusOK)
		})
		require.NoError(t, handler(c))
		assert.Equal(t, http.StatusOK, rec.Code)
	})

	t.Run("public path bypasses authentication", func(t *testing.T) {
		rec := performRequest(t, middleware, http.MethodPost, "/api/auth/login", "")
		assert.Equal(t, http.StatusOK, rec.Code)
	})

	t.Run("public path match is case-insensitive", func(t *testing.T) {
		rec := performRequest(t, middleware, http.MethodPost, "/api/auth/LOGIN", "")
		assert.Equal(t, http.StatusOK, rec.Code)
	})

	t.Run("refresh is public", func(t *testing.T) {
		rec := performRequest(t, middleware, http.MethodPost, "/api/auth/refresh", "")
		assert.Equal(t, http.StatusOK, rec.Code)
	})

	t.Run("custom public paths override the defaults", func(t *testing.T) {
		custom := Authenticate(codec, nil, "healthz")

		rec := performRequest(t, custom, http.MethodGet, "/healthz", "")
		assert.Equal(t, http.StatusOK, rec.Code)

		rec = performRequest(t, custom, http.MethodPost, "/api/auth/login", "")
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("handler panic becomes a generic 500", func(t *testing.T) {
		token, err := codec.IssueAccessToken(42, nil)
		require.NoError(t, err)

		e := echo.New()
		req := httptest.NewRequest(http.MethodGet, "/api/admin/users", nil)
		req.Header.Set("Authorization", "Bearer "+token)
		rec := httptest.NewRecorder()
		c := e.NewContext(req, rec)

		handler := middleware(func(c echo.Context) error {
			panic("boom")
		})
		require.NoError(t, handler(c))
		assert.Equal(t, http.StatusInternalServerError, rec.Code)
		assert.Contains(t, rec.Body.String(), "INTERNAL_ERROR")
		assert.NotContains(t, rec.Body.String(), "boom")
	})
}

func TestGetters_Unauthenticated(t *testing.T) {
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	c := e.NewContext(req, httptest.NewRecorder())

	assert.Zero(t, GetAccountID(c))
	assert.Nil(t, GetClaims(c))
	assert.Nil(t, GetRoles(c))
}
