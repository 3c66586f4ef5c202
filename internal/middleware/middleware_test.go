package middleware_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"templateshop/internal/config"
	"templateshop/internal/middleware"

	"github.com/golang-jwt/jwt/v4"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// =====================
// helper
// =====================

type mwErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

type mwOKResponse struct {
	UserID string `json:"user_id"`
	Role   string `json:"role"`
}

func mustMakeJWT(t *testing.T, secret string, claims jwt.MapClaims, method jwt.SigningMethod) string {
	t.Helper()
	if _, ok := claims["exp"]; !ok {
		claims["exp"] = 9999999999
	}
	s, err := jwt.NewWithClaims(method, claims).SignedString([]byte(secret))
	require.NoError(t, err)
	return s
}

func newEcho(cfg config.Config, admin bool) *echo.Echo {
	e := echo.New()
	mws := []echo.MiddlewareFunc{middleware.AuthJWT(cfg)}
	if admin {
		mws = append(mws, middleware.AdminRoleGuard())
	}
	e.GET("/protected", func(c echo.Context) error {
		return c.JSON(http.StatusOK, mwOKResponse{
			UserID: c.Get(middleware.CtxUserIDKey).(string),
			Role:   c.Get(middleware.CtxUserRoleKey).(string),
		})
	}, mws...)
	return e
}

func runRequest(e *echo.Echo, authHeader string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, "/protected", nil)
	if authHeader != "" {
		req.Header.Set("Authorization", authHeader)
	}
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func decodeMWError(t *testing.T, rec *httptest.ResponseRecorder) mwErrorResponse {
	t.Helper()
	var r mwErrorResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&r))
	return r
}

// =====================
// AuthJWT
// =====================

func TestAuthJWT_Unauthorized(t *testing.T) {
	cfg := config.Config{JWTSecret: "test-secret"}

	cases := map[string]string{
		"no header":     "",
		"bad scheme":    "Token abc.def.ghi",
		"empty bearer":  "Bearer ",
		"bad signature": "Bearer " + mustMakeJWT(t, "wrong-secret", jwt.MapClaims{"sub": "u1"}, jwt.SigningMethodHS256),
		"wrong alg":     "Bearer " + mustMakeJWT(t, cfg.JWTSecret, jwt.MapClaims{"sub": "u1"}, jwt.SigningMethodHS512),
		"expired":       "Bearer " + mustMakeJWT(t, cfg.JWTSecret, jwt.MapClaims{"sub": "u1", "exp": 1}, jwt.SigningMethodHS256),
		"no sub":        "Bearer " + mustMakeJWT(t, cfg.JWTSecret, jwt.MapClaims{"role": "USER"}, jwt.SigningMethodHS256),
		"role not text": "Bearer " + mustMakeJWT(t, cfg.JWTSecret, jwt.MapClaims{"sub": "u1", "role": 1}, jwt.SigningMethodHS256),
	}

	for name, header := range cases {
		t.Run(name, func(t *testing.T) {
			rec := runRequest(newEcho(cfg, false), header)
			assert.Equal(t, http.StatusUnauthorized, rec.Code)
			body := decodeMWError(t, rec)
			assert.Equal(t, "unauthorized", body.Error)
			assert.Equal(t, "UNAUTHORIZED", body.Code)
		})
	}
}

func TestAuthJWT_SetsContext(t *testing.T) {
	cfg := config.Config{JWTSecret: "test-secret"}

	raw := mustMakeJWT(t, cfg.JWTSecret, jwt.MapClaims{"sub": "user-123", "role": "admin"}, jwt.SigningMethodHS256)
	rec := runRequest(newEcho(cfg, false), "Bearer "+raw)
	require.Equal(t, http.StatusOK, rec.Code)

	var body mwOKResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	assert.Equal(t, "user-123", body.UserID)
	assert.Equal(t, "ADMIN", body.Role)
}

func TestAuthJWT_NumericSubjectAndDefaultRole(t *testing.T) {
	cfg := config.Config{JWTSecret: "test-secret"}

	raw := mustMakeJWT(t, cfg.JWTSecret, jwt.MapClaims{"sub": 42}, jwt.SigningMethodHS256)
	rec := runRequest(newEcho(cfg, false), "Bearer "+raw)
	require.Equal(t, http.StatusOK, rec.Code)

	var body mwOKResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	assert.Equal(t, "42", body.UserID)
	assert.Equal(t, middleware.RoleUser, body.Role)
}

// =====================
// AdminRoleGuard
// =====================

func TestAdminRoleGuard(t *testing.T) {
	cfg := config.Config{JWTSecret: "test-secret"}
	e := newEcho(cfg, true)

	user := mustMakeJWT(t, cfg.JWTSecret, jwt.MapClaims{"sub": "u1", "role": "USER"}, jwt.SigningMethodHS256)
	rec := runRequest(e, "Bearer "+user)
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Equal(t, "FORBIDDEN", decodeMWError(t, rec).Code)

	admin := mustMakeJWT(t, cfg.JWTSecret, jwt.MapClaims{"sub": "a1", "role": "ADMIN"}, jwt.SigningMethodHS256)
	rec = runRequest(e, "Bearer "+admin)
	assert.Equal(t, http.StatusOK, rec.Code)
}
