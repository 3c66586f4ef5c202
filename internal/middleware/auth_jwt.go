package middleware

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"templateshop/internal/config"

	"github.com/golang-jwt/jwt/v4"
	"github.com/labstack/echo/v4"
)

const (
	CtxUserIDKey   = "user_id"   // string
	CtxUserRoleKey = "user_role" // string
)

const (
	RoleUser  = "USER"
	RoleAdmin = "ADMIN"
)

// bearerAuth用のJWT検証ミドルウェア。
// トークンの発行は認証サービス側で行う
func AuthJWT(cfg config.Config) echo.MiddlewareFunc {
	secret := []byte(cfg.JWTSecret)

	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			rawToken, ok := bearerToken(c.Request().Header.Get("Authorization"))
			if !ok {
				return c.JSON(http.StatusUnauthorized, errorJSON("UNAUTHORIZED", "unauthorized"))
			}

			//JWTをパースして検証する（exp/nbfもここで見る）
			token, err := jwt.Parse(rawToken, func(t *jwt.Token) (interface{}, error) {
				if t.Method != jwt.SigningMethodHS256 {
					return nil, errors.New("unexpected signing method")
				}
				return secret, nil
			})
			if err != nil || token == nil || !token.Valid {
				return c.JSON(http.StatusUnauthorized, errorJSON("UNAUTHORIZED", "unauthorized"))
			}

			claims, ok := token.Claims.(jwt.MapClaims)
			if !ok {
				return c.JSON(http.StatusUnauthorized, errorJSON("UNAUTHORIZED", "unauthorized"))
			}

			userID, err := parseSubject(claims["sub"])
			if err != nil || userID == "" {
				return c.JSON(http.StatusUnauthorized, errorJSON("UNAUTHORIZED", "unauthorized"))
			}

			//roleが無ければUSER扱い
			role := RoleUser
			if v, ok := claims["role"]; ok {
				s, ok := v.(string)
				if !ok || s == "" {
					return c.JSON(http.StatusUnauthorized, errorJSON("UNAUTHORIZED", "unauthorized"))
				}
				role = strings.ToUpper(s)
			}

			c.Set(CtxUserIDKey, userID)
			c.Set(CtxUserRoleKey, role)

			return next(c)
		}
	}
}

func bearerToken(authz string) (string, bool) {
	parts := strings.SplitN(authz, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return "", false
	}
	tok := strings.TrimSpace(parts[1])
	return tok, tok != ""
}

type errorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

func errorJSON(code, msg string) errorResponse {
	return errorResponse{Error: msg, Code: code}
}

// subは文字列でも数値でもよい（数値は10進文字列にする）
func parseSubject(v interface{}) (string, error) {
	switch t := v.(type) {
	case string:
		return strings.TrimSpace(t), nil
	case float64:
		if t != float64(int64(t)) {
			return "", errors.New("invalid sub")
		}
		return strconv.FormatInt(int64(t), 10), nil
	default:
		return "", errors.New("invalid sub")
	}
}
