package middleware

import (
	"net/http"

	"github.com/labstack/echo/v4"
)

//contextに入っているroleがADMINかどうかを確認します。
//AuthJWTの後ろに置く

func AdminRoleGuard() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			role, ok := c.Get(CtxUserRoleKey).(string)
			if !ok || role == "" {
				return c.JSON(http.StatusUnauthorized, errorJSON("UNAUTHORIZED", "unauthorized"))
			}

			if role != RoleAdmin {
				return c.JSON(http.StatusForbidden, errorJSON("FORBIDDEN", "admin only"))
			}

			return next(c)
		}
	}
}
