package handler

import (
	"net/http"
	"strconv"

	"templateshop/internal/middleware"
	"templateshop/internal/usecase"

	"github.com/labstack/echo/v4"
)

type ErrorResponse struct {
	Error   string `json:"error"`
	Code    string `json:"code,omitempty"`
	Details any    `json:"details,omitempty"`
}

type SuccessResponse struct {
	Message string `json:"message"`
}

func writeError(c echo.Context, err error) error {
	if err == nil {
		return nil
	}
	if he, ok := usecase.AsHTTPError(err); ok {
		if he.Status >= http.StatusInternalServerError {
			c.Logger().Error(err)
		}
		return c.JSON(he.Status, ErrorResponse{Error: he.Message, Code: he.Code, Details: he.Details})
	}

	//500
	c.Logger().Error(err)
	return c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal error", Code: usecase.CodeInternal})
}

func badRequest(c echo.Context, msg string) error {
	return c.JSON(http.StatusBadRequest, ErrorResponse{Error: msg, Code: usecase.CodeValidation})
}

func unauthorized(c echo.Context) error {
	return c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "unauthorized", Code: usecase.CodeUnauthorized})
}

// middleware.AuthJWT が c.Set したユーザーIDを取り出す
func getUserIDFromContext(c echo.Context) (string, bool) {
	id, ok := c.Get(middleware.CtxUserIDKey).(string)
	if !ok || id == "" {
		return "", false
	}
	return id, true
}

func pathID(c echo.Context, name string) (int64, bool) {
	id, err := strconv.ParseInt(c.Param(name), 10, 64)
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}

// page/limit（未指定ならデフォルト）
func pageParams(c echo.Context, defLimit int) (page, limit int, ok bool) {
	page, limit = 1, defLimit
	if v := c.QueryParam("page"); v != "" {
		p, err := strconv.Atoi(v)
		if err != nil {
			return 0, 0, false
		}
		page = p
	}
	if v := c.QueryParam("limit"); v != "" {
		l, err := strconv.Atoi(v)
		if err != nil {
			return 0, 0, false
		}
		limit = l
	}
	return page, limit, true
}
