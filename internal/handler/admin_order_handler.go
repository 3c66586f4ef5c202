package handler

import (
	"net/http"
	"strconv"

	"templateshop/internal/config"
	"templateshop/internal/middleware"
	"templateshop/internal/repository"
	"templateshop/internal/usecase"

	"github.com/labstack/echo/v4"
)

type AdminOrderHandler struct {
	uc *usecase.AdminOrderUsecase
}

func NewAdminOrderHandler(uc *usecase.AdminOrderUsecase) *AdminOrderHandler {
	return &AdminOrderHandler{uc: uc}
}

type OrderStatusUpdateRequest struct {
	Status string `json:"status"`
}

func (h *AdminOrderHandler) RegisterRoutes(e *echo.Echo, cfg config.Config) {
	admin := e.Group("/admin")
	admin.Use(middleware.AuthJWT(cfg))
	admin.Use(middleware.AdminRoleGuard())

	admin.GET("/orders", h.list)
	admin.PUT("/orders/:id/status", h.updateStatus)
	admin.GET("/orders/:id/audit-logs", h.history)
	admin.GET("/payment-intents/unreconciled", h.unreconciled)
}

func (h *AdminOrderHandler) list(c echo.Context) error {
	page, limit, ok := pageParams(c, 50)
	if !ok {
		return badRequest(c, "invalid page or limit")
	}

	var userID *string
	if v := c.QueryParam("user_id"); v != "" {
		userID = &v
	}

	from, ok := usecase.ParseDateTimeRFC3339(c.QueryParam("from"))
	if !ok {
		return badRequest(c, "invalid from")
	}
	to, ok := usecase.ParseDateTimeRFC3339(c.QueryParam("to"))
	if !ok {
		return badRequest(c, "invalid to")
	}

	out, err := h.uc.List(c.Request().Context(), repository.AdminOrderListFilter{
		Page:   page,
		Limit:  limit,
		Status: c.QueryParam("status"),
		UserID: userID,
		From:   from,
		To:     to,
	})
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, out)
}

func (h *AdminOrderHandler) updateStatus(c echo.Context) error {
	orderID, ok := pathID(c, "id")
	if !ok {
		return badRequest(c, "invalid id")
	}

	var req OrderStatusUpdateRequest
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid body")
	}

	// 操作した管理者ID（監査ログ用）
	adminID, ok := getUserIDFromContext(c)
	if !ok {
		return unauthorized(c)
	}

	out, err := h.uc.OverrideStatus(c.Request().Context(), adminID, orderID, usecase.AdminOverrideStatusInput{Status: req.Status})
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, out)
}

func (h *AdminOrderHandler) history(c echo.Context) error {
	orderID, ok := pathID(c, "id")
	if !ok {
		return badRequest(c, "invalid id")
	}

	out, err := h.uc.OrderHistory(c.Request().Context(), orderID)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, map[string]any{"items": out})
}

// 決済成功なのに注文が無いもの（手当て待ち）
func (h *AdminOrderHandler) unreconciled(c echo.Context) error {
	limit := 50
	if v := c.QueryParam("limit"); v != "" {
		l, err := strconv.Atoi(v)
		if err != nil {
			return badRequest(c, "invalid limit")
		}
		limit = l
	}

	out, err := h.uc.ListUnreconciledIntents(c.Request().Context(), limit)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, map[string]any{"items": out})
}
