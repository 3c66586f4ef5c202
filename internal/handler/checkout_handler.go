package handler

import (
	"net/http"

	"templateshop/internal/config"
	"templateshop/internal/middleware"
	"templateshop/internal/usecase"

	"github.com/labstack/echo/v4"
)

type CheckoutHandler struct {
	uc *usecase.CheckoutUsecase
}

func NewCheckoutHandler(uc *usecase.CheckoutUsecase) *CheckoutHandler {
	return &CheckoutHandler{uc: uc}
}

func (h *CheckoutHandler) RegisterRoutes(e *echo.Echo, cfg config.Config) {
	e.POST("/checkout/start", h.start, middleware.AuthJWT(cfg))
}

// 決済インテントを作ってclient_secretを返す。注文はまだ作らない
func (h *CheckoutHandler) start(c echo.Context) error {
	userID, ok := getUserIDFromContext(c)
	if !ok {
		return unauthorized(c)
	}

	out, err := h.uc.StartCheckout(c.Request().Context(), userID)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusCreated, out)
}
