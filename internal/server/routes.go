package server

import (
	"net/http"

	"templateshop/internal/config"
	"templateshop/internal/handler"

	"github.com/labstack/echo/v4"
)

// Handlers はサーバーに載せるハンドラ一式。Devはフェイク決済のときだけ
type Handlers struct {
	Cart       *handler.CartHandler
	Checkout   *handler.CheckoutHandler
	Webhook    *handler.WebhookHandler
	Order      *handler.OrderHandler
	AdminOrder *handler.AdminOrderHandler
	Dev        *handler.DevPaymentHandler
}

func RegisterRoutes(e *echo.Echo, cfg config.Config, h Handlers) {
	e.GET("/healthz", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
	})

	h.Cart.RegisterRoutes(e, cfg)
	h.Checkout.RegisterRoutes(e, cfg)
	h.Webhook.RegisterRoutes(e)
	h.Order.RegisterRoutes(e, cfg)
	h.AdminOrder.RegisterRoutes(e, cfg)

	if h.Dev != nil && !cfg.IsProduction() {
		h.Dev.RegisterRoutes(e)
	}
}
