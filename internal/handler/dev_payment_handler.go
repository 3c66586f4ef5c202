package handler

import (
	"errors"
	"net/http"

	"templateshop/internal/gateway"
	"templateshop/internal/usecase"

	"github.com/labstack/echo/v4"
)

// 開発用：フェイクの決済サービスに代わって署名付き通知を届ける。
// 本番では登録しない
type DevPaymentHandler struct {
	gw        *gateway.FakeGateway
	reconcile *usecase.ReconcileUsecase
}

func NewDevPaymentHandler(gw *gateway.FakeGateway, reconcile *usecase.ReconcileUsecase) *DevPaymentHandler {
	return &DevPaymentHandler{gw: gw, reconcile: reconcile}
}

type DevPaymentRequest struct {
	// "succeeded" か "failed"
	Outcome       string `json:"outcome"`
	FailureReason string `json:"failure_reason"`
}

func (h *DevPaymentHandler) RegisterRoutes(e *echo.Echo) {
	e.POST("/dev/payment-intents/:intent_id/complete", h.complete)
}

func (h *DevPaymentHandler) complete(c echo.Context) error {
	var req DevPaymentRequest
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid body")
	}

	eventType := gateway.EventIntentSucceeded
	switch req.Outcome {
	case "", "succeeded":
	case "failed":
		eventType = gateway.EventIntentFailed
	default:
		return badRequest(c, "invalid outcome")
	}

	body, header, err := h.gw.SignedEvent(c.Param("intent_id"), eventType, req.FailureReason)
	if errors.Is(err, gateway.ErrUnknownIntent) {
		return c.JSON(http.StatusNotFound, ErrorResponse{Error: "unknown intent", Code: usecase.CodeNotFound})
	}
	if err != nil {
		return writeError(c, err)
	}

	out, err := h.reconcile.HandlePaymentNotification(c.Request().Context(), header, body)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, out)
}
