package handler

import (
	"io"
	"net/http"

	"templateshop/internal/gateway"
	"templateshop/internal/usecase"

	"github.com/labstack/echo/v4"
)

// 署名検証は生のbodyに対して行うので上限を決めて丸ごと読む
const maxWebhookBody = 1 << 20

type WebhookHandler struct {
	uc *usecase.ReconcileUsecase
}

func NewWebhookHandler(uc *usecase.ReconcileUsecase) *WebhookHandler {
	return &WebhookHandler{uc: uc}
}

// 決済サービスからの通知。JWTは使わず署名で認証する
func (h *WebhookHandler) RegisterRoutes(e *echo.Echo) {
	e.POST("/webhooks/payment", h.receive)
}

func (h *WebhookHandler) receive(c echo.Context) error {
	body, err := io.ReadAll(io.LimitReader(c.Request().Body, maxWebhookBody+1))
	if err != nil {
		return badRequest(c, "invalid body")
	}
	if len(body) > maxWebhookBody {
		return c.JSON(http.StatusRequestEntityTooLarge, ErrorResponse{Error: "body too large", Code: usecase.CodeValidation})
	}

	out, err := h.uc.HandlePaymentNotification(c.Request().Context(), c.Request().Header.Get(gateway.SignatureHeader), body)
	if err != nil {
		// 5xxなら決済サービス側が再送する
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, out)
}
