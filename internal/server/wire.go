package server

import (
	"log/slog"

	"templateshop/internal/config"
	"templateshop/internal/gateway"
	"templateshop/internal/handler"
	infraRepo "templateshop/internal/infra/repository"
	"templateshop/internal/repository"
	"templateshop/internal/usecase"

	"gorm.io/gorm"
)

// Deps はハンドラ組み立てに外から渡す部品
type Deps struct {
	DB      *gorm.DB
	Gateway gateway.Gateway
	// フェイク決済のときだけ（開発用ルートに使う）
	Fake     *gateway.FakeGateway
	Cache    repository.OrderCache
	Verifier usecase.SignatureVerifier
}

// BuildHandlers はRepository -> Usecase -> Handler の順に組み立てる
func BuildHandlers(cfg config.Config, d Deps, log *slog.Logger) Handlers {
	//Repository（GORM実装）
	tm := infraRepo.NewTxManagerGorm(d.DB)
	carts := infraRepo.NewCartGormRepository(d.DB)
	templates := infraRepo.NewTemplateGormRepository(d.DB)
	orders := infraRepo.NewOrderGormRepository(d.DB)
	items := infraRepo.NewOrderItemGormRepository(d.DB)
	intents := infraRepo.NewPaymentIntentGormRepository(d.DB)

	currency := cfg.Gateway.Currency

	//Usecase
	cartUC := usecase.NewCartUsecase(tm, carts, carts, templates, cfg.Cart.MaxLineQuantity, currency)
	checkoutUC := usecase.NewCheckoutUsecase(carts, carts, templates, intents, d.Gateway, cfg.Gateway.Timeout, currency, log)
	reconcileUC := usecase.NewReconcileUsecase(tm, orders, intents, d.Verifier, currency, log)
	orderUC := usecase.NewOrderUsecase(tm, orders, items, d.Cache, log)
	adminUC := usecase.NewAdminOrderUsecase(tm, orders, items, intents, infraRepo.NewAuditLogGormRepository(d.DB), d.Cache, log)

	h := Handlers{
		Cart:       handler.NewCartHandler(cartUC),
		Checkout:   handler.NewCheckoutHandler(checkoutUC),
		Webhook:    handler.NewWebhookHandler(reconcileUC),
		Order:      handler.NewOrderHandler(orderUC),
		AdminOrder: handler.NewAdminOrderHandler(adminUC),
	}
	if d.Fake != nil {
		h.Dev = handler.NewDevPaymentHandler(d.Fake, reconcileUC)
	}
	return h
}
