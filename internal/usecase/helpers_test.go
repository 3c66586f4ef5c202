package usecase_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"templateshop/internal/domain/model"
	"templateshop/internal/gateway"
	"templateshop/internal/infra/cache"
	"templateshop/internal/infra/db/dbtest"
	gormrepo "templateshop/internal/infra/repository"
	repo "templateshop/internal/repository"
	"templateshop/internal/usecase"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

const webhookSecret = "whsec_test"

var errSimulatedCrash = errors.New("simulated crash while writing order lines")

// SQLite上に全usecaseを組み立てたテスト環境
type testEnv struct {
	db        *gorm.DB
	tm        repo.TransactionManager
	carts     *gormrepo.CartGormRepository
	templates *gormrepo.TemplateGormRepository
	orders    *gormrepo.OrderGormRepository
	items     *gormrepo.OrderItemGormRepository
	intents   *gormrepo.PaymentIntentGormRepository
	outbox    *gormrepo.OutboxGormRepository
	gw        *gateway.FakeGateway

	cart      *usecase.CartUsecase
	checkout  *usecase.CheckoutUsecase
	reconcile *usecase.ReconcileUsecase
	order     *usecase.OrderUsecase
	admin     *usecase.AdminOrderUsecase
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	return newTestEnvOn(t, dbtest.Open(t))
}

func newTestEnvOn(t *testing.T, gdb *gorm.DB) *testEnv {
	t.Helper()
	e := &testEnv{
		db:        gdb,
		tm:        gormrepo.NewTxManagerGorm(gdb),
		carts:     gormrepo.NewCartGormRepository(gdb),
		templates: gormrepo.NewTemplateGormRepository(gdb),
		orders:    gormrepo.NewOrderGormRepository(gdb),
		items:     gormrepo.NewOrderItemGormRepository(gdb),
		intents:   gormrepo.NewPaymentIntentGormRepository(gdb),
		outbox:    gormrepo.NewOutboxGormRepository(gdb),
		gw:        gateway.NewFakeGateway(webhookSecret),
	}
	e.wire(t, e.gw, e.tm, cache.NoopOrderCache{})
	return e
}

// wire はusecaseを作り直す（ゲートウェイやTxManagerを差し替えるテスト用）
func (e *testEnv) wire(t *testing.T, gw gateway.Gateway, tm repo.TransactionManager, oc repo.OrderCache) {
	t.Helper()
	if oc == nil {
		oc = cache.NoopOrderCache{}
	}
	log := discardLogger()
	e.cart = usecase.NewCartUsecase(tm, e.carts, e.carts, e.templates, 100, "USD")
	e.checkout = usecase.NewCheckoutUsecase(e.carts, e.carts, e.templates, e.intents, gw, time.Second, "USD", log)
	e.reconcile = usecase.NewReconcileUsecase(tm, e.orders, e.intents, gateway.NewVerifier(webhookSecret, 5*time.Minute), "USD", log)
	e.order = usecase.NewOrderUsecase(tm, e.orders, e.items, oc, log)
	e.admin = usecase.NewAdminOrderUsecase(tm, e.orders, e.items, e.intents, gormrepo.NewAuditLogGormRepository(e.db), oc, log)
}

func (e *testEnv) seedTemplate(t *testing.T, id string, price int64, active bool) {
	t.Helper()
	require.NoError(t, e.templates.Create(context.Background(), model.Template{
		ID: id, Name: "Template " + id, Price: price, Currency: "USD", IsActive: active,
	}))
}

func (e *testEnv) addToCart(t *testing.T, userID, templateID string, qty int64) {
	t.Helper()
	_, err := e.cart.AddOrIncrement(context.Background(), userID, usecase.AddCartLineInput{TemplateID: templateID, Quantity: qty})
	require.NoError(t, err)
}

func (e *testEnv) deliver(body []byte) (usecase.NotificationResult, error) {
	return e.reconcile.HandlePaymentNotification(context.Background(), gateway.Sign(webhookSecret, body, time.Now()), body)
}

// checkoutAndPay はチェックアウトして成功通知を届ける
func (e *testEnv) checkoutAndPay(t *testing.T, userID string) (usecase.CheckoutOutput, usecase.NotificationResult) {
	t.Helper()
	co, err := e.checkout.StartCheckout(context.Background(), userID)
	require.NoError(t, err)

	body, header, err := e.gw.SignedEvent(co.IntentID, gateway.EventIntentSucceeded, "")
	require.NoError(t, err)
	res, err := e.reconcile.HandlePaymentNotification(context.Background(), header, body)
	require.NoError(t, err)
	return co, res
}

func (e *testEnv) cartLines(t *testing.T, userID string) []model.CartItem {
	t.Helper()
	c, err := e.carts.FindByUserID(context.Background(), userID)
	if err == repo.ErrNotFound {
		return nil
	}
	require.NoError(t, err)
	lines, err := e.carts.ListByCartID(context.Background(), c.ID)
	require.NoError(t, err)
	return lines
}

func (e *testEnv) countOrders(t *testing.T, intentID string) int64 {
	t.Helper()
	var n int64
	require.NoError(t, e.db.Model(&model.Order{}).Where("payment_intent_id = ?", intentID).Count(&n).Error)
	return n
}

// =====================
// Mocks
// =====================

type GatewayMock struct{ mock.Mock }

func (m *GatewayMock) CreateIntent(ctx context.Context, req gateway.CreateIntentRequest) (gateway.CreateIntentResult, error) {
	args := m.Called(ctx, req)
	res, _ := args.Get(0).(gateway.CreateIntentResult)
	return res, args.Error(1)
}

// OrderItems().CreateBulk だけ失敗させるTxManager（途中クラッシュの再現）
type failingItemsTx struct {
	inner repo.TransactionManager
}

func (f failingItemsTx) WithinTx(ctx context.Context, fn func(r repo.TxRepos) error) error {
	return f.inner.WithinTx(ctx, func(r repo.TxRepos) error {
		return fn(failingItemsRepos{TxRepos: r})
	})
}

type failingItemsRepos struct{ repo.TxRepos }

func (f failingItemsRepos) OrderItems() repo.OrderItemRepository { return failingItems{} }

type failingItems struct{}

func (failingItems) CreateBulk(context.Context, int64, []model.OrderItem) error {
	return errSimulatedCrash
}

func (failingItems) ListByOrderID(context.Context, int64) ([]model.OrderItem, error) {
	return nil, nil
}
