//go:build integration

package usecase_test

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"templateshop/internal/config"
	"templateshop/internal/infra/db"
	"templateshop/internal/usecase"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
	"gorm.io/gorm"
)

// 本物のPostgres（行ロック・一意制約）で競合系を確かめる
func openPostgres(t *testing.T) *gorm.DB {
	t.Helper()
	ctx := context.Background()

	pgContainer, err := postgres.Run(ctx,
		"postgres:16-alpine",
		postgres.WithDatabase("testdb"),
		postgres.WithUsername("testuser"),
		postgres.WithPassword("testpass"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second),
		),
	)
	require.NoError(t, err)
	t.Cleanup(func() {
		if err := pgContainer.Terminate(ctx); err != nil {
			t.Logf("failed to terminate container: %s", err)
		}
	})

	dsn, err := pgContainer.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	gdb, err := db.Connect(config.Database{
		Driver:          "postgres",
		URL:             dsn,
		MaxOpenConns:    20,
		MaxIdleConns:    5,
		ConnMaxLifetime: time.Minute,
	})
	require.NoError(t, err)
	require.NoError(t, db.Migrate(gdb))
	t.Cleanup(func() {
		if sqlDB, err := gdb.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})
	return gdb
}

func TestPostgres_Reconciliation(t *testing.T) {
	gdb := openPostgres(t)

	reset := func(t *testing.T) *testEnv {
		t.Helper()
		require.NoError(t, gdb.Exec("TRUNCATE templates, template_variants, carts, cart_items, payment_intents, orders, order_items, outbox_events, audit_logs RESTART IDENTITY").Error)
		e := newTestEnvOn(t, gdb)
		e.seedTemplate(t, "t1", 1000, true)
		e.seedTemplate(t, "x", 300, true)
		return e
	}

	t.Run("ten concurrent deliveries create one order", func(t *testing.T) {
		e := reset(t)
		e.addToCart(t, "u1", "t1", 2)

		co, err := e.checkout.StartCheckout(context.Background(), "u1")
		require.NoError(t, err)
		body, header, err := e.gw.SignedEvent(co.IntentID, "intent.succeeded", "")
		require.NoError(t, err)

		var wg sync.WaitGroup
		outcomes := make([]usecase.NotificationOutcome, 10)
		errs := make([]error, 10)
		for i := range outcomes {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				res, err := e.reconcile.HandlePaymentNotification(context.Background(), header, body)
				outcomes[i], errs[i] = res.Outcome, err
			}(i)
		}
		wg.Wait()

		created := 0
		for i := range errs {
			require.NoError(t, errs[i])
			if outcomes[i] == usecase.OutcomeOrderCreated {
				created++
			}
		}
		assert.Equal(t, 1, created)
		assert.Equal(t, int64(1), e.countOrders(t, co.IntentID))
		assert.Empty(t, e.cartLines(t, "u1"))
	})

	t.Run("concurrent add lands in exactly one place", func(t *testing.T) {
		for i := 0; i < 10; i++ {
			e := reset(t)
			ctx := context.Background()
			user := fmt.Sprintf("u%d", i)
			e.addToCart(t, user, "t1", 1)

			co, err := e.checkout.StartCheckout(ctx, user)
			require.NoError(t, err)
			body, header, err := e.gw.SignedEvent(co.IntentID, "intent.succeeded", "")
			require.NoError(t, err)

			var wg sync.WaitGroup
			var res usecase.NotificationResult
			var addErr, recErr error
			wg.Add(2)
			go func() {
				defer wg.Done()
				_, addErr = e.cart.AddOrIncrement(ctx, user, usecase.AddCartLineInput{TemplateID: "x", Quantity: 1})
			}()
			go func() {
				defer wg.Done()
				res, recErr = e.reconcile.HandlePaymentNotification(ctx, header, body)
			}()
			wg.Wait()
			require.NoError(t, addErr)
			require.NoError(t, recErr)
			require.NotNil(t, res.OrderID)

			items, err := e.items.ListByOrderID(ctx, *res.OrderID)
			require.NoError(t, err)
			inOrder := false
			for _, it := range items {
				inOrder = inOrder || it.TemplateID == "x"
			}
			inCart := false
			for _, l := range e.cartLines(t, user) {
				inCart = inCart || l.TemplateID == "x"
			}
			assert.True(t, inOrder != inCart)
		}
	})

	t.Run("mid-transaction failure rolls everything back", func(t *testing.T) {
		e := reset(t)
		e.addToCart(t, "u1", "t1", 1)
		co, err := e.checkout.StartCheckout(context.Background(), "u1")
		require.NoError(t, err)

		e.wire(t, e.gw, failingItemsTx{inner: e.tm}, nil)
		body, header, err := e.gw.SignedEvent(co.IntentID, "intent.succeeded", "")
		require.NoError(t, err)
		_, err = e.reconcile.HandlePaymentNotification(context.Background(), header, body)
		require.ErrorIs(t, err, errSimulatedCrash)

		assert.Equal(t, int64(0), e.countOrders(t, co.IntentID))
		assert.Len(t, e.cartLines(t, "u1"), 1)
	})
}
