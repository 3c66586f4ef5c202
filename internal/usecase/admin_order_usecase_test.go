package usecase_test

import (
	"context"
	"testing"

	"templateshop/internal/domain/model"
	repo "templateshop/internal/repository"
	"templateshop/internal/usecase"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAdminOverrideStatus_CompletedToCancelledIsAudited(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()
	e.seedTemplate(t, "t1", 1000, true)
	e.addToCart(t, "u1", "t1", 1)
	_, res := e.checkoutAndPay(t, "u1")
	orderID := *res.OrderID

	got, err := e.admin.OverrideStatus(ctx, "admin-1", orderID, usecase.AdminOverrideStatusInput{Status: "cancelled"})
	require.NoError(t, err)
	assert.Equal(t, "CANCELLED", got.Status)

	var logs []model.AuditLog
	require.NoError(t, e.db.Find(&logs).Error)
	require.Len(t, logs, 1)
	assert.Equal(t, "admin-1", logs[0].ActorUserID)
	assert.Equal(t, model.AuditActionOverrideOrderStatus, logs[0].Action)
	assert.JSONEq(t, `{"status":"COMPLETED"}`, logs[0].BeforeJSON)
	assert.JSONEq(t, `{"status":"CANCELLED"}`, logs[0].AfterJSON)

	history, err := e.admin.OrderHistory(ctx, orderID)
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.JSONEq(t, `{"status":"CANCELLED"}`, string(history[0].After))

	// CANCELLEDは誰にとっても終端
	_, err = e.admin.OverrideStatus(ctx, "admin-1", orderID, usecase.AdminOverrideStatusInput{Status: "COMPLETED"})
	assert.ErrorIs(t, err, usecase.ErrInvalidState)

	// 同じステータスは何もしない（監査ログも増えない）
	_, err = e.admin.OverrideStatus(ctx, "admin-1", orderID, usecase.AdminOverrideStatusInput{Status: "CANCELLED"})
	require.NoError(t, err)
	require.NoError(t, e.db.Find(&logs).Error)
	assert.Len(t, logs, 1)
}

func TestAdminOverrideStatus_Validation(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()

	_, err := e.admin.OverrideStatus(ctx, "admin-1", 1, usecase.AdminOverrideStatusInput{Status: "SHIPPED"})
	assert.ErrorIs(t, err, usecase.ErrValidation)

	_, err = e.admin.OverrideStatus(ctx, "admin-1", 999, usecase.AdminOverrideStatusInput{Status: "CANCELLED"})
	assert.ErrorIs(t, err, usecase.ErrNotFound)

	_, err = e.admin.OverrideStatus(ctx, "", 1, usecase.AdminOverrideStatusInput{Status: "CANCELLED"})
	assert.ErrorIs(t, err, usecase.ErrUnauthorized)

	_, err = e.admin.OrderHistory(ctx, 999)
	assert.ErrorIs(t, err, usecase.ErrNotFound)
}

func TestAdminList_Filters(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()
	e.seedTemplate(t, "t1", 1000, true)
	e.addToCart(t, "u1", "t1", 1)
	e.checkoutAndPay(t, "u1")
	e.addToCart(t, "u2", "t1", 1)
	e.checkoutAndPay(t, "u2")

	u2 := "u2"
	out, err := e.admin.List(ctx, repo.AdminOrderListFilter{Page: 1, Limit: 10, UserID: &u2})
	require.NoError(t, err)
	assert.Equal(t, int64(1), out.Total)
	require.Len(t, out.Items, 1)
	assert.Len(t, out.Items[0].Items, 1)

	_, err = e.admin.List(ctx, repo.AdminOrderListFilter{Page: 1, Limit: 10, Status: "BOGUS"})
	assert.ErrorIs(t, err, usecase.ErrValidation)
	_, err = e.admin.List(ctx, repo.AdminOrderListFilter{Page: 0, Limit: 10})
	assert.ErrorIs(t, err, usecase.ErrValidation)
}
