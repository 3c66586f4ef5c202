package usecase_test

import (
	"context"
	"fmt"
	"testing"

	"templateshop/internal/gateway"
	"templateshop/internal/usecase"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func TestStartCheckout_SendsTotalAndMetadata(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()
	e.seedTemplate(t, "t1", 1000, true)
	e.seedTemplate(t, "t2", 250, true)
	e.addToCart(t, "u1", "t1", 2)
	e.addToCart(t, "u1", "t2", 1)

	gw := new(GatewayMock)
	gw.On("CreateIntent", mock.Anything, mock.MatchedBy(func(req gateway.CreateIntentRequest) bool {
		return req.AmountMinorUnits == 2250 &&
			req.Currency == "USD" &&
			req.Metadata.UserID == "u1" &&
			req.Metadata.ItemCount == 3 &&
			len(req.Metadata.CartHash) == 64 &&
			req.IdempotencyKey != ""
	})).Return(gateway.CreateIntentResult{IntentID: "pi_m", ClientSecret: "sec"}, nil).Once()
	e.wire(t, gw, e.tm, nil)

	out, err := e.checkout.StartCheckout(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, "pi_m", out.IntentID)
	assert.Equal(t, "sec", out.ClientSecret)
	assert.Equal(t, "22.50", out.Amount)
	gw.AssertExpectations(t)

	// カートは変わらない
	assert.Len(t, e.cartLines(t, "u1"), 2)
	assert.Equal(t, int64(0), e.countOrders(t, "pi_m"))

	pi, err := e.intents.FindByID(ctx, "pi_m")
	require.NoError(t, err)
	assert.Equal(t, int64(2250), pi.AmountMinorUnits)
	assert.Equal(t, int64(3), pi.ItemCount)
}

func TestStartCheckout_EmptyCart(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()

	_, err := e.checkout.StartCheckout(ctx, "u1")
	assert.ErrorIs(t, err, usecase.ErrCartEmpty)

	e.seedTemplate(t, "t1", 1000, true)
	e.addToCart(t, "u1", "t1", 1)
	_, err = e.cart.ClearAll(ctx, "u1")
	require.NoError(t, err)

	_, err = e.checkout.StartCheckout(ctx, "u1")
	assert.ErrorIs(t, err, usecase.ErrCartEmpty)
}

func TestStartCheckout_TemplateUnavailableListsLines(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()
	e.seedTemplate(t, "t1", 1000, true)
	e.seedTemplate(t, "t2", 500, true)
	e.addToCart(t, "u1", "t1", 1)
	e.addToCart(t, "u1", "t2", 1)

	lines := e.cartLines(t, "u1")
	require.NoError(t, e.db.Exec("UPDATE templates SET is_active = ? WHERE id = ?", false, "t2").Error)

	gw := new(GatewayMock)
	e.wire(t, gw, e.tm, nil)

	_, err := e.checkout.StartCheckout(ctx, "u1")
	assert.ErrorIs(t, err, usecase.ErrTemplateUnavailable)
	he, ok := usecase.AsHTTPError(err)
	require.True(t, ok)
	assert.Contains(t, fmt.Sprintf("%v", he.Details), fmt.Sprintf("%d", lines[1].ID))
	gw.AssertNotCalled(t, "CreateIntent", mock.Anything, mock.Anything)
}

func TestStartCheckout_GatewayFailuresLeaveNoState(t *testing.T) {
	tests := []struct {
		name    string
		gwErr   error
		wantErr error
		status  int
	}{
		{"unavailable", fmt.Errorf("%w: timeout", gateway.ErrUnavailable), usecase.ErrGatewayUnavailable, 503},
		{"rejected", fmt.Errorf("%w: status 400", gateway.ErrRejected), usecase.ErrGatewayRejected, 502},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := newTestEnv(t)
			ctx := context.Background()
			e.seedTemplate(t, "t1", 1000, true)
			e.addToCart(t, "u1", "t1", 1)

			gw := new(GatewayMock)
			gw.On("CreateIntent", mock.Anything, mock.Anything).Return(nil, tt.gwErr).Once()
			e.wire(t, gw, e.tm, nil)

			_, err := e.checkout.StartCheckout(ctx, "u1")
			assert.ErrorIs(t, err, tt.wantErr)
			he, ok := usecase.AsHTTPError(err)
			require.True(t, ok)
			assert.Equal(t, tt.status, he.Status)

			var n int64
			require.NoError(t, e.db.Table("payment_intents").Count(&n).Error)
			assert.Equal(t, int64(0), n)
			assert.Len(t, e.cartLines(t, "u1"), 1)
		})
	}
}
