package server_test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"templateshop/internal/config"
	"templateshop/internal/domain/model"
	"templateshop/internal/gateway"
	"templateshop/internal/infra/cache"
	"templateshop/internal/infra/db/dbtest"
	infraRepo "templateshop/internal/infra/repository"
	"templateshop/internal/server"

	"github.com/golang-jwt/jwt/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	jwtSecret     = "test-jwt-secret"
	webhookSecret = "whsec_test"
)

type testServer struct {
	url string
	gw  *gateway.FakeGateway
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	gdb := dbtest.Open(t)

	cfg := config.Config{Environment: "test", JWTSecret: jwtSecret}
	cfg.Cart.MaxLineQuantity = 10
	cfg.Gateway.Currency = "USD"
	cfg.Gateway.Timeout = time.Second

	require.NoError(t, infraRepo.NewTemplateGormRepository(gdb).Create(context.Background(), model.Template{
		ID: "tmpl_a", Name: "Invoice", Price: 1000, Currency: "USD", IsActive: true,
	}))

	fake := gateway.NewFakeGateway(webhookSecret)
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	h := server.BuildHandlers(cfg, server.Deps{
		DB:       gdb,
		Gateway:  fake,
		Fake:     fake,
		Cache:    cache.NoopOrderCache{},
		Verifier: gateway.NewVerifier(webhookSecret, 5*time.Minute),
	}, log)

	srv := httptest.NewServer(server.New(cfg, log, h).Echo())
	t.Cleanup(srv.Close)
	return &testServer{url: srv.URL, gw: fake}
}

func token(t *testing.T, sub, role string) string {
	t.Helper()
	s, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": sub, "role": role, "exp": time.Now().Add(time.Hour).Unix(),
	}).SignedString([]byte(jwtSecret))
	require.NoError(t, err)
	return s
}

func (s *testServer) do(t *testing.T, method, path, bearer string, body any) (int, []byte) {
	t.Helper()

	var r io.Reader
	if body != nil {
		switch b := body.(type) {
		case []byte:
			r = bytes.NewReader(b)
		default:
			raw, err := json.Marshal(b)
			require.NoError(t, err)
			r = bytes.NewReader(raw)
		}
	}
	req, err := http.NewRequest(method, s.url+path, r)
	require.NoError(t, err)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()
	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp.StatusCode, data
}

type errorBody struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

func decode[T any](t *testing.T, data []byte) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(data, &v), string(data))
	return v
}

func TestHealthz(t *testing.T) {
	s := newTestServer(t)
	code, _ := s.do(t, http.MethodGet, "/healthz", "", nil)
	assert.Equal(t, http.StatusOK, code)
}

func TestCheckoutFlow_EndToEnd(t *testing.T) {
	s := newTestServer(t)
	user := token(t, "user-1", "USER")

	code, body := s.do(t, http.MethodPost, "/cart", user, map[string]any{"template_id": "tmpl_a", "quantity": 2})
	require.Equal(t, http.StatusOK, code, string(body))

	code, body = s.do(t, http.MethodPost, "/checkout/start", user, nil)
	require.Equal(t, http.StatusCreated, code, string(body))
	co := decode[struct {
		IntentID         string `json:"intent_id"`
		ClientSecret     string `json:"client_secret"`
		AmountMinorUnits int64  `json:"amount_minor_units"`
		Amount           string `json:"amount"`
	}](t, body)
	assert.Equal(t, int64(2000), co.AmountMinorUnits)
	assert.Equal(t, "20.00", co.Amount)
	assert.NotEmpty(t, co.ClientSecret)

	// 通知前：404は「まだ」
	code, body = s.do(t, http.MethodGet, "/orders/by-intent/"+co.IntentID, user, nil)
	assert.Equal(t, http.StatusNotFound, code)
	assert.Equal(t, "NOT_FOUND", decode[errorBody](t, body).Code)

	// 決済サービスからの通知
	raw, header, err := s.gw.SignedEvent(co.IntentID, gateway.EventIntentSucceeded, "")
	require.NoError(t, err)
	req, err := http.NewRequest(http.MethodPost, s.url+"/webhooks/payment", bytes.NewReader(raw))
	require.NoError(t, err)
	req.Header.Set(gateway.SignatureHeader, header)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	_ = resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	code, body = s.do(t, http.MethodGet, "/orders/by-intent/"+co.IntentID, user, nil)
	require.Equal(t, http.StatusOK, code, string(body))
	order := decode[struct {
		ID     int64  `json:"id"`
		Status string `json:"status"`
		Total  int64  `json:"total"`
	}](t, body)
	assert.Equal(t, "COMPLETED", order.Status)
	assert.Equal(t, int64(2000), order.Total)

	// カートは空になっている
	code, body = s.do(t, http.MethodGet, "/cart", user, nil)
	require.Equal(t, http.StatusOK, code)
	assert.Empty(t, decode[struct {
		Items []json.RawMessage `json:"items"`
	}](t, body).Items)

	// 完了済みはユーザーからキャンセルできない
	code, body = s.do(t, http.MethodPost, "/orders/"+strconv.FormatInt(order.ID, 10)+"/cancel", user, nil)
	assert.Equal(t, http.StatusConflict, code)
	assert.Equal(t, "INVALID_STATE", decode[errorBody](t, body).Code)

	// 管理者は上書きできる
	admin := token(t, "admin-1", "ADMIN")
	code, body = s.do(t, http.MethodPut, "/admin/orders/"+strconv.FormatInt(order.ID, 10)+"/status", admin, map[string]string{"status": "CANCELLED"})
	require.Equal(t, http.StatusOK, code, string(body))
	assert.Equal(t, "CANCELLED", decode[struct {
		Status string `json:"status"`
	}](t, body).Status)
}

func TestWebhook_ForgedIsRejected(t *testing.T) {
	s := newTestServer(t)

	body := []byte(`{"id":"evt_1","type":"intent.succeeded","intentId":"pi_x","metadata":{"userId":"u1"}}`)
	req, err := http.NewRequest(http.MethodPost, s.url+"/webhooks/payment", bytes.NewReader(body))
	require.NoError(t, err)
	req.Header.Set(gateway.SignatureHeader, gateway.Sign("wrong", body, time.Now()))
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()

	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	var e errorBody
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&e))
	assert.Equal(t, "FORGED_NOTIFICATION", e.Code)
}

func TestCart_ErrorsCarryCode(t *testing.T) {
	s := newTestServer(t)
	user := token(t, "user-1", "USER")

	code, body := s.do(t, http.MethodPost, "/cart", user, map[string]any{"template_id": "tmpl_a", "quantity": 11})
	assert.Equal(t, http.StatusUnprocessableEntity, code)
	assert.Equal(t, "QUANTITY_LIMIT_EXCEEDED", decode[errorBody](t, body).Code)

	code, body = s.do(t, http.MethodPost, "/checkout/start", user, nil)
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, "CART_EMPTY", decode[errorBody](t, body).Code)

	code, _ = s.do(t, http.MethodPatch, "/cart/abc", user, map[string]any{"quantity": 1})
	assert.Equal(t, http.StatusBadRequest, code)

	code, _ = s.do(t, http.MethodGet, "/cart", "", nil)
	assert.Equal(t, http.StatusUnauthorized, code)
}

func TestAdminRoutes_RequireAdmin(t *testing.T) {
	s := newTestServer(t)

	code, _ := s.do(t, http.MethodGet, "/admin/orders", token(t, "user-1", "USER"), nil)
	assert.Equal(t, http.StatusForbidden, code)

	code, body := s.do(t, http.MethodGet, "/admin/payment-intents/unreconciled", token(t, "admin-1", "ADMIN"), nil)
	require.Equal(t, http.StatusOK, code, string(body))

	code, _ = s.do(t, http.MethodGet, "/admin/orders?from=yesterday", token(t, "admin-1", "ADMIN"), nil)
	assert.Equal(t, http.StatusBadRequest, code)
}

func TestDevPaymentRoute_CompletesIntent(t *testing.T) {
	s := newTestServer(t)
	user := token(t, "user-1", "USER")

	s.do(t, http.MethodPost, "/cart", user, map[string]any{"template_id": "tmpl_a", "quantity": 1})
	_, body := s.do(t, http.MethodPost, "/checkout/start", user, nil)
	intentID := decode[struct {
		IntentID string `json:"intent_id"`
	}](t, body).IntentID

	code, body := s.do(t, http.MethodPost, "/dev/payment-intents/"+intentID+"/complete", "", map[string]string{"outcome": "succeeded"})
	require.Equal(t, http.StatusOK, code, string(body))
	assert.Equal(t, "order_created", decode[struct {
		Outcome string `json:"outcome"`
	}](t, body).Outcome)

	code, _ = s.do(t, http.MethodPost, "/dev/payment-intents/pi_unknown/complete", "", map[string]string{})
	assert.Equal(t, http.StatusNotFound, code)
}
