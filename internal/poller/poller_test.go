package poller

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func fastConfig(attempts int) Config {
	return Config{MaxAttempts: attempts, InitialDelay: time.Millisecond, MaxDelay: 4 * time.Millisecond}
}

type scriptedFetcher struct {
	calls int
	errs  []error
	order Order
}

func (f *scriptedFetcher) FetchOrder(context.Context, string) (Order, error) {
	i := f.calls
	f.calls++
	if i < len(f.errs) {
		return Order{}, f.errs[i]
	}
	return f.order, nil
}

func TestWait_ConfirmsAfterNotYet(t *testing.T) {
	f := &scriptedFetcher{errs: []error{ErrNotYet, errors.New("connection reset"), ErrNotYet}, order: Order{ID: 7, Status: "COMPLETED"}}
	p := New(f, fastConfig(5), discardLogger())

	res, err := p.Wait(context.Background(), "pi_1")
	require.NoError(t, err)
	assert.Equal(t, StatusConfirmed, res.Status)
	assert.Equal(t, 4, res.Attempts)
	require.NotNil(t, res.Order)
	assert.Equal(t, int64(7), res.Order.ID)
}

func TestWait_GivesUpAsPendingNotFailure(t *testing.T) {
	f := &scriptedFetcher{errs: []error{ErrNotYet, ErrNotYet, ErrNotYet}}
	p := New(f, fastConfig(3), discardLogger())

	res, err := p.Wait(context.Background(), "pi_1")
	require.NoError(t, err)
	assert.Equal(t, StatusPending, res.Status)
	assert.Equal(t, 3, res.Attempts)
	assert.Equal(t, 3, f.calls)
	assert.Nil(t, res.Order)
	assert.NotEmpty(t, res.Message)
}

func TestWait_StopsOnTerminal(t *testing.T) {
	f := &scriptedFetcher{errs: []error{ErrNotYet, ErrTerminal}}
	p := New(f, fastConfig(5), discardLogger())

	_, err := p.Wait(context.Background(), "pi_1")
	assert.ErrorIs(t, err, ErrTerminal)
	assert.Equal(t, 2, f.calls)

	_, err = p.Wait(context.Background(), "")
	assert.ErrorIs(t, err, ErrTerminal)
}

func TestWait_HonorsContext(t *testing.T) {
	f := &scriptedFetcher{errs: []error{ErrNotYet, ErrNotYet, ErrNotYet}}
	p := New(f, Config{MaxAttempts: 3, InitialDelay: time.Hour}, discardLogger())

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	_, err := p.Wait(ctx, "pi_1")
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Equal(t, 1, f.calls)
}

func TestNew_AppliesDefaults(t *testing.T) {
	p := New(&scriptedFetcher{}, Config{}, discardLogger())
	assert.Equal(t, DefaultConfig(), p.cfg)

	// MaxDelayだけ未指定でも既定の上限で指数バックオフする
	p = New(&scriptedFetcher{}, Config{MaxAttempts: 4, InitialDelay: 100 * time.Millisecond}, discardLogger())
	assert.Equal(t, DefaultConfig().MaxDelay, p.cfg.MaxDelay)

	// 上限は初期待ち時間より短くならない
	p = New(&scriptedFetcher{}, Config{InitialDelay: 20 * time.Second}, discardLogger())
	assert.Equal(t, 20*time.Second, p.cfg.MaxDelay)
}

func TestHTTPFetcher(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer tok", r.Header.Get("Authorization"))
		switch r.URL.Path {
		case "/orders/by-intent/pi_ok":
			if hits.Add(1) < 2 {
				w.WriteHeader(http.StatusNotFound)
				_, _ = w.Write([]byte(`{"error":"order not created yet","code":"NOT_FOUND"}`))
				return
			}
			_, _ = w.Write([]byte(`{"id":3,"status":"COMPLETED","total":2000,"amount":"20.00","currency":"USD","payment_intent_id":"pi_ok","items":[{"template_id":"t1","quantity":2}]}`))
		case "/orders/by-intent/pi_busy":
			w.WriteHeader(http.StatusServiceUnavailable)
		default:
			w.WriteHeader(http.StatusUnauthorized)
		}
	}))
	defer srv.Close()

	f := NewHTTPFetcher(srv.URL+"/", "tok", time.Second)
	ctx := context.Background()

	_, err := f.FetchOrder(ctx, "pi_ok")
	assert.ErrorIs(t, err, ErrNotYet)
	o, err := f.FetchOrder(ctx, "pi_ok")
	require.NoError(t, err)
	assert.Equal(t, "20.00", o.Amount)
	require.Len(t, o.Items, 1)

	_, err = f.FetchOrder(ctx, "pi_busy")
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrTerminal)
	assert.NotErrorIs(t, err, ErrNotYet)

	_, err = f.FetchOrder(ctx, "pi_other")
	assert.ErrorIs(t, err, ErrTerminal)

	// Pollerと組み合わせ
	res, err := New(NewHTTPFetcher(srv.URL, "tok", time.Second), fastConfig(3), discardLogger()).Wait(ctx, "pi_busy")
	require.NoError(t, err)
	assert.Equal(t, StatusPending, res.Status)
}
