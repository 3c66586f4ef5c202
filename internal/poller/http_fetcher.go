package poller

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// HTTPFetcher は GET /orders/by-intent/{id} を叩く
type HTTPFetcher struct {
	baseURL string
	token   string
	client  *http.Client
}

func NewHTTPFetcher(baseURL, bearerToken string, timeout time.Duration) *HTTPFetcher {
	return &HTTPFetcher{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   bearerToken,
		client:  &http.Client{Timeout: timeout},
	}
}

func (f *HTTPFetcher) FetchOrder(ctx context.Context, intentID string) (Order, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, f.baseURL+"/orders/by-intent/"+url.PathEscape(intentID), nil)
	if err != nil {
		return Order{}, fmt.Errorf("%w: build request: %v", ErrTerminal, err)
	}
	req.Header.Set("Accept", "application/json")
	if f.token != "" {
		req.Header.Set("Authorization", "Bearer "+f.token)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return Order{}, fmt.Errorf("poll request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return Order{}, fmt.Errorf("read poll response: %w", err)
	}

	switch {
	case resp.StatusCode == http.StatusOK:
		var o Order
		if err := json.Unmarshal(body, &o); err != nil {
			return Order{}, fmt.Errorf("%w: decode order: %v", ErrTerminal, err)
		}
		return o, nil
	case resp.StatusCode == http.StatusNotFound:
		return Order{}, ErrNotYet
	case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
		return Order{}, fmt.Errorf("poll status %d", resp.StatusCode)
	default:
		return Order{}, fmt.Errorf("%w: status %d: %s", ErrTerminal, resp.StatusCode, strings.TrimSpace(string(body)))
	}
}
