package routes

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"restbucks/internal/adapter/http/dto/response"
	"restbucks/internal/config"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestServer(t *testing.T, mutate func(*config.Config)) *httptest.Server {
	t.Helper()
	gin.SetMode(gin.TestMode)

	payments := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.Copy(io.Discard, r.Body)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"status":"approved","transaction_id":"TXN-42"}`))
	}))
	t.Cleanup(payments.Close)

	cfg := config.Default()
	cfg.Store.Driver = config.StoreDriverMemory
	cfg.Payment.ServiceURL = payments.URL
	if mutate != nil {
		mutate(&cfg)
	}

	deps, err := BuildDependencies(context.Background(), cfg)
	require.NoError(t, err)
	t.Cleanup(deps.Close)

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go deps.Hub.Run(ctx)

	srv := httptest.NewServer(NewRouter(cfg, deps))
	t.Cleanup(srv.Close)
	return srv
}

func send(t *testing.T, method, url, body string) *http.Response {
	t.Helper()
	req, err := http.NewRequest(method, url, strings.NewReader(body))
	require.NoError(t, err)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { _ = resp.Body.Close() })
	return resp
}

func TestRouter_OrderLifecycle(t *testing.T) {
	srv := newTestServer(t, nil)
	base := srv.URL + "/v1/orders"

	resp := send(t, http.MethodPost, base, `{"drink":"latte","size":"large","shots":2}`)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	var created response.OrderResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&created))
	assert.Equal(t, "pending", created.Status)
	assert.Equal(t, srv.URL+"/v1/orders/"+created.ID, resp.Header.Get("Location"))

	pay := send(t, http.MethodPut, base+"/"+created.ID+"/payment", `{"card_number":"4111111111111111","amount":100}`)
	require.Equal(t, http.StatusCreated, pay.StatusCode)
	var paid response.OrderResponse
	require.NoError(t, json.NewDecoder(pay.Body).Decode(&paid))
	assert.True(t, paid.Paid)
	assert.Equal(t, "1111", paid.CardLastFour)
	assert.Equal(t, "TXN-42", paid.PaymentTransactionID)

	for _, status := range []string{"preparing", "ready", "delivered"} {
		r := send(t, http.MethodPut, base+"/"+created.ID+"/status?status="+status, "")
		require.Equal(t, http.StatusOK, r.StatusCode, status)
	}

	cancel := send(t, http.MethodDelete, base+"/"+created.ID, "")
	assert.Equal(t, http.StatusConflict, cancel.StatusCode)

	list := send(t, http.MethodGet, base+"?status=delivered", "")
	require.Equal(t, http.StatusOK, list.StatusCode)
	var orders []response.OrderResponse
	require.NoError(t, json.NewDecoder(list.Body).Decode(&orders))
	assert.Len(t, orders, 1)
}

func TestRouter_HealthAndMetrics(t *testing.T) {
	srv := newTestServer(t, nil)

	resp := send(t, http.MethodGet, srv.URL+"/health", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var report map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&report))
	assert.Equal(t, "healthy", report["status"])
	assert.Equal(t, "closed", report["store_breaker"])

	ping := send(t, http.MethodGet, srv.URL+"/v1/ping", "")
	assert.Equal(t, http.StatusOK, ping.StatusCode)
	assert.Equal(t, "9", ping.Header.Get("X-RateLimit-Remaining"))

	metrics := send(t, http.MethodGet, srv.URL+"/metrics", "")
	require.Equal(t, http.StatusOK, metrics.StatusCode)
	body, _ := io.ReadAll(metrics.Body)
	assert.Contains(t, string(body), `restbucks_rate_limit_decisions_total{result="allowed"} 1`)
	assert.Contains(t, string(body), "go_goroutines")
}

func TestRouter_RateLimitCoversAPIOnly(t *testing.T) {
	srv := newTestServer(t, func(c *config.Config) {
		c.RateLimit.Limit = 2
		c.RateLimit.Window = time.Minute
	})

	for i := 0; i < 2; i++ {
		assert.Equal(t, http.StatusOK, send(t, http.MethodGet, srv.URL+"/v1/ping", "").StatusCode)
	}
	limited := send(t, http.MethodGet, srv.URL+"/v1/orders", "")
	assert.Equal(t, http.StatusTooManyRequests, limited.StatusCode)
	assert.NotEmpty(t, limited.Header.Get("Retry-After"))

	assert.Equal(t, http.StatusOK, send(t, http.MethodGet, srv.URL+"/health", "").StatusCode)
}

func TestRouter_RateLimitIgnoresForwardedForByDefault(t *testing.T) {
	srv := newTestServer(t, func(c *config.Config) {
		c.RateLimit.Limit = 2
		c.RateLimit.Window = time.Minute
	})

	status := make([]int, 0, 3)
	for i, xff := range []string{"203.0.113.1", "203.0.113.2", "203.0.113.3"} {
		req, err := http.NewRequest(http.MethodGet, srv.URL+"/v1/ping", nil)
		require.NoError(t, err)
		req.Header.Set("X-Forwarded-For", xff)
		req.Header.Set("X-Real-IP", xff)
		resp, err := http.DefaultClient.Do(req)
		require.NoError(t, err, "request %d", i)
		_ = resp.Body.Close()
		status = append(status, resp.StatusCode)
	}
	assert.Equal(t, []int{http.StatusOK, http.StatusOK, http.StatusTooManyRequests}, status)
}

func TestRouter_RateLimitHonoursTrustedProxy(t *testing.T) {
	srv := newTestServer(t, func(c *config.Config) {
		c.RateLimit.Limit = 1
		c.RateLimit.Window = time.Minute
		c.Service.TrustedProxies = []string{"127.0.0.1", "::1"}
	})

	for _, xff := range []string{"203.0.113.1", "203.0.113.2"} {
		req, err := http.NewRequest(http.MethodGet, srv.URL+"/v1/ping", nil)
		require.NoError(t, err)
		req.Header.Set("X-Forwarded-For", xff)
		resp, err := http.DefaultClient.Do(req)
		require.NoError(t, err)
		_ = resp.Body.Close()
		assert.Equal(t, http.StatusOK, resp.StatusCode, "client %s has its own budget", xff)
	}
}

func TestBuildDependencies_UnknownStore(t *testing.T) {
	cfg := config.Default()
	cfg.Store.Driver = "sqlite"
	_, err := BuildDependencies(context.Background(), cfg)
	assert.Error(t, err)
}
