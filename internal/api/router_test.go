package api

import (
	"bytes"
	"encoding/json"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/example/swachh-infra/internal/khata"
	"github.com/example/swachh-infra/internal/registry"
	"github.com/example/swachh-infra/internal/security"
	"github.com/example/swachh-infra/pkg/audit"
)

type testEnvelope struct {
	Success bool            `json:"success"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

func newTestServer(t *testing.T, mutate func(*Dependencies)) (*httptest.Server, Dependencies) {
	t.Helper()

	reg, err := registry.Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = reg.Close() })

	deps := Dependencies{
		Ledger:         khata.NewService(khata.NewMemoryStore(), nil),
		Registry:       reg,
		Auditor:        audit.NewChainLogger(),
		AdminAllowlist: mustAllowlist(t, "127.0.0.0/8"),
		MaxBodyBytes:   1 << 20,
	}
	if mutate != nil {
		mutate(&deps)
	}

	h, err := NewRouter(deps)
	require.NoError(t, err)

	ts := httptest.NewServer(h)
	t.Cleanup(ts.Close)
	return ts, deps
}

func mustAllowlist(t *testing.T, cidrs ...string) []*net.IPNet {
	t.Helper()
	nets, err := security.ParseCIDRAllowlist(cidrs)
	require.NoError(t, err)
	return nets
}

func doJSON(t *testing.T, method, url string, body any) (*http.Response, testEnvelope) {
	t.Helper()

	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}

	req, err := http.NewRequest(method, url, reader)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	var env testEnvelope
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&env))
	return resp, env
}

func TestDashboardRequiresDate(t *testing.T) {
	ts, _ := newTestServer(t, nil)

	resp, env := doJSON(t, http.MethodGet, ts.URL+"/dashboard", nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.False(t, env.Success)
	assert.Equal(t, "date is required", env.Message)
}

func TestAddSellFlow(t *testing.T) {
	ts, _ := newTestServer(t, nil)

	resp, env := doJSON(t, http.MethodPost, ts.URL+"/add", map[string]any{
		"date": "2024-05-01", "amount": 100,
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.True(t, env.Success)
	assert.Equal(t, "Stock added", env.Message)

	var res khata.Result
	require.NoError(t, json.Unmarshal(env.Data, &res))
	assert.Equal(t, int64(100), res.Summary.Stock)
	assert.Equal(t, int64(100), res.Today.Made)
	assert.Equal(t, khata.TxMake, res.Tx.Type)

	resp, env = doJSON(t, http.MethodPost, ts.URL+"/sell", map[string]any{
		"date": "2024-05-01", "amount": "30",
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.NoError(t, json.Unmarshal(env.Data, &res))
	assert.Equal(t, int64(70), res.Summary.Stock)
	assert.Equal(t, int64(30), res.Today.Sold)

	// Overdraft refused with the ledger's own message.
	resp, env = doJSON(t, http.MethodPost, ts.URL+"/sell", map[string]any{
		"date": "2024-05-01", "amount": 1000,
	})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "Not enough stock!", env.Message)

	resp, env = doJSON(t, http.MethodGet, ts.URL+"/dashboard?date=2024-05-01", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var dash struct {
		Summary      khata.StockSummary  `json:"summary"`
		Today        khata.DailyRollup   `json:"today"`
		Transactions []khata.Transaction `json:"transactions"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &dash))
	assert.Equal(t, int64(70), dash.Summary.Stock)
	require.Len(t, dash.Transactions, 2)
	assert.Equal(t, khata.TxSell, dash.Transactions[0].Type)
}

func TestStockActionValidation(t *testing.T) {
	ts, _ := newTestServer(t, nil)

	resp, env := doJSON(t, http.MethodPost, ts.URL+"/add", map[string]any{
		"date": "2024-05-01", "amount": "ten",
	})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "amount must be a positive number", env.Message)

	resp, env = doJSON(t, http.MethodPost, ts.URL+"/add", map[string]any{
		"amount": 10,
	})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "date is required", env.Message)

	// Unknown fields are rejected structurally before the service runs.
	resp, env = doJSON(t, http.MethodPost, ts.URL+"/add", map[string]any{
		"date": "2024-05-01", "amount": 10, "extra": true,
	})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "request body failed validation", env.Message)
}

func TestRegistryRoutes(t *testing.T) {
	ts, _ := newTestServer(t, nil)

	resp, env := doJSON(t, http.MethodPost, ts.URL+"/v1/wards", map[string]any{
		"name": "Ward 7", "zone": "South",
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	var ward registry.Ward
	require.NoError(t, json.Unmarshal(env.Data, &ward))
	require.NotEmpty(t, ward.ID)

	resp, env = doJSON(t, http.MethodGet, ts.URL+"/v1/wards", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var wards []registry.Ward
	require.NoError(t, json.Unmarshal(env.Data, &wards))
	require.Len(t, wards, 1)

	resp, env = doJSON(t, http.MethodPut, ts.URL+"/v1/wards/"+ward.ID, map[string]any{
		"name": "Ward 7", "zone": "South-East",
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp, _ = doJSON(t, http.MethodDelete, ts.URL+"/v1/wards/"+ward.ID, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp, env = doJSON(t, http.MethodGet, ts.URL+"/v1/wards/"+ward.ID, nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Equal(t, "record not found", env.Message)

	// Validation failures name the missing field.
	resp, env = doJSON(t, http.MethodPost, ts.URL+"/v1/centers", map[string]any{
		"name": "Central", "kind": "DEPOT",
	})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Contains(t, env.Message, "kind must be MCC or MRF")
}

func TestResetGatedByAllowlist(t *testing.T) {
	ts, _ := newTestServer(t, func(d *Dependencies) {
		d.AdminAllowlist = mustAllowlist(t, "10.0.0.0/8")
	})

	resp, env := doJSON(t, http.MethodPost, ts.URL+"/reset", nil)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
	assert.Equal(t, "forbidden", env.Message)
}

func TestResetAndAuditTrail(t *testing.T) {
	ts, deps := newTestServer(t, nil)

	_, env := doJSON(t, http.MethodPost, ts.URL+"/add", map[string]any{
		"date": "2024-05-01", "amount": 10,
	})
	require.True(t, env.Success)

	resp, env := doJSON(t, http.MethodPost, ts.URL+"/reset", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "Ledger reset", env.Message)

	resp, env = doJSON(t, http.MethodGet, ts.URL+"/dashboard?date=2024-05-01", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var dash struct {
		Summary khata.StockSummary `json:"summary"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &dash))
	assert.Equal(t, int64(0), dash.Summary.Stock)

	require.True(t, deps.Auditor.Verify())
	var foundReset bool
	for _, e := range deps.Auditor.Entries() {
		if strings.Contains(e.Payload, "action=reset_ledger") {
			foundReset = true
		}
	}
	assert.True(t, foundReset)

	resp, env = doJSON(t, http.MethodGet, ts.URL+"/auditz", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var trail struct {
		Verified bool             `json:"verified"`
		Entries  []audit.LogEntry `json:"entries"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &trail))
	assert.True(t, trail.Verified)
	assert.NotEmpty(t, trail.Entries)
}

func TestRateLimit(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	ts, _ := newTestServer(t, func(d *Dependencies) {
		d.RateLimiter = &security.RedisTokenBucket{
			Redis:      client,
			Prefix:     "test_api",
			Capacity:   2,
			RefillRate: 0.001,
		}
	})

	for i := 0; i < 2; i++ {
		resp, err := http.Get(ts.URL + "/healthz")
		require.NoError(t, err)
		resp.Body.Close()
		require.Equal(t, http.StatusOK, resp.StatusCode)
	}

	resp, env := doJSON(t, http.MethodGet, ts.URL+"/healthz", nil)
	assert.Equal(t, http.StatusTooManyRequests, resp.StatusCode)
	assert.Equal(t, "too many requests", env.Message)
}
