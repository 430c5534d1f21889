package api

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"papertrade-enginev1/internal/engine"
	"papertrade-enginev1/internal/metrics"
	"papertrade-enginev1/internal/model"
	"papertrade-enginev1/internal/quote"
	"papertrade-enginev1/internal/store/sqlite"
)

// Wednesday 10:00 ET, regular session.
var sessionOpen = time.Date(2026, time.March, 4, 10, 0, 0, 0, time.FixedZone("EST", -5*3600))

func newTestAPI(t *testing.T) (*http.ServeMux, *quote.StaticProvider) {
	t.Helper()
	s, err := sqlite.New(sqlite.Config{DBPath: ":memory:"})
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })

	quotes := quote.NewStaticProvider()
	eng := engine.New(engine.Config{
		Store:          s,
		Quotes:         quotes,
		Now:            func() time.Time { return sessionOpen },
		ExecutionDelay: func() time.Duration { return 0 },
	})

	mux := http.NewServeMux()
	RegisterRoutes(mux, eng, s, metrics.NewHealthStatus())
	return mux, quotes
}

func doJSON(t *testing.T, mux *http.ServeMux, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)
	return rec
}

func TestAccountLifecycle(t *testing.T) {
	mux, _ := newTestAPI(t)

	rec := doJSON(t, mux, http.MethodPost, "/api/v1/accounts",
		map[string]any{"owner_id": "owner-1", "initial_balance": 50_000})
	require.Equal(t, http.StatusCreated, rec.Code)

	var a model.Account
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&a))
	assert.NotEmpty(t, a.ID)
	assert.Equal(t, 50_000.0, a.AvailableCash)

	rec = doJSON(t, mux, http.MethodGet, "/api/v1/accounts/"+a.ID, nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = doJSON(t, mux, http.MethodDelete, "/api/v1/accounts/"+a.ID, nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = doJSON(t, mux, http.MethodGet, "/api/v1/accounts/"+a.ID, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestCreateAccountValidation(t *testing.T) {
	mux, _ := newTestAPI(t)

	rec := doJSON(t, mux, http.MethodPost, "/api/v1/accounts",
		map[string]any{"owner_id": "owner-1", "initial_balance": -5})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestPlaceOrderEndpoint(t *testing.T) {
	mux, quotes := newTestAPI(t)
	quotes.SetPrice("AAPL", 100)

	rec := doJSON(t, mux, http.MethodPost, "/api/v1/accounts",
		map[string]any{"owner_id": "owner-1", "initial_balance": 50_000})
	require.Equal(t, http.StatusCreated, rec.Code)
	var a model.Account
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&a))

	rec = doJSON(t, mux, http.MethodPost, "/api/v1/orders", map[string]any{
		"account_id": a.ID, "symbol": "aapl", "type": "market", "side": "buy", "quantity": 10,
	})
	require.Equal(t, http.StatusCreated, rec.Code)

	var o model.Order
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&o))
	assert.Equal(t, model.OrderStatusFilled, o.Status)
	assert.Equal(t, "AAPL", o.Symbol) // symbol is upcased

	rec = doJSON(t, mux, http.MethodGet, fmt.Sprintf("/api/v1/accounts/%s/positions", a.ID), nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var positions []model.Position
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&positions))
	require.Len(t, positions, 1)
	assert.Equal(t, int64(10), positions[0].Quantity)
}

func TestPlaceOrderErrorMapping(t *testing.T) {
	mux, quotes := newTestAPI(t)
	quotes.SetPrice("AAPL", 100)

	rec := doJSON(t, mux, http.MethodPost, "/api/v1/accounts",
		map[string]any{"owner_id": "owner-1", "initial_balance": 500})
	require.Equal(t, http.StatusCreated, rec.Code)
	var a model.Account
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&a))

	// Insufficient funds maps to 422.
	rec = doJSON(t, mux, http.MethodPost, "/api/v1/orders", map[string]any{
		"account_id": a.ID, "symbol": "AAPL", "type": "market", "side": "buy", "quantity": 100,
	})
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	// Missing quote maps to 503.
	rec = doJSON(t, mux, http.MethodPost, "/api/v1/orders", map[string]any{
		"account_id": a.ID, "symbol": "NOPE", "type": "market", "side": "buy", "quantity": 1,
	})
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	// Bad type maps to 400.
	rec = doJSON(t, mux, http.MethodPost, "/api/v1/orders", map[string]any{
		"account_id": a.ID, "symbol": "AAPL", "type": "iceberg", "side": "buy", "quantity": 1,
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestSessionEndpoint(t *testing.T) {
	mux, _ := newTestAPI(t)

	rec := doJSON(t, mux, http.MethodGet, "/api/v1/session", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var session model.MarketSession
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&session))
	assert.True(t, session.IsOpen)
	assert.Equal(t, "regular", session.Status)
}

func TestRiskEndpoint(t *testing.T) {
	mux, quotes := newTestAPI(t)
	quotes.SetPrice("AAPL", 100)

	rec := doJSON(t, mux, http.MethodPost, "/api/v1/accounts",
		map[string]any{"owner_id": "owner-1", "initial_balance": 50_000})
	require.Equal(t, http.StatusCreated, rec.Code)
	var a model.Account
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&a))

	rec = doJSON(t, mux, http.MethodPost, "/api/v1/orders", map[string]any{
		"account_id": a.ID, "symbol": "AAPL", "type": "market", "side": "buy", "quantity": 10,
	})
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = doJSON(t, mux, http.MethodPut, fmt.Sprintf("/api/v1/accounts/%s/risk", a.ID),
		map[string]any{"symbol": "AAPL", "stop_loss": 95.0})
	assert.Equal(t, http.StatusOK, rec.Code)

	// No open position in the symbol.
	rec = doJSON(t, mux, http.MethodPut, fmt.Sprintf("/api/v1/accounts/%s/risk", a.ID),
		map[string]any{"symbol": "TSLA", "stop_loss": 95.0})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
