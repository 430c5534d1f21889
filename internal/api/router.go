// Package api exposes the engine over a small JSON REST surface. Handlers
// are thin: decode, call the engine or store, map the error, encode.
package api

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strings"

	"papertrade-enginev1/internal/engine"
	"papertrade-enginev1/internal/metrics"
	"papertrade-enginev1/internal/model"
	"papertrade-enginev1/internal/risk"
)

// setCORS sets CORS headers for REST endpoints.
func setCORS(w http.ResponseWriter) {
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
	w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
}

// RegisterRoutes registers all HTTP routes on the provided mux.
func RegisterRoutes(mux *http.ServeMux, eng *engine.Engine, store model.Store, health *metrics.HealthStatus) {
	mux.HandleFunc("/api/v1/health", func(w http.ResponseWriter, r *http.Request) {
		setCORS(w)
		health.ServeHTTP(w, r)
	})

	mux.HandleFunc("/api/v1/session", func(w http.ResponseWriter, r *http.Request) {
		setCORS(w)
		writeJSON(w, http.StatusOK, eng.MarketSession())
	})

	// /api/v1/accounts and /api/v1/accounts/{id}[/positions|/orders|/transactions|/risk]
	mux.HandleFunc("/api/v1/accounts", handleAccounts(eng, store))
	mux.HandleFunc("/api/v1/accounts/", handleAccount(eng, store))

	// /api/v1/orders and /api/v1/orders/{id}
	mux.HandleFunc("/api/v1/orders", handleOrders(eng))
	mux.HandleFunc("/api/v1/orders/", handleOrder(eng, store))
}

func handleAccounts(eng *engine.Engine, store model.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		setCORS(w)
		switch r.Method {
		case http.MethodOptions:
			w.WriteHeader(http.StatusOK)
		case http.MethodGet:
			accounts, err := store.ListAccounts(r.Context())
			if err != nil {
				writeError(w, err)
				return
			}
			writeJSON(w, http.StatusOK, accounts)
		case http.MethodPost:
			var req struct {
				OwnerID        string  `json:"owner_id"`
				InitialBalance float64 `json:"initial_balance"`
			}
			if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
				http.Error(w, `{"error":"invalid JSON"}`, http.StatusBadRequest)
				return
			}
			a, err := eng.CreateAccount(r.Context(), req.OwnerID, req.InitialBalance)
			if err != nil {
				writeError(w, err)
				return
			}
			log.Printf("[api] account created: %s owner=%s", a.ID, a.OwnerID)
			writeJSON(w, http.StatusCreated, a)
		default:
			http.Error(w, `{"error":"method not allowed"}`, http.StatusMethodNotAllowed)
		}
	}
}

func handleAccount(eng *engine.Engine, store model.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		setCORS(w)
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}

		rest := strings.TrimPrefix(r.URL.Path, "/api/v1/accounts/")
		parts := strings.SplitN(rest, "/", 3)
		accountID := parts[0]
		if accountID == "" {
			http.NotFound(w, r)
			return
		}

		if len(parts) == 1 {
			switch r.Method {
			case http.MethodGet:
				a, err := eng.GetAccount(r.Context(), accountID)
				if err != nil {
					writeError(w, err)
					return
				}
				writeJSON(w, http.StatusOK, a)
			case http.MethodDelete:
				if err := eng.DeleteAccount(r.Context(), accountID); err != nil {
					writeError(w, err)
					return
				}
				log.Printf("[api] account deleted: %s", accountID)
				writeJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
			default:
				http.Error(w, `{"error":"method not allowed"}`, http.StatusMethodNotAllowed)
			}
			return
		}

		switch parts[1] {
		case "positions":
			if r.Method != http.MethodGet {
				http.Error(w, `{"error":"method not allowed"}`, http.StatusMethodNotAllowed)
				return
			}
			positions, err := store.ListPositions(r.Context(), accountID)
			if err != nil {
				writeError(w, err)
				return
			}
			writeJSON(w, http.StatusOK, positions)
		case "orders":
			if r.Method != http.MethodGet {
				http.Error(w, `{"error":"method not allowed"}`, http.StatusMethodNotAllowed)
				return
			}
			orders, err := store.ListOrders(r.Context(), accountID)
			if err != nil {
				writeError(w, err)
				return
			}
			writeJSON(w, http.StatusOK, orders)
		case "transactions":
			if r.Method != http.MethodGet {
				http.Error(w, `{"error":"method not allowed"}`, http.StatusMethodNotAllowed)
				return
			}
			txs, err := store.ListTransactions(r.Context(), accountID)
			if err != nil {
				writeError(w, err)
				return
			}
			writeJSON(w, http.StatusOK, txs)
		case "reset":
			if r.Method != http.MethodPost {
				http.Error(w, `{"error":"method not allowed"}`, http.StatusMethodNotAllowed)
				return
			}
			if err := eng.ResetAccount(r.Context(), accountID); err != nil {
				writeError(w, err)
				return
			}
			log.Printf("[api] account reset: %s", accountID)
			a, err := eng.GetAccount(r.Context(), accountID)
			if err != nil {
				writeError(w, err)
				return
			}
			writeJSON(w, http.StatusOK, a)
		case "metrics":
			if r.Method != http.MethodGet {
				http.Error(w, `{"error":"method not allowed"}`, http.StatusMethodNotAllowed)
				return
			}
			a, err := eng.GetAccount(r.Context(), accountID)
			if err != nil {
				writeError(w, err)
				return
			}
			writeJSON(w, http.StatusOK, risk.HeuristicMetrics(a))
		case "risk":
			// PUT /api/v1/accounts/{id}/risk with {"symbol": ..., rules}
			if r.Method != http.MethodPut && r.Method != http.MethodPost {
				http.Error(w, `{"error":"method not allowed"}`, http.StatusMethodNotAllowed)
				return
			}
			var req struct {
				Symbol       string   `json:"symbol"`
				StopLoss     *float64 `json:"stop_loss"`
				TakeProfit   *float64 `json:"take_profit"`
				TrailingStop *float64 `json:"trailing_stop"`
			}
			if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
				http.Error(w, `{"error":"invalid JSON"}`, http.StatusBadRequest)
				return
			}
			if err := eng.AddRiskManagement(r.Context(), accountID, req.Symbol,
				req.StopLoss, req.TakeProfit, req.TrailingStop); err != nil {
				writeError(w, err)
				return
			}
			writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
		default:
			http.NotFound(w, r)
		}
	}
}

func handleOrders(eng *engine.Engine) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		setCORS(w)
		switch r.Method {
		case http.MethodOptions:
			w.WriteHeader(http.StatusOK)
		case http.MethodPost:
			var req struct {
				AccountID string   `json:"account_id"`
				Symbol    string   `json:"symbol"`
				Type      string   `json:"type"`
				Side      string   `json:"side"`
				Quantity  int64    `json:"quantity"`
				Price     *float64 `json:"price"`
				StopPrice *float64 `json:"stop_price"`
				Notes     string   `json:"notes"`
			}
			if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
				http.Error(w, `{"error":"invalid JSON"}`, http.StatusBadRequest)
				return
			}
			order, err := eng.PlaceOrder(r.Context(), engine.PlaceOrderRequest{
				AccountID: req.AccountID,
				Symbol:    strings.ToUpper(req.Symbol),
				Type:      model.OrderType(req.Type),
				Side:      model.OrderSide(req.Side),
				Quantity:  req.Quantity,
				Price:     req.Price,
				StopPrice: req.StopPrice,
				Notes:     req.Notes,
			})
			if err != nil {
				writeError(w, err)
				return
			}
			writeJSON(w, http.StatusCreated, order)
		default:
			http.Error(w, `{"error":"method not allowed"}`, http.StatusMethodNotAllowed)
		}
	}
}

func handleOrder(eng *engine.Engine, store model.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		setCORS(w)
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}

		orderID := strings.TrimPrefix(r.URL.Path, "/api/v1/orders/")
		if orderID == "" || strings.Contains(orderID, "/") {
			http.NotFound(w, r)
			return
		}

		switch r.Method {
		case http.MethodGet:
			order, err := store.GetOrder(r.Context(), orderID)
			if err != nil {
				writeError(w, err)
				return
			}
			writeJSON(w, http.StatusOK, order)
		case http.MethodDelete:
			if err := eng.CancelOrder(r.Context(), orderID); err != nil {
				writeError(w, err)
				return
			}
			writeJSON(w, http.StatusOK, map[string]string{"status": "cancelled"})
		default:
			http.Error(w, `{"error":"method not allowed"}`, http.StatusMethodNotAllowed)
		}
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// writeError maps engine errors onto HTTP status codes.
func writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, model.ErrValidation):
		status = http.StatusBadRequest
	case errors.Is(err, model.ErrAccountNotFound), errors.Is(err, model.ErrOrderNotFound):
		status = http.StatusNotFound
	case errors.Is(err, model.ErrInsufficientFunds),
		errors.Is(err, model.ErrInsufficientShares),
		errors.Is(err, model.ErrAccountHasPositions):
		status = http.StatusUnprocessableEntity
	case errors.Is(err, model.ErrMarketClosed), errors.Is(err, model.ErrCannotCancel):
		status = http.StatusConflict
	case errors.Is(err, model.ErrQuoteUnavailable):
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, map[string]string{"error": err.Error()})
}
