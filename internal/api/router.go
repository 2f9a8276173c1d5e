package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/baharkarakas/payflow-backend/internal/api/httpx"
	"github.com/baharkarakas/payflow-backend/internal/api/validate"
	"github.com/baharkarakas/payflow-backend/internal/balance"
	"github.com/baharkarakas/payflow-backend/internal/config"
	"github.com/baharkarakas/payflow-backend/internal/middleware"
	"github.com/baharkarakas/payflow-backend/internal/models"
	repo "github.com/baharkarakas/payflow-backend/internal/repository"
	"github.com/baharkarakas/payflow-backend/internal/services"
)

func NewRouter(cfg config.Config, as *services.AccountService, cs *services.CardService, ts *services.TransactionService, bm *balance.Materializer) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID, middleware.Recover, middleware.HTTPMetrics, middleware.RateLimit(cfg.RateRPS))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"*"},
	}))

	// health & metrics
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) { _, _ = w.Write([]byte("ok")) })
	r.Handle("/metrics", promhttp.Handler())

	// ---------- accounts ----------
	r.Post("/accounts", func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Username string `json:"username"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			httpx.WriteError(w, http.StatusBadRequest, "bad_request", "invalid request body", nil)
			return
		}
		if ef := validate.Required("username", req.Username); ef != nil {
			httpx.WriteError(w, http.StatusBadRequest, "validation", "validation failed", validate.Errs{*ef})
			return
		}
		a, err := as.Create(r.Context(), req.Username)
		if errors.Is(err, repo.ErrDuplicateUsername) {
			httpx.WriteError(w, http.StatusConflict, "duplicate_username", err.Error(), nil)
			return
		}
		if err != nil {
			httpx.WriteError(w, http.StatusBadRequest, "validation", err.Error(), nil)
			return
		}
		httpx.WriteJSON(w, http.StatusCreated, a)
	})

	r.Get("/accounts", func(w http.ResponseWriter, r *http.Request) {
		limit, offset := pagination(r)
		accounts, err := as.List(r.Context(), limit, offset)
		if err != nil {
			httpx.WriteError(w, http.StatusInternalServerError, "internal_error", "internal error", nil)
			return
		}
		httpx.WriteJSON(w, http.StatusOK, accounts)
	})

	r.Get("/accounts/{id}/balance", func(w http.ResponseWriter, r *http.Request) {
		b, err := bm.GetBalance(r.Context(), chi.URLParam(r, "id"))
		if errors.Is(err, repo.ErrNotFound) {
			httpx.WriteError(w, http.StatusNotFound, "not_found", "account not found", nil)
			return
		}
		if err != nil {
			httpx.WriteError(w, http.StatusInternalServerError, "internal_error", "internal error", nil)
			return
		}
		if b.Status == models.BalanceProcessing {
			httpx.WriteJSON(w, http.StatusAccepted, map[string]string{
				"status":  string(models.BalanceProcessing),
				"message": b.Message,
			})
			return
		}
		httpx.WriteJSON(w, http.StatusOK, b)
	})

	// ---------- cards ----------
	r.Post("/cards", func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			AccountID string `json:"account_id"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			httpx.WriteError(w, http.StatusBadRequest, "bad_request", "invalid request body", nil)
			return
		}
		if ef := validate.Required("account_id", req.AccountID); ef != nil {
			httpx.WriteError(w, http.StatusBadRequest, "validation", "validation failed", validate.Errs{*ef})
			return
		}
		card, err := cs.Create(r.Context(), req.AccountID)
		if errors.Is(err, repo.ErrNotFound) {
			httpx.WriteError(w, http.StatusNotFound, "not_found", "account not found", nil)
			return
		}
		if err != nil {
			httpx.WriteError(w, http.StatusInternalServerError, "internal_error", "internal error", nil)
			return
		}
		httpx.WriteJSON(w, http.StatusCreated, card)
	})

	r.Get("/cards", func(w http.ResponseWriter, r *http.Request) {
		accountID := r.URL.Query().Get("account_id")
		if accountID == "" {
			httpx.WriteError(w, http.StatusBadRequest, "validation", "account_id required", nil)
			return
		}
		cards, err := cs.ListByAccount(r.Context(), accountID)
		if errors.Is(err, repo.ErrNotFound) {
			httpx.WriteError(w, http.StatusNotFound, "not_found", "account not found", nil)
			return
		}
		if err != nil {
			httpx.WriteError(w, http.StatusInternalServerError, "internal_error", "internal error", nil)
			return
		}
		httpx.WriteJSON(w, http.StatusOK, cards)
	})

	// ---------- transactions ----------
	r.Post("/transactions", func(w http.ResponseWriter, r *http.Request) {
		var req services.CreateTransactionRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			httpx.WriteError(w, http.StatusBadRequest, "bad_request", "invalid request body", nil)
			return
		}
		if errs := validateTransaction(req); len(errs) > 0 {
			httpx.WriteError(w, http.StatusBadRequest, "validation", "validation failed", errs)
			return
		}
		tx, err := ts.Create(r.Context(), req)
		if errors.Is(err, repo.ErrNotFound) {
			httpx.WriteError(w, http.StatusNotFound, "not_found", "account not found", nil)
			return
		}
		if err != nil {
			httpx.WriteError(w, http.StatusInternalServerError, "internal_error", "internal error", nil)
			return
		}
		// accepted for asynchronous processing; poll GET /transactions/{id}
		httpx.WriteJSON(w, http.StatusAccepted, tx)
	})

	r.Get("/transactions/{id}", func(w http.ResponseWriter, r *http.Request) {
		tx, err := ts.GetByID(r.Context(), chi.URLParam(r, "id"))
		if errors.Is(err, repo.ErrNotFound) {
			httpx.WriteError(w, http.StatusNotFound, "not_found", "transaction not found", nil)
			return
		}
		if err != nil {
			httpx.WriteError(w, http.StatusInternalServerError, "internal_error", "internal error", nil)
			return
		}
		httpx.WriteJSON(w, http.StatusOK, tx)
	})

	r.Get("/transactions", func(w http.ResponseWriter, r *http.Request) {
		accountID := r.URL.Query().Get("account_id")
		cardID := r.URL.Query().Get("card_id")
		if (accountID == "") == (cardID == "") {
			httpx.WriteError(w, http.StatusBadRequest, "validation", "exactly one of account_id or card_id is required", nil)
			return
		}
		limit, offset := pagination(r)

		var (
			txs []models.Transaction
			err error
		)
		if accountID != "" {
			txs, err = ts.ListByAccount(r.Context(), accountID, limit, offset)
		} else {
			txs, err = ts.ListByCard(r.Context(), cardID, limit, offset)
		}
		if err != nil {
			httpx.WriteError(w, http.StatusInternalServerError, "internal_error", "internal error", nil)
			return
		}
		if txs == nil {
			txs = []models.Transaction{}
		}
		httpx.WriteJSON(w, http.StatusOK, txs)
	})

	return r
}

// validateTransaction is shape-level only; business rules (balance, card
// ownership, refund target state) belong to the guard.
func validateTransaction(req services.CreateTransactionRequest) validate.Errs {
	var errs validate.Errs
	if ef := validate.Required("account_id", req.AccountID); ef != nil {
		errs = append(errs, *ef)
	}
	if ef := validate.MinInt("amount_cents", req.AmountCents, 1); ef != nil {
		errs = append(errs, *ef)
	}
	txType := models.TransactionType(req.Type)
	if !txType.Valid() {
		errs = append(errs, validate.ErrField{Field: "type", Msg: "must be one of PURCHASE, DEPOSIT, REFUND"})
		return errs
	}
	switch txType {
	case models.TxnPurchase:
		if req.CardToken == nil || *req.CardToken == "" {
			errs = append(errs, validate.ErrField{Field: "card_token", Msg: "required for PURCHASE"})
		}
	case models.TxnRefund:
		if req.RefundTransactionID == nil || *req.RefundTransactionID == "" {
			errs = append(errs, validate.ErrField{Field: "refund_transaction_id", Msg: "required for REFUND"})
		}
	}
	if txType != models.TxnPurchase && req.CardToken != nil {
		errs = append(errs, validate.ErrField{Field: "card_token", Msg: "only allowed for PURCHASE"})
	}
	if txType != models.TxnRefund && req.RefundTransactionID != nil {
		errs = append(errs, validate.ErrField{Field: "refund_transaction_id", Msg: "only allowed for REFUND"})
	}
	return errs
}

func pagination(r *http.Request) (limit, offset int) {
	limit, offset = 50, 0
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			limit = n
		}
	}
	if v := r.URL.Query().Get("offset"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 {
			offset = n
		}
	}
	return limit, offset
}
