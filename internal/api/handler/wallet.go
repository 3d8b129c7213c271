// internal/api/handler/wallet.go
package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"metawallet/internal/api/types"
	"metawallet/internal/domain"
	"metawallet/internal/service"
	"metawallet/internal/util"
)

// DefaultTimeout bounds request handling at the router level.
const DefaultTimeout = 15 * time.Second

// WalletHandler handles HTTP requests related to wallet operations.
type WalletHandler struct {
	service service.TopUpService
	logger  *slog.Logger
}

// NewWalletHandler creates a new WalletHandler.
func NewWalletHandler(svc service.TopUpService, logger *slog.Logger) *WalletHandler {
	return &WalletHandler{
		service: svc,
		logger:  logger,
	}
}

// Helper function to send JSON responses.
func (h *WalletHandler) respondWithJSON(w http.ResponseWriter, code int, payload interface{}) {
	response, err := json.Marshal(payload)
	if err != nil {
		h.logger.Error("Failed to marshal JSON response", "error", err)
		w.WriteHeader(http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_, _ = w.Write(response)
}

// Helper function to send error responses.
func (h *WalletHandler) respondWithError(w http.ResponseWriter, err error) {
	statusCode := http.StatusInternalServerError
	message := "Internal server error"

	switch {
	case util.IsError(err, util.ErrInvalidAmount):
		statusCode = http.StatusBadRequest
		message = util.ErrInvalidAmount.Error()
	case util.IsError(err, util.ErrUserNotFound):
		statusCode = http.StatusNotFound
		message = "User not found"
	case util.IsError(err, util.ErrWalletNotFound), util.IsError(err, util.ErrNotFound):
		statusCode = http.StatusNotFound
		message = "Wallet not found"
	case util.IsError(err, util.ErrAdminWalletNotFound):
		// Misconfiguration, not a client problem; details are already logged.
		statusCode = http.StatusInternalServerError
		message = "Internal server error"
	case util.IsError(err, util.ErrConcurrencyConflict):
		statusCode = http.StatusConflict
		message = "Wallet is busy, please retry"
	case util.IsError(err, util.ErrInvalidBalance), util.IsError(err, util.ErrPartialCommit):
		statusCode = http.StatusInternalServerError
		message = "Internal server error"
		h.logger.Error("Balance invariant violated", "error", err)
	default:
		h.logger.Error("Unhandled service error", "error", err)
	}

	h.respondWithJSON(w, statusCode, map[string]string{"error": message})
}

// TopUpRequest represents the request body for a wallet top-up.
type TopUpRequest struct {
	Amount int64 `json:"amount"`
}

// TopUp handles the wallet top-up request.
// POST /users/{userID}/wallet/topup
func (h *WalletHandler) TopUp(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")
	if userID == "" {
		h.respondWithError(w, util.ErrUserNotFound)
		return
	}

	var req TopUpRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.respondWithError(w, util.ErrInvalidAmount)
		return
	}

	result, err := h.service.TopUp(r.Context(), userID, req.Amount)
	if err != nil {
		h.respondWithError(w, err)
		return
	}

	h.respondWithJSON(w, http.StatusOK, result)
}

// GetWallet handles the wallet lookup request.
// GET /users/{userID}/wallet
func (h *WalletHandler) GetWallet(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")
	if userID == "" {
		h.respondWithError(w, util.ErrUserNotFound)
		return
	}

	wallet, err := h.service.GetWalletByAccountID(r.Context(), userID)
	if err != nil {
		h.respondWithError(w, err)
		return
	}

	h.respondWithJSON(w, http.StatusOK, map[string]interface{}{
		"user_id":   userID,
		"wallet_id": wallet.ID,
		"balance":   wallet.BalanceOrZero(),
	})
}

// GetTopUpHistory handles the top-up audit history request.
// GET /wallets/{walletID}/topups
func (h *WalletHandler) GetTopUpHistory(w http.ResponseWriter, r *http.Request) {
	walletID := chi.URLParam(r, "walletID")
	if walletID == "" {
		h.respondWithError(w, util.ErrWalletNotFound)
		return
	}

	limit, err := strconv.Atoi(r.URL.Query().Get("limit"))
	if err != nil || limit <= 0 {
		limit = 10
	}
	offset, err := strconv.Atoi(r.URL.Query().Get("offset"))
	if err != nil || offset < 0 {
		offset = 0
	}

	entries, totalCount, err := h.service.GetTopUpHistory(r.Context(), walletID, limit, offset)
	if err != nil {
		h.respondWithError(w, err)
		return
	}

	h.respondWithJSON(w, http.StatusOK, types.PaginatedResponse[domain.TopUpEntry]{
		Data:       entries,
		Limit:      limit,
		Offset:     offset,
		TotalCount: totalCount,
	})
}
