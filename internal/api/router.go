// internal/api/router.go
package api

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"metawallet/internal/api/handler"
)

// NewRouter sets up and returns a new HTTP router.
func NewRouter(walletHandler *handler.WalletHandler, logger *slog.Logger) http.Handler {
	r := chi.NewRouter()

	// Global middlewares
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(handler.DefaultTimeout))

	// Health check endpoint
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})

	// Wallet API routes
	r.Route("/users/{userID}/wallet", func(r chi.Router) {
		r.Get("/", walletHandler.GetWallet)
		r.Post("/topup", walletHandler.TopUp)
	})

	// Audit trail for operators, keyed by wallet
	r.Get("/wallets/{walletID}/topups", walletHandler.GetTopUpHistory)

	return r
}
