// cmd/seed/main.go
//
// Applies the database schema and provisions the platform admin account with
// its fee wallet. Prints the admin account id; set ADMIN_ACCOUNT_ID to that
// value before starting the API server. Re-running with ADMIN_ACCOUNT_ID set
// is a no-op when the account already exists.
package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"metawallet/internal/config"
	"metawallet/internal/domain"
	"metawallet/internal/repository"
	"metawallet/internal/repository/postgres"
	"metawallet/internal/util"
	"metawallet/pkg/db"
)

const schema = `
CREATE TABLE IF NOT EXISTS accounts (
    id         TEXT PRIMARY KEY,
    name       TEXT NOT NULL,
    role       TEXT NOT NULL CHECK (role IN ('USER', 'ADMIN')),
    created_at TIMESTAMPTZ NOT NULL,
    updated_at TIMESTAMPTZ NOT NULL
);

CREATE TABLE IF NOT EXISTS wallets (
    id         TEXT PRIMARY KEY,
    account_id TEXT NOT NULL UNIQUE REFERENCES accounts (id),
    balance    BIGINT NULL CHECK (balance IS NULL OR balance >= 0),
    created_at TIMESTAMPTZ NOT NULL,
    updated_at TIMESTAMPTZ NOT NULL
);

CREATE TABLE IF NOT EXISTS topup_entries (
    id              TEXT PRIMARY KEY,
    wallet_id       TEXT NOT NULL REFERENCES wallets (id),
    admin_wallet_id TEXT NOT NULL REFERENCES wallets (id),
    gross_amount    BIGINT NOT NULL CHECK (gross_amount > 0),
    fee_amount      BIGINT NOT NULL CHECK (fee_amount >= 0),
    net_amount      BIGINT NOT NULL CHECK (net_amount >= 0),
    created_at      TIMESTAMPTZ NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_topup_entries_wallet ON topup_entries (wallet_id, created_at DESC);
`

func main() {
	util.InitLogger()
	logger := util.GetLogger()

	cfg, err := config.LoadConfig()
	if err != nil {
		logger.Error("Failed to load configuration", "error", err)
		os.Exit(1)
	}

	database, err := db.NewPostgresDB(cfg.DB)
	if err != nil {
		logger.Error("Failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer database.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if _, err := database.ExecContext(ctx, schema); err != nil {
		logger.Error("Failed to apply schema", "error", err)
		os.Exit(1)
	}
	logger.Info("Schema applied.")

	accountRepo := postgres.NewAccountRepository()
	walletRepo := postgres.NewWalletRepository()

	if cfg.AdminAccountID != "" {
		if _, err := accountRepo.GetAccountByID(ctx, database, cfg.AdminAccountID); err == nil {
			logger.Info("Admin account already provisioned.", "admin_account_id", cfg.AdminAccountID)
			fmt.Println(cfg.AdminAccountID)
			return
		} else if !util.IsError(err, util.ErrNotFound) {
			logger.Error("Failed to look up admin account", "error", err)
			os.Exit(1)
		}
	}

	tx, err := db.BeginTx(ctx, database)
	if err != nil {
		logger.Error("Failed to begin transaction", "error", err)
		os.Exit(1)
	}
	defer db.RollbackTx(tx)

	txExecutor, ok := tx.(repository.DBExecutor)
	if !ok {
		logger.Error("Transaction controller does not implement DBExecutor")
		os.Exit(1)
	}

	admin := domain.NewAccount("platform", domain.RoleAdmin)
	if cfg.AdminAccountID != "" {
		admin.ID = cfg.AdminAccountID
	}

	if err := accountRepo.CreateAccount(ctx, txExecutor, admin); err != nil {
		logger.Error("Failed to create admin account", "error", err)
		os.Exit(1)
	}
	if err := walletRepo.CreateWallet(ctx, txExecutor, domain.NewWallet(admin.ID)); err != nil {
		logger.Error("Failed to create admin wallet", "error", err)
		os.Exit(1)
	}

	if err := db.CommitTx(tx); err != nil {
		logger.Error("Failed to commit admin provisioning", "error", err)
		os.Exit(1)
	}

	logger.Info("Admin account provisioned.", "admin_account_id", admin.ID)
	fmt.Println(admin.ID)
}
