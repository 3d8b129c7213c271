// internal/service/topup_service.go
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/lib/pq"

	"metawallet/internal/cache"
	"metawallet/internal/domain"
	"metawallet/internal/repository"
	"metawallet/internal/util"
	"metawallet/pkg/db"
)

// maxTopUpAttempts bounds how often a top-up transaction is retried after a
// serialization failure before surfacing ErrConcurrencyConflict.
const maxTopUpAttempts = 3

// TopUpResult is returned to the caller after a successful top-up.
type TopUpResult struct {
	UserID   string `json:"user_id"`
	WalletID string `json:"wallet_id"`
	Balance  int64  `json:"balance"`
}

// TopUpService defines the interface for wallet top-up business logic.
type TopUpService interface {
	TopUp(ctx context.Context, userID string, grossAmount int64) (*TopUpResult, error)
	GetWalletByAccountID(ctx context.Context, accountID string) (*domain.Wallet, error)
	GetTopUpHistory(ctx context.Context, walletID string, limit, offset int) ([]domain.TopUpEntry, int64, error)
	CreateAccountWithWallet(ctx context.Context, name string, role domain.AccountRole) (*domain.Account, *domain.Wallet, error)
}

// topUpService implements the TopUpService interface.
type topUpService struct {
	dbBeginner     db.DBTxBeginner       // For starting transactions (e.g., *sqlx.DB)
	dbExecutor     repository.DBExecutor // For non-transactional reads (e.g., *sqlx.DB)
	accountRepo    repository.AccountRepository
	walletRepo     repository.WalletRepository
	entryRepo      repository.TopUpEntryRepository
	walletCache    cache.WalletCache
	fees           FeeCalculator
	adminAccountID string
	logger         *slog.Logger
	beginTx        db.BeginTxFunc
	commitTx       db.CommitTxFunc
	rollbackTx     db.RollbackTxFunc
}

// NewTopUpService creates a new instance of TopUpService. The admin account
// identifier is injected so the fee destination is configurable and the
// service stays testable with fakes.
func NewTopUpService(
	dbBeginner db.DBTxBeginner,
	dbExecutor repository.DBExecutor,
	accountRepo repository.AccountRepository,
	walletRepo repository.WalletRepository,
	entryRepo repository.TopUpEntryRepository,
	walletCache cache.WalletCache,
	fees FeeCalculator,
	adminAccountID string,
	logger *slog.Logger,
	beginTx db.BeginTxFunc,
	commitTx db.CommitTxFunc,
	rollbackTx db.RollbackTxFunc,
) TopUpService {
	return &topUpService{
		dbBeginner:     dbBeginner,
		dbExecutor:     dbExecutor,
		accountRepo:    accountRepo,
		walletRepo:     walletRepo,
		entryRepo:      entryRepo,
		walletCache:    walletCache,
		fees:           fees,
		adminAccountID: adminAccountID,
		logger:         logger,
		beginTx:        beginTx,
		commitTx:       commitTx,
		rollbackTx:     rollbackTx,
	}
}

// TopUp credits a user's wallet with the gross amount minus the platform fee
// and credits the fee to the admin wallet. Both balance writes and the audit
// entry form one database transaction; a serialization failure rolls the whole
// unit back and retries it a bounded number of times.
func (s *topUpService) TopUp(ctx context.Context, userID string, grossAmount int64) (*TopUpResult, error) {
	if grossAmount <= 0 {
		return nil, util.ErrInvalidAmount
	}

	var (
		result *TopUpResult
		err    error
	)
	for attempt := 1; attempt <= maxTopUpAttempts; attempt++ {
		result, err = s.topUpOnce(ctx, userID, grossAmount)
		if err == nil || !isRetryableTxError(err) {
			break
		}
		s.logger.Warn("Retrying top-up after serialization failure",
			"user_id", userID, "attempt", attempt, "error", err)
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
	}
	if err != nil {
		if isRetryableTxError(err) {
			return nil, fmt.Errorf("top-up for user %s: %w", userID, util.ErrConcurrencyConflict)
		}
		return nil, err
	}

	// Best effort: drop stale cached wallets for both accounts. The database
	// already holds the committed truth.
	if cacheErr := s.walletCache.Invalidate(ctx, userID); cacheErr != nil {
		s.logger.Warn("Failed to invalidate user wallet cache", "account_id", userID, "error", cacheErr)
	}
	if cacheErr := s.walletCache.Invalidate(ctx, s.adminAccountID); cacheErr != nil {
		s.logger.Warn("Failed to invalidate admin wallet cache", "account_id", s.adminAccountID, "error", cacheErr)
	}

	return result, nil
}

// topUpOnce executes a single top-up attempt inside one transaction.
func (s *topUpService) topUpOnce(ctx context.Context, userID string, grossAmount int64) (*TopUpResult, error) {
	txController, err := s.beginTx(ctx, s.dbBeginner)
	if err != nil {
		return nil, fmt.Errorf("top-up: failed to begin transaction: %w", err)
	}
	defer s.rollbackTx(txController)

	txExecutor, ok := txController.(repository.DBExecutor)
	if !ok {
		return nil, fmt.Errorf("top-up: transaction controller does not implement DBExecutor")
	}

	user, err := s.accountRepo.GetAccountByID(ctx, txExecutor, userID)
	if err != nil {
		if util.IsError(err, util.ErrNotFound) {
			return nil, fmt.Errorf("top-up: %w", util.ErrUserNotFound)
		}
		return nil, fmt.Errorf("top-up: failed to get user %s: %w", userID, err)
	}

	// Lock order is always user wallet first, then admin wallet. Every
	// top-up acquires in the same order, so the hot admin row cannot be part
	// of a lock cycle.
	userWallet, err := s.walletRepo.GetWalletByAccountIDForUpdate(ctx, txExecutor, user.ID)
	if err != nil {
		if util.IsError(err, util.ErrNotFound) {
			return nil, fmt.Errorf("top-up: %w", util.ErrWalletNotFound)
		}
		return nil, fmt.Errorf("top-up: failed to lock wallet for user %s: %w", userID, err)
	}

	adminWallet, err := s.walletRepo.GetWalletByAccountIDForUpdate(ctx, txExecutor, s.adminAccountID)
	if err != nil {
		if util.IsError(err, util.ErrNotFound) {
			// Systemic misconfiguration, not a per-request condition.
			s.logger.Error("Admin wallet is missing; fee destination unavailable",
				"admin_account_id", s.adminAccountID)
			return nil, fmt.Errorf("top-up: %w", util.ErrAdminWalletNotFound)
		}
		return nil, fmt.Errorf("top-up: failed to lock admin wallet: %w", err)
	}

	netCredit, feeAmount := s.fees.ComputeSplit(grossAmount)

	updatedUserWallet, err := s.applyDelta(ctx, txExecutor, userWallet, netCredit)
	if err != nil {
		return nil, fmt.Errorf("top-up: failed to credit user wallet %s: %w", userWallet.ID, err)
	}
	userWallet = updatedUserWallet

	updatedAdminWallet, err := s.applyDelta(ctx, txExecutor, adminWallet, feeAmount)
	if err != nil {
		return nil, fmt.Errorf("top-up: failed to credit admin wallet %s: %w", adminWallet.ID, err)
	}
	adminWallet = updatedAdminWallet

	entry := domain.NewTopUpEntry(userWallet.ID, adminWallet.ID, grossAmount, feeAmount, netCredit)
	if err := s.entryRepo.CreateEntry(ctx, txExecutor, entry); err != nil {
		return nil, fmt.Errorf("top-up: failed to record audit entry: %w", err)
	}

	if err := s.commitTx(txController); err != nil {
		if isRetryableTxError(err) {
			return nil, err
		}
		// Both wallet writes were issued; a failed commit at this point is
		// ambiguous and must be reconciled against topup_entries, never
		// auto-compensated.
		s.logger.Error("Top-up commit failed after both wallet writes",
			"user_id", userID,
			"user_wallet_id", userWallet.ID,
			"admin_wallet_id", adminWallet.ID,
			"gross_amount", grossAmount,
			"net_credit", netCredit,
			"fee_amount", feeAmount,
			"step", "commit",
			"error", err)
		return nil, fmt.Errorf("top-up: commit failed: %w", util.ErrPartialCommit)
	}

	return &TopUpResult{
		UserID:   user.ID,
		WalletID: userWallet.ID,
		Balance:  userWallet.BalanceOrZero(),
	}, nil
}

// applyDelta is the sole sanctioned balance-write path. The wallet must
// already be row-locked inside the current transaction. An uninitialized
// balance is treated as zero and materializes here; a delta that would drive
// the balance negative is rejected without writing.
func (s *topUpService) applyDelta(ctx context.Context, q repository.DBExecutor, wallet *domain.Wallet, delta int64) (*domain.Wallet, error) {
	newBalance := wallet.BalanceOrZero() + delta
	if newBalance < 0 {
		return nil, fmt.Errorf("apply delta %d to wallet %s with balance %d: %w",
			delta, wallet.ID, wallet.BalanceOrZero(), util.ErrInvalidBalance)
	}

	if err := s.walletRepo.SetWalletBalance(ctx, q, wallet.ID, newBalance); err != nil {
		return nil, err
	}

	updated := *wallet
	updated.Balance = &newBalance
	updated.UpdatedAt = time.Now().UTC()
	return &updated, nil
}

// GetWalletByAccountID resolves the wallet owned by an account, preferring the
// cache and falling back to the database.
func (s *topUpService) GetWalletByAccountID(ctx context.Context, accountID string) (*domain.Wallet, error) {
	cached, hit, err := s.walletCache.Get(ctx, accountID)
	if err != nil {
		s.logger.Warn("Wallet cache read failed", "account_id", accountID, "error", err)
	} else if hit {
		return cached, nil
	}

	wallet, err := s.walletRepo.GetWalletByAccountID(ctx, s.dbExecutor, accountID)
	if err != nil {
		if util.IsError(err, util.ErrNotFound) {
			return nil, util.ErrWalletNotFound
		}
		return nil, fmt.Errorf("get wallet: failed for account %s: %w", accountID, err)
	}

	if err := s.walletCache.Set(ctx, accountID, wallet); err != nil {
		s.logger.Warn("Wallet cache write failed", "account_id", accountID, "error", err)
	}
	return wallet, nil
}

// GetTopUpHistory retrieves a paginated list of top-up audit records for a wallet.
func (s *topUpService) GetTopUpHistory(ctx context.Context, walletID string, limit, offset int) ([]domain.TopUpEntry, int64, error) {
	entries, totalCount, err := s.entryRepo.GetEntriesByWalletID(ctx, s.dbExecutor, walletID, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to retrieve top-up history: %w", err)
	}
	return entries, totalCount, nil
}

// CreateAccountWithWallet provisions an account together with its wallet in
// one transaction. The wallet balance is left uninitialized until the first
// top-up.
func (s *topUpService) CreateAccountWithWallet(ctx context.Context, name string, role domain.AccountRole) (*domain.Account, *domain.Wallet, error) {
	txController, err := s.beginTx(ctx, s.dbBeginner)
	if err != nil {
		return nil, nil, fmt.Errorf("create account: failed to begin transaction: %w", err)
	}
	defer s.rollbackTx(txController)

	txExecutor, ok := txController.(repository.DBExecutor)
	if !ok {
		return nil, nil, fmt.Errorf("create account: transaction controller does not implement DBExecutor")
	}

	account := domain.NewAccount(name, role)
	if err := s.accountRepo.CreateAccount(ctx, txExecutor, account); err != nil {
		return nil, nil, fmt.Errorf("create account: failed to create account: %w", err)
	}

	wallet := domain.NewWallet(account.ID)
	if err := s.walletRepo.CreateWallet(ctx, txExecutor, wallet); err != nil {
		return nil, nil, fmt.Errorf("create account: failed to create wallet: %w", err)
	}

	if err := s.commitTx(txController); err != nil {
		return nil, nil, fmt.Errorf("create account: failed to commit transaction: %w", err)
	}

	return account, wallet, nil
}

// isRetryableTxError reports whether err is a PostgreSQL serialization failure
// or deadlock, both of which are safe to retry as a fresh transaction.
func isRetryableTxError(err error) bool {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code == "40001" || pqErr.Code == "40P01"
	}
	return false
}
