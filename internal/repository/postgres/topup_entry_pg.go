// internal/repository/postgres/topup_entry_pg.go
package postgres

import (
	"context"
	"fmt"

	"metawallet/internal/domain"
	"metawallet/internal/repository"
)

// TopUpEntryRepository implements repository.TopUpEntryRepository for PostgreSQL.
type TopUpEntryRepository struct{}

// NewTopUpEntryRepository creates a new TopUpEntryRepository.
func NewTopUpEntryRepository() repository.TopUpEntryRepository {
	return &TopUpEntryRepository{}
}

// CreateEntry inserts a new top-up audit record using the provided DBExecutor.
func (r *TopUpEntryRepository) CreateEntry(ctx context.Context, q repository.DBExecutor, entry *domain.TopUpEntry) error {
	query := `INSERT INTO topup_entries (id, wallet_id, admin_wallet_id, gross_amount, fee_amount, net_amount, created_at)
              VALUES ($1, $2, $3, $4, $5, $6, $7)`
	if _, err := q.ExecContext(ctx, query,
		entry.ID,
		entry.WalletID,
		entry.AdminWalletID,
		entry.GrossAmount,
		entry.FeeAmount,
		entry.NetAmount,
		entry.CreatedAt,
	); err != nil {
		return fmt.Errorf("failed to create top-up entry: %w", err)
	}
	return nil
}

// GetEntriesByWalletID retrieves a paginated list of top-up records for a wallet.
// It performs two queries: one for the data and one for the total count.
func (r *TopUpEntryRepository) GetEntriesByWalletID(ctx context.Context, q repository.DBExecutor, walletID string, limit, offset int) ([]domain.TopUpEntry, int64, error) {
	entries := []domain.TopUpEntry{}

	query := `
		SELECT id, wallet_id, admin_wallet_id, gross_amount, fee_amount, net_amount, created_at
		FROM topup_entries
		WHERE wallet_id = $1 OR admin_wallet_id = $1
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3`
	err := q.SelectContext(ctx, &entries, query, walletID, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to fetch top-up entries for wallet %s: %w", walletID, err)
	}

	var totalCount int64
	countQuery := `
		SELECT COUNT(*)
		FROM topup_entries
		WHERE wallet_id = $1 OR admin_wallet_id = $1`
	err = q.GetContext(ctx, &totalCount, countQuery, walletID)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to count top-up entries for wallet %s: %w", walletID, err)
	}

	return entries, totalCount, nil
}
