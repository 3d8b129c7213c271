// internal/domain/wallet.go
package domain

import (
	"time"

	"github.com/google/uuid"
)

// Wallet represents a balance-holding record owned by exactly one account.
// Balance is kept in the smallest currency unit. A nil balance means the
// wallet has never been mutated and is treated as zero everywhere; it
// materializes to a concrete value on the first mutation.
type Wallet struct {
	ID        string    `db:"id" json:"id"`
	AccountID string    `db:"account_id" json:"account_id"`
	Balance   *int64    `db:"balance" json:"balance"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// NewWallet creates a new Wallet instance. The balance is left uninitialized;
// it becomes concrete on the first top-up.
func NewWallet(accountID string) *Wallet {
	now := time.Now().UTC()
	return &Wallet{
		ID:        uuid.NewString(),
		AccountID: accountID,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// BalanceOrZero returns the current balance, treating an uninitialized
// balance as zero.
func (w *Wallet) BalanceOrZero() int64 {
	if w.Balance == nil {
		return 0
	}
	return *w.Balance
}
