// internal/domain/topup_entry.go
package domain

import (
	"time"

	"github.com/google/uuid"
)

// TopUpEntry is the immutable audit record written for every successful
// top-up. It is the reconciliation source when a partial commit is suspected:
// sum(net) over entries must equal the user wallet's credited total, and
// sum(fee) the admin wallet's.
type TopUpEntry struct {
	ID            string    `db:"id" json:"id"`
	WalletID      string    `db:"wallet_id" json:"wallet_id"`
	AdminWalletID string    `db:"admin_wallet_id" json:"admin_wallet_id"`
	GrossAmount   int64     `db:"gross_amount" json:"gross_amount"`
	FeeAmount     int64     `db:"fee_amount" json:"fee_amount"`
	NetAmount     int64     `db:"net_amount" json:"net_amount"`
	CreatedAt     time.Time `db:"created_at" json:"created_at"`
}

// NewTopUpEntry creates a new TopUpEntry instance.
func NewTopUpEntry(walletID, adminWalletID string, gross, fee, net int64) *TopUpEntry {
	return &TopUpEntry{
		ID:            uuid.NewString(),
		WalletID:      walletID,
		AdminWalletID: adminWalletID,
		GrossAmount:   gross,
		FeeAmount:     fee,
		NetAmount:     net,
		CreatedAt:     time.Now().UTC(),
	}
}
