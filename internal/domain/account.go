// internal/domain/account.go
package domain

import (
	"time"

	"github.com/google/uuid"
)

// AccountRole distinguishes ordinary users from the platform admin account.
type AccountRole string

const (
	RoleUser  AccountRole = "USER"
	RoleAdmin AccountRole = "ADMIN"
)

// Account represents an owner of exactly one wallet. The admin account is a
// provisioned singleton whose identifier is injected via configuration.
type Account struct {
	ID        string      `db:"id" json:"id"`
	Name      string      `db:"name" json:"name"`
	Role      AccountRole `db:"role" json:"role"`
	CreatedAt time.Time   `db:"created_at" json:"created_at"`
	UpdatedAt time.Time   `db:"updated_at" json:"updated_at"`
}

// NewAccount creates a new Account instance with a generated identifier.
func NewAccount(name string, role AccountRole) *Account {
	now := time.Now().UTC()
	return &Account{
		ID:        uuid.NewString(),
		Name:      name,
		Role:      role,
		CreatedAt: now,
		UpdatedAt: now,
	}
}
