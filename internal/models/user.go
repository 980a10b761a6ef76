package models

import (
	"time"

	"github.com/google/uuid"
)

// User is a registered account. The password is stored only as a bcrypt hash.
// Credits live in the ledger; the value here is a snapshot for display.
type User struct {
	ID           uuid.UUID  `db:"id" json:"id"`
	Username     string     `db:"username" json:"username"`
	Email        string     `db:"email" json:"email"`
	PasswordHash string     `db:"password_hash" json:"-"`
	Credits      int        `db:"credits" json:"credits"`
	CreatedAt    time.Time  `db:"created_at" json:"createdAt"`
	LastLoginAt  *time.Time `db:"last_login_at" json:"lastLogin,omitempty"`
}
