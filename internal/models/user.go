/**
 * @description
 * User database model.
 * Maps to the 'users' table in PostgreSQL.
 * Links an auth-provider subject to a ledger account and an optional wallet address
 * used for resolution signature proofs.
 *
 * @dependencies
 * - gorm.io/gorm
 * - github.com/google/uuid
 */

package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// User represents a registered user in the system
type User struct {
	ID        uuid.UUID `gorm:"type:uuid;primary_key;default:uuid_generate_v4()" json:"id"`
	SubjectID string    `gorm:"column:subject_id;uniqueIndex;not null" json:"subject_id"`
	Email     string    `json:"email"`

	// Account is the user's ledger account handle. Defaults to the subject ID.
	Account string `gorm:"column:account;uniqueIndex;not null" json:"account"`

	// WalletAddress is set when the user connects a wallet; required to act as a
	// market resolver (resolution requests carry a wallet signature proof).
	WalletAddress string `gorm:"column:wallet_address" json:"wallet_address"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

// TableName overrides the table name used by User to `users`
func (User) TableName() string {
	return "users"
}

// BeforeCreate ensures UUID is generated if not present (though DB usually handles this)
func (u *User) BeforeCreate(tx *gorm.DB) (err error) {
	if u.ID == uuid.Nil {
		u.ID = uuid.New()
	}
	return
}
