/**
 * @description
 * Holding database model.
 * Maps to the 'holdings' table in PostgreSQL: one row per (asset, owner) pair,
 * backing the Postgres implementation of the asset ledger.
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

// Holding represents one account's balance of one asset
type Holding struct {
	ID      uuid.UUID `gorm:"type:uuid;primary_key;default:uuid_generate_v4()" json:"id"`
	Asset   string    `gorm:"column:asset;not null;uniqueIndex:idx_holdings_asset_owner" json:"asset"`
	Owner   string    `gorm:"column:owner;not null;uniqueIndex:idx_holdings_asset_owner" json:"owner"`
	Balance uint64    `gorm:"column:balance;not null;default:0" json:"balance"`

	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

// TableName overrides the table name used by Holding to `holdings`
func (Holding) TableName() string {
	return "holdings"
}

// BeforeCreate ensures UUID is generated if not present
func (h *Holding) BeforeCreate(tx *gorm.DB) (err error) {
	if h.ID == uuid.Nil {
		h.ID = uuid.New()
	}
	return
}
