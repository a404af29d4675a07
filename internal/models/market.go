/**
 * @description
 * Market database model.
 * Maps to the 'markets' table in PostgreSQL. One row per binary-outcome market:
 * its lifecycle status, fee policy, and the derived custody/share-asset handles.
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

// MarketStatus defines the lifecycle state of a market
type MarketStatus string

const (
	// MarketStatusOpen accepts buys and sells until CloseAt.
	MarketStatusOpen MarketStatus = "OPEN"
	// MarketStatusResolved has a fixed outcome; winning shares redeem against the vault.
	MarketStatusResolved MarketStatus = "RESOLVED"
	// MarketStatusSettled is reserved for a future fully-claimed-out terminal state.
	// No operation currently transitions into it.
	MarketStatusSettled MarketStatus = "SETTLED"
)

// Market represents one binary-outcome prediction market
type Market struct {
	ID uuid.UUID `gorm:"type:uuid;primary_key;default:uuid_generate_v4()" json:"id"`

	// Creator + Sequence form the external key of the market. A creator may run
	// many markets but never two with the same sequence number.
	Creator  string `gorm:"column:creator;not null;uniqueIndex:idx_markets_creator_seq" json:"creator"`
	Sequence uint64 `gorm:"column:sequence;not null;uniqueIndex:idx_markets_creator_seq" json:"sequence"`

	// Resolver is the only identity authorized to fix the outcome.
	Resolver string `gorm:"column:resolver;not null" json:"resolver"`

	Question string `gorm:"column:question;type:varchar(100);not null" json:"question"`
	FeeBps   uint32 `gorm:"column:fee_bps;not null" json:"fee_bps"`

	// Asset and account handles. Vault, YesAsset and NoAsset are derived from
	// (creator, sequence) and stored for display; every operation re-derives and
	// cross-checks them before moving funds.
	CollateralAsset string `gorm:"column:collateral_asset;not null" json:"collateral_asset"`
	YesAsset        string `gorm:"column:yes_asset;not null" json:"yes_asset"`
	NoAsset         string `gorm:"column:no_asset;not null" json:"no_asset"`
	Vault           string `gorm:"column:vault;not null" json:"vault"`

	// Fee recipients: the creator half and the protocol half.
	FeeCollector                string `gorm:"column:fee_collector" json:"fee_collector"`
	FeeCollectorAccount         string `gorm:"column:fee_collector_account" json:"fee_collector_account"`
	ProtocolFeeCollector        string `gorm:"column:protocol_fee_collector" json:"protocol_fee_collector"`
	ProtocolFeeCollectorAccount string `gorm:"column:protocol_fee_collector_account" json:"protocol_fee_collector_account"`

	Status  MarketStatus `gorm:"column:status;type:varchar(16);default:'OPEN';index" json:"status"`
	Outcome *bool        `gorm:"column:outcome" json:"outcome,omitempty"` // nil until resolved

	CloseAt    time.Time  `gorm:"column:close_at;not null;index" json:"close_at"`
	ResolvedAt *time.Time `gorm:"column:resolved_at" json:"resolved_at,omitempty"`

	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

// TableName overrides the table name used by Market to `markets`
func (Market) TableName() string {
	return "markets"
}

// BeforeCreate ensures UUID is generated if not present
func (m *Market) BeforeCreate(tx *gorm.DB) (err error) {
	if m.ID == uuid.Nil {
		m.ID = uuid.New()
	}
	return
}

// IsOpen reports whether the market still accepts buys and sells (status only;
// time gating is the engine's job).
func (m *Market) IsOpen() bool {
	return m.Status == MarketStatusOpen
}

// WinningAsset returns the share asset that redeems 1:1 after resolution.
// Only meaningful when Status is RESOLVED.
func (m *Market) WinningAsset() string {
	if m.Outcome != nil && *m.Outcome {
		return m.YesAsset
	}
	return m.NoAsset
}

// LosingAsset returns the share asset rendered worthless by resolution.
func (m *Market) LosingAsset() string {
	if m.Outcome != nil && *m.Outcome {
		return m.NoAsset
	}
	return m.YesAsset
}
