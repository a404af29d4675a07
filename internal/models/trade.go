/**
 * @description
 * Trade database model.
 * Maps to the 'trades' table in PostgreSQL.
 * Audit trail of every buy/sell/claim settled by the engine; feeds market history.
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

// TradeAction defines what the caller did
type TradeAction string

const (
	TradeActionBuy   TradeAction = "BUY"
	TradeActionSell  TradeAction = "SELL"
	TradeActionClaim TradeAction = "CLAIM"
)

// Trade represents one settled engine operation against a market
type Trade struct {
	ID uuid.UUID `gorm:"type:uuid;primary_key;default:uuid_generate_v4()" json:"id"`

	Creator  string `gorm:"column:creator;not null;index:idx_trades_market" json:"creator"`
	Sequence uint64 `gorm:"column:sequence;not null;index:idx_trades_market" json:"sequence"`

	Caller string      `gorm:"column:caller;not null;index:idx_trades_caller" json:"caller"`
	Action TradeAction `gorm:"column:action;type:varchar(8);not null" json:"action"`
	Side   string      `gorm:"column:side;type:varchar(4)" json:"side"` // "YES"/"NO"; empty for claims

	// Amount is the caller's input (collateral for buys, shares for sells, 0 for claims).
	// Shares/Fee/Payout record the settled result.
	Amount uint64 `gorm:"column:amount" json:"amount"`
	Shares uint64 `gorm:"column:shares" json:"shares"`
	Fee    uint64 `gorm:"column:fee" json:"fee"`
	Payout uint64 `gorm:"column:payout" json:"payout"`

	CreatedAt time.Time `gorm:"autoCreateTime;index" json:"created_at"`
}

// TableName overrides the table name used by Trade to `trades`
func (Trade) TableName() string {
	return "trades"
}

// BeforeCreate ensures UUID is generated if not present
func (t *Trade) BeforeCreate(tx *gorm.DB) (err error) {
	if t.ID == uuid.Nil {
		t.ID = uuid.New()
	}
	return
}
