/**
 * @description
 * Postgres-backed asset ledger using GORM.
 * Balances live in the 'holdings' table, one row per (asset, owner) pair.
 *
 * @dependencies
 * - gorm.io/gorm
 * - backend/internal/models
 *
 * @notes
 * - Debits are conditional updates (balance >= amount in the WHERE clause) so a
 *   concurrent spend can never drive a balance negative.
 * - Atomically maps onto a database transaction; the engine wraps each operation's
 *   mutation phase in one.
 */

package ledger

import (
	"context"

	"github.com/foresight-project/backend/internal/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// PostgresLedger stores balances in the holdings table.
type PostgresLedger struct {
	DB *gorm.DB
}

// NewPostgresLedger creates a ledger over the given database handle.
func NewPostgresLedger(db *gorm.DB) *PostgresLedger {
	return &PostgresLedger{DB: db}
}

// Mint credits newly issued units to the owner, creating the holding row if needed.
func (l *PostgresLedger) Mint(ctx context.Context, asset, to string, amount uint64) error {
	holding := models.Holding{Asset: asset, Owner: to, Balance: amount}
	return l.DB.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "asset"}, {Name: "owner"}},
		DoUpdates: clause.Assignments(map[string]interface{}{
			"balance": gorm.Expr("holdings.balance + ?", amount),
		}),
	}).Create(&holding).Error
}

// Burn destroys units held by the owner.
func (l *PostgresLedger) Burn(ctx context.Context, asset, owner string, amount uint64) error {
	return l.debit(ctx, asset, owner, amount)
}

// TransferExact moves exactly amount between two accounts.
func (l *PostgresLedger) TransferExact(ctx context.Context, asset, from, to string, amount uint64) error {
	run := func(tx Ledger) error {
		pl := tx.(*PostgresLedger)
		if err := pl.debit(ctx, asset, from, amount); err != nil {
			return err
		}
		return pl.credit(ctx, asset, to, amount)
	}

	// When already inside an Atomically block the outer transaction provides
	// the all-or-nothing guarantee; otherwise open one here.
	if l.inTx() {
		return run(l)
	}
	return l.Atomically(ctx, run)
}

// BalanceOf returns the owner's balance of asset (0 when no row exists).
func (l *PostgresLedger) BalanceOf(ctx context.Context, asset, owner string) (uint64, error) {
	var holding models.Holding
	err := l.DB.WithContext(ctx).
		Where("asset = ? AND owner = ?", asset, owner).
		First(&holding).Error
	if err == gorm.ErrRecordNotFound {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return holding.Balance, nil
}

// SupplyOf returns the outstanding supply of asset across all accounts.
func (l *PostgresLedger) SupplyOf(ctx context.Context, asset string) (uint64, error) {
	var supply uint64
	err := l.DB.WithContext(ctx).Model(&models.Holding{}).
		Where("asset = ?", asset).
		Select("COALESCE(SUM(balance), 0)").
		Scan(&supply).Error
	return supply, err
}

// Atomically runs fn inside a database transaction.
func (l *PostgresLedger) Atomically(ctx context.Context, fn func(Ledger) error) error {
	return l.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&PostgresLedger{DB: tx})
	})
}

// debit decrements a balance, failing with ErrInsufficientBalance rather than
// letting the row go negative.
func (l *PostgresLedger) debit(ctx context.Context, asset, owner string, amount uint64) error {
	res := l.DB.WithContext(ctx).Model(&models.Holding{}).
		Where("asset = ? AND owner = ? AND balance >= ?", asset, owner, amount).
		Update("balance", gorm.Expr("balance - ?", amount))
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrInsufficientBalance
	}
	return nil
}

// credit increments a balance, creating the holding row if needed.
func (l *PostgresLedger) credit(ctx context.Context, asset, owner string, amount uint64) error {
	holding := models.Holding{Asset: asset, Owner: owner, Balance: amount}
	return l.DB.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "asset"}, {Name: "owner"}},
		DoUpdates: clause.Assignments(map[string]interface{}{
			"balance": gorm.Expr("holdings.balance + ?", amount),
		}),
	}).Create(&holding).Error
}

// inTx reports whether the handle is already running inside a transaction.
func (l *PostgresLedger) inTx() bool {
	committer, ok := l.DB.Statement.ConnPool.(gorm.TxCommitter)
	return ok && committer != nil
}
