/**
 * @description
 * Resolution and settlement.
 * Resolve fixes the outcome exactly once after the deadline; claim redeems the
 * caller's whole winning-side balance 1:1 against the vault, burn and payout
 * applying together or not at all.
 *
 * @dependencies
 * - backend/internal/ledger
 */

package engine

import (
	"context"
	"fmt"

	"github.com/foresight-project/backend/internal/ledger"
)

// Resolve fixes the market outcome. Permitted only for the designated resolver,
// only after the deadline, only while the market is still Open, and only when
// both sides carry a positive supply; a market nobody traded against on one
// side cannot be meaningfully resolved.
func (e *Engine) Resolve(ctx context.Context, caller string, key MarketKey, outcome bool) error {
	unlock := e.lockMarket(key)
	defer unlock()

	m, err := e.loadVerified(ctx, key)
	if err != nil {
		return err
	}

	now := e.now()
	if err := gateResolve(m, caller, now); err != nil {
		return err
	}

	yesSupply, err := e.ledger.SupplyOf(ctx, m.YesAsset)
	if err != nil {
		return err
	}
	noSupply, err := e.ledger.SupplyOf(ctx, m.NoAsset)
	if err != nil {
		return err
	}
	if yesSupply == 0 || noSupply == 0 {
		return fmt.Errorf("%w: one-sided market cannot resolve (yes=%d, no=%d)", ErrState, yesSupply, noSupply)
	}

	// Status and outcome flip together in a single update; a second resolve
	// always fails the status gate above.
	return e.store.MarkResolved(ctx, key, outcome, now)
}

// ClaimParams describe a settlement request.
type ClaimParams struct {
	Key    MarketKey
	Caller string

	// Optional pinned handles, checked against the record when set.
	Vault        string
	WinningAsset string
}

// ClaimResult reports the settled redemption.
type ClaimResult struct {
	Payout       uint64
	SharesBurned uint64
	WinningAsset string
}

// Claim burns the caller's entire winning-side balance and pays the same number
// of collateral units from the vault. A caller with no winning shares gets a
// zero payout, not an error. Losing shares are left untouched.
func (e *Engine) Claim(ctx context.Context, p ClaimParams) (ClaimResult, error) {
	unlock := e.lockMarket(p.Key)
	defer unlock()

	m, err := e.loadVerified(ctx, p.Key)
	if err != nil {
		return ClaimResult{}, err
	}
	if err := gateClaim(m); err != nil {
		return ClaimResult{}, err
	}

	winning := m.WinningAsset()
	if err := checkPinned(p.Vault, m.Vault, "vault"); err != nil {
		return ClaimResult{}, err
	}
	if err := checkPinned(p.WinningAsset, winning, "winning asset"); err != nil {
		return ClaimResult{}, err
	}

	held, err := e.ledger.BalanceOf(ctx, winning, p.Caller)
	if err != nil {
		return ClaimResult{}, err
	}
	if held == 0 {
		return ClaimResult{WinningAsset: winning}, nil
	}

	err = ledger.Atomically(ctx, e.ledger, func(l ledger.Ledger) error {
		if err := l.Burn(ctx, winning, p.Caller, held); err != nil {
			return err
		}
		return l.TransferExact(ctx, m.CollateralAsset, m.Vault, p.Caller, held)
	})
	if err != nil {
		return ClaimResult{}, mapLedgerError(err)
	}

	return ClaimResult{Payout: held, SharesBurned: held, WinningAsset: winning}, nil
}
