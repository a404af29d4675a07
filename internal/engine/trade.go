/**
 * @description
 * Issuance and exit: buy converts collateral into one side's shares at a fixed
 * 1:1 net rate, sell redeems shares back 1:1 against the vault pre-resolution.
 * Both preserve the conservation invariant vault == yes_supply + no_supply.
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

// BuyParams describe an issuance request.
type BuyParams struct {
	Key    MarketKey
	Caller string // caller's ledger account
	Amount uint64 // gross collateral units
	Side   Side

	// Optional pinned handles. When set they must equal the market's recorded
	// handles; a mismatch is a hard error, never a silent substitution.
	Vault           string
	CollateralAsset string
	ShareAsset      string
}

// BuyResult reports the settled issuance.
type BuyResult struct {
	SharesMinted uint64
	FeeCharged   uint64
	Split        FeeSplit
}

// Buy debits Amount collateral from the caller, pays the fee halves to the two
// collectors, credits the net to the vault, and mints net shares of the chosen
// side to the caller.
func (e *Engine) Buy(ctx context.Context, p BuyParams) (BuyResult, error) {
	if p.Amount == 0 {
		return BuyResult{}, fmt.Errorf("%w: amount must be positive", ErrValidation)
	}

	unlock := e.lockMarket(p.Key)
	defer unlock()

	m, err := e.loadVerified(ctx, p.Key)
	if err != nil {
		return BuyResult{}, err
	}
	if err := checkPinned(p.Vault, m.Vault, "vault"); err != nil {
		return BuyResult{}, err
	}
	if err := checkPinned(p.CollateralAsset, m.CollateralAsset, "collateral asset"); err != nil {
		return BuyResult{}, err
	}
	asset := shareAsset(m, p.Side)
	if err := checkPinned(p.ShareAsset, asset, "share asset"); err != nil {
		return BuyResult{}, err
	}

	now := e.now()
	if err := gateTrade(m, now); err != nil {
		return BuyResult{}, err
	}

	split, err := SplitFee(p.Amount, m.FeeBps)
	if err != nil {
		return BuyResult{}, err
	}

	balance, err := e.ledger.BalanceOf(ctx, m.CollateralAsset, p.Caller)
	if err != nil {
		return BuyResult{}, err
	}
	if balance < p.Amount {
		return BuyResult{}, fmt.Errorf("%w: have %d, need %d collateral units", ErrBalance, balance, p.Amount)
	}

	// All checks passed; apply the transfers all-or-nothing. The fee halves are
	// paid straight from the buyer, never routed through the vault.
	err = ledger.Atomically(ctx, e.ledger, func(l ledger.Ledger) error {
		if err := l.TransferExact(ctx, m.CollateralAsset, p.Caller, m.Vault, split.Net); err != nil {
			return err
		}
		if split.ProtocolFee > 0 {
			if err := l.TransferExact(ctx, m.CollateralAsset, p.Caller, m.ProtocolFeeCollectorAccount, split.ProtocolFee); err != nil {
				return err
			}
		}
		if split.CreatorFee > 0 {
			if err := l.TransferExact(ctx, m.CollateralAsset, p.Caller, m.FeeCollectorAccount, split.CreatorFee); err != nil {
				return err
			}
		}
		return l.Mint(ctx, asset, p.Caller, split.Net)
	})
	if err != nil {
		return BuyResult{}, mapLedgerError(err)
	}

	return BuyResult{SharesMinted: split.Net, FeeCharged: split.Fee(), Split: split}, nil
}

// SellParams describe a pre-resolution exit request.
type SellParams struct {
	Key    MarketKey
	Caller string
	Amount uint64 // share units
	Side   Side

	Vault      string
	ShareAsset string
}

// Sell burns Amount shares of the chosen side from the caller and pays Amount
// collateral from the vault, 1:1 with no fee.
func (e *Engine) Sell(ctx context.Context, p SellParams) (uint64, error) {
	if p.Amount == 0 {
		return 0, fmt.Errorf("%w: amount must be positive", ErrValidation)
	}

	unlock := e.lockMarket(p.Key)
	defer unlock()

	m, err := e.loadVerified(ctx, p.Key)
	if err != nil {
		return 0, err
	}
	if err := checkPinned(p.Vault, m.Vault, "vault"); err != nil {
		return 0, err
	}
	asset := shareAsset(m, p.Side)
	if err := checkPinned(p.ShareAsset, asset, "share asset"); err != nil {
		return 0, err
	}

	now := e.now()
	if err := gateTrade(m, now); err != nil {
		return 0, err
	}

	held, err := e.ledger.BalanceOf(ctx, asset, p.Caller)
	if err != nil {
		return 0, err
	}
	if held < p.Amount {
		return 0, fmt.Errorf("%w: have %d, need %d %s shares", ErrBalance, held, p.Amount, p.Side)
	}

	err = ledger.Atomically(ctx, e.ledger, func(l ledger.Ledger) error {
		if err := l.Burn(ctx, asset, p.Caller, p.Amount); err != nil {
			return err
		}
		return l.TransferExact(ctx, m.CollateralAsset, m.Vault, p.Caller, p.Amount)
	})
	if err != nil {
		return 0, mapLedgerError(err)
	}

	return p.Amount, nil
}
