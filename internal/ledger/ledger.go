/**
 * @description
 * Asset Ledger interface.
 * Custody primitive consumed by the settlement engine: minting, burning and
 * exact transfers of fungible assets between string-keyed accounts.
 *
 * @notes
 * - TransferExact either moves the full amount or fails; partial transfers never happen.
 * - Implementations that can batch operations all-or-nothing expose Atomically.
 */

package ledger

import (
	"context"
	"errors"
)

var (
	// ErrInsufficientBalance is returned when a burn or transfer exceeds the owner's balance.
	ErrInsufficientBalance = errors.New("insufficient balance")
	// ErrOverflow is returned when a credit would overflow the owner's balance.
	ErrOverflow = errors.New("balance overflow")
)

// Ledger is the external asset custody collaborator.
type Ledger interface {
	// Mint credits newly issued units of asset to the owner, growing the asset's supply.
	Mint(ctx context.Context, asset, to string, amount uint64) error
	// Burn destroys units held by owner, shrinking the asset's supply.
	// Fails with ErrInsufficientBalance if the owner holds less than amount.
	Burn(ctx context.Context, asset, owner string, amount uint64) error
	// TransferExact moves exactly amount from one account to another, or fails.
	TransferExact(ctx context.Context, asset, from, to string, amount uint64) error
	// BalanceOf returns the owner's balance of asset (0 for unknown accounts).
	BalanceOf(ctx context.Context, asset, owner string) (uint64, error)
	// SupplyOf returns the outstanding supply of asset across all accounts.
	SupplyOf(ctx context.Context, asset string) (uint64, error)
}

// Atomic is implemented by ledgers that can apply a group of operations
// all-or-nothing: if fn returns an error, none of its effects persist.
type Atomic interface {
	Atomically(ctx context.Context, fn func(Ledger) error) error
}

// Atomically runs fn against l all-or-nothing when the ledger supports it,
// and directly otherwise.
func Atomically(ctx context.Context, l Ledger, fn func(Ledger) error) error {
	if a, ok := l.(Atomic); ok {
		return a.Atomically(ctx, fn)
	}
	return fn(l)
}
