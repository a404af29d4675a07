/**
 * @description
 * In-memory asset ledger.
 * Backs development mode and tests; balances are plain maps guarded by a mutex.
 *
 * @notes
 * - Atomically snapshots the balance maps and restores them if the batch fails,
 *   so a half-applied buy or claim can never be observed.
 */

package ledger

import (
	"context"
	"math"
	"sync"
)

// MemoryLedger keeps balances and supplies in process memory.
type MemoryLedger struct {
	mu       sync.RWMutex
	txMu     sync.Mutex // serializes Atomically batches
	balances map[string]map[string]uint64
	supplies map[string]uint64
}

// NewMemoryLedger creates an empty in-memory ledger.
func NewMemoryLedger() *MemoryLedger {
	return &MemoryLedger{
		balances: make(map[string]map[string]uint64),
		supplies: make(map[string]uint64),
	}
}

// Mint credits newly issued units to the owner.
func (l *MemoryLedger) Mint(ctx context.Context, asset, to string, amount uint64) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.balances[asset] == nil {
		l.balances[asset] = make(map[string]uint64)
	}
	if l.balances[asset][to] > math.MaxUint64-amount {
		return ErrOverflow
	}
	if l.supplies[asset] > math.MaxUint64-amount {
		return ErrOverflow
	}
	l.balances[asset][to] += amount
	l.supplies[asset] += amount
	return nil
}

// Burn destroys units held by the owner.
func (l *MemoryLedger) Burn(ctx context.Context, asset, owner string, amount uint64) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.balances[asset][owner] < amount {
		return ErrInsufficientBalance
	}
	l.balances[asset][owner] -= amount
	l.supplies[asset] -= amount
	return nil
}

// TransferExact moves exactly amount between two accounts.
func (l *MemoryLedger) TransferExact(ctx context.Context, asset, from, to string, amount uint64) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.balances[asset][from] < amount {
		return ErrInsufficientBalance
	}
	if l.balances[asset][to] > math.MaxUint64-amount {
		return ErrOverflow
	}
	l.balances[asset][from] -= amount
	l.balances[asset][to] += amount
	return nil
}

// BalanceOf returns the owner's balance of asset.
func (l *MemoryLedger) BalanceOf(ctx context.Context, asset, owner string) (uint64, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.balances[asset][owner], nil
}

// SupplyOf returns the outstanding supply of asset.
func (l *MemoryLedger) SupplyOf(ctx context.Context, asset string) (uint64, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.supplies[asset], nil
}

// Atomically runs fn and rolls back every effect if it returns an error.
func (l *MemoryLedger) Atomically(ctx context.Context, fn func(Ledger) error) error {
	l.txMu.Lock()
	defer l.txMu.Unlock()

	snapshot := l.snapshot()
	if err := fn(l); err != nil {
		l.restore(snapshot)
		return err
	}
	return nil
}

type memorySnapshot struct {
	balances map[string]map[string]uint64
	supplies map[string]uint64
}

func (l *MemoryLedger) snapshot() memorySnapshot {
	l.mu.RLock()
	defer l.mu.RUnlock()

	balances := make(map[string]map[string]uint64, len(l.balances))
	for asset, owners := range l.balances {
		cp := make(map[string]uint64, len(owners))
		for owner, bal := range owners {
			cp[owner] = bal
		}
		balances[asset] = cp
	}
	supplies := make(map[string]uint64, len(l.supplies))
	for asset, s := range l.supplies {
		supplies[asset] = s
	}
	return memorySnapshot{balances: balances, supplies: supplies}
}

func (l *MemoryLedger) restore(s memorySnapshot) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.balances = s.balances
	l.supplies = s.supplies
}
