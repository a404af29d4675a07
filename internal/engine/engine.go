/**
 * @description
 * Settlement engine.
 * Owns the market lifecycle state machine and the conservation-preserving
 * accounting for issuance, pre-resolution exit, fee splitting and
 * post-resolution settlement. Persistence and custody are collaborators:
 * a MarketStore for the record, a ledger.Ledger for balances.
 *
 * @dependencies
 * - backend/internal/ledger
 * - backend/internal/models
 *
 * @notes
 * - Operations on one market serialize behind a per-market mutex held for the
 *   whole operation; different markets never contend.
 * - The clock is read once per operation and reused for every check inside it.
 */

package engine

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/foresight-project/backend/internal/ledger"
	"github.com/foresight-project/backend/internal/models"
)

// Side selects one of the two outcome assets.
type Side string

const (
	SideYes Side = "YES"
	SideNo  Side = "NO"
)

// ParseSide normalizes a client-supplied side string.
func ParseSide(s string) (Side, error) {
	switch Side(s) {
	case SideYes, SideNo:
		return Side(s), nil
	}
	switch s {
	case "yes", "Yes":
		return SideYes, nil
	case "no", "No":
		return SideNo, nil
	}
	return "", fmt.Errorf("%w: side must be YES or NO", ErrValidation)
}

// MarketKey is the external key of a market.
type MarketKey struct {
	Creator  string
	Sequence uint64
}

func (k MarketKey) String() string {
	return fmt.Sprintf("%s/%d", k.Creator, k.Sequence)
}

// MarketStore persists market records. Implementations must make Insert fail on
// a duplicate (creator, sequence) pair and MarkResolved set status and outcome
// in a single update.
type MarketStore interface {
	Insert(ctx context.Context, m *models.Market) error
	Get(ctx context.Context, key MarketKey) (*models.Market, error)
	MarkResolved(ctx context.Context, key MarketKey, outcome bool, at time.Time) error
}

// Engine executes market operations.
type Engine struct {
	store  MarketStore
	ledger ledger.Ledger
	now    func() time.Time

	// collateralWhitelist restricts which assets may back new markets. Empty = any.
	collateralWhitelist []string

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// Option configures an Engine.
type Option func(*Engine)

// WithClock injects the time source. Defaults to time.Now.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// WithCollateralWhitelist restricts the collateral assets accepted by Create.
func WithCollateralWhitelist(assets []string) Option {
	return func(e *Engine) { e.collateralWhitelist = assets }
}

// New creates an Engine over the given store and ledger.
func New(store MarketStore, l ledger.Ledger, opts ...Option) *Engine {
	e := &Engine{
		store:  store,
		ledger: l,
		now:    time.Now,
		locks:  make(map[string]*sync.Mutex),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Ledger exposes the engine's ledger for read-side collaborators (positions,
// market detail views).
func (e *Engine) Ledger() ledger.Ledger {
	return e.ledger
}

// lockMarket acquires the exclusive critical section for one market and
// returns its release func.
func (e *Engine) lockMarket(key MarketKey) func() {
	e.mu.Lock()
	l, ok := e.locks[key.String()]
	if !ok {
		l = &sync.Mutex{}
		e.locks[key.String()] = l
	}
	e.mu.Unlock()

	l.Lock()
	return l.Unlock
}

// loadVerified fetches the market record and cross-checks its stored custody
// handles against the deterministic derivation. A record whose handles disagree
// with (creator, sequence) is never operated on.
func (e *Engine) loadVerified(ctx context.Context, key MarketKey) (*models.Market, error) {
	m, err := e.store.Get(ctx, key)
	if err != nil {
		return nil, err
	}

	vault := DeriveVault(key.Creator, key.Sequence)
	yes, no := DeriveShareAssets(key.Creator, key.Sequence)
	if m.Vault != vault {
		return nil, fmt.Errorf("%w: vault %s", ErrResourceMismatch, m.Vault)
	}
	if m.YesAsset != yes || m.NoAsset != no {
		return nil, fmt.Errorf("%w: share assets", ErrResourceMismatch)
	}
	return m, nil
}

// checkPinned verifies a caller-supplied account handle against the recorded
// one. Empty means the caller did not pin the handle.
func checkPinned(supplied, recorded, what string) error {
	if supplied != "" && supplied != recorded {
		return fmt.Errorf("%w: %s %s does not match %s", ErrResourceMismatch, what, supplied, recorded)
	}
	return nil
}

// shareAsset returns the asset handle for the requested side.
func shareAsset(m *models.Market, side Side) string {
	if side == SideYes {
		return m.YesAsset
	}
	return m.NoAsset
}

// mapLedgerError folds ledger failures into the engine taxonomy.
func mapLedgerError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, ledger.ErrInsufficientBalance) {
		return fmt.Errorf("%w: %v", ErrBalance, err)
	}
	if errors.Is(err, ledger.ErrOverflow) {
		return fmt.Errorf("%w: %v", ErrArithmetic, err)
	}
	return err
}
