/**
 * @description
 * Lifecycle gates.
 * Status, time and authorization checks consulted by every operation before it
 * touches a balance. All gates run against a single clock reading.
 */

package engine

import (
	"fmt"
	"time"

	"github.com/foresight-project/backend/internal/models"
)

const (
	// MinQuestionLen / MaxQuestionLen bound the market question, in characters.
	MinQuestionLen = 10
	MaxQuestionLen = 100
	// MinDuration / MaxDuration bound the trading window.
	MinDuration = 3600 * time.Second    // 1 hour
	MaxDuration = 2592000 * time.Second // 30 days
)

// gateTrade admits buys and sells: market Open and deadline not yet reached.
func gateTrade(m *models.Market, now time.Time) error {
	if m.Status != models.MarketStatusOpen {
		return fmt.Errorf("%w: market is %s, not open for trading", ErrState, m.Status)
	}
	if !now.Before(m.CloseAt) {
		return fmt.Errorf("%w: market closed at %s", ErrState, m.CloseAt.UTC().Format(time.RFC3339))
	}
	return nil
}

// gateResolve admits the one-shot resolution: market still Open, caller is the
// designated resolver, and the deadline has passed. Supply checks (no one-sided
// resolution) happen in Resolve itself because they need the ledger.
func gateResolve(m *models.Market, caller string, now time.Time) error {
	if m.Status != models.MarketStatusOpen {
		return fmt.Errorf("%w: market already %s", ErrState, m.Status)
	}
	if caller != m.Resolver {
		return fmt.Errorf("%w: only the resolver may fix the outcome", ErrAuthorization)
	}
	if now.Before(m.CloseAt) {
		return fmt.Errorf("%w: trading window open until %s", ErrState, m.CloseAt.UTC().Format(time.RFC3339))
	}
	return nil
}

// gateClaim admits settlement: market Resolved with an outcome on record.
func gateClaim(m *models.Market) error {
	if m.Status != models.MarketStatusResolved {
		return fmt.Errorf("%w: market is %s, not resolved", ErrState, m.Status)
	}
	if m.Outcome == nil {
		// A resolved record always carries an outcome; treat a hole as state corruption.
		return fmt.Errorf("%w: resolved market has no outcome", ErrState)
	}
	return nil
}
