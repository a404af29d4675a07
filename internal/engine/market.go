/**
 * @description
 * Market creation.
 * Validates every parameter up front and writes the record wholesale; nothing
 * is partially written on a rejected create.
 */

package engine

import (
	"context"
	"fmt"
	"time"
	"unicode/utf8"

	"github.com/foresight-project/backend/internal/models"
)

// CreateParams are the caller-supplied parameters of a new market.
type CreateParams struct {
	Creator  string
	Resolver string
	Sequence uint64

	Question string
	Duration time.Duration
	FeeBps   uint32

	CollateralAsset string

	// Fee recipients. Identities default to Creator / protocol treasury at the
	// service layer; accounts are the ledger handles credited on every buy.
	FeeCollector                string
	FeeCollectorAccount         string
	ProtocolFeeCollector        string
	ProtocolFeeCollectorAccount string
}

// Create validates params and persists a new Open market. The vault and the two
// share assets are derived from (creator, sequence), never taken from the caller.
func (e *Engine) Create(ctx context.Context, p CreateParams) (*models.Market, error) {
	if err := e.validateCreate(p); err != nil {
		return nil, err
	}

	now := e.now()
	yes, no := DeriveShareAssets(p.Creator, p.Sequence)

	m := &models.Market{
		Creator:                     p.Creator,
		Sequence:                    p.Sequence,
		Resolver:                    p.Resolver,
		Question:                    p.Question,
		FeeBps:                      p.FeeBps,
		CollateralAsset:             p.CollateralAsset,
		YesAsset:                    yes,
		NoAsset:                     no,
		Vault:                       DeriveVault(p.Creator, p.Sequence),
		FeeCollector:                p.FeeCollector,
		FeeCollectorAccount:         p.FeeCollectorAccount,
		ProtocolFeeCollector:        p.ProtocolFeeCollector,
		ProtocolFeeCollectorAccount: p.ProtocolFeeCollectorAccount,
		Status:                      models.MarketStatusOpen,
		CreatedAt:                   now,
		CloseAt:                     now.Add(p.Duration),
	}

	if err := e.store.Insert(ctx, m); err != nil {
		return nil, err
	}
	return m, nil
}

func (e *Engine) validateCreate(p CreateParams) error {
	if p.Creator == "" {
		return fmt.Errorf("%w: creator is required", ErrValidation)
	}
	if p.Resolver == "" {
		return fmt.Errorf("%w: resolver is required", ErrValidation)
	}
	if n := utf8.RuneCountInString(p.Question); n < MinQuestionLen || n > MaxQuestionLen {
		return fmt.Errorf("%w: question length %d outside [%d,%d]", ErrValidation, n, MinQuestionLen, MaxQuestionLen)
	}
	if p.Duration < MinDuration || p.Duration > MaxDuration {
		return fmt.Errorf("%w: duration %s outside [%s,%s]", ErrValidation, p.Duration, MinDuration, MaxDuration)
	}
	if p.FeeBps > MaxFeeBps {
		return fmt.Errorf("%w: fee %d bps exceeds maximum %d", ErrValidation, p.FeeBps, MaxFeeBps)
	}
	if p.CollateralAsset == "" {
		return fmt.Errorf("%w: collateral asset is required", ErrValidation)
	}
	if p.FeeCollectorAccount == "" || p.ProtocolFeeCollectorAccount == "" {
		return fmt.Errorf("%w: fee collector accounts are required", ErrValidation)
	}
	if len(e.collateralWhitelist) > 0 {
		allowed := false
		for _, asset := range e.collateralWhitelist {
			if asset == p.CollateralAsset {
				allowed = true
				break
			}
		}
		if !allowed {
			return fmt.Errorf("%w: collateral asset %s is not whitelisted", ErrValidation, p.CollateralAsset)
		}
	}
	return nil
}
