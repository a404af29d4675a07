/**
 * @description
 * Fee distribution.
 * Pure split of a trade amount into the net vault deposit and the two fee halves.
 * For every input: Net + ProtocolFee + CreatorFee == amount.
 */

package engine

import (
	"fmt"
	"math"
)

const (
	// FeeDenominator expresses fees in basis points.
	FeeDenominator = 10_000
	// MaxFeeBps caps trading fees at 10%.
	MaxFeeBps = 1_000
)

// FeeSplit is the outcome of splitting a trade amount.
type FeeSplit struct {
	Net         uint64 // credited to the vault and minted as shares
	ProtocolFee uint64 // floor(fee/2), to the protocol treasury
	CreatorFee  uint64 // fee - ProtocolFee, remainder absorbed by the creator
}

// Fee returns the total fee charged.
func (s FeeSplit) Fee() uint64 {
	return s.ProtocolFee + s.CreatorFee
}

// SplitFee computes fee = floor(amount * feeBps / 10000) and divides it between
// the protocol and the creator. The overflow checks cannot trip while
// feeBps <= MaxFeeBps but are kept as a guard against future policy changes.
func SplitFee(amount uint64, feeBps uint32) (FeeSplit, error) {
	if feeBps > MaxFeeBps {
		return FeeSplit{}, fmt.Errorf("%w: fee %d bps exceeds maximum %d", ErrValidation, feeBps, MaxFeeBps)
	}
	if feeBps > 0 && amount > math.MaxUint64/uint64(feeBps) {
		return FeeSplit{}, fmt.Errorf("%w: fee on %d units", ErrArithmetic, amount)
	}

	fee := amount * uint64(feeBps) / FeeDenominator
	if fee > amount {
		return FeeSplit{}, fmt.Errorf("%w: fee %d exceeds amount %d", ErrArithmetic, fee, amount)
	}

	protocolFee := fee / 2
	return FeeSplit{
		Net:         amount - fee,
		ProtocolFee: protocolFee,
		CreatorFee:  fee - protocolFee,
	}, nil
}
