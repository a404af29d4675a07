/**
 * @description
 * Error taxonomy of the settlement engine.
 * Every operation fails with an error wrapping exactly one of these kinds;
 * callers classify with errors.Is and map kinds to transport-level statuses.
 */

package engine

import "errors"

var (
	// ErrValidation marks bad operation parameters (question length, duration
	// bounds, fee bound, zero amounts, missing resolver).
	ErrValidation = errors.New("validation failed")
	// ErrAuthorization marks a caller that is not the required identity.
	ErrAuthorization = errors.New("not authorized")
	// ErrState marks an operation against the wrong market status or on the
	// wrong side of the deadline.
	ErrState = errors.New("invalid market state")
	// ErrBalance marks insufficient collateral or share balance.
	ErrBalance = errors.New("insufficient balance")
	// ErrArithmetic marks overflow or underflow in amount math.
	ErrArithmetic = errors.New("arithmetic overflow")
	// ErrResourceMismatch marks a supplied vault/asset/collector handle that
	// does not match the one derived for the market.
	ErrResourceMismatch = errors.New("account does not match market")
	// ErrMarketNotFound marks an unknown (creator, sequence) pair.
	ErrMarketNotFound = errors.New("market not found")
	// ErrMarketExists marks a duplicate (creator, sequence) pair on create.
	ErrMarketExists = errors.New("market already exists")
)
