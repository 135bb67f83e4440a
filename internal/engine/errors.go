package engine

import "errors"

// Error definitions for zero-tolerance error handling
var (
	ErrBadParam               = errors.New("invalid parameter")
	ErrNotSupported           = errors.New("asset is not supported")
	ErrNoDebt                 = errors.New("account has no debt in this asset")
	ErrOverWithdraw           = errors.New("withdrawal exceeds deposited balance")
	ErrUnhealthy              = errors.New("operation would leave the account undercollateralized")
	ErrNotLiquidatable        = errors.New("account is healthy, nothing to liquidate")
	ErrInsufficientCollateral = errors.New("borrower holds none of the requested collateral asset")
	ErrReentrantCall          = errors.New("reentrant call rejected")
)
