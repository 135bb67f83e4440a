/*

Fungible token transfer surface. The engine only needs push/pull custody moves
with a hard success/failure outcome and a listing-time metadata query; any
non-success outcome aborts the surrounding ledger operation in full.

*/

package bank

import (
	"errors"
	"fmt"

	sdkmath "cosmossdk.io/math"

	"github.com/elys-network/clm/internal/logger"
	"github.com/elys-network/clm/internal/types"
)

// Error definitions for zero-tolerance error handling
var (
	ErrTransferFailed    = errors.New("token transfer failed")
	ErrInsufficientFunds = errors.New("insufficient token balance")
	ErrUnknownDenom      = errors.New("token denom is unknown")
	ErrBadAmount         = errors.New("transfer amount is invalid")
)

var bankLogger = logger.GetForComponent("token_bank")

// TokenBank moves tokens between external accounts and pool custody.
type TokenBank interface {
	// Pull transfers amount of denom from the given account into pool
	// custody. Any error means no tokens moved.
	Pull(from types.Address, denom string, amount sdkmath.Int) error
	// Push transfers amount of denom from pool custody to the given
	// account. Any error means no tokens moved.
	Push(to types.Address, denom string, amount sdkmath.Int) error
	// Metadata returns the native decimal precision of denom.
	Metadata(denom string) (uint8, error)
}

// tokenInfo is the per-denom configuration of the in-memory bank.
type tokenInfo struct {
	decimals uint8
}

// MemoryBank is the reference TokenBank used in simulation mode and tests.
// Balances are plain account/denom sums; pool custody is an ordinary account
// under the reserved PoolAccount address.
type MemoryBank struct {
	tokens   map[string]tokenInfo
	balances map[types.Address]map[string]sdkmath.Int
}

// PoolAccount is the custody address of the lending pool inside a MemoryBank.
const PoolAccount types.Address = "pool"

// NewMemoryBank creates an empty bank.
func NewMemoryBank() *MemoryBank {
	return &MemoryBank{
		tokens:   make(map[string]tokenInfo),
		balances: make(map[types.Address]map[string]sdkmath.Int),
	}
}

// RegisterToken declares a denom and its native decimal precision.
func (b *MemoryBank) RegisterToken(denom string, decimals uint8) error {
	if denom == "" {
		return errors.Join(ErrUnknownDenom, errors.New("denom cannot be empty"))
	}
	if decimals > 18 {
		return fmt.Errorf("token %s has invalid precision: %d", denom, decimals)
	}
	b.tokens[denom] = tokenInfo{decimals: decimals}
	return nil
}

// Mint credits amount of denom to an account, creating supply from nothing.
// Test and simulation setup only.
func (b *MemoryBank) Mint(account types.Address, denom string, amount sdkmath.Int) error {
	if _, ok := b.tokens[denom]; !ok {
		return errors.Join(ErrUnknownDenom, fmt.Errorf("token %s is not registered", denom))
	}
	if amount.IsNil() || amount.IsNegative() {
		return ErrBadAmount
	}
	b.credit(account, denom, amount)
	return nil
}

// BalanceOf returns the current balance of account in denom.
func (b *MemoryBank) BalanceOf(account types.Address, denom string) sdkmath.Int {
	denoms, ok := b.balances[account]
	if !ok {
		return sdkmath.ZeroInt()
	}
	balance, ok := denoms[denom]
	if !ok {
		return sdkmath.ZeroInt()
	}
	return balance
}

// Pull implements TokenBank.
func (b *MemoryBank) Pull(from types.Address, denom string, amount sdkmath.Int) error {
	return b.transfer(from, PoolAccount, denom, amount)
}

// Push implements TokenBank.
func (b *MemoryBank) Push(to types.Address, denom string, amount sdkmath.Int) error {
	return b.transfer(PoolAccount, to, denom, amount)
}

// Metadata implements TokenBank.
func (b *MemoryBank) Metadata(denom string) (uint8, error) {
	info, ok := b.tokens[denom]
	if !ok {
		return 0, errors.Join(ErrUnknownDenom, fmt.Errorf("token %s is not registered", denom))
	}
	return info.decimals, nil
}

// Decimals implements the registry's metadata source in simulation mode.
func (b *MemoryBank) Decimals(denom string) (uint8, error) {
	return b.Metadata(denom)
}

func (b *MemoryBank) transfer(from, to types.Address, denom string, amount sdkmath.Int) error {
	if _, ok := b.tokens[denom]; !ok {
		return errors.Join(ErrTransferFailed, ErrUnknownDenom)
	}
	if amount.IsNil() || !amount.IsPositive() {
		return errors.Join(ErrTransferFailed, ErrBadAmount)
	}

	available := b.BalanceOf(from, denom)
	if available.LT(amount) {
		return errors.Join(ErrTransferFailed, ErrInsufficientFunds,
			fmt.Errorf("account %s holds %s %s, needs %s", from, available, denom, amount))
	}

	b.balances[from][denom] = available.Sub(amount)
	b.credit(to, denom, amount)

	bankLogger.Debug().
		Str("from", string(from)).
		Str("to", string(to)).
		Str("denom", denom).
		Str("amount", amount.String()).
		Msg("Transfer executed")

	return nil
}

func (b *MemoryBank) credit(account types.Address, denom string, amount sdkmath.Int) {
	if b.balances[account] == nil {
		b.balances[account] = make(map[string]sdkmath.Int)
	}
	current, ok := b.balances[account][denom]
	if !ok {
		current = sdkmath.ZeroInt()
	}
	b.balances[account][denom] = current.Add(amount)
}
