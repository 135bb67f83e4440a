/*

Pool ledger: per-user deposit and debt balances plus pool-wide totals per
asset. Conservation invariant: for every asset, the total equals the sum of
the per-user balances. Amounts are non-negative integers in the asset's
native precision; the ledger rejects any mutation that would break that.

Only the engine mutates the ledger, and only after its solvency validation
has passed, so every mutator commits the paired user/total update in one
step.

*/

package ledger

import (
	"errors"
	"fmt"

	sdkmath "cosmossdk.io/math"

	"github.com/elys-network/clm/internal/types"
)

// Error definitions for zero-tolerance error handling
var (
	ErrNegativeAmount   = errors.New("ledger amount cannot be negative")
	ErrInsufficientBal  = errors.New("ledger balance is insufficient")
	ErrConservationFail = errors.New("ledger conservation invariant violated")
)

// Ledger holds all balances.
type Ledger struct {
	deposits map[types.Address]map[string]sdkmath.Int
	borrows  map[types.Address]map[string]sdkmath.Int

	totalDeposits map[string]sdkmath.Int
	totalBorrows  map[string]sdkmath.Int

	// reserves tracks collateral kept in pool custody by the liquidation
	// remainder. Debited from totalDeposits, credited here.
	reserves map[string]sdkmath.Int
}

// New creates an empty ledger.
func New() *Ledger {
	return &Ledger{
		deposits:      make(map[types.Address]map[string]sdkmath.Int),
		borrows:       make(map[types.Address]map[string]sdkmath.Int),
		totalDeposits: make(map[string]sdkmath.Int),
		totalBorrows:  make(map[string]sdkmath.Int),
		reserves:      make(map[string]sdkmath.Int),
	}
}

func get(m map[types.Address]map[string]sdkmath.Int, user types.Address, denom string) sdkmath.Int {
	denoms, ok := m[user]
	if !ok {
		return sdkmath.ZeroInt()
	}
	amount, ok := denoms[denom]
	if !ok {
		return sdkmath.ZeroInt()
	}
	return amount
}

func set(m map[types.Address]map[string]sdkmath.Int, user types.Address, denom string, amount sdkmath.Int) {
	if m[user] == nil {
		m[user] = make(map[string]sdkmath.Int)
	}
	m[user][denom] = amount
}

func total(m map[string]sdkmath.Int, denom string) sdkmath.Int {
	amount, ok := m[denom]
	if !ok {
		return sdkmath.ZeroInt()
	}
	return amount
}

// Deposit returns the user's deposit balance in denom.
func (l *Ledger) Deposit(user types.Address, denom string) sdkmath.Int {
	return get(l.deposits, user, denom)
}

// Borrow returns the user's debt balance in denom.
func (l *Ledger) Borrow(user types.Address, denom string) sdkmath.Int {
	return get(l.borrows, user, denom)
}

// TotalDeposits returns the pool-wide deposit total for denom.
func (l *Ledger) TotalDeposits(denom string) sdkmath.Int {
	return total(l.totalDeposits, denom)
}

// TotalBorrows returns the pool-wide debt total for denom.
func (l *Ledger) TotalBorrows(denom string) sdkmath.Int {
	return total(l.totalBorrows, denom)
}

// Reserve returns the tracked liquidation-remainder reserve for denom.
func (l *Ledger) Reserve(denom string) sdkmath.Int {
	return total(l.reserves, denom)
}

// AddDeposit credits amount to the user's deposit balance and the pool total.
func (l *Ledger) AddDeposit(user types.Address, denom string, amount sdkmath.Int) error {
	if err := validAmount(amount); err != nil {
		return err
	}
	set(l.deposits, user, denom, get(l.deposits, user, denom).Add(amount))
	l.totalDeposits[denom] = total(l.totalDeposits, denom).Add(amount)
	return nil
}

// SubDeposit debits amount from the user's deposit balance and the pool total.
func (l *Ledger) SubDeposit(user types.Address, denom string, amount sdkmath.Int) error {
	if err := validAmount(amount); err != nil {
		return err
	}
	current := get(l.deposits, user, denom)
	if current.LT(amount) {
		return errors.Join(ErrInsufficientBal,
			fmt.Errorf("deposit of %s in %s is %s, cannot debit %s", user, denom, current, amount))
	}
	set(l.deposits, user, denom, current.Sub(amount))
	l.totalDeposits[denom] = total(l.totalDeposits, denom).Sub(amount)
	return nil
}

// AddBorrow credits amount to the user's debt balance and the pool total.
func (l *Ledger) AddBorrow(user types.Address, denom string, amount sdkmath.Int) error {
	if err := validAmount(amount); err != nil {
		return err
	}
	set(l.borrows, user, denom, get(l.borrows, user, denom).Add(amount))
	l.totalBorrows[denom] = total(l.totalBorrows, denom).Add(amount)
	return nil
}

// SubBorrow debits amount from the user's debt balance and the pool total.
func (l *Ledger) SubBorrow(user types.Address, denom string, amount sdkmath.Int) error {
	if err := validAmount(amount); err != nil {
		return err
	}
	current := get(l.borrows, user, denom)
	if current.LT(amount) {
		return errors.Join(ErrInsufficientBal,
			fmt.Errorf("debt of %s in %s is %s, cannot debit %s", user, denom, current, amount))
	}
	set(l.borrows, user, denom, current.Sub(amount))
	l.totalBorrows[denom] = total(l.totalBorrows, denom).Sub(amount)
	return nil
}

// AddReserve credits the liquidation-remainder reserve for denom.
func (l *Ledger) AddReserve(denom string, amount sdkmath.Int) error {
	if err := validAmount(amount); err != nil {
		return err
	}
	l.reserves[denom] = total(l.reserves, denom).Add(amount)
	return nil
}

// CheckConservation verifies that every per-asset total equals the sum of the
// per-user balances. Exercised by tests and the health endpoint.
func (l *Ledger) CheckConservation(denoms []string) error {
	for _, denom := range denoms {
		depositSum := sdkmath.ZeroInt()
		for user := range l.deposits {
			depositSum = depositSum.Add(get(l.deposits, user, denom))
		}
		if !depositSum.Equal(total(l.totalDeposits, denom)) {
			return errors.Join(ErrConservationFail,
				fmt.Errorf("deposits of %s: sum %s, total %s", denom, depositSum, total(l.totalDeposits, denom)))
		}

		borrowSum := sdkmath.ZeroInt()
		for user := range l.borrows {
			borrowSum = borrowSum.Add(get(l.borrows, user, denom))
		}
		if !borrowSum.Equal(total(l.totalBorrows, denom)) {
			return errors.Join(ErrConservationFail,
				fmt.Errorf("borrows of %s: sum %s, total %s", denom, borrowSum, total(l.totalBorrows, denom)))
		}
	}
	return nil
}

func validAmount(amount sdkmath.Int) error {
	if amount.IsNil() || amount.IsNegative() {
		return ErrNegativeAmount
	}
	return nil
}
