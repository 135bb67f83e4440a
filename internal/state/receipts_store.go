// ./internal/state/receipts_store.go
package state

import (
	"fmt"

	sdkmath "cosmossdk.io/math"
	"github.com/rs/zerolog/log"

	"github.com/elys-network/clm/internal/types"
)

// ReceiptsStore persists operation receipts and liquidation events to
// PostgreSQL. It is a best-effort audit sink: write failures are logged and
// swallowed so persistence problems never affect ledger state.
type ReceiptsStore struct{}

// NewReceiptsStore returns a store backed by the global connection pool.
func NewReceiptsStore() *ReceiptsStore {
	return &ReceiptsStore{}
}

// RecordOperation implements types.Recorder.
func (s *ReceiptsStore) RecordOperation(receipt types.OperationReceipt) {
	if DB == nil {
		return
	}

	amount := receipt.Amount
	if amount.IsNil() {
		amount = sdkmath.ZeroInt()
	}

	query := `
		INSERT INTO operation_receipts (recorded_at, operation, account, denom, amount, detail)
		VALUES ($1, $2, $3, $4, $5, $6);
	`
	_, err := DB.Exec(query,
		receipt.Timestamp, receipt.Operation, string(receipt.Account),
		receipt.Denom, amount.String(), receipt.Detail,
	)
	if err != nil {
		log.Error().Err(err).
			Str("operation", receipt.Operation).
			Str("account", string(receipt.Account)).
			Msg("Failed to persist operation receipt")
	}
}

// RecordLiquidation implements types.Recorder.
func (s *ReceiptsStore) RecordLiquidation(event types.LiquidationEvent) {
	if DB == nil {
		return
	}

	query := `
		INSERT INTO liquidation_events (
			recorded_at, liquidator, borrower, repay_denom, collateral_denom,
			debt_repaid, seized_amount, to_liquidator, to_safety_fund, pool_remainder
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10);
	`
	_, err := DB.Exec(query,
		event.Timestamp, string(event.Liquidator), string(event.Borrower),
		event.RepayDenom, event.CollateralDenom,
		event.DebtRepaid.String(), event.SeizedAmount.String(),
		event.ToLiquidator.String(), event.ToSafetyFund.String(), event.PoolRemainder.String(),
	)
	if err != nil {
		log.Error().Err(err).
			Str("borrower", string(event.Borrower)).
			Msg("Failed to persist liquidation event")
	}
}

// GetRecentOperations returns the most recent receipts, newest first.
func GetRecentOperations(limit int) ([]types.OperationReceipt, error) {
	if DB == nil {
		return nil, fmt.Errorf("database not initialized")
	}
	if limit <= 0 {
		limit = 50
	}

	query := `
		SELECT recorded_at, operation, account, denom, amount, detail
		FROM operation_receipts
		ORDER BY recorded_at DESC
		LIMIT $1;
	`
	rows, err := DB.Query(query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query operation receipts: %w", err)
	}
	defer rows.Close()

	var receipts []types.OperationReceipt
	for rows.Next() {
		var r types.OperationReceipt
		var account, amountStr string
		if err := rows.Scan(&r.Timestamp, &r.Operation, &account, &r.Denom, &amountStr, &r.Detail); err != nil {
			return nil, fmt.Errorf("failed to scan operation receipt: %w", err)
		}
		r.Account = types.Address(account)
		amount, ok := sdkmath.NewIntFromString(amountStr)
		if !ok {
			return nil, fmt.Errorf("invalid amount in receipt row: %q", amountStr)
		}
		r.Amount = amount
		receipts = append(receipts, r)
	}
	return receipts, rows.Err()
}
