/*

Asset registry: the set of listed assets with their collateral factors and
frozen decimal precision. Leaf dependency for valuation, the ledger, and the
engine. Administrative mutation is role-gated; assets are append-only and are
never delisted.

*/

package registry

import (
	"errors"
	"fmt"
	"time"

	"github.com/elys-network/clm/internal/access"
	"github.com/elys-network/clm/internal/logger"
	"github.com/elys-network/clm/internal/oracle"
	"github.com/elys-network/clm/internal/types"
)

// Error definitions for zero-tolerance error handling
var (
	ErrAlreadyListed      = errors.New("asset is already listed")
	ErrNotSupported       = errors.New("asset is not supported")
	ErrBadCollateralBps   = errors.New("collateral factor is outside [1,10000] basis points")
	ErrMetadataUnavailble = errors.New("token metadata query failed")
)

var registryLogger = logger.GetForComponent("asset_registry")

// Registry holds all listed asset configurations.
type Registry struct {
	accessCtl *access.Controller
	metadata  oracle.MetadataSource
	recorder  types.Recorder

	assets map[string]*types.AssetConfig
	// listing order, kept for complete deterministic iteration
	listed []string
}

// New creates an empty registry. The recorder may be nil.
func New(accessCtl *access.Controller, metadata oracle.MetadataSource, recorder types.Recorder) (*Registry, error) {
	if accessCtl == nil {
		return nil, errors.New("access controller cannot be nil")
	}
	if metadata == nil {
		return nil, errors.New("metadata source cannot be nil")
	}
	return &Registry{
		accessCtl: accessCtl,
		metadata:  metadata,
		recorder:  recorder,
		assets:    make(map[string]*types.AssetConfig),
	}, nil
}

// ListAsset registers a new asset with the given collateral factor. The
// asset's native decimal precision is read from token metadata once, here,
// and frozen in the configuration.
func (r *Registry) ListAsset(caller types.Address, denom string, cfBps uint32) error {
	if err := r.accessCtl.RequireRole(access.RoleAdmin, caller); err != nil {
		return err
	}
	if denom == "" {
		return errors.Join(ErrNotSupported, errors.New("denom cannot be empty"))
	}
	if cfBps == 0 || cfBps > types.BpsDenominator {
		return errors.Join(ErrBadCollateralBps, fmt.Errorf("got %d", cfBps))
	}
	if _, exists := r.assets[denom]; exists {
		return errors.Join(ErrAlreadyListed, fmt.Errorf("asset %s", denom))
	}

	decimals, err := r.metadata.Decimals(denom)
	if err != nil {
		return errors.Join(ErrMetadataUnavailble, err)
	}

	r.assets[denom] = &types.AssetConfig{
		Denom:               denom,
		Supported:           true,
		CollateralFactorBps: cfBps,
		Decimals:            decimals,
	}
	r.listed = append(r.listed, denom)

	registryLogger.Info().
		Str("denom", denom).
		Uint32("collateralFactorBps", cfBps).
		Uint8("decimals", decimals).
		Str("listedBy", string(caller)).
		Msg("Asset listed")

	if r.recorder != nil {
		r.recorder.RecordOperation(types.OperationReceipt{
			Timestamp: time.Now(),
			Operation: types.OpListAsset,
			Account:   caller,
			Denom:     denom,
			Detail:    fmt.Sprintf("collateral_factor_bps=%d decimals=%d", cfBps, decimals),
		})
	}

	return nil
}

// SetCollateralFactor updates an asset's collateral factor in place. The new
// factor is used by the very next valuation; there is no transition delay.
func (r *Registry) SetCollateralFactor(caller types.Address, denom string, newCfBps uint32) error {
	if err := r.accessCtl.RequireRole(access.RoleAdmin, caller); err != nil {
		return err
	}
	if newCfBps == 0 || newCfBps > types.BpsDenominator {
		return errors.Join(ErrBadCollateralBps, fmt.Errorf("got %d", newCfBps))
	}

	cfg, exists := r.assets[denom]
	if !exists || !cfg.Supported {
		return errors.Join(ErrNotSupported, fmt.Errorf("asset %s", denom))
	}

	oldCfBps := cfg.CollateralFactorBps
	cfg.CollateralFactorBps = newCfBps

	registryLogger.Info().
		Str("denom", denom).
		Uint32("oldCollateralFactorBps", oldCfBps).
		Uint32("newCollateralFactorBps", newCfBps).
		Str("changedBy", string(caller)).
		Msg("Collateral factor updated")

	if r.recorder != nil {
		r.recorder.RecordOperation(types.OperationReceipt{
			Timestamp: time.Now(),
			Operation: types.OpSetCollateralFactor,
			Account:   caller,
			Denom:     denom,
			Detail:    fmt.Sprintf("old_bps=%d new_bps=%d", oldCfBps, newCfBps),
		})
	}

	return nil
}

// Get returns the configuration of a listed asset.
func (r *Registry) Get(denom string) (types.AssetConfig, error) {
	cfg, exists := r.assets[denom]
	if !exists || !cfg.Supported {
		return types.AssetConfig{}, errors.Join(ErrNotSupported, fmt.Errorf("asset %s", denom))
	}
	return *cfg, nil
}

// IsSupported reports whether denom is listed.
func (r *Registry) IsSupported(denom string) bool {
	cfg, exists := r.assets[denom]
	return exists && cfg.Supported
}

// ListedDenoms returns all listed denoms in listing order.
func (r *Registry) ListedDenoms() []string {
	out := make([]string, len(r.listed))
	copy(out, r.listed)
	return out
}
