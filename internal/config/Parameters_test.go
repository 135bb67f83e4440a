package config_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/elys-network/clm/internal/config"
)

func TestGenesisListingsParsing(t *testing.T) {
	t.Setenv("CLM_GENESIS_ASSETS", "uusdc:9000, uweth:8000:18:2000000000000000000000")

	listings, err := config.GenesisListings()
	require.NoError(t, err)
	require.Len(t, listings, 2)

	require.Equal(t, "uusdc", listings[0].Denom)
	require.Equal(t, uint32(9000), listings[0].CollateralFactorBps)
	require.Equal(t, uint8(6), listings[0].Decimals)
	require.Equal(t, "1000000000000000000", listings[0].PriceUsd1e18)

	require.Equal(t, "uweth", listings[1].Denom)
	require.Equal(t, uint8(18), listings[1].Decimals)
	require.Equal(t, "2000000000000000000000", listings[1].PriceUsd1e18)
}

func TestGenesisListingsRejectsBadEntries(t *testing.T) {
	cases := []string{
		"",
		"uusdc",
		"uusdc:0",
		"uusdc:10001",
		"uusdc:9000:19",
		"uusdc:9000:6:not-a-number",
		"uusdc:9000:6:-5",
		"uusdc:9000:6:0",
	}
	for _, raw := range cases {
		t.Setenv("CLM_GENESIS_ASSETS", raw)
		_, err := config.GenesisListings()
		require.Error(t, err, "entry %q", raw)
	}
}
