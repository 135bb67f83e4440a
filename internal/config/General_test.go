package config_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/elys-network/clm/internal/config"
)

func setRequiredEnv(t *testing.T) {
	t.Helper()
	t.Setenv("CLM_SAFETY_FUND_ADDRESS", "safety-fund")
	t.Setenv("CLM_ADMIN_ADDRESS", "admin")
	t.Setenv("CLM_LIQUIDATOR_INCENTIVE_BPS", "1000")
	t.Setenv("CLM_SAFETY_FUND_BPS", "500")
	t.Setenv("ORACLE_STALE_AFTER_SECONDS", "60")
	t.Setenv("NODE_RPC", "http://localhost:26657")
	t.Setenv("NODE_GRPC", "localhost:9090")
	t.Setenv("CLM_COUNCIL_ADDRESS", "")
	t.Setenv("CLM_COUNCIL_MEMBERS", "")
}

func TestLoadConfigWithoutCouncil(t *testing.T) {
	setRequiredEnv(t)

	require.NoError(t, config.LoadConfig())
	require.Empty(t, config.CouncilAddress)
	require.Empty(t, config.CouncilMembers)
}

func TestLoadConfigWithCouncil(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("CLM_COUNCIL_ADDRESS", "council")
	t.Setenv("CLM_COUNCIL_MEMBERS", "alice, bob ,carol,")

	require.NoError(t, config.LoadConfig())
	require.Equal(t, "council", config.CouncilAddress)
	require.Equal(t, []string{"alice", "bob", "carol"}, config.CouncilMembers)
}

func TestLoadConfigCouncilRequiresBothVariables(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("CLM_COUNCIL_ADDRESS", "council")

	require.Error(t, config.LoadConfig())

	setRequiredEnv(t)
	t.Setenv("CLM_COUNCIL_MEMBERS", "alice,bob")

	require.Error(t, config.LoadConfig())
}
