package governance_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/elys-network/clm/internal/access"
	"github.com/elys-network/clm/internal/bank"
	"github.com/elys-network/clm/internal/engine"
	"github.com/elys-network/clm/internal/governance"
	"github.com/elys-network/clm/internal/ledger"
	"github.com/elys-network/clm/internal/oracle"
	"github.com/elys-network/clm/internal/pricing"
	"github.com/elys-network/clm/internal/registry"
	"github.com/elys-network/clm/internal/types"
)

const (
	admin      = types.Address("admin")
	council    = types.Address("council")
	safetyFund = types.Address("safety-fund")
	memberA    = types.Address("member-a")
	memberB    = types.Address("member-b")
	memberC    = types.Address("member-c")
	outsider   = types.Address("outsider")
)

func newCouncil(t *testing.T) (*governance.Council, *registry.Registry, *engine.Engine) {
	t.Helper()

	memBank := bank.NewMemoryBank()
	require.NoError(t, memBank.RegisterToken("uusdc", 6))
	feed := oracle.NewStaticFeed(time.Hour)

	accessCtl, err := access.NewController(admin)
	require.NoError(t, err)
	reg, err := registry.New(accessCtl, memBank, nil)
	require.NoError(t, err)
	valuation, err := pricing.NewEngine(reg, feed)
	require.NoError(t, err)
	eng, err := engine.New(accessCtl, reg, ledger.New(), valuation, memBank, nil,
		types.FeeParameters{LiquidatorIncentiveBps: 1000, SafetyFundBps: 500}, safetyFund)
	require.NoError(t, err)

	// Forwarded actions pass the same role check as direct admin calls.
	require.NoError(t, accessCtl.GrantRole(admin, access.RoleAdmin, council))

	c, err := governance.NewCouncil(council, []types.Address{memberA, memberB, memberC}, reg, eng)
	require.NoError(t, err)
	return c, reg, eng
}

func TestProposalLifecycle(t *testing.T) {
	c, reg, _ := newCouncil(t)

	id, err := c.Propose(memberA, governance.Action{
		Kind:                governance.ActionListAsset,
		Denom:               "uusdc",
		CollateralFactorBps: 9000,
	})
	require.NoError(t, err)

	// One vote of three is not a majority.
	require.ErrorIs(t, c.Execute(memberA, id), governance.ErrNoMajority)
	require.False(t, reg.IsSupported("uusdc"))

	require.NoError(t, c.Vote(memberB, id))
	require.NoError(t, c.Execute(memberA, id))
	require.True(t, reg.IsSupported("uusdc"))

	// Executed proposals are closed.
	require.ErrorIs(t, c.Execute(memberC, id), governance.ErrAlreadyExecuted)
	require.ErrorIs(t, c.Vote(memberC, id), governance.ErrAlreadyExecuted)

	p, err := c.Proposal(id)
	require.NoError(t, err)
	require.True(t, p.Executed)
}

func TestSetFeeParametersThroughCouncil(t *testing.T) {
	c, _, eng := newCouncil(t)

	id, err := c.Propose(memberA, governance.Action{
		Kind: governance.ActionSetFeeParameters,
		Fees: types.FeeParameters{LiquidatorIncentiveBps: 700, SafetyFundBps: 300},
	})
	require.NoError(t, err)
	require.NoError(t, c.Vote(memberC, id))
	require.NoError(t, c.Execute(memberA, id))

	require.Equal(t, uint32(700), eng.FeeParameters().LiquidatorIncentiveBps)
	require.Equal(t, uint32(300), eng.FeeParameters().SafetyFundBps)
}

func TestOnlyAllowListedActions(t *testing.T) {
	c, _, _ := newCouncil(t)

	_, err := c.Propose(memberA, governance.Action{Kind: governance.ActionKind("drain_pool")})
	require.ErrorIs(t, err, governance.ErrActionNotListed)
}

func TestNonMembersRejected(t *testing.T) {
	c, _, _ := newCouncil(t)

	_, err := c.Propose(outsider, governance.Action{Kind: governance.ActionListAsset, Denom: "uusdc", CollateralFactorBps: 1})
	require.ErrorIs(t, err, governance.ErrNotMember)

	id, err := c.Propose(memberA, governance.Action{Kind: governance.ActionListAsset, Denom: "uusdc", CollateralFactorBps: 9000})
	require.NoError(t, err)
	require.ErrorIs(t, c.Vote(outsider, id), governance.ErrNotMember)
	require.ErrorIs(t, c.Execute(outsider, id), governance.ErrNotMember)
}

func TestForwardedActionStillRoleChecked(t *testing.T) {
	// A council whose address was never granted the administrative role
	// cannot execute, majority or not.
	memBank := bank.NewMemoryBank()
	require.NoError(t, memBank.RegisterToken("uusdc", 6))
	feed := oracle.NewStaticFeed(time.Hour)

	accessCtl, err := access.NewController(admin)
	require.NoError(t, err)
	reg, err := registry.New(accessCtl, memBank, nil)
	require.NoError(t, err)
	valuation, err := pricing.NewEngine(reg, feed)
	require.NoError(t, err)
	eng, err := engine.New(accessCtl, reg, ledger.New(), valuation, memBank, nil,
		types.FeeParameters{LiquidatorIncentiveBps: 1000, SafetyFundBps: 500}, safetyFund)
	require.NoError(t, err)

	c, err := governance.NewCouncil(council, []types.Address{memberA}, reg, eng)
	require.NoError(t, err)

	id, err := c.Propose(memberA, governance.Action{
		Kind:                governance.ActionListAsset,
		Denom:               "uusdc",
		CollateralFactorBps: 9000,
	})
	require.NoError(t, err)

	require.ErrorIs(t, c.Execute(memberA, id), access.ErrUnauthorized)
	require.False(t, reg.IsSupported("uusdc"))
}

func TestVoteIsIdempotent(t *testing.T) {
	c, reg, _ := newCouncil(t)

	id, err := c.Propose(memberA, governance.Action{
		Kind:                governance.ActionListAsset,
		Denom:               "uusdc",
		CollateralFactorBps: 9000,
	})
	require.NoError(t, err)

	// The proposer voting again does not create a second vote.
	require.NoError(t, c.Vote(memberA, id))
	require.ErrorIs(t, c.Execute(memberA, id), governance.ErrNoMajority)
	require.False(t, reg.IsSupported("uusdc"))
}
