/*

Governance council: a member-voted proposal queue in front of the
administrative operations. Only an allow-listed set of actions can be
proposed. An approved proposal is forwarded to the target module with the
council's own address as the caller, so the ordinary role checks still apply;
the council address must hold the administrative role like any other admin.

*/

package governance

import (
	"errors"
	"fmt"
	"time"

	"github.com/elys-network/clm/internal/engine"
	"github.com/elys-network/clm/internal/logger"
	"github.com/elys-network/clm/internal/registry"
	"github.com/elys-network/clm/internal/types"
)

// ActionKind identifies one allow-listed administrative action.
type ActionKind string

const (
	ActionListAsset           ActionKind = "list_asset"
	ActionSetCollateralFactor ActionKind = "set_collateral_factor"
	ActionSetFeeParameters    ActionKind = "set_fee_parameters"
)

// Error definitions for zero-tolerance error handling
var (
	ErrNotMember       = errors.New("caller is not a council member")
	ErrActionNotListed = errors.New("action kind is not on the allow list")
	ErrUnknownProposal = errors.New("proposal does not exist")
	ErrAlreadyExecuted = errors.New("proposal was already executed")
	ErrNoMajority      = errors.New("proposal lacks a member majority")
)

var governanceLogger = logger.GetForComponent("governance")

// Action carries the parameters of one proposed administrative call. Fields
// irrelevant to the kind are ignored.
type Action struct {
	Kind                ActionKind          `json:"kind"`
	Denom               string              `json:"denom,omitempty"`
	CollateralFactorBps uint32              `json:"collateral_factor_bps,omitempty"`
	Fees                types.FeeParameters `json:"fees,omitempty"`
}

// Proposal is one pending or executed council decision.
type Proposal struct {
	ID        uint64                      `json:"id"`
	Proposer  types.Address               `json:"proposer"`
	Action    Action                      `json:"action"`
	CreatedAt time.Time                   `json:"created_at"`
	VotesFor  map[types.Address]struct{}  `json:"-"`
	Executed  bool                        `json:"executed"`
}

// Council manages proposals and forwards approved ones.
type Council struct {
	// address is the caller identity the council uses when forwarding an
	// approved action. It must be granted the administrative role.
	address types.Address

	members   map[types.Address]struct{}
	registry  *registry.Registry
	engine    *engine.Engine
	proposals map[uint64]*Proposal
	nextID    uint64
}

// NewCouncil creates a council with the given member set.
func NewCouncil(address types.Address, members []types.Address, reg *registry.Registry, eng *engine.Engine) (*Council, error) {
	if address == types.ZeroAddress {
		return nil, errors.New("council address cannot be empty")
	}
	if len(members) == 0 {
		return nil, errors.New("council needs at least one member")
	}
	if reg == nil || eng == nil {
		return nil, errors.New("council targets cannot be nil")
	}

	memberSet := make(map[types.Address]struct{}, len(members))
	for _, m := range members {
		if m == types.ZeroAddress {
			return nil, errors.New("council member address cannot be empty")
		}
		memberSet[m] = struct{}{}
	}

	return &Council{
		address:   address,
		members:   memberSet,
		registry:  reg,
		engine:    eng,
		proposals: make(map[uint64]*Proposal),
		nextID:    1,
	}, nil
}

// Address returns the caller identity used for forwarded actions.
func (c *Council) Address() types.Address {
	return c.address
}

// IsMember reports whether account sits on the council.
func (c *Council) IsMember(account types.Address) bool {
	_, ok := c.members[account]
	return ok
}

// Propose creates a proposal for an allow-listed action. The proposer's vote
// is counted immediately.
func (c *Council) Propose(proposer types.Address, action Action) (uint64, error) {
	if !c.IsMember(proposer) {
		return 0, errors.Join(ErrNotMember, fmt.Errorf("account %s", proposer))
	}

	switch action.Kind {
	case ActionListAsset, ActionSetCollateralFactor, ActionSetFeeParameters:
	default:
		return 0, errors.Join(ErrActionNotListed, fmt.Errorf("kind %q", action.Kind))
	}

	id := c.nextID
	c.nextID++
	c.proposals[id] = &Proposal{
		ID:        id,
		Proposer:  proposer,
		Action:    action,
		CreatedAt: time.Now(),
		VotesFor:  map[types.Address]struct{}{proposer: {}},
	}

	governanceLogger.Info().
		Uint64("proposalId", id).
		Str("proposer", string(proposer)).
		Str("kind", string(action.Kind)).
		Msg("Proposal created")

	return id, nil
}

// Vote records a member's approval of a proposal. Voting twice is a no-op.
func (c *Council) Vote(voter types.Address, id uint64) error {
	if !c.IsMember(voter) {
		return errors.Join(ErrNotMember, fmt.Errorf("account %s", voter))
	}

	proposal, ok := c.proposals[id]
	if !ok {
		return errors.Join(ErrUnknownProposal, fmt.Errorf("proposal %d", id))
	}
	if proposal.Executed {
		return errors.Join(ErrAlreadyExecuted, fmt.Errorf("proposal %d", id))
	}

	proposal.VotesFor[voter] = struct{}{}

	governanceLogger.Info().
		Uint64("proposalId", id).
		Str("voter", string(voter)).
		Int("votes", len(proposal.VotesFor)).
		Msg("Vote recorded")

	return nil
}

// Execute forwards an approved proposal to its target module. Execution
// requires a strict majority of the member set and can happen once.
func (c *Council) Execute(caller types.Address, id uint64) error {
	if !c.IsMember(caller) {
		return errors.Join(ErrNotMember, fmt.Errorf("account %s", caller))
	}

	proposal, ok := c.proposals[id]
	if !ok {
		return errors.Join(ErrUnknownProposal, fmt.Errorf("proposal %d", id))
	}
	if proposal.Executed {
		return errors.Join(ErrAlreadyExecuted, fmt.Errorf("proposal %d", id))
	}
	if len(proposal.VotesFor)*2 <= len(c.members) {
		return errors.Join(ErrNoMajority,
			fmt.Errorf("proposal %d has %d of %d votes", id, len(proposal.VotesFor), len(c.members)))
	}

	var err error
	switch proposal.Action.Kind {
	case ActionListAsset:
		err = c.registry.ListAsset(c.address, proposal.Action.Denom, proposal.Action.CollateralFactorBps)
	case ActionSetCollateralFactor:
		err = c.registry.SetCollateralFactor(c.address, proposal.Action.Denom, proposal.Action.CollateralFactorBps)
	case ActionSetFeeParameters:
		err = c.engine.SetFeeParameters(c.address, proposal.Action.Fees)
	default:
		err = errors.Join(ErrActionNotListed, fmt.Errorf("kind %q", proposal.Action.Kind))
	}
	if err != nil {
		return err
	}

	proposal.Executed = true

	governanceLogger.Info().
		Uint64("proposalId", id).
		Str("kind", string(proposal.Action.Kind)).
		Str("executedBy", string(caller)).
		Msg("Proposal executed")

	return nil
}

// Proposal returns a copy of the proposal with the given id.
func (c *Council) Proposal(id uint64) (Proposal, error) {
	proposal, ok := c.proposals[id]
	if !ok {
		return Proposal{}, errors.Join(ErrUnknownProposal, fmt.Errorf("proposal %d", id))
	}
	return *proposal, nil
}
