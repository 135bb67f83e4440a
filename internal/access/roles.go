/*

Role-based access control for administrative operations. A standalone
permission-set abstraction: roles map to member sets, checked synchronously at
the start of each administrative operation.

*/

package access

import (
	"errors"
	"fmt"

	"github.com/elys-network/clm/internal/logger"
	"github.com/elys-network/clm/internal/types"
)

// Role identifies a permission group.
type Role string

const (
	// RoleDefaultAdmin can grant and revoke any role, including itself.
	RoleDefaultAdmin Role = "default_admin"
	// RoleAdmin gates asset listing, collateral factor changes, and fee
	// parameter mutation.
	RoleAdmin Role = "admin"
)

// Error definitions for zero-tolerance error handling
var (
	ErrUnauthorized = errors.New("caller lacks required role")
	ErrBadAddress   = errors.New("address is invalid")
)

var accessLogger = logger.GetForComponent("access_control")

// Controller holds the role membership sets. The engine serializes all calls
// through its reentrancy guard; the controller itself performs no locking.
type Controller struct {
	members map[Role]map[types.Address]struct{}
}

// NewController creates a controller with the given default admin, who also
// starts with the administrative role.
func NewController(defaultAdmin types.Address) (*Controller, error) {
	if defaultAdmin == types.ZeroAddress {
		return nil, errors.Join(ErrBadAddress, errors.New("default admin address cannot be empty"))
	}

	c := &Controller{
		members: map[Role]map[types.Address]struct{}{
			RoleDefaultAdmin: {defaultAdmin: {}},
			RoleAdmin:        {defaultAdmin: {}},
		},
	}

	accessLogger.Info().
		Str("defaultAdmin", string(defaultAdmin)).
		Msg("Access controller initialized")

	return c, nil
}

// HasRole reports whether account is a member of role.
func (c *Controller) HasRole(role Role, account types.Address) bool {
	set, ok := c.members[role]
	if !ok {
		return false
	}
	_, ok = set[account]
	return ok
}

// RequireRole fails with ErrUnauthorized when account is not a member of role.
// Callable from any operation; administrative entry points call it first.
func (c *Controller) RequireRole(role Role, account types.Address) error {
	if !c.HasRole(role, account) {
		return errors.Join(ErrUnauthorized, fmt.Errorf("account %s does not hold role %s", account, role))
	}
	return nil
}

// GrantRole adds account to role. Only the default admin may grant.
func (c *Controller) GrantRole(caller types.Address, role Role, account types.Address) error {
	if err := c.RequireRole(RoleDefaultAdmin, caller); err != nil {
		return err
	}
	if account == types.ZeroAddress {
		return errors.Join(ErrBadAddress, errors.New("cannot grant role to empty address"))
	}

	if c.members[role] == nil {
		c.members[role] = make(map[types.Address]struct{})
	}
	c.members[role][account] = struct{}{}

	accessLogger.Info().
		Str("role", string(role)).
		Str("account", string(account)).
		Str("grantedBy", string(caller)).
		Msg("Role granted")

	return nil
}

// RevokeRole removes account from role. Only the default admin may revoke.
func (c *Controller) RevokeRole(caller types.Address, role Role, account types.Address) error {
	if err := c.RequireRole(RoleDefaultAdmin, caller); err != nil {
		return err
	}

	if set, ok := c.members[role]; ok {
		delete(set, account)
	}

	accessLogger.Info().
		Str("role", string(role)).
		Str("account", string(account)).
		Str("revokedBy", string(caller)).
		Msg("Role revoked")

	return nil
}
