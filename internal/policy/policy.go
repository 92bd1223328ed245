// Package policy holds the role matrix consulted by every mutating entry
// point: which roles may apply, defer or review which actions.
package policy

import "github.com/erazemk/inventario/internal/model"

// Decision is what happens when a role submits a domain action.
type Decision int

const (
	// Deny rejects the action.
	Deny Decision = iota
	// Defer parks the action in a pending request for an administrator.
	Defer
	// Execute applies the action immediately.
	Execute
)

func (d Decision) String() string {
	switch d {
	case Execute:
		return "execute"
	case Defer:
		return "defer"
	default:
		return "deny"
	}
}

// Permission names a non-action capability.
type Permission string

// Permissions.
const (
	ReviewRequests Permission = "review-requests"
	ManageTasks    Permission = "manage-tasks"
	ManageUsers    Permission = "manage-users"
	ManageConfig   Permission = "manage-config"
	ReviewAccess   Permission = "review-access"
	ViewAudit      Permission = "view-audit"
	ManageState    Permission = "manage-state"
	DeleteItems    Permission = "delete-items"
)

var actions = map[string]map[string]Decision{
	model.RoleAdmin: {
		model.ActionLoad:             Execute,
		model.ActionRetire:           Execute,
		model.ActionAssign:           Execute,
		model.ActionLend:             Execute,
		model.ActionReactivate:       Execute,
		model.ActionCreateProduct:    Execute,
		model.ActionEditProduct:      Execute,
		model.ActionDuplicateProduct: Execute,
		model.ActionReturn:           Execute,
		model.ActionBulkRetire:       Execute,
		model.ActionBulkReactivate:   Execute,
	},
	model.RoleEditor: {
		model.ActionLoad:             Defer,
		model.ActionRetire:           Defer,
		model.ActionAssign:           Defer,
		model.ActionLend:             Defer,
		model.ActionReactivate:       Defer,
		model.ActionCreateProduct:    Defer,
		model.ActionEditProduct:      Defer,
		model.ActionDuplicateProduct: Defer,
		model.ActionReturn:           Defer,
		model.ActionBulkRetire:       Defer,
		model.ActionBulkReactivate:   Defer,
	},
}

var grants = map[string][]Permission{
	model.RoleAdmin: {
		ReviewRequests,
		ManageTasks,
		ManageUsers,
		ManageConfig,
		ReviewAccess,
		ViewAudit,
		ManageState,
		DeleteItems,
	},
	model.RoleEditor: {
		ManageTasks,
		ViewAudit,
	},
}

// Decide returns what happens when role submits an action of the given type.
// Unknown roles and action types are denied.
func Decide(role, actionType string) Decision {
	return actions[role][actionType]
}

// Allowed reports whether role holds the permission.
func Allowed(role string, p Permission) bool {
	for _, g := range grants[role] {
		if g == p {
			return true
		}
	}
	return false
}
