package auth

import "github.com/gofrs/uuid"

type Action string

const (
	ActionCartRead    Action = "cart:read"
	ActionCartWrite   Action = "cart:write"
	ActionCheckout    Action = "checkout:create"
	ActionOrderRead   Action = "order:read"
	ActionOrderRefund Action = "order:refund"
)

// Resource identifies what an action targets. OwnerID is uuid.Nil for
// resources with no owner (e.g. a cart the caller is about to create).
type Resource struct {
	Type    string
	OwnerID uuid.UUID
}

// Authorize is the single capability check: can this principal perform
// the action on the resource. Pure function, called at the boundary of
// each operation; the core components assume it has already passed.
func Authorize(p Principal, action Action, resource Resource) bool {
	if p.Role == RoleAdmin {
		return true
	}

	switch action {
	case ActionCartRead, ActionCartWrite, ActionCheckout:
		return resource.OwnerID == uuid.Nil || resource.OwnerID == p.UserID
	case ActionOrderRead:
		return resource.OwnerID == p.UserID
	case ActionOrderRefund:
		return false
	default:
		return false
	}
}
