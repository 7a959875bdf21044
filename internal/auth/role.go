// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Keyline Contributors

package auth

import (
	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"
)

// Role is an account's role within its scope. Roles are totally ordered by
// power: owner > admin > user.
type Role int

// Role values in ascending power order.
const (
	RoleUser Role = iota + 1
	RoleAdmin
	RoleOwner
)

// Authorization denial reasons surfaced to callers.
const (
	ReasonSelf         = "cannot act on self"
	ReasonInsufficient = "insufficient role power"
)

// ParseRole converts a role name to a Role.
// Unknown names are rejected here so evaluator functions never see them.
func ParseRole(s string) (Role, error) {
	switch s {
	case "user":
		return RoleUser, nil
	case "admin":
		return RoleAdmin, nil
	case "owner":
		return RoleOwner, nil
	default:
		return 0, oops.Code("ROLE_INVALID").With("role", s).Errorf("unknown role: %q", s)
	}
}

// String returns the role name.
func (r Role) String() string {
	switch r {
	case RoleUser:
		return "user"
	case RoleAdmin:
		return "admin"
	case RoleOwner:
		return "owner"
	default:
		return "unknown"
	}
}

// Valid reports whether r is a known role value.
func (r Role) Valid() bool {
	return r == RoleUser || r == RoleAdmin || r == RoleOwner
}

// Power returns the integer rank used to order roles.
func (r Role) Power() int {
	return int(r)
}

// Decision is the result of an authorization check.
type Decision struct {
	Allowed bool
	Reason  string // empty when Allowed
}

// allow is the positive decision.
var allow = Decision{Allowed: true}

func deny(reason string) Decision {
	return Decision{Allowed: false, Reason: reason}
}

// CanDisable decides whether the actor may disable the target account.
// Acting on yourself is always denied, and the self check runs before the
// power comparison so the reason is stable even when powers are equal.
// Equal power is denied: an admin cannot disable another admin.
func CanDisable(actorRole Role, actorID ulid.ULID, targetRole Role, targetID ulid.ULID) Decision {
	if actorID.Compare(targetID) == 0 {
		return deny(ReasonSelf)
	}
	if actorRole.Power() <= targetRole.Power() {
		return deny(ReasonInsufficient)
	}
	return allow
}

// CanEnable decides whether the actor may re-enable the target account.
// The rule is identical to CanDisable: whoever can suspend an account can
// also restore it.
func CanEnable(actorRole Role, actorID ulid.ULID, targetRole Role, targetID ulid.ULID) Decision {
	return CanDisable(actorRole, actorID, targetRole, targetID)
}

// HasAuthorityOver reports whether role a strictly outranks role b.
func HasAuthorityOver(a, b Role) bool {
	return a.Power() > b.Power()
}

// ManageableRoles returns every role with strictly lower power than actor,
// in ascending power order.
func ManageableRoles(actor Role) []Role {
	var roles []Role
	for _, r := range []Role{RoleUser, RoleAdmin, RoleOwner} {
		if actor.Power() > r.Power() {
			roles = append(roles, r)
		}
	}
	return roles
}
