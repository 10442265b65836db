package enums

import "fmt"

// ActorRole identifies which profile table an authenticated actor belongs to.
// Resolved once at sign-in and carried in the access token; the core never
// re-discovers it by probing tables per request.
type ActorRole string

const (
	ActorRoleFarmer      ActorRole = "farmer"
	ActorRoleMarket      ActorRole = "market"
	ActorRoleTransporter ActorRole = "transporter"
)

var validActorRoles = []ActorRole{
	ActorRoleFarmer,
	ActorRoleMarket,
	ActorRoleTransporter,
}

// String implements fmt.Stringer.
func (a ActorRole) String() string {
	return string(a)
}

// IsValid reports whether the value is a known ActorRole.
func (a ActorRole) IsValid() bool {
	for _, candidate := range validActorRoles {
		if candidate == a {
			return true
		}
	}
	return false
}

// ParseActorRole converts raw input into an ActorRole.
func ParseActorRole(value string) (ActorRole, error) {
	for _, candidate := range validActorRoles {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid actor role %q", value)
}
