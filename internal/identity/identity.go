// ABOUTME: Identity and Role types for authenticated principals
// ABOUTME: Resolved from a bearer credential via the identity store

package identity

// Role is the closed set of roles a QuickFix identity can hold.
type Role string

// Known roles.
const (
	RoleUser    Role = "user"
	RoleAgent   Role = "agent"
	RoleAdmin   Role = "admin"
	RoleAnalyst Role = "analyst"
)

// Valid reports whether the role is one of the known roles.
func (r Role) Valid() bool {
	switch r {
	case RoleUser, RoleAgent, RoleAdmin, RoleAnalyst:
		return true
	}
	return false
}

// Identity is the authenticated principal resolved from a credential.
// It is read-only to the realtime subsystem.
type Identity struct {
	ID          string
	Role        Role
	DisplayName string
}
