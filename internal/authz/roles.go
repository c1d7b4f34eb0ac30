package authz

const (
	RoleAdmin        = "ADMIN"
	RoleDoctor       = "DOCTOR"
	RoleNurse        = "NURSE"
	RoleReceptionist = "RECEPTIONIST"
	RoleAuditor      = "AUDITOR"
)

// IsReadOnly roles may look at records but never change them.
func IsReadOnly(role string) bool {
	return role == RoleAuditor
}
